package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opway/opway/internal/core/domain"
	"github.com/opway/opway/internal/session"
)

func newGateway(t *testing.T, h http.Handler) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	gw, err := NewHTTPGateway(srv.URL, time.Second)
	require.NoError(t, err)
	return gw
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestHTTPGateway_Login(t *testing.T) {
	gw := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bob@x.com", body["email"])
		assert.Equal(t, "pw", body["password"])
		_, hasName := body["name"]
		assert.False(t, hasName)

		writeJSON(w, http.StatusOK, map[string]any{
			"token": "jwt-1",
			"user": map[string]any{
				"id": "u1", "name": "Bob", "email": "bob@x.com", "role": "customer",
				"city": "Rabat", "created_at": time.Now(),
			},
		})
	}))

	grant, err := gw.Login(context.Background(), "bob@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", grant.Token)
	assert.Equal(t, session.Principal{
		ID: "u1", Name: "Bob", Email: "bob@x.com", Role: domain.RoleCustomer,
		Profile: domain.Profile{City: "Rabat"},
	}, grant.Principal)
}

func TestHTTPGateway_Register(t *testing.T) {
	gw := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/register", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ana", body["name"])

		writeJSON(w, http.StatusCreated, map[string]any{
			"token": "jwt-2",
			"user":  map[string]any{"id": "u2", "name": "Ana", "email": "ana@x.com", "role": "customer"},
		})
	}))

	grant, err := gw.Register(context.Background(), "Ana", "ana@x.com", "pw123")
	require.NoError(t, err)
	assert.Equal(t, "Ana", grant.Principal.Name)
}

func TestHTTPGateway_StatusMapping(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, session.ErrValidation},
		{http.StatusUnprocessableEntity, session.ErrValidation},
		{http.StatusUnauthorized, session.ErrInvalidCredentials},
		{http.StatusConflict, session.ErrDuplicateAccount},
		{http.StatusInternalServerError, session.ErrUnavailable},
		{http.StatusServiceUnavailable, session.ErrUnavailable},
		{http.StatusGatewayTimeout, session.ErrTimeout},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			gw := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tc.code, map[string]string{"error": "nope"})
			}))

			_, err := gw.Login(context.Background(), "bob@x.com", "pw")
			assert.ErrorIs(t, err, tc.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestHTTPGateway_IncompleteResponse(t *testing.T) {
	gw := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": "jwt"})
	}))

	_, err := gw.Login(context.Background(), "bob@x.com", "pw")
	assert.ErrorIs(t, err, session.ErrUnavailable)
}

func TestHTTPGateway_Timeout(t *testing.T) {
	release := make(chan struct{})
	gw := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gw.Login(ctx, "bob@x.com", "pw")
	assert.ErrorIs(t, err, session.ErrTimeout)
}

func TestHTTPGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	gw, err := NewHTTPGateway(addr, time.Second)
	require.NoError(t, err)

	_, err = gw.Login(context.Background(), "bob@x.com", "pw")
	assert.ErrorIs(t, err, session.ErrUnavailable)
}

func TestHTTPGateway_AuthenticatedCalls(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	gw := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt-1", r.Header.Get("Authorization"))
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()

		switch r.URL.Path {
		case "/api/auth/me":
			writeJSON(w, http.StatusOK, map[string]any{
				"user": map[string]any{"id": "u1", "email": "bob@x.com", "role": "admin"},
			})
		case "/api/users/me":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]string{"city": "Fez"}, body)
			writeJSON(w, http.StatusOK, map[string]any{
				"user": map[string]any{"id": "u1", "email": "bob@x.com", "role": "admin", "city": "Fez"},
			})
		case "/api/auth/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	p, err := gw.Me(ctx, "jwt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, p.Role)

	p, err = gw.UpdateProfile(ctx, "jwt-1", domain.ProfileUpdate{Profile: domain.Profile{City: "Fez"}})
	require.NoError(t, err)
	assert.Equal(t, "Fez", p.City)

	require.NoError(t, gw.Logout(ctx, "jwt-1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"GET /api/auth/me",
		"PUT /api/users/me",
		"POST /api/auth/logout",
	}, seen)
}

func TestNormalizeBaseURL(t *testing.T) {
	got, err := normalizeBaseURL(" localhost:8080/ ")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", got)

	_, err = normalizeBaseURL("")
	assert.Error(t, err)

	_, err = NewHTTPGateway("http://", time.Second)
	assert.Error(t, err)
}
