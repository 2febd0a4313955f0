package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/opway/opway/internal/api/middleware"
	"github.com/opway/opway/internal/core/domain"
	"github.com/opway/opway/internal/core/ports"
)

// --- stubs ---

type stubAuthService struct {
	registerIn  ports.RegisterInput
	registerErr error
	loginErr    error
	meErr       error
	logoutErr   error
	loggedOut   ports.TokenClaims
}

func (s *stubAuthService) Register(_ context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	s.registerIn = in
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &ports.AuthResult{
		Token: "tok",
		User:  &domain.User{ID: "u1", Name: in.Name, Email: in.Email, Role: domain.RoleCustomer},
	}, nil
}

func (s *stubAuthService) Login(_ context.Context, email, _ string) (*ports.AuthResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &ports.AuthResult{
		Token: "tok",
		User:  &domain.User{ID: "u1", Email: email, Role: domain.RoleCustomer},
	}, nil
}

func (s *stubAuthService) Me(_ context.Context, userID string) (*domain.User, error) {
	if s.meErr != nil {
		return nil, s.meErr
	}
	return &domain.User{ID: userID, Email: "ana@example.com", Role: domain.RoleCustomer}, nil
}

func (s *stubAuthService) Logout(_ context.Context, claims ports.TokenClaims) error {
	s.loggedOut = claims
	return s.logoutErr
}

// --- helpers ---

func newTestContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withClaims(c echo.Context, id string, role domain.Role) {
	c.Set(middleware.ClaimsKey, ports.TokenClaims{
		UserID:    id,
		Email:     id + "@example.com",
		Role:      role,
		TokenID:   "jti-" + id,
		ExpiresAt: time.Now().Add(time.Hour),
	})
}

func assertHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != code {
		t.Errorf("expected status %d, got %d (%v)", code, he.Code, he.Message)
	}
}

// --- tests ---

func TestAuthHandler_Register_Created(t *testing.T) {
	svc := &stubAuthService{}
	h := NewAuthHandler(svc)
	c, rec := newTestContext(http.MethodPost, "/api/auth/register",
		`{"name":"Ana","email":"ana@example.com","password":"secret1"}`)

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var body authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Token != "tok" || body.User == nil || body.User.Name != "Ana" {
		t.Errorf("unexpected body: %+v", body)
	}
	if svc.registerIn.Email != "ana@example.com" {
		t.Errorf("service got %+v", svc.registerIn)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not contain password fields")
	}
}

func TestAuthHandler_Register_ValidationFailure(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})
	cases := []string{
		`{"name":"","email":"ana@example.com","password":"secret1"}`,
		`{"name":"Ana","email":"not-an-email","password":"secret1"}`,
		`{"name":"Ana","email":"ana@example.com","password":"123"}`,
	}
	for _, body := range cases {
		c, _ := newTestContext(http.MethodPost, "/api/auth/register", body)
		assertHTTPError(t, h.Register(c), http.StatusUnprocessableEntity)
	}
}

func TestAuthHandler_Register_MalformedJSON(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})
	c, _ := newTestContext(http.MethodPost, "/api/auth/register", `{"name":`)
	assertHTTPError(t, h.Register(c), http.StatusBadRequest)
}

func TestAuthHandler_Register_DuplicatePassesThrough(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{registerErr: domain.ErrUserExists})
	c, _ := newTestContext(http.MethodPost, "/api/auth/register",
		`{"name":"Ana","email":"ana@example.com","password":"secret1"}`)

	if err := h.Register(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists for the error handler, got %v", err)
	}
}

func TestAuthHandler_Login(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})
	c, rec := newTestContext(http.MethodPost, "/api/auth/login",
		`{"email":"bob@example.com","password":"pw"}`)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{loginErr: domain.ErrInvalidCredentials})
	c, _ := newTestContext(http.MethodPost, "/api/auth/login",
		`{"email":"bob@example.com","password":"wrong"}`)

	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Me_RequiresClaims(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})
	c, _ := newTestContext(http.MethodGet, "/api/auth/me", "")
	assertHTTPError(t, h.Me(c), http.StatusUnauthorized)
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})
	c, rec := newTestContext(http.MethodGet, "/api/auth/me", "")
	withClaims(c, "u7", domain.RoleCustomer)

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body userResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.User == nil || body.User.ID != "u7" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	svc := &stubAuthService{}
	h := NewAuthHandler(svc)
	c, rec := newTestContext(http.MethodPost, "/api/auth/logout", "")
	withClaims(c, "u7", domain.RoleCustomer)

	if err := h.Logout(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if svc.loggedOut.TokenID != "jti-u7" {
		t.Errorf("expected token jti-u7 to be revoked, got %+v", svc.loggedOut)
	}
}
