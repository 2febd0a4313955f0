package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/opway/opway/internal/core/domain"
	"github.com/opway/opway/internal/session"
)

// HTTPGateway implements session.Gateway against the REST backend.
type HTTPGateway struct {
	client *resty.Client
}

var _ session.Gateway = (*HTTPGateway)(nil)

// NewHTTPGateway validates baseURL and returns a gateway. timeout caps every
// request in addition to the caller's context.
func NewHTTPGateway(baseURL string, timeout time.Duration) (*HTTPGateway, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}

	client := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPGateway{client: client}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

type credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authPayload struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type userPayload struct {
	User *domain.User `json:"user"`
}

func (g *HTTPGateway) Login(ctx context.Context, email, password string) (session.Grant, error) {
	return g.authenticate(ctx, "login", "/api/auth/login", credentials{Email: email, Password: password})
}

func (g *HTTPGateway) Register(ctx context.Context, name, email, password string) (session.Grant, error) {
	return g.authenticate(ctx, "register", "/api/auth/register", credentials{Name: name, Email: email, Password: password})
}

func (g *HTTPGateway) authenticate(ctx context.Context, op, path string, body credentials) (session.Grant, error) {
	var out authPayload
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post(path)
	if err != nil {
		return session.Grant{}, mapTransportError(op, err)
	}
	if err := mapHTTPError(resp); err != nil {
		return session.Grant{}, fmt.Errorf("%s: %w", op, err)
	}
	if out.Token == "" || out.User == nil {
		return session.Grant{}, fmt.Errorf("%s: %w: incomplete response", op, session.ErrUnavailable)
	}

	return session.Grant{Token: out.Token, Principal: session.PrincipalFromUser(out.User)}, nil
}

func (g *HTTPGateway) Me(ctx context.Context, token string) (session.Principal, error) {
	var out userPayload
	resp, err := g.authed(ctx, token).
		SetResult(&out).
		Get("/api/auth/me")
	if err != nil {
		return session.Principal{}, mapTransportError("me", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return session.Principal{}, fmt.Errorf("me: %w", err)
	}
	if out.User == nil {
		return session.Principal{}, fmt.Errorf("me: %w: incomplete response", session.ErrUnavailable)
	}
	return session.PrincipalFromUser(out.User), nil
}

func (g *HTTPGateway) UpdateProfile(ctx context.Context, token string, upd domain.ProfileUpdate) (session.Principal, error) {
	var out userPayload
	resp, err := g.authed(ctx, token).
		SetHeader("Content-Type", "application/json").
		SetBody(upd).
		SetResult(&out).
		Put("/api/users/me")
	if err != nil {
		return session.Principal{}, mapTransportError("update profile", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return session.Principal{}, fmt.Errorf("update profile: %w", err)
	}
	if out.User == nil {
		return session.Principal{}, fmt.Errorf("update profile: %w: incomplete response", session.ErrUnavailable)
	}
	return session.PrincipalFromUser(out.User), nil
}

func (g *HTTPGateway) Logout(ctx context.Context, token string) error {
	resp, err := g.authed(ctx, token).Post("/api/auth/logout")
	if err != nil {
		return mapTransportError("logout", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (g *HTTPGateway) authed(ctx context.Context, token string) *resty.Request {
	return g.client.R().
		SetContext(ctx).
		SetAuthToken(token)
}
