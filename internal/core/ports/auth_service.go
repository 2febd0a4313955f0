package ports

import (
	"context"
	"time"

	"github.com/opway/opway/internal/core/domain"
)

// RegisterInput is the DTO for account creation.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is returned by a successful register or login.
type AuthResult struct {
	Token string
	User  *domain.User
}

// TokenClaims is the verified identity carried by a bearer token.
type TokenClaims struct {
	UserID    string
	Email     string
	Role      domain.Role
	TokenID   string
	ExpiresAt time.Time
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	Logout(ctx context.Context, claims TokenClaims) error
}
