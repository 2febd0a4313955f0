package session

import (
	"context"

	"github.com/opway/opway/internal/core/domain"
)

// Grant is what the backend returns for a successful login or registration.
type Grant struct {
	Token     string
	Principal Principal
}

// Gateway is the backend the Session Operations talk to. Implementations
// translate failures into this package's errors.
type Gateway interface {
	Login(ctx context.Context, email, password string) (Grant, error)
	Register(ctx context.Context, name, email, password string) (Grant, error)
	Me(ctx context.Context, token string) (Principal, error)
	UpdateProfile(ctx context.Context, token string, upd domain.ProfileUpdate) (Principal, error)
	Logout(ctx context.Context, token string) error
}
