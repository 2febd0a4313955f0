package ports

import (
	"context"

	"github.com/opway/opway/internal/core/domain"
)

// Actor is the authenticated caller of a user operation.
type Actor struct {
	UserID string
	Role   domain.Role
}

// ListUsersInput carries the parameters for the admin user listing.
type ListUsersInput struct {
	Search string
	Role   string
	Page   int
	Limit  int
}

// ListUsersResult is one page of users.
type ListUsersResult struct {
	Items      []*domain.User
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// UserService defines account management use cases.
type UserService interface {
	List(ctx context.Context, in ListUsersInput) (*ListUsersResult, error)
	// Get returns a user visible to actor: admins see everyone, others only themselves.
	Get(ctx context.Context, actor Actor, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, actor Actor, upd domain.ProfileUpdate) (*domain.User, error)
	SetRole(ctx context.Context, actor Actor, id string, role string) (*domain.User, error)
	Delete(ctx context.Context, actor Actor, id string) error
}
