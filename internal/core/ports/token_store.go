package ports

import (
	"context"
	"time"

	"github.com/opway/opway/internal/core/domain"
)

// TokenRevoker tracks bearer tokens that were logged out before they expired.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AccountLookup resolves the current account behind a token subject, so that
// role changes and deletions apply to tokens already issued.
type AccountLookup interface {
	Me(ctx context.Context, userID string) (*domain.User, error)
}
