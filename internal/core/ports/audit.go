package ports

import (
	"context"

	"github.com/opway/opway/internal/core/domain"
)

// AuditRepository persists the authentication audit trail.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuthEvent) error
}

// AuditSink accepts audit events without blocking the caller on persistence.
type AuditSink interface {
	Record(event domain.AuthEvent)
}
