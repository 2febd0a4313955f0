package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opway/opway/internal/core/domain"
	"github.com/opway/opway/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type userService struct {
	repo  ports.UserRepository
	audit ports.AuditSink
	log   zerolog.Logger
}

// NewUserService returns a UserService implementation.
func NewUserService(repo ports.UserRepository, audit ports.AuditSink, log zerolog.Logger) ports.UserService {
	if audit == nil {
		audit = noopAudit{}
	}
	return &userService{repo: repo, audit: audit, log: log}
}

func (s *userService) List(ctx context.Context, in ports.ListUsersInput) (*ports.ListUsersResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	filter := ports.ListUsersFilter{Search: in.Search, Page: page, Limit: limit}
	if in.Role != "" {
		role, err := domain.ParseRole(in.Role)
		if err != nil {
			return nil, err
		}
		filter.Role = role
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &ports.ListUsersResult{
		Items:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

func (s *userService) Get(ctx context.Context, actor ports.Actor, id string) (*domain.User, error) {
	if actor.Role != domain.RoleAdmin && actor.UserID != id {
		return nil, domain.ErrForbidden
	}
	return s.repo.FindByID(ctx, id)
}

func (s *userService) UpdateProfile(ctx context.Context, actor ports.Actor, upd domain.ProfileUpdate) (*domain.User, error) {
	if actor.UserID == "" {
		return nil, domain.ErrForbidden
	}
	if upd.IsEmpty() {
		return nil, fmt.Errorf("%w: no profile fields to update", domain.ErrValidation)
	}

	user, err := s.repo.UpdateProfile(ctx, actor.UserID, upd)
	if err != nil {
		return nil, err
	}

	s.audit.Record(domain.AuthEvent{Kind: domain.EventProfileUpdated, UserID: user.ID, Email: user.Email, At: time.Now().UTC()})
	return user, nil
}

func (s *userService) SetRole(ctx context.Context, actor ports.Actor, id string, role string) (*domain.User, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	// An admin demoting themselves could leave the system without admins.
	if actor.UserID == id {
		return nil, fmt.Errorf("%w: cannot change your own role", domain.ErrForbidden)
	}

	r, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.UpdateRole(ctx, id, r)
	if err != nil {
		return nil, err
	}

	s.audit.Record(domain.AuthEvent{
		Kind:   domain.EventRoleChanged,
		UserID: user.ID,
		Email:  user.Email,
		Actor:  actor.UserID,
		Detail: string(r),
		At:     time.Now().UTC(),
	})
	s.log.Info().Str("user_id", id).Str("role", string(r)).Str("actor", actor.UserID).Msg("role changed")
	return user, nil
}

func (s *userService) Delete(ctx context.Context, actor ports.Actor, id string) error {
	if actor.Role != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	if actor.UserID == id {
		return fmt.Errorf("%w: cannot delete yourself", domain.ErrForbidden)
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Record(domain.AuthEvent{Kind: domain.EventUserDeleted, UserID: id, Email: user.Email, Actor: actor.UserID, At: time.Now().UTC()})
	s.log.Info().Str("user_id", id).Str("actor", actor.UserID).Msg("user deleted")
	return nil
}
