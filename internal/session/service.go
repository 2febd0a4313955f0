package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/opway/opway/internal/core/domain"
)

const defaultRequestTimeout = 10 * time.Second

// Service runs the session operations against a Gateway and applies their
// results to a Store. Network calls happen outside the store lock, so
// concurrent operations are applied in the order they complete.
type Service struct {
	store    *Store
	gateway  Gateway
	validate *validator.Validate
	timeout  time.Duration
	log      zerolog.Logger
}

func NewService(store *Store, gateway Gateway, requestTimeout time.Duration, log zerolog.Logger) *Service {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &Service{
		store:    store,
		gateway:  gateway,
		validate: validator.New(),
		timeout:  requestTimeout,
		log:      log,
	}
}

// Store returns the store the service writes to.
func (s *Service) Store() *Store { return s.store }

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type registerInput struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type profileInput struct {
	Name    string `validate:"omitempty,max=100"`
	Phone   string `validate:"omitempty,max=32"`
	Address string `validate:"omitempty,max=200"`
	City    string `validate:"omitempty,max=100"`
	Country string `validate:"omitempty,max=100"`
	Bio     string `validate:"omitempty,max=1000"`
	Avatar  string `validate:"omitempty,max=2048"`
}

// Login verifies the credentials with the backend and establishes a session.
func (s *Service) Login(ctx context.Context, email, password string) (Principal, error) {
	in := loginInput{Email: strings.TrimSpace(email), Password: password}
	if err := s.check(in); err != nil {
		return Principal{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	grant, err := s.gateway.Login(callCtx, in.Email, in.Password)
	if err != nil {
		return Principal{}, s.translate("login", err)
	}

	if err := s.store.establish(ctx, grant.Principal, grant.Token); err != nil {
		return Principal{}, err
	}
	s.log.Info().Str("user_id", grant.Principal.ID).Msg("logged in")
	return grant.Principal, nil
}

// Register creates an account and establishes a session for it.
func (s *Service) Register(ctx context.Context, name, email, password string) (Principal, error) {
	in := registerInput{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email), Password: password}
	if err := s.check(in); err != nil {
		return Principal{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	grant, err := s.gateway.Register(callCtx, in.Name, in.Email, in.Password)
	if err != nil {
		return Principal{}, s.translate("register", err)
	}

	if err := s.store.establish(ctx, grant.Principal, grant.Token); err != nil {
		return Principal{}, err
	}
	s.log.Info().Str("user_id", grant.Principal.ID).Msg("registered")
	return grant.Principal, nil
}

// Logout ends the session. Memory and the durable mirror are cleared
// together, before the backend is asked to revoke the token, so a session
// established meanwhile is left intact. Revocation is best effort; the only
// error reported is a failure to clear the mirror. Logging out twice is a
// no-op.
func (s *Service) Logout(ctx context.Context) error {
	token, clearErr := s.store.end(ctx)

	if token != "" {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		if err := s.gateway.Logout(callCtx, token); err != nil {
			s.log.Warn().Err(err).Msg("token revocation failed")
		}
		cancel()
	}

	if clearErr != nil {
		s.log.Error().Err(clearErr).Msg("clear stored session")
		return clearErr
	}
	return nil
}

// UpdateProfile merges upd into the principal. The patch is applied to the
// principal current when the backend answers, so concurrent updates with
// overlapping fields resolve last-completed-wins. Without a session this is a
// no-op.
func (s *Service) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) error {
	snap := s.store.Snapshot()
	token := s.store.Token()
	if !snap.Authenticated || snap.Principal == nil || token == "" {
		return nil
	}
	if upd.IsEmpty() {
		return fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	if err := s.check(profileInput{
		Name:    upd.Name,
		Phone:   upd.Phone,
		Address: upd.Address,
		City:    upd.City,
		Country: upd.Country,
		Bio:     upd.Bio,
		Avatar:  upd.Avatar,
	}); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.gateway.UpdateProfile(callCtx, token, upd); err != nil {
		return s.translate("update profile", err)
	}

	applied, err := s.store.mutate(ctx, snap.Principal.ID, func(p Principal) (Principal, error) {
		return p.Merge(upd)
	})
	if err != nil {
		return err
	}
	if !applied {
		s.log.Debug().Str("user_id", snap.Principal.ID).Msg("profile update dropped, session changed")
	}
	return nil
}

// Refresh reloads the principal from the backend. A rejected token ends the
// session it belonged to, unless another session has replaced it meanwhile.
func (s *Service) Refresh(ctx context.Context) (Principal, error) {
	snap := s.store.Snapshot()
	token := s.store.Token()
	if !snap.Authenticated || snap.Principal == nil || token == "" {
		return Principal{}, ErrNotAuthenticated
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	fresh, err := s.gateway.Me(callCtx, token)
	if err != nil {
		err = s.translate("refresh", err)
		if errors.Is(err, ErrInvalidCredentials) {
			// Only the session that presented the rejected token is ended.
			ended, clearErr := s.store.endIf(ctx, snap.Principal.ID, token)
			if clearErr != nil {
				return Principal{}, errors.Join(err, clearErr)
			}
			if ended {
				s.log.Info().Str("user_id", snap.Principal.ID).Msg("session ended, token rejected")
			}
		}
		return Principal{}, err
	}
	if err := fresh.Validate(s.validate); err != nil {
		return Principal{}, fmt.Errorf("%w: server returned an unusable user", ErrUnavailable)
	}

	var out Principal
	applied, err := s.store.mutate(ctx, snap.Principal.ID, func(Principal) (Principal, error) {
		out = fresh
		return fresh, nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !applied {
		return Principal{}, ErrNotAuthenticated
	}
	return out, nil
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("%w: %s failed %q", ErrValidation, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// translate maps gateway and context failures onto the session errors.
func (s *Service) translate(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrDuplicateAccount),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
}
