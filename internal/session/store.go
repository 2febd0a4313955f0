package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/opway/opway/internal/core/domain"
)

const defaultInitTimeout = 2 * time.Second

// State is a point-in-time view of the session.
type State struct {
	Authenticated bool
	Principal     *Principal
	Loading       bool
}

// Role returns the principal's role, or RoleNone when there is no principal.
func (s State) Role() domain.Role {
	if s.Principal == nil {
		return domain.RoleNone
	}
	return s.Principal.Role
}

// Store is the single source of truth for the client session. It starts in
// the loading state until Init has restored (or failed to restore) the
// durable mirror.
//
// Every change goes through the mirror first: a change that cannot be
// persisted is not applied in memory either.
type Store struct {
	mirror      Mirror
	validate    *validator.Validate
	initTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time

	initOnce sync.Once

	mu        sync.Mutex
	state     State
	token     string
	applied   uint64 // changes committed by operations
	nextSubID int
	subs      map[int]chan State
}

// NewStore returns a Store in the loading state. initTimeout bounds the
// mirror read performed by Init.
func NewStore(mirror Mirror, initTimeout time.Duration, log zerolog.Logger) *Store {
	if initTimeout <= 0 {
		initTimeout = defaultInitTimeout
	}
	return &Store{
		mirror:      mirror,
		validate:    validator.New(),
		initTimeout: initTimeout,
		log:         log,
		now:         time.Now,
		state:       State{Loading: true},
		subs:        make(map[int]chan State),
	}
}

// Init restores the session from the mirror. Only the first call has any
// effect. It never fails: an absent, unreadable, malformed or slow record
// leaves the session unauthenticated.
func (s *Store) Init(ctx context.Context) {
	s.initOnce.Do(func() {
		rec, err := s.loadWithTimeout(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()

		switch {
		case s.applied > 0:
			// An operation completed while the mirror was being read; its
			// result is newer than anything on disk.
		case err == nil:
			p := rec.Principal
			s.state = State{Authenticated: true, Principal: &p}
			s.token = rec.Token
			s.log.Debug().Str("user_id", p.ID).Msg("session restored")
		case errors.Is(err, ErrNoRecord):
			s.log.Debug().Msg("no stored session")
		default:
			s.log.Warn().Err(err).Msg("stored session ignored")
		}

		s.state.Loading = false
		s.publishLocked()
	})
}

func (s *Store) loadWithTimeout(ctx context.Context) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.initTimeout)
	defer cancel()

	type result struct {
		rec Record
		err error
	}
	done := make(chan result, 1)
	go func() {
		rec, err := s.mirror.Load(ctx)
		done <- result{rec: rec, err: err}
	}()

	select {
	case <-ctx.Done():
		return Record{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return Record{}, r.err
		}
		if err := r.rec.Validate(s.validate); err != nil {
			return Record{}, err
		}
		return r.rec, nil
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	if st.Principal != nil {
		p := *st.Principal
		st.Principal = &p
	}
	return st
}

// Token returns the bearer token of the current session, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Subscribe returns a channel that receives the state after every change,
// and a function that ends the subscription. A subscriber that falls behind
// only sees the most recent state.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan State, 1)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) publishLocked() {
	st := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

// establish persists and installs an authenticated session.
func (s *Store) establish(ctx context.Context, p Principal, token string) error {
	if err := p.Validate(s.validate); err != nil {
		return fmt.Errorf("%w: server returned an unusable user", ErrUnavailable)
	}
	if token == "" {
		return fmt.Errorf("%w: server returned no token", ErrUnavailable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mirror.Save(ctx, NewRecord(p, token, s.now())); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.state = State{Authenticated: true, Principal: &p}
	s.token = token
	s.applied++
	s.publishLocked()
	return nil
}

// mutate applies fn to the principal current at the time of the call,
// provided it still belongs to userID. It reports whether anything changed.
func (s *Store) mutate(ctx context.Context, userID string, fn func(Principal) (Principal, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Authenticated || s.state.Principal == nil || s.state.Principal.ID != userID {
		return false, nil
	}

	next, err := fn(*s.state.Principal)
	if err != nil {
		return false, err
	}
	if err := s.mirror.Save(ctx, NewRecord(next, s.token, s.now())); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.state.Principal = &next
	s.applied++
	s.publishLocked()
	return true, nil
}

// end drops the session in memory and in the mirror, and returns the token
// it held. Memory is cleared even when the mirror cannot be.
func (s *Store) end(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endLocked(ctx)
}

// endIf ends the session only if it still belongs to userID and token. It
// reports whether the session was ended.
func (s *Store) endIf(ctx context.Context, userID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Authenticated || s.state.Principal == nil ||
		s.state.Principal.ID != userID || s.token != token {
		return false, nil
	}
	_, err := s.endLocked(ctx)
	return true, err
}

func (s *Store) endLocked(ctx context.Context) (string, error) {
	token := s.token
	wasAuthenticated := s.state.Authenticated
	s.state = State{}
	s.token = ""
	s.applied++
	if wasAuthenticated || token != "" {
		s.publishLocked()
	}

	if err := s.mirror.Clear(ctx); err != nil {
		return token, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return token, nil
}
