package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/opway/opway/internal/core/domain"
)

// fakeGateway is an in-memory backend. Behaviour can be overridden per call.
type fakeGateway struct {
	mu       sync.Mutex
	users    map[string]Principal // by email
	password map[string]string
	tokens   map[string]string // token -> email
	revoked  []string
	seq      int

	loginErr  error
	updateErr error
	logoutErr error
	meErr     error
	// updateGate, when set, is waited on before an update completes.
	updateGate func(domain.ProfileUpdate) <-chan struct{}
	started    chan domain.ProfileUpdate
	block      bool // block every call until the context ends
	// onMe and onLogout run inside the call, before it answers.
	onMe     func()
	onLogout func()
	calls      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		users:    make(map[string]Principal),
		password: make(map[string]string),
		tokens:   make(map[string]string),
	}
}

func (g *fakeGateway) wait(ctx context.Context) error {
	if !g.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (g *fakeGateway) issue(email string) string {
	g.seq++
	tok := fmt.Sprintf("tok-%d", g.seq)
	g.tokens[tok] = email
	return tok
}

func (g *fakeGateway) Login(ctx context.Context, email, password string) (Grant, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if err := g.wait(ctx); err != nil {
		return Grant{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loginErr != nil {
		return Grant{}, g.loginErr
	}
	p, ok := g.users[email]
	if !ok {
		// Any credentials work for unknown users, like a seeded test backend.
		g.seq++
		p = Principal{ID: fmt.Sprintf("u%d", g.seq), Email: email, Role: domain.RoleCustomer}
		g.users[email] = p
		g.password[email] = password
	}
	if g.password[email] != password {
		return Grant{}, fmt.Errorf("%w: rejected", ErrInvalidCredentials)
	}
	return Grant{Token: g.issue(email), Principal: p}, nil
}

func (g *fakeGateway) Register(ctx context.Context, name, email, password string) (Grant, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if err := g.wait(ctx); err != nil {
		return Grant{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[email]; ok {
		return Grant{}, fmt.Errorf("%w: %s", ErrDuplicateAccount, email)
	}
	g.seq++
	p := Principal{ID: fmt.Sprintf("u%d", g.seq), Name: name, Email: email, Role: domain.RoleCustomer}
	g.users[email] = p
	g.password[email] = password
	return Grant{Token: g.issue(email), Principal: p}, nil
}

func (g *fakeGateway) Me(ctx context.Context, token string) (Principal, error) {
	if err := g.wait(ctx); err != nil {
		return Principal{}, err
	}
	g.mu.Lock()
	hook := g.onMe
	g.mu.Unlock()
	if hook != nil {
		hook()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.meErr != nil {
		return Principal{}, g.meErr
	}
	email, ok := g.tokens[token]
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}
	return g.users[email], nil
}

func (g *fakeGateway) UpdateProfile(ctx context.Context, token string, upd domain.ProfileUpdate) (Principal, error) {
	g.mu.Lock()
	g.calls++
	gate := g.updateGate
	started := g.started
	g.mu.Unlock()

	if started != nil {
		started <- upd
	}
	if gate != nil {
		select {
		case <-gate(upd):
		case <-ctx.Done():
			return Principal{}, ctx.Err()
		}
	}
	if err := g.wait(ctx); err != nil {
		return Principal{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return Principal{}, g.updateErr
	}
	email, ok := g.tokens[token]
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}
	p, err := g.users[email].Merge(upd)
	if err != nil {
		return Principal{}, err
	}
	g.users[email] = p
	return p, nil
}

func (g *fakeGateway) Logout(_ context.Context, token string) error {
	g.mu.Lock()
	g.revoked = append(g.revoked, token)
	delete(g.tokens, token)
	err := g.logoutErr
	hook := g.onLogout
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// flakyMirror wraps a MemoryMirror with injectable failures.
type flakyMirror struct {
	*MemoryMirror
	mu       sync.Mutex
	saveErr  error
	clearErr error
	loadGate chan struct{} // Load blocks until closed
}

func newFlakyMirror() *flakyMirror {
	return &flakyMirror{MemoryMirror: NewMemoryMirror()}
}

func (m *flakyMirror) Load(ctx context.Context) (Record, error) {
	if m.loadGate != nil {
		select {
		case <-m.loadGate:
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
	return m.MemoryMirror.Load(ctx)
}

func (m *flakyMirror) Save(ctx context.Context, r Record) error {
	m.mu.Lock()
	err := m.saveErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.MemoryMirror.Save(ctx, r)
}

func (m *flakyMirror) Clear(ctx context.Context) error {
	m.mu.Lock()
	err := m.clearErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.MemoryMirror.Clear(ctx)
}

func (m *flakyMirror) failSaves(err error) {
	m.mu.Lock()
	m.saveErr = err
	m.mu.Unlock()
}

var errDiskFull = errors.New("disk full")

// newTestService returns an initialised store and service over mirror.
func newTestService(t *testing.T, mirror Mirror, gw Gateway) (*Service, *Store) {
	t.Helper()
	store := NewStore(mirror, 200*time.Millisecond, zerolog.Nop())
	store.Init(context.Background())
	require.False(t, store.Snapshot().Loading)
	return NewService(store, gw, time.Second, zerolog.Nop()), store
}
