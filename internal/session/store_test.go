package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opway/opway/internal/core/domain"
)

func samplePrincipal() Principal {
	return Principal{
		ID:    "u42",
		Name:  "Bob",
		Email: "bob@x.com",
		Role:  domain.RoleCustomer,
		Profile: domain.Profile{
			Phone: "+212600000000",
			City:  "Rabat",
		},
	}
}

func TestStore_StartsLoading(t *testing.T) {
	store := NewStore(NewMemoryMirror(), time.Second, zerolog.Nop())

	st := store.Snapshot()
	assert.True(t, st.Loading)
	assert.False(t, st.Authenticated)
	assert.Nil(t, st.Principal)
}

func TestStore_Init_NoRecord(t *testing.T) {
	store := NewStore(NewMemoryMirror(), time.Second, zerolog.Nop())
	store.Init(context.Background())

	st := store.Snapshot()
	assert.False(t, st.Loading)
	assert.False(t, st.Authenticated)
	assert.Nil(t, st.Principal)
	assert.Empty(t, store.Token())
}

func TestStore_Init_RestoresRecord(t *testing.T) {
	mirror := NewMemoryMirror()
	p := samplePrincipal()
	require.NoError(t, mirror.Save(context.Background(), NewRecord(p, "tok-1", time.Now())))

	store := NewStore(mirror, time.Second, zerolog.Nop())
	store.Init(context.Background())

	st := store.Snapshot()
	require.True(t, st.Authenticated)
	require.NotNil(t, st.Principal)
	assert.Equal(t, p, *st.Principal)
	assert.Equal(t, "tok-1", store.Token())
	assert.False(t, st.Loading)
}

func TestStore_Init_MalformedRecords(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"schema_version":`,
		"wrong type":      `[]`,
		"future version":  `{"schema_version":2,"principal":{"id":"u1","email":"a@x.com","role":"customer"}}`,
		"missing version": `{"principal":{"id":"u1","email":"a@x.com","role":"customer"}}`,
		"missing id":      `{"schema_version":1,"principal":{"email":"a@x.com","role":"customer"}}`,
		"missing email":   `{"schema_version":1,"principal":{"id":"u1","role":"customer"}}`,
		"unknown role":    `{"schema_version":1,"principal":{"id":"u1","email":"a@x.com","role":"root"}}`,
		"missing token":   `{"schema_version":1,"principal":{"id":"u1","email":"a@x.com","role":"customer"},"token":""}`,
		"empty":           ``,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			mirror := NewMemoryMirror()
			mirror.SetRaw([]byte(raw))

			store := NewStore(mirror, time.Second, zerolog.Nop())
			require.NotPanics(t, func() { store.Init(context.Background()) })

			st := store.Snapshot()
			assert.False(t, st.Loading)
			assert.False(t, st.Authenticated)
			assert.Nil(t, st.Principal)
		})
	}
}

func TestStore_Init_IgnoresUnknownFields(t *testing.T) {
	mirror := NewMemoryMirror()
	mirror.SetRaw([]byte(`{"schema_version":1,"theme":"dark",
		"principal":{"id":"u1","email":"a@x.com","role":"admin","nickname":"al"},"token":"t"}`))

	store := NewStore(mirror, time.Second, zerolog.Nop())
	store.Init(context.Background())

	st := store.Snapshot()
	require.True(t, st.Authenticated)
	assert.Equal(t, domain.RoleAdmin, st.Role())
}

func TestStore_Init_TimeoutFailsSafe(t *testing.T) {
	mirror := newFlakyMirror()
	require.NoError(t, mirror.Save(context.Background(), NewRecord(samplePrincipal(), "t", time.Now())))
	mirror.loadGate = make(chan struct{})
	t.Cleanup(func() { close(mirror.loadGate) })

	store := NewStore(mirror, 20*time.Millisecond, zerolog.Nop())

	start := time.Now()
	store.Init(context.Background())
	assert.Less(t, time.Since(start), time.Second)

	st := store.Snapshot()
	assert.False(t, st.Loading)
	assert.False(t, st.Authenticated)
}

func TestStore_Init_RunsOnce(t *testing.T) {
	mirror := NewMemoryMirror()
	store := NewStore(mirror, time.Second, zerolog.Nop())
	store.Init(context.Background())

	require.NoError(t, mirror.Save(context.Background(), NewRecord(samplePrincipal(), "t", time.Now())))
	store.Init(context.Background())

	assert.False(t, store.Snapshot().Authenticated)
}

func TestStore_RoundTripThroughFileMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	gw := newFakeGateway()

	svc, _ := newTestService(t, NewFileMirror(path), gw)
	_, err := svc.Login(context.Background(), "bob@x.com", "pw")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateProfile(context.Background(), domain.ProfileUpdate{
		Name:    "Bob",
		Profile: domain.Profile{City: "Fez", Bio: "traveller"},
	}))
	before := svc.Store().Snapshot()

	// A new process reading the same file sees the same principal.
	reloaded := NewStore(NewFileMirror(path), time.Second, zerolog.Nop())
	reloaded.Init(context.Background())
	after := reloaded.Snapshot()

	require.True(t, after.Authenticated)
	assert.Equal(t, *before.Principal, *after.Principal)
	assert.Equal(t, svc.Store().Token(), reloaded.Token())
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	mirror := NewMemoryMirror()
	require.NoError(t, mirror.Save(context.Background(), NewRecord(samplePrincipal(), "t", time.Now())))
	store := NewStore(mirror, time.Second, zerolog.Nop())
	store.Init(context.Background())

	st := store.Snapshot()
	st.Principal.City = "Tangier"

	assert.Equal(t, "Rabat", store.Snapshot().Principal.City)
}

func TestStore_Subscribe(t *testing.T) {
	store := NewStore(NewMemoryMirror(), time.Second, zerolog.Nop())
	updates, cancel := store.Subscribe()
	defer cancel()

	store.Init(context.Background())
	select {
	case st := <-updates:
		assert.False(t, st.Loading)
	case <-time.After(time.Second):
		t.Fatal("no update after Init")
	}

	svc := NewService(store, newFakeGateway(), time.Second, zerolog.Nop())
	_, err := svc.Login(context.Background(), "ana@x.com", "pw123")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background()))

	// The subscriber did not drain in between, so it holds only the latest state.
	select {
	case st := <-updates:
		assert.False(t, st.Authenticated)
	case <-time.After(time.Second):
		t.Fatal("no update after logout")
	}
}

func TestStore_SubscribeCancelClosesChannel(t *testing.T) {
	store := NewStore(NewMemoryMirror(), time.Second, zerolog.Nop())
	updates, cancel := store.Subscribe()
	cancel()
	cancel()

	_, open := <-updates
	assert.False(t, open)

	// Publishing after cancel must not panic on the closed channel.
	store.Init(context.Background())
}
