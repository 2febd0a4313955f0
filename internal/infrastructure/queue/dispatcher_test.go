package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/opway/opway/internal/core/domain"
)

type stubAuditRepo struct {
	mu     sync.Mutex
	events []domain.AuthEvent
	err    error
}

func (r *stubAuditRepo) InsertEvent(_ context.Context, e *domain.AuthEvent) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *stubAuditRepo) snapshot() []domain.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuthEvent(nil), r.events...)
}

func TestDispatcher_PreservesPerAccountOrder(t *testing.T) {
	repo := &stubAuditRepo{}
	d := NewDispatcher(3, repo, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	kinds := []domain.AuthEventKind{domain.EventRegister, domain.EventLogin, domain.EventProfileUpdated, domain.EventLogout}
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		for _, k := range kinds {
			d.Record(domain.AuthEvent{Kind: k, Email: email, At: time.Now()})
		}
	}

	cancel()
	d.Wait()

	events := repo.snapshot()
	if len(events) != 12 {
		t.Fatalf("expected 12 stored events, got %d", len(events))
	}

	perEmail := map[string][]domain.AuthEventKind{}
	for _, e := range events {
		perEmail[e.Email] = append(perEmail[e.Email], e.Kind)
	}
	for email, got := range perEmail {
		if fmt.Sprint(got) != fmt.Sprint(kinds) {
			t.Fatalf("events for %s out of order: %v", email, got)
		}
	}
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(8, &stubAuditRepo{}, zerolog.Nop())
	first := d.shardIndex("ana@x.com")
	for i := 0; i < 10; i++ {
		if d.shardIndex("ana@x.com") != first {
			t.Fatal("shard index must be deterministic")
		}
	}
	if first < 0 || first >= 8 {
		t.Fatalf("shard index out of range: %d", first)
	}
}

func TestDispatcher_InsertFailureDoesNotStopWorker(t *testing.T) {
	repo := &stubAuditRepo{err: errors.New("mongo down")}
	d := NewDispatcher(1, repo, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Record(domain.AuthEvent{Kind: domain.EventLogin, Email: "a@x.com"})
	d.Record(domain.AuthEvent{Kind: domain.EventLogout, Email: "a@x.com"})

	cancel()
	d.Wait()
	if len(repo.snapshot()) != 0 {
		t.Fatal("nothing should be stored when the repository fails")
	}
}
