package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"teammail/internal/model"
	"teammail/internal/service/dedup"
)

type blockingResolver struct {
	calls   atomic.Int64
	release chan struct{}
	result  model.DuplicateCheck
}

func (r *blockingResolver) Resolve(ctx context.Context, q dedup.Query) model.DuplicateCheck {
	r.calls.Add(1)
	if r.release != nil {
		<-r.release
	}
	return r.result
}

type memStore struct {
	mu    sync.Mutex
	saved []*model.Email
}

func (s *memStore) SaveNew(ctx context.Context, e *model.Email) (*model.Email, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = "mem-1"
	e.CreatedAt = time.Now()
	s.saved = append(s.saved, e)
	return e, true, nil
}

func observed() model.ObservedEmail {
	return model.ObservedEmail{
		MessageID:   "FMfcgzQbdrTrrf",
		SenderEmail: "ana@example.com",
		SenderName:  "Ana",
		Subject:     "Q3 numbers",
		Body:        "see attached",
		Timestamp:   "2025-04-24T10:00:00.000Z",
	}
}

func TestObserveIngestsNewEmail(t *testing.T) {
	resolver := &blockingResolver{}
	store := &memStore{}
	gate := NewGate(resolver, store)

	decision, err := gate.Observe(context.Background(), "u1", "T", observed())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if decision.Outcome != OutcomeIngested {
		t.Fatalf("expected ingested, got %q", decision.Outcome)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one stored record, got %d", len(store.saved))
	}
	rec := store.saved[0]
	if rec.ExternalID == nil || *rec.ExternalID != "FMfcgzQbdrTrrf" {
		t.Fatalf("external id not attached: %+v", rec.ExternalID)
	}
	if !rec.Timestamp.Equal(time.Date(2025, time.April, 24, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp not normalized: %v", rec.Timestamp)
	}
}

func TestObserveReturnsExistingAnnotations(t *testing.T) {
	stored := &model.Email{ID: "e1", TeamID: "T"}
	resolver := &blockingResolver{result: model.DuplicateCheck{
		Exists:    true,
		MatchedBy: model.MatchExternalID,
		Email:     stored,
	}}
	gate := NewGate(resolver, &memStore{})

	decision, err := gate.Observe(context.Background(), "u1", "T", observed())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if decision.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %q", decision.Outcome)
	}
	if decision.Existing == nil || decision.Existing.Email.ID != "e1" {
		t.Fatal("existing record not attached to decision")
	}
}

func TestObserveSingleFlightDropsConcurrentObservation(t *testing.T) {
	resolver := &blockingResolver{release: make(chan struct{})}
	gate := NewGate(resolver, &memStore{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gate.Observe(context.Background(), "u1", "T", observed())
	}()

	// Wait for the first observation to enter the resolver.
	for resolver.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	decision, err := gate.Observe(context.Background(), "u1", "T", observed())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if decision.Outcome != OutcomeDropped {
		t.Fatalf("expected dropped, got %q", decision.Outcome)
	}

	close(resolver.release)
	wg.Wait()

	if got := resolver.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one resolve call, got %d", got)
	}
}

func TestObserveDebouncesRepeatedView(t *testing.T) {
	resolver := &blockingResolver{}
	gate := NewGate(resolver, &memStore{})

	first, err := gate.Observe(context.Background(), "u1", "T", observed())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if first.Outcome != OutcomeIngested {
		t.Fatalf("expected ingested, got %q", first.Outcome)
	}

	// Mutation observer fires again for the same open email.
	second, err := gate.Observe(context.Background(), "u1", "T", observed())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if second.Outcome != OutcomeDebounced {
		t.Fatalf("expected debounced, got %q", second.Outcome)
	}
	if got := resolver.calls.Load(); got != 1 {
		t.Fatalf("debounced observation must not resolve again, got %d calls", got)
	}
}

func TestObserveSessionsAreIndependent(t *testing.T) {
	resolver := &blockingResolver{}
	gate := NewGate(resolver, &memStore{})

	if _, err := gate.Observe(context.Background(), "u1", "T", observed()); err != nil {
		t.Fatalf("Observe u1: %v", err)
	}
	decision, err := gate.Observe(context.Background(), "u2", "T", observed())
	if err != nil {
		t.Fatalf("Observe u2: %v", err)
	}
	if decision.Outcome == OutcomeDebounced || decision.Outcome == OutcomeDropped {
		t.Fatalf("second user's observation must not share gate state, got %q", decision.Outcome)
	}
	if got := resolver.calls.Load(); got != 2 {
		t.Fatalf("expected two resolve calls, got %d", got)
	}
}
