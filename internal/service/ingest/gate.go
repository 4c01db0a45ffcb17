package ingest

import (
	"context"
	"sync"
	"time"

	"teammail/internal/identity"
	"teammail/internal/model"
	"teammail/internal/service/dedup"
	"teammail/pkg/metrics"
)

// Outcome of one observation.
type Outcome string

const (
	OutcomeIngested  Outcome = "ingested"  // new record written
	OutcomeDuplicate Outcome = "duplicate" // already known, annotations attached
	OutcomeDebounced Outcome = "debounced" // same still-open email, cached decision
	OutcomeDropped   Outcome = "dropped"   // a resolution is in flight, observation discarded
)

type Decision struct {
	Outcome  Outcome
	Email    *model.Email
	Existing *model.DuplicateCheck
}

type duplicateResolver interface {
	Resolve(ctx context.Context, q dedup.Query) model.DuplicateCheck
}

// Store persists a freshly observed email. The bool reports whether this
// call actually created the record (it loses the race when another tab
// ingested the same email concurrently).
type Store interface {
	SaveNew(ctx context.Context, e *model.Email) (*model.Email, bool, error)
}

type session struct {
	inflight     bool
	lastKey      string
	lastDecision Decision
}

// Gate is the single entry point deciding whether an observed email becomes
// a new record or reuses an existing one. It holds the per-user debounce and
// single-flight state that webmail DOM churn makes necessary: mutation
// observers fire many times per open email, and users switch emails faster
// than a duplicate check round-trips.
type Gate struct {
	mu       sync.Mutex
	sessions map[string]*session

	resolver duplicateResolver
	store    Store
}

func NewGate(resolver duplicateResolver, store Store) *Gate {
	return &Gate{
		sessions: make(map[string]*session),
		resolver: resolver,
		store:    store,
	}
}

// Observe handles one "email detected" event.
//
// At most one resolution is in flight per user; an observation arriving
// while one is pending is dropped, not queued, so rapid email switching
// cannot build an unbounded backlog. Repeated observations of the same
// still-open email return the cached decision without touching the backend.
func (g *Gate) Observe(ctx context.Context, userID, teamID string, email model.ObservedEmail) (Decision, error) {
	key := identity.DebounceKey(email)

	g.mu.Lock()
	s := g.sessions[userID]
	if s == nil {
		s = &session{}
		g.sessions[userID] = s
	}

	if s.inflight {
		g.mu.Unlock()
		metrics.IncrementEmailObserved(string(OutcomeDropped))
		return Decision{Outcome: OutcomeDropped}, nil
	}
	if s.lastKey == key && s.lastKey != "" {
		decision := s.lastDecision
		g.mu.Unlock()
		metrics.IncrementEmailObserved(string(OutcomeDebounced))
		decision.Outcome = OutcomeDebounced
		return decision, nil
	}

	s.inflight = true
	g.mu.Unlock()

	decision, err := g.resolveAndStore(ctx, teamID, userID, email)

	g.mu.Lock()
	s.inflight = false
	if err == nil {
		s.lastKey = key
		s.lastDecision = decision
	}
	g.mu.Unlock()

	if err != nil {
		return Decision{}, err
	}

	metrics.IncrementEmailObserved(string(decision.Outcome))
	return decision, nil
}

func (g *Gate) resolveAndStore(ctx context.Context, teamID, userID string, email model.ObservedEmail) (Decision, error) {
	externalID := identity.ExtractExternalID(email)

	normalized := identity.Normalize(email.Timestamp)
	ts, err := identity.ParseInstant(normalized)
	if err != nil {
		// Normalize only emits parseable instants; guard anyway.
		ts = time.Now().UTC()
	}

	check := g.resolver.Resolve(ctx, dedup.Query{
		TeamID:      teamID,
		ExternalID:  externalID,
		SenderEmail: email.SenderEmail,
		Timestamp:   ts,
	})

	if check.Exists {
		return Decision{Outcome: OutcomeDuplicate, Email: check.Email, Existing: &check}, nil
	}

	record := &model.Email{
		TeamID:      teamID,
		SenderEmail: email.SenderEmail,
		SenderName:  email.SenderName,
		Subject:     email.Subject,
		Body:        email.Body,
		Timestamp:   ts,
		SavedBy:     userID,
	}
	if externalID != "" {
		record.ExternalID = &externalID
	}

	saved, created, err := g.store.SaveNew(ctx, record)
	if err != nil {
		return Decision{}, err
	}
	if !created {
		// Lost the insert race: another session ingested this email between
		// our check and our insert. Treat it as a duplicate.
		existing := model.DuplicateCheck{
			Exists:    true,
			MatchedBy: model.MatchExternalID,
			Email:     saved,
		}
		return Decision{Outcome: OutcomeDuplicate, Email: saved, Existing: &existing}, nil
	}

	return Decision{Outcome: OutcomeIngested, Email: saved}, nil
}
