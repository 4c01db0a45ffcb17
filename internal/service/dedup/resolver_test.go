package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"teammail/internal/model"
)

type stubFinder struct {
	byExternalID map[string]*model.Email // keyed teamID+"/"+externalID
	byWindow     []model.Email
	err          error
}

func (s *stubFinder) FindByExternalID(ctx context.Context, teamID, externalID string) (*model.Email, error) {
	if s.err != nil {
		return nil, s.err
	}
	if e, ok := s.byExternalID[teamID+"/"+externalID]; ok {
		return e, nil
	}
	return nil, nil
}

func (s *stubFinder) FindBySenderWindow(ctx context.Context, teamID, senderEmail string, from, to time.Time) ([]model.Email, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []model.Email
	for _, e := range s.byWindow {
		if e.TeamID == teamID && e.SenderEmail == senderEmail && !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubNamer struct {
	names map[string]string
	err   error
}

func (s *stubNamer) FindDisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.names, nil
}

func newTestResolver(finder EmailFinder, namer NameResolver) *Resolver {
	return NewResolver(finder, namer, 2*time.Minute, 5*time.Second, zap.NewNop())
}

func strptr(s string) *string { return &s }

func TestResolveMatchesByExternalID(t *testing.T) {
	ts := time.Date(2025, time.April, 24, 10, 0, 0, 0, time.UTC)
	stored := &model.Email{
		ID:          "e1",
		TeamID:      "T",
		ExternalID:  strptr("X"),
		SenderEmail: "bo@example.com",
		Timestamp:   ts,
		SavedBy:     "u1",
	}
	finder := &stubFinder{
		byExternalID: map[string]*model.Email{"T/X": stored},
		byWindow:     []model.Email{*stored},
	}
	namer := &stubNamer{names: map[string]string{"u1": "Bo Chen"}}
	r := newTestResolver(finder, namer)

	check := r.Resolve(context.Background(), Query{TeamID: "T", ExternalID: "X"})
	if !check.Exists {
		t.Fatal("expected a match")
	}
	if check.MatchedBy != model.MatchExternalID {
		t.Fatalf("expected external_id match, got %q", check.MatchedBy)
	}
	if check.SavedByName != "Bo Chen" {
		t.Fatalf("expected attribution name, got %q", check.SavedByName)
	}
}

func TestResolveFallsBackToSenderWindow(t *testing.T) {
	ts := time.Date(2025, time.April, 24, 10, 0, 0, 0, time.UTC)
	stored := model.Email{
		ID:          "e1",
		TeamID:      "T",
		SenderEmail: "bo@example.com",
		Timestamp:   ts,
		SavedBy:     "u1",
	}
	finder := &stubFinder{byWindow: []model.Email{stored}}
	r := newTestResolver(finder, &stubNamer{})

	// Same sender, 90 seconds off: inside the 2 minute window.
	check := r.Resolve(context.Background(), Query{
		TeamID:      "T",
		SenderEmail: "bo@example.com",
		Timestamp:   ts.Add(90 * time.Second),
	})
	if !check.Exists {
		t.Fatal("expected a window match")
	}
	if check.MatchedBy != model.MatchSenderWindow {
		t.Fatalf("expected sender_timestamp_window match, got %q", check.MatchedBy)
	}
}

func TestResolveWindowExcludesOutOfRange(t *testing.T) {
	ts := time.Date(2025, time.April, 24, 10, 0, 0, 0, time.UTC)
	finder := &stubFinder{byWindow: []model.Email{{
		ID: "e1", TeamID: "T", SenderEmail: "bo@example.com", Timestamp: ts, SavedBy: "u1",
	}}}
	r := newTestResolver(finder, &stubNamer{})

	check := r.Resolve(context.Background(), Query{
		TeamID:      "T",
		SenderEmail: "bo@example.com",
		Timestamp:   ts.Add(3 * time.Minute),
	})
	if check.Exists {
		t.Fatal("match outside the window should not count")
	}
}

func TestResolveNearestTimestampWins(t *testing.T) {
	ts := time.Date(2025, time.April, 24, 10, 0, 0, 0, time.UTC)
	finder := &stubFinder{byWindow: []model.Email{
		{ID: "far", TeamID: "T", SenderEmail: "bo@example.com", Timestamp: ts.Add(-100 * time.Second), SavedBy: "u1"},
		{ID: "near", TeamID: "T", SenderEmail: "bo@example.com", Timestamp: ts.Add(20 * time.Second), SavedBy: "u1"},
		{ID: "mid", TeamID: "T", SenderEmail: "bo@example.com", Timestamp: ts.Add(-60 * time.Second), SavedBy: "u1"},
	}}
	r := newTestResolver(finder, &stubNamer{})

	check := r.Resolve(context.Background(), Query{
		TeamID:      "T",
		SenderEmail: "bo@example.com",
		Timestamp:   ts,
	})
	if !check.Exists {
		t.Fatal("expected a match")
	}
	if check.Email.ID != "near" {
		t.Fatalf("expected nearest candidate, got %q", check.Email.ID)
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := newTestResolver(&stubFinder{}, &stubNamer{})

	check := r.Resolve(context.Background(), Query{
		TeamID:      "empty-team",
		ExternalID:  "X",
		SenderEmail: "bo@example.com",
		Timestamp:   time.Now(),
	})
	if check.Exists {
		t.Fatal("expected no match")
	}
}

func TestResolveFailsOpenOnFinderError(t *testing.T) {
	finder := &stubFinder{err: errors.New("connection refused")}
	r := newTestResolver(finder, &stubNamer{})

	check := r.Resolve(context.Background(), Query{
		TeamID:      "T",
		ExternalID:  "X",
		SenderEmail: "bo@example.com",
		Timestamp:   time.Now(),
	})
	if check.Exists {
		t.Fatal("failing collaborator must resolve as not found")
	}
}

type slowPrimaryFinder struct {
	stubFinder
}

// FindByExternalID hangs until the per-check deadline fires.
func (s *slowPrimaryFinder) FindByExternalID(ctx context.Context, teamID, externalID string) (*model.Email, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveSlowStrategyDoesNotStarveFallback(t *testing.T) {
	ts := time.Date(2025, time.April, 24, 10, 0, 0, 0, time.UTC)
	finder := &slowPrimaryFinder{stubFinder{byWindow: []model.Email{{
		ID: "e1", TeamID: "T", SenderEmail: "bo@example.com", Timestamp: ts, SavedBy: "u1",
	}}}}
	r := NewResolver(finder, &stubNamer{}, 2*time.Minute, 20*time.Millisecond, zap.NewNop())

	check := r.Resolve(context.Background(), Query{
		TeamID:      "T",
		ExternalID:  "X",
		SenderEmail: "bo@example.com",
		Timestamp:   ts,
	})
	if !check.Exists {
		t.Fatal("fallback window check should still run after the slow check times out")
	}
	if check.MatchedBy != model.MatchSenderWindow {
		t.Fatalf("expected sender_timestamp_window match, got %q", check.MatchedBy)
	}
}

func TestResolveUnknownUserPlaceholder(t *testing.T) {
	stored := &model.Email{
		ID:         "e1",
		TeamID:     "T",
		ExternalID: strptr("X"),
		SavedBy:    "ghost",
		HandledBy:  strptr("also-ghost"),
	}
	finder := &stubFinder{byExternalID: map[string]*model.Email{"T/X": stored}}
	namer := &stubNamer{err: errors.New("lookup down")}
	r := newTestResolver(finder, namer)

	check := r.Resolve(context.Background(), Query{TeamID: "T", ExternalID: "X"})
	if !check.Exists {
		t.Fatal("expected a match")
	}
	if check.SavedByName != UnknownUser || check.HandledByName != UnknownUser {
		t.Fatalf("expected placeholder attribution, got %q / %q", check.SavedByName, check.HandledByName)
	}
}
