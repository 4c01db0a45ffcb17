package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"teammail/internal/model"
	"teammail/pkg/metrics"
)

// UnknownUser is the attribution placeholder when a user ID cannot be
// resolved to a display name.
const UnknownUser = "Unknown user"

// EmailFinder is the persistence collaborator the resolver queries.
type EmailFinder interface {
	FindByExternalID(ctx context.Context, teamID, externalID string) (*model.Email, error)
	FindBySenderWindow(ctx context.Context, teamID, senderEmail string, from, to time.Time) ([]model.Email, error)
}

// NameResolver looks up display names for attribution.
type NameResolver interface {
	FindDisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

// Query describes one duplicate lookup. ExternalID may be empty, in which
// case only the sender+timestamp fallback applies.
type Query struct {
	TeamID      string
	ExternalID  string
	SenderEmail string
	Timestamp   time.Time
}

// Resolver decides whether an observed email was already ingested for a
// team. Every check fails open: an error from the persistence collaborator
// is treated as "not found" so deduplication being down never blocks
// ingestion.
type Resolver struct {
	finder  EmailFinder
	namer   NameResolver
	window  time.Duration
	timeout time.Duration
	logger  *zap.Logger

	strategies []strategy
}

type strategy struct {
	kind  model.MatchKind
	match func(ctx context.Context, q Query) (*model.Email, error)
}

func NewResolver(finder EmailFinder, namer NameResolver, window, timeout time.Duration, logger *zap.Logger) *Resolver {
	r := &Resolver{
		finder:  finder,
		namer:   namer,
		window:  window,
		timeout: timeout,
		logger:  logger,
	}

	// Ordered, first match wins. Precedence is part of the contract:
	// the platform ID is trusted before the heuristic window.
	r.strategies = []strategy{
		{kind: model.MatchExternalID, match: r.matchExternalID},
		{kind: model.MatchSenderWindow, match: r.matchSenderWindow},
	}

	return r
}

// Resolve runs the strategy ladder and returns the first match, enriched
// with attribution names. Never returns an error.
func (r *Resolver) Resolve(ctx context.Context, q Query) model.DuplicateCheck {
	start := time.Now()

	for _, s := range r.strategies {
		email, err := r.runStrategy(ctx, s, q)
		if err != nil {
			// Fail open: a broken check is a missed dedup, not an outage.
			r.logger.Warn("Duplicate check failed, treating as not found",
				zap.String("strategy", string(s.kind)),
				zap.String("team_id", q.TeamID),
				zap.Error(err),
			)
			continue
		}
		if email == nil {
			continue
		}

		metrics.RecordDuplicateCheck(string(s.kind), time.Since(start))

		check := model.DuplicateCheck{
			Exists:    true,
			MatchedBy: s.kind,
			Email:     email,
		}
		r.attachNames(ctx, &check)
		return check
	}

	metrics.RecordDuplicateCheck("none", time.Since(start))
	return model.DuplicateCheck{Exists: false}
}

// runStrategy gives every check its own timeout budget, so one slow lookup
// cannot starve the strategies behind it in the ladder.
func (r *Resolver) runStrategy(ctx context.Context, s strategy, q Query) (*model.Email, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return s.match(ctx, q)
}

func (r *Resolver) matchExternalID(ctx context.Context, q Query) (*model.Email, error) {
	if q.ExternalID == "" {
		return nil, nil
	}

	email, err := r.finder.FindByExternalID(ctx, q.TeamID, q.ExternalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return email, nil
}

func (r *Resolver) matchSenderWindow(ctx context.Context, q Query) (*model.Email, error) {
	if q.SenderEmail == "" || q.Timestamp.IsZero() {
		return nil, nil
	}

	from := q.Timestamp.Add(-r.window)
	to := q.Timestamp.Add(r.window)

	candidates, err := r.finder.FindBySenderWindow(ctx, q.TeamID, q.SenderEmail, from, to)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Multiple candidates: the one closest to the target timestamp wins.
	best := &candidates[0]
	bestDelta := absDuration(best.Timestamp.Sub(q.Timestamp))
	for i := 1; i < len(candidates); i++ {
		delta := absDuration(candidates[i].Timestamp.Sub(q.Timestamp))
		if delta < bestDelta {
			best = &candidates[i]
			bestDelta = delta
		}
	}

	return best, nil
}

// attachNames resolves "saved by" / "handled by" attribution. Lookup
// failures and unknown IDs degrade to a placeholder, never an error.
func (r *Resolver) attachNames(ctx context.Context, check *model.DuplicateCheck) {
	ids := []string{check.Email.SavedBy}
	if check.Email.HandledBy != nil {
		ids = append(ids, *check.Email.HandledBy)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	names, err := r.namer.FindDisplayNames(ctx, ids)
	if err != nil {
		r.logger.Warn("Display name lookup failed",
			zap.String("email_id", check.Email.ID),
			zap.Error(err),
		)
		names = nil
	}

	check.SavedByName = nameOrUnknown(names, check.Email.SavedBy)
	if check.Email.HandledBy != nil {
		check.HandledByName = nameOrUnknown(names, *check.Email.HandledBy)
	}
}

func nameOrUnknown(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return UnknownUser
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
