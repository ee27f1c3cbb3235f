package credentials

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshBuffer is how close to expiry a token may get before the
// selector refreshes it proactively.
const refreshBuffer = 5 * time.Minute

// Store is the connection persistence the selector reads and writes.
// List returns connections for one provider in creation order; Update
// persists a mutated connection, serialized per connection id.
type Store interface {
	List(provider string) []*Connection
	Update(conn *Connection) error
}

// Refresher performs a provider's token refresh. A nil Tokens result
// with nil error means the provider declined the refresh.
type Refresher interface {
	RefreshCredentials(ctx context.Context, conn *Connection) (*Tokens, error)
}

// RefresherFor resolves the refresher for a provider id. Executors
// register themselves under their provider ids.
type RefresherFor func(provider string) Refresher

// Selector picks the best eligible connection for a provider and keeps
// its token fresh.
type Selector struct {
	store     Store
	refresher RefresherFor
	log       *slog.Logger

	group singleflight.Group
	now   func() time.Time
}

// NewSelector returns a selector over the given store.
func NewSelector(store Store, refresher RefresherFor, log *slog.Logger) *Selector {
	return &Selector{
		store:     store,
		refresher: refresher,
		log:       log,
		now:       time.Now,
	}
}

// Pick returns the best eligible connection for the provider, or nil
// when none qualifies. Ordering: globalPriority ascending when set,
// then per-provider priority ascending, then creation order. If the
// winner's token is within the refresh buffer of expiry it is
// refreshed first; refresh failure returns the connection unchanged
// and leaves recovery to the 401/403 retry path.
func (s *Selector) Pick(ctx context.Context, provider, excludeID, model string) *Connection {
	conns := s.store.List(provider)
	now := s.now()

	eligible := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		if c.Eligible(excludeID, now) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		switch {
		case a.GlobalPriority != nil && b.GlobalPriority != nil:
			if *a.GlobalPriority != *b.GlobalPriority {
				return *a.GlobalPriority < *b.GlobalPriority
			}
		case a.GlobalPriority != nil:
			return true
		case b.GlobalPriority != nil:
			return false
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	best := eligible[0]
	if best.NeedsRefresh(now, refreshBuffer) {
		if refreshed := s.Refresh(ctx, best); refreshed != nil {
			return refreshed
		}
	}
	return best
}

// Refresh runs the provider's token refresh for one connection.
// Concurrent refreshes of the same connection collapse into a single
// upstream call; all callers receive its result. Returns nil when the
// refresh failed or no refresher is registered.
func (s *Selector) Refresh(ctx context.Context, conn *Connection) *Connection {
	if s.refresher == nil {
		return nil
	}
	r := s.refresher(conn.Provider)
	if r == nil {
		return nil
	}

	v, err, _ := s.group.Do(conn.ID, func() (interface{}, error) {
		tokens, err := r.RefreshCredentials(ctx, conn)
		if err != nil || tokens == nil {
			return nil, err
		}
		updated := conn.Clone()
		updated.Apply(tokens, s.now())
		if err := s.store.Update(updated); err != nil {
			return nil, err
		}
		return updated, nil
	})
	if err != nil {
		s.log.Warn("credential refresh failed",
			"provider", conn.Provider,
			"connection", conn.ID,
			"error", err)
		return nil
	}
	if v == nil {
		return nil
	}
	s.log.Info("credentials refreshed",
		"provider", conn.Provider,
		"connection", conn.ID)
	return v.(*Connection)
}

// MarkUnavailable puts a connection into cooldown after a failed
// attempt, recording the truncated error, status, and timestamp. The
// consecutive failure count feeds the exponential backoff.
func (s *Selector) MarkUnavailable(conn *Connection, status int, message string, cooldown time.Duration) {
	now := s.now()
	updated := conn.Clone()
	updated.TestStatus = StatusError
	updated.LastError = truncateError(message)
	updated.LastErrorAt = now
	updated.Failures++
	until := now.Add(cooldown)
	// Cooldown only advances while errors persist.
	if until.After(updated.CooldownUntil) {
		updated.CooldownUntil = until
	}
	if err := s.store.Update(updated); err != nil {
		s.log.Error("persist cooldown failed", "connection", conn.ID, "error", err)
		return
	}
	*conn = *updated
	s.log.Warn("connection cooling down",
		"provider", conn.Provider,
		"connection", conn.ID,
		"status", status,
		"cooldown", cooldown)
}

// ClearError resets a connection's error state after a successful call.
func (s *Selector) ClearError(conn *Connection) {
	if conn.TestStatus != StatusError && conn.CooldownUntil.IsZero() && conn.Failures == 0 {
		return
	}
	updated := conn.Clone()
	updated.TestStatus = StatusActive
	updated.LastError = ""
	updated.CooldownUntil = time.Time{}
	updated.Failures = 0
	if err := s.store.Update(updated); err != nil {
		s.log.Error("persist clear-error failed", "connection", conn.ID, "error", err)
		return
	}
	*conn = *updated
}

// truncateError keeps the first 100 characters of an upstream error
// message for the connection record.
func truncateError(message string) string {
	if len(message) > 100 {
		return message[:100]
	}
	return message
}
