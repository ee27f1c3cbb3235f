package credentials

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type memStore struct {
	mu    sync.Mutex
	conns []*Connection
}

func (m *memStore) List(provider string) []*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Connection
	for _, c := range m.conns {
		if c.Provider == provider {
			out = append(out, c.Clone())
		}
	}
	return out
}

func (m *memStore) Update(conn *Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.conns {
		if c.ID == conn.ID {
			m.conns[i] = conn.Clone()
			return nil
		}
	}
	m.conns = append(m.conns, conn.Clone())
	return nil
}

func (m *memStore) get(id string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conns {
		if c.ID == id {
			return c.Clone()
		}
	}
	return nil
}

type stubRefresher struct {
	calls  int64
	tokens *Tokens
	err    error
	delay  time.Duration
}

func (r *stubRefresher) RefreshCredentials(ctx context.Context, conn *Connection) (*Tokens, error) {
	atomic.AddInt64(&r.calls, 1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.tokens, r.err
}

func testSelector(store Store, r Refresher) *Selector {
	return NewSelector(store, func(string) Refresher { return r }, slog.Default())
}

func intp(v int) *int { return &v }

func TestPickOrdering(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &memStore{conns: []*Connection{
		{ID: "c", Provider: "openai", Priority: 2, IsActive: true, CreatedAt: base},
		{ID: "a", Provider: "openai", Priority: 1, IsActive: true, CreatedAt: base.Add(time.Hour)},
		{ID: "global", Provider: "openai", Priority: 9, GlobalPriority: intp(0), IsActive: true, CreatedAt: base.Add(2 * time.Hour)},
	}}
	s := testSelector(store, nil)

	got := s.Pick(context.Background(), "openai", "", "gpt-4o")
	if got == nil || got.ID != "global" {
		t.Fatalf("Pick = %+v, want global (globalPriority wins)", got)
	}

	got = s.Pick(context.Background(), "openai", "global", "gpt-4o")
	if got == nil || got.ID != "a" {
		t.Fatalf("Pick = %+v, want a (lowest priority)", got)
	}
}

func TestPickSkipsIneligible(t *testing.T) {
	now := time.Now()
	store := &memStore{conns: []*Connection{
		{ID: "inactive", Provider: "openai", IsActive: false},
		{ID: "cooling", Provider: "openai", IsActive: true, CooldownUntil: now.Add(time.Hour)},
		{ID: "ok", Provider: "openai", Priority: 5, IsActive: true},
	}}
	s := testSelector(store, nil)

	got := s.Pick(context.Background(), "openai", "", "")
	if got == nil || got.ID != "ok" {
		t.Fatalf("Pick = %+v, want ok", got)
	}

	if got := s.Pick(context.Background(), "openai", "ok", ""); got != nil {
		t.Errorf("Pick with ok excluded = %+v, want nil", got)
	}
}

func TestPickProactiveRefresh(t *testing.T) {
	store := &memStore{conns: []*Connection{{
		ID:           "c1",
		Provider:     "gemini-cli",
		AuthType:     AuthOAuth,
		IsActive:     true,
		AccessToken:  "old",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(time.Minute),
	}}}
	r := &stubRefresher{tokens: &Tokens{AccessToken: "new", ExpiresIn: time.Hour}}
	s := testSelector(store, r)

	got := s.Pick(context.Background(), "gemini-cli", "", "")
	if got == nil || got.AccessToken != "new" {
		t.Fatalf("Pick = %+v, want refreshed token", got)
	}
	if persisted := store.get("c1"); persisted.AccessToken != "new" {
		t.Errorf("refreshed token not persisted: %+v", persisted)
	}
	if persisted := store.get("c1"); persisted.RefreshToken != "r1" {
		t.Errorf("refresh token should be reused when omitted: %+v", persisted)
	}
}

func TestPickRefreshFailureReturnsUnchanged(t *testing.T) {
	store := &memStore{conns: []*Connection{{
		ID:          "c1",
		Provider:    "qwen",
		IsActive:    true,
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(time.Minute),
	}}}
	r := &stubRefresher{err: context.DeadlineExceeded}
	s := testSelector(store, r)

	got := s.Pick(context.Background(), "qwen", "", "")
	if got == nil || got.AccessToken != "stale" {
		t.Fatalf("Pick = %+v, want the stale connection", got)
	}
}

func TestRefreshCoalesced(t *testing.T) {
	store := &memStore{conns: []*Connection{{
		ID: "c1", Provider: "codex", IsActive: true,
		AccessToken: "old", ExpiresAt: time.Now().Add(time.Minute),
	}}}
	r := &stubRefresher{tokens: &Tokens{AccessToken: "new", ExpiresIn: time.Hour}, delay: 20 * time.Millisecond}
	s := testSelector(store, r)
	conn := store.get("c1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Refresh(context.Background(), conn)
		}()
	}
	wg.Wait()

	if calls := atomic.LoadInt64(&r.calls); calls != 1 {
		t.Errorf("refresh calls = %d, want 1 (coalesced)", calls)
	}
}

func TestMarkUnavailableAndClear(t *testing.T) {
	store := &memStore{conns: []*Connection{{ID: "c1", Provider: "openai", IsActive: true}}}
	s := testSelector(store, nil)
	conn := store.get("c1")

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	s.MarkUnavailable(conn, 500, string(long), time.Minute)

	persisted := store.get("c1")
	if persisted.TestStatus != StatusError {
		t.Errorf("testStatus = %q, want error", persisted.TestStatus)
	}
	if len(persisted.LastError) != 100 {
		t.Errorf("lastError length = %d, want 100", len(persisted.LastError))
	}
	if persisted.Failures != 1 {
		t.Errorf("failures = %d, want 1", persisted.Failures)
	}
	if !persisted.CooldownUntil.After(time.Now()) {
		t.Error("cooldownUntil not in the future")
	}
	if s.Pick(context.Background(), "openai", "", "") != nil {
		t.Error("cooling connection must not be picked")
	}

	// A shorter later cooldown must not rewind the deadline.
	first := persisted.CooldownUntil
	s.MarkUnavailable(persisted, 429, "slow down", -time.Minute)
	if store.get("c1").CooldownUntil.Before(first) {
		t.Error("cooldownUntil rewound")
	}

	s.ClearError(store.get("c1"))
	cleared := store.get("c1")
	if cleared.TestStatus != StatusActive || !cleared.CooldownUntil.IsZero() || cleared.Failures != 0 {
		t.Errorf("after clear: %+v", cleared)
	}
	if got := s.Pick(context.Background(), "openai", "", ""); got == nil {
		t.Error("cleared connection must be selectable again")
	}
}

func TestConnectionRedacted(t *testing.T) {
	c := &Connection{
		ID: "c1", APIKey: "sk-secret", AccessToken: "at", RefreshToken: "rt", IDToken: "id",
		Name: "work",
	}
	r := c.Redacted()
	if r.APIKey != "" || r.AccessToken != "" || r.RefreshToken != "" || r.IDToken != "" {
		t.Errorf("secrets not stripped: %+v", r)
	}
	if r.Name != "work" || c.APIKey != "sk-secret" {
		t.Error("redaction must copy, not mutate")
	}
}
