package requestlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestLineLogFormat(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenLineLog(dir, testLogger())
	if err != nil {
		t.Fatalf("OpenLineLog: %v", err)
	}

	at := time.Date(2026, 8, 24, 14, 30, 5, 0, time.UTC)
	l.Append(at, "gpt-4o", "openai", "work-account", 120, 456, "200")

	lines := l.Lines()
	if len(lines) != 1 {
		t.Fatalf("lines = %d", len(lines))
	}
	want := "24-08-2026 14:30:05 | gpt-4o | OPENAI | work-account | 120 | 456 | 200"
	if lines[0] != want {
		t.Errorf("line = %q, want %q", lines[0], want)
	}

	raw, err := os.ReadFile(filepath.Join(dir, LineFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.TrimSpace(string(raw)) != want {
		t.Errorf("file = %q", raw)
	}
}

func TestLineLogTrim(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenLineLog(dir, testLogger())
	if err != nil {
		t.Fatalf("OpenLineLog: %v", err)
	}

	at := time.Now()
	for i := 0; i < maxLines+25; i++ {
		l.Append(at, fmt.Sprintf("model-%d", i), "openai", "a", 1, 1, "200")
	}

	lines := l.Lines()
	if len(lines) != maxLines {
		t.Fatalf("lines = %d, want %d", len(lines), maxLines)
	}
	// The oldest 25 must be gone.
	if !strings.Contains(lines[0], "model-25") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[len(lines)-1], fmt.Sprintf("model-%d", maxLines+24)) {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
}

func TestLineLogReload(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenLineLog(dir, testLogger())
	if err != nil {
		t.Fatalf("OpenLineLog: %v", err)
	}
	l.Append(time.Now(), "m", "p", "a", 1, 2, "200")

	l2, err := OpenLineLog(dir, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if len(l2.Lines()) != 1 {
		t.Errorf("reloaded lines = %d", len(l2.Lines()))
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSnapshots(dir)
	if err != nil {
		t.Fatalf("OpenSnapshots: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	snap := &Snapshot{
		ID:              "req-1",
		Provider:        "claude",
		Model:           "claude-sonnet-4",
		ClientBody:      []byte(`{"model":"sonnet"}`),
		SourceFormat:    "openai",
		TargetFormat:    "claude",
		UpstreamBody:    []byte(`{"model":"claude-sonnet-4"}`),
		UpstreamURL:     "https://api.anthropic.com/v1/messages?beta=true",
		UpstreamHeaders: `{"Authorization":"Bearer sk-a...1234"}`,
		Response:        []byte(`{"id":"msg_1"}`),
		Status:          200,
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d snapshots", len(got))
	}
	g := got[0]
	if g.ID != "req-1" || g.SourceFormat != "openai" || g.TargetFormat != "claude" {
		t.Errorf("snapshot = %+v", g)
	}
	if string(g.ClientBody) != `{"model":"sonnet"}` {
		t.Errorf("client body = %q", g.ClientBody)
	}
	if g.Status != 200 || g.Error != "" {
		t.Errorf("status = %d error = %q", g.Status, g.Error)
	}
	if g.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
}

func TestSnapshotStoreRecentOrderAndLimit(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSnapshots(dir)
	if err != nil {
		t.Fatalf("OpenSnapshots: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := store.Save(ctx, &Snapshot{
			ID:           fmt.Sprintf("req-%d", i),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			Provider:     "openai",
			Model:        "gpt-4o",
			SourceFormat: "openai",
			TargetFormat: "openai",
			UpstreamURL:  "u",
			Status:       200,
		})
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	got, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(got))
	}
	if got[0].ID != "req-4" || got[2].ID != "req-2" {
		t.Errorf("order = %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestSnapshotStoreDeleteBefore(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSnapshots(dir)
	if err != nil {
		t.Fatalf("OpenSnapshots: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	_ = store.Save(ctx, &Snapshot{ID: "old", CreatedAt: old, Provider: "p", Model: "m", SourceFormat: "openai", TargetFormat: "openai", UpstreamURL: "u", Status: 200})
	_ = store.Save(ctx, &Snapshot{ID: "new", Provider: "p", Model: "m", SourceFormat: "openai", TargetFormat: "openai", UpstreamURL: "u", Status: 200})

	n, err := store.DeleteBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	got, _ := store.Recent(ctx, 10)
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("remaining = %+v", got)
	}
}
