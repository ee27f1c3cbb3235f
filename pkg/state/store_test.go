package state

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/usage"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestOpenMissingFile(t *testing.T) {
	s := testStore(t)
	if got := s.AllConnections(); len(got) != 0 {
		t.Errorf("connections = %+v, want empty", got)
	}
	if got := s.Aliases(); len(got) != 0 {
		t.Errorf("aliases = %+v, want empty", got)
	}
}

func TestConnectionCRUDPersists(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, slog.Default())
	if err != nil {
		t.Fatal(err)
	}

	conn := &credentials.Connection{
		Provider: "openai",
		AuthType: credentials.AuthAPIKey,
		APIKey:   "sk-test",
		IsActive: true,
	}
	if err := s.AddConnection(conn); err != nil {
		t.Fatal(err)
	}
	if conn.ID == "" {
		t.Fatal("id not assigned")
	}
	if conn.TestStatus != credentials.StatusUnknown {
		t.Errorf("testStatus = %q, want unknown", conn.TestStatus)
	}

	conn.CooldownUntil = time.Now().Add(time.Minute)
	if err := s.Update(conn); err != nil {
		t.Fatal(err)
	}

	// A second store over the same file sees the persisted state.
	s2, err := Open(dir, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	got := s2.Connection(conn.ID)
	if got == nil || got.APIKey != "sk-test" || got.CooldownUntil.IsZero() {
		t.Errorf("persisted connection = %+v", got)
	}

	if err := s.DeleteConnection(conn.ID); err != nil {
		t.Fatal(err)
	}
	if s.Connection(conn.ID) != nil {
		t.Error("connection still present after delete")
	}
	if err := s.DeleteConnection(conn.ID); err == nil {
		t.Error("deleting a missing connection should error")
	}
}

func TestListIsolatesCallers(t *testing.T) {
	s := testStore(t)
	if err := s.AddConnection(&credentials.Connection{ID: "c1", Provider: "openai", IsActive: true}); err != nil {
		t.Fatal(err)
	}

	list := s.List("openai")
	list[0].APIKey = "mutated"
	if s.Connection("c1").APIKey == "mutated" {
		t.Error("List must return copies")
	}
}

func TestAliasesCombosPricing(t *testing.T) {
	s := testStore(t)

	if err := s.SetAlias("fast", "openai/gpt-4o-mini"); err != nil {
		t.Fatal(err)
	}
	if got := s.Aliases()["fast"]; got != "openai/gpt-4o-mini" {
		t.Errorf("alias = %q", got)
	}

	if err := s.SetCombo("all-fast", []string{"fast", "claude/claude-haiku"}); err != nil {
		t.Fatal(err)
	}
	combos := s.Combos()
	if len(combos["all-fast"]) != 2 {
		t.Errorf("combo = %+v", combos)
	}
	combos["all-fast"][0] = "mutated"
	if s.Combos()["all-fast"][0] == "mutated" {
		t.Error("Combos must return copies")
	}

	if err := s.SetPricing("openai/gpt-4o", usage.Pricing{Input: 2.5, Output: 10}); err != nil {
		t.Fatal(err)
	}
	if got := s.PricingTable()["openai/gpt-4o"]; got.Output != 10 {
		t.Errorf("pricing = %+v", got)
	}

	if err := s.DeleteAlias("fast"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Aliases()["fast"]; ok {
		t.Error("alias still present after delete")
	}
}

func TestPassword(t *testing.T) {
	s := testStore(t)

	if s.CheckPassword("anything") {
		t.Error("empty hash must reject all attempts")
	}
	if err := s.SetPassword("hunter2"); err != nil {
		t.Fatal(err)
	}
	if !s.CheckPassword("hunter2") {
		t.Error("correct password rejected")
	}
	if s.CheckPassword("wrong") {
		t.Error("wrong password accepted")
	}

	// The hash, not the password, is what hits the disk.
	raw, err := os.ReadFile(filepath.Join(filepath.Dir(s.path), FileName))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	settings := doc["settings"].(map[string]interface{})
	hash, _ := settings["passwordHash"].(string)
	if hash == "" || hash == "hunter2" {
		t.Errorf("passwordHash = %q", hash)
	}
}

func TestWatchReloadsExternalEdit(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Watch(); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	doc := `{"aliases":{"ext":"openai/gpt-4o"},"settings":{}}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Aliases()["ext"] == "openai/gpt-4o" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("external edit not picked up")
}
