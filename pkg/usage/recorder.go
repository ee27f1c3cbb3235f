package usage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RecorderFileName is the usage history file under the state directory.
const RecorderFileName = "usage.json"

// maxHistory bounds the on-disk history; the oldest records roll off.
const maxHistory = 10000

// Record is one completed request's accounting entry.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Provider     string    `json:"provider"`
	ConnectionID string    `json:"connectionId,omitempty"`
	Model        string    `json:"model"`
	Tokens       Tokens    `json:"tokens"`
	Cost         float64   `json:"cost"`
	Status       int       `json:"status"`
	DurationMS   int64     `json:"durationMs"`
	Stream       bool      `json:"stream,omitempty"`
}

// Recorder persists usage records to usage.json, newest last.
type Recorder struct {
	mu      sync.Mutex
	path    string
	history []Record
	log     *slog.Logger
}

// OpenRecorder loads the history from dir, starting empty when the
// file does not exist yet. A corrupt file is abandoned, not fatal.
func OpenRecorder(dir string, log *slog.Logger) (*Recorder, error) {
	r := &Recorder{
		path: filepath.Join(dir, RecorderFileName),
		log:  log,
	}

	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read usage history: %w", err)
	}

	var file struct {
		History []Record `json:"history"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		log.Warn("usage history corrupt, starting fresh", "path", r.path, "error", err)
		return r, nil
	}
	r.history = file.History
	return r, nil
}

// Add appends one record and saves. The history is trimmed to the
// newest maxHistory entries.
func (r *Recorder) Add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	r.history = append(r.history, rec)
	if len(r.history) > maxHistory {
		r.history = r.history[len(r.history)-maxHistory:]
	}
	r.save()
}

// History returns a copy of the stored records, oldest first.
func (r *Recorder) History() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.history))
	copy(out, r.history)
	return out
}

// TrimBefore drops records older than the cutoff and saves when
// anything was dropped. Returns the number of records removed.
func (r *Recorder) TrimBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.history[:0]
	for _, rec := range r.history {
		if !rec.Timestamp.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	dropped := len(r.history) - len(kept)
	if dropped > 0 {
		r.history = kept
		r.save()
	}
	return dropped
}

// Summary aggregates totals per "provider/model" key since the cutoff.
func (r *Recorder) Summary(since time.Time) map[string]Totals {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := map[string]Totals{}
	for _, rec := range r.history {
		if rec.Timestamp.Before(since) {
			continue
		}
		key := rec.Provider + "/" + rec.Model
		t := out[key]
		t.Requests++
		t.PromptTokens += rec.Tokens.Prompt
		t.CompletionTokens += rec.Tokens.Completion
		t.Cost += rec.Cost
		out[key] = t
	}
	return out
}

// Totals is an aggregate over usage records.
type Totals struct {
	Requests         int     `json:"requests"`
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	Cost             float64 `json:"cost"`
}

// save writes the history atomically. Callers hold the lock.
func (r *Recorder) save() {
	file := struct {
		History []Record `json:"history"`
	}{History: r.history}

	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		r.log.Error("marshal usage history", "error", err)
		return
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		r.log.Error("write usage history", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, r.path); err != nil {
		r.log.Error("replace usage history", "path", r.path, "error", err)
	}
}
