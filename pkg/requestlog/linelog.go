package requestlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LineFileName is the plain-text request log under the state directory.
const LineFileName = "log.txt"

// maxLines bounds log.txt; the oldest lines roll off.
const maxLines = 200

// LineLog appends one human-readable line per request.
type LineLog struct {
	mu    sync.Mutex
	path  string
	lines []string
	log   *slog.Logger
}

// OpenLineLog loads the existing log from dir, starting empty when the
// file does not exist.
func OpenLineLog(dir string, log *slog.Logger) (*LineLog, error) {
	l := &LineLog{
		path: filepath.Join(dir, LineFileName),
		log:  log,
	}

	raw, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read request log: %w", err)
	}
	for _, line := range strings.Split(strings.TrimRight(string(raw), "\n"), "\n") {
		if line != "" {
			l.lines = append(l.lines, line)
		}
	}
	return l, nil
}

// Append writes one request line:
//
//	dd-mm-yyyy HH:MM:SS | model | PROVIDER | account | sentTokens | recvTokens | status
//
// The provider is upcased; the account is its display name or id.
func (l *LineLog) Append(at time.Time, model, provider, account string, sent, recv int, status string) {
	line := fmt.Sprintf("%s | %s | %s | %s | %d | %d | %s",
		at.Format("02-01-2006 15:04:05"),
		model,
		strings.ToUpper(provider),
		account,
		sent,
		recv,
		status)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, line)
	if len(l.lines) > maxLines {
		l.lines = l.lines[len(l.lines)-maxLines:]
	}
	l.save()
}

// Lines returns a copy of the stored lines, oldest first.
func (l *LineLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// save rewrites the file. Callers hold the lock; the file is small by
// construction so a full rewrite keeps the trim honest.
func (l *LineLog) save() {
	data := strings.Join(l.lines, "\n") + "\n"
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o600); err != nil {
		l.log.Error("write request log", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, l.path); err != nil {
		l.log.Error("replace request log", "path", l.path, "error", err)
	}
}
