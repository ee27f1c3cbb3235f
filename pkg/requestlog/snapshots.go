package requestlog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SnapshotFileName is the SQLite database under the state directory.
const SnapshotFileName = "requests.db"

// Snapshot is the five-capture debug record of one request.
type Snapshot struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	// Capture 1: the raw client body as received.
	ClientBody []byte `json:"clientBody,omitempty"`

	// Capture 2: the detected source and chosen target formats.
	SourceFormat string `json:"sourceFormat"`
	TargetFormat string `json:"targetFormat"`

	// Capture 3: the translated body sent upstream.
	UpstreamBody []byte `json:"upstreamBody,omitempty"`

	// Capture 4: where it went, with credential values already masked.
	UpstreamURL     string `json:"upstreamUrl"`
	UpstreamHeaders string `json:"upstreamHeaders,omitempty"`

	// Capture 5: the final response body, or the error that ended the
	// request.
	Response []byte `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Status   int    `json:"status"`

	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// SnapshotStore persists snapshots to requests.db.
type SnapshotStore struct {
	db *sql.DB
}

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS requests (
	id               TEXT PRIMARY KEY,
	created_at       INTEGER NOT NULL,
	provider         TEXT NOT NULL,
	model            TEXT NOT NULL,
	client_body      BLOB,
	source_format    TEXT NOT NULL,
	target_format    TEXT NOT NULL,
	upstream_body    BLOB,
	upstream_url     TEXT NOT NULL,
	upstream_headers TEXT,
	response         BLOB,
	error            TEXT,
	status           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS requests_created_at ON requests (created_at);
`

// OpenSnapshots opens (and migrates) the snapshot database in dir.
func OpenSnapshots(dir string) (*SnapshotStore, error) {
	path := filepath.Join(dir, SnapshotFileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	// SQLite writes are serialized; a second writer just blocks.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate snapshot store: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Save inserts one snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (
			id, created_at, provider, model,
			client_body, source_format, target_format,
			upstream_body, upstream_url, upstream_headers,
			response, error, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.CreatedAt.UnixMilli(), snap.Provider, snap.Model,
		snap.ClientBody, snap.SourceFormat, snap.TargetFormat,
		snap.UpstreamBody, snap.UpstreamURL, snap.UpstreamHeaders,
		snap.Response, snap.Error, snap.Status)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Recent returns the newest snapshots, newest first.
func (s *SnapshotStore) Recent(ctx context.Context, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, provider, model,
			client_body, source_format, target_format,
			upstream_body, upstream_url, upstream_headers,
			response, error, status
		FROM requests ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var snap Snapshot
		var createdAt int64
		if err := rows.Scan(
			&snap.ID, &createdAt, &snap.Provider, &snap.Model,
			&snap.ClientBody, &snap.SourceFormat, &snap.TargetFormat,
			&snap.UpstreamBody, &snap.UpstreamURL, &snap.UpstreamHeaders,
			&snap.Response, &snap.Error, &snap.Status); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, &snap)
	}
	return out, rows.Err()
}

// DeleteBefore drops snapshots older than the cutoff and returns how
// many were removed.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM requests WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
