package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/usage"
)

// FileName is the store's file under the data directory.
const FileName = "local.json"

// Settings is the user-tunable configuration block.
type Settings struct {
	// PasswordHash is the bcrypt hash guarding the dashboard surface.
	PasswordHash string `json:"passwordHash,omitempty"`

	// RequestLogs enables the per-request snapshot store.
	RequestLogs bool `json:"requestLogs,omitempty"`

	// TargetOverrides maps "provider/model" to a wire format name,
	// overriding the provider's default target format.
	TargetOverrides map[string]string `json:"targetOverrides,omitempty"`
}

// Data is the full on-disk document.
type Data struct {
	Connections []*credentials.Connection `json:"connections,omitempty"`
	Aliases     map[string]string         `json:"aliases,omitempty"`
	Combos      map[string][]string       `json:"combos,omitempty"`
	Pricing     map[string]usage.Pricing  `json:"pricing,omitempty"`
	Settings    Settings                  `json:"settings"`
}

// Store owns local.json. It implements credentials.Store.
type Store struct {
	path string
	log  *slog.Logger

	mu   sync.RWMutex
	data *Data

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	// selfWrites counts pending saves so the watcher can tell our own
	// writes from external edits.
	selfWrites int
}

// Open loads local.json from dir, creating an empty document when the
// file does not exist yet.
func Open(dir string, log *slog.Logger) (*Store, error) {
	s := &Store{
		path:   filepath.Join(dir, FileName),
		log:    log,
		stopCh: make(chan struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.data = emptyData()
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	data := emptyData()
	if err := json.Unmarshal(raw, data); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	normalize(data)

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func emptyData() *Data {
	return &Data{
		Aliases: map[string]string{},
		Combos:  map[string][]string{},
		Pricing: map[string]usage.Pricing{},
	}
}

func normalize(d *Data) {
	if d.Aliases == nil {
		d.Aliases = map[string]string{}
	}
	if d.Combos == nil {
		d.Combos = map[string][]string{}
	}
	if d.Pricing == nil {
		d.Pricing = map[string]usage.Pricing{}
	}
	for _, c := range d.Connections {
		if c.TestStatus == "" {
			c.TestStatus = credentials.StatusUnknown
		}
	}
}

// save rewrites local.json atomically. Callers hold s.mu.
func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	s.selfWrites++
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Watch reloads the store when local.json changes on disk. Stops when
// Close is called.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create state watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch data dir: %w", err)
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case <-s.stopCh:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.mu.Lock()
				if s.selfWrites > 0 {
					s.selfWrites--
					s.mu.Unlock()
					continue
				}
				s.mu.Unlock()
				if err := s.load(); err != nil {
					s.log.Error("state reload failed", "error", err)
					continue
				}
				s.log.Info("state reloaded", "path", s.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Error("state watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the watcher.
func (s *Store) Close() error {
	close(s.stopCh)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// List returns the provider's connections in creation order. Part of
// credentials.Store.
func (s *Store) List(provider string) []*credentials.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*credentials.Connection
	for _, c := range s.data.Connections {
		if c.Provider == provider {
			out = append(out, c.Clone())
		}
	}
	return out
}

// AllConnections returns every connection.
func (s *Store) AllConnections() []*credentials.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*credentials.Connection, 0, len(s.data.Connections))
	for _, c := range s.data.Connections {
		out = append(out, c.Clone())
	}
	return out
}

// Connection returns one connection by id, or nil.
func (s *Store) Connection(id string) *credentials.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.data.Connections {
		if c.ID == id {
			return c.Clone()
		}
	}
	return nil
}

// Update persists a mutated connection. Part of credentials.Store.
func (s *Store) Update(conn *credentials.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.data.Connections {
		if c.ID == conn.ID {
			s.data.Connections[i] = conn.Clone()
			return s.save()
		}
	}
	return fmt.Errorf("connection %s not found", conn.ID)
}

// AddConnection stores a new connection, assigning an id and creation
// time when absent.
func (s *Store) AddConnection(conn *credentials.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}
	if conn.TestStatus == "" {
		conn.TestStatus = credentials.StatusUnknown
	}
	for _, c := range s.data.Connections {
		if c.ID == conn.ID {
			return fmt.Errorf("connection %s already exists", conn.ID)
		}
	}
	s.data.Connections = append(s.data.Connections, conn.Clone())
	return s.save()
}

// DeleteConnection removes a connection by id.
func (s *Store) DeleteConnection(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.data.Connections {
		if c.ID == id {
			s.data.Connections = append(s.data.Connections[:i], s.data.Connections[i+1:]...)
			return s.save()
		}
	}
	return fmt.Errorf("connection %s not found", id)
}

// Aliases returns a snapshot of the alias table.
func (s *Store) Aliases() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data.Aliases))
	for k, v := range s.data.Aliases {
		out[k] = v
	}
	return out
}

// SetAlias maps name to "provider/model".
func (s *Store) SetAlias(name, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Aliases[name] = target
	return s.save()
}

// DeleteAlias removes an alias.
func (s *Store) DeleteAlias(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Aliases, name)
	return s.save()
}

// Combos returns a snapshot of the combo table.
func (s *Store) Combos() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.data.Combos))
	for k, v := range s.data.Combos {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// SetCombo stores an ordered model list under name.
func (s *Store) SetCombo(name string, models []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Combos[name] = append([]string(nil), models...)
	return s.save()
}

// DeleteCombo removes a combo.
func (s *Store) DeleteCombo(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Combos, name)
	return s.save()
}

// PricingTable returns a snapshot of the rate card keyed by
// "provider/model".
func (s *Store) PricingTable() map[string]usage.Pricing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]usage.Pricing, len(s.data.Pricing))
	for k, v := range s.data.Pricing {
		out[k] = v
	}
	return out
}

// SetPricing stores the rate card entry for "provider/model".
func (s *Store) SetPricing(key string, p usage.Pricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Pricing[key] = p
	return s.save()
}

// DeletePricing removes a rate card entry.
func (s *Store) DeletePricing(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Pricing, key)
	return s.save()
}

// Settings returns a copy of the settings block.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.data.Settings
	if s.data.Settings.TargetOverrides != nil {
		out.TargetOverrides = make(map[string]string, len(s.data.Settings.TargetOverrides))
		for k, v := range s.data.Settings.TargetOverrides {
			out.TargetOverrides[k] = v
		}
	}
	return out
}

// UpdateSettings replaces the settings block.
func (s *Store) UpdateSettings(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Settings = settings
	return s.save()
}
