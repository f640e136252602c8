// Package autosave persists debounced draft snapshots of a document's
// sections and offers them back on the next session.
package autosave

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ziadkadry99/pageblocks/internal/db"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

// KeyPrefix scopes draft keys to the builder.
const KeyPrefix = "md_pb_draft_"

// Key returns the draft key for a document.
func Key(documentID string) string { return KeyPrefix + documentID }

// ErrNotFound is returned by Load when no draft exists.
var ErrNotFound = errors.New("draft not found")

// Snapshot is one persisted draft. Timestamp is in Unix milliseconds.
type Snapshot struct {
	Sections  []section.Export `json:"sections"`
	Timestamp int64            `json:"timestamp"`
}

// Draft summarizes a stored snapshot.
type Draft struct {
	Key       string `json:"key"`
	Sections  int    `json:"sections"`
	Timestamp int64  `json:"timestamp"`
}

// Store is durable draft storage keyed by document.
type Store interface {
	Load(ctx context.Context, key string) (*Snapshot, error)
	Save(ctx context.Context, key string, snap Snapshot) error
	Clear(ctx context.Context, key string) error
}

// SQLiteStore keeps drafts in the drafts table.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a Store backed by the given database.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	var (
		raw string
		ts  int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT sections, timestamp FROM drafts WHERE key = ?`, key).Scan(&raw, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft: %w", err)
	}
	return decodeSnapshot(raw, ts), nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, snap Snapshot) error {
	raw, err := json.Marshal(snap.Sections)
	if err != nil {
		return fmt.Errorf("marshalling draft: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (key, sections, timestamp) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET sections = excluded.sections, timestamp = excluded.timestamp`,
		key, string(raw), snap.Timestamp)
	if err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clearing draft: %w", err)
	}
	return nil
}

// List returns every stored draft, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, sections, timestamp FROM drafts ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		var (
			d   Draft
			raw string
		)
		if err := rows.Scan(&d.Key, &raw, &d.Timestamp); err != nil {
			return nil, err
		}
		d.Sections = len(decodeSnapshot(raw, d.Timestamp).Sections)
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// decodeSnapshot normalizes stored sections, so drafts written by older
// versions still hydrate.
func decodeSnapshot(raw string, ts int64) *Snapshot {
	snap := &Snapshot{Timestamp: ts}
	sections, _ := section.NormalizeAll(section.DecodeJSON([]byte(raw)))
	snap.Sections = section.ExportAll(sections)
	return snap
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string]Snapshot
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]Snapshot)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.drafts[key]
	if !ok {
		return nil, ErrNotFound
	}
	snap.Sections = append([]section.Export(nil), snap.Sections...)
	return &snap, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Sections = append([]section.Export(nil), snap.Sections...)
	m.drafts[key] = snap
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, key)
	return nil
}

// List returns every stored draft, newest first.
func (m *MemoryStore) List(context.Context) ([]Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drafts := make([]Draft, 0, len(m.drafts))
	for k, s := range m.drafts {
		drafts = append(drafts, Draft{Key: k, Sections: len(s.Sections), Timestamp: s.Timestamp})
	}
	sort.Slice(drafts, func(i, j int) bool {
		if drafts[i].Timestamp == drafts[j].Timestamp {
			return strings.Compare(drafts[i].Key, drafts[j].Key) < 0
		}
		return drafts[i].Timestamp > drafts[j].Timestamp
	})
	return drafts, nil
}
