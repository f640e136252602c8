package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/pageblocks/internal/db"
)

// ErrNotFound is returned when an entry does not exist.
var ErrNotFound = errors.New("audit entry not found")

const (
	// DefaultLimit bounds queries that do not set one.
	DefaultLimit = 100
	MaxLimit     = 1000
)

const entryColumns = `id, timestamp, actor_type, actor_id, action, scope, scope_id,
	document_id, summary, detail, previous_value, new_value`

// Store persists the trail in the audit_entries table.
type Store struct {
	db  *db.DB
	now func() time.Time
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Log inserts entry, filling in the id, timestamp, actor type and
// document from ctx when they are empty.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if entry.ActorType == "" {
		entry.ActorType = ActorSystem
	}
	if entry.DocumentID == "" {
		entry.DocumentID = DocumentFrom(ctx)
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC().Format(time.DateTime),
		string(entry.ActorType),
		entry.ActorID,
		string(entry.Action),
		string(entry.Scope),
		entry.ScopeID,
		entry.DocumentID,
		entry.Summary,
		entry.Detail,
		nullable(entry.PreviousValue),
		nullable(entry.NewValue),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM audit_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// QueryFilter selects entries. Zero fields match everything.
type QueryFilter struct {
	DocumentID string
	ActorID    string
	Scope      Scope
	ScopeID    string
	Action     Action
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}

func (f QueryFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}
	if f.DocumentID != "" {
		add("document_id = ?", f.DocumentID)
	}
	if f.ActorID != "" {
		add("actor_id = ?", f.ActorID)
	}
	if f.Scope != "" {
		add("scope = ?", string(f.Scope))
	}
	if f.ScopeID != "" {
		add("scope_id = ?", f.ScopeID)
	}
	if f.Action != "" {
		add("action = ?", string(f.Action))
	}
	if f.Since != nil {
		add("timestamp >= ?", f.Since.UTC().Format(time.DateTime))
	}
	if f.Until != nil {
		add("timestamp <= ?", f.Until.UTC().Format(time.DateTime))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Query returns matching entries, newest first. The limit defaults to
// DefaultLimit and is capped at MaxLimit.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	where, args := filter.where()
	args = append(args, limit, max(filter.Offset, 0))
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM audit_entries`+where+` ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteBefore prunes entries older than before and returns how many
// were removed.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_entries WHERE timestamp < ?", before.UTC().Format(time.DateTime))
	if err != nil {
		return 0, fmt.Errorf("deleting old audit entries: %w", err)
	}
	return res.RowsAffected()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e                        Entry
		ts                       string
		actorType, action, scope string
		previous, next           sql.NullString
	)
	err := sc.Scan(&e.ID, &ts, &actorType, &e.ActorID, &action, &scope, &e.ScopeID,
		&e.DocumentID, &e.Summary, &e.Detail, &previous, &next)
	if err != nil {
		return nil, err
	}
	e.ActorType = ActorType(actorType)
	e.Action = Action(action)
	e.Scope = Scope(scope)
	e.PreviousValue = previous.String
	e.NewValue = next.String
	if t, err := time.Parse(time.DateTime, ts); err == nil {
		e.Timestamp = t
	} else if t, err := time.Parse(time.RFC3339, ts); err == nil {
		e.Timestamp = t
	}
	return &e, nil
}
