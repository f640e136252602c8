package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/pageblocks/internal/db"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidPayload is returned when apply input is not a list.
	ErrInvalidPayload = errors.New("invalid builder payload")
)

// Store provides CRUD operations for documents.
type Store struct {
	db *db.DB
}

// NewStore creates a new document Store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new document and returns it.
func (s *Store) Create(ctx context.Context, title, template string, sections []section.Section) (*Document, error) {
	if template == "" {
		template = TemplateDefault
	}
	now := time.Now().UTC().Truncate(time.Second)
	doc := &Document{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(title),
		Template:  template,
		Blocks:    SectionsToBlocks(sections),
		CreatedAt: now,
		UpdatedAt: now,
	}
	blocks, err := json.Marshal(doc.Blocks)
	if err != nil {
		return nil, fmt.Errorf("encoding blocks: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, template, blocks, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Template, string(blocks), now.Format(time.DateTime), now.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	return doc, nil
}

// Get returns a single document by id.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, template, blocks, created_at, updated_at FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return doc, nil
}

// List returns every document, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, template, blocks, created_at, updated_at FROM documents ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Save writes the template and blocks of doc.
func (s *Store) Save(ctx context.Context, doc *Document) error {
	blocks, err := json.Marshal(doc.Blocks)
	if err != nil {
		return fmt.Errorf("encoding blocks: %w", err)
	}
	doc.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET title = ?, template = ?, blocks = ?, updated_at = ? WHERE id = ?`,
		doc.Title, doc.Template, string(blocks), doc.UpdatedAt.Format(time.DateTime), doc.ID,
	)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", doc.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyResult is the echo of a successful apply.
type ApplyResult struct {
	DocumentID string           `json:"postId"`
	Message    string           `json:"message"`
	Sections   []section.Export `json:"sections"`
	Template   string           `json:"template"`
}

// ApplySections replaces the sections of a document with raw, a loosely
// typed list. Non-object entries are skipped and every section is
// normalized, including legacy escape repair. The replacement takes the
// slot of the first existing section block. A document not yet on a
// builder template is switched to pageTemplate when that is a builder
// template, or to the default builder template otherwise.
func (s *Store) ApplySections(ctx context.Context, id string, raw any, pageTemplate string) (*ApplyResult, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, ErrInvalidPayload
	}
	sections := make([]section.Section, 0, len(list))
	for _, item := range list {
		if sec, valid := section.NormalizeStored(item); valid {
			sections = append(sections, sec)
		}
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Blocks = ReplaceSections(doc.Blocks, sections)
	if !IsBuilderTemplate(doc.Template) {
		doc.Template = TemplateBuilder
		if IsBuilderTemplate(pageTemplate) {
			doc.Template = pageTemplate
		}
	}
	if err := s.Save(ctx, doc); err != nil {
		return nil, err
	}
	return &ApplyResult{
		DocumentID: doc.ID,
		Message:    "Page Blocks saved.",
		Sections:   section.ExportAll(sections),
		Template:   doc.Template,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc              Document
		blocks           string
		created, updated string
	)
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Template, &blocks, &created, &updated); err != nil {
		return nil, err
	}
	doc.CreatedAt = parseTime(created)
	doc.UpdatedAt = parseTime(updated)
	decoded, err := DecodeBlocks([]byte(blocks))
	if err != nil {
		return nil, fmt.Errorf("decoding blocks of %s: %w", doc.ID, err)
	}
	doc.Blocks = decoded
	return &doc, nil
}

func parseTime(ts string) time.Time {
	if t, err := time.Parse(time.DateTime, ts); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t
	}
	return time.Time{}
}
