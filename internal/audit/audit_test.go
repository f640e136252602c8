package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/pageblocks/internal/auth"
	"github.com/ziadkadry99/pageblocks/internal/db"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func seed(t *testing.T, store *Store, entries ...Entry) {
	t.Helper()
	for _, e := range entries {
		if err := store.Log(context.Background(), e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
}

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seed(t, store, Entry{
		ID:            "apply-1",
		ActorType:     ActorUser,
		ActorID:       "builder",
		Action:        ActionSectionsApplied,
		Scope:         ScopeDocument,
		ScopeID:       "doc-42",
		DocumentID:    "doc-42",
		Summary:       "Applied 3 sections",
		PreviousValue: "[]",
		NewValue:      `[{"content":"<h1>A</h1>"}]`,
	})

	got, err := store.GetByID(ctx, "apply-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Action != ActionSectionsApplied || got.DocumentID != "doc-42" || got.Scope != ScopeDocument {
		t.Errorf("entry = %+v", got)
	}
	if got.PreviousValue != "[]" || got.NewValue != `[{"content":"<h1>A</h1>"}]` {
		t.Errorf("values = %q -> %q", got.PreviousValue, got.NewValue)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) = %v, want ErrNotFound", err)
	}
}

func TestLogFillsDefaults(t *testing.T) {
	store := setupStore(t)
	ctx := WithDocument(context.Background(), "doc-7")

	if err := store.Log(ctx, Entry{ActorID: "renderer", Action: ActionTemplateExecuted, Scope: ScopeSection}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	entries, err := store.Query(context.Background(), QueryFilter{DocumentID: "doc-7"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" || entries[0].ActorType != ActorSystem {
		t.Errorf("defaults not filled: %+v", entries[0])
	}
}

func TestRecordTagsDocumentFromContext(t *testing.T) {
	Record(context.Background(), nil, Entry{Action: ActionAIGenerated})

	store := setupStore(t)
	ctx := WithDocument(context.Background(), "doc-9")
	Record(ctx, store, Entry{ActorID: "builder:doc-9", Action: ActionConsoleExecuted, Scope: ScopeConsole})
	Record(ctx, store, Entry{ActorID: "host", Action: ActionDocumentCreated, Scope: ScopeDocument, DocumentID: "doc-1"})

	if got := DocumentFrom(ctx); got != "doc-9" {
		t.Errorf("DocumentFrom = %q", got)
	}
	entries, err := store.Query(context.Background(), QueryFilter{DocumentID: "doc-9"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != ActionConsoleExecuted {
		t.Errorf("entries = %+v", entries)
	}
}

func TestQueryFilters(t *testing.T) {
	store := setupStore(t)
	seed(t, store,
		Entry{ActorID: "builder", Action: ActionSectionsApplied, Scope: ScopeDocument, DocumentID: "a"},
		Entry{ActorID: "gpt-5-mini", Action: ActionAIGenerated, Scope: ScopeAI, DocumentID: "a"},
		Entry{ActorID: "builder", Action: ActionSectionsApplied, Scope: ScopeDocument, DocumentID: "b"},
		Entry{ActorType: ActorAgent, ActorID: "mcp", Action: ActionSectionUpdated, Scope: ScopeSection, ScopeID: "b#0", DocumentID: "b"},
	)

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 4},
		{"document", QueryFilter{DocumentID: "a"}, 2},
		{"actor", QueryFilter{ActorID: "builder"}, 2},
		{"scope", QueryFilter{Scope: ScopeSection}, 1},
		{"scope id", QueryFilter{ScopeID: "b#0"}, 1},
		{"action", QueryFilter{Action: ActionSectionsApplied, DocumentID: "b"}, 1},
		{"limit", QueryFilter{Limit: 3}, 3},
		{"offset", QueryFilter{Limit: 3, Offset: 3}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Query(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestQueryTimeWindowAndPrune(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	seed(t, store,
		Entry{ActorID: "builder", Action: ActionSectionsApplied, Scope: ScopeDocument, Timestamp: old},
		Entry{ActorID: "builder", Action: ActionSectionsApplied, Scope: ScopeDocument},
	)

	since := time.Now().Add(-time.Hour)
	recent, err := store.Query(ctx, QueryFilter{Since: &since})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("expected 1 recent entry, got %d", len(recent))
	}

	deleted, err := store.DeleteBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned entry, got %d", deleted)
	}
	rest, _ := store.Query(ctx, QueryFilter{})
	if len(rest) != 1 {
		t.Errorf("expected 1 remaining entry, got %d", len(rest))
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Store, *auth.Signer) {
	t.Helper()
	store := setupStore(t)
	signer, err := auth.NewSigner("audit-test-secret")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	r := chi.NewRouter()
	RegisterRoutes(r, store, signer)
	return r, store, signer
}

func get(r chi.Router, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(hostapi.TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, into any) bool {
	t.Helper()
	var env hostapi.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if into != nil {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env.Success
}

func TestHTTPHistoryIsScopedToTokenDocument(t *testing.T) {
	r, store, signer := setupRouter(t)
	seed(t, store,
		Entry{ID: "mine", ActorID: "builder", Action: ActionSectionsApplied, Scope: ScopeDocument, DocumentID: "doc-1"},
		Entry{ID: "also-mine", ActorID: "gpt-5-mini", Action: ActionAIGenerated, Scope: ScopeAI, DocumentID: "doc-1"},
		Entry{ID: "theirs", ActorID: "builder", Action: ActionSectionsApplied, Scope: ScopeDocument, DocumentID: "doc-2"},
	)
	token := signer.Issue(auth.ActionBuilder, "doc-1", time.Hour)

	rec := get(r, "/api/audit", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []Entry
	if !decodeEnvelope(t, rec, &entries) {
		t.Fatal("expected success envelope")
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for doc-1, got %d", len(entries))
	}

	rec = get(r, "/api/audit?action=ai_generated", token)
	entries = nil
	decodeEnvelope(t, rec, &entries)
	if len(entries) != 1 || entries[0].ID != "also-mine" {
		t.Errorf("filtered entries = %+v", entries)
	}

	rec = get(r, "/api/audit/mine", token)
	var entry Entry
	if rec.Code != http.StatusOK || !decodeEnvelope(t, rec, &entry) || entry.ID != "mine" {
		t.Errorf("GET mine: status %d entry %+v", rec.Code, entry)
	}
	if rec := get(r, "/api/audit/theirs", token); rec.Code != http.StatusNotFound {
		t.Errorf("GET theirs: status = %d, want 404", rec.Code)
	}
	if rec := get(r, "/api/audit/missing", token); rec.Code != http.StatusNotFound {
		t.Errorf("GET missing: status = %d, want 404", rec.Code)
	}
}

func TestHTTPHistoryRequiresBuilderToken(t *testing.T) {
	r, _, signer := setupRouter(t)

	for name, token := range map[string]string{
		"none":    "",
		"preview": signer.Issue(auth.ActionPreview, "doc-1", time.Hour),
		"garbage": "not-a-token",
	} {
		rec := get(r, "/api/audit", token)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s token: status = %d, want 403", name, rec.Code)
		}
	}
}
