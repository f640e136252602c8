// Package audit keeps a trail of the host-side actions that change a
// document or run privileged code: applies, AI generations and console
// commands.
package audit

import (
	"context"
	"log"
	"time"
)

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
	ActorAgent  ActorType = "agent"
)

// Action describes what was done.
type Action string

const (
	ActionDocumentCreated  Action = "document_created"
	ActionSectionsApplied  Action = "sections_applied"
	ActionSectionUpdated   Action = "section_updated"
	ActionAIGenerated      Action = "ai_generated"
	ActionConsoleExecuted  Action = "console_executed"
	ActionConsoleRejected  Action = "console_rejected"
	ActionDraftDiscarded   Action = "draft_discarded"
	ActionTemplateExecuted Action = "template_executed"
)

// Scope describes what an action applies to.
type Scope string

const (
	ScopeDocument Scope = "document"
	ScopeSection  Scope = "section"
	ScopeConsole  Scope = "console"
	ScopeAI       Scope = "ai"
)

// Entry is a single audit trail record.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ActorType     ActorType `json:"actorType"`
	ActorID       string    `json:"actorId"`
	Action        Action    `json:"action"`
	Scope         Scope     `json:"scope"`
	ScopeID       string    `json:"scopeId,omitempty"`
	DocumentID    string    `json:"documentId,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	PreviousValue string    `json:"previousValue,omitempty"`
	NewValue      string    `json:"newValue,omitempty"`
}

type documentKey struct{}

// WithDocument tags ctx with the document an action is performed on.
// Entries logged under ctx without a DocumentID inherit it.
func WithDocument(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, documentKey{}, id)
}

// DocumentFrom returns the document ctx was tagged with.
func DocumentFrom(ctx context.Context) string {
	id, _ := ctx.Value(documentKey{}).(string)
	return id
}

// Recorder accepts audit entries.
type Recorder interface {
	Log(ctx context.Context, entry Entry) error
}

// Record logs entry on r when r is non-nil. Failures are not surfaced
// to the caller; the action already happened.
func Record(ctx context.Context, r Recorder, entry Entry) {
	if r == nil {
		return
	}
	if entry.DocumentID == "" {
		entry.DocumentID = DocumentFrom(ctx)
	}
	if err := r.Log(ctx, entry); err != nil {
		log.Printf("[audit] dropping %s entry: %v", entry.Action, err)
	}
}
