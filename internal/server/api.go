package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/ziadkadry99/pageblocks/internal/assist"
	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/auth"
	"github.com/ziadkadry99/pageblocks/internal/console"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
)

const maxRequestBody = 4 << 20

// authorize resolves the document a builder token was issued for. It
// writes the 403 itself and returns ok=false when the token is unusable.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, denied string) (string, bool) {
	if s.deps.Signer == nil {
		hostapi.WriteError(w, http.StatusForbidden, denied)
		return "", false
	}
	id, err := s.deps.Signer.Document(auth.FromRequest(r), auth.ActionBuilder)
	if err != nil {
		hostapi.WriteError(w, http.StatusForbidden, denied)
		return "", false
	}
	return id, true
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v)
}

// modelsResponse lists the generation models usable with the configured keys.
type modelsResponse struct {
	Models  []assist.ModelInfo `json:"models"`
	Default string             `json:"default"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, "You do not have permission to use AI."); !ok {
		return
	}
	if s.deps.AI == nil {
		hostapi.WriteJSON(w, http.StatusOK, modelsResponse{Models: []assist.ModelInfo{}})
		return
	}
	models := s.deps.AI.Models()
	if models == nil {
		models = []assist.ModelInfo{}
	}
	hostapi.WriteJSON(w, http.StatusOK, modelsResponse{Models: models, Default: s.deps.AI.DefaultModel()})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	docID, ok := s.authorize(w, r, "You do not have permission to use AI.")
	if !ok {
		return
	}
	if s.deps.AI == nil {
		hostapi.WriteError(w, http.StatusServiceUnavailable, "AI generation is not configured.")
		return
	}
	var req assist.Request
	if err := decodeBody(r, &req); err != nil {
		hostapi.WriteError(w, http.StatusBadRequest, "Invalid AI request.")
		return
	}

	res, err := s.deps.AI.Generate(r.Context(), req)
	switch {
	case errors.Is(err, assist.ErrEmptyPrompt):
		hostapi.WriteError(w, http.StatusBadRequest, "Prompt is required.")
		return
	case errors.Is(err, assist.ErrUnknownModel):
		hostapi.WriteError(w, http.StatusBadRequest, "Unknown model.")
		return
	case errors.Is(err, assist.ErrNoCredential):
		hostapi.WriteError(w, http.StatusBadRequest, "No API key is configured for this model.")
		return
	case err != nil:
		log.Printf("[ai] generation for %s failed: %v", docID, err)
		hostapi.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	audit.Record(r.Context(), s.audit, audit.Entry{
		ActorType:  audit.ActorAgent,
		ActorID:    res.Model,
		Action:     audit.ActionAIGenerated,
		Scope:      audit.ScopeAI,
		ScopeID:    docID,
		DocumentID: docID,
		Summary:    fmt.Sprintf("Generated %s for %q", req.Tab, truncate(req.Prompt, 80)),
		Detail:     fmt.Sprintf("%d input tokens, %d output tokens, $%.4f", res.InputTokens, res.OutputTokens, res.Cost),
		NewValue:   res.Code,
	})
	hostapi.WriteJSON(w, http.StatusOK, assist.Response{Code: res.Code})
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	docID, ok := s.authorize(w, r, "You do not have permission to use the console.")
	if !ok {
		return
	}
	var cmd console.Command
	if err := decodeBody(r, &cmd); err != nil {
		hostapi.WriteError(w, http.StatusBadRequest, "Invalid console request.")
		return
	}
	actor := "builder:" + docID
	if s.deps.Console == nil || !s.deps.Console.Enabled {
		audit.Record(r.Context(), s.audit, audit.Entry{
			ActorType:  audit.ActorUser,
			ActorID:    actor,
			Action:     audit.ActionConsoleRejected,
			Scope:      audit.ScopeConsole,
			DocumentID: docID,
			Summary:    cmd.Command,
			Detail:     "console disabled",
		})
		hostapi.WriteError(w, http.StatusForbidden, "Console is disabled.")
		return
	}

	res, err := s.deps.Console.Run(audit.WithDocument(r.Context(), docID), cmd, actor)
	switch {
	case errors.Is(err, console.ErrEmptyCommand):
		hostapi.WriteError(w, http.StatusBadRequest, "Command is required.")
		return
	case err != nil:
		hostapi.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hostapi.WriteJSON(w, http.StatusOK, res)
}

// classesResponse carries the theme class vocabulary.
type classesResponse struct {
	Classes []string `json:"classes"`
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	classes := []string{}
	if s.deps.Catalog != nil {
		if c := s.deps.Catalog.Classes(); c != nil {
			classes = c
		}
	}
	hostapi.WriteJSON(w, http.StatusOK, classesResponse{Classes: classes})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
