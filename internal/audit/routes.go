package audit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/pageblocks/internal/auth"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
)

// RegisterRoutes mounts the document history under /api/audit. Every
// request needs a builder token and only sees the entries of the
// token's document.
func RegisterRoutes(r chi.Router, store *Store, signer *auth.Signer) {
	r.Route("/api/audit", func(r chi.Router) {
		r.Get("/", handleQuery(store, signer))
		r.Get("/{id}", handleGetByID(store, signer))
	})
}

func tokenDocument(w http.ResponseWriter, r *http.Request, signer *auth.Signer) (string, bool) {
	if signer == nil {
		hostapi.WriteError(w, http.StatusForbidden, "Audit trail is unavailable.")
		return "", false
	}
	doc, err := signer.Document(auth.FromRequest(r), auth.ActionBuilder)
	if err != nil {
		hostapi.WriteError(w, http.StatusForbidden, "You do not have permission to view this history.")
		return "", false
	}
	return doc, true
}

func handleQuery(store *Store, signer *auth.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := tokenDocument(w, r, signer)
		if !ok {
			return
		}
		q := r.URL.Query()
		filter := QueryFilter{
			DocumentID: doc,
			ActorID:    q.Get("actor"),
			Scope:      Scope(q.Get("scope")),
			Action:     Action(q.Get("action")),
		}
		if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
			filter.Since = &t
		}
		if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
			filter.Until = &t
		}
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))
		filter.Offset, _ = strconv.Atoi(q.Get("offset"))

		entries, err := store.Query(r.Context(), filter)
		if err != nil {
			hostapi.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entries == nil {
			entries = []Entry{}
		}
		hostapi.WriteJSON(w, http.StatusOK, entries)
	}
}

func handleGetByID(store *Store, signer *auth.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := tokenDocument(w, r, signer)
		if !ok {
			return
		}
		entry, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) || (err == nil && entry.DocumentID != doc) {
			hostapi.WriteError(w, http.StatusNotFound, "Audit entry not found.")
			return
		}
		if err != nil {
			hostapi.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		hostapi.WriteJSON(w, http.StatusOK, entry)
	}
}
