package documents

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/auth"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
	"github.com/ziadkadry99/pageblocks/internal/preview"
	"github.com/ziadkadry99/pageblocks/internal/render"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

// maxBody bounds apply and preview request bodies.
const maxBody = 8 << 20

// Routes holds what the document endpoints need.
type Routes struct {
	Store    *Store
	Signer   *auth.Signer
	Renderer *render.Renderer
	Audit    audit.Recorder
	// BuilderURL builds the launch link of a document's builder.
	BuilderURL func(id, token string) string
	// Styles are the theme stylesheets linked from published pages.
	Styles    func() []string
	Injection preview.Injection
}

// RegisterRoutes mounts the document endpoints on the given router.
func RegisterRoutes(r chi.Router, rt Routes) {
	r.Route("/api/documents", func(r chi.Router) {
		r.Get("/", handleList(rt))
		r.Post("/", handleCreate(rt))
		r.Get("/{id}", handleGet(rt))
		r.Delete("/{id}", handleDelete(rt))
		r.Post("/{id}/token", handleToken(rt))
		r.Post("/{id}/apply", handleApply(rt))
		r.Post("/{id}/preview", handlePreview(rt))
	})
	r.Get("/p/{id}", handlePublished(rt))
}

// View is a document with its sections decoded.
type View struct {
	*Document
	Sections     []section.Export `json:"sections"`
	TemplateSlug string           `json:"templateSlug"`
}

func viewOf(doc *Document) View {
	return View{Document: doc, Sections: section.ExportAll(doc.Sections()), TemplateSlug: TemplateSlug(doc.Template)}
}

func handleList(rt Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := rt.Store.List(r.Context())
		if err != nil {
			hostapi.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		views := make([]View, 0, len(docs))
		for i := range docs {
			views = append(views, viewOf(&docs[i]))
		}
		hostapi.WriteJSON(w, http.StatusOK, views)
	}
}

type createRequest struct {
	Title    string `json:"title"`
	Template string `json:"template"`
	Sections any    `json:"sections"`
}

// Launch is returned when a document is created or a token is issued.
type Launch struct {
	View
	Token      string `json:"token"`
	BuilderURL string `json:"builderUrl,omitempty"`
}

func (rt Routes) launch(doc *Document) Launch {
	l := Launch{View: viewOf(doc)}
	if rt.Signer != nil {
		l.Token = rt.Signer.Issue(auth.ActionBuilder, doc.ID, auth.DefaultTTL)
		if rt.BuilderURL != nil {
			l.BuilderURL = rt.BuilderURL(doc.ID, l.Token)
		}
	}
	return l
}

func handleCreate(rt Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
			hostapi.WriteError(w, http.StatusBadRequest, "Invalid document payload.")
			return
		}
		sections, _ := section.NormalizeAll(req.Sections)
		doc, err := rt.Store.Create(r.Context(), req.Title, req.Template, sections)
		if err != nil {
			hostapi.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit.Record(r.Context(), rt.Audit, audit.Entry{
			ActorType:  audit.ActorUser,
			ActorID:    "host",
			Action:     audit.ActionDocumentCreated,
			Scope:      audit.ScopeDocument,
			ScopeID:    doc.ID,
			DocumentID: doc.ID,
			Summary:    fmt.Sprintf("Created %q with %d sections", doc.Title, len(sections)),
		})
		hostapi.WriteJSON(w, http.StatusCreated, rt.launch(doc))
	}
}

func handleGet(rt Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := rt.Store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		hostapi.WriteJSON(w, http.StatusOK, viewOf(doc))
	}
}

func handleDelete(rt Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rt.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeStoreError(w, err)
			return
		}
		hostapi.WriteJSON(w, http.StatusOK, map[string]string{"message": "Document deleted."})
	}
}

func handleToken(rt Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := rt.Store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		hostapi.WriteJSON(w, http.StatusOK, rt.launch(doc))
	}
}

type sectionsRequest struct {
	Sections     any    `json:"sections"`
	PageTemplate string `json:"pageTemplate"`
}

func decodeSections(r *http.Request) (sectionsRequest, error) {
	var req sectionsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		return req, err
	}
	if _, ok := req.Sections.([]any); !ok {
		return req, ErrInvalidPayload
	}
	return req, nil
}

func handleApply(rt Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if rt.Signer == nil || rt.Signer.Verify(auth.FromRequest(r), auth.ActionBuilder, id) != nil {
			hostapi.WriteError(w, http.StatusForbidden, "You do not have permission to save Page Blocks.")
			return
		}
		req, err := decodeSections(r)
		if err != nil {
			hostapi.WriteError(w, http.StatusBadRequest, "Invalid builder payload.")
			return
		}
		before, err := rt.Store.Get(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		res, err := rt.Store.ApplySections(r.Context(), id, req.Sections, req.PageTemplate)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		audit.Record(r.Context(), rt.Audit, audit.Entry{
			ActorType:     audit.ActorUser,
			ActorID:       "builder",
			Action:        audit.ActionSectionsApplied,
			Scope:         audit.ScopeDocument,
			ScopeID:       id,
			DocumentID:    id,
			Summary:       fmt.Sprintf("Applied %d sections", len(res.Sections)),
			PreviousValue: AuditValue(section.ExportAll(before.Sections())),
			NewValue:      AuditValue(res.Sections),
		})
		log.Printf("[documents] applied %d sections to %s", len(res.Sections), id)
		hostapi.WriteJSON(w, http.StatusOK, res)
	}
}

func handlePreview(rt Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if rt.Signer == nil || rt.Signer.VerifyPreview(auth.FromRequest(r), id) != nil {
			hostapi.WriteError(w, http.StatusForbidden, "You do not have permission to preview Page Blocks.")
			return
		}
		req, err := decodeSections(r)
		if err != nil {
			hostapi.WriteError(w, http.StatusBadRequest, "Invalid preview payload.")
			return
		}
		doc, err := rt.Store.Get(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		var sections []section.Section
		for _, item := range req.Sections.([]any) {
			if s, ok := section.NormalizeStored(item); ok {
				sections = append(sections, s)
			}
		}
		payload := rt.Renderer.BuildPayload(audit.WithDocument(r.Context(), id), sections, dataOf(doc))
		hostapi.WriteJSON(w, http.StatusOK, payload)
	}
}

func handlePublished(rt Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := rt.Store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var styles []string
		if rt.Styles != nil {
			styles = rt.Styles()
		}
		out, err := rt.Renderer.Document(audit.WithDocument(r.Context(), doc.ID), render.DocumentInput{
			Data:      dataOf(doc),
			Sections:  doc.Sections(),
			Styles:    styles,
			Injection: rt.Injection,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, out)
	}
}

func dataOf(doc *Document) render.Data {
	return render.Data{DocumentID: doc.ID, Title: doc.Title, Template: doc.Template, Now: time.Now()}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		hostapi.WriteError(w, http.StatusNotFound, "Document no longer exists.")
	case errors.Is(err, ErrInvalidPayload):
		hostapi.WriteError(w, http.StatusBadRequest, "Invalid builder payload.")
	default:
		hostapi.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// AuditValue encodes v for an audit entry. Markup is kept readable.
func AuditValue(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
