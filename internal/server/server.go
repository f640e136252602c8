// Package server is the pageblocks host service: document storage and
// rendering endpoints, AI generation, the admin console and the live
// builder session over a websocket.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/pageblocks/internal/assist"
	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/auth"
	"github.com/ziadkadry99/pageblocks/internal/autosave"
	"github.com/ziadkadry99/pageblocks/internal/console"
	"github.com/ziadkadry99/pageblocks/internal/db"
	"github.com/ziadkadry99/pageblocks/internal/documents"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
	"github.com/ziadkadry99/pageblocks/internal/preview"
	"github.com/ziadkadry99/pageblocks/internal/render"
	"github.com/ziadkadry99/pageblocks/internal/theme"
)

// Config holds server configuration.
type Config struct {
	Port int
	// PublicURL prefixes builder launch links.
	PublicURL      string
	AllowedOrigins []string
	AllowAll       bool // allow all CORS origins (dev mode)
	// RatePerMinute bounds AI and console requests per client. Zero
	// disables the limit.
	RatePerMinute int
	// AllowTemplateExec lets section templates run when rendering.
	AllowTemplateExec bool

	Delays           preview.Delays
	AutosaveInterval time.Duration
	ApplyMinInterval time.Duration
	AssetFilter      preview.AssetFilter
	Injection        preview.Injection
}

// Deps are the services the routes are built on.
type Deps struct {
	DB       *db.DB
	Signer   *auth.Signer
	Renderer *render.Renderer
	AI       *assist.Service
	Console  *console.Executor
	Catalog  *theme.Catalog
	// Styles are the theme stylesheet URLs linked from published pages.
	Styles []string
}

// Server is the pageblocks host service.
type Server struct {
	cfg        Config
	deps       Deps
	documents  *documents.Store
	audit      *audit.Store
	drafts     autosave.Store
	limiter    *clientLimiter
	router     chi.Router
	httpServer *http.Server

	executed sync.Map // content hash -> struct{}
}

// New creates a server with all dependencies.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		deps:      deps,
		documents: documents.NewStore(deps.DB),
		audit:     audit.NewStore(deps.DB),
		drafts:    autosave.NewSQLiteStore(deps.DB),
		limiter:   newClientLimiter(cfg.RatePerMinute),
	}
	if s.deps.Renderer == nil {
		s.deps.Renderer = render.New(s.canExecute)
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := append([]string{"http://localhost:*", "http://127.0.0.1:*"}, s.cfg.AllowedOrigins...)
	corsOpts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", hostapi.TokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// The live session writes for as long as the socket is open, so only
	// plain requests get a deadline.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		documents.RegisterRoutes(r, documents.Routes{
			Store:      s.documents,
			Signer:     s.deps.Signer,
			Renderer:   s.deps.Renderer,
			Audit:      s.audit,
			BuilderURL: s.builderURL,
			Styles:     func() []string { return s.deps.Styles },
			Injection:  s.cfg.Injection,
		})
		audit.RegisterRoutes(r, s.audit, s.deps.Signer)
		r.Get("/api/theme/classes", s.handleClasses)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Post("/api/ai/generate", s.handleGenerate)
		r.Get("/api/ai/models", s.handleModels)
		r.Post("/api/console/exec", s.handleConsole)
	})

	r.Get("/ws/builder/{id}", s.handleLive)

	return r
}

// canExecute gates section templates on the configured trust setting and
// records the first execution of each distinct template.
func (s *Server) canExecute(ctx context.Context, content string) bool {
	if !s.cfg.AllowTemplateExec {
		return false
	}
	sum := sha256.Sum256([]byte(content))
	key := hex.EncodeToString(sum[:])
	if _, seen := s.executed.LoadOrStore(key, struct{}{}); !seen {
		audit.Record(ctx, s.audit, audit.Entry{
			ActorType: audit.ActorSystem,
			ActorID:   "renderer",
			Action:    audit.ActionTemplateExecuted,
			Scope:     audit.ScopeSection,
			ScopeID:   key[:12],
			Summary:   truncate(content, 120),
		})
	}
	return true
}

func (s *Server) builderURL(id, token string) string {
	return s.cfg.PublicURL + "/ws/builder/" + id + "?pb_nonce=" + token
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Database returns the database connection.
func (s *Server) Database() *db.DB { return s.deps.DB }

// Documents returns the document store.
func (s *Server) Documents() *documents.Store { return s.documents }

// ServerConfig returns the server configuration.
func (s *Server) ServerConfig() Config { return s.cfg }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("pageblocks server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
