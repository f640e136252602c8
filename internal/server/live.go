package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/auth"
	"github.com/ziadkadry99/pageblocks/internal/builder"
	"github.com/ziadkadry99/pageblocks/internal/documents"
	"github.com/ziadkadry99/pageblocks/internal/editor"
	"github.com/ziadkadry99/pageblocks/internal/hostapi"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

const (
	liveWriteWait   = 10 * time.Second
	livePongWait    = 60 * time.Second
	livePingPeriod  = 50 * time.Second
	liveMaxMessage  = 8 << 20
	liveSendBacklog = 256
	// loopbackHost names the in-process endpoint builder sessions call.
	loopbackHost = "http://pageblocks.internal"
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// checkOrigin accepts same-host requests and configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.cfg.AllowAll {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) || u.Hostname() == "localhost" || u.Hostname() == "127.0.0.1" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	return false
}

// liveConn serializes writes to one websocket.
type liveConn struct {
	id   string
	conn *websocket.Conn
	send chan builder.View
	done chan struct{}
	once sync.Once
}

func (c *liveConn) emit(v builder.View) {
	select {
	case c.send <- v:
	case <-c.done:
	default:
		log.Printf("[live] %s: send backlog full, dropping %s view", c.id, v.Kind)
	}
}

func (c *liveConn) writeLoop() {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case v := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteJSON(v); err != nil {
				log.Printf("[live] %s: write: %v", c.id, err)
				c.close()
				return
			}
			if v.Kind == builder.ViewClosed {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "builder closed"),
					time.Now().Add(liveWriteWait))
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *liveConn) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// handleLive runs one builder session over a websocket. Client frames
// are builder events; every session view is written back as JSON.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token := auth.FromRequest(r)
	if s.deps.Signer == nil || s.deps.Signer.Verify(token, auth.ActionBuilder, id) != nil {
		hostapi.WriteError(w, http.StatusForbidden, "You do not have permission to edit Page Blocks.")
		return
	}
	doc, err := s.documents.Get(r.Context(), id)
	if errors.Is(err, documents.ErrNotFound) {
		hostapi.WriteError(w, http.StatusNotFound, "Document no longer exists.")
		return
	}
	if err != nil {
		hostapi.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	upgrader := liveUpgrader
	upgrader.CheckOrigin = s.checkOrigin
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[live] websocket upgrade: %v", err)
		return
	}

	live := &liveConn{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan builder.View, liveSendBacklog),
		done: make(chan struct{}),
	}
	defer live.close()

	sess := builder.New(s.sessionConfig(doc, token, r.RemoteAddr), live.emit)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess.Start(ctx)
	go live.writeLoop()
	log.Printf("[live] %s: builder session opened for %s", live.id, id)

	conn.SetReadLimit(liveMaxMessage)
	conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[live] %s: read: %v", live.id, err)
			}
			break
		}
		var ev builder.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			live.emit(builder.View{Kind: builder.ViewAlert, Message: "Invalid builder event."})
			continue
		}
		if ev.Type == builder.EventRecover && !ev.Restore {
			var discarding bool
			if sess.Do(func() { discarding = sess.Recovering() }) == nil && discarding {
				audit.Record(r.Context(), s.audit, audit.Entry{
					ActorType:  audit.ActorUser,
					ActorID:    "builder:" + id,
					Action:     audit.ActionDraftDiscarded,
					Scope:      audit.ScopeDocument,
					ScopeID:    id,
					DocumentID: id,
					Summary:    "Discarded local draft",
				})
			}
		}
		if err := sess.Dispatch(ctx, ev); err != nil {
			break
		}
	}

	sess.Close()
	sess.Wait()
	log.Printf("[live] %s: builder session closed", live.id)
}

// sessionConfig wires a builder session to this server. Remote calls
// go through the server's own routes in-process, so they pass the same
// signing, rate limiting and audit as external clients.
func (s *Server) sessionConfig(doc *documents.Document, token, remoteAddr string) builder.Config {
	client := hostapi.NewClient(loopbackHost, token)
	client.HTTP = &http.Client{
		Timeout:   120 * time.Second,
		Transport: &loopback{handler: s.router, remoteAddr: remoteAddr},
	}
	filter := s.cfg.AssetFilter
	return builder.Config{
		DocumentID:       doc.ID,
		PageTemplate:     documents.TemplateSlug(doc.Template),
		Sections:         section.ToRaw(section.ExportAll(doc.Sections())),
		PageURL:          s.cfg.PublicURL + "/p/" + doc.ID,
		Client:           client,
		Drafts:           s.drafts,
		Delays:           s.cfg.Delays,
		AutosaveInterval: s.cfg.AutosaveInterval,
		ApplyMinInterval: s.cfg.ApplyMinInterval,
		AssetFilter:      &filter,
		Injection:        s.cfg.Injection,
		Classes: func() editor.Vocabulary {
			if s.deps.Catalog == nil {
				return nil
			}
			return editor.NewVocabulary(s.deps.Catalog.Classes())
		},
		RichEditors:    true,
		ConsoleEnabled: s.deps.Console != nil && s.deps.Console.Enabled,
	}
}

// loopback is an http.RoundTripper that serves requests with handler.
type loopback struct {
	handler    http.Handler
	remoteAddr string
}

func (l *loopback) RoundTrip(req *http.Request) (*http.Response, error) {
	in := req.Clone(req.Context())
	in.RemoteAddr = l.remoteAddr
	in.RequestURI = req.URL.RequestURI()
	if in.Body == nil {
		in.Body = http.NoBody
	}
	rw := &bufferedResponse{header: make(http.Header)}
	l.handler.ServeHTTP(rw, in)
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return &http.Response{
		Status:        http.StatusText(rw.status),
		StatusCode:    rw.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        rw.header,
		Body:          io.NopCloser(bytes.NewReader(rw.body.Bytes())),
		ContentLength: int64(rw.body.Len()),
		Request:       req,
	}, nil
}

// bufferedResponse collects a handler's response in memory.
type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}
