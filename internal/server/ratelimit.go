package server

import (
	"container/list"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ziadkadry99/pageblocks/internal/hostapi"
)

const (
	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

type clientEntry struct {
	ip       string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter is a per-client token bucket with LRU eviction. A zero
// rate lets every request through.
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recent

	stop     chan struct{}
	stopOnce sync.Once
}

func newClientLimiter(perMinute int) *clientLimiter {
	l := &clientLimiter{
		items: make(map[string]*list.Element),
		order: list.New(),
		stop:  make(chan struct{}),
	}
	if perMinute <= 0 {
		return l
	}
	l.limit = rate.Limit(float64(perMinute) / 60)
	l.burst = max(1, perMinute/6)
	go l.sweep()
	return l
}

func (l *clientLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for e := l.order.Back(); e != nil; {
				prev := e.Prev()
				if c := e.Value.(*clientEntry); now.Sub(c.lastSeen) > clientIdleTTL {
					l.order.Remove(e)
					delete(l.items, c.ip)
				}
				e = prev
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Allow reports whether ip may make another request now.
func (l *clientLimiter) Allow(ip string) bool {
	if l.limit == 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	elem, ok := l.items[ip]
	if ok {
		l.order.MoveToFront(elem)
		elem.Value.(*clientEntry).lastSeen = time.Now()
	} else {
		if l.order.Len() >= maxTrackedClients {
			if back := l.order.Back(); back != nil {
				l.order.Remove(back)
				delete(l.items, back.Value.(*clientEntry).ip)
			}
		}
		elem = l.order.PushFront(&clientEntry{ip: ip, limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: time.Now()})
		l.items[ip] = elem
	}
	return elem.Value.(*clientEntry).limiter.Allow()
}

// Middleware rejects requests over the limit with 429.
func (l *clientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			hostapi.WriteError(w, http.StatusTooManyRequests, "Too many requests. Try again shortly.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stop ends the idle sweep.
func (l *clientLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// clientIP extracts the client address. X-Forwarded-For and X-Real-IP
// are trusted only from loopback or private peers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer != nil && (peer.IsLoopback() || peer.IsPrivate()) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	if peer != nil {
		return peer.String()
	}
	return host
}
