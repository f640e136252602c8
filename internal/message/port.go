package message

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

var (
	ErrNotEmbedded = errors.New("builder is not embedded in a parent document")
	ErrSource      = errors.New("message did not come from the parent window")
	ErrOrigin      = errors.New("message origin does not match the parent origin")
	ErrNoOrigin    = errors.New("parent origin is not resolved")
)

// NormalizeOrigin resolves raw against base and reduces it to
// scheme://host[:port]. Invalid input yields "".
func NormalizeOrigin(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if b, err := url.Parse(base); err == nil && base != "" {
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme == "" || ref.Host == "" {
		return ""
	}
	return ref.Scheme + "://" + ref.Host
}

// ResolveParentOrigin picks the parent origin from, in order, explicit
// configuration, the pb_parent_origin query value, and the referrer. A
// candidate that does not parse falls back to self, as does having no
// candidate at all.
func ResolveParentOrigin(configured, query, referrer, self string) string {
	selfOrigin := NormalizeOrigin(self, "")
	for _, candidate := range []string{configured, query, referrer} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if o := NormalizeOrigin(candidate, self); o != "" {
			return o
		}
		return selfOrigin
	}
	return selfOrigin
}

// Event is a message event observed by the builder document.
type Event struct {
	FromParent bool            `json:"fromParent"`
	Origin     string          `json:"origin"`
	Data       json.RawMessage `json:"data"`
}

// Post delivers an envelope to the parent window at targetOrigin.
type Post func(env Envelope, targetOrigin string) error

// Port is the builder end of the channel.
type Port struct {
	parentOrigin string
	embedded     bool
	post         Post
}

// NewPort creates a port. embedded is false when the builder runs as a
// top-level page; post may be nil in that case.
func NewPort(parentOrigin string, embedded bool, post Post) *Port {
	return &Port{parentOrigin: parentOrigin, embedded: embedded, post: post}
}

// Embedded reports whether a parent window exists.
func (p *Port) Embedded() bool { return p != nil && p.embedded }

// ParentOrigin returns the origin all posts target.
func (p *Port) ParentOrigin() string { return p.parentOrigin }

// Accept validates an inbound event and decodes it. Events from other
// windows, other origins or other namespaces are rejected, as are
// outbound-only kinds.
func (p *Port) Accept(ev Event) (Message, error) {
	if !ev.FromParent {
		return nil, ErrSource
	}
	if p.parentOrigin == "" {
		return nil, ErrNoOrigin
	}
	if ev.Origin != p.parentOrigin {
		return nil, ErrOrigin
	}
	var env Envelope
	if err := json.Unmarshal(ev.Data, &env); err != nil {
		return nil, ErrForeign
	}
	if env.Namespace != Namespace {
		return nil, ErrForeign
	}
	if !env.Type.Inbound() {
		return nil, ErrDirection
	}
	return Decode(env)
}

// Send posts an outbound message to the parent origin. It never targets
// the wildcard origin.
func (p *Port) Send(m Message) error {
	if !p.Embedded() || p.post == nil {
		return ErrNotEmbedded
	}
	if p.parentOrigin == "" || p.parentOrigin == "*" {
		return ErrNoOrigin
	}
	if m.Kind().Inbound() {
		return ErrDirection
	}
	env, err := Encode(m)
	if err != nil {
		return err
	}
	return p.post(env, p.parentOrigin)
}
