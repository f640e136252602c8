// Package message is the cross-document channel between an embedded
// builder and its parent editor. Envelopes are namespaced and every
// inbound event is checked against the resolved parent origin.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ziadkadry99/pageblocks/internal/section"
)

// Namespace tags every envelope of the builder protocol.
const Namespace = "md_pb_builder"

// Version is the envelope version this package emits.
const Version = 1

// Kind names a message type.
type Kind string

const (
	KindInit   Kind = "md_pb_builder_init"
	KindError  Kind = "md_pb_builder_error"
	KindReady  Kind = "md_pb_builder_ready"
	KindCancel Kind = "md_pb_builder_cancel"
	KindApply  Kind = "md_pb_builder_apply"
)

// Inbound reports whether the parent may send this kind to the builder.
func (k Kind) Inbound() bool { return k == KindInit || k == KindError }

var (
	ErrForeign     = errors.New("message is not in the builder namespace")
	ErrUnknownKind = errors.New("unknown message type")
	ErrDirection   = errors.New("message type not accepted in this direction")
)

// Envelope is the wire form of a message.
type Envelope struct {
	Namespace string          `json:"namespace"`
	Version   int             `json:"version,omitempty"`
	Type      Kind            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// Message is one of the closed set of protocol messages.
type Message interface {
	Kind() Kind
	sealed()
}

// Init hydrates the builder with the parent's sections. Sections is
// kept loosely typed so hydration can normalize it.
type Init struct {
	Sections any `json:"sections"`
}

// Error reports a parent-side failure.
type Error struct {
	Message string `json:"message"`
}

// Ready announces that the builder is listening.
type Ready struct {
	DocumentID string `json:"postId"`
}

// Cancel asks the parent to close the builder without saving.
type Cancel struct{}

// Apply hands the edited sections to the parent.
type Apply struct {
	Sections     []section.Export `json:"sections"`
	PageTemplate string           `json:"pageTemplate"`
}

func (Init) Kind() Kind   { return KindInit }
func (Error) Kind() Kind  { return KindError }
func (Ready) Kind() Kind  { return KindReady }
func (Cancel) Kind() Kind { return KindCancel }
func (Apply) Kind() Kind  { return KindApply }

func (Init) sealed()   {}
func (Error) sealed()  {}
func (Ready) sealed()  {}
func (Cancel) sealed() {}
func (Apply) sealed()  {}

// Encode wraps m in a namespaced envelope.
func Encode(m Message) (Envelope, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", m.Kind(), err)
	}
	return Envelope{Namespace: Namespace, Version: Version, Type: m.Kind(), Payload: payload}, nil
}

// Decode turns an envelope into its typed message.
func Decode(env Envelope) (Message, error) {
	if env.Namespace != Namespace {
		return nil, ErrForeign
	}
	payload := env.Payload
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage(`{}`)
	}
	var (
		m   Message
		err error
	)
	switch env.Type {
	case KindInit:
		var v Init
		err = json.Unmarshal(payload, &v)
		m = v
	case KindError:
		var v Error
		err = json.Unmarshal(payload, &v)
		m = v
	case KindReady:
		var v Ready
		err = json.Unmarshal(payload, &v)
		m = v
	case KindCancel:
		m = Cancel{}
	case KindApply:
		var v Apply
		err = json.Unmarshal(payload, &v)
		m = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", env.Type, err)
	}
	return m, nil
}
