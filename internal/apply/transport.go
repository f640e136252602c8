// Package apply commits the edited sections to the host, trying a
// direct parent callback, then a cross-document message, then the host
// network endpoint.
package apply

import (
	"context"
	"errors"
	"fmt"

	"github.com/ziadkadry99/pageblocks/internal/hostapi"
	"github.com/ziadkadry99/pageblocks/internal/message"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

// Payload is the snapshot handed to a transport.
type Payload struct {
	Sections     []section.Export `json:"sections"`
	PageTemplate string           `json:"pageTemplate"`
}

// Outcome describes a handled apply.
type Outcome struct {
	Transport string
	// Echo holds the host's normalized sections. Only the network
	// transport returns them.
	Echo    []section.Export
	EditURL string
}

// ErrNotHandled makes the protocol fall through to the next transport.
var ErrNotHandled = errors.New("apply not handled")

// Transport delivers a payload to the host.
type Transport interface {
	Name() string
	Available() bool
	// Remote transports run off the event loop.
	Remote() bool
	Submit(ctx context.Context, p Payload) (*Outcome, error)
}

// Callback is a parent-provided apply function. A true return means the
// parent handled the payload.
type Callback func(sections []section.Export, pageTemplate string) bool

// DirectCall invokes a parent callback in-process.
type DirectCall struct {
	Callback Callback
}

func (d *DirectCall) Name() string    { return "direct" }
func (d *DirectCall) Available() bool { return d != nil && d.Callback != nil }
func (d *DirectCall) Remote() bool    { return false }

func (d *DirectCall) Submit(_ context.Context, p Payload) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, ErrNotHandled
		}
	}()
	if !d.Callback(p.Sections, p.PageTemplate) {
		return nil, ErrNotHandled
	}
	return &Outcome{Transport: d.Name()}, nil
}

// MessageTransport posts an apply envelope to the parent document.
type MessageTransport struct {
	Port *message.Port
}

func (m *MessageTransport) Name() string    { return "message" }
func (m *MessageTransport) Available() bool { return m != nil && m.Port.Embedded() }
func (m *MessageTransport) Remote() bool    { return false }

func (m *MessageTransport) Submit(_ context.Context, p Payload) (*Outcome, error) {
	if err := m.Port.Send(message.Apply{Sections: p.Sections, PageTemplate: p.PageTemplate}); err != nil {
		return nil, fmt.Errorf("posting apply message: %w", err)
	}
	return &Outcome{Transport: m.Name()}, nil
}

// NetworkTransport posts to the host apply endpoint of one document.
type NetworkTransport struct {
	Client     *hostapi.Client
	DocumentID string
}

// Response is the data of a successful network apply.
type Response struct {
	Sections any    `json:"sections"`
	EditURL  string `json:"editUrl,omitempty"`
	Template string `json:"template,omitempty"`
}

func (n *NetworkTransport) Name() string    { return "network" }
func (n *NetworkTransport) Available() bool { return n != nil }
func (n *NetworkTransport) Remote() bool    { return true }

// Validate reports missing endpoint, document or token before anything
// is sent.
func (n *NetworkTransport) Validate() error {
	if n.DocumentID == "" || !n.Client.Configured() {
		return hostapi.ErrConfig
	}
	return nil
}

func (n *NetworkTransport) Submit(ctx context.Context, p Payload) (*Outcome, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if p.Sections == nil {
		p.Sections = []section.Export{}
	}
	var resp Response
	if err := n.Client.Post(ctx, "/api/documents/"+n.DocumentID+"/apply", p, &resp); err != nil {
		return nil, err
	}
	out := &Outcome{Transport: n.Name(), EditURL: resp.EditURL}
	if sections, ok := section.NormalizeAll(resp.Sections); ok {
		out.Echo = section.ExportAll(sections)
	}
	return out, nil
}

// Message normalizes an apply error to the text shown to the user.
func Message(err error) string {
	if errors.Is(err, hostapi.ErrConfig) {
		return "Builder save endpoint is missing. Open this builder from the host editor."
	}
	if errors.Is(err, hostapi.ErrMalformed) {
		return "Invalid response from save endpoint."
	}
	return hostapi.Message(err, "Could not save Page Blocks.")
}
