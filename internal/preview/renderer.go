package preview

import (
	"context"

	"github.com/ziadkadry99/pageblocks/internal/hostapi"
	"github.com/ziadkadry99/pageblocks/internal/section"
)

// Renderer delegates a render to the host service.
type Renderer interface {
	Render(ctx context.Context, sections []section.Export) (*Rendered, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, sections []section.Export) (*Rendered, error)

func (f RendererFunc) Render(ctx context.Context, sections []section.Export) (*Rendered, error) {
	return f(ctx, sections)
}

// Request is the body posted to the preview endpoint.
type Request struct {
	Sections []section.Export `json:"sections"`
}

// HTTPRenderer calls the host preview endpoint for one document.
type HTTPRenderer struct {
	client     *hostapi.Client
	documentID string
}

// NewHTTPRenderer returns a renderer posting to
// <endpoint>/api/documents/<id>/preview.
func NewHTTPRenderer(client *hostapi.Client, documentID string) *HTTPRenderer {
	return &HTTPRenderer{client: client, documentID: documentID}
}

func (r *HTTPRenderer) Render(ctx context.Context, sections []section.Export) (*Rendered, error) {
	if r.documentID == "" || !r.client.Configured() {
		return nil, hostapi.ErrConfig
	}
	if sections == nil {
		sections = []section.Export{}
	}
	var out Rendered
	if err := r.client.Post(ctx, "/api/documents/"+r.documentID+"/preview", Request{Sections: sections}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
