// Package humastar runs Datastar server-sent events through Huma stream
// responses. Panel handlers embed [Handler], read the browser's signals with
// [SignalsInput] and answer through an [SSE].
package humastar

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-geoviz/internal/templates"
)

// Handler is embedded by handlers that answer with Datastar events.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream wraps fn as the body of a Huma stream response.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{Body: func(ctx huma.Context) { fn(NewSSE(ctx)) }}
}

// Render executes the named fragment. Without a renderer, or when the
// template fails, the result is empty and [SSE.Patch] drops it.
func (h *Handler) Render(name string, data any) string {
	if h.Renderer == nil {
		return ""
	}
	html, err := h.Renderer.Render(name, data)
	if err != nil {
		return ""
	}
	return html
}

// SSE is a Datastar event writer bound to one Huma request.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE unwraps the net/http pair behind ctx. Only the humago adapter is
// supported.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the children of selector with html.
func (s SSE) Patch(html, selector string) {
	if html == "" {
		return
	}
	s.PatchElements(html, datastar.WithSelector(selector), datastar.WithModeInner())
}

// The panel shows at most one of these two banners.
const (
	signalError   = "error"
	signalSuccess = "success"
)

func (s SSE) flash(set, clear, msg string) {
	s.MarshalAndPatchSignals(map[string]any{set: msg, clear: ""})
}

// Error shows msg in the error banner and clears the success one.
func (s SSE) Error(msg string) { s.flash(signalError, signalSuccess, msg) }

// Success shows msg in the success banner and clears the error one.
func (s SSE) Success(msg string) { s.flash(signalSuccess, signalError, msg) }

func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Event fires a CustomEvent named name on the document with detail attached.
func (s SSE) Event(name string, detail any) {
	s.DispatchCustomEvent(name, detail)
}
