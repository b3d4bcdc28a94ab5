package panel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoviz/internal/datagen"
	"github.com/joeblew999/plat-geoviz/internal/engine"
	"github.com/joeblew999/plat-geoviz/internal/events"
	"github.com/joeblew999/plat-geoviz/internal/humastar"
	"github.com/joeblew999/plat-geoviz/internal/templates"
	"github.com/joeblew999/plat-geoviz/internal/viewer"
)

// Browser CustomEvent names.
const (
	EventMapOp     = "map-op"
	EventFitBounds = "fit-bounds"
)

// Handler serves the panel routes.
type Handler struct {
	humastar.Handler
	viewer  *viewer.Controller
	style   *engine.Style
	log     *slog.Logger
	settled *events.Bus[struct{}]
	unsub   func()
}

// New creates the panel handler and starts relaying notification rounds to
// open event streams. Close stops the relay.
func New(v *viewer.Controller, style *engine.Style, renderer *templates.Renderer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		viewer:  v,
		style:   style,
		log:     log,
		settled: events.New[struct{}](),
	}
	h.unsub = v.Store().OnSettled(func() { h.settled.Publish(struct{}{}) })
	return h
}

// Close stops relaying store changes.
func (h *Handler) Close() {
	if h.unsub != nil {
		h.unsub()
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/panel/events", h.Events, huma.OperationTags("panel"))
	huma.Post(api, "/api/v1/panel/settings", h.Settings, huma.OperationTags("panel"))
	huma.Post(api, "/api/v1/panel/reset", h.Reset, huma.OperationTags("panel"))
	huma.Post(api, "/api/v1/panel/ready", h.Ready, huma.OperationTags("panel"))
	huma.Post(api, "/api/v1/panel/zoom", h.Zoom, huma.OperationTags("panel"))
	huma.Post(api, "/api/v1/panel/regenerate", h.Regenerate, huma.OperationTags("panel"))
}

// Events streams the panel state and the engine ops. A new stream first
// gets the current state and a replay of the style, then live updates.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ops := h.style.Ops().Subscribe()
		defer h.style.Ops().Unsubscribe(ops)
		settled := h.settled.Subscribe()
		defer h.settled.Unsubscribe(settled)

		h.sendState(sse)
		cursor, replay := engine.Follow(h.style)
		h.sendOps(sse, replay)

		for {
			select {
			case <-ctx.Done():
				return
			case op, ok := <-ops:
				if !ok {
					return
				}
				h.sendOps(sse, cursor.Next(op))
				h.sendOps(sse, cursor.Catchup(len(ops)))
			case _, ok := <-settled:
				if !ok {
					return
				}
				h.sendState(sse)
				h.sendOps(sse, cursor.Catchup(len(ops)))
			}
		}
	}), nil
}

func (h *Handler) sendOps(sse humastar.SSE, ops []engine.Op) {
	for _, op := range ops {
		sse.Event(EventMapOp, op)
	}
}

// sendState patches every panel signal and fragment.
func (h *Handler) sendState(sse humastar.SSE) {
	st, sel := h.viewer.Store(), h.viewer.Selectors()
	stats := sel.DataStats()

	signals := StateSignals(st)
	signals["total"] = stats.Total
	signals["filtered"] = stats.Filtered
	signals["hasActiveFilters"] = sel.HasActiveFilters()
	sse.Signals(signals)

	sse.Patch(h.Render("stats", stats), "#stats")
	snap := st.Snapshot()
	sse.Patch(h.Render("legend", map[string]any{
		"Mode":         snap.Mode,
		"Primary":      snap.Colors.Primary,
		"Secondary":    snap.Colors.Secondary,
		"AutoSwitched": st.AutoSwitched(),
	}), "#legend")
	sse.Patch(h.Render("categories", map[string]any{
		"Selected":   snap.Filters.Category,
		"Categories": sel.Categories(),
	}), "#category-select")
}

// Settings applies the posted signals as one validated batch. On rejection
// nothing is written and the panel is reset to the stored values.
func (h *Handler) Settings(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	st := h.viewer.Store()
	rejected := st.SetValidatedMultiple(writes(sig, st)...)

	return h.Stream(func(sse humastar.SSE) {
		if len(rejected) > 0 {
			names := make([]string, 0, len(rejected))
			for _, p := range rejected {
				if n, ok := SignalName(p); ok {
					names = append(names, n)
				} else {
					names = append(names, string(p))
				}
			}
			sse.Signals(StateSignals(st))
			sse.Error("Invalid settings: " + strings.Join(names, ", "))
			return
		}
		sse.Success("")
	}), nil
}

// Reset restores the default settings.
func (h *Handler) Reset(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	h.viewer.Store().Reset()
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(StateSignals(h.viewer.Store()))
		sse.Success("Settings reset")
	}), nil
}

// Ready is posted by the browser once its map style has loaded. The mirror
// starts over from an empty style, and becoming ready triggers a rebuild.
func (h *Handler) Ready(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	h.style.Reset()
	h.style.MarkReady()
	h.log.Info("map style ready", "layers", len(h.style.LayerIDs()))
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"styleReady": true})
	}), nil
}

// Zoom forwards the map zoom for the markers/clusters auto switch.
func (h *Handler) Zoom(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if !sig.Has("zoom") {
		return nil, huma.Error400BadRequest("missing zoom signal")
	}
	switched := h.viewer.HandleZoom(sig.Float("zoom"))
	st := h.viewer.Store()
	return h.Stream(func(sse humastar.SSE) {
		if switched {
			sse.Signals(map[string]any{"mode": st.Mode(), "autoSwitched": st.AutoSwitched()})
		}
	}), nil
}

// Regenerate replaces the dataset from the count, distribution and region
// signals, then asks the browser to fit the new extent.
func (h *Handler) Regenerate(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	count := sig.Int("count")
	dist := datagen.Distribution(sig.String("distribution"))
	region := datagen.RegionID(sig.String("region"))
	if dist == "" {
		dist = datagen.Hotspot
	}
	if region == "" {
		region = datagen.RegionUS
	}

	res, genErr := h.viewer.Regenerate(count, dist, region)
	return h.Stream(func(sse humastar.SSE) {
		if genErr != nil {
			sse.Error(genErr.Error())
			return
		}
		sse.Success(fmt.Sprintf("Generated %d points", len(res.Points)))
		if b, ok := h.viewer.Selectors().FilteredBounds(); ok {
			sse.Event(EventFitBounds, boundsDetail(b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()))
		}
	}), nil
}

func boundsDetail(w, s, e, n float64) map[string]any {
	return map[string]any{"bounds": [][2]float64{{w, s}, {e, n}}}
}
