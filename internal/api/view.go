package api

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-geoviz/internal/layers"
	"github.com/joeblew999/plat-geoviz/internal/selector"
	"github.com/joeblew999/plat-geoviz/internal/state"
)

type StatsBody struct {
	selector.Stats
	HasActiveFilters bool      `json:"hasActiveFilters" doc:"Whether any filter narrows the dataset"`
	Bounds           []float64 `json:"bounds,omitempty" doc:"Filtered extent as [west, south, east, north]"`
	AllCategories    []string  `json:"allCategories" doc:"Distinct categories in the dataset"`
}

type StatsOutput struct {
	Body StatsBody
}

// BoundsSlice renders a bound as [west, south, east, north].
func BoundsSlice(b orb.Bound) []float64 {
	return []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
}

func (h *APIHandler) GetStats(ctx context.Context, input *struct{}) (*StatsOutput, error) {
	sel := h.svc.sel()
	body := StatsBody{
		Stats:            sel.DataStats(),
		HasActiveFilters: sel.HasActiveFilters(),
		AllCategories:    sel.Categories(),
	}
	if b, ok := sel.FilteredBounds(); ok {
		body.Bounds = BoundsSlice(b)
	}
	if body.AllCategories == nil {
		body.AllCategories = []string{}
	}
	return &StatsOutput{Body: body}, nil
}

type LayersBody struct {
	Mode         state.Mode    `json:"mode" doc:"Active visualization mode"`
	AutoSwitched bool          `json:"autoSwitchedToCluster" doc:"Mode came from a zoom-triggered switch"`
	IDs          []string      `json:"ids" doc:"Layer ids the active mode owns"`
	Specs        []layers.Spec `json:"specs" doc:"Layer specs for the current configuration"`
	StyleReady   bool          `json:"styleReady" doc:"Whether the map style has loaded"`
	Rendered     []string      `json:"rendered" doc:"Layer ids currently on the map, bottom to top"`
	Features     int           `json:"features" doc:"Features drawn by the last rebuild"`
}

type LayersOutput struct {
	Body LayersBody
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	st, sel := h.svc.store(), h.svc.sel()
	specs, err := layers.Build(sel.CurrentLayerConfig())
	if err != nil {
		specs = []layers.Spec{}
	}
	body := LayersBody{
		Mode:         st.Mode(),
		AutoSwitched: st.AutoSwitched(),
		IDs:          sel.ActiveLayerIDs(),
		Specs:        specs,
		Features:     h.svc.Viewer.LastCount(),
		Rendered:     []string{},
	}
	if h.svc.Style != nil {
		body.StyleReady = h.svc.Style.IsStyleReady()
		body.Rendered = h.svc.Style.LayerIDs()
	}
	if body.IDs == nil {
		body.IDs = []string{}
	}
	return &LayersOutput{Body: body}, nil
}
