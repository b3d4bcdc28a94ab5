package api

import (
	"context"

	"github.com/joeblew999/plat-geoviz/internal/humastar"
	"github.com/joeblew999/plat-geoviz/internal/state"
)

type HistoryInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Most recent entries to return; 0 returns all"`
}

type HistoryBody struct {
	Enabled bool                 `json:"enabled" doc:"Whether changes are being recorded"`
	Entries []state.HistoryEntry `json:"entries" doc:"Recorded changes, oldest first"`
}

// Actions offers the toggle that fits the current recording state.
func (b HistoryBody) Actions() []humastar.Action {
	if b.Enabled {
		return []humastar.Action{{Rel: "disable", Href: "/api/v1/history/disable", Method: "POST", Title: "Stop recording"}}
	}
	return []humastar.Action{{Rel: "enable", Href: "/api/v1/history/enable", Method: "POST", Title: "Start recording"}}
}

type HistoryOutput struct {
	Body HistoryBody
}

func (h *APIHandler) GetHistory(ctx context.Context, input *HistoryInput) (*HistoryOutput, error) {
	st := h.svc.store()
	entries := st.History(input.Limit)
	if entries == nil {
		entries = []state.HistoryEntry{}
	}
	return &HistoryOutput{Body: HistoryBody{Enabled: st.HistoryEnabled(), Entries: entries}}, nil
}

func (h *APIHandler) ClearHistory(ctx context.Context, input *struct{}) (*MessageOutput, error) {
	h.svc.store().ClearHistory()
	return message("History cleared"), nil
}

func (h *APIHandler) EnableHistory(ctx context.Context, input *struct{}) (*MessageOutput, error) {
	h.svc.store().EnableHistory()
	return message("History enabled"), nil
}

func (h *APIHandler) DisableHistory(ctx context.Context, input *struct{}) (*MessageOutput, error) {
	h.svc.store().DisableHistory()
	return message("History disabled"), nil
}
