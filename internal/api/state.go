package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoviz/internal/state"
)

type StateBody struct {
	state.Snapshot
	AutoSwitched bool `json:"autoSwitchedToCluster" doc:"Mode came from a zoom-triggered switch"`
	Points       int  `json:"points" doc:"Points in the dataset"`
}

type StateOutput struct {
	Body StateBody
}

type PutStateInput struct {
	Path string `path:"path" doc:"Dotted state path" example:"cluster.opacity"`
	Body struct {
		Value any `json:"value" required:"true" doc:"New value; objects for compound paths may be partial"`
	}
}

func (h *APIHandler) stateOutput() *StateOutput {
	st := h.svc.store()
	return &StateOutput{Body: StateBody{
		Snapshot:     st.Snapshot(),
		AutoSwitched: st.AutoSwitched(),
		Points:       len(st.Points()),
	}}
}

func (h *APIHandler) GetState(ctx context.Context, input *struct{}) (*StateOutput, error) {
	return h.stateOutput(), nil
}

// PutState writes one persisted path through validation. Mode writes count as
// an explicit user choice and clear the auto-switch flag.
func (h *APIHandler) PutState(ctx context.Context, input *PutStateInput) (*StateOutput, error) {
	p, ok := state.ParsePath(input.Path)
	if !ok || !p.Persisted() {
		return nil, huma.Error404NotFound("unknown state path: " + input.Path)
	}
	st := h.svc.store()

	v := input.Body.Value
	if len(p.Children()) > 0 {
		cur, _ := st.Get(p)
		merged, err := mergeCompound(cur, v)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		v = merged
	}

	if p == state.PathMode {
		if m, ok := v.(string); ok && h.svc.Viewer.SetMode(state.Mode(m)) {
			return h.stateOutput(), nil
		}
	} else if st.SetValidated(p, v) {
		return h.stateOutput(), nil
	}

	err := st.Validate(p, v)
	if err == nil {
		err = state.ErrTypeMismatch
	}
	return nil, huma.Error422UnprocessableEntity(err.Error())
}

// mergeCompound overlays a partial JSON object onto the current value of a
// compound path, keeping its Go type.
func mergeCompound(cur, v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	switch c := cur.(type) {
	case state.Filters:
		err = json.Unmarshal(raw, &c)
		return c, err
	case state.ClusterSettings:
		err = json.Unmarshal(raw, &c)
		return c, err
	case state.HeatmapSettings:
		err = json.Unmarshal(raw, &c)
		return c, err
	case state.MarkerSettings:
		err = json.Unmarshal(raw, &c)
		return c, err
	case state.Colors:
		err = json.Unmarshal(raw, &c)
		return c, err
	}
	return nil, errors.New("not a compound path")
}

func (h *APIHandler) ResetState(ctx context.Context, input *struct{}) (*StateOutput, error) {
	h.svc.store().Reset()
	return h.stateOutput(), nil
}

func (h *APIHandler) ClearPersisted(ctx context.Context, input *struct{}) (*MessageOutput, error) {
	if h.svc.Persister == nil {
		return nil, huma.Error503ServiceUnavailable("persistence not configured")
	}
	if err := h.svc.Persister.ClearPersistedState(ctx); err != nil {
		return nil, huma.Error500InternalServerError("failed to clear persisted state", err)
	}
	return message("Persisted state cleared"), nil
}
