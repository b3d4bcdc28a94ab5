// Package api defines the Huma API routes and handlers.
package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoviz/internal/engine"
	"github.com/joeblew999/plat-geoviz/internal/persist"
	"github.com/joeblew999/plat-geoviz/internal/selector"
	"github.com/joeblew999/plat-geoviz/internal/state"
	"github.com/joeblew999/plat-geoviz/internal/viewer"
)

// Services holds the dependencies for API handlers.
type Services struct {
	Viewer    *viewer.Controller
	Style     *engine.Style
	Persister *persist.Persister // optional
}

func (s *Services) store() *state.Store { return s.Viewer.Store() }
func (s *Services) sel() *selector.Selectors { return s.Viewer.Selectors() }

// Types

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type MessageOutput struct {
	Body MessageBody
}

func message(msg string) *MessageOutput {
	return &MessageOutput{Body: MessageBody{Message: msg}}
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterState registers state snapshot and write routes.
func (h *APIHandler) RegisterState(api huma.API) {
	huma.Get(api, "/api/v1/state", h.GetState, huma.OperationTags("state"))
	huma.Put(api, "/api/v1/state/{path}", h.PutState, huma.OperationTags("state"))
	huma.Post(api, "/api/v1/state/reset", h.ResetState, huma.OperationTags("state"))
	huma.Delete(api, "/api/v1/state/persisted", h.ClearPersisted, huma.OperationTags("state"))
}

// RegisterView registers the derived read routes.
func (h *APIHandler) RegisterView(api huma.API) {
	huma.Get(api, "/api/v1/stats", h.GetStats, huma.OperationTags("view"))
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("view"))
}

// RegisterData registers dataset routes.
func (h *APIHandler) RegisterData(api huma.API) {
	huma.Post(api, "/api/v1/data/regenerate", h.Regenerate, huma.OperationTags("data"))
	huma.Get(api, "/api/v1/data/filtered", h.GetFiltered, huma.OperationTags("data"))
}

// RegisterTiles registers the vector tile route.
func (h *APIHandler) RegisterTiles(api huma.API) {
	huma.Get(api, "/api/v1/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("data"))
}

// RegisterHistory registers the change history routes.
func (h *APIHandler) RegisterHistory(api huma.API) {
	huma.Get(api, "/api/v1/history", h.GetHistory, huma.OperationTags("history"))
	huma.Delete(api, "/api/v1/history", h.ClearHistory, huma.OperationTags("history"))
	huma.Post(api, "/api/v1/history/enable", h.EnableHistory, huma.OperationTags("history"))
	huma.Post(api, "/api/v1/history/disable", h.DisableHistory, huma.OperationTags("history"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}
