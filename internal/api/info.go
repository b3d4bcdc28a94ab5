package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoviz/internal/state"
)

type InfoHandler struct {
	dataDir string
	kv      string
	dbOK    bool
}

func NewInfoHandler(dataDir, kv string, dbOK bool) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, kv: kv, dbOK: dbOK}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string       `json:"name" doc:"Service name"`
	Version  string       `json:"version" doc:"Service version"`
	DataDir  string       `json:"data_dir" doc:"Data directory path"`
	KV       string       `json:"kv" doc:"Persistence backend" example:"badger"`
	DB       bool         `json:"db" doc:"Whether the analytical database is available"`
	Modes    []state.Mode `json:"modes" doc:"Visualization modes"`
	Features []string     `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"clusters", "heatmap", "markers", "history", "persistence", "datastar"}
	if h.dbOK {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-geoviz",
		Version:  "0.1.0",
		DataDir:  h.dataDir,
		KV:       h.kv,
		DB:       h.dbOK,
		Modes:    state.Modes,
		Features: features,
	}}, nil
}
