package api

import (
	"context"
	"database/sql"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoviz/internal/db"
)

const maxQueryRows = 1000

// DBHandler serves the DuckDB mirror of the dataset. A nil database answers
// 503 so the routes stay in the OpenAPI document.
type DBHandler struct {
	db *sql.DB
}

func NewDBHandler(conn *sql.DB) *DBHandler {
	return &DBHandler{db: conn}
}

func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
}

func (h *DBHandler) ready() error {
	if h.db == nil {
		return huma.Error503ServiceUnavailable("analytical database disabled")
	}
	return nil
}

type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"Table names"`
	}
}

func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	names, err := db.Tables(ctx, h.db)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list tables", err)
	}
	out := &TablesOutput{}
	out.Body.Tables = names
	return out, nil
}

type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"Read-only SQL" example:"SELECT category, count(*) FROM points GROUP BY 1"`
	}
}

type QueryBody struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated" doc:"More rows matched than were returned"`
}

// Query runs a read-only statement against the mirror, returning at most
// 1000 rows.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*struct{ Body QueryBody }, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	res, err := db.Query(ctx, h.db, input.Body.Query, maxQueryRows)
	if errors.Is(err, db.ErrNotReadOnly) {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if err != nil {
		return nil, huma.Error400BadRequest("query failed: " + err.Error())
	}
	return &struct{ Body QueryBody }{Body: QueryBody{
		Columns:   res.Columns,
		Rows:      res.Rows,
		Count:     len(res.Rows),
		Truncated: res.Truncated,
	}}, nil
}
