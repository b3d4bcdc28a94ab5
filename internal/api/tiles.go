package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoviz/internal/layers"
	"github.com/joeblew999/plat-geoviz/internal/tiles"
)

type TileInput struct {
	Z int `path:"z" minimum:"0" maximum:"14" doc:"Zoom level"`
	X int `path:"x" minimum:"0" doc:"Tile column"`
	Y int `path:"y" minimum:"0" doc:"Tile row"`
}

type TileOutput struct {
	Status       int
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// GetTile serves the filtered dataset as a Mapbox vector tile with one layer
// named after the map source. Tiles without points answer 204.
func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	t, err := tiles.Validate(input.Z, input.X, input.Y)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	out := &TileOutput{Status: http.StatusNoContent, CacheControl: "no-store"}

	fc, ok := h.svc.sel().FilteredCollection()
	if !ok {
		return out, nil
	}
	data, err := tiles.Encode(fc, t, layers.SourceID, false)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode tile", err)
	}
	if data == nil {
		return out, nil
	}
	out.Status = http.StatusOK
	out.ContentType = "application/vnd.mapbox-vector-tile"
	out.Body = data
	return out, nil
}
