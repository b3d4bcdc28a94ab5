package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geoviz/internal/datagen"
)

type RegenerateInput struct {
	Body struct {
		Count        int    `json:"count" minimum:"1" maximum:"20000" default:"1000" doc:"Number of points"`
		Distribution string `json:"distribution" enum:"uniform,clustered,hotspot" default:"hotspot" doc:"Spatial distribution"`
		Region       string `json:"region" enum:"us,eu" default:"us" doc:"Region to scatter points over"`
	}
}

type RegenerateBody struct {
	ID           string    `json:"id" doc:"Dataset id"`
	Count        int       `json:"count" doc:"Points generated"`
	Distribution string    `json:"distribution" doc:"Spatial distribution"`
	Region       string    `json:"region" doc:"Region"`
	Bounds       []float64 `json:"bounds,omitempty" doc:"Filtered extent as [west, south, east, north]"`
}

type RegenerateOutput struct {
	Body RegenerateBody
}

func (h *APIHandler) Regenerate(ctx context.Context, input *RegenerateInput) (*RegenerateOutput, error) {
	in := input.Body
	res, err := h.svc.Viewer.Regenerate(in.Count, datagen.Distribution(in.Distribution), datagen.RegionID(in.Region))
	if err != nil {
		if errors.Is(err, datagen.ErrInvalidCount) || errors.Is(err, datagen.ErrUnknownDistribution) || errors.Is(err, datagen.ErrUnknownRegion) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("regenerate failed", err)
	}
	body := RegenerateBody{
		ID:           res.ID.String(),
		Count:        len(res.Points),
		Distribution: string(res.Distribution),
		Region:       string(res.Region),
	}
	if b, ok := h.svc.sel().FilteredBounds(); ok {
		body.Bounds = BoundsSlice(b)
	}
	return &RegenerateOutput{Body: body}, nil
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// GetFiltered returns the filtered dataset as a GeoJSON FeatureCollection.
// An empty filter result is an empty collection.
func (h *APIHandler) GetFiltered(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	fc, ok := h.svc.sel().FilteredCollection()
	if !ok {
		fc = geojson.NewFeatureCollection()
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode GeoJSON", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}
