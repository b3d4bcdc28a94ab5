package state

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// NewCollection converts points to a GeoJSON point collection carrying id,
// category, metro and recyclingVolume properties.
func NewCollection(points []LocationPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(points))
	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.Lng, p.Lat})
		f.ID = p.ID
		f.Properties["id"] = p.ID
		f.Properties["category"] = p.Category
		f.Properties["metro"] = p.Metro
		f.Properties["recyclingVolume"] = p.RecyclingVolume
		fc.Append(f)
	}
	return fc
}
