package datagen

import "github.com/paulmach/orb"

// RegionID names a generation area.
type RegionID string

const (
	RegionUS RegionID = "us"
	RegionEU RegionID = "eu"
)

// Metro is a population center points gather around. Weight biases hotspot
// generation toward bigger metros.
type Metro struct {
	Name   string
	Center orb.Point
	Weight float64
}

// Region is a bounding box plus its metros.
type Region struct {
	ID     RegionID
	Name   string
	Bound  orb.Bound
	Metros []Metro
}

var regions = map[RegionID]Region{
	RegionUS: {
		ID:    RegionUS,
		Name:  "Continental US",
		Bound: orb.Bound{Min: orb.Point{-124.7, 24.5}, Max: orb.Point{-66.9, 49.4}},
		Metros: []Metro{
			{"New York", orb.Point{-74.006, 40.7128}, 10},
			{"Los Angeles", orb.Point{-118.2437, 34.0522}, 8},
			{"Chicago", orb.Point{-87.6298, 41.8781}, 6},
			{"Houston", orb.Point{-95.3698, 29.7604}, 5},
			{"Phoenix", orb.Point{-112.074, 33.4484}, 4},
			{"Seattle", orb.Point{-122.3321, 47.6062}, 4},
			{"Denver", orb.Point{-104.9903, 39.7392}, 3},
			{"Atlanta", orb.Point{-84.388, 33.749}, 4},
			{"Miami", orb.Point{-80.1918, 25.7617}, 4},
		},
	},
	RegionEU: {
		ID:    RegionEU,
		Name:  "Western Europe",
		Bound: orb.Bound{Min: orb.Point{-10.5, 36.0}, Max: orb.Point{24.0, 59.5}},
		Metros: []Metro{
			{"London", orb.Point{-0.1276, 51.5072}, 10},
			{"Paris", orb.Point{2.3522, 48.8566}, 9},
			{"Berlin", orb.Point{13.405, 52.52}, 7},
			{"Madrid", orb.Point{-3.7038, 40.4168}, 6},
			{"Rome", orb.Point{12.4964, 41.9028}, 5},
			{"Amsterdam", orb.Point{4.9041, 52.3676}, 4},
			{"Vienna", orb.Point{16.3738, 48.2082}, 3},
			{"Munich", orb.Point{11.582, 48.1351}, 3},
		},
	},
}

// Regions lists the known region ids.
var Regions = []RegionID{RegionUS, RegionEU}

// LookupRegion returns the region for id.
func LookupRegion(id RegionID) (Region, bool) {
	r, ok := regions[id]
	return r, ok
}
