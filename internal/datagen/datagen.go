// Package datagen produces synthetic recycling-site datasets.
package datagen

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geoviz/internal/state"
)

// Distribution selects how points are spread over a region.
type Distribution string

const (
	// Uniform spreads points evenly over the region box.
	Uniform Distribution = "uniform"
	// Clustered scatters points around every metro equally.
	Clustered Distribution = "clustered"
	// Hotspot concentrates most points tightly around the larger metros,
	// with a thin uniform background.
	Hotspot Distribution = "hotspot"
)

var Distributions = []Distribution{Uniform, Clustered, Hotspot}

// MaxCount bounds a single generated dataset.
const MaxCount = 20000

// Categories are the material categories assigned to points.
var Categories = []string{"Plastic", "Paper", "Glass", "Metal", "Organic", "E-Waste"}

var (
	ErrInvalidCount        = errors.New("invalid point count")
	ErrUnknownDistribution = errors.New("unknown distribution")
	ErrUnknownRegion       = errors.New("unknown region")
)

const (
	clusterSpread    = 0.6  // degrees
	hotspotSpread    = 0.15 // degrees
	hotspotShare     = 0.7
	minVolume        = 1
	maxVolume        = 10
	hotspotVolumeAdd = 3
)

// Result is one generated dataset.
type Result struct {
	ID           uuid.UUID
	Region       RegionID
	Distribution Distribution
	Points       []state.LocationPoint
	Collection   *geojson.FeatureCollection
}

// Generator is safe for concurrent use. The same seed yields the same
// sequence of datasets.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a generator seeded with seed.
func New(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate builds count points spread by dist over region.
func (g *Generator) Generate(count int, dist Distribution, region RegionID) (Result, error) {
	if count < 1 || count > MaxCount {
		return Result{}, fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidCount, count, MaxCount)
	}
	r, ok := LookupRegion(region)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var place func() (orb.Point, bool)
	switch dist {
	case Uniform:
		place = func() (orb.Point, bool) { return g.uniform(r.Bound), false }
	case Clustered:
		place = func() (orb.Point, bool) {
			m := r.Metros[g.rng.IntN(len(r.Metros))]
			return g.around(m.Center, clusterSpread, r.Bound), false
		}
	case Hotspot:
		total := 0.0
		for _, m := range r.Metros {
			total += m.Weight
		}
		place = func() (orb.Point, bool) {
			if g.rng.Float64() >= hotspotShare {
				return g.uniform(r.Bound), false
			}
			return g.around(g.weightedMetro(r.Metros, total).Center, hotspotSpread, r.Bound), true
		}
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownDistribution, dist)
	}

	points := make([]state.LocationPoint, count)
	for i := range points {
		pt, hot := place()
		vol := minVolume + g.rng.IntN(maxVolume)
		if hot {
			vol = min(maxVolume, vol+g.rng.IntN(hotspotVolumeAdd+1))
		}
		points[i] = state.LocationPoint{
			ID:              i + 1,
			Lng:             round6(pt.Lon()),
			Lat:             round6(pt.Lat()),
			Category:        Categories[g.rng.IntN(len(Categories))],
			Metro:           NearestMetro(r.Metros, pt).Name,
			RecyclingVolume: vol,
		}
	}

	return Result{
		ID:           uuid.New(),
		Region:       region,
		Distribution: dist,
		Points:       points,
		Collection:   state.NewCollection(points),
	}, nil
}

func (g *Generator) uniform(b orb.Bound) orb.Point {
	return orb.Point{
		b.Min.Lon() + g.rng.Float64()*(b.Max.Lon()-b.Min.Lon()),
		b.Min.Lat() + g.rng.Float64()*(b.Max.Lat()-b.Min.Lat()),
	}
}

// around samples a normal offset from c, clamped to b.
func (g *Generator) around(c orb.Point, sigma float64, b orb.Bound) orb.Point {
	p := orb.Point{c.Lon() + g.rng.NormFloat64()*sigma, c.Lat() + g.rng.NormFloat64()*sigma}
	return clamp(p, b)
}

func (g *Generator) weightedMetro(metros []Metro, total float64) Metro {
	x := g.rng.Float64() * total
	for _, m := range metros {
		if x < m.Weight {
			return m
		}
		x -= m.Weight
	}
	return metros[len(metros)-1]
}

// NearestMetro returns the metro closest to p by great-circle distance.
func NearestMetro(metros []Metro, p orb.Point) Metro {
	best, bestDist := Metro{}, math.Inf(1)
	for _, m := range metros {
		if d := geo.Distance(m.Center, p); d < bestDist {
			best, bestDist = m, d
		}
	}
	return best
}

func clamp(p orb.Point, b orb.Bound) orb.Point {
	return orb.Point{
		math.Max(b.Min.Lon(), math.Min(b.Max.Lon(), p.Lon())),
		math.Max(b.Min.Lat(), math.Min(b.Max.Lat(), p.Lat())),
	}
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
