// Package nearby orchestrates one search run: resolve an address to a
// coordinate, discover places around it for each search term, and accumulate
// the deduplicated features.
package nearby

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-cli/internal/geojson"
	"github.com/sells-group/nearby-cli/pkg/here"
)

// Client is the slice of the HERE client the pipeline depends on.
type Client interface {
	Geocode(ctx context.Context, address string) (*here.Position, error)
	Discover(ctx context.Context, term string, at here.Position, radius int) ([]here.Place, error)
}

// PositionCache is an optional lookaside cache for resolved addresses.
type PositionCache interface {
	GetPosition(ctx context.Context, address string) (*here.Position, bool, error)
	PutPosition(ctx context.Context, address string, pos here.Position) error
}

// Pipeline runs searches. It is stateless across runs; each Run owns its
// collection and executes fully sequentially.
type Pipeline struct {
	client     Client
	cache      PositionCache
	radius     int
	maxPerTerm int
}

// New creates a Pipeline. cache may be nil to disable the geocode cache.
func New(client Client, cache PositionCache, radius, maxPerTerm int) *Pipeline {
	return &Pipeline{
		client:     client,
		cache:      cache,
		radius:     radius,
		maxPerTerm: maxPerTerm,
	}
}

// Resolve returns the coordinate for address, consulting the cache first.
// Cache failures are logged and treated as misses; the cache is an
// accelerator, not a dependency.
func (p *Pipeline) Resolve(ctx context.Context, address string) (*here.Position, error) {
	if p.cache != nil {
		pos, ok, err := p.cache.GetPosition(ctx, address)
		switch {
		case err != nil:
			zap.L().Warn("nearby: cache lookup failed", zap.Error(err))
		case ok:
			zap.L().Debug("nearby: geocode cache hit", zap.String("address", address))
			return pos, nil
		}
	}

	pos, err := p.client.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.PutPosition(ctx, address, *pos); err != nil {
			zap.L().Warn("nearby: cache store failed", zap.Error(err))
		}
	}
	return pos, nil
}

// Run resolves address and accumulates nearby places for every term, in
// order. A failed resolution or discover call aborts the run; a term with no
// results just contributes nothing.
func (p *Pipeline) Run(ctx context.Context, address string, terms []string) (*geojson.Collection, error) {
	at, err := p.Resolve(ctx, address)
	if err != nil {
		return nil, eris.Wrapf(err, "nearby: resolve %q", address)
	}

	log := zap.L().With(zap.String("address", address))
	log.Info("resolved address",
		zap.Float64("lat", at.Latitude),
		zap.Float64("lon", at.Longitude),
	)

	fc := geojson.NewCollection()
	for _, term := range terms {
		places, err := p.client.Discover(ctx, term, *at, p.radius)
		if err != nil {
			return nil, eris.Wrapf(err, "nearby: discover %q", term)
		}
		if len(places) == 0 {
			log.Debug("no places for term", zap.String("term", term))
			continue
		}
		p.accumulate(fc, term, places)
	}

	log.Info("accumulated features", zap.Int("count", fc.Count()))
	return fc, nil
}

// accumulate feeds one term's candidates into the collection. The per-term
// cap is checked before the accepted counter is incremented, so a term can
// accept up to maxPerTerm+1 features.
func (p *Pipeline) accumulate(fc *geojson.Collection, term string, places []here.Place) {
	accepted := 0
	for _, place := range places {
		if accepted > p.maxPerTerm {
			break
		}

		lat, lon, ok := placeCoordinate(place)
		if !ok {
			zap.L().Debug("nearby: place without usable position",
				zap.String("term", term),
				zap.String("title", place.Title),
			)
		}

		if fc.Add(lon, lat, place.Vicinity, place.Title) {
			accepted++
		}
	}
}

// placeCoordinate extracts (lat, lon) from a candidate's position pair.
// A missing or short pair yields the (0, 0) placeholder.
func placeCoordinate(place here.Place) (lat, lon float64, ok bool) {
	if len(place.Position) < 2 {
		return 0, 0, false
	}
	return place.Position[0], place.Position[1], true
}
