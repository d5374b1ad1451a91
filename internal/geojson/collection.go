// Package geojson accumulates point features and writes them out as a
// GeoJSON FeatureCollection.
package geojson

import (
	"encoding/json"
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Geometry is a GeoJSON point geometry. Coordinates are [longitude, latitude].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Properties holds the place attributes attached to a feature.
type Properties struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Feature is a single GeoJSON point feature. It is a plain comparable value:
// two features built from the same inputs are equal, which is what the
// collection's duplicate check relies on.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// FeatureCollection is the serialized shape of a Collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Collection accumulates features in arrival order, dropping exact
// duplicates. It is owned by a single run and is not safe for concurrent use.
type Collection struct {
	features []Feature
	count    int
}

// NewCollection returns an empty Collection. The features slice is
// pre-allocated so an empty collection still serializes as "features": [].
func NewCollection() *Collection {
	return &Collection{features: []Feature{}}
}

// Add builds a point feature from the inputs and appends it unless an
// identical feature is already present, reporting whether it was accepted.
// The duplicate check is a linear scan over the stored features; collections
// here stay small, so that is fine.
func (c *Collection) Add(longitude, latitude float64, address, name string) bool {
	f := Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: [2]float64{longitude, latitude},
		},
		Properties: Properties{Address: address, Name: name},
	}
	if slices.Contains(c.features, f) {
		return false
	}
	c.features = append(c.features, f)
	c.count++
	return true
}

// Count returns the number of accepted features.
func (c *Collection) Count() int { return c.count }

// Snapshot returns the current collection shape. The features slice is shared
// with the collection, not copied.
func (c *Collection) Snapshot() FeatureCollection {
	return FeatureCollection{Type: "FeatureCollection", Features: c.features}
}

// Bounds returns the extent of the accumulated points, or nil when the
// collection is empty.
func (c *Collection) Bounds() *geom.Bounds {
	if len(c.features) == 0 {
		return nil
	}
	b := geom.NewBounds(geom.XY)
	for _, f := range c.features {
		b.Extend(geom.NewPointFlat(geom.XY, f.Geometry.Coordinates[:]))
	}
	return b
}

// WriteFile writes the collection as pretty-printed JSON to <name>.geojson,
// replacing any existing file. Non-ASCII text is written literally rather
// than escaped.
func (c *Collection) WriteFile(name string) error {
	if c == nil {
		return eris.New("geojson: write on nil collection")
	}

	f, err := os.Create(name + ".geojson")
	if err != nil {
		return eris.Wrapf(err, "geojson: create %s.geojson", name)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.Snapshot()); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrap(err, "geojson: encode collection")
	}
	return eris.Wrapf(f.Close(), "geojson: close %s.geojson", name)
}
