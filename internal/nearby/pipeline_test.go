package nearby

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nearby-cli/pkg/here"
)

// fakeClient scripts Geocode and Discover responses and records calls.
type fakeClient struct {
	position     *here.Position
	geocodeErr   error
	geocodeCalls int

	places      map[string][]here.Place
	discoverErr map[string]error
	discovered  []string
}

func (f *fakeClient) Geocode(_ context.Context, _ string) (*here.Position, error) {
	f.geocodeCalls++
	if f.geocodeErr != nil {
		return nil, f.geocodeErr
	}
	return f.position, nil
}

func (f *fakeClient) Discover(_ context.Context, term string, _ here.Position, _ int) ([]here.Place, error) {
	f.discovered = append(f.discovered, term)
	if err := f.discoverErr[term]; err != nil {
		return nil, err
	}
	return f.places[term], nil
}

// fakeCache is an in-memory PositionCache.
type fakeCache struct {
	positions map[string]here.Position
	getErr    error
	puts      int
}

func (f *fakeCache) GetPosition(_ context.Context, address string) (*here.Position, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	pos, ok := f.positions[address]
	if !ok {
		return nil, false, nil
	}
	return &pos, true, nil
}

func (f *fakeCache) PutPosition(_ context.Context, address string, pos here.Position) error {
	f.puts++
	if f.positions == nil {
		f.positions = map[string]here.Position{}
	}
	f.positions[address] = pos
	return nil
}

func TestRun_AccumulatesAndDeduplicates(t *testing.T) {
	client := &fakeClient{
		position: &here.Position{Latitude: 10, Longitude: 20},
		places: map[string][]here.Place{
			"beer": {
				{Position: []float64{10, 20}, Vicinity: "X", Title: "A"},
				{Position: []float64{10, 20}, Vicinity: "X", Title: "A"},
				{Title: "B"},
			},
		},
	}

	p := New(client, nil, 2000, 20)
	fc, err := p.Run(context.Background(), "somewhere", []string{"beer"})
	require.NoError(t, err)

	snap := fc.Snapshot()
	require.Len(t, snap.Features, 2)
	// GeoJSON coordinates are [longitude, latitude]; position pairs arrive
	// as [latitude, longitude].
	assert.Equal(t, [2]float64{20, 10}, snap.Features[0].Geometry.Coordinates)
	assert.Equal(t, "A", snap.Features[0].Properties.Name)
	// Malformed position entries land at the placeholder coordinate.
	assert.Equal(t, [2]float64{0, 0}, snap.Features[1].Geometry.Coordinates)
	assert.Equal(t, "B", snap.Features[1].Properties.Name)
}

func TestRun_GeocodeFailureAbortsBeforeDiscover(t *testing.T) {
	client := &fakeClient{geocodeErr: fmt.Errorf("no coordinate found")}

	p := New(client, nil, 2000, 20)
	_, err := p.Run(context.Background(), "nowhere", []string{"beer", "club"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no coordinate found")
	assert.Empty(t, client.discovered)
}

func TestRun_DiscoverFailureAborts(t *testing.T) {
	client := &fakeClient{
		position: &here.Position{Latitude: 1, Longitude: 2},
		places: map[string][]here.Place{
			"beer": {{Position: []float64{1, 2}, Title: "A"}},
		},
		discoverErr: map[string]error{"club": fmt.Errorf("no data found")},
	}

	p := New(client, nil, 2000, 20)
	_, err := p.Run(context.Background(), "somewhere", []string{"beer", "club", "restaurant"})
	require.Error(t, err)
	// Terms are processed in order; the failing term stops the run.
	assert.Equal(t, []string{"beer", "club"}, client.discovered)
}

func TestRun_EmptyTermContinues(t *testing.T) {
	client := &fakeClient{
		position: &here.Position{Latitude: 1, Longitude: 2},
		places: map[string][]here.Place{
			"club": {{Position: []float64{3, 4}, Title: "C"}},
		},
	}

	p := New(client, nil, 2000, 20)
	fc, err := p.Run(context.Background(), "somewhere", []string{"beer", "club"})
	require.NoError(t, err)
	assert.Equal(t, 1, fc.Count())
	assert.Equal(t, []string{"beer", "club"}, client.discovered)
}

func TestRun_PerTermCapAdmitsCapPlusOne(t *testing.T) {
	var many []here.Place
	for i := range 10 {
		many = append(many, here.Place{
			Position: []float64{float64(i), float64(i)},
			Title:    fmt.Sprintf("p%d", i),
		})
	}
	client := &fakeClient{
		position: &here.Position{Latitude: 1, Longitude: 2},
		places:   map[string][]here.Place{"beer": many},
	}

	p := New(client, nil, 2000, 2)
	fc, err := p.Run(context.Background(), "somewhere", []string{"beer"})
	require.NoError(t, err)
	// The cap is checked before the increment, so cap+1 features land.
	assert.Equal(t, 3, fc.Count())
}

func TestRun_CapCountsOnlyAcceptedFeatures(t *testing.T) {
	dup := here.Place{Position: []float64{1, 1}, Title: "same"}
	client := &fakeClient{
		position: &here.Position{Latitude: 1, Longitude: 2},
		places: map[string][]here.Place{
			"beer": {dup, dup, dup, dup,
				{Position: []float64{2, 2}, Title: "other"}},
		},
	}

	p := New(client, nil, 2000, 1)
	fc, err := p.Run(context.Background(), "somewhere", []string{"beer"})
	require.NoError(t, err)
	// Duplicates do not advance the counter, so later candidates still land.
	assert.Equal(t, 2, fc.Count())
}

func TestResolve_CacheHitSkipsGeocode(t *testing.T) {
	client := &fakeClient{position: &here.Position{Latitude: 9, Longitude: 9}}
	cache := &fakeCache{positions: map[string]here.Position{
		"cached addr": {Latitude: 10.8, Longitude: 106.71},
	}}

	p := New(client, cache, 2000, 20)
	pos, err := p.Resolve(context.Background(), "cached addr")
	require.NoError(t, err)
	assert.Equal(t, here.Position{Latitude: 10.8, Longitude: 106.71}, *pos)
	assert.Zero(t, client.geocodeCalls)
}

func TestResolve_MissGeocodesAndStores(t *testing.T) {
	client := &fakeClient{position: &here.Position{Latitude: 1, Longitude: 2}}
	cache := &fakeCache{}

	p := New(client, cache, 2000, 20)
	pos, err := p.Resolve(context.Background(), "new addr")
	require.NoError(t, err)
	assert.Equal(t, 1, client.geocodeCalls)
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, here.Position{Latitude: 1, Longitude: 2}, *pos)
}

func TestResolve_CacheErrorFallsThrough(t *testing.T) {
	client := &fakeClient{position: &here.Position{Latitude: 1, Longitude: 2}}
	cache := &fakeCache{getErr: fmt.Errorf("disk trouble")}

	p := New(client, cache, 2000, 20)
	_, err := p.Resolve(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, 1, client.geocodeCalls)
}

func TestRun_DeduplicatesAcrossTerms(t *testing.T) {
	shared := here.Place{Position: []float64{5, 6}, Vicinity: "V", Title: "Both"}
	client := &fakeClient{
		position: &here.Position{Latitude: 1, Longitude: 2},
		places: map[string][]here.Place{
			"beer": {shared},
			"club": {shared},
		},
	}

	p := New(client, nil, 2000, 20)
	fc, err := p.Run(context.Background(), "somewhere", []string{"beer", "club"})
	require.NoError(t, err)
	assert.Equal(t, 1, fc.Count())
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
terms:
  - beer
  - club
radius: 750
out: night
`), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"beer", "club"}, p.Terms)
	assert.Equal(t, 750, p.Radius)
	assert.Equal(t, "night", p.Out)
}

func TestLoadProfile_NoTerms(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`radius: 100`), 0o644))

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no terms")
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
