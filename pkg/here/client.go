// Package here is a client for the HERE geocoder and places APIs.
package here

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-cli/internal/jsontree"
)

const (
	geocoderBaseURL = "https://geocoder.api.here.com"
	placesBaseURL   = "https://places.cit.api.here.com"
)

// Position is a resolved coordinate. Field names follow the HERE
// DisplayPosition payload.
type Position struct {
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
}

// Place is a single places-search result. Every field is optional; API
// responses are treated as untrusted input.
type Place struct {
	Position []float64 `json:"position"` // latitude, longitude
	Vicinity string    `json:"vicinity"`
	Title    string    `json:"title"`
}

// Client talks to the HERE geocoding and places endpoints. Each call is a
// single attempt with a fixed timeout; there is no retry or rate limiting.
type Client struct {
	appID            string
	appCode          string
	geoVersion       string
	placesVersion    string
	httpClient       *http.Client
	batchConcurrency int
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithGeoVersion overrides the geocoder API version path segment.
func WithGeoVersion(v string) Option {
	return func(c *Client) {
		c.geoVersion = v
	}
}

// WithPlacesVersion overrides the places API version path segment.
func WithPlacesVersion(v string) Option {
	return func(c *Client) {
		c.placesVersion = v
	}
}

// WithTimeout sets the per-request timeout on the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithBatchConcurrency sets the max parallel calls for BatchGeocode.
func WithBatchConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchConcurrency = n
		}
	}
}

// NewClient creates a Client with the given HERE credentials. Credentials are
// not validated locally; bad or missing values surface as authentication
// failures from the API.
func NewClient(appID, appCode string, opts ...Option) *Client {
	c := &Client{
		appID:            appID,
		appCode:          appCode,
		geoVersion:       "6.2",
		placesVersion:    "v1",
		httpClient:       &http.Client{Timeout: 10 * time.Second},
		batchConcurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode resolves a free-text address to the first DisplayPosition found in
// the geocoder response.
func (c *Client) Geocode(ctx context.Context, address string) (*Position, error) {
	params := url.Values{
		"app_id":     {c.appID},
		"app_code":   {c.appCode},
		"searchtext": {address},
	}

	body, err := c.get(ctx, fmt.Sprintf("%s/%s/geocode.json", geocoderBaseURL, c.geoVersion), params)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, eris.Wrap(err, "here: parse geocoder response")
	}

	raw, ok := jsontree.First(doc, "DisplayPosition")
	if !ok {
		return nil, eris.Errorf("here: no coordinate found for %q", address)
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return nil, eris.Errorf("here: no coordinate found for %q", address)
	}
	lat, latOK := fields["Latitude"].(float64)
	lon, lonOK := fields["Longitude"].(float64)
	if !latOK || !lonOK {
		return nil, eris.Errorf("here: no coordinate found for %q", address)
	}

	return &Position{Latitude: lat, Longitude: lon}, nil
}

// discoverResponse is the subset of the places discover payload this client
// reads.
type discoverResponse struct {
	Results struct {
		Items []Place `json:"items"`
	} `json:"results"`
}

// Discover returns places matching term around at, within radius meters. An
// empty result list is a diagnostic, not an error.
func (c *Client) Discover(ctx context.Context, term string, at Position, radius int) ([]Place, error) {
	params := url.Values{
		"app_id":   {c.appID},
		"app_code": {c.appCode},
		"q":        {term},
		"at": {fmt.Sprintf("%s,%s;r=%d",
			strconv.FormatFloat(at.Latitude, 'f', -1, 64),
			strconv.FormatFloat(at.Longitude, 'f', -1, 64),
			radius)},
	}

	body, err := c.get(ctx, fmt.Sprintf("%s/places/%s/discover/search", placesBaseURL, c.placesVersion), params)
	if err != nil {
		return nil, err
	}

	var resp discoverResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "here: parse places response")
	}

	if len(resp.Results.Items) == 0 {
		zap.L().Debug("here: no places found", zap.String("term", term))
	}
	return resp.Results.Items, nil
}

// get performs a single GET and returns the response body. A body whose JSON
// decodes to a falsy value (null, empty object or array, empty string, zero,
// false) fails with a "no data found" error.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "here: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "here: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("here: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "here: read body")
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, eris.Wrap(err, "here: parse response")
	}
	if isEmptyJSON(doc) {
		return nil, eris.New("here: no data found")
	}
	return body, nil
}

// isEmptyJSON reports whether a decoded JSON value is falsy.
func isEmptyJSON(doc any) bool {
	switch v := doc.(type) {
	case nil:
		return true
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	}
	return false
}
