package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/observability"
)

// ErrNoCounty is returned when a coordinate does not resolve to a US county.
var ErrNoCounty = errors.New("no county at coordinate")

// County identifies a county the way the geometry source does.
type County struct {
	StateFP string
	Name    string
}

// Client resolves clicked coordinates to counties using the Mapbox
// Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// LookupCounty reverse geocodes a coordinate to the county containing it.
// Mapbox calls US counties "districts"; the state comes from the region
// context's ISO 3166-2 short code (e.g. "US-IL").
func (c *Client) LookupCounty(ctx context.Context, lat, lon float64) (County, error) {
	if c == nil || c.token == "" {
		return County{}, &domain.ConfigurationError{Setting: "MAPBOX_TOKEN", Reason: "coordinate lookup requires a Mapbox access token"}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return County{}, fmt.Errorf("coordinate out of range: %v,%v", lat, lon)
	}

	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"types":        {"district"},
		"country":      {"us"},
		"limit":        {"1"},
	}

	resp, err := c.doRequest(ctx, u+"?"+params.Encode())
	if err != nil {
		return County{}, err
	}
	if len(resp.Features) == 0 {
		return County{}, ErrNoCounty
	}

	f := resp.Features[0]
	for _, item := range f.Context {
		if !strings.HasPrefix(item.ID, "region.") {
			continue
		}
		abbr, ok := strings.CutPrefix(strings.ToUpper(item.ShortCode), "US-")
		if !ok {
			break
		}
		fp, ok := domain.StateFP(abbr)
		if !ok {
			break
		}
		c.logger.Debug("county resolved", "lat", lat, "lon", lon, "statefp", fp, "name", f.Text)
		return County{StateFP: fp, Name: f.Text}, nil
	}
	return County{}, ErrNoCounty
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.MapboxAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return response{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return response{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return mapboxResp, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"` // "Cook County"
	PlaceName string        `json:"place_name"`
	Context   []contextItem `json:"context"`
}

type contextItem struct {
	ID        string `json:"id"` // "region.9352"
	Text      string `json:"text"`
	ShortCode string `json:"short_code"` // "US-IL"
}
