package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func cookResponse() response {
	return response{
		Features: []feature{
			{
				ID:        "district.123",
				Text:      "Cook County",
				PlaceName: "Cook County, Illinois, United States",
				Context: []contextItem{
					{ID: "region.9352", Text: "Illinois", ShortCode: "US-IL"},
					{ID: "country.8772", Text: "United States", ShortCode: "us"},
				},
			},
		},
	}
}

func TestClient_LookupCounty_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "-87.750000,41.840000")
		assert.Equal(t, "district", r.URL.Query().Get("types"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(cookResponse()))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	county, err := c.LookupCounty(context.Background(), 41.84, -87.75)
	require.NoError(t, err)

	assert.Equal(t, County{StateFP: "17", Name: "Cook County"}, county)
}

func TestClient_LookupCounty_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LookupCounty(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrNoCounty)
}

func TestClient_LookupCounty_UnknownRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := cookResponse()
		resp.Features[0].Context[0].ShortCode = "CA-ON"
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LookupCounty(context.Background(), 43.65, -79.38)
	assert.ErrorIs(t, err, ErrNoCounty)
}

func TestClient_LookupCounty_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LookupCounty(context.Background(), 41.84, -87.75)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_LookupCounty_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.LookupCounty(context.Background(), 41.84, -87.75)
	require.Error(t, err)
}

func TestClient_LookupCounty_Disabled(t *testing.T) {
	var cfgErr *domain.ConfigurationError

	c := testClient("http://unused.invalid")
	c.token = ""
	_, err := c.LookupCounty(context.Background(), 41.84, -87.75)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "MAPBOX_TOKEN", cfgErr.Setting)

	var nilClient *Client
	_, err = nilClient.LookupCounty(context.Background(), 41.84, -87.75)
	require.ErrorAs(t, err, &cfgErr)
}

func TestClient_LookupCounty_OutOfRange(t *testing.T) {
	_, err := testClient("http://unused.invalid").LookupCounty(context.Background(), 91, 0)
	require.Error(t, err)
}
