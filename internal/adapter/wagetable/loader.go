package wagetable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/wage-level-map/internal/domain"
)

// errInvalidCode is wrapped in a DataFetchError for codes that are not SOC
// codes, so a bad selection never becomes a request path.
var errInvalidCode = errors.New("invalid occupation code")

// HTTPLoader fetches wage tables from <baseURL>/<code>.json.
// It implements pipeline.WageTableLoader.
type HTTPLoader struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPLoader creates a loader for the static wage data endpoint.
func NewHTTPLoader(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPLoader {
	return &HTTPLoader{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// LoadWageTable fetches and decodes the wage table for one occupation.
// Every failure is returned as a *domain.DataFetchError.
func (l *HTTPLoader) LoadWageTable(ctx context.Context, occupation string) (domain.WageTable, error) {
	resource := resourceName(occupation)
	if !domain.ValidOccupationCode(occupation) {
		return nil, &domain.DataFetchError{Resource: resource, Err: errInvalidCode}
	}

	u := fmt.Sprintf("%s/%s.json", l.baseURL, url.PathEscape(occupation))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.DataFetchError{Resource: resource, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, &domain.DataFetchError{Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.DataFetchError{
			Resource: resource,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	table, err := decode(resp.Body)
	if err != nil {
		return nil, &domain.DataFetchError{Resource: resource, Err: err}
	}
	l.logger.Debug("wage table loaded", "occupation", occupation, "keys", len(table))
	return table, nil
}

// DirLoader reads wage tables from <dir>/<code>.json, the layout written by
// cmd/buildtables.
type DirLoader struct {
	dir    string
	logger *slog.Logger
}

// NewDirLoader creates a loader over a local wage table directory.
func NewDirLoader(dir string, logger *slog.Logger) *DirLoader {
	return &DirLoader{dir: dir, logger: logger}
}

// LoadWageTable reads and decodes the wage table for one occupation.
func (l *DirLoader) LoadWageTable(ctx context.Context, occupation string) (domain.WageTable, error) {
	resource := resourceName(occupation)
	if !domain.ValidOccupationCode(occupation) {
		return nil, &domain.DataFetchError{Resource: resource, Err: errInvalidCode}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(l.dir, occupation+".json"))
	if err != nil {
		return nil, &domain.DataFetchError{Resource: resource, Err: err}
	}
	defer f.Close()

	table, err := decode(f)
	if err != nil {
		return nil, &domain.DataFetchError{Resource: resource, Err: err}
	}
	l.logger.Debug("wage table loaded", "occupation", occupation, "keys", len(table))
	return table, nil
}

func decode(r io.Reader) (domain.WageTable, error) {
	var table domain.WageTable
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("decode wage table: %w", err)
	}
	if table == nil {
		return nil, errors.New("decode wage table: not an object")
	}
	return table, nil
}

func resourceName(occupation string) string {
	return "wage table " + occupation
}
