package counties

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/wage-level-map/internal/domain"
)

const resource = "county geometry"

// maxBodySize bounds the geometry download; the national county file is
// roughly 25 MB at 500k resolution.
const maxBodySize = 256 << 20

// Load reads the master county collection from a GeoJSON file, an http(s)
// URL serving GeoJSON, or a local TIGER/Line .shp file. Every failure is
// returned as a *domain.DataFetchError.
func Load(ctx context.Context, source string, timeout time.Duration, logger *slog.Logger) (*domain.Counties, error) {
	start := time.Now()

	if strings.EqualFold(filepath.Ext(source), ".shp") {
		c, skipped, err := readShapefile(source)
		if err != nil {
			return nil, &domain.DataFetchError{Resource: resource, Err: err}
		}
		logger.Info("county geometry loaded",
			"source", source,
			"counties", c.Len(),
			"skipped", skipped,
			"duration", time.Since(start),
		)
		return c, nil
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = fetch(ctx, source, timeout)
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			err = &domain.DataFetchError{Resource: resource, Err: err}
		}
	}
	if err != nil {
		return nil, err
	}

	c, err := domain.ParseCounties(data)
	if err != nil {
		return nil, &domain.DataFetchError{Resource: resource, Err: err}
	}

	logger.Info("county geometry loaded",
		"source", source,
		"counties", c.Len(),
		"bytes", len(data),
		"duration", time.Since(start),
	)
	return c, nil
}

func fetch(ctx context.Context, source string, timeout time.Duration) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, &domain.DataFetchError{Resource: resource, Err: fmt.Errorf("create request: %w", err)}
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.DataFetchError{Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.DataFetchError{
			Resource: resource,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected response from %s", source),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &domain.DataFetchError{Resource: resource, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}
