package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/wage-level-map/internal/adapter/mapbox"
	"github.com/couchcryptid/wage-level-map/internal/adapter/surface"
	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/pipeline"
)

const maxRequestBody = 1 << 10

var errBadRequest = errors.New("bad request")

// classifyResponse is the stateless one-shot classification result.
type classifyResponse struct {
	Occupation string                     `json:"occupation"`
	Salary     float64                    `json:"salary"`
	Hourly     float64                    `json:"hourly"`
	Stats      domain.CoverageStats       `json:"stats"`
	Style      domain.StyleRule           `json:"style"`
	Features   *geojson.FeatureCollection `json:"features"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !domain.ValidOccupationCode(code) {
		s.writeError(w, fmt.Errorf("%w: %w: %q", errBadRequest, pipeline.ErrInvalidOccupation, code))
		return
	}
	salary, err := domain.ParseSalary(r.URL.Query().Get("salary"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	counties := s.deps.Session.Counties()
	if counties == nil {
		s.writeError(w, pipeline.ErrBaseDataNotReady)
		return
	}
	table, err := s.deps.Loader.LoadWageTable(r.Context(), code)
	if err != nil {
		s.writeError(w, err)
		return
	}

	hourly := domain.HourlyWage(salary)
	a := domain.Annotate(counties, table, hourly)
	sharedobs.WriteJSON(w, http.StatusOK, classifyResponse{
		Occupation: code,
		Salary:     salary,
		Hourly:     hourly,
		Stats:      a.Stats,
		Style:      s.deps.Session.StyleRule(),
		Features:   a.FeatureCollection(),
	})
}

func (s *Server) handleLegend(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, domain.Legend(s.deps.Session.StyleRule()))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.State.Snapshot())
}

func (s *Server) handleSetOccupation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Selector.SetOccupation(req.Code); err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	s.writeSelection(w)
}

func (s *Server) handleSetSalary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Salary json.RawMessage `json:"salary"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	salary, err := parseSalaryValue(req.Salary)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if err := s.deps.Selector.SetSalary(salary); err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	s.writeSelection(w)
}

func (s *Server) writeSelection(w http.ResponseWriter) {
	occupation, salary := s.deps.Selector.Selection()
	sharedobs.WriteJSON(w, http.StatusAccepted, map[string]any{
		"occupation": occupation,
		"salary":     salary,
	})
}

func (s *Server) handleClearError(w http.ResponseWriter, _ *http.Request) {
	s.deps.State.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLayer(w http.ResponseWriter, _ *http.Request) {
	layer, ok := s.deps.Layer.Current()
	if !ok {
		s.writeError(w, surface.ErrEmpty)
		return
	}
	w.Header().Set("X-Layer-Sequence", strconv.FormatUint(layer.Sequence, 10))
	sharedobs.WriteJSON(w, http.StatusOK, layer.Features)
}

func (s *Server) handleStyle(w http.ResponseWriter, _ *http.Request) {
	rule, ok := s.deps.Layer.Rule()
	if !ok {
		s.writeError(w, surface.ErrEmpty)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, rule)
}

func (s *Server) handleCounty(w http.ResponseWriter, r *http.Request) {
	detail, err := s.deps.Layer.Lookup(r.PathValue("statefp"), r.PathValue("name"))
	s.recordLookup("identity", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, detail)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		s.writeError(w, fmt.Errorf("%w: lat and lon must be numbers", errBadRequest))
		return
	}

	if s.deps.Locator == nil {
		s.writeError(w, &domain.ConfigurationError{Setting: "MAPBOX_TOKEN", Reason: "coordinate lookup is disabled"})
		return
	}
	county, err := s.deps.Locator.LookupCounty(r.Context(), lat, lon)
	if err != nil {
		s.recordLookup("coordinate", err)
		s.writeError(w, err)
		return
	}

	detail, err := s.deps.Layer.Lookup(county.StateFP, county.Name)
	s.recordLookup("coordinate", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, detail)
}

func (s *Server) recordLookup(method string, err error) {
	outcome := "found"
	switch {
	case err == nil:
	case errors.Is(err, surface.ErrNotFound), errors.Is(err, mapbox.ErrNoCounty):
		outcome = "missing"
	default:
		outcome = "error"
	}
	s.deps.Metrics.CountyLookups.WithLabelValues(method, outcome).Inc()
}

// writeError maps domain and adapter errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var fetchErr *domain.DataFetchError
	var cfgErr *domain.ConfigurationError
	switch {
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.As(err, &cfgErr),
		errors.Is(err, pipeline.ErrBaseDataNotReady),
		errors.Is(err, surface.ErrEmpty):
		status = http.StatusServiceUnavailable
	case errors.Is(err, surface.ErrNotFound), errors.Is(err, mapbox.ErrNoCounty):
		status = http.StatusNotFound
	case errors.As(err, &fetchErr):
		status = http.StatusBadGateway
		if fetchErr.Status == http.StatusNotFound {
			status = http.StatusNotFound
		}
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}
	return nil
}

// parseSalaryValue accepts a JSON number or a string such as "93,600".
func parseSalaryValue(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: missing salary", domain.ErrInvalidSalary)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return domain.ParseSalary(text)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrInvalidSalary, raw)
	}
	if !domain.ValidSalary(n) {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidSalary, n)
	}
	return n, nil
}
