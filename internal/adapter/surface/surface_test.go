package surface_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/wage-level-map/internal/adapter/surface"
	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/observability"
	"github.com/couchcryptid/wage-level-map/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func renderedLayer() domain.Layer {
	point := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{-87.75, 41.84})
	return domain.Layer{
		Occupation: "11-1011",
		Salary:     93_600,
		Hourly:     45,
		Sequence:   7,
		Stats:      domain.CoverageStats{Level3: 1, Total: 1},
		Features: &geojson.FeatureCollection{Features: []*geojson.Feature{
			{Geometry: point, Properties: map[string]any{domain.PropStateFP: "17", domain.PropName: "Cook", domain.PropLevel: 3}},
			{Geometry: point, Properties: map[string]any{domain.PropStateFP: "17", domain.PropName: "Lake"}},
		}},
	}
}

func TestLayer_EmptyBeforeFirstPush(t *testing.T) {
	l := surface.NewLayer(observability.NewMetricsForTesting())

	_, ok := l.Current()
	assert.False(t, ok)
	_, ok = l.Rule()
	assert.False(t, ok)

	_, err := l.Lookup("17", "Cook")
	assert.ErrorIs(t, err, surface.ErrEmpty)
}

func TestLayer_ReplaceDataAndLookup(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	l := surface.NewLayer(metrics)
	rule := domain.BuildStyleRule(domain.DefaultPalette)

	require.NoError(t, l.ReplaceData(context.Background(), renderedLayer()))
	require.NoError(t, l.SetFillColorRule(context.Background(), rule))

	current, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(7), current.Sequence)

	got, ok := l.Rule()
	require.True(t, ok)
	assert.Equal(t, rule, got)

	cook, err := l.Lookup("17", "COOK COUNTY")
	require.NoError(t, err)
	require.NotNil(t, cook.Level)
	assert.Equal(t, 3, *cook.Level)
	assert.Equal(t, "IL", cook.State)
	assert.Equal(t, "Cook", cook.Name)
	assert.Equal(t, "Experienced", cook.LevelName)
	assert.Equal(t, domain.DefaultPalette.Level3, cook.Color)

	lake, err := l.Lookup("17", "Lake")
	require.NoError(t, err)
	assert.Nil(t, lake.Level)
	assert.Equal(t, domain.DefaultPalette.Default, lake.Color)

	_, err = l.Lookup("06", "Cook")
	assert.ErrorIs(t, err, surface.ErrNotFound)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SurfacePublishes.WithLabelValues("memory", "data", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SurfacePublishes.WithLabelValues("memory", "style", "success")), 0)
}

type failingSurface struct{ err error }

func (f failingSurface) ReplaceData(context.Context, domain.Layer) error         { return f.err }
func (f failingSurface) SetFillColorRule(context.Context, domain.StyleRule) error { return f.err }

func TestFanout(t *testing.T) {
	memory := surface.NewLayer(observability.NewMetricsForTesting())
	boom := errors.New("broker down")
	fan := surface.NewFanout().
		Add("kafka", failingSurface{err: boom}).
		Add("memory", memory)

	err := fan.ReplaceData(context.Background(), renderedLayer())

	require.ErrorIs(t, err, boom)
	var partial *pipeline.PartialPublishError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"kafka"}, partial.Failed)
	assert.Contains(t, err.Error(), "kafka")
	_, ok := memory.Current()
	assert.True(t, ok, "later surfaces still receive the push")

	require.NoError(t, surface.NewFanout().Add("memory", memory).
		SetFillColorRule(context.Background(), domain.BuildStyleRule(domain.DefaultPalette)))
}

func TestFanout_AllTargetsFail(t *testing.T) {
	boom := errors.New("broker down")
	fan := surface.NewFanout().
		Add("kafka", failingSurface{err: boom}).
		Add("archive", failingSurface{err: boom})

	err := fan.ReplaceData(context.Background(), renderedLayer())

	require.ErrorIs(t, err, boom)
	var partial *pipeline.PartialPublishError
	assert.NotErrorAs(t, err, &partial)
}

type staticLoader struct{ table domain.WageTable }

func (s staticLoader) LoadWageTable(context.Context, string) (domain.WageTable, error) {
	return s.table, nil
}

func TestFanout_PartialFailureLeavesRenderedLayerConsistent(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	memory := surface.NewLayer(metrics)
	session := pipeline.NewMapSession(
		surface.NewFanout().Add("memory", memory).Add("kafka", failingSurface{err: errors.New("broker down")}),
		domain.DefaultPalette,
	)
	session.SetCounties(domain.NewCounties(&geojson.FeatureCollection{Features: []*geojson.Feature{{
		Geometry:   geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{-87.75, 41.84}),
		Properties: map[string]any{domain.PropStateFP: "17", domain.PropName: "Cook"},
	}}}))
	table := domain.WageTable{"IL|cook": domain.Thresholds(map[domain.Level]float64{domain.Level1: 20})}
	orch := pipeline.NewOrchestrator(session, staticLoader{table: table}, discardLogger(), metrics, nil)

	err := orch.Update(context.Background(), "11-1011", 93_600)
	require.Error(t, err)

	rendered, ok := memory.Current()
	require.True(t, ok)
	state := orch.Snapshot()
	assert.Equal(t, pipeline.StatusFailed, state.Status)
	assert.Equal(t, rendered.Stats, state.Stats)
	assert.Equal(t, domain.CoverageStats{Level1: 1, Total: 1}, state.Stats)

	_, ok = memory.Rule()
	assert.True(t, ok)
	cook, err := memory.Lookup("17", "Cook")
	require.NoError(t, err)
	require.NotNil(t, cook.Level)
	assert.Equal(t, 1, *cook.Level)
}
