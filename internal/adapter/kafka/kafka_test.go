package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/wage-level-map/internal/config"
	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/observability"
)

type mockWriter struct {
	msgs []kafkago.Message
	err  error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

var publishedAt = time.Date(2026, 4, 26, 15, 10, 0, 0, time.UTC)

func testPublisher(w messageWriter) (*Publisher, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return &Publisher{
		writer:  w,
		clock:   clockwork.NewFakeClockAt(publishedAt),
		metrics: metrics,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, metrics
}

func testLayer() domain.Layer {
	return domain.Layer{
		Occupation: "11-1011",
		Salary:     93_600,
		Hourly:     45,
		Sequence:   3,
		Stats:      domain.CoverageStats{Level3: 1, Total: 1},
		Features: &geojson.FeatureCollection{Features: []*geojson.Feature{{
			Geometry:   geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{-87.75, 41.84}),
			Properties: map[string]any{domain.PropStateFP: "17", domain.PropName: "Cook", domain.PropLevel: 3},
		}}},
	}
}

func TestSerializeLayer(t *testing.T) {
	msg, err := serializeLayer(testLayer(), publishedAt)
	require.NoError(t, err)

	assert.Equal(t, []byte(MessageKey), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte(KindLayer), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-04-26T15:10:00Z"), msg.Headers[1].Value)
	assert.Equal(t, "occupation", msg.Headers[2].Key)
	assert.Equal(t, []byte("11-1011"), msg.Headers[2].Value)

	var decoded struct {
		Occupation string               `json:"occupation"`
		Salary     float64              `json:"salary"`
		Sequence   uint64               `json:"sequence"`
		Stats      domain.CoverageStats `json:"stats"`
		Features   json.RawMessage      `json:"features"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "11-1011", decoded.Occupation)
	assert.InDelta(t, 93_600, decoded.Salary, 0)
	assert.Equal(t, uint64(3), decoded.Sequence)
	assert.Equal(t, domain.CoverageStats{Level3: 1, Total: 1}, decoded.Stats)

	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(decoded.Features, &fc))
	assert.Equal(t, decoded.Stats, domain.Aggregate(&fc))
}

func TestSerializeStyle(t *testing.T) {
	msg, err := serializeStyle(domain.BuildStyleRule(domain.DefaultPalette), publishedAt)
	require.NoError(t, err)

	assert.Equal(t, []byte(MessageKey), msg.Key)
	assert.Equal(t, []byte(KindStyle), msg.Headers[0].Value)
	assert.Contains(t, string(msg.Value), `["case",["==",["get","level"],4],"#1E3A8A"`)
}

func TestPublisher_ReplaceData(t *testing.T) {
	w := &mockWriter{}
	p, metrics := testPublisher(w)

	require.NoError(t, p.ReplaceData(context.Background(), testLayer()))
	require.NoError(t, p.SetFillColorRule(context.Background(), domain.BuildStyleRule(domain.DefaultPalette)))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, w.msgs[0].Key, w.msgs[1].Key, "layers and style share a partition")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SurfacePublishes.WithLabelValues("kafka", "data", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SurfacePublishes.WithLabelValues("kafka", "style", "success")), 0)
}

func TestPublisher_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p, metrics := testPublisher(&mockWriter{err: boom})

	err := p.ReplaceData(context.Background(), testLayer())

	require.ErrorIs(t, err, boom)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SurfacePublishes.WithLabelValues("kafka", "data", "error")), 0)
}

func TestNewWriter_SizedForWholeLayers(t *testing.T) {
	w := newWriter(&config.Config{
		KafkaBrokers:         []string{"localhost:9092"},
		KafkaLayerTopic:      "wage-level-layers",
		KafkaMaxMessageBytes: 64 << 20,
	})
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, int64(64<<20), w.BatchBytes)
	assert.Equal(t, kafkago.Gzip, w.Compression)
	assert.Equal(t, "wage-level-layers", w.Topic)
}

func TestPublisher_DifferentOccupationsShareKey(t *testing.T) {
	w := &mockWriter{}
	p, _ := testPublisher(w)

	a, b := testLayer(), testLayer()
	b.Occupation, b.Sequence = "15-1252", 4
	require.NoError(t, p.ReplaceData(context.Background(), a))
	require.NoError(t, p.ReplaceData(context.Background(), b))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, w.msgs[0].Key, w.msgs[1].Key)
}
