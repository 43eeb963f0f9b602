//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/wage-level-map/internal/adapter/kafka"
	"github.com/couchcryptid/wage-level-map/internal/adapter/surface"
	"github.com/couchcryptid/wage-level-map/internal/config"
	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/observability"
	"github.com/couchcryptid/wage-level-map/internal/pipeline"
)

const testLayerTopic = "test-wage-layers"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("wage-level-map-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type staticLoader struct{ table domain.WageTable }

func (s staticLoader) LoadWageTable(context.Context, string) (domain.WageTable, error) {
	return s.table, nil
}

type layerMessage struct {
	Key     string
	Headers map[string]string
	Value   []byte
}

func readMessage(ctx context.Context, t *testing.T, r *kafkago.Reader) layerMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := r.ReadMessage(readCtx)
	require.NoError(t, err, "read from layer topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return layerMessage{Key: string(msg.Key), Headers: headers, Value: msg.Value}
}

// TestOrchestratorPublishesLayers drives the orchestrator against a real
// broker and checks that layer and style messages land on the topic.
func TestOrchestratorPublishesLayers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testLayerTopic)

	cfg := &config.Config{
		KafkaBrokers:         []string{broker},
		KafkaLayerTopic:      testLayerTopic,
		KafkaMaxMessageBytes: 1 << 20,
	}
	metrics := observability.NewMetricsForTesting()
	publisher := kafka.NewPublisher(cfg, metrics, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	memory := surface.NewLayer(metrics)
	session := pipeline.NewMapSession(
		surface.NewFanout().Add("memory", memory).Add("kafka", publisher),
		domain.DefaultPalette,
	)
	session.SetCounties(domain.NewCounties(&geojson.FeatureCollection{Features: []*geojson.Feature{{
		Geometry:   geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{-87.75, 41.84}),
		Properties: map[string]any{domain.PropStateFP: "17", domain.PropName: "Cook"},
	}}}))

	table := domain.WageTable{"IL|cook": domain.Thresholds(map[domain.Level]float64{
		domain.Level1: 20, domain.Level2: 30, domain.Level3: 45, domain.Level4: 60,
	})}
	orch := pipeline.NewOrchestrator(session, staticLoader{table: table}, discardLogger(), metrics, nil)

	require.NoError(t, orch.Update(ctx, "11-1011", 93_600))

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testLayerTopic,
		Partition: 0,
		MaxWait:   500 * time.Millisecond,
	})
	t.Cleanup(func() { _ = reader.Close() })

	layerMsg := readMessage(ctx, t, reader)
	assert.Equal(t, kafka.MessageKey, layerMsg.Key)
	assert.Equal(t, kafka.KindLayer, layerMsg.Headers["kind"])
	assert.Equal(t, "11-1011", layerMsg.Headers["occupation"])
	assert.NotEmpty(t, layerMsg.Headers["published_at"])

	var payload struct {
		Occupation string                    `json:"occupation"`
		Sequence   uint64                    `json:"sequence"`
		Stats      domain.CoverageStats      `json:"stats"`
		Features   geojson.FeatureCollection `json:"features"`
	}
	require.NoError(t, json.Unmarshal(layerMsg.Value, &payload))
	assert.Equal(t, uint64(1), payload.Sequence)
	assert.Equal(t, domain.CoverageStats{Level3: 1, Total: 1}, payload.Stats)
	assert.Equal(t, payload.Stats, domain.Aggregate(&payload.Features))

	styleMsg := readMessage(ctx, t, reader)
	assert.Equal(t, kafka.MessageKey, styleMsg.Key)
	assert.Equal(t, kafka.KindStyle, styleMsg.Headers["kind"])

	rendered, ok := memory.Current()
	require.True(t, ok)
	assert.Equal(t, payload.Stats, rendered.Stats)
	assert.Equal(t, pipeline.StatusReady, orch.Snapshot().Status)
}
