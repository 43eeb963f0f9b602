package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/wage-level-map/internal/config"
	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/observability"
)

// Message kinds carried in the "kind" header.
const (
	KindLayer = "layer"
	KindStyle = "style"
)

// MessageKey keys every message so layers and style rules share one
// partition and consumers see them in publish order.
const MessageKey = "wage-level-map"

// messageWriter is the subset of *kafkago.Writer the Publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher is a rendering surface that publishes every layer replacement
// and style rule to a Kafka topic for downstream map renderers.
// It implements pipeline.Surface.
type Publisher struct {
	writer  messageWriter
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured layer topic.
func NewPublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer:  newWriter(cfg),
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
		logger:  logger,
	}
}

// newWriter sizes batches for whole-layer messages. A national layer is
// tens of megabytes, so the topic's max.message.bytes must be raised to
// at least the compressed size.
func newWriter(cfg *config.Config) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaLayerTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		BatchBytes:   cfg.KafkaMaxMessageBytes,
		Compression:  kafkago.Gzip,
	}
}

// ReplaceData publishes one message carrying the whole annotated layer.
func (p *Publisher) ReplaceData(ctx context.Context, layer domain.Layer) error {
	msg, err := serializeLayer(layer, p.clock.Now())
	if err != nil {
		p.metrics.SurfacePublishes.WithLabelValues("kafka", "data", "error").Inc()
		return err
	}
	return p.write(ctx, "data", msg)
}

// SetFillColorRule publishes the style expression.
func (p *Publisher) SetFillColorRule(ctx context.Context, rule domain.StyleRule) error {
	msg, err := serializeStyle(rule, p.clock.Now())
	if err != nil {
		p.metrics.SurfacePublishes.WithLabelValues("kafka", "style", "error").Inc()
		return err
	}
	return p.write(ctx, "style", msg)
}

func (p *Publisher) write(ctx context.Context, operation string, msg kafkago.Message) error {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.SurfacePublishes.WithLabelValues("kafka", operation, "error").Inc()
		return fmt.Errorf("publish %s: %w", operation, err)
	}
	p.metrics.SurfacePublishes.WithLabelValues("kafka", operation, "success").Inc()
	p.logger.Debug("published to kafka", "operation", operation, "key", string(msg.Key), "bytes", len(msg.Value))
	return nil
}

// Close flushes pending messages and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// layerMessage is the JSON value of a layer message.
type layerMessage struct {
	Occupation string                     `json:"occupation"`
	Salary     float64                    `json:"salary"`
	Sequence   uint64                     `json:"sequence"`
	Stats      domain.CoverageStats       `json:"stats"`
	Features   *geojson.FeatureCollection `json:"features"`
}

// serializeLayer marshals a Layer into a Kafka message.
func serializeLayer(layer domain.Layer, now time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(layerMessage{
		Occupation: layer.Occupation,
		Salary:     layer.Salary,
		Sequence:   layer.Sequence,
		Stats:      layer.Stats,
		Features:   layer.Features,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize layer: %w", err)
	}
	return kafkago.Message{
		Key:     []byte(MessageKey),
		Value:   data,
		Headers: append(headers(KindLayer, now), kafkago.Header{Key: "occupation", Value: []byte(layer.Occupation)}),
	}, nil
}

// serializeStyle marshals a StyleRule's Mapbox expression into a Kafka message.
func serializeStyle(rule domain.StyleRule, now time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rule)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize style rule: %w", err)
	}
	return kafkago.Message{
		Key:     []byte(MessageKey),
		Value:   data,
		Headers: headers(KindStyle, now),
	}, nil
}

func headers(kind string, now time.Time) []kafkago.Header {
	return []kafkago.Header{
		{Key: "kind", Value: []byte(kind)},
		{Key: "published_at", Value: []byte(now.UTC().Format(time.RFC3339))},
	}
}
