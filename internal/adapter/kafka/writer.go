package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/water-quality-etl/internal/config"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
)

// Message headers attached to every published fit.
const (
	headerRunID     = "run_id"
	headerParameter = "parameter"
	headerSite      = "site"
	headerCreatedAt = "created_at"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes ranked model fits to a Kafka topic.
// It implements pipeline.ResultLoader.
type Writer struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured results topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger}
}

// Name identifies the loader in logs.
func (w *Writer) Name() string { return "kafka" }

// Load publishes one message per fitted partition, in rank order, in a single
// WriteMessages call.
func (w *Writer) Load(ctx context.Context, result *domain.RunResult) error {
	if len(result.Ranking) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(result.Ranking))
	for i := range result.Ranking {
		msg, err := serializeToMessage(result, result.Ranking[i], i+1)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish fits: %w", err)
	}
	w.metrics.ResultsPublished.Add(float64(len(msgs)))
	w.logger.Info("fits published", "run_id", result.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// FitMessage is the JSON value of a published fit.
type FitMessage struct {
	RunID string `json:"run_id"`
	Rank  int    `json:"rank"`
	domain.FitStats
}

// MessageKey is the partition key of a fit: parameter and site.
func MessageKey(fit domain.FitStats) string {
	return fit.Parameter + "|" + fit.Site
}

// serializeToMessage marshals a ranked fit into a Kafka message.
func serializeToMessage(result *domain.RunResult, fit domain.FitStats, rank int) (kafkago.Message, error) {
	data, err := json.Marshal(FitMessage{RunID: result.RunID, Rank: rank, FitStats: fit})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize fit: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(fit)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: headerRunID, Value: []byte(result.RunID)},
			{Key: headerParameter, Value: []byte(fit.Parameter)},
			{Key: headerSite, Value: []byte(fit.Site)},
			{Key: headerCreatedAt, Value: []byte(result.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
