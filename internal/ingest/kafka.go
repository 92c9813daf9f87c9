package ingest

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"biogate/internal/config"
	"biogate/internal/model"
)

// StartKafka consumes telemetry envelopes from the configured topic. Each
// message value is one JSON envelope.
func StartKafka(ctx context.Context, cfg *config.Manager, out chan<- model.Envelope, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				continue
			}
			env, err := ParseEnvelope(m.Value)
			if err != nil {
				if logger != nil {
					logger.Warn("kafka envelope rejected", "err", err)
				}
				continue
			}
			env.Source = "kafka"
			SendNonBlocking(ctx, out, env, logger)
		}
	}()
}
