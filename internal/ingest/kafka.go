package ingest

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"emgstream/internal/config"
)

// StartKafka consumes raw binary frames from a topic the wireless-link
// relay publishes to; each message value is exactly one frame.
func StartKafka(ctx context.Context, cfg *config.Manager, out chan<- []byte, logger *slog.Logger) {
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
		MinBytes: 1,
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
			frame := make([]byte, len(m.Value))
			copy(frame, m.Value)
			SendFrame(ctx, out, frame, logger)
		}
	}()
}
