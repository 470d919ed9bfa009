package kafka_middleware

import (
	"context"
	"time"

	"poolsched/pkg/kafka"
	"poolsched/pkg/logger"
)

// LoggingProducerMiddleware logs every publish outcome.
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)

		fields := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Error("Failed to publish message", append(fields, "error", err)...)
			return err
		}
		log.Debug("Published message", fields...)
		return nil
	}
}
