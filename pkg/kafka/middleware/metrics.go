package kafka_middleware

import (
	"context"

	"poolsched/pkg/kafka"
	"poolsched/pkg/metrics"
)

const (
	StatusPublished = "published"
	StatusFailed    = "failed"
)

// MetricsProducerMiddleware counts publishes by outcome.
func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		err := next(ctx, msg)
		if err != nil {
			metrics.IncEventPublished(StatusFailed)
		} else {
			metrics.IncEventPublished(StatusPublished)
		}
		return err
	}
}
