package kafka_middleware

import (
	"context"
	"time"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/kafka"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/metrics"
)

func outcome(err error) string {
	if err != nil {
		return metrics.OutcomeFailure
	}
	return metrics.OutcomeSuccess
}

// MetricsProducerMiddleware records publish outcomes and latency per topic.
func MetricsProducerMiddleware(rec metrics.Recorder) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		rec.RecordMessage(msg.Topic, "publish_"+outcome(err), time.Since(start))
		return err
	}
}

// MetricsConsumerMiddleware records handling outcomes and latency per topic.
func MetricsConsumerMiddleware(rec metrics.Recorder) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		rec.RecordMessage(msg.Topic, "consume_"+outcome(err), time.Since(start))
		return err
	}
}
