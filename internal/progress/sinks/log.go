package sinks

import (
	"context"

	"go.uber.org/zap"

	"photomap/internal/progress"
)

// LogSink emits structured logs for the progress stream. Item batches
// are logged as counts; the payloads are too large to be useful in logs.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Kind {
		case progress.KindItems:
			s.logger.Info("items indexed", zap.Int("count", len(evt.Items)))
		case progress.KindStatus:
			s.logger.Info("crawl status", zap.String("status", evt.Status))
		case progress.KindCrawlError:
			s.logger.Error("crawl failed", zap.String("error", evt.Err))
		default:
			s.logger.Info("crawl lifecycle", zap.String("kind", string(evt.Kind)))
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
