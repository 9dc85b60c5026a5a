package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/refhq/sourcescout/internal/progress"
)

// LogSink mirrors the progress stream into structured logs. Run milestones
// land at info, the chattier per-page events at debug.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink wraps a zap logger as a sink.
func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSink{log: log}
}

// Consume logs every event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.String("site", evt.Site),
			zap.String("url", evt.URL),
			zap.Int64("bytes", evt.Bytes),
			zap.Int64("staged", evt.Staged),
			zap.String("status_class", string(evt.StatusClass)),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		}
		switch evt.Stage {
		case progress.StageFetchDone, progress.StageTargetDone:
			s.log.Debug("sweep progress", fields...)
		default:
			s.log.Info("sweep progress", fields...)
		}
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error { return nil }
