package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/boamp-console/internal/progress"
)

// LogSink writes one structured log line per job event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("jobs")}
}

// Consume logs each event. Progress snapshots log at debug level, failures
// at warn.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("job_id", evt.JobID),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.Step != "" {
			fields = append(fields, zap.String("step", evt.Step))
		}
		if evt.Total > 0 {
			fields = append(fields, zap.Int("processed", evt.Processed), zap.Int("total", evt.Total))
		}
		if evt.Stage == progress.StageCompleted {
			fields = append(fields, zap.Int("rows", evt.Rows))
		}
		if evt.Departments > 0 {
			fields = append(fields, zap.Int("departments", evt.Departments))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Log(levelFor(evt.Stage), "job event", fields...)
	}
	return nil
}

func levelFor(stage progress.Stage) zapcore.Level {
	switch stage {
	case progress.StageProgress:
		return zapcore.DebugLevel
	case progress.StagePollFailed, progress.StageFailed, progress.StageTimedOut, progress.StageRejected:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
