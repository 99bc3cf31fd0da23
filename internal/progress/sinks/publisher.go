package sinks

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/boamp-console/internal/progress"
)

// Publisher pushes a payload to a topic and returns the message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// JobMessage is the published form of a submission or terminal event.
type JobMessage struct {
	JobID       string  `json:"job_id"`
	Stage       string  `json:"stage"`
	Rows        int     `json:"rows,omitempty"`
	Departments int     `json:"departments,omitempty"`
	DurationSec float64 `json:"duration_seconds,omitempty"`
	Note        string  `json:"note,omitempty"`
	At          string  `json:"at"`
}

// Attributes are attached to the message alongside the trace context.
func (m JobMessage) Attributes() map[string]string {
	return map[string]string{"job_id": m.JobID, "stage": m.Stage}
}

// PublisherSink publishes submissions and terminal outcomes. Progress and
// poll failure events stay local.
type PublisherSink struct {
	publisher Publisher
	topic     string
	logger    *zap.Logger
}

// NewPublisherSink wires publisher to topic.
func NewPublisherSink(publisher Publisher, topic string, logger *zap.Logger) *PublisherSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{publisher: publisher, topic: topic, logger: logger.Named("publisher")}
}

// Consume publishes every submission and terminal event in batch. Errors are
// joined so one failed publish does not hide the others.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		if evt.Stage != progress.StageSubmitted && !evt.Stage.Terminal() {
			continue
		}
		msg := JobMessage{
			JobID:       evt.JobID,
			Stage:       string(evt.Stage),
			Rows:        evt.Rows,
			Departments: evt.Departments,
			DurationSec: evt.Dur.Seconds(),
			Note:        evt.Note,
			At:          evt.TS.UTC().Format(time.RFC3339Nano),
		}
		id, err := s.publisher.Publish(ctx, s.topic, msg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.Debug("job event published",
			zap.String("job_id", evt.JobID),
			zap.String("stage", string(evt.Stage)),
			zap.String("message_id", id),
		)
	}
	return errors.Join(errs...)
}

// Close implements progress.Sink.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
