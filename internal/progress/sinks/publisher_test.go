package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/boamp-console/internal/progress"
	"github.com/JakeFAU/boamp-console/internal/publisher/memory"
)

func TestPublisherSinkPublishesOutcomes(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink := NewPublisherSink(pub, "boamp-jobs", nil)
	ts := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{JobID: "a", TS: ts, Stage: progress.StageSubmitted, Departments: 8},
		{JobID: "a", TS: ts, Stage: progress.StageProgress, Processed: 1, Total: 2},
		{JobID: "a", TS: ts, Stage: progress.StagePollFailed},
		{JobID: "a", TS: ts, Stage: progress.StageCompleted, Rows: 5, Dur: 2 * time.Second},
	}))

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "boamp-jobs", msgs[0].Topic)
	assert.Equal(t, map[string]string{"job_id": "a", "stage": "JOB_SUBMITTED"}, msgs[0].Attributes)

	var done JobMessage
	require.NoError(t, json.Unmarshal(msgs[1].Data, &done))
	assert.Equal(t, "JOB_COMPLETED", done.Stage)
	assert.Equal(t, 5, done.Rows)
	assert.InDelta(t, 2.0, done.DurationSec, 1e-9)
	assert.Equal(t, "2026-10-16T09:00:00Z", done.At)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("unavailable")
}

func TestPublisherSinkJoinsErrors(t *testing.T) {
	t.Parallel()

	sink := NewPublisherSink(failingPublisher{}, "t", nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{JobID: "a", TS: time.Now(), Stage: progress.StageFailed},
		{JobID: "b", TS: time.Now(), Stage: progress.StageTimedOut},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")

	require.NoError(t, NewPublisherSink(nil, "t", nil).Consume(context.Background(), nil))
}
