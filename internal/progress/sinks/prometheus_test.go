package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/boamp-console/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{JobID: "a", TS: now, Stage: progress.StageSubmitted, Departments: 8},
		{JobID: "a", TS: now, Stage: progress.StageProgress, Processed: 1, Total: 4},
		{JobID: "a", TS: now, Stage: progress.StagePollFailed, Note: "connection refused"},
		{JobID: "b", TS: now, Stage: progress.StageSubmitted},
		{JobID: "a", TS: now, Stage: progress.StageCompleted, Rows: 12, Dur: 90 * time.Second},
		{TS: now, Stage: progress.StageRejected, Note: "At least one keyword must be provided"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.InDelta(t, 2.0, testutil.ToFloat64(sink.jobsSubmitted), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.jobsRejected), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.pollFailures), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.jobsFinished.WithLabelValues("completed")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.jobsRunning), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.jobRuntime, "boamp_console_job_runtime_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.resultRows, "boamp_console_job_result_rows"))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{JobID: "b", TS: now, Stage: progress.StageAbandoned},
		{JobID: "b", TS: now, Stage: progress.StageAbandoned},
	}))
	require.InDelta(t, 0.0, testutil.ToFloat64(sink.jobsRunning), 1e-9)
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
