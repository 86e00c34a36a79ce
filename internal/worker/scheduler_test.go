package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"anoa.com/ulike/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingJob struct {
	name     string
	schedule string
	runs     atomic.Int32
	err      error
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestSchedulerRunsScheduledJobs(t *testing.T) {
	s := worker.NewScheduler(zap.NewNop())
	job := &countingJob{name: "tick", schedule: "@every 1s"}
	require.NoError(t, s.Register(job))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerRunNow(t *testing.T) {
	s := worker.NewScheduler(zap.NewNop())
	boom := errors.New("boom")
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: boom}
	require.NoError(t, s.Register(ok))
	require.NoError(t, s.Register(failing))

	require.NoError(t, s.RunNow(t.Context(), "ok"))
	assert.Equal(t, int32(1), ok.runs.Load())

	assert.ErrorIs(t, s.RunNow(t.Context(), "failing"), boom)
	assert.Error(t, s.RunNow(t.Context(), "missing"))
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := worker.NewScheduler(zap.NewNop())
	assert.Error(t, s.Register(&countingJob{name: "bad", schedule: "every now and then"}))
}
