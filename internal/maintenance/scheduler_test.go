package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingJob struct {
	name   string
	calls  atomic.Int32
	issues int
}

func (j *countingJob) Name() string { return j.name }
func (j *countingJob) Run(_ context.Context) (int, error) {
	j.calls.Add(1)
	return j.issues, nil
}

func TestRunner_RunsJobImmediatelyOnStart(t *testing.T) {
	runner := NewScheduler(nil)
	job := &countingJob{name: "test-job", issues: 2}
	runner.AddJob(job, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx)
	defer runner.Stop()

	assert.Eventually(t, func() bool { return job.calls.Load() >= 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 2, runner.Report().Total())
}

func TestRunner_RunsJobOnTicker(t *testing.T) {
	runner := NewScheduler(nil)
	job := &countingJob{name: "test-job"}
	runner.AddJob(job, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx)
	defer runner.Stop()

	assert.Eventually(t, func() bool {
		return job.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestRunner_StopHaltsFurtherRuns(t *testing.T) {
	runner := NewScheduler(nil)
	job := &countingJob{name: "test-job"}
	runner.AddJob(job, 5*time.Millisecond)

	runner.Start(context.Background())
	assert.Eventually(t, func() bool { return job.calls.Load() >= 1 }, time.Second, 2*time.Millisecond)

	runner.Stop()
	after := job.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, job.calls.Load())
}

func TestReport_AggregatesAcrossJobs(t *testing.T) {
	runner := NewScheduler(nil)
	jobA := &countingJob{name: "job-a", issues: 1}
	jobB := &countingJob{name: "job-b", issues: 3}
	runner.AddJob(jobA, time.Hour)
	runner.AddJob(jobB, time.Hour)

	runner.Start(context.Background())
	defer runner.Stop()

	assert.Eventually(t, func() bool { return runner.Report().Total() == 4 }, time.Second, 2*time.Millisecond)
	byJob := runner.Report().ByJob()
	assert.Equal(t, 1, byJob["job-a"])
	assert.Equal(t, 3, byJob["job-b"])
}
