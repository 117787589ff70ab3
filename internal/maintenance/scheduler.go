// Package maintenance runs Edison's periodic janitor jobs: stale-lock
// reclamation and stale (abandoned) round reporting. It is adapted from the
// teacher's internal/scheduler.Scheduler (a generic ticker-per-job runner
// with no notion of what a job found), folding in the teacher's other
// janitor-shaped piece — internal/tools/janitor/janitor.go's Report, which
// summarizes a scan's findings as counts rather than leaving them to scroll
// past in a log. Run's issue count (see jobs.go) feeds that aggregate
// instead of a bare error, and Start runs every job once immediately:
// a maintenance CLI invocation is typically a short-lived process (spec.md
// §5), so waiting out a 15-minute interval before the first scan would
// mean most invocations never scan at all.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/edisonhq/edison/internal/logging"
)

// Job is one periodic maintenance task. Run reports how many issues it
// found (locks reclaimed, rounds flagged) so Runner can roll them up into
// a Report across every job and every tick.
type Job interface {
	Name() string
	Run(ctx context.Context) (issues int, err error)
}

// Report is the running total of issues every registered Job has raised,
// grounded in the teacher's janitor.Report shape (IssuesFound, per-scope
// breakdown) but accumulated continuously across a long-lived Runner
// rather than produced by one spec_janitor_run call.
type Report struct {
	mu    sync.Mutex
	total int
	byJob map[string]int
}

func newReport() *Report {
	return &Report{byJob: map[string]int{}}
}

func (r *Report) record(job string, issues int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total += issues
	r.byJob[job] += issues
}

// Total returns the cumulative issue count across every job.
func (r *Report) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// ByJob returns a snapshot of the cumulative issue count per job name.
func (r *Report) ByJob() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.byJob))
	for k, v := range r.byJob {
		out[k] = v
	}
	return out
}

// Runner drives every registered Job on its own ticker until Stop or
// context cancellation, aggregating what each run finds into a Report.
type Runner struct {
	log    *logging.Logger
	jobs   []scheduledJob
	report *Report
}

type scheduledJob struct {
	job      Job
	interval time.Duration
	ticker   *time.Ticker
	stop     chan struct{}
}

// NewScheduler builds a Runner, defaulting to a no-op logger.
func NewScheduler(log *logging.Logger) *Runner {
	if log == nil {
		log = logging.Noop()
	}
	return &Runner{log: log, report: newReport()}
}

// AddJob registers job to run every interval, plus once immediately when
// Start is called.
func (r *Runner) AddJob(job Job, interval time.Duration) {
	r.jobs = append(r.jobs, scheduledJob{job: job, interval: interval, stop: make(chan struct{})})
}

// Report returns the Runner's cumulative findings so far.
func (r *Runner) Report() *Report { return r.report }

func (r *Runner) runOnce(ctx context.Context, sj *scheduledJob) {
	issues, err := sj.job.Run(ctx)
	if err != nil {
		r.log.Errorw("maintenance job failed", "job", sj.job.Name(), "error", err)
		return
	}
	r.report.record(sj.job.Name(), issues)
	if issues > 0 {
		r.log.Infow("maintenance job found issues", "job", sj.job.Name(), "issues", issues, "total", r.report.Total())
	}
}

// Start runs every registered job once immediately, then launches one
// goroutine per job to keep running it on its own ticker.
func (r *Runner) Start(ctx context.Context) {
	for i := range r.jobs {
		sj := &r.jobs[i]
		r.runOnce(ctx, sj)

		sj.ticker = time.NewTicker(sj.interval)
		go func(sj *scheduledJob) {
			r.log.Infow("starting maintenance job", "job", sj.job.Name(), "interval", sj.interval)
			for {
				select {
				case <-sj.ticker.C:
					r.runOnce(ctx, sj)
				case <-sj.stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}(sj)
	}
}

// Stop halts every running job.
func (r *Runner) Stop() {
	for i := range r.jobs {
		if r.jobs[i].ticker != nil {
			r.jobs[i].ticker.Stop()
		}
		close(r.jobs[i].stop)
	}
	r.log.Infow("maintenance scheduler stopped", "totalIssues", r.report.Total())
}
