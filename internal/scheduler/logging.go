package scheduler

import (
	"context"
	"time"

	obscontext "github.com/studiokit/kassza/internal/observability/context"
	obslogger "github.com/studiokit/kassza/internal/observability/logger"
	"github.com/studiokit/kassza/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// jobRun is the in-memory bookkeeping for a single job execution. It
// travels in the context so nested helpers can bump counters without
// touching the scheduler itself.
type jobRun struct {
	job            string
	runID          string
	startedAt      time.Time
	processedCount int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(n int) {
	if r == nil {
		return
	}
	r.processedCount += n
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

// ensureJobRun attaches a jobRun to the context if one is not already
// present. The boolean tells the caller whether it owns the run and
// should emit the start/finish log pair.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string) (context.Context, *jobRun, bool) {
	if run := jobRunFromContext(ctx); run != nil {
		return ctx, run, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	// Outbox events written by the run correlate on the run id.
	ctx = correlation.ContextWithCorrelationID(ctx, run.runID)
	return context.WithValue(ctx, jobRunKey{}, run), run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	if run.errorCount > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}
