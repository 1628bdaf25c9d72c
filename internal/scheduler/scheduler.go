// Package scheduler drives the periodic background work: today that is
// the monthly settlement autodraft sweep. Jobs run under a timeout,
// report through the scheduler metrics, and log one start/finish pair
// per run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/studiokit/kassza/internal/clock"
	appconfig "github.com/studiokit/kassza/internal/config"
	obsmetrics "github.com/studiokit/kassza/internal/observability/metrics"
	"github.com/studiokit/kassza/internal/ratelimit"
	settlementdomain "github.com/studiokit/kassza/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log           *zap.Logger
	AppConfig     appconfig.Config
	SettlementSvc settlementdomain.Service
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        Config                   `optional:"true"`
	Locker        *ratelimit.Locker        `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	loc           *time.Location
	genID         *snowflake.Node
	clock         clock.Clock
	settlementSvc settlementdomain.Service
	locker        *ratelimit.Locker

	lastAutodraft time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.SettlementSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	log := p.Log.Named("scheduler").With(zap.String("component", "scheduler"))
	return &Scheduler{
		log:           log,
		cfg:           cfg,
		loc:           studioLocation(log, p.AppConfig.TimeZone),
		genID:         p.GenID,
		clock:         p.Clock,
		settlementSvc: p.SettlementSvc,
		locker:        p.Locker,
	}, nil
}

func studioLocation(log *zap.Logger, name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn("unknown studio timezone, using UTC", zap.String("time_zone", name))
		return time.UTC
	}
	return loc
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// Hitting the deadline is backpressure, not failure; the work is
	// idempotent and the next tick picks it back up.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"settlement_autodraft", s.isJobEnabled("settlement_autodraft"), func(ctx context.Context) error {
			return s.runJob(ctx, "settlement_autodraft", s.cfg.JobTimeout, s.SettlementAutodraftJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty EnabledJobs list means every job runs (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
