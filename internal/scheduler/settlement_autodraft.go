package scheduler

import (
	"context"
	"time"

	obsmetrics "github.com/studiokit/kassza/internal/observability/metrics"
	"go.uber.org/zap"
)

const lockKeyAutodraft = "kassza:lock:settlement_autodraft"

// SettlementAutodraftJob drafts the previous civil month for every
// trainer who held sessions in it. The sweep runs at most once per
// AutodraftInterval per instance, and under the shared lock when one
// is configured, so a fleet drafts each month once.
func (s *Scheduler) SettlementAutodraftJob(ctx context.Context) error {
	now := s.clock.Now()
	if !s.lastAutodraft.IsZero() && now.Sub(s.lastAutodraft) < s.cfg.AutodraftInterval {
		return nil
	}
	log := s.logger(ctx)

	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, lockKeyAutodraft, s.cfg.LockTTL)
		if err != nil {
			return err
		}
		if !ok {
			log.Debug("autodraft lock held elsewhere, skipping sweep")
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), lockKeyAutodraft, token); err != nil {
				log.Warn("failed to release autodraft lock", zap.Error(err))
			}
		}()
	}

	start, end := s.previousMonth(now)
	result, err := s.settlementSvc.Autodraft(ctx, start, end)
	if result != nil {
		jobRunFromContext(ctx).AddProcessed(result.Drafted)
		obsmetrics.Scheduler().AddBatchProcessed("settlement_autodraft", "settlements", result.Drafted)
		log.Info("settlement autodraft sweep finished",
			zap.Time("period_start", start),
			zap.Time("period_end", end),
			zap.Int("trainers", result.Trainers),
			zap.Int("drafted", result.Drafted),
			zap.Int("skipped", result.Skipped),
		)
	}
	if err != nil {
		return err
	}
	s.lastAutodraft = now
	return nil
}

// previousMonth returns the inclusive bounds of the last full civil
// month in the studio timezone: its first midnight and its final
// second, both converted to UTC for querying.
func (s *Scheduler) previousMonth(now time.Time) (time.Time, time.Time) {
	local := now.In(s.loc)
	firstOfThis := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.loc)
	start := firstOfThis.AddDate(0, -1, 0)
	end := firstOfThis.Add(-time.Second)
	return start.UTC(), end.UTC()
}
