package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/studiokit/kassza/internal/audit/domain"
	"github.com/studiokit/kassza/internal/auditcontext"
	"github.com/studiokit/kassza/internal/clock"
	"github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/events"
	eventsdomain "github.com/studiokit/kassza/internal/events/domain"
	"github.com/studiokit/kassza/internal/feepolicy"
	"github.com/studiokit/kassza/internal/observability/metrics"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
	settlementdomain "github.com/studiokit/kassza/internal/settlement/domain"
	"github.com/studiokit/kassza/internal/settlement/guard"
	trainerdomain "github.com/studiokit/kassza/internal/trainer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config      config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        settlementdomain.Repository
	TrainerRepo trainerdomain.Repository
	Pricing     pricingdomain.Service
	Policy      feepolicy.Policy
	Events      events.Publisher
	Audit       auditdomain.Service       `optional:"true"`
	Metrics     *metrics.Metrics          `optional:"true"`
	Sched       *metrics.SchedulerMetrics `optional:"true"`
}

type Service struct {
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        settlementdomain.Repository
	trainerRepo trainerdomain.Repository
	pricing     pricingdomain.Service
	policy      feepolicy.Policy
	events      events.Publisher
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
	sched       *metrics.SchedulerMetrics
}

func New(p Params) settlementdomain.Service {
	return &Service{
		cfg:         p.Config,
		db:          p.DB,
		log:         p.Log.Named("settlement.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		trainerRepo: p.TrainerRepo,
		pricing:     p.Pricing,
		policy:      p.Policy,
		events:      p.Events,
		auditSvc:    p.Audit,
		metrics:     p.Metrics,
		sched:       p.Sched,
	}
}

// settlementScope is a validated (trainer, period) pair. Both Compute
// and Generate start from one so preview and persist cannot drift.
type settlementScope struct {
	trainer *trainerdomain.Trainer
	start   time.Time
	end     time.Time
}

func (s *Service) Compute(ctx context.Context, req settlementdomain.ComputeRequest) (*settlementdomain.ComputedSettlement, error) {
	scope, err := s.resolveScope(ctx, req.TrainerID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}
	computed, err := s.compute(ctx, scope)
	if err != nil {
		return nil, err
	}
	s.recordRun(ctx, "preview", computed)
	return computed, nil
}

// Generate persists the computation as a draft. An existing draft for
// the same trainer and period is regenerated in place; a finalized or
// paid settlement refuses.
func (s *Service) Generate(ctx context.Context, req settlementdomain.GenerateRequest) (*settlementdomain.Settlement, error) {
	scope, err := s.resolveScope(ctx, req.TrainerID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}

	// Pricing happens outside the write transaction. Drafts are
	// regenerable, so a rule changing mid-run is corrected by the next
	// run instead of holding row locks across resolver calls.
	computed, err := s.compute(ctx, scope)
	if err != nil {
		s.sched.IncSettlementError(metrics.SettlementStageComputeDraft, err)
		return nil, err
	}

	var settlementID snowflake.ID
	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()

		existing, err := s.repo.FindByTrainerPeriod(ctx, tx, scope.trainer.ID, scope.start, scope.end)
		if err != nil {
			return err
		}

		header := &settlementdomain.Settlement{
			TrainerID:          scope.trainer.ID,
			TrainerName:        computed.TrainerName,
			PeriodStart:        scope.start,
			PeriodEnd:          scope.end,
			Status:             settlementdomain.SettlementStatusDraft,
			TotalEntryBrutto:   computed.TotalEntryBrutto,
			TotalTrainerBrutto: computed.TotalTrainerBrutto,
			Currency:           computed.Currency,
			ItemCount:          len(computed.Items),
			SkipCount:          len(computed.Skips),
			UpdatedAt:          now,
		}

		if existing != nil {
			if err := guard.EnsureCanRegenerate(existing.Status); err != nil {
				return err
			}
			header.ID = existing.ID
			header.CreatedAt = existing.CreatedAt
			// Regeneration replaces the draft wholesale; appending
			// would double-count corrected sessions.
			if err := s.repo.DeleteItems(ctx, tx, existing.ID); err != nil {
				return err
			}
			if err := s.repo.DeleteSkips(ctx, tx, existing.ID); err != nil {
				return err
			}
			ok, err := s.repo.UpdateDraft(ctx, tx, header)
			if err != nil {
				return err
			}
			if !ok {
				return guard.ErrSettlementNotDraft
			}
		} else {
			header.ID = s.genID.Generate()
			header.CreatedAt = now
			if err := s.repo.InsertSettlement(ctx, tx, header); err != nil {
				return err
			}
			created = true
		}
		settlementID = header.ID

		for i := range computed.Items {
			item := computed.Items[i]
			item.ID = s.genID.Generate()
			item.SettlementID = header.ID
			item.CreatedAt = now
			if err := s.repo.InsertItem(ctx, tx, &item); err != nil {
				return err
			}
		}
		for i := range computed.Skips {
			skip := computed.Skips[i]
			skip.ID = s.genID.Generate()
			skip.SettlementID = header.ID
			skip.CreatedAt = now
			if err := s.repo.InsertSkip(ctx, tx, &skip); err != nil {
				return err
			}
		}

		if !created {
			return nil
		}
		return s.events.PublishTx(ctx, tx, eventsdomain.SettlementGeneratedTopic, "settlement.generated:"+header.ID.String(), map[string]any{
			"settlement_id": header.ID.String(),
			"trainer_id":    header.TrainerID.String(),
			"period_start":  header.PeriodStart,
			"period_end":    header.PeriodEnd,
			"item_count":    header.ItemCount,
			"skip_count":    header.SkipCount,
		})
	})
	if err != nil {
		s.sched.IncSettlementError(metrics.SettlementStagePersistDraft, err)
		return nil, err
	}

	s.recordRun(ctx, "persist", computed)

	target := settlementID.String()
	s.audit(ctx, "settlement.generated", &target, map[string]any{
		"trainer_id":  scope.trainer.ID.String(),
		"item_count":  len(computed.Items),
		"skip_count":  len(computed.Skips),
		"regenerated": !created,
	})

	return s.repo.FindByID(ctx, s.db, settlementID)
}

func (s *Service) Finalize(ctx context.Context, id string) (*settlementdomain.Settlement, error) {
	settlementID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	settlement, err := s.repo.FindByID(ctx, s.db, settlementID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, settlementdomain.ErrNotFound
	}
	if err := guard.EnsureCanFinalize(settlement.Status); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkFinalized(ctx, tx, settlementID, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return guard.ErrSettlementNotDraft
		}
		return s.events.PublishTx(ctx, tx, eventsdomain.SettlementFinalizedTopic, "settlement.finalized:"+settlementID.String(), map[string]any{
			"settlement_id": settlementID.String(),
			"trainer_id":    settlement.TrainerID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.sched.IncSettlementTransition(string(settlementdomain.SettlementStatusDraft), string(settlementdomain.SettlementStatusFinalized))

	target := settlementID.String()
	s.audit(ctx, "settlement.finalized", &target, map[string]any{
		"trainer_id":      settlement.TrainerID.String(),
		"previous_status": string(settlement.Status),
	})

	return s.repo.FindByID(ctx, s.db, settlementID)
}

func (s *Service) MarkPaid(ctx context.Context, id string) (*settlementdomain.Settlement, error) {
	settlementID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	settlement, err := s.repo.FindByID(ctx, s.db, settlementID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, settlementdomain.ErrNotFound
	}
	if err := guard.EnsureCanMarkPaid(settlement.Status); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkPaid(ctx, tx, settlementID, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return guard.ErrSettlementNotFinalized
		}
		return s.events.PublishTx(ctx, tx, eventsdomain.SettlementPaidTopic, "settlement.paid:"+settlementID.String(), map[string]any{
			"settlement_id": settlementID.String(),
			"trainer_id":    settlement.TrainerID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.sched.IncSettlementTransition(string(settlementdomain.SettlementStatusFinalized), string(settlementdomain.SettlementStatusPaid))

	target := settlementID.String()
	s.audit(ctx, "settlement.paid", &target, map[string]any{
		"trainer_id":      settlement.TrainerID.String(),
		"previous_status": string(settlement.Status),
	})

	return s.repo.FindByID(ctx, s.db, settlementID)
}

func (s *Service) GetByID(ctx context.Context, id string) (*settlementdomain.Settlement, error) {
	settlementID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	settlement, err := s.repo.FindByID(ctx, s.db, settlementID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, settlementdomain.ErrNotFound
	}
	return settlement, nil
}

func (s *Service) Detail(ctx context.Context, id string) (*settlementdomain.SettlementDetail, error) {
	settlement, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, s.db, settlement.ID)
	if err != nil {
		return nil, err
	}
	skips, err := s.repo.ListSkips(ctx, s.db, settlement.ID)
	if err != nil {
		return nil, err
	}
	return &settlementdomain.SettlementDetail{
		Settlement: *settlement,
		Items:      items,
		Skips:      skips,
	}, nil
}

func (s *Service) List(ctx context.Context, req settlementdomain.ListRequest) ([]settlementdomain.Settlement, error) {
	filter := settlementdomain.ListFilter{
		Status: req.Status,
		From:   req.From,
		To:     req.To,
	}
	if strings.TrimSpace(req.TrainerID) != "" {
		id, err := snowflake.ParseString(strings.TrimSpace(req.TrainerID))
		if err != nil || id == 0 {
			return nil, settlementdomain.ErrInvalidTrainer
		}
		filter.TrainerID = id
	}
	return s.repo.List(ctx, s.db, filter)
}

// Autodraft writes or refreshes a draft for every trainer who held
// sessions in the period. Finalized and paid settlements are left
// untouched; per-trainer failures are collected so one broken trainer
// cannot stall the rest of the batch.
func (s *Service) Autodraft(ctx context.Context, periodStart, periodEnd time.Time) (*settlementdomain.AutodraftResult, error) {
	start, end, err := normalizePeriod(periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	trainerIDs, err := s.repo.ListTrainerIDsWithOccurrences(ctx, s.db, start, end)
	if err != nil {
		s.sched.IncSettlementError(metrics.SettlementStageEnumerateTrainers, err)
		return nil, err
	}

	result := &settlementdomain.AutodraftResult{Trainers: len(trainerIDs)}
	var errs []error
	for _, trainerID := range trainerIDs {
		_, err := s.Generate(ctx, settlementdomain.GenerateRequest{
			TrainerID:   trainerID.String(),
			PeriodStart: start,
			PeriodEnd:   end,
		})
		switch {
		case err == nil:
			result.Drafted++
		case errors.Is(err, guard.ErrSettlementNotDraft):
			result.Skipped++
		default:
			s.log.Error("autodraft failed for trainer",
				zap.String("trainer_id", trainerID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("trainer %s: %w", trainerID, err))
		}
	}
	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}
	return result, nil
}

func (s *Service) resolveScope(ctx context.Context, trainerID string, periodStart, periodEnd time.Time) (*settlementScope, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(trainerID))
	if err != nil || id == 0 {
		return nil, settlementdomain.ErrInvalidTrainer
	}
	trainer, err := s.trainerRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if trainer == nil {
		return nil, settlementdomain.ErrTrainerNotFound
	}
	start, end, err := normalizePeriod(periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	return &settlementScope{trainer: trainer, start: start, end: end}, nil
}

// compute runs the settlement math for one scope. Sessions the policy
// charges nothing for are passed over; sessions no pricing rule covers
// become skips. Any other resolver failure aborts the whole run.
func (s *Service) compute(ctx context.Context, scope *settlementScope) (*settlementdomain.ComputedSettlement, error) {
	rows, err := s.repo.ListBillableRegistrations(ctx, s.db, scope.trainer.ID, scope.start, scope.end)
	if err != nil {
		return nil, err
	}

	computed := &settlementdomain.ComputedSettlement{
		TrainerID:   scope.trainer.ID,
		TrainerName: scope.trainer.Name,
		PeriodStart: scope.start,
		PeriodEnd:   scope.end,
		Items:       []settlementdomain.SettlementItem{},
		Skips:       []settlementdomain.SettlementSkip{},
	}

	for _, row := range rows {
		if !s.policy.Eligible(row.Status) {
			continue
		}

		resolved, err := s.resolveRow(ctx, row)
		if err != nil {
			if errors.Is(err, pricingdomain.ErrMissingPricing) {
				computed.Skips = append(computed.Skips, settlementdomain.SettlementSkip{
					RegistrationID: row.RegistrationID,
					OccurrenceID:   row.OccurrenceID,
					MemberID:       row.MemberID,
					MemberName:     displayName(row),
					ClassName:      row.ClassName,
					StartsAt:       row.StartsAt,
					Reason:         settlementdomain.SkipReasonMissingPricing,
					Detail:         err.Error(),
				})
				continue
			}
			return nil, err
		}

		if computed.Currency == "" {
			computed.Currency = resolved.Currency
		} else if computed.Currency != resolved.Currency {
			return nil, fmt.Errorf("%w: %s and %s on one statement", settlementdomain.ErrCurrencyMismatch, computed.Currency, resolved.Currency)
		}

		fees := s.policy.Apply(row.Status, *resolved)
		computed.Items = append(computed.Items, settlementdomain.SettlementItem{
			RegistrationID:     row.RegistrationID,
			OccurrenceID:       row.OccurrenceID,
			MemberID:           row.MemberID,
			MemberName:         displayName(row),
			ClassName:          row.ClassName,
			StartsAt:           row.StartsAt,
			RegistrationStatus: row.Status,
			PriceSource:        resolved.Source,
			EntryFeeBrutto:     fees.EntryFeeBrutto,
			TrainerFeeBrutto:   fees.TrainerFeeBrutto,
			Currency:           resolved.Currency,
		})
		computed.TotalEntryBrutto += fees.EntryFeeBrutto
		computed.TotalTrainerBrutto += fees.TrainerFeeBrutto
	}

	if computed.Currency == "" {
		computed.Currency = s.cfg.DefaultCurrency
	}
	return computed, nil
}

// resolveRow prices one registration as of the session start, not as of
// the settlement run. Guest rows resolve by email, so a walk-in address
// that belongs to a member still earns that member's pricing.
func (s *Service) resolveRow(ctx context.Context, row settlementdomain.BillableRegistration) (*pricingdomain.ResolvedPrice, error) {
	at := row.StartsAt
	if row.GuestEmail != nil && strings.TrimSpace(*row.GuestEmail) != "" {
		return s.pricing.ResolveForEmail(ctx, pricingdomain.ResolveForEmailRequest{
			Email:        *row.GuestEmail,
			OccurrenceID: row.OccurrenceID.String(),
			At:           &at,
		})
	}
	return s.pricing.Resolve(ctx, pricingdomain.ResolveRequest{
		MemberID:     row.MemberID.String(),
		OccurrenceID: row.OccurrenceID.String(),
		At:           &at,
	})
}

func (s *Service) recordRun(ctx context.Context, mode string, computed *settlementdomain.ComputedSettlement) {
	s.metrics.RecordSettlementRun(ctx, mode)
	s.metrics.RecordSettlementItems(ctx, len(computed.Items))
	if len(computed.Skips) > 0 {
		s.metrics.RecordSettlementSkips(ctx, settlementdomain.SkipReasonMissingPricing, len(computed.Skips))
	}
}

func (s *Service) audit(ctx context.Context, action string, targetID *string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if targetID != nil {
		ctx = auditcontext.WithSettlementID(ctx, *targetID)
	}
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, "settlement", targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// displayName labels the statement line. Guests have no member row, so
// the email they registered with stands in for the name.
func displayName(row settlementdomain.BillableRegistration) string {
	if row.MemberName != "" {
		return row.MemberName
	}
	if row.GuestEmail != nil {
		return *row.GuestEmail
	}
	return ""
}

// normalizePeriod validates and UTC-normalizes inclusive period bounds.
// A single-instant period (start equal to end) is legal.
func normalizePeriod(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, settlementdomain.ErrInvalidPeriod
	}
	start = start.UTC()
	end = end.UTC()
	if end.Before(start) {
		return time.Time{}, time.Time{}, settlementdomain.ErrInvalidPeriod
	}
	return start, end, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, settlementdomain.ErrInvalidID
	}
	return id, nil
}
