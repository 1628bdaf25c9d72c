package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/studiokit/kassza/internal/audit/domain"
	"github.com/studiokit/kassza/internal/auditcontext"
	"github.com/studiokit/kassza/internal/clock"
	"github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/events"
	eventsdomain "github.com/studiokit/kassza/internal/events/domain"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	"github.com/studiokit/kassza/internal/observability/metrics"
	passdomain "github.com/studiokit/kassza/internal/pass/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config     config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       passdomain.Repository
	MemberRepo memberdomain.Repository
	Events     events.Publisher
	Audit      auditdomain.Service `optional:"true"`
	Metrics    *metrics.Metrics    `optional:"true"`
}

type Service struct {
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       passdomain.Repository
	memberRepo memberdomain.Repository
	events     events.Publisher
	auditSvc   auditdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) passdomain.Service {
	return &Service{
		cfg:        p.Config,
		db:         p.DB,
		log:        p.Log.Named("pass.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		memberRepo: p.MemberRepo,
		events:     p.Events,
		auditSvc:   p.Audit,
		metrics:    p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req passdomain.CreatePassRequest) (*passdomain.Pass, error) {
	memberID, err := parseID(req.MemberID)
	if err != nil {
		return nil, passdomain.ErrInvalidMember
	}
	member, err := s.memberRepo.FindByID(ctx, s.db, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, passdomain.ErrInvalidMember
	}

	if req.TotalCredits < 1 {
		return nil, passdomain.ErrInvalidCredits
	}

	now := s.clock.Now().UTC()
	validFrom := now
	if req.ValidFrom != nil {
		validFrom = req.ValidFrom.UTC()
	}
	var validUntil *time.Time
	if req.ValidUntil != nil {
		until := req.ValidUntil.UTC()
		if until.Before(validFrom) {
			return nil, passdomain.ErrInvalidWindow
		}
		validUntil = &until
	}

	pass := &passdomain.Pass{
		ID:           s.genID.Generate(),
		MemberID:     memberID,
		TotalCredits: req.TotalCredits,
		CreditsLeft:  req.TotalCredits,
		Status:       passdomain.PassStatusActive,
		ValidFrom:    validFrom,
		ValidUntil:   validUntil,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, pass); err != nil {
			return err
		}
		payload := map[string]any{
			"pass_id":       pass.ID.String(),
			"member_id":     pass.MemberID.String(),
			"total_credits": pass.TotalCredits,
			"valid_from":    pass.ValidFrom,
		}
		if pass.ValidUntil != nil {
			payload["valid_until"] = *pass.ValidUntil
		}
		return s.events.PublishTx(ctx, tx, eventsdomain.PassCreatedTopic, "pass.created:"+pass.ID.String(), payload)
	})
	if err != nil {
		return nil, err
	}

	target := pass.ID.String()
	s.audit(ctx, "pass.created", &target, map[string]any{
		"member_id":     pass.MemberID.String(),
		"total_credits": pass.TotalCredits,
	})

	return pass, nil
}

func (s *Service) List(ctx context.Context, memberID string) ([]passdomain.Pass, error) {
	id, err := parseID(memberID)
	if err != nil {
		return nil, passdomain.ErrInvalidMember
	}
	return s.repo.ListByMember(ctx, s.db, id)
}

func (s *Service) GetByID(ctx context.Context, id string) (*passdomain.Pass, error) {
	passID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	pass, err := s.repo.FindByID(ctx, s.db, passID)
	if err != nil {
		return nil, err
	}
	if pass == nil {
		return nil, passdomain.ErrNotFound
	}
	return pass, nil
}

func (s *Service) HasAvailableCredits(ctx context.Context, memberID string) (bool, error) {
	pass, err := s.GetAvailablePass(ctx, memberID)
	if err != nil {
		return false, err
	}
	return pass != nil, nil
}

// GetAvailablePass returns the pass the next deduction would hit, or nil
// when the member has no usable credits right now.
func (s *Service) GetAvailablePass(ctx context.Context, memberID string) (*passdomain.Pass, error) {
	id, err := parseID(memberID)
	if err != nil {
		return nil, passdomain.ErrInvalidMember
	}
	return s.repo.FindAvailable(ctx, s.db, id, s.clock.Now().UTC())
}

func (s *Service) TotalAvailableCredits(ctx context.Context, memberID string) (int64, error) {
	id, err := parseID(memberID)
	if err != nil {
		return 0, passdomain.ErrInvalidMember
	}
	return s.repo.SumAvailableCredits(ctx, s.db, id, s.clock.Now().UTC())
}

// DeductCredit burns one credit off the member's best available pass.
// The pick and the guarded decrement run in one transaction; losing a
// race surfaces as a policy violation, never as a double spend.
func (s *Service) DeductCredit(ctx context.Context, req passdomain.DeductCreditRequest) (*passdomain.Pass, error) {
	memberID, err := parseID(req.MemberID)
	if err != nil {
		return nil, passdomain.ErrInvalidMember
	}
	var occurrenceID *snowflake.ID
	if strings.TrimSpace(req.OccurrenceID) != "" {
		id, err := parseID(req.OccurrenceID)
		if err != nil {
			return nil, err
		}
		occurrenceID = &id
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual"
	}

	var passID snowflake.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()

		pass, err := s.repo.FindAvailable(ctx, tx, memberID, now)
		if err != nil {
			return err
		}
		if pass == nil {
			return &passdomain.PolicyViolationError{MemberID: memberID, Reason: passdomain.ViolationNoAvailablePass}
		}

		ok, err := s.repo.DeductCredit(ctx, tx, pass.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return &passdomain.PolicyViolationError{MemberID: memberID, PassID: pass.ID, Reason: passdomain.ViolationPassExhausted}
		}
		passID = pass.ID

		usage := &passdomain.PassUsage{
			ID:           s.genID.Generate(),
			PassID:       pass.ID,
			MemberID:     memberID,
			Direction:    passdomain.UsageDirectionDeduct,
			Credits:      1,
			Reason:       reason,
			OccurrenceID: occurrenceID,
			CreatedAt:    now,
		}
		if err := s.repo.InsertUsage(ctx, tx, usage); err != nil {
			return err
		}

		payload := map[string]any{
			"usage_id":     usage.ID.String(),
			"pass_id":      pass.ID.String(),
			"member_id":    memberID.String(),
			"credits_left": pass.CreditsLeft - 1,
			"reason":       reason,
		}
		if occurrenceID != nil {
			payload["occurrence_id"] = occurrenceID.String()
		}
		return s.events.PublishTx(ctx, tx, eventsdomain.PassDeductedTopic, "pass.deducted:"+usage.ID.String(), payload)
	})
	if err != nil {
		s.noteViolation(ctx, err)
		return nil, err
	}

	pass, err := s.repo.FindByID(ctx, s.db, passID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPassDeduction(ctx)

	target := passID.String()
	s.audit(ctx, "pass.deducted", &target, map[string]any{
		"member_id": memberID.String(),
		"reason":    reason,
	})

	return pass, nil
}

// RefundCredit puts credits back on a pass: the named one when the
// request carries a pass id, otherwise the most recently used pass that
// still has room. Refunds clamp at total_credits; the surplus is dropped,
// not carried to another pass.
func (s *Service) RefundCredit(ctx context.Context, req passdomain.RefundCreditRequest) (*passdomain.Pass, error) {
	memberID, err := parseID(req.MemberID)
	if err != nil {
		return nil, passdomain.ErrInvalidMember
	}
	credits := req.Credits
	if credits == 0 {
		credits = 1
	}
	if credits < 0 {
		return nil, passdomain.ErrInvalidCredits
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual"
	}

	var passID snowflake.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()

		var pass *passdomain.Pass
		if strings.TrimSpace(req.PassID) != "" {
			id, err := parseID(req.PassID)
			if err != nil {
				return err
			}
			pass, err = s.repo.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if pass == nil || pass.MemberID != memberID {
				return passdomain.ErrNotFound
			}
		} else {
			pass, err = s.repo.FindRefundTarget(ctx, tx, memberID)
			if err != nil {
				return err
			}
			if pass == nil {
				return &passdomain.PolicyViolationError{MemberID: memberID, Reason: passdomain.ViolationNoRefundable}
			}
		}

		room := pass.TotalCredits - pass.CreditsLeft
		if room <= 0 {
			return &passdomain.PolicyViolationError{MemberID: memberID, PassID: pass.ID, Reason: passdomain.ViolationPassFull}
		}
		granted := credits
		if granted > room {
			granted = room
		}

		ok, err := s.repo.RefundCredit(ctx, tx, pass.ID, granted, now)
		if err != nil {
			return err
		}
		if !ok {
			return &passdomain.PolicyViolationError{MemberID: memberID, PassID: pass.ID, Reason: passdomain.ViolationRefundConflict}
		}
		passID = pass.ID

		usage := &passdomain.PassUsage{
			ID:        s.genID.Generate(),
			PassID:    pass.ID,
			MemberID:  memberID,
			Direction: passdomain.UsageDirectionRefund,
			Credits:   granted,
			Reason:    reason,
			CreatedAt: now,
		}
		if err := s.repo.InsertUsage(ctx, tx, usage); err != nil {
			return err
		}

		return s.events.PublishTx(ctx, tx, eventsdomain.PassRefundedTopic, "pass.refunded:"+usage.ID.String(), map[string]any{
			"usage_id":  usage.ID.String(),
			"pass_id":   pass.ID.String(),
			"member_id": memberID.String(),
			"credits":   granted,
			"reason":    reason,
		})
	})
	if err != nil {
		s.noteViolation(ctx, err)
		return nil, err
	}

	pass, err := s.repo.FindByID(ctx, s.db, passID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPassRefund(ctx)

	target := passID.String()
	s.audit(ctx, "pass.refunded", &target, map[string]any{
		"member_id": memberID.String(),
		"reason":    reason,
	})

	return pass, nil
}

func (s *Service) ListUsages(ctx context.Context, passID string) ([]passdomain.PassUsage, error) {
	id, err := parseID(passID)
	if err != nil {
		return nil, err
	}
	pass, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if pass == nil {
		return nil, passdomain.ErrNotFound
	}
	return s.repo.ListUsages(ctx, s.db, id)
}

func (s *Service) noteViolation(ctx context.Context, err error) {
	var violation *passdomain.PolicyViolationError
	if !errors.As(err, &violation) {
		return
	}
	s.log.Warn("credit policy violation",
		zap.String("member_id", violation.MemberID.String()),
		zap.String("reason", violation.Reason),
	)
	s.metrics.RecordPolicyViolation(ctx, violation.Reason)
}

func (s *Service) audit(ctx context.Context, action string, targetID *string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if targetID != nil {
		ctx = auditcontext.WithPassID(ctx, *targetID)
	}
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, "pass", targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, passdomain.ErrInvalidID
	}
	return id, nil
}
