package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/studiokit/kassza/internal/audit/domain"
	"github.com/studiokit/kassza/internal/cache"
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
	"github.com/studiokit/kassza/internal/clock"
	"github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/events"
	eventsdomain "github.com/studiokit/kassza/internal/events/domain"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	"github.com/studiokit/kassza/internal/observability/metrics"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config        config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          pricingdomain.Repository
	CatalogRepo   catalogdomain.Repository
	MemberRepo    memberdomain.Repository
	Events        events.Publisher
	ResolverCache cache.BookingResolverCache
	Audit         auditdomain.Service `optional:"true"`
	Metrics       *metrics.Metrics    `optional:"true"`
}

type Service struct {
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          pricingdomain.Repository
	catalogRepo   catalogdomain.Repository
	memberRepo    memberdomain.Repository
	events        events.Publisher
	resolverCache cache.BookingResolverCache
	auditSvc      auditdomain.Service
	metrics       *metrics.Metrics
}

func New(p Params) pricingdomain.Service {
	return &Service{
		cfg:           p.Config,
		db:            p.DB,
		log:           p.Log.Named("pricing.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		catalogRepo:   p.CatalogRepo,
		memberRepo:    p.MemberRepo,
		events:        p.Events,
		resolverCache: p.ResolverCache,
		auditSvc:      p.Audit,
		metrics:       p.Metrics,
	}
}

// normalizeToMinutePrecision truncates time to minute precision in UTC.
// This keeps rule window boundaries comparable across writers.
func normalizeToMinutePrecision(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

func (s *Service) Resolve(ctx context.Context, req pricingdomain.ResolveRequest) (*pricingdomain.ResolvedPrice, error) {
	memberID, err := parseID(req.MemberID)
	if err != nil {
		return nil, pricingdomain.ErrInvalidMember
	}

	occurrence, err := s.occurrence(ctx, req.OccurrenceID)
	if err != nil {
		return nil, err
	}

	at := resolveAt(req.At, occurrence.StartsAt)
	if s.isTechnicalGuest(memberID) {
		return s.resolveDefault(ctx, occurrence, at)
	}
	return s.resolveMember(ctx, memberID, occurrence, at)
}

// ResolveForEmail prices a booking identified only by an email address.
// Addresses that match no member account pay the walk-in default.
func (s *Service) ResolveForEmail(ctx context.Context, req pricingdomain.ResolveForEmailRequest) (*pricingdomain.ResolvedPrice, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, pricingdomain.ErrInvalidEmail
	}

	occurrence, err := s.occurrence(ctx, req.OccurrenceID)
	if err != nil {
		return nil, err
	}
	at := resolveAt(req.At, occurrence.StartsAt)

	member, err := s.memberRepo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if member == nil || s.isTechnicalGuest(member.ID) {
		return s.resolveDefault(ctx, occurrence, at)
	}
	return s.resolveMember(ctx, member.ID, occurrence, at)
}

func (s *Service) ResolveDefault(ctx context.Context, req pricingdomain.ResolveDefaultRequest) (*pricingdomain.ResolvedPrice, error) {
	occurrence, err := s.occurrence(ctx, req.OccurrenceID)
	if err != nil {
		return nil, err
	}
	return s.resolveDefault(ctx, occurrence, resolveAt(req.At, occurrence.StartsAt))
}

// resolveMember walks the client chain: occurrence override, template
// override, template default. The first tier holding a valid rule wins
// outright, even when a lower tier would be cheaper.
func (s *Service) resolveMember(ctx context.Context, memberID snowflake.ID, occurrence *catalogdomain.ClassOccurrence, at time.Time) (*pricingdomain.ResolvedPrice, error) {
	occurrenceRules, err := s.repo.FindValidOccurrencePrices(ctx, s.db, memberID, occurrence.ID, at)
	if err != nil {
		return nil, err
	}
	if len(occurrenceRules) > 0 {
		rule := occurrenceRules[0]
		s.noteAnomaly(ctx, pricingdomain.PriceSourceClientOccurrence, len(occurrenceRules), rule.ID)
		return s.resolved(ctx, rule.EntryFeeBrutto, rule.TrainerFeeBrutto, rule.Currency, pricingdomain.PriceSourceClientOccurrence, rule.ID), nil
	}

	templateRules, err := s.repo.FindValidTemplatePrices(ctx, s.db, memberID, occurrence.TemplateID, at)
	if err != nil {
		return nil, err
	}
	if len(templateRules) > 0 {
		rule := templateRules[0]
		s.noteAnomaly(ctx, pricingdomain.PriceSourceClientTemplate, len(templateRules), rule.ID)
		return s.resolved(ctx, rule.EntryFeeBrutto, rule.TrainerFeeBrutto, rule.Currency, pricingdomain.PriceSourceClientTemplate, rule.ID), nil
	}

	defaults, err := s.repo.FindValidTemplateDefaults(ctx, s.db, occurrence.TemplateID, at)
	if err != nil {
		return nil, err
	}
	if len(defaults) > 0 {
		rule := defaults[0]
		s.noteAnomaly(ctx, pricingdomain.PriceSourceTemplateDefault, len(defaults), rule.ID)
		return s.resolved(ctx, rule.EntryFeeBrutto, rule.TrainerFeeBrutto, rule.Currency, pricingdomain.PriceSourceTemplateDefault, rule.ID), nil
	}

	return nil, &pricingdomain.MissingPricingError{
		MemberID:     memberID,
		OccurrenceID: occurrence.ID,
		TemplateID:   occurrence.TemplateID,
		At:           at,
	}
}

// resolveDefault walks the walk-in chain: template default, then the
// service-type default. Client overrides never apply here.
func (s *Service) resolveDefault(ctx context.Context, occurrence *catalogdomain.ClassOccurrence, at time.Time) (*pricingdomain.ResolvedPrice, error) {
	defaults, err := s.repo.FindValidTemplateDefaults(ctx, s.db, occurrence.TemplateID, at)
	if err != nil {
		return nil, err
	}
	if len(defaults) > 0 {
		rule := defaults[0]
		s.noteAnomaly(ctx, pricingdomain.PriceSourceTemplateDefault, len(defaults), rule.ID)
		return s.resolved(ctx, rule.EntryFeeBrutto, rule.TrainerFeeBrutto, rule.Currency, pricingdomain.PriceSourceTemplateDefault, rule.ID), nil
	}

	serviceDefaults, err := s.repo.FindValidServiceDefaults(ctx, s.db, occurrence.ServiceTypeID, at)
	if err != nil {
		return nil, err
	}
	if len(serviceDefaults) > 0 {
		rule := serviceDefaults[0]
		s.noteAnomaly(ctx, pricingdomain.PriceSourceServiceDefault, len(serviceDefaults), rule.ID)
		return s.resolved(ctx, rule.EntryFeeBrutto, rule.TrainerFeeBrutto, rule.Currency, pricingdomain.PriceSourceServiceDefault, rule.ID), nil
	}

	return nil, &pricingdomain.MissingPricingError{
		MemberID:     snowflake.ID(s.cfg.TechnicalGuestID),
		OccurrenceID: occurrence.ID,
		TemplateID:   occurrence.TemplateID,
		At:           at,
	}
}

func (s *Service) CreateOccurrencePrice(ctx context.Context, req pricingdomain.CreateOccurrencePriceRequest) (*pricingdomain.ClientOccurrencePrice, error) {
	memberID, err := s.requireClientMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	occurrence, err := s.occurrence(ctx, req.OccurrenceID)
	if err != nil {
		return nil, err
	}

	fees, err := s.ruleValues(req.EntryFeeBrutto, req.TrainerFeeBrutto, req.Currency, req.ValidFrom, req.ValidUntil)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entity := &pricingdomain.ClientOccurrencePrice{
		ID:               s.genID.Generate(),
		MemberID:         memberID,
		OccurrenceID:     occurrence.ID,
		EntryFeeBrutto:   fees.entry,
		TrainerFeeBrutto: fees.trainer,
		Currency:         fees.currency,
		ValidFrom:        fees.validFrom,
		ValidUntil:       fees.validUntil,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertOccurrencePrice(ctx, tx, entity); err != nil {
			return err
		}
		return s.publishRuleCreated(ctx, tx, entity.ID, pricingdomain.PriceSourceClientOccurrence, map[string]any{
			"member_id":     memberID.String(),
			"occurrence_id": occurrence.ID.String(),
		})
	}); err != nil {
		return nil, err
	}

	s.auditRule(ctx, entity.ID, pricingdomain.PriceSourceClientOccurrence, fees)
	return entity, nil
}

func (s *Service) CreateTemplatePrice(ctx context.Context, req pricingdomain.CreateTemplatePriceRequest) (*pricingdomain.ClientTemplatePrice, error) {
	memberID, err := s.requireClientMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	template, err := s.template(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	fees, err := s.ruleValues(req.EntryFeeBrutto, req.TrainerFeeBrutto, req.Currency, req.ValidFrom, req.ValidUntil)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entity := &pricingdomain.ClientTemplatePrice{
		ID:               s.genID.Generate(),
		MemberID:         memberID,
		TemplateID:       template.ID,
		EntryFeeBrutto:   fees.entry,
		TrainerFeeBrutto: fees.trainer,
		Currency:         fees.currency,
		ValidFrom:        fees.validFrom,
		ValidUntil:       fees.validUntil,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertTemplatePrice(ctx, tx, entity); err != nil {
			return err
		}
		return s.publishRuleCreated(ctx, tx, entity.ID, pricingdomain.PriceSourceClientTemplate, map[string]any{
			"member_id":   memberID.String(),
			"template_id": template.ID.String(),
		})
	}); err != nil {
		return nil, err
	}

	s.auditRule(ctx, entity.ID, pricingdomain.PriceSourceClientTemplate, fees)
	return entity, nil
}

func (s *Service) CreateTemplateDefault(ctx context.Context, req pricingdomain.CreateTemplateDefaultRequest) (*pricingdomain.TemplateDefaultPrice, error) {
	template, err := s.template(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	fees, err := s.ruleValues(req.EntryFeeBrutto, req.TrainerFeeBrutto, req.Currency, req.ValidFrom, req.ValidUntil)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entity := &pricingdomain.TemplateDefaultPrice{
		ID:               s.genID.Generate(),
		TemplateID:       template.ID,
		Code:             slug.Make(template.Name + " default"),
		EntryFeeBrutto:   fees.entry,
		TrainerFeeBrutto: fees.trainer,
		Currency:         fees.currency,
		IsActive:         true,
		ValidFrom:        fees.validFrom,
		ValidUntil:       fees.validUntil,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertTemplateDefault(ctx, tx, entity); err != nil {
			return err
		}
		return s.publishRuleCreated(ctx, tx, entity.ID, pricingdomain.PriceSourceTemplateDefault, map[string]any{
			"template_id": template.ID.String(),
			"code":        entity.Code,
		})
	}); err != nil {
		return nil, err
	}

	s.auditRule(ctx, entity.ID, pricingdomain.PriceSourceTemplateDefault, fees)
	return entity, nil
}

func (s *Service) CreateServiceDefault(ctx context.Context, req pricingdomain.CreateServiceDefaultRequest) (*pricingdomain.ServiceDefaultPrice, error) {
	serviceTypeID, err := parseID(req.ServiceTypeID)
	if err != nil {
		return nil, pricingdomain.ErrInvalidServiceType
	}
	serviceType, err := s.catalogRepo.FindServiceTypeByID(ctx, s.db, serviceTypeID)
	if err != nil {
		return nil, err
	}
	if serviceType == nil {
		return nil, pricingdomain.ErrInvalidServiceType
	}

	fees, err := s.ruleValues(req.EntryFeeBrutto, req.TrainerFeeBrutto, req.Currency, req.ValidFrom, req.ValidUntil)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entity := &pricingdomain.ServiceDefaultPrice{
		ID:               s.genID.Generate(),
		ServiceTypeID:    serviceType.ID,
		Code:             slug.Make(serviceType.Name + " walk in"),
		EntryFeeBrutto:   fees.entry,
		TrainerFeeBrutto: fees.trainer,
		Currency:         fees.currency,
		IsActive:         true,
		ValidFrom:        fees.validFrom,
		ValidUntil:       fees.validUntil,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertServiceDefault(ctx, tx, entity); err != nil {
			return err
		}
		return s.publishRuleCreated(ctx, tx, entity.ID, pricingdomain.PriceSourceServiceDefault, map[string]any{
			"service_type_id": serviceType.ID.String(),
			"code":            entity.Code,
		})
	}); err != nil {
		return nil, err
	}

	s.auditRule(ctx, entity.ID, pricingdomain.PriceSourceServiceDefault, fees)
	return entity, nil
}

// GenerateDefaultPrices seeds one template default for every active
// template that has none valid right now. Covered templates are left
// alone, so the operation is safe to repeat.
func (s *Service) GenerateDefaultPrices(ctx context.Context, req pricingdomain.GenerateDefaultPricesRequest) (int, error) {
	fees, err := s.ruleValues(req.EntryFeeBrutto, req.TrainerFeeBrutto, req.Currency, nil, nil)
	if err != nil {
		return 0, err
	}

	templates, err := s.repo.ListTemplatesWithoutDefault(ctx, s.db, fees.validFrom)
	if err != nil {
		return 0, err
	}
	if len(templates) == 0 {
		return 0, nil
	}

	now := s.clock.Now()
	created := 0
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, template := range templates {
			entity := &pricingdomain.TemplateDefaultPrice{
				ID:               s.genID.Generate(),
				TemplateID:       template.ID,
				Code:             slug.Make(template.Name + " default"),
				EntryFeeBrutto:   fees.entry,
				TrainerFeeBrutto: fees.trainer,
				Currency:         fees.currency,
				IsActive:         true,
				ValidFrom:        fees.validFrom,
				ValidUntil:       nil,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := s.repo.InsertTemplateDefault(ctx, tx, entity); err != nil {
				return err
			}
			if err := s.publishRuleCreated(ctx, tx, entity.ID, pricingdomain.PriceSourceTemplateDefault, map[string]any{
				"template_id": template.ID.String(),
				"code":        entity.Code,
			}); err != nil {
				return err
			}
			created++
		}
		return nil
	}); err != nil {
		return 0, err
	}

	s.log.Info("generated template default prices", zap.Int("created", created))
	s.audit(ctx, "pricing.defaults_generated", nil, map[string]any{
		"created":            created,
		"entry_fee_brutto":   fees.entry,
		"trainer_fee_brutto": fees.trainer,
		"currency":           fees.currency,
	})
	return created, nil
}

func (s *Service) RetireTemplateDefault(ctx context.Context, id string) error {
	parsed, err := parseID(id)
	if err != nil {
		return err
	}
	ok, err := s.repo.SetTemplateDefaultActive(ctx, s.db, parsed, false)
	if err != nil {
		return err
	}
	if !ok {
		return pricingdomain.ErrNotFound
	}

	target := parsed.String()
	s.audit(ctx, "pricing.default_retired", &target, map[string]any{
		"tier": string(pricingdomain.PriceSourceTemplateDefault),
	})
	return nil
}

func (s *Service) RetireServiceDefault(ctx context.Context, id string) error {
	parsed, err := parseID(id)
	if err != nil {
		return err
	}
	ok, err := s.repo.SetServiceDefaultActive(ctx, s.db, parsed, false)
	if err != nil {
		return err
	}
	if !ok {
		return pricingdomain.ErrNotFound
	}

	target := parsed.String()
	s.audit(ctx, "pricing.default_retired", &target, map[string]any{
		"tier": string(pricingdomain.PriceSourceServiceDefault),
	})
	return nil
}

func (s *Service) ListMemberRules(ctx context.Context, memberID string) (*pricingdomain.MemberRules, error) {
	parsed, err := parseID(memberID)
	if err != nil {
		return nil, pricingdomain.ErrInvalidMember
	}

	occurrencePrices, err := s.repo.ListOccurrencePrices(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	templatePrices, err := s.repo.ListTemplatePrices(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}

	return &pricingdomain.MemberRules{
		OccurrencePrices: occurrencePrices,
		TemplatePrices:   templatePrices,
	}, nil
}

func (s *Service) ListTemplateDefaults(ctx context.Context, templateID string) ([]pricingdomain.TemplateDefaultPrice, error) {
	parsed, err := parseID(templateID)
	if err != nil {
		return nil, pricingdomain.ErrInvalidTemplate
	}
	return s.repo.ListTemplateDefaults(ctx, s.db, parsed)
}

func (s *Service) ListServiceDefaults(ctx context.Context, serviceTypeID string) ([]pricingdomain.ServiceDefaultPrice, error) {
	parsed, err := parseID(serviceTypeID)
	if err != nil {
		return nil, pricingdomain.ErrInvalidServiceType
	}
	return s.repo.ListServiceDefaults(ctx, s.db, parsed)
}

// occurrence loads session metadata through the resolver cache. Only the
// structural row is cached; rules are always read fresh.
func (s *Service) occurrence(ctx context.Context, id string) (*catalogdomain.ClassOccurrence, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, pricingdomain.ErrInvalidOccurrence
	}

	key := parsed.String()
	if cached, ok := s.resolverCache.GetOccurrence(key); ok {
		return &cached, nil
	}

	occurrence, err := s.catalogRepo.FindOccurrenceByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if occurrence == nil {
		return nil, pricingdomain.ErrInvalidOccurrence
	}

	s.resolverCache.SetOccurrence(key, *occurrence)
	return occurrence, nil
}

func (s *Service) template(ctx context.Context, id string) (*catalogdomain.ClassTemplate, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, pricingdomain.ErrInvalidTemplate
	}

	template, err := s.catalogRepo.FindTemplateByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, pricingdomain.ErrInvalidTemplate
	}
	return template, nil
}

// requireClientMember validates the member a client rule is written for.
// The technical guest is rejected: it always walks the default chain, so
// a client rule for it would be a dead row.
func (s *Service) requireClientMember(ctx context.Context, id string) (snowflake.ID, error) {
	parsed, err := parseID(id)
	if err != nil {
		return 0, pricingdomain.ErrInvalidMember
	}
	if s.isTechnicalGuest(parsed) {
		return 0, pricingdomain.ErrInvalidMember
	}

	member, err := s.memberRepo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return 0, err
	}
	if member == nil {
		return 0, pricingdomain.ErrInvalidMember
	}
	return parsed, nil
}

type ruleValues struct {
	entry      int64
	trainer    int64
	currency   string
	validFrom  time.Time
	validUntil *time.Time
}

func (s *Service) ruleValues(entry, trainer int64, currency string, from, until *time.Time) (ruleValues, error) {
	if entry < 0 || trainer < 0 {
		return ruleValues{}, pricingdomain.ErrInvalidAmount
	}

	normalized := strings.ToUpper(strings.TrimSpace(currency))
	if normalized == "" {
		normalized = s.cfg.DefaultCurrency
	}
	if normalized == "" {
		return ruleValues{}, pricingdomain.ErrInvalidCurrency
	}

	validFrom := normalizeToMinutePrecision(s.clock.Now())
	if from != nil {
		validFrom = normalizeToMinutePrecision(*from)
	}
	if validFrom.IsZero() {
		return ruleValues{}, pricingdomain.ErrInvalidWindow
	}

	var validUntil *time.Time
	if until != nil {
		value := normalizeToMinutePrecision(*until)
		validUntil = &value
		if validUntil.Before(validFrom) {
			return ruleValues{}, pricingdomain.ErrInvalidWindow
		}
	}

	return ruleValues{
		entry:      entry,
		trainer:    trainer,
		currency:   normalized,
		validFrom:  validFrom,
		validUntil: validUntil,
	}, nil
}

func (s *Service) isTechnicalGuest(id snowflake.ID) bool {
	return s.cfg.TechnicalGuestID != 0 && int64(id) == s.cfg.TechnicalGuestID
}

func (s *Service) resolved(ctx context.Context, entry, trainer int64, currency string, source pricingdomain.PriceSource, ruleID snowflake.ID) *pricingdomain.ResolvedPrice {
	s.metrics.RecordPriceResolution(ctx, string(source))
	return &pricingdomain.ResolvedPrice{
		EntryFeeBrutto:   entry,
		TrainerFeeBrutto: trainer,
		Currency:         currency,
		Source:           source,
		SourceID:         ruleID,
	}
}

// noteAnomaly flags overlapping rules inside one tier. The pick already
// happened deterministically in SQL, so this only warns and counts.
func (s *Service) noteAnomaly(ctx context.Context, tier pricingdomain.PriceSource, candidates int, winner snowflake.ID) {
	if candidates < 2 {
		return
	}
	s.log.Warn("overlapping pricing rules in one tier",
		zap.String("tier", string(tier)),
		zap.String("winner_id", winner.String()),
	)
	s.metrics.RecordPricingAnomaly(ctx, string(tier))
}

func (s *Service) publishRuleCreated(ctx context.Context, tx *gorm.DB, ruleID snowflake.ID, tier pricingdomain.PriceSource, extra map[string]any) error {
	payload := map[string]any{
		"rule_id": ruleID.String(),
		"tier":    string(tier),
	}
	for key, value := range extra {
		payload[key] = value
	}
	return s.events.PublishTx(ctx, tx, eventsdomain.PricingRuleCreatedTopic, "pricing.rule_created:"+ruleID.String(), payload)
}

func (s *Service) auditRule(ctx context.Context, ruleID snowflake.ID, tier pricingdomain.PriceSource, fees ruleValues) {
	target := ruleID.String()
	s.audit(ctx, "pricing.rule_created", &target, map[string]any{
		"tier":               string(tier),
		"entry_fee_brutto":   fees.entry,
		"trainer_fee_brutto": fees.trainer,
		"currency":           fees.currency,
	})
}

func (s *Service) audit(ctx context.Context, action string, targetID *string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, "pricing_rule", targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, pricingdomain.ErrInvalidID
	}
	return id, nil
}

func resolveAt(requested *time.Time, startsAt time.Time) time.Time {
	if requested != nil {
		return requested.UTC()
	}
	return startsAt.UTC()
}
