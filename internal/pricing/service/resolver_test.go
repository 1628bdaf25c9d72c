package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/studiokit/kassza/internal/cache"
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
	catalogrepository "github.com/studiokit/kassza/internal/catalog/repository"
	"github.com/studiokit/kassza/internal/clock"
	"github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/events"
	eventsdomain "github.com/studiokit/kassza/internal/events/domain"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	memberrepository "github.com/studiokit/kassza/internal/member/repository"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
	pricingrepository "github.com/studiokit/kassza/internal/pricing/repository"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type pricingFixture struct {
	svc  pricingdomain.Service
	db   *gorm.DB
	node *snowflake.Node
	clk  *clock.FakeClock
	repo pricingdomain.Repository
}

func setupPricingService(t *testing.T) *pricingFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(
		&pricingdomain.ClientOccurrencePrice{},
		&pricingdomain.ClientTemplatePrice{},
		&pricingdomain.TemplateDefaultPrice{},
		&pricingdomain.ServiceDefaultPrice{},
		&catalogdomain.ServiceType{},
		&catalogdomain.ClassTemplate{},
		&catalogdomain.ClassOccurrence{},
		&memberdomain.Member{},
		&eventsdomain.StudioEvent{},
	)
	assert.NoError(t, err)

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := pricingrepository.Provide()

	svc := New(Params{
		Config: config.Config{
			TechnicalGuestID: 1,
			DefaultCurrency:  "HUF",
			TimeZone:         "Europe/Budapest",
		},
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         clk,
		Repo:          repo,
		CatalogRepo:   catalogrepository.Provide(),
		MemberRepo:    memberrepository.Provide(),
		Events:        events.NewOutboxPublisher(db, node),
		ResolverCache: cache.NewBookingResolverCache(),
	})

	return &pricingFixture{svc: svc, db: db, node: node, clk: clk, repo: repo}
}

func (f *pricingFixture) seedMember(t *testing.T, name string, email *string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := f.clk.Now()
	err := f.db.Create(&memberdomain.Member{
		ID:        id,
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
	assert.NoError(t, err)
	return id
}

// seedOccurrence builds a service type, template and one session starting
// at startsAt, and returns their ids.
func (f *pricingFixture) seedOccurrence(t *testing.T, name string, startsAt time.Time) (serviceTypeID, templateID, occurrenceID snowflake.ID) {
	t.Helper()
	now := f.clk.Now()

	serviceTypeID = f.node.Generate()
	err := f.db.Create(&catalogdomain.ServiceType{
		ID:              serviceTypeID,
		Code:            name + "-svc",
		Name:            name,
		DurationMinutes: 60,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}).Error
	assert.NoError(t, err)

	templateID = f.node.Generate()
	err = f.db.Create(&catalogdomain.ClassTemplate{
		ID:              templateID,
		ServiceTypeID:   serviceTypeID,
		TrainerID:       f.node.Generate(),
		Code:            name,
		Name:            name,
		Weekdays:        []string{"monday"},
		StartTimeLocal:  "18:00",
		DurationMinutes: 60,
		Capacity:        12,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}).Error
	assert.NoError(t, err)

	occurrenceID = f.node.Generate()
	err = f.db.Create(&catalogdomain.ClassOccurrence{
		ID:            occurrenceID,
		TemplateID:    templateID,
		ServiceTypeID: serviceTypeID,
		TrainerID:     f.node.Generate(),
		StartsAt:      startsAt,
		EndsAt:        startsAt.Add(time.Hour),
		Capacity:      12,
		Status:        catalogdomain.OccurrenceStatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}).Error
	assert.NoError(t, err)

	return serviceTypeID, templateID, occurrenceID
}

func TestResolveTierPrecedence(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()

	startsAt := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	_, templateID, occurrenceID := f.seedOccurrence(t, "morning-yoga", startsAt)
	memberID := f.seedMember(t, "Kiss Anna", nil)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateTemplateDefault(ctx, pricingdomain.CreateTemplateDefaultRequest{
		TemplateID:       templateID.String(),
		EntryFeeBrutto:   2000,
		TrainerFeeBrutto: 8000,
		ValidFrom:        &from,
	})
	assert.NoError(t, err)
	_, err = f.svc.CreateTemplatePrice(ctx, pricingdomain.CreateTemplatePriceRequest{
		MemberID:         memberID.String(),
		TemplateID:       templateID.String(),
		EntryFeeBrutto:   1500,
		TrainerFeeBrutto: 6000,
		ValidFrom:        &from,
	})
	assert.NoError(t, err)
	_, err = f.svc.CreateOccurrencePrice(ctx, pricingdomain.CreateOccurrencePriceRequest{
		MemberID:         memberID.String(),
		OccurrenceID:     occurrenceID.String(),
		EntryFeeBrutto:   1000,
		TrainerFeeBrutto: 4000,
		ValidFrom:        &from,
	})
	assert.NoError(t, err)

	t.Run("occurrence override wins over lower tiers", func(t *testing.T) {
		resolved, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
			MemberID:     memberID.String(),
			OccurrenceID: occurrenceID.String(),
		})
		assert.NoError(t, err)
		assert.Equal(t, pricingdomain.PriceSourceClientOccurrence, resolved.Source)
		assert.Equal(t, int64(1000), resolved.EntryFeeBrutto)
		assert.Equal(t, int64(4000), resolved.TrainerFeeBrutto)
		assert.Equal(t, "HUF", resolved.Currency)
	})

	t.Run("falls back to template override", func(t *testing.T) {
		other := f.seedMember(t, "Nagy Bence", nil)
		_, err := f.svc.CreateTemplatePrice(ctx, pricingdomain.CreateTemplatePriceRequest{
			MemberID:         other.String(),
			TemplateID:       templateID.String(),
			EntryFeeBrutto:   1800,
			TrainerFeeBrutto: 7000,
			ValidFrom:        &from,
		})
		assert.NoError(t, err)

		resolved, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
			MemberID:     other.String(),
			OccurrenceID: occurrenceID.String(),
		})
		assert.NoError(t, err)
		assert.Equal(t, pricingdomain.PriceSourceClientTemplate, resolved.Source)
		assert.Equal(t, int64(1800), resolved.EntryFeeBrutto)
	})

	t.Run("falls back to template default", func(t *testing.T) {
		plain := f.seedMember(t, "Szabó Márta", nil)
		resolved, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
			MemberID:     plain.String(),
			OccurrenceID: occurrenceID.String(),
		})
		assert.NoError(t, err)
		assert.Equal(t, pricingdomain.PriceSourceTemplateDefault, resolved.Source)
		assert.Equal(t, int64(2000), resolved.EntryFeeBrutto)
		assert.Equal(t, int64(8000), resolved.TrainerFeeBrutto)
	})
}

func TestResolveValidityHalfOpen(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()

	startsAt := time.Date(2025, 4, 7, 18, 0, 0, 0, time.UTC)
	_, templateID, occurrenceID := f.seedOccurrence(t, "spin-class", startsAt)
	memberID := f.seedMember(t, "Tóth Gábor", nil)

	open := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateTemplateDefault(ctx, pricingdomain.CreateTemplateDefaultRequest{
		TemplateID:       templateID.String(),
		EntryFeeBrutto:   2500,
		TrainerFeeBrutto: 9000,
		ValidFrom:        &open,
	})
	assert.NoError(t, err)

	windowStart := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.CreateOccurrencePrice(ctx, pricingdomain.CreateOccurrencePriceRequest{
		MemberID:         memberID.String(),
		OccurrenceID:     occurrenceID.String(),
		EntryFeeBrutto:   500,
		TrainerFeeBrutto: 2000,
		ValidFrom:        &windowStart,
		ValidUntil:       &windowEnd,
	})
	assert.NoError(t, err)

	resolveAt := func(at time.Time) *pricingdomain.ResolvedPrice {
		resolved, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
			MemberID:     memberID.String(),
			OccurrenceID: occurrenceID.String(),
			At:           &at,
		})
		assert.NoError(t, err)
		return resolved
	}

	t.Run("rule applies at exactly valid_from", func(t *testing.T) {
		assert.Equal(t, pricingdomain.PriceSourceClientOccurrence, resolveAt(windowStart).Source)
	})

	t.Run("rule no longer applies at exactly valid_until", func(t *testing.T) {
		assert.Equal(t, pricingdomain.PriceSourceTemplateDefault, resolveAt(windowEnd).Source)
	})

	t.Run("rule does not apply before valid_from", func(t *testing.T) {
		assert.Equal(t, pricingdomain.PriceSourceTemplateDefault, resolveAt(windowStart.Add(-time.Second)).Source)
	})

	t.Run("rule applies just before valid_until", func(t *testing.T) {
		assert.Equal(t, pricingdomain.PriceSourceClientOccurrence, resolveAt(windowEnd.Add(-time.Second)).Source)
	})
}

func TestResolveAnomalyDeterministicPick(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()

	startsAt := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	_, _, occurrenceID := f.seedOccurrence(t, "crossfit", startsAt)
	memberID := f.seedMember(t, "Varga Petra", nil)

	t.Run("latest valid_from wins", func(t *testing.T) {
		older := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		newer := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

		// The rule with the later window start is created first, so a
		// created_at tie-break alone would pick the wrong row.
		_, err := f.svc.CreateOccurrencePrice(ctx, pricingdomain.CreateOccurrencePriceRequest{
			MemberID:         memberID.String(),
			OccurrenceID:     occurrenceID.String(),
			EntryFeeBrutto:   1200,
			TrainerFeeBrutto: 5000,
			ValidFrom:        &newer,
		})
		assert.NoError(t, err)
		f.clk.Advance(time.Minute)
		_, err = f.svc.CreateOccurrencePrice(ctx, pricingdomain.CreateOccurrencePriceRequest{
			MemberID:         memberID.String(),
			OccurrenceID:     occurrenceID.String(),
			EntryFeeBrutto:   1100,
			TrainerFeeBrutto: 4500,
			ValidFrom:        &older,
		})
		assert.NoError(t, err)

		resolved, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
			MemberID:     memberID.String(),
			OccurrenceID: occurrenceID.String(),
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(1200), resolved.EntryFeeBrutto)
	})

	t.Run("created_at breaks a valid_from tie", func(t *testing.T) {
		member := f.seedMember(t, "Kovács Judit", nil)
		from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

		_, err := f.svc.CreateOccurrencePrice(ctx, pricingdomain.CreateOccurrencePriceRequest{
			MemberID:         member.String(),
			OccurrenceID:     occurrenceID.String(),
			EntryFeeBrutto:   1000,
			TrainerFeeBrutto: 4000,
			ValidFrom:        &from,
		})
		assert.NoError(t, err)
		f.clk.Advance(time.Minute)
		_, err = f.svc.CreateOccurrencePrice(ctx, pricingdomain.CreateOccurrencePriceRequest{
			MemberID:         member.String(),
			OccurrenceID:     occurrenceID.String(),
			EntryFeeBrutto:   900,
			TrainerFeeBrutto: 3600,
			ValidFrom:        &from,
		})
		assert.NoError(t, err)

		resolved, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
			MemberID:     member.String(),
			OccurrenceID: occurrenceID.String(),
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(900), resolved.EntryFeeBrutto)
	})

	t.Run("pick is stable across repeated resolves", func(t *testing.T) {
		first, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
			MemberID:     memberID.String(),
			OccurrenceID: occurrenceID.String(),
		})
		assert.NoError(t, err)
		second, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
			MemberID:     memberID.String(),
			OccurrenceID: occurrenceID.String(),
		})
		assert.NoError(t, err)
		assert.Equal(t, first.SourceID, second.SourceID)
	})
}

func TestResolveMissingPricing(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()

	startsAt := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	_, templateID, occurrenceID := f.seedOccurrence(t, "pilates", startsAt)
	memberID := f.seedMember(t, "Molnár Ádám", nil)

	_, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
		MemberID:     memberID.String(),
		OccurrenceID: occurrenceID.String(),
	})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, pricingdomain.ErrMissingPricing))

	var missing *pricingdomain.MissingPricingError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, memberID, missing.MemberID)
	assert.Equal(t, occurrenceID, missing.OccurrenceID)
	assert.Equal(t, templateID, missing.TemplateID)
	assert.Equal(t, startsAt, missing.At)
}

func TestResolveTechnicalGuestUsesDefaults(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()
	guestID := snowflake.ID(1)

	startsAt := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	_, templateID, occurrenceID := f.seedOccurrence(t, "open-gym", startsAt)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateTemplateDefault(ctx, pricingdomain.CreateTemplateDefaultRequest{
		TemplateID:       templateID.String(),
		EntryFeeBrutto:   3000,
		TrainerFeeBrutto: 10000,
		ValidFrom:        &from,
	})
	assert.NoError(t, err)

	// Client rules written directly for the guest account must never win;
	// the guest always walks the default chain.
	now := f.clk.Now()
	err = f.repo.InsertOccurrencePrice(ctx, f.db, &pricingdomain.ClientOccurrencePrice{
		ID:               f.node.Generate(),
		MemberID:         guestID,
		OccurrenceID:     occurrenceID,
		EntryFeeBrutto:   1,
		TrainerFeeBrutto: 1,
		Currency:         "HUF",
		ValidFrom:        from,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	assert.NoError(t, err)

	resolved, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
		MemberID:     guestID.String(),
		OccurrenceID: occurrenceID.String(),
	})
	assert.NoError(t, err)
	assert.Equal(t, pricingdomain.PriceSourceTemplateDefault, resolved.Source)
	assert.Equal(t, int64(3000), resolved.EntryFeeBrutto)

	t.Run("service default backs templates without one", func(t *testing.T) {
		serviceTypeID, _, bareOccurrence := f.seedOccurrence(t, "sauna", startsAt)
		_, err := f.svc.CreateServiceDefault(ctx, pricingdomain.CreateServiceDefaultRequest{
			ServiceTypeID:    serviceTypeID.String(),
			EntryFeeBrutto:   1200,
			TrainerFeeBrutto: 0,
			ValidFrom:        &from,
		})
		assert.NoError(t, err)

		resolved, err := f.svc.ResolveDefault(ctx, pricingdomain.ResolveDefaultRequest{
			OccurrenceID: bareOccurrence.String(),
		})
		assert.NoError(t, err)
		assert.Equal(t, pricingdomain.PriceSourceServiceDefault, resolved.Source)
		assert.Equal(t, int64(1200), resolved.EntryFeeBrutto)
		assert.Equal(t, int64(0), resolved.TrainerFeeBrutto)
	})

	t.Run("missing everything reports the guest account", func(t *testing.T) {
		_, _, orphan := f.seedOccurrence(t, "trx", startsAt)
		_, err := f.svc.ResolveDefault(ctx, pricingdomain.ResolveDefaultRequest{
			OccurrenceID: orphan.String(),
		})
		var missing *pricingdomain.MissingPricingError
		assert.True(t, errors.As(err, &missing))
		assert.Equal(t, guestID, missing.MemberID)
	})
}

func TestResolveForEmail(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()

	startsAt := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	_, templateID, occurrenceID := f.seedOccurrence(t, "kettlebell", startsAt)

	email := "anna.kiss@example.com"
	memberID := f.seedMember(t, "Kiss Anna", &email)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateTemplateDefault(ctx, pricingdomain.CreateTemplateDefaultRequest{
		TemplateID:       templateID.String(),
		EntryFeeBrutto:   2000,
		TrainerFeeBrutto: 8000,
		ValidFrom:        &from,
	})
	assert.NoError(t, err)
	_, err = f.svc.CreateTemplatePrice(ctx, pricingdomain.CreateTemplatePriceRequest{
		MemberID:         memberID.String(),
		TemplateID:       templateID.String(),
		EntryFeeBrutto:   1600,
		TrainerFeeBrutto: 6400,
		ValidFrom:        &from,
	})
	assert.NoError(t, err)

	t.Run("known address walks the member chain", func(t *testing.T) {
		resolved, err := f.svc.ResolveForEmail(ctx, pricingdomain.ResolveForEmailRequest{
			Email:        "Anna.Kiss@example.com",
			OccurrenceID: occurrenceID.String(),
		})
		assert.NoError(t, err)
		assert.Equal(t, pricingdomain.PriceSourceClientTemplate, resolved.Source)
		assert.Equal(t, int64(1600), resolved.EntryFeeBrutto)
	})

	t.Run("unknown address pays the walk-in default", func(t *testing.T) {
		resolved, err := f.svc.ResolveForEmail(ctx, pricingdomain.ResolveForEmailRequest{
			Email:        "stranger@example.com",
			OccurrenceID: occurrenceID.String(),
		})
		assert.NoError(t, err)
		assert.Equal(t, pricingdomain.PriceSourceTemplateDefault, resolved.Source)
		assert.Equal(t, int64(2000), resolved.EntryFeeBrutto)
	})

	t.Run("rejects a bare string", func(t *testing.T) {
		_, err := f.svc.ResolveForEmail(ctx, pricingdomain.ResolveForEmailRequest{
			Email:        "not-an-email",
			OccurrenceID: occurrenceID.String(),
		})
		assert.ErrorIs(t, err, pricingdomain.ErrInvalidEmail)
	})
}

func TestResolveWorkedExample(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()

	startsAt := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	_, templateID, occurrenceID := f.seedOccurrence(t, "gerinctorna", startsAt)
	memberID := f.seedMember(t, "Horváth Eszter", nil)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateTemplateDefault(ctx, pricingdomain.CreateTemplateDefaultRequest{
		TemplateID:       templateID.String(),
		EntryFeeBrutto:   2000,
		TrainerFeeBrutto: 8000,
		Currency:         "HUF",
		ValidFrom:        &from,
	})
	assert.NoError(t, err)

	resolved, err := f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
		MemberID:     memberID.String(),
		OccurrenceID: occurrenceID.String(),
	})
	assert.NoError(t, err)
	assert.Equal(t, pricingdomain.PriceSourceTemplateDefault, resolved.Source)
	assert.Equal(t, int64(2000), resolved.EntryFeeBrutto)
	assert.Equal(t, int64(8000), resolved.TrainerFeeBrutto)
	assert.Equal(t, "HUF", resolved.Currency)
}

func TestCreateRuleValidation(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()

	startsAt := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	_, templateID, occurrenceID := f.seedOccurrence(t, "boxing", startsAt)
	memberID := f.seedMember(t, "Fekete Dóra", nil)

	t.Run("negative fees rejected", func(t *testing.T) {
		_, err := f.svc.CreateOccurrencePrice(ctx, pricingdomain.CreateOccurrencePriceRequest{
			MemberID:         memberID.String(),
			OccurrenceID:     occurrenceID.String(),
			EntryFeeBrutto:   -1,
			TrainerFeeBrutto: 4000,
		})
		assert.ErrorIs(t, err, pricingdomain.ErrInvalidAmount)
	})

	t.Run("window ending before it starts rejected", func(t *testing.T) {
		from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		until := from.Add(-time.Hour)
		_, err := f.svc.CreateTemplatePrice(ctx, pricingdomain.CreateTemplatePriceRequest{
			MemberID:         memberID.String(),
			TemplateID:       templateID.String(),
			EntryFeeBrutto:   1000,
			TrainerFeeBrutto: 4000,
			ValidFrom:        &from,
			ValidUntil:       &until,
		})
		assert.ErrorIs(t, err, pricingdomain.ErrInvalidWindow)
	})

	t.Run("client rule for the technical guest rejected", func(t *testing.T) {
		_, err := f.svc.CreateOccurrencePrice(ctx, pricingdomain.CreateOccurrencePriceRequest{
			MemberID:         "1",
			OccurrenceID:     occurrenceID.String(),
			EntryFeeBrutto:   1000,
			TrainerFeeBrutto: 4000,
		})
		assert.ErrorIs(t, err, pricingdomain.ErrInvalidMember)
	})

	t.Run("empty currency falls back to the studio default", func(t *testing.T) {
		rule, err := f.svc.CreateTemplateDefault(ctx, pricingdomain.CreateTemplateDefaultRequest{
			TemplateID:       templateID.String(),
			EntryFeeBrutto:   1000,
			TrainerFeeBrutto: 4000,
		})
		assert.NoError(t, err)
		assert.Equal(t, "HUF", rule.Currency)
	})
}

func TestGenerateDefaultPrices(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()

	startsAt := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	_, coveredTemplate, _ := f.seedOccurrence(t, "covered-class", startsAt)
	f.seedOccurrence(t, "uncovered-class", startsAt)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateTemplateDefault(ctx, pricingdomain.CreateTemplateDefaultRequest{
		TemplateID:       coveredTemplate.String(),
		EntryFeeBrutto:   2000,
		TrainerFeeBrutto: 8000,
		ValidFrom:        &from,
	})
	assert.NoError(t, err)

	created, err := f.svc.GenerateDefaultPrices(ctx, pricingdomain.GenerateDefaultPricesRequest{
		EntryFeeBrutto:   1500,
		TrainerFeeBrutto: 6000,
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, created)

	var codes []string
	err = f.db.Model(&pricingdomain.TemplateDefaultPrice{}).
		Where("code = ?", "uncovered-class-default").
		Pluck("code", &codes).Error
	assert.NoError(t, err)
	assert.Len(t, codes, 1)

	t.Run("second run finds nothing to do", func(t *testing.T) {
		created, err := f.svc.GenerateDefaultPrices(ctx, pricingdomain.GenerateDefaultPricesRequest{
			EntryFeeBrutto:   1500,
			TrainerFeeBrutto: 6000,
		})
		assert.NoError(t, err)
		assert.Equal(t, 0, created)
	})

	t.Run("rule creation lands in the outbox", func(t *testing.T) {
		var count int64
		err := f.db.Model(&eventsdomain.StudioEvent{}).
			Where("event_type = ?", eventsdomain.PricingRuleCreatedTopic).
			Count(&count).Error
		assert.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}

func TestRetireTemplateDefault(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()

	startsAt := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	_, templateID, occurrenceID := f.seedOccurrence(t, "stretching", startsAt)
	memberID := f.seedMember(t, "Balogh Réka", nil)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rule, err := f.svc.CreateTemplateDefault(ctx, pricingdomain.CreateTemplateDefaultRequest{
		TemplateID:       templateID.String(),
		EntryFeeBrutto:   2000,
		TrainerFeeBrutto: 8000,
		ValidFrom:        &from,
	})
	assert.NoError(t, err)

	err = f.svc.RetireTemplateDefault(ctx, rule.ID.String())
	assert.NoError(t, err)

	_, err = f.svc.Resolve(ctx, pricingdomain.ResolveRequest{
		MemberID:     memberID.String(),
		OccurrenceID: occurrenceID.String(),
	})
	assert.ErrorIs(t, err, pricingdomain.ErrMissingPricing)

	t.Run("unknown id not found", func(t *testing.T) {
		err := f.svc.RetireTemplateDefault(ctx, f.node.Generate().String())
		assert.ErrorIs(t, err, pricingdomain.ErrNotFound)
	})
}
