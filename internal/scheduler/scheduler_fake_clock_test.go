package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/studiokit/kassza/internal/cache"
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
	catalogrepository "github.com/studiokit/kassza/internal/catalog/repository"
	"github.com/studiokit/kassza/internal/clock"
	appconfig "github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/events"
	eventsdomain "github.com/studiokit/kassza/internal/events/domain"
	"github.com/studiokit/kassza/internal/feepolicy"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	memberrepository "github.com/studiokit/kassza/internal/member/repository"
	obsmetrics "github.com/studiokit/kassza/internal/observability/metrics"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
	pricingrepository "github.com/studiokit/kassza/internal/pricing/repository"
	pricingservice "github.com/studiokit/kassza/internal/pricing/service"
	settlementdomain "github.com/studiokit/kassza/internal/settlement/domain"
	settlementrepository "github.com/studiokit/kassza/internal/settlement/repository"
	settlementservice "github.com/studiokit/kassza/internal/settlement/service"
	trainerdomain "github.com/studiokit/kassza/internal/trainer/domain"
	trainerrepository "github.com/studiokit/kassza/internal/trainer/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type autodraftFixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	clk    *clock.FakeClock
	svc    settlementdomain.Service
	priced pricingdomain.Service
}

func setupAutodraftFixture(t *testing.T) *autodraftFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&settlementdomain.Settlement{},
		&settlementdomain.SettlementItem{},
		&settlementdomain.SettlementSkip{},
		&pricingdomain.ClientOccurrencePrice{},
		&pricingdomain.ClientTemplatePrice{},
		&pricingdomain.TemplateDefaultPrice{},
		&pricingdomain.ServiceDefaultPrice{},
		&catalogdomain.ServiceType{},
		&catalogdomain.ClassTemplate{},
		&catalogdomain.ClassOccurrence{},
		&catalogdomain.Registration{},
		&memberdomain.Member{},
		&trainerdomain.Trainer{},
		&eventsdomain.StudioEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC))
	cfg := appconfig.Config{
		TechnicalGuestID: 1,
		DefaultCurrency:  "HUF",
		TimeZone:         "UTC",
	}
	publisher := events.NewOutboxPublisher(db, node)

	priced := pricingservice.New(pricingservice.Params{
		Config:        cfg,
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         clk,
		Repo:          pricingrepository.Provide(),
		CatalogRepo:   catalogrepository.Provide(),
		MemberRepo:    memberrepository.Provide(),
		Events:        publisher,
		ResolverCache: cache.NewBookingResolverCache(),
	})
	holder := appconfig.NewStaticFeePolicyHolder(appconfig.DefaultFeePolicyConfig())
	svc := settlementservice.New(settlementservice.Params{
		Config:      cfg,
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        settlementrepository.Provide(),
		TrainerRepo: trainerrepository.Provide(),
		Pricing:     priced,
		Policy:      feepolicy.NewStandardPolicy(holder, zap.NewNop()),
		Events:      publisher,
	})

	return &autodraftFixture{db: db, node: node, clk: clk, svc: svc, priced: priced}
}

func (f *autodraftFixture) seedAttendedJuneSession(t *testing.T, trainerName, memberName string, startsAt time.Time, entry, trainer int64) snowflake.ID {
	t.Helper()
	now := f.clk.Now()

	trainerID := f.node.Generate()
	if err := f.db.Create(&trainerdomain.Trainer{
		ID: trainerID, Name: trainerName, Active: true, CreatedAt: now, UpdatedAt: now,
	}).Error; err != nil {
		t.Fatalf("seed trainer: %v", err)
	}

	serviceTypeID := f.node.Generate()
	if err := f.db.Create(&catalogdomain.ServiceType{
		ID: serviceTypeID, Code: trainerName + "-svc", Name: trainerName, DurationMinutes: 60,
		Active: true, CreatedAt: now, UpdatedAt: now,
	}).Error; err != nil {
		t.Fatalf("seed service type: %v", err)
	}
	templateID := f.node.Generate()
	if err := f.db.Create(&catalogdomain.ClassTemplate{
		ID: templateID, ServiceTypeID: serviceTypeID, TrainerID: trainerID,
		Code: trainerName + "-class", Name: trainerName + "-class",
		Weekdays: []string{"monday"}, StartTimeLocal: "18:00", DurationMinutes: 60,
		Capacity: 12, Active: true, CreatedAt: now, UpdatedAt: now,
	}).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}
	occurrenceID := f.node.Generate()
	if err := f.db.Create(&catalogdomain.ClassOccurrence{
		ID: occurrenceID, TemplateID: templateID, ServiceTypeID: serviceTypeID, TrainerID: trainerID,
		StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour), Capacity: 12,
		Status: catalogdomain.OccurrenceStatusScheduled, CreatedAt: now, UpdatedAt: now,
	}).Error; err != nil {
		t.Fatalf("seed occurrence: %v", err)
	}

	memberID := f.node.Generate()
	if err := f.db.Create(&memberdomain.Member{
		ID: memberID, Name: memberName, CreatedAt: now, UpdatedAt: now,
	}).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
	if err := f.db.Create(&catalogdomain.Registration{
		ID: f.node.Generate(), OccurrenceID: occurrenceID, MemberID: memberID,
		Status: catalogdomain.RegistrationStatusAttended, CreatedAt: now, UpdatedAt: now,
	}).Error; err != nil {
		t.Fatalf("seed registration: %v", err)
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.priced.CreateTemplateDefault(context.Background(), pricingdomain.CreateTemplateDefaultRequest{
		TemplateID:       templateID.String(),
		EntryFeeBrutto:   entry,
		TrainerFeeBrutto: trainer,
		ValidFrom:        &from,
	}); err != nil {
		t.Fatalf("create template default: %v", err)
	}

	return trainerID
}

// TestSchedulerAutodraftsPreviousMonth drives the scheduler over a
// simulated mid-July clock and checks that one RunOnce sweep leaves a
// June draft behind for every trainer who taught, that the gate keeps
// repeat runs quiet and that a finalized statement survives later
// sweeps untouched.
func TestSchedulerAutodraftsPreviousMonth(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "kassza", Environment: "test"})

	f := setupAutodraftFixture(t)
	ctx := context.Background()

	trainerA := f.seedAttendedJuneSession(t, "Nagy Petra", "Kiss Anna",
		time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC), 2000, 8000)
	trainerB := f.seedAttendedJuneSession(t, "Kovacs Gabor", "Toth Bence",
		time.Date(2024, 6, 12, 7, 0, 0, 0, time.UTC), 1500, 6000)

	s, err := New(Params{
		Log:           zap.NewNop(),
		AppConfig:     appconfig.Config{TimeZone: "UTC"},
		SettlementSvc: f.svc,
		GenID:         f.node,
		Clock:         f.clk,
		Config: Config{
			RunInterval:       time.Minute,
			JobTimeout:        10 * time.Second,
			AutodraftInterval: 6 * time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("New scheduler: %v", err)
	}

	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	var drafts []settlementdomain.Settlement
	if err := f.db.Order("trainer_id").Find(&drafts).Error; err != nil {
		t.Fatalf("load settlements: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected a draft per trainer, got %d", len(drafts))
	}
	wantStart := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)
	for _, draft := range drafts {
		if draft.Status != settlementdomain.SettlementStatusDraft {
			t.Fatalf("expected draft status, got %s", draft.Status)
		}
		if !draft.PeriodStart.Equal(wantStart) || !draft.PeriodEnd.Equal(wantEnd) {
			t.Fatalf("expected June bounds, got %v - %v", draft.PeriodStart, draft.PeriodEnd)
		}
		if draft.ItemCount != 1 || draft.SkipCount != 0 {
			t.Fatalf("expected 1 item and no skips, got %d/%d", draft.ItemCount, draft.SkipCount)
		}
	}

	byTrainer := map[snowflake.ID]settlementdomain.Settlement{}
	for _, draft := range drafts {
		byTrainer[draft.TrainerID] = draft
	}
	if got := byTrainer[trainerA].TotalTrainerBrutto; got != 8000 {
		t.Fatalf("trainer A payout: expected 8000, got %d", got)
	}
	if got := byTrainer[trainerB].TotalTrainerBrutto; got != 6000 {
		t.Fatalf("trainer B payout: expected 6000, got %d", got)
	}

	// A second run inside the interval leaves the clock untouched and
	// writes nothing new.
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	var count int64
	if err := f.db.Model(&settlementdomain.Settlement{}).Count(&count).Error; err != nil {
		t.Fatalf("count settlements: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 settlements, got %d", count)
	}

	// Finalize trainer A, then sweep again after the interval. The
	// finalized statement stays as it was; trainer B's draft refreshes.
	if _, err := f.svc.Finalize(ctx, byTrainer[trainerA].ID.String()); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	f.clk.Advance(7 * time.Hour)
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce after finalize: %v", err)
	}

	reloaded, err := f.svc.GetByID(ctx, byTrainer[trainerA].ID.String())
	if err != nil {
		t.Fatalf("reload finalized: %v", err)
	}
	if reloaded.Status != settlementdomain.SettlementStatusFinalized {
		t.Fatalf("expected finalized to survive the sweep, got %s", reloaded.Status)
	}
	if err := f.db.Model(&settlementdomain.Settlement{}).Count(&count).Error; err != nil {
		t.Fatalf("count settlements: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected sweep to reuse existing rows, got %d", count)
	}
}
