package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/studiokit/kassza/internal/clock"
	"github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/events"
	eventsdomain "github.com/studiokit/kassza/internal/events/domain"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	memberrepository "github.com/studiokit/kassza/internal/member/repository"
	passdomain "github.com/studiokit/kassza/internal/pass/domain"
	passrepository "github.com/studiokit/kassza/internal/pass/repository"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type passFixture struct {
	svc  passdomain.Service
	db   *gorm.DB
	node *snowflake.Node
	clk  *clock.FakeClock
	repo passdomain.Repository
}

func setupPassService(t *testing.T) *passFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(
		&passdomain.Pass{},
		&passdomain.PassUsage{},
		&memberdomain.Member{},
		&eventsdomain.StudioEvent{},
	)
	assert.NoError(t, err)

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := passrepository.Provide()

	svc := New(Params{
		Config: config.Config{
			TechnicalGuestID: 1,
			DefaultCurrency:  "HUF",
			TimeZone:         "Europe/Budapest",
		},
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       repo,
		MemberRepo: memberrepository.Provide(),
		Events:     events.NewOutboxPublisher(db, node),
	})

	return &passFixture{svc: svc, db: db, node: node, clk: clk, repo: repo}
}

func (f *passFixture) seedMember(t *testing.T, name string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := f.clk.Now()
	err := f.db.Create(&memberdomain.Member{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
	assert.NoError(t, err)
	return id
}

func (f *passFixture) createPass(t *testing.T, memberID snowflake.ID, credits int, validUntil *time.Time) *passdomain.Pass {
	t.Helper()
	pass, err := f.svc.Create(context.Background(), passdomain.CreatePassRequest{
		MemberID:     memberID.String(),
		TotalCredits: credits,
		ValidUntil:   validUntil,
	})
	assert.NoError(t, err)
	return pass
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCreatePass(t *testing.T) {
	f := setupPassService(t)
	ctx := context.Background()
	memberID := f.seedMember(t, "Kovacs Anna")

	pass := f.createPass(t, memberID, 10, nil)
	assert.Equal(t, memberID, pass.MemberID)
	assert.Equal(t, 10, pass.TotalCredits)
	assert.Equal(t, 10, pass.CreditsLeft)
	assert.Equal(t, passdomain.PassStatusActive, pass.Status)
	assert.Equal(t, f.clk.Now().UTC(), pass.ValidFrom)
	assert.Nil(t, pass.ValidUntil)

	t.Run("zero credits rejected", func(t *testing.T) {
		_, err := f.svc.Create(ctx, passdomain.CreatePassRequest{
			MemberID:     memberID.String(),
			TotalCredits: 0,
		})
		assert.ErrorIs(t, err, passdomain.ErrInvalidCredits)
	})

	t.Run("unknown member rejected", func(t *testing.T) {
		_, err := f.svc.Create(ctx, passdomain.CreatePassRequest{
			MemberID:     f.node.Generate().String(),
			TotalCredits: 5,
		})
		assert.ErrorIs(t, err, passdomain.ErrInvalidMember)
	})

	t.Run("window closing before it opens rejected", func(t *testing.T) {
		from := f.clk.Now()
		_, err := f.svc.Create(ctx, passdomain.CreatePassRequest{
			MemberID:     memberID.String(),
			TotalCredits: 5,
			ValidFrom:    &from,
			ValidUntil:   timePtr(from.Add(-time.Hour)),
		})
		assert.ErrorIs(t, err, passdomain.ErrInvalidWindow)
	})

	t.Run("creation lands in the outbox", func(t *testing.T) {
		var count int64
		err := f.db.Model(&eventsdomain.StudioEvent{}).
			Where("event_type = ?", eventsdomain.PassCreatedTopic).
			Count(&count).Error
		assert.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

// Deductions drain the soonest-expiring pass first, open-ended passes
// last, so credits that can still expire are never stranded behind ones
// that cannot.
func TestAvailablePassOrdering(t *testing.T) {
	f := setupPassService(t)
	ctx := context.Background()
	memberID := f.seedMember(t, "Nagy Peter")

	openEnded := f.createPass(t, memberID, 1, nil)
	f.clk.Advance(time.Minute)
	juneExpiry := f.createPass(t, memberID, 1, timePtr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	f.clk.Advance(time.Minute)
	aprilExpiry := f.createPass(t, memberID, 1, timePtr(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))

	expected := []snowflake.ID{aprilExpiry.ID, juneExpiry.ID, openEnded.ID}
	for _, want := range expected {
		next, err := f.svc.GetAvailablePass(ctx, memberID.String())
		assert.NoError(t, err)
		if assert.NotNil(t, next) {
			assert.Equal(t, want, next.ID)
		}

		deducted, err := f.svc.DeductCredit(ctx, passdomain.DeductCreditRequest{
			MemberID: memberID.String(),
			Reason:   "attendance",
		})
		assert.NoError(t, err)
		assert.Equal(t, want, deducted.ID)
	}

	ok, err := f.svc.HasAvailableCredits(ctx, memberID.String())
	assert.NoError(t, err)
	assert.False(t, ok)

	t.Run("oldest pass wins an expiry tie", func(t *testing.T) {
		other := f.seedMember(t, "Szabo Eva")
		first := f.createPass(t, other, 1, nil)
		f.clk.Advance(time.Minute)
		f.createPass(t, other, 1, nil)

		next, err := f.svc.GetAvailablePass(ctx, other.String())
		assert.NoError(t, err)
		if assert.NotNil(t, next) {
			assert.Equal(t, first.ID, next.ID)
		}
	})
}

func TestPassValidityWindow(t *testing.T) {
	f := setupPassService(t)
	ctx := context.Background()
	memberID := f.seedMember(t, "Toth Gabor")

	start := f.clk.Now().Add(time.Hour)
	end := f.clk.Now().Add(2 * time.Hour)
	f.createPass(t, memberID, 5, &end)
	// Pin valid_from after creation; Create defaults it to the current
	// clock reading.
	err := f.db.Model(&passdomain.Pass{}).
		Where("member_id = ?", memberID).
		Updates(map[string]interface{}{"valid_from": start}).Error
	assert.NoError(t, err)

	available := func() bool {
		ok, err := f.svc.HasAvailableCredits(ctx, memberID.String())
		assert.NoError(t, err)
		return ok
	}

	assert.False(t, available(), "before valid_from")

	f.clk.Advance(time.Hour)
	assert.True(t, available(), "at exactly valid_from")

	f.clk.Advance(time.Hour)
	assert.False(t, available(), "at exactly valid_until")

	total, err := f.svc.TotalAvailableCredits(ctx, memberID.String())
	assert.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestDeductCredit(t *testing.T) {
	f := setupPassService(t)
	ctx := context.Background()
	memberID := f.seedMember(t, "Horvath Lili")
	pass := f.createPass(t, memberID, 2, nil)
	occurrenceID := f.node.Generate()

	first, err := f.svc.DeductCredit(ctx, passdomain.DeductCreditRequest{
		MemberID:     memberID.String(),
		Reason:       "attendance",
		OccurrenceID: occurrenceID.String(),
	})
	assert.NoError(t, err)
	assert.Equal(t, pass.ID, first.ID)
	assert.Equal(t, 1, first.CreditsLeft)
	assert.Equal(t, passdomain.PassStatusActive, first.Status)
	if assert.NotNil(t, first.LastUsedAt) {
		assert.Equal(t, f.clk.Now().UTC(), first.LastUsedAt.UTC())
	}

	second, err := f.svc.DeductCredit(ctx, passdomain.DeductCreditRequest{
		MemberID: memberID.String(),
		Reason:   "attendance",
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, second.CreditsLeft)
	assert.Equal(t, passdomain.PassStatusDepleted, second.Status)

	_, err = f.svc.DeductCredit(ctx, passdomain.DeductCreditRequest{
		MemberID: memberID.String(),
		Reason:   "attendance",
	})
	assert.ErrorIs(t, err, passdomain.ErrPolicyViolation)
	var violation *passdomain.PolicyViolationError
	if assert.ErrorAs(t, err, &violation) {
		assert.Equal(t, memberID, violation.MemberID)
		assert.Equal(t, passdomain.ViolationNoAvailablePass, violation.Reason)
	}

	usages, err := f.svc.ListUsages(ctx, pass.ID.String())
	assert.NoError(t, err)
	if assert.Len(t, usages, 2) {
		assert.Equal(t, passdomain.UsageDirectionDeduct, usages[0].Direction)
		assert.Equal(t, 1, usages[0].Credits)
	}
	for _, usage := range usages {
		if usage.OccurrenceID != nil {
			assert.Equal(t, occurrenceID, *usage.OccurrenceID)
			assert.Equal(t, "attendance", usage.Reason)
		}
	}

	var count int64
	err = f.db.Model(&eventsdomain.StudioEvent{}).
		Where("event_type = ?", eventsdomain.PassDeductedTopic).
		Count(&count).Error
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDeductWithoutPass(t *testing.T) {
	f := setupPassService(t)
	memberID := f.seedMember(t, "Kiss Marta")

	_, err := f.svc.DeductCredit(context.Background(), passdomain.DeductCreditRequest{
		MemberID: memberID.String(),
		Reason:   "attendance",
	})
	assert.ErrorIs(t, err, passdomain.ErrPolicyViolation)
	var violation *passdomain.PolicyViolationError
	if assert.ErrorAs(t, err, &violation) {
		assert.Equal(t, passdomain.ViolationNoAvailablePass, violation.Reason)
		assert.Equal(t, snowflake.ID(0), violation.PassID)
	}

	var usages int64
	err = f.db.Model(&passdomain.PassUsage{}).Count(&usages).Error
	assert.NoError(t, err)
	assert.Equal(t, int64(0), usages, "a refused deduction writes no journal row")
}

func TestRefundCredit(t *testing.T) {
	f := setupPassService(t)
	ctx := context.Background()
	memberID := f.seedMember(t, "Varga Adam")
	pass := f.createPass(t, memberID, 5, nil)

	for i := 0; i < 2; i++ {
		_, err := f.svc.DeductCredit(ctx, passdomain.DeductCreditRequest{
			MemberID: memberID.String(),
			Reason:   "attendance",
		})
		assert.NoError(t, err)
	}

	refunded, err := f.svc.RefundCredit(ctx, passdomain.RefundCreditRequest{
		MemberID: memberID.String(),
		PassID:   pass.ID.String(),
		Credits:  1,
		Reason:   "session cancelled",
	})
	assert.NoError(t, err)
	assert.Equal(t, 4, refunded.CreditsLeft)

	t.Run("refund clamps at total_credits", func(t *testing.T) {
		refunded, err := f.svc.RefundCredit(ctx, passdomain.RefundCreditRequest{
			MemberID: memberID.String(),
			PassID:   pass.ID.String(),
			Credits:  10,
			Reason:   "correction",
		})
		assert.NoError(t, err)
		assert.Equal(t, 5, refunded.CreditsLeft)

		usages, err := f.svc.ListUsages(ctx, pass.ID.String())
		assert.NoError(t, err)
		// Newest first: the clamped refund journals the single credit
		// actually granted, not the ten requested.
		if assert.NotEmpty(t, usages) {
			assert.Equal(t, passdomain.UsageDirectionRefund, usages[0].Direction)
			assert.Equal(t, 1, usages[0].Credits)
		}
	})

	t.Run("full pass refuses another refund", func(t *testing.T) {
		_, err := f.svc.RefundCredit(ctx, passdomain.RefundCreditRequest{
			MemberID: memberID.String(),
			PassID:   pass.ID.String(),
			Credits:  1,
			Reason:   "correction",
		})
		assert.ErrorIs(t, err, passdomain.ErrPolicyViolation)
		var violation *passdomain.PolicyViolationError
		if assert.ErrorAs(t, err, &violation) {
			assert.Equal(t, passdomain.ViolationPassFull, violation.Reason)
		}
	})

	t.Run("refund reactivates a depleted pass", func(t *testing.T) {
		other := f.seedMember(t, "Feher Bence")
		small := f.createPass(t, other, 1, nil)
		_, err := f.svc.DeductCredit(ctx, passdomain.DeductCreditRequest{
			MemberID: other.String(),
			Reason:   "attendance",
		})
		assert.NoError(t, err)

		refunded, err := f.svc.RefundCredit(ctx, passdomain.RefundCreditRequest{
			MemberID: other.String(),
			PassID:   small.ID.String(),
			Credits:  1,
			Reason:   "session cancelled",
		})
		assert.NoError(t, err)
		assert.Equal(t, passdomain.PassStatusActive, refunded.Status)
		assert.Equal(t, 1, refunded.CreditsLeft)
	})

	t.Run("another member's pass is not found", func(t *testing.T) {
		other := f.seedMember(t, "Balogh Csaba")
		_, err := f.svc.RefundCredit(ctx, passdomain.RefundCreditRequest{
			MemberID: other.String(),
			PassID:   pass.ID.String(),
			Credits:  1,
			Reason:   "correction",
		})
		assert.ErrorIs(t, err, passdomain.ErrNotFound)
	})
}

// A refund without a pass id goes to the most recently used pass that
// still has room, walking backwards through usage history as passes
// fill up.
func TestRefundMostRecentlyUsed(t *testing.T) {
	f := setupPassService(t)
	ctx := context.Background()
	memberID := f.seedMember(t, "Olah Reka")

	openEnded := f.createPass(t, memberID, 2, nil)
	f.clk.Advance(time.Minute)
	expiring := f.createPass(t, memberID, 2, timePtr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	deduct := func() *passdomain.Pass {
		f.clk.Advance(time.Minute)
		pass, err := f.svc.DeductCredit(ctx, passdomain.DeductCreditRequest{
			MemberID: memberID.String(),
			Reason:   "attendance",
		})
		assert.NoError(t, err)
		return pass
	}

	assert.Equal(t, expiring.ID, deduct().ID)
	assert.Equal(t, expiring.ID, deduct().ID)
	assert.Equal(t, openEnded.ID, deduct().ID)

	refund := func() *passdomain.Pass {
		f.clk.Advance(time.Minute)
		pass, err := f.svc.RefundCredit(ctx, passdomain.RefundCreditRequest{
			MemberID: memberID.String(),
			Reason:   "session cancelled",
		})
		assert.NoError(t, err)
		return pass
	}

	first := refund()
	assert.Equal(t, openEnded.ID, first.ID, "last touched pass takes the refund")
	assert.Equal(t, 2, first.CreditsLeft)

	second := refund()
	assert.Equal(t, expiring.ID, second.ID, "full passes are skipped")
	assert.Equal(t, 1, second.CreditsLeft)
	assert.Equal(t, passdomain.PassStatusActive, second.Status)

	third := refund()
	assert.Equal(t, expiring.ID, third.ID)
	assert.Equal(t, 2, third.CreditsLeft)

	f.clk.Advance(time.Minute)
	_, err := f.svc.RefundCredit(ctx, passdomain.RefundCreditRequest{
		MemberID: memberID.String(),
		Reason:   "session cancelled",
	})
	assert.ErrorIs(t, err, passdomain.ErrPolicyViolation)
	var violation *passdomain.PolicyViolationError
	if assert.ErrorAs(t, err, &violation) {
		assert.Equal(t, passdomain.ViolationNoRefundable, violation.Reason)
	}
}

func TestTotalAvailableCredits(t *testing.T) {
	f := setupPassService(t)
	ctx := context.Background()
	memberID := f.seedMember(t, "Simon Dora")

	f.createPass(t, memberID, 3, nil)
	f.createPass(t, memberID, 5, timePtr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	expiringSoon := f.clk.Now().Add(time.Hour)
	f.createPass(t, memberID, 4, &expiringSoon)

	total, err := f.svc.TotalAvailableCredits(ctx, memberID.String())
	assert.NoError(t, err)
	assert.Equal(t, int64(12), total)

	_, err = f.svc.DeductCredit(ctx, passdomain.DeductCreditRequest{
		MemberID: memberID.String(),
		Reason:   "attendance",
	})
	assert.NoError(t, err)

	total, err = f.svc.TotalAvailableCredits(ctx, memberID.String())
	assert.NoError(t, err)
	assert.Equal(t, int64(11), total)

	f.clk.Advance(2 * time.Hour)
	total, err = f.svc.TotalAvailableCredits(ctx, memberID.String())
	assert.NoError(t, err)
	assert.Equal(t, int64(8), total, "expired credits drop out of the sum")
}

func TestListUsagesUnknownPass(t *testing.T) {
	f := setupPassService(t)
	_, err := f.svc.ListUsages(context.Background(), f.node.Generate().String())
	assert.ErrorIs(t, err, passdomain.ErrNotFound)
}
