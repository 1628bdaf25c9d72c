package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	passdomain "github.com/studiokit/kassza/internal/pass/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() passdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, pass *passdomain.Pass) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO passes (
			id, member_id, total_credits, credits_left, status,
			valid_from, valid_until, last_used_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pass.ID,
		pass.MemberID,
		pass.TotalCredits,
		pass.CreditsLeft,
		pass.Status,
		pass.ValidFrom,
		pass.ValidUntil,
		pass.LastUsedAt,
		pass.CreatedAt,
		pass.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*passdomain.Pass, error) {
	var pass passdomain.Pass
	err := db.WithContext(ctx).Raw(
		`SELECT id, member_id, total_credits, credits_left, status,
		        valid_from, valid_until, last_used_at, created_at, updated_at
		 FROM passes WHERE id = ?`,
		id,
	).Scan(&pass).Error
	if err != nil {
		return nil, err
	}
	if pass.ID == 0 {
		return nil, nil
	}
	return &pass, nil
}

func (r *repo) ListByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]passdomain.Pass, error) {
	var items []passdomain.Pass
	err := db.WithContext(ctx).
		Model(&passdomain.Pass{}).
		Where("member_id = ?", memberID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindAvailable picks the pass a deduction should hit: the one expiring
// soonest, with open-ended passes last and ties falling to the oldest.
func (r *repo) FindAvailable(ctx context.Context, db *gorm.DB, memberID snowflake.ID, at time.Time) (*passdomain.Pass, error) {
	var pass passdomain.Pass
	err := db.WithContext(ctx).Raw(
		`SELECT id, member_id, total_credits, credits_left, status,
		        valid_from, valid_until, last_used_at, created_at, updated_at
		 FROM passes
		 WHERE member_id = ?
		   AND status = ?
		   AND credits_left > 0
		   AND valid_from <= ?
		   AND (valid_until IS NULL OR valid_until > ?)
		 ORDER BY (valid_until IS NULL) ASC, valid_until ASC, created_at ASC, id ASC
		 LIMIT 1`,
		memberID, passdomain.PassStatusActive, at, at,
	).Scan(&pass).Error
	if err != nil {
		return nil, err
	}
	if pass.ID == 0 {
		return nil, nil
	}
	return &pass, nil
}

func (r *repo) SumAvailableCredits(ctx context.Context, db *gorm.DB, memberID snowflake.ID, at time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(credits_left), 0)
		 FROM passes
		 WHERE member_id = ?
		   AND status = ?
		   AND credits_left > 0
		   AND valid_from <= ?
		   AND (valid_until IS NULL OR valid_until > ?)`,
		memberID, passdomain.PassStatusActive, at, at,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// FindRefundTarget picks the most recently used pass that still has room
// for credits. Expired passes qualify: a refund restores what was taken,
// it does not revalidate the pass.
func (r *repo) FindRefundTarget(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*passdomain.Pass, error) {
	var pass passdomain.Pass
	err := db.WithContext(ctx).Raw(
		`SELECT id, member_id, total_credits, credits_left, status,
		        valid_from, valid_until, last_used_at, created_at, updated_at
		 FROM passes
		 WHERE member_id = ?
		   AND credits_left < total_credits
		 ORDER BY COALESCE(last_used_at, created_at) DESC, id DESC
		 LIMIT 1`,
		memberID,
	).Scan(&pass).Error
	if err != nil {
		return nil, err
	}
	if pass.ID == 0 {
		return nil, nil
	}
	return &pass, nil
}

// DeductCredit takes one credit off the pass. The guard re-checks status
// and balance inside the UPDATE itself, so a concurrent deduction finds
// zero rows instead of driving the balance negative.
func (r *repo) DeductCredit(ctx context.Context, db *gorm.DB, passID snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE passes
		 SET credits_left = credits_left - 1,
		     status = CASE WHEN credits_left - 1 <= 0 THEN ? ELSE status END,
		     last_used_at = ?,
		     updated_at = ?
		 WHERE id = ?
		   AND status = ?
		   AND credits_left > 0`,
		passdomain.PassStatusDepleted, at, at, passID, passdomain.PassStatusActive,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RefundCredit puts credits back on the pass. The guard re-checks that
// the result stays within total_credits, and a refunded pass is active
// again whatever its status was before.
func (r *repo) RefundCredit(ctx context.Context, db *gorm.DB, passID snowflake.ID, credits int, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE passes
		 SET credits_left = credits_left + ?,
		     status = ?,
		     updated_at = ?
		 WHERE id = ?
		   AND credits_left + ? <= total_credits`,
		credits, passdomain.PassStatusActive, at, passID, credits,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertUsage(ctx context.Context, db *gorm.DB, usage *passdomain.PassUsage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pass_usages (
			id, pass_id, member_id, direction, credits, reason, occurrence_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		usage.ID,
		usage.PassID,
		usage.MemberID,
		usage.Direction,
		usage.Credits,
		usage.Reason,
		usage.OccurrenceID,
		usage.CreatedAt,
	).Error
}

func (r *repo) ListUsages(ctx context.Context, db *gorm.DB, passID snowflake.ID) ([]passdomain.PassUsage, error) {
	var items []passdomain.PassUsage
	err := db.WithContext(ctx).
		Model(&passdomain.PassUsage{}).
		Where("pass_id = ?", passID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
