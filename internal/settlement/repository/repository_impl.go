package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	settlementdomain "github.com/studiokit/kassza/internal/settlement/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() settlementdomain.Repository {
	return &repo{}
}

func (r *repo) InsertSettlement(ctx context.Context, db *gorm.DB, settlement *settlementdomain.Settlement) error {
	return db.WithContext(ctx).Exec(`
INSERT INTO settlements (id, trainer_id, trainer_name, period_start, period_end, status, total_entry_brutto, total_trainer_brutto, currency, item_count, skip_count, finalized_at, paid_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID,
		settlement.TrainerID,
		settlement.TrainerName,
		settlement.PeriodStart,
		settlement.PeriodEnd,
		settlement.Status,
		settlement.TotalEntryBrutto,
		settlement.TotalTrainerBrutto,
		settlement.Currency,
		settlement.ItemCount,
		settlement.SkipCount,
		settlement.FinalizedAt,
		settlement.PaidAt,
		settlement.CreatedAt,
		settlement.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*settlementdomain.Settlement, error) {
	var settlement settlementdomain.Settlement
	if err := db.WithContext(ctx).
		Raw(`SELECT * FROM settlements WHERE id = ?`, id).
		Scan(&settlement).Error; err != nil {
		return nil, err
	}
	if settlement.ID == 0 {
		return nil, nil
	}
	return &settlement, nil
}

func (r *repo) FindByTrainerPeriod(ctx context.Context, db *gorm.DB, trainerID snowflake.ID, periodStart, periodEnd time.Time) (*settlementdomain.Settlement, error) {
	var settlement settlementdomain.Settlement
	if err := db.WithContext(ctx).
		Raw(`
SELECT *
FROM settlements
WHERE trainer_id = ?
  AND period_start = ?
  AND period_end = ?
LIMIT 1`, trainerID, periodStart, periodEnd).
		Scan(&settlement).Error; err != nil {
		return nil, err
	}
	if settlement.ID == 0 {
		return nil, nil
	}
	return &settlement, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter settlementdomain.ListFilter) ([]settlementdomain.Settlement, error) {
	query := db.WithContext(ctx).Model(&settlementdomain.Settlement{})
	if filter.TrainerID != 0 {
		query = query.Where("trainer_id = ?", filter.TrainerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("period_start >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("period_start <= ?", *filter.To)
	}

	var settlements []settlementdomain.Settlement
	if err := query.Order("period_start DESC, id DESC").Find(&settlements).Error; err != nil {
		return nil, err
	}
	return settlements, nil
}

// UpdateDraft rewrites the header totals of an existing draft. The
// status guard sits in the WHERE clause, so a settlement finalized by a
// concurrent writer reports zero rows instead of being overwritten.
func (r *repo) UpdateDraft(ctx context.Context, db *gorm.DB, settlement *settlementdomain.Settlement) (bool, error) {
	result := db.WithContext(ctx).Exec(`
UPDATE settlements
SET trainer_name = ?, total_entry_brutto = ?, total_trainer_brutto = ?, currency = ?, item_count = ?, skip_count = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		settlement.TrainerName,
		settlement.TotalEntryBrutto,
		settlement.TotalTrainerBrutto,
		settlement.Currency,
		settlement.ItemCount,
		settlement.SkipCount,
		settlement.UpdatedAt,
		settlement.ID,
		settlementdomain.SettlementStatusDraft,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkFinalized(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(`
UPDATE settlements
SET status = ?, finalized_at = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		settlementdomain.SettlementStatusFinalized, at, at, id, settlementdomain.SettlementStatusDraft,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(`
UPDATE settlements
SET status = ?, paid_at = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		settlementdomain.SettlementStatusPaid, at, at, id, settlementdomain.SettlementStatusFinalized,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *settlementdomain.SettlementItem) error {
	return db.WithContext(ctx).Exec(`
INSERT INTO settlement_items (id, settlement_id, registration_id, occurrence_id, member_id, member_name, class_name, starts_at, registration_status, price_source, entry_fee_brutto, trainer_fee_brutto, currency, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.SettlementID,
		item.RegistrationID,
		item.OccurrenceID,
		item.MemberID,
		item.MemberName,
		item.ClassName,
		item.StartsAt,
		item.RegistrationStatus,
		item.PriceSource,
		item.EntryFeeBrutto,
		item.TrainerFeeBrutto,
		item.Currency,
		item.CreatedAt,
	).Error
}

func (r *repo) InsertSkip(ctx context.Context, db *gorm.DB, skip *settlementdomain.SettlementSkip) error {
	return db.WithContext(ctx).Exec(`
INSERT INTO settlement_skips (id, settlement_id, registration_id, occurrence_id, member_id, member_name, class_name, starts_at, reason, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		skip.ID,
		skip.SettlementID,
		skip.RegistrationID,
		skip.OccurrenceID,
		skip.MemberID,
		skip.MemberName,
		skip.ClassName,
		skip.StartsAt,
		skip.Reason,
		skip.Detail,
		skip.CreatedAt,
	).Error
}

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM settlement_items WHERE settlement_id = ?`, settlementID).Error
}

func (r *repo) DeleteSkips(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM settlement_skips WHERE settlement_id = ?`, settlementID).Error
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) ([]settlementdomain.SettlementItem, error) {
	var items []settlementdomain.SettlementItem
	if err := db.WithContext(ctx).
		Model(&settlementdomain.SettlementItem{}).
		Where("settlement_id = ?", settlementID).
		Order("starts_at ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListSkips(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) ([]settlementdomain.SettlementSkip, error) {
	var skips []settlementdomain.SettlementSkip
	if err := db.WithContext(ctx).
		Model(&settlementdomain.SettlementSkip{}).
		Where("settlement_id = ?", settlementID).
		Order("starts_at ASC, id ASC").
		Find(&skips).Error; err != nil {
		return nil, err
	}
	return skips, nil
}

// ListBillableRegistrations enumerates every registration on the
// trainer's sessions in the period, joined with the names the statement
// denormalizes. Period bounds are inclusive on both ends; a session
// starting exactly at either bound belongs to the settlement. Whether a
// row is billed is the fee policy's call, so no status filtering
// happens here.
func (r *repo) ListBillableRegistrations(ctx context.Context, db *gorm.DB, trainerID snowflake.ID, periodStart, periodEnd time.Time) ([]settlementdomain.BillableRegistration, error) {
	var rows []settlementdomain.BillableRegistration
	if err := db.WithContext(ctx).
		Raw(`
SELECT r.id AS registration_id,
       r.occurrence_id,
       r.member_id,
       r.guest_email,
       r.status,
       COALESCE(m.name, '') AS member_name,
       t.name AS class_name,
       o.starts_at
FROM registrations r
JOIN class_occurrences o ON o.id = r.occurrence_id
JOIN class_templates t ON t.id = o.template_id
LEFT JOIN members m ON m.id = r.member_id
WHERE o.trainer_id = ?
  AND o.starts_at >= ?
  AND o.starts_at <= ?
ORDER BY o.starts_at ASC, r.id ASC`, trainerID, periodStart, periodEnd).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListTrainerIDsWithOccurrences(ctx context.Context, db *gorm.DB, periodStart, periodEnd time.Time) ([]snowflake.ID, error) {
	var rows []struct {
		TrainerID snowflake.ID
	}
	if err := db.WithContext(ctx).
		Raw(`
SELECT DISTINCT o.trainer_id
FROM class_occurrences o
WHERE o.starts_at >= ?
  AND o.starts_at <= ?
ORDER BY o.trainer_id ASC`, periodStart, periodEnd).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.TrainerID)
	}
	return ids, nil
}
