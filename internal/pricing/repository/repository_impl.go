package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() pricingdomain.Repository {
	return &repo{}
}

func (r *repo) InsertOccurrencePrice(ctx context.Context, db *gorm.DB, price *pricingdomain.ClientOccurrencePrice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO client_occurrence_prices (
			id, member_id, occurrence_id, entry_fee_brutto, trainer_fee_brutto, currency,
			valid_from, valid_until, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		price.ID,
		price.MemberID,
		price.OccurrenceID,
		price.EntryFeeBrutto,
		price.TrainerFeeBrutto,
		price.Currency,
		price.ValidFrom,
		price.ValidUntil,
		price.CreatedAt,
		price.UpdatedAt,
	).Error
}

func (r *repo) InsertTemplatePrice(ctx context.Context, db *gorm.DB, price *pricingdomain.ClientTemplatePrice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO client_template_prices (
			id, member_id, template_id, entry_fee_brutto, trainer_fee_brutto, currency,
			valid_from, valid_until, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		price.ID,
		price.MemberID,
		price.TemplateID,
		price.EntryFeeBrutto,
		price.TrainerFeeBrutto,
		price.Currency,
		price.ValidFrom,
		price.ValidUntil,
		price.CreatedAt,
		price.UpdatedAt,
	).Error
}

func (r *repo) InsertTemplateDefault(ctx context.Context, db *gorm.DB, price *pricingdomain.TemplateDefaultPrice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO template_default_prices (
			id, template_id, code, entry_fee_brutto, trainer_fee_brutto, currency,
			is_active, valid_from, valid_until, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		price.ID,
		price.TemplateID,
		price.Code,
		price.EntryFeeBrutto,
		price.TrainerFeeBrutto,
		price.Currency,
		price.IsActive,
		price.ValidFrom,
		price.ValidUntil,
		price.CreatedAt,
		price.UpdatedAt,
	).Error
}

func (r *repo) InsertServiceDefault(ctx context.Context, db *gorm.DB, price *pricingdomain.ServiceDefaultPrice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO service_default_prices (
			id, service_type_id, code, entry_fee_brutto, trainer_fee_brutto, currency,
			is_active, valid_from, valid_until, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		price.ID,
		price.ServiceTypeID,
		price.Code,
		price.EntryFeeBrutto,
		price.TrainerFeeBrutto,
		price.Currency,
		price.IsActive,
		price.ValidFrom,
		price.ValidUntil,
		price.CreatedAt,
		price.UpdatedAt,
	).Error
}

// Candidate queries fetch two rows at most: row one is the deterministic
// winner, a second row means the tier holds overlapping rules and the
// caller should raise an anomaly warning.

func (r *repo) FindValidOccurrencePrices(ctx context.Context, db *gorm.DB, memberID, occurrenceID snowflake.ID, at time.Time) ([]pricingdomain.ClientOccurrencePrice, error) {
	var items []pricingdomain.ClientOccurrencePrice
	err := db.WithContext(ctx).Raw(
		`SELECT id, member_id, occurrence_id, entry_fee_brutto, trainer_fee_brutto, currency,
		        valid_from, valid_until, created_at, updated_at
		 FROM client_occurrence_prices
		 WHERE member_id = ? AND occurrence_id = ?
		   AND valid_from <= ?
		   AND (valid_until IS NULL OR valid_until > ?)
		 ORDER BY valid_from DESC, created_at DESC, id DESC
		 LIMIT 2`,
		memberID, occurrenceID, at, at,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindValidTemplatePrices(ctx context.Context, db *gorm.DB, memberID, templateID snowflake.ID, at time.Time) ([]pricingdomain.ClientTemplatePrice, error) {
	var items []pricingdomain.ClientTemplatePrice
	err := db.WithContext(ctx).Raw(
		`SELECT id, member_id, template_id, entry_fee_brutto, trainer_fee_brutto, currency,
		        valid_from, valid_until, created_at, updated_at
		 FROM client_template_prices
		 WHERE member_id = ? AND template_id = ?
		   AND valid_from <= ?
		   AND (valid_until IS NULL OR valid_until > ?)
		 ORDER BY valid_from DESC, created_at DESC, id DESC
		 LIMIT 2`,
		memberID, templateID, at, at,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindValidTemplateDefaults(ctx context.Context, db *gorm.DB, templateID snowflake.ID, at time.Time) ([]pricingdomain.TemplateDefaultPrice, error) {
	var items []pricingdomain.TemplateDefaultPrice
	err := db.WithContext(ctx).Raw(
		`SELECT id, template_id, code, entry_fee_brutto, trainer_fee_brutto, currency,
		        is_active, valid_from, valid_until, created_at, updated_at
		 FROM template_default_prices
		 WHERE template_id = ?
		   AND is_active = ?
		   AND valid_from <= ?
		   AND (valid_until IS NULL OR valid_until > ?)
		 ORDER BY valid_from DESC, created_at DESC, id DESC
		 LIMIT 2`,
		templateID, true, at, at,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindValidServiceDefaults(ctx context.Context, db *gorm.DB, serviceTypeID snowflake.ID, at time.Time) ([]pricingdomain.ServiceDefaultPrice, error) {
	var items []pricingdomain.ServiceDefaultPrice
	err := db.WithContext(ctx).Raw(
		`SELECT id, service_type_id, code, entry_fee_brutto, trainer_fee_brutto, currency,
		        is_active, valid_from, valid_until, created_at, updated_at
		 FROM service_default_prices
		 WHERE service_type_id = ?
		   AND is_active = ?
		   AND valid_from <= ?
		   AND (valid_until IS NULL OR valid_until > ?)
		 ORDER BY valid_from DESC, created_at DESC, id DESC
		 LIMIT 2`,
		serviceTypeID, true, at, at,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListOccurrencePrices(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]pricingdomain.ClientOccurrencePrice, error) {
	var items []pricingdomain.ClientOccurrencePrice
	err := db.WithContext(ctx).
		Model(&pricingdomain.ClientOccurrencePrice{}).
		Where("member_id = ?", memberID).
		Order("valid_from DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListTemplatePrices(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]pricingdomain.ClientTemplatePrice, error) {
	var items []pricingdomain.ClientTemplatePrice
	err := db.WithContext(ctx).
		Model(&pricingdomain.ClientTemplatePrice{}).
		Where("member_id = ?", memberID).
		Order("valid_from DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListTemplateDefaults(ctx context.Context, db *gorm.DB, templateID snowflake.ID) ([]pricingdomain.TemplateDefaultPrice, error) {
	var items []pricingdomain.TemplateDefaultPrice
	err := db.WithContext(ctx).
		Model(&pricingdomain.TemplateDefaultPrice{}).
		Where("template_id = ?", templateID).
		Order("valid_from DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListServiceDefaults(ctx context.Context, db *gorm.DB, serviceTypeID snowflake.ID) ([]pricingdomain.ServiceDefaultPrice, error) {
	var items []pricingdomain.ServiceDefaultPrice
	err := db.WithContext(ctx).
		Model(&pricingdomain.ServiceDefaultPrice{}).
		Where("service_type_id = ?", serviceTypeID).
		Order("valid_from DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetTemplateDefaultActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (bool, error) {
	result := db.WithContext(ctx).
		Model(&pricingdomain.TemplateDefaultPrice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetServiceDefaultActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (bool, error) {
	result := db.WithContext(ctx).
		Model(&pricingdomain.ServiceDefaultPrice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListTemplatesWithoutDefault(ctx context.Context, db *gorm.DB, at time.Time) ([]pricingdomain.UncoveredTemplate, error) {
	var items []pricingdomain.UncoveredTemplate
	err := db.WithContext(ctx).Raw(
		`SELECT t.id, t.name
		 FROM class_templates t
		 WHERE t.active = ?
		   AND NOT EXISTS (
		       SELECT 1 FROM template_default_prices d
		       WHERE d.template_id = t.id
		         AND d.is_active = ?
		         AND d.valid_from <= ?
		         AND (d.valid_until IS NULL OR d.valid_until > ?)
		   )
		 ORDER BY t.id ASC`,
		true, true, at, at,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
