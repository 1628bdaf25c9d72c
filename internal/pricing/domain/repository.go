package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// UncoveredTemplate is the slice of a class template the default-price
// generator works from.
type UncoveredTemplate struct {
	ID   snowflake.ID
	Name string
}

// Repository persists pricing rules. The FindValid* methods return rule
// candidates live at the given instant, already ordered by the
// deterministic pick (valid_from desc, created_at desc, id desc) and
// capped at two rows so callers can tell a clean hit from an anomaly.
type Repository interface {
	InsertOccurrencePrice(ctx context.Context, db *gorm.DB, price *ClientOccurrencePrice) error
	InsertTemplatePrice(ctx context.Context, db *gorm.DB, price *ClientTemplatePrice) error
	InsertTemplateDefault(ctx context.Context, db *gorm.DB, price *TemplateDefaultPrice) error
	InsertServiceDefault(ctx context.Context, db *gorm.DB, price *ServiceDefaultPrice) error

	FindValidOccurrencePrices(ctx context.Context, db *gorm.DB, memberID, occurrenceID snowflake.ID, at time.Time) ([]ClientOccurrencePrice, error)
	FindValidTemplatePrices(ctx context.Context, db *gorm.DB, memberID, templateID snowflake.ID, at time.Time) ([]ClientTemplatePrice, error)
	FindValidTemplateDefaults(ctx context.Context, db *gorm.DB, templateID snowflake.ID, at time.Time) ([]TemplateDefaultPrice, error)
	FindValidServiceDefaults(ctx context.Context, db *gorm.DB, serviceTypeID snowflake.ID, at time.Time) ([]ServiceDefaultPrice, error)

	ListOccurrencePrices(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]ClientOccurrencePrice, error)
	ListTemplatePrices(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]ClientTemplatePrice, error)
	ListTemplateDefaults(ctx context.Context, db *gorm.DB, templateID snowflake.ID) ([]TemplateDefaultPrice, error)
	ListServiceDefaults(ctx context.Context, db *gorm.DB, serviceTypeID snowflake.ID) ([]ServiceDefaultPrice, error)

	SetTemplateDefaultActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (bool, error)
	SetServiceDefaultActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (bool, error)

	ListTemplatesWithoutDefault(ctx context.Context, db *gorm.DB, at time.Time) ([]UncoveredTemplate, error)
}
