// Package domain contains persistence models for trainer settlements:
// the period header, its priced line items and the sessions that could
// not be priced.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
)

// SettlementStatus is one-directional: a draft settles into finalized,
// finalized into paid. There is no way back; corrections happen by
// regenerating the draft before it is finalized.
type SettlementStatus string

const (
	SettlementStatusDraft     SettlementStatus = "draft"
	SettlementStatusFinalized SettlementStatus = "finalized"
	SettlementStatusPaid      SettlementStatus = "paid"
)

// SkipReasonMissingPricing marks sessions left out because no pricing
// rule covered them.
const SkipReasonMissingPricing = "missing_pricing"

// Settlement is one trainer's payout statement for a period. Period
// bounds are inclusive on both ends.
type Settlement struct {
	ID                 snowflake.ID     `json:"id" gorm:"primaryKey"`
	TrainerID          snowflake.ID     `json:"trainer_id" gorm:"not null;index;uniqueIndex:ux_settlements_trainer_period,priority:1"`
	TrainerName        string           `json:"trainer_name" gorm:"type:text;not null"`
	PeriodStart        time.Time        `json:"period_start" gorm:"not null;uniqueIndex:ux_settlements_trainer_period,priority:2"`
	PeriodEnd          time.Time        `json:"period_end" gorm:"not null;uniqueIndex:ux_settlements_trainer_period,priority:3"`
	Status             SettlementStatus `json:"status" gorm:"type:text;not null;default:'draft'"`
	TotalEntryBrutto   int64            `json:"total_entry_brutto" gorm:"not null;default:0"`
	TotalTrainerBrutto int64            `json:"total_trainer_brutto" gorm:"not null;default:0"`
	Currency           string           `json:"currency" gorm:"type:text;not null"`
	ItemCount          int              `json:"item_count" gorm:"not null;default:0"`
	SkipCount          int              `json:"skip_count" gorm:"not null;default:0"`
	FinalizedAt        *time.Time       `json:"finalized_at,omitempty" gorm:""`
	PaidAt             *time.Time       `json:"paid_at,omitempty" gorm:""`
	CreatedAt          time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Settlement) TableName() string { return "settlements" }

// SettlementItem is one priced session spot. Member and class names are
// copied in at generation time so the statement stays readable after
// renames or deletions.
type SettlementItem struct {
	ID                 snowflake.ID                     `json:"id" gorm:"primaryKey"`
	SettlementID       snowflake.ID                     `json:"settlement_id" gorm:"not null;index;uniqueIndex:ux_settlement_item_registration,priority:1"`
	RegistrationID     snowflake.ID                     `json:"registration_id" gorm:"not null;uniqueIndex:ux_settlement_item_registration,priority:2"`
	OccurrenceID       snowflake.ID                     `json:"occurrence_id" gorm:"not null;index"`
	MemberID           snowflake.ID                     `json:"member_id" gorm:"not null;index"`
	MemberName         string                           `json:"member_name" gorm:"type:text;not null"`
	ClassName          string                           `json:"class_name" gorm:"type:text;not null"`
	StartsAt           time.Time                        `json:"starts_at" gorm:"not null"`
	RegistrationStatus catalogdomain.RegistrationStatus `json:"registration_status" gorm:"type:text;not null"`
	PriceSource        pricingdomain.PriceSource        `json:"price_source" gorm:"type:text;not null"`
	EntryFeeBrutto     int64                            `json:"entry_fee_brutto" gorm:"not null"`
	TrainerFeeBrutto   int64                            `json:"trainer_fee_brutto" gorm:"not null"`
	Currency           string                           `json:"currency" gorm:"type:text;not null"`
	CreatedAt          time.Time                        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SettlementItem) TableName() string { return "settlement_items" }

// SettlementSkip is an unpriced session kept visible on the statement.
// A settlement never silently drops a spot it could not price.
type SettlementSkip struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	SettlementID   snowflake.ID `json:"settlement_id" gorm:"not null;index"`
	RegistrationID snowflake.ID `json:"registration_id" gorm:"not null"`
	OccurrenceID   snowflake.ID `json:"occurrence_id" gorm:"not null"`
	MemberID       snowflake.ID `json:"member_id" gorm:"not null"`
	MemberName     string       `json:"member_name" gorm:"type:text;not null"`
	ClassName      string       `json:"class_name" gorm:"type:text;not null"`
	StartsAt       time.Time    `json:"starts_at" gorm:"not null"`
	Reason         string       `json:"reason" gorm:"type:text;not null"`
	Detail         string       `json:"detail" gorm:"type:text;not null"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SettlementSkip) TableName() string { return "settlement_skips" }
