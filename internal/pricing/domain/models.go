package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PriceSource names the tier a resolved price came from.
type PriceSource string

const (
	PriceSourceClientOccurrence PriceSource = "client_occurrence_specific"
	PriceSourceClientTemplate   PriceSource = "client_template_specific"
	PriceSourceTemplateDefault  PriceSource = "template_default"
	PriceSourceServiceDefault   PriceSource = "service_type_default"
)

// ClientOccurrencePrice overrides pricing for one member on one session.
// Rules are append-only; a later valid_from supersedes, never an edit.
type ClientOccurrencePrice struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	MemberID         snowflake.ID `json:"member_id" gorm:"not null;index:ix_cop_member_occurrence,priority:1"`
	OccurrenceID     snowflake.ID `json:"occurrence_id" gorm:"not null;index:ix_cop_member_occurrence,priority:2"`
	EntryFeeBrutto   int64        `json:"entry_fee_brutto" gorm:"not null"`
	TrainerFeeBrutto int64        `json:"trainer_fee_brutto" gorm:"not null"`
	Currency         string       `json:"currency" gorm:"type:text;not null"`
	ValidFrom        time.Time    `json:"valid_from" gorm:"not null;default:CURRENT_TIMESTAMP"`
	ValidUntil       *time.Time   `json:"valid_until,omitempty" gorm:""`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ClientOccurrencePrice) TableName() string { return "client_occurrence_prices" }

func (p ClientOccurrencePrice) ValidAt(t time.Time) bool {
	return WindowContains(p.ValidFrom, p.ValidUntil, t)
}

// ClientTemplatePrice overrides pricing for one member across every
// session of a class template.
type ClientTemplatePrice struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	MemberID         snowflake.ID `json:"member_id" gorm:"not null;index:ix_ctp_member_template,priority:1"`
	TemplateID       snowflake.ID `json:"template_id" gorm:"not null;index:ix_ctp_member_template,priority:2"`
	EntryFeeBrutto   int64        `json:"entry_fee_brutto" gorm:"not null"`
	TrainerFeeBrutto int64        `json:"trainer_fee_brutto" gorm:"not null"`
	Currency         string       `json:"currency" gorm:"type:text;not null"`
	ValidFrom        time.Time    `json:"valid_from" gorm:"not null;default:CURRENT_TIMESTAMP"`
	ValidUntil       *time.Time   `json:"valid_until,omitempty" gorm:""`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ClientTemplatePrice) TableName() string { return "client_template_prices" }

func (p ClientTemplatePrice) ValidAt(t time.Time) bool {
	return WindowContains(p.ValidFrom, p.ValidUntil, t)
}

// TemplateDefaultPrice is the list price for a class template. Retired via
// is_active=false so settled periods keep their history.
type TemplateDefaultPrice struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	TemplateID       snowflake.ID `json:"template_id" gorm:"not null;index"`
	Code             string       `json:"code" gorm:"type:text;not null"`
	EntryFeeBrutto   int64        `json:"entry_fee_brutto" gorm:"not null"`
	TrainerFeeBrutto int64        `json:"trainer_fee_brutto" gorm:"not null"`
	Currency         string       `json:"currency" gorm:"type:text;not null"`
	IsActive         bool         `json:"is_active" gorm:"column:is_active;not null;default:true"`
	ValidFrom        time.Time    `json:"valid_from" gorm:"not null;default:CURRENT_TIMESTAMP"`
	ValidUntil       *time.Time   `json:"valid_until,omitempty" gorm:""`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TemplateDefaultPrice) TableName() string { return "template_default_prices" }

func (p TemplateDefaultPrice) ValidAt(t time.Time) bool {
	return p.IsActive && WindowContains(p.ValidFrom, p.ValidUntil, t)
}

// ServiceDefaultPrice is the walk-in price per service type. It backs the
// service_type_default source on the guest path.
type ServiceDefaultPrice struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	ServiceTypeID    snowflake.ID `json:"service_type_id" gorm:"not null;index"`
	Code             string       `json:"code" gorm:"type:text;not null"`
	EntryFeeBrutto   int64        `json:"entry_fee_brutto" gorm:"not null"`
	TrainerFeeBrutto int64        `json:"trainer_fee_brutto" gorm:"not null"`
	Currency         string       `json:"currency" gorm:"type:text;not null"`
	IsActive         bool         `json:"is_active" gorm:"column:is_active;not null;default:true"`
	ValidFrom        time.Time    `json:"valid_from" gorm:"not null;default:CURRENT_TIMESTAMP"`
	ValidUntil       *time.Time   `json:"valid_until,omitempty" gorm:""`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ServiceDefaultPrice) TableName() string { return "service_default_prices" }

func (p ServiceDefaultPrice) ValidAt(t time.Time) bool {
	return p.IsActive && WindowContains(p.ValidFrom, p.ValidUntil, t)
}

// ResolvedPrice is the outcome of a resolution: the gross fees in whole
// currency units plus where they came from.
type ResolvedPrice struct {
	EntryFeeBrutto   int64        `json:"entry_fee_brutto"`
	TrainerFeeBrutto int64        `json:"trainer_fee_brutto"`
	Currency         string       `json:"currency"`
	Source           PriceSource  `json:"source"`
	SourceID         snowflake.ID `json:"source_id"`
}
