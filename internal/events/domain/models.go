// Package domain contains the outbox model for studio integration events.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	SettlementGeneratedTopic = "settlement.generated"
	SettlementFinalizedTopic = "settlement.finalized"
	SettlementPaidTopic      = "settlement.paid"
	PassCreatedTopic         = "pass.created"
	PassDeductedTopic        = "pass.deducted"
	PassRefundedTopic        = "pass.refunded"
	PricingRuleCreatedTopic  = "pricing.rule_created"
)

// StudioEvent captures outbox events for downstream consumers.
type StudioEvent struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	EventType     string            `gorm:"type:text;not null;index"`
	Payload       datatypes.JSONMap `gorm:"type:jsonb;not null"`
	DedupeKey     *string           `gorm:"type:text;uniqueIndex:ux_studio_event_dedupe"`
	CorrelationID string            `gorm:"type:text;not null;default:''"`
	Published     bool              `gorm:"not null;default:false"`
	PublishedAt   *time.Time        `gorm:""`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (StudioEvent) TableName() string { return "studio_events" }
