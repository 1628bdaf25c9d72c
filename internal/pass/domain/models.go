package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PassStatus tracks whether a pass still holds credits. Expiry is a time
// comparison against valid_until, not a status of its own.
type PassStatus string

const (
	PassStatusActive   PassStatus = "active"
	PassStatusDepleted PassStatus = "depleted"
)

// UsageDirection marks which way a journal row moved credits.
type UsageDirection string

const (
	UsageDirectionDeduct UsageDirection = "deduct"
	UsageDirectionRefund UsageDirection = "refund"
)

type Pass struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	MemberID     snowflake.ID `json:"member_id" gorm:"not null;index"`
	TotalCredits int          `json:"total_credits" gorm:"not null"`
	CreditsLeft  int          `json:"credits_left" gorm:"not null"`
	Status       PassStatus   `json:"status" gorm:"type:text;not null;default:'active'"`
	ValidFrom    time.Time    `json:"valid_from" gorm:"not null;default:CURRENT_TIMESTAMP"`
	ValidUntil   *time.Time   `json:"valid_until,omitempty" gorm:""`
	LastUsedAt   *time.Time   `json:"last_used_at,omitempty" gorm:""`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Pass) TableName() string { return "passes" }

// PassUsage is the immutable deduct/refund journal. Rows are never
// updated or deleted; corrections are new rows in the other direction.
type PassUsage struct {
	ID           snowflake.ID   `json:"id" gorm:"primaryKey"`
	PassID       snowflake.ID   `json:"pass_id" gorm:"not null;index"`
	MemberID     snowflake.ID   `json:"member_id" gorm:"not null;index"`
	Direction    UsageDirection `json:"direction" gorm:"type:text;not null"`
	Credits      int            `json:"credits" gorm:"not null"`
	Reason       string         `json:"reason" gorm:"type:text;not null"`
	OccurrenceID *snowflake.ID  `json:"occurrence_id,omitempty" gorm:"index"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PassUsage) TableName() string { return "pass_usages" }
