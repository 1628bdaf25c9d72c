package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Member struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name             string            `gorm:"not null" json:"name"`
	Email            *string           `gorm:"uniqueIndex:ux_members_email" json:"email,omitempty"`
	Phone            *string           `gorm:"type:text" json:"phone,omitempty"`
	IsTechnicalGuest bool              `gorm:"not null;default:false" json:"is_technical_guest"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "members" }
