// Package domain contains persistence models for the class catalog: service
// types, recurring templates, scheduled occurrences and member registrations.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// RegistrationStatus tracks what happened with a booked spot.
type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusAttended   RegistrationStatus = "attended"
	RegistrationStatusNoShow     RegistrationStatus = "no_show"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
)

// OccurrenceStatus tracks whether a scheduled session still takes place.
type OccurrenceStatus string

const (
	OccurrenceStatusScheduled OccurrenceStatus = "scheduled"
	OccurrenceStatusCancelled OccurrenceStatus = "cancelled"
)

// ServiceType groups templates that share a default price, e.g. group class
// versus personal training.
type ServiceType struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Code            string       `gorm:"type:text;not null;uniqueIndex:ux_service_types_code" json:"code"`
	Name            string       `gorm:"type:text;not null" json:"name"`
	DurationMinutes int          `gorm:"not null;default:60" json:"duration_minutes"`
	Active          bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ServiceType) TableName() string { return "service_types" }

// ClassTemplate is a recurring class definition occurrences are stamped from.
type ClassTemplate struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	ServiceTypeID   snowflake.ID      `gorm:"not null;index" json:"service_type_id"`
	TrainerID       snowflake.ID      `gorm:"not null;index" json:"trainer_id"`
	Code            string            `gorm:"type:text;not null;uniqueIndex:ux_class_templates_code" json:"code"`
	Name            string            `gorm:"type:text;not null" json:"name"`
	Weekdays        pq.StringArray    `gorm:"type:text[];not null" json:"weekdays"`
	StartTimeLocal  string            `gorm:"type:text;not null" json:"start_time_local"`
	DurationMinutes int               `gorm:"not null;default:60" json:"duration_minutes"`
	Capacity        int               `gorm:"not null;default:12" json:"capacity"`
	Active          bool              `gorm:"not null;default:true" json:"active"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ClassTemplate) TableName() string { return "class_templates" }

// ClassOccurrence is a single dated session on the schedule.
type ClassOccurrence struct {
	ID            snowflake.ID     `gorm:"primaryKey" json:"id"`
	TemplateID    snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_class_occurrences_slot,priority:1" json:"template_id"`
	ServiceTypeID snowflake.ID     `gorm:"not null;index" json:"service_type_id"`
	TrainerID     snowflake.ID     `gorm:"not null;index" json:"trainer_id"`
	StartsAt      time.Time        `gorm:"not null;index;uniqueIndex:ux_class_occurrences_slot,priority:2" json:"starts_at"`
	EndsAt        time.Time        `gorm:"not null" json:"ends_at"`
	Capacity      int              `gorm:"not null" json:"capacity"`
	Status        OccurrenceStatus `gorm:"type:text;not null;default:'scheduled'" json:"status"`
	CreatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ClassOccurrence) TableName() string { return "class_occurrences" }

// Registration is a member's (or walk-in guest's) spot on an occurrence.
type Registration struct {
	ID           snowflake.ID       `gorm:"primaryKey" json:"id"`
	OccurrenceID snowflake.ID       `gorm:"not null;index;uniqueIndex:ux_registrations_member_slot,priority:1" json:"occurrence_id"`
	MemberID     snowflake.ID       `gorm:"not null;index;uniqueIndex:ux_registrations_member_slot,priority:2" json:"member_id"`
	GuestEmail   *string            `gorm:"type:text;uniqueIndex:ux_registrations_member_slot,priority:3" json:"guest_email,omitempty"`
	Status       RegistrationStatus `gorm:"type:text;not null;default:'registered'" json:"status"`
	CheckedInAt  *time.Time         `gorm:"" json:"checked_in_at,omitempty"`
	CreatedAt    time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Registration) TableName() string { return "registrations" }
