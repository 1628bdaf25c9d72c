package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertServiceType(ctx context.Context, db *gorm.DB, serviceType *ServiceType) error
	FindServiceTypeByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServiceType, error)
	FindServiceTypeByCode(ctx context.Context, db *gorm.DB, code string) (*ServiceType, error)
	ListServiceTypes(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*ServiceType, error)

	InsertTemplate(ctx context.Context, db *gorm.DB, template *ClassTemplate) error
	FindTemplateByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ClassTemplate, error)
	ListTemplates(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*ClassTemplate, error)
	SetTemplateActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error

	InsertOccurrence(ctx context.Context, db *gorm.DB, occurrence *ClassOccurrence) (bool, error)
	FindOccurrenceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ClassOccurrence, error)
	ListOccurrencesBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]*ClassOccurrence, error)
	CancelOccurrence(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	InsertRegistration(ctx context.Context, db *gorm.DB, registration *Registration) error
	FindRegistrationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Registration, error)
	ListRegistrationsByOccurrence(ctx context.Context, db *gorm.DB, occurrenceID snowflake.ID) ([]*Registration, error)
	CountActiveRegistrations(ctx context.Context, db *gorm.DB, occurrenceID snowflake.ID) (int64, error)
	UpdateRegistrationStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status RegistrationStatus, checkedInAt *time.Time) error
	CancelRegistrationsForOccurrence(ctx context.Context, db *gorm.DB, occurrenceID snowflake.ID) error
}
