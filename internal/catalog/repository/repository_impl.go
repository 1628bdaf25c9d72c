package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/studiokit/kassza/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertServiceType(ctx context.Context, db *gorm.DB, serviceType *domain.ServiceType) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO service_types (id, code, name, duration_minutes, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		serviceType.ID,
		serviceType.Code,
		serviceType.Name,
		serviceType.DurationMinutes,
		serviceType.Active,
		serviceType.CreatedAt,
		serviceType.UpdatedAt,
	).Error
}

func (r *repo) FindServiceTypeByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ServiceType, error) {
	var serviceType domain.ServiceType
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, duration_minutes, active, created_at, updated_at
		 FROM service_types WHERE id = ?`,
		id,
	).Scan(&serviceType).Error
	if err != nil {
		return nil, err
	}
	if serviceType.ID == 0 {
		return nil, nil
	}
	return &serviceType, nil
}

func (r *repo) FindServiceTypeByCode(ctx context.Context, db *gorm.DB, code string) (*domain.ServiceType, error) {
	var serviceType domain.ServiceType
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, duration_minutes, active, created_at, updated_at
		 FROM service_types WHERE code = ?`,
		strings.TrimSpace(code),
	).Scan(&serviceType).Error
	if err != nil {
		return nil, err
	}
	if serviceType.ID == 0 {
		return nil, nil
	}
	return &serviceType, nil
}

func (r *repo) ListServiceTypes(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*domain.ServiceType, error) {
	var serviceTypes []*domain.ServiceType
	stmt := db.WithContext(ctx).Model(&domain.ServiceType{})
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if err := stmt.Order("code asc").Find(&serviceTypes).Error; err != nil {
		return nil, err
	}
	return serviceTypes, nil
}

func (r *repo) InsertTemplate(ctx context.Context, db *gorm.DB, template *domain.ClassTemplate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO class_templates (
			id, service_type_id, trainer_id, code, name, weekdays, start_time_local,
			duration_minutes, capacity, active, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		template.ID,
		template.ServiceTypeID,
		template.TrainerID,
		template.Code,
		template.Name,
		template.Weekdays,
		template.StartTimeLocal,
		template.DurationMinutes,
		template.Capacity,
		template.Active,
		template.Metadata,
		template.CreatedAt,
		template.UpdatedAt,
	).Error
}

func (r *repo) FindTemplateByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ClassTemplate, error) {
	var template domain.ClassTemplate
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&template).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &template, nil
}

func (r *repo) ListTemplates(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*domain.ClassTemplate, error) {
	var templates []*domain.ClassTemplate
	stmt := db.WithContext(ctx).Model(&domain.ClassTemplate{})
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if err := stmt.Order("code asc").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *repo) SetTemplateActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE class_templates SET active = ?, updated_at = ? WHERE id = ?`,
		active,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) InsertOccurrence(ctx context.Context, db *gorm.DB, occurrence *domain.ClassOccurrence) (bool, error) {
	// Regenerating a schedule must not duplicate sessions already stamped.
	result := db.WithContext(ctx).Exec(
		`INSERT INTO class_occurrences (
			id, template_id, service_type_id, trainer_id, starts_at, ends_at,
			capacity, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (template_id, starts_at) DO NOTHING`,
		occurrence.ID,
		occurrence.TemplateID,
		occurrence.ServiceTypeID,
		occurrence.TrainerID,
		occurrence.StartsAt,
		occurrence.EndsAt,
		occurrence.Capacity,
		occurrence.Status,
		occurrence.CreatedAt,
		occurrence.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindOccurrenceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ClassOccurrence, error) {
	var occurrence domain.ClassOccurrence
	err := db.WithContext(ctx).Raw(
		`SELECT id, template_id, service_type_id, trainer_id, starts_at, ends_at,
		        capacity, status, created_at, updated_at
		 FROM class_occurrences WHERE id = ?`,
		id,
	).Scan(&occurrence).Error
	if err != nil {
		return nil, err
	}
	if occurrence.ID == 0 {
		return nil, nil
	}
	return &occurrence, nil
}

func (r *repo) ListOccurrencesBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]*domain.ClassOccurrence, error) {
	var occurrences []*domain.ClassOccurrence
	err := db.WithContext(ctx).
		Where("starts_at >= ? AND starts_at <= ?", from.UTC(), to.UTC()).
		Order("starts_at asc, id asc").
		Find(&occurrences).Error
	if err != nil {
		return nil, err
	}
	return occurrences, nil
}

func (r *repo) CancelOccurrence(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE class_occurrences SET status = ?, updated_at = ? WHERE id = ?`,
		domain.OccurrenceStatusCancelled,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) InsertRegistration(ctx context.Context, db *gorm.DB, registration *domain.Registration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO registrations (
			id, occurrence_id, member_id, guest_email, status, checked_in_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		registration.ID,
		registration.OccurrenceID,
		registration.MemberID,
		registration.GuestEmail,
		registration.Status,
		registration.CheckedInAt,
		registration.CreatedAt,
		registration.UpdatedAt,
	).Error
}

func (r *repo) FindRegistrationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Registration, error) {
	var registration domain.Registration
	err := db.WithContext(ctx).Raw(
		`SELECT id, occurrence_id, member_id, guest_email, status, checked_in_at, created_at, updated_at
		 FROM registrations WHERE id = ?`,
		id,
	).Scan(&registration).Error
	if err != nil {
		return nil, err
	}
	if registration.ID == 0 {
		return nil, nil
	}
	return &registration, nil
}

func (r *repo) ListRegistrationsByOccurrence(ctx context.Context, db *gorm.DB, occurrenceID snowflake.ID) ([]*domain.Registration, error) {
	var registrations []*domain.Registration
	err := db.WithContext(ctx).
		Where("occurrence_id = ?", occurrenceID).
		Order("created_at asc, id asc").
		Find(&registrations).Error
	if err != nil {
		return nil, err
	}
	return registrations, nil
}

func (r *repo) CountActiveRegistrations(ctx context.Context, db *gorm.DB, occurrenceID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("occurrence_id = ? AND status <> ?", occurrenceID, domain.RegistrationStatusCancelled).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) UpdateRegistrationStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.RegistrationStatus, checkedInAt *time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE registrations SET status = ?, checked_in_at = ?, updated_at = ? WHERE id = ?`,
		status,
		checkedInAt,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) CancelRegistrationsForOccurrence(ctx context.Context, db *gorm.DB, occurrenceID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE registrations SET status = ?, updated_at = ?
		 WHERE occurrence_id = ? AND status <> ?`,
		domain.RegistrationStatusCancelled,
		time.Now().UTC(),
		occurrenceID,
		domain.RegistrationStatusCancelled,
	).Error
}
