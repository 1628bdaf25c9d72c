package domain

import (
	"context"
	"errors"
	"time"
)

type CreateServiceTypeRequest struct {
	Name            string
	DurationMinutes int
}

type CreateTemplateRequest struct {
	ServiceTypeID   string
	TrainerID       string
	Name            string
	Weekdays        []string
	StartTimeLocal  string
	DurationMinutes int
	Capacity        int
}

type CreateOccurrenceRequest struct {
	TemplateID string
	StartsAt   time.Time
}

// GenerateOccurrencesRequest stamps dated sessions from a template's weekday
// schedule over a date range.
type GenerateOccurrencesRequest struct {
	TemplateID string
	From       time.Time
	To         time.Time
}

type RegisterRequest struct {
	OccurrenceID string
	MemberID     string
	GuestEmail   string
}

type Service interface {
	CreateServiceType(context.Context, CreateServiceTypeRequest) (ServiceType, error)
	ListServiceTypes(ctx context.Context, activeOnly bool) ([]ServiceType, error)

	CreateTemplate(context.Context, CreateTemplateRequest) (ClassTemplate, error)
	GetTemplate(ctx context.Context, id string) (ClassTemplate, error)
	ListTemplates(ctx context.Context, activeOnly bool) ([]ClassTemplate, error)
	RetireTemplate(ctx context.Context, id string) error

	CreateOccurrence(context.Context, CreateOccurrenceRequest) (ClassOccurrence, error)
	GenerateOccurrences(context.Context, GenerateOccurrencesRequest) (int, error)
	GetOccurrence(ctx context.Context, id string) (ClassOccurrence, error)
	ListOccurrences(ctx context.Context, from, to time.Time) ([]ClassOccurrence, error)
	CancelOccurrence(ctx context.Context, id string) error

	Register(context.Context, RegisterRequest) (Registration, error)
	GetRegistration(ctx context.Context, id string) (Registration, error)
	CheckIn(ctx context.Context, registrationID string) (Registration, error)
	MarkNoShow(ctx context.Context, registrationID string) (Registration, error)
	CancelRegistration(ctx context.Context, registrationID string) (Registration, error)
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidWeekdays     = errors.New("invalid_weekdays")
	ErrInvalidStartTime    = errors.New("invalid_start_time")
	ErrInvalidRange        = errors.New("invalid_range")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrNotFound            = errors.New("not_found")
	ErrServiceTypeNotFound = errors.New("service_type_not_found")
	ErrTemplateNotFound    = errors.New("template_not_found")
	ErrOccurrenceNotFound  = errors.New("occurrence_not_found")
	ErrOccurrenceCancelled = errors.New("occurrence_cancelled")
	ErrOccurrenceFull      = errors.New("occurrence_full")
	ErrDuplicateCode       = errors.New("duplicate_code")
	ErrAlreadyRegistered   = errors.New("already_registered")
	ErrRegistrationFinal   = errors.New("registration_final")
	ErrMissingParticipant  = errors.New("missing_participant")
	ErrTemplateInactive    = errors.New("template_inactive")
)
