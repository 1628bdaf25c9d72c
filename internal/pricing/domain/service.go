package domain

import (
	"context"
	"errors"
	"time"
)

type ResolveRequest struct {
	MemberID     string     `json:"member_id"`
	OccurrenceID string     `json:"occurrence_id"`
	At           *time.Time `json:"at,omitempty"`
}

type ResolveForEmailRequest struct {
	Email        string     `json:"email"`
	OccurrenceID string     `json:"occurrence_id"`
	At           *time.Time `json:"at,omitempty"`
}

type ResolveDefaultRequest struct {
	OccurrenceID string     `json:"occurrence_id"`
	At           *time.Time `json:"at,omitempty"`
}

type CreateOccurrencePriceRequest struct {
	MemberID         string     `json:"member_id"`
	OccurrenceID     string     `json:"occurrence_id"`
	EntryFeeBrutto   int64      `json:"entry_fee_brutto"`
	TrainerFeeBrutto int64      `json:"trainer_fee_brutto"`
	Currency         string     `json:"currency"`
	ValidFrom        *time.Time `json:"valid_from"`
	ValidUntil       *time.Time `json:"valid_until"`
}

type CreateTemplatePriceRequest struct {
	MemberID         string     `json:"member_id"`
	TemplateID       string     `json:"template_id"`
	EntryFeeBrutto   int64      `json:"entry_fee_brutto"`
	TrainerFeeBrutto int64      `json:"trainer_fee_brutto"`
	Currency         string     `json:"currency"`
	ValidFrom        *time.Time `json:"valid_from"`
	ValidUntil       *time.Time `json:"valid_until"`
}

type CreateTemplateDefaultRequest struct {
	TemplateID       string     `json:"template_id"`
	EntryFeeBrutto   int64      `json:"entry_fee_brutto"`
	TrainerFeeBrutto int64      `json:"trainer_fee_brutto"`
	Currency         string     `json:"currency"`
	ValidFrom        *time.Time `json:"valid_from"`
	ValidUntil       *time.Time `json:"valid_until"`
}

type CreateServiceDefaultRequest struct {
	ServiceTypeID    string     `json:"service_type_id"`
	EntryFeeBrutto   int64      `json:"entry_fee_brutto"`
	TrainerFeeBrutto int64      `json:"trainer_fee_brutto"`
	Currency         string     `json:"currency"`
	ValidFrom        *time.Time `json:"valid_from"`
	ValidUntil       *time.Time `json:"valid_until"`
}

// GenerateDefaultPricesRequest seeds a template default for every active
// template that has none valid right now.
type GenerateDefaultPricesRequest struct {
	EntryFeeBrutto   int64  `json:"entry_fee_brutto"`
	TrainerFeeBrutto int64  `json:"trainer_fee_brutto"`
	Currency         string `json:"currency"`
}

// MemberRules bundles every client-specific rule configured for a member.
type MemberRules struct {
	OccurrencePrices []ClientOccurrencePrice `json:"occurrence_prices"`
	TemplatePrices   []ClientTemplatePrice   `json:"template_prices"`
}

// Service resolves session prices and manages the rules behind them.
//
// Resolve walks the member chain: occurrence override, then template
// override, then the template default. ResolveDefault is the separate
// walk-in entry point (template default, then service default) and is
// what Resolve short-circuits to for the technical guest account.
// Both end in MissingPricingError when nothing covers the instant.
type Service interface {
	Resolve(ctx context.Context, req ResolveRequest) (*ResolvedPrice, error)
	ResolveForEmail(ctx context.Context, req ResolveForEmailRequest) (*ResolvedPrice, error)
	ResolveDefault(ctx context.Context, req ResolveDefaultRequest) (*ResolvedPrice, error)

	CreateOccurrencePrice(ctx context.Context, req CreateOccurrencePriceRequest) (*ClientOccurrencePrice, error)
	CreateTemplatePrice(ctx context.Context, req CreateTemplatePriceRequest) (*ClientTemplatePrice, error)
	CreateTemplateDefault(ctx context.Context, req CreateTemplateDefaultRequest) (*TemplateDefaultPrice, error)
	CreateServiceDefault(ctx context.Context, req CreateServiceDefaultRequest) (*ServiceDefaultPrice, error)
	GenerateDefaultPrices(ctx context.Context, req GenerateDefaultPricesRequest) (int, error)

	RetireTemplateDefault(ctx context.Context, id string) error
	RetireServiceDefault(ctx context.Context, id string) error

	ListMemberRules(ctx context.Context, memberID string) (*MemberRules, error)
	ListTemplateDefaults(ctx context.Context, templateID string) ([]TemplateDefaultPrice, error)
	ListServiceDefaults(ctx context.Context, serviceTypeID string) ([]ServiceDefaultPrice, error)
}

var (
	ErrInvalidMember      = errors.New("invalid_member")
	ErrInvalidOccurrence  = errors.New("invalid_occurrence")
	ErrInvalidTemplate    = errors.New("invalid_template")
	ErrInvalidServiceType = errors.New("invalid_service_type")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidWindow      = errors.New("invalid_window")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
)
