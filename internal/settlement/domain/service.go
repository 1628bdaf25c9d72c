package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
	"gorm.io/gorm"
)

// BillableRegistration is one enumerated spot joined with its session
// and member, the raw material settlement math runs on.
type BillableRegistration struct {
	RegistrationID snowflake.ID
	OccurrenceID   snowflake.ID
	MemberID       snowflake.ID
	GuestEmail     *string
	Status         catalogdomain.RegistrationStatus
	MemberName     string
	ClassName      string
	StartsAt       time.Time
}

type ComputeRequest struct {
	TrainerID   string    `json:"trainer_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type GenerateRequest struct {
	TrainerID   string    `json:"trainer_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type ListRequest struct {
	TrainerID string
	Status    *SettlementStatus
	From      *time.Time
	To        *time.Time
}

// ListFilter is the typed repository-side form of ListRequest.
type ListFilter struct {
	TrainerID snowflake.ID
	Status    *SettlementStatus
	From      *time.Time
	To        *time.Time
}

// ComputedSettlement is a settlement preview. It carries the exact
// items and skips a Generate call over the same period would persist.
type ComputedSettlement struct {
	TrainerID          snowflake.ID     `json:"trainer_id"`
	TrainerName        string           `json:"trainer_name"`
	PeriodStart        time.Time        `json:"period_start"`
	PeriodEnd          time.Time        `json:"period_end"`
	Items              []SettlementItem `json:"items"`
	Skips              []SettlementSkip `json:"skips"`
	TotalEntryBrutto   int64            `json:"total_entry_brutto"`
	TotalTrainerBrutto int64            `json:"total_trainer_brutto"`
	Currency           string           `json:"currency"`
}

type SettlementDetail struct {
	Settlement Settlement       `json:"settlement"`
	Items      []SettlementItem `json:"items"`
	Skips      []SettlementSkip `json:"skips"`
}

// AutodraftResult summarizes one batch draft run over a period.
type AutodraftResult struct {
	Trainers int `json:"trainers"`
	Drafted  int `json:"drafted"`
	Skipped  int `json:"skipped"`
}

type Repository interface {
	InsertSettlement(ctx context.Context, db *gorm.DB, settlement *Settlement) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Settlement, error)
	FindByTrainerPeriod(ctx context.Context, db *gorm.DB, trainerID snowflake.ID, periodStart, periodEnd time.Time) (*Settlement, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Settlement, error)

	UpdateDraft(ctx context.Context, db *gorm.DB, settlement *Settlement) (bool, error)
	MarkFinalized(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	InsertItem(ctx context.Context, db *gorm.DB, item *SettlementItem) error
	InsertSkip(ctx context.Context, db *gorm.DB, skip *SettlementSkip) error
	DeleteItems(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) error
	DeleteSkips(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) error
	ListItems(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) ([]SettlementItem, error)
	ListSkips(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) ([]SettlementSkip, error)

	ListBillableRegistrations(ctx context.Context, db *gorm.DB, trainerID snowflake.ID, periodStart, periodEnd time.Time) ([]BillableRegistration, error)
	ListTrainerIDsWithOccurrences(ctx context.Context, db *gorm.DB, periodStart, periodEnd time.Time) ([]snowflake.ID, error)
}

// Service computes and manages trainer settlements.
//
// Compute is a pure preview; Generate persists the same computation as
// a draft, replacing the previous draft for the period if one exists.
// A session the resolver cannot price becomes a skip on the statement
// instead of failing the whole run. Autodraft keeps iterating after
// per-trainer failures and reports them joined into one error next to
// the partial result.
type Service interface {
	Compute(ctx context.Context, req ComputeRequest) (*ComputedSettlement, error)
	Generate(ctx context.Context, req GenerateRequest) (*Settlement, error)
	Finalize(ctx context.Context, id string) (*Settlement, error)
	MarkPaid(ctx context.Context, id string) (*Settlement, error)

	GetByID(ctx context.Context, id string) (*Settlement, error)
	Detail(ctx context.Context, id string) (*SettlementDetail, error)
	List(ctx context.Context, req ListRequest) ([]Settlement, error)

	Autodraft(ctx context.Context, periodStart, periodEnd time.Time) (*AutodraftResult, error)
}

var (
	ErrInvalidTrainer   = errors.New("invalid_trainer")
	ErrInvalidPeriod    = errors.New("invalid_period")
	ErrInvalidID        = errors.New("invalid_id")
	ErrTrainerNotFound  = errors.New("trainer_not_found")
	ErrCurrencyMismatch = errors.New("currency_mismatch")
	ErrNotFound         = errors.New("not_found")
)
