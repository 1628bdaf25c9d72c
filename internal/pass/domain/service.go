package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreatePassRequest struct {
	MemberID     string     `json:"member_id"`
	TotalCredits int        `json:"total_credits"`
	ValidFrom    *time.Time `json:"valid_from"`
	ValidUntil   *time.Time `json:"valid_until"`
}

type DeductCreditRequest struct {
	MemberID     string `json:"member_id"`
	Reason       string `json:"reason"`
	OccurrenceID string `json:"occurrence_id"`
}

type RefundCreditRequest struct {
	MemberID string `json:"member_id"`
	PassID   string `json:"pass_id"`
	Credits  int    `json:"credits"`
	Reason   string `json:"reason"`
}

// Repository persists passes and their usage journal.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, pass *Pass) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Pass, error)
	ListByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]Pass, error)

	FindAvailable(ctx context.Context, db *gorm.DB, memberID snowflake.ID, at time.Time) (*Pass, error)
	SumAvailableCredits(ctx context.Context, db *gorm.DB, memberID snowflake.ID, at time.Time) (int64, error)
	FindRefundTarget(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*Pass, error)

	DeductCredit(ctx context.Context, db *gorm.DB, passID snowflake.ID, at time.Time) (bool, error)
	RefundCredit(ctx context.Context, db *gorm.DB, passID snowflake.ID, credits int, at time.Time) (bool, error)

	InsertUsage(ctx context.Context, db *gorm.DB, usage *PassUsage) error
	ListUsages(ctx context.Context, db *gorm.DB, passID snowflake.ID) ([]PassUsage, error)
}

// Service is the credit ledger. Deduct and refund run inside row-scoped
// transactions and re-check their invariants after the lock, so two
// racing writers can never spend the same credit.
type Service interface {
	Create(ctx context.Context, req CreatePassRequest) (*Pass, error)
	List(ctx context.Context, memberID string) ([]Pass, error)
	GetByID(ctx context.Context, id string) (*Pass, error)

	HasAvailableCredits(ctx context.Context, memberID string) (bool, error)
	GetAvailablePass(ctx context.Context, memberID string) (*Pass, error)
	TotalAvailableCredits(ctx context.Context, memberID string) (int64, error)

	DeductCredit(ctx context.Context, req DeductCreditRequest) (*Pass, error)
	RefundCredit(ctx context.Context, req RefundCreditRequest) (*Pass, error)

	ListUsages(ctx context.Context, passID string) ([]PassUsage, error)
}

var (
	ErrInvalidMember  = errors.New("invalid_member")
	ErrInvalidCredits = errors.New("invalid_credits")
	ErrInvalidWindow  = errors.New("invalid_window")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("not_found")
)
