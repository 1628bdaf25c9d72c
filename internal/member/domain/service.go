package domain

import (
	"context"
	"errors"
	"time"

	"github.com/studiokit/kassza/pkg/db/pagination"
)

type ListMemberRequest struct {
	PageToken   string
	PageSize    int32
	Name        string
	Email       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListMemberFilter struct {
	Name        string
	Email       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListMemberResponse struct {
	pagination.PageInfo
	Members []Member `json:"members"`
}

type CreateMemberRequest struct {
	Name  string
	Email string
	Phone string
}

type GetMemberRequest struct {
	ID string
}

type Service interface {
	Create(context.Context, CreateMemberRequest) (Member, error)
	List(context.Context, ListMemberRequest) (ListMemberResponse, error)
	GetByID(context.Context, GetMemberRequest) (Member, error)
	GetByEmail(ctx context.Context, email string) (Member, error)
	// IsTechnicalGuest reports whether the id is the reserved walk-in guest
	// account that email-only bookings are attributed to.
	IsTechnicalGuest(id int64) bool
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidID      = errors.New("invalid_id")
	ErrDuplicateEmail = errors.New("duplicate_email")
	ErrNotFound       = errors.New("not_found")
)
