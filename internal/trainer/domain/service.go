package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/studiokit/kassza/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, trainer *Trainer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Trainer, error)
	List(ctx context.Context, db *gorm.DB, filter ListTrainerFilter, page pagination.Pagination) ([]*Trainer, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error
}

type ListTrainerRequest struct {
	PageToken  string
	PageSize   int32
	Name       string
	ActiveOnly bool
}

type ListTrainerFilter struct {
	Name       string
	ActiveOnly bool
}

type ListTrainerResponse struct {
	pagination.PageInfo
	Trainers []Trainer `json:"trainers"`
}

type CreateTrainerRequest struct {
	Name  string
	Email string
}

type Service interface {
	Create(context.Context, CreateTrainerRequest) (Trainer, error)
	List(context.Context, ListTrainerRequest) (ListTrainerResponse, error)
	GetByID(ctx context.Context, id string) (Trainer, error)
	Deactivate(ctx context.Context, id string) error
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidID      = errors.New("invalid_id")
	ErrDuplicateEmail = errors.New("duplicate_email")
	ErrNotFound       = errors.New("not_found")
)
