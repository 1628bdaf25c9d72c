package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/studiokit/kassza/internal/trainer/domain"
	"github.com/studiokit/kassza/pkg/db/option"
	"github.com/studiokit/kassza/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, trainer *domain.Trainer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO trainers (id, name, email, active, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trainer.ID,
		trainer.Name,
		trainer.Email,
		trainer.Active,
		trainer.Metadata,
		trainer.CreatedAt,
		trainer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Trainer, error) {
	var trainer domain.Trainer
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, active, metadata, created_at, updated_at
		 FROM trainers WHERE id = ?`,
		id,
	).Scan(&trainer).Error
	if err != nil {
		return nil, err
	}
	if trainer.ID == 0 {
		return nil, nil
	}
	return &trainer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListTrainerFilter, page pagination.Pagination) ([]*domain.Trainer, error) {
	var trainers []*domain.Trainer
	stmt := db.WithContext(ctx).Model(&domain.Trainer{})
	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("active = ?", true)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&trainers).Error
	if err != nil {
		return nil, err
	}
	return trainers, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE trainers SET active = ?, updated_at = ? WHERE id = ?`,
		active,
		time.Now().UTC(),
		id,
	).Error
}
