package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/studiokit/kassza/internal/member/domain"
	"github.com/studiokit/kassza/pkg/db/option"
	"github.com/studiokit/kassza/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO members (id, name, email, phone, is_technical_guest, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.Name,
		member.Email,
		member.Phone,
		member.IsTechnicalGuest,
		member.Metadata,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, phone, is_technical_guest, metadata, created_at, updated_at
		 FROM members WHERE id = ?`,
		id,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, phone, is_technical_guest, metadata, created_at, updated_at
		 FROM members WHERE lower(email) = lower(?)`,
		strings.TrimSpace(email),
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListMemberFilter, page pagination.Pagination) ([]*domain.Member, error) {
	var members []*domain.Member
	stmt := db.WithContext(ctx).Model(&domain.Member{})
	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if filter.Email != "" {
		stmt = stmt.Where("lower(email) = lower(?)", filter.Email)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}
