package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/studiokit/kassza/internal/trainer/domain"
	"github.com/studiokit/kassza/pkg/db"
	"github.com/studiokit/kassza/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("trainer.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTrainerRequest) (domain.Trainer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Trainer{}, domain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return domain.Trainer{}, domain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	trainer := domain.Trainer{
		ID:        s.genID.Generate(),
		Name:      name,
		Active:    true,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if email != "" {
		trainer.Email = &email
	}

	if err := s.repo.Insert(ctx, s.db, &trainer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Trainer{}, domain.ErrDuplicateEmail
		}
		return domain.Trainer{}, err
	}

	return trainer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTrainerRequest) (domain.ListTrainerResponse, error) {
	filter := domain.ListTrainerFilter{
		Name:       strings.TrimSpace(req.Name),
		ActiveOnly: req.ActiveOnly,
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListTrainerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(trainer *domain.Trainer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        trainer.ID.String(),
			CreatedAt: trainer.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	trainers := make([]domain.Trainer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		trainers = append(trainers, *item)
	}

	resp := domain.ListTrainerResponse{Trainers: trainers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Trainer, error) {
	parsed, err := s.parseID(id)
	if err != nil {
		return domain.Trainer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return domain.Trainer{}, err
	}
	if item == nil {
		return domain.Trainer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	parsed, err := s.parseID(id)
	if err != nil {
		return err
	}

	item, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrNotFound
	}

	return s.repo.SetActive(ctx, s.db, parsed, false)
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
