package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/studiokit/kassza/internal/audit/domain"
	"github.com/studiokit/kassza/internal/audit/masking"
	"github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/member/domain"
	"github.com/studiokit/kassza/pkg/db"
	"github.com/studiokit/kassza/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Audit  auditdomain.Service `optional:"true"`
}

type Service struct {
	cfg   config.Config
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	audit auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		cfg:   p.Config,
		db:    p.DB,
		log:   p.Log.Named("member.service"),
		genID: p.GenID,
		repo:  p.Repo,
		audit: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateMemberRequest) (domain.Member, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Member{}, domain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return domain.Member{}, domain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	member := domain.Member{
		ID:        s.genID.Generate(),
		Name:      name,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if email != "" {
		member.Email = &email
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		member.Phone = &phone
	}

	if err := s.repo.Insert(ctx, s.db, &member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Member{}, domain.ErrDuplicateEmail
		}
		return domain.Member{}, err
	}

	if s.audit != nil {
		targetID := member.ID.String()
		metadata := map[string]any{"name": member.Name}
		if member.Email != nil {
			metadata["email"] = masking.MaskEmail(*member.Email)
		}
		if err := s.audit.AuditLog(ctx, "", nil, "member.created", "member", &targetID, metadata); err != nil {
			s.log.Warn("audit write failed", zap.Error(err))
		}
	}

	return member, nil
}

func (s *Service) List(ctx context.Context, req domain.ListMemberRequest) (domain.ListMemberResponse, error) {
	filter := domain.ListMemberFilter{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
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
		return domain.ListMemberResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(member *domain.Member) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        member.ID.String(),
			CreatedAt: member.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	members := make([]domain.Member, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		members = append(members, *item)
	}

	resp := domain.ListMemberResponse{Members: members}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetMemberRequest) (domain.Member, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Member{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Member{}, err
	}
	if item == nil {
		return domain.Member{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (domain.Member, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Member{}, domain.ErrInvalidEmail
	}

	item, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.Member{}, err
	}
	if item == nil {
		return domain.Member{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) IsTechnicalGuest(id int64) bool {
	return id != 0 && id == s.cfg.TechnicalGuestID
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
