package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/lib/pq"
	"github.com/studiokit/kassza/internal/cache"
	"github.com/studiokit/kassza/internal/catalog/domain"
	"github.com/studiokit/kassza/internal/config"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	trainerdomain "github.com/studiokit/kassza/internal/trainer/domain"
	"github.com/studiokit/kassza/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var validWeekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

type Params struct {
	fx.In

	Config        config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	TrainerRepo   trainerdomain.Repository
	MemberRepo    memberdomain.Repository
	ResolverCache cache.BookingResolverCache
}

type Service struct {
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	trainerRepo   trainerdomain.Repository
	memberRepo    memberdomain.Repository
	resolverCache cache.BookingResolverCache
}

func New(p Params) domain.Service {
	return &Service{
		cfg:           p.Config,
		db:            p.DB,
		log:           p.Log.Named("catalog.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		trainerRepo:   p.TrainerRepo,
		memberRepo:    p.MemberRepo,
		resolverCache: p.ResolverCache,
	}
}

func (s *Service) CreateServiceType(ctx context.Context, req domain.CreateServiceTypeRequest) (domain.ServiceType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ServiceType{}, domain.ErrInvalidName
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = 60
	}

	now := time.Now().UTC()
	serviceType := domain.ServiceType{
		ID:              s.genID.Generate(),
		Code:            slug.Make(name),
		Name:            name,
		DurationMinutes: duration,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.InsertServiceType(ctx, s.db, &serviceType); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ServiceType{}, domain.ErrDuplicateCode
		}
		return domain.ServiceType{}, err
	}

	return serviceType, nil
}

func (s *Service) ListServiceTypes(ctx context.Context, activeOnly bool) ([]domain.ServiceType, error) {
	items, err := s.repo.ListServiceTypes(ctx, s.db, activeOnly)
	if err != nil {
		return nil, err
	}

	serviceTypes := make([]domain.ServiceType, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		serviceTypes = append(serviceTypes, *item)
	}
	return serviceTypes, nil
}

func (s *Service) CreateTemplate(ctx context.Context, req domain.CreateTemplateRequest) (domain.ClassTemplate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ClassTemplate{}, domain.ErrInvalidName
	}

	serviceTypeID, err := parseID(req.ServiceTypeID)
	if err != nil {
		return domain.ClassTemplate{}, err
	}
	trainerID, err := parseID(req.TrainerID)
	if err != nil {
		return domain.ClassTemplate{}, err
	}

	serviceType, err := s.repo.FindServiceTypeByID(ctx, s.db, serviceTypeID)
	if err != nil {
		return domain.ClassTemplate{}, err
	}
	if serviceType == nil {
		return domain.ClassTemplate{}, domain.ErrServiceTypeNotFound
	}

	trainer, err := s.trainerRepo.FindByID(ctx, s.db, trainerID)
	if err != nil {
		return domain.ClassTemplate{}, err
	}
	if trainer == nil {
		return domain.ClassTemplate{}, domain.ErrNotFound
	}

	weekdays, err := normalizeWeekdays(req.Weekdays)
	if err != nil {
		return domain.ClassTemplate{}, err
	}

	startTime := strings.TrimSpace(req.StartTimeLocal)
	if _, err := time.Parse("15:04", startTime); err != nil {
		return domain.ClassTemplate{}, domain.ErrInvalidStartTime
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = serviceType.DurationMinutes
	}
	capacity := req.Capacity
	if capacity <= 0 {
		capacity = 12
	}

	now := time.Now().UTC()
	template := domain.ClassTemplate{
		ID:              s.genID.Generate(),
		ServiceTypeID:   serviceTypeID,
		TrainerID:       trainerID,
		Code:            slug.Make(name),
		Name:            name,
		Weekdays:        pq.StringArray(weekdays),
		StartTimeLocal:  startTime,
		DurationMinutes: duration,
		Capacity:        capacity,
		Active:          true,
		Metadata:        datatypes.JSONMap{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.InsertTemplate(ctx, s.db, &template); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ClassTemplate{}, domain.ErrDuplicateCode
		}
		return domain.ClassTemplate{}, err
	}

	return template, nil
}

func (s *Service) GetTemplate(ctx context.Context, id string) (domain.ClassTemplate, error) {
	parsed, err := parseID(id)
	if err != nil {
		return domain.ClassTemplate{}, err
	}

	if cached, ok := s.resolverCache.GetTemplate(parsed.String()); ok {
		return cached, nil
	}

	template, err := s.repo.FindTemplateByID(ctx, s.db, parsed)
	if err != nil {
		return domain.ClassTemplate{}, err
	}
	if template == nil {
		return domain.ClassTemplate{}, domain.ErrTemplateNotFound
	}

	s.resolverCache.SetTemplate(parsed.String(), *template)
	return *template, nil
}

func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]domain.ClassTemplate, error) {
	items, err := s.repo.ListTemplates(ctx, s.db, activeOnly)
	if err != nil {
		return nil, err
	}

	templates := make([]domain.ClassTemplate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		templates = append(templates, *item)
	}
	return templates, nil
}

func (s *Service) RetireTemplate(ctx context.Context, id string) error {
	parsed, err := parseID(id)
	if err != nil {
		return err
	}

	template, err := s.repo.FindTemplateByID(ctx, s.db, parsed)
	if err != nil {
		return err
	}
	if template == nil {
		return domain.ErrTemplateNotFound
	}

	if err := s.repo.SetTemplateActive(ctx, s.db, parsed, false); err != nil {
		return err
	}
	s.resolverCache.InvalidateTemplate(parsed.String())
	return nil
}

func (s *Service) CreateOccurrence(ctx context.Context, req domain.CreateOccurrenceRequest) (domain.ClassOccurrence, error) {
	templateID, err := parseID(req.TemplateID)
	if err != nil {
		return domain.ClassOccurrence{}, err
	}
	if req.StartsAt.IsZero() {
		return domain.ClassOccurrence{}, domain.ErrInvalidStartTime
	}

	template, err := s.repo.FindTemplateByID(ctx, s.db, templateID)
	if err != nil {
		return domain.ClassOccurrence{}, err
	}
	if template == nil {
		return domain.ClassOccurrence{}, domain.ErrTemplateNotFound
	}
	if !template.Active {
		return domain.ClassOccurrence{}, domain.ErrTemplateInactive
	}

	occurrence := s.occurrenceFromTemplate(template, req.StartsAt.UTC())
	if _, err := s.repo.InsertOccurrence(ctx, s.db, &occurrence); err != nil {
		return domain.ClassOccurrence{}, err
	}

	return occurrence, nil
}

func (s *Service) GenerateOccurrences(ctx context.Context, req domain.GenerateOccurrencesRequest) (int, error) {
	templateID, err := parseID(req.TemplateID)
	if err != nil {
		return 0, err
	}
	if req.From.IsZero() || req.To.IsZero() || req.To.Before(req.From) {
		return 0, domain.ErrInvalidRange
	}

	template, err := s.repo.FindTemplateByID(ctx, s.db, templateID)
	if err != nil {
		return 0, err
	}
	if template == nil {
		return 0, domain.ErrTemplateNotFound
	}
	if !template.Active {
		return 0, domain.ErrTemplateInactive
	}

	location, err := time.LoadLocation(s.cfg.TimeZone)
	if err != nil {
		location = time.UTC
	}

	startClock, err := time.Parse("15:04", template.StartTimeLocal)
	if err != nil {
		return 0, domain.ErrInvalidStartTime
	}

	wanted := map[time.Weekday]bool{}
	for _, name := range template.Weekdays {
		if weekday, ok := validWeekdays[strings.ToLower(strings.TrimSpace(name))]; ok {
			wanted[weekday] = true
		}
	}
	if len(wanted) == 0 {
		return 0, domain.ErrInvalidWeekdays
	}

	created := 0
	from := req.From.In(location)
	to := req.To.In(location)
	for day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, location); !day.After(to); day = day.AddDate(0, 0, 1) {
		if !wanted[day.Weekday()] {
			continue
		}

		startsAt := time.Date(day.Year(), day.Month(), day.Day(), startClock.Hour(), startClock.Minute(), 0, 0, location).UTC()
		occurrence := s.occurrenceFromTemplate(template, startsAt)
		inserted, err := s.repo.InsertOccurrence(ctx, s.db, &occurrence)
		if err != nil {
			return created, err
		}
		if inserted {
			created++
		}
	}

	s.log.Info("generated occurrences",
		zap.String("template_id", templateID.String()),
		zap.Int("created", created),
	)
	return created, nil
}

func (s *Service) GetOccurrence(ctx context.Context, id string) (domain.ClassOccurrence, error) {
	parsed, err := parseID(id)
	if err != nil {
		return domain.ClassOccurrence{}, err
	}

	if cached, ok := s.resolverCache.GetOccurrence(parsed.String()); ok {
		return cached, nil
	}

	occurrence, err := s.repo.FindOccurrenceByID(ctx, s.db, parsed)
	if err != nil {
		return domain.ClassOccurrence{}, err
	}
	if occurrence == nil {
		return domain.ClassOccurrence{}, domain.ErrOccurrenceNotFound
	}

	s.resolverCache.SetOccurrence(parsed.String(), *occurrence)
	return *occurrence, nil
}

func (s *Service) ListOccurrences(ctx context.Context, from, to time.Time) ([]domain.ClassOccurrence, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, domain.ErrInvalidRange
	}

	items, err := s.repo.ListOccurrencesBetween(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}

	occurrences := make([]domain.ClassOccurrence, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		occurrences = append(occurrences, *item)
	}
	return occurrences, nil
}

func (s *Service) CancelOccurrence(ctx context.Context, id string) error {
	parsed, err := parseID(id)
	if err != nil {
		return err
	}

	occurrence, err := s.repo.FindOccurrenceByID(ctx, s.db, parsed)
	if err != nil {
		return err
	}
	if occurrence == nil {
		return domain.ErrOccurrenceNotFound
	}
	if occurrence.Status == domain.OccurrenceStatusCancelled {
		return nil
	}

	// Cancelling the session cancels every open spot on it in one go.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CancelOccurrence(ctx, tx, parsed); err != nil {
			return err
		}
		return s.repo.CancelRegistrationsForOccurrence(ctx, tx, parsed)
	})
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.Registration, error) {
	occurrenceID, err := parseID(req.OccurrenceID)
	if err != nil {
		return domain.Registration{}, err
	}

	occurrence, err := s.repo.FindOccurrenceByID(ctx, s.db, occurrenceID)
	if err != nil {
		return domain.Registration{}, err
	}
	if occurrence == nil {
		return domain.Registration{}, domain.ErrOccurrenceNotFound
	}
	if occurrence.Status == domain.OccurrenceStatusCancelled {
		return domain.Registration{}, domain.ErrOccurrenceCancelled
	}

	memberID, guestEmail, err := s.resolveParticipant(ctx, req)
	if err != nil {
		return domain.Registration{}, err
	}

	count, err := s.repo.CountActiveRegistrations(ctx, s.db, occurrenceID)
	if err != nil {
		return domain.Registration{}, err
	}
	if occurrence.Capacity > 0 && count >= int64(occurrence.Capacity) {
		return domain.Registration{}, domain.ErrOccurrenceFull
	}

	now := time.Now().UTC()
	registration := domain.Registration{
		ID:           s.genID.Generate(),
		OccurrenceID: occurrenceID,
		MemberID:     memberID,
		GuestEmail:   guestEmail,
		Status:       domain.RegistrationStatusRegistered,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.InsertRegistration(ctx, s.db, &registration); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Registration{}, domain.ErrAlreadyRegistered
		}
		return domain.Registration{}, err
	}

	return registration, nil
}

func (s *Service) GetRegistration(ctx context.Context, id string) (domain.Registration, error) {
	parsed, err := parseID(id)
	if err != nil {
		return domain.Registration{}, err
	}

	registration, err := s.repo.FindRegistrationByID(ctx, s.db, parsed)
	if err != nil {
		return domain.Registration{}, err
	}
	if registration == nil {
		return domain.Registration{}, domain.ErrNotFound
	}
	return *registration, nil
}

func (s *Service) CheckIn(ctx context.Context, registrationID string) (domain.Registration, error) {
	now := time.Now().UTC()
	return s.transition(ctx, registrationID, domain.RegistrationStatusAttended, &now)
}

func (s *Service) MarkNoShow(ctx context.Context, registrationID string) (domain.Registration, error) {
	return s.transition(ctx, registrationID, domain.RegistrationStatusNoShow, nil)
}

func (s *Service) CancelRegistration(ctx context.Context, registrationID string) (domain.Registration, error) {
	return s.transition(ctx, registrationID, domain.RegistrationStatusCancelled, nil)
}

// transition moves a registration between statuses. Cancelled spots stay
// cancelled; attended and no_show may be corrected by staff until the
// settlement that covers them is finalized.
func (s *Service) transition(ctx context.Context, registrationID string, status domain.RegistrationStatus, checkedInAt *time.Time) (domain.Registration, error) {
	parsed, err := parseID(registrationID)
	if err != nil {
		return domain.Registration{}, err
	}

	registration, err := s.repo.FindRegistrationByID(ctx, s.db, parsed)
	if err != nil {
		return domain.Registration{}, err
	}
	if registration == nil {
		return domain.Registration{}, domain.ErrNotFound
	}
	if registration.Status == domain.RegistrationStatusCancelled && status != domain.RegistrationStatusCancelled {
		return domain.Registration{}, domain.ErrRegistrationFinal
	}

	if registration.Status == status {
		return *registration, nil
	}

	if checkedInAt == nil {
		checkedInAt = registration.CheckedInAt
	}
	if err := s.repo.UpdateRegistrationStatus(ctx, s.db, parsed, status, checkedInAt); err != nil {
		return domain.Registration{}, err
	}

	registration.Status = status
	registration.CheckedInAt = checkedInAt
	registration.UpdatedAt = time.Now().UTC()
	return *registration, nil
}

func (s *Service) resolveParticipant(ctx context.Context, req domain.RegisterRequest) (snowflake.ID, *string, error) {
	memberID := strings.TrimSpace(req.MemberID)
	guestEmail := strings.TrimSpace(req.GuestEmail)

	if memberID != "" {
		parsed, err := parseID(memberID)
		if err != nil {
			return 0, nil, err
		}
		member, err := s.memberRepo.FindByID(ctx, s.db, parsed)
		if err != nil {
			return 0, nil, err
		}
		if member == nil {
			return 0, nil, domain.ErrNotFound
		}
		return parsed, nil, nil
	}

	// Walk-in guests book with an email only and ride on the reserved
	// technical guest account.
	if guestEmail == "" {
		return 0, nil, domain.ErrMissingParticipant
	}
	if !strings.Contains(guestEmail, "@") {
		return 0, nil, domain.ErrInvalidEmail
	}
	return snowflake.ID(s.cfg.TechnicalGuestID), &guestEmail, nil
}

func (s *Service) occurrenceFromTemplate(template *domain.ClassTemplate, startsAt time.Time) domain.ClassOccurrence {
	now := time.Now().UTC()
	return domain.ClassOccurrence{
		ID:            s.genID.Generate(),
		TemplateID:    template.ID,
		ServiceTypeID: template.ServiceTypeID,
		TrainerID:     template.TrainerID,
		StartsAt:      startsAt,
		EndsAt:        startsAt.Add(time.Duration(template.DurationMinutes) * time.Minute),
		Capacity:      template.Capacity,
		Status:        domain.OccurrenceStatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func normalizeWeekdays(input []string) ([]string, error) {
	seen := map[string]bool{}
	weekdays := make([]string, 0, len(input))
	for _, raw := range input {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if _, ok := validWeekdays[name]; !ok {
			return nil, domain.ErrInvalidWeekdays
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		weekdays = append(weekdays, name)
	}
	if len(weekdays) == 0 {
		return nil, domain.ErrInvalidWeekdays
	}
	return weekdays, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
