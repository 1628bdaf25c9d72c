// Package seed creates the rows the studio needs before the first request:
// the reserved walk-in guest member, and optionally a small demo catalog for
// local environments.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/lib/pq"
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
	trainerdomain "github.com/studiokit/kassza/internal/trainer/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	technicalGuestName = "Walk-in guest"

	demoTrainerName   = "Kiss Anna"
	demoTrainerEmail  = "anna.kiss@studiokit.local"
	demoServiceName   = "Group class"
	demoTemplateName  = "Morning Spin"
	demoMemberName    = "Demo Member"
	demoMemberEmail   = "demo@studiokit.local"
	demoEntryFee      = 2000
	demoTrainerFee    = 8000
	demoCurrency      = "HUF"
	demoPriceFromDate = "2024-01-01"
)

// EnsureTechnicalGuest creates the reserved member every email-only
// registration attaches to. The id is fixed by configuration so pricing
// rules and registrations can reference it before the row exists.
func EnsureTechnicalGuest(db *gorm.DB, id int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if id == 0 {
		return errors.New("technical guest id is required")
	}

	ctx := context.Background()
	var guest memberdomain.Member
	err := db.WithContext(ctx).Where("id = ?", id).First(&guest).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	guest = memberdomain.Member{
		ID:               snowflake.ID(id),
		Name:             technicalGuestName,
		IsTechnicalGuest: true,
		Metadata:         datatypes.JSONMap{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return db.WithContext(ctx).Create(&guest).Error
}

// EnsureDemoData seeds a minimal working catalog: one trainer, one service
// type, one recurring class and its default price, plus one member to book
// with. Safe to run repeatedly.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trainer, err := ensureDemoTrainerTx(ctx, tx, node)
		if err != nil {
			return err
		}
		serviceType, err := ensureDemoServiceTypeTx(ctx, tx, node)
		if err != nil {
			return err
		}
		template, err := ensureDemoTemplateTx(ctx, tx, node, serviceType.ID, trainer.ID)
		if err != nil {
			return err
		}
		if err := ensureDemoDefaultPriceTx(ctx, tx, node, template.ID); err != nil {
			return err
		}
		return ensureDemoMemberTx(ctx, tx, node)
	})
}

func ensureDemoTrainerTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (trainerdomain.Trainer, error) {
	var trainer trainerdomain.Trainer
	err := tx.WithContext(ctx).Where("email = ?", demoTrainerEmail).First(&trainer).Error
	if err == nil {
		return trainer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return trainer, err
	}

	now := time.Now().UTC()
	email := demoTrainerEmail
	trainer = trainerdomain.Trainer{
		ID:        node.Generate(),
		Name:      demoTrainerName,
		Email:     &email,
		Active:    true,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&trainer).Error; err != nil {
		return trainer, err
	}
	return trainer, nil
}

func ensureDemoServiceTypeTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (catalogdomain.ServiceType, error) {
	code := slug.Make(demoServiceName)
	var serviceType catalogdomain.ServiceType
	err := tx.WithContext(ctx).Where("code = ?", code).First(&serviceType).Error
	if err == nil {
		return serviceType, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return serviceType, err
	}

	now := time.Now().UTC()
	serviceType = catalogdomain.ServiceType{
		ID:              node.Generate(),
		Code:            code,
		Name:            demoServiceName,
		DurationMinutes: 60,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.WithContext(ctx).Create(&serviceType).Error; err != nil {
		return serviceType, err
	}
	return serviceType, nil
}

func ensureDemoTemplateTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, serviceTypeID, trainerID snowflake.ID) (catalogdomain.ClassTemplate, error) {
	code := slug.Make(demoTemplateName)
	var template catalogdomain.ClassTemplate
	err := tx.WithContext(ctx).Where("code = ?", code).First(&template).Error
	if err == nil {
		return template, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return template, err
	}

	now := time.Now().UTC()
	template = catalogdomain.ClassTemplate{
		ID:              node.Generate(),
		ServiceTypeID:   serviceTypeID,
		TrainerID:       trainerID,
		Code:            code,
		Name:            demoTemplateName,
		Weekdays:        pq.StringArray{"monday", "wednesday", "friday"},
		StartTimeLocal:  "07:00",
		DurationMinutes: 60,
		Capacity:        12,
		Active:          true,
		Metadata:        datatypes.JSONMap{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.WithContext(ctx).Create(&template).Error; err != nil {
		return template, err
	}
	return template, nil
}

func ensureDemoDefaultPriceTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, templateID snowflake.ID) error {
	var price pricingdomain.TemplateDefaultPrice
	err := tx.WithContext(ctx).
		Where("template_id = ? AND is_active = ?", templateID, true).
		First(&price).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	validFrom, err := time.Parse("2006-01-02", demoPriceFromDate)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	price = pricingdomain.TemplateDefaultPrice{
		ID:               node.Generate(),
		TemplateID:       templateID,
		Code:             slug.Make(demoTemplateName + " default"),
		EntryFeeBrutto:   demoEntryFee,
		TrainerFeeBrutto: demoTrainerFee,
		Currency:         demoCurrency,
		IsActive:         true,
		ValidFrom:        validFrom,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return tx.WithContext(ctx).Create(&price).Error
}

func ensureDemoMemberTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var member memberdomain.Member
	err := tx.WithContext(ctx).Where("email = ?", demoMemberEmail).First(&member).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	email := demoMemberEmail
	member = memberdomain.Member{
		ID:        node.Generate(),
		Name:      demoMemberName,
		Email:     &email,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return tx.WithContext(ctx).Create(&member).Error
}
