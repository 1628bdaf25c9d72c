package migration

import (
	auditdomain "github.com/studiokit/kassza/internal/audit/domain"
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
	"github.com/studiokit/kassza/internal/config"
	eventsdomain "github.com/studiokit/kassza/internal/events/domain"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	passdomain "github.com/studiokit/kassza/internal/pass/domain"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
	"github.com/studiokit/kassza/internal/seed"
	settlementdomain "github.com/studiokit/kassza/internal/settlement/domain"
	trainerdomain "github.com/studiokit/kassza/internal/trainer/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql development databases skip the versioned
			// files and let gorm derive the schema from the models.
			if err := conn.AutoMigrate(
				&memberdomain.Member{},
				&trainerdomain.Trainer{},
				&catalogdomain.ServiceType{},
				&catalogdomain.ClassTemplate{},
				&catalogdomain.ClassOccurrence{},
				&catalogdomain.Registration{},
				&pricingdomain.ClientOccurrencePrice{},
				&pricingdomain.ClientTemplatePrice{},
				&pricingdomain.TemplateDefaultPrice{},
				&pricingdomain.ServiceDefaultPrice{},
				&passdomain.Pass{},
				&passdomain.PassUsage{},
				&settlementdomain.Settlement{},
				&settlementdomain.SettlementItem{},
				&settlementdomain.SettlementSkip{},
				&auditdomain.AuditLog{},
				&eventsdomain.StudioEvent{},
			); err != nil {
				return err
			}
		}

		if err := seed.EnsureTechnicalGuest(conn, cfg.TechnicalGuestID); err != nil {
			return err
		}
		if cfg.Bootstrap.SeedDemoData {
			return seed.EnsureDemoData(conn)
		}
		return nil
	}),
)
