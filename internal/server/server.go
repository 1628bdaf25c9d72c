package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/studiokit/kassza/internal/audit"
	auditdomain "github.com/studiokit/kassza/internal/audit/domain"
	"github.com/studiokit/kassza/internal/cache"
	"github.com/studiokit/kassza/internal/catalog"
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
	"github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/events"
	"github.com/studiokit/kassza/internal/feepolicy"
	"github.com/studiokit/kassza/internal/member"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	"github.com/studiokit/kassza/internal/observability"
	obsmiddleware "github.com/studiokit/kassza/internal/observability/logger"
	obsmetrics "github.com/studiokit/kassza/internal/observability/metrics"
	obstracing "github.com/studiokit/kassza/internal/observability/tracing"
	"github.com/studiokit/kassza/internal/pass"
	passdomain "github.com/studiokit/kassza/internal/pass/domain"
	"github.com/studiokit/kassza/internal/pricing"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
	"github.com/studiokit/kassza/internal/providers/pdf"
	"github.com/studiokit/kassza/internal/ratelimit"
	"github.com/studiokit/kassza/internal/settlement"
	settlementdomain "github.com/studiokit/kassza/internal/settlement/domain"
	"github.com/studiokit/kassza/internal/trainer"
	trainerdomain "github.com/studiokit/kassza/internal/trainer/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	cache.Module,
	fx.Provide(registerGin),
	audit.Module,
	events.Module,
	member.Module,
	trainer.Module,
	catalog.Module,
	pricing.Module,
	feepolicy.Module,
	pass.Module,
	settlement.Module,
	pdf.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	memberSvc     memberdomain.Service
	trainerSvc    trainerdomain.Service
	catalogSvc    catalogdomain.Service
	pricingSvc    pricingdomain.Service
	passSvc       passdomain.Service
	settlementSvc settlementdomain.Service
	auditSvc      auditdomain.Service
	feePolicy     *config.FeePolicyConfigHolder
	pdfProvider   pdf.Provider
	apiLimiter    *ratelimit.APILimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	MemberSvc     memberdomain.Service
	TrainerSvc    trainerdomain.Service
	CatalogSvc    catalogdomain.Service
	PricingSvc    pricingdomain.Service
	PassSvc       passdomain.Service
	SettlementSvc settlementdomain.Service
	AuditSvc      auditdomain.Service
	FeePolicy     *config.FeePolicyConfigHolder
	PDFProvider   pdf.Provider
	APILimiter    *ratelimit.APILimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics   `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		memberSvc:     p.MemberSvc,
		trainerSvc:    p.TrainerSvc,
		catalogSvc:    p.CatalogSvc,
		pricingSvc:    p.PricingSvc,
		passSvc:       p.PassSvc,
		settlementSvc: p.SettlementSvc,
		auditSvc:      p.AuditSvc,
		feePolicy:     p.FeePolicy,
		pdfProvider:   p.PDFProvider,
		apiLimiter:    p.APILimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Members --------
	api.GET("/members", s.ListMembers)
	api.POST("/members", s.WriteLimit("members"), s.CreateMember)
	api.GET("/members/:id", s.GetMemberByID)
	api.GET("/members/:id/pricing-rules", s.ListMemberPricingRules)

	// -------- Trainers --------
	api.GET("/trainers", s.ListTrainers)
	api.POST("/trainers", s.WriteLimit("trainers"), s.CreateTrainer)
	api.GET("/trainers/:id", s.GetTrainerByID)
	api.POST("/trainers/:id/deactivate", s.DeactivateTrainer)

	// -------- Catalog --------
	api.GET("/service-types", s.ListServiceTypes)
	api.POST("/service-types", s.CreateServiceType)
	api.GET("/class-templates", s.ListClassTemplates)
	api.POST("/class-templates", s.CreateClassTemplate)
	api.GET("/class-templates/:id", s.GetClassTemplateByID)
	api.POST("/class-templates/:id/retire", s.RetireClassTemplate)
	api.GET("/occurrences", s.ListOccurrences)
	api.POST("/occurrences", s.CreateOccurrence)
	api.POST("/occurrences/generate", s.GenerateOccurrences)
	api.GET("/occurrences/:id", s.GetOccurrenceByID)
	api.POST("/occurrences/:id/cancel", s.CancelOccurrence)

	// -------- Registrations --------
	api.POST("/registrations", s.WriteLimit("registrations"), s.CreateRegistration)
	api.GET("/registrations/:id", s.GetRegistrationByID)
	api.POST("/registrations/:id/check-in", s.CheckInRegistration)
	api.POST("/registrations/:id/no-show", s.MarkRegistrationNoShow)
	api.POST("/registrations/:id/cancel", s.CancelRegistration)

	// -------- Pricing --------
	api.POST("/pricing/resolve", s.ResolvePrice)
	api.POST("/pricing/occurrence-prices", s.WriteLimit("pricing_rules"), s.CreateOccurrencePrice)
	api.POST("/pricing/template-prices", s.WriteLimit("pricing_rules"), s.CreateTemplatePrice)
	api.POST("/pricing/template-defaults", s.WriteLimit("pricing_rules"), s.CreateTemplateDefault)
	api.GET("/pricing/template-defaults", s.ListTemplateDefaults)
	api.POST("/pricing/template-defaults/:id/retire", s.RetireTemplateDefault)
	api.POST("/pricing/service-defaults", s.WriteLimit("pricing_rules"), s.CreateServiceDefault)
	api.GET("/pricing/service-defaults", s.ListServiceDefaults)
	api.POST("/pricing/service-defaults/:id/retire", s.RetireServiceDefault)
	api.POST("/pricing/generate-defaults", s.GenerateDefaultPrices)

	// -------- Passes --------
	api.POST("/passes", s.WriteLimit("passes"), s.CreatePass)
	api.GET("/passes", s.ListPasses)
	api.GET("/passes/balance", s.GetPassBalance)
	api.GET("/passes/:id", s.GetPassByID)
	api.GET("/passes/:id/usages", s.ListPassUsages)
	api.POST("/passes/deduct", s.WriteLimit("pass_ledger"), s.DeductPassCredit)
	api.POST("/passes/refund", s.WriteLimit("pass_ledger"), s.RefundPassCredit)

	// -------- Settlements --------
	api.POST("/settlements/preview", s.PreviewSettlement)
	api.POST("/settlements", s.WriteLimit("settlements"), s.GenerateSettlement)
	api.GET("/settlements", s.ListSettlements)
	api.GET("/settlements/:id", s.GetSettlementByID)
	api.GET("/settlements/:id/statement.pdf", s.DownloadSettlementStatement)
	api.POST("/settlements/:id/finalize", s.WriteLimit("settlements"), s.FinalizeSettlement)
	api.POST("/settlements/:id/pay", s.WriteLimit("settlements"), s.MarkSettlementPaid)

	if s.cfg.Environment != "production" {
		api.POST("/test/cleanup", s.TestCleanup)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/fee-policy", s.GetFeePolicy)
	admin.PUT("/fee-policy", s.UpdateFeePolicy)
	admin.GET("/audit-logs", s.ListAuditLogs)
}
