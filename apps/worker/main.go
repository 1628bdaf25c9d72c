package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/studiokit/kassza/internal/audit"
	"github.com/studiokit/kassza/internal/cache"
	"github.com/studiokit/kassza/internal/catalog"
	"github.com/studiokit/kassza/internal/clock"
	"github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/events"
	"github.com/studiokit/kassza/internal/feepolicy"
	"github.com/studiokit/kassza/internal/member"
	"github.com/studiokit/kassza/internal/observability"
	"github.com/studiokit/kassza/internal/pricing"
	"github.com/studiokit/kassza/internal/ratelimit"
	"github.com/studiokit/kassza/internal/scheduler"
	"github.com/studiokit/kassza/internal/settlement"
	"github.com/studiokit/kassza/internal/trainer"
	"github.com/studiokit/kassza/pkg/db"
	"go.uber.org/fx"
)

// worker runs the settlement scheduler without the HTTP server. It
// expects the API process (or an operator) to have applied migrations.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,

		// Domain services required by the autodraft sweep. Pricing pulls
		// in catalog and member as resolver dependencies.
		audit.Module,
		events.Module,
		member.Module,
		trainer.Module,
		catalog.Module,
		pricing.Module,
		feepolicy.Module,
		settlement.Module,

		// The redis lock keeps concurrent workers from double-drafting.
		ratelimit.Module,

		scheduler.Module,
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go s.RunForever(context.Background())
			return nil
		},
	})
}
