package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/studiokit/kassza/internal/clock"
	"github.com/studiokit/kassza/internal/migration"
	"github.com/studiokit/kassza/internal/observability"
	"github.com/studiokit/kassza/internal/scheduler"
	"github.com/studiokit/kassza/internal/server"
	"github.com/studiokit/kassza/pkg/db"
	"go.uber.org/fx"
)

// kassza is the all-in-one binary: HTTP API, migrations and the
// settlement scheduler in one process. Studios that want the scheduler
// separate run apps/worker instead.
func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// server.Module pulls in config, cache and every domain module.
		server.Module,

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
