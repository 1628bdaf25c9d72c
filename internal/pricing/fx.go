package pricing

import (
	"github.com/studiokit/kassza/internal/pricing/repository"
	"github.com/studiokit/kassza/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
