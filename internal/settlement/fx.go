package settlement

import (
	"github.com/studiokit/kassza/internal/settlement/repository"
	"github.com/studiokit/kassza/internal/settlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
