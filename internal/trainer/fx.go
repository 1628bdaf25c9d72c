package trainer

import (
	"github.com/studiokit/kassza/internal/trainer/repository"
	"github.com/studiokit/kassza/internal/trainer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("trainer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
