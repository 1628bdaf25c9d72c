package pass

import (
	"github.com/studiokit/kassza/internal/pass/repository"
	"github.com/studiokit/kassza/internal/pass/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pass.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
