package catalog

import (
	"github.com/studiokit/kassza/internal/catalog/repository"
	"github.com/studiokit/kassza/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
