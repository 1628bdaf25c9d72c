package audit

import (
	"github.com/studiokit/kassza/internal/audit/repository"
	"github.com/studiokit/kassza/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
