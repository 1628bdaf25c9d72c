package member

import (
	"github.com/studiokit/kassza/internal/member/repository"
	"github.com/studiokit/kassza/internal/member/service"
	"go.uber.org/fx"
)

var Module = fx.Module("member.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
