package trainingpackage

import (
	"github.com/fitdesk/fitdesk/internal/trainingpackage/repository"
	"github.com/fitdesk/fitdesk/internal/trainingpackage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("trainingpackage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
