package session

import (
	"github.com/fitdesk/fitdesk/internal/session/domain"
	"github.com/fitdesk/fitdesk/internal/session/service"
	"go.uber.org/fx"
)

var Module = fx.Module("session.service",
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) domain.UsageOracle { return svc }),
)
