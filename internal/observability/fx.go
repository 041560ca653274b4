// Package observability bundles logging, tracing, and HTTP metrics providers.
package observability

import (
	"github.com/fitdesk/fitdesk/internal/config"
	"github.com/fitdesk/fitdesk/internal/observability/logger"
	"github.com/fitdesk/fitdesk/internal/observability/metrics"
	"github.com/fitdesk/fitdesk/internal/observability/tracing"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(tracing.NewProvider),
	fx.Provide(func(cfg config.Config) (*metrics.HTTPMetrics, error) {
		return metrics.NewHTTPMetrics(cfg.Observability.ServiceName)
	}),
)
