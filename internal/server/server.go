// Package server exposes the HTTP API over gin.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitdesk/fitdesk/internal/authorization"
	commissiondomain "github.com/fitdesk/fitdesk/internal/commission/domain"
	"github.com/fitdesk/fitdesk/internal/config"
	"github.com/fitdesk/fitdesk/internal/observability/logger"
	"github.com/fitdesk/fitdesk/internal/observability/metrics"
	"github.com/fitdesk/fitdesk/internal/observability/tracing"
	paymentdomain "github.com/fitdesk/fitdesk/internal/payment/domain"
	sessiondomain "github.com/fitdesk/fitdesk/internal/session/domain"
	packagedomain "github.com/fitdesk/fitdesk/internal/trainingpackage/domain"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

type Server struct {
	cfg    config.Config
	log    *zap.Logger
	db     *gorm.DB
	engine *gin.Engine
	genID  *snowflake.Node

	packageSvc    packagedomain.Service
	paymentSvc    paymentdomain.Service
	sessionSvc    sessiondomain.Service
	commissionSvc commissiondomain.Service
	authzSvc      authorization.Service

	mutationLimiter *rateLimiter
}

type ServerParam struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	DB     *gorm.DB
	Engine *gin.Engine
	GenID  *snowflake.Node

	PackageSvc    packagedomain.Service
	PaymentSvc    paymentdomain.Service
	SessionSvc    sessiondomain.Service
	CommissionSvc commissiondomain.Service
	AuthzSvc      authorization.Service
}

// NewEngine builds the gin engine with the observability middleware chain.
// The tracer provider is a dependency so exporters start before traffic.
func NewEngine(cfg config.Config, httpMetrics *metrics.HTTPMetrics, _ trace.TracerProvider) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(tracing.GinMiddleware(cfg.Observability.ServiceName))
	engine.Use(metrics.GinMiddleware(httpMetrics))
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz"},
	}))
	return engine
}

func NewServer(p ServerParam) *Server {
	return &Server{
		cfg:    p.Config,
		log:    p.Log.Named("server"),
		db:     p.DB,
		engine: p.Engine,
		genID:  p.GenID,

		packageSvc:    p.PackageSvc,
		paymentSvc:    p.PaymentSvc,
		sessionSvc:    p.SessionSvc,
		commissionSvc: p.CommissionSvc,
		authzSvc:      p.AuthzSvc,

		mutationLimiter: newRateLimiter(p.Config.RateLimit.MutationLimit, p.Config.RateLimit.MutationWindow),
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/healthz", s.Healthz)

	api := s.engine.Group("/api")
	orgs := api.Group("/orgs/:org_id", s.OrgContext(), s.ActorRequired())

	orgs.GET("/packages", s.ListPackages)
	orgs.GET("/packages/:id", s.GetPackageByID)
	orgs.GET("/packages/:id/summary", s.GetPackageFundingSummary)
	orgs.POST("/packages",
		s.RequireAction(authorization.ObjectPackage, authorization.ActionPackageCreate),
		s.MutationRateLimit(), s.CreatePackage)
	orgs.DELETE("/packages/:id",
		s.RequireAction(authorization.ObjectPackage, authorization.ActionPackageDeactivate),
		s.MutationRateLimit(), s.DeactivatePackage)

	orgs.GET("/payments", s.ListPayments)
	orgs.POST("/packages/:id/payments",
		s.RequireAction(authorization.ObjectPayment, authorization.ActionPaymentRecord),
		s.MutationRateLimit(), s.RecordPayment)
	orgs.PATCH("/payments/:id",
		s.RequireAction(authorization.ObjectPayment, authorization.ActionPaymentUpdate),
		s.MutationRateLimit(), s.UpdatePayment)
	orgs.DELETE("/payments/:id",
		s.RequireAction(authorization.ObjectPayment, authorization.ActionPaymentDelete),
		s.MutationRateLimit(), s.DeletePayment)

	orgs.GET("/sessions", s.ListSessions)
	orgs.POST("/sessions",
		s.RequireAction(authorization.ObjectSession, authorization.ActionSessionLog),
		s.MutationRateLimit(), s.LogSession)
	orgs.POST("/sessions/:id/cancel",
		s.RequireAction(authorization.ObjectSession, authorization.ActionSessionCancel),
		s.MutationRateLimit(), s.CancelSession)
	orgs.POST("/sessions/:id/validate",
		s.RequireAction(authorization.ObjectSession, authorization.ActionSessionValidate),
		s.MutationRateLimit(), s.ValidateSession)

	orgs.GET("/commission/config",
		s.RequireAction(authorization.ObjectCommissionConfig, authorization.ActionCommissionRead),
		s.GetCommissionConfig)
	orgs.PUT("/commission/config",
		s.RequireAction(authorization.ObjectCommissionConfig, authorization.ActionCommissionConfigure),
		s.MutationRateLimit(), s.SetCommissionConfig)
	orgs.POST("/commission/statements",
		s.RequireAction(authorization.ObjectStatement, authorization.ActionStatementResolve),
		s.ResolveCommissionStatement)

	orgs.GET("/trainers", s.ListTrainers)
	orgs.POST("/trainers", s.MutationRateLimit(), s.CreateTrainer)
	orgs.GET("/clients", s.ListClients)
	orgs.POST("/clients", s.MutationRateLimit(), s.CreateClient)
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener on fx startup and drains it on shutdown.
func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listener, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
