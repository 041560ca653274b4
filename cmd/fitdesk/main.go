package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/fitdesk/fitdesk/internal/authorization"
	"github.com/fitdesk/fitdesk/internal/clock"
	"github.com/fitdesk/fitdesk/internal/commission"
	"github.com/fitdesk/fitdesk/internal/config"
	"github.com/fitdesk/fitdesk/internal/events"
	"github.com/fitdesk/fitdesk/internal/migration"
	"github.com/fitdesk/fitdesk/internal/observability"
	"github.com/fitdesk/fitdesk/internal/payment"
	"github.com/fitdesk/fitdesk/internal/seed"
	"github.com/fitdesk/fitdesk/internal/server"
	"github.com/fitdesk/fitdesk/internal/session"
	"github.com/fitdesk/fitdesk/internal/trainingpackage"
	"github.com/fitdesk/fitdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,
		fx.Invoke(func(log *zap.Logger) {
			log.Info("starting fitdesk", zap.String("version", version))
		}),
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			return seed.EnsureMainOrg(conn)
		}),

		events.Module,
		authorization.Module,
		trainingpackage.Module,
		payment.Module,
		session.Module,
		commission.Module,

		server.Module,
	)
	app.Run()
}
