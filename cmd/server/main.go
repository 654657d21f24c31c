package main

import (
	"context"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk-io/opsdesk/modules"
	"github.com/opsdesk-io/opsdesk/pkg/application"
	"github.com/opsdesk-io/opsdesk/pkg/configuration"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
	"github.com/opsdesk-io/opsdesk/pkg/metrics"
	"github.com/opsdesk-io/opsdesk/pkg/middleware"
	"github.com/opsdesk-io/opsdesk/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app); err != nil {
		panic(err)
	}
	if err := app.Migrations().Apply(ctx, pool); err != nil {
		panic(err)
	}

	app.RegisterMiddleware(
		middleware.ProvidePool(pool),
		middleware.RequestLogger(logger),
		middleware.RequireTenant(app),
		middleware.ProvideActor(),
	)
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	logger.WithField("address", conf.SocketAddress).Info("starting http server")
	if err := server.New(app).Start(conf.SocketAddress); err != nil {
		panic(err)
	}
}
