package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softdata/cohortsync/internal/server"
	"github.com/softdata/cohortsync/modules/cohorts"
	"github.com/softdata/cohortsync/modules/cohorts/ingest"
	"github.com/softdata/cohortsync/pkg/application"
	"github.com/softdata/cohortsync/pkg/configuration"
	"github.com/softdata/cohortsync/pkg/eventbus"
	"github.com/softdata/cohortsync/pkg/logging"
	"github.com/softdata/cohortsync/pkg/metrics"
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
	defer conf.Unload()
	logger := conf.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to " + conf.OpenTelemetry.TempoURL)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	aliases, err := ingest.LoadAliases(conf.Ingest.AliasesPath)
	if err != nil {
		log.Fatalf("failed to load header aliases: %v", err)
	}

	uploadLimit, err := server.UploadRateLimit(conf, logger)
	if err != nil {
		log.Fatalf("invalid UPLOAD_RATE_LIMIT: %v", err)
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	err = application.LoadModules(app, cohorts.NewModule(&cohorts.ModuleOptions{
		Aliases: aliases,
		Ingest: ingest.Options{
			BatchSize: conf.Ingest.SnapshotBatchSize,
			Region:    ingest.RegionFilter{Code: conf.Ingest.RegionCode, Name: conf.Ingest.RegionName},
		},
		MaxHeaderScan: conf.Ingest.MaxHeaderScan,
		MaxUploadSize: conf.MaxUploadSize,
		RateLimit:     uploadLimit,
	}))
	if err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	metricsPath := ""
	if conf.Prometheus.Enabled {
		metricsPath = conf.Prometheus.Path
	}
	app.RegisterControllers(metrics.NewOpsController(metricsPath, pool))

	serverInstance := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	logger.Infof("Listening on: %s", conf.SocketAddress)
	if err := serverInstance.Start(ctx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
