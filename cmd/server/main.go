package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/exportengine/engine/internal/catalog"
	"github.com/exportengine/engine/internal/config"
	"github.com/exportengine/engine/internal/database"
	"github.com/exportengine/engine/internal/dispatch"
	"github.com/exportengine/engine/internal/enrich"
	"github.com/exportengine/engine/internal/fetch"
	"github.com/exportengine/engine/internal/fxrate"
	"github.com/exportengine/engine/internal/model"
	"github.com/exportengine/engine/internal/pipeline"
	"github.com/exportengine/engine/internal/server"
	"github.com/exportengine/engine/internal/upstream"
	"github.com/exportengine/engine/internal/writer"
	"github.com/exportengine/engine/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	logger.SetGlobalLogger(log)

	log.Info().Msg("starting export engine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	runsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/runs.db",
		Profile: database.ProfileStandard,
		Name:    "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open runs database")
	}
	defer runsDB.Close()

	ratesDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/rates.db",
		Profile: database.ProfileCache,
		Name:    "rates",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open rates database")
	}
	defer ratesDB.Close()

	cat := catalog.New()
	cat.RegisterDataset(catalog.OrdersDataset())
	for _, c := range catalog.DefaultCapabilities() {
		cat.RegisterCapability(c)
	}

	fxProvider := fxrate.NewHTTPProvider(cfg.UpstreamBaseURL)
	fxService := fxrate.New(fxProvider, ratesDB.Conn(), cfg.PivotCurrency, log)

	configs := config.NewConfigStore()
	if err := configs.LoadFile(cfg.ConfigsFile); err != nil {
		log.Fatal().Err(err).Msg("failed to load export configurations")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load aws configuration")
	}
	s3Client := s3.NewFromConfig(awsCfg)
	spreadsheetWriter := writer.NewS3Writer(s3Client, cfg.S3Bucket, log)

	runStore := dispatch.NewSQLiteRunStore(runsDB.Conn())

	orchestratorFor := func(exportCfg model.ExportConfiguration) *pipeline.Orchestrator {
		client := upstream.NewClient(upstream.Config{
			BaseURL:    cfg.UpstreamBaseURL,
			Token:      cfg.TenantTokens[exportCfg.TenantID],
			RateLimit:  cfg.RateBudgetCalls,
			RateWindow: cfg.RateBudgetWindow,
		}, log)

		fetchers := fetch.NewRegistry()
		fetchers.Register("orders", fetch.NewOrdersFetcher(client))

		enrichers := enrich.NewRegistry()
		enrichers.Register(enrich.NewPackagesEnricher(client, nil))
		enrichers.Register(enrich.NewDocumentsEnricher(client))
		enrichers.Register(enrich.NewInventoryEnricher(client))
		enrichers.Register(enrich.NewStockEnricher(client))
		enrichers.Register(enrich.NewPriceEnricher(client))
		enrichers.Register(enrich.NewTrackingEnricher(client))
		enrichers.Register(enrich.NewLabelEnricher(client))
		enrichers.Register(enrich.NewPaymentEnricher(client))
		enrichers.Register(enrich.NewCreditEnricher(client))
		dataset, _ := cat.GetDataset(exportCfg.DatasetID)
		enrichers.Register(enrich.NewCurrencyEnricher(fxService, dataset, exportCfg.Currency))

		return pipeline.New(fetchers, enrichers, cat, nil, 0, log)
	}

	eventBus := server.NewRunEventBus()

	dispatcher := dispatch.New(configs, runStore, orchestratorFor, spreadsheetWriter, log).
		WithStaleThreshold(cfg.StaleRunThreshold).
		WithWallClock(cfg.RunWallClock).
		WithEventPublisher(eventBus)

	sweeper := dispatch.NewSweeper(runStore, cfg.StaleRunThreshold, log)
	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	go sweeper.Run(sweeperCtx, cfg.StaleRunThreshold)
	defer stopSweeper()

	sched := dispatch.NewScheduler(log)
	sched.Start()
	defer sched.Stop()

	tickJob := dispatch.NewDispatchTickJob(configs, runStore, dispatcher, log)
	if err := sched.AddJob("@every 1m", tickJob); err != nil {
		log.Fatal().Err(err).Msg("failed to register scheduled dispatch tick")
	}

	srv := server.New(server.Config{
		Port:           cfg.Port,
		Log:            log,
		Runs:           dispatcher,
		Store:          runStore,
		Events:         eventBus,
		DevMode:        cfg.DevMode,
		StaleThreshold: cfg.StaleRunThreshold,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start http server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("export engine started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down export engine")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("export engine stopped")
}
