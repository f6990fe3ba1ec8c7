package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/config"
	"github.com/VictorVasquezZT2005/Prestamos/internal/infra"
	"github.com/VictorVasquezZT2005/Prestamos/internal/repository"
	"github.com/VictorVasquezZT2005/Prestamos/internal/router"
	"github.com/VictorVasquezZT2005/Prestamos/internal/service"
	"github.com/VictorVasquezZT2005/Prestamos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(cfg.DatabaseURL, db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// Voucher events are optional; without AMQP_URL they are dropped.
	var publicador service.Publicador = infra.NopPublisher{}
	if cfg.AMQPURL != "" {
		pub, err := infra.NewEventPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}
		defer pub.Close()
		publicador = pub
	}

	// Background jobs (PDF rendering, e-mail delivery). Processors are wired
	// here so the pool has full access to the infrastructure.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)
	impresion := infra.Impresion{Hospital: cfg.HospitalNombre, Loc: cfg.Location()}
	valeRepo := repository.NewValeRepository(db, cfg.FolioModo)

	pool := worker.NewPool(rdb, map[string]worker.Processor{
		worker.JobPDF:   worker.NewPDFWorker(valeRepo, dispatcher, impresion, cfg.PDFStoragePath),
		worker.JobEmail: worker.NewEmailWorker(mailer),
	})
	pool.Start(ctx, cfg.WorkerPoolSize)
	worker.StartRetryCron(ctx, rdb)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE streams stay open; handlers bound their own work
		IdleTimeout:  60 * time.Second,
	}
	srv.Handler = router.New(cfg, db, rdb, mailer, publicador, router.CierreDeStreams(srv))

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("folio_modo", cfg.FolioModo).Msgf("Prestamos backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Shutdown ends the live streams and drains in-flight requests before
	// the workers stop.
	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	cancel()
	log.Info().Msg("server exited")
}
