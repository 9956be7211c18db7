package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajayykmr/sms-forwarder/internal/api"
	"github.com/ajayykmr/sms-forwarder/internal/audit"
	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/kafka/producer"
	kafkapublisher "github.com/ajayykmr/sms-forwarder/internal/kafka/publisher"
	"github.com/ajayykmr/sms-forwarder/internal/logger"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	"github.com/ajayykmr/sms-forwarder/internal/pipeline"
	"github.com/ajayykmr/sms-forwarder/internal/providers/factory"
	"github.com/ajayykmr/sms-forwarder/internal/twilio"
	"github.com/ajayykmr/sms-forwarder/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel, models.ServiceName)
	if err != nil {
		fail("logger init", err)
	}
	log := *baseLogger

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("sms forwarder terminated")
	}
	log.Info().Msg("sms forwarder stopped")
}

// run owns every resource it opens and releases them before returning.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	sinks := audit.Multi{audit.NewLogSink(logger.Component(log, "audit"))}
	var routerOpts []api.Option

	if len(cfg.Kafka.Brokers) > 0 {
		prod, err := producer.New(cfg.Kafka, logger.Component(log, "kafka"))
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer func() {
			if err := prod.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()

		recordPublisher := kafkapublisher.NewRecordPublisher(prod, cfg.Kafka.AuditTopic, logger.Component(log, "audit-publisher"))
		if recordPublisher == nil {
			return errors.New("create audit record publisher")
		}
		sinks = append(sinks, audit.NewKafkaSink(recordPublisher, logger.Component(log, "audit-kafka")))
		routerOpts = append(routerOpts, api.WithReadiness("audit_kafka", prod.IsReady))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.AuditTopic).Msg("kafka audit sink enabled")
	}

	clients := twilio.NewClientFactory(twilio.WithTimeout(cfg.Timeouts.ProviderTimeout()))
	notifiers := factory.New(*cfg, logger.Component(log, "providers"), factory.WithTwilioClients(clients))

	orchestrator, err := pipeline.NewOrchestrator(pipeline.Dependencies{
		Twilio:    cfg.Twilio,
		Clients:   clients,
		Notifiers: notifiers,
		Sink:      sinks,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("initialise pipeline: %w", err)
	}

	executor := worker.NewExecutor(worker.Config{TaskTimeout: cfg.Timeouts.TaskTimeout()}, log)

	router, err := api.NewRouter(cfg.App, orchestrator, executor, log, routerOpts...)
	if err != nil {
		return fmt.Errorf("initialise router: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().
		Str("addr", srv.Addr).
		Str("webhook_path", cfg.App.WebhookPath).
		Str("email_transport", cfg.Email.Transport).
		Msg("sms forwarder started")

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := executor.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("in-flight webhooks abandoned")
	}
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("sms forwarder init failed")
}
