package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	banking_http "github.com/keneth217/bank/internal/handler/http/banking"
	kafka_handler "github.com/keneth217/bank/internal/handler/kafka"
	kafka_infra "github.com/keneth217/bank/internal/infrastructure/kafka"
	"github.com/keneth217/bank/internal/notify"
	"github.com/keneth217/bank/internal/outbox"
	"github.com/keneth217/bank/internal/repository/outbox_repo"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the banking service",
	Long: `Start the HTTP API together with the background workers.

With Kafka enabled this also publishes committed ledger events from the outbox,
publishes account notifications and consumes transfer requests.

Example:
  banking serve --config banking.yaml`,
	RunE: runServe,
}

var dbConnectRetries int

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&dbConnectRetries, "db-retries", 10, "database connection attempts before giving up")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	appLogger, err := newLogger()
	if err != nil {
		return err
	}
	defer appLogger.Sync()
	appLogger.Info("Banking Service starting...")

	db, err := openDatabase(cfg, appLogger, dbConnectRetries)
	if err != nil {
		appLogger.Error("Failed to prepare database", zap.Error(err))
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifiers := notify.MultiNotifier{notify.NewLogNotifier(appLogger.With(zap.String("component", "LogNotifier")))}

	var kafkaProducer kafka_infra.Producer
	if cfg.Kafka.Enabled {
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := kafka_infra.EnsureTopics(topicCtx, cfg.GetKafkaBrokers(), []string{
			cfg.Kafka.LedgerEventsTopic,
			cfg.Kafka.NotificationsTopic,
			cfg.Kafka.TransferRequestsTopic,
		}, appLogger)
		cancel()
		if err != nil {
			appLogger.Error("Failed to ensure Kafka topics", zap.Error(err))
			return err
		}

		kafkaProducer = kafka_infra.NewProducer(cfg.GetKafkaBrokers(), appLogger.With(zap.String("component", "KafkaProducer")))
		defer func() {
			if err := kafkaProducer.Close(); err != nil {
				appLogger.Error("Error closing Kafka producer", zap.Error(err))
			} else {
				appLogger.Info("Kafka producer closed.")
			}
		}()
		notifiers = append(notifiers, notify.NewKafkaNotifier(kafkaProducer, cfg.Kafka.NotificationsTopic))
	} else {
		appLogger.Warn("Kafka disabled; ledger events stay in the outbox and transfer requests are not consumed")
	}

	dispatcher := notify.NewDispatcher(notifiers, notify.DispatcherConfig{
		Workers:   cfg.Notify.Workers,
		QueueSize: cfg.Notify.QueueSize,
		Timeout:   cfg.Notify.Timeout,
	}, appLogger.With(zap.String("component", "NotificationDispatcher")))
	dispatcher.Start(ctx)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			appLogger.Error("Error closing notification dispatcher", zap.Error(err))
		}
	}()

	bankingService := newBankingService(db, cfg, dispatcher, appLogger)
	appLogger.Info("Banking Service initialized.")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	banking_http.RegisterRoutes(router, bankingService, appLogger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		appLogger.Info("HTTP server gracefully shut down.")
		return nil
	})

	if cfg.Kafka.Enabled {
		outboxProcessor := outbox.NewProcessor(
			db,
			outbox_repo.NewOutboxRepository(cfg.Dialect()),
			kafkaProducer,
			outbox.Config{
				Topic:        cfg.Kafka.LedgerEventsTopic,
				PollInterval: cfg.Outbox.PollInterval,
				PollTimeout:  cfg.Outbox.PollTimeout,
				BatchSize:    cfg.Outbox.BatchSize,
				MaxAttempts:  cfg.Outbox.MaxAttempts,
			},
			appLogger.With(zap.String("component", "OutboxProcessor")),
		)
		g.Go(func() error {
			appLogger.Info("Starting Outbox Processor...")
			outboxProcessor.Start(gctx)
			appLogger.Info("Outbox Processor stopped.")
			return nil
		})

		transferConsumer := kafka_infra.NewConsumer(
			cfg.GetKafkaBrokers(),
			cfg.Kafka.TransferRequestsTopic,
			cfg.Kafka.ConsumerGroup,
			kafka_handler.TransferRequestedMessageHandler(bankingService, appLogger.With(zap.String("component", "TransferRequestedHandler"))),
			appLogger.With(zap.String("component", "TransferRequestsConsumer")),
		)
		g.Go(func() error {
			defer func() {
				if err := transferConsumer.Close(); err != nil {
					appLogger.Error("Error closing transfer requests consumer", zap.Error(err))
				}
			}()
			return transferConsumer.Consume(gctx)
		})
	}

	err = g.Wait()
	if err != nil {
		appLogger.Error("Banking Service stopped with error", zap.Error(err))
		return err
	}
	appLogger.Info("Application gracefully shut down.")
	return nil
}
