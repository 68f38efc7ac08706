package cmd

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keneth217/bank/internal/app/banking"
	"github.com/keneth217/bank/internal/config"
	"github.com/keneth217/bank/internal/infrastructure/database"
	"github.com/keneth217/bank/internal/lock"
	"github.com/keneth217/bank/internal/repository/accounts_repo"
	"github.com/keneth217/bank/internal/repository/inbox_repo"
	"github.com/keneth217/bank/internal/repository/ledger_repo"
	"github.com/keneth217/bank/internal/repository/outbox_repo"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "banking",
	Short: "Account balance and ledger service",
	Long: `Banking keeps account balances and an append-only ledger of every credit, debit and transfer.

Commands:
  serve      - Run the HTTP API, the ledger event publisher and the transfer request consumer
  migrate    - Apply database migrations and exit
  statement  - Print the ledger entries of an account for a date range`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML or JSON); environment variables take precedence")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}
	return logger, nil
}

// openDatabase connects to the configured store, retrying while it comes up, and applies the
// migrations.
func openDatabase(cfg *config.Config, logger *zap.Logger, maxRetries int) (*sql.DB, error) {
	dialect := cfg.Dialect()
	retryDelay := 5 * time.Second

	var (
		db  *sql.DB
		err error
	)
	for i := 0; i < maxRetries; i++ {
		if dialect == database.SQLite {
			db, err = database.NewSQLiteDB(cfg.DB.SQLitePath)
		} else {
			db, err = database.NewPostgresDB(cfg.PostgresConfig())
		}
		if err == nil {
			logger.Info("Connected to database", zap.String("driver", string(dialect)))
			break
		}
		logger.Warn("Failed to connect to database",
			zap.Int("attempt", i+1), zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_in", retryDelay), zap.Error(err))
		if i+1 < maxRetries {
			time.Sleep(retryDelay)
		}
	}
	if db == nil {
		return nil, fmt.Errorf("could not connect to database after %d attempts: %w", maxRetries, err)
	}

	logger.Info("Running database migrations...")
	if err := database.Migrate(dialect, cfg.MigrationURL()); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Database migrations completed successfully (or no new migrations).")
	return db, nil
}

func newBankingService(db *sql.DB, cfg *config.Config, hook banking.NotificationHook, logger *zap.Logger) banking.BankingService {
	dialect := cfg.Dialect()
	return banking.NewBankingService(
		db,
		lock.New(lock.WithWaitTimeout(cfg.Engine.LockWaitTimeout)),
		accounts_repo.NewAccountRepository(dialect),
		ledger_repo.NewLedgerRepository(),
		inbox_repo.NewInboxRepository(),
		outbox_repo.NewOutboxRepository(dialect),
		hook,
		engineConfig(cfg),
		logger.With(zap.String("component", "BankingService")),
	)
}

// engineConfig applies the configured retry bound. Zero disables conflict retries.
func engineConfig(cfg *config.Config) banking.Config {
	engineCfg := banking.DefaultConfig()
	if cfg.Engine.MaxConflictRetries >= 0 {
		engineCfg.MaxConflictRetries = cfg.Engine.MaxConflictRetries
	}
	return engineCfg
}
