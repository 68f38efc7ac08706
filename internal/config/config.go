package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/keneth217/bank/internal/infrastructure/database"
)

type Config struct {
	DB struct {
		Driver     string `mapstructure:"driver"`
		Host       string `mapstructure:"host"`
		Port       int    `mapstructure:"port"`
		User       string `mapstructure:"user"`
		Password   string `mapstructure:"password"`
		Name       string `mapstructure:"name"`
		SSLMode    string `mapstructure:"sslmode"`
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"db"`

	HTTPPort int `mapstructure:"http_port"`

	Kafka struct {
		Enabled               bool   `mapstructure:"enabled"`
		BrokerURL             string `mapstructure:"broker_url"`
		LedgerEventsTopic     string `mapstructure:"ledger_events_topic"`
		NotificationsTopic    string `mapstructure:"notifications_topic"`
		TransferRequestsTopic string `mapstructure:"transfer_requests_topic"`
		ConsumerGroup         string `mapstructure:"consumer_group"`
	} `mapstructure:"kafka"`

	Outbox struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
		PollTimeout  time.Duration `mapstructure:"poll_timeout"`
		BatchSize    int           `mapstructure:"batch_size"`
		MaxAttempts  int           `mapstructure:"max_attempts"`
	} `mapstructure:"outbox"`

	Notify struct {
		Workers   int           `mapstructure:"workers"`
		QueueSize int           `mapstructure:"queue_size"`
		Timeout   time.Duration `mapstructure:"timeout"`
	} `mapstructure:"notify"`

	Engine struct {
		MaxConflictRetries int           `mapstructure:"max_conflict_retries"`
		LockWaitTimeout    time.Duration `mapstructure:"lock_wait_timeout"`
	} `mapstructure:"engine"`
}

// envBindings maps configuration keys to the environment variables that override them.
var envBindings = map[string]string{
	"db.driver":                     "BANKING_DB_DRIVER",
	"db.host":                       "BANKING_DB_HOST",
	"db.port":                       "BANKING_DB_PORT",
	"db.user":                       "BANKING_DB_USER",
	"db.password":                   "BANKING_DB_PASSWORD",
	"db.name":                       "BANKING_DB_NAME",
	"db.sslmode":                    "BANKING_DB_SSLMODE",
	"db.sqlite_path":                "BANKING_SQLITE_PATH",
	"http_port":                     "BANKING_HTTP_PORT",
	"kafka.enabled":                 "KAFKA_ENABLED",
	"kafka.broker_url":              "KAFKA_BROKER_URL",
	"kafka.ledger_events_topic":     "KAFKA_LEDGER_EVENTS_TOPIC",
	"kafka.notifications_topic":     "KAFKA_NOTIFICATIONS_TOPIC",
	"kafka.transfer_requests_topic": "KAFKA_TRANSFER_REQUESTS_TOPIC",
	"kafka.consumer_group":          "KAFKA_CONSUMER_GROUP",
	"outbox.poll_interval":          "OUTBOX_POLL_INTERVAL",
	"outbox.poll_timeout":           "OUTBOX_POLL_TIMEOUT",
	"outbox.batch_size":             "OUTBOX_BATCH_SIZE",
	"outbox.max_attempts":           "OUTBOX_MAX_ATTEMPTS",
	"notify.workers":                "NOTIFY_WORKERS",
	"notify.queue_size":             "NOTIFY_QUEUE_SIZE",
	"notify.timeout":                "NOTIFY_TIMEOUT",
	"engine.max_conflict_retries":   "ENGINE_MAX_CONFLICT_RETRIES",
	"engine.lock_wait_timeout":      "ENGINE_LOCK_WAIT_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", string(database.Postgres))
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "user")
	v.SetDefault("db.password", "password")
	v.SetDefault("db.name", "banking_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.sqlite_path", "banking.db")

	v.SetDefault("http_port", 8082)

	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.broker_url", "localhost:9092")
	v.SetDefault("kafka.ledger_events_topic", "ledger_events")
	v.SetDefault("kafka.notifications_topic", "account_notifications")
	v.SetDefault("kafka.transfer_requests_topic", "transfer_requests")
	v.SetDefault("kafka.consumer_group", "banking-service-group")

	v.SetDefault("outbox.poll_interval", time.Second)
	v.SetDefault("outbox.poll_timeout", 500*time.Millisecond)
	v.SetDefault("outbox.batch_size", 10)
	v.SetDefault("outbox.max_attempts", 5)

	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.queue_size", 1024)
	v.SetDefault("notify.timeout", 5*time.Second)

	v.SetDefault("engine.max_conflict_retries", 5)
	v.SetDefault("engine.lock_wait_timeout", 10*time.Second)
}

// LoadConfig reads defaults, then configFile when it is not empty, then the environment.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := database.ParseDialect(c.DB.Driver); err != nil {
		errs = append(errs, err)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid http port %d", c.HTTPPort))
	}
	if c.Kafka.Enabled && strings.TrimSpace(c.Kafka.BrokerURL) == "" {
		errs = append(errs, errors.New("kafka is enabled but no broker url is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) Dialect() database.Dialect {
	d, _ := database.ParseDialect(c.DB.Driver)
	return d
}

func (c *Config) PostgresConfig() database.DBConfig {
	return database.DBConfig{
		Host:     c.DB.Host,
		Port:     c.DB.Port,
		User:     c.DB.User,
		Password: c.DB.Password,
		DBName:   c.DB.Name,
		SSLMode:  c.DB.SSLMode,
	}
}

// MigrationURL returns the golang-migrate database URL for the configured driver.
func (c *Config) MigrationURL() string {
	if c.Dialect() == database.SQLite {
		return database.SQLiteMigrationURL(c.DB.SQLitePath)
	}
	return c.PostgresConfig().MigrationURL()
}

func (c *Config) GetKafkaBrokers() []string {
	brokers := strings.Split(c.Kafka.BrokerURL, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}
