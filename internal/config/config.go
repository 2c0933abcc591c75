package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override: CASINO_DATABASE_DSN
// overrides database.dsn.
const EnvPrefix = "CASINO"

// DefaultPath is read when CASINO_CONFIG is unset.
const DefaultPath = "config/config.yaml"

// Config is the global configuration tree.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Games    GamesConfig    `mapstructure:"games"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Mode     string `mapstructure:"mode"`
	WorkerID int64  `mapstructure:"worker_id"`
}

// DatabaseConfig selects the gorm dialect. DSN wins over the discrete fields
// when both are present.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled       bool             `mapstructure:"enabled"`
	Brokers       []string         `mapstructure:"brokers"`
	Topic         KafkaTopicConfig `mapstructure:"topic"`
	MaxRetryCount int              `mapstructure:"max_retry_count"`
}

type KafkaTopicConfig struct {
	BetSettled        string `mapstructure:"bet_settled"`
	WalletTransaction string `mapstructure:"wallet_transaction"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Lock modes for per-user settlement serialization.
const (
	LockModeLocal = "local"
	LockModeRedis = "redis"
	LockModeNone  = "none"
)

type LedgerConfig struct {
	MaxSettleAttempts int           `mapstructure:"max_settle_attempts"`
	LockMode          string        `mapstructure:"lock_mode"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	LockWait          time.Duration `mapstructure:"lock_wait"`
}

type GamesConfig struct {
	Blackjack BlackjackConfig `mapstructure:"blackjack"`
	Slots     SlotsConfig     `mapstructure:"slots"`
}

type BlackjackConfig struct {
	Decks   int `mapstructure:"decks"`
	StandOn int `mapstructure:"stand_on"`
}

type SlotsConfig struct {
	Reels int `mapstructure:"reels"`
}

type JobsConfig struct {
	OutboxInterval        time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize       int           `mapstructure:"outbox_batch_size"`
	PendingTxTTL          time.Duration `mapstructure:"pending_transaction_ttl"`
	PendingExpiryInterval time.Duration `mapstructure:"pending_expiry_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.worker_id", 1)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:casino.db?cache=shared")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_sql", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.bet_settled", "casino.bet.settled")
	v.SetDefault("kafka.topic.wallet_transaction", "casino.wallet.transaction")
	v.SetDefault("kafka.max_retry_count", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("ledger.max_settle_attempts", 3)
	v.SetDefault("ledger.lock_mode", LockModeLocal)
	v.SetDefault("ledger.lock_ttl", 10*time.Second)
	v.SetDefault("ledger.lock_wait", 3*time.Second)

	v.SetDefault("games.blackjack.decks", 6)
	v.SetDefault("games.blackjack.stand_on", 17)
	v.SetDefault("games.slots.reels", 3)

	v.SetDefault("jobs.outbox_interval", 500*time.Millisecond)
	v.SetDefault("jobs.outbox_batch_size", 100)
	v.SetDefault("jobs.pending_transaction_ttl", 30*time.Minute)
	v.SetDefault("jobs.pending_expiry_interval", time.Minute)
}

// Load reads .env (if any), then the YAML file at path, then CASINO_*
// environment overrides. A missing file is not an error: defaults alone
// give a runnable single-node setup.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the ledger cannot run with. Game rule ranges are
// checked by the engine constructors.
func (c *Config) Validate() error {
	if c.Ledger.MaxSettleAttempts < 1 {
		return fmt.Errorf("ledger.max_settle_attempts must be >= 1, got %d", c.Ledger.MaxSettleAttempts)
	}
	switch c.Ledger.LockMode {
	case LockModeLocal, LockModeNone:
	case LockModeRedis:
		if !c.Redis.Enabled {
			return errors.New("ledger.lock_mode=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown ledger.lock_mode %q", c.Ledger.LockMode)
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}
