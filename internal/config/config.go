package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/economato/go-order-desk/internal/orders"
)

// Config is read from the environment, with an optional .env file in the
// working directory.
type Config struct {
	HTTPAddr       string        `mapstructure:"HTTP_ADDR"`
	BackendURL     string        `mapstructure:"BACKEND_URL"`
	BackendTimeout time.Duration `mapstructure:"BACKEND_TIMEOUT"`

	PostgresDSN string `mapstructure:"POSTGRES_DSN"`
	// JournalDSN picks the saga journal: "memory", a sqlite path, or a
	// postgres URL. Unset, it is PostgresDSN when that is set and memory
	// otherwise.
	JournalDSN string `mapstructure:"JOURNAL_DSN"`
	RedisAddr  string `mapstructure:"REDIS_ADDR"`

	KafkaBrokersCSV string   `mapstructure:"KAFKA_BROKERS"`
	KafkaBrokers    []string `mapstructure:"-"`
	KafkaTopic      string   `mapstructure:"KAFKA_TOPIC"`
	KafkaGroup      string   `mapstructure:"KAFKA_GROUP"`

	ServiceName string `mapstructure:"SERVICE_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	Env         string `mapstructure:"APP_ENV"`

	// CompletedStatus is the name written to the backend for a completed
	// order.
	CompletedStatus  string        `mapstructure:"ORDERS_COMPLETED_STATUS"`
	ReceptionLockTTL time.Duration `mapstructure:"RECEPTION_LOCK_TTL"`
	BoardCacheTTL    time.Duration `mapstructure:"BOARD_CACHE_TTL"`
	SessionTTL       time.Duration `mapstructure:"SESSION_TTL"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("BACKEND_URL", "http://localhost:8080")
	v.SetDefault("BACKEND_TIMEOUT", 15*time.Second)
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("JOURNAL_DSN", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", orders.TopicDeskEvents)
	v.SetDefault("KAFKA_GROUP", "order-desk")
	v.SetDefault("SERVICE_NAME", "order-desk")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("ORDERS_COMPLETED_STATUS", string(orders.StatusConfirmed))
	v.SetDefault("RECEPTION_LOCK_TTL", 2*time.Minute)
	v.SetDefault("BOARD_CACHE_TTL", 30*time.Second)
	v.SetDefault("SESSION_TTL", 7*24*time.Hour)

	// a missing .env is fine
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.KafkaBrokers = splitCSV(cfg.KafkaBrokersCSV)
	if strings.TrimSpace(cfg.JournalDSN) == "" {
		cfg.JournalDSN = "memory"
		if cfg.PostgresDSN != "" {
			cfg.JournalDSN = cfg.PostgresDSN
		}
	}
	return cfg, nil
}

// Development reports whether logs should be human readable.
func (c Config) Development() bool { return c.Env == "" || c.Env == "development" }

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
