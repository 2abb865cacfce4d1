package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"fx-confluence/internal/model"
)

// Config holds process configuration loaded from the environment.
// Engine parameters live in the YAML file named by EngineConfig.
type Config struct {
	// Infrastructure
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/bars.db"`
	MetricsAddr   string `envconfig:"METRICS_ADDR" default:":9090"`
	APIAddr       string `envconfig:"API_ADDR" default:":8080"`

	// WSOrigins limits browser websocket origins; empty admits any.
	WSOrigins []string `envconfig:"WS_ALLOWED_ORIGINS"`

	// Evaluation
	Intervals    string        `envconfig:"INTERVALS" default:"1h"` // comma-separated, e.g. "15m,1h"
	EvalPeriod   time.Duration `envconfig:"EVAL_PERIOD" default:"1m"`
	ResultTTL    time.Duration `envconfig:"RESULT_TTL" default:"1h"`
	EngineConfig string        `envconfig:"ENGINE_CONFIG"` // optional YAML path
	MarketHours  bool          `envconfig:"MARKET_HOURS_GATE" default:"true"`

	// Optional Kafka sink for results; disabled when no brokers are set.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"fx.signals"`

	// Alerts
	AlertWebhookURL  string `envconfig:"ALERT_WEBHOOK_URL"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
	Env       string `envconfig:"APP_ENV" default:"development"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env (if present) then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	if cfg.EvalPeriod <= 0 {
		return nil, fmt.Errorf("EVAL_PERIOD must be positive, got %s", cfg.EvalPeriod)
	}
	return &cfg, nil
}

// ParseIntervals parses Intervals into a de-duplicated slice, skipping
// unknown labels.
func (c *Config) ParseIntervals() []model.Interval {
	parts := strings.Split(c.Intervals, ",")
	out := make([]model.Interval, 0, len(parts))
	seen := make(map[model.Interval]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		iv, err := model.ParseInterval(p)
		if err != nil {
			log.Printf("[config] skipping invalid interval: %q", p)
			continue
		}
		if !seen[iv] {
			seen[iv] = true
			out = append(out, iv)
		}
	}
	return out
}
