package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config carries every runtime setting of the application. Values come
// from the environment, optionally seeded from a .env file.
type Config struct {
	TelegramToken string  `env:"TELEGRAM_BOT_TOKEN"`
	AdminIDs      []int64 `env:"ADMIN_USER_IDS" envSeparator:","`

	DBType      string `env:"DB_TYPE" envDefault:"sqlite3"`
	DBPath      string `env:"DB_PATH" envDefault:"data/lessonbot.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	// Largest number of progress writes the store applies in one atomic
	// call. Bigger repair sets are partitioned by the engine.
	ProgressBatchSize int `env:"PROGRESS_BATCH_SIZE" envDefault:"500"`

	SchedulerEnabled  bool `env:"ENABLE_SCHEDULER" envDefault:"true"`
	ReminderStartHour int  `env:"NOTIFICATION_START_HOUR" envDefault:"8"`
	ReminderEndHour   int  `env:"NOTIFICATION_END_HOUR" envDefault:"22"`

	LogMode string `env:"LOG_MODE" envDefault:"dev"`
}

// Load reads the .env file if present and parses the environment into a
// Config. Missing optional values fall back to their defaults.
func Load() (*Config, error) {
	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.ProgressBatchSize <= 0 {
		cfg.ProgressBatchSize = 500
	}
	if cfg.ReminderStartHour < 0 || cfg.ReminderStartHour > 23 {
		cfg.ReminderStartHour = 8
	}
	if cfg.ReminderEndHour < 0 || cfg.ReminderEndHour > 23 {
		cfg.ReminderEndHour = 22
	}

	return cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBType == DriverPostgres {
		return c.PostgresDSN
	}
	return c.DBPath
}

// IsAdmin reports whether the given Telegram user id is in the
// configured admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
