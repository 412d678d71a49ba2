package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port string

	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBLogLevel string

	TelegramToken       string
	TelegramPollTimeout time.Duration
	BotUsername         string

	WebhookSecret     string
	ScheduleTimezone  string
	HTTPActionTimeout time.Duration
	LogLimitMax       int
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Port:                v.GetString("PORT"),
		DBDriver:            v.GetString("DB_DRIVER"),
		DBPath:              v.GetString("DB_PATH"),
		DBHost:              v.GetString("DB_HOST"),
		DBPort:              v.GetString("DB_PORT"),
		DBUser:              v.GetString("DB_USER"),
		DBPassword:          v.GetString("DB_PASSWORD"),
		DBName:              v.GetString("DB_NAME"),
		DBSSLMode:           v.GetString("DB_SSLMODE"),
		DBLogLevel:          v.GetString("DB_LOG_LEVEL"),
		TelegramToken:       v.GetString("TELEGRAM_TOKEN"),
		TelegramPollTimeout: v.GetDuration("TELEGRAM_POLL_TIMEOUT"),
		BotUsername:         v.GetString("BOT_USERNAME"),
		WebhookSecret:       v.GetString("WEBHOOK_SECRET"),
		ScheduleTimezone:    v.GetString("SCHEDULE_TIMEZONE"),
		HTTPActionTimeout:   v.GetDuration("HTTP_ACTION_TIMEOUT"),
		LogLimitMax:         v.GetInt("LOG_LIMIT_MAX"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "./automation.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "automation")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_LOG_LEVEL", "warn")
	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("TELEGRAM_POLL_TIMEOUT", "10s")
	v.SetDefault("BOT_USERNAME", "")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("SCHEDULE_TIMEZONE", "UTC")
	v.SetDefault("HTTP_ACTION_TIMEOUT", "10s")
	v.SetDefault("LOG_LIMIT_MAX", 500)
}

// Location resolves ScheduleTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		log.Printf("Warning: invalid SCHEDULE_TIMEZONE %q, using UTC: %v", c.ScheduleTimezone, err)
		return time.UTC
	}
	return loc
}
