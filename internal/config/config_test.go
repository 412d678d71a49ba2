package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "DB_PATH", "SCHEDULE_TIMEZONE", "HTTP_ACTION_TIMEOUT", "LOG_LIMIT_MAX"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	// viper treats empty env vars as unset.
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.DBPath != "./automation.db" {
		t.Errorf("DBPath = %q, want ./automation.db", cfg.DBPath)
	}
	if cfg.HTTPActionTimeout != 10*time.Second {
		t.Errorf("HTTPActionTimeout = %v, want 10s", cfg.HTTPActionTimeout)
	}
	if cfg.LogLimitMax != 500 {
		t.Errorf("LogLimitMax = %d, want 500", cfg.LogLimitMax)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
	if cfg.TelegramPollTimeout != 10*time.Second {
		t.Errorf("TelegramPollTimeout = %v, want 10s", cfg.TelegramPollTimeout)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, want %q", cfg.DBSSLMode, "disable")
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("HTTP_ACTION_TIMEOUT", "3s")
	t.Setenv("LOG_LIMIT_MAX", "42")
	t.Setenv("SCHEDULE_TIMEZONE", "Europe/Berlin")
	t.Setenv("BOT_USERNAME", "GroupBot")

	cfg := LoadConfig()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q, want postgres", cfg.DBDriver)
	}
	if cfg.HTTPActionTimeout != 3*time.Second {
		t.Errorf("HTTPActionTimeout = %v, want 3s", cfg.HTTPActionTimeout)
	}
	if cfg.LogLimitMax != 42 {
		t.Errorf("LogLimitMax = %d, want 42", cfg.LogLimitMax)
	}
	if got := cfg.Location().String(); got != "Europe/Berlin" {
		t.Errorf("Location() = %q, want Europe/Berlin", got)
	}
	if cfg.BotUsername != "GroupBot" {
		t.Errorf("BotUsername = %q, want GroupBot", cfg.BotUsername)
	}
}

func TestLocation_InvalidFallsBackToUTC(t *testing.T) {
	cfg := &Config{ScheduleTimezone: "Not/AZone"}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
}
