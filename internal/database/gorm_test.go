package database

import (
	"path/filepath"
	"testing"

	"groupbot-gateway/internal/config"
	"groupbot-gateway/internal/models"

	"gorm.io/gorm/logger"
)

func TestOpen_SQLiteMigrates(t *testing.T) {
	cfg := &config.Config{
		DBDriver:   "sqlite",
		DBPath:     filepath.Join(t.TempDir(), "test.db"),
		DBLogLevel: "silent",
	}

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	for _, m := range models.All() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T was not created", m)
		}
	}

	if err := SyncSequences(db, []string{"workflows"}); err != nil {
		t.Errorf("SyncSequences() on sqlite should be a no-op, got %v", err)
	}
}

func TestSyncSequences_RejectsUnknownTables(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), logger.Silent)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}

	for _, tables := range [][]string{
		{"users"},
		{"workflows", "workflows; DROP TABLE trigger_logs"},
		{"workflows'"},
	} {
		if err := SyncSequences(db, tables); err == nil {
			t.Errorf("SyncSequences(%q) should fail", tables)
		}
	}
	if err := SyncSequences(db, TableNames()); err != nil {
		t.Errorf("SyncSequences(TableNames()) error: %v", err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(&config.Config{DBDriver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"silent": logger.Silent,
		"ERROR":  logger.Error,
		"info":   logger.Info,
		"warn":   logger.Warn,
		"":       logger.Warn,
		"bogus":  logger.Warn,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTableNames(t *testing.T) {
	got := TableNames()
	want := []string{"workflows", "keyword_responders", "custom_commands", "trigger_logs"}
	if len(got) != len(want) {
		t.Fatalf("TableNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TableNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
