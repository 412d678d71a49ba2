package database

import (
	"fmt"
	"log"
	"strings"

	"groupbot-gateway/internal/config"
	"groupbot-gateway/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var GormDB *gorm.DB

// InitGorm opens the configured database, migrates it and stores the handle
// in GormDB. Any failure is fatal.
func InitGorm(cfg *config.Config) {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", cfg.DBDriver, err)
	}
	log.Printf("Connected to %s successfully", cfg.DBDriver)

	if err := Migrate(db); err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}
	log.Println("Database migration completed")

	GormDB = db
}

// Open connects to SQLite or PostgreSQL depending on cfg.DBDriver.
func Open(cfg *config.Config) (*gorm.DB, error) {
	level := ParseLogLevel(cfg.DBLogLevel)
	switch cfg.DBDriver {
	case "", "sqlite", "sqlite3":
		return OpenSQLite(cfg.DBPath, level)
	case "postgres", "postgresql":
		return OpenPostgres(cfg, level)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// OpenSQLite opens the database file at path. SQLite allows a single
// writer, so the pool is limited to one connection.
func OpenSQLite(path string, level logger.LogLevel) (*gorm.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func OpenPostgres(cfg *config.Config, level logger.LogLevel) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)

	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
}

// Migrate creates or updates every automation table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// TableNames lists the tables of models.All in migration order.
func TableNames() []string {
	var names []string
	for _, m := range models.All() {
		if t, ok := m.(schema.Tabler); ok {
			names = append(names, t.TableName())
		}
	}
	return names
}

// ParseLogLevel maps DB_LOG_LEVEL to a GORM log level, defaulting to warn.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// SyncSequences moves each table's id sequence past its current max id.
// PostgreSQL only; rows copied with explicit ids leave the sequence behind.
// Only the tables of TableNames are accepted.
func SyncSequences(db *gorm.DB, tables []string) error {
	known := make(map[string]bool)
	for _, name := range TableNames() {
		known[name] = true
	}
	for _, table := range tables {
		if !known[table] {
			return fmt.Errorf("sync sequence: unknown table %q", table)
		}
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, table := range tables {
		err := db.Exec("SELECT setval(pg_get_serial_sequence(?, 'id'), coalesce(max(id), 0) + 1, false) FROM ?",
			table, clause.Table{Name: table}).Error
		if err != nil {
			return fmt.Errorf("sync sequence for %s: %w", table, err)
		}
		log.Printf("Synced sequence for %s", table)
	}
	return nil
}
