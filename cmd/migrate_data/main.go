package main

import (
	"fmt"
	"log"
	"os"

	"groupbot-gateway/internal/config"
	"groupbot-gateway/internal/database"

	"github.com/spf13/cobra"
)

var (
	fromPath  string
	truncate  bool
	batchSize int
)

var rootCmd = &cobra.Command{
	Use:   "migrate_data",
	Short: "Copy automation data from SQLite into PostgreSQL",
	Long: `migrate_data reads workflows, keyword responders, custom commands and the
trigger log from a SQLite file and writes them, ids included, into the
PostgreSQL database configured by DB_HOST, DB_USER, DB_PASSWORD and DB_NAME.
Sequences are moved past the copied ids afterwards.`,
	SilenceUsage: true,
	RunE:         runMigrate,
}

func init() {
	rootCmd.Flags().StringVar(&fromPath, "from", "", "SQLite file to read (defaults to DB_PATH)")
	rootCmd.Flags().BoolVar(&truncate, "truncate", false, "empty destination tables before copying")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 500, "rows per insert batch")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()
	if fromPath == "" {
		fromPath = cfg.DBPath
	}
	level := database.ParseLogLevel(cfg.DBLogLevel)

	src, err := database.OpenSQLite(fromPath, level)
	if err != nil {
		return fmt.Errorf("connect to SQLite: %w", err)
	}
	log.Printf("Connected to SQLite at %s", fromPath)

	dst, err := database.OpenPostgres(cfg, level)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	if err := database.Migrate(dst); err != nil {
		return fmt.Errorf("migrate PostgreSQL schema: %w", err)
	}

	log.Println("Starting data migration...")
	copied, err := database.CopyAll(src, dst, database.CopyOptions{BatchSize: batchSize, Truncate: truncate})
	if err != nil {
		return err
	}

	if err := database.SyncSequences(dst, database.TableNames()); err != nil {
		return err
	}

	var total int64
	for _, n := range copied {
		total += n
	}
	log.Printf("Migration completed! %d rows copied", total)
	return nil
}
