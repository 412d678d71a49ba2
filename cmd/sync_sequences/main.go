package main

import (
	"log"
	"os"

	"groupbot-gateway/internal/config"
	"groupbot-gateway/internal/database"

	"github.com/spf13/cobra"
)

var tables []string

var rootCmd = &cobra.Command{
	Use:          "sync_sequences",
	Short:        "Move PostgreSQL id sequences past the highest stored id",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		database.InitGorm(cfg)

		log.Println("Syncing PostgreSQL sequences...")
		if err := database.SyncSequences(database.GormDB, tables); err != nil {
			return err
		}
		log.Println("DONE!")
		return nil
	},
}

func init() {
	rootCmd.Flags().StringSliceVar(&tables, "tables", database.TableNames(), "tables to sync")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
