package database

import (
	"fmt"
	"log"
	"reflect"

	"groupbot-gateway/internal/models"

	"gorm.io/gorm"
)

// CopyOptions controls CopyAll.
type CopyOptions struct {
	BatchSize int
	// Truncate empties each destination table before copying into it.
	Truncate bool
}

// CopyAll copies every automation table from src to dst, keeping ids, one
// transaction per table. It returns the number of rows copied per table.
func CopyAll(src, dst *gorm.DB, opts CopyOptions) (map[string]int64, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	copied := make(map[string]int64)
	tables := TableNames()
	for i, model := range models.All() {
		table := tables[i]
		n, err := copyTable(src, dst, model, table, opts)
		if err != nil {
			return copied, fmt.Errorf("copy %s: %w", table, err)
		}
		copied[table] = n
		log.Printf("Copied %d rows into %s", n, table)
	}
	return copied, nil
}

func copyTable(src, dst *gorm.DB, model interface{}, table string, opts CopyOptions) (int64, error) {
	rows := reflect.New(reflect.SliceOf(reflect.TypeOf(model).Elem())).Interface()

	var n int64
	err := dst.Transaction(func(tx *gorm.DB) error {
		if opts.Truncate {
			stmt := "DELETE FROM " + table
			if tx.Dialector.Name() == "postgres" {
				stmt = "TRUNCATE TABLE " + table + " RESTART IDENTITY"
			}
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}

		res := src.FindInBatches(rows, opts.BatchSize, func(batch *gorm.DB, _ int) error {
			if err := tx.Create(rows).Error; err != nil {
				return err
			}
			n += batch.RowsAffected
			return nil
		})
		return res.Error
	})
	return n, err
}
