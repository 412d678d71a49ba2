package database

import (
	"path/filepath"
	"testing"
	"time"

	"groupbot-gateway/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMigrated(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), name), logger.Silent)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestCopyAll(t *testing.T) {
	src := openMigrated(t, "src.db")
	dst := openMigrated(t, "dst.db")

	ran := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	workflows := []models.Workflow{
		{GroupID: "-1", Name: "welcome", TriggerType: models.TriggerNewMember, IsEnabled: true, RunCount: 3, LastRunAt: &ran,
			Actions: []models.WorkflowAction{models.NewAction(models.SendMessageParams{Text: "hi {user}"}, 0)}},
		{GroupID: "-1", Name: "deploy", TriggerType: models.TriggerEvent, TriggerConfig: models.TriggerConfig{EventName: "deploy"}},
		{GroupID: "-2", Name: "other", TriggerType: models.TriggerNewMember},
	}
	if err := src.Create(&workflows).Error; err != nil {
		t.Fatalf("seed workflows: %v", err)
	}
	if err := src.Create(&models.KeywordResponder{GroupID: "-1", Keywords: []string{"price"}, MatchType: models.MatchContains, Responses: []string{"pinned"}, IsActive: true}).Error; err != nil {
		t.Fatalf("seed responder: %v", err)
	}
	if err := src.Create(&models.TriggerLogEntry{GroupID: "-1", RunID: "r1", TriggerType: models.TriggerNewMember, DefinitionKind: models.KindWorkflow, DefinitionID: 1, Success: true, CreatedAt: ran}).Error; err != nil {
		t.Fatalf("seed log: %v", err)
	}

	// Leftover rows are removed by Truncate.
	if err := dst.Create(&models.CustomCommand{GroupID: "-9", Command: "stale", ResponseType: "text", ResponseContent: "x"}).Error; err != nil {
		t.Fatalf("seed dst: %v", err)
	}

	copied, err := CopyAll(src, dst, CopyOptions{BatchSize: 2, Truncate: true})
	if err != nil {
		t.Fatalf("CopyAll() error: %v", err)
	}
	want := map[string]int64{"workflows": 3, "keyword_responders": 1, "custom_commands": 0, "trigger_logs": 1}
	for table, n := range want {
		if copied[table] != n {
			t.Errorf("copied[%s] = %d, want %d", table, copied[table], n)
		}
	}

	var got []models.Workflow
	if err := dst.Order("id").Find(&got).Error; err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("dst has %d workflows, want 3", len(got))
	}
	for i := range got {
		if got[i].ID != workflows[i].ID || got[i].Name != workflows[i].Name {
			t.Errorf("workflow %d = (%d, %q), want (%d, %q)", i, got[i].ID, got[i].Name, workflows[i].ID, workflows[i].Name)
		}
	}
	if got[0].RunCount != 3 || got[0].LastRunAt == nil || !got[0].LastRunAt.Equal(ran) {
		t.Errorf("run stats not preserved: %+v", got[0])
	}
	if p, ok := got[0].Actions[0].Params.(models.SendMessageParams); !ok || p.Text != "hi {user}" {
		t.Errorf("actions not preserved: %#v", got[0].Actions)
	}
	if got[1].TriggerConfig.EventName != "deploy" {
		t.Errorf("trigger config not preserved: %+v", got[1].TriggerConfig)
	}

	var stale int64
	dst.Model(&models.CustomCommand{}).Count(&stale)
	if stale != 0 {
		t.Errorf("dst still has %d custom commands after truncate", stale)
	}
}
