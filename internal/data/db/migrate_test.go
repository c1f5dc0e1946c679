package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-mastery/internal/domain"
)

func openBareSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

func TestAutoMigrateAllCreatesTablesAndTupleIndex(t *testing.T) {
	gdb := openBareSQLite(t)
	if err := AutoMigrateAll(gdb); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	for _, m := range Models() {
		if !gdb.Migrator().HasTable(m) {
			t.Fatalf("missing table for %T", m)
		}
	}
	if !gdb.Migrator().HasIndex(&types.MasteryRecord{}, masteryTupleIndex) {
		t.Fatalf("missing %s", masteryTupleIndex)
	}
	// Second run is a no-op.
	if err := AutoMigrateAll(gdb); err != nil {
		t.Fatalf("AutoMigrateAll rerun: %v", err)
	}
}
