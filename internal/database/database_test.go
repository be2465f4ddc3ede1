package database

import (
	"context"
	"testing"

	"github.com/bigkaa/tellbill/internal/testutil"
)

// TestMigrateAndConnect проверяет применение миграций, повторный запуск
// без изменений и подключение через pgxpool.
func TestMigrateAndConnect(t *testing.T) {
	cfg := testutil.StartPostgres(t)
	ctx := context.Background()
	logger := testutil.Logger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() ошибка: %v", err)
	}
	// Повторное применение — ErrNoChange не считается ошибкой
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("повторный Migrate() ошибка: %v", err)
	}

	version, dirty, err := MigrationVersion(cfg)
	if err != nil {
		t.Fatalf("MigrationVersion() ошибка: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("версия схемы = %d (dirty=%v), ожидается 1", version, dirty)
	}

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() ошибка: %v", err)
	}
	defer pool.Close()

	tables := []string{
		"projects", "activity_events", "share_tokens", "scope_proofs",
		"scope_proof_notifications", "audit_events", "subscriptions",
	}
	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
		).Scan(&exists)
		if err != nil {
			t.Fatalf("проверка таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("таблица %s не создана", table)
		}
	}

	status, msg := NewReadinessChecker(pool).CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() = %s (%s), ожидается ok", status, msg)
	}
}

// TestMigrateDown проверяет откат схемы.
func TestMigrateDown(t *testing.T) {
	cfg := testutil.StartPostgres(t)
	logger := testutil.Logger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() ошибка: %v", err)
	}
	if err := MigrateDown(cfg, 1, logger); err != nil {
		t.Fatalf("MigrateDown() ошибка: %v", err)
	}

	version, _, err := MigrationVersion(cfg)
	if err != nil {
		t.Fatalf("MigrationVersion() ошибка: %v", err)
	}
	if version != 0 {
		t.Errorf("версия после отката = %d, ожидается 0", version)
	}

	if err := MigrateDown(cfg, 0, logger); err == nil {
		t.Error("MigrateDown(0) должен вернуть ошибку")
	}
}
