// Пакет testutil — общие помощники тестов: PostgreSQL в testcontainers
// и in-memory реализации репозиториев.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/tellbill/internal/config"
)

// Logger возвращает логгер для тестов, выводящий только ошибки.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// StartPostgres запускает PostgreSQL в Docker-контейнере и возвращает
// конфигурацию для подключения к нему. Тест пропускается, если
// переменная TEST_INTEGRATION не установлена.
func StartPostgres(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("tellbill_test"),
		postgres.WithUsername("tellbill"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("TB_DB_HOST", host)
	t.Setenv("TB_DB_PORT", port.Port())
	t.Setenv("TB_DB_NAME", "tellbill_test")
	t.Setenv("TB_DB_USER", "tellbill")
	t.Setenv("TB_DB_PASSWORD", "test-password")
	t.Setenv("TB_DB_SSL_MODE", "disable")
	t.Setenv("TB_PUBLIC_BASE_URL", "https://portal.tellbill.test")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	return cfg
}
