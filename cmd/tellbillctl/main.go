// tellbillctl — утилита обслуживания TellBill: миграции, ручной проход
// housekeeping, просмотр и отзыв клиентских ссылок, назначение тарифов.
// Конфигурация берётся из тех же переменных окружения TB_*, что у API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bigkaa/tellbill/internal/config"
	"github.com/bigkaa/tellbill/internal/database"
)

var (
	cfg     *config.Config
	logger  *slog.Logger
	jsonOut bool
	envFile string
)

var rootCmd = &cobra.Command{
	Use:           "tellbillctl",
	Short:         "Обслуживание TellBill",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger = config.SetupLogger(cfg)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "вывод в JSON")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "файл с переменными окружения")

	rootCmd.AddCommand(migrateCmd(), sweepCmd(), tokensCmd(), plansCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ошибка:", err)
		os.Exit(1)
	}
}

// withPool открывает пул соединений на время выполнения fn.
func withPool(ctx context.Context, fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
