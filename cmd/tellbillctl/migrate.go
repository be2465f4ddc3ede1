package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/tellbill/internal/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Миграции схемы БД"}

	up := &cobra.Command{
		Use:   "up",
		Short: "Применить все миграции",
		RunE: func(cmd *cobra.Command, args []string) error {
			return database.Migrate(cfg, logger)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Откатить последние миграции",
		RunE: func(cmd *cobra.Command, args []string) error {
			return database.MigrateDown(cfg, steps, logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "количество откатываемых миграций")

	version := &cobra.Command{
		Use:   "version",
		Short: "Показать текущую версию схемы",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, dirty, err := database.MigrationVersion(cfg)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(map[string]any{"version": v, "dirty": dirty})
			}
			fmt.Printf("version=%d dirty=%t\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
