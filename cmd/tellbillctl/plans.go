package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bigkaa/tellbill/internal/repository"
	"github.com/bigkaa/tellbill/internal/service"
)

func plansCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plans", Short: "Тарифы подрядчиков"}
	cmd.AddCommand(plansSetCmd(), plansShowCmd())
	return cmd
}

func newPlanService(pool *pgxpool.Pool) *service.PlanService {
	return service.NewPlanService(repository.NewSubscriptionRepository(pool), 1, time.Second, logger)
}

func plansSetCmd() *cobra.Command {
	var (
		userID  string
		planArg string
		expires string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Назначить тариф подрядчику",
		RunE: func(cmd *cobra.Command, args []string) error {
			var expiresAt *time.Time
			if expires != "" {
				t, err := time.Parse(time.RFC3339, expires)
				if err != nil {
					return fmt.Errorf("--expires: %w", err)
				}
				expiresAt = &t
			}
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				return newPlanService(pool).SetPlan(ctx, userID, planArg, expiresAt)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "id подрядчика (sub из JWT)")
	cmd.Flags().StringVar(&planArg, "plan", "", "тариф: free, starter, professional, enterprise")
	cmd.Flags().StringVar(&expires, "expires", "", "окончание тарифа в RFC 3339 (пусто — бессрочно)")
	return cmd
}

func plansShowCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Показать действующий тариф подрядчика",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				current, err := newPlanService(pool).CurrentPlan(ctx, userID)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(map[string]string{"user": userID, "plan": current})
				}
				fmt.Println(current)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "id подрядчика")
	return cmd
}
