package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bigkaa/tellbill/internal/mailer"
	"github.com/bigkaa/tellbill/internal/repository"
	"github.com/bigkaa/tellbill/internal/service"
)

// sweepCmd выполняет один проход housekeeping: истечение просроченных
// scope proof и напоминания клиентам.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Один проход housekeeping по scope proof",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				var mail service.Mailer = mailer.NewLogMailer(logger)
				if cfg.MailAPIURL != "" {
					mail = mailer.New(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom, logger)
				}
				notifier := service.NewNotifier(mail, cfg.MailTimeout, logger)
				defer notifier.Wait()

				links := func(token string) string {
					return service.ScopeProofLink(cfg.PublicBaseURL, token)
				}
				hk := service.NewHousekeepingService(
					repository.NewTxRunner(pool),
					repository.NewScopeProofRepository(pool),
					repository.NewNotificationRepository(pool),
					service.NewAuditWriter(repository.NewAuditRepository(pool), logger),
					notifier,
					links,
					cfg.ReminderAfter,
					0,
					logger,
				)

				res, err := hk.RunOnce(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(map[string]any{
						"expired":  res.Expired,
						"reminded": res.Reminded,
						"duration": res.Duration.String(),
					})
				}
				fmt.Printf("expired=%d reminded=%d duration=%s\n", res.Expired, res.Reminded, res.Duration)
				return nil
			})
		},
	}
}
