package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/repository"
	"github.com/bigkaa/tellbill/internal/service"
)

// sharingEnv — сервис ссылок и репозитории, нужные командам tokens.
type sharingEnv struct {
	svc      *service.SharingService
	projects repository.ProjectRepository
	tokens   repository.ShareTokenRepository
}

func newSharingEnv(pool *pgxpool.Pool) *sharingEnv {
	projects := repository.NewProjectRepository(pool)
	tokens := repository.NewShareTokenRepository(pool)
	svc := service.NewSharingService(
		repository.NewTxRunner(pool),
		projects,
		tokens,
		service.NewAuditWriter(repository.NewAuditRepository(pool), logger),
		cfg.PublicBaseURL,
		cfg.ShareTokenDefaultTTL,
		cfg.ShareTokenMaxTTL,
		logger,
	)
	return &sharingEnv{svc: svc, projects: projects, tokens: tokens}
}

func tokensCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tokens", Short: "Клиентские ссылки проектов"}
	cmd.AddCommand(tokensListCmd(), tokensRevokeCmd())
	return cmd
}

func tokensListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Ссылки проекта",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return errors.New("--project обязателен")
			}
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				env := newSharingEnv(pool)
				project, err := env.projects.GetByID(ctx, projectID)
				if err != nil {
					return fmt.Errorf("проект %s: %w", projectID, err)
				}
				tokens, err := env.svc.ListTokens(ctx, project.OwnerID, project.ID)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(tokenRows(env.svc, tokens))
				}
				renderTokens(env.svc, tokens)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "id проекта")
	return cmd
}

func tokensRevokeCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Отозвать ссылку от имени владельца проекта",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token обязателен")
			}
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				env := newSharingEnv(pool)
				current, err := env.tokens.GetByToken(ctx, token)
				if err != nil {
					return fmt.Errorf("ссылка: %w", err)
				}
				project, err := env.projects.GetByID(ctx, current.ProjectID)
				if err != nil {
					return fmt.Errorf("проект %s: %w", current.ProjectID, err)
				}
				revoked, err := env.svc.Revoke(ctx, project.OwnerID, token)
				if err != nil {
					return err
				}
				fmt.Printf("revoked_at=%s access_count=%d\n",
					revoked.RevokedAt.UTC().Format(time.RFC3339), revoked.AccessCount)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "значение токена")
	return cmd
}

type tokenRow struct {
	Token       string    `json:"token"`
	State       string    `json:"state"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	AccessCount int64     `json:"accessCount"`
	Link        string    `json:"link"`
}

func tokenRows(svc *service.SharingService, tokens []*model.ShareToken) []tokenRow {
	rows := make([]tokenRow, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, tokenRow{
			Token:       t.Token,
			State:       string(svc.TokenState(t)),
			IssuedAt:    t.IssuedAt.UTC(),
			ExpiresAt:   t.ExpiresAt.UTC(),
			AccessCount: t.AccessCount,
			Link:        svc.Link(t.Token),
		})
	}
	return rows
}

func renderTokens(svc *service.SharingService, tokens []*model.ShareToken) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Token", "State", "Issued", "Expires", "Access"})
	for _, r := range tokenRows(svc, tokens) {
		tw.AppendRow(table.Row{
			r.Token,
			r.State,
			r.IssuedAt.Format(time.RFC3339),
			r.ExpiresAt.Format(time.RFC3339),
			r.AccessCount,
		})
	}
	tw.Render()
}
