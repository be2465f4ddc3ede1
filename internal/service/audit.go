// audit.go — запись журнала аудита.
//
// Записи аудита хранятся в таблице audit_events и пишутся в той же
// транзакции, что и изменение состояния. Дополнительно каждая запись
// дублируется в лог уровня info.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/repository"
)

// AuditWriter — запись событий безопасности (кто, что, когда, над чем).
type AuditWriter struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

// NewAuditWriter создаёт writer журнала аудита.
func NewAuditWriter(repo repository.AuditRepository, logger *slog.Logger) *AuditWriter {
	return &AuditWriter{
		repo:   repo,
		logger: logger.With(slog.String("component", "audit")),
	}
}

// Record сохраняет запись аудита. Вызывается внутри транзакции изменения.
func (a *AuditWriter) Record(ctx context.Context, e *model.AuditEvent) error {
	if err := a.repo.Append(ctx, e); err != nil {
		return fmt.Errorf("запись аудита %s: %w", e.Action, err)
	}

	attrs := []any{
		slog.String("action", e.Action),
		slog.String("actor_type", string(e.ActorType)),
		slog.String("actor_id", e.ActorID),
		slog.String("entity_kind", e.EntityKind),
		slog.String("entity_id", e.EntityID),
	}
	if e.ProjectID != nil {
		attrs = append(attrs, slog.String("project_id", *e.ProjectID))
	}
	a.logger.InfoContext(ctx, "Аудит", attrs...)
	return nil
}

// History возвращает историю сущности.
func (a *AuditWriter) History(ctx context.Context, entityKind, entityID string) ([]*model.AuditEvent, error) {
	events, err := a.repo.ListByEntity(ctx, entityKind, entityID)
	if err != nil {
		return nil, fmt.Errorf("получение истории %s/%s: %w", entityKind, entityID, err)
	}
	return events, nil
}
