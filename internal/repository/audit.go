package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bigkaa/tellbill/internal/domain/model"
)

// AuditRepository — журнал аудита (только добавление).
type AuditRepository interface {
	// Append добавляет запись и заполняет ID и CreatedAt.
	Append(ctx context.Context, e *model.AuditEvent) error
	// ListByEntity возвращает историю сущности в хронологическом порядке.
	ListByEntity(ctx context.Context, entityKind, entityID string) ([]*model.AuditEvent, error)
}

type auditRepo struct {
	db DBTX
}

// NewAuditRepository создаёт репозиторий журнала аудита.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, e *model.AuditEvent) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("ошибка сериализации деталей аудита: %w", err)
	}

	query := `
		INSERT INTO audit_events (actor_type, actor_id, action, entity_kind, entity_id, project_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err = conn(ctx, r.db).QueryRow(ctx, query,
		e.ActorType, e.ActorID, e.Action, e.EntityKind, e.EntityID, e.ProjectID, payload,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи аудита: %w", err)
	}
	return nil
}

func (r *auditRepo) ListByEntity(ctx context.Context, entityKind, entityID string) ([]*model.AuditEvent, error) {
	query := `
		SELECT id, actor_type, actor_id, action, entity_kind, entity_id, project_id, details, created_at
		FROM audit_events
		WHERE entity_kind = $1 AND entity_id = $2
		ORDER BY created_at, id`

	rows, err := conn(ctx, r.db).Query(ctx, query, entityKind, entityID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала аудита: %w", err)
	}
	defer rows.Close()

	var result []*model.AuditEvent
	for rows.Next() {
		e := &model.AuditEvent{}
		var payload []byte
		if err := rows.Scan(
			&e.ID, &e.ActorType, &e.ActorID, &e.Action, &e.EntityKind, &e.EntityID,
			&e.ProjectID, &payload, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования аудита: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Details); err != nil {
			return nil, fmt.Errorf("ошибка разбора деталей аудита: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
