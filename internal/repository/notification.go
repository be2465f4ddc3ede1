package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/tellbill/internal/domain/model"
)

// NotificationRepository — журнал писем по scope proof (только добавление).
type NotificationRepository interface {
	// Append добавляет запись об отправленном письме.
	Append(ctx context.Context, n *model.ScopeProofNotification) error
	// ListByScopeProof возвращает письма по scope proof в порядке отправки.
	ListByScopeProof(ctx context.Context, scopeProofID string) ([]*model.ScopeProofNotification, error)
}

type notificationRepo struct {
	db DBTX
}

// NewNotificationRepository создаёт репозиторий журнала уведомлений.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Append(ctx context.Context, n *model.ScopeProofNotification) error {
	query := `
		INSERT INTO scope_proof_notifications (id, scope_proof_id, type, channel, recipient, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := conn(ctx, r.db).Exec(ctx, query,
		n.ID, n.ScopeProofID, n.Type, n.Channel, n.Recipient, n.SentAt,
	); err != nil {
		return fmt.Errorf("ошибка записи уведомления: %w", err)
	}
	return nil
}

func (r *notificationRepo) ListByScopeProof(ctx context.Context, scopeProofID string) ([]*model.ScopeProofNotification, error) {
	query := `
		SELECT id, scope_proof_id, type, channel, recipient, sent_at
		FROM scope_proof_notifications
		WHERE scope_proof_id = $1
		ORDER BY sent_at, id`

	rows, err := conn(ctx, r.db).Query(ctx, query, scopeProofID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала уведомлений: %w", err)
	}
	defer rows.Close()

	var result []*model.ScopeProofNotification
	for rows.Next() {
		n := &model.ScopeProofNotification{}
		if err := rows.Scan(&n.ID, &n.ScopeProofID, &n.Type, &n.Channel, &n.Recipient, &n.SentAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования уведомления: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
