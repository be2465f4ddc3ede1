package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/tellbill/internal/domain/model"
)

// SubscriptionRepository — доступ к таблице subscriptions.
type SubscriptionRepository interface {
	// GetByUserID возвращает тариф подрядчика или ErrNotFound.
	GetByUserID(ctx context.Context, userID string) (*model.Subscription, error)
	// Upsert создаёт или обновляет тариф подрядчика.
	Upsert(ctx context.Context, s *model.Subscription) error
}

type subscriptionRepo struct {
	db DBTX
}

// NewSubscriptionRepository создаёт репозиторий тарифов.
func NewSubscriptionRepository(db DBTX) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) GetByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	s := &model.Subscription{}
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT user_id, plan, expires_at, updated_at FROM subscriptions WHERE user_id = $1`, userID,
	).Scan(&s.UserID, &s.Plan, &s.ExpiresAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "ошибка получения тарифа")
	}
	return s, nil
}

func (r *subscriptionRepo) Upsert(ctx context.Context, s *model.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, plan, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET plan = EXCLUDED.plan, expires_at = EXCLUDED.expires_at, updated_at = now()
		RETURNING updated_at`

	if err := conn(ctx, r.db).QueryRow(ctx, query, s.UserID, s.Plan, s.ExpiresAt).Scan(&s.UpdatedAt); err != nil {
		return fmt.Errorf("ошибка сохранения тарифа: %w", err)
	}
	return nil
}
