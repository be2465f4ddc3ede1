// plans.go — проверка тарифа подрядчика (verifyPlanAccess).
//
// Тариф читается из таблицы subscriptions и кэшируется в expirable LRU
// на TB_PLAN_CACHE_TTL. Отсутствующая или истёкшая подписка — тариф free.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/domain/plan"
	"github.com/bigkaa/tellbill/internal/repository"
)

// PlanService — тарифы подрядчиков с кэшированием.
type PlanService struct {
	subs   repository.SubscriptionRepository
	cache  *expirable.LRU[string, string]
	now    Clock
	logger *slog.Logger
}

// NewPlanService создаёт сервис тарифов с LRU-кэшем размера size и временем жизни ttl.
func NewPlanService(subs repository.SubscriptionRepository, size int, ttl time.Duration, logger *slog.Logger) *PlanService {
	return &PlanService{
		subs:   subs,
		cache:  expirable.NewLRU[string, string](size, nil, ttl),
		now:    systemClock,
		logger: logger.With(slog.String("component", "plans")),
	}
}

// SetClock подменяет источник времени.
func (s *PlanService) SetClock(now Clock) {
	s.now = now
}

// CurrentPlan возвращает действующий тариф подрядчика.
func (s *PlanService) CurrentPlan(ctx context.Context, userID string) (string, error) {
	if p, ok := s.cache.Get(userID); ok {
		planCacheRequestsTotal.WithLabelValues("hit").Inc()
		return p, nil
	}
	planCacheRequestsTotal.WithLabelValues("miss").Inc()

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("получение тарифа: %w", err)
	}

	current := plan.Free
	if sub != nil {
		current = plan.Normalize(sub.Plan)
		if sub.ExpiresAt != nil && !s.now().Before(*sub.ExpiresAt) {
			s.logger.Debug("Подписка истекла, применяется free",
				slog.String("user_id", userID),
				slog.String("plan", sub.Plan),
			)
			current = plan.Free
		}
	}

	s.cache.Add(userID, current)
	return current, nil
}

// Verify проверяет, что тариф подрядчика входит в allowed.
// При отказе возвращает ErrUpgradeRequired.
func (s *PlanService) Verify(ctx context.Context, userID string, allowed []string) error {
	current, err := s.CurrentPlan(ctx, userID)
	if err != nil {
		return err
	}
	if !plan.Allows(current, allowed) {
		return fmt.Errorf("%w: тариф %s", ErrUpgradeRequired, current)
	}
	return nil
}

// SetPlan назначает подрядчику тариф и сбрасывает его запись в кэше.
// expiresAt == nil — бессрочно.
func (s *PlanService) SetPlan(ctx context.Context, userID, planName string, expiresAt *time.Time) error {
	if userID == "" {
		return fmt.Errorf("%w: user id обязателен", ErrValidation)
	}
	if !plan.IsValid(planName) {
		return fmt.Errorf("%w: неизвестный тариф %q", ErrValidation, planName)
	}
	if err := s.subs.Upsert(ctx, &model.Subscription{UserID: userID, Plan: planName, ExpiresAt: expiresAt}); err != nil {
		return fmt.Errorf("сохранение тарифа: %w", err)
	}
	s.cache.Remove(userID)
	s.logger.Info("Тариф назначен",
		slog.String("user_id", userID),
		slog.String("plan", planName),
	)
	return nil
}
