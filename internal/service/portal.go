// portal.go — клиентский портал по ссылке (без аутентификации).
//
// Клиент видит ровно один проект: тот, к которому привязана ссылка.
// Порядок проверок ссылки: неизвестна → отозвана → истекла.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/tellbill/internal/domain/approval"
	"github.com/bigkaa/tellbill/internal/domain/billing"
	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/repository"
)

// PortalView — данные проекта, отдаваемые клиенту.
type PortalView struct {
	Project *model.Project
	// Activities — только видимые клиенту события, новые первыми
	Activities  []*model.ActivityEvent
	AccessCount int64
}

// PortalService — Client Portal Resolver, сводка по счёту и решения клиента.
type PortalService struct {
	tx         repository.Transactor
	projects   repository.ProjectRepository
	activities repository.ActivityRepository
	tokens     repository.ShareTokenRepository
	audit      *AuditWriter
	now        Clock
	logger     *slog.Logger
}

// NewPortalService создаёт сервис клиентского портала.
func NewPortalService(
	tx repository.Transactor,
	projects repository.ProjectRepository,
	activities repository.ActivityRepository,
	tokens repository.ShareTokenRepository,
	audit *AuditWriter,
	logger *slog.Logger,
) *PortalService {
	return &PortalService{
		tx:         tx,
		projects:   projects,
		activities: activities,
		tokens:     tokens,
		audit:      audit,
		now:        systemClock,
		logger:     logger.With(slog.String("component", "portal")),
	}
}

// SetClock подменяет источник времени.
func (s *PortalService) SetClock(now Clock) {
	s.now = now
}

// classify определяет причину, по которой ссылка не прошла Touch.
func (s *PortalService) classify(ctx context.Context, tokenValue string) error {
	if _, err := s.active(ctx, tokenValue); err != nil {
		return err
	}
	// Ссылка действительна по часам сервиса, но не прошла условие UPDATE
	return ErrNotFound
}

// active возвращает действующую ссылку без учёта обращения.
func (s *PortalService) active(ctx context.Context, tokenValue string) (*model.ShareToken, error) {
	if tokenValue == "" {
		return nil, ErrNotFound
	}
	t, err := s.tokens.GetByToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение ссылки: %w", err)
	}
	switch t.State(s.now()) {
	case model.TokenRevoked:
		return nil, ErrTokenRevoked
	case model.TokenExpired:
		return nil, ErrTokenExpired
	}
	return t, nil
}

// recordResolution учитывает результат открытия портала в метриках.
func recordResolution(err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrTokenRevoked):
		result = "revoked"
	case errors.Is(err, ErrTokenExpired):
		result = "expired"
	default:
		result = "error"
	}
	portalResolutionsTotal.WithLabelValues(result).Inc()
}

// Resolve открывает портал по ссылке: атомарно увеличивает счётчик обращений
// и возвращает проект с видимыми событиями. Блокировка строки ссылки держится
// до конца транзакции, поэтому конкурентный отзыв дождётся чтения данных.
func (s *PortalService) Resolve(ctx context.Context, tokenValue string) (*PortalView, error) {
	var view *PortalView
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if tokenValue == "" {
			return ErrNotFound
		}
		t, err := s.tokens.Touch(ctx, tokenValue, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return s.classify(ctx, tokenValue)
			}
			return fmt.Errorf("учёт обращения: %w", err)
		}

		project, err := s.projects.GetByID(ctx, t.ProjectID)
		if err != nil {
			return fmt.Errorf("получение проекта ссылки: %w", err)
		}
		events, err := s.activities.ListByProject(ctx, t.ProjectID, true)
		if err != nil {
			return fmt.Errorf("получение ленты проекта: %w", err)
		}

		view = &PortalView{Project: project, Activities: events, AccessCount: t.AccessCount}
		return nil
	})
	recordResolution(err)
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrTokenExpired) {
			s.logger.InfoContext(ctx, "Обращение по недействительной ссылке",
				slog.String("reason", err.Error()),
			)
		}
		return nil, err
	}
	return view, nil
}

// Summary считает сводку по счёту проекта ссылки. Счётчик обращений не меняется.
func (s *PortalService) Summary(ctx context.Context, tokenValue string) (*billing.Summary, error) {
	t, err := s.active(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.GetByID(ctx, t.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("получение проекта ссылки: %w", err)
	}
	events, err := s.activities.ListByProject(ctx, t.ProjectID, true)
	if err != nil {
		return nil, fmt.Errorf("получение ленты проекта: %w", err)
	}

	summary := billing.Calculate(events, project.Currency)
	return &summary, nil
}

// Approve записывает решение клиента по событию ленты.
// Повтор того же решения возвращает событие без изменений.
func (s *PortalService) Approve(ctx context.Context, tokenValue, eventID string, status model.ApprovalStatus, notes *string) (*model.ActivityEvent, error) {
	if !status.IsDecision() {
		return nil, fmt.Errorf("%w: %s", ErrValidation, approval.MessageInvalidDecision)
	}

	var result *model.ActivityEvent
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.active(ctx, tokenValue)
		if err != nil {
			return err
		}

		if !validID(eventID) {
			return ErrEventNotFound
		}
		event, err := s.activities.LockByID(ctx, eventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return fmt.Errorf("получение события: %w", err)
		}
		// Скрытые и чужие события для клиента не существуют
		if event.ProjectID != t.ProjectID || !event.VisibleToClient {
			return ErrEventNotFound
		}

		changed, err := approval.DecideActivity(event.ApprovalStatus, status)
		if err != nil {
			return transitionError(err)
		}
		if !changed {
			result = event
			return nil
		}

		previous := event.ApprovalStatus
		result, err = s.activities.SetApproval(ctx, event.ID, status, s.now(), notes)
		if err != nil {
			return fmt.Errorf("запись решения: %w", err)
		}
		return s.audit.Record(ctx, &model.AuditEvent{
			ActorType:  model.ActorClient,
			ActorID:    t.ID,
			Action:     model.AuditEventApproved,
			EntityKind: model.EntityActivity,
			EntityID:   event.ID,
			ProjectID:  &t.ProjectID,
			Details: map[string]any{
				"from": string(previous),
				"to":   string(status),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
