// activities.go — проекты подрядчика, лента событий и видимость событий для клиента.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/repository"
)

// ProjectInput — данные нового проекта.
type ProjectInput struct {
	Name        string
	ClientName  *string
	ClientEmail *string
	Currency    string
}

// ActivityInput — данные нового события ленты.
type ActivityInput struct {
	Type        model.ActivityType
	Title       string
	AmountCents int64
	// OccurredAt — nil означает текущее время
	OccurredAt *time.Time
	// VisibleToClient — nil означает true
	VisibleToClient *bool
	// ApprovalStatus — пустой означает NONE
	ApprovalStatus model.ApprovalStatus
}

// ActivityService — управление проектами и лентой событий подрядчика.
type ActivityService struct {
	tx         repository.Transactor
	projects   repository.ProjectRepository
	activities repository.ActivityRepository
	audit      *AuditWriter
	logger     *slog.Logger
}

// NewActivityService создаёт сервис ленты событий.
func NewActivityService(
	tx repository.Transactor,
	projects repository.ProjectRepository,
	activities repository.ActivityRepository,
	audit *AuditWriter,
	logger *slog.Logger,
) *ActivityService {
	return &ActivityService{
		tx:         tx,
		projects:   projects,
		activities: activities,
		audit:      audit,
		logger:     logger.With(slog.String("component", "activities")),
	}
}

// CreateProject создаёт проект, принадлежащий ownerID.
func (s *ActivityService) CreateProject(ctx context.Context, ownerID string, in ProjectInput) (*model.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name обязателен", ErrValidation)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = model.DefaultCurrency
	}
	if len(currency) != 3 || strings.Trim(currency, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
		return nil, fmt.Errorf("%w: currency должен быть кодом ISO 4217", ErrValidation)
	}

	p := &model.Project{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        name,
		ClientName:  in.ClientName,
		ClientEmail: in.ClientEmail,
		Currency:    currency,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("создание проекта: %w", err)
	}

	s.logger.Info("Проект создан",
		slog.String("project_id", p.ID),
		slog.String("owner_id", ownerID),
	)
	return p, nil
}

// CreateActivity добавляет событие в ленту проекта владельца.
func (s *ActivityService) CreateActivity(ctx context.Context, ownerID, projectID string, in ActivityInput) (*model.ActivityEvent, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: неизвестный тип события %q", ErrValidation, in.Type)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title обязателен", ErrValidation)
	}
	if in.AmountCents < 0 {
		return nil, fmt.Errorf("%w: amountCents не может быть отрицательным", ErrValidation)
	}
	status := in.ApprovalStatus
	if status == "" {
		status = model.ApprovalNone
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: неизвестный approvalStatus %q", ErrValidation, status)
	}

	if _, err := ownedProject(ctx, s.projects, ownerID, projectID); err != nil {
		return nil, err
	}

	e := &model.ActivityEvent{
		ID:              uuid.New().String(),
		ProjectID:       projectID,
		Type:            in.Type,
		Title:           title,
		AmountCents:     in.AmountCents,
		OccurredAt:      time.Now().UTC(),
		VisibleToClient: true,
		ApprovalStatus:  status,
	}
	if in.OccurredAt != nil {
		e.OccurredAt = in.OccurredAt.UTC()
	}
	if in.VisibleToClient != nil {
		e.VisibleToClient = *in.VisibleToClient
	}

	if err := s.activities.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("создание события: %w", err)
	}
	return e, nil
}

// ListActivities возвращает всю ленту проекта владельца, включая скрытые события.
func (s *ActivityService) ListActivities(ctx context.Context, ownerID, projectID string) ([]*model.ActivityEvent, error) {
	if _, err := ownedProject(ctx, s.projects, ownerID, projectID); err != nil {
		return nil, err
	}
	events, err := s.activities.ListByProject(ctx, projectID, false)
	if err != nil {
		return nil, fmt.Errorf("получение ленты проекта: %w", err)
	}
	return events, nil
}

// SetVisibility скрывает или показывает событие клиенту.
// Событие чужого проекта — ErrForbidden без изменений.
func (s *ActivityService) SetVisibility(ctx context.Context, ownerID, eventID string, visible bool) (*model.ActivityEvent, error) {
	if !validID(eventID) {
		return nil, ErrNotFound
	}

	var result *model.ActivityEvent
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		event, err := s.activities.LockByID(ctx, eventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("получение события: %w", err)
		}
		if _, err := ownedProject(ctx, s.projects, ownerID, event.ProjectID); err != nil {
			return err
		}
		if event.VisibleToClient == visible {
			result = event
			return nil
		}

		result, err = s.activities.SetVisibility(ctx, eventID, visible)
		if err != nil {
			return fmt.Errorf("изменение видимости: %w", err)
		}
		return s.audit.Record(ctx, &model.AuditEvent{
			ActorType:  model.ActorContractor,
			ActorID:    ownerID,
			Action:     model.AuditVisibilityChanged,
			EntityKind: model.EntityActivity,
			EntityID:   eventID,
			ProjectID:  &event.ProjectID,
			Details:    map[string]any{"visible_to_client": visible},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
