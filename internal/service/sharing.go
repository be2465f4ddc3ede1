// sharing.go — выпуск и отзыв ссылок клиентского портала.
//
// Ссылка привязана к одному проекту и одному подрядчику. Строки
// share_tokens не удаляются: отзыв выставляет revoked_at один раз.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/repository"
)

// IssuedLink — результат выпуска ссылки.
type IssuedLink struct {
	Token *model.ShareToken
	// Link — полный URL клиентского портала с токеном
	Link string
}

// SharingService — Magic-Link Issuer и отзыв ссылок.
type SharingService struct {
	tx         repository.Transactor
	projects   repository.ProjectRepository
	tokens     repository.ShareTokenRepository
	audit      *AuditWriter
	baseURL    string
	defaultTTL time.Duration
	maxTTL     time.Duration
	now        Clock
	newToken   func() (string, error)
	logger     *slog.Logger
}

// NewSharingService создаёт сервис ссылок портала.
func NewSharingService(
	tx repository.Transactor,
	projects repository.ProjectRepository,
	tokens repository.ShareTokenRepository,
	audit *AuditWriter,
	baseURL string,
	defaultTTL, maxTTL time.Duration,
	logger *slog.Logger,
) *SharingService {
	return &SharingService{
		tx:         tx,
		projects:   projects,
		tokens:     tokens,
		audit:      audit,
		baseURL:    baseURL,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
		now:        systemClock,
		newToken:   NewToken,
		logger:     logger.With(slog.String("component", "sharing")),
	}
}

// SetClock подменяет источник времени.
func (s *SharingService) SetClock(now Clock) {
	s.now = now
}

// Link возвращает URL клиентского портала для токена.
func (s *SharingService) Link(token string) string {
	return ClientViewLink(s.baseURL, token)
}

// Issue выпускает ссылку на проект projectID владельца ownerID.
// ttlSeconds == nil — срок по умолчанию.
func (s *SharingService) Issue(ctx context.Context, ownerID, projectID string, ttlSeconds *int64) (*IssuedLink, error) {
	ttl := s.defaultTTL
	if ttlSeconds != nil {
		if *ttlSeconds < 1 || *ttlSeconds > int64(s.maxTTL/time.Second) {
			return nil, fmt.Errorf("%w: expiresIn должен быть от 1 до %d секунд",
				ErrValidation, int64(s.maxTTL/time.Second))
		}
		ttl = time.Duration(*ttlSeconds) * time.Second
	}

	project, err := ownedProject(ctx, s.projects, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	value, err := s.newToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	token := &model.ShareToken{
		ID:        uuid.New().String(),
		Token:     value,
		OwnerID:   ownerID,
		ProjectID: project.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tokens.Create(ctx, token); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrTokenCollision
			}
			return fmt.Errorf("сохранение ссылки: %w", err)
		}
		return s.audit.Record(ctx, &model.AuditEvent{
			ActorType:  model.ActorContractor,
			ActorID:    ownerID,
			Action:     model.AuditTokenIssued,
			EntityKind: model.EntityShareToken,
			EntityID:   token.ID,
			ProjectID:  &token.ProjectID,
			Details: map[string]any{
				"ttl_seconds": int64(ttl / time.Second),
				"expires_at":  token.ExpiresAt.Format(time.RFC3339),
			},
		})
	})
	if err != nil {
		if errors.Is(err, ErrTokenCollision) {
			s.logger.Error("Коллизия токена при выпуске ссылки",
				slog.String("project_id", project.ID),
			)
		}
		return nil, err
	}

	shareTokensIssuedTotal.Inc()
	return &IssuedLink{Token: token, Link: s.Link(token.Token)}, nil
}

// Revoke отзывает ссылку. Повторный отзыв не ошибка и возвращает
// исходное время отзыва.
func (s *SharingService) Revoke(ctx context.Context, ownerID, tokenValue string) (*model.ShareToken, error) {
	if tokenValue == "" {
		return nil, fmt.Errorf("%w: token обязателен", ErrValidation)
	}

	var revoked *model.ShareToken
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.tokens.GetByToken(ctx, tokenValue)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("получение ссылки: %w", err)
		}
		if _, err := ownedProject(ctx, s.projects, ownerID, current.ProjectID); err != nil {
			return err
		}

		revoked, err = s.tokens.Revoke(ctx, current.ID, s.now())
		if err != nil {
			return fmt.Errorf("отзыв ссылки: %w", err)
		}
		if current.RevokedAt != nil {
			return nil
		}
		return s.audit.Record(ctx, &model.AuditEvent{
			ActorType:  model.ActorContractor,
			ActorID:    ownerID,
			Action:     model.AuditTokenRevoked,
			EntityKind: model.EntityShareToken,
			EntityID:   current.ID,
			ProjectID:  &current.ProjectID,
			Details: map[string]any{
				"access_count": current.AccessCount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

// ListTokens возвращает ссылки проекта владельца.
func (s *SharingService) ListTokens(ctx context.Context, ownerID, projectID string) ([]*model.ShareToken, error) {
	if _, err := ownedProject(ctx, s.projects, ownerID, projectID); err != nil {
		return nil, err
	}
	tokens, err := s.tokens.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("получение ссылок проекта: %w", err)
	}
	return tokens, nil
}

// TokenState возвращает состояние ссылки на текущий момент.
func (s *SharingService) TokenState(t *model.ShareToken) model.TokenState {
	return t.State(s.now())
}
