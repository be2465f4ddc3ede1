// scope_proofs.go — согласование дополнительных работ (scope proof).
//
// Подрядчик создаёт запрос и отправляет клиенту ссылку с токеном. Клиент
// без учётной записи одобряет, отклоняет или комментирует запрос, пока
// токен действителен (TB_SCOPE_PROOF_TTL от создания, не продлевается).
//
// Все действия клиента по токену проходят через resolveClient: один набор
// проверок и одни и те же ошибки для GET, approve, reject и feedback.
// Переходы статусов выполняются под блокировкой строки (SELECT ... FOR UPDATE).
// Письма отправляются после коммита и не влияют на результат операции.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/tellbill/internal/domain/approval"
	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/repository"
)

// Ограничения входных данных scope proof.
const (
	maxPhotos            = 20
	maxDescriptionLength = 5000
	maxFeedbackLength    = 5000
)

// PhotoStore — подписанные ссылки на фото в объектном хранилище.
type PhotoStore interface {
	PresignGet(ctx context.Context, key string) (string, error)
	PresignPut(ctx context.Context, key, contentType string) (url string, expiresAt time.Time, err error)
}

// CreateScopeProofInput — данные нового scope proof.
type CreateScopeProofInput struct {
	ProjectID   *string
	Description string
	// EstimatedCost — десятичная сумма, введённая подрядчиком ("500.00")
	EstimatedCost string
	Photos        []string
}

// ScopeProofStatusView — статус scope proof для подрядчика.
type ScopeProofStatusView struct {
	Proof         *model.ScopeProof
	Notifications []*model.ScopeProofNotification
	History       []*model.AuditEvent
}

// ClientScopeProofView — scope proof для клиентского портала.
type ClientScopeProofView struct {
	Proof *model.ScopeProof
	// PhotoURLs — ссылки на фото: подписанные при настроенном хранилище, иначе ключи как есть
	PhotoURLs []string
}

// UploadTarget — подписанная ссылка для загрузки фото.
type UploadTarget struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// ScopeProofService — Approval State Machine для scope proof.
type ScopeProofService struct {
	tx            repository.Transactor
	proofs        repository.ScopeProofRepository
	notifications repository.NotificationRepository
	projects      repository.ProjectRepository
	audit         *AuditWriter
	notifier      *Notifier
	photos        PhotoStore
	baseURL       string
	ttl           time.Duration
	now           Clock
	newToken      func() (string, error)
	logger        *slog.Logger
}

// NewScopeProofService создаёт сервис scope proof.
// photos может быть nil — тогда ключи фото отдаются клиенту без подписи.
func NewScopeProofService(
	tx repository.Transactor,
	proofs repository.ScopeProofRepository,
	notifications repository.NotificationRepository,
	projects repository.ProjectRepository,
	audit *AuditWriter,
	notifier *Notifier,
	photos PhotoStore,
	baseURL string,
	ttl time.Duration,
	logger *slog.Logger,
) *ScopeProofService {
	return &ScopeProofService{
		tx:            tx,
		proofs:        proofs,
		notifications: notifications,
		projects:      projects,
		audit:         audit,
		notifier:      notifier,
		photos:        photos,
		baseURL:       baseURL,
		ttl:           ttl,
		now:           systemClock,
		newToken:      NewToken,
		logger:        logger.With(slog.String("component", "scope_proof")),
	}
}

// SetClock подменяет источник времени.
func (s *ScopeProofService) SetClock(now Clock) {
	s.now = now
}

// Link возвращает ссылку клиента на scope proof.
func (s *ScopeProofService) Link(token string) string {
	return ScopeProofLink(s.baseURL, token)
}

// normalizeEmail проверяет и нормализует email.
func normalizeEmail(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s обязателен", ErrValidation, field)
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "", fmt.Errorf("%w: некорректный %s", ErrValidation, field)
	}
	return strings.ToLower(addr.Address), nil
}

// proofEvent собирает запись аудита по scope proof.
func proofEvent(p *model.ScopeProof, actor model.ActorType, actorID, action string, details map[string]any) *model.AuditEvent {
	return &model.AuditEvent{
		ActorType:  actor,
		ActorID:    actorID,
		Action:     action,
		EntityKind: model.EntityScopeProof,
		EntityID:   p.ID,
		ProjectID:  p.ProjectID,
		Details:    details,
	}
}

// withEffective возвращает копию с эффективным статусом на момент now.
func withEffective(p *model.ScopeProof, now time.Time) *model.ScopeProof {
	cp := *p
	cp.Status = approval.Effective(p, now)
	return &cp
}

// Create создаёт scope proof со своим токеном и фиксированным сроком действия.
func (s *ScopeProofService) Create(ctx context.Context, ownerID, ownerEmail string, in CreateScopeProofInput) (*model.ScopeProof, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description обязателен", ErrValidation)
	}
	if len(description) > maxDescriptionLength {
		return nil, fmt.Errorf("%w: description длиннее %d символов", ErrValidation, maxDescriptionLength)
	}
	if strings.TrimSpace(in.EstimatedCost) == "" {
		return nil, fmt.Errorf("%w: estimatedCost обязателен", ErrValidation)
	}
	cost, err := ParseAmount(in.EstimatedCost)
	if err != nil {
		return nil, err
	}
	if len(in.Photos) > maxPhotos {
		return nil, fmt.Errorf("%w: не больше %d фото", ErrValidation, maxPhotos)
	}
	photos := make([]string, 0, len(in.Photos))
	for _, ph := range in.Photos {
		ph = strings.TrimSpace(ph)
		if ph == "" {
			return nil, fmt.Errorf("%w: пустая ссылка на фото", ErrValidation)
		}
		photos = append(photos, ph)
	}

	var projectID *string
	if in.ProjectID != nil && *in.ProjectID != "" {
		project, err := ownedProject(ctx, s.projects, ownerID, *in.ProjectID)
		if err != nil {
			return nil, err
		}
		projectID = &project.ID
	}

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.ScopeProof{
		ID:                 uuid.New().String(),
		OwnerID:            ownerID,
		ProjectID:          projectID,
		Description:        description,
		EstimatedCostCents: cost,
		Photos:             photos,
		ApprovalToken:      token,
		TokenExpiresAt:     now.Add(s.ttl),
		Status:             model.ScopeProofPending,
		CreatedAt:          now,
	}
	if ownerEmail != "" {
		p.OwnerEmail = &ownerEmail
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.proofs.Create(ctx, p); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrTokenCollision
			}
			return fmt.Errorf("сохранение scope proof: %w", err)
		}
		return s.audit.Record(ctx, proofEvent(p, model.ActorContractor, ownerID, model.AuditScopeProofCreated,
			map[string]any{
				"estimated_cost_cents": cost,
				"photos":               len(photos),
				"token_expires_at":     p.TokenExpiresAt.Format(time.RFC3339),
			}))
	})
	if err != nil {
		return nil, err
	}

	scopeProofTransitionsTotal.WithLabelValues(string(model.ScopeProofPending)).Inc()
	return p, nil
}

// listLimit приводит размер страницы к диапазону 1..MaxListLimit.
func listLimit(n int) int {
	switch {
	case n <= 0:
		return model.DefaultListLimit
	case n > model.MaxListLimit:
		return model.MaxListLimit
	}
	return n
}

// List возвращает scope proof подрядчика с эффективными статусами.
func (s *ScopeProofService) List(ctx context.Context, filter model.ScopeProofFilter) ([]*model.ScopeProof, error) {
	if filter.Status != nil && !approval.IsValidStatus(*filter.Status) {
		return nil, fmt.Errorf("%w: неизвестный статус %q", ErrValidation, *filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit и offset не могут быть отрицательными", ErrValidation)
	}
	filter.Limit = listLimit(filter.Limit)

	now := s.now()
	proofs, err := s.proofs.List(ctx, filter, now)
	if err != nil {
		return nil, fmt.Errorf("получение списка scope proof: %w", err)
	}
	for i, p := range proofs {
		proofs[i] = withEffective(p, now)
	}
	return proofs, nil
}

// owned загружает scope proof подрядчика (с блокировкой при lock).
func (s *ScopeProofService) owned(ctx context.Context, ownerID, id string, lock bool) (*model.ScopeProof, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	get := s.proofs.GetByID
	if lock {
		get = s.proofs.LockByID
	}
	p, err := get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение scope proof: %w", err)
	}
	if p.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return p, nil
}

// Status возвращает статус scope proof для подрядчика с журналом писем и историей.
func (s *ScopeProofService) Status(ctx context.Context, ownerID, id string) (*ScopeProofStatusView, error) {
	p, err := s.owned(ctx, ownerID, id, false)
	if err != nil {
		return nil, err
	}
	notifications, err := s.notifications.ListByScopeProof(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("получение журнала писем: %w", err)
	}
	history, err := s.audit.History(ctx, model.EntityScopeProof, p.ID)
	if err != nil {
		return nil, err
	}
	return &ScopeProofStatusView{
		Proof:         withEffective(p, s.now()),
		Notifications: notifications,
		History:       history,
	}, nil
}

// RequestApproval отправляет клиенту первичное письмо со ссылкой.
// Допустим только из pending, статус не меняется.
func (s *ScopeProofService) RequestApproval(ctx context.Context, ownerID, id, clientEmail string) (*model.ScopeProof, error) {
	email, err := normalizeEmail("clientEmail", clientEmail)
	if err != nil {
		return nil, err
	}

	var result *model.ScopeProof
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.owned(ctx, ownerID, id, true)
		if err != nil {
			return err
		}
		now := s.now()
		if err := approval.CheckRequest(p, now); err != nil {
			return transitionError(err)
		}

		p.ClientEmail = &email
		if err := s.proofs.Update(ctx, p); err != nil {
			return fmt.Errorf("сохранение email клиента: %w", err)
		}
		if err := s.appendNotification(ctx, p, model.NotificationInitial, email, now); err != nil {
			return err
		}
		result = p
		return s.audit.Record(ctx, proofEvent(p, model.ActorContractor, ownerID, model.AuditScopeProofRequested,
			map[string]any{"client_email": email}))
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Send(mailInitial, email, subjectApprovalRequest, approvalRequestEmail(result, s.Link(result.ApprovalToken)))
	return withEffective(result, s.now()), nil
}

// Resend повторно отправляет ту же ссылку. Статус не меняется; пока
// токен действителен, количество повторов не ограничено. Повторная
// отправка пишется в журнал как reminder.
func (s *ScopeProofService) Resend(ctx context.Context, ownerID, id, clientEmail string) (*model.ScopeProof, error) {
	email, err := normalizeEmail("clientEmail", clientEmail)
	if err != nil {
		return nil, err
	}

	var result *model.ScopeProof
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.owned(ctx, ownerID, id, true)
		if err != nil {
			return err
		}
		now := s.now()
		if err := approval.CheckResend(p, now); err != nil {
			return transitionError(err)
		}
		// Повтор может уйти на исправленный адрес: напоминания пойдут на него же
		if p.ClientEmail == nil || *p.ClientEmail != email {
			p.ClientEmail = &email
			if err := s.proofs.Update(ctx, p); err != nil {
				return fmt.Errorf("сохранение email клиента: %w", err)
			}
		}
		if err := s.appendNotification(ctx, p, model.NotificationReminder, email, now); err != nil {
			return err
		}
		result = p
		return s.audit.Record(ctx, proofEvent(p, model.ActorContractor, ownerID, model.AuditScopeProofResent,
			map[string]any{"client_email": email}))
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Send(mailReminder, email, subjectApprovalRequest, approvalRequestEmail(result, s.Link(result.ApprovalToken)))
	return withEffective(result, s.now()), nil
}

// Cancel отменяет scope proof. Допустимо только из pending; запись
// сохраняется со статусом cancelled.
func (s *ScopeProofService) Cancel(ctx context.Context, ownerID, id string) (*model.ScopeProof, error) {
	var result *model.ScopeProof
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.owned(ctx, ownerID, id, true)
		if err != nil {
			return err
		}
		now := s.now()
		if err := approval.CheckCancel(p, now); err != nil {
			return transitionError(err)
		}

		p.Status = model.ScopeProofCancelled
		p.CancelledAt = &now
		if err := s.proofs.Update(ctx, p); err != nil {
			return fmt.Errorf("отмена scope proof: %w", err)
		}
		result = p
		return s.audit.Record(ctx, proofEvent(p, model.ActorContractor, ownerID, model.AuditScopeProofCancelled, nil))
	})
	if err != nil {
		return nil, err
	}
	scopeProofTransitionsTotal.WithLabelValues(string(model.ScopeProofCancelled)).Inc()
	return result, nil
}

// UploadURL выдаёт подписанную ссылку для загрузки фото подрядчиком.
func (s *ScopeProofService) UploadURL(ctx context.Context, ownerID, contentType string) (*UploadTarget, error) {
	if s.photos == nil {
		return nil, fmt.Errorf("%w: хранилище фото не настроено", ErrUnavailable)
	}
	ext, ok := photoExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return nil, fmt.Errorf("%w: неподдерживаемый contentType %q", ErrValidation, contentType)
	}

	key := path.Join("scope-proofs", ownerID, uuid.New().String()+ext)
	url, expiresAt, err := s.photos.PresignPut(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("подпись ссылки загрузки: %w", err)
	}
	return &UploadTarget{Key: key, URL: url, ExpiresAt: expiresAt}, nil
}

// photoExtensions — допустимые типы фото и расширения ключей.
var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/heic": ".heic",
	"image/webp": ".webp",
}

// appendNotification добавляет запись в журнал писем.
func (s *ScopeProofService) appendNotification(ctx context.Context, p *model.ScopeProof, kind model.NotificationType, recipient string, now time.Time) error {
	err := s.notifications.Append(ctx, &model.ScopeProofNotification{
		ID:           uuid.New().String(),
		ScopeProofID: p.ID,
		Type:         kind,
		Channel:      model.ChannelEmail,
		Recipient:    recipient,
		SentAt:       now,
	})
	if err != nil {
		return fmt.Errorf("запись журнала писем: %w", err)
	}
	return nil
}

// --- действия клиента по токену ---

// resolveClient находит scope proof по токену и проверяет, что он ждёт
// решения клиента: неизвестный токен → ErrNotFound, истёкший → ErrTokenExpired,
// закрытый → ErrAlreadyProcessed.
func (s *ScopeProofService) resolveClient(ctx context.Context, token string, lock bool) (*model.ScopeProof, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	get := s.proofs.GetByToken
	if lock {
		get = s.proofs.LockByToken
	}
	p, err := get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение scope proof: %w", err)
	}

	switch status := approval.Effective(p, s.now()); {
	case status == model.ScopeProofExpired:
		return nil, ErrTokenExpired
	case !approval.IsOpen(status):
		return nil, ErrAlreadyProcessed
	}
	return p, nil
}

// ClientGet возвращает scope proof для страницы согласования.
func (s *ScopeProofService) ClientGet(ctx context.Context, token string) (*ClientScopeProofView, error) {
	p, err := s.resolveClient(ctx, token, false)
	if err != nil {
		return nil, err
	}
	return &ClientScopeProofView{Proof: withEffective(p, s.now()), PhotoURLs: s.PhotoURLs(ctx, p)}, nil
}

// PhotoURLs возвращает ссылки на фото для клиента. Ключи хранилища
// подписываются; внешние URL и ключи без хранилища отдаются как есть.
// Ключ, который не удалось подписать, пропускается.
func (s *ScopeProofService) PhotoURLs(ctx context.Context, p *model.ScopeProof) []string {
	urls := make([]string, 0, len(p.Photos))
	for _, key := range p.Photos {
		if s.photos == nil || strings.Contains(key, "://") {
			urls = append(urls, key)
			continue
		}
		u, err := s.photos.PresignGet(ctx, key)
		if err != nil {
			s.logger.Warn("Ошибка подписи ссылки на фото",
				slog.String("scope_proof_id", p.ID),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

// clientTransition выполняет действие клиента под блокировкой строки.
// apply меняет запись после проверки перехода в target.
func (s *ScopeProofService) clientTransition(
	ctx context.Context,
	token string,
	target model.ScopeProofStatus,
	action string,
	clientEmail string,
	apply func(p *model.ScopeProof, now time.Time),
	details map[string]any,
) (*model.ScopeProof, error) {
	var result *model.ScopeProof
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.resolveClient(ctx, token, true)
		if err != nil {
			return err
		}
		now := s.now()
		if err := approval.CheckClientAction(p, target, now); err != nil {
			return transitionError(err)
		}

		from := p.Status
		apply(p, now)
		p.Status = target
		if err := s.proofs.Update(ctx, p); err != nil {
			return fmt.Errorf("сохранение решения клиента: %w", err)
		}
		result = p

		if details == nil {
			details = map[string]any{}
		}
		details["from"] = string(from)
		return s.audit.Record(ctx, proofEvent(p, model.ActorClient, clientEmail, action, details))
	})
	if err != nil {
		return nil, err
	}

	scopeProofTransitionsTotal.WithLabelValues(string(target)).Inc()
	s.logger.Info("Решение клиента по scope proof",
		slog.String("scope_proof_id", result.ID),
		slog.String("status", string(target)),
	)
	return result, nil
}

// ClientApprove одобряет scope proof по токену.
func (s *ScopeProofService) ClientApprove(ctx context.Context, token, clientEmail string) (*model.ScopeProof, error) {
	email, err := normalizeEmail("clientEmail", clientEmail)
	if err != nil {
		return nil, err
	}
	return s.clientTransition(ctx, token, model.ScopeProofApproved, model.AuditScopeProofApproved, email,
		func(p *model.ScopeProof, now time.Time) {
			p.ApprovedAt = &now
			p.ApprovedBy = &email
		}, nil)
}

// ClientReject отклоняет scope proof по токену.
func (s *ScopeProofService) ClientReject(ctx context.Context, token, clientEmail string, reason *string) (*model.ScopeProof, error) {
	email, err := normalizeEmail("clientEmail", clientEmail)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		trimmed := strings.TrimSpace(*reason)
		if len(trimmed) > maxFeedbackLength {
			return nil, fmt.Errorf("%w: reason длиннее %d символов", ErrValidation, maxFeedbackLength)
		}
		reason = &trimmed
		if trimmed == "" {
			reason = nil
		}
	}
	return s.clientTransition(ctx, token, model.ScopeProofRejected, model.AuditScopeProofRejected, email,
		func(p *model.ScopeProof, now time.Time) {
			p.RejectedAt = &now
			p.RejectedBy = &email
			p.RejectionReason = reason
		}, nil)
}

// ClientFeedback сохраняет комментарий клиента и уведомляет подрядчика.
// После комментария клиент может одобрить или отклонить запрос, пока токен действителен.
func (s *ScopeProofService) ClientFeedback(ctx context.Context, token, clientEmail, feedback string) (*model.ScopeProof, error) {
	email, err := normalizeEmail("clientEmail", clientEmail)
	if err != nil {
		return nil, err
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, fmt.Errorf("%w: feedback обязателен", ErrValidation)
	}
	if len(feedback) > maxFeedbackLength {
		return nil, fmt.Errorf("%w: feedback длиннее %d символов", ErrValidation, maxFeedbackLength)
	}

	p, err := s.clientTransition(ctx, token, model.ScopeProofFeedback, model.AuditScopeProofFeedback, email,
		func(p *model.ScopeProof, now time.Time) {
			p.Feedback = &feedback
			p.FeedbackBy = &email
			p.FeedbackAt = &now
		}, map[string]any{"length": len(feedback)})
	if err != nil {
		return nil, err
	}

	if p.OwnerEmail != nil {
		s.notifier.Send(mailFeedback, *p.OwnerEmail, subjectFeedback, feedbackEmail(p))
	} else {
		s.logger.Warn("Email подрядчика не известен, уведомление о комментарии не отправлено",
			slog.String("scope_proof_id", p.ID),
		)
	}
	return p, nil
}
