// Пакет memrepo — реализации репозиториев в памяти для тестов сервисов и
// обработчиков. Семантика повторяет SQL-реализации пакета repository:
// те же сентинел-ошибки, порядок сортировки и условия атомарных обновлений.
package memrepo

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/repository"
)

// Store — общее хранилище всех репозиториев в памяти.
type Store struct {
	mu            sync.Mutex
	projects      map[string]*model.Project
	activities    map[string]*model.ActivityEvent
	tokens        map[string]*model.ShareToken
	proofs        map[string]*model.ScopeProof
	notifications []*model.ScopeProofNotification
	audit         []*model.AuditEvent
	subscriptions map[string]*model.Subscription
	nextAuditID   int64
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		projects:      make(map[string]*model.Project),
		activities:    make(map[string]*model.ActivityEvent),
		tokens:        make(map[string]*model.ShareToken),
		proofs:        make(map[string]*model.ScopeProof),
		subscriptions: make(map[string]*model.Subscription),
	}
}

// Tx — Transactor без транзакции: fn вызывается напрямую.
type Tx struct{}

// RunInTx вызывает fn с исходным контекстом.
func (Tx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Store) Projects() repository.ProjectRepository           { return projectRepo{s} }
func (s *Store) Activities() repository.ActivityRepository        { return activityRepo{s} }
func (s *Store) ShareTokens() repository.ShareTokenRepository     { return shareTokenRepo{s} }
func (s *Store) ScopeProofs() repository.ScopeProofRepository     { return scopeProofRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) Audit() repository.AuditRepository                { return auditRepo{s} }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return subscriptionRepo{s} }

// AuditEvents возвращает копию журнала аудита в порядке записи.
func (s *Store) AuditEvents() []model.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditEvent, 0, len(s.audit))
	for _, e := range s.audit {
		out = append(out, *e)
	}
	return out
}

// NotificationLog возвращает копию журнала писем в порядке записи.
func (s *Store) NotificationLog() []model.ScopeProofNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScopeProofNotification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, *n)
	}
	return out
}

// --- projects ---

type projectRepo struct{ s *Store }

func (r projectRepo) Create(_ context.Context, p *model.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[p.ID]; ok {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	r.s.projects[p.ID] = &cp
	return nil
}

func (r projectRepo) GetByID(_ context.Context, id string) (*model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// --- activity events ---

type activityRepo struct{ s *Store }

func (r activityRepo) Create(_ context.Context, e *model.ActivityEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.activities[e.ID]; ok {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now
	}
	e.CreatedAt, e.UpdatedAt = now, now
	cp := *e
	r.s.activities[e.ID] = &cp
	return nil
}

func (r activityRepo) GetByID(_ context.Context, id string) (*model.ActivityEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.activities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r activityRepo) LockByID(ctx context.Context, id string) (*model.ActivityEvent, error) {
	return r.GetByID(ctx, id)
}

func (r activityRepo) ListByProject(_ context.Context, projectID string, visibleOnly bool) ([]*model.ActivityEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ActivityEvent
	for _, e := range r.s.activities {
		if e.ProjectID != projectID || (visibleOnly && !e.VisibleToClient) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *model.ActivityEvent) int {
		if c := b.OccurredAt.Compare(a.OccurredAt); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (r activityRepo) SetVisibility(_ context.Context, id string, visible bool) (*model.ActivityEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.activities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.VisibleToClient = visible
	e.UpdatedAt = time.Now().UTC()
	cp := *e
	return &cp, nil
}

func (r activityRepo) SetApproval(_ context.Context, id string, status model.ApprovalStatus, at time.Time, notes *string) (*model.ActivityEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.activities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.ApprovalStatus = status
	e.ApprovedAt = &at
	if notes != nil {
		e.ApprovalNotes = notes
	}
	e.UpdatedAt = time.Now().UTC()
	cp := *e
	return &cp, nil
}

// --- share tokens ---

type shareTokenRepo struct{ s *Store }

func (r shareTokenRepo) Create(_ context.Context, t *model.ShareToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tokens {
		if existing.Token == t.Token || existing.ID == t.ID {
			return repository.ErrConflict
		}
	}
	cp := *t
	r.s.tokens[t.ID] = &cp
	return nil
}

// byToken ищет ссылку по строке токена. Вызывается под s.mu.
func (r shareTokenRepo) byToken(token string) *model.ShareToken {
	for _, t := range r.s.tokens {
		if t.Token == token {
			return t
		}
	}
	return nil
}

func (r shareTokenRepo) GetByToken(_ context.Context, token string) (*model.ShareToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.byToken(token)
	if t == nil {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r shareTokenRepo) Touch(_ context.Context, token string, now time.Time) (*model.ShareToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.byToken(token)
	if t == nil || t.RevokedAt != nil || !t.ExpiresAt.After(now) {
		return nil, repository.ErrNotFound
	}
	t.AccessCount++
	at := now
	t.LastAccessedAt = &at
	cp := *t
	return &cp, nil
}

func (r shareTokenRepo) Revoke(_ context.Context, id string, now time.Time) (*model.ShareToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if t.RevokedAt == nil {
		at := now
		t.RevokedAt = &at
	}
	cp := *t
	return &cp, nil
}

func (r shareTokenRepo) ListByProject(_ context.Context, projectID string) ([]*model.ShareToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ShareToken
	for _, t := range r.s.tokens {
		if t.ProjectID == projectID {
			cp := *t
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.ShareToken) int {
		return b.IssuedAt.Compare(a.IssuedAt)
	})
	return out, nil
}

// --- scope proofs ---

type scopeProofRepo struct{ s *Store }

func cloneProof(p *model.ScopeProof) *model.ScopeProof {
	cp := *p
	cp.Photos = slices.Clone(p.Photos)
	return &cp
}

func isOpen(status model.ScopeProofStatus) bool {
	return status == model.ScopeProofPending || status == model.ScopeProofFeedback
}

func (r scopeProofRepo) Create(_ context.Context, p *model.ScopeProof) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.proofs {
		if existing.ApprovalToken == p.ApprovalToken || existing.ID == p.ID {
			return repository.ErrConflict
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	r.s.proofs[p.ID] = cloneProof(p)
	return nil
}

func (r scopeProofRepo) GetByID(_ context.Context, id string) (*model.ScopeProof, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.proofs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProof(p), nil
}

func (r scopeProofRepo) GetByToken(_ context.Context, token string) (*model.ScopeProof, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.proofs {
		if p.ApprovalToken == token {
			return cloneProof(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r scopeProofRepo) LockByID(ctx context.Context, id string) (*model.ScopeProof, error) {
	return r.GetByID(ctx, id)
}

func (r scopeProofRepo) LockByToken(ctx context.Context, token string) (*model.ScopeProof, error) {
	return r.GetByToken(ctx, token)
}

func (r scopeProofRepo) Update(_ context.Context, p *model.ScopeProof) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.proofs[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	updated := cloneProof(p)
	// Неизменяемые поля остаются как при создании
	updated.OwnerID = existing.OwnerID
	updated.ApprovalToken = existing.ApprovalToken
	updated.TokenExpiresAt = existing.TokenExpiresAt
	updated.CreatedAt = existing.CreatedAt
	r.s.proofs[p.ID] = updated
	return nil
}

func (r scopeProofRepo) List(_ context.Context, filter model.ScopeProofFilter, now time.Time) ([]*model.ScopeProof, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ScopeProof
	for _, p := range r.s.proofs {
		if p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.ProjectID != nil && (p.ProjectID == nil || *p.ProjectID != *filter.ProjectID) {
			continue
		}
		if filter.Status != nil {
			effective := p.Status
			if isOpen(p.Status) && !p.TokenExpiresAt.After(now) {
				effective = model.ScopeProofExpired
			}
			if effective != *filter.Status {
				continue
			}
		}
		out = append(out, cloneProof(p))
	}
	slices.SortFunc(out, func(a, b *model.ScopeProof) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = model.DefaultListLimit
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r scopeProofRepo) ExpireStale(_ context.Context, now time.Time) ([]*model.ScopeProof, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ScopeProof
	for _, p := range r.s.proofs {
		if isOpen(p.Status) && !p.TokenExpiresAt.After(now) {
			p.Status = model.ScopeProofExpired
			p.UpdatedAt = time.Now().UTC()
			out = append(out, cloneProof(p))
		}
	}
	return out, nil
}

func (r scopeProofRepo) ReminderCandidates(_ context.Context, now, sentBefore time.Time, limit int) ([]model.ReminderCandidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	initial := make(map[string]time.Time)
	reminded := make(map[string]bool)
	for _, n := range r.s.notifications {
		switch n.Type {
		case model.NotificationInitial:
			if at, ok := initial[n.ScopeProofID]; !ok || n.SentAt.Before(at) {
				initial[n.ScopeProofID] = n.SentAt
			}
		case model.NotificationReminder:
			reminded[n.ScopeProofID] = true
		}
	}

	var out []model.ReminderCandidate
	for _, p := range r.s.proofs {
		sentAt, ok := initial[p.ID]
		if !ok || reminded[p.ID] || !isOpen(p.Status) || p.ClientEmail == nil {
			continue
		}
		if !p.TokenExpiresAt.After(now) || sentAt.After(sentBefore) {
			continue
		}
		out = append(out, model.ReminderCandidate{Proof: cloneProof(p), InitialSentAt: sentAt})
	}
	slices.SortFunc(out, func(a, b model.ReminderCandidate) int {
		return a.Proof.TokenExpiresAt.Compare(b.Proof.TokenExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- notifications ---

type notificationRepo struct{ s *Store }

func (r notificationRepo) Append(_ context.Context, n *model.ScopeProofNotification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.proofs[n.ScopeProofID]; !ok {
		return repository.ErrNotFound
	}
	cp := *n
	r.s.notifications = append(r.s.notifications, &cp)
	return nil
}

func (r notificationRepo) ListByScopeProof(_ context.Context, scopeProofID string) ([]*model.ScopeProofNotification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ScopeProofNotification
	for _, n := range r.s.notifications {
		if n.ScopeProofID == scopeProofID {
			cp := *n
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(a, b *model.ScopeProofNotification) int {
		return a.SentAt.Compare(b.SentAt)
	})
	return out, nil
}

// --- audit ---

type auditRepo struct{ s *Store }

func (r auditRepo) Append(_ context.Context, e *model.AuditEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextAuditID++
	e.ID = r.s.nextAuditID
	e.CreatedAt = time.Now().UTC()
	cp := *e
	r.s.audit = append(r.s.audit, &cp)
	return nil
}

func (r auditRepo) ListByEntity(_ context.Context, entityKind, entityID string) ([]*model.AuditEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.AuditEvent
	for _, e := range r.s.audit {
		if e.EntityKind == entityKind && e.EntityID == entityID {
			cp := *e
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(a, b *model.AuditEvent) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// --- subscriptions ---

type subscriptionRepo struct{ s *Store }

func (r subscriptionRepo) GetByUserID(_ context.Context, userID string) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subscriptions[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r subscriptionRepo) Upsert(_ context.Context, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub.UpdatedAt = time.Now().UTC()
	cp := *sub
	r.s.subscriptions[sub.UserID] = &cp
	return nil
}
