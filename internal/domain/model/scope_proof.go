package model

import "time"

// ScopeProofStatus — статус запроса на согласование дополнительных работ.
type ScopeProofStatus string

const (
	ScopeProofPending  ScopeProofStatus = "pending"
	ScopeProofApproved ScopeProofStatus = "approved"
	ScopeProofRejected ScopeProofStatus = "rejected"
	// ScopeProofFeedback — клиент оставил комментарий, решение ещё возможно
	ScopeProofFeedback ScopeProofStatus = "feedback"
	// ScopeProofExpired — вычисляется при чтении, в БД пишется только housekeeping
	ScopeProofExpired   ScopeProofStatus = "expired"
	ScopeProofCancelled ScopeProofStatus = "cancelled"
)

// ScopeProof — запрос на согласование дополнительных работ (change order).
// Хранится в таблице scope_proofs.
type ScopeProof struct {
	ID      string
	OwnerID string
	// OwnerEmail — email подрядчика на момент создания, для уведомлений о комментариях
	OwnerEmail *string
	ProjectID  *string
	// Description — что именно нужно сделать сверх сметы
	Description        string
	EstimatedCostCents int64
	// Photos — ключи объектов в хранилище фото
	Photos []string
	// ApprovalToken — токен из ссылки клиента, отдельное пространство от ShareToken
	ApprovalToken  string
	TokenExpiresAt time.Time
	// Status — сохранённый статус; эффективный учитывает срок токена
	Status      ScopeProofStatus
	ClientEmail *string

	ApprovedAt      *time.Time
	ApprovedBy      *string
	RejectedAt      *time.Time
	RejectedBy      *string
	RejectionReason *string
	Feedback        *string
	FeedbackBy      *string
	FeedbackAt      *time.Time
	CancelledAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScopeProofFilter — фильтр списка scope proof подрядчика.
// Размер страницы списка scope proof.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type ScopeProofFilter struct {
	OwnerID string
	// Status — фильтр по эффективному статусу (nil — все)
	Status    *ScopeProofStatus
	ProjectID *string
	// Limit — размер страницы: 0 — DefaultListLimit, больше MaxListLimit урезается
	Limit  int
	Offset int
}

// NotificationType — тип письма клиенту.
type NotificationType string

const (
	NotificationInitial  NotificationType = "initial"
	NotificationReminder NotificationType = "reminder"
)

// ChannelEmail — единственный канал доставки уведомлений.
const ChannelEmail = "email"

// ScopeProofNotification — запись журнала отправленных клиенту писем.
// Только добавление, записи не изменяются и не удаляются.
type ScopeProofNotification struct {
	ID           string
	ScopeProofID string
	Type         NotificationType
	Channel      string
	Recipient    string
	SentAt       time.Time
}

// ReminderCandidate — открытый scope proof, которому пора отправить напоминание.
type ReminderCandidate struct {
	Proof *ScopeProof
	// InitialSentAt — время первичного письма
	InitialSentAt time.Time
}
