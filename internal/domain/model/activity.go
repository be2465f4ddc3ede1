package model

import "time"

// ActivityType — тип события в ленте проекта.
type ActivityType string

const (
	ActivityLabor    ActivityType = "LABOR"
	ActivityMaterial ActivityType = "MATERIAL"
	ActivityProgress ActivityType = "PROGRESS"
	ActivityAlert    ActivityType = "ALERT"
	// ActivityReceipt — поступившая от клиента оплата
	ActivityReceipt ActivityType = "RECEIPT"
)

// Valid проверяет, что тип события известен.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityLabor, ActivityMaterial, ActivityProgress, ActivityAlert, ActivityReceipt:
		return true
	}
	return false
}

// ApprovalStatus — статус согласования события клиентом.
type ApprovalStatus string

const (
	// ApprovalNone — событие не требует согласования
	ApprovalNone     ApprovalStatus = "NONE"
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Valid проверяет, что статус известен.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalNone, ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// IsDecision сообщает, является ли статус решением клиента.
func (s ApprovalStatus) IsDecision() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// ActivityEvent — событие в ленте проекта (работы, материалы, оплаты).
// Хранится в таблице activity_events.
type ActivityEvent struct {
	ID        string
	ProjectID string
	Type      ActivityType
	Title     string
	// AmountCents — сумма в центах (0 для событий без денег)
	AmountCents int64
	// OccurredAt — момент события, по нему сортируется лента
	OccurredAt      time.Time
	VisibleToClient bool
	ApprovalStatus  ApprovalStatus
	ApprovedAt      *time.Time
	ApprovalNotes   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
