package model

import "time"

// ActorType — кто совершил действие.
type ActorType string

const (
	ActorContractor ActorType = "contractor"
	ActorClient     ActorType = "client"
	ActorSystem     ActorType = "system"
)

// Действия, попадающие в журнал аудита.
const (
	AuditTokenIssued         = "share_token.issued"
	AuditTokenRevoked        = "share_token.revoked"
	AuditEventApproved       = "activity.approval_decided"
	AuditVisibilityChanged   = "activity.visibility_changed"
	AuditScopeProofCreated   = "scope_proof.created"
	AuditScopeProofRequested = "scope_proof.approval_requested"
	AuditScopeProofResent    = "scope_proof.resent"
	AuditScopeProofReminded  = "scope_proof.reminded"
	AuditScopeProofApproved  = "scope_proof.approved"
	AuditScopeProofRejected  = "scope_proof.rejected"
	AuditScopeProofFeedback  = "scope_proof.feedback"
	AuditScopeProofCancelled = "scope_proof.cancelled"
	AuditScopeProofExpired   = "scope_proof.expired"
)

// Типы сущностей журнала аудита.
const (
	EntityShareToken = "share_token"
	EntityActivity   = "activity_event"
	EntityScopeProof = "scope_proof"
)

// AuditEvent — запись журнала аудита (кто, что, когда, над чем).
// Хранится в таблице audit_events.
type AuditEvent struct {
	ID         int64
	ActorType  ActorType
	ActorID    string
	Action     string
	EntityKind string
	EntityID   string
	ProjectID  *string
	Details    map[string]any
	CreatedAt  time.Time
}
