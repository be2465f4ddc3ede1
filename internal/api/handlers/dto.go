package handlers

import (
	"time"

	"github.com/bigkaa/tellbill/internal/domain/billing"
	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/service"
)

// JSON-представления сущностей. Время — RFC 3339 в UTC.

type projectDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ClientName  *string   `json:"clientName,omitempty"`
	ClientEmail *string   `json:"clientEmail,omitempty"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toProjectDTO(p *model.Project) projectDTO {
	return projectDTO{
		ID:          p.ID,
		Name:        p.Name,
		ClientName:  p.ClientName,
		ClientEmail: p.ClientEmail,
		Currency:    p.Currency,
		CreatedAt:   p.CreatedAt.UTC(),
	}
}

type activityDTO struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"projectId"`
	Type            string     `json:"type"`
	Title           string     `json:"title"`
	AmountCents     int64      `json:"amountCents"`
	OccurredAt      time.Time  `json:"occurredAt"`
	VisibleToClient bool       `json:"visibleToClient"`
	ApprovalStatus  string     `json:"approvalStatus"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ApprovalNotes   *string    `json:"approvalNotes,omitempty"`
}

func toActivityDTO(e *model.ActivityEvent) activityDTO {
	return activityDTO{
		ID:              e.ID,
		ProjectID:       e.ProjectID,
		Type:            string(e.Type),
		Title:           e.Title,
		AmountCents:     e.AmountCents,
		OccurredAt:      e.OccurredAt.UTC(),
		VisibleToClient: e.VisibleToClient,
		ApprovalStatus:  string(e.ApprovalStatus),
		ApprovedAt:      e.ApprovedAt,
		ApprovalNotes:   e.ApprovalNotes,
	}
}

func toActivityDTOs(events []*model.ActivityEvent) []activityDTO {
	out := make([]activityDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toActivityDTO(e))
	}
	return out
}

// clientProjectDTO — проект в клиентском портале: без id и контактов клиента.
type clientProjectDTO struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// clientActivityDTO — событие ленты для клиента. id нужен для маршрута approve;
// проект и признак видимости клиенту не отдаются.
type clientActivityDTO struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	AmountCents    int64      `json:"amountCents"`
	OccurredAt     time.Time  `json:"occurredAt"`
	ApprovalStatus string     `json:"approvalStatus"`
	ApprovedAt     *time.Time `json:"approvedAt,omitempty"`
	ApprovalNotes  *string    `json:"approvalNotes,omitempty"`
}

func toClientActivityDTO(e *model.ActivityEvent) clientActivityDTO {
	return clientActivityDTO{
		ID:             e.ID,
		Type:           string(e.Type),
		Title:          e.Title,
		AmountCents:    e.AmountCents,
		OccurredAt:     e.OccurredAt.UTC(),
		ApprovalStatus: string(e.ApprovalStatus),
		ApprovedAt:     e.ApprovedAt,
		ApprovalNotes:  e.ApprovalNotes,
	}
}

type shareTokenDTO struct {
	Token          string     `json:"token"`
	ProjectID      string     `json:"projectId"`
	Link           string     `json:"link"`
	IssuedAt       time.Time  `json:"issuedAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
	AccessCount    int64      `json:"accessCount"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty"`
	State          string     `json:"state"`
}

func toShareTokenDTO(t *model.ShareToken, link string, state model.TokenState) shareTokenDTO {
	return shareTokenDTO{
		Token:          t.Token,
		ProjectID:      t.ProjectID,
		Link:           link,
		IssuedAt:       t.IssuedAt.UTC(),
		ExpiresAt:      t.ExpiresAt.UTC(),
		RevokedAt:      t.RevokedAt,
		AccessCount:    t.AccessCount,
		LastAccessedAt: t.LastAccessedAt,
		State:          string(state),
	}
}

type summaryDTO struct {
	LaborBilled           int64  `json:"laborBilled"`
	MaterialBilled        int64  `json:"materialBilled"`
	PaidAmount            int64  `json:"paidAmount"`
	OutstandingAmount     int64  `json:"outstandingAmount"`
	BalanceDue            int64  `json:"balanceDue"`
	PendingApprovalAmount int64  `json:"pendingApprovalAmount"`
	Currency              string `json:"currency"`
}

func toSummaryDTO(s *billing.Summary) summaryDTO {
	return summaryDTO{
		LaborBilled:           s.LaborBilled,
		MaterialBilled:        s.MaterialBilled,
		PaidAmount:            s.PaidAmount,
		OutstandingAmount:     s.OutstandingAmount,
		BalanceDue:            s.BalanceDue,
		PendingApprovalAmount: s.PendingApprovalAmount,
		Currency:              s.Currency,
	}
}

// scopeProofDTO — scope proof для подрядчика.
type scopeProofDTO struct {
	ID                 string     `json:"id"`
	ProjectID          *string    `json:"projectId,omitempty"`
	Description        string     `json:"description"`
	EstimatedCost      string     `json:"estimatedCost"`
	EstimatedCostCents int64      `json:"estimatedCostCents"`
	Photos             []string   `json:"photos"`
	Status             string     `json:"status"`
	ApprovalLink       string     `json:"approvalLink"`
	TokenExpiresAt     time.Time  `json:"tokenExpiresAt"`
	ClientEmail        *string    `json:"clientEmail,omitempty"`
	ApprovedAt         *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy         *string    `json:"approvedBy,omitempty"`
	RejectedAt         *time.Time `json:"rejectedAt,omitempty"`
	RejectedBy         *string    `json:"rejectedBy,omitempty"`
	RejectionReason    *string    `json:"rejectionReason,omitempty"`
	Feedback           *string    `json:"feedback,omitempty"`
	FeedbackBy         *string    `json:"feedbackBy,omitempty"`
	FeedbackAt         *time.Time `json:"feedbackAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func toScopeProofDTO(p *model.ScopeProof, link string) scopeProofDTO {
	photos := p.Photos
	if photos == nil {
		photos = []string{}
	}
	return scopeProofDTO{
		ID:                 p.ID,
		ProjectID:          p.ProjectID,
		Description:        p.Description,
		EstimatedCost:      service.FormatAmount(p.EstimatedCostCents),
		EstimatedCostCents: p.EstimatedCostCents,
		Photos:             photos,
		Status:             string(p.Status),
		ApprovalLink:       link,
		TokenExpiresAt:     p.TokenExpiresAt.UTC(),
		ClientEmail:        p.ClientEmail,
		ApprovedAt:         p.ApprovedAt,
		ApprovedBy:         p.ApprovedBy,
		RejectedAt:         p.RejectedAt,
		RejectedBy:         p.RejectedBy,
		RejectionReason:    p.RejectionReason,
		Feedback:           p.Feedback,
		FeedbackBy:         p.FeedbackBy,
		FeedbackAt:         p.FeedbackAt,
		CancelledAt:        p.CancelledAt,
		CreatedAt:          p.CreatedAt.UTC(),
	}
}

// clientScopeProofDTO — scope proof для клиента: без id, владельца и email.
type clientScopeProofDTO struct {
	Description        string    `json:"description"`
	EstimatedCost      string    `json:"estimatedCost"`
	EstimatedCostCents int64     `json:"estimatedCostCents"`
	Photos             []string  `json:"photos"`
	Status             string    `json:"status"`
	TokenExpiresAt     time.Time `json:"tokenExpiresAt"`
	Feedback           *string   `json:"feedback,omitempty"`
}

func toClientScopeProofDTO(p *model.ScopeProof, photos []string) clientScopeProofDTO {
	if photos == nil {
		photos = []string{}
	}
	return clientScopeProofDTO{
		Description:        p.Description,
		EstimatedCost:      service.FormatAmount(p.EstimatedCostCents),
		EstimatedCostCents: p.EstimatedCostCents,
		Photos:             photos,
		Status:             string(p.Status),
		TokenExpiresAt:     p.TokenExpiresAt.UTC(),
		Feedback:           p.Feedback,
	}
}

type notificationDTO struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sentAt"`
}

type auditDTO struct {
	Action    string         `json:"action"`
	ActorType string         `json:"actorType"`
	ActorID   string         `json:"actorId"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
