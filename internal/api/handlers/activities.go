// activities.go — проекты и лента событий подрядчика.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/tellbill/internal/api/errors"
	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/service"
)

// ActivityHandler — обработчик /api/projects и /api/activities.
type ActivityHandler struct {
	svc    *service.ActivityService
	logger *slog.Logger
}

// NewActivityHandler создаёт обработчик проектов и ленты.
func NewActivityHandler(svc *service.ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{svc: svc, logger: logger.With(slog.String("handler", "activities"))}
}

type createProjectRequest struct {
	Name        string  `json:"name"`
	ClientName  *string `json:"clientName"`
	ClientEmail *string `json:"clientEmail"`
	Currency    string  `json:"currency"`
}

// CreateProject — POST /api/projects.
func (h *ActivityHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	project, err := h.svc.CreateProject(r.Context(), p.UserID, service.ProjectInput{
		Name:        req.Name,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Currency:    req.Currency,
	})
	if err != nil {
		writeContractorError(w, h.logger, "create-project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(project))
}

type createActivityRequest struct {
	Type            string     `json:"type"`
	Title           string     `json:"title"`
	AmountCents     int64      `json:"amountCents"`
	OccurredAt      *time.Time `json:"occurredAt"`
	VisibleToClient *bool      `json:"visibleToClient"`
	ApprovalStatus  string     `json:"approvalStatus"`
}

// CreateActivity — POST /api/projects/{id}/activities.
func (h *ActivityHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	var req createActivityRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	event, err := h.svc.CreateActivity(r.Context(), p.UserID, chi.URLParam(r, "id"), service.ActivityInput{
		Type:            model.ActivityType(req.Type),
		Title:           req.Title,
		AmountCents:     req.AmountCents,
		OccurredAt:      req.OccurredAt,
		VisibleToClient: req.VisibleToClient,
		ApprovalStatus:  model.ApprovalStatus(req.ApprovalStatus),
	})
	if err != nil {
		writeContractorError(w, h.logger, "create-activity", err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityDTO(event))
}

// ListActivities — GET /api/projects/{id}/activities, включая скрытые события.
func (h *ActivityHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	events, err := h.svc.ListActivities(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeContractorError(w, h.logger, "list-activities", err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTOs(events))
}

type visibilityRequest struct {
	VisibleToClient *bool `json:"visibleToClient"`
}

// SetVisibility — PATCH /api/activities/{eventId}/visibility.
func (h *ActivityHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "visibleToClient должен быть boolean")
		return
	}
	if req.VisibleToClient == nil {
		apierrors.ValidationError(w, "visibleToClient обязателен")
		return
	}

	event, err := h.svc.SetVisibility(r.Context(), p.UserID, chi.URLParam(r, "eventId"), *req.VisibleToClient)
	if err != nil {
		writeContractorError(w, h.logger, "set-visibility", err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(event))
}

// ProjectRoutes монтирует маршруты на префикс /api/projects.
func (h *ActivityHandler) ProjectRoutes(r chi.Router) {
	r.Post("/", h.CreateProject)
	r.Get("/{id}/activities", h.ListActivities)
	r.Post("/{id}/activities", h.CreateActivity)
}

// ActivityRoutes монтирует маршруты на префикс /api/activities.
func (h *ActivityHandler) ActivityRoutes(r chi.Router) {
	r.Patch("/{eventId}/visibility", h.SetVisibility)
}
