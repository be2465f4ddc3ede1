// client_view.go — клиентский портал по ссылке (без аутентификации).
// Ответы содержат только короткие причины отказа без внутренних деталей.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/tellbill/internal/api/errors"
	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/service"
)

// ClientViewHandler — обработчик /api/client-view/{token}.
type ClientViewHandler struct {
	svc    *service.PortalService
	logger *slog.Logger
}

// NewClientViewHandler создаёт обработчик клиентского портала.
func NewClientViewHandler(svc *service.PortalService, logger *slog.Logger) *ClientViewHandler {
	return &ClientViewHandler{svc: svc, logger: logger.With(slog.String("handler", "client_view"))}
}

// writePortalError переводит ошибку портала в ответ клиенту.
// Отозванная и истёкшая ссылки дают 403 с разными причинами.
func (h *ClientViewHandler) writePortalError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		apierrors.NotFound(w, "Event not found")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, msgInvalidToken)
	case errors.Is(err, service.ErrTokenRevoked):
		apierrors.WriteError(w, http.StatusForbidden, apierrors.CodeTokenRevoked, msgRevoked)
	case errors.Is(err, service.ErrTokenExpired):
		apierrors.WriteError(w, http.StatusForbidden, apierrors.CodeTokenExpired, msgExpired)
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, validationMessage(err))
	case errors.Is(err, service.ErrAlreadyProcessed):
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeAlreadyProcessed, msgAlreadyProcessed)
	case errors.Is(err, service.ErrInvalidState):
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeInvalidState, validationMessage(err))
	default:
		logInternal(w, h.logger, op, err)
	}
}

type clientViewResponse struct {
	Project     clientProjectDTO    `json:"project"`
	Activities  []clientActivityDTO `json:"activities"`
	AccessCount int64               `json:"accessCount"`
}

// Get — GET /api/client-view/{token}. Каждый успешный вызов учитывается в accessCount.
func (h *ClientViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writePortalError(w, "client-view", err)
		return
	}
	activities := make([]clientActivityDTO, 0, len(view.Activities))
	for _, e := range view.Activities {
		activities = append(activities, toClientActivityDTO(e))
	}
	writeJSON(w, http.StatusOK, clientViewResponse{
		Project:     clientProjectDTO{Name: view.Project.Name, Currency: view.Project.Currency},
		Activities:  activities,
		AccessCount: view.AccessCount,
	})
}

// Summary — GET /api/client-view/{token}/summary.
func (h *ClientViewHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writePortalError(w, "client-view-summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

type approveEventRequest struct {
	ApprovalStatus string  `json:"approvalStatus"`
	ApprovalNotes  *string `json:"approvalNotes"`
}

// Approve — POST /api/client-view/{token}/approve/{eventId}.
func (h *ClientViewHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveEventRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	event, err := h.svc.Approve(r.Context(),
		chi.URLParam(r, "token"),
		chi.URLParam(r, "eventId"),
		model.ApprovalStatus(req.ApprovalStatus),
		req.ApprovalNotes,
	)
	if err != nil {
		h.writePortalError(w, "client-view-approve", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientActivityDTO(event))
}

// Routes монтирует маршруты портала на r (префикс /api/client-view).
func (h *ClientViewHandler) Routes(r chi.Router) {
	r.Get("/{token}", h.Get)
	r.Get("/{token}/summary", h.Summary)
	r.Post("/{token}/approve/{eventId}", h.Approve)
}
