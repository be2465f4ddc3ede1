// scope_proofs.go — согласование дополнительных работ.
//
// Маршруты подрядчика требуют JWT (и тариф professional+ кроме статуса).
// Маршруты клиента открыты и используют один перевод ошибок токена для
// GET, approve, reject и feedback: неизвестный токен 404, истёкший 410,
// закрытый запрос 400.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/tellbill/internal/api/errors"
	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/service"
)

// ScopeProofHandler — обработчик /api/scope-proof.
type ScopeProofHandler struct {
	svc    *service.ScopeProofService
	logger *slog.Logger
}

// NewScopeProofHandler создаёт обработчик scope proof.
func NewScopeProofHandler(svc *service.ScopeProofService, logger *slog.Logger) *ScopeProofHandler {
	return &ScopeProofHandler{svc: svc, logger: logger.With(slog.String("handler", "scope_proof"))}
}

// writeClientError переводит ошибку действия клиента по токену.
func (h *ScopeProofHandler) writeClientError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, msgInvalidToken)
	case errors.Is(err, service.ErrTokenExpired):
		apierrors.WriteError(w, http.StatusGone, apierrors.CodeTokenExpired, msgExpired)
	case errors.Is(err, service.ErrAlreadyProcessed):
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeAlreadyProcessed, msgAlreadyProcessed)
	case errors.Is(err, service.ErrInvalidState):
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeInvalidState, validationMessage(err))
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, validationMessage(err))
	default:
		logInternal(w, h.logger, op, err)
	}
}

// --- Маршруты подрядчика ---

type createScopeProofRequest struct {
	ProjectID   *string `json:"projectId"`
	Description string  `json:"description"`
	// EstimatedCost — строка ("500.00") или число (500)
	EstimatedCost jsonAmount `json:"estimatedCost"`
	Photos        []string   `json:"photos"`
}

// jsonAmount принимает сумму строкой или числом и хранит её текстом.
type jsonAmount string

func (a *jsonAmount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*a = jsonAmount(s)
		return nil
	}
	if string(b) == "null" {
		*a = ""
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return errors.New("estimatedCost должен быть числом или строкой")
	}
	*a = jsonAmount(b)
	return nil
}

// Create — POST /api/scope-proof.
func (h *ScopeProofHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	var req createScopeProofRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	proof, err := h.svc.Create(r.Context(), p.UserID, p.Email, service.CreateScopeProofInput{
		ProjectID:     req.ProjectID,
		Description:   req.Description,
		EstimatedCost: string(req.EstimatedCost),
		Photos:        req.Photos,
	})
	if err != nil {
		writeContractorError(w, h.logger, "create-scope-proof", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScopeProofDTO(proof, h.svc.Link(proof.ApprovalToken)))
}

// List — GET /api/scope-proof?status=&projectId=&limit=&offset=.
// limit=0 — размер по умолчанию, больше model.MaxListLimit урезается.
func (h *ScopeProofHandler) List(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	q := r.URL.Query()
	filter := model.ScopeProofFilter{OwnerID: p.UserID}
	if v := q.Get("status"); v != "" {
		status := model.ScopeProofStatus(v)
		filter.Status = &status
	}
	if v := q.Get("projectId"); v != "" {
		filter.ProjectID = &v
	}
	var err error
	if filter.Limit, err = queryInt(q.Get("limit"), model.DefaultListLimit); err != nil {
		apierrors.ValidationError(w, "limit должен быть целым числом")
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset"), 0); err != nil {
		apierrors.ValidationError(w, "offset должен быть целым числом")
		return
	}

	proofs, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeContractorError(w, h.logger, "list-scope-proofs", err)
		return
	}
	out := make([]scopeProofDTO, 0, len(proofs))
	for _, proof := range proofs {
		out = append(out, toScopeProofDTO(proof, h.svc.Link(proof.ApprovalToken)))
	}
	writeJSON(w, http.StatusOK, out)
}

type scopeProofStatusResponse struct {
	scopeProofDTO
	Notifications []notificationDTO `json:"notifications"`
	History       []auditDTO        `json:"history"`
}

// Status — GET /api/scope-proof/status/{id}. Доступен на любом тарифе.
func (h *ScopeProofHandler) Status(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	view, err := h.svc.Status(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeContractorError(w, h.logger, "scope-proof-status", err)
		return
	}

	resp := scopeProofStatusResponse{
		scopeProofDTO: toScopeProofDTO(view.Proof, h.svc.Link(view.Proof.ApprovalToken)),
		Notifications: make([]notificationDTO, 0, len(view.Notifications)),
		History:       make([]auditDTO, 0, len(view.History)),
	}
	for _, n := range view.Notifications {
		resp.Notifications = append(resp.Notifications, notificationDTO{
			Type:      string(n.Type),
			Channel:   n.Channel,
			Recipient: n.Recipient,
			SentAt:    n.SentAt.UTC(),
		})
	}
	for _, e := range view.History {
		resp.History = append(resp.History, auditDTO{
			Action:    e.Action,
			ActorType: string(e.ActorType),
			ActorID:   e.ActorID,
			Details:   e.Details,
			CreatedAt: e.CreatedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type clientEmailRequest struct {
	ClientEmail string `json:"clientEmail"`
}

// RequestApproval — POST /api/scope-proof/{id}/request.
func (h *ScopeProofHandler) RequestApproval(w http.ResponseWriter, r *http.Request) {
	h.sendLink(w, r, "request-approval", h.svc.RequestApproval)
}

// Resend — POST /api/scope-proof/{id}/resend.
func (h *ScopeProofHandler) Resend(w http.ResponseWriter, r *http.Request) {
	h.sendLink(w, r, "resend", h.svc.Resend)
}

type sendFunc func(ctx context.Context, ownerID, id, clientEmail string) (*model.ScopeProof, error)

// sendLink — общая часть первичной и повторной отправки ссылки клиенту.
func (h *ScopeProofHandler) sendLink(w http.ResponseWriter, r *http.Request, op string, send sendFunc) {
	p := principal(w, r)
	if p == nil {
		return
	}
	var req clientEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	proof, err := send(r.Context(), p.UserID, chi.URLParam(r, "id"), req.ClientEmail)
	if err != nil {
		writeContractorError(w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toScopeProofDTO(proof, h.svc.Link(proof.ApprovalToken)))
}

// Cancel — DELETE /api/scope-proof/{id}. Запись остаётся со статусом cancelled.
func (h *ScopeProofHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	proof, err := h.svc.Cancel(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeContractorError(w, h.logger, "cancel", err)
		return
	}
	writeJSON(w, http.StatusOK, toScopeProofDTO(proof, h.svc.Link(proof.ApprovalToken)))
}

type uploadURLRequest struct {
	ContentType string `json:"contentType"`
}

type uploadURLResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadURL — POST /api/scope-proof/photos/upload-url.
func (h *ScopeProofHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	var req uploadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	target, err := h.svc.UploadURL(r.Context(), p.UserID, req.ContentType)
	if err != nil {
		writeContractorError(w, h.logger, "upload-url", err)
		return
	}
	writeJSON(w, http.StatusOK, uploadURLResponse{Key: target.Key, URL: target.URL, ExpiresAt: target.ExpiresAt.UTC()})
}

// --- Маршруты клиента ---

// ClientGet — GET /api/scope-proof/{token}.
func (h *ScopeProofHandler) ClientGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.ClientGet(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeClientError(w, "client-get", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientScopeProofDTO(view.Proof, view.PhotoURLs))
}

// ClientApprove — POST /api/scope-proof/approve/{token}.
func (h *ScopeProofHandler) ClientApprove(w http.ResponseWriter, r *http.Request) {
	var req clientEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	proof, err := h.svc.ClientApprove(r.Context(), chi.URLParam(r, "token"), req.ClientEmail)
	if err != nil {
		h.writeClientError(w, "client-approve", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientScopeProofDTO(proof, h.svc.PhotoURLs(r.Context(), proof)))
}

type clientRejectRequest struct {
	ClientEmail string  `json:"clientEmail"`
	Reason      *string `json:"reason"`
}

// ClientReject — POST /api/scope-proof/reject/{token}.
func (h *ScopeProofHandler) ClientReject(w http.ResponseWriter, r *http.Request) {
	var req clientRejectRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	proof, err := h.svc.ClientReject(r.Context(), chi.URLParam(r, "token"), req.ClientEmail, req.Reason)
	if err != nil {
		h.writeClientError(w, "client-reject", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientScopeProofDTO(proof, h.svc.PhotoURLs(r.Context(), proof)))
}

type clientFeedbackRequest struct {
	ClientEmail string `json:"clientEmail"`
	Feedback    string `json:"feedback"`
}

// ClientFeedback — POST /api/scope-proof/feedback/{token}.
func (h *ScopeProofHandler) ClientFeedback(w http.ResponseWriter, r *http.Request) {
	var req clientFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	proof, err := h.svc.ClientFeedback(r.Context(), chi.URLParam(r, "token"), req.ClientEmail, req.Feedback)
	if err != nil {
		h.writeClientError(w, "client-feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientScopeProofDTO(proof, h.svc.PhotoURLs(r.Context(), proof)))
}

// PublicRoutes монтирует маршруты клиента.
func (h *ScopeProofHandler) PublicRoutes(r chi.Router) {
	r.Get("/{token}", h.ClientGet)
	r.Post("/approve/{token}", h.ClientApprove)
	r.Post("/reject/{token}", h.ClientReject)
	r.Post("/feedback/{token}", h.ClientFeedback)
}

// StatusRoutes монтирует маршруты подрядчика без проверки тарифа.
func (h *ScopeProofHandler) StatusRoutes(r chi.Router) {
	r.Get("/status/{id}", h.Status)
}

// ProfessionalRoutes монтирует маршруты подрядчика, требующие тариф professional+.
func (h *ScopeProofHandler) ProfessionalRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/photos/upload-url", h.UploadURL)
	r.Post("/{id}/request", h.RequestApproval)
	r.Post("/{id}/resend", h.Resend)
	r.Delete("/{id}", h.Cancel)
}

// queryInt разбирает необязательный целочисленный query-параметр.
func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
