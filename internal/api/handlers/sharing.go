// sharing.go — выдача и отзыв клиентских ссылок (маршруты подрядчика).
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/tellbill/internal/api/errors"
	"github.com/bigkaa/tellbill/internal/service"
)

// SharingHandler — обработчик /api/client-sharing.
type SharingHandler struct {
	svc    *service.SharingService
	logger *slog.Logger
}

// NewSharingHandler создаёт обработчик клиентских ссылок.
func NewSharingHandler(svc *service.SharingService, logger *slog.Logger) *SharingHandler {
	return &SharingHandler{svc: svc, logger: logger.With(slog.String("handler", "sharing"))}
}

type generateTokenRequest struct {
	ProjectID string `json:"projectId"`
	// ExpiresIn — время жизни в секундах; отсутствие означает значение по умолчанию
	ExpiresIn *int64 `json:"expiresIn"`
}

type generateTokenResponse struct {
	Token     string    `json:"token"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// GenerateToken — POST /api/client-sharing/generate-token.
func (h *SharingHandler) GenerateToken(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	var req generateTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	issued, err := h.svc.Issue(r.Context(), p.UserID, req.ProjectID, req.ExpiresIn)
	if err != nil {
		writeContractorError(w, h.logger, "generate-token", err)
		return
	}
	writeJSON(w, http.StatusCreated, generateTokenResponse{
		Token:     issued.Token.Token,
		Link:      issued.Link,
		ExpiresAt: issued.Token.ExpiresAt.UTC(),
	})
}

type revokeTokenRequest struct {
	Token string `json:"token"`
}

// RevokeToken — POST /api/client-sharing/revoke-token. Повторный отзыв не ошибка.
func (h *SharingHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	var req revokeTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if req.Token == "" {
		apierrors.ValidationError(w, "token обязателен")
		return
	}

	t, err := h.svc.Revoke(r.Context(), p.UserID, req.Token)
	if err != nil {
		writeContractorError(w, h.logger, "revoke-token", err)
		return
	}
	writeJSON(w, http.StatusOK, toShareTokenDTO(t, h.svc.Link(t.Token), h.svc.TokenState(t)))
}

// ListTokens — GET /api/client-sharing/tokens?projectId=.
func (h *SharingHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		apierrors.ValidationError(w, "projectId обязателен")
		return
	}

	tokens, err := h.svc.ListTokens(r.Context(), p.UserID, projectID)
	if err != nil {
		writeContractorError(w, h.logger, "list-tokens", err)
		return
	}
	out := make([]shareTokenDTO, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, toShareTokenDTO(t, h.svc.Link(t.Token), h.svc.TokenState(t)))
	}
	writeJSON(w, http.StatusOK, out)
}

// Routes монтирует маршруты на r. Аутентификация подключается снаружи.
func (h *SharingHandler) Routes(r chi.Router) {
	r.Post("/generate-token", h.GenerateToken)
	r.Post("/revoke-token", h.RevokeToken)
	r.Get("/tokens", h.ListTokens)
}
