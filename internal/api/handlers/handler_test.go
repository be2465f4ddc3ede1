package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apierrors "github.com/bigkaa/tellbill/internal/api/errors"
	"github.com/bigkaa/tellbill/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type errorResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResp {
	t.Helper()
	var resp errorResp
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	return resp
}

func TestWriteContractorError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"валидация", fmt.Errorf("%w: name обязателен", service.ErrValidation), http.StatusBadRequest, apierrors.CodeValidationError, "name обязателен"},
		{"не найдено", service.ErrNotFound, http.StatusNotFound, apierrors.CodeNotFound, ""},
		{"чужой ресурс", service.ErrForbidden, http.StatusForbidden, apierrors.CodeForbidden, ""},
		{"тариф", service.ErrUpgradeRequired, http.StatusForbidden, apierrors.CodeUpgradeRequired, "upgradeRequired"},
		{"истёк", service.ErrTokenExpired, http.StatusBadRequest, apierrors.CodeTokenExpired, "expired"},
		{"обработан", service.ErrAlreadyProcessed, http.StatusBadRequest, apierrors.CodeAlreadyProcessed, "already processed"},
		{"статус", fmt.Errorf("%w: только pending", service.ErrInvalidState), http.StatusBadRequest, apierrors.CodeInvalidState, ""},
		{"хранилище", fmt.Errorf("%w: нет S3", service.ErrUnavailable), http.StatusServiceUnavailable, apierrors.CodeUnavailable, ""},
		{"коллизия", service.ErrTokenCollision, http.StatusInternalServerError, apierrors.CodeInternalError, ""},
		{"прочее", errors.New("connection reset"), http.StatusInternalServerError, apierrors.CodeInternalError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeContractorError(rec, testLogger(), "test", tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			resp := decodeError(t, rec)
			if resp.Success || resp.Code != tt.wantCode {
				t.Errorf("success=%v code=%q, ожидался %q", resp.Success, resp.Code, tt.wantCode)
			}
			if tt.wantMsg != "" && resp.Error != tt.wantMsg {
				t.Errorf("error = %q, ожидалось %q", resp.Error, tt.wantMsg)
			}
		})
	}
}

func TestClientErrorsHideDetails(t *testing.T) {
	internal := errors.New("pq: relation scope_proofs does not exist")

	rec := httptest.NewRecorder()
	(&ScopeProofHandler{logger: testLogger()}).writeClientError(rec, "test", internal)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("статус = %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "internal error" {
		t.Errorf("scope proof: error = %q", resp.Error)
	}

	rec = httptest.NewRecorder()
	(&ClientViewHandler{logger: testLogger()}).writePortalError(rec, "test", internal)
	if resp := decodeError(t, rec); resp.Error != "internal error" {
		t.Errorf("портал: error = %q", resp.Error)
	}
}

func TestWritePortalError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{service.ErrNotFound, http.StatusNotFound, "Invalid token"},
		{service.ErrEventNotFound, http.StatusNotFound, "Event not found"},
		{service.ErrTokenRevoked, http.StatusForbidden, "revoked"},
		{service.ErrTokenExpired, http.StatusForbidden, "expired"},
		{fmt.Errorf("%w: must be APPROVED or REJECTED", service.ErrValidation), http.StatusBadRequest, "must be APPROVED or REJECTED"},
		{service.ErrAlreadyProcessed, http.StatusBadRequest, "already processed"},
	}
	h := &ClientViewHandler{logger: testLogger()}
	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writePortalError(rec, "test", tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			if resp := decodeError(t, rec); resp.Error != tt.wantMsg {
				t.Errorf("error = %q, ожидалось %q", resp.Error, tt.wantMsg)
			}
		})
	}
}

func TestJSONAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`"500.00"`, "500.00", false},
		{`500`, "500", false},
		{`1250.5`, "1250.5", false},
		{`null`, "", false},
		{`true`, "", true},
		{`{"v":1}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var a jsonAmount
			err := json.Unmarshal([]byte(tt.in), &a)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ошибка = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(a) != tt.want {
				t.Errorf("значение = %q, ожидалось %q", a, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := decodeJSON(r, &dst); err == nil {
		t.Error("пустое тело: ожидалась ошибка")
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	if err := decodeJSON(r, &dst); err != nil || dst.Name != "x" {
		t.Errorf("decodeJSON() = %v, name=%q", err, dst.Name)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`+strings.Repeat(" ", maxBodyBytes)+`"x"}`))
	if err := decodeJSON(r, &dst); err == nil {
		t.Error("тело больше лимита: ожидалась ошибка")
	}
}

func TestPrincipalRequired(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if p := principal(rec, r); p != nil {
		t.Fatalf("principal() = %+v без middleware", p)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, ожидался 401", rec.Code)
	}
}
