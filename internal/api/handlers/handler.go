// handler.go — общие помощники обработчиков API TellBill.
// Каждое семейство обработчиков переводит ошибки сервисного слоя в HTTP
// одной функцией (write*Error); тела ответов формирует пакет api/errors.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/tellbill/internal/api/errors"
	"github.com/bigkaa/tellbill/internal/api/middleware"
	"github.com/bigkaa/tellbill/internal/service"
)

// maxBodyBytes — максимальный размер JSON-тела запроса.
const maxBodyBytes = 1 << 20

// Тексты ошибок, которые клиентский портал показывает как есть.
const (
	msgInvalidToken     = "Invalid token"
	msgRevoked          = "revoked"
	msgExpired          = "expired"
	msgAlreadyProcessed = "already processed"
	msgInternal         = "internal error"
)

// writeJSON записывает успешный ответ в формате {"success": true, "data": ...}.
func writeJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteData(w, status, data)
}

// decodeJSON читает JSON-тело запроса в dst. Неизвестные поля допускаются.
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("пустое тело запроса")
		}
		return fmt.Errorf("некорректный JSON: %w", err)
	}
	return nil
}

// validationMessage возвращает текст ошибки валидации без префикса sentinel.
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
}

// principal возвращает аутентифицированного подрядчика.
// nil означает, что маршрут подключён без JWT middleware; ответ 401 уже записан.
func principal(w http.ResponseWriter, r *http.Request) *middleware.Principal {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
	}
	return p
}

// writeContractorError — общий перевод ошибок сервисного слоя для маршрутов подрядчика.
func writeContractorError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, validationMessage(err))
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Не найдено")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Доступ запрещён")
	case errors.Is(err, service.ErrUpgradeRequired):
		apierrors.UpgradeRequired(w)
	case errors.Is(err, service.ErrTokenExpired):
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeTokenExpired, msgExpired)
	case errors.Is(err, service.ErrAlreadyProcessed):
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeAlreadyProcessed, msgAlreadyProcessed)
	case errors.Is(err, service.ErrInvalidState):
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeInvalidState, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		apierrors.Unavailable(w, err.Error())
	default:
		logger.Error("Ошибка обработки запроса",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, err.Error())
	}
}

// logInternal логирует внутреннюю ошибку клиентского маршрута и пишет 500
// с общим текстом: детали клиенту не раскрываются.
func logInternal(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	logger.Error("Ошибка обработки запроса клиента",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, msgInternal)
}
