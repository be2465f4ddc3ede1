// Пакет service — бизнес-логика TellBill.
//
// common.go — общие помощники сервисов: токены, ссылки портала, суммы, владение проектом.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/repository"
)

// tokenBytes — длина токена до кодирования (256 бит).
const tokenBytes = 32

// Clock возвращает текущее время. В тестах подменяется.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// NewToken генерирует непрозрачный токен: 32 байта crypto/rand,
// base64url без выравнивания.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ошибка генерации токена: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// portalLink собирает ссылку клиентского портала.
func portalLink(baseURL, section, token string) string {
	return baseURL + "/" + section + "/" + url.PathEscape(token)
}

// ClientViewLink возвращает ссылку на портал проекта.
func ClientViewLink(baseURL, token string) string {
	return portalLink(baseURL, "client-view", token)
}

// ScopeProofLink возвращает ссылку клиента на scope proof.
func ScopeProofLink(baseURL, token string) string {
	return portalLink(baseURL, "scope-proof", token)
}

// validID проверяет, что идентификатор — UUID. Иначе запись заведомо не существует.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ownedProject загружает проект и проверяет, что он принадлежит ownerID.
func ownedProject(ctx context.Context, projects repository.ProjectRepository, ownerID, projectID string) (*model.Project, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: projectId обязателен", ErrValidation)
	}
	if !validID(projectID) {
		return nil, ErrNotFound
	}
	p, err := projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение проекта: %w", err)
	}
	if !p.OwnedBy(ownerID) {
		return nil, ErrForbidden
	}
	return p, nil
}

// ParseAmount переводит десятичную сумму ("500", "500.5", "500.00") в центы.
// Отрицательные значения и больше двух знаков после точки не допускаются.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: сумма не указана", ErrValidation)
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || strings.HasPrefix(whole, "-") || strings.HasPrefix(whole, "+") {
		return 0, fmt.Errorf("%w: некорректная сумма %q", ErrValidation, s)
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("%w: некорректная сумма %q", ErrValidation, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: некорректная сумма %q", ErrValidation, s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || strings.ContainsAny(frac, "+-") {
		return 0, fmt.Errorf("%w: некорректная сумма %q", ErrValidation, s)
	}
	if units > (1<<63-1-cents)/100 {
		return 0, fmt.Errorf("%w: сумма слишком велика", ErrValidation)
	}
	return units*100 + cents, nil
}

// FormatAmount форматирует центы как десятичную сумму с двумя знаками.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
