package model

import "time"

// TokenState — состояние ссылки клиентского портала на момент проверки.
type TokenState string

const (
	TokenActive  TokenState = "active"
	TokenRevoked TokenState = "revoked"
	TokenExpired TokenState = "expired"
)

// ShareToken — ссылка клиентского портала, привязанная к одному проекту.
// Хранится в таблице share_tokens, строки никогда не удаляются.
type ShareToken struct {
	// ID — UUID записи (наружу клиенту не отдаётся)
	ID string
	// Token — непрозрачная строка из ссылки
	Token     string
	OwnerID   string
	ProjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// RevokedAt — момент отзыва, nil для действующей ссылки
	RevokedAt *time.Time
	// AccessCount — число успешных открытий портала
	AccessCount    int64
	LastAccessedAt *time.Time
}

// State вычисляет состояние ссылки на момент now.
// Отзыв проверяется раньше истечения срока.
func (t *ShareToken) State(now time.Time) TokenState {
	if t.RevokedAt != nil {
		return TokenRevoked
	}
	if !now.Before(t.ExpiresAt) {
		return TokenExpired
	}
	return TokenActive
}
