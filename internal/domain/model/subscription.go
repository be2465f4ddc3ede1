package model

import "time"

// Subscription — тариф подрядчика.
// Хранится в таблице subscriptions, заполняется биллинговым бэкендом.
type Subscription struct {
	UserID string
	Plan   string
	// ExpiresAt — окончание оплаченного периода (nil — бессрочно)
	ExpiresAt *time.Time
	UpdatedAt time.Time
}
