package model

import "time"

// DefaultCurrency — валюта проекта, если подрядчик её не указал.
const DefaultCurrency = "USD"

// Project — проект подрядчика.
// Хранится в таблице projects.
type Project struct {
	// ID — UUID проекта
	ID string
	// OwnerID — идентификатор подрядчика (sub из JWT)
	OwnerID string
	// Name — название проекта
	Name string
	// ClientName — имя клиента (опционально)
	ClientName *string
	// ClientEmail — email клиента (опционально)
	ClientEmail *string
	// Currency — код валюты ISO 4217
	Currency string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// OwnedBy сообщает, принадлежит ли проект подрядчику.
func (p *Project) OwnedBy(ownerID string) bool {
	return p != nil && ownerID != "" && p.OwnerID == ownerID
}
