// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/tellbill/internal/domain/approval"
)

var (
	// ErrNotFound — ресурс или токен не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrForbidden — ресурс принадлежит другому подрядчику.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrTokenRevoked — ссылка отозвана подрядчиком.
	ErrTokenRevoked = errors.New("ссылка отозвана")
	// ErrTokenExpired — срок действия токена истёк.
	ErrTokenExpired = errors.New("срок действия токена истёк")
	// ErrAlreadyProcessed — решение по запросу уже принято.
	ErrAlreadyProcessed = errors.New("запрос уже обработан")
	// ErrInvalidState — операция недопустима в текущем статусе.
	ErrInvalidState = errors.New("недопустимый статус для операции")
	// ErrUpgradeRequired — функция недоступна на текущем тарифе.
	ErrUpgradeRequired = errors.New("функция недоступна на текущем тарифе")
	// ErrTokenCollision — сгенерированный токен совпал с существующим.
	ErrTokenCollision = errors.New("коллизия токена")
	// ErrEventNotFound — событие ленты не найдено или скрыто от клиента.
	ErrEventNotFound = fmt.Errorf("%w: событие ленты", ErrNotFound)
	// ErrUnavailable — необходимая внешняя зависимость не настроена.
	ErrUnavailable = errors.New("сервис недоступен")
)

// transitionError переводит ошибку перехода статуса в ошибку сервисного слоя.
func transitionError(err error) error {
	var te *approval.TransitionError
	if !errors.As(err, &te) {
		return err
	}
	switch te.Code {
	case approval.CodeExpired:
		return ErrTokenExpired
	case approval.CodeAlreadyProcessed:
		return ErrAlreadyProcessed
	case approval.CodeInvalidDecision:
		return fmt.Errorf("%w: %s", ErrValidation, te.Message)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidState, te.Message)
	}
}
