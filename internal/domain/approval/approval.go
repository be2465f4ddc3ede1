// Пакет approval — правила переходов статусов согласования.
//
// Scope proof:
//   - pending → approved | rejected | feedback | cancelled | expired
//   - feedback → approved | rejected | feedback | expired (клиент может передумать до истечения токена)
//   - approved, rejected, cancelled, expired — конечные статусы
//
// Статус expired вычисляется при чтении из token_expires_at и блокирует
// любые дальнейшие переходы. Состояние хранится в БД, поэтому пакет
// не держит своего состояния и работает с переданной записью.
//
// Событие ленты (change order): NONE | PENDING → APPROVED | REJECTED.
// Повтор того же решения — no-op, смена решения запрещена.
package approval

import (
	"fmt"
	"time"

	"github.com/bigkaa/tellbill/internal/domain/model"
)

// Коды ошибок переходов.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeExpired           = "EXPIRED"
	CodeAlreadyProcessed  = "ALREADY_PROCESSED"
	CodeInvalidDecision   = "INVALID_DECISION"
)

// Тексты ошибок, которые показываются клиенту в портале как есть.
const (
	MessageExpired          = "expired"
	MessageAlreadyProcessed = "already processed"
	MessageInvalidDecision  = "must be APPROVED or REJECTED"
)

// TransitionError — ошибка недопустимого перехода статуса.
type TransitionError struct {
	Code    string
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// validTransitions — матрица допустимых переходов scope proof.
// Ключ — эффективный текущий статус, значение — допустимые целевые статусы.
var validTransitions = map[model.ScopeProofStatus]map[model.ScopeProofStatus]bool{
	model.ScopeProofPending: {
		model.ScopeProofApproved:  true,
		model.ScopeProofRejected:  true,
		model.ScopeProofFeedback:  true,
		model.ScopeProofCancelled: true,
		model.ScopeProofExpired:   true,
	},
	model.ScopeProofFeedback: {
		model.ScopeProofApproved: true,
		model.ScopeProofRejected: true,
		model.ScopeProofFeedback: true,
		model.ScopeProofExpired:  true,
	},
	model.ScopeProofApproved:  {},
	model.ScopeProofRejected:  {},
	model.ScopeProofCancelled: {},
	model.ScopeProofExpired:   {},
}

// IsValidStatus проверяет, что статус известен.
func IsValidStatus(s model.ScopeProofStatus) bool {
	_, ok := validTransitions[s]
	return ok
}

// IsOpen сообщает, ждёт ли scope proof решения клиента.
func IsOpen(s model.ScopeProofStatus) bool {
	return s == model.ScopeProofPending || s == model.ScopeProofFeedback
}

// Effective возвращает статус с учётом срока токена на момент now.
// Открытый scope proof с истёкшим токеном считается expired.
func Effective(p *model.ScopeProof, now time.Time) model.ScopeProofStatus {
	if IsOpen(p.Status) && !now.Before(p.TokenExpiresAt) {
		return model.ScopeProofExpired
	}
	return p.Status
}

// CanTransition проверяет допустимость перехода между статусами.
func CanTransition(from, to model.ScopeProofStatus) bool {
	return validTransitions[from][to]
}

// CheckClientAction проверяет действие клиента по токену (approve, reject, feedback).
// Порядок проверок: истечение срока, затем закрытый статус.
func CheckClientAction(p *model.ScopeProof, target model.ScopeProofStatus, now time.Time) error {
	current := Effective(p, now)
	if current == model.ScopeProofExpired {
		return &TransitionError{Code: CodeExpired, Message: MessageExpired}
	}
	if !CanTransition(current, target) {
		if !IsOpen(current) {
			return &TransitionError{Code: CodeAlreadyProcessed, Message: MessageAlreadyProcessed}
		}
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("переход %s → %s недопустим", current, target),
		}
	}
	return nil
}

// CheckRequest проверяет отправку первичного запроса клиенту: только из pending.
func CheckRequest(p *model.ScopeProof, now time.Time) error {
	current := Effective(p, now)
	if current == model.ScopeProofExpired {
		return &TransitionError{Code: CodeExpired, Message: MessageExpired}
	}
	if current != model.ScopeProofPending {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("запрос согласования возможен только из pending, текущий статус %s", current),
		}
	}
	return nil
}

// CheckResend проверяет повторную отправку ссылки: статус не меняется,
// нужен открытый scope proof с действующим токеном.
func CheckResend(p *model.ScopeProof, now time.Time) error {
	current := Effective(p, now)
	if current == model.ScopeProofExpired {
		return &TransitionError{Code: CodeExpired, Message: MessageExpired}
	}
	if !IsOpen(current) {
		return &TransitionError{Code: CodeAlreadyProcessed, Message: MessageAlreadyProcessed}
	}
	return nil
}

// CheckCancel проверяет отмену подрядчиком: только из pending.
func CheckCancel(p *model.ScopeProof, now time.Time) error {
	current := Effective(p, now)
	if current == model.ScopeProofExpired {
		return &TransitionError{Code: CodeExpired, Message: MessageExpired}
	}
	if current != model.ScopeProofPending {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("отмена возможна только из pending, текущий статус %s", current),
		}
	}
	return nil
}

// DecideActivity проверяет решение клиента по событию ленты.
// changed=false означает повтор того же решения, запись менять не нужно.
func DecideActivity(current, requested model.ApprovalStatus) (changed bool, err error) {
	if !requested.IsDecision() {
		return false, &TransitionError{Code: CodeInvalidDecision, Message: MessageInvalidDecision}
	}
	if current == requested {
		return false, nil
	}
	if current.IsDecision() {
		return false, &TransitionError{Code: CodeAlreadyProcessed, Message: MessageAlreadyProcessed}
	}
	return true, nil
}
