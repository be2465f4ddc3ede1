package approval

import (
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/tellbill/internal/domain/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// newProof создаёт scope proof с указанным статусом и сроком токена.
func newProof(status model.ScopeProofStatus, expiresIn time.Duration) *model.ScopeProof {
	return &model.ScopeProof{
		ID:             "sp-1",
		Status:         status,
		TokenExpiresAt: testNow.Add(expiresIn),
	}
}

// transitionCode извлекает код TransitionError или пустую строку.
func transitionCode(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		return ""
	}
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("ожидалась *TransitionError, получено %T: %v", err, err)
	}
	return te.Code
}

// TestEffective проверяет вычисление статуса expired при чтении.
func TestEffective(t *testing.T) {
	tests := []struct {
		name      string
		status    model.ScopeProofStatus
		expiresIn time.Duration
		want      model.ScopeProofStatus
	}{
		{"pending до срока", model.ScopeProofPending, time.Hour, model.ScopeProofPending},
		{"pending ровно в срок", model.ScopeProofPending, 0, model.ScopeProofExpired},
		{"pending после срока", model.ScopeProofPending, -time.Second, model.ScopeProofExpired},
		{"feedback после срока", model.ScopeProofFeedback, -time.Hour, model.ScopeProofExpired},
		{"approved после срока", model.ScopeProofApproved, -time.Hour, model.ScopeProofApproved},
		{"cancelled после срока", model.ScopeProofCancelled, -time.Hour, model.ScopeProofCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Effective(newProof(tt.status, tt.expiresIn), testNow)
			if got != tt.want {
				t.Errorf("Effective() = %s, ожидается %s", got, tt.want)
			}
		})
	}
}

// TestCanTransition_TerminalStatuses проверяет, что из конечных статусов переходов нет.
func TestCanTransition_TerminalStatuses(t *testing.T) {
	terminal := []model.ScopeProofStatus{
		model.ScopeProofApproved, model.ScopeProofRejected,
		model.ScopeProofCancelled, model.ScopeProofExpired,
	}
	targets := []model.ScopeProofStatus{
		model.ScopeProofPending, model.ScopeProofApproved, model.ScopeProofRejected,
		model.ScopeProofFeedback, model.ScopeProofCancelled, model.ScopeProofExpired,
	}

	for _, from := range terminal {
		for _, to := range targets {
			if CanTransition(from, to) {
				t.Errorf("%s → %s не должен быть допустим", from, to)
			}
		}
	}
}

// TestCheckClientAction проверяет действия клиента по токену.
func TestCheckClientAction(t *testing.T) {
	tests := []struct {
		name      string
		status    model.ScopeProofStatus
		expiresIn time.Duration
		target    model.ScopeProofStatus
		wantCode  string
	}{
		{"approve из pending", model.ScopeProofPending, time.Hour, model.ScopeProofApproved, ""},
		{"reject из pending", model.ScopeProofPending, time.Hour, model.ScopeProofRejected, ""},
		{"feedback из pending", model.ScopeProofPending, time.Hour, model.ScopeProofFeedback, ""},
		{"approve после feedback", model.ScopeProofFeedback, time.Hour, model.ScopeProofApproved, ""},
		{"повторный feedback", model.ScopeProofFeedback, time.Hour, model.ScopeProofFeedback, ""},
		{"approve после истечения", model.ScopeProofPending, -time.Minute, model.ScopeProofApproved, CodeExpired},
		{"feedback после истечения", model.ScopeProofFeedback, -time.Minute, model.ScopeProofFeedback, CodeExpired},
		{"повторный approve", model.ScopeProofApproved, time.Hour, model.ScopeProofApproved, CodeAlreadyProcessed},
		{"feedback после approve", model.ScopeProofApproved, time.Hour, model.ScopeProofFeedback, CodeAlreadyProcessed},
		{"approve после reject", model.ScopeProofRejected, time.Hour, model.ScopeProofApproved, CodeAlreadyProcessed},
		{"approve отменённого", model.ScopeProofCancelled, time.Hour, model.ScopeProofApproved, CodeAlreadyProcessed},
		{"клиент не может отменить", model.ScopeProofFeedback, time.Hour, model.ScopeProofCancelled, CodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckClientAction(newProof(tt.status, tt.expiresIn), tt.target, testNow)
			if got := transitionCode(t, err); got != tt.wantCode {
				t.Errorf("код = %q, ожидается %q (err=%v)", got, tt.wantCode, err)
			}
		})
	}
}

// TestCheckClientAction_Messages проверяет тексты ошибок для портала.
func TestCheckClientAction_Messages(t *testing.T) {
	var te *TransitionError

	err := CheckClientAction(newProof(model.ScopeProofApproved, time.Hour), model.ScopeProofApproved, testNow)
	if !errors.As(err, &te) || te.Message != "already processed" {
		t.Errorf("сообщение = %v, ожидается already processed", err)
	}

	err = CheckClientAction(newProof(model.ScopeProofPending, -time.Hour), model.ScopeProofApproved, testNow)
	if !errors.As(err, &te) || te.Message != "expired" {
		t.Errorf("сообщение = %v, ожидается expired", err)
	}
}

// TestContractorChecks проверяет запрос, повторную отправку и отмену.
func TestContractorChecks(t *testing.T) {
	tests := []struct {
		name      string
		check     func(*model.ScopeProof, time.Time) error
		status    model.ScopeProofStatus
		expiresIn time.Duration
		wantCode  string
	}{
		{"request из pending", CheckRequest, model.ScopeProofPending, time.Hour, ""},
		{"request из feedback", CheckRequest, model.ScopeProofFeedback, time.Hour, CodeInvalidTransition},
		{"request после истечения", CheckRequest, model.ScopeProofPending, -time.Hour, CodeExpired},
		{"resend из pending", CheckResend, model.ScopeProofPending, time.Hour, ""},
		{"resend из feedback", CheckResend, model.ScopeProofFeedback, time.Hour, ""},
		{"resend после истечения", CheckResend, model.ScopeProofPending, -time.Second, CodeExpired},
		{"resend после approve", CheckResend, model.ScopeProofApproved, time.Hour, CodeAlreadyProcessed},
		{"cancel из pending", CheckCancel, model.ScopeProofPending, time.Hour, ""},
		{"cancel из approved", CheckCancel, model.ScopeProofApproved, time.Hour, CodeInvalidTransition},
		{"cancel из feedback", CheckCancel, model.ScopeProofFeedback, time.Hour, CodeInvalidTransition},
		{"cancel после истечения", CheckCancel, model.ScopeProofPending, -time.Hour, CodeExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(newProof(tt.status, tt.expiresIn), testNow)
			if got := transitionCode(t, err); got != tt.wantCode {
				t.Errorf("код = %q, ожидается %q (err=%v)", got, tt.wantCode, err)
			}
		})
	}
}

// TestDecideActivity проверяет решение клиента по событию ленты.
func TestDecideActivity(t *testing.T) {
	tests := []struct {
		name        string
		current     model.ApprovalStatus
		requested   model.ApprovalStatus
		wantChanged bool
		wantCode    string
	}{
		{"approve из NONE", model.ApprovalNone, model.ApprovalApproved, true, ""},
		{"reject из PENDING", model.ApprovalPending, model.ApprovalRejected, true, ""},
		{"повторный approve", model.ApprovalApproved, model.ApprovalApproved, false, ""},
		{"смена решения", model.ApprovalApproved, model.ApprovalRejected, false, CodeAlreadyProcessed},
		{"PENDING как решение", model.ApprovalNone, model.ApprovalPending, false, CodeInvalidDecision},
		{"NONE как решение", model.ApprovalApproved, model.ApprovalNone, false, CodeInvalidDecision},
		{"произвольная строка", model.ApprovalNone, model.ApprovalStatus("approved"), false, CodeInvalidDecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := DecideActivity(tt.current, tt.requested)
			if got := transitionCode(t, err); got != tt.wantCode {
				t.Errorf("код = %q, ожидается %q", got, tt.wantCode)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, ожидается %v", changed, tt.wantChanged)
			}
		})
	}
}
