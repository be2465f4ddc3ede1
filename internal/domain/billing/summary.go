// Пакет billing — расчёт сводки по счёту проекта для клиентского портала.
// Все суммы — целые центы.
package billing

import "github.com/bigkaa/tellbill/internal/domain/model"

// Summary — сводка по счёту: выставлено, оплачено, остаток к оплате.
type Summary struct {
	LaborBilled    int64
	MaterialBilled int64
	PaidAmount     int64
	// OutstandingAmount = LaborBilled + MaterialBilled - PaidAmount, может быть отрицательным
	OutstandingAmount int64
	// BalanceDue = max(0, OutstandingAmount)
	BalanceDue int64
	// PendingApprovalAmount — работы и материалы, ожидающие решения клиента
	PendingApprovalAmount int64
	Currency              string
}

// billable сообщает, входит ли событие в выставленные суммы.
// Отклонённые и ещё не согласованные изменения не учитываются.
func billable(e *model.ActivityEvent) bool {
	return e.ApprovalStatus == model.ApprovalNone || e.ApprovalStatus == model.ApprovalApproved
}

// Calculate считает сводку по видимым клиенту событиям.
// Скрытые события не учитываются, даже если переданы.
func Calculate(events []*model.ActivityEvent, currency string) Summary {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	s := Summary{Currency: currency}

	for _, e := range events {
		if !e.VisibleToClient {
			continue
		}
		switch e.Type {
		case model.ActivityLabor, model.ActivityMaterial:
			if e.ApprovalStatus == model.ApprovalPending {
				s.PendingApprovalAmount += e.AmountCents
				continue
			}
			if !billable(e) {
				continue
			}
			if e.Type == model.ActivityLabor {
				s.LaborBilled += e.AmountCents
			} else {
				s.MaterialBilled += e.AmountCents
			}
		case model.ActivityReceipt:
			if billable(e) {
				s.PaidAmount += e.AmountCents
			}
		}
	}

	s.OutstandingAmount = s.LaborBilled + s.MaterialBilled - s.PaidAmount
	s.BalanceDue = max(0, s.OutstandingAmount)
	return s
}
