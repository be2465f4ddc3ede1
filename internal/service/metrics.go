// metrics.go — Prometheus метрики бизнес-операций TellBill.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики предметной области.
var (
	shareTokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tellbill_share_tokens_issued_total",
		Help: "Количество выпущенных ссылок клиентского портала.",
	})

	// result: ok, not_found, revoked, expired
	portalResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tellbill_portal_resolutions_total",
		Help: "Результаты открытия клиентского портала по ссылке.",
	}, []string{"result"})

	scopeProofTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tellbill_scope_proof_transitions_total",
		Help: "Переходы статусов scope proof по целевому статусу.",
	}, []string{"to"})

	// type: initial, reminder, feedback; result: sent, failed
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tellbill_notifications_total",
		Help: "Отправленные письма по типу и результату.",
	}, []string{"type", "result"})

	planCacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tellbill_plan_cache_requests_total",
		Help: "Обращения к кэшу тарифов (hit/miss).",
	}, []string{"result"})

	housekeepingRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tellbill_housekeeping_runs_total",
		Help: "Количество выполненных проходов housekeeping.",
	})
)
