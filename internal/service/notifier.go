// notifier.go — асинхронная отправка писем.
//
// Письмо отправляется в отдельной горутине с таймаутом TB_MAIL_TIMEOUT.
// Ошибка доставки логируется и учитывается в метриках, но не возвращается
// вызывающему: изменение статуса к этому моменту уже зафиксировано.
package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/a-h/templ"
)

// Типы писем для метрик и логов.
const (
	mailInitial  = "initial"
	mailReminder = "reminder"
	mailFeedback = "feedback"
)

// Mailer — отправка письма через почтовый сервис.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Notifier — fire-and-forget отправка писем с ограничением по времени.
type Notifier struct {
	mailer  Mailer
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewNotifier создаёт отправитель уведомлений.
func NewNotifier(mailer Mailer, timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		mailer:  mailer,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Send рендерит письмо и отправляет его в фоне. Не блокирует вызывающего.
func (n *Notifier) Send(kind, to, subject string, body templ.Component) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		var buf bytes.Buffer
		if err := body.Render(ctx, &buf); err != nil {
			notificationsTotal.WithLabelValues(kind, "failed").Inc()
			n.logger.Error("Ошибка формирования письма",
				slog.String("type", kind),
				slog.String("error", err.Error()),
			)
			return
		}

		start := time.Now()
		if err := n.mailer.Send(ctx, to, subject, buf.String()); err != nil {
			notificationsTotal.WithLabelValues(kind, "failed").Inc()
			n.logger.Warn("Письмо не доставлено",
				slog.String("type", kind),
				slog.String("recipient", to),
				slog.Duration("duration", time.Since(start)),
				slog.String("error", err.Error()),
			)
			return
		}

		notificationsTotal.WithLabelValues(kind, "sent").Inc()
		n.logger.Info("Письмо отправлено",
			slog.String("type", kind),
			slog.String("recipient", to),
			slog.Duration("duration", time.Since(start)),
		)
	}()
}

// Wait дожидается завершения всех отправок. Вызывается при остановке.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
