// housekeeping.go — фоновое обслуживание scope proof.
//
// HousekeepingService запускает горутину с ticker (TB_HOUSEKEEPING_INTERVAL).
// За один проход:
//  1. Открытые scope proof с истёкшим токеном получают сохранённый статус expired
//     (для отчётов; при чтении истечение вычисляется и без этого).
//  2. Открытым scope proof, которым первичное письмо отправлено раньше
//     TB_REMINDER_AFTER и напоминания ещё не было, отправляется одно напоминание.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/tellbill/internal/domain/approval"
	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/repository"
)

// reminderBatchSize — максимум напоминаний за один проход.
const reminderBatchSize = 100

// SweepResult — итог одного прохода housekeeping.
type SweepResult struct {
	Expired   int
	Reminded  int
	StartedAt time.Time
	Duration  time.Duration
}

// HousekeepingService — фоновое истечение и напоминания по scope proof.
type HousekeepingService struct {
	tx            repository.Transactor
	proofs        repository.ScopeProofRepository
	notifications repository.NotificationRepository
	audit         *AuditWriter
	notifier      *Notifier
	links         func(token string) string
	reminderAfter time.Duration
	interval      time.Duration
	now           Clock
	logger        *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHousekeepingService создаёт сервис обслуживания.
// links строит ссылку клиента по токену (ScopeProofService.Link).
func NewHousekeepingService(
	tx repository.Transactor,
	proofs repository.ScopeProofRepository,
	notifications repository.NotificationRepository,
	audit *AuditWriter,
	notifier *Notifier,
	links func(token string) string,
	reminderAfter time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *HousekeepingService {
	return &HousekeepingService{
		tx:            tx,
		proofs:        proofs,
		notifications: notifications,
		audit:         audit,
		notifier:      notifier,
		links:         links,
		reminderAfter: reminderAfter,
		interval:      interval,
		now:           systemClock,
		logger:        logger.With(slog.String("component", "housekeeping")),
	}
}

// SetClock подменяет источник времени.
func (s *HousekeepingService) SetClock(now Clock) {
	s.now = now
}

// Start запускает фоновую горутину. При interval <= 0 ничего не делает.
func (s *HousekeepingService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Housekeeping отключён")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Housekeeping запущен",
			slog.String("interval", s.interval.String()),
			slog.String("reminder_after", s.reminderAfter.String()),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Housekeeping остановлен")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.logger.Error("Ошибка прохода housekeeping",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (s *HousekeepingService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// RunOnce выполняет один проход: истечение, затем напоминания.
func (s *HousekeepingService) RunOnce(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{StartedAt: s.now()}
	defer func() { housekeepingRunsTotal.Inc() }()

	expired, err := s.expireStale(ctx, result.StartedAt)
	if err != nil {
		return nil, err
	}
	result.Expired = expired

	reminded, err := s.sendReminders(ctx, result.StartedAt)
	if err != nil {
		return nil, err
	}
	result.Reminded = reminded
	result.Duration = time.Since(start)

	if result.Expired > 0 || result.Reminded > 0 {
		s.logger.Info("Проход housekeeping завершён",
			slog.Int("expired", result.Expired),
			slog.Int("reminded", result.Reminded),
			slog.Duration("duration", result.Duration),
		)
	}
	return result, nil
}

// expireStale помечает истёкшие scope proof одной транзакцией вместе с аудитом.
func (s *HousekeepingService) expireStale(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		expired, err := s.proofs.ExpireStale(ctx, now)
		if err != nil {
			return fmt.Errorf("пометка истёкших scope proof: %w", err)
		}
		for _, p := range expired {
			if err := s.audit.Record(ctx, proofEvent(p, model.ActorSystem, "housekeeping",
				model.AuditScopeProofExpired, map[string]any{
					"token_expires_at": p.TokenExpiresAt.Format(time.RFC3339),
				})); err != nil {
				return err
			}
		}
		count = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		scopeProofTransitionsTotal.WithLabelValues(string(model.ScopeProofExpired)).Add(float64(count))
	}
	return count, nil
}

// sendReminders отправляет по одному напоминанию каждому кандидату.
// Ошибка по одному scope proof не прерывает проход.
func (s *HousekeepingService) sendReminders(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.proofs.ReminderCandidates(ctx, now, now.Add(-s.reminderAfter), reminderBatchSize)
	if err != nil {
		return 0, fmt.Errorf("поиск scope proof для напоминания: %w", err)
	}

	var sent int
	for _, c := range candidates {
		p, err := s.remind(ctx, c.Proof.ID, now)
		if err != nil {
			s.logger.Warn("Напоминание не записано",
				slog.String("scope_proof_id", c.Proof.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if p == nil {
			continue
		}
		s.notifier.Send(mailReminder, *p.ClientEmail, subjectReminder, reminderEmail(p, s.links(p.ApprovalToken), now))
		sent++
	}
	return sent, nil
}

// remind повторно проверяет scope proof под блокировкой и записывает напоминание.
// Возвращает nil, если scope proof успел закрыться.
func (s *HousekeepingService) remind(ctx context.Context, id string, now time.Time) (*model.ScopeProof, error) {
	var result *model.ScopeProof
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.proofs.LockByID(ctx, id)
		if err != nil {
			return fmt.Errorf("блокировка scope proof: %w", err)
		}
		if !approval.IsOpen(approval.Effective(p, now)) || p.ClientEmail == nil {
			return nil
		}
		// Другой экземпляр мог отправить напоминание между выборкой и блокировкой
		sent, err := s.notifications.ListByScopeProof(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("получение журнала писем: %w", err)
		}
		for _, n := range sent {
			if n.Type == model.NotificationReminder {
				return nil
			}
		}

		if err := s.notifications.Append(ctx, &model.ScopeProofNotification{
			ID:           uuid.New().String(),
			ScopeProofID: p.ID,
			Type:         model.NotificationReminder,
			Channel:      model.ChannelEmail,
			Recipient:    *p.ClientEmail,
			SentAt:       now,
		}); err != nil {
			return fmt.Errorf("запись журнала писем: %w", err)
		}
		result = p
		return s.audit.Record(ctx, proofEvent(p, model.ActorSystem, "housekeeping",
			model.AuditScopeProofReminded, map[string]any{"client_email": *p.ClientEmail}))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
