package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/repository/memrepo"
)

const testBaseURL = "https://app.tellbill.test"

// testLogger — логгер, отбрасывающий вывод.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock — управляемые часы.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sentMail — письмо, принятое fakeMailer.
type sentMail struct {
	To      string
	Subject string
	HTML    string
}

// fakeMailer запоминает письма. sendFn, если задан, заменяет отправку.
type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentMail
	sendFn func(ctx context.Context) error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	if m.sendFn != nil {
		if err := m.sendFn(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// fakePhotoStore подписывает ключи предсказуемыми URL.
type fakePhotoStore struct{}

func (fakePhotoStore) PresignGet(_ context.Context, key string) (string, error) {
	if key == "broken.jpg" {
		return "", errors.New("подпись невозможна")
	}
	return "https://photos.test/" + key + "?sig=get", nil
}

func (fakePhotoStore) PresignPut(_ context.Context, key, _ string) (string, time.Time, error) {
	return "https://photos.test/" + key + "?sig=put", time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC), nil
}

// fixture — набор сервисов поверх хранилища в памяти.
type fixture struct {
	store        *memrepo.Store
	clock        *testClock
	mailer       *fakeMailer
	notifier     *Notifier
	audit        *AuditWriter
	sharing      *SharingService
	portal       *PortalService
	activities   *ActivityService
	proofs       *ScopeProofService
	housekeeping *HousekeepingService
	plans        *PlanService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := testLogger()
	store := memrepo.New()
	tx := memrepo.Tx{}
	clock := newTestClock()
	mailer := &fakeMailer{}
	notifier := NewNotifier(mailer, time.Second, logger)
	audit := NewAuditWriter(store.Audit(), logger)

	f := &fixture{
		store:    store,
		clock:    clock,
		mailer:   mailer,
		notifier: notifier,
		audit:    audit,
		sharing: NewSharingService(tx, store.Projects(), store.ShareTokens(), audit,
			testBaseURL, 7*24*time.Hour, 90*24*time.Hour, logger),
		portal: NewPortalService(tx, store.Projects(), store.Activities(), store.ShareTokens(), audit, logger),
		activities: NewActivityService(tx, store.Projects(), store.Activities(), audit, logger),
		proofs: NewScopeProofService(tx, store.ScopeProofs(), store.Notifications(), store.Projects(),
			audit, notifier, fakePhotoStore{}, testBaseURL, 24*time.Hour, logger),
		plans: NewPlanService(store.Subscriptions(), 16, time.Minute, logger),
	}
	f.housekeeping = NewHousekeepingService(tx, store.ScopeProofs(), store.Notifications(), audit,
		notifier, f.proofs.Link, 12*time.Hour, time.Minute, logger)

	f.sharing.SetClock(clock.Now)
	f.portal.SetClock(clock.Now)
	f.proofs.SetClock(clock.Now)
	f.housekeeping.SetClock(clock.Now)
	f.plans.SetClock(clock.Now)

	t.Cleanup(notifier.Wait)
	return f
}

// project создаёт проект владельца.
func (f *fixture) project(t *testing.T, owner string) *model.Project {
	t.Helper()
	p, err := f.activities.CreateProject(context.Background(), owner, ProjectInput{Name: "Ремонт кухни"})
	if err != nil {
		t.Fatalf("CreateProject() ошибка: %v", err)
	}
	return p
}

// event добавляет событие в ленту проекта.
func (f *fixture) event(t *testing.T, owner, projectID string, in ActivityInput) *model.ActivityEvent {
	t.Helper()
	e, err := f.activities.CreateActivity(context.Background(), owner, projectID, in)
	if err != nil {
		t.Fatalf("CreateActivity() ошибка: %v", err)
	}
	return e
}

// auditActions возвращает действия журнала аудита по сущности.
func (f *fixture) auditActions(entityID string) []string {
	var actions []string
	for _, e := range f.store.AuditEvents() {
		if e.EntityID == entityID {
			actions = append(actions, e.Action)
		}
	}
	return actions
}

func ptr[T any](v T) *T { return &v }
