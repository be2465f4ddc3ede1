package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/tellbill/internal/domain/model"
	"github.com/bigkaa/tellbill/internal/domain/plan"
	"github.com/bigkaa/tellbill/internal/repository"
)

// countingSubs считает обращения к хранилищу подписок.
type countingSubs struct {
	subs  map[string]*model.Subscription
	calls int
	err   error
}

func (c *countingSubs) GetByUserID(_ context.Context, userID string) (*model.Subscription, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if s, ok := c.subs[userID]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (c *countingSubs) Upsert(_ context.Context, sub *model.Subscription) error {
	c.subs[sub.UserID] = sub
	return nil
}

func TestPlanService_CurrentPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expired := f.clock.Now().Add(-time.Minute)
	future := f.clock.Now().Add(24 * time.Hour)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("SetPlan() ошибка: %v", err)
		}
	}
	must(f.plans.SetPlan(ctx, "pro", plan.Professional, &future))
	must(f.plans.SetPlan(ctx, "lapsed", plan.Starter, &expired))
	must(f.plans.SetPlan(ctx, "forever", plan.Enterprise, nil))

	tests := []struct {
		user string
		want string
	}{
		{"pro", plan.Professional},
		{"lapsed", plan.Free},
		{"forever", plan.Enterprise},
		{"nobody", plan.Free},
	}
	for _, tt := range tests {
		got, err := f.plans.CurrentPlan(ctx, tt.user)
		if err != nil {
			t.Fatalf("CurrentPlan(%s) ошибка: %v", tt.user, err)
		}
		if got != tt.want {
			t.Errorf("CurrentPlan(%s) = %s, ожидается %s", tt.user, got, tt.want)
		}
	}
}

func TestPlanService_Verify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.plans.SetPlan(ctx, "starter", plan.Starter, nil); err != nil {
		t.Fatalf("SetPlan() ошибка: %v", err)
	}

	if err := f.plans.Verify(ctx, "starter", plan.ScopeProofPlans); err != nil {
		t.Errorf("Verify(starter) = %v, ожидается nil", err)
	}
	if err := f.plans.Verify(ctx, "free-user", plan.ScopeProofPlans); !errors.Is(err, ErrUpgradeRequired) {
		t.Errorf("Verify(free) = %v, ожидается ErrUpgradeRequired", err)
	}

	// SetPlan сбрасывает кэш: повышение тарифа действует сразу
	if err := f.plans.SetPlan(ctx, "free-user", plan.Professional, nil); err != nil {
		t.Fatalf("SetPlan() ошибка: %v", err)
	}
	if err := f.plans.Verify(ctx, "free-user", plan.ScopeProofPlans); err != nil {
		t.Errorf("Verify() после повышения = %v, ожидается nil", err)
	}
}

func TestPlanService_SetPlanValidation(t *testing.T) {
	f := newFixture(t)
	if err := f.plans.SetPlan(context.Background(), "u", "platinum", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("SetPlan(неизвестный) = %v, ожидается ErrValidation", err)
	}
	if err := f.plans.SetPlan(context.Background(), "", plan.Free, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("SetPlan(без пользователя) = %v, ожидается ErrValidation", err)
	}
}

func TestPlanService_Cache(t *testing.T) {
	subs := &countingSubs{subs: map[string]*model.Subscription{
		"u1": {UserID: "u1", Plan: plan.Starter},
	}}
	s := NewPlanService(subs, 8, time.Minute, testLogger())
	ctx := context.Background()

	for range 3 {
		if got, err := s.CurrentPlan(ctx, "u1"); err != nil || got != plan.Starter {
			t.Fatalf("CurrentPlan() = %s, %v", got, err)
		}
	}
	if subs.calls != 1 {
		t.Errorf("обращений к хранилищу = %d, ожидается 1", subs.calls)
	}

	failing := &countingSubs{err: errors.New("connection refused")}
	s = NewPlanService(failing, 8, time.Minute, testLogger())
	if _, err := s.CurrentPlan(ctx, "u1"); err == nil {
		t.Error("CurrentPlan() при ошибке хранилища = nil")
	}
}
