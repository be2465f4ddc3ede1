package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticChecker struct {
	status, message string
}

func (c staticChecker) CheckReady() (string, string) { return c.status, c.message }

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     []DependencyCheck
		wantStatus int
		wantBody   string
	}{
		{
			name: "все ok",
			checks: []DependencyCheck{
				{Name: "postgresql", Checker: staticChecker{status: "ok"}},
				{Name: "jwks", Checker: staticChecker{status: "ok"}},
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "degraded не роняет readiness",
			checks: []DependencyCheck{
				{Name: "postgresql", Checker: staticChecker{status: "ok"}},
				{Name: "jwks", Checker: staticChecker{status: "degraded", message: "медленно"}},
			},
			wantStatus: http.StatusOK,
			wantBody:   "degraded",
		},
		{
			name: "fail важнее degraded",
			checks: []DependencyCheck{
				{Name: "postgresql", Checker: staticChecker{status: "fail"}},
				{Name: "jwks", Checker: staticChecker{status: "degraded"}},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "fail",
		},
		{
			name:       "nil checker",
			checks:     []DependencyCheck{{Name: "postgresql"}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "fail",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.checks...).HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			var resp healthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("ответ не JSON: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("status = %q, ожидался %q", resp.Status, tt.wantBody)
			}
			if len(resp.Checks) != len(tt.checks) {
				t.Errorf("checks = %d, ожидалось %d", len(resp.Checks), len(tt.checks))
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Service != "tellbill-api" || resp.Status != "ok" {
		t.Errorf("ответ = %+v", resp)
	}
}
