package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apierrors "github.com/bigkaa/tellbill/internal/api/errors"
	"github.com/bigkaa/tellbill/internal/api/handlers"
	"github.com/bigkaa/tellbill/internal/api/middleware"
	"github.com/bigkaa/tellbill/internal/domain/plan"
	"github.com/bigkaa/tellbill/internal/repository/memrepo"
	"github.com/bigkaa/tellbill/internal/service"
)

const (
	testBaseURL = "https://app.tellbill.test"
	// testUserHeader — заголовок, из которого тестовая аутентификация берёт подрядчика
	testUserHeader = "X-Test-User"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
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

type nopMailer struct{}

func (nopMailer) Send(context.Context, string, string, string) error { return nil }

// headerAuth — аутентификация для тестов: подрядчик из заголовка X-Test-User.
func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(testUserHeader)
		if user == "" {
			apierrors.Unauthorized(w, "Требуется аутентификация")
			return
		}
		p := &middleware.Principal{UserID: user, Email: user + "@example.com"}
		next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), p)))
	})
}

type testEnv struct {
	srv   *httptest.Server
	clock *testClock
	plans *service.PlanService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPhotos(t, nil)
}

// newTestEnvWithPhotos собирает окружение с хранилищем фото photos (nil — без хранилища).
func newTestEnvWithPhotos(t *testing.T, photos service.PhotoStore) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memrepo.New()
	tx := memrepo.Tx{}
	clock := &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	audit := service.NewAuditWriter(store.Audit(), logger)
	notifier := service.NewNotifier(nopMailer{}, time.Second, logger)
	t.Cleanup(notifier.Wait)

	sharing := service.NewSharingService(tx, store.Projects(), store.ShareTokens(), audit,
		testBaseURL, 7*24*time.Hour, 90*24*time.Hour, logger)
	portal := service.NewPortalService(tx, store.Projects(), store.Activities(), store.ShareTokens(), audit, logger)
	activities := service.NewActivityService(tx, store.Projects(), store.Activities(), audit, logger)
	proofs := service.NewScopeProofService(tx, store.ScopeProofs(), store.Notifications(), store.Projects(),
		audit, notifier, photos, testBaseURL, 24*time.Hour, logger)
	plans := service.NewPlanService(store.Subscriptions(), 16, time.Minute, logger)

	sharing.SetClock(clock.Now)
	portal.SetClock(clock.Now)
	proofs.SetClock(clock.Now)
	plans.SetClock(clock.Now)

	router := NewRouter(RouterDeps{
		Health:             handlers.NewHealthHandler(handlers.DependencyCheck{Name: "postgresql"}),
		Sharing:            handlers.NewSharingHandler(sharing, logger),
		ClientView:         handlers.NewClientViewHandler(portal, logger),
		Activities:         handlers.NewActivityHandler(activities, logger),
		ScopeProofs:        handlers.NewScopeProofHandler(proofs, logger),
		Auth:               headerAuth,
		Plans:              plans,
		CORSAllowedOrigins: []string{"https://portal.tellbill.test"},
	}, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, clock: clock, plans: plans}
}

// envelope — общий формат ответов API.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

// do выполняет запрос от имени user (пусто — без аутентификации).
func (e *testEnv) do(t *testing.T, method, path, user string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("json.Marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: ответ не JSON: %v", method, path, err)
	}
	return resp.StatusCode, env
}

// mustDo выполняет запрос и проверяет статус, декодируя data в out.
func (e *testEnv) mustDo(t *testing.T, method, path, user string, body any, wantStatus int, out any) {
	t.Helper()
	status, env := e.do(t, method, path, user, body)
	if status != wantStatus {
		t.Fatalf("%s %s: статус %d, ожидался %d (error=%q code=%q)", method, path, status, wantStatus, env.Error, env.Code)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("%s %s: разбор data: %v", method, path, err)
		}
	}
}

// expectError проверяет ответ ошибки.
func (e *testEnv) expectError(t *testing.T, method, path, user string, body any, wantStatus int, wantMsg string) {
	t.Helper()
	status, env := e.do(t, method, path, user, body)
	if status != wantStatus {
		t.Fatalf("%s %s: статус %d, ожидался %d (error=%q)", method, path, status, wantStatus, env.Error)
	}
	if env.Success {
		t.Errorf("%s %s: success = true в ответе ошибки", method, path)
	}
	if wantMsg != "" && env.Error != wantMsg {
		t.Errorf("%s %s: error = %q, ожидалось %q", method, path, env.Error, wantMsg)
	}
}

type idResp struct {
	ID string `json:"id"`
}

type activityResp struct {
	ID              string `json:"id"`
	VisibleToClient bool   `json:"visibleToClient"`
	ApprovalStatus  string `json:"approvalStatus"`
}

func TestPortalScenario(t *testing.T) {
	env := newTestEnv(t)
	const owner = "owner-1"

	var project idResp
	env.mustDo(t, http.MethodPost, "/api/projects", owner,
		map[string]any{"name": "Ремонт кухни", "currency": "usd"}, http.StatusCreated, &project)

	var labor, material activityResp
	env.mustDo(t, http.MethodPost, "/api/projects/"+project.ID+"/activities", owner,
		map[string]any{"type": "LABOR", "title": "Демонтаж", "amountCents": 120000, "approvalStatus": "PENDING"},
		http.StatusCreated, &labor)
	env.mustDo(t, http.MethodPost, "/api/projects/"+project.ID+"/activities", owner,
		map[string]any{"type": "MATERIAL", "title": "Плитка", "amountCents": 30000},
		http.StatusCreated, &material)

	var issued struct {
		Token string `json:"token"`
		Link  string `json:"link"`
	}
	env.mustDo(t, http.MethodPost, "/api/client-sharing/generate-token", owner,
		map[string]any{"projectId": project.ID}, http.StatusCreated, &issued)
	if len(issued.Token) != 43 {
		t.Errorf("длина токена = %d, ожидалось 43", len(issued.Token))
	}
	if issued.Link != testBaseURL+"/client-view/"+issued.Token {
		t.Errorf("link = %q", issued.Link)
	}

	var view struct {
		Activities  []activityResp `json:"activities"`
		AccessCount int64          `json:"accessCount"`
	}
	env.mustDo(t, http.MethodGet, "/api/client-view/"+issued.Token, "", nil, http.StatusOK, &view)
	if len(view.Activities) != 2 || view.AccessCount != 1 {
		t.Fatalf("view: activities=%d accessCount=%d", len(view.Activities), view.AccessCount)
	}

	var summary struct {
		BalanceDue            int64  `json:"balanceDue"`
		PendingApprovalAmount int64  `json:"pendingApprovalAmount"`
		Currency              string `json:"currency"`
	}
	env.mustDo(t, http.MethodGet, "/api/client-view/"+issued.Token+"/summary", "", nil, http.StatusOK, &summary)
	if summary.BalanceDue < 0 {
		t.Errorf("balanceDue = %d", summary.BalanceDue)
	}
	if summary.Currency != "USD" {
		t.Errorf("currency = %q", summary.Currency)
	}

	env.expectError(t, http.MethodPost, "/api/client-view/"+issued.Token+"/approve/"+labor.ID, "",
		map[string]any{"approvalStatus": "MAYBE"}, http.StatusBadRequest, "must be APPROVED or REJECTED")

	var approved activityResp
	env.mustDo(t, http.MethodPost, "/api/client-view/"+issued.Token+"/approve/"+labor.ID, "",
		map[string]any{"approvalStatus": "APPROVED", "approvalNotes": "ок"}, http.StatusOK, &approved)
	if approved.ApprovalStatus != "APPROVED" {
		t.Errorf("approvalStatus = %q", approved.ApprovalStatus)
	}

	var hidden activityResp
	env.mustDo(t, http.MethodPatch, "/api/activities/"+material.ID+"/visibility", owner,
		map[string]any{"visibleToClient": false}, http.StatusOK, &hidden)
	if hidden.VisibleToClient {
		t.Error("visibleToClient = true после скрытия")
	}

	env.mustDo(t, http.MethodGet, "/api/client-view/"+issued.Token, "", nil, http.StatusOK, &view)
	if len(view.Activities) != 1 || view.Activities[0].ID != labor.ID {
		t.Fatalf("после скрытия: %+v", view.Activities)
	}
	if view.AccessCount != 2 {
		t.Errorf("accessCount = %d, ожидалось 2", view.AccessCount)
	}

	env.mustDo(t, http.MethodPost, "/api/client-sharing/revoke-token", owner,
		map[string]any{"token": issued.Token}, http.StatusOK, nil)
	env.expectError(t, http.MethodGet, "/api/client-view/"+issued.Token, "", nil, http.StatusForbidden, "revoked")
	env.expectError(t, http.MethodGet, "/api/client-view/"+issued.Token+"/summary", "", nil, http.StatusForbidden, "revoked")
}

func TestPortalErrors(t *testing.T) {
	env := newTestEnv(t)

	var project idResp
	env.mustDo(t, http.MethodPost, "/api/projects", "owner-1", map[string]any{"name": "Баня"}, http.StatusCreated, &project)

	tests := []struct {
		name       string
		method     string
		path       string
		user       string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{"неизвестный токен", http.MethodGet, "/api/client-view/nope", "", nil, http.StatusNotFound, "Invalid token"},
		{"сводка по неизвестному токену", http.MethodGet, "/api/client-view/nope/summary", "", nil, http.StatusNotFound, "Invalid token"},
		{"без аутентификации", http.MethodPost, "/api/client-sharing/generate-token", "",
			map[string]any{"projectId": project.ID}, http.StatusUnauthorized, ""},
		{"чужой проект", http.MethodPost, "/api/client-sharing/generate-token", "owner-2",
			map[string]any{"projectId": project.ID}, http.StatusForbidden, ""},
		{"отрицательный срок", http.MethodPost, "/api/client-sharing/generate-token", "owner-1",
			map[string]any{"projectId": project.ID, "expiresIn": -5}, http.StatusBadRequest, ""},
		{"некорректный JSON", http.MethodPost, "/api/client-sharing/generate-token", "owner-1",
			"{", http.StatusBadRequest, ""},
		{"visibleToClient не boolean", http.MethodPatch, "/api/activities/00000000-0000-0000-0000-000000000001/visibility", "owner-1",
			`{"visibleToClient":"yes"}`, http.StatusBadRequest, ""},
		{"visibleToClient отсутствует", http.MethodPatch, "/api/activities/00000000-0000-0000-0000-000000000001/visibility", "owner-1",
			`{}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.expectError(t, tt.method, tt.path, tt.user, tt.body, tt.wantStatus, tt.wantMsg)
		})
	}
}

func TestPortalExpiredToken(t *testing.T) {
	env := newTestEnv(t)

	var project idResp
	env.mustDo(t, http.MethodPost, "/api/projects", "owner-1", map[string]any{"name": "Баня"}, http.StatusCreated, &project)
	var issued struct {
		Token string `json:"token"`
	}
	env.mustDo(t, http.MethodPost, "/api/client-sharing/generate-token", "owner-1",
		map[string]any{"projectId": project.ID, "expiresIn": 60}, http.StatusCreated, &issued)

	env.clock.Advance(61 * time.Second)
	env.expectError(t, http.MethodGet, "/api/client-view/"+issued.Token, "", nil, http.StatusForbidden, "expired")
}

type proofResp struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	EstimatedCost string `json:"estimatedCost"`
	ApprovalLink  string `json:"approvalLink"`
}

// tokenOf извлекает токен из ссылки на scope proof.
func tokenOf(t *testing.T, link string) string {
	t.Helper()
	prefix := testBaseURL + "/scope-proof/"
	if len(link) <= len(prefix) || link[:len(prefix)] != prefix {
		t.Fatalf("неожиданная ссылка %q", link)
	}
	return link[len(prefix):]
}

func TestScopeProofScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const owner = "pro-1"
	if err := env.plans.SetPlan(ctx, owner, plan.Professional, nil); err != nil {
		t.Fatalf("SetPlan: %v", err)
	}

	var proof proofResp
	env.mustDo(t, http.MethodPost, "/api/scope-proof", owner, map[string]any{
		"description":   "Замена проводки в ванной",
		"estimatedCost": "500.00",
		"photos":        []string{"scope-proofs/pro-1/a.jpg"},
	}, http.StatusCreated, &proof)
	if proof.Status != "pending" || proof.EstimatedCost != "500.00" {
		t.Fatalf("создан: %+v", proof)
	}
	token := tokenOf(t, proof.ApprovalLink)

	env.mustDo(t, http.MethodPost, "/api/scope-proof/"+proof.ID+"/request", owner,
		map[string]any{"clientEmail": "Client@Example.com"}, http.StatusOK, &proof)
	if proof.Status != "pending" {
		t.Errorf("статус после запроса = %q", proof.Status)
	}

	var clientView struct {
		Status string   `json:"status"`
		Photos []string `json:"photos"`
	}
	env.mustDo(t, http.MethodGet, "/api/scope-proof/"+token, "", nil, http.StatusOK, &clientView)
	if clientView.Status != "pending" || len(clientView.Photos) != 1 {
		t.Errorf("клиентский вид: %+v", clientView)
	}

	env.mustDo(t, http.MethodPost, "/api/scope-proof/feedback/"+token, "",
		map[string]any{"clientEmail": "client@example.com", "feedback": "А розетки?"}, http.StatusOK, &clientView)
	if clientView.Status != "feedback" {
		t.Errorf("статус после комментария = %q", clientView.Status)
	}

	env.mustDo(t, http.MethodPost, "/api/scope-proof/approve/"+token, "",
		map[string]any{"clientEmail": "client@example.com"}, http.StatusOK, &clientView)
	if clientView.Status != "approved" {
		t.Errorf("статус после одобрения = %q", clientView.Status)
	}

	env.expectError(t, http.MethodPost, "/api/scope-proof/approve/"+token, "",
		map[string]any{"clientEmail": "client@example.com"}, http.StatusBadRequest, "already processed")
	env.expectError(t, http.MethodPost, "/api/scope-proof/feedback/"+token, "",
		map[string]any{"clientEmail": "client@example.com", "feedback": "ещё"}, http.StatusBadRequest, "already processed")
	env.expectError(t, http.MethodGet, "/api/scope-proof/"+token, "", nil, http.StatusBadRequest, "already processed")

	// Отмена одобренного запроса недопустима
	env.expectError(t, http.MethodDelete, "/api/scope-proof/"+proof.ID, owner, nil, http.StatusBadRequest, "")

	var status struct {
		Status        string            `json:"status"`
		Notifications []json.RawMessage `json:"notifications"`
		History       []struct {
			Action string `json:"action"`
		} `json:"history"`
	}
	env.mustDo(t, http.MethodGet, "/api/scope-proof/status/"+proof.ID, owner, nil, http.StatusOK, &status)
	if status.Status != "approved" || len(status.Notifications) != 1 || len(status.History) != 4 {
		t.Errorf("статус: %s, писем %d, история %d", status.Status, len(status.Notifications), len(status.History))
	}

	var list []proofResp
	env.mustDo(t, http.MethodGet, "/api/scope-proof?status=approved", owner, nil, http.StatusOK, &list)
	if len(list) != 1 || list[0].ID != proof.ID {
		t.Errorf("список: %+v", list)
	}
}

func TestScopeProofExpiry(t *testing.T) {
	env := newTestEnv(t)
	const owner = "pro-1"
	if err := env.plans.SetPlan(context.Background(), owner, plan.Enterprise, nil); err != nil {
		t.Fatalf("SetPlan: %v", err)
	}

	var proof proofResp
	env.mustDo(t, http.MethodPost, "/api/scope-proof", owner,
		map[string]any{"description": "Усиление перекрытия", "estimatedCost": 1250.5}, http.StatusCreated, &proof)
	if proof.EstimatedCost != "1250.50" {
		t.Errorf("estimatedCost = %q", proof.EstimatedCost)
	}
	token := tokenOf(t, proof.ApprovalLink)

	env.clock.Advance(24*time.Hour + time.Second)

	env.expectError(t, http.MethodGet, "/api/scope-proof/"+token, "", nil, http.StatusGone, "expired")
	env.expectError(t, http.MethodPost, "/api/scope-proof/approve/"+token, "",
		map[string]any{"clientEmail": "client@example.com"}, http.StatusGone, "expired")
	env.expectError(t, http.MethodPost, "/api/scope-proof/reject/"+token, "",
		map[string]any{"clientEmail": "client@example.com"}, http.StatusGone, "expired")

	// Для подрядчика истёкший запрос — ошибка 400
	env.expectError(t, http.MethodPost, "/api/scope-proof/"+proof.ID+"/resend", owner,
		map[string]any{"clientEmail": "client@example.com"}, http.StatusBadRequest, "expired")
}

func TestScopeProofPlanGuard(t *testing.T) {
	env := newTestEnv(t)
	const starter = "starter-1"
	if err := env.plans.SetPlan(context.Background(), starter, plan.Starter, nil); err != nil {
		t.Fatalf("SetPlan: %v", err)
	}

	status, resp := env.do(t, http.MethodPost, "/api/scope-proof", starter,
		map[string]any{"description": "x", "estimatedCost": "1.00"})
	if status != http.StatusForbidden || resp.Code != apierrors.CodeUpgradeRequired || resp.Error != "upgradeRequired" {
		t.Errorf("создание на starter: %d %q %q", status, resp.Code, resp.Error)
	}

	status, resp = env.do(t, http.MethodGet, "/api/scope-proof", starter, nil)
	if status != http.StatusForbidden || resp.Code != apierrors.CodeUpgradeRequired {
		t.Errorf("список на starter: %d %q", status, resp.Code)
	}

	// Статус доступен без проверки тарифа: чужой или неизвестный id даёт 404, а не 403
	env.expectError(t, http.MethodGet, "/api/scope-proof/status/00000000-0000-0000-0000-000000000001", starter,
		nil, http.StatusNotFound, "")

	// Открытые маршруты не требуют аутентификации
	env.expectError(t, http.MethodGet, "/api/scope-proof/unknown-token", "", nil, http.StatusNotFound, "Invalid token")
	env.expectError(t, http.MethodPost, "/api/scope-proof/approve/unknown-token", "",
		map[string]any{"clientEmail": "client@example.com"}, http.StatusNotFound, "Invalid token")

	// Загрузка фото без настроенного хранилища
	if err := env.plans.SetPlan(context.Background(), "pro-2", plan.Professional, nil); err != nil {
		t.Fatalf("SetPlan: %v", err)
	}
	env.expectError(t, http.MethodPost, "/api/scope-proof/photos/upload-url", "pro-2",
		map[string]any{"contentType": "image/jpeg"}, http.StatusServiceUnavailable, "")
}

// signingPhotos подписывает ключи фото предсказуемыми URL.
type signingPhotos struct{}

func (signingPhotos) PresignGet(_ context.Context, key string) (string, error) {
	return "https://photos.test/" + key + "?sig=get", nil
}

func (signingPhotos) PresignPut(_ context.Context, key, _ string) (string, time.Time, error) {
	return "https://photos.test/" + key + "?sig=put", time.Now().Add(time.Minute), nil
}

func TestPortalHidesInternalFields(t *testing.T) {
	env := newTestEnv(t)
	const owner = "owner-1"

	var project idResp
	env.mustDo(t, http.MethodPost, "/api/projects", owner,
		map[string]any{"name": "Крыльцо", "clientEmail": "c@example.com"}, http.StatusCreated, &project)
	var event activityResp
	env.mustDo(t, http.MethodPost, "/api/projects/"+project.ID+"/activities", owner,
		map[string]any{"type": "LABOR", "title": "Бетон", "amountCents": 5000, "approvalStatus": "PENDING"},
		http.StatusCreated, &event)
	var issued struct {
		Token string `json:"token"`
	}
	env.mustDo(t, http.MethodPost, "/api/client-sharing/generate-token", owner,
		map[string]any{"projectId": project.ID}, http.StatusCreated, &issued)

	leaks := []string{project.ID, "projectId", "clientEmail", "c@example.com", "visibleToClient"}

	status, resp := env.do(t, http.MethodGet, "/api/client-view/"+issued.Token, "", nil)
	if status != http.StatusOK {
		t.Fatalf("статус = %d", status)
	}
	for _, s := range leaks {
		if bytes.Contains(resp.Data, []byte(s)) {
			t.Errorf("ответ портала содержит %q: %s", s, resp.Data)
		}
	}
	if !bytes.Contains(resp.Data, []byte(event.ID)) {
		t.Errorf("ответ портала без id события: %s", resp.Data)
	}

	status, resp = env.do(t, http.MethodPost, "/api/client-view/"+issued.Token+"/approve/"+event.ID, "",
		map[string]any{"approvalStatus": "APPROVED"})
	if status != http.StatusOK {
		t.Fatalf("approve: статус = %d", status)
	}
	for _, s := range leaks {
		if bytes.Contains(resp.Data, []byte(s)) {
			t.Errorf("ответ approve содержит %q: %s", s, resp.Data)
		}
	}
}

func TestScopeProofClientActionsSignPhotos(t *testing.T) {
	env := newTestEnvWithPhotos(t, signingPhotos{})
	const owner = "pro-1"
	if err := env.plans.SetPlan(context.Background(), owner, plan.Professional, nil); err != nil {
		t.Fatalf("SetPlan: %v", err)
	}

	var proof proofResp
	env.mustDo(t, http.MethodPost, "/api/scope-proof", owner, map[string]any{
		"description":   "Перенос щитка",
		"estimatedCost": "80.00",
		"photos":        []string{"scope-proofs/pro-1/a.jpg"},
	}, http.StatusCreated, &proof)
	token := tokenOf(t, proof.ApprovalLink)
	const signed = "https://photos.test/scope-proofs/pro-1/a.jpg?sig=get"

	steps := []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/scope-proof/" + token, nil},
		{http.MethodPost, "/api/scope-proof/feedback/" + token, map[string]any{"clientEmail": "client@example.com", "feedback": "Когда?"}},
		{http.MethodPost, "/api/scope-proof/reject/" + token, map[string]any{"clientEmail": "client@example.com"}},
	}
	for _, step := range steps {
		var view struct {
			Photos []string `json:"photos"`
		}
		env.mustDo(t, step.method, step.path, "", step.body, http.StatusOK, &view)
		if len(view.Photos) != 1 || view.Photos[0] != signed {
			t.Errorf("%s %s: photos = %v", step.method, step.path, view.Photos)
		}
	}
}

func TestContractorCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/scope-proof/some-id", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "https://portal.tellbill.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://portal.tellbill.test" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.EqualFold(got, "Authorization") {
		t.Errorf("Access-Control-Allow-Headers = %q", got)
	}
}

func TestPublicCORS(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/client-view/some-token", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "https://portal.tellbill.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://portal.tellbill.test" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/health/live")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("статус = %d", resp.StatusCode)
	}

	resp, err = http.Get(env.srv.URL + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready без зависимостей: статус = %d", resp.StatusCode)
	}
}
