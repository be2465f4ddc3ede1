// Пакет server — HTTP-сервер TellBill API с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bigkaa/tellbill/internal/api/handlers"
	"github.com/bigkaa/tellbill/internal/api/middleware"
	"github.com/bigkaa/tellbill/internal/config"
	"github.com/bigkaa/tellbill/internal/domain/plan"
)

// Server — HTTP-сервер TellBill API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// RouterDeps — обработчики и middleware, из которых собирается маршрутизатор.
type RouterDeps struct {
	Health      *handlers.HealthHandler
	Sharing     *handlers.SharingHandler
	ClientView  *handlers.ClientViewHandler
	Activities  *handlers.ActivityHandler
	ScopeProofs *handlers.ScopeProofHandler

	// Auth — аутентификация подрядчика (JWTAuth.Middleware в рабочем режиме)
	Auth func(http.Handler) http.Handler
	// Plans — проверка тарифа для маршрутов professional+
	Plans middleware.PlanChecker
	// CORSAllowedOrigins — origin клиентского портала для открытых маршрутов
	CORSAllowedOrigins []string
}

// NewRouter собирает маршруты API.
//
// Открытые маршруты (портал клиента и согласование scope proof) проходят
// через CORS и не требуют аутентификации. Остальные маршруты /api требуют JWT
// подрядчика; управление scope proof дополнительно требует тариф professional+.
func NewRouter(deps RouterDeps, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую.
	router.Get("/health/live", deps.Health.HealthLive)
	router.Get("/health/ready", deps.Health.HealthReady)
	router.Get("/metrics", deps.Health.GetMetrics)

	// Под /scope-proof открытые маршруты соседствуют с маршрутами подрядчика,
	// поэтому preflight должен пропускать Authorization и DELETE.
	publicCORS := cors.Handler(cors.Options{
		AllowedOrigins: deps.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})

	requireAuth := deps.Auth
	requirePlan := middleware.RequirePlan(deps.Plans, logger, plan.ScopeProofPlans...)

	router.Route("/api", func(r chi.Router) {
		// Портал клиента: без аутентификации
		r.Route("/client-view", func(r chi.Router) {
			r.Use(publicCORS)
			deps.ClientView.Routes(r)
		})

		r.Route("/scope-proof", func(r chi.Router) {
			r.Use(publicCORS)
			deps.ScopeProofs.PublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				deps.ScopeProofs.StatusRoutes(r)
				r.With(requirePlan).Group(deps.ScopeProofs.ProfessionalRoutes)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Route("/client-sharing", deps.Sharing.Routes)
			r.Route("/projects", deps.Activities.ProjectRoutes)
			r.Route("/activities", deps.Activities.ActivityRoutes)
		})
	})

	return router
}

// New создаёт HTTP-сервер с готовым маршрутизатором.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
