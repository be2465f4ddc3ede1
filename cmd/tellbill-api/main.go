// Точка входа TellBill API — клиентский портал и согласование scope proof.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт сервисный слой и handlers, запускает housekeeping и topologymetrics,
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/tellbill/internal/api/handlers"
	"github.com/bigkaa/tellbill/internal/api/middleware"
	"github.com/bigkaa/tellbill/internal/config"
	"github.com/bigkaa/tellbill/internal/database"
	"github.com/bigkaa/tellbill/internal/mailer"
	"github.com/bigkaa/tellbill/internal/photostore"
	"github.com/bigkaa/tellbill/internal/repository"
	"github.com/bigkaa/tellbill/internal/server"
	"github.com/bigkaa/tellbill/internal/service"
)

// jwksRefreshInterval — период фонового обновления ключей подрядчиков.
const jwksRefreshInterval = time.Hour

func main() {
	// 1. Конфигурация и логирование
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("Ошибка чтения .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.JWTJWKSURL == "" {
		slog.Error("TB_JWT_JWKS_URL обязателен для API-сервера")
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("TellBill API запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 2. Миграции и пул соединений
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 3. Repositories
	tx := repository.NewTxRunner(pool)
	projectRepo := repository.NewProjectRepository(pool)
	activityRepo := repository.NewActivityRepository(pool)
	tokenRepo := repository.NewShareTokenRepository(pool)
	proofRepo := repository.NewScopeProofRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)
	audit := service.NewAuditWriter(repository.NewAuditRepository(pool), logger)

	// 4. Почта и хранилище фото
	var mail service.Mailer
	if cfg.MailAPIURL != "" {
		mail = mailer.New(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom, logger)
	} else {
		logger.Warn("TB_MAIL_API_URL не задан, письма только пишутся в лог")
		mail = mailer.NewLogMailer(logger)
	}
	notifier := service.NewNotifier(mail, cfg.MailTimeout, logger)

	var photos service.PhotoStore
	if cfg.S3Enabled() {
		store, err := photostore.New(ctx, photostore.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			URLTTL:          cfg.PhotoURLTTL,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации хранилища фото", slog.String("error", err.Error()))
			os.Exit(1)
		}
		photos = store
	} else {
		logger.Info("TB_S3_BUCKET не задан, загрузка фото отключена")
	}

	// 5. Services
	sharingSvc := service.NewSharingService(tx, projectRepo, tokenRepo, audit,
		cfg.PublicBaseURL, cfg.ShareTokenDefaultTTL, cfg.ShareTokenMaxTTL, logger)
	portalSvc := service.NewPortalService(tx, projectRepo, activityRepo, tokenRepo, audit, logger)
	activitySvc := service.NewActivityService(tx, projectRepo, activityRepo, audit, logger)
	proofSvc := service.NewScopeProofService(tx, proofRepo, notificationRepo, projectRepo, audit,
		notifier, photos, cfg.PublicBaseURL, cfg.ScopeProofTTL, logger)
	planSvc := service.NewPlanService(subscriptionRepo, cfg.PlanCacheSize, cfg.PlanCacheTTL, logger)
	housekeepingSvc := service.NewHousekeepingService(tx, proofRepo, notificationRepo, audit, notifier,
		proofSvc.Link, cfg.ReminderAfter, cfg.HousekeepingInterval, logger)

	// 6. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.JWTLeeway, jwksRefreshInterval, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 7. Фоновые задачи
	housekeepingSvc.Start(ctx)

	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "tellbill-api",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PostgresURL:   cfg.DatabaseURL(),
		MailAPIURL:    cfg.MailAPIURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 8. HTTP-сервер
	router := server.NewRouter(server.RouterDeps{
		Health: handlers.NewHealthHandler(
			handlers.DependencyCheck{Name: "postgresql", Checker: database.NewReadinessChecker(pool)},
			handlers.DependencyCheck{Name: "jwks", Checker: middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, 5*time.Second)},
		),
		Sharing:            handlers.NewSharingHandler(sharingSvc, logger),
		ClientView:         handlers.NewClientViewHandler(portalSvc, logger),
		Activities:         handlers.NewActivityHandler(activitySvc, logger),
		ScopeProofs:        handlers.NewScopeProofHandler(proofSvc, logger),
		Auth:               jwtAuth.Middleware(),
		Plans:              planSvc,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	srv := server.New(cfg, logger, router)
	runErr := srv.Run()

	// 9. Остановка фоновых задач и доотправка писем
	logger.Info("Останавливаем фоновые задачи...")
	housekeepingSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	notifier.Wait()

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("TellBill API остановлен")
}
