// Пакет config — загрузка и валидация конфигурации TellBill
// из переменных окружения (префикс TB_) и опционального .env файла.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации TellBill.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Разрешённые Origin для клиентского портала
	CORSAllowedOrigins []string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Ссылки и сроки действия ---

	// Публичный адрес клиентского портала, из него строятся magic-link ссылки
	PublicBaseURL string
	// TTL ссылки клиента, если expiresIn не передан
	ShareTokenDefaultTTL time.Duration
	// Максимально допустимый TTL ссылки клиента
	ShareTokenMaxTTL time.Duration
	// Окно согласования scope proof (фиксированное, не продлевается)
	ScopeProofTTL time.Duration
	// Через сколько после первичного письма отправляется напоминание
	ReminderAfter time.Duration

	// --- JWT подрядчика ---

	// URL JWKS endpoint провайдера аутентификации
	JWTJWKSURL string
	// Ожидаемый issuer (пусто — не проверяется)
	JWTIssuer string
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration

	// --- Почта ---

	// URL HTTP API почтового провайдера (пусто — письма только логируются)
	MailAPIURL string
	// Ключ API почтового провайдера
	MailAPIKey string
	// Адрес отправителя
	MailFrom string
	// Ограничение времени на отправку одного письма
	MailTimeout time.Duration

	// --- S3 (фото scope proof) ---

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	// Время жизни presigned URL
	PhotoURLTTL time.Duration

	// --- Тарифы ---

	// TTL записи в кэше тарифов
	PlanCacheTTL time.Duration
	// Максимальный размер кэша тарифов
	PlanCacheSize int

	// --- Фоновые задачи ---

	// Интервал housekeeping (0 — отключён)
	HousekeepingInterval time.Duration
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Группа в метриках topologymetrics
	DephealthGroup string
}

// LoadDotEnv подгружает переменные из файла .env, если он существует.
// Уже заданные переменные окружения не перезаписываются.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("загрузка %s: %w", path, err)
	}
	return nil
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// TB_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("TB_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("TB_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("TB_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("TB_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TB_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("TB_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("TB_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("TB_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TB_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.CORSAllowedOrigins = parseCSV(getEnvDefault("TB_CORS_ALLOWED_ORIGINS", "*"))

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("TB_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("TB_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("TB_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("TB_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("TB_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("TB_DB_PASSWORD"); err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("TB_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("TB_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Ссылки ---

	// TB_PUBLIC_BASE_URL — обязательный, абсолютный URL портала
	base, err := getEnvRequired("TB_PUBLIC_BASE_URL")
	if err != nil {
		return nil, err
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("TB_PUBLIC_BASE_URL: ожидается абсолютный URL, получено %q", base)
	}
	cfg.PublicBaseURL = strings.TrimRight(base, "/")

	cfg.ShareTokenDefaultTTL, err = getEnvDuration("TB_SHARE_TOKEN_DEFAULT_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TB_SHARE_TOKEN_DEFAULT_TTL: %w", err)
	}
	cfg.ShareTokenMaxTTL, err = getEnvDuration("TB_SHARE_TOKEN_MAX_TTL", 90*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TB_SHARE_TOKEN_MAX_TTL: %w", err)
	}
	if cfg.ShareTokenDefaultTTL <= 0 || cfg.ShareTokenDefaultTTL > cfg.ShareTokenMaxTTL {
		return nil, fmt.Errorf("TB_SHARE_TOKEN_DEFAULT_TTL: значение %s должно быть в диапазоне (0, %s]",
			cfg.ShareTokenDefaultTTL, cfg.ShareTokenMaxTTL)
	}

	cfg.ScopeProofTTL, err = getEnvDuration("TB_SCOPE_PROOF_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TB_SCOPE_PROOF_TTL: %w", err)
	}
	if cfg.ScopeProofTTL <= 0 {
		return nil, fmt.Errorf("TB_SCOPE_PROOF_TTL: значение должно быть положительным")
	}

	cfg.ReminderAfter, err = getEnvDuration("TB_REMINDER_AFTER", 12*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TB_REMINDER_AFTER: %w", err)
	}
	if cfg.ReminderAfter <= 0 || cfg.ReminderAfter >= cfg.ScopeProofTTL {
		return nil, fmt.Errorf("TB_REMINDER_AFTER: значение %s должно быть меньше TB_SCOPE_PROOF_TTL (%s)",
			cfg.ReminderAfter, cfg.ScopeProofTTL)
	}

	// --- JWT ---

	// TB_JWT_JWKS_URL — обязателен для API-сервера, проверяется в cmd/tellbill-api
	cfg.JWTJWKSURL = getEnvDefault("TB_JWT_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("TB_JWT_ISSUER", "")
	cfg.JWTLeeway, err = getEnvDuration("TB_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TB_JWT_LEEWAY: %w", err)
	}

	// --- Почта ---

	cfg.MailAPIURL = strings.TrimRight(getEnvDefault("TB_MAIL_API_URL", ""), "/")
	cfg.MailAPIKey = getEnvDefault("TB_MAIL_API_KEY", "")
	cfg.MailFrom = getEnvDefault("TB_MAIL_FROM", "TellBill <no-reply@tellbill.app>")
	cfg.MailTimeout, err = getEnvDuration("TB_MAIL_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TB_MAIL_TIMEOUT: %w", err)
	}
	if cfg.MailTimeout <= 0 {
		return nil, fmt.Errorf("TB_MAIL_TIMEOUT: значение должно быть положительным")
	}

	// --- S3 ---

	cfg.S3Bucket = getEnvDefault("TB_S3_BUCKET", "")
	cfg.S3Region = getEnvDefault("TB_S3_REGION", "us-east-1")
	cfg.S3Endpoint = getEnvDefault("TB_S3_ENDPOINT", "")
	cfg.S3AccessKeyID = getEnvDefault("TB_S3_ACCESS_KEY_ID", "")
	cfg.S3SecretAccessKey = getEnvDefault("TB_S3_SECRET_ACCESS_KEY", "")
	cfg.PhotoURLTTL, err = getEnvDuration("TB_PHOTO_URL_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("TB_PHOTO_URL_TTL: %w", err)
	}

	// --- Тарифы ---

	cfg.PlanCacheTTL, err = getEnvDuration("TB_PLAN_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("TB_PLAN_CACHE_TTL: %w", err)
	}
	cfg.PlanCacheSize, err = getEnvInt("TB_PLAN_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("TB_PLAN_CACHE_SIZE: %w", err)
	}
	if cfg.PlanCacheSize < 1 {
		return nil, fmt.Errorf("TB_PLAN_CACHE_SIZE: значение %d должно быть положительным", cfg.PlanCacheSize)
	}

	// --- Фоновые задачи ---

	cfg.HousekeepingInterval, err = getEnvDuration("TB_HOUSEKEEPING_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("TB_HOUSEKEEPING_INTERVAL: %w", err)
	}
	if cfg.HousekeepingInterval < 0 {
		return nil, fmt.Errorf("TB_HOUSEKEEPING_INTERVAL: отрицательное значение")
	}

	cfg.DephealthCheckInterval, err = getEnvDuration("TB_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TB_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("TB_DEPHEALTH_GROUP", "tellbill")

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// S3Enabled сообщает, настроено ли хранилище фото.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration понимает формат Go (30s, 1h, 15m) и суффикс d для суток.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	if days, ok := strings.CutSuffix(val, "d"); ok {
		n, err := strconv.Atoi(days)
		if err == nil {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m или 7d)", val)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
