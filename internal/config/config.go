// Пакет config — загрузка и валидация конфигурации Sheets Console
// из переменных окружения (и необязательного файла .env).
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

	"github.com/bigkaa/sheetsconsole/internal/observability"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды хранения состояния сессии.
const (
	SessionBackendCookie   = "cookie"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

// Config содержит все параметры конфигурации Sheets Console.
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

	// --- Remote API ---

	// Базовый URL remote API (например, https://sheets-api.example.lan)
	APIURL string
	// Путь к CA-сертификату для TLS-соединений с API и IdP (опционально)
	APICACertPath string
	// Таймаут HTTP-запросов к API
	APITimeout time.Duration
	// Path health endpoint API для topologymetrics
	APIHealthPath string

	// --- Identity provider (Keycloak) ---

	// URL Keycloak
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Client ID публичного клиента с Direct Access Grants
	KeycloakClientID string
	// Client ID для Admin API (сброс пароля), опционально
	KeycloakAdminClientID string
	// Client Secret для Admin API
	KeycloakAdminClientSecret string
	// Issuer ID-токена (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string

	// --- Сессии ---

	// Бэкенд состояния сессии: cookie, redis, postgres
	SessionBackend string
	// Ключ шифрования cookie (base64 32 байта или произвольная строка)
	SessionSecret string
	// Secure flag для cookie
	SecureCookie bool
	// Время жизни состояния сессии в Redis/PostgreSQL
	SessionTTL time.Duration
	// Интервал удаления просроченного состояния сессий в PostgreSQL
	StateCleanupInterval time.Duration
	// Запас времени до истечения ID-токена, при котором он обновляется
	TokenRefreshBefore time.Duration

	// --- Redis ---

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// --- PostgreSQL (опционально: состояние сессий и журнал экспортов) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Максимум соединений в пуле pgxpool
	DBMaxConns int

	// --- Каталог наборов данных ---

	// Зарезервированное имя набора-заглушки, скрываемого из каталога
	PlaceholderDataset string
	// Маркер отсутствующего значения
	NotAvailable string
	// Максимальное количество наборов строк в кэше
	RowsCacheSize int
	// Время жизни строк в кэше
	RowsCacheTTL time.Duration
	// Время жизни выбора набора данных для неактивной сессии
	SelectionTTL time.Duration

	// --- Архив экспортов (S3, опционально) ---

	ExportS3Bucket   string
	ExportS3Endpoint string
	ExportS3Region   string
	// ExportS3AccessKey / ExportS3SecretKey — статические ключи;
	// если не заданы, используется стандартная цепочка AWS SDK
	ExportS3AccessKey string
	ExportS3SecretKey string

	// --- Наблюдаемость ---

	// OTLP gRPC endpoint трассировки (пусто — трассировка отключена)
	OTelEndpoint string
	// Группа topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Если в рабочем каталоге есть .env — он читается первым; уже заданные
// переменные окружения не перезаписываются.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env: %w", err)
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("SC_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SC_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SC_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SC_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("SC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("SC_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SC_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Remote API ---

	cfg.APIURL, err = getEnvRequired("SC_API_URL")
	if err != nil {
		return nil, err
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("SC_API_URL: некорректный URL %q", cfg.APIURL)
	}

	cfg.APICACertPath = getEnvDefault("SC_API_CA_CERT_PATH", "")

	cfg.APITimeout, err = getEnvDuration("SC_API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SC_API_TIMEOUT: %w", err)
	}

	cfg.APIHealthPath = getEnvDefault("SC_API_HEALTH_PATH", "/health")

	// --- Keycloak ---

	cfg.KeycloakURL, err = getEnvRequired("SC_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	cfg.KeycloakRealm = getEnvDefault("SC_KEYCLOAK_REALM", "sheets")

	cfg.KeycloakClientID, err = getEnvRequired("SC_KEYCLOAK_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	cfg.KeycloakAdminClientID = getEnvDefault("SC_KEYCLOAK_ADMIN_CLIENT_ID", "")
	cfg.KeycloakAdminClientSecret = getEnvDefault("SC_KEYCLOAK_ADMIN_CLIENT_SECRET", "")
	if cfg.KeycloakAdminClientID != "" && cfg.KeycloakAdminClientSecret == "" {
		return nil, fmt.Errorf("SC_KEYCLOAK_ADMIN_CLIENT_SECRET: обязателен при заданном SC_KEYCLOAK_ADMIN_CLIENT_ID")
	}

	cfg.JWTIssuer = getEnvDefault("SC_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))
	cfg.JWTJWKSURL = getEnvDefault("SC_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// --- Сессии ---

	cfg.SessionBackend = getEnvDefault("SC_SESSION_BACKEND", SessionBackendCookie)
	switch cfg.SessionBackend {
	case SessionBackendCookie, SessionBackendRedis, SessionBackendPostgres:
	default:
		return nil, fmt.Errorf("SC_SESSION_BACKEND: недопустимое значение %q, допустимые: cookie, redis, postgres", cfg.SessionBackend)
	}

	cfg.SessionSecret = getEnvDefault("SC_SESSION_SECRET", "")

	cfg.SecureCookie, err = getEnvBool("SC_SECURE_COOKIE", strings.HasPrefix(cfg.KeycloakURL, "https"))
	if err != nil {
		return nil, fmt.Errorf("SC_SECURE_COOKIE: %w", err)
	}

	cfg.SessionTTL, err = getEnvDuration("SC_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("SC_SESSION_TTL: %w", err)
	}

	cfg.StateCleanupInterval, err = getEnvDuration("SC_STATE_CLEANUP_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SC_STATE_CLEANUP_INTERVAL: %w", err)
	}

	cfg.TokenRefreshBefore, err = getEnvDuration("SC_TOKEN_REFRESH_BEFORE", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SC_TOKEN_REFRESH_BEFORE: %w", err)
	}

	// --- Redis ---

	cfg.RedisAddr = getEnvDefault("SC_REDIS_ADDR", "")
	cfg.RedisPassword = getEnvDefault("SC_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("SC_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("SC_REDIS_DB: %w", err)
	}
	if cfg.SessionBackend == SessionBackendRedis && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("SC_REDIS_ADDR: обязателен при SC_SESSION_BACKEND=redis")
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("SC_DB_HOST", "")
	cfg.DBPort, err = getEnvInt("SC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SC_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("SC_DB_NAME", "sheets_console")
	cfg.DBUser = getEnvDefault("SC_DB_USER", "sheets_console")
	cfg.DBPassword = getEnvDefault("SC_DB_PASSWORD", "")
	cfg.DBSSLMode = getEnvDefault("SC_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SC_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	cfg.DBMaxConns, err = getEnvInt("SC_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("SC_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("SC_DB_MAX_CONNS: значение %d должно быть положительным", cfg.DBMaxConns)
	}
	if cfg.SessionBackend == SessionBackendPostgres && cfg.DBHost == "" {
		return nil, fmt.Errorf("SC_DB_HOST: обязателен при SC_SESSION_BACKEND=postgres")
	}

	// --- Каталог наборов данных ---

	cfg.PlaceholderDataset = getEnvDefault("SC_PLACEHOLDER_DATASET", "Sheet1")
	cfg.NotAvailable = getEnvDefault("SC_NOT_AVAILABLE", "N/A")

	cfg.RowsCacheSize, err = getEnvInt("SC_ROWS_CACHE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("SC_ROWS_CACHE_SIZE: %w", err)
	}
	if cfg.RowsCacheSize < 1 {
		return nil, fmt.Errorf("SC_ROWS_CACHE_SIZE: значение %d должно быть положительным", cfg.RowsCacheSize)
	}

	cfg.RowsCacheTTL, err = getEnvDuration("SC_ROWS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SC_ROWS_CACHE_TTL: %w", err)
	}

	cfg.SelectionTTL, err = getEnvDuration("SC_SELECTION_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SC_SELECTION_TTL: %w", err)
	}

	// --- Архив экспортов ---

	cfg.ExportS3Bucket = getEnvDefault("SC_EXPORT_S3_BUCKET", "")
	cfg.ExportS3Endpoint = getEnvDefault("SC_EXPORT_S3_ENDPOINT", "")
	cfg.ExportS3Region = getEnvDefault("SC_EXPORT_S3_REGION", "us-east-1")
	cfg.ExportS3AccessKey = getEnvDefault("SC_EXPORT_S3_ACCESS_KEY", "")
	cfg.ExportS3SecretKey = getEnvDefault("SC_EXPORT_S3_SECRET_KEY", "")

	// --- Наблюдаемость ---

	cfg.OTelEndpoint = getEnvDefault("SC_OTEL_ENDPOINT", "")
	cfg.DephealthGroup = getEnvDefault("SC_DEPHEALTH_GROUP", "sheets")
	cfg.DephealthCheckInterval, err = getEnvDuration("SC_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SC_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// DatabaseEnabled сообщает, настроено ли подключение к PostgreSQL.
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL без пароля
// (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword), c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
// При включённой трассировке записи дополняются trace_id/span_id.
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

	if cfg.OTelEndpoint != "" {
		handler = observability.NewTraceHandler(handler)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
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

// getEnvBool возвращает логическое значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
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
