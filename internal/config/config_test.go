package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"SC_API_URL":            "https://sheets-api.kryukov.lan/",
		"SC_KEYCLOAK_URL":       "https://keycloak.kryukov.lan/",
		"SC_KEYCLOAK_CLIENT_ID": "sheets-console",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.APIURL != "https://sheets-api.kryukov.lan" {
		t.Errorf("APIURL = %q, trailing slash должен быть удалён", cfg.APIURL)
	}
	if cfg.KeycloakURL != "https://keycloak.kryukov.lan" {
		t.Errorf("KeycloakURL = %q, trailing slash должен быть удалён", cfg.KeycloakURL)
	}
	if cfg.KeycloakRealm != "sheets" {
		t.Errorf("KeycloakRealm = %q, ожидается sheets", cfg.KeycloakRealm)
	}
	if cfg.SessionBackend != SessionBackendCookie {
		t.Errorf("SessionBackend = %q, ожидается cookie", cfg.SessionBackend)
	}
	if !cfg.SecureCookie {
		t.Error("SecureCookie должен быть true для https Keycloak")
	}
	if cfg.PlaceholderDataset != "Sheet1" {
		t.Errorf("PlaceholderDataset = %q, ожидается Sheet1", cfg.PlaceholderDataset)
	}
	if cfg.NotAvailable != "N/A" {
		t.Errorf("NotAvailable = %q, ожидается N/A", cfg.NotAvailable)
	}
	if cfg.RowsCacheTTL != 5*time.Minute {
		t.Errorf("RowsCacheTTL = %v, ожидается 5m", cfg.RowsCacheTTL)
	}
	if cfg.DatabaseEnabled() {
		t.Error("DatabaseEnabled() должен быть false без SC_DB_HOST")
	}
	if cfg.StateCleanupInterval != 10*time.Minute {
		t.Errorf("StateCleanupInterval = %v, ожидается 10m", cfg.StateCleanupInterval)
	}
	if cfg.TokenRefreshBefore != time.Minute {
		t.Errorf("TokenRefreshBefore = %v, ожидается 1m", cfg.TokenRefreshBefore)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_JWTAutoDerive(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("SC_KEYCLOAK_REALM", "depts")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.JWTIssuer != "https://keycloak.kryukov.lan/realms/depts" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.JWTJWKSURL != "https://keycloak.kryukov.lan/realms/depts/protocol/openid-connect/certs" {
		t.Errorf("JWTJWKSURL = %q", cfg.JWTJWKSURL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, key := range []string{"SC_API_URL", "SC_KEYCLOAK_URL", "SC_KEYCLOAK_CLIENT_ID"} {
		t.Run(key, func(t *testing.T) {
			envs := minimalEnvs()
			delete(envs, key)
			setEnvs(t, envs)
			t.Setenv(key, "")

			_, err := Load()
			if err == nil {
				t.Fatalf("ожидалась ошибка при отсутствии %s", key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("ошибка %q не упоминает %s", err, key)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"порт вне диапазона", "SC_PORT", "70000"},
		{"порт не число", "SC_PORT", "abc"},
		{"уровень логирования", "SC_LOG_LEVEL", "verbose"},
		{"формат логов", "SC_LOG_FORMAT", "xml"},
		{"бэкенд сессий", "SC_SESSION_BACKEND", "memcached"},
		{"ssl mode", "SC_DB_SSL_MODE", "prefer"},
		{"длительность", "SC_ROWS_CACHE_TTL", "5 минут"},
		{"размер кэша", "SC_ROWS_CACHE_SIZE", "0"},
		{"размер пула БД", "SC_DB_MAX_CONNS", "0"},
		{"secure cookie", "SC_SECURE_COOKIE", "maybe"},
		{"некорректный URL API", "SC_API_URL", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, minimalEnvs())
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("ожидалась ошибка для %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_BackendDependencies(t *testing.T) {
	tests := []struct {
		name    string
		envs    map[string]string
		wantErr bool
	}{
		{
			name:    "redis без адреса",
			envs:    map[string]string{"SC_SESSION_BACKEND": "redis"},
			wantErr: true,
		},
		{
			name:    "redis с адресом",
			envs:    map[string]string{"SC_SESSION_BACKEND": "redis", "SC_REDIS_ADDR": "localhost:6379"},
			wantErr: false,
		},
		{
			name:    "postgres без хоста",
			envs:    map[string]string{"SC_SESSION_BACKEND": "postgres"},
			wantErr: true,
		},
		{
			name:    "postgres с хостом",
			envs:    map[string]string{"SC_SESSION_BACKEND": "postgres", "SC_DB_HOST": "db"},
			wantErr: false,
		},
		{
			name:    "admin client без секрета",
			envs:    map[string]string{"SC_KEYCLOAK_ADMIN_CLIENT_ID": "sheets-admin"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, minimalEnvs())
			setEnvs(t, tt.envs)

			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db.local", DBPort: 5433, DBName: "sc", DBUser: "u", DBPassword: "p", DBSSLMode: "require",
	}

	want := "host=db.local port=5433 dbname=sc user=u password=p sslmode=require"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
	if got := cfg.MigrateURL(); got != "pgx5://u:p@db.local:5433/sc?sslmode=require" {
		t.Errorf("MigrateURL() = %q", got)
	}
	if got := cfg.DatabaseURL(); strings.Contains(got, "p@") {
		t.Errorf("DatabaseURL() не должен содержать пароль: %q", got)
	}
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		cfg := &Config{LogLevel: slog.LevelDebug, LogFormat: format}
		logger := SetupLogger(cfg)
		if logger == nil {
			t.Fatalf("SetupLogger(%s) вернул nil", format)
		}
		if !logger.Enabled(t.Context(), slog.LevelDebug) {
			t.Errorf("SetupLogger(%s): debug должен быть включён", format)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if err != nil {
			t.Errorf("parseLogLevel(%q) ошибка: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, ожидается %v", tt.in, got, tt.want)
		}
	}
}
