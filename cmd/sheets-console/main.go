// Точка входа Sheets Console — веб-консоли наборов данных Sheets.
// Загружает конфигурацию, выбирает хранилище сессий (cookie, Redis или
// PostgreSQL), создаёт клиентов remote API и Keycloak, собирает UI handlers,
// запускает фоновые задачи (очистка состояния сессий, topologymetrics)
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	apihandlers "github.com/bigkaa/sheetsconsole/internal/api/handlers"
	"github.com/bigkaa/sheetsconsole/internal/apiclient"
	"github.com/bigkaa/sheetsconsole/internal/config"
	"github.com/bigkaa/sheetsconsole/internal/database"
	"github.com/bigkaa/sheetsconsole/internal/directory"
	"github.com/bigkaa/sheetsconsole/internal/export"
	"github.com/bigkaa/sheetsconsole/internal/filter"
	"github.com/bigkaa/sheetsconsole/internal/identity"
	"github.com/bigkaa/sheetsconsole/internal/keycloak"
	"github.com/bigkaa/sheetsconsole/internal/observability"
	"github.com/bigkaa/sheetsconsole/internal/repository"
	"github.com/bigkaa/sheetsconsole/internal/server"
	"github.com/bigkaa/sheetsconsole/internal/service"
	"github.com/bigkaa/sheetsconsole/internal/session"
	uihandlers "github.com/bigkaa/sheetsconsole/internal/ui/handlers"
	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

// maxDirectorySessions — предел одновременно открытых каталогов наборов.
const maxDirectorySessions = 4096

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Sheets Console запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("session_backend", cfg.SessionBackend),
	)

	ctx := context.Background()

	// 3. Трассировка OpenTelemetry (если задан SC_OTEL_ENDPOINT)
	if cfg.OTelEndpoint != "" {
		shutdownTracer, tracerErr := observability.InitTracer(ctx, "sheets-console", config.Version, cfg.OTelEndpoint)
		if tracerErr != nil {
			logger.Warn("Трассировка недоступна", slog.String("error", tracerErr.Error()))
		} else {
			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					logger.Warn("Ошибка остановки трассировки", slog.String("error", err.Error()))
				}
			}()
			logger.Info("Трассировка включена", slog.String("endpoint", cfg.OTelEndpoint))
		}
	}

	// 4. Локализация интерфейса
	bundle, err := i18n.Load(logger)
	if err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	i18n.SetBundle(bundle)

	// 5. PostgreSQL (опционально): миграции и пул соединений
	var pool *pgxpool.Pool
	if cfg.DatabaseEnabled() {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err = database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
	}

	// 6. Клиент remote API
	api, err := apiclient.New(cfg.APIURL, cfg.APICACertPath, cfg.APITimeout, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента API", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Keycloak: вход по паролю, проверка ID-токенов, сброс пароля
	var resetter identity.PasswordResetter
	var kcAdmin *keycloak.Client
	if cfg.KeycloakAdminClientID != "" {
		kcAdmin = keycloak.New(keycloak.Config{
			BaseURL:          cfg.KeycloakURL,
			Realm:            cfg.KeycloakRealm,
			ClientID:         cfg.KeycloakAdminClientID,
			ClientSecret:     cfg.KeycloakAdminClientSecret,
			RedirectClientID: cfg.KeycloakClientID,
		}, logger)
		resetter = kcAdmin
	} else {
		logger.Warn("SC_KEYCLOAK_ADMIN_CLIENT_ID не задан, сброс пароля недоступен")
	}

	idp := identity.NewClient(identity.Config{
		KeycloakURL: cfg.KeycloakURL,
		Realm:       cfg.KeycloakRealm,
		ClientID:    cfg.KeycloakClientID,
	}, resetter, logger)

	verifier, err := identity.NewVerifier(identity.VerifierConfig{
		JWKSURL:  cfg.JWTJWKSURL,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.KeycloakClientID,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания проверки ID-токенов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Keycloak клиент создан",
		slog.String("url", cfg.KeycloakURL),
		slog.String("realm", cfg.KeycloakRealm),
	)

	// 8. Хранилище сессий
	checks := []apihandlers.NamedChecker{
		{Name: "api", Checker: apiclient.NewReadinessChecker(api, cfg.APIHealthPath)},
	}
	if pool != nil {
		checks = append(checks, apihandlers.NamedChecker{Name: "postgresql", Checker: database.NewReadinessChecker(pool)})
	}
	if kcAdmin != nil {
		checks = append(checks, apihandlers.NamedChecker{Name: "keycloak", Checker: kcAdmin})
	}

	var backend session.Backend
	var cleanupSvc *service.StateCleanupService
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		redisClient := session.NewRedisClient(session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		backend = session.RedisBackend{Client: redisClient, TTL: cfg.SessionTTL}
		checks = append(checks, apihandlers.NamedChecker{Name: "redis", Checker: session.NewRedisReadinessChecker(redisClient)})
	case config.SessionBackendPostgres:
		stateRepo := repository.NewConsoleStateRepository(pool)
		backend = session.PostgresBackend{Repo: stateRepo, TTL: cfg.SessionTTL}
		cleanupSvc = service.NewStateCleanupService(stateRepo, cfg.StateCleanupInterval, logger)
	default:
		if cfg.SessionSecret == "" {
			logger.Warn("SC_SESSION_SECRET не задан, сессии не сохраняются между рестартами")
		}
		codec, codecErr := session.NewCodec(cfg.SessionSecret)
		if codecErr != nil {
			logger.Error("Ошибка создания шифрования сессий", slog.String("error", codecErr.Error()))
			os.Exit(1)
		}
		backend = session.CookieBackend{Codec: codec, Secure: cfg.SecureCookie, TTL: cfg.SessionTTL}
	}
	sessions := session.NewManager(backend, idp, cfg.SecureCookie, cfg.SessionTTL, logger)

	// 9. Экспорт: архив S3 и журнал выгрузок (опционально)
	var archive service.Archiver
	if cfg.ExportS3Bucket != "" {
		s3Archive, archiveErr := export.NewS3Archive(ctx, export.ArchiveConfig{
			Bucket:    cfg.ExportS3Bucket,
			Endpoint:  cfg.ExportS3Endpoint,
			Region:    cfg.ExportS3Region,
			AccessKey: cfg.ExportS3AccessKey,
			SecretKey: cfg.ExportS3SecretKey,
		}, logger)
		if archiveErr != nil {
			logger.Warn("Архив выгрузок недоступен", slog.String("error", archiveErr.Error()))
		} else {
			archive = s3Archive
			logger.Info("Архив выгрузок включён", slog.String("bucket", cfg.ExportS3Bucket))
		}
	}
	var audit service.AuditRecorder
	if pool != nil {
		audit = repository.NewExportAuditRepository(pool)
	}
	exportSvc := service.NewExportService(archive, audit, logger)

	// 10. Каталоги наборов данных по сессиям
	registry := directory.NewRegistry(
		api,
		directory.NewRowsCache(cfg.RowsCacheSize, cfg.RowsCacheTTL),
		cfg.PlaceholderDataset,
		maxDirectorySessions,
		cfg.SelectionTTL,
		logger,
	)

	// 11. UI handlers
	validator := validation.New()
	handlers := server.Handlers{
		Health:      apihandlers.NewHealthHandler(checks...),
		Auth:        uihandlers.NewAuthHandler(idp, api, sessions, registry, validator, logger),
		Pages:       uihandlers.NewPageHandler(logger),
		Search:      uihandlers.NewSearchHandler(registry, filter.New(cfg.NotAvailable), exportSvc, logger),
		Manage:      uihandlers.NewManageHandler(api, registry, registry.Cache(), validator, cfg.PlaceholderDataset, logger),
		Account:     uihandlers.NewAccountHandler(api, validator, logger),
		Management:  uihandlers.NewManagementHandler(api, validator, logger),
		Departments: uihandlers.NewDepartmentHandler(api, validator, cfg.NotAvailable, logger),
	}
	auth := uimiddleware.NewAuth(verifier, idp, registry, cfg.TokenRefreshBefore, logger)

	// 12. Запуск фоновых задач
	if cleanupSvc != nil {
		cleanupSvc.Start(ctx)
	}

	// 12.1 topologymetrics — мониторинг зависимостей (API, Keycloak, PostgreSQL)
	params := service.DephealthParams{
		ServiceID:       "sheets-console",
		Group:           cfg.DephealthGroup,
		APIURL:          cfg.APIURL,
		APIHealthPath:   cfg.APIHealthPath,
		KeycloakJWKSURL: cfg.JWTJWKSURL,
		PGCritical:      cfg.SessionBackend == config.SessionBackendPostgres,
		CheckInterval:   cfg.DephealthCheckInterval,
	}
	if pool != nil {
		// Проверка PostgreSQL идёт через существующий пул соединений.
		pgDB := stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()
		params.DB = pgDB
		params.PGConnURL = cfg.DatabaseURL()
	}
	dephealthSvc, dephealthErr := service.NewDephealthService(params, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 13. Создание и запуск HTTP-сервера
	router := server.NewRouter(logger, handlers, sessions, auth)
	srv := server.New(cfg, logger, router)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	if cleanupSvc != nil {
		cleanupSvc.Stop()
	}

	logger.Info("Sheets Console остановлен")
}
