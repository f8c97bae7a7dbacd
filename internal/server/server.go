// Пакет server — HTTP-сервер Sheets Console с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на Ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apierrors "github.com/bigkaa/sheetsconsole/internal/api/errors"
	apihandlers "github.com/bigkaa/sheetsconsole/internal/api/handlers"
	"github.com/bigkaa/sheetsconsole/internal/api/middleware"
	"github.com/bigkaa/sheetsconsole/internal/config"
	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
	"github.com/bigkaa/sheetsconsole/internal/ui/handlers"
	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/ui/static"
)

// Handlers — обработчики, из которых собирается маршрутизатор.
type Handlers struct {
	Health      *apihandlers.HealthHandler
	Auth        *handlers.AuthHandler
	Pages       *handlers.PageHandler
	Search      *handlers.SearchHandler
	Manage      *handlers.ManageHandler
	Account     *handlers.AccountHandler
	Management  *handlers.ManagementHandler
	Departments *handlers.DepartmentHandler
}

// Server — HTTP-сервер Sheets Console.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер поверх готового маршрутизатора.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      otelhttp.NewHandler(handler, "sheets-console"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter настраивает маршруты и middleware консоли.
// Health и metrics проверяются Kubernetes напрямую и не открывают сессию.
func NewRouter(logger *slog.Logger, h Handlers, sessions uimiddleware.SessionLoader, auth *uimiddleware.Auth) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recoverer(logger, func(w http.ResponseWriter, r *http.Request) {
		if isServicePath(r.URL.Path) {
			apierrors.InternalError(w, "внутренняя ошибка сервера")
			return
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}))

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))

	// Служебные пути отвечают JSON, страницы консоли — страницей 404
	notFoundPage := i18n.Middleware()(uimiddleware.Sessions(sessions, logger)(http.HandlerFunc(h.Pages.HandleNotFound)))
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if isServicePath(r.URL.Path) {
			apierrors.NotFound(w, "endpoint не найден: "+r.URL.Path)
			return
		}
		notFoundPage.ServeHTTP(w, r)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		if isServicePath(r.URL.Path) {
			apierrors.MethodNotAllowed(w, "метод "+r.Method+" не поддерживается")
			return
		}
		notFoundPage.ServeHTTP(w, r)
	})

	router.Group(func(r chi.Router) {
		r.Use(i18n.Middleware())
		r.Use(uimiddleware.Sessions(sessions, logger))

		// Публичные страницы
		r.Get("/", h.Auth.HandleLoginPage)
		r.Post("/login", h.Auth.HandleLogin)
		r.Post("/forgot-password", h.Auth.HandleForgotPassword)
		r.Post("/logout", h.Auth.HandleLogout)
		r.Post("/lang", handlers.HandleSetLanguage)
		r.Get(uimiddleware.NotFoundPath, h.Pages.HandleNotFound)

		// Страницы для аутентифицированных пользователей
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Get("/home", h.Pages.HandleHome)

			r.Route("/search", func(r chi.Router) {
				r.Get("/", h.Search.HandleSearch)
				r.Post("/unlock", h.Search.HandleUnlock)
				r.Get("/results", h.Search.HandleResults)
				r.Get("/export.csv", h.Search.HandleExportCSV)
				r.Get("/export.pdf", h.Search.HandleExportPDF)
			})

			r.Route("/settings/account", func(r chi.Router) {
				r.Get("/", h.Account.HandleAccount)
				r.Post("/", h.Account.HandleUpdateProfile)
				r.Post("/password", h.Account.HandleChangePassword)
			})

			// admin и super_admin
			r.Group(func(r chi.Router) {
				r.Use(uimiddleware.Guard(rbac.TierAdmin))

				r.Route("/manage", func(r chi.Router) {
					r.Get("/", h.Manage.HandleManage)
					r.Post("/databases", h.Manage.HandleCreateDataset)
					r.Post("/append-rows", h.Manage.HandleAppendRows)
					r.Post("/upload-csv", h.Manage.HandleUploadCSV)
				})

				r.Route("/settings/management", func(r chi.Router) {
					r.Get("/", h.Management.HandleManagement)
					r.Post("/users", h.Management.HandleCreateUser)
					r.Post("/users/{uid}", h.Management.HandleUpdateUser)
					r.Post("/users/{uid}/delete", h.Management.HandleDeleteUser)
				})
			})

			// только super_admin
			r.Route("/settings/department", func(r chi.Router) {
				r.Use(uimiddleware.Guard(rbac.TierSuperAdmin))

				r.Get("/", h.Departments.HandleDepartments)
				r.Post("/", h.Departments.HandleCreateDepartment)
				r.Post("/{id}", h.Departments.HandleUpdateDepartment)
				r.Post("/{id}/delete", h.Departments.HandleDeleteDepartment)
			})
		})
	})

	return router
}

// isServicePath — JSON-пути для Kubernetes и Prometheus.
func isServicePath(path string) bool {
	return strings.HasPrefix(path, "/health/") || path == "/metrics"
}

// Handler возвращает корневой обработчик сервера.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
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
	defer signal.Stop(quit)

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
