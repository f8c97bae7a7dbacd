// metrics.go — Prometheus HTTP метрики Sheets Console.
// Регистрирует метрики: sc_http_requests_total, sc_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sc_http_requests_total",
			Help: "Общее количество HTTP-запросов к Sheets Console",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sc_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Sheets Console в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

// statusRecorder — обёртка для перехвата статус-кода.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// knownPaths — статические пути консоли.
var knownPaths = map[string]bool{
	"/": true, "/login": true, "/logout": true, "/forgot-password": true,
	"/home": true, "/404": true, "/lang": true,
	"/search": true, "/search/unlock": true, "/search/results": true,
	"/search/export.csv": true, "/search/export.pdf": true,
	"/manage": true, "/manage/databases": true, "/manage/append-rows": true, "/manage/upload-csv": true,
	"/settings/account": true, "/settings/account/password": true,
	"/settings/management": true, "/settings/management/users": true,
	"/settings/department": true,
	"/health/live": true, "/health/ready": true, "/metrics": true,
}

// normalizePath заменяет идентификаторы в пути на {id} и сворачивает
// неизвестные пути, чтобы ограничить кардинальность метрик.
// /settings/management/users/abc123/delete → /settings/management/users/{id}/delete
func normalizePath(path string) string {
	if knownPaths[path] {
		return path
	}

	prefixes := []string{
		"/settings/management/users/",
		"/settings/department/",
	}
	for _, prefix := range prefixes {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" {
			continue
		}
		_, suffix, found := strings.Cut(rest, "/")
		if found {
			return prefix + "{id}/" + suffix
		}
		return prefix + "{id}"
	}

	if strings.HasPrefix(path, "/static/") {
		return "/static/*"
	}
	return "other"
}
