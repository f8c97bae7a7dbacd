package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ReadinessChecker — проверка готовности remote API для /health/ready.
type ReadinessChecker struct {
	client *Client
	path   string
}

// NewReadinessChecker создаёт проверку health endpoint API по path.
func NewReadinessChecker(client *Client, path string) *ReadinessChecker {
	return &ReadinessChecker{client: client, path: path}
}

// CheckReady: 2xx — ok, 5xx или ошибка сети — fail, иначе degraded.
func (c *ReadinessChecker) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.client.baseURL+c.path, nil)
	if err != nil {
		return "fail", fmt.Sprintf("некорректный URL API: %v", err)
	}
	resp, err := c.client.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return "fail", fmt.Sprintf("API недоступен: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return "ok", "API доступен"
	case resp.StatusCode >= 500:
		return "fail", fmt.Sprintf("API вернул статус %d", resp.StatusCode)
	default:
		return "degraded", fmt.Sprintf("API вернул статус %d", resp.StatusCode)
	}
}
