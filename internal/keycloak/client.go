// client.go — клиент Keycloak Admin REST API.
// Service account token получается через Client Credentials flow
// (golang.org/x/oauth2/clientcredentials) и переиспользуется до истечения.
// Операции: FindUserByEmail, ExecuteActionsEmail, SendPasswordReset, RealmInfo.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrUserNotFound — пользователь с указанным email не найден в realm.
var ErrUserNotFound = errors.New("пользователь не найден")

var resetEmails = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sc_password_reset_emails_total",
	Help: "Запросы писем сброса пароля по результату",
}, []string{"result"})

// Config — параметры клиента.
type Config struct {
	// BaseURL — базовый URL Keycloak (например, https://keycloak.kryukov.lan)
	BaseURL string
	// Realm — имя realm
	Realm string
	// ClientID, ClientSecret — confidential-клиент с service account
	ClientID     string
	ClientSecret string
	// HTTPClient — базовый HTTP-клиент (nil — новый с таймаутом 30s)
	HTTPClient *http.Client
	// ResetLifespan — срок действия ссылки из письма (0 — настройка realm)
	ResetLifespan time.Duration
	// RedirectClientID — клиент, на который ведёт ссылка после смены пароля
	RedirectClientID string
}

// Client — клиент Keycloak Admin REST API.
type Client struct {
	adminURL         string
	httpClient       *http.Client
	lifespan         time.Duration
	redirectClientID string
	logger           *slog.Logger
}

// New создаёт клиент. Токен запрашивается при первом обращении к API.
func New(cfg Config, logger *slog.Logger) *Client {
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", baseURL, cfg.Realm),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := cc.Client(ctx)
	httpClient.Timeout = base.Timeout

	return &Client{
		adminURL:         fmt.Sprintf("%s/admin/realms/%s", baseURL, cfg.Realm),
		httpClient:       httpClient,
		lifespan:         cfg.ResetLifespan,
		redirectClientID: cfg.RedirectClientID,
		logger:           logger.With(slog.String("component", "keycloak_client")),
	}
}

// do выполняет запрос к Admin REST API. target — куда декодировать
// JSON-ответ (nil — тело не читается).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, target any, expected int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("сериализация тела запроса: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.adminURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("декодирование ответа Keycloak: %w", err)
		}
	}
	return nil
}

// FindUserByEmail ищет пользователя realm по email без учёта регистра.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var users []User
	query := url.Values{"email": {email}, "exact": {"true"}}
	if err := c.do(ctx, http.MethodGet, "/users", query, nil, &users, http.StatusOK); err != nil {
		return nil, fmt.Errorf("поиск пользователя: %w", err)
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

// ExecuteActionsEmail отправляет пользователю письмо с required actions.
func (c *Client) ExecuteActionsEmail(ctx context.Context, userID string, actions []string) error {
	query := url.Values{}
	if c.lifespan > 0 {
		query.Set("lifespan", strconv.Itoa(int(c.lifespan.Seconds())))
	}
	if c.redirectClientID != "" {
		query.Set("client_id", c.redirectClientID)
	}

	path := "/users/" + url.PathEscape(userID) + "/execute-actions-email"
	if err := c.do(ctx, http.MethodPut, path, query, actions, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("отправка письма: %w", err)
	}
	return nil
}

// SendPasswordReset отправляет письмо сброса пароля пользователю с email.
// Неизвестный email не считается ошибкой: ответ не раскрывает, есть ли учётная запись.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	user, err := c.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		resetEmails.WithLabelValues("unknown_user").Inc()
		c.logger.Info("Сброс пароля для неизвестного email", slog.String("email", email))
		return nil
	}
	if err == nil {
		err = c.ExecuteActionsEmail(ctx, user.ID, []string{ActionUpdatePassword})
	}
	if err != nil {
		resetEmails.WithLabelValues("error").Inc()
		return err
	}

	resetEmails.WithLabelValues("sent").Inc()
	c.logger.Info("Письмо сброса пароля отправлено", slog.String("user_id", user.ID))
	return nil
}

// RealmInfo возвращает информацию о realm.
func (c *Client) RealmInfo(ctx context.Context) (*Realm, error) {
	var realm Realm
	if err := c.do(ctx, http.MethodGet, "", nil, nil, &realm, http.StatusOK); err != nil {
		return nil, fmt.Errorf("запрос realm: %w", err)
	}
	return &realm, nil
}

// CheckReady проверяет доступность Keycloak через realm info.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	realm, err := c.RealmInfo(ctx)
	switch {
	case err != nil:
		return "fail", fmt.Sprintf("Keycloak недоступен: %v", err)
	case !realm.Enabled:
		return "degraded", fmt.Sprintf("Realm %s отключён", realm.Realm)
	default:
		return "ok", fmt.Sprintf("Realm %s доступен", realm.Realm)
	}
}
