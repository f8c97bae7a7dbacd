package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TokenResponse — ответ token endpoint Keycloak.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`  //nolint:gosec // G117: структура токена OAuth2
	RefreshToken     string `json:"refresh_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	IDToken          string `json:"id_token"`
}

// TokenError — ошибка token endpoint Keycloak.
type TokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Config — параметры клиента realm.
type Config struct {
	// KeycloakURL — базовый URL Keycloak.
	KeycloakURL string
	// Realm — имя realm.
	Realm string
	// ClientID — клиент с разрешённым Direct Access Grant.
	ClientID string
	// ClientSecret — секрет confidential-клиента (пусто для public).
	ClientSecret string
	// HTTPClient — HTTP-клиент (nil — создаётся новый с Timeout).
	HTTPClient *http.Client
	// Timeout — таймаут HTTP-запросов при HTTPClient == nil.
	Timeout time.Duration
}

// Client — клиент OIDC endpoints realm.
type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	logoutURL    string
	httpClient   *http.Client
	logger       *slog.Logger
	resetter     PasswordResetter
}

// PasswordResetter отправляет письмо сброса пароля.
type PasswordResetter interface {
	SendPasswordReset(ctx context.Context, email string) error
}

// NewClient создаёт клиент realm. resetter может быть nil — тогда
// сброс пароля недоступен.
func NewClient(cfg Config, resetter PasswordResetter, logger *slog.Logger) *Client {
	realmURL := fmt.Sprintf("%s/realms/%s", strings.TrimRight(cfg.KeycloakURL, "/"), cfg.Realm)
	oidcBase := realmURL + "/protocol/openid-connect"

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     oidcBase + "/token",
		logoutURL:    oidcBase + "/logout",
		httpClient:   httpClient,
		logger:       logger.With(slog.String("component", "identity")),
		resetter:     resetter,
	}
}

// SignIn выполняет вход по email и паролю (grant_type=password, scope=openid).
// Ошибки возвращаются как *AuthError с кодом.
func (c *Client) SignIn(ctx context.Context, email, password string) (*TokenResponse, error) {
	if !emailPattern.MatchString(email) {
		return nil, &AuthError{Code: CodeInvalidEmail}
	}

	data := url.Values{
		"grant_type": {"password"},
		"client_id":  {c.clientID},
		"username":   {email},
		"password":   {password},
		"scope":      {"openid profile email"},
	}
	tokens, err := c.doTokenRequest(ctx, data)
	if err != nil {
		return nil, err
	}
	if tokens.IDToken == "" {
		return nil, &AuthError{Code: CodeInternal, Err: errors.New("ответ без id_token")}
	}
	return tokens, nil
}

// Refresh обновляет токены по refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
		"scope":         {"openid"},
	}
	return c.doTokenRequest(ctx, data)
}

// SignOut завершает сессию в Keycloak (back-channel logout по refresh token).
func (c *Client) SignOut(ctx context.Context, refreshToken string) error {
	data := url.Values{
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
	}
	if c.clientSecret != "" {
		data.Set("client_secret", c.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.logoutURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return &AuthError{Code: CodeNetworkRequestFailed, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("logout endpoint вернул статус %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// SendPasswordReset отправляет письмо сброса пароля.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	if !emailPattern.MatchString(email) {
		return &AuthError{Code: CodeInvalidEmail}
	}
	if c.resetter == nil {
		return &AuthError{Code: CodeInternal, Err: errors.New("сброс пароля не настроен")}
	}
	return c.resetter.SendPasswordReset(ctx, email)
}

// doTokenRequest выполняет POST-запрос к token endpoint Keycloak.
func (c *Client) doTokenRequest(ctx context.Context, data url.Values) (*TokenResponse, error) {
	if c.clientSecret != "" {
		data.Set("client_secret", c.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return nil, &AuthError{Code: CodeNetworkRequestFailed, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Code: CodeNetworkRequestFailed, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyTokenError(resp.StatusCode, body)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &AuthError{Code: CodeInternal, Err: fmt.Errorf("ошибка парсинга token response: %w", err)}
	}
	return &tokenResp, nil
}

// classifyTokenError сопоставляет ответ Keycloak коду ошибки.
func classifyTokenError(status int, body []byte) *AuthError {
	var tokenErr TokenError
	_ = json.Unmarshal(body, &tokenErr)
	cause := fmt.Errorf("token endpoint вернул статус %d: %s %s", status, tokenErr.Error, tokenErr.Description)

	desc := strings.ToLower(tokenErr.Description)
	switch {
	case status == http.StatusTooManyRequests,
		strings.Contains(desc, "temporarily disabled"),
		strings.Contains(desc, "locked"):
		return &AuthError{Code: CodeTooManyRequests, Err: cause}
	case strings.Contains(desc, "user not found"):
		return &AuthError{Code: CodeUserNotFound, Err: cause}
	case tokenErr.Error == "invalid_grant":
		return &AuthError{Code: CodeInvalidCredential, Err: cause}
	case status >= 500:
		return &AuthError{Code: CodeNetworkRequestFailed, Err: cause}
	default:
		return &AuthError{Code: CodeInternal, Err: cause}
	}
}
