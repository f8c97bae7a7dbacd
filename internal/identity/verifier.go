package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken — ID token не прошёл проверку.
var ErrInvalidToken = errors.New("невалидный или просроченный токен")

// Claims — проверенные claims ID token.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// ExpiresWithin сообщает, истекает ли токен в течение d.
func (c *Claims) ExpiresWithin(d time.Duration, now time.Time) bool {
	return !now.Add(d).Before(c.ExpiresAt)
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// VerifierConfig — параметры проверки ID token.
type VerifierConfig struct {
	// JWKSURL — endpoint ключей realm.
	JWKSURL string
	// Issuer — ожидаемый iss (пусто — не проверяется).
	Issuer string
	// Audience — ожидаемый aud (client id; пусто — не проверяется).
	Audience string
	// HTTPClient — клиент для загрузки JWKS (nil — http.DefaultClient).
	HTTPClient *http.Client
	// RefreshInterval — интервал обновления JWKS.
	RefreshInterval time.Duration
	// Leeway — допустимое отклонение часов.
	Leeway time.Duration
}

// Verifier проверяет подпись и срок действия ID token через JWKS.
type Verifier struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	audience string
	leeway   time.Duration
	logger   *slog.Logger
}

// NewVerifier создаёт Verifier с фоновым обновлением JWKS.
// Старт не требует доступности Keycloak.
func NewVerifier(cfg VerifierConfig, logger *slog.Logger) (*Verifier, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = 15 * time.Minute
	}

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refresh,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", cfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewVerifierWithKeyfunc(k, cfg.Issuer, cfg.Audience, cfg.Leeway, logger), nil
}

// NewVerifierWithKeyfunc создаёт Verifier с готовой keyfunc.
func NewVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer, audience string, leeway time.Duration, logger *slog.Logger) *Verifier {
	return &Verifier{
		jwks:     kf,
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
		logger:   logger.With(slog.String("component", "id_token_verifier")),
	}
}

// Verify проверяет ID token (RS256, exp обязателен) и возвращает claims.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	raw := &idTokenClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, raw, v.jwks.KeyfuncCtx(ctx), opts...)
	if err != nil || !token.Valid {
		v.logger.Debug("ID token не прошёл проверку", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := raw.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: отсутствует sub", ErrInvalidToken)
	}

	claims := &Claims{Subject: subject, Email: raw.Email}
	if raw.ExpiresAt != nil {
		claims.ExpiresAt = raw.ExpiresAt.Time
	}
	return claims, nil
}
