package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Имя cookie с идентификатором сессии.
const IDCookieName = "sc_sid"

// Backend открывает Storage для запроса и идентификатора сессии.
type Backend interface {
	Open(w http.ResponseWriter, r *http.Request, id string) Storage
}

// CookieBackend — состояние в зашифрованном cookie.
type CookieBackend struct {
	Codec  *Codec
	Secure bool
	TTL    time.Duration
}

func (b CookieBackend) Open(w http.ResponseWriter, r *http.Request, _ string) Storage {
	return newCookieStorage(b.Codec, w, r, b.Secure, b.TTL)
}

// RedisBackend — состояние в Redis, в cookie только идентификатор.
type RedisBackend struct {
	Client redis.Cmdable
	TTL    time.Duration
}

func (b RedisBackend) Open(_ http.ResponseWriter, _ *http.Request, id string) Storage {
	return NewRedisStorage(b.Client, id, b.TTL)
}

// PostgresBackend — состояние в таблице console_state.
type PostgresBackend struct {
	Repo StateRepository
	TTL  time.Duration
}

func (b PostgresBackend) Open(_ http.ResponseWriter, _ *http.Request, id string) Storage {
	return NewPostgresStorage(b.Repo, id, b.TTL)
}

// Manager создаёт Store для HTTP-запросов веб-консоли.
type Manager struct {
	backend   Backend
	signOuter SignOuter
	secure    bool
	ttl       time.Duration
	logger    *slog.Logger
}

// NewManager создаёт Manager.
func NewManager(backend Backend, signOuter SignOuter, secure bool, ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		backend:   backend,
		signOuter: signOuter,
		secure:    secure,
		ttl:       ttl,
		logger:    logger,
	}
}

// Load возвращает гидратированный Store сессии запроса. Идентификатор
// сессии берётся из cookie или создаётся новый.
func (m *Manager) Load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Store, error) {
	id := m.sessionID(w, r)
	store := NewStore(id, m.backend.Open(w, r, id), m.signOuter, m.logger)
	if err := store.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("восстановление сессии: %w", err)
	}
	return store, nil
}

// Renew выдаёт сессии новый идентификатор (при входе). Сохранённое
// состояние прежней сессии удаляется, возвращается пустой Store.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, r *http.Request, old *Store) (*Store, error) {
	if old != nil {
		if err := old.discard(ctx); err != nil {
			return nil, fmt.Errorf("очистка прежней сессии: %w", err)
		}
	}
	id := m.issueID(w)
	return NewStore(id, m.backend.Open(w, r, id), m.signOuter, m.logger), nil
}

func (m *Manager) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(IDCookieName); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return c.Value
		}
	}
	return m.issueID(w)
}

func (m *Manager) issueID(w http.ResponseWriter) string {
	id := uuid.NewString()
	replaceCookie(w, &http.Cookie{
		Name:     IDCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

type contextKey struct{}

// WithStore помещает Store в контекст запроса.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext извлекает Store из контекста. nil если не установлен.
func FromContext(ctx context.Context) *Store {
	s, _ := ctx.Value(contextKey{}).(*Store)
	return s
}
