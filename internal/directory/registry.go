package directory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Registry хранит каталоги сессий по session id.
// Неактивные каталоги вытесняются по TTL.
type Registry struct {
	source      Source
	cache       *RowsCache
	placeholder string
	logger      *slog.Logger

	mu    sync.Mutex
	items *expirable.LRU[string, *Directory]
}

// NewRegistry создаёт реестр на maxSessions каталогов с временем жизни ttl.
func NewRegistry(source Source, cache *RowsCache, placeholder string, maxSessions int, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		source:      source,
		cache:       cache,
		placeholder: placeholder,
		logger:      logger,
		items:       expirable.NewLRU[string, *Directory](maxSessions, nil, ttl),
	}
}

// For возвращает каталог сессии, создавая его при отсутствии.
func (r *Registry) For(sessionID string) *Directory {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.items.Get(sessionID); ok {
		return d
	}
	d := New(r.source, r.cache, r.placeholder, r.logger)
	r.items.Add(sessionID, d)
	return d
}

// Forget удаляет каталог сессии (при выходе).
func (r *Registry) Forget(sessionID string) {
	r.items.Remove(sessionID)
}

// Cache возвращает общий кэш строк.
func (r *Registry) Cache() *RowsCache {
	return r.cache
}
