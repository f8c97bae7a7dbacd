package directory

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

// Prometheus-метрики кэша строк.
var (
	rowsCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sc_rows_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш строк наборов данных.",
	})
	rowsCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sc_rows_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша строк наборов данных.",
	})
)

// RowsCache — LRU-кэш строк наборов данных по sheet_id с TTL.
// Читается только после успешной проверки пароля набора.
type RowsCache struct {
	cache *expirable.LRU[string, []model.Row]
}

// NewRowsCache создаёт кэш с максимальным размером maxSize и временем жизни ttl.
func NewRowsCache(maxSize int, ttl time.Duration) *RowsCache {
	return &RowsCache{cache: expirable.NewLRU[string, []model.Row](maxSize, nil, ttl)}
}

// Get возвращает строки набора. Обновляет метрики hit/miss.
func (c *RowsCache) Get(sheetID string) ([]model.Row, bool) {
	rows, ok := c.cache.Get(sheetID)
	if ok {
		rowsCacheHitsTotal.Inc()
		return rows, true
	}
	rowsCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет строки набора.
func (c *RowsCache) Set(sheetID string, rows []model.Row) {
	c.cache.Add(sheetID, rows)
}

// Invalidate удаляет строки набора (после append-rows / upload-csv).
func (c *RowsCache) Invalidate(sheetID string) {
	c.cache.Remove(sheetID)
}
