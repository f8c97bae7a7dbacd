package model

import "time"

// CleanupResult — результат очистки просроченного состояния сессий.
type CleanupResult struct {
	// Removed — удалено записей console_state
	Removed int64
	// StartedAt — время начала очистки
	StartedAt time.Time
	// CompletedAt — время завершения очистки
	CompletedAt time.Time
}

// Duration возвращает длительность очистки.
func (r CleanupResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
