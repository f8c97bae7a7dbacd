package session

import (
	"context"
	"time"
)

// StateRepository — постоянное хранилище состояния сессий (таблица console_state).
type StateRepository interface {
	GetValue(ctx context.Context, sessionID, key string) (string, bool, error)
	SetValue(ctx context.Context, sessionID, key, value string, expiresAt time.Time) error
	DeleteValues(ctx context.Context, sessionID string, keys ...string) error
}

// PostgresStorage — Storage поверх StateRepository.
type PostgresStorage struct {
	repo StateRepository
	id   string
	ttl  time.Duration
	now  func() time.Time
}

// NewPostgresStorage создаёт Storage сессии id.
func NewPostgresStorage(repo StateRepository, id string, ttl time.Duration) *PostgresStorage {
	return &PostgresStorage{repo: repo, id: id, ttl: ttl, now: time.Now}
}

func (s *PostgresStorage) Get(ctx context.Context, key string) (string, bool, error) {
	return s.repo.GetValue(ctx, s.id, key)
}

func (s *PostgresStorage) Set(ctx context.Context, key, value string) error {
	return s.repo.SetValue(ctx, s.id, key, value, s.now().Add(s.ttl))
}

func (s *PostgresStorage) Delete(ctx context.Context, keys ...string) error {
	return s.repo.DeleteValues(ctx, s.id, keys...)
}
