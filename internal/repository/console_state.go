package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ConsoleStateRepository — таблица console_state (состояние сессий).
// Реализует session.StateRepository.
type ConsoleStateRepository struct {
	db DBTX
}

// NewConsoleStateRepository создаёт репозиторий состояния сессий.
func NewConsoleStateRepository(db DBTX) *ConsoleStateRepository {
	return &ConsoleStateRepository{db: db}
}

// GetValue возвращает значение ключа сессии. Просроченные записи не видны.
func (r *ConsoleStateRepository) GetValue(ctx context.Context, sessionID, key string) (string, bool, error) {
	query := `
		SELECT value
		FROM console_state
		WHERE session_id = $1 AND key = $2 AND expires_at > NOW()`

	var value string
	err := r.db.QueryRow(ctx, query, sessionID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("ошибка получения console_state[%s]: %w", key, err)
	}
	return value, true, nil
}

// SetValue создаёт или обновляет значение (upsert) и продлевает срок жизни.
func (r *ConsoleStateRepository) SetValue(ctx context.Context, sessionID, key, value string, expiresAt time.Time) error {
	query := `
		INSERT INTO console_state (session_id, key, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, key) DO UPDATE
		SET value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, sessionID, key, value, expiresAt); err != nil {
		return fmt.Errorf("ошибка сохранения console_state[%s]: %w", key, err)
	}
	return nil
}

// DeleteValues удаляет ключи сессии. Без ключей удаляет всю сессию.
func (r *ConsoleStateRepository) DeleteValues(ctx context.Context, sessionID string, keys ...string) error {
	var err error
	if len(keys) == 0 {
		_, err = r.db.Exec(ctx, `DELETE FROM console_state WHERE session_id = $1`, sessionID)
	} else {
		_, err = r.db.Exec(ctx,
			`DELETE FROM console_state WHERE session_id = $1 AND key = ANY($2)`,
			sessionID, keys)
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления console_state: %w", err)
	}
	return nil
}

// DeleteExpired удаляет просроченные записи и возвращает их количество.
func (r *ConsoleStateRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM console_state WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки console_state: %w", err)
	}
	return tag.RowsAffected(), nil
}
