// Пакет repository — собственное состояние консоли в PostgreSQL:
// console_state (сессии) и export_audit (журнал экспорта). Чистый SQL через pgx.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound — запись отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// DBTX — общий для *pgxpool.Pool и pgx.Tx набор методов.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
