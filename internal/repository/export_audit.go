package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ExportRecord — запись журнала экспортов.
type ExportRecord struct {
	ID          string
	UserID      string
	UserEmail   string
	DatasetID   string
	DatasetName string
	Department  string
	Format      string
	FileName    string
	RowCount    int
	ColumnCount int
	// ArchiveKey — ключ копии в S3 (nil, если архив не настроен)
	ArchiveKey *string
	CreatedAt  time.Time
}

// ExportAuditRepository — таблица export_audit.
type ExportAuditRepository struct {
	db DBTX
}

// NewExportAuditRepository создаёт репозиторий журнала экспортов.
func NewExportAuditRepository(db DBTX) *ExportAuditRepository {
	return &ExportAuditRepository{db: db}
}

// Create добавляет запись. Заполняет CreatedAt из БД.
func (r *ExportAuditRepository) Create(ctx context.Context, rec *ExportRecord) error {
	query := `
		INSERT INTO export_audit (
			id, user_id, user_email, dataset_id, dataset_name, department,
			format, file_name, row_count, column_count, archive_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		rec.ID, rec.UserID, rec.UserEmail, rec.DatasetID, rec.DatasetName, rec.Department,
		rec.Format, rec.FileName, rec.RowCount, rec.ColumnCount, rec.ArchiveKey,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи export_audit: %w", err)
	}
	return nil
}

// GetByID возвращает запись по id. Если не найдена — ErrNotFound.
func (r *ExportAuditRepository) GetByID(ctx context.Context, id string) (*ExportRecord, error) {
	query := `
		SELECT id, user_id, user_email, dataset_id, dataset_name, department,
			format, file_name, row_count, column_count, archive_key, created_at
		FROM export_audit
		WHERE id = $1`

	rec, err := scanExportRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения export_audit[%s]: %w", id, err)
	}
	return rec, nil
}

// ListByUser возвращает последние limit записей пользователя (новые первыми).
func (r *ExportAuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]ExportRecord, error) {
	query := `
		SELECT id, user_id, user_email, dataset_id, dataset_name, department,
			format, file_name, row_count, column_count, archive_key, created_at
		FROM export_audit
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения export_audit: %w", err)
	}
	defer rows.Close()

	records := []ExportRecord{}
	for rows.Next() {
		rec, err := scanExportRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования export_audit: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanExportRecord(row pgx.Row) (*ExportRecord, error) {
	rec := &ExportRecord{}
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.UserEmail, &rec.DatasetID, &rec.DatasetName, &rec.Department,
		&rec.Format, &rec.FileName, &rec.RowCount, &rec.ColumnCount, &rec.ArchiveKey, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
