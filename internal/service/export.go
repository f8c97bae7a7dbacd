package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/export"
	"github.com/bigkaa/sheetsconsole/internal/repository"
)

// Archiver сохраняет копию документа экспорта.
type Archiver interface {
	Store(ctx context.Context, department string, doc export.Document) (string, error)
}

// AuditRecorder записывает экспорт в журнал.
type AuditRecorder interface {
	Create(ctx context.Context, rec *repository.ExportRecord) error
}

// ExportRequest — экспорт отфильтрованных строк набора.
type ExportRequest struct {
	Format  export.Format
	Dataset model.Dataset
	Rows    []model.Row
	Columns []string
	User    *model.User
}

// ExportService формирует документы экспорта, архивирует их в S3
// и записывает в журнал. Архив и журнал опциональны: их ошибки
// логируются и не мешают выдаче документа.
type ExportService struct {
	archive Archiver
	audit   AuditRecorder
	now     func() time.Time
	logger  *slog.Logger
}

// NewExportService создаёт сервис экспорта. archive и audit могут быть nil.
func NewExportService(archive Archiver, audit AuditRecorder, logger *slog.Logger) *ExportService {
	return &ExportService{
		archive: archive,
		audit:   audit,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "export")),
	}
}

// Export кодирует строки в документ указанного формата.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (export.Document, error) {
	if req.Dataset.ID == "" && req.Dataset.SheetID == "" {
		return export.Document{}, ErrNothingToExport
	}

	at := s.now()
	doc, err := export.Encode(req.Format, req.Dataset.Name, at, req.Rows, req.Columns)
	if err != nil {
		return export.Document{}, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	var archiveKey *string
	if s.archive != nil {
		key, err := s.archive.Store(ctx, req.Dataset.Department, doc)
		if err != nil {
			s.logger.Warn("Не удалось сохранить экспорт в архив",
				slog.String("file", doc.FileName),
				slog.String("error", err.Error()),
			)
		} else {
			archiveKey = &key
		}
	}

	if s.audit != nil {
		rec := &repository.ExportRecord{
			ID:          uuid.NewString(),
			DatasetID:   req.Dataset.ID,
			DatasetName: req.Dataset.Name,
			Department:  req.Dataset.Department,
			Format:      string(req.Format),
			FileName:    doc.FileName,
			RowCount:    len(req.Rows),
			ColumnCount: len(req.Columns),
			ArchiveKey:  archiveKey,
		}
		if req.User != nil {
			rec.UserID = req.User.ID
			rec.UserEmail = req.User.Email
		}
		if err := s.audit.Create(ctx, rec); err != nil {
			s.logger.Warn("Не удалось записать экспорт в журнал",
				slog.String("file", doc.FileName),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Экспорт сформирован",
		slog.String("file", doc.FileName),
		slog.Int("rows", len(req.Rows)),
		slog.Bool("archived", archiveKey != nil),
	)
	return doc, nil
}
