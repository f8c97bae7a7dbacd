// Пакет export кодирует отфильтрованные строки набора данных в CSV и PDF.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

// TimestampLayout — формат метки времени в имени файла и заголовке PDF.
const TimestampLayout = "2006-01-02_15-04-05"

// Format — формат выгрузки.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat разбирает имя формата.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("неизвестный формат экспорта %q", s)
	}
}

// ContentType возвращает MIME-тип формата.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Document — готовый файл выгрузки.
type Document struct {
	FileName    string
	ContentType string
	Format      Format
	Body        []byte
}

// BaseName возвращает имя набора без суффикса .csv.
func BaseName(name string) string {
	return strings.TrimSuffix(name, ".csv")
}

// Timestamp форматирует момент выгрузки.
func Timestamp(at time.Time) string {
	return at.Format(TimestampLayout)
}

// FileName возвращает имя файла вида {name}_{YYYY-MM-DD_HH-MM-SS}.{ext}.
func FileName(name string, at time.Time, ext Format) string {
	return fmt.Sprintf("%s_%s.%s", BaseName(name), Timestamp(at), ext)
}

// Encode кодирует строки в выбранный формат.
func Encode(format Format, name string, at time.Time, rows []model.Row, columns []string) (Document, error) {
	doc := Document{
		FileName:    FileName(name, at, format),
		ContentType: format.ContentType(),
		Format:      format,
	}

	switch format {
	case FormatCSV:
		doc.Body = CSV(rows, columns)
	case FormatPDF:
		body, err := PDF(name, at, rows, columns)
		if err != nil {
			return Document{}, err
		}
		doc.Body = body
	default:
		return Document{}, fmt.Errorf("неизвестный формат экспорта %q", format)
	}
	return doc, nil
}
