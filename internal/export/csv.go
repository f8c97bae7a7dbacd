package export

import (
	"bytes"
	"strings"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

// CSV кодирует строки: первая строка — заголовки, далее по строке на запись.
// Каждое поле в двойных кавычках, кавычки внутри удваиваются,
// разделитель строк "\n". Отсутствующие значения — пустая строка.
func CSV(rows []model.Row, columns []string) []byte {
	var buf bytes.Buffer

	writeRecord(&buf, columns)
	fields := make([]string, len(columns))
	for _, row := range rows {
		buf.WriteByte('\n')
		for i, col := range columns {
			text, _ := row.Text(col)
			fields[i] = text
		}
		writeRecord(&buf, fields)
	}
	return buf.Bytes()
}

func writeRecord(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
}
