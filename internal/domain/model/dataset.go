package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dataset — описание набора данных из каталога (без строк).
type Dataset struct {
	// ID — идентификатор записи каталога
	ID string `json:"id"`
	// SheetID — идентификатор таблицы, используемый в запросах строк
	SheetID string `json:"sheet_id"`
	// Name — имя набора данных
	Name string `json:"database_name"`
	// Department — отдел-владелец
	Department string `json:"department_name"`
	// Columns — колонки набора, если API их сообщает
	Columns []string `json:"columns,omitempty"`
}

// DisplayName возвращает имя без суффикса .csv.
func (d Dataset) DisplayName() string {
	return strings.TrimSuffix(d.Name, ".csv")
}

// Row — строка набора данных: отображение имени колонки в скалярное значение.
// Порядок ключей сохраняется в том виде, в каком их вернул API.
// Значения: string, json.Number, bool, nil или json.RawMessage для вложенных структур.
type Row struct {
	keys   []string
	values map[string]any
}

// NewRow создаёт строку из пар ключ/значение: NewRow("a", "x", "b", 1).
func NewRow(kv ...any) Row {
	r := Row{values: make(map[string]any, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		r.Set(key, kv[i+1])
	}
	return r
}

// Set добавляет или заменяет значение колонки.
func (r *Row) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Keys возвращает колонки строки в исходном порядке.
func (r Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Get возвращает значение колонки; ok == false если колонки нет в строке.
func (r Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Text возвращает текстовое представление значения колонки.
// ok == false для отсутствующей колонки и для null.
func (r Row) Text(key string) (string, bool) {
	v, exists := r.values[key]
	if !exists || v == nil {
		return "", false
	}
	return FormatValue(v), true
}

// FormatValue приводит скалярное значение строки к тексту.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case json.RawMessage:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// Len возвращает количество колонок строки.
func (r Row) Len() int {
	return len(r.keys)
}

// UnmarshalJSON разбирает JSON-объект, сохраняя порядок ключей.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("строка набора данных должна быть JSON-объектом")
	}

	*r = Row{values: make(map[string]any)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("некорректный ключ %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("значение колонки %q: %w", key, err)
		}
		r.Set(key, scalarFromRaw(raw))
	}

	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// MarshalJSON сериализует строку с сохранением порядка ключей.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// scalarFromRaw переводит JSON-значение в скаляр строки.
func scalarFromRaw(raw json.RawMessage) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case 'n':
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err == nil {
			return b
		}
	case '{', '[':
		return json.RawMessage(trimmed)
	default:
		return json.Number(string(trimmed))
	}
	return json.RawMessage(trimmed)
}

// ColumnsOf возвращает колонки набора — ключи первой строки.
// Пустой набор → пустой список колонок.
func ColumnsOf(rows []Row) []string {
	if len(rows) == 0 {
		return []string{}
	}
	return rows[0].Keys()
}
