// Пакет filter реализует поиск и фильтрацию строк открытого набора данных.
package filter

import (
	"strings"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

// All — значение фильтра колонки, не накладывающее ограничений.
const All = "All"

// DefaultNotAvailable — маркер отсутствующего значения по умолчанию.
const DefaultNotAvailable = "N/A"

// Engine выполняет фильтрацию строк. Отсутствующие значения
// сравниваются и отображаются как маркер notAvailable.
type Engine struct {
	notAvailable string
}

// New создаёт Engine. Пустой notAvailable заменяется на DefaultNotAvailable.
func New(notAvailable string) *Engine {
	if notAvailable == "" {
		notAvailable = DefaultNotAvailable
	}
	return &Engine{notAvailable: notAvailable}
}

// Normalize возвращает значение колонки строки для сравнения и отображения.
func (e *Engine) Normalize(row model.Row, column string) string {
	text, ok := row.Text(column)
	if !ok {
		return e.notAvailable
	}
	return text
}

// DistinctValues возвращает варианты фильтра колонки: All, затем
// различные нормализованные значения в порядке первого появления.
func (e *Engine) DistinctValues(rows []model.Row, column string) []string {
	out := []string{All}
	seen := map[string]struct{}{All: {}}
	for _, row := range rows {
		v := e.Normalize(row, column)
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Apply возвращает строки, прошедшие фильтры колонок и свободный поиск.
// Порядок строк сохраняется.
func (e *Engine) Apply(rows []model.Row, filters map[string]string, freeText string) []model.Row {
	active := activeConstraints(filters)
	query := strings.ToLower(freeText)

	out := make([]model.Row, 0, len(rows))
	for _, row := range rows {
		matchesSearch := matchesText(row, query)
		if len(active) == 0 {
			if matchesSearch {
				out = append(out, row)
			}
			continue
		}
		if e.matchesAll(row, active) && matchesSearch {
			out = append(out, row)
		}
	}
	return out
}

type constraint struct {
	column string
	value  string
}

// activeConstraints отбрасывает фильтры со значением All.
func activeConstraints(filters map[string]string) []constraint {
	var active []constraint
	for col, val := range filters {
		if val == All {
			continue
		}
		active = append(active, constraint{column: col, value: val})
	}
	return active
}

func (e *Engine) matchesAll(row model.Row, active []constraint) bool {
	for _, c := range active {
		if e.Normalize(row, c.column) != c.value {
			return false
		}
	}
	return true
}

// matchesText — регистронезависимый поиск подстроки в любом значении строки.
// Пустой запрос совпадает со всеми строками.
func matchesText(row model.Row, query string) bool {
	if query == "" {
		return true
	}
	for _, key := range row.Keys() {
		text, ok := row.Text(key)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(text), query) {
			return true
		}
	}
	return false
}
