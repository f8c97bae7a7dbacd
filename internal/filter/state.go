package filter

import (
	"slices"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

// DefaultVisible — количество колонок, фильтры которых показаны сразу.
const DefaultVisible = 3

// State — состояние поиска для открытого набора данных.
type State struct {
	FreeText      string
	ColumnFilters map[string]string
	// Visible — колонки с показанными фильтрами, в порядке добавления.
	Visible []string

	columns []string
}

// NewState создаёт состояние для набора с указанными колонками.
func NewState(columns []string) *State {
	s := &State{}
	s.Reset(columns)
	return s
}

// Reset сбрасывает поиск и фильтры при смене набора данных.
func (s *State) Reset(columns []string) {
	s.columns = slices.Clone(columns)
	s.FreeText = ""
	s.ColumnFilters = make(map[string]string)
	n := min(DefaultVisible, len(columns))
	s.Visible = slices.Clone(columns[:n])
}

// Columns возвращает все колонки набора.
func (s *State) Columns() []string {
	return slices.Clone(s.columns)
}

// Extra возвращает колонки, которые можно показать или скрыть.
func (s *State) Extra() []string {
	if len(s.columns) <= DefaultVisible {
		return nil
	}
	return slices.Clone(s.columns[DefaultVisible:])
}

// IsVisible сообщает, показан ли фильтр колонки.
func (s *State) IsVisible(column string) bool {
	return slices.Contains(s.Visible, column)
}

// Toggle показывает или скрывает фильтр дополнительной колонки.
// Колонки по умолчанию не переключаются. Выбранное значение фильтра
// скрытой колонки сохраняется и продолжает действовать.
func (s *State) Toggle(column string) bool {
	if !slices.Contains(s.Extra(), column) {
		return false
	}
	if i := slices.Index(s.Visible, column); i >= 0 {
		s.Visible = slices.Delete(s.Visible, i, i+1)
		return true
	}
	s.Visible = append(s.Visible, column)
	return true
}

// Set выбирает значение фильтра колонки. Неизвестные колонки игнорируются.
// Пустая строка — обычное значение: отбираются строки с пустой ячейкой.
func (s *State) Set(column, value string) {
	if !slices.Contains(s.columns, column) {
		return
	}
	s.ColumnFilters[column] = value
}

// Selected возвращает выбранное значение фильтра колонки.
func (s *State) Selected(column string) string {
	if v, ok := s.ColumnFilters[column]; ok {
		return v
	}
	return All
}

// Result применяет состояние к строкам.
func (s *State) Result(e *Engine, rows []model.Row) []model.Row {
	return e.Apply(rows, s.ColumnFilters, s.FreeText)
}
