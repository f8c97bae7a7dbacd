package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

func TestState_DefaultVisible(t *testing.T) {
	s := NewState([]string{"a", "b", "c", "d", "e"})
	assert.Equal(t, []string{"a", "b", "c"}, s.Visible)
	assert.Equal(t, []string{"d", "e"}, s.Extra())

	short := NewState([]string{"a"})
	assert.Equal(t, []string{"a"}, short.Visible)
	assert.Nil(t, short.Extra())

	empty := NewState(nil)
	assert.Empty(t, empty.Visible)
}

func TestState_ToggleKeepsLatentFilter(t *testing.T) {
	s := NewState([]string{"a", "b", "c", "d"})

	assert.False(t, s.Toggle("a"), "колонки по умолчанию не переключаются")
	assert.False(t, s.Toggle("unknown"))

	assert.True(t, s.Toggle("d"))
	assert.True(t, s.IsVisible("d"))
	s.Set("d", "1")

	assert.True(t, s.Toggle("d"))
	assert.False(t, s.IsVisible("d"))
	assert.Equal(t, "1", s.Selected("d"), "скрытый фильтр сохраняется")

	rows := []model.Row{
		model.NewRow("a", "x", "b", "", "c", "", "d", "1"),
		model.NewRow("a", "y", "b", "", "c", "", "d", "2"),
	}
	got := s.Result(New(""), rows)
	assert.Len(t, got, 1, "скрытый фильтр продолжает действовать")
}

func TestState_SetAndReset(t *testing.T) {
	s := NewState([]string{"a", "b"})
	s.Set("zzz", "1")
	assert.NotContains(t, s.ColumnFilters, "zzz")

	s.Set("a", "")
	assert.Equal(t, "", s.Selected("a"))

	s.Set("a", "x")
	s.FreeText = "q"
	s.Reset([]string{"k"})

	assert.Empty(t, s.ColumnFilters)
	assert.Empty(t, s.FreeText)
	assert.Equal(t, []string{"k"}, s.Columns())
	assert.Equal(t, All, s.Selected("k"))
}

func TestState_EmptyValueSelectsBlankCells(t *testing.T) {
	s := NewState([]string{"a"})
	rows := []model.Row{
		model.NewRow("a", ""),
		model.NewRow("a", "x"),
	}

	s.Set("a", "")
	got := s.Result(New(""), rows)
	require.Len(t, got, 1)
	text, _ := got[0].Text("a")
	assert.Empty(t, text)

	s.Set("a", All)
	assert.Len(t, s.Result(New(""), rows), 2)
}
