package filter

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

func threeRows() []model.Row {
	return []model.Row{
		model.NewRow("a", "x", "b", "1"),
		model.NewRow("a", "y", "b", "1"),
		model.NewRow("a", "x", "b", "2"),
	}
}

func TestApply_ThreeRowScenario(t *testing.T) {
	rows := threeRows()
	got := New("").Apply(rows, map[string]string{"a": "x"}, "")

	require.Len(t, got, 2)
	assert.Equal(t, rows[0], got[0])
	assert.Equal(t, rows[2], got[1])
}

func TestApply_Table(t *testing.T) {
	rows := []model.Row{
		model.NewRow("name", "Alice", "city", "Moscow", "age", 30),
		model.NewRow("name", "Bob", "city", nil, "age", 25),
		model.NewRow("name", "alina", "city", "Kazan"),
	}

	tests := []struct {
		name    string
		filters map[string]string
		query   string
		want    []string
	}{
		{"без ограничений", nil, "", []string{"Alice", "Bob", "alina"}},
		{"All игнорируется", map[string]string{"city": All}, "", []string{"Alice", "Bob", "alina"}},
		{"регистронезависимый поиск", nil, "ALI", []string{"Alice", "alina"}},
		{"поиск по числу", nil, "25", []string{"Bob"}},
		{"null сравнивается как N/A", map[string]string{"city": "N/A"}, "", []string{"Bob"}},
		{"отсутствующая колонка как N/A", map[string]string{"age": "N/A"}, "", []string{"alina"}},
		{"фильтр и поиск", map[string]string{"city": "Moscow"}, "ali", []string{"Alice"}},
		{"фильтр и неподходящий поиск", map[string]string{"city": "Moscow"}, "bob", nil},
		{"конъюнкция", map[string]string{"city": "Moscow", "age": "25"}, "", nil},
		{"ничего не найдено", nil, "zzz", nil},
	}

	e := New("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Apply(rows, tt.filters, tt.query)
			var names []string
			for _, r := range got {
				n, _ := r.Text("name")
				names = append(names, n)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestDistinctValues(t *testing.T) {
	rows := []model.Row{
		model.NewRow("c", "b"),
		model.NewRow("c", "a"),
		model.NewRow("c", nil),
		model.NewRow("c", "b"),
		model.NewRow("other", "z"),
	}

	assert.Equal(t, []string{All, "b", "a", "-"}, New("-").DistinctValues(rows, "c"))
	assert.Equal(t, []string{All}, New("").DistinctValues(nil, "c"))
}

// randomRows строит псевдослучайный набор с малым алфавитом значений,
// чтобы совпадения и дубликаты встречались часто.
func randomRows(r *rand.Rand, n int) []model.Row {
	columns := []string{"a", "b", "c", "d"}
	values := []any{"x", "y", "Xy", "1", nil, 2, true}
	rows := make([]model.Row, n)
	for i := range rows {
		var row model.Row
		for _, col := range columns {
			if r.IntN(5) == 0 {
				continue
			}
			row.Set(col, values[r.IntN(len(values))])
		}
		rows[i] = row
	}
	return rows
}

func randomFilters(r *rand.Rand, e *Engine, rows []model.Row) map[string]string {
	filters := map[string]string{}
	for _, col := range []string{"a", "b", "c", "d"} {
		if r.IntN(2) == 0 {
			continue
		}
		opts := e.DistinctValues(rows, col)
		filters[col] = opts[r.IntN(len(opts))]
	}
	return filters
}

func freeTextOnly(rows []model.Row, query string) []model.Row {
	out := []model.Row{}
	for _, row := range rows {
		if matchesText(row, strings.ToLower(query)) {
			out = append(out, row)
		}
	}
	return out
}

func TestApply_ZeroConstraintsEqualsFreeText(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	e := New("")
	queries := []string{"", "x", "XY", "1", "true", "nope"}

	for i := 0; i < 200; i++ {
		rows := randomRows(r, r.IntN(20))
		query := queries[r.IntN(len(queries))]

		inactive := map[string]string{}
		if r.IntN(2) == 0 {
			inactive["a"] = All
		}

		assert.Equal(t, freeTextOnly(rows, query), e.Apply(rows, inactive, query),
			"итерация %d, запрос %q", i, query)
	}
}

func TestApply_ConjunctionRule(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	e := New("")
	queries := []string{"", "x", "2", "tr"}

	for i := 0; i < 200; i++ {
		rows := randomRows(r, 1+r.IntN(20))
		filters := randomFilters(r, e, rows)
		query := queries[r.IntN(len(queries))]
		active := activeConstraints(filters)
		if len(active) == 0 {
			continue
		}

		got := e.Apply(rows, filters, query)

		var want []model.Row
		for _, row := range rows {
			ok := matchesText(row, strings.ToLower(query))
			for _, c := range active {
				if e.Normalize(row, c.column) != c.value {
					ok = false
				}
			}
			if ok {
				want = append(want, row)
			}
		}
		if len(want) == 0 {
			assert.Empty(t, got, "итерация %d", i)
			continue
		}
		assert.Equal(t, want, got, "итерация %d", i)
	}
}

func TestDistinctValues_SentinelAndUnique(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	e := New("")

	for i := 0; i < 200; i++ {
		rows := randomRows(r, r.IntN(30))
		for _, col := range []string{"a", "b", "missing"} {
			got := e.DistinctValues(rows, col)
			require.NotEmpty(t, got)
			assert.Equal(t, All, got[0])

			seen := map[string]bool{}
			for _, v := range got {
				assert.False(t, seen[v], "дубликат %q", v)
				seen[v] = true
			}
		}
	}
}
