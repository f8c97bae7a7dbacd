// Пакет directory — каталог наборов данных сессии: группировка по отделам,
// выбор набора, разблокировка паролем и загрузка строк.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bigkaa/sheetsconsole/internal/apiclient"
	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

var (
	// ErrIncorrectPassword — сервер отклонил пароль набора.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrStaleResponse — ответ пришёл для уже неактуального выбора.
	ErrStaleResponse = errors.New("ответ для неактуального выбора набора")
	// ErrUnknownDataset — набора нет в каталоге.
	ErrUnknownDataset = errors.New("набор данных не найден в каталоге")
)

// Source — операции remote API, нужные каталогу.
type Source interface {
	ListDatasets(ctx context.Context, token string) ([]model.Dataset, error)
	ConfirmPassword(ctx context.Context, token, sheetID, password string) error
	Rows(ctx context.Context, token, sheetID string) ([]model.Row, error)
}

// Group — наборы одного отдела в порядке API.
type Group struct {
	Department string
	Datasets   []model.Dataset
}

// Snapshot — копия состояния каталога для отображения.
type Snapshot struct {
	Groups   []Group
	Selected *model.Dataset
	Unlocked bool
	Rows     []model.Row
	Columns  []string
}

// Directory — каталог наборов одной сессии.
// Одновременно разблокирован не более одного набора.
type Directory struct {
	source      Source
	cache       *RowsCache
	placeholder string
	logger      *slog.Logger

	mu         sync.Mutex
	groups     []Group
	selected   *model.Dataset
	generation uint64
	unlocked   bool
	rows       []model.Row
	columns    []string
}

// New создаёт каталог. cache может быть nil.
func New(source Source, cache *RowsCache, placeholder string, logger *slog.Logger) *Directory {
	return &Directory{
		source:      source,
		cache:       cache,
		placeholder: placeholder,
		logger:      logger.With(slog.String("component", "directory")),
		groups:      []Group{},
	}
}

// GroupByDepartment группирует наборы по department_name в порядке первого
// появления отдела, исключая наборы с именем placeholder.
func GroupByDepartment(datasets []model.Dataset, placeholder string) []Group {
	groups := []Group{}
	index := make(map[string]int)
	for _, ds := range datasets {
		if ds.Name == placeholder {
			continue
		}
		i, ok := index[ds.Department]
		if !ok {
			i = len(groups)
			index[ds.Department] = i
			groups = append(groups, Group{Department: ds.Department})
		}
		groups[i].Datasets = append(groups[i].Datasets, ds)
	}
	return groups
}

// List загружает каталог. При ошибке каталог становится пустым,
// ошибка возвращается для уведомления пользователя.
func (d *Directory) List(ctx context.Context, token string) ([]Group, error) {
	datasets, err := d.source.ListDatasets(ctx, token)
	if err != nil {
		d.logger.Error("Ошибка загрузки каталога наборов", slog.String("error", err.Error()))
		d.mu.Lock()
		d.groups = []Group{}
		d.mu.Unlock()
		return []Group{}, fmt.Errorf("загрузка каталога: %w", err)
	}

	groups := GroupByDepartment(datasets, d.placeholder)

	d.mu.Lock()
	d.groups = groups
	if d.selected != nil && d.find(d.selected.ID) == nil {
		d.resetLocked(nil)
	}
	d.mu.Unlock()
	return groups, nil
}

// Select меняет выбранный набор: сбрасывает разблокировку и загруженные строки.
// Пустой id снимает выбор.
func (d *Directory) Select(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectLocked(id)
}

func (d *Directory) selectLocked(id string) error {
	if id == "" {
		d.resetLocked(nil)
		return nil
	}
	ds := d.find(id)
	if ds == nil {
		return ErrUnknownDataset
	}
	if d.selected != nil && d.selected.ID == id {
		return nil
	}
	d.resetLocked(ds)
	return nil
}

// Unlock проверяет пароль набора на сервере и загружает строки.
// Попытка начинается с заблокированного набора: при неверном пароле
// набор остаётся заблокированным, даже если был открыт раньше.
// Ответы для сменившегося за время запроса выбора отбрасываются (ErrStaleResponse).
func (d *Directory) Unlock(ctx context.Context, token, id, password string) error {
	d.mu.Lock()
	selected := d.find(id)
	if selected == nil {
		d.mu.Unlock()
		return ErrUnknownDataset
	}
	d.resetLocked(selected)
	ds := *selected
	gen := d.generation
	d.mu.Unlock()

	if err := d.source.ConfirmPassword(ctx, token, ds.SheetID, password); err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= http.StatusBadRequest && apiErr.Status < http.StatusInternalServerError {
			d.logger.Info("Неверный пароль набора",
				slog.String("dataset_id", ds.ID),
			)
			return ErrIncorrectPassword
		}
		return fmt.Errorf("проверка пароля: %w", err)
	}

	rows, err := d.loadRows(ctx, token, ds.SheetID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil || d.selected.ID != ds.ID || d.generation != gen {
		d.logger.Debug("Ответ для неактуального выбора отброшен",
			slog.String("dataset_id", ds.ID),
		)
		return ErrStaleResponse
	}
	d.unlocked = true
	d.rows = rows
	d.columns = model.ColumnsOf(rows)
	return nil
}

// Snapshot возвращает копию состояния каталога.
func (d *Directory) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		Groups:   d.groups,
		Unlocked: d.unlocked,
		Rows:     d.rows,
		Columns:  append([]string(nil), d.columns...),
	}
	if d.selected != nil {
		ds := *d.selected
		s.Selected = &ds
	}
	return s
}

func (d *Directory) loadRows(ctx context.Context, token, sheetID string) ([]model.Row, error) {
	if d.cache != nil {
		if rows, ok := d.cache.Get(sheetID); ok {
			return rows, nil
		}
	}
	rows, err := d.source.Rows(ctx, token, sheetID)
	if err != nil {
		return nil, fmt.Errorf("загрузка строк: %w", err)
	}
	if d.cache != nil {
		d.cache.Set(sheetID, rows)
	}
	return rows, nil
}

// resetLocked сбрасывает разблокировку и строки. Вызывается под mu.
func (d *Directory) resetLocked(ds *model.Dataset) {
	d.selected = ds
	d.generation++
	d.unlocked = false
	d.rows = nil
	d.columns = nil
}

func (d *Directory) find(id string) *model.Dataset {
	for _, g := range d.groups {
		for i := range g.Datasets {
			if g.Datasets[i].ID == id {
				ds := g.Datasets[i]
				return &ds
			}
		}
	}
	return nil
}
