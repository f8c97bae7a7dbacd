package export

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

// MaxCellRunes — максимальная длина значения ячейки PDF до усечения.
const MaxCellRunes = 100

// Ellipsis добавляется к усечённому значению.
const Ellipsis = "…"

const (
	pageMargin   = 14.0
	titleY       = 15.0
	tableTop     = 20.0
	fontSize     = 8.0
	titleSize    = 10.0
	cellPadding  = 2.0
	lineHeight   = 3.6
	minColWidth  = 18.0
	maxColWidth  = 70.0
	bottomMargin = 12.0
)

// fontFamily — встроенный TrueType-шрифт с кириллицей (DejaVu Sans Condensed).
const fontFamily = "DejaVu"

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
)

// Truncate усекает значение до MaxCellRunes символов с маркером Ellipsis.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxCellRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxCellRunes]) + Ellipsis
}

// Title возвращает заголовок PDF-документа.
func Title(name string, at time.Time) string {
	return fmt.Sprintf("%s - Export on %s", BaseName(name), strings.ReplaceAll(Timestamp(at), "_", " "))
}

// PDF строит альбомный A4-документ с таблицей строк. Колонки, не
// помещающиеся по ширине, переносятся на следующие страницы; первая
// колонка повторяется на каждой такой странице.
func PDF(name string, at time.Time, rows []model.Row, columns []string) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, tableTop, pageMargin)
	pdf.SetAutoPageBreak(false, bottomMargin)
	pdf.SetTitle(Title(name, at), true)
	pdf.AddUTF8FontFromBytes(fontFamily, "", fontRegular)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", fontBold)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("загрузка шрифта PDF: %w", err)
	}

	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(columns))
		for j, col := range columns {
			text, _ := row.Text(col)
			cells[i][j] = pdfText(Truncate(text))
		}
	}
	headers := make([]string, len(columns))
	for j, col := range columns {
		headers[j] = pdfText(col)
	}

	pdf.SetFont(fontFamily, "", fontSize)
	widths := columnWidths(pdf, headers, cells)
	pageWidth, _ := pdf.GetPageSize()
	groups := columnGroups(widths, pageWidth-2*pageMargin)

	t := &table{pdf: pdf, title: pdfText(Title(name, at)), headers: headers, widths: widths}
	if len(groups) == 0 {
		t.newPage(nil)
	}
	for _, group := range groups {
		t.newPage(group)
		for i, row := range cells {
			t.row(group, row, i)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("формирование PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfText заменяет символы вне базовой плоскости Unicode на U+FFFD:
// таблица ширин шрифта в fpdf ограничена BMP.
func pdfText(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return utf8.RuneError
		}
		return r
	}, s)
}

// columnWidths подбирает ширину колонки по самому длинному значению
// в пределах [minColWidth, maxColWidth].
func columnWidths(pdf *fpdf.Fpdf, headers []string, cells [][]string) []float64 {
	widths := make([]float64, len(headers))
	for j, h := range headers {
		pdf.SetFont(fontFamily, "B", fontSize)
		w := pdf.GetStringWidth(h)
		pdf.SetFont(fontFamily, "", fontSize)
		for _, row := range cells {
			w = max(w, pdf.GetStringWidth(row[j]))
		}
		widths[j] = min(max(w+2*cellPadding, minColWidth), maxColWidth)
	}
	return widths
}

// columnGroups разбивает колонки на страницы по ширине. Первая колонка
// входит в каждую группу.
func columnGroups(widths []float64, available float64) [][]int {
	if len(widths) == 0 {
		return nil
	}
	if len(widths) == 1 {
		return [][]int{{0}}
	}

	var groups [][]int
	current := []int{0}
	used := widths[0]
	for j := 1; j < len(widths); j++ {
		if used+widths[j] > available && len(current) > 1 {
			groups = append(groups, current)
			current = []int{0}
			used = widths[0]
		}
		current = append(current, j)
		used += widths[j]
	}
	return append(groups, current)
}

type table struct {
	pdf     *fpdf.Fpdf
	title   string
	headers []string
	widths  []float64
	group   []int
}

func (t *table) newPage(group []int) {
	t.group = group
	t.pdf.AddPage()
	t.pdf.SetFont(fontFamily, "", titleSize)
	t.pdf.SetTextColor(0, 0, 0)
	t.pdf.Text(pageMargin, titleY, t.title)
	t.pdf.SetXY(pageMargin, tableTop)
	if len(group) > 0 {
		t.header()
	}
}

func (t *table) header() {
	pdf := t.pdf
	pdf.SetFont(fontFamily, "B", fontSize)
	pdf.SetFillColor(41, 128, 185)
	pdf.SetTextColor(255, 255, 255)

	lines, height := t.layout(func(j int) string { return t.headers[j] })
	t.draw(lines, height)
}

func (t *table) row(group []int, values []string, index int) {
	pdf := t.pdf
	pdf.SetFont(fontFamily, "", fontSize)

	lines, height := t.layout(func(j int) string { return values[j] })
	_, pageHeight := pdf.GetPageSize()
	if pdf.GetY()+height > pageHeight-bottomMargin {
		t.newPage(group)
		pdf.SetFont(fontFamily, "", fontSize)
	}

	pdf.SetTextColor(0, 0, 0)
	if index%2 == 1 {
		pdf.SetFillColor(245, 245, 245)
	} else {
		pdf.SetFillColor(255, 255, 255)
	}
	t.draw(lines, height)
}

// layout переносит текст ячеек группы по ширине и возвращает высоту строки.
func (t *table) layout(text func(j int) string) ([][]string, float64) {
	lines := make([][]string, len(t.group))
	maxLines := 1
	for k, j := range t.group {
		s := text(j)
		if s == "" {
			lines[k] = []string{""}
			continue
		}
		lines[k] = t.pdf.SplitText(s, t.widths[j]-2*cellPadding)
		maxLines = max(maxLines, len(lines[k]))
	}
	return lines, float64(maxLines)*lineHeight + 2*cellPadding
}

func (t *table) draw(lines [][]string, height float64) {
	pdf := t.pdf
	x, y := pageMargin, pdf.GetY()
	pdf.SetDrawColor(220, 220, 220)
	for k, j := range t.group {
		w := t.widths[j]
		pdf.Rect(x, y, w, height, "FD")
		for n, line := range lines[k] {
			pdf.SetXY(x+cellPadding, y+cellPadding+float64(n)*lineHeight)
			pdf.CellFormat(w-2*cellPadding, lineHeight, line, "", 0, "L", false, 0, "")
		}
		x += w
	}
	pdf.SetXY(pageMargin, y+height)
}
