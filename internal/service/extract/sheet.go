package extract

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// firstSheetRows 读取第一个工作表的所有行。
func firstSheetRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// table 把第一行当作表头，空表头命名为 "Unnamed: i"。
type table struct {
	header []string
	rows   [][]string
}

func newTable(rows [][]string) table {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var t table
	if len(rows) == 0 {
		return t
	}

	t.header = make([]string, width)
	for i := range t.header {
		if i < len(rows[0]) && strings.TrimSpace(rows[0][i]) != "" {
			t.header[i] = rows[0][i]
		} else {
			t.header[i] = "Unnamed: " + strconv.Itoa(i)
		}
	}
	for _, row := range rows[1:] {
		padded := make([]string, width)
		copy(padded, row)
		t.rows = append(t.rows, padded)
	}
	return t
}

func (t table) column(i int) []string {
	values := make([]string, 0, len(t.rows))
	for _, row := range t.rows {
		values = append(values, row[i])
	}
	return values
}

// renderCells 以右对齐的列输出全部单元格，空单元格写作 NaN。
func renderCells(rows [][]string) string {
	t := newTable(rows)
	if len(t.header) == 0 {
		return "Empty DataFrame\nColumns: []\nIndex: []"
	}
	if len(t.rows) == 0 {
		return "Empty DataFrame\nColumns: [" + strings.Join(t.header, ", ") + "]\nIndex: []"
	}

	lines := make([][]string, 0, len(t.rows)+1)
	lines = append(lines, t.header)
	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if strings.TrimSpace(v) == "" {
				v = "NaN"
			}
			cells[i] = v
		}
		lines = append(lines, cells)
	}
	return alignRight(lines)
}

// renderSummary 输出各列的统计摘要。有数值列时只统计数值列，否则统计文本列。
func renderSummary(rows [][]string) string {
	t := newTable(rows)
	if len(t.header) == 0 {
		return "Empty DataFrame\nColumns: []\nIndex: []"
	}

	var numeric []int
	for i := range t.header {
		if _, ok := numbers(t.column(i)); ok {
			numeric = append(numeric, i)
		}
	}

	if len(numeric) > 0 {
		return numericSummary(t, numeric)
	}
	return objectSummary(t)
}

func numericSummary(t table, cols []int) string {
	labels := []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}
	lines := [][]string{append([]string{""}, pick(t.header, cols)...)}
	stats := make([][]float64, len(cols))
	for j, col := range cols {
		values, _ := numbers(t.column(col))
		stats[j] = describe(values)
	}

	for i, label := range labels {
		line := []string{label}
		for j := range cols {
			line = append(line, formatStat(stats[j][i]))
		}
		lines = append(lines, line)
	}
	return alignRight(lines)
}

func objectSummary(t table) string {
	lines := [][]string{append([]string{""}, t.header...)}
	count := []string{"count"}
	unique := []string{"unique"}
	top := []string{"top"}
	freq := []string{"freq"}

	for i := range t.header {
		freqs := map[string]int{}
		n := 0
		for _, v := range t.column(i) {
			if strings.TrimSpace(v) == "" {
				continue
			}
			freqs[v]++
			n++
		}

		topValue, topCount := "NaN", 0
		keys := make([]string, 0, len(freqs))
		for k := range freqs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if freqs[k] > topCount {
				topValue, topCount = k, freqs[k]
			}
		}

		count = append(count, strconv.Itoa(n))
		unique = append(unique, strconv.Itoa(len(freqs)))
		top = append(top, topValue)
		if topCount == 0 {
			freq = append(freq, "NaN")
		} else {
			freq = append(freq, strconv.Itoa(topCount))
		}
	}

	lines = append(lines, count, unique, top, freq)
	return alignRight(lines)
}

// numbers 解析非空单元格；任一非空单元格不是数字时 ok 为 false。
func numbers(values []string) ([]float64, bool) {
	parsed := make([]float64, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		parsed = append(parsed, f)
	}
	return parsed, len(parsed) > 0
}

// describe 返回 count, mean, std, min, 25%, 50%, 75%, max。std 为样本标准差。
func describe(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	std := math.NaN()
	if len(sorted) > 1 {
		std = stat.StdDev(sorted, nil)
	}

	return []float64{
		float64(len(sorted)), stat.Mean(sorted, nil), std,
		sorted[0],
		quantile(sorted, 0.25),
		quantile(sorted, 0.5),
		quantile(sorted, 0.75),
		sorted[len(sorted)-1],
	}
}

// quantile 在 (i/(n-1), sorted[i]) 各点之间线性插值。
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	ranks := make([]float64, len(sorted))
	for i := range ranks {
		ranks[i] = float64(i) / float64(len(sorted)-1)
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(ranks, sorted); err != nil {
		return math.NaN()
	}
	return pl.Predict(q)
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func pick(values []string, idx []int) []string {
	picked := make([]string, 0, len(idx))
	for _, i := range idx {
		picked = append(picked, values[i])
	}
	return picked
}

func alignRight(lines [][]string) string {
	widths := map[int]int{}
	for _, line := range lines {
		for i, cell := range line {
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for li, line := range lines {
		if li > 0 {
			b.WriteByte('\n')
		}
		for i, cell := range line {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
			b.WriteString(cell)
		}
	}
	return b.String()
}
