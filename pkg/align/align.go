package align

import (
	"errors"
	"fmt"
	"time"

	"quantbridge/pkg/series"
)

// ErrTimezoneMismatch 两条序列的时区基准不一致，对齐前必须先归一化
var ErrTimezoneMismatch = errors.New("series timezones do not match")

// ErrNoOverlap 两条序列的时间范围完全不相交
var ErrNoOverlap = errors.New("series time ranges do not overlap")

// DefaultMaxFillGap 前向填充的默认连续上限
const DefaultMaxFillGap = 5

// CellOrigin 对齐表中单元格取值的来源
type CellOrigin int8

const (
	// OriginMissing 缺失：没有原始值且超出填充上限
	OriginMissing CellOrigin = iota
	// OriginOriginal 原始值：该时间戳上有真实K线
	OriginOriginal
	// OriginFilled 填充值：由最近的前一根K线前向填充
	OriginFilled
)

func (o CellOrigin) String() string {
	switch o {
	case OriginOriginal:
		return "original"
	case OriginFilled:
		return "filled"
	default:
		return "missing"
	}
}

// Cell 对齐表中的一个单元格
type Cell struct {
	Value  float64
	Origin CellOrigin
}

// Row 对齐表中的一行，Cells 与表头 Columns 一一对应
type Row struct {
	Timestamp time.Time
	Cells     []Cell
	// Overlap 两侧在该时间戳上都有原始K线
	Overlap bool
}

// Table 两条序列对齐后的结果表
//
// 行时间戳严格递增且唯一。列名由代码前缀与字段名拼成，
// 两条序列暴露相同字段也不会冲突。
type Table struct {
	Columns  []string
	Rows     []Row
	Timezone string
}

// Len 返回行数
func (t *Table) Len() int { return len(t.Rows) }

// Options 对齐选项
type Options struct {
	// Fields 参与对齐的字段，空则默认只取收盘价
	Fields []series.Field
	// MaxFillGap 每侧连续填充行数上限，0 使用默认值，负数禁止填充
	MaxFillGap int
}

// Align 把两条同时区的序列按时间戳并集对齐成一张表
//
// 粒度不同的两条序列先把较细的一条重采样到较粗的粒度，再做对齐。
// 并集上缺失的时间戳由最近的前一根K线前向填充，连续填充
// 超过上限的单元格标记为缺失而不是继续延伸，让调用方能区分
// 清淡交易的合理延续与另一侧根本没有开市的时段。
func Align(a, b *series.Series, opts Options) (*Table, error) {
	if a.Timezone != b.Timezone {
		return nil, fmt.Errorf("%w: %q vs %q", ErrTimezoneMismatch, a.Timezone, b.Timezone)
	}
	if a.Key.Interval != b.Key.Interval {
		var err error
		if a.Key.Interval.Duration() < b.Key.Interval.Duration() {
			a, err = series.Resample(a, b.Key.Interval)
		} else {
			b, err = series.Resample(b, a.Key.Interval)
		}
		if err != nil {
			return nil, err
		}
	}
	if a.Len() == 0 || b.Len() == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrNoOverlap)
	}
	if a.First().Timestamp.After(b.Last().Timestamp) || b.First().Timestamp.After(a.Last().Timestamp) {
		return nil, fmt.Errorf("%w: %s ends %s, %s starts %s", ErrNoOverlap,
			earlierKey(a, b), earlierEnd(a, b).Format(time.RFC3339),
			laterKey(a, b), laterStart(a, b).Format(time.RFC3339))
	}

	fields := opts.Fields
	if len(fields) == 0 {
		fields = []series.Field{series.FieldClose}
	}
	maxFill := opts.MaxFillGap
	if maxFill == 0 {
		maxFill = DefaultMaxFillGap
	}
	if maxFill < 0 {
		maxFill = 0
	}

	union := unionTimestamps(a, b)

	columns := make([]string, 0, 2*len(fields))
	for _, f := range fields {
		columns = append(columns, fmt.Sprintf("%s_%s", a.Key.Symbol, f))
	}
	for _, f := range fields {
		columns = append(columns, fmt.Sprintf("%s_%s", b.Key.Symbol, f))
	}

	sideA := reindex(a, union, fields, maxFill)
	sideB := reindex(b, union, fields, maxFill)

	rows := make([]Row, len(union))
	for i, ts := range union {
		cells := make([]Cell, 0, len(columns))
		cells = append(cells, sideA[i].cells...)
		cells = append(cells, sideB[i].cells...)
		rows[i] = Row{
			Timestamp: ts,
			Cells:     cells,
			Overlap:   sideA[i].origin == OriginOriginal && sideB[i].origin == OriginOriginal,
		}
	}

	return &Table{
		Columns:  columns,
		Rows:     rows,
		Timezone: a.Timezone,
	}, nil
}

// unionTimestamps 合并两条升序序列的时间戳，升序去重
func unionTimestamps(a, b *series.Series) []time.Time {
	out := make([]time.Time, 0, a.Len()+b.Len())
	i, j := 0, 0
	for i < a.Len() || j < b.Len() {
		switch {
		case i >= a.Len():
			out = append(out, b.Bars[j].Timestamp)
			j++
		case j >= b.Len():
			out = append(out, a.Bars[i].Timestamp)
			i++
		case a.Bars[i].Timestamp.Equal(b.Bars[j].Timestamp):
			out = append(out, a.Bars[i].Timestamp)
			i++
			j++
		case a.Bars[i].Timestamp.Before(b.Bars[j].Timestamp):
			out = append(out, a.Bars[i].Timestamp)
			i++
		default:
			out = append(out, b.Bars[j].Timestamp)
			j++
		}
	}
	return out
}

type reindexed struct {
	cells  []Cell
	origin CellOrigin
}

// reindex 把一条序列投影到并集索引上，缺失位置做带上限的前向填充
func reindex(s *series.Series, union []time.Time, fields []series.Field, maxFill int) []reindexed {
	byTs := make(map[int64]*series.Bar, s.Len())
	for i := range s.Bars {
		byTs[s.Bars[i].Timestamp.UnixNano()] = &s.Bars[i]
	}

	out := make([]reindexed, len(union))
	var lastBar *series.Bar
	fillRun := 0
	for i, ts := range union {
		cells := make([]Cell, len(fields))
		if bar, ok := byTs[ts.UnixNano()]; ok {
			lastBar = bar
			fillRun = 0
			for j, f := range fields {
				cells[j] = Cell{Value: bar.Value(f), Origin: OriginOriginal}
			}
			out[i] = reindexed{cells: cells, origin: OriginOriginal}
			continue
		}

		fillRun++
		if lastBar != nil && fillRun <= maxFill {
			for j, f := range fields {
				cells[j] = Cell{Value: lastBar.Value(f), Origin: OriginFilled}
			}
			out[i] = reindexed{cells: cells, origin: OriginFilled}
			continue
		}
		// 超出填充上限或尚无前值，显式标记缺失
		for j := range cells {
			cells[j] = Cell{Origin: OriginMissing}
		}
		out[i] = reindexed{cells: cells, origin: OriginMissing}
	}
	return out
}

func earlierEnd(a, b *series.Series) time.Time {
	if a.Last().Timestamp.Before(b.Last().Timestamp) {
		return a.Last().Timestamp
	}
	return b.Last().Timestamp
}

func earlierKey(a, b *series.Series) string {
	if a.Last().Timestamp.Before(b.Last().Timestamp) {
		return a.Key.Symbol
	}
	return b.Key.Symbol
}

func laterStart(a, b *series.Series) time.Time {
	if a.First().Timestamp.After(b.First().Timestamp) {
		return a.First().Timestamp
	}
	return b.First().Timestamp
}

func laterKey(a, b *series.Series) string {
	if a.First().Timestamp.After(b.First().Timestamp) {
		return a.Key.Symbol
	}
	return b.Key.Symbol
}
