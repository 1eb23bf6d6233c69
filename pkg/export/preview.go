package export

import (
	"strconv"

	"quantbridge/pkg/align"
	"quantbridge/pkg/series"
)

// DefaultPreviewRows 预览时头尾各取的行数
const DefaultPreviewRows = 50

const previewTimeLayout = "2006-01-02 15:04:05"

// Preview 行窗口预览：头N行加尾N行，总行数不超过 2N 时即全量
type Preview struct {
	Columns   []string   `json:"columns"`
	Head      [][]string `json:"head"`
	Tail      [][]string `json:"tail,omitempty"`
	TotalRows int        `json:"total_rows"`
	Truncated bool       `json:"truncated"` // 中段被省略
}

// PreviewTable 生成对齐表的头尾预览，n<=0 使用默认行数
//
// 填充值带 * 后缀、缺失值显示为空串，便于在纯文本里分辨来源。
func PreviewTable(t *align.Table, n int) *Preview {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	p := &Preview{
		Columns:   append([]string{"timestamp"}, t.Columns...),
		TotalRows: t.Len(),
	}

	if t.Len() <= 2*n {
		for _, row := range t.Rows {
			p.Head = append(p.Head, tableRow(row))
		}
		return p
	}

	p.Truncated = true
	for _, row := range t.Rows[:n] {
		p.Head = append(p.Head, tableRow(row))
	}
	for _, row := range t.Rows[t.Len()-n:] {
		p.Tail = append(p.Tail, tableRow(row))
	}
	return p
}

func tableRow(row align.Row) []string {
	out := make([]string, 0, len(row.Cells)+1)
	out = append(out, row.Timestamp.Format(previewTimeLayout))
	for _, cell := range row.Cells {
		switch cell.Origin {
		case align.OriginOriginal:
			out = append(out, formatFloat(cell.Value))
		case align.OriginFilled:
			out = append(out, formatFloat(cell.Value)+"*")
		default:
			out = append(out, "")
		}
	}
	return out
}

// PreviewSeries 生成单条序列的头尾预览
func PreviewSeries(s *series.Series, n int) *Preview {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	p := &Preview{
		Columns:   []string{"timestamp", "Open", "High", "Low", "Close", "Volume"},
		TotalRows: s.Len(),
	}

	if s.Len() <= 2*n {
		for _, bar := range s.Bars {
			p.Head = append(p.Head, barRow(bar))
		}
		return p
	}

	p.Truncated = true
	for _, bar := range s.Bars[:n] {
		p.Head = append(p.Head, barRow(bar))
	}
	for _, bar := range s.Bars[s.Len()-n:] {
		p.Tail = append(p.Tail, barRow(bar))
	}
	return p
}

func barRow(bar series.Bar) []string {
	return []string{
		bar.Timestamp.Format(previewTimeLayout),
		formatFloat(bar.Open),
		formatFloat(bar.High),
		formatFloat(bar.Low),
		formatFloat(bar.Close),
		formatFloat(bar.Volume),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
