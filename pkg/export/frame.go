package export

import (
	"math"

	"github.com/go-gota/gota/dataframe"
	gota "github.com/go-gota/gota/series"

	"quantbridge/pkg/align"
	"quantbridge/pkg/series"
)

// TableFrame 把对齐表转换成数据帧
//
// 缺失单元格表示为 NaN，另带每列的 *_filled 布尔列标记
// 哪些值来自前向填充，供下游高亮或剔除。
func TableFrame(t *align.Table) dataframe.DataFrame {
	n := t.Len()

	timestamps := make([]string, n)
	for i, row := range t.Rows {
		timestamps[i] = row.Timestamp.Format(previewTimeLayout)
	}
	cols := []gota.Series{gota.New(timestamps, gota.String, "timestamp")}

	for colIdx, name := range t.Columns {
		values := make([]float64, n)
		filled := make([]bool, n)
		for i, row := range t.Rows {
			cell := row.Cells[colIdx]
			switch cell.Origin {
			case align.OriginMissing:
				values[i] = math.NaN()
			case align.OriginFilled:
				values[i] = cell.Value
				filled[i] = true
			default:
				values[i] = cell.Value
			}
		}
		cols = append(cols, gota.New(values, gota.Float, name))
		cols = append(cols, gota.New(filled, gota.Bool, name+"_filled"))
	}

	overlaps := make([]bool, n)
	for i, row := range t.Rows {
		overlaps[i] = row.Overlap
	}
	cols = append(cols, gota.New(overlaps, gota.Bool, "is_overlap"))

	return dataframe.New(cols...)
}

// SeriesFrame 把单条序列转换成数据帧
func SeriesFrame(s *series.Series) dataframe.DataFrame {
	n := s.Len()
	timestamps := make([]string, n)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, bar := range s.Bars {
		timestamps[i] = bar.Timestamp.Format(previewTimeLayout)
		opens[i] = bar.Open
		highs[i] = bar.High
		lows[i] = bar.Low
		closes[i] = bar.Close
		volumes[i] = bar.Volume
	}
	return dataframe.New(
		gota.New(timestamps, gota.String, "timestamp"),
		gota.New(opens, gota.Float, "Open"),
		gota.New(highs, gota.Float, "High"),
		gota.New(lows, gota.Float, "Low"),
		gota.New(closes, gota.Float, "Close"),
		gota.New(volumes, gota.Float, "Volume"),
	)
}
