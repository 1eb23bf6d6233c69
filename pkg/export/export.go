package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"quantbridge/pkg/align"
	"quantbridge/pkg/series"
)

// Format 导出文件格式
type Format string

const (
	// FormatCSV 分隔文本
	FormatCSV Format = "csv"
	// FormatParquet 列式文件
	FormatParquet Format = "parquet"
)

// ParseFormat 解析导出格式名
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// WriteTableCSV 把对齐表写成CSV
func WriteTableCSV(w io.Writer, t *align.Table) error {
	df := TableFrame(t)
	return df.WriteCSV(w)
}

// WriteSeriesCSV 把单条序列写成CSV
func WriteSeriesCSV(w io.Writer, s *series.Series) error {
	df := SeriesFrame(s)
	return df.WriteCSV(w)
}

// alignedRecord 对齐表的列式导出行
// 动态列压成固定模式：每个单元格带取值与来源两列
type alignedRecord struct {
	Timestamp int64    `parquet:"timestamp,timestamp(millisecond)"`
	Values    []OutCol `parquet:"values"`
	IsOverlap bool     `parquet:"is_overlap"`
}

// OutCol 列式导出中的单列取值
type OutCol struct {
	Name   string  `parquet:"name"`
	Value  float64 `parquet:"value"`
	Origin string  `parquet:"origin"`
}

// ExportTable 把对齐表写到目标文件，目录不存在时自动创建
func ExportTable(path string, t *align.Table, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	switch format {
	case FormatCSV:
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := WriteTableCSV(f, t); err != nil {
			f.Close()
			return err
		}
		return f.Close()

	case FormatParquet:
		records := make([]alignedRecord, t.Len())
		for i, row := range t.Rows {
			rec := alignedRecord{
				Timestamp: row.Timestamp.UnixMilli(),
				IsOverlap: row.Overlap,
				Values:    make([]OutCol, len(row.Cells)),
			}
			for j, cell := range row.Cells {
				rec.Values[j] = OutCol{
					Name:   t.Columns[j],
					Value:  cell.Value,
					Origin: cell.Origin.String(),
				}
			}
			records[i] = rec
		}
		return parquet.WriteFile(path, records)

	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportSeries 把单条序列写到目标文件
func ExportSeries(path string, s *series.Series, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	switch format {
	case FormatCSV:
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := WriteSeriesCSV(f, s); err != nil {
			f.Close()
			return err
		}
		return f.Close()

	case FormatParquet:
		type rec struct {
			Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
			Open      float64 `parquet:"open"`
			High      float64 `parquet:"high"`
			Low       float64 `parquet:"low"`
			Close     float64 `parquet:"close"`
			Volume    float64 `parquet:"volume"`
		}
		records := make([]rec, s.Len())
		for i, bar := range s.Bars {
			records[i] = rec{
				Timestamp: bar.Timestamp.UnixMilli(),
				Open:      bar.Open,
				High:      bar.High,
				Low:       bar.Low,
				Close:     bar.Close,
				Volume:    bar.Volume,
			}
		}
		return parquet.WriteFile(path, records)

	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}
