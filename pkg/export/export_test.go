package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbridge/pkg/align"
	"quantbridge/pkg/series"
)

func testTable(t *testing.T, n int) *align.Table {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kuala_Lumpur")
	require.NoError(t, err)
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, loc)

	a := &series.Series{
		Key:      series.Key{Symbol: "FCPO1!", Venue: "MYX", Interval: series.Interval15m},
		Timezone: "Asia/Kuala_Lumpur",
	}
	b := &series.Series{
		Key:      series.Key{Symbol: "ZL1!", Venue: "CBOT", Interval: series.Interval15m},
		Timezone: "Asia/Kuala_Lumpur",
	}
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * 15 * time.Minute)
		a.Bars = append(a.Bars, series.Bar{Timestamp: ts, Close: float64(i)})
		// B 每隔一根缺一根，制造填充
		if i%2 == 0 {
			b.Bars = append(b.Bars, series.Bar{Timestamp: ts, Close: float64(100 + i)})
		}
	}

	table, err := align.Align(a, b, align.Options{MaxFillGap: 1})
	require.NoError(t, err)
	return table
}

func TestPreviewTable(t *testing.T) {
	t.Run("短表全量展示", func(t *testing.T) {
		table := testTable(t, 6)
		p := PreviewTable(table, 50)

		assert.False(t, p.Truncated)
		assert.Equal(t, 6, p.TotalRows)
		assert.Len(t, p.Head, 6)
		assert.Empty(t, p.Tail)
		assert.Equal(t, []string{"timestamp", "FCPO1!_Close", "ZL1!_Close"}, p.Columns)
	})

	t.Run("长表头尾截取", func(t *testing.T) {
		table := testTable(t, 20)
		p := PreviewTable(table, 5)

		assert.True(t, p.Truncated)
		assert.Equal(t, 20, p.TotalRows)
		assert.Len(t, p.Head, 5)
		assert.Len(t, p.Tail, 5)
		assert.Equal(t, "2024-03-01 09:00:00", p.Head[0][0])
	})

	t.Run("填充值带星号标记", func(t *testing.T) {
		table := testTable(t, 4)
		p := PreviewTable(table, 50)

		// 第二行 B 侧为填充值
		assert.Equal(t, "100*", p.Head[1][2])
		assert.Equal(t, "102", p.Head[2][2])
	})
}

func TestPreviewSeries(t *testing.T) {
	s := &series.Series{
		Key:      series.Key{Symbol: "ZL1!", Venue: "CBOT", Interval: series.Interval1d},
		Timezone: "Asia/Kuala_Lumpur",
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		s.Bars = append(s.Bars, series.Bar{Timestamp: start.AddDate(0, 0, i), Close: float64(i)})
	}

	p := PreviewSeries(s, 0)
	assert.True(t, p.Truncated)
	assert.Equal(t, 120, p.TotalRows)
	assert.Len(t, p.Head, DefaultPreviewRows)
	assert.Len(t, p.Tail, DefaultPreviewRows)
	assert.Equal(t, "119", p.Tail[len(p.Tail)-1][4])
}

func TestWriteTableCSV(t *testing.T) {
	table := testTable(t, 4)

	var buf bytes.Buffer
	require.NoError(t, WriteTableCSV(&buf, table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	header := lines[0]
	assert.Contains(t, header, "timestamp")
	assert.Contains(t, header, "FCPO1!_Close")
	assert.Contains(t, header, "ZL1!_Close")
	assert.Contains(t, header, "ZL1!_Close_filled")
	assert.Contains(t, header, "is_overlap")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("parquet")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestExportTable(t *testing.T) {
	table := testTable(t, 6)
	dir := t.TempDir()

	t.Run("导出CSV文件", func(t *testing.T) {
		path := filepath.Join(dir, "out", "aligned.csv")
		require.NoError(t, ExportTable(path, table, FormatCSV))
		assert.FileExists(t, path)
	})

	t.Run("导出列式文件", func(t *testing.T) {
		path := filepath.Join(dir, "out", "aligned.parquet")
		require.NoError(t, ExportTable(path, table, FormatParquet))
		assert.FileExists(t, path)
	})

	t.Run("不支持的格式", func(t *testing.T) {
		err := ExportTable(filepath.Join(dir, "x.bin"), table, Format("xlsx"))
		assert.Error(t, err)
	})
}
