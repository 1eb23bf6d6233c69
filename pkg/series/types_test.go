package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestKeyFileName(t *testing.T) {
	tests := []struct {
		key      Key
		expected string
	}{
		{Key{Symbol: "FCPO1!", Venue: "MYX", Interval: Interval15m}, "FCPO1!_15m.parquet"},
		{Key{Symbol: "BTC/USDT", Venue: "BINANCE", Interval: Interval1h}, "BTC-USDT_1h.parquet"},
		{Key{Symbol: "AAPL", Interval: Interval1d}, "AAPL_1d.parquet"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.key.FileName())
	}
}

func TestKeyFileNameDeterministic(t *testing.T) {
	// 同 symbol+interval 必须落到同一个文件，与 venue 无关
	a := Key{Symbol: "ZL1!", Venue: "CBOT", Interval: Interval15m}
	b := Key{Symbol: "ZL1!", Venue: "", Interval: Interval15m}
	assert.Equal(t, a.FileName(), b.FileName())
}

func TestSeriesValidate(t *testing.T) {
	loc := mustLoc(t, "Asia/Kuala_Lumpur")
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, loc)

	t.Run("严格递增通过校验", func(t *testing.T) {
		s := &Series{
			Key:      Key{Symbol: "FCPO1!", Interval: Interval15m},
			Timezone: "Asia/Kuala_Lumpur",
			Bars: []Bar{
				{Timestamp: base},
				{Timestamp: base.Add(15 * time.Minute)},
				{Timestamp: base.Add(30 * time.Minute)},
			},
		}
		assert.NoError(t, s.Validate())
	})

	t.Run("重复时间戳校验失败", func(t *testing.T) {
		s := &Series{
			Key:  Key{Symbol: "FCPO1!", Interval: Interval15m},
			Bars: []Bar{{Timestamp: base}, {Timestamp: base}},
		}
		assert.Error(t, s.Validate())
	})

	t.Run("乱序时间戳校验失败", func(t *testing.T) {
		s := &Series{
			Key:  Key{Symbol: "FCPO1!", Interval: Interval15m},
			Bars: []Bar{{Timestamp: base.Add(time.Hour)}, {Timestamp: base}},
		}
		assert.Error(t, s.Validate())
	})
}

func TestSeriesSlice(t *testing.T) {
	loc := mustLoc(t, "Asia/Kuala_Lumpur")
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, loc)
	s := &Series{Key: Key{Symbol: "FCPO1!", Interval: Interval1h}}
	for i := 0; i < 5; i++ {
		s.Bars = append(s.Bars, Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Close: float64(i)})
	}

	got := s.Slice(base.Add(time.Hour), base.Add(3*time.Hour))
	require.Len(t, got, 3)
	assert.Equal(t, 1.0, got[0].Close)
	assert.Equal(t, 3.0, got[2].Close)

	// 零值边界表示不限制
	assert.Len(t, s.Slice(time.Time{}, time.Time{}), 5)
}

func TestSeriesFirstLast(t *testing.T) {
	loc := mustLoc(t, "Asia/Kuala_Lumpur")
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, loc)

	s := &Series{Key: Key{Symbol: "FCPO1!", Interval: Interval1h}}
	assert.True(t, s.First().Timestamp.IsZero())
	assert.True(t, s.Last().Timestamp.IsZero())

	s.Bars = []Bar{
		{Timestamp: base, Close: 1},
		{Timestamp: base.Add(time.Hour), Close: 2},
		{Timestamp: base.Add(2 * time.Hour), Close: 3},
	}
	assert.True(t, s.First().Timestamp.Equal(base))
	assert.Equal(t, 1.0, s.First().Close)
	assert.True(t, s.Last().Timestamp.Equal(base.Add(2*time.Hour)))
	assert.Equal(t, 3.0, s.Last().Close)
}

func TestBarValue(t *testing.T) {
	b := Bar{Open: 1, High: 2, Low: 3, Close: 4, Volume: 5}
	assert.Equal(t, 1.0, b.Value(FieldOpen))
	assert.Equal(t, 2.0, b.Value(FieldHigh))
	assert.Equal(t, 3.0, b.Value(FieldLow))
	assert.Equal(t, 4.0, b.Value(FieldClose))
	assert.Equal(t, 5.0, b.Value(FieldVolume))
}

func TestParseInterval(t *testing.T) {
	iv, err := ParseInterval("15m")
	require.NoError(t, err)
	assert.Equal(t, Interval15m, iv)
	assert.True(t, iv.IsIntraday())

	_, err = ParseInterval("3d")
	assert.Error(t, err)

	assert.False(t, Interval1d.IsIntraday())
}

func TestEstimateBars(t *testing.T) {
	from := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 5, Interval15m.EstimateBars(from, from.Add(time.Hour)))
	assert.Equal(t, 0, Interval15m.EstimateBars(from, from))
}
