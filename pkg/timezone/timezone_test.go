package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbridge/pkg/series"
)

func TestNormalizer(t *testing.T) {
	n, err := NewNormalizer("")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kuala_Lumpur", n.Canonical().String())

	t.Run("转换保持时刻不变", func(t *testing.T) {
		chicago, err := time.LoadLocation("America/Chicago")
		require.NoError(t, err)

		src := time.Date(2024, 3, 1, 9, 30, 0, 0, chicago)
		bars := n.NormalizeBars([]series.Bar{{Timestamp: src, Close: 45.2}})
		require.Len(t, bars, 1)

		assert.Equal(t, "Asia/Kuala_Lumpur", bars[0].Timestamp.Location().String())
		assert.True(t, bars[0].Timestamp.Equal(src))
		// 芝加哥冬令时 09:30 CST = 吉隆坡 23:30
		assert.Equal(t, 23, bars[0].Timestamp.Hour())
		assert.Equal(t, 30, bars[0].Timestamp.Minute())
	})

	t.Run("UTC时间戳照常转换", func(t *testing.T) {
		src := time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC)
		bars := n.NormalizeBars([]series.Bar{{Timestamp: src}})
		// 吉隆坡 = UTC+8
		assert.Equal(t, 12, bars[0].Timestamp.Hour())
		assert.True(t, bars[0].Timestamp.Equal(src))
	})

	t.Run("重复归一化幂等", func(t *testing.T) {
		src := time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC)
		once := n.NormalizeBars([]series.Bar{{Timestamp: src}})
		twice := n.NormalizeBars(once)
		assert.True(t, once[0].Timestamp.Equal(twice[0].Timestamp))
		assert.Equal(t, once[0].Timestamp.Location(), twice[0].Timestamp.Location())
	})

	t.Run("归一化序列标记时区", func(t *testing.T) {
		s := &series.Series{
			Key:  series.Key{Symbol: "ZL1!", Venue: "CBOT", Interval: series.Interval1d},
			Bars: []series.Bar{{Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}},
		}
		out := n.NormalizeSeries(s)
		assert.Equal(t, "Asia/Kuala_Lumpur", out.Timezone)
		assert.Equal(t, s.Key, out.Key)
		// 原序列不被修改
		assert.Equal(t, time.UTC, s.Bars[0].Timestamp.Location())
	})

	t.Run("交易所本地时区查询", func(t *testing.T) {
		assert.Equal(t, "America/Chicago", n.VenueLocation("CBOT").String())
		assert.Equal(t, "Asia/Kuala_Lumpur", n.VenueLocation("MYX").String())
		assert.Equal(t, "UTC", n.VenueLocation("UNKNOWN").String())
	})

	t.Run("无效时区名报错", func(t *testing.T) {
		_, err := NewNormalizer("Not/AZone")
		assert.Error(t, err)
	})
}

func TestFilterSessionBreak(t *testing.T) {
	kl, err := time.LoadLocation("Asia/Kuala_Lumpur")
	require.NoError(t, err)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, kl)
	at := func(h, m int) series.Bar {
		return series.Bar{Timestamp: day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)}
	}

	t.Run("过滤午间休市K线", func(t *testing.T) {
		bars := []series.Bar{
			at(12, 29), at(12, 30), at(12, 31), // 12:31 起休市
			at(13, 0), at(14, 29), // 休市中
			at(14, 30), at(14, 31), // 复市
		}
		out := FilterSessionBreak(bars, series.Interval1m, MYXLunchBreak, nil)
		require.Len(t, out, 4)
		assert.Equal(t, 30, out[1].Timestamp.Minute())
		assert.Equal(t, 14, out[2].Timestamp.Hour())
		assert.Equal(t, 30, out[2].Timestamp.Minute())
	})

	t.Run("按交易所墙上时间判断", func(t *testing.T) {
		// UTC 05:00 = 吉隆坡 13:00，落在休市区间内
		bars := []series.Bar{
			{Timestamp: time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)},
			{Timestamp: time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)}, // 吉隆坡 15:00
		}
		out := FilterSessionBreak(bars, series.Interval1m, MYXLunchBreak, kl)
		require.Len(t, out, 1)
		assert.Equal(t, 7, out[0].Timestamp.Hour())

		// 不传时区则按UTC墙上时间判断，两根都不在区间内
		out = FilterSessionBreak(bars, series.Interval1m, MYXLunchBreak, nil)
		assert.Len(t, out, 2)
	})

	t.Run("日线不过滤", func(t *testing.T) {
		bars := []series.Bar{at(13, 0)}
		out := FilterSessionBreak(bars, series.Interval1d, MYXLunchBreak, nil)
		assert.Len(t, out, 1)
	})
}
