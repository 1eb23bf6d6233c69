package timezone

import (
	"time"

	"quantbridge/pkg/series"
)

// SessionBreak 交易时段中的休市区间，按分钟精度、左右闭区间
type SessionBreak struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// MYXLunchBreak 马交所午间休市，落在此区间的分钟K线是占位噪声
var MYXLunchBreak = SessionBreak{
	StartHour: 12, StartMinute: 31,
	EndHour: 14, EndMinute: 29,
}

// Contains 判断时刻在 loc 时区下的墙上时间是否落在休市区间内
func (b SessionBreak) Contains(t time.Time, loc *time.Location) bool {
	if loc != nil {
		t = t.In(loc)
	}
	minutes := t.Hour()*60 + t.Minute()
	start := b.StartHour*60 + b.StartMinute
	end := b.EndHour*60 + b.EndMinute
	return minutes >= start && minutes <= end
}

// FilterSessionBreak 去掉落在休市区间内的分钟K线
//
// 只对日内粒度有意义。休市区间按交易所本地的墙上时间定义，
// loc 传交易所时区（见 Normalizer.VenueLocation），为 nil 时
// 按K线时间戳自带的时区判断。
func FilterSessionBreak(bars []series.Bar, interval series.Interval, brk SessionBreak, loc *time.Location) []series.Bar {
	if !interval.IsIntraday() {
		return bars
	}
	out := bars[:0:0]
	for _, bar := range bars {
		if brk.Contains(bar.Timestamp, loc) {
			continue
		}
		out = append(out, bar)
	}
	return out
}
