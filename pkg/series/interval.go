package series

import (
	"fmt"
	"time"
)

// Interval 时间粒度
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

// intervalDurations 各粒度对应的名义时长。
// 1w/1M 仅为近似值，只用于估算区间内的K线数量。
var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval1h:  time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
	Interval1M:  30 * 24 * time.Hour,
}

// ParseInterval 解析时间粒度字符串
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := intervalDurations[iv]; !ok {
		return "", fmt.Errorf("unsupported interval: %q", s)
	}
	return iv, nil
}

// Duration 返回该粒度的名义时长
func (iv Interval) Duration() time.Duration {
	return intervalDurations[iv]
}

// IsIntraday 日内粒度（分钟/小时级）为 true
func (iv Interval) IsIntraday() bool {
	switch iv {
	case Interval1m, Interval5m, Interval15m, Interval1h:
		return true
	}
	return false
}

// EstimateBars 估算 [from, to] 区间内该粒度的K线数量上限
func (iv Interval) EstimateBars(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	d := iv.Duration()
	if d <= 0 {
		return 0
	}
	return int(to.Sub(from)/d) + 1
}
