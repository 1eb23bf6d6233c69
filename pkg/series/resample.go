package series

import (
	"fmt"
	"time"
)

// Resample 把序列聚合到更粗的时间粒度
//
// 每个目标桶内按升序聚合：开盘取首值、最高取最大、最低取最小、
// 收盘取末值、成交量求和。桶的时间戳取桶的起点（按K线所在时区
// 的墙上时间对齐），没有K线落入的桶不产生行。目标粒度必须不细于
// 原粒度，相同粒度原样返回。
func Resample(s *Series, target Interval) (*Series, error) {
	src := s.Key.Interval
	if target == src {
		return s, nil
	}
	if target.Duration() < src.Duration() {
		return nil, fmt.Errorf("cannot resample %s from %s to finer %s", s.Key, src, target)
	}

	out := &Series{
		Key:      Key{Symbol: s.Key.Symbol, Venue: s.Key.Venue, Interval: target},
		Timezone: s.Timezone,
	}
	var cur *Bar
	var curStart time.Time
	for _, bar := range s.Bars {
		start := bucketStart(bar.Timestamp, target)
		if cur == nil || !start.Equal(curStart) {
			if cur != nil {
				out.Bars = append(out.Bars, *cur)
			}
			b := bar
			b.Timestamp = start
			cur = &b
			curStart = start
			continue
		}
		if bar.High > cur.High {
			cur.High = bar.High
		}
		if bar.Low < cur.Low {
			cur.Low = bar.Low
		}
		cur.Close = bar.Close
		cur.Volume += bar.Volume
	}
	if cur != nil {
		out.Bars = append(out.Bars, *cur)
	}
	return out, nil
}

// bucketStart 返回时刻所属目标桶的起点，按所在时区的墙上时间对齐
func bucketStart(t time.Time, iv Interval) time.Time {
	loc := t.Location()
	switch iv {
	case Interval1M:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	case Interval1w:
		// ISO周，周一为起点
		back := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-back, 0, 0, 0, 0, loc)
	case Interval1d:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	case Interval1h:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
	default:
		step := int(iv.Duration() / time.Minute)
		if step <= 0 {
			step = 1
		}
		minute := t.Minute() - t.Minute()%step
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, loc)
	}
}
