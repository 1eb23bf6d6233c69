package store

import (
	"time"

	"quantbridge/pkg/series"
)

// DefaultGapTolerance 日线序列允许的最大间隔
// 周末加一个假日不算缺口，超过则提示历史可能缺段
const DefaultGapTolerance = 72 * time.Hour

// Gap 序列中疑似缺失的时间段
type Gap struct {
	After  time.Time     `json:"after"`  // 缺口前最后一根K线
	Before time.Time     `json:"before"` // 缺口后第一根K线
	Span   time.Duration `json:"span"`
}

// AnalyzeGaps 找出相邻K线间隔超过容忍度的缺口
//
// 休市日是正常间隔，容忍度应当覆盖最长的常规休市，
// 日内粒度建议用交易日长度的倍数。
func AnalyzeGaps(bars []series.Bar, tolerance time.Duration) []Gap {
	if tolerance <= 0 {
		tolerance = DefaultGapTolerance
	}
	var gaps []Gap
	for i := 1; i < len(bars); i++ {
		span := bars[i].Timestamp.Sub(bars[i-1].Timestamp)
		if span > tolerance {
			gaps = append(gaps, Gap{
				After:  bars[i-1].Timestamp,
				Before: bars[i].Timestamp,
				Span:   span,
			})
		}
	}
	return gaps
}
