package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

// parseKlines 规范化币安K线响应。
// 每行为 [openTime, open, high, low, close, volume, closeTime, ...]，
// 价格是字符串、时间戳是毫秒数值。
func parseKlines(raw []byte, symbol string) ([]series.Bar, error) {
	var rows [][]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderFormat, err)
	}

	log := logger.WithComponent("BinanceParser")
	bars := make([]series.Bar, 0, len(rows))
	var prev time.Time
	dropped := 0
	for _, row := range rows {
		if len(row) < 6 {
			dropped++
			continue
		}
		openMs := toInt64(row[0])
		if openMs <= 0 {
			dropped++
			continue
		}
		ts := time.UnixMilli(openMs).UTC()
		if !prev.IsZero() && !ts.After(prev) {
			dropped++
			continue
		}
		bars = append(bars, series.Bar{
			Timestamp: ts,
			Open:      toFloat(row[1]),
			High:      toFloat(row[2]),
			Low:       toFloat(row[3]),
			Close:     toFloat(row[4]),
			Volume:    toFloat(row[5]),
		})
		prev = ts
	}
	if dropped > 0 {
		log.Warnf("%s: dropped %d malformed kline rows", symbol, dropped)
	}
	return bars, nil
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case string:
		i, _ := strconv.ParseInt(t, 10, 64)
		return i
	case float64:
		return int64(t)
	default:
		return 0
	}
}

// intervalParam 统一粒度到币安 interval 参数的映射（字面相同，仍集中校验）
func intervalParam(iv series.Interval) (string, error) {
	switch iv {
	case series.Interval1m, series.Interval5m, series.Interval15m,
		series.Interval1h, series.Interval1d, series.Interval1w, series.Interval1M:
		return string(iv), nil
	default:
		return "", fmt.Errorf("%w: %s", core.ErrIntervalNotSupported, iv)
	}
}
