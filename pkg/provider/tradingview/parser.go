package tradingview

import (
	"encoding/json"
	"fmt"
	"time"

	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

// udfHistory UDF /history 响应。
// s 为状态：ok / no_data / error；t/o/h/l/c/v 为等长的列数组。
type udfHistory struct {
	Status string    `json:"s"`
	ErrMsg string    `json:"errmsg"`
	Times  []int64   `json:"t"`
	Opens  []float64 `json:"o"`
	Highs  []float64 `json:"h"`
	Lows   []float64 `json:"l"`
	Closes []float64 `json:"c"`
	Vols   []float64 `json:"v"`
}

// parseUDFHistory 把 UDF 列式响应规范化为升序的 Bar 序列。
// 行级错误（时间戳缺失、乱序）丢弃并记录；整体不可解析返回 ProviderFormat。
func parseUDFHistory(raw []byte, symbol string) ([]series.Bar, error) {
	var h udfHistory
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderFormat, err)
	}

	switch h.Status {
	case "no_data":
		return nil, nil
	case "ok":
	case "error":
		return nil, fmt.Errorf("%w: %s", core.ErrSymbolNotFound, h.ErrMsg)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", core.ErrProviderFormat, h.Status)
	}

	n := len(h.Times)
	if len(h.Opens) != n || len(h.Highs) != n || len(h.Lows) != n || len(h.Closes) != n {
		return nil, fmt.Errorf("%w: column length mismatch", core.ErrProviderFormat)
	}

	log := logger.WithComponent("TradingViewParser")
	bars := make([]series.Bar, 0, n)
	var prev time.Time
	dropped := 0
	for i := 0; i < n; i++ {
		if h.Times[i] <= 0 {
			dropped++
			continue
		}
		ts := time.Unix(h.Times[i], 0).UTC()
		if !prev.IsZero() && !ts.After(prev) {
			// 时间戳未递增，行级数据违规
			dropped++
			continue
		}
		var vol float64
		if i < len(h.Vols) {
			vol = h.Vols[i]
		}
		bars = append(bars, series.Bar{
			Timestamp: ts,
			Open:      h.Opens[i],
			High:      h.Highs[i],
			Low:       h.Lows[i],
			Close:     h.Closes[i],
			Volume:    vol,
		})
		prev = ts
	}
	if dropped > 0 {
		log.Warnf("%s: dropped %d malformed rows", symbol, dropped)
	}
	return bars, nil
}

// resolutionFor 把统一粒度映射为 UDF resolution 参数
func resolutionFor(iv series.Interval) (string, error) {
	switch iv {
	case series.Interval1m:
		return "1", nil
	case series.Interval5m:
		return "5", nil
	case series.Interval15m:
		return "15", nil
	case series.Interval1h:
		return "60", nil
	case series.Interval1d:
		return "D", nil
	case series.Interval1w:
		return "W", nil
	case series.Interval1M:
		return "M", nil
	default:
		return "", fmt.Errorf("%w: %s", core.ErrIntervalNotSupported, iv)
	}
}
