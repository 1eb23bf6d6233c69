package yahoo

import (
	"encoding/json"
	"fmt"
	"time"

	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

// chartResponse 雅虎 v8 chart 接口响应的必要子集
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol           string `json:"symbol"`
				ExchangeTimezone string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamps []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// parseChartResponse 规范化雅虎 chart 响应。
// 停牌时段雅虎以 null 填充，整行为 null 的按行级错误丢弃。
func parseChartResponse(raw []byte, symbol string) ([]series.Bar, error) {
	var cr chartResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderFormat, err)
	}

	if cr.Chart.Error != nil {
		if cr.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%w: %s", core.ErrSymbolNotFound, symbol)
		}
		return nil, fmt.Errorf("%w: %s: %s", core.ErrProviderFormat, cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	if len(cr.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: empty result for %s", core.ErrSymbolNotFound, symbol)
	}

	result := cr.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	log := logger.WithComponent("YahooParser")
	bars := make([]series.Bar, 0, len(result.Timestamps))
	var prev time.Time
	dropped := 0
	for i, unix := range result.Timestamps {
		if unix <= 0 ||
			i >= len(quote.Open) || quote.Open[i] == nil ||
			i >= len(quote.High) || quote.High[i] == nil ||
			i >= len(quote.Low) || quote.Low[i] == nil ||
			i >= len(quote.Close) || quote.Close[i] == nil {
			dropped++
			continue
		}
		ts := time.Unix(unix, 0).UTC()
		if !prev.IsZero() && !ts.After(prev) {
			dropped++
			continue
		}
		var vol float64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			vol = *quote.Volume[i]
		}
		bars = append(bars, series.Bar{
			Timestamp: ts,
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
			Volume:    vol,
		})
		prev = ts
	}
	if dropped > 0 {
		log.Debugf("%s: dropped %d null/malformed rows", symbol, dropped)
	}
	return bars, nil
}

// SourceTimezone 从响应元数据里提取数据源时区（可能为空）
func SourceTimezone(raw []byte) string {
	var cr chartResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return ""
	}
	if len(cr.Chart.Result) == 0 {
		return ""
	}
	return cr.Chart.Result[0].Meta.ExchangeTimezone
}

// intervalParam 把统一粒度映射为雅虎 interval 参数
func intervalParam(iv series.Interval) (string, error) {
	switch iv {
	case series.Interval1m:
		return "1m", nil
	case series.Interval5m:
		return "5m", nil
	case series.Interval15m:
		return "15m", nil
	case series.Interval1h:
		return "1h", nil
	case series.Interval1d:
		return "1d", nil
	case series.Interval1w:
		return "1wk", nil
	case series.Interval1M:
		return "1mo", nil
	default:
		return "", fmt.Errorf("%w: %s", core.ErrIntervalNotSupported, iv)
	}
}
