package tencent

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

// 腾讯日线时间戳按交易所本地时区解释
var shanghaiLoc = mustLoad("Asia/Shanghai")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// gbkToUtf8 将GBK编码转换为UTF-8（腾讯部分接口返回GBK文本）
func gbkToUtf8(data []byte) ([]byte, error) {
	reader := transform.NewReader(strings.NewReader(string(data)), simplifiedchinese.GBK.NewDecoder())
	return io.ReadAll(reader)
}

// periodFor 将标准K线粒度映射为腾讯接口的周期参数
func periodFor(interval series.Interval) (string, error) {
	switch interval {
	case series.Interval1d:
		return "day", nil
	case series.Interval1w:
		return "week", nil
	case series.Interval1M:
		return "month", nil
	default:
		return "", fmt.Errorf("%w: tencent does not serve %s", core.ErrIntervalNotSupported, interval)
	}
}

type klineResponse struct {
	Code int                        `json:"code"`
	Msg  string                     `json:"msg"`
	Data map[string]json.RawMessage `json:"data"`
}

// parseKlineResponse 解析腾讯K线响应
//
// data 下按股票代码再按周期嵌套，前复权时键名带 qfq 前缀。
// 每根K线是一个字符串数组: [日期, 开盘, 收盘, 最高, 最低, 成交量, ...]
func parseKlineResponse(body []byte, code, periodKey string) ([]series.Bar, error) {
	utf8Body, err := gbkToUtf8(body)
	if err != nil {
		// 部分情况下返回的已经是UTF-8
		utf8Body = body
	}

	var resp klineResponse
	if err := json.Unmarshal(utf8Body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode kline response: %v", core.ErrProviderFormat, err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%w: %s (code %d)", core.ErrSymbolNotFound, resp.Msg, resp.Code)
	}

	raw, ok := resp.Data[code]
	if !ok {
		return nil, fmt.Errorf("%w: no data for %s", core.ErrSymbolNotFound, code)
	}

	var byPeriod map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byPeriod); err != nil {
		return nil, fmt.Errorf("%w: decode symbol payload: %v", core.ErrProviderFormat, err)
	}

	var rows [][]json.RawMessage
	for _, key := range []string{"qfq" + periodKey, periodKey} {
		if rowsRaw, ok := byPeriod[key]; ok {
			if err := json.Unmarshal(rowsRaw, &rows); err != nil {
				return nil, fmt.Errorf("%w: decode kline rows: %v", core.ErrProviderFormat, err)
			}
			break
		}
	}
	if rows == nil {
		return nil, fmt.Errorf("%w: no %s klines for %s", core.ErrSymbolNotFound, periodKey, code)
	}

	bars := make([]series.Bar, 0, len(rows))
	var lastTs time.Time
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		bar, err := parseKlineRow(row)
		if err != nil {
			continue
		}
		if !lastTs.IsZero() && !bar.Timestamp.After(lastTs) {
			continue
		}
		lastTs = bar.Timestamp
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseKlineRow(row []json.RawMessage) (series.Bar, error) {
	date, err := rawString(row[0])
	if err != nil {
		return series.Bar{}, err
	}
	ts, err := time.ParseInLocation("2006-01-02", date, shanghaiLoc)
	if err != nil {
		return series.Bar{}, err
	}

	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, err := rawString(row[i])
		if err != nil {
			return series.Bar{}, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return series.Bar{}, err
		}
		vals[i-1] = v
	}

	// 腾讯字段顺序为 开、收、高、低、量
	return series.Bar{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[2],
		Low:       vals[3],
		Close:     vals[1],
		Volume:    vals[4],
	}, nil
}

// rawString 兼容数字与字符串两种JSON编码
func rawString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("unexpected kline cell: %s", string(raw))
}
