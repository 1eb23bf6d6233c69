package series

import (
	"fmt"
	"strings"
	"time"
)

// Bar 一根K线（固定时间粒度内的一组OHLCV观测）
type Bar struct {
	Timestamp time.Time `json:"timestamp"` // K线开盘时刻（带时区）
	Open      float64   `json:"open"`      // 开盘价
	High      float64   `json:"high"`      // 最高价
	Low       float64   `json:"low"`       // 最低价
	Close     float64   `json:"close"`     // 收盘价
	Volume    float64   `json:"volume"`    // 成交量（加密货币可能为小数）
}

// Field K线字段名，用于对齐时选择要合并的列
type Field string

const (
	FieldOpen   Field = "Open"
	FieldHigh   Field = "High"
	FieldLow    Field = "Low"
	FieldClose  Field = "Close"
	FieldVolume Field = "Volume"
)

// AllFields 按固定顺序返回全部K线字段
func AllFields() []Field {
	return []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}
}

// Value 按字段名取出K线对应的值
func (b Bar) Value(f Field) float64 {
	switch f {
	case FieldOpen:
		return b.Open
	case FieldHigh:
		return b.High
	case FieldLow:
		return b.Low
	case FieldClose:
		return b.Close
	case FieldVolume:
		return b.Volume
	default:
		return 0
	}
}

// Key 唯一标识一条已存储的历史序列
type Key struct {
	Symbol   string   `json:"symbol"`   // 资产代码，如 FCPO1!、AAPL、BTC/USDT
	Venue    string   `json:"venue"`    // 交易所/数据源路由标识，如 MYX、CBOT
	Interval Interval `json:"interval"` // 时间粒度
}

// String 返回 Key 的可读形式
func (k Key) String() string {
	if k.Venue == "" {
		return fmt.Sprintf("%s@%s", k.Symbol, k.Interval)
	}
	return fmt.Sprintf("%s:%s@%s", k.Venue, k.Symbol, k.Interval)
}

// FileName 返回该序列在 Master Store 中的文件名。
// 文件身份只由 symbol+interval 决定，重复合并总是落到同一个文件；
// 文件系统不允许的字符（如 BTC/USDT 的斜杠）被替换。
func (k Key) FileName() string {
	return fmt.Sprintf("%s_%s.parquet", sanitizeSymbol(k.Symbol), k.Interval)
}

func sanitizeSymbol(symbol string) string {
	r := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "")
	return r.Replace(symbol)
}

// Series 一条规范化后的K线序列。
// 时间戳严格递增、无重复，且已转换到统一的规范时区。
type Series struct {
	Key      Key    `json:"key"`
	Timezone string `json:"timezone"` // IANA 时区名，如 Asia/Kuala_Lumpur
	Bars     []Bar  `json:"bars"`
}

// Len 返回K线数量
func (s *Series) Len() int { return len(s.Bars) }

// First 返回最早一根K线；序列为空时返回零值
func (s *Series) First() Bar {
	if len(s.Bars) == 0 {
		return Bar{}
	}
	return s.Bars[0]
}

// Last 返回最新一根K线；序列为空时返回零值
func (s *Series) Last() Bar {
	if len(s.Bars) == 0 {
		return Bar{}
	}
	return s.Bars[len(s.Bars)-1]
}

// Slice 返回 [from, to] 闭区间内的K线子序列（浅拷贝）
func (s *Series) Slice(from, to time.Time) []Bar {
	out := make([]Bar, 0)
	for _, b := range s.Bars {
		if !from.IsZero() && b.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && b.Timestamp.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Validate 校验序列不变量：时间戳严格递增且无重复。
// 市场休市造成的空洞是正常现象，不在校验范围内。
func (s *Series) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		prev, cur := s.Bars[i-1].Timestamp, s.Bars[i].Timestamp
		if !cur.After(prev) {
			return fmt.Errorf("series %s: timestamp not strictly increasing at index %d (%s >= %s)",
				s.Key, i, prev.Format(time.RFC3339), cur.Format(time.RFC3339))
		}
	}
	return nil
}
