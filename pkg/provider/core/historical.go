package core

import (
	"context"
	"time"

	"quantbridge/pkg/series"
)

// BarRequest 一次历史K线请求。
// Limit 为本次调用最多返回的K线数量；提供商返回以 To 为右边界、
// 按时间升序排列的最近 Limit 根K线。
type BarRequest struct {
	Symbol   string          // 资产代码（已预处理）
	Venue    string          // 交易所标识；为空时使用提供商默认交易所
	Interval series.Interval // 时间粒度
	From     time.Time       // 区间左边界（含）；零值表示不限制
	To       time.Time       // 区间右边界（含）；零值表示最新
	Limit    int             // 单次调用K线数量上限；0 表示提供商默认值
}

// HistoricalProvider 历史K线数据提供商接口。
// 实现负责把各家返回的原始报文规范化成 series.Bar：
// 字段/单位映射到统一模式，剔除时间戳缺失或乱序的行，按时间升序返回。
type HistoricalProvider interface {
	Provider

	// FetchBars 获取一段历史K线
	FetchBars(ctx context.Context, req BarRequest) ([]series.Bar, error)

	// MaxBarsPerRequest 单次调用的K线数量硬上限
	MaxBarsPerRequest() int

	// DefaultVenue 未指定交易所时使用的默认交易所
	DefaultVenue() string

	// SupportedIntervals 支持的时间粒度列表
	SupportedIntervals() []series.Interval

	// IsSymbolSupported 检查是否支持该资产代码
	IsSymbolSupported(symbol string) bool
}
