package decorators

import (
	"context"
	"time"

	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

// Decorator 装饰器基础接口
// 所有装饰器都应该实现此接口
type Decorator interface {
	core.Provider

	// GetBaseProvider 获取被装饰的基础 Provider
	GetBaseProvider() core.Provider
}

// HistoricalDecorator 历史K线装饰器接口
// 装饰 HistoricalProvider
type HistoricalDecorator interface {
	core.HistoricalProvider
	Decorator
}

// BaseDecorator 装饰器基础实现
// 提供通用的装饰器功能
type BaseDecorator struct {
	base core.Provider
}

// NewBaseDecorator 创建基础装饰器
func NewBaseDecorator(base core.Provider) *BaseDecorator {
	return &BaseDecorator{base: base}
}

// Name 实现 Provider 接口
func (d *BaseDecorator) Name() string {
	return d.base.Name()
}

// GetRateLimit 实现 Provider 接口
func (d *BaseDecorator) GetRateLimit() time.Duration {
	return d.base.GetRateLimit()
}

// IsHealthy 实现 Provider 接口
func (d *BaseDecorator) IsHealthy() bool {
	return d.base.IsHealthy()
}

// GetBaseProvider 实现 Decorator 接口
func (d *BaseDecorator) GetBaseProvider() core.Provider {
	return d.base
}

// HistoricalBaseDecorator 历史K线装饰器基础实现
type HistoricalBaseDecorator struct {
	*BaseDecorator
	histProvider core.HistoricalProvider
}

// NewHistoricalBaseDecorator 创建历史K线基础装饰器
func NewHistoricalBaseDecorator(histProvider core.HistoricalProvider) *HistoricalBaseDecorator {
	return &HistoricalBaseDecorator{
		BaseDecorator: NewBaseDecorator(histProvider),
		histProvider:  histProvider,
	}
}

// FetchBars 实现 HistoricalProvider 接口
func (d *HistoricalBaseDecorator) FetchBars(ctx context.Context, req core.BarRequest) ([]series.Bar, error) {
	return d.histProvider.FetchBars(ctx, req)
}

// MaxBarsPerRequest 实现 HistoricalProvider 接口
func (d *HistoricalBaseDecorator) MaxBarsPerRequest() int {
	return d.histProvider.MaxBarsPerRequest()
}

// DefaultVenue 实现 HistoricalProvider 接口
func (d *HistoricalBaseDecorator) DefaultVenue() string {
	return d.histProvider.DefaultVenue()
}

// SupportedIntervals 实现 HistoricalProvider 接口
func (d *HistoricalBaseDecorator) SupportedIntervals() []series.Interval {
	return d.histProvider.SupportedIntervals()
}

// IsSymbolSupported 实现 HistoricalProvider 接口
func (d *HistoricalBaseDecorator) IsSymbolSupported(symbol string) bool {
	return d.histProvider.IsSymbolSupported(symbol)
}
