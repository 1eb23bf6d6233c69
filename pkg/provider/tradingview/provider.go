package tradingview

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/provider/route"
	"quantbridge/pkg/series"
)

// 单次请求的K线上限。
// 分钟级一年约一万根，日线及以上三千根足够覆盖十年以上历史。
const (
	maxBarsIntraday = 10000
	maxBarsDaily    = 3000
)

// Provider TradingView 期货历史数据提供商。
// 交易所由路由表按 symbol 前缀自动识别（如 ZL→CBOT，FCPO→MYX）。
type Provider struct {
	client *Client
	routes *route.Table
	log    *logrus.Entry
}

// NewProvider 创建 TradingView 提供商。
// routes 为 nil 时使用默认期货路由表。
func NewProvider(baseURL string, routes *route.Table) *Provider {
	if routes == nil {
		routes = route.DefaultFuturesTable()
	}
	return &Provider{
		client: NewClient(baseURL),
		routes: routes,
		log:    logger.WithComponent("TradingViewProvider"),
	}
}

// Name 返回提供商名称
func (p *Provider) Name() string { return "tradingview" }

// GetRateLimit 获取请求频率限制
func (p *Provider) GetRateLimit() time.Duration { return p.client.rateLimit }

// IsHealthy 检查提供商健康状态
func (p *Provider) IsHealthy() bool { return p.client != nil }

// DefaultVenue 返回默认交易所
func (p *Provider) DefaultVenue() string { return p.routes.DefaultVenue() }

// MaxBarsPerRequest 单次调用K线上限（取最大的粒度类别）
func (p *Provider) MaxBarsPerRequest() int { return maxBarsIntraday }

// SupportedIntervals 支持的时间粒度
func (p *Provider) SupportedIntervals() []series.Interval {
	return []series.Interval{
		series.Interval1m, series.Interval5m, series.Interval15m,
		series.Interval1h, series.Interval1d, series.Interval1w, series.Interval1M,
	}
}

// IsSymbolSupported 期货连续合约代码以 "1!"/"2!" 结尾，或为纯品种代码
func (p *Provider) IsSymbolSupported(symbol string) bool {
	s := strings.TrimSpace(symbol)
	return s != "" && !strings.ContainsAny(s, " \t")
}

// ResolveVenue 解析 symbol 对应的交易所（纯函数，路由表驱动）
func (p *Provider) ResolveVenue(symbol string) string {
	return p.routes.Resolve(symbol)
}

// FetchBars 获取历史K线。
// 返回区间 [From, To] 内、以 To 为右边界的至多 Limit 根K线，升序。
func (p *Provider) FetchBars(ctx context.Context, req core.BarRequest) ([]series.Bar, error) {
	resolution, err := resolutionFor(req.Interval)
	if err != nil {
		return nil, err
	}

	venue := req.Venue
	if venue == "" {
		venue = p.routes.Resolve(req.Symbol)
	}
	fullSymbol := venue + ":" + strings.ToUpper(strings.TrimSpace(req.Symbol))

	limit := req.Limit
	if limit <= 0 || limit > p.maxBarsFor(req.Interval) {
		limit = p.maxBarsFor(req.Interval)
	}

	p.log.Debugf("fetching %s resolution=%s limit=%d", fullSymbol, resolution, limit)
	raw, err := p.client.fetchHistory(ctx, fullSymbol, resolution, req.From, req.To, limit)
	if err != nil {
		return nil, err
	}

	bars, err := parseUDFHistory(raw, fullSymbol)
	if err != nil {
		return nil, err
	}
	return clampRange(bars, req.From, req.To), nil
}

func (p *Provider) maxBarsFor(iv series.Interval) int {
	if iv.IsIntraday() {
		return maxBarsIntraday
	}
	return maxBarsDaily
}

// clampRange 过滤掉请求区间之外的K线
func clampRange(bars []series.Bar, from, to time.Time) []series.Bar {
	out := bars[:0]
	for _, b := range bars {
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

// Close 关闭提供商，清理资源
func (p *Provider) Close() error { return p.client.Close() }

var _ core.HistoricalProvider = (*Provider)(nil)
var _ core.Closable = (*Provider)(nil)
