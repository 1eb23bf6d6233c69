package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

const defaultBaseURL = "https://api.binance.com"

// 币安 /api/v3/klines 的 limit 上限为 1000
const maxBarsPerRequest = 1000

// Provider 币安现货历史K线提供商
type Provider struct {
	httpClient  *http.Client
	baseURL     string
	rateLimit   time.Duration
	requestMu   sync.Mutex
	lastRequest time.Time
	log         *logrus.Entry
}

// NewProvider 创建币安数据提供商
func NewProvider(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		rateLimit:  200 * time.Millisecond,
		log:        logger.WithComponent("BinanceProvider"),
	}
}

// Name 返回提供商名称
func (p *Provider) Name() string { return "binance" }

// GetRateLimit 获取请求频率限制
func (p *Provider) GetRateLimit() time.Duration { return p.rateLimit }

// IsHealthy 检查提供商健康状态
func (p *Provider) IsHealthy() bool { return p.httpClient != nil }

// DefaultVenue 返回默认交易所
func (p *Provider) DefaultVenue() string { return "BINANCE" }

// MaxBarsPerRequest 单次调用K线上限
func (p *Provider) MaxBarsPerRequest() int { return maxBarsPerRequest }

// SupportedIntervals 支持的时间粒度
func (p *Provider) SupportedIntervals() []series.Interval {
	return []series.Interval{
		series.Interval1m, series.Interval5m, series.Interval15m,
		series.Interval1h, series.Interval1d, series.Interval1w, series.Interval1M,
	}
}

// IsSymbolSupported 交易对形如 BTC/USDT 或 BTCUSDT
func (p *Provider) IsSymbolSupported(symbol string) bool {
	return strings.TrimSpace(symbol) != ""
}

// FetchBars 获取历史K线
func (p *Provider) FetchBars(ctx context.Context, req core.BarRequest) ([]series.Bar, error) {
	interval, err := intervalParam(req.Interval)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 || limit > maxBarsPerRequest {
		limit = maxBarsPerRequest
	}

	p.throttle()

	u, _ := url.Parse(p.baseURL)
	u.Path = "/api/v3/klines"
	q := u.Query()
	q.Set("symbol", normalizePair(req.Symbol))
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if !req.From.IsZero() {
		q.Set("startTime", strconv.FormatInt(req.From.UnixMilli(), 10))
	}
	if !req.To.IsZero() {
		q.Set("endTime", strconv.FormatInt(req.To.UnixMilli(), 10))
	}
	u.RawQuery = q.Encode()

	p.log.Debugf("fetching %s interval=%s limit=%d", req.Symbol, interval, limit)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, core.ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", core.ErrSymbolNotFound, req.Symbol)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: HTTP status %d", core.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", core.ErrNetwork, err)
	}
	return parseKlines(body, req.Symbol)
}

func (p *Provider) throttle() {
	p.requestMu.Lock()
	defer p.requestMu.Unlock()
	if elapsed := time.Since(p.lastRequest); elapsed < p.rateLimit {
		time.Sleep(p.rateLimit - elapsed)
	}
	p.lastRequest = time.Now()
}

// normalizePair 把 BTC/USDT 形式的交易对转成币安的 BTCUSDT
func normalizePair(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
}

// Close 关闭提供商，清理资源
func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

var _ core.HistoricalProvider = (*Provider)(nil)
var _ core.Closable = (*Provider)(nil)
