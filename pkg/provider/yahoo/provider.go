package yahoo

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

const defaultBaseURL = "https://query1.finance.yahoo.com"

// 雅虎 chart 接口单次返回的数据点没有显式上限，
// 但分钟级只保留最近约30天，按一万根作为分页单位。
const maxBarsPerRequest = 10000

// Provider 雅虎财经历史数据提供商，覆盖股票与全球期货。
type Provider struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	rateLimit   time.Duration
	requestMu   sync.Mutex
	lastRequest time.Time
	log         *logrus.Entry
}

// NewProvider 创建雅虎数据提供商
func NewProvider(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
			Timeout: 15 * time.Second,
		},
		baseURL:   baseURL,
		userAgent: "QuantBridge/1.0",
		rateLimit: 300 * time.Millisecond,
		log:       logger.WithComponent("YahooProvider"),
	}
}

// Name 返回提供商名称
func (p *Provider) Name() string { return "yahoo" }

// GetRateLimit 获取请求频率限制
func (p *Provider) GetRateLimit() time.Duration { return p.rateLimit }

// IsHealthy 检查提供商健康状态
func (p *Provider) IsHealthy() bool { return p.httpClient != nil }

// DefaultVenue 雅虎自己内部路由交易所，这里统一记为 YF
func (p *Provider) DefaultVenue() string { return "YF" }

// MaxBarsPerRequest 单次调用K线上限
func (p *Provider) MaxBarsPerRequest() int { return maxBarsPerRequest }

// SupportedIntervals 支持的时间粒度
func (p *Provider) SupportedIntervals() []series.Interval {
	return []series.Interval{
		series.Interval1m, series.Interval5m, series.Interval15m,
		series.Interval1h, series.Interval1d, series.Interval1w, series.Interval1M,
	}
}

// IsSymbolSupported 检查是否支持该资产代码
func (p *Provider) IsSymbolSupported(symbol string) bool {
	return strings.TrimSpace(symbol) != ""
}

// PreprocessSymbol 资产代码预处理：马股纯数字代码自动追加 .KL 后缀。
// 其余代码（AAPL、GC=F 等）原样透传。
func PreprocessSymbol(symbol string) string {
	s := strings.TrimSpace(symbol)
	if s != "" && isAllDigits(s) {
		return s + ".KL"
	}
	return s
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FetchBars 获取历史K线
func (p *Provider) FetchBars(ctx context.Context, req core.BarRequest) ([]series.Bar, error) {
	interval, err := intervalParam(req.Interval)
	if err != nil {
		return nil, err
	}
	symbol := PreprocessSymbol(req.Symbol)

	p.throttle()

	q := url.Values{}
	q.Set("interval", interval)
	q.Set("events", "history")
	if !req.From.IsZero() {
		q.Set("period1", strconv.FormatInt(req.From.Unix(), 10))
	}
	to := req.To
	if to.IsZero() {
		to = time.Now()
	}
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(symbol), q.Encode())
	p.log.Debugf("fetching %s interval=%s", symbol, interval)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, core.ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", core.ErrSymbolNotFound, symbol)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: HTTP status %d", core.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", core.ErrNetwork, err)
	}

	bars, err := parseChartResponse(body, symbol)
	if err != nil {
		return nil, err
	}
	// 按响应元数据里的交易所时区表示时间戳，时刻不变，
	// 下游归一化前日志与休市判断都能看到交易所本地时间
	if name := SourceTimezone(body); name != "" {
		if loc, lerr := time.LoadLocation(name); lerr == nil {
			for i := range bars {
				bars[i].Timestamp = bars[i].Timestamp.In(loc)
			}
		} else {
			p.log.Warnf("%s: unknown exchange timezone %q, keeping UTC", symbol, name)
		}
	}
	// chart 接口按区间返回，Limit 只保留右边界侧的最近 Limit 根
	if req.Limit > 0 && len(bars) > req.Limit {
		bars = bars[len(bars)-req.Limit:]
	}
	return bars, nil
}

func (p *Provider) throttle() {
	p.requestMu.Lock()
	defer p.requestMu.Unlock()
	if elapsed := time.Since(p.lastRequest); elapsed < p.rateLimit {
		time.Sleep(p.rateLimit - elapsed)
	}
	p.lastRequest = time.Now()
}

// Close 关闭提供商，清理资源
func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

var _ core.HistoricalProvider = (*Provider)(nil)
var _ core.Closable = (*Provider)(nil)
