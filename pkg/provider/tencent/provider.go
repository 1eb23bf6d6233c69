package tencent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

const defaultBaseURL = "https://web.ifzq.gtimg.cn"

// 腾讯日K接口单次最多返回的K线数量
const maxBarsPerRequest = 800

// Provider 腾讯A股历史K线提供商（日线及以上粒度）
type Provider struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	rateLimit   time.Duration
	requestMu   sync.Mutex
	lastRequest time.Time
	log         *logrus.Entry
}

// NewProvider 创建腾讯数据提供商
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
		rateLimit: 200 * time.Millisecond,
		log:       logger.WithComponent("TencentProvider"),
	}
}

// Name 返回提供商名称
func (p *Provider) Name() string { return "tencent" }

// GetRateLimit 获取请求频率限制
func (p *Provider) GetRateLimit() time.Duration { return p.rateLimit }

// IsHealthy 检查提供商健康状态
func (p *Provider) IsHealthy() bool { return p.httpClient != nil }

// DefaultVenue A股按代码自动路由沪深北，统一记为 CN
func (p *Provider) DefaultVenue() string { return "CN" }

// MaxBarsPerRequest 单次调用K线上限
func (p *Provider) MaxBarsPerRequest() int { return maxBarsPerRequest }

// SupportedIntervals 腾讯K线接口只提供日线及以上
func (p *Provider) SupportedIntervals() []series.Interval {
	return []series.Interval{series.Interval1d, series.Interval1w, series.Interval1M}
}

// IsSymbolSupported 检查是否支持该股票代码
func (p *Provider) IsSymbolSupported(symbol string) bool {
	s := strings.TrimSpace(symbol)
	if len(s) != 6 {
		return false
	}
	// A股上证
	if strings.HasPrefix(s, "6") {
		return true
	}
	// A股深证
	if strings.HasPrefix(s, "0") || strings.HasPrefix(s, "300") {
		return true
	}
	// A股北交所
	for _, prefix := range []string{"43", "82", "83", "87", "920"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// FetchBars 获取历史K线
func (p *Provider) FetchBars(ctx context.Context, req core.BarRequest) ([]series.Bar, error) {
	periodKey, err := periodFor(req.Interval)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 || limit > maxBarsPerRequest {
		limit = maxBarsPerRequest
	}

	code := p.getMarketPrefix(req.Symbol) + strings.TrimSpace(req.Symbol)
	endDate := ""
	if !req.To.IsZero() {
		endDate = req.To.Format("2006-01-02")
	}

	p.throttle()

	reqURL := fmt.Sprintf("%s/appstock/app/fqkline/get?param=%s,%s,,%s,%d,qfq",
		p.baseURL, code, periodKey, endDate, limit)
	p.log.Debugf("fetching %s period=%s limit=%d", code, periodKey, limit)

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

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, core.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP status %d", core.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", core.ErrNetwork, err)
	}

	bars, err := parseKlineResponse(body, code, periodKey)
	if err != nil {
		return nil, err
	}
	// 接口只支持右边界截断，左边界在本地过滤
	if !req.From.IsZero() {
		cut := 0
		for cut < len(bars) && bars[cut].Timestamp.Before(req.From) {
			cut++
		}
		bars = bars[cut:]
	}
	return bars, nil
}

// getMarketPrefix 根据股票代码获取市场前缀
func (p *Provider) getMarketPrefix(symbol string) string {
	switch {
	case strings.HasPrefix(symbol, "6") || strings.HasPrefix(symbol, "5"):
		return "sh"
	case strings.HasPrefix(symbol, "0") || strings.HasPrefix(symbol, "3"):
		return "sz"
	case strings.HasPrefix(symbol, "4") || strings.HasPrefix(symbol, "8"):
		return "bj"
	default:
		return "sh" // 默认使用上海市场前缀
	}
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
