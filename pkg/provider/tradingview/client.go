package tradingview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"quantbridge/pkg/provider/core"
)

const defaultBaseURL = "https://udf.tradingview.com"

// Client TradingView UDF 协议 HTTP 客户端。
// 只负责发请求和读响应，协议解析在 parser.go。
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	rateLimit   time.Duration
	requestMu   sync.Mutex
	lastRequest time.Time
}

// NewClient 创建 UDF 客户端
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
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
		rateLimit: 500 * time.Millisecond,
	}
}

// fetchHistory 请求 /history 端点，返回原始响应体。
// 相邻请求之间按 rateLimit 节流。
func (c *Client) fetchHistory(ctx context.Context, fullSymbol, resolution string, from, to time.Time, countback int) ([]byte, error) {
	c.throttle()

	q := url.Values{}
	q.Set("symbol", fullSymbol)
	q.Set("resolution", resolution)
	if !from.IsZero() {
		q.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		q.Set("to", strconv.FormatInt(to.Unix(), 10))
	}
	if countback > 0 {
		q.Set("countback", strconv.Itoa(countback))
	}

	reqURL := c.baseURL + "/history?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
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
	return body, nil
}

func (c *Client) throttle() {
	c.requestMu.Lock()
	defer c.requestMu.Unlock()
	if elapsed := time.Since(c.lastRequest); elapsed < c.rateLimit {
		time.Sleep(c.rateLimit - elapsed)
	}
	c.lastRequest = time.Now()
}

// Close 关闭空闲连接
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
