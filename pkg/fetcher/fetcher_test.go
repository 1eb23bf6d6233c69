package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

// pagedProvider 持有一段完整历史，按请求窗口与上限返回最近的K线
// 模拟单次请求有K线数量上限的真实提供商
type pagedProvider struct {
	history []series.Bar // 升序
	limit   int
	calls   int
	failOn  int // 第 failOn 次调用返回网络错误，0 表示不失败
}

func (p *pagedProvider) Name() string                  { return "paged" }
func (p *pagedProvider) GetRateLimit() time.Duration   { return 0 }
func (p *pagedProvider) IsHealthy() bool               { return true }
func (p *pagedProvider) MaxBarsPerRequest() int        { return p.limit }
func (p *pagedProvider) DefaultVenue() string          { return "TEST" }
func (p *pagedProvider) IsSymbolSupported(string) bool { return true }

func (p *pagedProvider) SupportedIntervals() []series.Interval {
	return []series.Interval{series.Interval1m, series.Interval1d}
}

func (p *pagedProvider) FetchBars(ctx context.Context, req core.BarRequest) ([]series.Bar, error) {
	p.calls++
	if p.failOn > 0 && p.calls == p.failOn {
		return nil, core.ErrNetwork
	}

	var window []series.Bar
	for _, bar := range p.history {
		if bar.Timestamp.After(req.To) {
			continue
		}
		window = append(window, bar)
	}
	if len(window) > p.limit {
		window = window[len(window)-p.limit:]
	}
	return window, nil
}

func makeHistory(n int, start time.Time, step time.Duration) []series.Bar {
	bars := make([]series.Bar, n)
	for i := range bars {
		bars[i] = series.Bar{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      float64(i),
			High:      float64(i) + 1,
			Low:       float64(i) - 1,
			Close:     float64(i) + 0.5,
			Volume:    100,
		}
	}
	return bars
}

func TestFetchRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("多分段拼接完整历史", func(t *testing.T) {
		provider := &pagedProvider{
			history: makeHistory(250, start, time.Minute),
			limit:   100,
		}
		f := New(provider, nil)

		bars, err := f.FetchRange(context.Background(), "ZL1!", "CBOT", series.Interval1m,
			time.Time{}, start.Add(300*time.Minute), nil)
		require.NoError(t, err)

		assert.Len(t, bars, 250)
		// 升序无重复
		for i := 1; i < len(bars); i++ {
			assert.True(t, bars[i].Timestamp.After(bars[i-1].Timestamp))
		}
		assert.Equal(t, start, bars[0].Timestamp)
		assert.Equal(t, start.Add(249*time.Minute), bars[len(bars)-1].Timestamp)
	})

	t.Run("到达地平线后停止", func(t *testing.T) {
		provider := &pagedProvider{
			history: makeHistory(50, start, time.Minute),
			limit:   100,
		}
		f := New(provider, nil)

		bars, err := f.FetchRange(context.Background(), "ZL1!", "CBOT", series.Interval1m,
			time.Time{}, start.Add(time.Hour*24), nil)
		require.NoError(t, err)
		assert.Len(t, bars, 50)
		// 不足一整页即停，不会无限翻页
		assert.Equal(t, 1, provider.calls)
	})

	t.Run("左边界裁剪", func(t *testing.T) {
		provider := &pagedProvider{
			history: makeHistory(200, start, time.Minute),
			limit:   100,
		}
		f := New(provider, nil)

		from := start.Add(150 * time.Minute)
		bars, err := f.FetchRange(context.Background(), "ZL1!", "CBOT", series.Interval1m,
			from, start.Add(400*time.Minute), nil)
		require.NoError(t, err)
		assert.Len(t, bars, 50)
		assert.Equal(t, from, bars[0].Timestamp)
	})

	t.Run("分段回调按新到旧触发", func(t *testing.T) {
		provider := &pagedProvider{
			history: makeHistory(250, start, time.Minute),
			limit:   100,
		}
		f := New(provider, nil)

		var segmentEarliest []time.Time
		_, err := f.FetchRange(context.Background(), "ZL1!", "CBOT", series.Interval1m,
			time.Time{}, start.Add(300*time.Minute), func(segment []series.Bar) error {
				segmentEarliest = append(segmentEarliest, segment[0].Timestamp)
				return nil
			})
		require.NoError(t, err)

		require.GreaterOrEqual(t, len(segmentEarliest), 2)
		for i := 1; i < len(segmentEarliest); i++ {
			assert.True(t, segmentEarliest[i].Before(segmentEarliest[i-1]))
		}
	})

	t.Run("中途失败携带已覆盖区间", func(t *testing.T) {
		provider := &pagedProvider{
			history: makeHistory(250, start, time.Minute),
			limit:   100,
			failOn:  2,
		}
		f := New(provider, nil)

		_, err := f.FetchRange(context.Background(), "ZL1!", "CBOT", series.Interval1m,
			time.Time{}, start.Add(300*time.Minute), nil)
		require.Error(t, err)

		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.True(t, errors.Is(err, core.ErrNetwork))
		assert.Equal(t, 100, fe.Covered)
		assert.Equal(t, start.Add(249*time.Minute), fe.Latest)
		assert.Equal(t, start.Add(150*time.Minute), fe.Earliest)
	})

	t.Run("回调错误中止抓取", func(t *testing.T) {
		provider := &pagedProvider{
			history: makeHistory(250, start, time.Minute),
			limit:   100,
		}
		f := New(provider, nil)

		sentinel := errors.New("disk full")
		_, err := f.FetchRange(context.Background(), "ZL1!", "CBOT", series.Interval1m,
			time.Time{}, start.Add(300*time.Minute), func([]series.Bar) error {
				return sentinel
			})
		require.Error(t, err)
		assert.True(t, errors.Is(err, sentinel))
		assert.Equal(t, 1, provider.calls)
	})

	t.Run("上下文取消", func(t *testing.T) {
		provider := &pagedProvider{
			history: makeHistory(250, start, time.Minute),
			limit:   100,
		}
		f := New(provider, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.FetchRange(ctx, "ZL1!", "CBOT", series.Interval1m,
			time.Time{}, start.Add(300*time.Minute), nil)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("分段数上限防止无限翻页", func(t *testing.T) {
		provider := &pagedProvider{
			history: makeHistory(1000, start, time.Minute),
			limit:   10,
		}
		f := New(provider, &Config{MaxSegments: 3})

		bars, err := f.FetchRange(context.Background(), "ZL1!", "CBOT", series.Interval1m,
			time.Time{}, start.Add(2000*time.Minute), nil)
		require.NoError(t, err)
		assert.Len(t, bars, 30)
		assert.Equal(t, 3, provider.calls)
	})
}
