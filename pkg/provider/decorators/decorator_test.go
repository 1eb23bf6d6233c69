package decorators

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

// fakeProvider 可编程的历史K线提供商，用于装饰器测试
type fakeProvider struct {
	calls   int
	results []fakeResult
}

type fakeResult struct {
	bars []series.Bar
	err  error
}

func (f *fakeProvider) Name() string                 { return "fake" }
func (f *fakeProvider) GetRateLimit() time.Duration  { return 0 }
func (f *fakeProvider) IsHealthy() bool              { return true }
func (f *fakeProvider) MaxBarsPerRequest() int       { return 100 }
func (f *fakeProvider) DefaultVenue() string         { return "TEST" }
func (f *fakeProvider) IsSymbolSupported(string) bool { return true }

func (f *fakeProvider) SupportedIntervals() []series.Interval {
	return []series.Interval{series.Interval1d}
}

func (f *fakeProvider) FetchBars(ctx context.Context, req core.BarRequest) ([]series.Bar, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx].bars, f.results[idx].err
}

func oneBar(ts time.Time) []series.Bar {
	return []series.Bar{{Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}}
}

func TestRetryProvider(t *testing.T) {
	req := core.BarRequest{Symbol: "ZL1!", Interval: series.Interval1d}

	t.Run("可重试错误后成功", func(t *testing.T) {
		fake := &fakeProvider{results: []fakeResult{
			{err: core.ErrNetwork},
			{err: core.ErrRateLimited},
			{bars: oneBar(time.Now())},
		}}
		p := NewRetryProvider(fake, &RetryConfig{
			MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Enabled: true,
		})

		bars, err := p.FetchBars(context.Background(), req)
		require.NoError(t, err)
		assert.Len(t, bars, 1)
		assert.Equal(t, 3, fake.calls)
	})

	t.Run("终态错误不重试", func(t *testing.T) {
		fake := &fakeProvider{results: []fakeResult{{err: core.ErrSymbolNotFound}}}
		p := NewRetryProvider(fake, &RetryConfig{
			MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Enabled: true,
		})

		_, err := p.FetchBars(context.Background(), req)
		assert.True(t, errors.Is(err, core.ErrSymbolNotFound))
		assert.Equal(t, 1, fake.calls)
	})

	t.Run("超过最大次数返回最后错误", func(t *testing.T) {
		fake := &fakeProvider{results: []fakeResult{{err: core.ErrNetwork}}}
		p := NewRetryProvider(fake, &RetryConfig{
			MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Enabled: true,
		})

		_, err := p.FetchBars(context.Background(), req)
		assert.True(t, errors.Is(err, core.ErrNetwork))
		assert.Equal(t, 2, fake.calls)
	})

	t.Run("上下文取消立即返回", func(t *testing.T) {
		fake := &fakeProvider{results: []fakeResult{{err: core.ErrNetwork}}}
		p := NewRetryProvider(fake, &RetryConfig{
			MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Enabled: true,
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.FetchBars(ctx, req)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, fake.calls)
	})
}

func TestCircuitBreakerProvider(t *testing.T) {
	req := core.BarRequest{Symbol: "FCPO1!", Interval: series.Interval1d}

	t.Run("连续失败触发熔断", func(t *testing.T) {
		fake := &fakeProvider{results: []fakeResult{{err: core.ErrNetwork}}}
		cfg := DefaultCircuitBreakerConfig()
		cfg.ReadyToTrip = 3
		p := NewCircuitBreakerProvider(fake, cfg)

		for i := 0; i < 3; i++ {
			_, err := p.FetchBars(context.Background(), req)
			assert.Error(t, err)
		}
		assert.False(t, p.IsHealthy())

		// 熔断打开后请求被拒绝，不再触达底层提供商
		calls := fake.calls
		_, err := p.FetchBars(context.Background(), req)
		assert.True(t, errors.Is(err, core.ErrRateLimited))
		assert.Equal(t, calls, fake.calls)
	})

	t.Run("终态错误不计入熔断", func(t *testing.T) {
		fake := &fakeProvider{results: []fakeResult{{err: core.ErrSymbolNotFound}}}
		cfg := DefaultCircuitBreakerConfig()
		cfg.ReadyToTrip = 2
		p := NewCircuitBreakerProvider(fake, cfg)

		for i := 0; i < 5; i++ {
			_, err := p.FetchBars(context.Background(), req)
			assert.True(t, errors.Is(err, core.ErrSymbolNotFound))
		}
		assert.True(t, p.IsHealthy())
		assert.Equal(t, 5, fake.calls)
	})

	t.Run("统计信息累计", func(t *testing.T) {
		fake := &fakeProvider{results: []fakeResult{
			{bars: oneBar(time.Now())},
			{err: core.ErrNetwork},
		}}
		p := NewCircuitBreakerProvider(fake, nil)

		_, _ = p.FetchBars(context.Background(), req)
		_, _ = p.FetchBars(context.Background(), req)

		stats := p.GetStats()
		assert.Equal(t, int64(2), stats.TotalRequests)
		assert.Equal(t, int64(1), stats.SuccessfulRequests)
		assert.Equal(t, int64(1), stats.FailedRequests)
	})

	t.Run("装饰器透传基础能力", func(t *testing.T) {
		fake := &fakeProvider{results: []fakeResult{{bars: nil}}}
		p := NewCircuitBreakerProvider(fake, nil)

		assert.Equal(t, "CircuitBreaker(fake)", p.Name())
		assert.Equal(t, 100, p.MaxBarsPerRequest())
		assert.Equal(t, "TEST", p.DefaultVenue())
		assert.Equal(t, core.Provider(fake), p.GetBaseProvider())
	})
}
