package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

type stubProvider struct {
	name      string
	symbols   map[string]bool
	intervals []series.Interval
	closed    bool
}

func (s *stubProvider) Name() string                { return s.name }
func (s *stubProvider) GetRateLimit() time.Duration { return 0 }
func (s *stubProvider) IsHealthy() bool             { return true }
func (s *stubProvider) MaxBarsPerRequest() int      { return 100 }
func (s *stubProvider) DefaultVenue() string        { return "TEST" }
func (s *stubProvider) Close() error                { s.closed = true; return nil }

func (s *stubProvider) IsSymbolSupported(symbol string) bool {
	if s.symbols == nil {
		return true
	}
	return s.symbols[symbol]
}

func (s *stubProvider) SupportedIntervals() []series.Interval {
	return s.intervals
}

func (s *stubProvider) FetchBars(ctx context.Context, req core.BarRequest) ([]series.Bar, error) {
	return nil, nil
}

func TestProviderManager(t *testing.T) {
	t.Run("注册与获取", func(t *testing.T) {
		m := NewProviderManager()
		p := &stubProvider{name: "alpha", intervals: []series.Interval{series.Interval1d}}
		require.NoError(t, m.RegisterHistoricalProvider("alpha", p))

		got, err := m.GetHistoricalProvider("alpha")
		require.NoError(t, err)
		assert.Equal(t, "alpha", got.Name())

		// 首个注册为默认
		got, err = m.GetHistoricalProvider("")
		require.NoError(t, err)
		assert.Equal(t, "alpha", got.Name())

		_, err = m.GetHistoricalProvider("missing")
		assert.Error(t, err)
	})

	t.Run("空名称与nil提供商被拒绝", func(t *testing.T) {
		m := NewProviderManager()
		assert.Error(t, m.RegisterHistoricalProvider("", &stubProvider{}))
		assert.Error(t, m.RegisterHistoricalProvider("alpha", nil))
	})

	t.Run("按能力选择提供商", func(t *testing.T) {
		m := NewProviderManager()
		dailyOnly := &stubProvider{
			name:      "daily",
			intervals: []series.Interval{series.Interval1d},
		}
		intraday := &stubProvider{
			name:      "intraday",
			symbols:   map[string]bool{"ZL1!": true},
			intervals: []series.Interval{series.Interval1m, series.Interval1d},
		}
		require.NoError(t, m.RegisterHistoricalProvider("daily", dailyOnly))
		require.NoError(t, m.RegisterHistoricalProvider("intraday", intraday))

		// 默认提供商优先
		p, err := m.SelectFor("ZL1!", series.Interval1d)
		require.NoError(t, err)
		assert.Equal(t, "daily", p.Name())

		// 默认不支持分钟线时回退到其他提供商
		p, err = m.SelectFor("ZL1!", series.Interval1m)
		require.NoError(t, err)
		assert.Equal(t, "intraday", p.Name())

		_, err = m.SelectFor("UNKNOWN", series.Interval1m)
		assert.Error(t, err)
	})

	t.Run("切换默认提供商", func(t *testing.T) {
		m := NewProviderManager()
		require.NoError(t, m.RegisterHistoricalProvider("a", &stubProvider{name: "a"}))
		require.NoError(t, m.RegisterHistoricalProvider("b", &stubProvider{name: "b"}))

		require.NoError(t, m.SetDefault("b"))
		got, err := m.GetHistoricalProvider("")
		require.NoError(t, err)
		assert.Equal(t, "b", got.Name())

		assert.Error(t, m.SetDefault("missing"))
	})

	t.Run("关闭所有提供商", func(t *testing.T) {
		m := NewProviderManager()
		p1 := &stubProvider{name: "a"}
		p2 := &stubProvider{name: "b"}
		require.NoError(t, m.RegisterHistoricalProvider("a", p1))
		require.NoError(t, m.RegisterHistoricalProvider("b", p2))

		require.NoError(t, m.Close())
		assert.True(t, p1.closed)
		assert.True(t, p2.closed)
	})

	t.Run("列出提供商按字典序", func(t *testing.T) {
		m := NewProviderManager()
		require.NoError(t, m.RegisterHistoricalProvider("zeta", &stubProvider{name: "zeta"}))
		require.NoError(t, m.RegisterHistoricalProvider("alpha", &stubProvider{name: "alpha"}))

		assert.Equal(t, []string{"alpha", "zeta"}, m.ListProviders())
	})
}
