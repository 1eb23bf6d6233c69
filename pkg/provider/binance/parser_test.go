package binance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbridge/pkg/provider/core"
)

func TestParseKlines(t *testing.T) {
	t.Run("正常解析", func(t *testing.T) {
		raw := []byte(`[
			[1709256600000,"62000.1","62100.5","61900.0","62050.2","12.345",1709257499999],
			[1709257500000,"62050.2","62200.0","62000.0","62150.8","8.120",1709258399999]
		]`)
		bars, err := parseKlines(raw, "BTC/USDT")
		require.NoError(t, err)
		require.Len(t, bars, 2)

		assert.Equal(t, time.UnixMilli(1709256600000).UTC(), bars[0].Timestamp)
		assert.Equal(t, 62000.1, bars[0].Open)
		assert.Equal(t, 62150.8, bars[1].Close)
		assert.Equal(t, 8.12, bars[1].Volume)
	})

	t.Run("空数组返回空", func(t *testing.T) {
		bars, err := parseKlines([]byte(`[]`), "BTC/USDT")
		require.NoError(t, err)
		assert.Empty(t, bars)
	})

	t.Run("字段不足的行被丢弃", func(t *testing.T) {
		raw := []byte(`[[1709256600000,"1","2"],[1709257500000,"1","2","0.5","1.5","10",1709258399999]]`)
		bars, err := parseKlines(raw, "BTC/USDT")
		require.NoError(t, err)
		assert.Len(t, bars, 1)
	})

	t.Run("时间戳回退的行被丢弃", func(t *testing.T) {
		raw := []byte(`[
			[1709257500000,"1","2","0.5","1.5","10",0],
			[1709256600000,"1","2","0.5","1.5","10",0]
		]`)
		bars, err := parseKlines(raw, "BTC/USDT")
		require.NoError(t, err)
		assert.Len(t, bars, 1)
	})

	t.Run("不可解析返回ProviderFormat", func(t *testing.T) {
		_, err := parseKlines([]byte(`{"code":-1121}`), "NOPE")
		assert.True(t, errors.Is(err, core.ErrProviderFormat))
	})
}

func TestNormalizePair(t *testing.T) {
	assert.Equal(t, "BTCUSDT", normalizePair("BTC/USDT"))
	assert.Equal(t, "BTCUSDT", normalizePair("btcusdt"))
	assert.Equal(t, "ETHUSDT", normalizePair(" ETH/USDT "))
}

func TestIntervalParam(t *testing.T) {
	got, err := intervalParam("15m")
	require.NoError(t, err)
	assert.Equal(t, "15m", got)

	_, err = intervalParam("45m")
	assert.True(t, errors.Is(err, core.ErrIntervalNotSupported))
}
