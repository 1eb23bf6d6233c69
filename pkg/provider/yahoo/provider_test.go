package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

func TestFetchBars(t *testing.T) {
	t.Run("时间戳按响应元数据的交易所时区表示", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "1155.KL")
			w.Write([]byte(sampleChart))
		}))
		defer srv.Close()

		p := NewProvider(srv.URL)
		p.rateLimit = 0
		bars, err := p.FetchBars(context.Background(), core.BarRequest{
			Symbol:   "1155",
			Interval: series.Interval1d,
		})
		require.NoError(t, err)
		require.Len(t, bars, 3)

		// 元数据时区 Asia/Kuala_Lumpur，时刻不变
		assert.Equal(t, "Asia/Kuala_Lumpur", bars[0].Timestamp.Location().String())
		assert.Equal(t, int64(1709251200), bars[0].Timestamp.Unix())
	})

	t.Run("限流状态码映射为RateLimited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		p := NewProvider(srv.URL)
		p.rateLimit = 0
		_, err := p.FetchBars(context.Background(), core.BarRequest{
			Symbol:   "AAPL",
			Interval: series.Interval1d,
		})
		assert.ErrorIs(t, err, core.ErrRateLimited)
	})
}
