package fetcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

// Config 分段抓取配置
type Config struct {
	MaxSegments  int           `yaml:"max_segments" mapstructure:"max_segments"`   // 单次抓取的最大分段数
	SegmentPause time.Duration `yaml:"segment_pause" mapstructure:"segment_pause"` // 分段之间的停顿
}

// DefaultConfig 默认抓取配置
func DefaultConfig() *Config {
	return &Config{
		MaxSegments:  64,
		SegmentPause: 0,
	}
}

// SegmentFunc 每个分段抓取成功后的回调
// 返回错误会中止后续分段，已覆盖的区间通过 FetchError 报告
type SegmentFunc func(segment []series.Bar) error

// FetchError 分段抓取失败时的错误
// 携带失败前已成功覆盖的区间，调用方可以据此保留部分结果
type FetchError struct {
	Symbol   string
	Interval series.Interval
	Covered  int       // 已成功抓取的K线数量
	Earliest time.Time // 已覆盖区间的最早时间戳
	Latest   time.Time // 已覆盖区间的最晚时间戳
	Err      error
}

func (e *FetchError) Error() string {
	if e.Covered == 0 {
		return fmt.Sprintf("fetch %s %s failed: %v", e.Symbol, e.Interval, e.Err)
	}
	return fmt.Sprintf("fetch %s %s failed after %d bars (%s .. %s): %v",
		e.Symbol, e.Interval, e.Covered,
		e.Earliest.Format(time.RFC3339), e.Latest.Format(time.RFC3339), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher 分段历史K线抓取器
//
// 单次请求最多拿到提供商上限数量的K线，抓取器从右边界向历史方向
// 逐段翻页，直到覆盖目标区间或到达提供商的数据地平线。
type Fetcher struct {
	provider core.HistoricalProvider
	config   *Config
	log      *logrus.Entry
}

// New 创建分段抓取器
func New(provider core.HistoricalProvider, config *Config) *Fetcher {
	if config == nil {
		config = DefaultConfig()
	}
	return &Fetcher{
		provider: provider,
		config:   config,
		log:      logger.WithComponent("Fetcher"),
	}
}

// FetchRange 抓取 [from, to] 区间的全部K线，按时间升序返回
//
// from 为零值表示一直抓到提供商的数据地平线。
// onSegment 可以为 nil；非 nil 时每个分段按抓取顺序（新到旧）回调一次。
// 部分成功后失败返回 *FetchError，其中携带已覆盖区间。
func (f *Fetcher) FetchRange(ctx context.Context, symbol, venue string, interval series.Interval, from, to time.Time, onSegment SegmentFunc) ([]series.Bar, error) {
	if to.IsZero() {
		to = time.Now()
	}
	limit := f.provider.MaxBarsPerRequest()

	var collected []series.Bar
	seen := make(map[int64]bool)
	cursor := to

	fail := func(err error) *FetchError {
		fe := &FetchError{Symbol: symbol, Interval: interval, Covered: len(collected), Err: err}
		if len(collected) > 0 {
			fe.Earliest = collected[len(collected)-1].Timestamp
			fe.Latest = collected[0].Timestamp
		}
		return fe
	}

	for segment := 0; segment < f.config.MaxSegments; segment++ {
		if err := ctx.Err(); err != nil {
			return nil, fail(err)
		}

		req := core.BarRequest{
			Symbol:   symbol,
			Venue:    venue,
			Interval: interval,
			From:     from,
			To:       cursor,
			Limit:    limit,
		}
		bars, err := f.provider.FetchBars(ctx, req)
		if err != nil {
			return nil, fail(err)
		}

		// 去掉与上一分段边界重叠的K线，先抓到的（更新的分段）优先
		fresh := bars[:0:0]
		for _, bar := range bars {
			key := bar.Timestamp.UnixNano()
			if seen[key] {
				continue
			}
			seen[key] = true
			fresh = append(fresh, bar)
		}

		// 没有新K线说明已触达提供商的数据地平线
		if len(fresh) == 0 {
			f.log.Debugf("%s %s: horizon reached after %d segments", symbol, interval, segment)
			break
		}

		// 回调按新到旧传递分段，分段内部保持升序
		if onSegment != nil {
			if err := onSegment(fresh); err != nil {
				return nil, fail(err)
			}
		}

		// collected 按新到旧累积，最终反转为升序
		for i := len(fresh) - 1; i >= 0; i-- {
			collected = append(collected, fresh[i])
		}

		earliest := fresh[0].Timestamp
		f.log.Debugf("%s %s segment %d: %d bars back to %s",
			symbol, interval, segment, len(fresh), earliest.Format(time.RFC3339))

		if !from.IsZero() && !earliest.After(from) {
			break
		}
		// 不足一整页说明没有更早的数据了
		if len(bars) < limit {
			break
		}

		cursor = earliest.Add(-time.Millisecond)

		if f.config.SegmentPause > 0 {
			select {
			case <-ctx.Done():
				return nil, fail(ctx.Err())
			case <-time.After(f.config.SegmentPause):
			}
		}
	}

	// 升序排列并裁剪左边界
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].Timestamp.Before(collected[j].Timestamp)
	})
	if !from.IsZero() {
		cut := 0
		for cut < len(collected) && collected[cut].Timestamp.Before(from) {
			cut++
		}
		collected = collected[cut:]
	}
	return collected, nil
}

// FetchLatest 抓取截至当前时刻、不限定左边界的K线
func (f *Fetcher) FetchLatest(ctx context.Context, symbol, venue string, interval series.Interval) ([]series.Bar, error) {
	return f.FetchRange(ctx, symbol, venue, interval, time.Time{}, time.Now(), nil)
}
