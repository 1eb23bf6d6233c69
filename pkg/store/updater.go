package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"quantbridge/pkg/fetcher"
	"quantbridge/pkg/logger"
	"quantbridge/pkg/series"
	"quantbridge/pkg/timezone"
)

// UpdateResult 一次增量更新的结果
type UpdateResult struct {
	Key          series.Key `json:"key"`
	Fetched      int        `json:"fetched"`    // 本次抓取的K线数
	Added        int        `json:"added"`      // 合并后新增的行数
	TotalRows    int        `json:"total_rows"` // 更新后序列总行数
	Gaps         []Gap      `json:"gaps,omitempty"`
	Partial      bool       `json:"partial"`       // 抓取中途失败但已保留部分结果
	ShortHistory bool       `json:"short_history"` // 实际覆盖起点明显晚于请求起点
}

// UpdateOptions 单次更新的可选参数
type UpdateOptions struct {
	// From 非零时作为回填的请求左边界，实际覆盖起点晚于它
	// 超过缺口容忍度会在结果中标记 ShortHistory
	From time.Time
	// SessionBreak 非空时过滤落在休市区间内的日内K线
	SessionBreak *timezone.SessionBreak
}

// Updater 增量更新器
//
// 把分段抓取、时区归一化与主存合并串起来：已有序列从最后
// 一根K线起只抓新增区间，空序列做一次全量回填。每个分段
// 抓到即并入主存，抓取中途失败不丢弃已落盘的分段。
type Updater struct {
	store      *MasterStore
	normalizer *timezone.Normalizer
	log        *logrus.Entry
}

// NewUpdater 创建增量更新器
func NewUpdater(store *MasterStore, normalizer *timezone.Normalizer) *Updater {
	return &Updater{
		store:      store,
		normalizer: normalizer,
		log:        logger.WithComponent("Updater"),
	}
}

// Update 增量更新一条序列
//
// 重新抓取包含最后一根K线在内的区间，让可能未收盘的
// 右边界K线被最终值覆盖。全新序列抓到提供商数据地平线为止。
func (u *Updater) Update(ctx context.Context, f *fetcher.Fetcher, key series.Key) (*UpdateResult, error) {
	return u.UpdateWithOptions(ctx, f, key, UpdateOptions{})
}

// UpdateWithOptions 按可选参数增量更新一条序列
func (u *Updater) UpdateWithOptions(ctx context.Context, f *fetcher.Fetcher, key series.Key, opts UpdateOptions) (*UpdateResult, error) {
	result := &UpdateResult{Key: key}

	from := opts.From
	last, ok, err := u.store.LatestTimestamp(key)
	if err != nil {
		return nil, err
	}
	if ok {
		// 从最后一根K线本身重抓，而不是其后一根
		from = last
		u.log.Infof("%s: incremental update from %s", key, from.Format(time.RFC3339))
	} else if from.IsZero() {
		u.log.Infof("%s: empty series, full backfill", key)
	} else {
		u.log.Infof("%s: backfill from %s", key, from.Format(time.RFC3339))
	}

	onSegment := func(segment []series.Bar) error {
		normalized := u.normalizer.NormalizeBars(segment)
		if opts.SessionBreak != nil {
			// 休市区间按交易所本地墙上时间判断，未指定交易所时
			// 退回K线自带的（已归一化的）时区
			var venueLoc *time.Location
			if key.Venue != "" {
				venueLoc = u.normalizer.VenueLocation(key.Venue)
			}
			normalized = timezone.FilterSessionBreak(normalized, key.Interval, *opts.SessionBreak, venueLoc)
		}
		if len(normalized) == 0 {
			result.Fetched += len(segment)
			return nil
		}
		added, mergeErr := u.store.Merge(key, normalized)
		if mergeErr != nil {
			return mergeErr
		}
		result.Fetched += len(segment)
		result.Added += added
		return nil
	}

	_, fetchErr := f.FetchRange(ctx, key.Symbol, key.Venue, key.Interval, from, time.Now(), onSegment)
	if fetchErr != nil {
		var fe *fetcher.FetchError
		if errors.As(fetchErr, &fe) && result.Fetched > 0 {
			// 部分分段已落盘，保留结果并如实报告
			result.Partial = true
			u.log.Warnf("%s: partial update, kept %d bars: %v", key, result.Fetched, fetchErr)
		} else {
			return nil, fetchErr
		}
	}

	loaded, err := u.store.Load(key)
	if err != nil {
		if errors.Is(err, ErrSeriesNotFound) {
			return result, nil
		}
		return nil, err
	}
	result.TotalRows = loaded.Len()

	tolerance := DefaultGapTolerance
	if key.Interval.IsIntraday() {
		tolerance = 7 * 24 * time.Hour
	}
	if !opts.From.IsZero() && loaded.Len() > 0 {
		first := loaded.Bars[0].Timestamp
		if first.After(opts.From.Add(tolerance)) {
			result.ShortHistory = true
			u.log.Warnf("%s: history starts at %s, requested %s", key,
				first.Format(time.RFC3339), opts.From.Format(time.RFC3339))
		}
	}

	result.Gaps = AnalyzeGaps(loaded.Bars, tolerance)
	for _, gap := range result.Gaps {
		u.log.Warnf("%s: gap of %v between %s and %s", key, gap.Span,
			gap.After.Format(time.RFC3339), gap.Before.Format(time.RFC3339))
	}
	return result, nil
}
