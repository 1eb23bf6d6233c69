package timezone

import (
	"fmt"
	"time"

	"quantbridge/pkg/series"
)

// DefaultCanonical 对齐与存储使用的统一时区
const DefaultCanonical = "Asia/Kuala_Lumpur"

// 各交易所的本地时区，用于解释没有显式时区信息的时间戳
var defaultVenueZones = map[string]string{
	"MYX":     "Asia/Kuala_Lumpur",
	"CBOT":    "America/Chicago",
	"CME":     "America/Chicago",
	"NYMEX":   "America/New_York",
	"BINANCE": "UTC",
	"CN":      "Asia/Shanghai",
}

// Normalizer 时区归一化器
//
// 把各提供商返回的带时区时间戳统一转换到同一个时区，
// 转换保持时刻不变，只改变墙上时间的表示。
type Normalizer struct {
	canonical  *time.Location
	venueZones map[string]*time.Location
}

// NewNormalizer 创建时区归一化器，canonical 为空时使用默认统一时区
func NewNormalizer(canonical string) (*Normalizer, error) {
	if canonical == "" {
		canonical = DefaultCanonical
	}
	loc, err := time.LoadLocation(canonical)
	if err != nil {
		return nil, fmt.Errorf("load canonical timezone %s: %w", canonical, err)
	}

	zones := make(map[string]*time.Location, len(defaultVenueZones))
	for venue, name := range defaultVenueZones {
		vloc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("load venue timezone %s: %w", name, err)
		}
		zones[venue] = vloc
	}
	return &Normalizer{canonical: loc, venueZones: zones}, nil
}

// Canonical 返回统一时区
func (n *Normalizer) Canonical() *time.Location { return n.canonical }

// VenueLocation 返回交易所的本地时区，未知交易所按UTC处理
func (n *Normalizer) VenueLocation(venue string) *time.Location {
	if loc, ok := n.venueZones[venue]; ok {
		return loc
	}
	return time.UTC
}

// NormalizeBars 把K线时间戳转换到统一时区，保持时刻不变
//
// 零时区（naive）时间戳按UTC解释。重复归一化是幂等的。
func (n *Normalizer) NormalizeBars(bars []series.Bar) []series.Bar {
	out := make([]series.Bar, len(bars))
	for i, bar := range bars {
		out[i] = bar
		out[i].Timestamp = bar.Timestamp.In(n.canonical)
	}
	return out
}

// NormalizeSeries 归一化整条序列并标记其时区
func (n *Normalizer) NormalizeSeries(s *series.Series) *series.Series {
	normalized := &series.Series{
		Key:      s.Key,
		Timezone: n.canonical.String(),
		Bars:     n.NormalizeBars(s.Bars),
	}
	return normalized
}
