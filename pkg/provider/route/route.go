package route

import (
	"sort"
	"strings"
)

// VenueRoute 一条路由规则：symbol 前缀 → 交易所标识
type VenueRoute struct {
	Prefix string `mapstructure:"prefix" json:"prefix"` // 资产代码前缀（大小写不敏感）
	Venue  string `mapstructure:"venue" json:"venue"`   // 路由到的交易所
}

// Table 只读的交易所路由表。
// 构造后不可变，同一个 symbol 的解析结果恒定（除非换表）。
type Table struct {
	routes       []VenueRoute // 按前缀长度降序排列，保证最长前缀优先
	defaultVenue string
}

// NewTable 构造路由表。routes 会被复制并按前缀长度降序排序。
func NewTable(routes []VenueRoute, defaultVenue string) *Table {
	rs := make([]VenueRoute, len(routes))
	copy(rs, routes)
	sort.SliceStable(rs, func(i, j int) bool {
		return len(rs[i].Prefix) > len(rs[j].Prefix)
	})
	return &Table{routes: rs, defaultVenue: defaultVenue}
}

// Resolve 根据资产代码解析交易所。
// 按最长前缀匹配；无任何规则命中时返回默认交易所。
// 纯函数：同一张表下同一个 symbol 的结果永远一致。
func (t *Table) Resolve(symbol string) string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	for _, r := range t.routes {
		if strings.HasPrefix(upper, strings.ToUpper(r.Prefix)) {
			return r.Venue
		}
	}
	return t.defaultVenue
}

// DefaultVenue 返回兜底交易所
func (t *Table) DefaultVenue() string { return t.defaultVenue }

// Routes 返回路由规则副本（按匹配优先级排序）
func (t *Table) Routes() []VenueRoute {
	out := make([]VenueRoute, len(t.routes))
	copy(out, t.routes)
	return out
}

// DefaultFuturesTable 期货默认路由表。
// 常见 CBOT 品种代码路由到 CBOT，其余（FCPO、FKLI 等马来西亚品种）走 MYX。
func DefaultFuturesTable() *Table {
	cbot := []string{"ZL", "BO", "ZS", "ZC", "ZW", "MYM", "ZN", "ZT", "ZF", "ZB"}
	routes := make([]VenueRoute, 0, len(cbot))
	for _, p := range cbot {
		routes = append(routes, VenueRoute{Prefix: p, Venue: "CBOT"})
	}
	return NewTable(routes, "MYX")
}
