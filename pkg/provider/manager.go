package provider

import (
	"fmt"
	"sort"
	"sync"

	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

// ProviderManager 提供商管理器
// 按名称注册历史K线提供商，提供统一的访问与选择接口
type ProviderManager struct {
	historicalProviders map[string]core.HistoricalProvider
	defaultName         string

	mu sync.RWMutex
}

// NewProviderManager 创建新的提供商管理器
func NewProviderManager() *ProviderManager {
	return &ProviderManager{
		historicalProviders: make(map[string]core.HistoricalProvider),
	}
}

// RegisterHistoricalProvider 注册历史数据提供商
// 第一个注册的提供商成为默认提供商
func (m *ProviderManager) RegisterHistoricalProvider(name string, provider core.HistoricalProvider) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.historicalProviders[name] = provider
	if m.defaultName == "" {
		m.defaultName = name
	}
	return nil
}

// GetHistoricalProvider 按名称获取提供商，名称为空时返回默认提供商
func (m *ProviderManager) GetHistoricalProvider(name string) (core.HistoricalProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		name = m.defaultName
	}
	provider, ok := m.historicalProviders[name]
	if !ok {
		return nil, fmt.Errorf("historical provider not found: %s", name)
	}
	return provider, nil
}

// SetDefault 设置默认提供商
func (m *ProviderManager) SetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.historicalProviders[name]; !ok {
		return fmt.Errorf("historical provider not found: %s", name)
	}
	m.defaultName = name
	return nil
}

// SelectFor 为指定代码和粒度选择一个可用的提供商
//
// 优先返回默认提供商，默认提供商不支持时按名称序
// 遍历其余提供商，返回第一个同时支持代码与粒度的。
func (m *ProviderManager) SelectFor(symbol string, interval series.Interval) (core.HistoricalProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.historicalProviders))
	for name := range m.historicalProviders {
		if name != m.defaultName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if m.defaultName != "" {
		names = append([]string{m.defaultName}, names...)
	}

	for _, name := range names {
		p := m.historicalProviders[name]
		if !p.IsSymbolSupported(symbol) {
			continue
		}
		if !supportsInterval(p, interval) {
			continue
		}
		return p, nil
	}
	return nil, fmt.Errorf("no provider supports %s at %s", symbol, interval)
}

// ListProviders 列出已注册的提供商名称（字典序）
func (m *ProviderManager) ListProviders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.historicalProviders))
	for name := range m.historicalProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close 关闭所有实现了 Closable 的提供商
func (m *ProviderManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, p := range m.historicalProviders {
		if closable, ok := p.(core.Closable); ok {
			if err := closable.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close provider %s: %w", name, err)
			}
		}
	}
	return firstErr
}

func supportsInterval(p core.HistoricalProvider, interval series.Interval) bool {
	for _, v := range p.SupportedIntervals() {
		if v == interval {
			return true
		}
	}
	return false
}
