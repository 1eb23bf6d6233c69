package decorators

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/series"
)

// RetryConfig 重试装饰器配置
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"` // 最大尝试次数（含首次）
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`     // 首次重试延迟
	MaxDelay    time.Duration `yaml:"max_delay" mapstructure:"max_delay"`       // 单次重试延迟上限
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
}

// DefaultRetryConfig 默认重试配置
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Enabled:     true,
	}
}

// RetryProvider 重试装饰器
//
// 只对可重试错误（网络、限频）做指数退避重试，
// 终态错误与上下文取消立即返回。
type RetryProvider struct {
	*HistoricalBaseDecorator

	config *RetryConfig
	log    *logrus.Entry
}

// NewRetryProvider 创建重试装饰器
func NewRetryProvider(histProvider core.HistoricalProvider, config *RetryConfig) *RetryProvider {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryProvider{
		HistoricalBaseDecorator: NewHistoricalBaseDecorator(histProvider),
		config:                  config,
		log:                     logger.WithComponent("RetryProvider"),
	}
}

// Name 返回装饰器名称
func (r *RetryProvider) Name() string {
	return fmt.Sprintf("Retry(%s)", r.histProvider.Name())
}

// FetchBars 实现带重试的K线获取
func (r *RetryProvider) FetchBars(ctx context.Context, req core.BarRequest) ([]series.Bar, error) {
	if !r.config.Enabled {
		return r.histProvider.FetchBars(ctx, req)
	}

	var lastErr error
	delay := r.config.BaseDelay
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		bars, err := r.histProvider.FetchBars(ctx, req)
		if err == nil {
			return bars, nil
		}
		lastErr = err

		if !core.IsRetryable(err) || attempt == r.config.MaxAttempts {
			break
		}

		r.log.Warnf("fetch %s attempt %d/%d failed: %v, retrying in %v",
			req.Symbol, attempt, r.config.MaxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
	return nil, lastErr
}

var _ HistoricalDecorator = (*RetryProvider)(nil)
