package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"quantbridge/pkg/provider/route"
)

// Config 主配置结构
type Config struct {
	// 统一时区，所有序列入库前归一化到该时区
	CanonicalTimezone string `json:"canonical_timezone" mapstructure:"canonical_timezone"`

	// 主存目录
	StoreDir string `json:"store_dir" mapstructure:"store_dir"`

	// 导出目录
	ExportDir string `json:"export_dir" mapstructure:"export_dir"`

	// 对齐时每侧连续前向填充的上限行数
	MaxFillGap int `json:"max_fill_gap" mapstructure:"max_fill_gap"`

	// 代码前缀到交易所的路由表，空则使用内置期货路由
	Routes []route.VenueRoute `json:"routes" mapstructure:"routes"`

	// 提供商配置
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// 日志配置
	Logger LoggerConfig `json:"logger" mapstructure:"logger"`

	// API服务配置
	Server ServerConfig `json:"server" mapstructure:"server"`
}

// ProviderConfig 数据提供商配置
type ProviderConfig struct {
	Default     string        `json:"default" mapstructure:"default"`           // 默认提供商名称 ("tradingview")
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`           // 请求超时时间
	MaxRetries  int           `json:"max_retries" mapstructure:"max_retries"`   // 最大重试次数
	RateLimit   time.Duration `json:"rate_limit" mapstructure:"rate_limit"`     // 请求间隔限制
	UserAgent   string        `json:"user_agent" mapstructure:"user_agent"`     // 用户代理
	MaxSegments int           `json:"max_segments" mapstructure:"max_segments"` // 单次更新的最大分段数
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // 日志级别 (debug, info, warn, error)
	Format string `json:"format" mapstructure:"format"` // 输出格式 (text, json)
}

// ServerConfig API服务配置
type ServerConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		CanonicalTimezone: "Asia/Kuala_Lumpur",
		StoreDir:          "data/master",
		ExportDir:         "data/export",
		MaxFillGap:        5,
		Provider: ProviderConfig{
			Default:     "tradingview",
			Timeout:     15 * time.Second,
			MaxRetries:  3,
			RateLimit:   200 * time.Millisecond,
			UserAgent:   "QuantBridge/1.0",
			MaxSegments: 64,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load 从配置文件加载配置，path 为空时返回默认配置
// 文件中省略的字段保持默认值
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.CanonicalTimezone == "" {
		return errors.New("canonical_timezone 不能为空")
	}
	if c.StoreDir == "" {
		return errors.New("store_dir 不能为空")
	}
	if c.MaxFillGap < 0 {
		return errors.New("max_fill_gap 不能为负数")
	}
	if c.Provider.Timeout <= 0 {
		return errors.New("provider.timeout 必须为正数")
	}
	if c.Provider.MaxRetries < 0 {
		return errors.New("provider.max_retries 不能为负数")
	}
	for _, r := range c.Routes {
		if r.Prefix == "" || r.Venue == "" {
			return fmt.Errorf("路由表项不完整: %+v", r)
		}
	}
	return nil
}

// RouteTable 构建路由表，未配置时使用内置期货路由
func (c *Config) RouteTable() *route.Table {
	if len(c.Routes) == 0 {
		return route.DefaultFuturesTable()
	}
	return route.NewTable(c.Routes, route.DefaultFuturesTable().DefaultVenue())
}
