package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbridge/pkg/provider/route"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Asia/Kuala_Lumpur", cfg.CanonicalTimezone)
	assert.Equal(t, 5, cfg.MaxFillGap)
	assert.Equal(t, "tradingview", cfg.Provider.Default)

	// 未配置路由时使用内置期货路由
	table := cfg.RouteTable()
	assert.Equal(t, "CBOT", table.Resolve("ZL1!"))
	assert.Equal(t, "MYX", table.Resolve("FCPO1!"))
}

func TestLoad(t *testing.T) {
	t.Run("空路径返回默认配置", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("从文件加载并覆盖默认值", func(t *testing.T) {
		content := `
canonical_timezone: "UTC"
store_dir: "/tmp/master"
max_fill_gap: 3
routes:
  - prefix: "BTC"
    venue: "BINANCE"
provider:
  default: "binance"
  timeout: 30s
logger:
  level: "debug"
`
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "UTC", cfg.CanonicalTimezone)
		assert.Equal(t, "/tmp/master", cfg.StoreDir)
		assert.Equal(t, 3, cfg.MaxFillGap)
		assert.Equal(t, "binance", cfg.Provider.Default)
		assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
		assert.Equal(t, "debug", cfg.Logger.Level)
		// 未配置的字段保持默认值
		assert.Equal(t, "data/export", cfg.ExportDir)
		assert.Equal(t, 3, cfg.Provider.MaxRetries)

		table := cfg.RouteTable()
		assert.Equal(t, "BINANCE", table.Resolve("BTC/USDT"))
		assert.Equal(t, "MYX", table.Resolve("FCPO1!"))
	})

	t.Run("文件不存在报错", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yaml")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"时区为空", func(c *Config) { c.CanonicalTimezone = "" }},
		{"主存目录为空", func(c *Config) { c.StoreDir = "" }},
		{"填充上限为负", func(c *Config) { c.MaxFillGap = -1 }},
		{"超时非正数", func(c *Config) { c.Provider.Timeout = 0 }},
		{"路由表项不完整", func(c *Config) {
			c.Routes = append(c.Routes, route.VenueRoute{Prefix: "ZL"})
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
