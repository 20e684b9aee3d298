package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fetchkit/clog"
	"github.com/ceyewan/fetchkit/fetcher"
)

// writeTestConfig 在临时目录下写入一个 YAML 配置文件
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644)
	require.NoError(t, err, "写入测试配置失败")
	return dir
}

const sampleConfig = `
fetcher:
  resolver_host: feed.example.com
  resolver_port: 443
  resolver_path: /api/feed
  refresh_interval: 1h
  base_backoff: 30s
  max_backoff: 10m
log:
  level: info
  format: json
`

// TestNew 测试创建配置加载器
func TestNew(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "default options", opts: nil},
		{name: "with config name", opts: []Option{WithConfigName("app")}},
		{name: "with config paths", opts: []Option{WithConfigPaths("./conf", "./etc")}},
		{name: "with config type", opts: []Option{WithConfigType("json")}},
		{name: "with env prefix", opts: []Option{WithEnvPrefix("myapp")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := New(tt.opts...)
			require.NoError(t, err)
			require.NotNil(t, loader)
		})
	}
}

// TestLoadAndGet 测试加载与读取
func TestLoadAndGet(t *testing.T) {
	dir := writeTestConfig(t, sampleConfig)

	loader, err := New(WithConfigPaths(dir))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	assert.Equal(t, "feed.example.com", loader.Get("fetcher.resolver_host"))
	assert.Equal(t, "info", loader.Get("log.level"))
}

// TestUnmarshalKey 测试按 Key 反序列化
func TestUnmarshalKey(t *testing.T) {
	dir := writeTestConfig(t, sampleConfig)
	loader := MustLoad(WithConfigPaths(dir))

	var cfg struct {
		ResolverHost    string        `mapstructure:"resolver_host"`
		ResolverPort    int           `mapstructure:"resolver_port"`
		RefreshInterval time.Duration `mapstructure:"refresh_interval"`
		BaseBackoff     time.Duration `mapstructure:"base_backoff"`
	}
	require.NoError(t, loader.UnmarshalKey("fetcher", &cfg))

	assert.Equal(t, "feed.example.com", cfg.ResolverHost)
	assert.Equal(t, 443, cfg.ResolverPort)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.BaseBackoff)
}

// TestUnmarshalComponentConfigs 测试反序列化到真实组件配置结构体
func TestUnmarshalComponentConfigs(t *testing.T) {
	dir := writeTestConfig(t, sampleConfig)
	loader := MustLoad(WithConfigPaths(dir))

	var fetchCfg fetcher.Config
	require.NoError(t, loader.UnmarshalKey("fetcher", &fetchCfg))
	assert.Equal(t, "feed.example.com", fetchCfg.ResolverHost)
	assert.Equal(t, 443, fetchCfg.ResolverPort)
	assert.Equal(t, "/api/feed", fetchCfg.ResolverPath)
	assert.Equal(t, time.Hour, fetchCfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, fetchCfg.BaseBackoff)
	assert.Equal(t, 10*time.Minute, fetchCfg.MaxBackoff)

	var logCfg clog.Config
	require.NoError(t, loader.UnmarshalKey("log", &logCfg))
	assert.Equal(t, "info", logCfg.Level)
	assert.Equal(t, "json", logCfg.Format)
}

// TestEnvOverride 测试环境变量优先级
func TestEnvOverride(t *testing.T) {
	dir := writeTestConfig(t, sampleConfig)

	t.Setenv("FETCHKIT_LOG_LEVEL", "debug")
	loader := MustLoad(WithConfigPaths(dir))

	assert.Equal(t, "debug", loader.Get("log.level"), "环境变量应覆盖文件配置")
}

// TestValidateEmpty 测试空配置验证
func TestValidateEmpty(t *testing.T) {
	loader, err := New(WithConfigPaths(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	assert.Error(t, loader.Validate(), "空配置 Validate() 应返回错误")
}

// TestWatchCancel 测试通过 context 取消监听
func TestWatchCancel(t *testing.T) {
	dir := writeTestConfig(t, sampleConfig)
	loader := MustLoad(WithConfigPaths(dir))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := loader.Watch(ctx, "log.level")
	require.NoError(t, err)

	cancel()

	// 取消后通道应被关闭
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "取消监听后不应再收到事件")
	case <-time.After(time.Second):
		t.Error("取消监听后通道未关闭")
	}
}
