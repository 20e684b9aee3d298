package fetcher

import (
	"github.com/ceyewan/fetchkit/clog"
	"github.com/ceyewan/fetchkit/metrics"
)

// Option 配置 Orchestrator 实例的选项函数类型
type Option func(*options)

// options 内部选项结构
type options struct {
	logger        clog.Logger
	meter         metrics.Meter
	cacheCapacity int
}

// WithLogger 注入日志记录器，组件会自动添加 "fetcher" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("fetcher")
		}
	}
}

// WithMeter 注入指标记录器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithCache 启用载荷地址到产物的内存缓存
//
// 阶段一解析出的地址命中缓存时跳过阶段二下载，直接交付缓存产物，
// 仍按完整成功计。capacity 为缓存容量上限，小于等于 0 时不启用。
func WithCache(capacity int) Option {
	return func(o *options) {
		o.cacheCapacity = capacity
	}
}
