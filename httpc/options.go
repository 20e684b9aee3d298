package httpc

import (
	"github.com/ceyewan/fetchkit/clog"
	"github.com/ceyewan/fetchkit/metrics"
)

// Option 配置 Client 实例的选项函数类型
type Option func(*options)

// options 内部选项结构
type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 注入日志记录器，组件会自动添加 "httpc" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("httpc")
		}
	}
}

// WithMeter 注入指标记录器，转发给内部熔断器上报状态变更
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}
