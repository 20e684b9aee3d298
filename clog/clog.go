package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config - 日志配置，为 nil 时使用默认配置（info 级别、console 格式、stdout 输出）
// opts   - 函数式选项，用于命名空间、测试缓冲区等配置
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = &Config{}
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	options := applyOptions(opts...)

	return newLogger(config, options)
}

// Must 类似 New，但出错时 panic。仅用于初始化阶段。
func Must(config *Config, opts ...Option) Logger {
	logger, err := New(config, opts...)
	if err != nil {
		panic(fmt.Sprintf("clog: %v", err))
	}
	return logger
}
