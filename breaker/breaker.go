// Package breaker 提供熔断器组件，用于隔离反复失败的远端依赖并自动探测恢复。
//
// 与按失败率统计的熔断器不同，本组件采用连续失败计数：任何一次成功都会
// 清零失败计数，只有不间断的失败才会触发熔断。这避免了维护请求历史窗口，
// 也让低流量场景（每个刷新周期只有一两次调用）下的判定保持直观。
//
// 状态机：
//   - Closed：正常放行；连续失败达到 FailureThreshold 次后进入 Open
//   - Open：直接拒绝；距最近一次失败超过 OpenTimeout 后放行一次探测并进入 HalfOpen
//   - HalfOpen：放行探测请求；连续成功达到 SuccessThreshold 次后回到 Closed，
//     任何一次失败立即回到 Open
//
// 基本使用：
//
//	brk, _ := breaker.New(&breaker.Config{
//		FailureThreshold: 3,
//		SuccessThreshold: 2,
//		OpenTimeout:      60 * time.Second,
//	}, breaker.WithLogger(logger))
//
//	if !brk.ShouldAttempt() {
//		return errFastFail
//	}
//	err := call()
//	if err != nil {
//		brk.RecordFailure()
//	} else {
//		brk.RecordSuccess()
//	}
//
// 调用方只能通过 ShouldAttempt 决定是否放行；State 仅用于日志和监控。
package breaker

import "time"

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Breaker 熔断器核心接口
//
// 实现是并发安全的：即使当前设计中同一时刻只有一个 worker 在调用，
// 也允许多个 goroutine 共享同一个实例。
type Breaker interface {
	// ShouldAttempt 判断是否应放行一次出站调用
	//
	// Open 状态下若冷却时间已到，会转入 HalfOpen 并放行探测请求；
	// 这是状态离开 Open 的唯一途径。
	ShouldAttempt() bool

	// RecordSuccess 记录一次成功的调用结果
	RecordSuccess()

	// RecordFailure 记录一次失败的调用结果
	RecordFailure()

	// State 获取当前状态，仅用于日志和监控，不得用于放行判定
	State() State
}

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常放行）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 熔断器配置
type Config struct {
	// FailureThreshold Closed 状态下触发熔断的连续失败次数（默认：3）
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// SuccessThreshold HalfOpen 状态下恢复 Closed 所需的连续成功次数（默认：2）
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold" mapstructure:"success_threshold"`

	// OpenTimeout Open 状态持续时间，超时后放行探测请求（默认：60s）
	OpenTimeout time.Duration `json:"open_timeout" yaml:"open_timeout" mapstructure:"open_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
	}
}

// validate 设置默认值
func (c *Config) validate() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 60 * time.Second
	}
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建熔断器实例
//
// cfg 为 nil 时使用 DefaultConfig()。
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		c := *cfg
		cfg = &c
	}
	cfg.validate()

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	return newBreaker(cfg, &opt)
}
