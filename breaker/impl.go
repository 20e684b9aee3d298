package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/fetchkit/clog"
	"github.com/ceyewan/fetchkit/metrics"
)

// circuitBreaker 熔断器实现（非导出）
type circuitBreaker struct {
	cfg    *Config
	logger clog.Logger

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time

	// now 可在测试中替换，用于驱动冷却计时
	now func() time.Time

	stateChanges metrics.Counter
}

// newBreaker 创建熔断器实例（内部函数）
func newBreaker(cfg *Config, opt *options) (Breaker, error) {
	logger := opt.logger
	if logger == nil {
		logger = clog.Discard()
	}

	cb := &circuitBreaker{
		cfg:    cfg,
		logger: logger,
		state:  StateClosed,
		now:    time.Now,
	}

	if opt.meter != nil {
		counter, err := opt.meter.Counter(MetricStateChanges, "熔断器状态变更次数")
		if err != nil {
			return nil, err
		}
		cb.stateChanges = counter
	}

	logger.Debug("circuit breaker created",
		clog.Int("failure_threshold", cfg.FailureThreshold),
		clog.Int("success_threshold", cfg.SuccessThreshold),
		clog.Duration("open_timeout", cfg.OpenTimeout))

	return cb, nil
}

// ShouldAttempt 判断是否应放行一次出站调用
func (cb *circuitBreaker) ShouldAttempt() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		// 冷却时间到后进入半开状态，放行一次探测
		if cb.now().Sub(cb.lastFailureTime) >= cb.cfg.OpenTimeout {
			cb.transitionTo(StateHalfOpen)
			cb.successCount = 0
			return true
		}
		return false

	default: // StateHalfOpen
		return true
	}
}

// RecordSuccess 记录一次成功的调用结果
func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		cb.logger.Debug("recovery probe succeeded",
			clog.Int("success_count", cb.successCount),
			clog.Int("success_threshold", cb.cfg.SuccessThreshold))
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.transitionTo(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}

	case StateClosed:
		// 只统计连续失败，任何成功都清零
		cb.failureCount = 0

	case StateOpen:
		// ShouldAttempt 语义下不应到达这里，容忍但不处理
	}
}

// RecordFailure 记录一次失败的调用结果
func (cb *circuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		cb.logger.Warn("call failed",
			clog.Int("failure_count", cb.failureCount),
			clog.Int("failure_threshold", cb.cfg.FailureThreshold))
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		// 探测失败，立即重新打开并清零计数，下个周期重新统计
		cb.transitionTo(StateOpen)
		cb.failureCount = 0

	case StateOpen:
		// 调用方绕过 ShouldAttempt 时可能到达，仅刷新 lastFailureTime
	}
}

// State 获取当前状态
func (cb *circuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transitionTo 状态转换，调用方必须持有 cb.mu
func (cb *circuitBreaker) transitionTo(newState State) {
	oldState := cb.state
	if oldState == newState {
		return
	}
	cb.state = newState

	cb.logger.Info("circuit breaker state changed",
		clog.String("from", oldState.String()),
		clog.String("to", newState.String()))

	if cb.stateChanges != nil {
		cb.stateChanges.Inc(context.Background(),
			metrics.L(LabelFromState, oldState.String()),
			metrics.L(LabelToState, newState.String()))
	}
}
