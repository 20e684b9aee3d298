package fetcher

// ========================================
// 指标定义 (Metric Definitions)
// ========================================

const (
	// MetricAttempts 后台取数尝试总数
	MetricAttempts = "fetch_attempts_total"

	// MetricFailures 取数阶段失败总数，带 stage 标签（resolve/payload/decode）
	MetricFailures = "fetch_failures_total"

	// MetricSuccesses 完整取数成功总数
	MetricSuccesses = "fetch_success_total"

	// MetricBackoffSkips 退避窗口内跳过的调度次数
	MetricBackoffSkips = "fetch_backoff_skips_total"

	// MetricStageDuration 单阶段耗时直方图，带 stage 标签
	MetricStageDuration = "fetch_stage_duration_seconds"
)
