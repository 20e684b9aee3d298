package breaker

// ========================================
// 指标定义 (Metric Definitions)
// ========================================

const (
	// MetricStateChanges 状态变更次数
	MetricStateChanges = "breaker_state_changes_total"

	// LabelFromState 变更前状态
	LabelFromState = "from"
	// LabelToState 变更后状态
	LabelToState = "to"
)
