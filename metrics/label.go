package metrics

// Label 指标标签，用于为指标添加维度信息
//
// 标签命名规范：
//   - 使用小写字母和下划线：payload_host 而不是 payloadHost
//   - 控制标签数量，避免高基数标签（如请求 ID）
type Label struct {
	Key   string
	Value string
}

// L 便捷构造函数，创建一个 Label 实例
//
//	counter.Inc(ctx, metrics.L("stage", "resolve"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
