package testkit

import (
	"context"
	"strings"
	"sync"

	"github.com/ceyewan/fetchkit/metrics"
)

// RecordingMeter 在内存中累计所有指标操作，供测试断言
//
// 只记录数值，不做任何导出；Gauge 的 Set 覆盖、Inc/Dec 增减，
// Histogram 记录样本数。
type RecordingMeter struct {
	mu     sync.Mutex
	values map[string]float64
}

// NewRecordingMeter 创建一个内存指标记录器
func NewRecordingMeter() *RecordingMeter {
	return &RecordingMeter{values: make(map[string]float64)}
}

// CounterValue 返回指定名称和标签组合的计数值
func (m *RecordingMeter) CounterValue(name string, labels ...metrics.Label) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[metricKey(name, labels)]
}

func (m *RecordingMeter) add(name string, labels []metrics.Label, delta float64) {
	m.mu.Lock()
	m.values[metricKey(name, labels)] += delta
	m.mu.Unlock()
}

func (m *RecordingMeter) set(name string, labels []metrics.Label, val float64) {
	m.mu.Lock()
	m.values[metricKey(name, labels)] = val
	m.mu.Unlock()
}

func (m *RecordingMeter) Counter(name string, desc string, opts ...metrics.MetricOption) (metrics.Counter, error) {
	return &recordingCounter{m: m, name: name}, nil
}

func (m *RecordingMeter) Gauge(name string, desc string, opts ...metrics.MetricOption) (metrics.Gauge, error) {
	return &recordingGauge{m: m, name: name}, nil
}

func (m *RecordingMeter) Histogram(name string, desc string, opts ...metrics.MetricOption) (metrics.Histogram, error) {
	return &recordingHistogram{m: m, name: name}, nil
}

func (m *RecordingMeter) Shutdown(ctx context.Context) error { return nil }

type recordingCounter struct {
	m    *RecordingMeter
	name string
}

func (c *recordingCounter) Inc(ctx context.Context, labels ...metrics.Label) {
	c.m.add(c.name, labels, 1)
}

func (c *recordingCounter) Add(ctx context.Context, val float64, labels ...metrics.Label) {
	c.m.add(c.name, labels, val)
}

type recordingGauge struct {
	m    *RecordingMeter
	name string
}

func (g *recordingGauge) Set(ctx context.Context, val float64, labels ...metrics.Label) {
	g.m.set(g.name, labels, val)
}

func (g *recordingGauge) Inc(ctx context.Context, labels ...metrics.Label) {
	g.m.add(g.name, labels, 1)
}

func (g *recordingGauge) Dec(ctx context.Context, labels ...metrics.Label) {
	g.m.add(g.name, labels, -1)
}

type recordingHistogram struct {
	m    *RecordingMeter
	name string
}

// Record 只累计样本数，测试关心的是"是否记录过"而非分布
func (h *recordingHistogram) Record(ctx context.Context, val float64, labels ...metrics.Label) {
	h.m.add(h.name, labels, 1)
}

// metricKey 由指标名和标签拼出唯一键
func metricKey(name string, labels []metrics.Label) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, 0, len(labels)+1)
	parts = append(parts, name)
	for _, l := range labels {
		parts = append(parts, l.Key+"="+l.Value)
	}
	return strings.Join(parts, "|")
}
