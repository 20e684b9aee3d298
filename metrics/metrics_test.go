package metrics

import (
	"context"
	"testing"
	"time"
)

// TestNewDisabled 测试禁用时返回 noop Meter
func TestNewDisabled(t *testing.T) {
	meter, err := New(&Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	counter, err := meter.Counter("test_total", "test")
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	// noop 操作不应 panic
	counter.Inc(ctx)
	counter.Add(ctx, 5, L("stage", "resolve"))

	if err := meter.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

// TestNewNilConfig 测试 nil 配置
func TestNewNilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) 应返回错误")
	}
}

// TestEnabledMeter 测试启用状态下的指标创建与记录
func TestEnabledMeter(t *testing.T) {
	meter, err := New(NewDevDefaultConfig("fetchkit-test"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	defer meter.Shutdown(ctx)

	counter, err := meter.Counter("fetch_attempts_total", "后台取数尝试总数")
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	counter.Inc(ctx, L("stage", "resolve"))
	counter.Add(ctx, 2, L("stage", "payload"))

	gauge, err := meter.Gauge("consecutive_failures", "连续失败次数")
	if err != nil {
		t.Fatalf("Gauge() error = %v", err)
	}
	gauge.Set(ctx, 3)
	gauge.Inc(ctx)
	gauge.Dec(ctx)

	hist, err := meter.Histogram("stage_duration_seconds", "阶段耗时", WithUnit("s"))
	if err != nil {
		t.Fatalf("Histogram() error = %v", err)
	}
	hist.Record(ctx, (125 * time.Millisecond).Seconds(), L("stage", "payload"))
}

// TestDiscard 测试 Discard Meter
func TestDiscard(t *testing.T) {
	meter := Discard()
	counter, err := meter.Counter("x", "y")
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	counter.Inc(context.Background())
}

// TestLabelKey 测试标签键生成
func TestLabelKey(t *testing.T) {
	if key := labelKey(nil); key != "" {
		t.Errorf("labelKey(nil) = %q，期望空字符串", key)
	}
	key := labelKey([]Label{L("a", "1"), L("b", "2")})
	if key != "a=1|b=2" {
		t.Errorf("labelKey = %q，期望 a=1|b=2", key)
	}
}
