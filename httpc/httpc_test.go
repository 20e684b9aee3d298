package httpc

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ceyewan/fetchkit/breaker"
	"github.com/ceyewan/fetchkit/metrics"
	"github.com/ceyewan/fetchkit/testkit"
)

// configForServer 把 httptest 服务器地址转成客户端配置
func configForServer(t *testing.T, rawURL string, brkCfg *breaker.Config) *Config {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("解析服务器地址失败: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("拆分 host:port 失败: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return &Config{Host: host, Port: port, Secure: u.Scheme == "https", Breaker: brkCfg}
}

// TestGetSuccess 测试 200 响应
func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s，期望 GET", r.Method)
		}
		if r.URL.Path != "/v1/feed" {
			t.Errorf("path = %s，期望 /v1/feed", r.URL.Path)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, err := New(configForServer(t, srv.URL, nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := client.Get(context.Background(), "/v1/feed", 5*time.Second)
	if !res.Success {
		t.Fatalf("Get 失败: %v", res.Err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d，期望 200", res.StatusCode)
	}
	if string(res.Body) != `{"ok":true}` {
		t.Errorf("Body = %q", res.Body)
	}
	if client.CircuitState() != breaker.StateClosed {
		t.Errorf("熔断器状态 = %v，期望 closed", client.CircuitState())
	}
}

// TestNon2xxIsBreakerSuccess 测试非 2xx 响应对熔断器仍算成功
func TestNon2xxIsBreakerSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := New(configForServer(t, srv.URL, &breaker.Config{FailureThreshold: 1}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		res := client.Get(context.Background(), "/", time.Second)
		if !res.Success {
			t.Fatalf("第 %d 次 Get 失败: %v", i+1, res.Err)
		}
		if res.StatusCode != http.StatusInternalServerError {
			t.Errorf("StatusCode = %d，期望 500", res.StatusCode)
		}
	}

	// 即使阈值为 1，连续 500 也不应触发熔断
	if client.CircuitState() != breaker.StateClosed {
		t.Errorf("熔断器状态 = %v，期望 closed", client.CircuitState())
	}
}

// TestPost 测试 POST 请求体、Content-Type 与自定义头
func TestPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s，期望 POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if got := r.Header.Get("X-Token"); got != "abc" {
			t.Errorf("X-Token = %q", got)
		}
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		w.WriteHeader(http.StatusCreated)
		w.Write(buf)
	}))
	defer srv.Close()

	client, err := New(configForServer(t, srv.URL, nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := client.Post(context.Background(), "/v1/items",
		[]byte(`{"a":1}`), "application/json",
		map[string]string{"X-Token": "abc"}, time.Second)
	if !res.Success {
		t.Fatalf("Post 失败: %v", res.Err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d，期望 201", res.StatusCode)
	}
	if string(res.Body) != `{"a":1}` {
		t.Errorf("回显 Body = %q", res.Body)
	}
}

// TestTransportFailureTripsBreaker 测试传输层失败触发熔断
func TestTransportFailureTripsBreaker(t *testing.T) {
	// 先占用再释放端口，保证目标地址无人监听
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen 失败: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	meter := testkit.NewRecordingMeter()
	client, err := New(&Config{
		Host:    "127.0.0.1",
		Port:    addr.Port,
		Breaker: &breaker.Config{FailureThreshold: 2},
	}, WithMeter(meter))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := client.Get(context.Background(), "/", time.Second)
	if res.Success {
		t.Fatal("连接无监听端口应失败")
	}
	if IsCircuitOpen(res.Err) {
		t.Fatal("第 1 次失败不应是熔断拒绝")
	}
	if client.CircuitState() != breaker.StateClosed {
		t.Fatalf("1 次失败后状态 = %v，期望 closed", client.CircuitState())
	}

	res = client.Get(context.Background(), "/", time.Second)
	if res.Success {
		t.Fatal("第 2 次应失败")
	}
	if client.CircuitState() != breaker.StateOpen {
		t.Fatalf("2 次连续失败后状态 = %v，期望 open", client.CircuitState())
	}

	// 熔断打开后立即拒绝，不触达网络
	res = client.Get(context.Background(), "/", time.Second)
	if res.Success {
		t.Fatal("熔断打开时应失败")
	}
	if !IsCircuitOpen(res.Err) {
		t.Errorf("err = %v，期望 ErrCircuitOpen", res.Err)
	}

	// WithMeter 注入的指标应记录到这次 closed→open 的状态变更
	changes := meter.CounterValue(breaker.MetricStateChanges,
		metrics.L(breaker.LabelFromState, "closed"),
		metrics.L(breaker.LabelToState, "open"))
	if changes != 1 {
		t.Errorf("closed→open 变更计数 = %v，期望 1", changes)
	}
}

// TestCircuitOpenNoNetworkIO 测试熔断打开时不发起任何请求
func TestCircuitOpenNoNetworkIO(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := New(configForServer(t, srv.URL, &breaker.Config{
		FailureThreshold: 1,
		OpenTimeout:      time.Hour,
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// 用极短超时制造一次传输失败来触发熔断
	if res := client.Get(context.Background(), "/", 10*time.Millisecond); res.Success {
		t.Fatal("超时请求应失败")
	}
	if client.CircuitState() != breaker.StateOpen {
		t.Fatalf("状态 = %v，期望 open", client.CircuitState())
	}

	before := hits.Load()
	for i := 0; i < 3; i++ {
		res := client.Get(context.Background(), "/", time.Second)
		if !IsCircuitOpen(res.Err) {
			t.Fatalf("第 %d 次应被熔断拒绝，err = %v", i+1, res.Err)
		}
	}
	if hits.Load() != before {
		t.Error("熔断打开期间不应有请求触达服务器")
	}
}

// TestTimeout 测试单次调用超时
func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := New(configForServer(t, srv.URL, nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	start := time.Now()
	res := client.Get(context.Background(), "/", 30*time.Millisecond)
	if res.Success {
		t.Fatal("超时请求应失败")
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("耗时 %v，超时未生效", elapsed)
	}
}

// TestConfigValidation 测试配置校验
func TestConfigValidation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("nil 配置应返回错误")
	}
	if _, err := New(&Config{}); err == nil {
		t.Error("缺少 Host 应返回错误")
	}
	if _, err := New(&Config{Host: "h", Port: 70000}); err == nil {
		t.Error("非法端口应返回错误")
	}
}

// TestBaseURL 测试基础 URL 拼接
func TestBaseURL(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{Host: "example.com"}, "http://example.com"},
		{Config{Host: "example.com", Secure: true}, "https://example.com"},
		{Config{Host: "example.com", Port: 8080}, "http://example.com:8080"},
		{Config{Host: "10.0.0.1", Port: 443, Secure: true}, "https://10.0.0.1:443"},
	}
	for _, c := range cases {
		if got := c.cfg.baseURL(); got != c.want {
			t.Errorf("baseURL() = %q，期望 %q", got, c.want)
		}
	}
}
