// Package httpc 提供带熔断保护的 HTTP 客户端。
//
// 每个客户端实例绑定一个目标主机，并持有一个独立的熔断器。所有出站调用
// 先经过熔断器放行判定：熔断打开时直接返回 ErrCircuitOpen，不产生任何
// 网络 I/O。
//
// 熔断器只观察连通性结果：传输层失败（连接拒绝、超时、TLS 握手失败）
// 记为失败；只要收到 HTTP 响应（包括非 2xx 状态码）就记为成功。状态码
// 是否可接受由调用方自行判断，这样远端可达但返回坏数据时熔断器依然
// 有意义。
//
// 基本使用：
//
//	client, _ := httpc.New(&httpc.Config{
//		Host:   "api.example.com",
//		Secure: true,
//	}, httpc.WithLogger(logger))
//
//	res := client.Get(ctx, "/v1/feed", 5*time.Second)
//	if !res.Success {
//		return res.Err
//	}
//	if res.StatusCode != http.StatusOK {
//		return fmt.Errorf("unexpected status %d", res.StatusCode)
//	}
//	handle(res.Body)
package httpc

import (
	"context"
	"fmt"
	"time"

	"github.com/ceyewan/fetchkit/breaker"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Client 带熔断保护的 HTTP 客户端接口
type Client interface {
	// Get 发起 GET 请求，timeout 约束整次调用（连接 + 读写）
	Get(ctx context.Context, path string, timeout time.Duration) Result

	// Post 发起 POST 请求，headers 可为 nil
	Post(ctx context.Context, path string, body []byte, contentType string, headers map[string]string, timeout time.Duration) Result

	// CircuitState 获取熔断器当前状态，仅用于日志和监控
	CircuitState() breaker.State
}

// Result 单次调用的结果
//
// Success 为 true 时 StatusCode/Body 有效，为 false 时 Err 有效。
// 调用方必须先检查 Success 再读取其余字段。
type Result struct {
	Success    bool
	StatusCode int
	Body       []byte
	Err        error
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 客户端配置
type Config struct {
	// Host 目标主机名或 IP（必填）
	Host string `json:"host" yaml:"host" mapstructure:"host"`

	// Port 目标端口，为 0 时使用协议默认端口
	Port int `json:"port" yaml:"port" mapstructure:"port"`

	// Secure 是否使用 HTTPS
	Secure bool `json:"secure" yaml:"secure" mapstructure:"secure"`

	// InsecureSkipVerify 是否跳过证书校验，仅用于自签名证书环境
	InsecureSkipVerify bool `json:"insecure_skip_verify" yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`

	// Breaker 熔断器配置，为 nil 时使用 breaker.DefaultConfig()
	Breaker *breaker.Config `json:"breaker" yaml:"breaker" mapstructure:"breaker"`
}

// validate 校验配置并设置默认值
func (c *Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("httpc: host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("httpc: invalid port %d", c.Port)
	}
	if c.Breaker == nil {
		c.Breaker = breaker.DefaultConfig()
	}
	return nil
}

// baseURL 根据配置拼出基础 URL
func (c *Config) baseURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	if c.Port == 0 {
		return fmt.Sprintf("%s://%s", scheme, c.Host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建客户端实例
func New(cfg *Config, opts ...Option) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("httpc: config is required")
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	return newClient(&c, &opt)
}
