// Package fetcher 提供轮询驱动的两阶段后台取数编排器。
//
// 编排器由宿主循环按节拍调用 Poll 驱动：阶段一向固定的解析端点请求资源
// 描述并从响应体中提取载荷地址，阶段二从该地址（通常是另一台主机）下载
// 原始字节并交给调用方提供的解码函数。解码产物写入单槽缓冲区，由消费方
// 通过 DrainResult 取走。
//
// 同一时刻最多只有一个后台 worker 在运行；Poll 永不阻塞。连续失败按
// min(base*k, cap) 退避，只有完整走通两个阶段才会清零失败计数。关停
// 走先置取消标记、再等待 worker 退出的路径，绝不遗弃仍持有内部状态
// 引用的 worker。
//
// 基本使用：
//
//	orch, _ := fetcher.New(&fetcher.Config{
//		ResolverHost: "feed.example.com",
//		ResolverPath: "/v1/today",
//	}, parseFeed, decodeImage, fetcher.WithLogger(logger))
//	defer orch.Stop()
//
//	for tick := range ticker.C {
//		orch.Poll(tick)
//		if art, ok := orch.DrainResult(); ok {
//			show(art)
//		}
//	}
package fetcher

import (
	"fmt"
	"time"

	"github.com/ceyewan/fetchkit/breaker"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Orchestrator 后台取数编排器接口
//
// Poll 和 DrainResult 设计为在同一个宿主线程上反复调用，worker 在
// 独立 goroutine 中运行。所有方法都是并发安全的。
type Orchestrator[T any] interface {
	// Poll 驱动一次调度判定，永不阻塞
	//
	// 已有 worker 在运行、处于退避窗口内、或距上次尝试未到刷新间隔时
	// 直接返回；否则启动一个新的后台取数周期。
	Poll(now time.Time)

	// DrainResult 原子地取走并清空待取结果
	//
	// 无新结果时返回零值和 false；同一个结果只会被取走一次。
	DrainResult() (T, bool)

	// Stop 请求停止并等待 worker 完全退出后返回，可重复调用
	Stop()

	// Err 返回最近一次记录的失败，成功周期后清空，仅用于观测
	Err() error
}

// ParseLocatorFunc 从解析端点的响应体中提取载荷地址
type ParseLocatorFunc func(body []byte) (string, error)

// DecodeFunc 把载荷原始字节解码为产物，必须是纯函数
//
// 解码错误与阶段二网络失败同等对待：计入退避，不触碰结果槽。
type DecodeFunc[T any] func(body []byte) (T, error)

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 编排器配置
type Config struct {
	// ResolverHost 解析端点主机（必填）
	ResolverHost string `json:"resolver_host" yaml:"resolver_host" mapstructure:"resolver_host"`

	// ResolverPort 解析端点端口，为 0 时使用协议默认端口
	ResolverPort int `json:"resolver_port" yaml:"resolver_port" mapstructure:"resolver_port"`

	// ResolverSecure 解析端点是否使用 HTTPS
	ResolverSecure bool `json:"resolver_secure" yaml:"resolver_secure" mapstructure:"resolver_secure"`

	// ResolverPath 解析端点路径（默认："/"）
	ResolverPath string `json:"resolver_path" yaml:"resolver_path" mapstructure:"resolver_path"`

	// InsecureSkipVerify 是否跳过证书校验，对解析和载荷两个客户端都生效
	InsecureSkipVerify bool `json:"insecure_skip_verify" yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`

	// ResolveTimeout 阶段一单次调用超时（默认：5s）
	ResolveTimeout time.Duration `json:"resolve_timeout" yaml:"resolve_timeout" mapstructure:"resolve_timeout"`

	// PayloadTimeout 阶段二单次调用超时（默认：5s）
	PayloadTimeout time.Duration `json:"payload_timeout" yaml:"payload_timeout" mapstructure:"payload_timeout"`

	// RefreshInterval 产出过结果后的主动刷新间隔（默认：1h）
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval" mapstructure:"refresh_interval"`

	// BaseBackoff 退避基础延迟，实际延迟为 min(base*k, cap)（默认：30s）
	BaseBackoff time.Duration `json:"base_backoff" yaml:"base_backoff" mapstructure:"base_backoff"`

	// MaxBackoff 退避延迟上限（默认：10m）
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff" mapstructure:"max_backoff"`

	// Breaker 解析端点客户端的熔断器配置，为 nil 时使用默认值
	Breaker *breaker.Config `json:"breaker" yaml:"breaker" mapstructure:"breaker"`
}

// DefaultConfig 返回默认配置（ResolverHost 仍需调用方填写）
func DefaultConfig() *Config {
	return &Config{
		ResolverPath:    "/",
		ResolveTimeout:  5 * time.Second,
		PayloadTimeout:  5 * time.Second,
		RefreshInterval: time.Hour,
		BaseBackoff:     30 * time.Second,
		MaxBackoff:      10 * time.Minute,
	}
}

// validate 校验配置并设置默认值
func (c *Config) validate() error {
	if c.ResolverHost == "" {
		return fmt.Errorf("fetcher: resolver host is required")
	}
	if c.ResolverPath == "" {
		c.ResolverPath = "/"
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = 5 * time.Second
	}
	if c.PayloadTimeout <= 0 {
		c.PayloadTimeout = 5 * time.Second
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Hour
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Minute
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建编排器实例
//
// parse 和 decode 为必填协作函数；T 由调用方决定。
func New[T any](cfg *Config, parse ParseLocatorFunc, decode DecodeFunc[T], opts ...Option) (Orchestrator[T], error) {
	if cfg == nil {
		return nil, fmt.Errorf("fetcher: config is required")
	}
	if parse == nil {
		return nil, fmt.Errorf("fetcher: parse locator func is required")
	}
	if decode == nil {
		return nil, fmt.Errorf("fetcher: decode func is required")
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	return newOrchestrator(&c, parse, decode, &opt)
}
