package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/fetchkit/clog"
	"github.com/ceyewan/fetchkit/httpc"
	"github.com/ceyewan/fetchkit/metrics"
	"github.com/ceyewan/fetchkit/xerrors"
)

// 阶段标签，用于日志和 fetch_failures_total 的 stage 维度
const (
	stageResolve = "resolve"
	stagePayload = "payload"
	stageDecode  = "decode"
)

// orchestrator 编排器实现（非导出）
type orchestrator[T any] struct {
	cfg    *Config
	parse  ParseLocatorFunc
	decode DecodeFunc[T]
	logger clog.Logger
	meter  metrics.Meter

	resolver httpc.Client

	// ctx 是所有出站调用与阶段边界检查共用的取消信号
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	// now 可在测试中替换
	now func() time.Time

	// mu 保护下面的全部共享状态：结果槽、失败计数、in-flight 标记。
	// 宿主线程与 worker 只通过这把锁交换数据。
	mu                  sync.Mutex
	fetching            bool
	done                chan struct{}
	lastAttemptTime     time.Time
	consecutiveFailures int
	lastFailureTime     time.Time
	producedOnce        bool
	pending             T
	ready               bool
	lastErr             error

	cache *otter.Cache[string, T]

	attempts      metrics.Counter
	failures      metrics.Counter
	successes     metrics.Counter
	backoffSkips  metrics.Counter
	stageDuration metrics.Histogram
}

// newOrchestrator 创建编排器实例（内部函数）
func newOrchestrator[T any](cfg *Config, parse ParseLocatorFunc, decode DecodeFunc[T], opt *options) (Orchestrator[T], error) {
	logger := opt.logger
	if logger == nil {
		logger = clog.Discard()
	}
	meter := opt.meter
	if meter == nil {
		meter = metrics.Discard()
	}

	resolver, err := httpc.New(&httpc.Config{
		Host:               cfg.ResolverHost,
		Port:               cfg.ResolverPort,
		Secure:             cfg.ResolverSecure,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Breaker:            cfg.Breaker,
	}, httpc.WithLogger(logger), httpc.WithMeter(meter))
	if err != nil {
		return nil, xerrors.Wrap(err, "fetcher: create resolver client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &orchestrator[T]{
		cfg:      cfg,
		parse:    parse,
		decode:   decode,
		logger:   logger,
		meter:    meter,
		resolver: resolver,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}

	if opt.cacheCapacity > 0 {
		cache, err := otter.New(&otter.Options[string, T]{MaximumSize: opt.cacheCapacity})
		if err != nil {
			cancel()
			return nil, xerrors.Wrap(err, "fetcher: build locator cache")
		}
		o.cache = cache
	}

	if o.attempts, err = meter.Counter(MetricAttempts, "后台取数尝试总数"); err != nil {
		cancel()
		return nil, err
	}
	if o.failures, err = meter.Counter(MetricFailures, "取数阶段失败总数"); err != nil {
		cancel()
		return nil, err
	}
	if o.successes, err = meter.Counter(MetricSuccesses, "完整取数成功总数"); err != nil {
		cancel()
		return nil, err
	}
	if o.backoffSkips, err = meter.Counter(MetricBackoffSkips, "退避窗口内跳过的调度次数"); err != nil {
		cancel()
		return nil, err
	}
	if o.stageDuration, err = meter.Histogram(MetricStageDuration, "单阶段耗时", metrics.WithUnit("s")); err != nil {
		cancel()
		return nil, err
	}

	logger.Info("orchestrator created",
		clog.String("resolver_host", cfg.ResolverHost),
		clog.String("resolver_path", cfg.ResolverPath),
		clog.Duration("refresh_interval", cfg.RefreshInterval),
		clog.Bool("cache_enabled", o.cache != nil))

	return o, nil
}

// Poll 驱动一次调度判定
func (o *orchestrator[T]) Poll(now time.Time) {
	if o.ctx.Err() != nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// 持锁后再查一次取消信号，防止与并发 Stop 交错后仍起新 worker
	if o.ctx.Err() != nil {
		return
	}
	if o.fetching {
		return
	}

	if o.consecutiveFailures > 0 {
		delay := backoffDelay(o.cfg.BaseBackoff, o.cfg.MaxBackoff, o.consecutiveFailures)
		if now.Sub(o.lastFailureTime) < delay {
			o.backoffSkips.Inc(o.ctx)
			return
		}
	}

	// 产出过结果后按刷新间隔节流；从未产出过则每次都可尝试
	if o.producedOnce && now.Sub(o.lastAttemptTime) < o.cfg.RefreshInterval {
		return
	}

	o.lastAttemptTime = now
	o.fetching = true
	o.done = make(chan struct{})
	go o.run(o.done)
}

// DrainResult 原子地取走并清空待取结果
func (o *orchestrator[T]) DrainResult() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var zero T
	if !o.ready {
		return zero, false
	}
	artifact := o.pending
	o.pending = zero
	o.ready = false
	return artifact, true
}

// Stop 请求停止并等待 worker 完全退出
//
// 顺序是先置取消信号、再等待，worker 退出前不释放任何它可能引用的资源。
func (o *orchestrator[T]) Stop() {
	o.stopOnce.Do(func() {
		o.cancel()
		o.logger.Info("orchestrator stopping")
	})

	o.mu.Lock()
	done := o.done
	fetching := o.fetching
	o.mu.Unlock()

	if fetching && done != nil {
		<-done
	}
}

// Err 返回最近一次记录的失败
func (o *orchestrator[T]) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// run 是单个取数周期的 worker 主体
func (o *orchestrator[T]) run(done chan struct{}) {
	defer close(done)
	defer func() {
		o.mu.Lock()
		o.fetching = false
		o.mu.Unlock()
	}()

	log := o.logger.With(clog.String("cycle", uuid.New().String()[:8]))

	if o.ctx.Err() != nil {
		log.Debug("cancelled before resolve stage")
		return
	}

	o.attempts.Inc(o.ctx)

	// 阶段一：请求解析端点并提取载荷地址
	start := o.now()
	res := o.resolver.Get(o.ctx, o.cfg.ResolverPath, o.cfg.ResolveTimeout)
	o.stageDuration.Record(o.ctx, time.Since(start).Seconds(), metrics.L("stage", stageResolve))
	if !res.Success {
		o.fail(log, stageResolve, res.Err)
		return
	}
	if res.StatusCode != http.StatusOK {
		o.fail(log, stageResolve, xerrors.Newf("resolver returned status %d", res.StatusCode))
		return
	}
	locator, err := o.parse(res.Body)
	if err != nil {
		o.fail(log, stageResolve, xerrors.Wrap(err, "parse locator"))
		return
	}
	log.Debug("locator resolved", clog.String("locator", locator))

	if o.cache != nil {
		if artifact, ok := o.cache.GetIfPresent(locator); ok {
			log.Debug("payload served from cache", clog.String("locator", locator))
			o.deliver(log, locator, artifact, true)
			return
		}
	}

	if o.ctx.Err() != nil {
		log.Debug("cancelled before payload stage")
		return
	}

	// 阶段二：载荷通常在另一台主机上，使用独立客户端
	payloadCfg, path, err := locatorClientConfig(locator, o.cfg.InsecureSkipVerify)
	if err != nil {
		o.fail(log, stagePayload, xerrors.Wrap(err, "invalid locator"))
		return
	}
	payloadClient, err := httpc.New(payloadCfg, httpc.WithLogger(log), httpc.WithMeter(o.meter))
	if err != nil {
		o.fail(log, stagePayload, err)
		return
	}

	start = o.now()
	res = payloadClient.Get(o.ctx, path, o.cfg.PayloadTimeout)
	o.stageDuration.Record(o.ctx, time.Since(start).Seconds(), metrics.L("stage", stagePayload))
	if !res.Success {
		o.fail(log, stagePayload, res.Err)
		return
	}
	if res.StatusCode != http.StatusOK {
		o.fail(log, stagePayload, xerrors.Newf("payload host returned status %d", res.StatusCode))
		return
	}

	artifact, err := o.decode(res.Body)
	if err != nil {
		o.fail(log, stageDecode, xerrors.Wrap(err, "decode payload"))
		return
	}

	if o.ctx.Err() != nil {
		log.Debug("cancelled before result handoff")
		return
	}

	o.deliver(log, locator, artifact, false)
}

// deliver 把产物写入结果槽并清零失败计数
func (o *orchestrator[T]) deliver(log clog.Logger, locator string, artifact T, fromCache bool) {
	o.mu.Lock()
	if o.ready {
		log.Warn("undrained result overwritten")
	}
	o.pending = artifact
	o.ready = true
	o.producedOnce = true
	o.consecutiveFailures = 0
	o.lastErr = nil
	o.mu.Unlock()

	if o.cache != nil && !fromCache {
		o.cache.Set(locator, artifact)
	}

	o.successes.Inc(o.ctx)
	log.Info("fetch cycle completed",
		clog.String("locator", locator),
		clog.Bool("from_cache", fromCache))
}

// fail 记录一次周期失败，推进退避计数
func (o *orchestrator[T]) fail(log clog.Logger, stage string, err error) {
	// 关停引起的取消不是远端故障，不计入退避
	if o.ctx.Err() != nil {
		log.Debug("cycle aborted by shutdown", clog.String("stage", stage))
		return
	}

	o.mu.Lock()
	o.consecutiveFailures++
	o.lastFailureTime = o.now()
	o.lastErr = err
	failures := o.consecutiveFailures
	o.mu.Unlock()

	o.failures.Inc(o.ctx, metrics.L("stage", stage))
	log.Warn("fetch stage failed",
		clog.String("stage", stage),
		clog.Int("consecutive_failures", failures),
		clog.Error(err))
}

// backoffDelay 计算第 k 次连续失败后的退避延迟 min(base*k, cap)
func backoffDelay(base, cap time.Duration, k int) time.Duration {
	d := base * time.Duration(k)
	if d > cap || d < 0 {
		return cap
	}
	return d
}

// locatorClientConfig 把载荷地址拆成客户端配置和请求路径
func locatorClientConfig(locator string, insecure bool) (*httpc.Config, string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", xerrors.Newf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, "", xerrors.New("locator has no host")
	}
	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, "", err
		}
	}
	cfg := &httpc.Config{
		Host:               u.Hostname(),
		Port:               port,
		Secure:             u.Scheme == "https",
		InsecureSkipVerify: insecure,
	}
	return cfg, u.RequestURI(), nil
}
