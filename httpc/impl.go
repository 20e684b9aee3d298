package httpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/ceyewan/fetchkit/breaker"
	"github.com/ceyewan/fetchkit/clog"
	"github.com/ceyewan/fetchkit/xerrors"
)

// clientImpl 客户端实现（非导出）
type clientImpl struct {
	baseURL string
	hc      *http.Client
	brk     breaker.Breaker
	logger  clog.Logger
}

// newClient 创建客户端实例（内部函数）
func newClient(cfg *Config, opt *options) (Client, error) {
	logger := opt.logger
	if logger == nil {
		logger = clog.Discard()
	}

	brkOpts := []breaker.Option{breaker.WithLogger(logger)}
	if opt.meter != nil {
		brkOpts = append(brkOpts, breaker.WithMeter(opt.meter))
	}
	brk, err := breaker.New(cfg.Breaker, brkOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "httpc: create breaker")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c := &clientImpl{
		baseURL: cfg.baseURL(),
		// 单次调用的超时由 per-call context 控制，客户端本身不设全局超时
		hc:     &http.Client{Transport: transport},
		brk:    brk,
		logger: logger,
	}

	logger.Debug("http client created",
		clog.String("base_url", c.baseURL),
		clog.Bool("insecure_skip_verify", cfg.InsecureSkipVerify))

	return c, nil
}

// Get 发起 GET 请求
func (c *clientImpl) Get(ctx context.Context, path string, timeout time.Duration) Result {
	return c.do(ctx, http.MethodGet, path, nil, "", nil, timeout)
}

// Post 发起 POST 请求
func (c *clientImpl) Post(ctx context.Context, path string, body []byte, contentType string, headers map[string]string, timeout time.Duration) Result {
	return c.do(ctx, http.MethodPost, path, body, contentType, headers, timeout)
}

// CircuitState 获取熔断器当前状态
func (c *clientImpl) CircuitState() breaker.State {
	return c.brk.State()
}

// do 执行一次请求，所有调用共用同一套熔断和日志逻辑
func (c *clientImpl) do(ctx context.Context, method, path string, body []byte, contentType string, headers map[string]string, timeout time.Duration) Result {
	if !c.brk.ShouldAttempt() {
		c.logger.Debug("request rejected by circuit breaker",
			clog.String("method", method),
			clog.String("path", path))
		return Result{Success: false, Err: ErrCircuitOpen}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		// 本地构造失败，未触达网络，不计入熔断器
		return Result{Success: false, Err: xerrors.Wrapf(err, "httpc: build %s %s", method, path)}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.brk.RecordFailure()
		c.logger.Warn("transport failure",
			clog.String("method", method),
			clog.String("path", path),
			clog.Duration("elapsed", time.Since(start)),
			clog.Error(err))
		return Result{Success: false, Err: xerrors.Wrapf(err, "httpc: %s %s", method, path)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		// 响应体读取中断视作传输层失败
		c.brk.RecordFailure()
		c.logger.Warn("read response body failed",
			clog.String("method", method),
			clog.String("path", path),
			clog.Error(err))
		return Result{Success: false, Err: xerrors.Wrapf(err, "httpc: read body %s %s", method, path)}
	}

	// 收到任何 HTTP 响应都算连通性成功，状态码好坏由调用方判断
	c.brk.RecordSuccess()
	c.logger.Debug("request completed",
		clog.String("method", method),
		clog.String("path", path),
		clog.Int("status", resp.StatusCode),
		clog.Int("body_bytes", len(respBody)),
		clog.Duration("elapsed", time.Since(start)))

	return Result{Success: true, StatusCode: resp.StatusCode, Body: respBody}
}
