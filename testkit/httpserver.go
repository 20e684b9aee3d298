package testkit

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// FakeServer 包装 httptest.Server，附带命中计数和地址拆分
type FakeServer struct {
	*httptest.Server
	hits atomic.Int64
}

// Hits 返回服务器收到的请求总数
func (s *FakeServer) Hits() int64 {
	return s.hits.Load()
}

// HostPort 返回服务器监听的主机和端口
func (s *FakeServer) HostPort(t *testing.T) (string, int) {
	t.Helper()
	u, err := url.Parse(s.URL)
	if err != nil {
		t.Fatalf("解析服务器地址失败: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("拆分 host:port 失败: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("解析端口失败: %v", err)
	}
	return host, port
}

// NewServer 启动一个返回固定状态码和响应体的服务器
// 生命周期由 t.Cleanup 管理
func NewServer(t *testing.T, status int, body []byte) *FakeServer {
	t.Helper()
	fs := &FakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

// NewHandlerServer 启动一个使用自定义 handler 的服务器
// 生命周期由 t.Cleanup 管理
func NewHandlerServer(t *testing.T, handler http.HandlerFunc) *FakeServer {
	t.Helper()
	fs := &FakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

// NewHangingServer 启动一个挂起指定时长后才响应的服务器
// 用于验证超时和关停路径
func NewHangingServer(t *testing.T, delay time.Duration) *FakeServer {
	return NewHandlerServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.WriteHeader(http.StatusOK)
	})
}

// UnusedAddr 返回一个无人监听的本地地址，用于制造连接失败
func UnusedAddr(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen 失败: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()
	return "127.0.0.1", addr.Port
}
