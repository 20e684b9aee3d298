package httpc

import "github.com/ceyewan/fetchkit/xerrors"

// ErrCircuitOpen 熔断器打开，请求被本地拒绝，未产生网络 I/O
var ErrCircuitOpen = xerrors.New("httpc: circuit breaker open")

// IsCircuitOpen 判断错误是否为熔断拒绝
func IsCircuitOpen(err error) bool {
	return xerrors.Is(err, ErrCircuitOpen)
}
