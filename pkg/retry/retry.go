// Package retry 为外部服务调用提供单次超时与有限重试。
package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MaxRetries 是瞬时失败后的最大重试次数。
const MaxRetries = 1

// InitialInterval 是首次重试前的等待时间。
var InitialInterval = 200 * time.Millisecond

// Permanent 标记一个不应重试的错误。
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do 执行 fn，每次尝试都有独立的 timeout；fn 返回的非 Permanent 错误最多重试 MaxRetries 次。
func Do(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)

	return backoff.Retry(func() error {
		attemptCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		err := fn(attemptCtx)
		if err != nil && ctx.Err() != nil {
			// 调用方已取消，不再重试
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// StatusError 描述上游返回的非 2xx 响应。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Body
}

// Transient 判断一个状态码是否值得重试（429 与 5xx）。
func Transient(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// CheckStatus 把非 2xx 响应转换为错误：瞬时状态码可重试，其余为 Permanent。
func CheckStatus(statusCode int, body string) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	err := &StatusError{StatusCode: statusCode, Body: body}
	if Transient(statusCode) {
		return err
	}
	return Permanent(err)
}
