package fetchers

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetchTimeout 页面加载超时
	ErrFetchTimeout = errors.New("页面加载超时")

	// ErrBrowserUnavailable 浏览器启动或连接失败
	ErrBrowserUnavailable = errors.New("浏览器不可用")

	// ErrRateLimited 限流重试耗尽
	ErrRateLimited = errors.New("限流重试次数已耗尽")

	// ErrEmptyPage 页面加载成功但响应体为空
	// 区别于"有页面但零商品": 空响应体说明服务端没有返回任何内容,
	// 调用方据此按页级终止处理,不算抓取失败。
	ErrEmptyPage = errors.New("页面响应体为空")
)

// FetchError 携带HTTP状态码的抓取错误
type FetchError struct {
	URL    string
	Status int
	Cause  error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("抓取失败 [%s] (HTTP %d): %v", e.URL, e.Status, e.Cause)
	}
	return fmt.Sprintf("抓取失败 [%s]: HTTP %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Retryable 判断错误是否可按限流策略重试
// 只有429触发退避重试,其余失败直接向上传播。
func (e *FetchError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests
}

// IsRetryable 判断任意错误是否为可重试的限流错误
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}
