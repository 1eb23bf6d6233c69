package core

import "errors"

// 提供商层错误分类。
// RateLimited/Network 属于瞬态错误，调用方可带退避重试；
// SymbolNotFound 对该代码是终态错误；ProviderFormat 表示整个响应不可解析。
var (
	// ErrProviderNotFound 提供商未注册
	ErrProviderNotFound = errors.New("provider not found")

	// ErrNetwork 网络错误（连接失败、超时等），可重试
	ErrNetwork = errors.New("network error")

	// ErrRateLimited 触发提供商频率限制，可带退避重试
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrSymbolNotFound 提供商不认识该资产代码，终态错误
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrProviderFormat 响应整体不符合提供商协议，中止本次调用
	ErrProviderFormat = errors.New("malformed provider response")

	// ErrMalformedBar 单行数据不合法（行级错误，适配器内部丢弃并记录）
	ErrMalformedBar = errors.New("malformed bar")

	// ErrIntervalNotSupported 提供商不支持该时间粒度
	ErrIntervalNotSupported = errors.New("interval not supported")
)

// IsRetryable 判断错误是否属于可重试的瞬态错误
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimited)
}

// IsTerminal 判断错误对该 symbol 是否为终态（重试无意义）
func IsTerminal(err error) bool {
	return errors.Is(err, ErrSymbolNotFound) || errors.Is(err, ErrIntervalNotSupported)
}
