package store

import (
	qerr "quantbridge/pkg/error"
)

const (
	// ErrStoreIO 表示主存读写发生I/O错误。
	ErrStoreIO qerr.ErrorCode = "STORE_IO"
	// ErrStoreCorrupted 表示序列文件无法解码。
	ErrStoreCorrupted qerr.ErrorCode = "STORE_CORRUPTED"
)

// StoreError 主存错误类型
type StoreError struct {
	qerr.BaseError
}

// NewStoreError 创建主存错误
func NewStoreError(code qerr.ErrorCode, message string, cause error) *StoreError {
	return &StoreError{BaseError: *qerr.WrapError(code, message, cause)}
}

// Unwrap 暴露底层错误
func (e *StoreError) Unwrap() error {
	return e.BaseError.Unwrap()
}
