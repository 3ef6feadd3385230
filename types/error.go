package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

const (
	// 调用方责任：请求不合法，立即返回。
	ErrValidation ErrorCode = "VALIDATION"

	// 外部协作方（存储、嵌入、生成）不可达或出错，
	// 一律在策略边界捕获并降级。
	ErrExternalService ErrorCode = "EXTERNAL_SERVICE"
	ErrEmbedding       ErrorCode = "EMBEDDING"
	ErrStore           ErrorCode = "STORE_UNAVAILABLE"
	ErrTimeout         ErrorCode = "TIMEOUT"

	// 配置缺陷：未知策略名，允许向上传播。
	ErrStrategyNotFound ErrorCode = "STRATEGY_NOT_FOUND"

	ErrInternal ErrorCode = "INTERNAL"
)

// Error 结构化错误：错误码 + 消息 + 可选底层原因。
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError 创建结构化错误。
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError 包装底层错误。
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Retryable: code == ErrTimeout || code == ErrExternalService}
}

// CodeOf 提取错误码；非本包错误返回 ErrInternal。
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// IsValidation 判断是否为请求校验错误。
func IsValidation(err error) bool { return CodeOf(err) == ErrValidation }

// IsExternal 判断是否为外部协作方错误（含嵌入、存储与超时）。
func IsExternal(err error) bool {
	switch CodeOf(err) {
	case ErrExternalService, ErrEmbedding, ErrStore, ErrTimeout:
		return true
	}
	return false
}
