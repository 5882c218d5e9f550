package errors

import (
	"errors"
	"fmt"
)

// AppError 客户端统一错误类型
// 包含错误码、可读消息以及可选的原始错误
type AppError struct {
	Code    int    // 错误码
	Message string // 可读的错误消息
	Err     error  // 原始错误（可选）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// WithMessage 替换错误消息，保留错误码
// 用于携带后端返回的 message
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// Is 判断是否为指定错误（按错误码比较）
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 参数相关 11000-11999
	CodeInvalidParams = 11002

	// 传输与协议 20000-20999
	CodeConnection        = 20001
	CodeProtocol          = 20002
	CodeApplication       = 20003
	CodeTimeout           = 20004
	CodeNotLoggedIn       = 20005
	CodeAlreadyLoggedIn   = 20006
	CodeAlreadyReconciled = 20007

	// 系统错误 50000-50999
	CodeServerError = 50001
)

// ============== 预定义错误 ==============

// 传输相关
var (
	ErrConnection  = NewError(CodeConnection, "connection failed")
	ErrProtocol    = NewError(CodeProtocol, "malformed response frame")
	ErrApplication = NewError(CodeApplication, "request rejected by backend")
	ErrTimeout     = NewError(CodeTimeout, "request timed out")
)

// 会话相关
var (
	ErrNotLoggedIn       = NewError(CodeNotLoggedIn, "not logged in")
	ErrAlreadyLoggedIn   = NewError(CodeAlreadyLoggedIn, "already logged in")
	ErrAlreadyReconciled = NewError(CodeAlreadyReconciled, "history already reconciled")
)

// 通用
var (
	ErrInvalidParams = NewError(CodeInvalidParams, "invalid parameters")
	ErrServerError   = NewError(CodeServerError, "internal error")
)
