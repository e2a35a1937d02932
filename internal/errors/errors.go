package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006

	// 公平性错误 (2000-2999)
	ErrNoCommittedSeed   ErrorCode = 2000
	ErrSeedHashMismatch  ErrorCode = 2001
	ErrSeedGenerate      ErrorCode = 2002
	ErrInvalidClientSeed ErrorCode = 2003

	// 游戏错误 (3000-3999)
	ErrUnsupportedGame   ErrorCode = 3000
	ErrInvalidBet        ErrorCode = 3001
	ErrInvalidGameConfig ErrorCode = 3002
	ErrRoundStateError   ErrorCode = 3003

	// 玩家错误 (4000-4999)
	ErrPlayerUnauthorized ErrorCode = 4000
	ErrTokenExpired       ErrorCode = 4001
	ErrTokenInvalid       ErrorCode = 4002

	// 账务错误 (5000-5999)
	ErrLedger                  ErrorCode = 5000
	ErrInsufficientFunds       ErrorCode = 5001
	ErrCurrencyNotSupported    ErrorCode = 5002
	ErrSettlementInconsistency ErrorCode = 5003

	// 数据库错误 (6000-6999)
	ErrDatabaseConnect ErrorCode = 6000
	ErrDatabaseQuery   ErrorCode = 6001
	ErrDatabaseInsert  ErrorCode = 6002
	ErrDatabaseUpdate  ErrorCode = 6003
	ErrTransaction     ErrorCode = 6004

	// 配置错误 (7000-7999)
	ErrConfigLoad     ErrorCode = 7000
	ErrConfigParse    ErrorCode = 7001
	ErrConfigValidate ErrorCode = 7002
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",

	ErrNoCommittedSeed:   "没有已承诺的服务端种子",
	ErrSeedHashMismatch:  "种子哈希不匹配",
	ErrSeedGenerate:      "生成服务端种子失败",
	ErrInvalidClientSeed: "无效的客户端种子",

	ErrUnsupportedGame:   "不支持的游戏",
	ErrInvalidBet:        "无效的投注金额",
	ErrInvalidGameConfig: "无效的游戏配置",
	ErrRoundStateError:   "回合状态错误",

	ErrPlayerUnauthorized: "玩家未授权",
	ErrTokenExpired:       "令牌已过期",
	ErrTokenInvalid:       "无效的令牌",

	ErrLedger:                  "账务服务错误",
	ErrInsufficientFunds:       "余额不足",
	ErrCurrencyNotSupported:    "不支持的币种",
	ErrSettlementInconsistency: "结算不一致",

	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseInsert:  "数据库插入失败",
	ErrDatabaseUpdate:  "数据库更新失败",
	ErrTransaction:     "事务处理失败",

	ErrConfigLoad:     "配置加载失败",
	ErrConfigParse:    "配置解析失败",
	ErrConfigValidate: "配置验证失败",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Cause   error        `json:"-"`
	Stack   []StackFrame `json:"-"`
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)
	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误，已是AppError时保留原始错误码
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 复制链上的AppError，不修改原错误；外层包装保留在Cause中
	if appErr, ok := As(err); ok {
		wrapped := *appErr
		wrapped.Stack = append([]StackFrame(nil), appErr.Stack...)
		if len(details) > 0 {
			wrapped.Details = joinDetails(strings.Join(details, "; "), appErr.Details)
		}
		if err != error(appErr) {
			wrapped.Cause = err
		}
		return &wrapped
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}
	return appErr
}

func joinDetails(outer, inner string) string {
	if inner == "" {
		return outer
	}
	return outer + "; " + inner
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// As 从错误链中提取AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 判断错误链中是否包含指定错误码
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "runtime.") &&
			!strings.Contains(frame.Function, "fair-slot/internal/errors.") {
			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}
		// 只保留前10个栈帧
		if !more || len(e.Stack) >= 10 {
			break
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}
	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidParam, ErrInvalidBet, ErrInvalidClientSeed, ErrCurrencyNotSupported:
		return http.StatusBadRequest
	case ErrNotFound, ErrUnsupportedGame:
		return http.StatusNotFound
	case ErrAlreadyExists, ErrNoCommittedSeed:
		return http.StatusConflict
	case ErrSeedHashMismatch:
		return http.StatusUnprocessableEntity
	case ErrPermissionDenied:
		return http.StatusForbidden
	case ErrPlayerUnauthorized, ErrTokenExpired, ErrTokenInvalid:
		return http.StatusUnauthorized
	case ErrInsufficientFunds:
		return http.StatusPaymentRequired
	case ErrLedger:
		return http.StatusBadGateway
	case ErrTimeout:
		return http.StatusRequestTimeout
	case ErrDatabaseConnect, ErrDatabaseQuery, ErrDatabaseInsert, ErrDatabaseUpdate, ErrTransaction:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable 判断错误是否可由调用方重试
// 公平性与结算错误一律不可重试
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrTimeout, ErrDatabaseConnect:
		return true
	default:
		return false
	}
}

// IsCritical 判断是否为严重错误
func IsCritical(err error) bool {
	switch GetCode(err) {
	case ErrSettlementInconsistency, ErrDatabaseConnect, ErrConfigLoad, ErrInvalidGameConfig:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
