// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 生成链路错误类型
	ErrorTypeProviderUnavailable ErrorType = "provider_unavailable"
	ErrorTypeProviderRequest     ErrorType = "provider_request"
	ErrorTypeSchemaValidation    ErrorType = "schema_validation"

	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeStorage    ErrorType = "storage_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewProviderUnavailableError 未知提供商或缺少凭证
func NewProviderUnavailableError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeProviderUnavailable, message, originalError)
}

// NewProviderRequestError 网络失败或后端返回非成功状态
func NewProviderRequestError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeProviderRequest, message, originalError)
}

// NewSchemaValidationError 响应不是合法JSON或缺少必填字段
func NewSchemaValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeSchemaValidation, message, originalError)
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewStorageError 创建存储错误
func NewStorageError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeStorage, message, originalError)
}

// TypeOf 返回错误链上第一个 AppError 的类型，非 AppError 返回空串
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

func isType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsProviderUnavailableError 检查是否为提供商不可用错误
func IsProviderUnavailableError(err error) bool {
	return isType(err, ErrorTypeProviderUnavailable)
}

// IsProviderRequestError 检查是否为提供商请求错误
func IsProviderRequestError(err error) bool {
	return isType(err, ErrorTypeProviderRequest)
}

// IsSchemaValidationError 检查是否为结构校验错误
func IsSchemaValidationError(err error) bool {
	return isType(err, ErrorTypeSchemaValidation)
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsStorageError 检查是否为存储错误
func IsStorageError(err error) bool {
	return isType(err, ErrorTypeStorage)
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeProviderUnavailable:
		return "PROVIDER_UNAVAILABLE"
	case ErrorTypeProviderRequest:
		return "PROVIDER_REQUEST_FAILED"
	case ErrorTypeSchemaValidation:
		return "SCHEMA_VALIDATION_FAILED"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeStorage:
		return "STORAGE_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 已经是 AppError 时保留原类型，只补充消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
