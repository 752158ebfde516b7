// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 项目相关错误
	ErrorProjectNotFound  = "PROJECT_NOT_FOUND"
	ErrorValidationFailed = "VALIDATION_ERROR"
	ErrorStorageFailed    = "STORAGE_ERROR"

	// 生成后端相关错误
	ErrorProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrorProviderRequest     = "PROVIDER_REQUEST_FAILED"
	ErrorSchemaValidation    = "SCHEMA_VALIDATION_FAILED"

	// 导出相关错误
	ErrorExportFormatInvalid = "EXPORT_FORMAT_INVALID"

	// 任务相关错误
	ErrorTaskNotFound = "TASK_NOT_FOUND"
)
