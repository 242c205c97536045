package common

import "time"

// ============================================================================
// 通用请求类型
// ============================================================================

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `json:"page" form:"page" binding:"omitempty,min=1"`           // 页码，从1开始
	PageSize int `json:"page_size" form:"page_size" binding:"omitempty,min=1"` // 每页数量
}

// DefaultPagination 返回默认分页参数
func DefaultPagination() PaginationRequest {
	return PaginationRequest{
		Page:     1,
		PageSize: 20,
	}
}

// GetOffset 计算数据库查询的偏移量
func (p PaginationRequest) GetOffset() int {
	if p.Page < 1 {
		p.Page = 1
	}
	return (p.Page - 1) * p.GetPageSize()
}

// GetPageSize 获取每页数量，提供默认值
func (p PaginationRequest) GetPageSize() int {
	if p.PageSize < 1 {
		return 20
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// DateRange 日期范围
type DateRange struct {
	Start time.Time `json:"start"` // 开始时间
	End   time.Time `json:"end"`   // 结束时间
}

// ============================================================================
// 通用响应类型
// ============================================================================

// APIResponse 统一API响应格式
type APIResponse struct {
	Success bool   `json:"success"`           // 是否成功
	Data    any    `json:"data,omitempty"`    // 响应数据
	Message string `json:"message,omitempty"` // 提示信息
	Code    string `json:"code,omitempty"`    // 机器可读错误码
}

// SuccessResponse 成功响应
func SuccessResponse(data any) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

// SuccessMessageResponse 成功响应（带消息）
func SuccessMessageResponse(message string, data any) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// ErrorResponse 错误响应
func ErrorResponse(code string, message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
		Code:    code,
	}
}

// PaginationMeta 分页元信息
type PaginationMeta struct {
	Page       int   `json:"page"`        // 当前页码
	PageSize   int   `json:"page_size"`   // 每页数量
	Total      int64 `json:"total"`       // 总记录数
	TotalPages int   `json:"total_pages"` // 总页数
}

// NewPaginationMeta 创建分页元信息
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	meta := PaginationMeta{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}
	if pageSize > 0 {
		meta.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return meta
}

// ListResponse 列表响应（包含分页信息）
type ListResponse struct {
	Items      any            `json:"items"`      // 数据列表
	Pagination PaginationMeta `json:"pagination"` // 分页信息
}

// ============================================================================
// 业务错误码定义
// ============================================================================

const (
	// 通用错误码
	CodeInvalidRequest = "invalid_request"     // 请求参数错误
	CodeUnauthorized   = "unauthorized"        // 未授权
	CodeForbidden      = "forbidden"           // 禁止访问
	CodeNotFound       = "not_found"           // 资源不存在
	CodeInternalError  = "internal_error"      // 内部错误
	CodeRateLimited    = "rate_limit_exceeded" // 超过速率限制

	// 审核相关错误码
	CodeMemberNotFound  = "member_not_found"  // 成员不存在
	CodePostNotFound    = "post_not_found"    // 内容不存在
	CodeAdminProtected  = "admin_protected"   // 管理员账号不可被处置
	CodeInvalidDuration = "invalid_duration"  // 封禁时长无效
	CodeUnknownGroup    = "unknown_group"     // 未知缓存分组
)

// ErrorMessages 错误码对应的默认消息
var ErrorMessages = map[string]string{
	CodeInvalidRequest:  "请求参数错误",
	CodeUnauthorized:    "未授权，请先登录",
	CodeForbidden:       "无权限访问",
	CodeNotFound:        "资源不存在",
	CodeInternalError:   "系统内部错误",
	CodeRateLimited:     "请求过于频繁，请稍后重试",
	CodeMemberNotFound:  "成员不存在",
	CodePostNotFound:    "内容不存在",
	CodeAdminProtected:  "管理员账号不可被停用或封禁",
	CodeInvalidDuration: "封禁时长无效",
	CodeUnknownGroup:    "未知的缓存分组",
}

// GetErrorMessage 获取错误码对应的消息
func GetErrorMessage(code string) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "未知错误"
}

// ============================================================================
// 通用业务错误类型
// ============================================================================

// BusinessError 业务错误
type BusinessError struct {
	Code    string // 机器可读错误码
	Message string // 错误信息
}

// Error 实现error接口
func (e *BusinessError) Error() string {
	return e.Message
}

// NewBusinessError 创建业务错误
func NewBusinessError(code string, message string) *BusinessError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}
