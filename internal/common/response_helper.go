package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResponseSuccess 返回成功响应
func ResponseSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse(data))
}

// ResponseSuccessMessage 返回成功响应（带消息）
func ResponseSuccessMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, SuccessMessageResponse(message, data))
}

// ResponseList 返回分页列表响应
func ResponseList(c *gin.Context, items any, total int64, req *PaginationRequest) {
	if req == nil {
		defaultReq := DefaultPagination()
		req = &defaultReq
	}

	response := ListResponse{
		Items:      items,
		Pagination: NewPaginationMeta(req.Page, req.GetPageSize(), total),
	}

	c.JSON(http.StatusOK, SuccessResponse(response))
}

// ResponseError 返回错误响应
func ResponseError(c *gin.Context, code string, message string) {
	if message == "" {
		message = GetErrorMessage(code)
	}

	httpStatus := http.StatusOK

	// 业务错误码映射到 HTTP 状态码
	switch code {
	case CodeUnauthorized:
		httpStatus = http.StatusUnauthorized
	case CodeForbidden, CodeAdminProtected:
		httpStatus = http.StatusForbidden
	case CodeNotFound, CodeMemberNotFound, CodePostNotFound, CodeUnknownGroup:
		httpStatus = http.StatusNotFound
	case CodeInvalidRequest, CodeInvalidDuration:
		httpStatus = http.StatusBadRequest
	case CodeRateLimited:
		httpStatus = http.StatusTooManyRequests
	case CodeInternalError:
		httpStatus = http.StatusInternalServerError
	}

	c.JSON(httpStatus, ErrorResponse(code, message))
}

// ResponseFromError 根据错误类型返回响应，业务错误保留错误码
func ResponseFromError(c *gin.Context, err error) {
	var bizErr *BusinessError
	if errors.As(err, &bizErr) {
		ResponseError(c, bizErr.Code, bizErr.Message)
		return
	}
	ResponseError(c, CodeInternalError, "")
}

// ResponseBadRequest 返回参数错误响应
func ResponseBadRequest(c *gin.Context, message string) {
	ResponseError(c, CodeInvalidRequest, message)
}

// ResponseNotFound 返回资源不存在响应
func ResponseNotFound(c *gin.Context, message string) {
	ResponseError(c, CodeNotFound, message)
}

// ResponseServerError 返回服务器错误响应
func ResponseServerError(c *gin.Context, message string) {
	ResponseError(c, CodeInternalError, message)
}

// AbortWithError 中断并返回错误
func AbortWithError(c *gin.Context, code string, message string) {
	ResponseError(c, code, message)
	c.Abort()
}
