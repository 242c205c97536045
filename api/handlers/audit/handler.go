// Package audit 提供审计/审核日志查询的 HTTP 处理器
package audit

import (
	"errors"
	"strconv"
	"time"

	"apollocore/internal/audit"
	"apollocore/internal/common"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 日志查询 API 处理器
type Handler struct {
	service *audit.Service
}

// NewHandler 创建处理器
func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

// parseFilter 从查询参数构造过滤条件
func parseFilter(c *gin.Context) audit.Filter {
	f := audit.Filter{
		EventType:  c.Query("event_type"),
		ActorID:    c.Query("actor_id"),
		Severity:   c.Query("severity"),
		Action:     c.Query("action"),
		TargetType: c.Query("target_type"),
		TargetID:   c.Query("target_id"),
		OrderBy:    c.Query("orderby"),
		Order:      c.Query("order"),
	}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		f.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		f.To = &to
	}
	return f
}

// parsePagination 解析分页参数
func parsePagination(c *gin.Context) common.PaginationRequest {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	return common.PaginationRequest{Page: page, PageSize: pageSize}
}

// ListAuditLogs 查询审计日志
// @Summary 查询审计日志
// @Tags Audit
// @Produce json
// @Param event_type query string false "事件类型"
// @Param actor_id query string false "操作者ID"
// @Param severity query string false "严重级别"
// @Param orderby query string false "排序列（白名单）"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} common.APIResponse{data=common.ListResponse}
// @Router /api/v1/audit/logs [get]
func (h *Handler) ListAuditLogs(c *gin.Context) {
	pagination := parsePagination(c)

	logs, total, err := h.service.QueryAuditLogs(
		c.Request.Context(), parseFilter(c),
		pagination.GetPageSize(), pagination.GetOffset(),
	)
	if err != nil {
		common.ResponseServerError(c, "")
		return
	}

	common.ResponseList(c, logs, total, &pagination)
}

// GetAuditLog 获取单条审计日志
// @Summary 获取单条审计日志
// @Tags Audit
// @Produce json
// @Param id path string true "日志ID"
// @Success 200 {object} common.APIResponse{data=audit.AuditLog}
// @Failure 404 {object} common.APIResponse
// @Router /api/v1/audit/logs/{id} [get]
func (h *Handler) GetAuditLog(c *gin.Context) {
	row, err := h.service.GetAuditLogByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.ResponseNotFound(c, "")
			return
		}
		common.ResponseServerError(c, "")
		return
	}

	common.ResponseSuccess(c, row)
}

// ListModerationLogs 查询审核日志
// @Summary 查询审核动作日志
// @Tags Audit
// @Produce json
// @Param action query string false "审核动作"
// @Param actor_id query string false "操作者ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} common.APIResponse{data=common.ListResponse}
// @Router /api/v1/moderation/logs [get]
func (h *Handler) ListModerationLogs(c *gin.Context) {
	pagination := parsePagination(c)

	logs, total, err := h.service.QueryModerationLogs(
		c.Request.Context(), parseFilter(c),
		pagination.GetPageSize(), pagination.GetOffset(),
	)
	if err != nil {
		common.ResponseServerError(c, "")
		return
	}

	common.ResponseList(c, logs, total, &pagination)
}
