// Package moderation 提供审核动作的 HTTP 处理器
package moderation

import (
	"apollocore/internal/common"
	"apollocore/internal/moderation"
	"apollocore/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// Handler 审核 API 处理器
type Handler struct {
	service *moderation.Service
}

// NewHandler 创建处理器
func NewHandler(service *moderation.Service) *Handler {
	return &Handler{service: service}
}

// actorContext 解析请求中的操作者标识与客户端 IP
func actorContext(c *gin.Context) (actorID, clientIP string) {
	actorID = c.GetHeader(ratelimit.ActorHeader)
	clientIP = ratelimit.ResolveClientIP(c.Request.Header, c.Request.RemoteAddr)
	return actorID, clientIP
}

// ApprovePostRequest 通过审核请求
type ApprovePostRequest struct {
	Note string `json:"note"` // 审核备注，可为空
}

// ApprovePost 通过内容审核
// @Summary 通过内容审核
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path string true "内容ID"
// @Param request body ApprovePostRequest false "审核备注"
// @Success 200 {object} common.APIResponse{data=moderation.ContentPost}
// @Router /api/v1/moderation/posts/{id}/approve [post]
func (h *Handler) ApprovePost(c *gin.Context) {
	var req ApprovePostRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.ResponseBadRequest(c, err.Error())
			return
		}
	}

	actorID, clientIP := actorContext(c)
	post, err := h.service.ApprovePost(c.Request.Context(), actorID, clientIP, c.Param("id"), req.Note)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}

	common.ResponseSuccess(c, post)
}

// SuspendMemberRequest 停用成员请求
type SuspendMemberRequest struct {
	Days   int    `json:"days" binding:"required"` // 停用天数，必须为正
	Reason string `json:"reason"`                  // 停用原因
}

// SuspendMember 停用成员
// @Summary 停用成员指定天数
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path string true "成员ID"
// @Param request body SuspendMemberRequest true "停用参数"
// @Success 200 {object} common.APIResponse{data=moderation.MemberAccount}
// @Failure 403 {object} common.APIResponse
// @Router /api/v1/moderation/members/{id}/suspend [post]
func (h *Handler) SuspendMember(c *gin.Context) {
	var req SuspendMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	actorID, clientIP := actorContext(c)
	member, err := h.service.SuspendMember(c.Request.Context(), actorID, clientIP, c.Param("id"), req.Days, req.Reason)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}

	common.ResponseSuccess(c, member)
}

// BlockMemberRequest 封禁成员请求
type BlockMemberRequest struct {
	Reason string `json:"reason"` // 封禁原因
}

// BlockMember 封禁成员
// @Summary 封禁成员
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path string true "成员ID"
// @Param request body BlockMemberRequest false "封禁原因"
// @Success 200 {object} common.APIResponse{data=moderation.MemberAccount}
// @Failure 403 {object} common.APIResponse
// @Router /api/v1/moderation/members/{id}/block [post]
func (h *Handler) BlockMember(c *gin.Context) {
	var req BlockMemberRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.ResponseBadRequest(c, err.Error())
			return
		}
	}

	actorID, clientIP := actorContext(c)
	member, err := h.service.BlockMember(c.Request.Context(), actorID, clientIP, c.Param("id"), req.Reason)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}

	common.ResponseSuccess(c, member)
}
