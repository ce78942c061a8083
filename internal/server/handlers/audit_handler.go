package handlers

import (
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/repository"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/response"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/utils"

	"github.com/gin-gonic/gin"
)

// AuditHandler 审计日志处理器
type AuditHandler struct {
	auditRepo *repository.AuditRepository
}

// NewAuditHandler 创建审计日志处理器
func NewAuditHandler(auditRepo *repository.AuditRepository) *AuditHandler {
	return &AuditHandler{auditRepo: auditRepo}
}

// List 分页获取审计日志，可按操作类型过滤
func (h *AuditHandler) List(c *gin.Context) {
	page, pageSize := utils.ParsePagination(c.Query("page"), c.Query("page_size"))

	if action := c.Query("action"); action != "" {
		logs, err := h.auditRepo.FindByAction(models.AuditAction(action), pageSize, (page-1)*pageSize)
		if err != nil {
			response.InternalError(c, "查询审计日志失败")
			return
		}

		total, err := h.auditRepo.CountAction(models.AuditAction(action))
		if err != nil {
			response.InternalError(c, "统计审计日志失败")
			return
		}

		response.Paged(c, logs, total, page, pageSize)
		return
	}

	logs, err := h.auditRepo.FindAll(pageSize, (page-1)*pageSize)
	if err != nil {
		response.InternalError(c, "查询审计日志失败")
		return
	}

	total, err := h.auditRepo.Count()
	if err != nil {
		response.InternalError(c, "统计审计日志失败")
		return
	}

	response.Paged(c, logs, total, page, pageSize)
}

// Stats 审计日志统计：总数和按动作类型的分布
func (h *AuditHandler) Stats(c *gin.Context) {
	total, err := h.auditRepo.Count()
	if err != nil {
		response.InternalError(c, "统计审计日志失败")
		return
	}

	byAction, err := h.auditRepo.CountByAction()
	if err != nil {
		response.InternalError(c, "统计审计日志失败")
		return
	}

	response.Success(c, gin.H{
		"total":     total,
		"by_action": byAction,
	})
}

// ListByContainer 获取单个容器的审计日志
func (h *AuditHandler) ListByContainer(c *gin.Context) {
	id := c.Param("id")

	logs, err := h.auditRepo.FindByContainer(id, 100)
	if err != nil {
		response.InternalError(c, "查询审计日志失败")
		return
	}

	response.Success(c, logs)
}
