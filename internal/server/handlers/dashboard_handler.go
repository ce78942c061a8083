package handlers

import (
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/services"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// DashboardHandler 仪表盘处理器
type DashboardHandler struct {
	dashboardService *services.DashboardService
}

// NewDashboardHandler 创建仪表盘处理器
func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// Stats 获取仪表盘统计数据
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboardService.GetDashboardStats()
	if err != nil {
		response.InternalError(c, "获取统计数据失败")
		return
	}

	response.Success(c, stats)
}
