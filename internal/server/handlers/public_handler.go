package handlers

import (
	"errors"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/repository"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/services"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/response"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/utils"

	"github.com/gin-gonic/gin"
)

// PublicHandler 免登录查询处理器
type PublicHandler struct {
	runtime        services.ContainerRuntime
	containerRepo  *repository.ContainerRepository
	trafficService *services.TrafficService
}

// NewPublicHandler 创建免登录查询处理器
func NewPublicHandler(
	runtime services.ContainerRuntime,
	containerRepo *repository.ContainerRepository,
	trafficService *services.TrafficService,
) *PublicHandler {
	return &PublicHandler{
		runtime:        runtime,
		containerRepo:  containerRepo,
		trafficService: trafficService,
	}
}

// Share 通过分享令牌查询容器用量
// 只暴露用量摘要，不泄露容器配置细节
func (h *PublicHandler) Share(c *gin.Context) {
	token := c.Param("token")

	ct, err := h.containerRepo.FindByShareToken(token)
	if err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			response.NotFound(c, "分享链接不存在")
			return
		}
		response.InternalError(c, "查询失败")
		return
	}

	if ct.ShareTokenExp != nil && ct.ShareTokenExp.Before(time.Now()) {
		response.Gone(c, "分享链接已过期")
		return
	}

	used := ct.BandwidthUsed
	if live, ok := h.trafficService.AccumulatedUsage(ct.ID); ok {
		used = live
	}

	data := gin.H{
		"name":       ct.Name,
		"status":     ct.Status,
		"used_bytes": used,
		"used_human": utils.FormatBytes(used),
		"reset_day":  ct.ResetDay,
	}

	if allowance, limited := ct.TotalAllowance(); limited {
		data["limit_bytes"] = allowance
		data["limit_human"] = utils.FormatBytes(allowance)
	}

	if ct.ExpireAt != nil {
		data["expire_at"] = ct.ExpireAt
	}

	// 运行中的容器附带实时内存和网络快照
	if stats, err := h.runtime.GetContainerStats(c.Request.Context(), ct.ID); err == nil && stats != nil {
		data["live"] = gin.H{
			"memory_usage": stats.MemoryUsage,
			"memory_limit": stats.MemoryLimit,
			"rx_bytes":     stats.RxBytes,
			"tx_bytes":     stats.TxBytes,
		}
	}

	response.Success(c, data)
}
