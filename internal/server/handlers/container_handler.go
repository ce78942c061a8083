package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/repository"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/services"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// ContainerHandler 容器管理处理器
type ContainerHandler struct {
	runtime        services.ContainerRuntime
	containerRepo  *repository.ContainerRepository
	trafficRepo    *repository.TrafficRepository
	auditRepo      *repository.AuditRepository
	trafficService *services.TrafficService
}

// NewContainerHandler 创建容器管理处理器
func NewContainerHandler(
	runtime services.ContainerRuntime,
	containerRepo *repository.ContainerRepository,
	trafficRepo *repository.TrafficRepository,
	auditRepo *repository.AuditRepository,
	trafficService *services.TrafficService,
) *ContainerHandler {
	return &ContainerHandler{
		runtime:        runtime,
		containerRepo:  containerRepo,
		trafficRepo:    trafficRepo,
		auditRepo:      auditRepo,
		trafficService: trafficService,
	}
}

// containerView 容器详情视图，数据库记录叠加实时累计用量
type containerView struct {
	models.Container
	LiveUsed int64 `json:"live_used"`
	Running  bool  `json:"running"`
}

func (h *ContainerHandler) buildView(c *gin.Context, ct models.Container) containerView {
	view := containerView{Container: ct, LiveUsed: ct.BandwidthUsed}
	if used, ok := h.trafficService.AccumulatedUsage(ct.ID); ok {
		view.LiveUsed = used
	}
	view.Running = h.runtime.IsContainerRunning(c.Request.Context(), ct.ID)
	return view
}

// List 获取容器列表
func (h *ContainerHandler) List(c *gin.Context) {
	containers, err := h.containerRepo.FindAll()
	if err != nil {
		response.InternalError(c, "查询容器列表失败")
		return
	}

	views := make([]containerView, 0, len(containers))
	for _, ct := range containers {
		views = append(views, h.buildView(c, ct))
	}

	response.Success(c, views)
}

// Get 获取单个容器详情，包含实时资源统计
func (h *ContainerHandler) Get(c *gin.Context) {
	id := c.Param("id")
	ct, err := h.containerRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			response.NotFound(c, "容器不存在")
			return
		}
		response.InternalError(c, "查询容器失败")
		return
	}

	view := h.buildView(c, *ct)

	// 实时资源统计，获取失败不影响主体数据
	var stats *models.ContainerStats
	if view.Running {
		stats, _ = h.runtime.GetContainerStats(c.Request.Context(), ct.ID)
	}

	response.Success(c, gin.H{
		"container": view,
		"stats":     stats,
	})
}

// Update 更新容器配置（配额、附加额度、重置日、到期时间）
func (h *ContainerHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req models.ContainerUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	ct, err := h.containerRepo.Update(id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			response.NotFound(c, "容器不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	details, _ := json.Marshal(req)
	if err := h.auditRepo.Create(&ct.ID, models.AuditActionConfigUpdate, string(details)); err != nil {
		response.InternalError(c, "写入审计日志失败")
		return
	}

	response.Success(c, ct)
}

// Start 启动容器
func (h *ContainerHandler) Start(c *gin.Context) {
	id := c.Param("id")
	ct, err := h.containerRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			response.NotFound(c, "容器不存在")
			return
		}
		response.InternalError(c, "查询容器失败")
		return
	}

	// 超出配额的容器不允许手动启动，否则下一轮采集会立刻再次停止
	if allowance, limited := ct.TotalAllowance(); limited {
		used := ct.BandwidthUsed
		if live, ok := h.trafficService.AccumulatedUsage(ct.ID); ok {
			used = live
		}
		if used > allowance {
			response.Conflict(c, "容器流量已超限，请先重置流量或提高配额")
			return
		}
	}

	if err := h.runtime.StartContainer(c.Request.Context(), ct.ID); err != nil {
		response.InternalError(c, fmt.Sprintf("启动容器失败: %v", err))
		return
	}

	if err := h.containerRepo.UpdateStatus(ct.ID, models.ContainerStatusActive); err != nil {
		response.InternalError(c, "更新容器状态失败")
		return
	}

	if err := h.auditRepo.Create(&ct.ID, models.AuditActionStart, "Container started manually"); err != nil {
		response.InternalError(c, "写入审计日志失败")
		return
	}

	response.SuccessWithMessage(c, "容器已启动", nil)
}

// Stop 停止容器
func (h *ContainerHandler) Stop(c *gin.Context) {
	id := c.Param("id")
	ct, err := h.containerRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			response.NotFound(c, "容器不存在")
			return
		}
		response.InternalError(c, "查询容器失败")
		return
	}

	if err := h.runtime.StopContainer(c.Request.Context(), ct.ID); err != nil {
		response.InternalError(c, fmt.Sprintf("停止容器失败: %v", err))
		return
	}

	if err := h.containerRepo.UpdateStatus(ct.ID, models.ContainerStatusStopped); err != nil {
		response.InternalError(c, "更新容器状态失败")
		return
	}

	if err := h.auditRepo.Create(&ct.ID, models.AuditActionStop, "Container stopped manually"); err != nil {
		response.InternalError(c, "写入审计日志失败")
		return
	}

	response.SuccessWithMessage(c, "容器已停止", nil)
}

// Reset 手动重置容器流量
func (h *ContainerHandler) Reset(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.containerRepo.FindByID(id); err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			response.NotFound(c, "容器不存在")
			return
		}
		response.InternalError(c, "查询容器失败")
		return
	}

	if err := h.trafficService.ResetContainerTraffic(id); err != nil {
		response.InternalError(c, fmt.Sprintf("重置流量失败: %v", err))
		return
	}

	response.SuccessWithMessage(c, "流量已重置", nil)
}

// Refresh 强制执行一轮容器发现同步
func (h *ContainerHandler) Refresh(c *gin.Context) {
	if err := h.trafficService.RefreshNow(c.Request.Context()); err != nil {
		response.InternalError(c, fmt.Sprintf("同步失败: %v", err))
		return
	}

	if err := h.auditRepo.Create(nil, models.AuditActionReset, "Manual traffic refresh triggered"); err != nil {
		response.InternalError(c, "写入审计日志失败")
		return
	}

	response.SuccessWithMessage(c, "同步完成", nil)
}

// Traffic 获取容器流量历史
func (h *ContainerHandler) Traffic(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.containerRepo.FindByID(id); err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			response.NotFound(c, "容器不存在")
			return
		}
		response.InternalError(c, "查询容器失败")
		return
	}

	limit := 100
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}

	logs, err := h.trafficRepo.FindByContainer(id, limit)
	if err != nil {
		response.InternalError(c, "查询流量日志失败")
		return
	}

	response.Success(c, logs)
}

// ShareRequest 生成分享令牌请求
type ShareRequest struct {
	ExpireHours int `json:"expire_hours"`
}

// Share 生成分享令牌，供免登录查看用量
func (h *ContainerHandler) Share(c *gin.Context) {
	id := c.Param("id")

	// 请求体可为空，为空时令牌不过期
	var req ShareRequest
	_ = c.ShouldBindJSON(&req)

	var expireAt *time.Time
	if req.ExpireHours > 0 {
		t := time.Now().Add(time.Duration(req.ExpireHours) * time.Hour)
		expireAt = &t
	}

	token, err := h.containerRepo.GenerateShareToken(id, expireAt)
	if err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			response.NotFound(c, "容器不存在")
			return
		}
		response.InternalError(c, "生成分享令牌失败")
		return
	}

	response.Success(c, gin.H{
		"share_token":        token,
		"share_token_expire": expireAt,
	})
}

// DeleteRequest 删除容器请求，必须确认容器名称
type DeleteRequest struct {
	ConfirmName     string `json:"confirm_name" binding:"required"`
	RemoveContainer bool   `json:"remove_container"`
}

// Delete 删除容器监控记录，可选地同时删除运行时容器
func (h *ContainerHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	ct, err := h.containerRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrContainerNotFound) {
			response.NotFound(c, "容器不存在")
			return
		}
		response.InternalError(c, "查询容器失败")
		return
	}

	if req.ConfirmName != ct.Name {
		response.BadRequest(c, "容器名称确认不匹配")
		return
	}

	if req.RemoveContainer {
		if err := h.runtime.RemoveContainer(c.Request.Context(), ct.ID, true); err != nil {
			response.InternalError(c, fmt.Sprintf("删除运行时容器失败: %v", err))
			return
		}
	}

	if err := h.containerRepo.Delete(ct.ID); err != nil {
		response.InternalError(c, "删除容器记录失败")
		return
	}

	details := fmt.Sprintf("Container %s removed from monitoring", ct.Name)
	if err := h.auditRepo.Create(nil, models.AuditActionDelete, details); err != nil {
		response.InternalError(c, "写入审计日志失败")
		return
	}

	response.SuccessWithMessage(c, "容器已删除", nil)
}
