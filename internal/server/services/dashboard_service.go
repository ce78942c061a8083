package services

import (
	"fmt"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"gorm.io/gorm"
)

// DashboardService 仪表盘服务
type DashboardService struct {
	db *gorm.DB
}

// NewDashboardService 创建仪表盘服务
func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

// GetDashboardStats 获取仪表盘统计数据
func (ds *DashboardService) GetDashboardStats() (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}

	var containers []models.Container
	if err := ds.db.Find(&containers).Error; err != nil {
		return nil, fmt.Errorf("查询容器列表失败: %w", err)
	}

	stats.TotalContainers = len(containers)
	for _, ct := range containers {
		switch ct.Status {
		case models.ContainerStatusActive:
			stats.ActiveContainers++
		case models.ContainerStatusStopped:
			stats.StoppedContainers++
		case models.ContainerStatusExpired:
			stats.ExpiredContainers++
		}

		if ct.BandwidthLimit != nil {
			stats.LimitedContainers++
		}
		stats.TotalUsedBytes += ct.BandwidthUsed
	}

	system, err := ds.getSystemStats()
	if err != nil {
		// 系统指标获取失败不影响业务统计
		return stats, nil
	}
	stats.System = *system

	return stats, nil
}

// getSystemStats 获取宿主机资源状态
func (ds *DashboardService) getSystemStats() (*models.SystemStats, error) {
	var sys models.SystemStats

	// 获取CPU使用率
	cpuPercent, err := cpu.Percent(time.Second, false)
	if err != nil {
		return nil, fmt.Errorf("获取CPU使用率失败: %w", err)
	}
	if len(cpuPercent) > 0 {
		sys.CPUPercent = cpuPercent[0]
	}

	// 获取内存信息
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("获取内存信息失败: %w", err)
	}
	sys.MemoryTotal = memInfo.Total
	sys.MemoryUsed = memInfo.Used

	// 获取磁盘信息 (根目录)
	diskInfo, err := disk.Usage("/")
	if err != nil {
		return nil, fmt.Errorf("获取磁盘信息失败: %w", err)
	}
	sys.DiskTotal = diskInfo.Total
	sys.DiskUsed = diskInfo.Used

	uptime, err := host.Uptime()
	if err != nil {
		return nil, fmt.Errorf("获取运行时长失败: %w", err)
	}
	sys.Uptime = uptime

	return &sys, nil
}
