package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/repository"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/config"

	"github.com/robfig/cron/v3"
)

// SchedulerService 定时任务调度器
// 负责流量重置、到期停止和日志清理
type SchedulerService struct {
	cron           *cron.Cron
	runtime        ContainerRuntime
	containerRepo  *repository.ContainerRepository
	trafficRepo    *repository.TrafficRepository
	auditRepo      *repository.AuditRepository
	trafficService *TrafficService

	trafficRetention time.Duration
	auditRetention   time.Duration
}

// NewSchedulerService 创建定时任务调度器
func NewSchedulerService(
	runtime ContainerRuntime,
	containerRepo *repository.ContainerRepository,
	trafficRepo *repository.TrafficRepository,
	auditRepo *repository.AuditRepository,
	trafficService *TrafficService,
	cfg *config.Config,
) *SchedulerService {
	return &SchedulerService{
		cron:             cron.New(cron.WithSeconds()),
		runtime:          runtime,
		containerRepo:    containerRepo,
		trafficRepo:      trafficRepo,
		auditRepo:        auditRepo,
		trafficService:   trafficService,
		trafficRetention: time.Duration(cfg.Traffic.TrafficRetentionDays) * 24 * time.Hour,
		auditRetention:   time.Duration(cfg.Traffic.AuditRetentionDays) * 24 * time.Hour,
	}
}

// Start 启动定时任务调度器
func (ss *SchedulerService) Start(ctx context.Context) error {
	fmt.Println("🚀 [定时调度器] 正在启动定时任务...")

	// 1. 每小时检查流量重置
	_, err := ss.cron.AddFunc("0 0 * * * *", func() {
		fmt.Printf("🔄 [流量重置] 开始检查流量重置 - %s\n", time.Now().Format("15:04:05"))
		if err := ss.CheckBandwidthReset(); err != nil {
			fmt.Printf("❌ [流量重置] 检查失败: %v\n", err)
		} else {
			fmt.Printf("✅ [流量重置] 检查完成 - %s\n", time.Now().Format("15:04:05"))
		}
	})
	if err != nil {
		return fmt.Errorf("添加流量重置任务失败: %w", err)
	}

	// 2. 每小时检查容器到期
	_, err = ss.cron.AddFunc("0 0 * * * *", func() {
		fmt.Printf("⏰ [到期检查] 开始检查容器到期 - %s\n", time.Now().Format("15:04:05"))
		if err := ss.CheckExpiredContainers(ctx); err != nil {
			fmt.Printf("❌ [到期检查] 检查失败: %v\n", err)
		} else {
			fmt.Printf("✅ [到期检查] 检查完成 - %s\n", time.Now().Format("15:04:05"))
		}
	})
	if err != nil {
		return fmt.Errorf("添加到期检查任务失败: %w", err)
	}

	// 3. 每天凌晨清理过期日志
	_, err = ss.cron.AddFunc("0 30 3 * * *", func() {
		fmt.Printf("🧹 [数据维护] 开始清理过期日志 - %s\n", time.Now().Format("15:04:05"))
		if err := ss.PruneOldLogs(); err != nil {
			fmt.Printf("❌ [数据维护] 清理失败: %v\n", err)
		} else {
			fmt.Printf("✅ [数据维护] 清理完成 - %s\n", time.Now().Format("15:04:05"))
		}
	})
	if err != nil {
		return fmt.Errorf("添加数据维护任务失败: %w", err)
	}

	ss.cron.Start()
	fmt.Println("✅ [定时调度器] 定时任务调度器已启动")
	fmt.Println("📋 [定时调度器] 任务列表:")
	fmt.Println("   • 流量重置检查: 每小时")
	fmt.Println("   • 容器到期检查: 每小时")
	fmt.Println("   • 过期日志清理: 每天 03:30")

	return nil
}

// Stop 停止定时任务调度器
func (ss *SchedulerService) Stop() {
	fmt.Println("🛑 [定时调度器] 正在停止定时任务...")
	ss.cron.Stop()
	fmt.Println("✅ [定时调度器] 定时任务调度器已停止")
}

// CheckBandwidthReset 遍历容器执行到期的流量重置，单个容器失败不影响其他容器
func (ss *SchedulerService) CheckBandwidthReset() error {
	containers, err := ss.containerRepo.FindAll()
	if err != nil {
		return fmt.Errorf("查询容器列表失败: %w", err)
	}

	now := time.Now()
	for _, ct := range containers {
		if !shouldResetBandwidth(ct.LastResetAt, ct.ResetDay, now) {
			continue
		}

		details := fmt.Sprintf("Automatic bandwidth reset on day %d", ct.ResetDay)
		if err := ss.trafficService.resetTraffic(ct.ID, details); err != nil {
			fmt.Printf("❌ [流量重置] 容器 %s 重置失败: %v\n", ct.Name, err)
			continue
		}

		fmt.Printf("🔄 [流量重置] 容器 %s 流量已重置 (重置日: %d)\n", ct.Name, ct.ResetDay)
	}

	return nil
}

// CheckExpiredContainers 停止并标记已到期的容器
// 停止失败时保持原状态，等下一轮重试
func (ss *SchedulerService) CheckExpiredContainers(ctx context.Context) error {
	containers, err := ss.containerRepo.FindAll()
	if err != nil {
		return fmt.Errorf("查询容器列表失败: %w", err)
	}

	now := time.Now()
	for _, ct := range containers {
		if ct.ExpireAt == nil || ct.ExpireAt.After(now) || ct.Status == models.ContainerStatusExpired {
			continue
		}

		if ss.runtime.IsContainerRunning(ctx, ct.ID) {
			if err := ss.runtime.StopContainer(ctx, ct.ID); err != nil {
				fmt.Printf("❌ [到期检查] 停止容器 %s 失败，下一轮重试: %v\n", ct.Name, err)
				continue
			}
		}

		if err := ss.containerRepo.UpdateStatus(ct.ID, models.ContainerStatusExpired); err != nil {
			fmt.Printf("❌ [到期检查] 更新容器 %s 状态失败: %v\n", ct.Name, err)
			continue
		}

		details := fmt.Sprintf("Container expired at %s", ct.ExpireAt.Format(time.RFC3339))
		if err := ss.auditRepo.Create(&ct.ID, models.AuditActionExpired, details); err != nil {
			fmt.Printf("⚠️  [到期检查] 写入审计日志失败: %v\n", err)
		}

		fmt.Printf("⏰ [到期检查] 容器 %s 已到期并停止\n", ct.Name)
	}

	return nil
}

// PruneOldLogs 清理超出保留期的流量和审计日志
func (ss *SchedulerService) PruneOldLogs() error {
	now := time.Now()

	trafficDeleted, err := ss.trafficRepo.DeleteOldLogs(now.Add(-ss.trafficRetention))
	if err != nil {
		return err
	}

	auditDeleted, err := ss.auditRepo.DeleteOldLogs(now.Add(-ss.auditRetention))
	if err != nil {
		return err
	}

	fmt.Printf("🧹 [数据维护] 已清理流量日志 %d 条，审计日志 %d 条\n", trafficDeleted, auditDeleted)
	return nil
}

// shouldResetBandwidth 判断是否到达流量重置时间
// 规则：从未重置过的立即重置；当月重置日当天且上次重置不在当天的重置；
// 日历月份推进后，当日达到重置日的重置。
// 重置日超过当月天数时按当月最后一天计算（如2月的31号）。
func shouldResetBandwidth(lastResetAt *time.Time, resetDay int, now time.Time) bool {
	if lastResetAt == nil {
		return true
	}

	last := *lastResetAt
	effectiveDay := resetDay
	if max := daysInMonth(now); effectiveDay > max {
		effectiveDay = max
	}

	if now.Day() == effectiveDay && last.Day() != effectiveDay {
		return true
	}

	monthAdvanced := now.Year() > last.Year() ||
		(now.Year() == last.Year() && now.Month() > last.Month())
	if monthAdvanced && now.Day() >= effectiveDay {
		return true
	}

	return false
}

// daysInMonth 当月天数
func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
