package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/docker"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/repository"

	"golang.org/x/sync/singleflight"
)

// SyncService 容器发现同步服务
// 把运行时可见的容器与数据库记录对齐，新容器默认不限流量
type SyncService struct {
	runtime       ContainerRuntime
	containerRepo *repository.ContainerRepository
	auditRepo     *repository.AuditRepository

	group  singleflight.Group
	passMu sync.Mutex // 串行化同步轮，避免并发创建同一容器记录
}

// NewSyncService 创建容器发现同步服务
func NewSyncService(
	runtime ContainerRuntime,
	containerRepo *repository.ContainerRepository,
	auditRepo *repository.AuditRepository,
) *SyncService {
	return &SyncService{
		runtime:       runtime,
		containerRepo: containerRepo,
		auditRepo:     auditRepo,
	}
}

// Sync 执行一轮同步；已有同步在途时共享其结果而不再发起新轮
func (ss *SyncService) Sync(ctx context.Context) error {
	_, err, _ := ss.group.Do("sync", func() (interface{}, error) {
		return nil, ss.runPass(ctx)
	})
	return err
}

// ForceSync 强制同步：等待在途的同步轮结束后，始终自己再执行一轮
func (ss *SyncService) ForceSync(ctx context.Context) error {
	return ss.runPass(ctx)
}

// runPass 单轮同步：列出运行时容器，为数据库中不存在的创建记录
func (ss *SyncService) runPass(ctx context.Context) error {
	ss.passMu.Lock()
	defer ss.passMu.Unlock()

	runtimeContainers, err := ss.runtime.ListMonitoredContainers(ctx)
	if err != nil {
		return fmt.Errorf("获取运行时容器列表失败: %w", err)
	}

	dbContainers, err := ss.containerRepo.FindAll()
	if err != nil {
		return fmt.Errorf("查询容器记录失败: %w", err)
	}

	known := make(map[string]struct{}, len(dbContainers))
	for _, ct := range dbContainers {
		known[ct.ID] = struct{}{}
	}

	for _, rc := range runtimeContainers {
		if _, ok := known[rc.ID]; ok {
			continue
		}

		name := docker.ContainerName(rc)
		status := models.ContainerStatusStopped
		if rc.State == "running" {
			status = models.ContainerStatusActive
		}

		record := &models.Container{
			ID:       rc.ID,
			Name:     name,
			ResetDay: 1,
			Status:   status,
		}

		if err := ss.containerRepo.Create(record); err != nil {
			log.Printf("创建容器记录 %s 失败: %v", name, err)
			continue
		}

		if err := ss.auditRepo.Create(&record.ID, models.AuditActionStart,
			"Container discovered and added to monitoring"); err != nil {
			log.Printf("写入发现审计日志失败: %v", err)
		}

		log.Printf("新容器加入监控: %s (%s)", name, rc.ID)
	}

	return nil
}
