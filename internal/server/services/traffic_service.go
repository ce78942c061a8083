package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/repository"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/config"
)

// trafficCacheEntry 单个容器的采样缓存
// 累计用量领先于数据库，数据库按持久化周期追平
type trafficCacheEntry struct {
	lastRxBytes      int64
	lastTxBytes      int64
	accumulatedBytes int64
	lastCheck        time.Time
}

// TrafficService 流量采集服务
// 负责周期采样、增量计算、配额检查和批量持久化
type TrafficService struct {
	runtime       ContainerRuntime
	containerRepo *repository.ContainerRepository
	trafficRepo   *repository.TrafficRepository
	auditRepo     *repository.AuditRepository
	syncService   *SyncService

	collectInterval time.Duration
	persistInterval time.Duration
	syncInterval    time.Duration

	mu      sync.Mutex // 保护 cache 和 pending
	cache   map[string]*trafficCacheEntry
	pending []models.TrafficLog

	collecting atomic.Bool // 采样轮在途标记，防止慢轮叠加

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewTrafficService 创建流量采集服务
func NewTrafficService(
	runtime ContainerRuntime,
	containerRepo *repository.ContainerRepository,
	trafficRepo *repository.TrafficRepository,
	auditRepo *repository.AuditRepository,
	syncService *SyncService,
	cfg *config.Config,
) *TrafficService {
	return &TrafficService{
		runtime:         runtime,
		containerRepo:   containerRepo,
		trafficRepo:     trafficRepo,
		auditRepo:       auditRepo,
		syncService:     syncService,
		collectInterval: time.Duration(cfg.Traffic.CollectInterval) * time.Millisecond,
		persistInterval: time.Duration(cfg.Traffic.PersistInterval) * time.Millisecond,
		syncInterval:    time.Duration(cfg.Traffic.SyncInterval) * time.Second,
		cache:           make(map[string]*trafficCacheEntry),
		stop:            make(chan struct{}),
	}
}

// Start 启动采集：先同步一次容器列表，再启动采样、持久化、发现三个后台任务
func (ts *TrafficService) Start(ctx context.Context) error {
	log.Println("正在启动流量采集服务...")

	if err := ts.syncService.Sync(ctx); err != nil {
		log.Printf("启动时同步容器列表失败: %v", err)
	}

	ts.wg.Add(3)

	go func() {
		defer ts.wg.Done()
		ticker := time.NewTicker(ts.collectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ts.collectTraffic(ctx)
			case <-ts.stop:
				return
			}
		}
	}()

	go func() {
		defer ts.wg.Done()
		ticker := time.NewTicker(ts.persistInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ts.persistTraffic()
			case <-ts.stop:
				return
			}
		}
	}()

	go func() {
		defer ts.wg.Done()
		ticker := time.NewTicker(ts.syncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := ts.syncService.Sync(ctx); err != nil {
					log.Printf("定时同步容器列表失败: %v", err)
				}
			case <-ts.stop:
				return
			}
		}
	}()

	log.Printf("流量采集服务已启动 (采集: %v, 持久化: %v, 发现: %v)",
		ts.collectInterval, ts.persistInterval, ts.syncInterval)
	return nil
}

// Stop 停止采集并落盘剩余数据
func (ts *TrafficService) Stop() {
	close(ts.stop)
	ts.wg.Wait()

	// 关闭前把待写队列落盘
	ts.persistTraffic()
	log.Println("流量采集服务已停止")
}

// RefreshNow 强制刷新容器列表（等待在途同步完成后自己再跑一轮）
func (ts *TrafficService) RefreshNow(ctx context.Context) error {
	return ts.syncService.ForceSync(ctx)
}

// collectTraffic 执行一轮采样，上一轮未结束时跳过本轮
func (ts *TrafficService) collectTraffic(ctx context.Context) {
	if !ts.collecting.CompareAndSwap(false, true) {
		return
	}
	defer ts.collecting.Store(false)

	containers, err := ts.containerRepo.FindAll()
	if err != nil {
		log.Printf("查询容器列表失败: %v", err)
		return
	}

	// 每个容器独立采样，单个容器的慢查询不阻塞其他容器
	var wg sync.WaitGroup
	for i := range containers {
		wg.Add(1)
		go func(ct models.Container) {
			defer wg.Done()
			ts.sampleContainer(ctx, ct)
		}(containers[i])
	}
	wg.Wait()
}

// sampleContainer 采样单个容器并检查配额
func (ts *TrafficService) sampleContainer(ctx context.Context, ct models.Container) {
	isRunning := ts.runtime.IsContainerRunning(ctx, ct.ID)

	// 自愈：运行状态与数据库不一致时修正（到期状态不回写）
	if ct.Status != models.ContainerStatusExpired {
		desired := models.ContainerStatusStopped
		if isRunning {
			desired = models.ContainerStatusActive
		}
		if ct.Status != desired {
			if err := ts.containerRepo.UpdateStatus(ct.ID, desired); err != nil {
				log.Printf("修正容器 %s 状态失败: %v", ct.Name, err)
			} else {
				ct.Status = desired
			}
		}
	}

	if !isRunning {
		return
	}

	stats, err := ts.runtime.GetContainerStats(ctx, ct.ID)
	if err != nil {
		log.Printf("采集容器 %s 流量失败: %v", ct.Name, err)
		return
	}
	if stats == nil {
		return
	}

	now := time.Now()

	ts.mu.Lock()
	entry, ok := ts.cache[ct.ID]
	if !ok {
		// 首次观测只建立基线，不产生增量
		ts.cache[ct.ID] = &trafficCacheEntry{
			lastRxBytes:      stats.RxBytes,
			lastTxBytes:      stats.TxBytes,
			accumulatedBytes: ct.BandwidthUsed,
			lastCheck:        now,
		}
		ts.mu.Unlock()
		return
	}

	rxDelta := stats.RxBytes - entry.lastRxBytes
	txDelta := stats.TxBytes - entry.lastTxBytes

	// 计数器回绕（容器重启或计数器重置）：取当前绝对值作为增量
	// 宁可少算也不能算成负数或重复计算
	if rxDelta < 0 || txDelta < 0 {
		log.Printf("容器 %s 网络计数器已重置，按当前值重新计算", ct.Name)
		rxDelta = stats.RxBytes
		txDelta = stats.TxBytes
	}

	totalDelta := rxDelta + txDelta
	entry.accumulatedBytes += totalDelta
	entry.lastRxBytes = stats.RxBytes
	entry.lastTxBytes = stats.TxBytes
	entry.lastCheck = now

	ts.pending = append(ts.pending, models.TrafficLog{
		ContainerID: ct.ID,
		RxBytes:     rxDelta,
		TxBytes:     txDelta,
		TotalBytes:  totalDelta,
		Timestamp:   now,
	})

	accumulated := entry.accumulatedBytes
	ts.mu.Unlock()

	ts.checkLimit(ctx, &ct, accumulated)
}

// checkLimit 配额检查，超限时停止容器
func (ts *TrafficService) checkLimit(ctx context.Context, ct *models.Container, currentUsage int64) {
	allowance, limited := ct.TotalAllowance()
	if !limited {
		return
	}

	if currentUsage <= allowance || ct.Status != models.ContainerStatusActive {
		return
	}

	// 停止失败只记日志，用量仍超限，下一轮采样会重试
	if err := ts.runtime.StopContainer(ctx, ct.ID); err != nil {
		log.Printf("停止超限容器 %s 失败: %v", ct.Name, err)
		return
	}

	if err := ts.containerRepo.UpdateStatus(ct.ID, models.ContainerStatusStopped); err != nil {
		log.Printf("更新容器 %s 状态失败: %v", ct.Name, err)
	}

	details, _ := json.Marshal(map[string]int64{
		"used":  currentUsage,
		"limit": allowance,
	})
	if err := ts.auditRepo.Create(&ct.ID, models.AuditActionLimitExceeded, string(details)); err != nil {
		log.Printf("写入超限审计日志失败: %v", err)
	}

	log.Printf("容器 %s 流量超限已停止 (%d/%d)", ct.Name, currentUsage, allowance)
}

// persistTraffic 把待写队列批量落盘，并用缓存值覆盖数据库中的已用流量
func (ts *TrafficService) persistTraffic() {
	ts.mu.Lock()
	if len(ts.pending) == 0 {
		ts.mu.Unlock()
		return
	}

	logs := ts.pending
	ts.pending = nil

	// 记录受影响容器在缓存中的当前累计值，缓存是权威数据
	usageSnapshot := make(map[string]int64)
	for _, l := range logs {
		if entry, ok := ts.cache[l.ContainerID]; ok {
			usageSnapshot[l.ContainerID] = entry.accumulatedBytes
		}
	}
	ts.mu.Unlock()

	if err := ts.trafficRepo.BatchCreate(logs); err != nil {
		log.Printf("持久化流量日志失败: %v", err)

		// 写入失败则放回队列，下个周期重试
		ts.mu.Lock()
		ts.pending = append(logs, ts.pending...)
		ts.mu.Unlock()
		return
	}

	for containerID, accumulated := range usageSnapshot {
		if err := ts.containerRepo.UpdateBandwidthUsed(containerID, accumulated); err != nil {
			log.Printf("更新容器 %s 已用流量失败: %v", containerID, err)
		}
	}

	log.Printf("已持久化 %d 条流量日志", len(logs))
}

// ResetContainerTraffic 手动重置容器流量
func (ts *TrafficService) ResetContainerTraffic(containerID string) error {
	return ts.resetTraffic(containerID, "Bandwidth manually reset")
}

// resetTraffic 重置数据库用量并就地清零缓存累计值
func (ts *TrafficService) resetTraffic(containerID, details string) error {
	if err := ts.containerRepo.ResetBandwidth(containerID); err != nil {
		return err
	}

	ts.mu.Lock()
	if entry, ok := ts.cache[containerID]; ok {
		entry.accumulatedBytes = 0
	}
	ts.mu.Unlock()

	if err := ts.auditRepo.Create(&containerID, models.AuditActionReset, details); err != nil {
		log.Printf("写入重置审计日志失败: %v", err)
	}

	log.Printf("容器 %s 流量已重置", containerID)
	return nil
}

// AccumulatedUsage 读取容器在缓存中的实时累计用量
func (ts *TrafficService) AccumulatedUsage(containerID string) (int64, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.cache[containerID]
	if !ok {
		return 0, false
	}
	return entry.accumulatedBytes, true
}

// PendingCount 待持久化的流量日志条数
func (ts *TrafficService) PendingCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.pending)
}
