package repository

import (
	"fmt"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"

	"gorm.io/gorm"
)

// TrafficRepository 流量日志存取
type TrafficRepository struct {
	db *gorm.DB
}

// NewTrafficRepository 创建流量日志仓库
func NewTrafficRepository(db *gorm.DB) *TrafficRepository {
	return &TrafficRepository{db: db}
}

// BatchCreate 在单个事务中批量写入流量日志
func (tr *TrafficRepository) BatchCreate(logs []models.TrafficLog) error {
	if len(logs) == 0 {
		return nil
	}

	if err := tr.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(logs, 200).Error
	}); err != nil {
		return fmt.Errorf("批量写入流量日志失败: %w", err)
	}

	return nil
}

// FindByContainer 查询容器最近的流量日志
func (tr *TrafficRepository) FindByContainer(containerID string, limit int) ([]models.TrafficLog, error) {
	if limit <= 0 {
		limit = 100
	}

	var logs []models.TrafficLog
	if err := tr.db.Where("container_id = ?", containerID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询流量日志失败: %w", err)
	}
	return logs, nil
}

// FindByTimeRange 查询容器指定时间段的流量日志
func (tr *TrafficRepository) FindByTimeRange(containerID string, start, end time.Time) ([]models.TrafficLog, error) {
	var logs []models.TrafficLog
	if err := tr.db.Where("container_id = ? AND timestamp BETWEEN ? AND ?", containerID, start, end).
		Order("timestamp ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询流量日志失败: %w", err)
	}
	return logs, nil
}

// DeleteOldLogs 清理指定时间之前的流量日志，返回删除行数
func (tr *TrafficRepository) DeleteOldLogs(before time.Time) (int64, error) {
	result := tr.db.Where("timestamp < ?", before).Delete(&models.TrafficLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理流量日志失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
