package repository

import (
	"fmt"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"

	"gorm.io/gorm"
)

// AuditRepository 审计日志存取
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建审计日志仓库
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create 追加一条审计日志
func (ar *AuditRepository) Create(containerID *string, action models.AuditAction, details string) error {
	record := &models.AuditLog{
		ContainerID: containerID,
		Action:      action,
		Details:     details,
		Timestamp:   time.Now(),
	}

	if err := ar.db.Create(record).Error; err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}
	return nil
}

// FindAll 分页查询审计日志，按时间倒序
func (ar *AuditRepository) FindAll(limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var logs []models.AuditLog
	if err := ar.db.Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询审计日志失败: %w", err)
	}
	return logs, nil
}

// FindByContainer 查询容器相关的审计日志
func (ar *AuditRepository) FindByContainer(containerID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var logs []models.AuditLog
	if err := ar.db.Where("container_id = ?", containerID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询审计日志失败: %w", err)
	}
	return logs, nil
}

// FindByAction 按动作类型分页查询审计日志
func (ar *AuditRepository) FindByAction(action models.AuditAction, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var logs []models.AuditLog
	if err := ar.db.Where("action = ?", action).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询审计日志失败: %w", err)
	}
	return logs, nil
}

// CountAction 统计指定动作类型的日志条数
func (ar *AuditRepository) CountAction(action models.AuditAction) (int64, error) {
	var count int64
	if err := ar.db.Model(&models.AuditLog{}).Where("action = ?", action).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计审计日志失败: %w", err)
	}
	return count, nil
}

// CountByAction 按动作类型统计日志条数
func (ar *AuditRepository) CountByAction() (map[models.AuditAction]int64, error) {
	var rows []struct {
		Action models.AuditAction
		Total  int64
	}
	if err := ar.db.Model(&models.AuditLog{}).
		Select("action, COUNT(*) AS total").
		Group("action").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("统计审计日志失败: %w", err)
	}

	counts := make(map[models.AuditAction]int64, len(rows))
	for _, row := range rows {
		counts[row.Action] = row.Total
	}
	return counts, nil
}

// Count 统计审计日志总数
func (ar *AuditRepository) Count() (int64, error) {
	var count int64
	if err := ar.db.Model(&models.AuditLog{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计审计日志失败: %w", err)
	}
	return count, nil
}

// DeleteOldLogs 清理指定时间之前的审计日志，返回删除行数
func (ar *AuditRepository) DeleteOldLogs(before time.Time) (int64, error) {
	result := ar.db.Where("timestamp < ?", before).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理审计日志失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
