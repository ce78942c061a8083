package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/utils"

	"gorm.io/gorm"
)

// ErrContainerNotFound 容器记录不存在
var ErrContainerNotFound = errors.New("容器不存在")

// ContainerRepository 容器记录存取
type ContainerRepository struct {
	db *gorm.DB
}

// NewContainerRepository 创建容器仓库
func NewContainerRepository(db *gorm.DB) *ContainerRepository {
	return &ContainerRepository{db: db}
}

// FindAll 查询全部容器，按创建时间倒序
func (cr *ContainerRepository) FindAll() ([]models.Container, error) {
	var containers []models.Container
	if err := cr.db.Order("created_at DESC").Find(&containers).Error; err != nil {
		return nil, fmt.Errorf("查询容器列表失败: %w", err)
	}
	return containers, nil
}

// FindByID 根据容器ID查询
func (cr *ContainerRepository) FindByID(id string) (*models.Container, error) {
	var container models.Container
	if err := cr.db.Where("id = ?", id).First(&container).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContainerNotFound
		}
		return nil, fmt.Errorf("查询容器失败: %w", err)
	}
	return &container, nil
}

// FindByShareToken 根据分享令牌查询
func (cr *ContainerRepository) FindByShareToken(token string) (*models.Container, error) {
	var container models.Container
	if err := cr.db.Where("share_token = ?", token).First(&container).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContainerNotFound
		}
		return nil, fmt.Errorf("查询容器失败: %w", err)
	}
	return &container, nil
}

// Create 创建容器记录
func (cr *ContainerRepository) Create(container *models.Container) error {
	if err := cr.db.Create(container).Error; err != nil {
		return fmt.Errorf("创建容器记录失败: %w", err)
	}
	return nil
}

// Update 更新容器配置（只更新请求中出现的字段）
func (cr *ContainerRepository) Update(id string, req *models.ContainerUpdateRequest) (*models.Container, error) {
	updates := make(map[string]interface{})

	if req.ClearBandwidthLimit {
		updates["bandwidth_limit"] = nil
	} else if req.BandwidthLimit != nil {
		updates["bandwidth_limit"] = *req.BandwidthLimit
	}
	if req.BandwidthExtra != nil {
		updates["bandwidth_extra"] = *req.BandwidthExtra
	}
	if req.ResetDay != nil {
		if *req.ResetDay < 1 || *req.ResetDay > 31 {
			return nil, errors.New("重置日必须在1-31之间")
		}
		updates["reset_day"] = *req.ResetDay
	}
	if req.ClearExpireAt {
		updates["expire_at"] = nil
	} else if req.ExpireAt != nil {
		updates["expire_at"] = *req.ExpireAt
	}

	if len(updates) > 0 {
		result := cr.db.Model(&models.Container{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("更新容器失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrContainerNotFound
		}
	}

	return cr.FindByID(id)
}

// UpdateBandwidthUsed 覆盖写入已用流量（以内存缓存为准）
func (cr *ContainerRepository) UpdateBandwidthUsed(id string, used int64) error {
	if err := cr.db.Model(&models.Container{}).Where("id = ?", id).
		Update("bandwidth_used", used).Error; err != nil {
		return fmt.Errorf("更新已用流量失败: %w", err)
	}
	return nil
}

// UpdateStatus 更新容器状态
func (cr *ContainerRepository) UpdateStatus(id string, status models.ContainerStatus) error {
	if err := cr.db.Model(&models.Container{}).Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("更新容器状态失败: %w", err)
	}
	return nil
}

// ResetBandwidth 重置流量：已用清零、追加配额清零、记录重置时间
func (cr *ContainerRepository) ResetBandwidth(id string) error {
	updates := map[string]interface{}{
		"bandwidth_used":  0,
		"bandwidth_extra": 0,
		"last_reset_at":   time.Now(),
	}

	if err := cr.db.Model(&models.Container{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("重置流量失败: %w", err)
	}
	return nil
}

// GenerateShareToken 生成并保存分享令牌
func (cr *ContainerRepository) GenerateShareToken(id string, expireAt *time.Time) (string, error) {
	token := utils.GenerateShareToken()

	updates := map[string]interface{}{
		"share_token":     token,
		"share_token_exp": expireAt,
	}

	result := cr.db.Model(&models.Container{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return "", fmt.Errorf("保存分享令牌失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrContainerNotFound
	}

	return token, nil
}

// Delete 删除容器记录
func (cr *ContainerRepository) Delete(id string) error {
	result := cr.db.Where("id = ?", id).Delete(&models.Container{})
	if result.Error != nil {
		return fmt.Errorf("删除容器记录失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrContainerNotFound
	}
	return nil
}

// CountByStatus 按状态统计容器数量
func (cr *ContainerRepository) CountByStatus(status models.ContainerStatus) (int64, error) {
	var count int64
	if err := cr.db.Model(&models.Container{}).Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计容器数量失败: %w", err)
	}
	return count, nil
}
