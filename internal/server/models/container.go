package models

import (
	"time"
)

// Container 被监控的Docker容器
type Container struct {
	ID             string          `json:"id" gorm:"primaryKey;size:64"` // Docker容器ID
	Name           string          `json:"name" gorm:"not null;size:200"`
	BandwidthLimit *int64          `json:"bandwidth_limit"` // 月度流量配额（字节），NULL表示不限制
	BandwidthUsed  int64           `json:"bandwidth_used" gorm:"default:0"`
	BandwidthExtra int64           `json:"bandwidth_extra" gorm:"default:0"` // 临时追加配额，重置时清零
	ResetDay       int             `json:"reset_day" gorm:"default:1"`       // 每月重置日 1-31
	LastResetAt    *time.Time      `json:"last_reset_at"`
	ExpireAt       *time.Time      `json:"expire_at"`
	Status         ContainerStatus `json:"status" gorm:"default:'active';size:20"`
	ShareToken     *string         `json:"share_token" gorm:"uniqueIndex;size:64"`
	ShareTokenExp  *time.Time      `json:"share_token_expire"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ContainerStatus 容器状态枚举
type ContainerStatus string

const (
	ContainerStatusActive  ContainerStatus = "active"  // 运行中
	ContainerStatusStopped ContainerStatus = "stopped" // 已停止
	ContainerStatusExpired ContainerStatus = "expired" // 已到期
)

func (s ContainerStatus) String() string {
	return string(s)
}

// IsValid 校验状态取值
func (s ContainerStatus) IsValid() bool {
	switch s {
	case ContainerStatusActive, ContainerStatusStopped, ContainerStatusExpired:
		return true
	}
	return false
}

// TotalAllowance 配额总量（基础配额+追加配额），无限制时返回false
func (c *Container) TotalAllowance() (int64, bool) {
	if c.BandwidthLimit == nil {
		return 0, false
	}
	return *c.BandwidthLimit + c.BandwidthExtra, true
}

// ContainerUpdateRequest 容器配置更新请求
// JSON里缺失的字段不更新；指针无法区分缺失和null，
// 置空配额或到期时间需用对应的clear标记
type ContainerUpdateRequest struct {
	BandwidthLimit      *int64     `json:"bandwidth_limit"`
	BandwidthExtra      *int64     `json:"bandwidth_extra"`
	ResetDay            *int       `json:"reset_day"`
	ExpireAt            *time.Time `json:"expire_at"`
	ClearBandwidthLimit bool       `json:"clear_bandwidth_limit"` // 清除配额，恢复不限量
	ClearExpireAt       bool       `json:"clear_expire_at"`       // 清除到期时间
}

// ContainerStats 容器实时状态快照（来自Docker运行时）
type ContainerStats struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	RxBytes     int64  `json:"rx_bytes"` // 所有网络接口累计接收字节数
	TxBytes     int64  `json:"tx_bytes"` // 所有网络接口累计发送字节数
	TotalBytes  int64  `json:"total_bytes"`
	MemoryUsage int64  `json:"memory_usage"`
	MemoryLimit int64  `json:"memory_limit"`
}
