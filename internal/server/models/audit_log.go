package models

import "time"

// AuditAction 审计动作枚举
type AuditAction string

const (
	AuditActionStart         AuditAction = "start"
	AuditActionStop          AuditAction = "stop"
	AuditActionReset         AuditAction = "reset"
	AuditActionLimitExceeded AuditAction = "limit_exceeded"
	AuditActionExpired       AuditAction = "expired"
	AuditActionConfigUpdate  AuditAction = "config_update"
	AuditActionDelete        AuditAction = "delete"
)

// AuditLog 审计日志，只追加不修改
type AuditLog struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	ContainerID *string     `json:"container_id" gorm:"size:64;index"` // 系统级事件为NULL
	Action      AuditAction `json:"action" gorm:"not null;size:32;index"`
	Details     string      `json:"details" gorm:"size:1000"`
	Timestamp   time.Time   `json:"timestamp" gorm:"not null;index:idx_audit_time,sort:desc"`
}
