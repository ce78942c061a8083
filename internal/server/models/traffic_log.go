package models

import "time"

// TrafficLog 单次采样的流量增量记录
type TrafficLog struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ContainerID string    `json:"container_id" gorm:"not null;size:64;index:idx_traffic_container_time"`
	RxBytes     int64     `json:"rx_bytes" gorm:"not null"`
	TxBytes     int64     `json:"tx_bytes" gorm:"not null"`
	TotalBytes  int64     `json:"total_bytes" gorm:"not null"`
	Timestamp   time.Time `json:"timestamp" gorm:"not null;index:idx_traffic_container_time"`
}
