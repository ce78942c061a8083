package models

// DashboardStats 仪表盘统计数据
type DashboardStats struct {
	TotalContainers   int   `json:"total_containers"`
	ActiveContainers  int   `json:"active_containers"`
	StoppedContainers int   `json:"stopped_containers"`
	ExpiredContainers int   `json:"expired_containers"`
	LimitedContainers int   `json:"limited_containers"` // 设置了配额的容器数
	TotalUsedBytes    int64 `json:"total_used_bytes"`

	System SystemStats `json:"system"`
}

// SystemStats 宿主机系统状态
type SystemStats struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryTotal uint64  `json:"memory_total"`
	MemoryUsed  uint64  `json:"memory_used"`
	DiskTotal   uint64  `json:"disk_total"`
	DiskUsed    uint64  `json:"disk_used"`
	Uptime      uint64  `json:"uptime"`
}
