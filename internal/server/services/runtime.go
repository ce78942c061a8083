package services

import (
	"context"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"

	"github.com/docker/docker/api/types"
)

// ContainerRuntime 容器运行时契约，由Docker适配器实现
type ContainerRuntime interface {
	// ListMonitoredContainers 列出被监控的容器（排除自身和显式退出监控的）
	ListMonitoredContainers(ctx context.Context) ([]types.Container, error)

	// GetContainerStats 获取实时状态快照，容器未运行时返回 (nil, nil)
	GetContainerStats(ctx context.Context, containerID string) (*models.ContainerStats, error)

	// IsContainerRunning 查询运行状态，查询失败视为未运行
	IsContainerRunning(ctx context.Context, containerID string) bool

	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string) error
	RemoveContainer(ctx context.Context, containerID string, force bool) error
}
