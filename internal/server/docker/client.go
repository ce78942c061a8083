package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/config"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Client Docker运行时适配器
type Client struct {
	cli               *client.Client
	monitorLabel      string
	selfContainerID   string
	selfContainerName string
}

// NewClient 创建Docker客户端
func NewClient(cfg *config.Config) (*Client, error) {
	host := cfg.Docker.Socket
	if !strings.Contains(host, "://") {
		host = "unix://" + host
	}

	cli, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("创建Docker客户端失败: %w", err)
	}

	return &Client{
		cli:               cli,
		monitorLabel:      cfg.Docker.MonitorLabel,
		selfContainerID:   cfg.Docker.SelfContainerID,
		selfContainerName: cfg.Docker.SelfContainerName,
	}, nil
}

// ListMonitoredContainers 列出所有被监控的容器（含已停止的）
// 排除自身容器和监控标签显式设为 false/0 的容器
func (c *Client) ListMonitoredContainers(ctx context.Context) ([]types.Container, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("获取容器列表失败: %w", err)
	}

	monitored := make([]types.Container, 0, len(containers))
	for _, ct := range containers {
		if c.isSelfContainer(ct) {
			continue
		}

		if labelValue, ok := ct.Labels[c.monitorLabel]; ok {
			normalized := strings.ToLower(labelValue)
			if normalized == "false" || normalized == "0" {
				continue
			}
		}

		monitored = append(monitored, ct)
	}

	return monitored, nil
}

// GetContainerStats 获取容器实时状态快照
// 容器未运行时返回 (nil, nil)，数据异常返回错误，调用方跳过本轮采样
func (c *Client) GetContainerStats(ctx context.Context, containerID string) (*models.ContainerStats, error) {
	info, err := c.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("查询容器信息失败: %w", err)
	}

	if info.State == nil || !info.State.Running {
		return nil, nil
	}

	resp, err := c.cli.ContainerStatsOneShot(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("获取容器统计失败: %w", err)
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("解析容器统计失败: %w", err)
	}

	// 累计所有网络接口的收发字节数
	var rxBytes, txBytes int64
	for _, net := range stats.Networks {
		rxBytes += int64(net.RxBytes)
		txBytes += int64(net.TxBytes)
	}

	return &models.ContainerStats{
		ID:          containerID,
		Name:        strings.TrimPrefix(info.Name, "/"),
		Status:      info.State.Status,
		RxBytes:     rxBytes,
		TxBytes:     txBytes,
		TotalBytes:  rxBytes + txBytes,
		MemoryUsage: int64(stats.MemoryStats.Usage),
		MemoryLimit: int64(stats.MemoryStats.Limit),
	}, nil
}

// IsContainerRunning 查询容器是否在运行，任何查询失败都视为未运行
func (c *Client) IsContainerRunning(ctx context.Context, containerID string) bool {
	info, err := c.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return false
	}
	return info.State != nil && info.State.Running
}

// StartContainer 启动容器，已启动时为幂等成功（Docker返回304，客户端不报错）
func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("启动容器失败: %w", err)
	}
	log.Printf("容器 %s 已启动", shortID(containerID))
	return nil
}

// StopContainer 停止容器，已停止时为幂等成功
func (c *Client) StopContainer(ctx context.Context, containerID string) error {
	if err := c.cli.ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		return fmt.Errorf("停止容器失败: %w", err)
	}
	log.Printf("容器 %s 已停止", shortID(containerID))
	return nil
}

// RemoveContainer 删除容器
func (c *Client) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	if err := c.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force}); err != nil {
		return fmt.Errorf("删除容器失败: %w", err)
	}
	log.Printf("容器 %s 已删除", shortID(containerID))
	return nil
}

// Close 关闭Docker客户端
func (c *Client) Close() error {
	return c.cli.Close()
}

// isSelfContainer 判断是否为监控程序自身容器，避免自己限制自己
func (c *Client) isSelfContainer(ct types.Container) bool {
	if c.selfContainerName != "" {
		for _, name := range ct.Names {
			if strings.TrimPrefix(name, "/") == c.selfContainerName {
				return true
			}
		}
	}

	if c.selfContainerID != "" {
		if ct.ID == c.selfContainerID || strings.HasPrefix(ct.ID, c.selfContainerID) {
			return true
		}
	}

	return false
}

// shortID 截取容器ID前12位用于日志
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// ContainerName 从Docker容器信息中取展示名称
func ContainerName(ct types.Container) string {
	if len(ct.Names) > 0 {
		return strings.TrimPrefix(ct.Names[0], "/")
	}
	return shortID(ct.ID)
}
