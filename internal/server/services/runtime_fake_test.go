package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"

	"github.com/docker/docker/api/types"
)

// fakeRuntime 测试用的容器运行时，在内存中模拟容器状态
type fakeRuntime struct {
	mu         sync.Mutex
	containers map[string]*fakeContainer
	stopErr    error
	statsErr   error

	stopCalls []string
}

type fakeContainer struct {
	name    string
	running bool
	rxBytes int64
	txBytes int64
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: make(map[string]*fakeContainer)}
}

func (f *fakeRuntime) addContainer(id, name string, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers[id] = &fakeContainer{name: name, running: running}
}

func (f *fakeRuntime) setCounters(id string, rx, tx int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ct, ok := f.containers[id]; ok {
		ct.rxBytes = rx
		ct.txBytes = tx
	}
}

func (f *fakeRuntime) ListMonitoredContainers(ctx context.Context) ([]types.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []types.Container
	for id, ct := range f.containers {
		state := "exited"
		if ct.running {
			state = "running"
		}
		result = append(result, types.Container{
			ID:    id,
			Names: []string{"/" + ct.name},
			State: state,
		})
	}
	return result, nil
}

func (f *fakeRuntime) GetContainerStats(ctx context.Context, containerID string) (*models.ContainerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.statsErr != nil {
		return nil, f.statsErr
	}

	ct, ok := f.containers[containerID]
	if !ok {
		return nil, fmt.Errorf("容器 %s 不存在", containerID)
	}
	if !ct.running {
		return nil, nil
	}

	return &models.ContainerStats{
		ID:         containerID,
		Name:       ct.name,
		RxBytes:    ct.rxBytes,
		TxBytes:    ct.txBytes,
		TotalBytes: ct.rxBytes + ct.txBytes,
	}, nil
}

func (f *fakeRuntime) IsContainerRunning(ctx context.Context, containerID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	ct, ok := f.containers[containerID]
	return ok && ct.running
}

func (f *fakeRuntime) StartContainer(ctx context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ct, ok := f.containers[containerID]
	if !ok {
		return fmt.Errorf("容器 %s 不存在", containerID)
	}
	ct.running = true
	return nil
}

func (f *fakeRuntime) StopContainer(ctx context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopCalls = append(f.stopCalls, containerID)
	if f.stopErr != nil {
		return f.stopErr
	}

	ct, ok := f.containers[containerID]
	if !ok {
		return fmt.Errorf("容器 %s 不存在", containerID)
	}
	ct.running = false
	return nil
}

func (f *fakeRuntime) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.containers, containerID)
	return nil
}
