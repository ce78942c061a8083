package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docker/docker/api/types"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/database"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/repository"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/services"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	return db
}

// stubRuntime 测试用运行时桩，stats中有记录的容器视为运行中
type stubRuntime struct {
	stats map[string]*models.ContainerStats
}

func (s *stubRuntime) ListMonitoredContainers(ctx context.Context) ([]types.Container, error) {
	return nil, nil
}

func (s *stubRuntime) GetContainerStats(ctx context.Context, containerID string) (*models.ContainerStats, error) {
	return s.stats[containerID], nil
}

func (s *stubRuntime) IsContainerRunning(ctx context.Context, containerID string) bool {
	return s.stats[containerID] != nil
}

func (s *stubRuntime) StartContainer(ctx context.Context, containerID string) error { return nil }
func (s *stubRuntime) StopContainer(ctx context.Context, containerID string) error  { return nil }
func (s *stubRuntime) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	return nil
}

func newPublicRouter(t *testing.T) (*gin.Engine, *repository.ContainerRepository, *stubRuntime) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	containerRepo := repository.NewContainerRepository(db)
	trafficRepo := repository.NewTrafficRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	cfg := &config.Config{}
	cfg.Traffic.CollectInterval = 1000
	cfg.Traffic.PersistInterval = 30000
	cfg.Traffic.SyncInterval = 300

	runtime := &stubRuntime{stats: make(map[string]*models.ContainerStats)}
	trafficService := services.NewTrafficService(runtime, containerRepo, trafficRepo, auditRepo, nil, cfg)
	handler := NewPublicHandler(runtime, containerRepo, trafficService)

	r := gin.New()
	r.GET("/api/public/share/:token", handler.Share)

	return r, containerRepo, runtime
}

func TestPublicShareReturnsUsage(t *testing.T) {
	r, containerRepo, runtime := newPublicRouter(t)
	runtime.stats["c1"] = &models.ContainerStats{
		ID: "c1", Name: "web",
		RxBytes: 100, TxBytes: 200,
		MemoryUsage: 12345, MemoryLimit: 67890,
	}

	limit := int64(10737418240)
	require.NoError(t, containerRepo.Create(&models.Container{
		ID: "c1", Name: "web", ResetDay: 5,
		BandwidthLimit: &limit, BandwidthUsed: 1048576,
		Status: models.ContainerStatusActive,
	}))
	token, err := containerRepo.GenerateShareToken("c1", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/public/share/"+token, nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "web", body.Data["name"])
	assert.Equal(t, float64(1048576), body.Data["used_bytes"])
	assert.Equal(t, float64(10737418240), body.Data["limit_bytes"])
	assert.Equal(t, float64(5), body.Data["reset_day"])
	// 不泄露容器配置细节
	assert.NotContains(t, body.Data, "share_token")
	assert.NotContains(t, body.Data, "id")

	live, ok := body.Data["live"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(12345), live["memory_usage"])
}

func TestPublicShareExpiredTokenReturnsGone(t *testing.T) {
	r, containerRepo, _ := newPublicRouter(t)

	require.NoError(t, containerRepo.Create(&models.Container{
		ID: "c1", Name: "web", ResetDay: 1, Status: models.ContainerStatusActive,
	}))
	past := time.Now().Add(-time.Hour)
	token, err := containerRepo.GenerateShareToken("c1", &past)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/public/share/"+token, nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGone, w.Code)
}

func TestPublicShareUnknownTokenReturnsNotFound(t *testing.T) {
	r, _, _ := newPublicRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/public/share/nope", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
