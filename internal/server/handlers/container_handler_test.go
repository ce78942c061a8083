package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/repository"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/services"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContainerRouter(t *testing.T) (*gin.Engine, *repository.ContainerRepository, *repository.AuditRepository, *stubRuntime) {
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
	syncService := services.NewSyncService(runtime, containerRepo, auditRepo)
	trafficService := services.NewTrafficService(runtime, containerRepo, trafficRepo, auditRepo, syncService, cfg)
	handler := NewContainerHandler(runtime, containerRepo, trafficRepo, auditRepo, trafficService)

	r := gin.New()
	r.GET("/api/containers", handler.List)
	r.POST("/api/containers/refresh", handler.Refresh)
	r.PATCH("/api/containers/:id", handler.Update)
	r.POST("/api/containers/:id/start", handler.Start)
	r.DELETE("/api/containers/:id", handler.Delete)

	return r, containerRepo, auditRepo, runtime
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestContainerUpdateSetsQuota(t *testing.T) {
	r, containerRepo, _, _ := newContainerRouter(t)
	require.NoError(t, containerRepo.Create(&models.Container{
		ID: "c1", Name: "web", ResetDay: 1, Status: models.ContainerStatusActive,
	}))

	w := doJSON(r, http.MethodPatch, "/api/containers/c1",
		`{"bandwidth_limit":10737418240,"reset_day":15}`)
	require.Equal(t, http.StatusOK, w.Code)

	ct, err := containerRepo.FindByID("c1")
	require.NoError(t, err)
	require.NotNil(t, ct.BandwidthLimit)
	assert.Equal(t, int64(10737418240), *ct.BandwidthLimit)
	assert.Equal(t, 15, ct.ResetDay)
}

func TestContainerUpdateClearsQuota(t *testing.T) {
	r, containerRepo, _, _ := newContainerRouter(t)

	limit := int64(1000)
	expire := time.Now().Add(24 * time.Hour)
	require.NoError(t, containerRepo.Create(&models.Container{
		ID: "c1", Name: "web", ResetDay: 1,
		BandwidthLimit: &limit, ExpireAt: &expire,
		Status: models.ContainerStatusActive,
	}))

	w := doJSON(r, http.MethodPatch, "/api/containers/c1",
		`{"clear_bandwidth_limit":true,"clear_expire_at":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	ct, err := containerRepo.FindByID("c1")
	require.NoError(t, err)
	assert.Nil(t, ct.BandwidthLimit)
	assert.Nil(t, ct.ExpireAt)
}

func TestContainerUpdateRejectsBadResetDay(t *testing.T) {
	r, containerRepo, _, _ := newContainerRouter(t)
	require.NoError(t, containerRepo.Create(&models.Container{
		ID: "c1", Name: "web", ResetDay: 1, Status: models.ContainerStatusActive,
	}))

	w := doJSON(r, http.MethodPatch, "/api/containers/c1", `{"reset_day":32}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContainerStartRefusedWhenOverQuota(t *testing.T) {
	r, containerRepo, _, _ := newContainerRouter(t)

	limit := int64(1000)
	require.NoError(t, containerRepo.Create(&models.Container{
		ID: "c1", Name: "web", ResetDay: 1,
		BandwidthLimit: &limit, BandwidthUsed: 1500,
		Status: models.ContainerStatusStopped,
	}))

	w := doJSON(r, http.MethodPost, "/api/containers/c1/start", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestContainerRefreshWritesAuditRecord(t *testing.T) {
	r, _, auditRepo, _ := newContainerRouter(t)

	w := doJSON(r, http.MethodPost, "/api/containers/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)

	logs, err := auditRepo.FindByAction(models.AuditActionReset, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].ContainerID)
	assert.Equal(t, "Manual traffic refresh triggered", logs[0].Details)
}

func TestContainerDeleteRequiresNameConfirmation(t *testing.T) {
	r, containerRepo, _, _ := newContainerRouter(t)
	require.NoError(t, containerRepo.Create(&models.Container{
		ID: "c1", Name: "web", ResetDay: 1, Status: models.ContainerStatusActive,
	}))

	w := doJSON(r, http.MethodDelete, "/api/containers/c1", `{"confirm_name":"wrong"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err := containerRepo.FindByID("c1")
	assert.NoError(t, err)

	w = doJSON(r, http.MethodDelete, "/api/containers/c1", `{"confirm_name":"web"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err = containerRepo.FindByID("c1")
	assert.ErrorIs(t, err, repository.ErrContainerNotFound)
}
