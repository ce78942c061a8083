package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/database"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/middleware"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	require.NoError(t, database.InitDefaultAdmin(db, "admin", "secret123"))

	jwtService := auth.NewJWTService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	userService := auth.NewUserService(db)
	handler := NewAuthHandler(userService, jwtService)

	r := gin.New()
	r.POST("/api/auth/login", handler.Login)
	r.POST("/api/auth/refresh", handler.Refresh)

	protected := r.Group("")
	protected.Use(middleware.JWTAuthMiddleware(jwtService))
	protected.GET("/api/auth/me", handler.Me)

	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func loginTokens(t *testing.T, r *gin.Engine) (access, refresh string) {
	t.Helper()

	w := postJSON(r, "/api/auth/login", `{"username":"admin","password":"secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Tokens struct {
				AccessToken  string `json:"access_token"`
				RefreshToken string `json:"refresh_token"`
			} `json:"tokens"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Tokens.AccessToken)

	return body.Data.Tokens.AccessToken, body.Data.Tokens.RefreshToken
}

func TestLoginSuccess(t *testing.T) {
	r := newAuthRouter(t)
	loginTokens(t, r)
}

func TestLoginWrongPassword(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(r, "/api/auth/login", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginMissingFields(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(r, "/api/auth/login", `{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeRequiresToken(t *testing.T) {
	r := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeWithValidToken(t *testing.T) {
	r := newAuthRouter(t)
	access, _ := loginTokens(t, r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"admin"`)
}

func TestRefreshIssuesNewTokens(t *testing.T) {
	r := newAuthRouter(t)
	_, refresh := loginTokens(t, r)

	w := postJSON(r, "/api/auth/refresh", `{"refresh_token":"`+refresh+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "access_token")
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	r := newAuthRouter(t)
	access, _ := loginTokens(t, r)

	// 访问令牌不能当刷新令牌用
	w := postJSON(r, "/api/auth/refresh", `{"refresh_token":"`+access+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
