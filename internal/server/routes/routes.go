package routes

import (
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/handlers"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/middleware"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/auth"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Auth      *handlers.AuthHandler
	Container *handlers.ContainerHandler
	Audit     *handlers.AuditHandler
	Public    *handlers.PublicHandler
	Dashboard *handlers.DashboardHandler
}

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *Handlers, jwtService *auth.JWTService) {
	// 全局中间件
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SecurityHeaders())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := r.Group("/api")

	// 认证路由
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)

		authRequired := authGroup.Group("")
		authRequired.Use(middleware.JWTAuthMiddleware(jwtService))
		{
			authRequired.GET("/me", h.Auth.Me)
			authRequired.GET("/verify", h.Auth.Verify)
			authRequired.POST("/logout", h.Auth.Logout)
			authRequired.POST("/change-password", h.Auth.ChangePassword)
		}
	}

	// 免登录分享路由
	public := api.Group("/public")
	{
		public.GET("/share/:token", h.Public.Share)
	}

	// 容器管理路由（需要认证）
	containers := api.Group("/containers")
	containers.Use(middleware.JWTAuthMiddleware(jwtService))
	{
		containers.GET("", h.Container.List)
		containers.POST("/refresh", h.Container.Refresh)
		containers.GET("/:id", h.Container.Get)
		containers.PATCH("/:id", h.Container.Update)
		containers.POST("/:id/start", h.Container.Start)
		containers.POST("/:id/stop", h.Container.Stop)
		containers.POST("/:id/reset", h.Container.Reset)
		containers.GET("/:id/traffic", h.Container.Traffic)
		containers.POST("/:id/share", h.Container.Share)
		containers.DELETE("/:id", h.Container.Delete)
	}

	// 审计日志路由（需要认证）
	audit := api.Group("/audit")
	audit.Use(middleware.JWTAuthMiddleware(jwtService))
	{
		audit.GET("", h.Audit.List)
		audit.GET("/stats", h.Audit.Stats)
		audit.GET("/container/:id", h.Audit.ListByContainer)
	}

	// 仪表盘路由（需要认证）
	dashboard := api.Group("/dashboard")
	dashboard.Use(middleware.JWTAuthMiddleware(jwtService))
	{
		dashboard.GET("", h.Dashboard.Stats)
	}
}
