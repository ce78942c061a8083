package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/database"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/docker"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/handlers"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/repository"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/routes"
	"github.com/Tokinx/container-bandwidth-limiter/internal/server/services"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/auth"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/config"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "server.yaml", "配置文件路径")
	flag.Parse()

	fmt.Println("🚀 正在启动容器流量配额监控服务...")

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}
	config.SetGlobalConfig(cfg)

	// 初始化数据库
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("❌ 初始化数据库失败: %v", err)
	}

	if err := database.InitDefaultAdmin(db, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("❌ 初始化管理员账户失败: %v", err)
	}

	// 初始化Docker客户端
	dockerClient, err := docker.NewClient(cfg)
	if err != nil {
		log.Fatalf("❌ 连接Docker失败: %v", err)
	}

	// 初始化仓储层
	containerRepo := repository.NewContainerRepository(db)
	trafficRepo := repository.NewTrafficRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// 初始化服务层
	syncService := services.NewSyncService(dockerClient, containerRepo, auditRepo)
	trafficService := services.NewTrafficService(dockerClient, containerRepo, trafficRepo, auditRepo, syncService, cfg)
	schedulerService := services.NewSchedulerService(dockerClient, containerRepo, trafficRepo, auditRepo, trafficService, cfg)
	dashboardService := services.NewDashboardService(db)

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessExpiry, cfg.Auth.RefreshExpiry)
	userService := auth.NewUserService(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	if err := trafficService.Start(ctx); err != nil {
		log.Fatalf("❌ 启动流量采集服务失败: %v", err)
	}
	if err := schedulerService.Start(ctx); err != nil {
		log.Fatalf("❌ 启动定时调度器失败: %v", err)
	}

	// 初始化HTTP服务
	gin.SetMode(cfg.App.Mode)
	engine := gin.New()

	h := &routes.Handlers{
		Auth:      handlers.NewAuthHandler(userService, jwtService),
		Container: handlers.NewContainerHandler(dockerClient, containerRepo, trafficRepo, auditRepo, trafficService),
		Audit:     handlers.NewAuditHandler(auditRepo),
		Public:    handlers.NewPublicHandler(dockerClient, containerRepo, trafficService),
		Dashboard: handlers.NewDashboardHandler(dashboardService),
	}
	routes.SetupRoutes(engine, h, jwtService)

	server := &http.Server{
		Addr:         cfg.App.Listen,
		Handler:      engine,
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  cfg.App.IdleTimeout,
	}

	go func() {
		fmt.Printf("✅ HTTP服务已启动，监听地址: %s\n", cfg.App.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP服务异常退出: %v", err)
		}
	}()

	gracefulShutdown(server, schedulerService, trafficService, dockerClient, db, cancel)
}

// gracefulShutdown 优雅关闭：先停后台任务并落盘，再关HTTP和数据库
func gracefulShutdown(
	server *http.Server,
	schedulerService *services.SchedulerService,
	trafficService *services.TrafficService,
	dockerClient *docker.Client,
	db *gorm.DB,
	cancel context.CancelFunc,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("🛑 收到退出信号，正在优雅关闭...")

	schedulerService.Stop()
	trafficService.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("关闭HTTP服务失败: %v", err)
	}

	if err := dockerClient.Close(); err != nil {
		log.Printf("关闭Docker客户端失败: %v", err)
	}

	if err := database.Close(db); err != nil {
		log.Printf("关闭数据库失败: %v", err)
	}

	fmt.Println("✅ 服务已退出")
}
