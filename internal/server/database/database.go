package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Tokinx/container-bandwidth-limiter/internal/server/models"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/utils"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 打开数据库连接并完成迁移，所有依赖方通过返回的句柄访问
func Open(dbPath string) (*gorm.DB, error) {
	// 确保数据库目录存在
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	// 连接SQLite数据库 - 默认使用Silent日志级别
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_journal_mode=WAL&_synchronous=NORMAL"), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 自动迁移数据库结构
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return db, nil
}

// AutoMigrate 自动迁移数据库结构
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Container{},
		&models.TrafficLog{},
		&models.AuditLog{},
		&models.User{},
	)
	if err != nil {
		return fmt.Errorf("自动迁移失败: %w", err)
	}

	return nil
}

// InitDefaultAdmin 初始化默认管理员账号
func InitDefaultAdmin(db *gorm.DB, username, password string) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("检查用户数量失败: %w", err)
	}

	// 如果已有用户，跳过
	if count > 0 {
		return nil
	}

	// 对密码进行哈希处理
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("密码哈希失败: %w", err)
	}

	admin := &models.User{
		Username: username,
		Password: hashedPassword,
		IsActive: true,
	}

	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("创建默认管理员失败: %w", err)
	}

	log.Printf("创建默认管理员: %s (密码已加密)", username)
	return nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
