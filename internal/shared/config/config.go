package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// 全局配置变量
var (
	globalConfig *Config
	configMutex  sync.RWMutex
)

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(config *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// Config 服务配置
type Config struct {
	App struct {
		Name         string        `yaml:"name"`
		Mode         string        `yaml:"mode"`
		Listen       string        `yaml:"listen"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
	} `yaml:"app"`

	Auth struct {
		AdminUsername string        `yaml:"admin_username"`
		AdminPassword string        `yaml:"admin_password"`
		JWTSecret     string        `yaml:"jwt_secret"`
		RefreshSecret string        `yaml:"refresh_secret"`
		AccessExpiry  time.Duration `yaml:"access_expiry"`
		RefreshExpiry time.Duration `yaml:"refresh_expiry"`
	} `yaml:"auth"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Docker struct {
		Socket            string `yaml:"socket"`
		MonitorLabel      string `yaml:"monitor_label"`
		SelfContainerID   string `yaml:"self_container_id"`
		SelfContainerName string `yaml:"self_container_name"`
	} `yaml:"docker"`

	Traffic struct {
		CollectInterval      int `yaml:"collect_interval"`       // 采集间隔（毫秒）
		PersistInterval      int `yaml:"persist_interval"`       // 持久化间隔（毫秒）
		SyncInterval         int `yaml:"sync_interval"`          // 容器发现同步间隔（秒）
		TrafficRetentionDays int `yaml:"traffic_retention_days"` // 流量日志保留天数
		AuditRetentionDays   int `yaml:"audit_retention_days"`   // 审计日志保留天数
	} `yaml:"traffic"`
}

// hostnameIDPattern 容器内HOSTNAME默认为容器ID前缀
var hostnameIDPattern = regexp.MustCompile(`^[0-9a-f]{12,64}$`)

// findConfigFile 智能查找配置文件
func findConfigFile(filename string) (string, error) {
	// 候选路径列表
	candidates := []string{
		filename,
		filepath.Join("configs", filename),
		filepath.Join("..", filename),
		filepath.Join("..", "configs", filename),
		filepath.Join("../..", "configs", filename),
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return candidate, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("配置文件 %s 未找到，已搜索路径: %v", filename, candidates)
}

// Load 加载配置：默认值 -> 配置文件 -> 环境变量
func Load(configPath string) (*Config, error) {
	config := &Config{}

	// 设置默认值
	config.App.Name = "Container Bandwidth Limiter"
	config.App.Mode = "release"
	config.App.Listen = ":3000"
	config.App.ReadTimeout = 15 * time.Second
	config.App.WriteTimeout = 15 * time.Second
	config.App.IdleTimeout = 60 * time.Second
	config.Auth.AdminUsername = "admin"
	config.Auth.AdminPassword = "admin123"
	config.Auth.JWTSecret = "change-this-secret-key"
	config.Auth.RefreshSecret = "change-this-refresh-key"
	config.Auth.AccessExpiry = 24 * time.Hour
	config.Auth.RefreshExpiry = 7 * 24 * time.Hour
	config.Database.Path = "data/bandwidth.db"
	config.Docker.Socket = "/var/run/docker.sock"
	config.Docker.MonitorLabel = "bandwidth.monitor"
	config.Traffic.CollectInterval = 1000
	config.Traffic.PersistInterval = 30000
	config.Traffic.SyncInterval = 300
	config.Traffic.TrafficRetentionDays = 30
	config.Traffic.AuditRetentionDays = 90

	if configPath != "" {
		// 配置文件可选，找不到时仅使用默认值和环境变量
		if actualPath, err := findConfigFile(configPath); err == nil {
			data, err := os.ReadFile(actualPath)
			if err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}

			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		}
	}

	applyEnvOverrides(config)

	// 验证必需配置
	if config.Docker.MonitorLabel == "" {
		return nil, fmt.Errorf("docker.monitor_label 不能为空")
	}
	if config.Traffic.CollectInterval <= 0 || config.Traffic.PersistInterval <= 0 {
		return nil, fmt.Errorf("采集和持久化间隔必须为正数")
	}

	return config, nil
}

// applyEnvOverrides 应用环境变量覆盖（容器部署时的主要配置方式）
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PORT"); v != "" {
		config.App.Listen = ":" + v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		config.Auth.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		config.Auth.AdminPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		config.Database.Path = v
	}
	if v := os.Getenv("DOCKER_SOCKET"); v != "" {
		config.Docker.Socket = v
	}
	if v := os.Getenv("MONITOR_LABEL"); v != "" {
		config.Docker.MonitorLabel = v
	}
	if v := os.Getenv("SELF_CONTAINER_NAME"); v != "" {
		config.Docker.SelfContainerName = v
	}
	if v := os.Getenv("SELF_CONTAINER_ID"); v != "" {
		config.Docker.SelfContainerID = v
	} else if config.Docker.SelfContainerID == "" {
		// 容器内运行时HOSTNAME即容器ID前缀，用于排除自身
		if hostname := os.Getenv("HOSTNAME"); hostnameIDPattern.MatchString(hostname) {
			config.Docker.SelfContainerID = hostname
		}
	}
	if v, ok := envInt("COLLECT_INTERVAL"); ok {
		config.Traffic.CollectInterval = v
	}
	if v, ok := envInt("PERSIST_INTERVAL"); ok {
		config.Traffic.PersistInterval = v
	}
	if v, ok := envInt("SYNC_INTERVAL"); ok {
		config.Traffic.SyncInterval = v
	}
}

// envInt 读取整数环境变量
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Save 保存配置到文件
func Save(config *Config, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("保存配置文件失败: %w", err)
	}

	return nil
}
