package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword 加密密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("密码加密失败: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateShareToken 生成分享令牌
func GenerateShareToken() string {
	return uuid.NewString()
}

// FormatBytes 格式化字节数为人类可读形式
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ParseBytes 解析人类可读的流量配额，如 "10GB"、"1.5 TB"、"512MB"
// 纯数字按字节处理
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("流量配额为空")
	}

	units := []struct {
		suffix string
		factor float64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}

	upper := strings.ToUpper(s)
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		numPart := strings.TrimSpace(upper[:len(upper)-len(u.suffix)])
		if numPart == "" {
			return 0, fmt.Errorf("无效的流量配额: %s", s)
		}
		value, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return 0, fmt.Errorf("无效的流量配额: %s", s)
		}
		if value < 0 {
			return 0, fmt.Errorf("流量配额不能为负数: %s", s)
		}
		return int64(value * u.factor), nil
	}

	value, err := strconv.ParseInt(upper, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无效的流量配额: %s", s)
	}
	if value < 0 {
		return 0, fmt.Errorf("流量配额不能为负数: %s", s)
	}
	return value, nil
}

// ParsePagination 解析分页参数
func ParsePagination(pageStr, pageSizeStr string) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}

	if ps, err := strconv.Atoi(pageSizeStr); err == nil && ps > 0 && ps <= 100 {
		pageSize = ps
	}

	return page, pageSize
}
