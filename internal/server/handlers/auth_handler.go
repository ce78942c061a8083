package handlers

import (
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/auth"
	"github.com/Tokinx/container-bandwidth-limiter/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	userService *auth.UserService
	jwtService  *auth.JWTService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(userService *auth.UserService, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtService:  jwtService,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Login(req.Username, req.Password)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	tokens, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		response.InternalError(c, "生成令牌失败")
		return
	}

	response.Success(c, gin.H{
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
		},
		"tokens": tokens,
	})
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh 刷新令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		response.Unauthorized(c, "刷新令牌无效或已过期")
		return
	}

	user, err := h.userService.GetUserByID(claims.UserID)
	if err != nil {
		response.Unauthorized(c, "用户不存在")
		return
	}

	tokens, err := h.jwtService.RefreshTokenPair(req.RefreshToken, user)
	if err != nil {
		response.Unauthorized(c, "刷新令牌失败")
		return
	}

	response.Success(c, tokens)
}

// Me 获取当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetUint("user_id")
	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		response.Unauthorized(c, "用户不存在")
		return
	}

	response.Success(c, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"last_login": user.LastLogin,
	})
}

// Verify 校验当前令牌有效性
func (h *AuthHandler) Verify(c *gin.Context) {
	response.Success(c, gin.H{
		"user_id":  c.GetUint("user_id"),
		"username": c.GetString("username"),
	})
}

// Logout 登出
// 令牌无服务端状态，登出由客户端丢弃令牌完成
func (h *AuthHandler) Logout(c *gin.Context) {
	response.SuccessWithMessage(c, "已登出", nil)
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ChangePassword 修改密码
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	userID := c.GetUint("user_id")
	if err := h.userService.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "密码修改成功", nil)
}
