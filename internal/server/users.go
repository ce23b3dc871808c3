package server

import (
	"net/http"

	"moringadaily/internal/auth"
	"moringadaily/internal/models"
	"moringadaily/internal/service"

	"github.com/gin-gonic/gin"
)

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterInput
	if !bind(c, &req) {
		return
	}
	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "register")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login 处理用户登录请求，login 字段可以是用户名或邮箱。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Login    string `json:"login"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !bind(c, &req) {
		return
	}
	if req.Login == "" {
		req.Login = req.Username
	}
	if req.Login == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.users.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		respondError(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefreshToken 处理 token 刷新请求。
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !bind(c, &req) {
		return
	}
	if req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.users.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err, "refresh")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// body 可选
	_ = c.ShouldBindJSON(&req)
	if err := h.users.Logout(c.Request.Context(), auth.GetUserID(c), auth.GetClaims(c), req.RefreshToken); err != nil {
		respondError(c, err, "logout")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.users.Me(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondError(c, err, "me")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile 只接受 display_name、bio、avatar_url，出现其他字段直接返回 400。
func (h *Handler) UpdateProfile(c *gin.Context) {
	var patch service.ProfilePatch
	if !bindStrict(c, &patch) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), auth.GetUserID(c), patch)
	if err != nil {
		respondError(c, err, "update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Lookup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "get user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) SetRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Role models.Role `json:"role"`
	}
	if !bind(c, &req) {
		return
	}
	user, err := h.users.SetRole(c.Request.Context(), auth.GetUserID(c), id, req.Role)
	if err != nil {
		respondError(c, err, "set role")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) setActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		user, err := h.users.SetActive(c.Request.Context(), auth.GetUserID(c), id, active)
		if err != nil {
			respondError(c, err, "set active")
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
