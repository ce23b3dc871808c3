package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"moringadaily/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Services 汇总 handler 依赖的全部 service。
type Services struct {
	Users         *service.UserService
	Contents      *service.ContentService
	Comments      *service.CommentService
	Interactions  *service.InteractionService
	Chat          *service.ChatService
	Notifications *service.NotificationService
}

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	users         *service.UserService
	contents      *service.ContentService
	comments      *service.CommentService
	interactions  *service.InteractionService
	chat          *service.ChatService
	notifications *service.NotificationService
}

func NewHandler(s Services) *Handler {
	return &Handler{
		users:         s.Users,
		contents:      s.Contents,
		comments:      s.Comments,
		interactions:  s.Interactions,
		chat:          s.Chat,
		notifications: s.Notifications,
	}
}

// respondError 按错误分类映射状态码，未分类的错误记录日志并返回 500。
func respondError(c *gin.Context, err error, op string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("op", op).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": op + " failed"})
		return
	}
	// 登录类错误使用 401，其余授权失败使用 403。
	if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrInvalidRefresh) {
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// paramID 解析路径参数中的正整数 id。
func paramID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}

func queryInt(c *gin.Context, name string) int {
	v, _ := strconv.Atoi(c.Query(name))
	return v
}

func queryUint(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

// bindStrict 解码 JSON 并拒绝未知字段。
func bindStrict(c *gin.Context, dst interface{}) bool {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return false
	}
	return true
}

func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return false
	}
	return true
}
