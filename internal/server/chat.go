package server

import (
	"net/http"

	"moringadaily/internal/auth"

	"github.com/gin-gonic/gin"
)

// OpenConversation 新建时返回 201，已存在时返回 200。
func (h *Handler) OpenConversation(c *gin.Context) {
	var req struct {
		PeerID uint `json:"peer_id"`
	}
	if !bind(c, &req) {
		return
	}
	conv, created, err := h.chat.GetOrCreateConversation(c.Request.Context(), auth.GetUserID(c), req.PeerID)
	if err != nil {
		respondError(c, err, "open conversation")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"conversation": conv, "created": created})
}

func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.chat.Conversations(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondError(c, err, "list conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *Handler) ListMessages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.chat.ListMessages(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		respondError(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage 由请求体给出 recipient_id，发送者与接收者必须恰好是会话的两名参与者，否则返回 400。
func (h *Handler) SendMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		RecipientID uint   `json:"recipient_id"`
		Content     string `json:"content"`
	}
	if !bind(c, &req) {
		return
	}
	msg, err := h.chat.AppendMessage(c.Request.Context(), id, auth.GetUserID(c), req.RecipientID, req.Content)
	if err != nil {
		respondError(c, err, "send message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MessagesWith 返回当前用户与 :id 之间的消息，不会创建会话。
func (h *Handler) MessagesWith(c *gin.Context) {
	peer, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.chat.MessagesBetween(c.Request.Context(), auth.GetUserID(c), peer)
	if err != nil {
		respondError(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	items, err := h.notifications.List(c.Request.Context(), auth.GetUserID(c), c.Query("unread") == "true", queryInt(c, "limit"))
	if err != nil {
		respondError(c, err, "list notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), auth.GetUserID(c), id); err != nil {
		respondError(c, err, "mark notification")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondError(c, err, "mark notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
