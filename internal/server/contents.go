package server

import (
	"net/http"

	"moringadaily/internal/auth"
	"moringadaily/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateContent(c *gin.Context) {
	var req service.ContentInput
	if !bind(c, &req) {
		return
	}
	content, err := h.contents.Create(c.Request.Context(), auth.GetUserID(c), req)
	if err != nil {
		respondError(c, err, "create content")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"content": content})
}

// ListContents 支持 category_id、limit、before_id 查询参数。
func (h *Handler) ListContents(c *gin.Context) {
	items, err := h.contents.List(c.Request.Context(), queryUint(c, "category_id"), queryInt(c, "limit"), queryUint(c, "before_id"))
	if err != nil {
		respondError(c, err, "list contents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"contents": items})
}

func (h *Handler) GetContent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	content, err := h.contents.Get(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		respondError(c, err, "get content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}

func (h *Handler) ApproveContent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	content, err := h.contents.Approve(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		respondError(c, err, "approve content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}

// FlagContent 的 body 可省略，省略时视为 flagged=true。
func (h *Handler) FlagContent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	req := struct {
		Flagged *bool `json:"flagged"`
	}{}
	_ = c.ShouldBindJSON(&req)
	flagged := req.Flagged == nil || *req.Flagged
	content, err := h.contents.SetFlagged(c.Request.Context(), auth.GetUserID(c), id, flagged)
	if err != nil {
		respondError(c, err, "flag content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}

func (h *Handler) ListCategories(c *gin.Context) {
	cats, err := h.contents.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err, "list categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if !bind(c, &req) {
		return
	}
	cat, err := h.contents.CreateCategory(c.Request.Context(), auth.GetUserID(c), req.Name)
	if err != nil {
		respondError(c, err, "create category")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": cat})
}

func (h *Handler) Like(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.interactions.Like(c.Request.Context(), auth.GetUserID(c), id); err != nil {
		respondError(c, err, "like")
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) Unlike(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.interactions.Unlike(c.Request.Context(), auth.GetUserID(c), id); err != nil {
		respondError(c, err, "unlike")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ToggleWishlist(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	added, err := h.interactions.ToggleWishlist(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		respondError(c, err, "wishlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"wishlisted": added})
}

func (h *Handler) Share(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.interactions.Share(c.Request.Context(), auth.GetUserID(c), id); err != nil {
		respondError(c, err, "share")
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) Stats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	st, err := h.interactions.Stats(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		respondError(c, err, "stats")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) Subscribe(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.interactions.Subscribe(c.Request.Context(), auth.GetUserID(c), id); err != nil {
		respondError(c, err, "subscribe")
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.interactions.Unsubscribe(c.Request.Context(), auth.GetUserID(c), id); err != nil {
		respondError(c, err, "unsubscribe")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Subscriptions(c *gin.Context) {
	cats, err := h.interactions.Subscriptions(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondError(c, err, "list subscriptions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

func (h *Handler) ListComments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tree, err := h.comments.BuildTree(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		respondError(c, err, "list comments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": tree})
}

func (h *Handler) AddComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Body     string `json:"body"`
		ParentID *uint  `json:"parent_id"`
	}
	if !bind(c, &req) {
		return
	}
	comment, err := h.comments.AddComment(c.Request.Context(), id, auth.GetUserID(c), req.Body, req.ParentID)
	if err != nil {
		respondError(c, err, "add comment")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}
