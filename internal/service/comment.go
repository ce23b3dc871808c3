package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"moringadaily/internal/models"
	"moringadaily/internal/notify"

	"gorm.io/gorm"
)

const maxCommentLen = 2000

// CommentService 负责评论的写入与评论树的构建。
type CommentService struct {
	db       *gorm.DB
	notifier notify.Dispatcher
}

func NewCommentService(db *gorm.DB, notifier notify.Dispatcher) *CommentService {
	return &CommentService{db: db, notifier: notifier}
}

type CommentDTO struct {
	ID        uint      `json:"id"`
	ContentID uint      `json:"content_id"`
	AuthorID  uint      `json:"author_id"`
	ParentID  *uint     `json:"parent_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentNode 是评论树中的一个节点，Replies 按创建顺序排列。
type CommentNode struct {
	ID        uint           `json:"id"`
	AuthorID  uint           `json:"author_id"`
	Author    string         `json:"author"`
	Body      string         `json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	Replies   []*CommentNode `json:"replies"`
}

// AddComment 创建评论。作者看不到的内容按不存在处理。
// parentID 非空时，父评论必须属于同一内容，否则拒绝且不写入任何数据。
func (s *CommentService) AddComment(ctx context.Context, contentID, authorID uint, body string, parentID *uint) (*CommentDTO, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyComment
	}
	if len([]rune(body)) > maxCommentLen {
		return nil, validation("comment body is too long")
	}
	content, err := visibleContent(ctx, s.db, authorID, contentID)
	if err != nil {
		return nil, err
	}

	notice := notify.Notice{UserID: content.AuthorID, ActorID: authorID, Kind: models.NotifyComment, TargetID: content.ID, Body: body}
	if parentID != nil {
		var parent models.Comment
		if err := s.db.WithContext(ctx).First(&parent, *parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCommentNotFound
			}
			return nil, err
		}
		if parent.ContentID != contentID {
			return nil, ErrCrossContentReply
		}
		notice.UserID, notice.Kind = parent.AuthorID, models.NotifyReply
	}

	c := models.Comment{ContentID: contentID, AuthorID: authorID, ParentID: parentID, Body: body}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	dispatch(ctx, s.notifier, notice)
	return &CommentDTO{ID: c.ID, ContentID: c.ContentID, AuthorID: c.AuthorID, ParentID: c.ParentID, Body: c.Body, CreatedAt: c.CreatedAt}, nil
}

// BuildTree 返回 viewerID 可见内容下的完整评论树。
//
// 一次查询取出全部评论，按父 id 分组后用显式队列从顶层评论逐层挂接子节点。
// 只有从顶层评论可达的节点出现在结果中；visited 保证数据中存在环时也能终止。
func (s *CommentService) BuildTree(ctx context.Context, viewerID, contentID uint) ([]*CommentNode, error) {
	if _, err := visibleContent(ctx, s.db, viewerID, contentID); err != nil {
		return nil, err
	}
	var rows []models.Comment
	if err := s.db.WithContext(ctx).Where("content_id = ?", contentID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	authorIDs := make([]uint, 0, len(rows))
	for _, r := range rows {
		authorIDs = append(authorIDs, r.AuthorID)
	}
	users, err := resolveUsers(ctx, s.db, authorIDs)
	if err != nil {
		return nil, err
	}

	nodes := make(map[uint]*CommentNode, len(rows))
	children := make(map[uint][]uint)
	var roots []uint
	for _, r := range rows {
		nodes[r.ID] = &CommentNode{
			ID:        r.ID,
			AuthorID:  r.AuthorID,
			Author:    users[r.AuthorID].Name(),
			Body:      r.Body,
			CreatedAt: r.CreatedAt,
			Replies:   []*CommentNode{},
		}
		if r.ParentID == nil {
			roots = append(roots, r.ID)
		} else {
			children[*r.ParentID] = append(children[*r.ParentID], r.ID)
		}
	}

	visited := make(map[uint]bool, len(rows))
	queue := make([]uint, 0, len(rows))
	out := make([]*CommentNode, 0, len(roots))
	for _, id := range roots {
		visited[id] = true
		queue = append(queue, id)
		out = append(out, nodes[id])
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		parent := nodes[id]
		for _, cid := range children[id] {
			if visited[cid] {
				continue
			}
			visited[cid] = true
			parent.Replies = append(parent.Replies, nodes[cid])
			queue = append(queue, cid)
		}
	}
	return out, nil
}
