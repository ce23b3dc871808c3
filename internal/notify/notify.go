// Package notify 负责把点赞、评论、私信等事件写成站内通知。
// 投递可以同步完成（Inline），也可以经 asynq 交给 cmd/worker 异步处理。
package notify

import (
	"context"
	"errors"

	"moringadaily/internal/models"

	"gorm.io/gorm"
)

//go:generate mockgen -destination=mocks/dispatcher_mock.go -package=mocks moringadaily/internal/notify Dispatcher

// Notice 是一次待投递的通知。
type Notice struct {
	UserID   uint                    `json:"user_id"`
	ActorID  uint                    `json:"actor_id"`
	Kind     models.NotificationKind `json:"kind"`
	TargetID uint                    `json:"target_id"`
	Body     string                  `json:"body"`
}

var ErrInvalidNotice = errors.New("notify: invalid notice")

func (n Notice) validate() error {
	if n.UserID == 0 || n.Kind == "" {
		return ErrInvalidNotice
	}
	return nil
}

// selfNotice 用户对自己内容的操作不产生通知。
func (n Notice) selfNotice() bool { return n.UserID == n.ActorID }

type Dispatcher interface {
	Dispatch(ctx context.Context, n Notice) error
}

// Writer 把通知落库。
type Writer struct {
	db *gorm.DB
}

func NewWriter(db *gorm.DB) *Writer { return &Writer{db: db} }

func (w *Writer) Write(ctx context.Context, n Notice) error {
	if err := n.validate(); err != nil {
		return err
	}
	if n.selfNotice() {
		return nil
	}
	row := models.Notification{UserID: n.UserID, ActorID: n.ActorID, Kind: n.Kind, TargetID: n.TargetID, Body: truncate(n.Body, 512)}
	return w.db.WithContext(ctx).Create(&row).Error
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
