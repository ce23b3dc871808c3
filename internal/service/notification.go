package service

import (
	"context"
	"time"

	"moringadaily/internal/models"

	"gorm.io/gorm"
)

type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

type NotificationDTO struct {
	ID        uint                    `json:"id"`
	ActorID   uint                    `json:"actor_id"`
	ActorName string                  `json:"actor_name"`
	Kind      models.NotificationKind `json:"kind"`
	TargetID  uint                    `json:"target_id"`
	Body      string                  `json:"body"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

// List 按时间倒序返回用户的通知。
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]NotificationDTO, error) {
	limit = clampLimit(limit, 50, 200)
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var rows []models.Notification
	if err := q.Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	actors := make([]uint, 0, len(rows))
	for _, r := range rows {
		actors = append(actors, r.ActorID)
	}
	users, err := resolveUsers(ctx, s.db, actors)
	if err != nil {
		return nil, err
	}
	out := make([]NotificationDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, NotificationDTO{
			ID: r.ID, ActorID: r.ActorID, ActorName: users[r.ActorID].Name(), Kind: r.Kind,
			TargetID: r.TargetID, Body: r.Body, Read: r.IsRead, CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationAbsent
	}
	return nil
}

// MarkAllRead 返回本次标记的条数。
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).Update("is_read", true)
	return res.RowsAffected, res.Error
}
