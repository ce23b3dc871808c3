package service

import (
	"context"
	"errors"

	"moringadaily/internal/models"
	"moringadaily/internal/notify"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// lookupUser 是身份查询的唯一入口，不存在时返回 ErrUserNotFound。
func lookupUser(ctx context.Context, db *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func requireAdmin(ctx context.Context, db *gorm.DB, actorID uint) (*models.User, error) {
	u, err := lookupUser(ctx, db, actorID)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return u, nil
}

// visibleContent 按查看者加载内容。未审核或被标记的内容只有作者和管理员能看到，
// 其他人得到 ErrContentNotFound，与内容不存在无法区分。
func visibleContent(ctx context.Context, db *gorm.DB, viewerID, id uint) (*models.Content, error) {
	var c models.Content
	if err := db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	if c.Visible() || c.AuthorID == viewerID {
		return &c, nil
	}
	viewer, err := lookupUser(ctx, db, viewerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	if !viewer.IsAdmin() {
		return nil, ErrContentNotFound
	}
	return &c, nil
}

// resolveUsers 批量获取 ids 对应的用户。
func resolveUsers(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]models.User, error) {
	seen := make(map[uint]struct{}, len(ids))
	uniq := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	out := make(map[uint]models.User, len(uniq))
	if len(uniq) == 0 {
		return out, nil
	}
	var users []models.User
	if err := db.WithContext(ctx).Select("id", "username", "display_name", "avatar_url").Where("id IN ?", uniq).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// dispatch 通知失败只记录日志，不影响触发它的业务操作。
func dispatch(ctx context.Context, d notify.Dispatcher, n notify.Notice) {
	if d == nil {
		return
	}
	if err := d.Dispatch(ctx, n); err != nil {
		log.Warn().Err(err).Uint("user_id", n.UserID).Str("kind", string(n.Kind)).Msg("dispatch notification")
	}
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 || limit > max {
		return def
	}
	return limit
}
