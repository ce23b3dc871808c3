package service

import (
	"context"
	"errors"

	"moringadaily/internal/db"
	"moringadaily/internal/models"
	"moringadaily/internal/notify"

	"gorm.io/gorm"
)

// InteractionService 处理点赞、收藏、分享与分类订阅。
// (user, target) 的唯一性由数据库唯一索引保证，不依赖先查后插。
type InteractionService struct {
	db       *gorm.DB
	notifier notify.Dispatcher
}

func NewInteractionService(db *gorm.DB, notifier notify.Dispatcher) *InteractionService {
	return &InteractionService{db: db, notifier: notifier}
}

type ContentStats struct {
	ContentID uint  `json:"content_id"`
	Likes     int64 `json:"likes"`
	Shares    int64 `json:"shares"`
	Comments  int64 `json:"comments"`
	Wishlists int64 `json:"wishlists"`
}

// Like 重复点赞返回 ErrAlreadyLiked。
func (s *InteractionService) Like(ctx context.Context, userID, contentID uint) error {
	c, err := visibleContent(ctx, s.db, userID, contentID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&models.Like{UserID: userID, ContentID: contentID}).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyLiked
		}
		return err
	}
	dispatch(ctx, s.notifier, notify.Notice{UserID: c.AuthorID, ActorID: userID, Kind: models.NotifyLike, TargetID: c.ID, Body: c.Title})
	return nil
}

func (s *InteractionService) Unlike(ctx context.Context, userID, contentID uint) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND content_id = ?", userID, contentID).Delete(&models.Like{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("like not found")
	}
	return nil
}

// ToggleWishlist 返回切换后内容是否在收藏中。
func (s *InteractionService) ToggleWishlist(ctx context.Context, userID, contentID uint) (bool, error) {
	if _, err := visibleContent(ctx, s.db, userID, contentID); err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Where("user_id = ? AND content_id = ?", userID, contentID).Delete(&models.Wishlist{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := s.db.WithContext(ctx).Create(&models.Wishlist{UserID: userID, ContentID: contentID}).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

func (s *InteractionService) Share(ctx context.Context, userID, contentID uint) error {
	if _, err := visibleContent(ctx, s.db, userID, contentID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&models.Share{UserID: userID, ContentID: contentID}).Error
}

// Stats 对 viewerID 不可见的内容返回 ErrContentNotFound。
func (s *InteractionService) Stats(ctx context.Context, viewerID, contentID uint) (*ContentStats, error) {
	if _, err := visibleContent(ctx, s.db, viewerID, contentID); err != nil {
		return nil, err
	}
	st := &ContentStats{ContentID: contentID}
	counts := []struct {
		model interface{}
		dst   *int64
	}{
		{&models.Like{}, &st.Likes},
		{&models.Share{}, &st.Shares},
		{&models.Comment{}, &st.Comments},
		{&models.Wishlist{}, &st.Wishlists},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.model).Where("content_id = ?", contentID).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Subscribe 重复订阅返回 ErrAlreadySubscribed。
func (s *InteractionService) Subscribe(ctx context.Context, userID, categoryID uint) error {
	var cat models.Category
	if err := s.db.WithContext(ctx).First(&cat, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}
	if err := s.db.WithContext(ctx).Create(&models.Subscription{UserID: userID, CategoryID: categoryID}).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadySubscribed
		}
		return err
	}
	return nil
}

func (s *InteractionService) Unsubscribe(ctx context.Context, userID, categoryID uint) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND category_id = ?", userID, categoryID).Delete(&models.Subscription{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("subscription not found")
	}
	return nil
}

func (s *InteractionService) Subscriptions(ctx context.Context, userID uint) ([]CategoryDTO, error) {
	var cats []models.Category
	err := s.db.WithContext(ctx).
		Joins("JOIN subscriptions ON subscriptions.category_id = categories.id").
		Where("subscriptions.user_id = ?", userID).
		Order("categories.name asc").Find(&cats).Error
	if err != nil {
		return nil, err
	}
	out := make([]CategoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryDTO{ID: c.ID, Name: c.Name})
	}
	return out, nil
}
