package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"moringadaily/internal/db"
	"moringadaily/internal/models"

	"gorm.io/gorm"
)

// ContentService 封装内容、分类及审核相关的业务逻辑。
type ContentService struct {
	db *gorm.DB
}

func NewContentService(db *gorm.DB) *ContentService {
	return &ContentService{db: db}
}

type ContentInput struct {
	Title      string             `json:"title"`
	Body       string             `json:"body"`
	Type       models.ContentType `json:"type"`
	CategoryID uint               `json:"category_id"`
}

type ContentDTO struct {
	ID         uint               `json:"id"`
	Title      string             `json:"title"`
	Body       string             `json:"body"`
	Type       models.ContentType `json:"type"`
	CategoryID uint               `json:"category_id"`
	AuthorID   uint               `json:"author_id"`
	Approved   bool               `json:"approved"`
	Flagged    bool               `json:"flagged"`
	CreatedAt  time.Time          `json:"created_at"`
}

type CategoryDTO struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func toContentDTO(c models.Content) ContentDTO {
	return ContentDTO{ID: c.ID, Title: c.Title, Body: c.Body, Type: c.Type, CategoryID: c.CategoryID, AuthorID: c.AuthorID, Approved: c.Approved, Flagged: c.Flagged, CreatedAt: c.CreatedAt}
}

func validContentType(t models.ContentType) bool {
	switch t {
	case models.ContentArticle, models.ContentVideo, models.ContentAudio:
		return true
	}
	return false
}

func (in *ContentInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || len(in.Title) > 200 {
		return validation("title must be 1-200 characters")
	}
	if strings.TrimSpace(in.Body) == "" {
		return validation("body is required")
	}
	if !validContentType(in.Type) {
		return validation("type must be article, video or audio")
	}
	if in.CategoryID == 0 {
		return validation("category_id is required")
	}
	return nil
}

// Create 发布内容。管理员发布的内容直接通过审核，其余需等待审核。
func (s *ContentService) Create(ctx context.Context, authorID uint, in ContentInput) (*ContentDTO, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	author, err := lookupUser(ctx, s.db, authorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.findCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	c := models.Content{Title: in.Title, Body: in.Body, Type: in.Type, CategoryID: in.CategoryID, AuthorID: author.ID, Approved: author.IsAdmin()}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	dto := toContentDTO(c)
	return &dto, nil
}

func (s *ContentService) find(ctx context.Context, id uint) (*models.Content, error) {
	var c models.Content
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Get 未审核或被标记的内容只对作者和管理员可见，其他人看到的是 NotFound。
func (s *ContentService) Get(ctx context.Context, viewerID, id uint) (*ContentDTO, error) {
	c, err := visibleContent(ctx, s.db, viewerID, id)
	if err != nil {
		return nil, err
	}
	dto := toContentDTO(*c)
	return &dto, nil
}

// List 按 id 倒序返回已审核且未被标记的内容，categoryID 为 0 时不过滤分类。
func (s *ContentService) List(ctx context.Context, categoryID uint, limit int, beforeID uint) ([]ContentDTO, error) {
	limit = clampLimit(limit, 20, 100)
	q := s.db.WithContext(ctx).Where("approved = ? AND flagged = ?", true, false)
	if categoryID != 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var rows []models.Content
	if err := q.Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ContentDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, toContentDTO(r))
	}
	return out, nil
}

// Approve 仅管理员可调用。
func (s *ContentService) Approve(ctx context.Context, actorID, id uint) (*ContentDTO, error) {
	return s.moderate(ctx, actorID, id, map[string]interface{}{"approved": true})
}

// SetFlagged 仅管理员可调用。
func (s *ContentService) SetFlagged(ctx context.Context, actorID, id uint, flagged bool) (*ContentDTO, error) {
	return s.moderate(ctx, actorID, id, map[string]interface{}{"flagged": flagged})
}

func (s *ContentService) moderate(ctx context.Context, actorID, id uint, fields map[string]interface{}) (*ContentDTO, error) {
	if _, err := requireAdmin(ctx, s.db, actorID); err != nil {
		return nil, err
	}
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(c).Updates(fields).Error; err != nil {
		return nil, err
	}
	c, err = s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toContentDTO(*c)
	return &dto, nil
}

func (s *ContentService) findCategory(ctx context.Context, id uint) (*models.Category, error) {
	var cat models.Category
	if err := s.db.WithContext(ctx).First(&cat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &cat, nil
}

func (s *ContentService) CreateCategory(ctx context.Context, actorID uint, name string) (*CategoryDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return nil, validation("category name must be 1-64 characters")
	}
	if _, err := requireAdmin(ctx, s.db, actorID); err != nil {
		return nil, err
	}
	cat := models.Category{Name: name}
	if err := s.db.WithContext(ctx).Create(&cat).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrCategoryTaken
		}
		return nil, err
	}
	return &CategoryDTO{ID: cat.ID, Name: cat.Name}, nil
}

func (s *ContentService) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	var cats []models.Category
	if err := s.db.WithContext(ctx).Order("name asc").Find(&cats).Error; err != nil {
		return nil, err
	}
	out := make([]CategoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryDTO{ID: c.ID, Name: c.Name})
	}
	return out, nil
}
