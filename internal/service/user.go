package service

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"moringadaily/internal/auth"
	"moringadaily/internal/config"
	"moringadaily/internal/db"
	"moringadaily/internal/models"

	"gorm.io/gorm"
)

// UserService 封装用户相关的业务逻辑。
type UserService struct {
	db        *gorm.DB
	cfg       config.Config
	blocklist *auth.Blocklist
}

func NewUserService(db *gorm.DB, cfg config.Config, blocklist *auth.Blocklist) *UserService {
	return &UserService{db: db, cfg: cfg, blocklist: blocklist}
}

// UserDTO 是对外输出的用户资料，不包含凭据。
type UserDTO struct {
	ID          uint        `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email,omitempty"`
	DisplayName string      `json:"display_name"`
	Bio         string      `json:"bio"`
	AvatarURL   string      `json:"avatar_url"`
	Role        models.Role `json:"role"`
	Active      bool        `json:"active"`
}

func toUserDTO(u models.User, withEmail bool) UserDTO {
	dto := UserDTO{ID: u.ID, Username: u.Username, DisplayName: u.Name(), Bio: u.Bio, AvatarURL: u.AvatarURL, Role: u.Role, Active: u.Active}
	if withEmail {
		dto.Email = u.Email
	}
	return dto
}

// RegisterInput 由 handler 完成基本格式校验后传入。
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *RegisterInput) normalize() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if len(in.Username) < 2 || len(in.Username) > 64 {
		return validation("invalid username")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil || len(in.Email) > 255 {
		return validation("invalid email")
	}
	if len(in.Password) < 4 || len(in.Password) > 72 {
		return validation("invalid password")
	}
	return nil
}

// Register 注册新用户。用户名与邮箱的唯一性由唯一索引保证。
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*UserDTO, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{Username: in.Username, Email: in.Email, PasswordHash: hash, Role: models.RoleStandard, Active: true}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	dto := toUserDTO(user, true)
	return &dto, nil
}

// LoginResult 登录成功后返回的数据。
type LoginResult struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	User         UserDTO `json:"user"`
}

// Login 校验用户名（或邮箱）与密码并签发 token 对。
func (s *UserService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	login = strings.TrimSpace(login)
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ? OR email = ?", login, strings.ToLower(login)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	at, err := auth.GenerateAccessToken(user.ID, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
	if err != nil {
		return nil, err
	}
	rt, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	exp := time.Now().Add(time.Duration(s.cfg.RefreshTokenTTLDays) * 24 * time.Hour)
	if err := auth.SaveRefreshToken(s.db.WithContext(ctx), user.ID, rt, exp); err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: at, RefreshToken: rt, User: toUserDTO(user, true)}, nil
}

// RefreshResult 刷新 token 后返回的新 token 对。
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokens 验证旧 refresh token 并签发新 token 对（旋转刷新）。
func (s *UserService) RefreshTokens(ctx context.Context, oldRT string) (*RefreshResult, error) {
	var result RefreshResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := auth.ValidateRefreshToken(tx, oldRT)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidRefresh
		}
		if err != nil {
			return err
		}
		var user models.User
		if err := tx.First(&user, rec.UserID).Error; err != nil {
			return err
		}
		if !user.Active {
			return ErrUserInactive
		}
		if err := auth.RevokeRefreshToken(tx, oldRT); err != nil {
			return err
		}
		at, err := auth.GenerateAccessToken(rec.UserID, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
		if err != nil {
			return err
		}
		newRT, err := auth.GenerateRefreshToken()
		if err != nil {
			return err
		}
		exp := time.Now().Add(time.Duration(s.cfg.RefreshTokenTTLDays) * 24 * time.Hour)
		if err := auth.SaveRefreshToken(tx, rec.UserID, newRT, exp); err != nil {
			return err
		}
		result.AccessToken = at
		result.RefreshToken = newRT
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout 吊销当前 access token，并在提供时吊销对应的 refresh token。
func (s *UserService) Logout(ctx context.Context, userID uint, claims *auth.Claims, refreshToken string) error {
	if claims != nil && s.blocklist != nil && claims.ExpiresAt != nil {
		if err := s.blocklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
	}
	if refreshToken == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ? AND user_id = ? AND revoked_at IS NULL", refreshToken, userID).
		Update("revoked_at", time.Now()).Error
}

// Lookup 是其他模块使用的身份查询接口。
func (s *UserService) Lookup(ctx context.Context, id uint) (*UserDTO, error) {
	u, err := lookupUser(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	dto := toUserDTO(*u, false)
	return &dto, nil
}

func (s *UserService) Me(ctx context.Context, id uint) (*UserDTO, error) {
	u, err := lookupUser(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	dto := toUserDTO(*u, true)
	return &dto, nil
}

// ProfilePatch 列出允许用户自行修改的字段，nil 表示不修改。
type ProfilePatch struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
}

func (p ProfilePatch) columns() (map[string]interface{}, error) {
	cols := make(map[string]interface{})
	if p.DisplayName != nil {
		v := strings.TrimSpace(*p.DisplayName)
		if len(v) > 128 {
			return nil, validation("display_name is too long")
		}
		cols["display_name"] = v
	}
	if p.Bio != nil {
		if len(*p.Bio) > 512 {
			return nil, validation("bio is too long")
		}
		cols["bio"] = *p.Bio
	}
	if p.AvatarURL != nil {
		v := strings.TrimSpace(*p.AvatarURL)
		if v != "" {
			u, err := url.Parse(v)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || len(v) > 512 {
				return nil, validation("avatar_url must be an http(s) URL")
			}
		}
		cols["avatar_url"] = v
	}
	if len(cols) == 0 {
		return nil, validation("no updatable fields supplied")
	}
	return cols, nil
}

// UpdateProfile 只写入 ProfilePatch 中显式列出的字段。
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, patch ProfilePatch) (*UserDTO, error) {
	cols, err := patch.columns()
	if err != nil {
		return nil, err
	}
	u, err := lookupUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(u).Updates(cols).Error; err != nil {
		return nil, err
	}
	return s.Me(ctx, userID)
}

// SetRole 仅管理员可调用。
func (s *UserService) SetRole(ctx context.Context, actorID, targetID uint, role models.Role) (*UserDTO, error) {
	if role != models.RoleStandard && role != models.RoleAdmin {
		return nil, validation("role must be standard or admin")
	}
	return s.adminUpdate(ctx, actorID, targetID, func(tx *gorm.DB, target *models.User) error {
		return tx.Model(target).Update("role", role).Error
	})
}

// SetActive 仅管理员可调用，管理员不能停用自己。
// 停用时同一事务内吊销该用户全部 refresh token，已签发的 access token 由 Guard 的 active 检查拦截。
func (s *UserService) SetActive(ctx context.Context, actorID, targetID uint, active bool) (*UserDTO, error) {
	if !active && actorID == targetID {
		return nil, validation("cannot deactivate yourself")
	}
	return s.adminUpdate(ctx, actorID, targetID, func(tx *gorm.DB, target *models.User) error {
		if err := tx.Model(target).Update("active", active).Error; err != nil {
			return err
		}
		if active {
			return nil
		}
		_, err := auth.RevokeUserRefreshTokens(tx, target.ID)
		return err
	})
}

func (s *UserService) adminUpdate(ctx context.Context, actorID, targetID uint, apply func(tx *gorm.DB, target *models.User) error) (*UserDTO, error) {
	if _, err := requireAdmin(ctx, s.db, actorID); err != nil {
		return nil, err
	}
	target, err := lookupUser(ctx, s.db, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return apply(tx, target)
	}); err != nil {
		return nil, err
	}
	return s.Me(ctx, targetID)
}
