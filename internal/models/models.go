package models

import "time"

type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string `gorm:"size:128"`
	Bio          string `gorm:"size:512"`
	AvatarURL    string `gorm:"size:512"`
	Role         Role   `gorm:"size:16;not null;default:'standard'"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Name 返回展示名，未设置时回退到用户名。
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

type Category struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time
}

type ContentType string

const (
	ContentArticle ContentType = "article"
	ContentVideo   ContentType = "video"
	ContentAudio   ContentType = "audio"
)

type Content struct {
	ID         uint        `gorm:"primaryKey"`
	Title      string      `gorm:"size:200;not null"`
	Body       string      `gorm:"type:text;not null"`
	Type       ContentType `gorm:"size:16;not null"`
	CategoryID uint        `gorm:"index;not null"`
	AuthorID   uint        `gorm:"index;not null"`
	Approved   bool        `gorm:"not null;default:false"`
	Flagged    bool        `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Visible 表示内容对所有人公开。
func (c Content) Visible() bool { return c.Approved && !c.Flagged }

// Comment.ParentID 为空表示顶层评论。
type Comment struct {
	ID        uint   `gorm:"primaryKey"`
	ContentID uint   `gorm:"index:idx_comment_content;not null"`
	AuthorID  uint   `gorm:"index;not null"`
	ParentID  *uint  `gorm:"index"`
	Body      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

type Like struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"uniqueIndex:idx_like_user_content;not null"`
	ContentID uint `gorm:"uniqueIndex:idx_like_user_content;index;not null"`
	CreatedAt time.Time
}

type Wishlist struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"uniqueIndex:idx_wishlist_user_content;not null"`
	ContentID uint `gorm:"uniqueIndex:idx_wishlist_user_content;not null"`
	CreatedAt time.Time
}

// Share 可以重复，不做唯一约束。
type Share struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index;not null"`
	ContentID uint `gorm:"index;not null"`
	CreatedAt time.Time
}

type Subscription struct {
	ID         uint `gorm:"primaryKey"`
	UserID     uint `gorm:"uniqueIndex:idx_sub_user_category;not null"`
	CategoryID uint `gorm:"uniqueIndex:idx_sub_user_category;not null"`
	CreatedAt  time.Time
}

// Conversation 的参与者按 User1ID < User2ID 规范化存储，唯一索引保证每对用户只有一个会话。
type Conversation struct {
	ID        uint `gorm:"primaryKey"`
	User1ID   uint `gorm:"uniqueIndex:idx_conv_pair;not null"`
	User2ID   uint `gorm:"uniqueIndex:idx_conv_pair;index;not null"`
	CreatedAt time.Time
}

type Message struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"index:idx_msg_conversation_id;not null"`
	SenderID       uint   `gorm:"index;not null"`
	RecipientID    uint   `gorm:"index;not null"`
	Body           string `gorm:"type:text;not null"`
	CreatedAt      time.Time
}

type NotificationKind string

const (
	NotifyLike    NotificationKind = "like"
	NotifyComment NotificationKind = "comment"
	NotifyReply   NotificationKind = "reply"
	NotifyMessage NotificationKind = "message"
)

type Notification struct {
	ID        uint             `gorm:"primaryKey"`
	UserID    uint             `gorm:"index;not null"`
	ActorID   uint             `gorm:"not null"`
	Kind      NotificationKind `gorm:"size:16;not null"`
	TargetID  uint             `gorm:"not null"`
	Body      string           `gorm:"size:512"`
	IsRead    bool             `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// All 列出需要自动迁移的全部表。
func All() []interface{} {
	return []interface{}{
		&User{}, &RefreshToken{}, &Category{}, &Content{}, &Comment{},
		&Like{}, &Wishlist{}, &Share{}, &Subscription{},
		&Conversation{}, &Message{}, &Notification{},
	}
}
