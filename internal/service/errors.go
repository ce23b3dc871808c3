package service

import "errors"

// 错误分类。handler 通过 errors.Is 判断分类并映射到 HTTP 状态码。
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// Error 是带分类的业务错误，Message 可直接返回给调用方。
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func validation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }
func notFound(msg string) error   { return &Error{Kind: ErrNotFound, Message: msg} }
func forbidden(msg string) error  { return &Error{Kind: ErrUnauthorized, Message: msg} }
func conflict(msg string) error   { return &Error{Kind: ErrConflict, Message: msg} }

// 业务层通用错误。
var (
	ErrUsernameTaken      = conflict("username or email taken")
	ErrInvalidCredentials = &Error{Kind: ErrUnauthorized, Message: "invalid credentials"}
	ErrUserInactive       = &Error{Kind: ErrUnauthorized, Message: "account deactivated"}
	ErrInvalidRefresh     = &Error{Kind: ErrUnauthorized, Message: "invalid refresh token"}
	ErrUserNotFound       = notFound("user not found")
	ErrNotAdmin           = forbidden("admin role required")

	ErrContentNotFound  = notFound("content not found")
	ErrCategoryNotFound = notFound("category not found")
	ErrCategoryTaken    = conflict("category already exists")

	ErrAlreadyLiked      = conflict("already liked")
	ErrAlreadySubscribed = conflict("already subscribed")

	ErrSelfConversation     = validation("cannot start a conversation with yourself")
	ErrConversationNotFound = notFound("conversation not found")
	ErrParticipantMismatch  = validation("sender and recipient must be the conversation participants")
	ErrEmptyMessage         = validation("message body is empty")

	ErrCommentNotFound    = notFound("comment not found")
	ErrCrossContentReply  = validation("parent comment belongs to a different content")
	ErrEmptyComment       = validation("comment body is empty")
	ErrNotificationAbsent = notFound("notification not found")
)
