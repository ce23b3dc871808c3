package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"moringadaily/internal/db"
	"moringadaily/internal/metrics"
	"moringadaily/internal/models"
	"moringadaily/internal/notify"
	"moringadaily/internal/ws"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxMessageLen = 4000

// Broadcaster 接收新消息事件并推送给在线客户端，实现方不得阻塞调用方。
type Broadcaster interface {
	BroadcastNewMessage(evt ws.NewMessageEvent)
}

// ChatService 维护两人会话目录及会话内的消息。
type ChatService struct {
	db       *gorm.DB
	hub      Broadcaster
	notifier notify.Dispatcher
}

func NewChatService(db *gorm.DB, hub Broadcaster, notifier notify.Dispatcher) *ChatService {
	return &ChatService{db: db, hub: hub, notifier: notifier}
}

type ConversationDTO struct {
	ID        uint      `json:"id"`
	User1ID   uint      `json:"user1_id"`
	User2ID   uint      `json:"user2_id"`
	PeerID    uint      `json:"peer_id,omitempty"`
	PeerName  string    `json:"peer_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageDTO struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	RecipientID    uint      `json:"recipient_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// canonicalPair 把无序的用户对规范化为 (小, 大)。
func canonicalPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

func toConversationDTO(c models.Conversation) ConversationDTO {
	return ConversationDTO{ID: c.ID, User1ID: c.User1ID, User2ID: c.User2ID, CreatedAt: c.CreatedAt}
}

// GetOrCreateConversation 返回 userA 与 userB 之间唯一的会话，created 表示本次调用是否新建。
// 并发调用依靠 (user1_id, user2_id) 唯一索引与 ON CONFLICT DO NOTHING 保证只产生一行。
func (s *ChatService) GetOrCreateConversation(ctx context.Context, userA, userB uint) (*ConversationDTO, bool, error) {
	if userA == 0 || userB == 0 {
		return nil, false, validation("both participants are required")
	}
	if userA == userB {
		return nil, false, ErrSelfConversation
	}
	for _, id := range []uint{userA, userB} {
		if _, err := lookupUser(ctx, s.db, id); err != nil {
			return nil, false, err
		}
	}
	u1, u2 := canonicalPair(userA, userB)

	conv, err := s.findPair(ctx, u1, u2)
	if err == nil {
		dto := toConversationDTO(*conv)
		return &dto, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	created := models.Conversation{User1ID: u1, User2ID: u2}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&created)
	if res.Error != nil && !db.IsUniqueViolation(res.Error) {
		return nil, false, res.Error
	}
	if res.Error == nil && res.RowsAffected == 1 {
		log.Debug().Uint("conversation_id", created.ID).Uint("user1_id", u1).Uint("user2_id", u2).Msg("conversation created")
		dto := toConversationDTO(created)
		return &dto, true, nil
	}

	// 另一个请求抢先插入，读取已存在的那一行。
	conv, err = s.findPair(ctx, u1, u2)
	if err != nil {
		return nil, false, err
	}
	dto := toConversationDTO(*conv)
	return &dto, false, nil
}

func (s *ChatService) findPair(ctx context.Context, u1, u2 uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).Where("user1_id = ? AND user2_id = ?", u1, u2).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ChatService) findConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func isParticipant(c *models.Conversation, userID uint) bool {
	return userID == c.User1ID || userID == c.User2ID
}

// AppendMessage 向会话追加一条消息。发送方与接收方必须恰好是会话的两个参与者。
// 持久化成功后广播 new_message 事件，推送失败不影响返回结果。
func (s *ChatService) AppendMessage(ctx context.Context, conversationID, senderID, recipientID uint, body string) (*MessageDTO, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(body)) > maxMessageLen {
		return nil, validation("message body is too long")
	}
	conv, err := s.findConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if senderID == recipientID || !isParticipant(conv, senderID) || !isParticipant(conv, recipientID) {
		return nil, ErrParticipantMismatch
	}

	msg := models.Message{ConversationID: conv.ID, SenderID: senderID, RecipientID: recipientID, Body: body}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	metrics.ChatMessagesTotal.Inc()

	users, err := resolveUsers(ctx, s.db, []uint{senderID, recipientID})
	if err != nil {
		// 消息已提交，名字缺失只影响展示。
		log.Warn().Err(err).Uint("message_id", msg.ID).Msg("resolve message users")
		users = map[uint]models.User{}
	}
	recipient := users[recipientID]
	if s.hub != nil {
		s.hub.BroadcastNewMessage(ws.NewMessageEvent{
			ConversationID:  conv.ID,
			RecipientName:   recipient.Name(),
			LastMessage:     msg.Body,
			LastMessageTime: msg.CreatedAt,
			RecipientAvatar: recipient.AvatarURL,
		})
	}
	dispatch(ctx, s.notifier, notify.Notice{UserID: recipientID, ActorID: senderID, Kind: models.NotifyMessage, TargetID: conv.ID, Body: msg.Body})

	return &MessageDTO{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     users[senderID].Name(),
		RecipientID:    msg.RecipientID,
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt,
	}, nil
}

// SendDirect 供 WebSocket 入站消息使用：先取得（或创建）会话，再追加消息。
func (s *ChatService) SendDirect(ctx context.Context, senderID, recipientID uint, body string) error {
	conv, _, err := s.GetOrCreateConversation(ctx, senderID, recipientID)
	if err != nil {
		return err
	}
	_, err = s.AppendMessage(ctx, conv.ID, senderID, recipientID, body)
	return err
}

// ListMessages 按插入顺序返回会话内的全部消息。会话不存在时返回空列表；
// viewerID 非零时要求其为会话参与者。
func (s *ChatService) ListMessages(ctx context.Context, viewerID, conversationID uint) ([]MessageDTO, error) {
	conv, err := s.findConversation(ctx, conversationID)
	if errors.Is(err, ErrConversationNotFound) {
		return []MessageDTO{}, nil
	}
	if err != nil {
		return nil, err
	}
	if viewerID != 0 && !isParticipant(conv, viewerID) {
		return nil, forbidden("not a participant of this conversation")
	}
	return s.messagesOf(ctx, conv.ID)
}

// MessagesBetween 按规范化的用户对查找会话并返回消息，只读，从不创建会话。
func (s *ChatService) MessagesBetween(ctx context.Context, userA, userB uint) ([]MessageDTO, error) {
	if userA == userB {
		return nil, ErrSelfConversation
	}
	u1, u2 := canonicalPair(userA, userB)
	conv, err := s.findPair(ctx, u1, u2)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []MessageDTO{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.messagesOf(ctx, conv.ID)
}

// messagesOf 以自增 id 排序，同一时间戳的消息也保持插入顺序。
func (s *ChatService) messagesOf(ctx context.Context, conversationID uint) ([]MessageDTO, error) {
	var msgs []models.Message
	if err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("id asc").Find(&msgs).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.SenderID)
	}
	users, err := resolveUsers(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			SenderName:     users[m.SenderID].Name(),
			RecipientID:    m.RecipientID,
			Body:           m.Body,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out, nil
}

// ListConversationsForUser 返回用户参与的全部会话 id。
func (s *ChatService) ListConversationsForUser(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	err := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("id asc").Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Conversations 在 ListConversationsForUser 的基础上附带对方的展示名。
func (s *ChatService) Conversations(ctx context.Context, userID uint) ([]ConversationDTO, error) {
	ids, err := s.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationDTO, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var convs []models.Conversation
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id asc").Find(&convs).Error; err != nil {
		return nil, err
	}
	peers := make([]uint, 0, len(convs))
	for _, c := range convs {
		peers = append(peers, peerOf(c, userID))
	}
	users, err := resolveUsers(ctx, s.db, peers)
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		dto := toConversationDTO(c)
		dto.PeerID = peerOf(c, userID)
		dto.PeerName = users[dto.PeerID].Name()
		out = append(out, dto)
	}
	return out, nil
}

func peerOf(c models.Conversation, userID uint) uint {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}
