package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"moringadaily/internal/metrics"

	"github.com/rs/zerolog/log"
)

// NewMessageEvent 是新私信产生时推送给客户端的负载。
type NewMessageEvent struct {
	Type            string    `json:"type"`
	ConversationID  uint      `json:"conversation_id"`
	RecipientName   string    `json:"recipient_name"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	RecipientAvatar string    `json:"recipient_avatar,omitempty"`
}

// Hub 是进程级的实时连接集合，由 main 创建并通过 Run 驱动，ctx 取消时关闭全部连接。
// 客户端集合只在 run 循环内修改，外部通过 channel 注册、注销与广播。
//
// 广播面向所有在线客户端，不按收件人过滤。
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	online     int32
	sendBuffer int
}

func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		sendBuffer: sendBuffer,
	}
}

// Run 阻塞直到 ctx 取消。
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = true
			h.setOnline()
			metrics.WsConnections.Inc()
		case c := <-h.unregister:
			h.drop(c)
		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.trySend(msg) {
					// 发送队列已满的客户端被视为卡死，直接断开，不拖慢其他客户端。
					metrics.BroadcastDroppedTotal.WithLabelValues("slow_client").Inc()
					log.Warn().Uint("user_id", c.userID).Msg("ws client too slow, dropping")
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
	h.setOnline()
	metrics.WsConnections.Dec()
}

func (h *Hub) shutdown() {
	close(h.done)
	for c := range h.clients {
		h.drop(c)
	}
}

func (h *Hub) setOnline() { atomic.StoreInt32(&h.online, int32(len(h.clients))) }

// Online 返回当前在线客户端数量。
func (h *Hub) Online() int { return int(atomic.LoadInt32(&h.online)) }

// Register 在 Hub 已停止时返回 false。
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastNewMessage 非阻塞投递：广播队列满或 Hub 已停止时丢弃事件，调用方永远不会被卡住。
func (h *Hub) BroadcastNewMessage(evt NewMessageEvent) {
	evt.Type = "new_message"
	b, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Uint("conversation_id", evt.ConversationID).Msg("marshal new_message")
		return
	}
	h.publish(b)
}

func (h *Hub) publish(b []byte) {
	select {
	case <-h.done:
		metrics.BroadcastDroppedTotal.WithLabelValues("stopped").Inc()
	case h.broadcast <- b:
	default:
		metrics.BroadcastDroppedTotal.WithLabelValues("backlog").Inc()
		log.Warn().Msg("ws broadcast backlog full, event dropped")
	}
}
