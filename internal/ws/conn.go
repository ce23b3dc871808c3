package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"moringadaily/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxPayload = 1 << 16
)

// MessageSender 把客户端经 WebSocket 发来的私信交给业务层持久化。
type MessageSender interface {
	SendDirect(ctx context.Context, senderID, recipientID uint, body string) error
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uint
	uname  string

	// mu 保护 send 的发送与关闭，closed 之后不再写入。
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn, userID uint, uname string) *Client {
	return &Client{hub: h, conn: conn, send: make(chan []byte, h.sendBuffer), userID: userID, uname: uname}
}

// trySend 非阻塞入队，队列满或连接已关闭时返回 false。
func (c *Client) trySend(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type InboundMessage struct {
	Type        string `json:"type"`
	RecipientID uint   `json:"recipient_id"`
	Content     string `json:"content"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Serve 完成鉴权后升级为 WebSocket 并注册到 Hub。
func Serve(h *Hub, guard *auth.Guard, sender MessageSender) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _, err := guard.Authenticate(c.Request.Context(), auth.BearerToken(c, true))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newClient(h, conn, user.ID, user.Username)
		if !h.Register(client) {
			_ = conn.Close()
			return
		}
		log.Debug().Uint("user_id", user.ID).Msg("ws connected")

		go client.writePump()
		client.readPump(sender)
	}
}

func (c *Client) readPump(sender MessageSender) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxPayload)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var in InboundMessage
		if err := json.Unmarshal(data, &in); err != nil || in.Type != "message" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err = sender.SendDirect(ctx, c.userID, in.RecipientID, in.Content)
		cancel()
		if err != nil {
			c.reply(errorEvent{Type: "error", Error: err.Error()})
		}
	}
}

// reply 只发给当前连接，队列满或连接已被 Hub 关闭时直接丢弃。
func (c *Client) reply(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.trySend(b)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
