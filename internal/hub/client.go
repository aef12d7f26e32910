package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	roomID string
	userID string
	send   chan []byte // 发往此客户端的缓冲通道，只由 Hub 关闭
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, roomID, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		roomID: roomID,
		userID: userID,
		send:   make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub。
func (c *Client) ReadPump() {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID})
	defer func() {
		unregisterMsg := HubMessage{Type: "unregister", RoomID: c.roomID, UserID: c.userID, Client: c}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logCtx.Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logCtx.Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			logCtx.Debugf("Received non-text message type: %d", messageType)
			continue
		}

		frameMsg := HubMessage{
			Type:    "frame",
			RoomID:  c.roomID,
			UserID:  c.userID,
			Client:  c,
			RawData: message,
		}
		// 非阻塞发送，Hub 处理不过来则丢弃
		select {
		case c.hub.messageChan <- frameMsg:
		default:
			logCtx.Warn("Hub message channel full, dropping client message")
		}
	}
}

// WritePump 将消息从 send 通道泵送到 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID})
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logCtx.Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logCtx.WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logCtx.WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

func (c *Client) RoomID() string { return c.roomID }
func (c *Client) UserID() string { return c.userID }
func (c *Client) CloseConn() { c.conn.Close() }
