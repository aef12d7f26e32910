package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/dto"
	"arcade-rooms/internal/repository"
	"arcade-rooms/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// 单次服务调用的超时
	callTimeout = 5 * time.Second
)

// SessionService Hub 需要的会话操作
type SessionService interface {
	GetSession(ctx context.Context, roomID string) (*domain.GameSession, error)
	ApplyMove(ctx context.Context, callerUserID, roomID string, move domain.Move) (*service.MoveResult, error)
	TouchSessionActivity(ctx context.Context, roomID, userID string) error
}

// PresenceTracker 连接建立/断开时更新成员在线状态
type PresenceTracker interface {
	SetOnline(ctx context.Context, roomID, userID string, online bool) error
}

// EventSource 会话事件的来源 (Redis PubSub)
type EventSource interface {
	SubscribeSessionEvents(ctx context.Context, handler func(repository.SessionEvent)) error
}

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string // "register", "unregister", "frame"
	RoomID  string
	UserID  string
	Client  *Client
	RawData []byte // 仅用于 frame
}

// Hub 维护活跃客户端集合，把客户端帧交给 SessionService，
// 并把 Redis 上的会话事件转发给对应房间的连接。
type Hub struct {
	messageChan chan HubMessage

	// map[roomID]map[*Client]bool
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	sessions SessionService
	presence PresenceTracker
	events   EventSource
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(sessions SessionService, presence PresenceTracker, events EventSource) *Hub {
	if sessions == nil {
		panic("SessionService cannot be nil for Hub")
	}
	if presence == nil {
		panic("PresenceTracker cannot be nil for Hub")
	}
	if events == nil {
		panic("EventSource cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		sessions:    sessions,
		presence:    presence,
		events:      events,
	}
}

// Run 启动 Hub 的主事件处理循环，在单独的 goroutine 中运行，直到 ctx 取消。
func (h *Hub) Run(ctx context.Context) {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(msg.Client)
			case "unregister":
				h.unregisterClient(msg.Client)
			case "frame":
				// 并发处理，同一会话的冲突由版本号解决
				go h.handleClientFrame(msg)
			default:
				log.Warnf("Hub: Received unknown message type: %s from user %s in room %s", msg.Type, msg.UserID, msg.RoomID)
			}
		}
	}
}

// Subscribe 订阅会话事件并转发，阻塞直到 ctx 取消。订阅断开后按退避重连。
func (h *Hub) Subscribe(ctx context.Context) {
	log := logrus.WithField("component", "hub")
	backoff := time.Second
	for {
		err := h.events.SubscribeSessionEvents(ctx, h.dispatchEvent)
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Warnf("Session event subscription lost, retrying in %s", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": client.roomID, "user_id": client.userID})

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.roomID]; !ok {
		h.rooms[client.roomID] = make(map[*Client]bool)
	}
	h.rooms[client.roomID][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	go func() {
		h.setOnline(client.roomID, client.userID, true)
		h.sendSessionState(client)
	}()
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": client.roomID, "user_id": client.userID})

	h.roomsMu.Lock()
	roomClients, ok := h.rooms[client.roomID]
	if !ok || !roomClients[client] {
		h.roomsMu.Unlock()
		logCtx.Debug("Client already unregistered")
		return
	}
	delete(roomClients, client)
	// 关闭 send 通道使 WritePump 退出；只有从 map 中删除的一方会执行到这里
	close(client.send)
	stillOnline := false
	for other := range roomClients {
		if other.userID == client.userID {
			stillOnline = true
			break
		}
	}
	if len(roomClients) == 0 {
		delete(h.rooms, client.roomID)
	}
	h.roomsMu.Unlock()
	logCtx.Info("Client unregistered from Hub")

	if !stillOnline {
		go h.setOnline(client.roomID, client.userID, false)
	}
}

func (h *Hub) setOnline(roomID, userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := h.presence.SetOnline(ctx, roomID, userID, online); err != nil && !errors.Is(err, service.ErrMemberNotFound) {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "online": online}).WithError(err).Warn("Hub: failed to update presence")
	}
}

// sendSessionState 新连接先收到当前会话 (如果有)
func (h *Hub) sendSessionState(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	session, err := h.sessions.GetSession(ctx, client.roomID)
	if err != nil {
		if !errors.Is(err, service.ErrSessionNotFound) {
			logrus.WithField("room_id", client.roomID).WithError(err).Error("Hub: failed to load session for new client")
			h.sendTo(client, dto.ErrorDTO{Type: dto.FrameError, Message: "Failed to load session"})
		}
		return
	}
	h.sendTo(client, dto.SessionFrame{Type: dto.FrameSessionState, RoomID: client.roomID, Session: session})
}

// handleClientFrame 处理客户端发来的一帧
func (h *Hub) handleClientFrame(msg HubMessage) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": msg.RoomID, "user_id": msg.UserID})

	var frame dto.ClientFrame
	if err := json.Unmarshal(msg.RawData, &frame); err != nil {
		logCtx.WithError(err).Debug("Hub: malformed client frame")
		h.sendTo(msg.Client, dto.ErrorDTO{Type: dto.FrameError, Message: "Malformed message"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	switch frame.Type {
	case dto.FrameMove:
		if frame.Move == nil || frame.Move.Type == "" {
			h.sendTo(msg.Client, dto.ErrorDTO{Type: dto.FrameError, Message: "move is required"})
			return
		}
		res, err := h.sessions.ApplyMove(ctx, msg.UserID, msg.RoomID, *frame.Move)
		if err != nil {
			logCtx.WithError(err).Debug("Hub: move failed")
			h.sendTo(msg.Client, dto.ErrorDTO{Type: dto.FrameError, Message: err.Error()})
			return
		}
		h.sendTo(msg.Client, dto.MoveResultFrame{
			Type:            dto.FrameMoveResult,
			Success:         res.Success,
			Error:           res.Error,
			Session:         res.Session,
			VersionConflict: res.VersionConflict,
		})
	case dto.FrameHeartbeat:
		if err := h.sessions.TouchSessionActivity(ctx, msg.RoomID, msg.UserID); err != nil && !errors.Is(err, service.ErrSessionNotFound) {
			logCtx.WithError(err).Warn("Hub: heartbeat failed")
		}
	default:
		h.sendTo(msg.Client, dto.ErrorDTO{Type: dto.FrameError, Message: "unknown message type: " + frame.Type})
	}
}

// dispatchEvent 把 Redis 上的会话事件转发给房间内的连接
func (h *Hub) dispatchEvent(event repository.SessionEvent) {
	switch event.Type {
	case repository.EventSessionUpdate:
		// 提交者已经通过 move_result 拿到了新状态
		h.broadcast(event.RoomID, h.frameOf(event), func(c *Client) bool { return c.userID != event.UserID })
	case repository.EventSessionDeleted:
		h.broadcast(event.RoomID, h.frameOf(event), nil)
	case repository.EventMemberLeft:
		h.broadcast(event.RoomID, h.frameOf(event), nil)
		h.disconnectUser(event.RoomID, event.UserID)
	default:
		logrus.WithField("type", event.Type).Debug("Hub: ignoring unknown session event")
	}
}

func (h *Hub) frameOf(event repository.SessionEvent) []byte {
	data, err := json.Marshal(dto.SessionFrame{
		Type:     event.Type,
		RoomID:   event.RoomID,
		Session:  event.Session,
		UserID:   event.UserID,
		MoveType: event.MoveType,
	})
	if err != nil {
		logrus.WithError(err).Error("Hub: failed to marshal session frame")
		return nil
	}
	return data
}

// disconnectUser 用户已不在该房间 (被移出或自动离开)，断开其在该房间的连接
func (h *Hub) disconnectUser(roomID, userID string) {
	h.roomsMu.RLock()
	var targets []*Client
	for c := range h.rooms[roomID] {
		if c.userID == userID {
			targets = append(targets, c)
		}
	}
	h.roomsMu.RUnlock()
	for _, c := range targets {
		h.QueueMessage(HubMessage{Type: "unregister", RoomID: roomID, UserID: userID, Client: c})
	}
}

// broadcast 将消息发送给房间内满足 include 的客户端，include 为 nil 时发给所有人
func (h *Hub) broadcast(roomID string, message []byte, include func(*Client) bool) {
	if message == nil {
		return
	}
	h.roomsMu.RLock()
	recipients := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if include == nil || include(c) {
			recipients = append(recipients, c)
		}
	}
	// 持有读锁发送，unregister 需要写锁才能关闭 send 通道
	for _, c := range recipients {
		select {
		case c.send <- message:
		default:
			logrus.WithFields(logrus.Fields{"room_id": roomID, "receiver_user_id": c.userID}).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
	h.roomsMu.RUnlock()
}

// sendTo 向单个连接发送一帧；连接已注销时丢弃
func (h *Hub) sendTo(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logrus.WithError(err).Error("Hub: failed to marshal frame")
		return
	}
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	if !h.rooms[c.roomID][c] {
		return
	}
	select {
	case c.send <- data:
	default:
		logrus.WithFields(logrus.Fields{"room_id": c.roomID, "user_id": c.userID}).Warn("Client send channel full, dropping frame")
	}
}

func (h *Hub) closeAll() {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for roomID, clients := range h.rooms {
		for c := range clients {
			close(c.send)
		}
		delete(h.rooms, roomID)
	}
}

// ClientCount 房间内的连接数
func (h *Hub) ClientCount(roomID string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomID])
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)，队列已满时返回 false。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_id":      msg.RoomID,
			"user_id":      msg.UserID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}
