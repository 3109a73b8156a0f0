package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-app/internal/logger"
	"chat-app/internal/models"
	"chat-app/internal/observability"
)

// Hub maintains active websocket rooms, one per conversation. It is the
// ephemeral fan-out layer: best-effort, at-most-once, never the source of
// truth for messages.
type Hub struct {
	rooms map[int]map[*websocket.Conn]ConnInfo
	// gorilla/websocket allows a single concurrent writer per connection;
	// one mutex per connection serializes broadcasts from parallel requests.
	writes map[*websocket.Conn]*sync.Mutex
	mu     sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[int]map[*websocket.Conn]ConnInfo),
		writes: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// JoinRoom registers a connection in a conversation room.
func (h *Hub) JoinRoom(chatID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.rooms[chatID][conn] = info
	if _, ok := h.writes[conn]; !ok {
		h.writes[conn] = &sync.Mutex{}
	}
}

// LeaveRoom removes a connection from a single room.
func (h *Hub) LeaveRoom(chatID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[chatID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, chatID)
		}
	}
	h.releaseWriteLock(conn)
}

// RemoveConn drops a connection from every room it joined.
func (h *Hub) RemoveConn(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for chatID, conns := range h.rooms {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, chatID)
		}
	}
	delete(h.writes, conn)
}

// releaseWriteLock drops the connection's write mutex once no room holds it.
// Callers must hold h.mu.
func (h *Hub) releaseWriteLock(conn *websocket.Conn) {
	for _, conns := range h.rooms {
		if _, ok := conns[conn]; ok {
			return
		}
	}
	delete(h.writes, conn)
}

// RoomSize reports the number of connections in a room.
func (h *Hub) RoomSize(chatID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// BroadcastNewMessage fans the persisted message out to every room member
// except the sender's own connections. The durable write has already
// completed by the time this runs; write failures only drop the dead
// connection, the message itself is safe.
func (h *Hub) BroadcastNewMessage(chatID, senderID int, msg models.MessageView) {
	event := models.ChatEvent{Type: "new-message", ChatID: chatID, Message: &msg}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("marshal chat event")
		return
	}

	type target struct {
		info    ConnInfo
		writeMu *sync.Mutex
	}
	h.mu.RLock()
	targets := make(map[*websocket.Conn]target, len(h.rooms[chatID]))
	for conn, info := range h.rooms[chatID] {
		if info.UserID != senderID {
			targets[conn] = target{info: info, writeMu: h.writes[conn]}
		}
	}
	h.mu.RUnlock()

	for conn, tgt := range targets {
		tgt.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		tgt.writeMu.Unlock()
		if err != nil {
			logger.Warn().Err(err).Int("chat_id", chatID).Msg("websocket write failed")
			conn.Close()
			h.RemoveConn(conn)
			h.publishWSError(chatID, tgt.info, err)
		}
	}
}

func (h *Hub) publishWSError(chatID int, info ConnInfo, err error) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"chat_id":     chatID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}
