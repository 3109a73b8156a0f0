package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-app/internal/auth"
	"chat-app/internal/logger"
	"chat-app/internal/middleware"
	"chat-app/internal/observability"
	"chat-app/internal/repositories"
)

// Handler upgrades websocket connections and runs the join protocol: the
// client sends join frames naming conversations, the server verifies
// membership before adding the connection to the room.
type Handler struct {
	hub      *Hub
	chatRepo repositories.ChatRepository
	tokens   *auth.TokenManager
	sessions repositories.SessionRepository
}

// NewHandler constructs a websocket Handler.
func NewHandler(hub *Hub, chatRepo repositories.ChatRepository, tokens *auth.TokenManager, sessions repositories.SessionRepository) *Handler {
	return &Handler{hub: hub, chatRepo: chatRepo, tokens: tokens, sessions: sessions}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is what clients send over the socket.
type clientFrame struct {
	Type   string `json:"type"`
	ChatID int    `json:"chat_id"`
}

// Handle authenticates the connection, upgrades it and serves join/leave
// frames until the peer goes away.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-app/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	userID, err := h.tokens.Parse(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	live, err := h.sessions.ExistsLive(ctx, token)
	if err != nil || !live {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired or revoked"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive()
	h.publishLifecycle(ctx, "ws_connect", 0, info, "")

	// net/http cancels the request context once the handler returns; the
	// read loop outlives the request, so detach from the cancellation while
	// keeping the context values.
	go h.readLoop(context.WithoutCancel(ctx), conn, info)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.RemoveConn(conn)
		observability.DecWSActive()
		h.publishLifecycle(ctx, "ws_disconnect", 0, info, closeReason)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.publishLifecycle(ctx, "ws_error", 0, info, closeReason)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "join":
			member, err := h.chatRepo.IsParticipant(ctx, frame.ChatID, info.UserID)
			if err != nil {
				logger.Error().Err(err).Int("chat_id", frame.ChatID).Msg("membership check failed")
				continue
			}
			if !member {
				continue
			}
			h.hub.JoinRoom(frame.ChatID, conn, info)
			h.publishLifecycle(ctx, "ws_join", frame.ChatID, info, "")
		case "leave":
			h.hub.LeaveRoom(frame.ChatID, conn)
		}
	}
}

func (h *Handler) publishLifecycle(ctx context.Context, event string, chatID int, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	_ = observability.PublishEvent(ctx, "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"chat_id":     chatID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
