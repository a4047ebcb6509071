package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pulsepoll/internal/service"
	"pulsepoll/internal/transport/rest/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// Per-message budget for the durable-store reads behind a join.
	stateFetchTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub     *Hub
	pollSvc *service.PollService
	limiter *IPRateLimiter
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, pollSvc *service.PollService, limiter *IPRateLimiter) *Handler {
	return &Handler{
		hub:     hub,
		pollSvc: pollSvc,
		limiter: limiter,
	}
}

// clientMessage is the envelope clients send.
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	ShareCode string `json:"shareCode"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS handles GET /api/v1/ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ip := middleware.ClientIP(r)
	if !h.limiter.Allow(ip) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := h.hub.NewConnection()
	log.Printf("Socket connected from %s", ip)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.send(EventError, errorPayload{Message: "Invalid message"})
			continue
		}

		switch msg.Type {
		case EventJoinPoll:
			h.handleJoin(conn, msg.Payload)
		case EventLeavePoll:
			h.handleLeave(conn, msg.Payload)
		default:
			// Unknown event types are ignored
		}
	}
}

// handleJoin puts the connection into the poll's room and sends it the
// current state snapshot; everyone else in the room learns the new viewer
// count.
func (h *Handler) handleJoin(conn *Connection, payload json.RawMessage) {
	shareCode := parseShareCode(payload)
	if shareCode == "" {
		conn.send(EventError, errorPayload{Message: "Invalid share code"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stateFetchTimeout)
	defer cancel()

	state, err := h.pollSvc.State(ctx, shareCode)
	if err != nil {
		if errors.Is(err, service.ErrPollNotFound) {
			conn.send(EventError, errorPayload{Message: "Poll not found"})
		} else {
			log.Printf("Error fetching poll state for socket: %v", err)
			conn.send(EventError, errorPayload{Message: "Failed to load poll data"})
		}
		return
	}

	state.ViewerCount = h.hub.Join(conn, shareCode)
	conn.send(EventPollState, state)
}

// handleLeave removes the connection from the named room. A share code for a
// room the connection is not in is ignored; an empty payload leaves the
// current room.
func (h *Handler) handleLeave(conn *Connection, payload json.RawMessage) {
	shareCode := parseShareCode(payload)
	if shareCode == "" {
		h.hub.Leave(conn)
		return
	}
	h.hub.LeaveRoom(conn, shareCode)
}

// parseShareCode accepts either {"shareCode":"..."} or a bare JSON string.
func parseShareCode(payload json.RawMessage) string {
	var obj joinPayload
	if err := json.Unmarshal(payload, &obj); err == nil && obj.ShareCode != "" {
		return obj.ShareCode
	}
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}
	return ""
}

// send delivers an event to this connection only.
func (c *Connection) send(event MessageType, payload interface{}) {
	data := mustEnvelope(event, payload)
	if data == nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
