package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Server → client events
const (
	EventPollState   MessageType = "poll-state"
	EventVoteUpdate  MessageType = "vote-update"
	EventViewerCount MessageType = "viewer-count"
	EventError       MessageType = "error"
)

// Client → server events
const (
	EventJoinPoll  = "join-poll"
	EventLeavePoll = "leave-poll"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// viewerCountPayload is broadcast to a room on membership change.
type viewerCountPayload struct {
	ViewerCount int `json:"viewerCount"`
}

// Connection represents one live WebSocket connection. A connection is in
// at most one poll room; room is owned by the hub and guarded by its lock.
type Connection struct {
	Send chan []byte
	hub  *Hub
	room string
}

// Hub maintains one logical room per poll, keyed by share code. Membership
// exists only for a connection's lifetime and is used for broadcast scope
// and viewer counts.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Connection]bool

	broadcast chan *roomMessage
}

type roomMessage struct {
	room string
	data []byte
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		rooms:     make(map[string]map[*Connection]bool),
		broadcast: make(chan *roomMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for msg := range h.broadcast {
		h.mu.RLock()
		for conn := range h.rooms[msg.room] {
			select {
			case conn.Send <- msg.data:
			default:
				// Drop message if buffer full
			}
		}
		h.mu.RUnlock()
	}
}

// NewConnection creates a connection bound to this hub.
func (h *Hub) NewConnection() *Connection {
	return &Connection{
		Send: make(chan []byte, 256),
		hub:  h,
	}
}

// Join moves conn into a poll's room, tells the other members the new viewer
// count, and returns that count (including conn). Rejoining simply moves the
// connection.
func (h *Hub) Join(conn *Connection, room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.room == room {
		return len(h.rooms[room])
	}
	if conn.room != "" {
		h.removeLocked(conn)
	}

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Connection]bool)
	}
	h.rooms[room][conn] = true
	conn.room = room

	count := len(h.rooms[room])
	payload := mustEnvelope(EventViewerCount, viewerCountPayload{ViewerCount: count})
	for member := range h.rooms[room] {
		if member == conn {
			continue
		}
		select {
		case member.Send <- payload:
		default:
		}
	}

	return count
}

// Leave removes conn from its room, if any, and broadcasts the updated
// viewer count to the remaining members.
func (h *Hub) Leave(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn)
}

// LeaveRoom removes conn from the named room. A share code naming a room the
// connection is not in is ignored.
func (h *Hub) LeaveRoom(conn *Connection, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn.room != room {
		return
	}
	h.removeLocked(conn)
}

// Unregister is Leave plus closing the send channel; called exactly once,
// when the connection's read pump exits. Because removal happens before the
// count broadcast, remaining members never see the departing connection.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn)
	close(conn.Send)
}

// removeLocked drops conn from its room and notifies the remaining members.
// Callers hold h.mu.
func (h *Hub) removeLocked(conn *Connection) {
	room := conn.room
	if room == "" {
		return
	}
	delete(h.rooms[room], conn)
	conn.room = ""

	members := h.rooms[room]
	if len(members) == 0 {
		delete(h.rooms, room)
		return
	}

	payload := mustEnvelope(EventViewerCount, viewerCountPayload{ViewerCount: len(members)})
	for member := range members {
		select {
		case member.Send <- payload:
		default:
		}
	}
}

// ViewerCount returns the number of live connections in a poll's room.
func (h *Hub) ViewerCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastToRoom sends an event to every member of a poll's room
// (implements service.Broadcaster).
func (h *Hub) BroadcastToRoom(shareCode string, event string, payload interface{}) {
	data, err := envelope(MessageType(event), payload)
	if err != nil {
		log.Printf("Broadcast marshal error: %v", err)
		return
	}
	h.broadcast <- &roomMessage{room: shareCode, data: data}
}

func envelope(event MessageType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{Type: event, Payload: data})
}

func mustEnvelope(event MessageType, payload interface{}) []byte {
	data, err := envelope(event, payload)
	if err != nil {
		log.Printf("Envelope marshal error: %v", err)
		return nil
	}
	return data
}
