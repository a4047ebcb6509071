package service

// Broadcaster pushes an event to every live connection in a poll's room.
// Implemented by the WebSocket hub; the interface avoids an import cycle and
// keeps the admission path free of process-wide state.
type Broadcaster interface {
	BroadcastToRoom(shareCode string, event string, payload interface{})
}
