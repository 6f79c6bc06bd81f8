// Package wsrelay implements the WebSocket Hub (C8): connection lifecycle,
// message routing between a channel's desktop and mobile member, and the
// safe-send discipline that keeps a write race on a closing socket from
// becoming a panic or a logged error.
package wsrelay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Role names which side of the relay a connection is, using the same values
// as auth.DeviceType.
type Role string

const (
	RoleDesktop Role = "desktop"
	RoleMobile  Role = "mobile"
)

// Session is one connected WebSocket: a desktop awaiting pairing, or a
// mobile that has joined a channel. All writes go through Send, which
// serializes them behind a per-connection lock so a concurrent send from
// the Scheduler's result-publish path and the hub's own fan-out never race
// on the same socket.
type Session struct {
	ID        string
	Role      Role
	ChannelID string

	conn *websocket.Conn

	mu          sync.Mutex
	closed      bool
	lastPingAt  time.Time
	connectedAt time.Time
}

func NewSession(id string, role Role, conn *websocket.Conn) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		Role:        role,
		conn:        conn,
		lastPingAt:  now,
		connectedAt: now,
	}
}

// Send writes a JSON-encodable value to the socket. Writing to an already
// closed connection is an expected race under concurrent cleanup and is
// reported back as ok=false without being treated as an error condition
// worth logging above debug.
func (s *Session) Send(v any) (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if err := s.conn.WriteJSON(v); err != nil {
		return false
	}
	return true
}

// SendBinary writes a raw binary frame (echoing audio back, e.g.) under
// the same per-connection lock as Send.
func (s *Session) SendBinary(data []byte) (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return false
	}
	return true
}

// Touch records a client-originated ping/pong so the hub's staleness sweep
// can tell a quiet-but-alive client from an actually dead one.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPingAt = time.Now()
}

func (s *Session) stale(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastPingAt) > timeout
}

// Close marks the session closed and closes the underlying connection. It
// is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.conn.Close()
}
