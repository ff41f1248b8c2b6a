package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onboarding-gateway/backend/internal/registry"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to the peer with this period.
	heartbeatInterval = 5 * time.Second

	// A peer silent for longer than this is considered dead.
	clientTimeout = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Outbound queue length. A full queue drops the payload; the registry
	// must never block on a slow client.
	sendBuffer = 256
)

// idFrame is the first text frame sent after a successful attach. The client
// publishes the value out-of-band so the backend can address pushes to it.
type idFrame struct {
	Type  string `json:"type"`
	Value uint16 `json:"value"`
}

// Session is one live WebSocket-connected client. It registers itself with
// the Registry, announces its assigned id to the peer, keeps the connection
// alive with ping/pong heartbeats and forwards pushed payloads out as text
// frames.
type Session struct {
	conn *websocket.Conn
	reg  *registry.Registry

	id   uint16
	send chan []byte

	heartbeat time.Duration
	timeout   time.Duration

	mu       sync.Mutex
	lastSeen time.Time
	closed   bool
}

// NewSession wraps an upgraded connection. The session does nothing until
// Run is called.
func NewSession(conn *websocket.Conn, reg *registry.Registry) *Session {
	return &Session{
		conn:      conn,
		reg:       reg,
		send:      make(chan []byte, sendBuffer),
		heartbeat: heartbeatInterval,
		timeout:   clientTimeout,
		lastSeen:  time.Now(),
	}
}

// ID returns the registry-assigned id, or 0 if attach has not completed.
func (s *Session) ID() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Deliver enqueues data for delivery as a single text frame. It implements
// registry.Outbound: it never blocks and never reports failure. A full
// queue or a closed session drops the payload.
func (s *Session) Deliver(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.send <- []byte(data):
	default:
		log.Printf("session %d: outbound queue full, dropping payload", s.id)
	}
}

// Run attaches the session to the registry, emits the id frame and serves
// the connection until the peer disconnects, a protocol error occurs or the
// heartbeat times out. It blocks until the session is fully torn down and
// always leaves the registry clean and the connection closed.
func (s *Session) Run() {
	// The announce hook runs on the registry goroutine before the session
	// becomes addressable, so the id frame is the first outbound frame.
	_, err := s.reg.Attach(s, func(id uint16) {
		s.mu.Lock()
		s.id = id
		s.mu.Unlock()

		frame, _ := json.Marshal(idFrame{Type: "id", Value: id})
		s.send <- frame
	})
	if err != nil {
		// Registry unreachable; terminate before announcing anything.
		s.conn.Close()
		return
	}

	go s.writePump()
	s.readPump()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) sinceLastSeen() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeen)
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// readPump pumps frames from the connection. Ping and pong refresh the
// liveness clock; text frames are echoed back verbatim. It exits on close
// frames, protocol errors and transport errors, detaching the session.
func (s *Session) readPump() {
	defer func() {
		s.reg.Detach(s.id)
		s.close()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetPingHandler(func(payload string) error {
		s.touch()
		return s.conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(writeWait))
	})
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	for {
		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("session %d: read error: %v", s.id, err)
			}
			return
		}

		s.touch()

		if msgType == websocket.TextMessage {
			// Diagnostic loopback: inbound text comes straight back.
			s.Deliver(string(message))
		}
	}
}

// writePump pumps queued payloads to the connection and drives the
// heartbeat. When the peer has been silent past the timeout the pump exits,
// closing the connection and thereby terminating the read pump.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.heartbeat)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if s.sinceLastSeen() > s.timeout {
				log.Printf("session %d: client timeout, disconnecting", s.id)
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
