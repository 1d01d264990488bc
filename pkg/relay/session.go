package relay

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugKitten/KRelay/pkg/protocol"
)

var ErrSessionManagerClosed = errors.New("relay: session manager closed")

// Direction is the side a frame came from
type Direction int

const (
	FromClient Direction = iota
	FromServer
)

func (d Direction) String() string {
	if d == FromServer {
		return "server"
	}
	return "client"
}

// peerConn writes to one side of a session. Writes are serialized so hooks
// can inject frames while the pump is relaying.
type peerConn struct {
	conn net.Conn
	mu   sync.Mutex
}

func (p *peerConn) writeFrame(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.conn.Write(frame)
	return err
}

// Session is one client connection and its upstream connection. It is the
// hook.Conn handed to every callback.
type Session struct {
	id        uint64
	registry  *protocol.Registry
	metrics   *Metrics
	client    peerConn
	server    peerConn
	created   time.Time
	closeOnce sync.Once
}

// ID returns the session id, unique for the life of the process
func (s *Session) ID() uint64 {
	return s.id
}

// RemoteAddr returns the game client's address
func (s *Session) RemoteAddr() net.Addr {
	return s.client.conn.RemoteAddr()
}

// UpstreamAddr returns the game server's address
func (s *Session) UpstreamAddr() net.Addr {
	return s.server.conn.RemoteAddr()
}

// Created returns when the session was established
func (s *Session) Created() time.Time {
	return s.created
}

// SendToClient injects a message towards the game client
func (s *Session) SendToClient(msg protocol.Message) error {
	return s.inject(FromServer, msg)
}

// SendToServer injects a message towards the game server
func (s *Session) SendToServer(msg protocol.Message) error {
	return s.inject(FromClient, msg)
}

func (s *Session) inject(dir Direction, msg protocol.Message) error {
	frame, err := s.registry.EncodeFrame(msg)
	if err != nil {
		return err
	}
	if err := s.peer(dir).writeFrame(frame); err != nil {
		return fmt.Errorf("session %d: inject %s: %w", s.id, protocol.TypeName(msg), err)
	}
	if s.metrics != nil {
		s.metrics.RecordFrameInjected(dir, protocol.TypeName(msg))
	}
	return nil
}

// source is the connection frames travelling in dir are read from
func (s *Session) source(dir Direction) net.Conn {
	if dir == FromServer {
		return s.server.conn
	}
	return s.client.conn
}

// peer is the side frames travelling in dir are written to
func (s *Session) peer(dir Direction) *peerConn {
	if dir == FromServer {
		return &s.client
	}
	return &s.server
}

// Close closes both connections. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.client.conn.Close()
		s.server.conn.Close()
	})
}

// SessionManager tracks all live sessions
type SessionManager struct {
	registry *protocol.Registry
	sessions map[uint64]*Session
	nextID   uint64
	closed   bool
	mu       sync.RWMutex
	metrics  *Metrics
}

// NewSessionManager creates a new session manager
func NewSessionManager(registry *protocol.Registry, metrics *Metrics) *SessionManager {
	return &SessionManager{
		registry: registry,
		metrics:  metrics,
		sessions: make(map[uint64]*Session),
		nextID:   1,
	}
}

// CreateSession pairs a client connection with its upstream connection
func (sm *SessionManager) CreateSession(client, server net.Conn) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.closed {
		return nil, ErrSessionManagerClosed
	}

	sess := &Session{
		id:       atomic.AddUint64(&sm.nextID, 1) - 1,
		registry: sm.registry,
		metrics:  sm.metrics,
		client:   peerConn{conn: client},
		server:   peerConn{conn: server},
		created:  time.Now(),
	}
	sm.sessions[sess.id] = sess

	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(len(sm.sessions))
		sm.metrics.RecordSessionCreated()
	}

	return sess, nil
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(sessionID uint64) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sess, ok := sm.sessions[sessionID]
	return sess, ok
}

// GetAllSessions returns all active sessions
func (sm *SessionManager) GetAllSessions() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return len(sm.sessions)
}

// RemoveSession removes a session and closes both of its connections
func (sm *SessionManager) RemoveSession(sessionID uint64) {
	sm.mu.Lock()
	sess, ok := sm.sessions[sessionID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	delete(sm.sessions, sessionID)
	sessionCount := len(sm.sessions)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(sessionCount)
		sm.metrics.RecordSessionDisconnected()
	}

	sess.Close()
}

// CloseAll closes every session and refuses new ones
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[uint64]*Session)
	sm.closed = true
	sm.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(0)
	}
}
