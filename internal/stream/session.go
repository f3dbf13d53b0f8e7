package stream

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Default timeouts and intervals for the stream session.
const (
	// defaultReconnectDelay is the fixed delay between reconnect attempts.
	// The controller's clients have always reconnected after a flat three
	// seconds; that contract is preserved here.
	defaultReconnectDelay = 3 * time.Second

	// defaultPingInterval is the keep-alive interval while connected.
	defaultPingInterval = 30 * time.Second

	// defaultHandshakeTimeout bounds the WebSocket upgrade handshake.
	defaultHandshakeTimeout = 10 * time.Second

	// defaultMaxMessageSize limits inbound frame size.
	defaultMaxMessageSize = 8192

	// writeTimeout bounds keep-alive and close writes.
	writeTimeout = 5 * time.Second

	// frameBufferSize is the frames channel buffer. The single consumer is
	// the client event loop; the buffer only absorbs short scheduling gaps.
	frameBufferSize = 64
)

// ConnectionState describes the session's connectivity, readable by
// consumers to display a connectivity indicator.
type ConnectionState string

// Connection states. Owned by the session; transitions are driven solely
// by its own lifecycle.
const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SessionConfig holds stream session configuration.
type SessionConfig struct {
	// URL is the WebSocket endpoint (ws:// or wss://).
	URL string

	// ReconnectDelay is the fixed delay between reconnect attempts.
	// Default: 3 seconds.
	ReconnectDelay time.Duration

	// PingInterval is the keep-alive interval while connected.
	// Default: 30 seconds.
	PingInterval time.Duration

	// HandshakeTimeout bounds the WebSocket upgrade handshake.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// MaxMessageSize limits inbound frame size in bytes.
	// Default: 8192.
	MaxMessageSize int64

	// Header is sent with the handshake request. Used for bearer auth
	// when the controller requires it. May be nil.
	Header http.Header
}

// SessionStats contains session statistics for monitoring.
type SessionStats struct {
	FramesRx        uint64
	ReconnectsTotal uint64
	ErrorsTotal     uint64
	State           ConnectionState
}

// Session owns one logical streaming connection to the controller's
// real-time endpoint, with automatic recovery.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Frames are consumed from a single channel in wire order.
//
// Auto-Reconnection:
//   - Any read/write failure or abnormal close marks the session
//     disconnected and schedules one reconnect attempt after the fixed
//     delay. Attempts repeat indefinitely until Stop() is called.
//   - A malformed handshake response is treated the same as any other
//     transport error.
//   - Absence of decodable peer traffic is not treated as failure; only
//     transport-level errors trigger reconnection.
type Session struct {
	cfg SessionConfig

	// frames carries raw inbound frames to the single consumer, in wire
	// order, across reconnects. Closed only when Stop() is called.
	frames chan []byte

	conn   *websocket.Conn
	connMu sync.Mutex

	state   ConnectionState
	stateMu sync.RWMutex

	// onStateChange is invoked from the session goroutine on every
	// connection state transition.
	onStateChange func(ConnectionState)
	callbackMu    sync.RWMutex

	// ctx cancellation is the shutdown signal: it aborts an in-flight
	// handshake and cancels a pending reconnect timer deterministically.
	ctx    context.Context
	cancel context.CancelFunc

	started  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	framesRx        atomic.Uint64
	reconnectsTotal atomic.Uint64
	errorsTotal     atomic.Uint64
}

// NewSession creates a session for the given endpoint. The session does
// nothing until Start() is called.
func NewSession(cfg SessionConfig) *Session {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:    cfg,
		frames: make(chan []byte, frameBufferSize),
		state:  Disconnected,
		ctx:    ctx,
		cancel: cancel,
		logger: noopLogger{},
	}
}

// SetLogger sets a logger for session events.
func (s *Session) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// SetOnStateChange sets a callback invoked on every connection state
// transition. Must be set before Start().
func (s *Session) SetOnStateChange(fn func(ConnectionState)) {
	s.callbackMu.Lock()
	s.onStateChange = fn
	s.callbackMu.Unlock()
}

// Start begins connecting in the background. Non-blocking.
// Safe to call more than once: subsequent calls are no-ops.
func (s *Session) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.run()
}

// Stop closes the connection and suppresses further reconnect attempts.
// It cancels any pending reconnect timer and the in-flight read, then
// waits for the session goroutine to exit before closing the frames
// channel. Safe to call multiple times.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.closeConn()
		if s.started.Load() {
			s.wg.Wait()
		}
		close(s.frames)
		s.setState(Disconnected)
		s.getLogger().Info("stream session stopped")
	})
}

// Frames returns the inbound frame channel. It is infinite and restartable
// across reconnects (a new wire sequence begins after each successful
// reconnect) and is closed only when Stop() is called.
func (s *Session) Frames() <-chan []byte {
	return s.frames
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Stats returns session statistics.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		FramesRx:        s.framesRx.Load(),
		ReconnectsTotal: s.reconnectsTotal.Load(),
		ErrorsTotal:     s.errorsTotal.Load(),
		State:           s.State(),
	}
}

// run is the session goroutine: connect, read until failure, wait the
// fixed delay, repeat. It exits only on Stop().
func (s *Session) run() {
	defer s.wg.Done()

	attempts := uint64(0)
	for {
		if s.isStopped() {
			return
		}

		s.setState(Connecting)
		conn, err := s.dial()
		if err != nil {
			s.errorsTotal.Add(1)
			s.setState(Disconnected)
			if s.isStopped() {
				return
			}
			s.getLogger().Warn("stream connect failed", "url", s.cfg.URL, "error", err)
			if !s.waitReconnect() {
				return
			}
			continue
		}

		if attempts > 0 {
			s.reconnectsTotal.Add(1)
		}
		attempts++

		s.setConn(conn)
		s.setState(Connected)
		s.getLogger().Info("stream connected", "url", s.cfg.URL)

		s.readUntilFailure(conn)

		s.setConn(nil)
		s.setState(Disconnected)
		if s.isStopped() {
			return
		}
		s.getLogger().Warn("stream disconnected, scheduling reconnect", "delay", s.cfg.ReconnectDelay.String())
		if !s.waitReconnect() {
			return
		}
	}
}

// dial performs the WebSocket handshake. The session context aborts an
// in-flight handshake when Stop() is called.
func (s *Session) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(s.ctx, s.cfg.URL, s.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(s.cfg.MaxMessageSize)
	return conn, nil
}

// readUntilFailure pumps frames from one connection until a transport
// error occurs or Stop() is called. A keep-alive writer runs alongside;
// its write failures double as a liveness probe for half-dead links.
func (s *Session) readUntilFailure(conn *websocket.Conn) {
	pingDone := make(chan struct{})
	var pingWG sync.WaitGroup
	pingWG.Add(1)
	go func() {
		defer pingWG.Done()
		s.keepAlive(conn, pingDone)
	}()
	defer func() {
		close(pingDone)
		pingWG.Wait()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !s.isStopped() {
				s.errorsTotal.Add(1)
				s.getLogger().Debug("stream read failed", "error", err)
			}
			return
		}

		s.framesRx.Add(1)
		// Blocking send preserves wire order; Stop() unblocks via ctx.
		select {
		case s.frames <- data:
		case <-s.ctx.Done():
			return
		}
	}
}

// keepAlive sends the controller's literal text ping on a fixed interval.
// A failed write closes the connection, which unblocks the read loop and
// triggers the normal reconnect path.
func (s *Session) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(keepAlivePing)); err != nil {
				s.errorsTotal.Add(1)
				s.getLogger().Debug("keep-alive write failed", "error", err)
				conn.Close()
				return
			}
		}
	}
}

// waitReconnect sleeps for the fixed reconnect delay.
// Returns false if Stop() cancelled the pending attempt.
func (s *Session) waitReconnect() bool {
	timer := time.NewTimer(s.cfg.ReconnectDelay)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Session) setConn(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *Session) closeConn() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

func (s *Session) setState(state ConnectionState) {
	s.stateMu.Lock()
	changed := s.state != state
	s.state = state
	s.stateMu.Unlock()

	if !changed {
		return
	}

	s.callbackMu.RLock()
	fn := s.onStateChange
	s.callbackMu.RUnlock()
	if fn != nil {
		fn(state)
	}
}

func (s *Session) isStopped() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

func (s *Session) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}
