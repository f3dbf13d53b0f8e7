package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsServer wraps an httptest server that upgrades every request and hands
// the connection to the given handler.
func wsServer(t *testing.T, handler func(*websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, url
}

// stateRecorder captures connection state transitions in order.
type stateRecorder struct {
	mu     sync.Mutex
	states []ConnectionState
}

func (r *stateRecorder) record(s ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) snapshot() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConnectionState, len(r.states))
	copy(out, r.states)
	return out
}

func testSessionConfig(url string) SessionConfig {
	return SessionConfig{
		URL:              url,
		ReconnectDelay:   50 * time.Millisecond,
		PingInterval:     time.Hour, // keep-alive not under test unless stated
		HandshakeTimeout: 2 * time.Second,
	}
}

func TestSession_ReceivesFramesInOrder(t *testing.T) {
	srv, url := wsServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"initial_status","doors":{"1":"closed"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status_update","door_id":1,"status":"opening"}`))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	session := NewSession(testSessionConfig(url))
	session.Start()
	defer session.Stop()

	var frames []string
	timeout := time.After(2 * time.Second)
	for len(frames) < 2 {
		select {
		case data := <-session.Frames():
			frames = append(frames, string(data))
		case <-timeout:
			t.Fatalf("received %d frames before timeout, want 2", len(frames))
		}
	}

	if !strings.Contains(frames[0], "initial_status") {
		t.Errorf("first frame = %q, want initial_status", frames[0])
	}
	if !strings.Contains(frames[1], "status_update") {
		t.Errorf("second frame = %q, want status_update", frames[1])
	}
}

func TestSession_ReconnectAfterServerDrop(t *testing.T) {
	var connCount int
	var connMu sync.Mutex

	srv, url := wsServer(t, func(conn *websocket.Conn) {
		connMu.Lock()
		connCount++
		n := connCount
		connMu.Unlock()

		if n == 1 {
			// Drop the first connection abruptly to force a reconnect.
			conn.Close()
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status_update","door_id":1,"status":"open"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	recorder := &stateRecorder{}
	session := NewSession(testSessionConfig(url))
	session.SetOnStateChange(recorder.record)
	session.Start()
	defer session.Stop()

	// A frame arriving proves the second connection succeeded.
	select {
	case <-session.Frames():
	case <-time.After(3 * time.Second):
		t.Fatal("no frame after reconnect")
	}

	if got := session.Stats().ReconnectsTotal; got != 1 {
		t.Errorf("ReconnectsTotal = %d, want 1", got)
	}

	// connected → disconnected → connecting → connected must appear in order.
	states := recorder.snapshot()
	want := []ConnectionState{Connecting, Connected, Disconnected, Connecting, Connected}
	if len(states) < len(want) {
		t.Fatalf("state transitions = %v, want at least %v", states, want)
	}
	for i, state := range want {
		if states[i] != state {
			t.Fatalf("state[%d] = %q, want %q (full: %v)", i, states[i], state, states)
		}
	}
}

func TestSession_StopCancelsPendingReconnect(t *testing.T) {
	// Point at a server that refuses connections (closed immediately).
	srv, url := wsServer(t, func(conn *websocket.Conn) { conn.Close() })
	srv.Close()

	cfg := testSessionConfig(url)
	cfg.ReconnectDelay = time.Hour // a stale timer would hang Stop()

	session := NewSession(cfg)
	session.Start()

	// Give the session time to fail the first dial and enter the delay.
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		session.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() blocked on pending reconnect timer")
	}

	// Frames channel must be closed after Stop.
	if _, ok := <-session.Frames(); ok {
		t.Error("Frames() delivered after Stop")
	}
	if got := session.State(); got != Disconnected {
		t.Errorf("State() after Stop = %q, want disconnected", got)
	}
}

func TestSession_StartIdempotent(t *testing.T) {
	srv, url := wsServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status_update","door_id":1,"status":"open"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	session := NewSession(testSessionConfig(url))
	session.Start()
	session.Start() // second call is a no-op, not an error
	defer session.Stop()

	select {
	case <-session.Frames():
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}

	// Exactly one frame was sent; a duplicated run loop would deliver two.
	select {
	case data := <-session.Frames():
		t.Fatalf("unexpected extra frame %q", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSession_StopIdempotent(t *testing.T) {
	srv, url := wsServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	session := NewSession(testSessionConfig(url))
	session.Start()
	session.Stop()
	session.Stop() // must not panic or block
}

func TestSession_KeepAlivePing(t *testing.T) {
	pings := make(chan string, 1)
	srv, url := wsServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case pings <- string(data):
			default:
			}
		}
	})
	defer srv.Close()

	cfg := testSessionConfig(url)
	cfg.PingInterval = 30 * time.Millisecond

	session := NewSession(cfg)
	session.Start()
	defer session.Stop()

	select {
	case msg := <-pings:
		if msg != "ping" {
			t.Errorf("keep-alive frame = %q, want %q", msg, "ping")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no keep-alive frame received")
	}
}
