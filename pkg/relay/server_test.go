package relay

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HugKitten/KRelay/pkg/capture"
	"github.com/HugKitten/KRelay/pkg/hook"
	"github.com/HugKitten/KRelay/pkg/logging"
	"github.com/HugKitten/KRelay/pkg/messages"
	"github.com/HugKitten/KRelay/pkg/messages/client"
	"github.com/HugKitten/KRelay/pkg/messages/server"
	"github.com/HugKitten/KRelay/pkg/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}

type fakeUpstream struct {
	listener net.Listener
	conns    chan net.Conn
}

func startUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	up := &fakeUpstream{listener: ln, conns: make(chan net.Conn, 4)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			up.conns <- conn
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return up
}

func (u *fakeUpstream) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-u.conns:
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("relay never dialed the upstream")
		return nil
	}
}

func testRegistry(t *testing.T) *protocol.Registry {
	t.Helper()
	reg, err := messages.NewRegistry(nil)
	require.NoError(t, err)
	return reg
}

func startRelay(t *testing.T, cfg Config, hooks *hook.Table, opts ...Option) *Server {
	t.Helper()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	cfg.DialTimeout = 2 * time.Second

	srv, err := NewServer(cfg, testRegistry(t), hooks, opts...)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func dialRelay(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, reg *protocol.Registry, w io.Writer, msg protocol.Message) {
	t.Helper()
	frame, err := reg.EncodeFrame(msg)
	require.NoError(t, err)
	_, err = w.Write(frame)
	require.NoError(t, err)
}

func receive(t *testing.T, reg *protocol.Registry, r io.Reader) protocol.Message {
	t.Helper()
	frame, err := protocol.ReadFrame(r, 0)
	require.NoError(t, err)
	msg, err := reg.DecodeFrame(frame)
	require.NoError(t, err)
	return msg
}

type memRecorder struct {
	mu      sync.Mutex
	records []capture.Record
}

func (r *memRecorder) Record(rec capture.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memRecorder) snapshot() []capture.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture.Record(nil), r.records...)
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(Config{}, testRegistry(t), nil)
	assert.ErrorIs(t, err, ErrNoUpstream)

	_, err = NewServer(DefaultConfig(), nil, nil)
	assert.Error(t, err)

	srv, err := NewServer(Config{UpstreamAddr: "127.0.0.1:1"}, testRegistry(t), nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(protocol.DefaultMaxFrameSize), srv.config.MaxFrameSize)
	assert.NotNil(t, srv.Hooks())
	assert.Nil(t, srv.Addr())
}

func TestRelayForwardsBothDirections(t *testing.T) {
	up := startUpstream(t)
	srv := startRelay(t, Config{UpstreamAddr: up.listener.Addr().String()}, hook.NewTable())
	reg := testRegistry(t)

	conn := dialRelay(t, srv)
	upConn := up.accept(t)

	send(t, reg, conn, &client.Hello{BuildVersion: "X31.2.3", GameID: -2, GUID: "guid", Key: []byte{1, 2}})
	got, ok := receive(t, reg, upConn).(*client.Hello)
	require.True(t, ok)
	assert.Equal(t, "X31.2.3", got.BuildVersion)
	assert.Equal(t, int32(-2), got.GameID)
	assert.Equal(t, []byte{1, 2}, got.Key)

	send(t, reg, upConn, &server.Ping{Serial: 99})
	ping, ok := receive(t, reg, conn).(*server.Ping)
	require.True(t, ok)
	assert.Equal(t, int32(99), ping.Serial)

	require.Eventually(t, func() bool { return srv.Sessions().Count() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestRelayRelaysUnknownKindsVerbatim(t *testing.T) {
	up := startUpstream(t)
	srv := startRelay(t, Config{UpstreamAddr: up.listener.Addr().String()}, hook.NewTable())

	conn := dialRelay(t, srv)
	upConn := up.accept(t)

	raw := protocol.EncodeFrame(200, []byte{9, 8, 7})
	_, err := conn.Write(raw)
	require.NoError(t, err)

	frame, err := protocol.ReadFrame(upConn, 0)
	require.NoError(t, err)
	assert.Equal(t, raw, frame)
}

func TestRelayHookBlocksAndModifies(t *testing.T) {
	hooks := hook.NewTable()
	hook.Hook(hooks, func(_ hook.Conn, m *client.PlayerText) error {
		if strings.Contains(m.Text, "spam") {
			m.SetForward(false)
		}
		return nil
	})
	hook.Hook(hooks, func(_ hook.Conn, m *client.PlayerText) error {
		m.Text = strings.ToUpper(m.Text)
		return nil
	})

	up := startUpstream(t)
	srv := startRelay(t, Config{UpstreamAddr: up.listener.Addr().String()}, hooks)
	reg := testRegistry(t)

	conn := dialRelay(t, srv)
	upConn := up.accept(t)

	send(t, reg, conn, &client.PlayerText{Text: "buy spam"})
	send(t, reg, conn, &client.PlayerText{Text: "hello"})

	got, ok := receive(t, reg, upConn).(*client.PlayerText)
	require.True(t, ok)
	assert.Equal(t, "HELLO", got.Text)
}

func TestRelayHookInjects(t *testing.T) {
	hooks := hook.NewTable()
	hook.Hook(hooks, func(c hook.Conn, m *server.Ping) error {
		m.SetForward(false)
		return c.SendToServer(&client.Pong{Serial: m.Serial, Time: 5})
	})

	up := startUpstream(t)
	srv := startRelay(t, Config{UpstreamAddr: up.listener.Addr().String()}, hooks)
	reg := testRegistry(t)

	conn := dialRelay(t, srv)
	upConn := up.accept(t)

	send(t, reg, upConn, &server.Ping{Serial: 12})
	pong, ok := receive(t, reg, upConn).(*client.Pong)
	require.True(t, ok)
	assert.Equal(t, int32(12), pong.Serial)

	// The ping itself never reached the client
	send(t, reg, upConn, &server.Text{Name: "Oryx", Text: "hi"})
	text, ok := receive(t, reg, conn).(*server.Text)
	require.True(t, ok)
	assert.Equal(t, "Oryx", text.Name)
}

func TestRelayFailingHookStillForwards(t *testing.T) {
	hooks := hook.NewTable()
	hook.Hook(hooks, func(hook.Conn, *client.Move) error { panic("bad plugin") })

	up := startUpstream(t)
	srv := startRelay(t, Config{UpstreamAddr: up.listener.Addr().String()}, hooks)
	reg := testRegistry(t)

	conn := dialRelay(t, srv)
	upConn := up.accept(t)

	send(t, reg, conn, &client.Move{TickID: 3, X: 1.5, Y: 2.5})
	move, ok := receive(t, reg, upConn).(*client.Move)
	require.True(t, ok)
	assert.Equal(t, float32(1.5), move.X)
}

func TestRelayDropsUndecodableFrame(t *testing.T) {
	up := startUpstream(t)
	srv := startRelay(t, Config{
		UpstreamAddr: up.listener.Addr().String(),
		MetricsAddr:  "127.0.0.1:0",
	}, hook.NewTable())
	reg := testRegistry(t)

	conn := dialRelay(t, srv)
	upConn := up.accept(t)

	_, helloID, ok := reg.Lookup("Hello")
	require.True(t, ok)
	_, err := conn.Write(protocol.EncodeFrame(helloID, []byte{0x00}))
	require.NoError(t, err)

	send(t, reg, conn, &client.PlayerText{Text: "after"})
	got, ok := receive(t, reg, upConn).(*client.PlayerText)
	require.True(t, ok)
	assert.Equal(t, "after", got.Text)

	require.Eventually(t, func() bool {
		body := scrape(t, srv)
		return strings.Contains(body, `krelay_decode_errors_total{direction="client"} 1`) &&
			strings.Contains(body, `krelay_frames_forwarded_total{direction="client",variant="PlayerText"} 1`)
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRelayOversizedFrameEndsSession(t *testing.T) {
	up := startUpstream(t)
	srv := startRelay(t, Config{UpstreamAddr: up.listener.Addr().String(), MaxFrameSize: 64}, hook.NewTable())

	conn := dialRelay(t, srv)
	up.accept(t)

	_, err := conn.Write(protocol.EncodeFrame(1, make([]byte, 100)))
	require.NoError(t, err)

	_, err = protocol.ReadFrame(conn, 0)
	assert.Error(t, err)
	require.Eventually(t, func() bool { return srv.Sessions().Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestRelayRecordsFrames(t *testing.T) {
	hooks := hook.NewTable()
	hook.Hook(hooks, func(_ hook.Conn, m *client.Escape) error {
		m.SetForward(false)
		return nil
	})

	rec := &memRecorder{}
	up := startUpstream(t)
	srv := startRelay(t, Config{UpstreamAddr: up.listener.Addr().String()}, hooks, WithRecorder(rec))
	reg := testRegistry(t)

	conn := dialRelay(t, srv)
	upConn := up.accept(t)

	send(t, reg, conn, &client.Escape{})
	send(t, reg, conn, &client.Load{CharID: 4})
	receive(t, reg, upConn)

	records := rec.snapshot()
	require.Len(t, records, 2)
	assert.Equal(t, "Escape", records[0].Variant)
	assert.False(t, records[0].Forwarded)
	assert.Equal(t, "client", records[0].Direction)

	_, loadID, _ := reg.Lookup("Load")
	assert.Equal(t, "Load", records[1].Variant)
	assert.Equal(t, loadID, records[1].KindID)
	assert.Equal(t, []byte{0, 0, 0, 4, 0}, records[1].Payload)
	assert.True(t, records[1].Forwarded)
	assert.Equal(t, records[0].SessionID, records[1].SessionID)
}

func TestRelayUpstreamDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	srv := startRelay(t, Config{UpstreamAddr: addr}, hook.NewTable())
	conn := dialRelay(t, srv)

	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Zero(t, srv.Sessions().Count())
}

func TestRelayUpstreamCloseEndsSession(t *testing.T) {
	up := startUpstream(t)
	srv := startRelay(t, Config{UpstreamAddr: up.listener.Addr().String()}, hook.NewTable())

	conn := dialRelay(t, srv)
	upConn := up.accept(t)
	require.Eventually(t, func() bool { return srv.Sessions().Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	upConn.Close()

	_, err := conn.Read(make([]byte, 1))
	assert.Error(t, err)
	require.Eventually(t, func() bool { return srv.Sessions().Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestRelayWebSocketClient(t *testing.T) {
	up := startUpstream(t)
	srv := startRelay(t, Config{
		UpstreamAddr:  up.listener.Addr().String(),
		WebSocketAddr: "127.0.0.1:0",
	}, hook.NewTable())
	reg := testRegistry(t)

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+srv.WebSocketAddr().String()+"/", nil)
	require.NoError(t, err)
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	upConn := up.accept(t)

	frame, err := reg.EncodeFrame(&client.PlayerText{Text: "from the browser"})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, frame))

	got, ok := receive(t, reg, upConn).(*client.PlayerText)
	require.True(t, ok)
	assert.Equal(t, "from the browser", got.Text)

	send(t, reg, upConn, &server.Notification{ObjectID: 1, Message: "hey", Color: 0xFF00})
	msgType, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)

	msg, err := reg.DecodeFrame(data)
	require.NoError(t, err)
	note, ok := msg.(*server.Notification)
	require.True(t, ok)
	assert.Equal(t, "hey", note.Message)
}

func TestHealthEndpoint(t *testing.T) {
	up := startUpstream(t)
	srv := startRelay(t, Config{
		UpstreamAddr: up.listener.Addr().String(),
		MetricsAddr:  "127.0.0.1:0",
	}, hook.NewTable())

	resp, err := http.Get("http://" + srv.MetricsAddr().String() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, up.listener.Addr().String(), health["upstream"])
	assert.Equal(t, float64(0), health["active_sessions"])
	assert.Equal(t, float64(len(testRegistry(t).Entries())), health["variants"])
}

func TestStopClosesSessions(t *testing.T) {
	up := startUpstream(t)
	srv := startRelay(t, Config{UpstreamAddr: up.listener.Addr().String()}, hook.NewTable())

	conn := dialRelay(t, srv)
	up.accept(t)
	require.Eventually(t, func() bool { return srv.Sessions().Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Stop())
	_, err := conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Zero(t, srv.Sessions().Count())

	// Stop is idempotent
	require.NoError(t, srv.Stop())
}

func scrape(t *testing.T, srv *Server) string {
	t.Helper()
	resp, err := http.Get("http://" + srv.MetricsAddr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
