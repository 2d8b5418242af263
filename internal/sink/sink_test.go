package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/style"
)

func testFrame(t float64) face.Frame {
	p := face.Neutral()
	p[face.MouthSmile] = 0.25
	return face.Frame{T: t, Pts: p}
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLines("stdout", &buf)

	require.NoError(t, s.Send(context.Background(), testFrame(0)))
	require.NoError(t, s.Send(context.Background(), testFrame(1.0/60)))

	scanner := bufio.NewScanner(&buf)
	var frames []face.Frame
	for scanner.Scan() {
		var f face.Frame
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &f))
		frames = append(frames, f)
	}
	require.Len(t, frames, 2)
	assert.Equal(t, 0.25, frames[1].Pts[face.MouthSmile])
	assert.InDelta(t, 1.0/60, frames[1].T, 1e-12)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send(context.Background(), testFrame(2)), ErrClosed)
	assert.NoError(t, s.Close())
}

type fakeSink struct {
	name string
	err  error

	mu     sync.Mutex
	frames []face.Frame
	closed bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(_ context.Context, fr face.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.err
}

func TestJSONLinesLeavesStdoutOpen(t *testing.T) {
	j := NewJSONLines("stdout", os.Stdout)
	m := NewMulti(zerolog.Nop(), j)
	require.NoError(t, m.Close())

	assert.ErrorIs(t, j.Send(context.Background(), testFrame(0)), ErrClosed)
	_, err := os.Stdout.Stat()
	assert.NoError(t, err, "stdout must stay open")
}

func TestMultiIsolatesFailures(t *testing.T) {
	good := &fakeSink{name: "good"}
	bad := &fakeSink{name: "bad", err: errors.New("boom")}
	offline := &fakeSink{name: "offline", err: ErrDisconnected}
	m := NewMulti(zerolog.Nop(), bad, offline, good)

	err := m.Send(context.Background(), testFrame(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, good.frames, 1)

	m2 := NewMulti(zerolog.Nop(), offline, good)
	assert.NoError(t, m2.Send(context.Background(), testFrame(0)), "disconnected sinks drop silently")

	err = m.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close bad")
	assert.True(t, good.closed)
}

type relayServer struct {
	*httptest.Server
	hello  chan Hello
	frames chan face.Frame

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newRelayServer(t *testing.T) *relayServer {
	t.Helper()
	rs := &relayServer{hello: make(chan Hello, 4), frames: make(chan face.Frame, 256)}
	upgrader := websocket.Upgrader{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		rs.mu.Lock()
		rs.conns = append(rs.conns, conn)
		rs.mu.Unlock()
		defer conn.Close()

		var h Hello
		if err := conn.ReadJSON(&h); err != nil {
			return
		}
		rs.hello <- h
		for {
			var f face.Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			rs.frames <- f
		}
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *relayServer) wsURL() string {
	return "ws" + strings.TrimPrefix(rs.URL, "http")
}

func (rs *relayServer) dropAll() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, c := range rs.conns {
		c.Close()
	}
	rs.conns = nil
}

func TestRelayHandshakeAndFrames(t *testing.T) {
	rs := newRelayServer(t)
	st := style.Default()
	st.FaceWidth = 0.33

	r := NewRelay(context.Background(), RelayOptions{URL: rs.wsURL(), Style: st}, zerolog.Nop())
	defer r.Close()

	select {
	case h := <-rs.hello:
		assert.Equal(t, "producer", h.Role)
		assert.Equal(t, r.Session(), h.Session)
		assert.Equal(t, 0.33, h.Style.FaceWidth)
	case <-time.After(2 * time.Second):
		t.Fatal("no producer hello")
	}

	require.Eventually(t, r.IsConnected, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, r.Send(context.Background(), testFrame(0.5)))

	select {
	case f := <-rs.frames:
		assert.Equal(t, 0.5, f.T)
		assert.Equal(t, 0.25, f.Pts[face.MouthSmile])
	case <-time.After(2 * time.Second):
		t.Fatal("frame not relayed")
	}
}

func TestRelayDropsWhileDisconnectedAndReconnects(t *testing.T) {
	rs := newRelayServer(t)
	r := NewRelay(context.Background(), RelayOptions{
		URL:          rs.wsURL(),
		ReconnectMin: 20 * time.Millisecond,
		ReconnectMax: 100 * time.Millisecond,
	}, zerolog.Nop())
	defer r.Close()

	<-rs.hello
	require.Eventually(t, r.IsConnected, 2*time.Second, 10*time.Millisecond)

	rs.dropAll()
	require.Eventually(t, func() bool { return !r.IsConnected() }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, r.Send(context.Background(), testFrame(0)), ErrDisconnected)

	select {
	case h := <-rs.hello:
		assert.Equal(t, r.Session(), h.Session, "session survives reconnects")
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not reconnect")
	}
}

func TestRelayClose(t *testing.T) {
	r := NewRelay(context.Background(), RelayOptions{URL: "ws://127.0.0.1:1/none"}, zerolog.Nop())
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Send(context.Background(), testFrame(0)), ErrClosed)
	assert.NoError(t, r.Close())
}

func TestRedisPublishSubscribe(t *testing.T) {
	r, err := NewRedis(RedisOptions{Addr: "localhost:6379", Channel: "visage:test:" + t.Name()})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames, err := r.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Send(ctx, testFrame(3)))

	select {
	case f := <-frames:
		assert.Equal(t, 3.0, f.T)
		assert.Equal(t, 0.25, f.Pts[face.MouthSmile])
	case <-ctx.Done():
		t.Fatal("no frame received")
	}
}
