package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tjamescouch/visage/internal/bus"
	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/style"
)

type RelayOptions struct {
	URL          string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	WriteTimeout time.Duration
	Style        style.Style
	Bus          *bus.EventBus
}

// Hello is the first message a producer sends to the relay.
type Hello struct {
	Role    string      `json:"role"`
	Session string      `json:"session"`
	Style   style.Style `json:"style"`
}

// Relay publishes frames to a WebSocket relay as a producer. It keeps
// reconnecting in the background; frames sent while disconnected are
// dropped.
type Relay struct {
	opts    RelayOptions
	session string
	logger  zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRelay starts connecting immediately and returns without waiting.
func NewRelay(ctx context.Context, opts RelayOptions, logger zerolog.Logger) *Relay {
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = 3 * time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 60 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &Relay{
		opts:    opts,
		session: uuid.NewString(),
		logger:  logger.With().Str("component", "relay").Logger(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go r.connectLoop(ctx)
	return r
}

func (r *Relay) Name() string { return "relay" }

func (r *Relay) Session() string { return r.session }

func (r *Relay) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *Relay) Send(_ context.Context, f face.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if !r.connected || r.conn == nil {
		return ErrDisconnected
	}

	r.conn.SetWriteDeadline(time.Now().Add(r.opts.WriteTimeout))
	if err := r.conn.WriteJSON(f); err != nil {
		// The read loop notices the broken connection and reconnects.
		r.dropLocked()
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	var err error
	if r.conn != nil {
		r.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(r.opts.WriteTimeout))
		err = r.conn.Close()
		r.conn = nil
	}
	r.connected = false
	r.mu.Unlock()

	r.cancel()
	<-r.done
	return err
}

// connectLoop maintains the connection with exponential backoff.
func (r *Relay) connectLoop(ctx context.Context) {
	defer close(r.done)

	backoff := r.opts.ReconnectMin
	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		err := r.connectOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(start) > r.opts.ReconnectMax {
			// The connection was healthy for a while; start over.
			backoff = r.opts.ReconnectMin
			failures = 0
		}
		failures++
		if failures == 3 {
			r.logger.Warn().Err(err).Int("failures", failures).Msg("relay unavailable, will retry less frequently")
		} else if failures < 3 {
			r.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("relay connection lost")
		} else {
			r.logger.Debug().Err(err).Int("failures", failures).Msg("relay still unavailable")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, r.opts.ReconnectMax)
	}
}

// connectOnce dials, sends the producer hello and then blocks reading
// until the connection fails.
func (r *Relay) connectOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", r.opts.URL, err)
	}

	hello := Hello{Role: "producer", Session: r.session, Style: r.opts.Style}
	conn.SetWriteDeadline(time.Now().Add(r.opts.WriteTimeout))
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return fmt.Errorf("hello: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	r.conn = conn
	r.connected = true
	r.mu.Unlock()

	r.logger.Info().Str("url", r.opts.URL).Str("session", r.session).Msg("connected to relay")
	r.opts.Bus.Publish(bus.Event{Type: bus.EventSinkConnected, Data: map[string]any{"sink": r.Name(), "url": r.opts.URL}})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	// Producers ignore what the relay sends; reading only detects closure.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			r.mu.Lock()
			if r.conn == conn {
				r.dropLocked()
			}
			r.mu.Unlock()
			r.opts.Bus.Publish(bus.Event{Type: bus.EventSinkDisconnected, Data: map[string]any{"sink": r.Name()}})
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (r *Relay) dropLocked() {
	if r.conn != nil {
		r.conn.Close()
	}
	r.conn = nil
	r.connected = false
}
