package emote

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tjamescouch/visage/internal/metrics"
)

// Bridge consumes emote vectors from a WebSocket and hands each one to a
// handler. It reconnects with backoff until its context is done.
type Bridge struct {
	url          string
	logger       zerolog.Logger
	reconnectMin time.Duration
	reconnectMax time.Duration
}

func NewBridge(url string, logger zerolog.Logger) *Bridge {
	return &Bridge{
		url:          url,
		logger:       logger.With().Str("component", "emote-bridge").Logger(),
		reconnectMin: 3 * time.Second,
		reconnectMax: 60 * time.Second,
	}
}

// WithBackoff overrides the reconnect delays.
func (b *Bridge) WithBackoff(lo, hi time.Duration) *Bridge {
	if lo > 0 {
		b.reconnectMin = lo
	}
	if hi >= b.reconnectMin {
		b.reconnectMax = hi
	}
	return b
}

// Run blocks until ctx is done. handle is called from Run's goroutine with
// the decoded message and its timestamp (receive time if it had none).
func (b *Bridge) Run(ctx context.Context, handle func(Message, time.Time)) error {
	backoff := b.reconnectMin
	for {
		received, err := b.consume(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		if received > 0 {
			backoff = b.reconnectMin
		}
		b.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("emote stream unavailable")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, b.reconnectMax)
	}
}

func (b *Bridge) consume(ctx context.Context, handle func(Message, time.Time)) (int, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", b.url, err)
	}
	defer conn.Close()
	b.logger.Info().Str("url", b.url).Msg("connected to emote stream")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	received := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("read: %w", err)
		}
		msg, err := ParseMessage(data)
		if err != nil {
			metrics.MalformedInput.WithLabelValues("emote").Inc()
			b.logger.Debug().Err(err).Msg("dropping malformed emote message")
			continue
		}
		received++
		handle(msg, msg.Time(time.Now()))
	}
}
