// Package sink delivers engine frames to renderers: JSON lines on a
// writer, a WebSocket relay, or a Redis pub/sub channel.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/metrics"
)

var (
	ErrClosed       = errors.New("sink: closed")
	ErrDisconnected = errors.New("sink: not connected")
)

// Sink accepts frames at tick rate. Send must not block the tick loop for
// long; sinks that cannot keep up drop frames.
type Sink interface {
	Name() string
	Send(ctx context.Context, f face.Frame) error
	Close() error
}

// JSONLines writes one {"t":...,"pts":{...}} object per line.
type JSONLines struct {
	name string

	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	closed bool
}

// NewJSONLines writes to w. If w is also an io.Closer it is closed by
// Close, unless it is the process's stdout or stderr.
func NewJSONLines(name string, w io.Writer) *JSONLines {
	j := &JSONLines{name: name, enc: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok && !isStdStream(w) {
		j.closer = c
	}
	return j
}

func isStdStream(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (f == os.Stdout || f == os.Stderr)
}

func (j *JSONLines) Name() string { return j.name }

func (j *JSONLines) Send(_ context.Context, f face.Frame) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if err := j.enc.Encode(f); err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	return nil
}

func (j *JSONLines) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

// Multi fans a frame out to every sink. One failing sink never stops the
// others.
type Multi struct {
	sinks []Sink
	log   zerolog.Logger
}

func NewMulti(log zerolog.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, log: log}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Send(ctx context.Context, f face.Frame) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Send(ctx, f); err != nil {
			metrics.FramesDropped.WithLabelValues(s.Name()).Inc()
			if !errors.Is(err, ErrDisconnected) {
				m.log.Debug().Err(err).Str("sink", s.Name()).Msg("frame dropped")
				errs = append(errs, err)
			}
			continue
		}
		metrics.FramesSent.WithLabelValues(s.Name()).Inc()
	}
	return errors.Join(errs...)
}

// Close closes every sink and reports all failures.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
