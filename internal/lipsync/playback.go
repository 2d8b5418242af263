package lipsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tjamescouch/visage/internal/face"
)

// ErrStopped is returned by Wait when Stop ended playback early.
var ErrStopped = errors.New("lipsync: playback stopped")

// Playback delivers a frame sequence at wall-clock times matching each
// frame's T. Frames that are already due are delivered back to back, so a
// late start catches up rather than skipping frames.
type Playback struct {
	ID string

	frames  []face.Frame
	deliver func(face.Frame)

	stopOnce  sync.Once
	stop      chan struct{}
	stopped   atomic.Bool
	delivered atomic.Int64

	done chan struct{}
	err  error
}

// Play starts delivering frames on a new goroutine. deliver is called from
// that goroutine only.
func Play(ctx context.Context, frames []face.Frame, deliver func(face.Frame)) *Playback {
	p := &Playback{
		ID:      uuid.NewString(),
		frames:  frames,
		deliver: deliver,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

func (p *Playback) run(ctx context.Context) {
	defer close(p.done)

	start := time.Now()
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for _, f := range p.frames {
		if err := p.halted(ctx); err != nil {
			p.err = err
			return
		}

		due := start.Add(time.Duration(f.T * float64(time.Second)))
		if wait := time.Until(due); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				p.err = ctx.Err()
				return
			case <-p.stop:
				p.err = ErrStopped
				return
			case <-timer.C:
			}
		}

		if err := p.halted(ctx); err != nil {
			p.err = err
			return
		}
		p.deliver(f)
		p.delivered.Add(1)
	}
}

func (p *Playback) halted(ctx context.Context) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	return ctx.Err()
}

// Stop halts delivery. No frame is delivered after Stop returns, except a
// delivery already in progress on the playback goroutine. Safe to call
// more than once and from the deliver callback.
func (p *Playback) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.stop)
	})
}

// Wait blocks until playback finishes. It returns nil when every frame was
// delivered, ErrStopped after Stop, or the context's error.
func (p *Playback) Wait() error {
	<-p.done
	return p.err
}

func (p *Playback) Done() <-chan struct{} {
	return p.done
}

func (p *Playback) Delivered() int {
	return int(p.delivered.Load())
}

func (p *Playback) Len() int {
	return len(p.frames)
}
