package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tjamescouch/visage/internal/bus"
	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/lipsync"
	"github.com/tjamescouch/visage/internal/markup"
	"github.com/tjamescouch/visage/internal/metrics"
)

// Speak lip-syncs text, which may carry @@effect@@ markers. Any utterance
// already playing is cut off. Mouth frames reach the face through the
// mailbox, so Speak is safe from any goroutine.
func (e *Engine) Speak(ctx context.Context, text string) *lipsync.Playback {
	return e.speak(ctx, text, func(effects *markup.Effects) *lipsync.Timeline {
		return lipsync.FromText(text, effects)
	})
}

// SpeakPhonemes lip-syncs TTS phoneme timing. Marker entries among the
// phonemes scale timing and amplitude the way markers in text do. text is
// only reported on the bus.
func (e *Engine) SpeakPhonemes(ctx context.Context, text string, phonemes []lipsync.Phoneme) *lipsync.Playback {
	return e.speak(ctx, text, func(effects *markup.Effects) *lipsync.Timeline {
		return lipsync.FromPhonemes(phonemes, effects)
	})
}

func (e *Engine) speak(ctx context.Context, text string, build func(*markup.Effects) *lipsync.Timeline) *lipsync.Playback {
	owner := uuid.NewString()

	e.mu.Lock()
	effects := e.effects
	prev := e.playback
	e.speaker = owner
	e.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	tl := build(effects)
	frames := tl.Frames(e.opts.LipSyncFPS)

	pb := lipsync.Play(ctx, frames, func(f face.Frame) {
		e.Submit(Mouth{Playback: owner, Pose: f.Pts})
		metrics.LipSyncFrames.Inc()
	})

	e.mu.Lock()
	e.playback = pb
	e.mu.Unlock()

	e.log.Debug().
		Str("playback", pb.ID).
		Int("frames", len(frames)).
		Float64("duration", tl.Duration).
		Msg("lip-sync started")
	e.bus.Publish(bus.Event{Type: bus.EventLipSyncStarted, Data: map[string]any{
		"playback": pb.ID,
		"text":     markup.Strip(text),
		"duration": tl.Duration,
	}})

	go func() {
		err := pb.Wait()
		e.Submit(Mouth{Playback: owner, Done: true})

		e.mu.Lock()
		if e.playback == pb {
			e.playback = nil
		}
		e.mu.Unlock()

		data := map[string]any{"playback": pb.ID, "delivered": pb.Delivered()}
		if err != nil && !errors.Is(err, lipsync.ErrStopped) {
			data["error"] = err.Error()
		}
		e.bus.Publish(bus.Event{Type: bus.EventLipSyncFinished, Data: data})
	}()
	return pb
}

// StopSpeaking cuts off the current utterance, if any.
func (e *Engine) StopSpeaking() {
	e.mu.Lock()
	pb := e.playback
	e.mu.Unlock()
	if pb != nil {
		pb.Stop()
	}
}
