// Package engine owns the animation state and advances it on a fixed tick.
// Producers talk to it only through Submit; everything else happens on the
// goroutine that calls Tick or Run.
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tjamescouch/visage/internal/animation"
	"github.com/tjamescouch/visage/internal/bus"
	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/lipsync"
	"github.com/tjamescouch/visage/internal/markup"
	"github.com/tjamescouch/visage/internal/metrics"
	"github.com/tjamescouch/visage/internal/sentiment"
)

type Options struct {
	FPS              float64
	MaxStep          float64
	MailboxSize      int
	DefaultIntensity float64
	LipSyncFPS       float64

	Blender   animation.BlenderConfig
	Idle      animation.IdleConfig
	Sentiment sentiment.Config

	Presets *face.Presets
	Lexicon *sentiment.Lexicon
	Effects *markup.Effects

	Bus    *bus.EventBus
	Logger zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		FPS:              60,
		MaxStep:          0.05,
		MailboxSize:      256,
		DefaultIntensity: 0.8,
		LipSyncFPS:       lipsync.DefaultFPS,
		Blender:          animation.DefaultBlenderConfig(),
		Idle:             animation.DefaultIdleConfig(),
		Sentiment:        sentiment.DefaultConfig(),
		Logger:           zerolog.Nop(),
	}
}

// Snapshot is a copy of the engine state for observers on other goroutines.
type Snapshot struct {
	Frame    face.Frame
	Emotion  sentiment.Emotion
	Layers   []animation.LayerInfo
	Blinking bool
	Speaking bool
	Queued   int
	Evicted  uint64
	Ticks    uint64
}

type Engine struct {
	opts    Options
	log     zerolog.Logger
	bus     *bus.EventBus
	mailbox *Mailbox

	// Owned by the tick goroutine.
	blender  *animation.Blender
	idle     *animation.Idle
	analyzer *sentiment.Analyzer
	mouth    *face.Params
	mouthID  string
	talking  bool
	elapsed  float64
	ticks    uint64

	mu       sync.RWMutex
	snapshot Snapshot
	effects  *markup.Effects
	playback *lipsync.Playback
	// speaker owns the mouth; Mouth frames from any other playback are
	// dropped.
	speaker string
}

func New(opts Options) *Engine {
	d := DefaultOptions()
	if opts.FPS <= 0 {
		opts.FPS = d.FPS
	}
	if opts.MaxStep <= 0 {
		opts.MaxStep = d.MaxStep
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = d.MailboxSize
	}
	if opts.DefaultIntensity <= 0 {
		opts.DefaultIntensity = d.DefaultIntensity
	}
	if opts.LipSyncFPS <= 0 {
		opts.LipSyncFPS = d.LipSyncFPS
	}
	if opts.Presets == nil {
		opts.Presets = face.DefaultPresets()
	}
	if opts.Lexicon == nil {
		opts.Lexicon = sentiment.DefaultLexicon()
	}
	if opts.Effects == nil {
		opts.Effects = markup.DefaultEffects()
	}

	e := &Engine{
		opts:     opts,
		log:      opts.Logger,
		bus:      opts.Bus,
		mailbox:  NewMailbox(opts.MailboxSize),
		blender:  animation.NewBlender(opts.Blender, opts.Presets),
		idle:     animation.NewIdle(opts.Idle),
		analyzer: sentiment.NewAnalyzer(opts.Sentiment, opts.Lexicon),
		effects:  opts.Effects,
	}
	e.snapshot.Frame = face.Frame{Pts: face.Neutral()}
	return e
}

// Submit queues cmd for the next tick. Safe from any goroutine.
func (e *Engine) Submit(cmd Command) {
	if cmd == nil {
		return
	}
	if e.mailbox.Put(cmd) {
		metrics.MailboxEvictions.Inc()
		e.log.Warn().Str("kind", cmd.Kind()).Msg("mailbox full, dropped oldest command")
		e.bus.Publish(bus.Event{Type: bus.EventCommandEvicted, Data: map[string]any{"kind": cmd.Kind()}})
	}
}

// Tick drains the mailbox, advances every component by dt seconds and
// returns the frame for this tick.
func (e *Engine) Tick(dt float64, now time.Time) face.Frame {
	start := time.Now()
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	if dt > e.opts.MaxStep {
		dt = e.opts.MaxStep
	}

	for _, cmd := range e.mailbox.Drain() {
		e.apply(cmd, now)
	}

	e.analyzer.Step(dt, now)
	emo := e.analyzer.Emotion()
	// A quiet analyzer leaves the layer alone so an explicit Sentiment
	// command decays on its own.
	if emo.Valence != 0 || emo.Arousal != 0 {
		e.blender.PushSentiment(emo.Valence, emo.Arousal, 0)
	}
	e.noteTalking(emo.Talking)

	pose := e.blender.Step(dt)
	if e.mouth != nil {
		pose[face.MouthOpen] = e.mouth[face.MouthOpen]
		pose[face.JawOpen] = e.mouth[face.JawOpen]
		pose[face.MouthWide] = e.mouth[face.MouthWide]
		// Emphasis raises the brows as a floor; a neutral brow in the
		// lip-sync pose leaves the expression alone.
		neutral := face.Neutral()
		for _, pt := range []face.Point{face.LeftBrowHeight, face.RightBrowHeight} {
			if e.mouth[pt] > neutral[pt] {
				pose[pt] = math.Max(pose[pt], e.mouth[pt])
			}
		}
	}
	e.idle.SetTalking(emo.Talking && e.mouth == nil, emo.Arousal)
	pose = e.idle.Apply(pose, dt)

	e.elapsed += dt
	e.ticks++
	frame := face.Frame{T: e.elapsed, Pts: pose}

	e.mu.Lock()
	e.snapshot = Snapshot{
		Frame:    frame,
		Emotion:  emo,
		Layers:   e.blender.Layers(),
		Blinking: e.idle.Blinking(),
		Speaking: e.mouth != nil,
		Queued:   e.mailbox.Len(),
		Evicted:  e.mailbox.Evicted(),
		Ticks:    e.ticks,
	}
	e.mu.Unlock()

	metrics.TicksTotal.Inc()
	metrics.ActiveLayers.Set(float64(e.blender.Len()))
	metrics.Valence.Set(emo.Valence)
	metrics.Arousal.Set(emo.Arousal)
	metrics.TickDuration.Observe(time.Since(start).Seconds())
	return frame
}

func (e *Engine) currentSpeaker() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.speaker
}

func (e *Engine) noteTalking(talking bool) {
	if talking == e.talking {
		return
	}
	e.talking = talking
	t := bus.EventTalkingStopped
	if talking {
		t = bus.EventTalkingStarted
	}
	e.bus.Publish(bus.Event{Type: t})
}

func (e *Engine) apply(cmd Command, now time.Time) {
	outcome := "ok"
	switch c := cmd.(type) {
	case Expression:
		intensity := e.opts.DefaultIntensity
		if c.Intensity != nil {
			intensity = 0
			if v := *c.Intensity; v > 0 {
				intensity = math.Min(1, v)
			}
		}
		if e.blender.PushExpression(c.Name, intensity, c.DecayRate) {
			e.bus.Publish(bus.Event{Type: bus.EventExpressionPushed, Data: map[string]any{
				"expression": string(c.Name),
				"intensity":  intensity,
			}})
		} else {
			outcome = "dropped"
			e.log.Debug().Str("expression", string(c.Name)).Msg("unknown expression dropped")
			e.bus.Publish(bus.Event{Type: bus.EventExpressionDropped, Data: map[string]any{"expression": string(c.Name)}})
		}
	case Sentiment:
		e.blender.PushSentiment(c.Valence, c.Arousal, c.DecayRate)
	case Text:
		at := c.At
		if at.IsZero() {
			at = now
		}
		e.analyzer.Feed(c.Text, at)
	case Pose:
		name := c.Name
		if name == "" {
			name = "pose"
		}
		e.blender.PushPose(name, c.Pose, c.Weight, c.DecayRate)
	case Say:
		switch {
		case len(c.Phonemes) > 0:
			e.SpeakPhonemes(context.Background(), c.Text, c.Phonemes)
		case c.Text != "":
			e.Speak(context.Background(), c.Text)
		default:
			outcome = "dropped"
		}
	case Clear:
		e.blender.Clear()
		e.bus.Publish(bus.Event{Type: bus.EventLayersCleared})
	case Mouth:
		if c.Done {
			if c.Playback == e.mouthID {
				e.mouth = nil
				e.mouthID = ""
			}
		} else if c.Playback != e.currentSpeaker() {
			outcome = "dropped"
		} else {
			p := c.Pose
			e.mouth = &p
			e.mouthID = c.Playback
		}
	case ReloadPresets:
		if c.Presets == nil {
			outcome = "dropped"
			break
		}
		e.blender.SetPresets(c.Presets)
		e.log.Info().Int("presets", len(c.Presets.Names())).Msg("presets reloaded")
		e.bus.Publish(bus.Event{Type: bus.EventPresetsReloaded})
	case ReloadLexicon:
		if c.Lexicon == nil {
			outcome = "dropped"
			break
		}
		e.analyzer.Reload(c.Lexicon)
		e.log.Info().Int("terms", c.Lexicon.Len()).Msg("lexicon reloaded")
		e.bus.Publish(bus.Event{Type: bus.EventLexiconReloaded})
	case ReloadEffects:
		if c.Effects == nil {
			outcome = "dropped"
			break
		}
		e.mu.Lock()
		e.effects = c.Effects
		e.mu.Unlock()
	default:
		outcome = "unknown"
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Kind(), outcome).Inc()
}

// Run ticks at the configured rate until ctx is done, handing each frame
// to out. Wall-clock gaps longer than MaxStep are clamped so a stalled
// process resumes smoothly.
func (e *Engine) Run(ctx context.Context, out func(face.Frame)) error {
	interval := time.Duration(float64(time.Second) / e.opts.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info().Float64("fps", e.opts.FPS).Msg("engine started")
	defer e.log.Info().Uint64("ticks", e.ticks).Msg("engine stopped")

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			e.StopSpeaking()
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			frame := e.Tick(dt, now)
			if out != nil {
				out(frame)
			}
		}
	}
}

// Snapshot returns the state published by the most recent tick.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.snapshot
	s.Layers = append([]animation.LayerInfo(nil), e.snapshot.Layers...)
	return s
}

// Presets returns the preset table in use. Only call from the tick
// goroutine or before Run.
func (e *Engine) Presets() *face.Presets {
	return e.blender.Presets()
}
