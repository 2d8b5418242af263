package engine

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjamescouch/visage/internal/animation"
	"github.com/tjamescouch/visage/internal/bus"
	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/lipsync"
)

const dt = 1.0 / 60

func newTestEngine(t *testing.T, b *bus.EventBus) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.Bus = b
	return New(opts)
}

func requireInRange(t *testing.T, p face.Params) {
	t.Helper()
	for i, v := range p {
		r := face.Ranges[i]
		require.True(t, v >= r.Min && v <= r.Max, "%s=%v outside [%v,%v]", face.PointNames[i], v, r.Min, r.Max)
	}
}

func hasLayer(layers []animation.LayerInfo, name string) bool {
	for _, l := range layers {
		if l.Name == name {
			return true
		}
	}
	return false
}

func TestMailboxEvictsOldest(t *testing.T) {
	m := NewMailbox(2)
	assert.False(t, m.Put(Expression{Name: "a"}))
	assert.False(t, m.Put(Expression{Name: "b"}))
	assert.True(t, m.Put(Expression{Name: "c"}))

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, uint64(1), m.Evicted())

	got := m.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, face.Emotion("b"), got[0].(Expression).Name)
	assert.Equal(t, face.Emotion("c"), got[1].(Expression).Name)
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Drain())
}

func TestMailboxConcurrentProducers(t *testing.T) {
	m := NewMailbox(64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Put(Clear{})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 64, m.Len())
	assert.Equal(t, uint64(800-64), m.Evicted())
}

func TestTickAppliesExpression(t *testing.T) {
	e := newTestEngine(t, nil)
	neutral := face.Neutral()

	e.Submit(Expression{Name: face.EmotionJoy}.WithIntensity(1))
	var f face.Frame
	for i := 0; i < 120; i++ {
		f = e.Tick(dt, time.Now())
	}

	assert.Greater(t, f.Pts[face.MouthSmile], neutral[face.MouthSmile]+0.1)
	snap := e.Snapshot()
	assert.True(t, hasLayer(snap.Layers, string(face.EmotionJoy)))
	assert.Equal(t, uint64(120), snap.Ticks)
	assert.InDelta(t, 2.0, f.T, 1e-9)
}

func TestExplicitIntensity(t *testing.T) {
	weight := func(cmd Expression) (float64, bool) {
		e := newTestEngine(t, nil)
		e.Submit(cmd)
		e.Tick(dt, time.Now())
		for _, l := range e.Snapshot().Layers {
			if l.Name == string(face.EmotionJoy) {
				return l.Weight, true
			}
		}
		return 0, false
	}

	joy := Expression{Name: face.EmotionJoy}

	_, ok := weight(joy.WithIntensity(0))
	assert.False(t, ok, "zero intensity leaves no layer")
	_, ok = weight(joy.WithIntensity(-0.5))
	assert.False(t, ok, "negative intensity clamps to zero")

	half, ok := weight(joy.WithIntensity(0.5))
	require.True(t, ok)
	full, ok := weight(joy.WithIntensity(3))
	require.True(t, ok)
	def, ok := weight(joy)
	require.True(t, ok)

	assert.Greater(t, full, half)
	assert.InDelta(t, 2*half, full, 1e-9, "intensity above 1 clamps to 1")
	assert.InDelta(t, DefaultOptions().DefaultIntensity*full, def, 1e-9)
}

func TestTickDropsUnknownExpression(t *testing.T) {
	b := bus.NewEventBus()
	dropped := make(chan bus.Event, 1)
	b.Subscribe(bus.EventExpressionDropped, func(ev bus.Event) { dropped <- ev })
	e := newTestEngine(t, b)

	e.Submit(Expression{Name: "smug"}.WithIntensity(1))
	e.Tick(dt, time.Now())

	assert.Empty(t, e.Snapshot().Layers)
	select {
	case ev := <-dropped:
		assert.Equal(t, "smug", ev.Data["expression"])
	case <-time.After(time.Second):
		t.Fatal("no drop event")
	}
}

func TestTickClampsStep(t *testing.T) {
	e := newTestEngine(t, nil)
	f := e.Tick(10, time.Now())
	assert.InDelta(t, e.opts.MaxStep, f.T, 1e-9)

	f = e.Tick(-1, time.Now())
	assert.InDelta(t, e.opts.MaxStep, f.T, 1e-9)
}

func TestOutputStaysInRange(t *testing.T) {
	e := newTestEngine(t, nil)
	rng := rand.New(rand.NewSource(7))
	names := append(e.Presets().Names(), "nope")
	words := []string{"great", "awful", "hmm", "wow", "!", "let me think", "terrible"}

	now := time.Now()
	for i := 0; i < 2000; i++ {
		switch rng.Intn(5) {
		case 0:
			e.Submit(Expression{Name: names[rng.Intn(len(names))]}.WithIntensity(rng.Float64() * 2))
		case 1:
			e.Submit(Sentiment{Valence: rng.Float64()*4 - 2, Arousal: rng.Float64()*4 - 2})
		case 2:
			e.Submit(Text{Text: words[rng.Intn(len(words))], At: now})
		case 3:
			var p face.Params
			for j := range p {
				p[j] = rng.Float64()*10 - 5
			}
			e.Submit(Pose{Name: "random", Pose: p, Weight: rng.Float64()})
		}
		now = now.Add(time.Duration(rng.Intn(50)) * time.Millisecond)
		requireInRange(t, e.Tick(rng.Float64()*0.1, now).Pts)
	}
}

func TestTalkingEvents(t *testing.T) {
	b := bus.NewEventBus()
	events := make(chan bus.EventType, 4)
	b.SubscribeMultiple([]bus.EventType{bus.EventTalkingStarted, bus.EventTalkingStopped}, func(ev bus.Event) {
		events <- ev.Type
	})
	e := newTestEngine(t, b)

	now := time.Now()
	e.Submit(Text{Text: "that is great", At: now})
	e.Tick(dt, now)
	assert.True(t, e.Snapshot().Emotion.Talking)

	select {
	case got := <-events:
		assert.Equal(t, bus.EventTalkingStarted, got)
	case <-time.After(time.Second):
		t.Fatal("no talking_started event")
	}

	e.Tick(dt, now.Add(time.Second))
	assert.False(t, e.Snapshot().Emotion.Talking)

	select {
	case got := <-events:
		assert.Equal(t, bus.EventTalkingStopped, got)
	case <-time.After(time.Second):
		t.Fatal("no talking_stopped event")
	}
}

func TestExplicitSentimentSurvivesQuietAnalyzer(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Submit(Sentiment{Valence: 1, Arousal: 0.5})
	for i := 0; i < 10; i++ {
		e.Tick(dt, time.Now())
	}
	assert.True(t, hasLayer(e.Snapshot().Layers, animation.SentimentLayer))
}

func TestClearAndReloadPresets(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Submit(Expression{Name: face.EmotionSad})
	e.Tick(dt, time.Now())
	require.NotEmpty(t, e.Snapshot().Layers)

	e.Submit(Clear{})
	e.Tick(dt, time.Now())
	assert.Empty(t, e.Snapshot().Layers)

	var d face.Delta
	d.Set(face.HeadRoll, 0.2)
	e.Submit(ReloadPresets{Presets: face.DefaultPresets().With(face.Preset{Name: "smug", Delta: d})})
	e.Submit(Expression{Name: "smug"})
	e.Tick(dt, time.Now())
	assert.True(t, hasLayer(e.Snapshot().Layers, "smug"))
}

func setSpeaker(e *Engine, id string) {
	e.mu.Lock()
	e.speaker = id
	e.mu.Unlock()
}

func TestMouthOwnership(t *testing.T) {
	e := newTestEngine(t, nil)
	open := face.Neutral()
	open[face.MouthOpen] = 0.9

	setSpeaker(e, "a")
	e.Submit(Mouth{Playback: "a", Pose: open})
	e.Tick(dt, time.Now())
	snap := e.Snapshot()
	assert.True(t, snap.Speaking)
	assert.InDelta(t, 0.9, snap.Frame.Pts[face.MouthOpen], 1e-9)

	e.Submit(Mouth{Playback: "b", Done: true})
	e.Tick(dt, time.Now())
	assert.True(t, e.Snapshot().Speaking, "a stale release is ignored")

	e.Submit(Mouth{Playback: "a", Done: true})
	e.Tick(dt, time.Now())
	assert.False(t, e.Snapshot().Speaking)
}

func TestMouthFramesFromReplacedPlaybackDropped(t *testing.T) {
	e := newTestEngine(t, nil)
	stale := face.Neutral()
	stale[face.MouthOpen] = 0.9
	current := face.Neutral()
	current[face.MouthOpen] = 0.3

	setSpeaker(e, "new")
	e.Submit(Mouth{Playback: "old", Pose: stale})
	e.Tick(dt, time.Now())
	assert.False(t, e.Snapshot().Speaking, "a replaced playback cannot take the mouth")

	e.Submit(Mouth{Playback: "new", Pose: current})
	e.Submit(Mouth{Playback: "old", Pose: stale})
	e.Tick(dt, time.Now())
	snap := e.Snapshot()
	assert.True(t, snap.Speaking)
	assert.InDelta(t, 0.3, snap.Frame.Pts[face.MouthOpen], 1e-9)
}

func TestSnapshotIsCopy(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Submit(Expression{Name: face.EmotionJoy})
	e.Tick(dt, time.Now())

	snap := e.Snapshot()
	require.NotEmpty(t, snap.Layers)
	snap.Layers[0].Name = "mutated"
	assert.NotEqual(t, "mutated", e.Snapshot().Layers[0].Name)
}

func TestSubmitEvictionPublishes(t *testing.T) {
	b := bus.NewEventBus()
	evicted := make(chan bus.Event, 8)
	b.Subscribe(bus.EventCommandEvicted, func(ev bus.Event) { evicted <- ev })

	opts := DefaultOptions()
	opts.Bus = b
	opts.MailboxSize = 1
	e := New(opts)

	e.Submit(Clear{})
	e.Submit(Clear{})
	assert.Equal(t, uint64(1), e.mailbox.Evicted())

	select {
	case ev := <-evicted:
		assert.Equal(t, "clear", ev.Data["kind"])
	case <-time.After(time.Second):
		t.Fatal("no eviction event")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	opts := DefaultOptions()
	opts.FPS = 200
	e := New(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	var mu sync.Mutex
	var frames []face.Frame
	err := e.Run(ctx, func(f face.Frame) {
		mu.Lock()
		frames = append(frames, f)
		mu.Unlock()
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, frames)
	for i := 1; i < len(frames); i++ {
		assert.GreaterOrEqual(t, frames[i].T, frames[i-1].T)
	}
}

func TestSpeakDrivesMouth(t *testing.T) {
	b := bus.NewEventBus()
	finished := make(chan bus.Event, 1)
	b.Subscribe(bus.EventLipSyncFinished, func(ev bus.Event) { finished <- ev })
	e := newTestEngine(t, b)

	pb := e.Speak(context.Background(), "hello @@emphasis@@world@@/emphasis@@")
	require.NotNil(t, pb)

	require.Eventually(t, func() bool {
		e.Tick(dt, time.Now())
		return e.Snapshot().Speaking
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, pb.Wait())
	assert.Equal(t, pb.Len(), pb.Delivered())

	require.Eventually(t, func() bool {
		e.Tick(dt, time.Now())
		return !e.Snapshot().Speaking
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case ev := <-finished:
		assert.Equal(t, pb.ID, ev.Data["playback"])
	case <-time.After(time.Second):
		t.Fatal("no lipsync.finished event")
	}
}

func TestSayWithPhonemes(t *testing.T) {
	b := bus.NewEventBus()
	finished := make(chan bus.Event, 1)
	b.Subscribe(bus.EventLipSyncFinished, func(ev bus.Event) { finished <- ev })
	e := newTestEngine(t, b)

	e.Submit(Say{Phonemes: []lipsync.Phoneme{
		{Marker: "emphasis"},
		{Symbol: "AA1", Duration: 0.15},
		{Marker: "/emphasis"},
	}})

	require.Eventually(t, func() bool {
		e.Tick(dt, time.Now())
		return e.Snapshot().Speaking
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case ev := <-finished:
		assert.Nil(t, ev.Data["error"])
	case <-time.After(2 * time.Second):
		t.Fatal("no lipsync.finished event")
	}
	require.Eventually(t, func() bool {
		e.Tick(dt, time.Now())
		return !e.Snapshot().Speaking
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSpeakInterruptsPrevious(t *testing.T) {
	e := newTestEngine(t, nil)
	first := e.Speak(context.Background(), "this is a rather long sentence to say out loud")
	second := e.Speak(context.Background(), "hi")

	assert.ErrorIs(t, first.Wait(), lipsync.ErrStopped)
	assert.NoError(t, second.Wait())
	assert.Less(t, first.Delivered(), first.Len())

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.NotEmpty(t, e.speaker)
}
