package monitor

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjamescouch/visage/internal/animation"
	"github.com/tjamescouch/visage/internal/engine"
	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/sentiment"
)

type fakeSource struct {
	mu   sync.Mutex
	snap engine.Snapshot
	cmds []engine.Command
}

func (f *fakeSource) Snapshot() engine.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) Submit(c engine.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, c)
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestHotkeysSubmitCommands(t *testing.T) {
	src := &fakeSource{}
	var m tea.Model = New(src)

	m, _ = m.Update(key("1"))
	m, _ = m.Update(key("5"))
	m, _ = m.Update(key("0"))
	m, _ = m.Update(key("x"))

	require.Len(t, src.cmds, 3)
	assert.Equal(t, engine.Expression{Name: face.EmotionJoy}, src.cmds[0])
	assert.Equal(t, engine.Expression{Name: face.EmotionThinking}, src.cmds[1])
	assert.Equal(t, engine.Clear{}, src.cmds[2])
	assert.Contains(t, m.View(), "sent clear")
}

func TestQuit(t *testing.T) {
	m := New(&fakeSource{})
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestTickRefreshesSnapshot(t *testing.T) {
	src := &fakeSource{}
	var m tea.Model = New(src)

	p := face.Neutral()
	p[face.MouthSmile] = 0.5
	src.mu.Lock()
	src.snap = engine.Snapshot{
		Frame:   face.Frame{T: 1.5, Pts: p},
		Emotion: sentiment.Emotion{Valence: 0.4, Arousal: 0.6, Talking: true},
		Layers:  []animation.LayerInfo{{Name: "joy", Weight: 0.7}},
		Ticks:   90,
	}
	src.mu.Unlock()

	m, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd, "ticking continues")

	view := m.View()
	assert.Contains(t, view, "ticks=90")
	assert.Contains(t, view, "talking")
	assert.Contains(t, view, "joy")
	assert.Contains(t, view, "mouth_smile")
	assert.Contains(t, view, "+0.500")
}

func TestSignedBarWidth(t *testing.T) {
	for _, tc := range []struct{ v, lo, hi float64 }{
		{0, -1, 1}, {1, -1, 1}, {-1, -1, 1}, {-0.3, -1, 1}, {2, -1, 1},
		{0, 0, 1}, {1, 0, 1}, {0.8, 0.5, 1.5},
	} {
		assert.Equal(t, barWidth, lipgloss.Width(signedBar(tc.v, tc.lo, tc.hi)), "%+v", tc)
	}
}
