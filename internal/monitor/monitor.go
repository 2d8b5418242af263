// Package monitor is a terminal debug view of a running engine.
package monitor

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tjamescouch/visage/internal/engine"
	"github.com/tjamescouch/visage/internal/face"
)

const (
	refresh  = time.Second / 30
	barWidth = 24
)

// Source is the part of the engine the monitor needs.
type Source interface {
	Snapshot() engine.Snapshot
	Submit(engine.Command)
}

// Hotkeys maps number keys to the expressions they push.
var Hotkeys = map[string]face.Emotion{
	"1": face.EmotionJoy,
	"2": face.EmotionSad,
	"3": face.EmotionAngry,
	"4": face.EmotionSurprised,
	"5": face.EmotionThinking,
	"6": face.EmotionFear,
	"7": face.EmotionConfused,
}

type tickMsg time.Time

type Model struct {
	src    Source
	snap   engine.Snapshot
	last   string
	width  int
	height int
}

func New(src Source) Model {
	return Model{src: src, snap: src.Snapshot()}
}

func tick() tea.Cmd {
	return tea.Tick(refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "0":
			m.src.Submit(engine.Clear{})
			m.last = "clear"
		default:
			if name, ok := Hotkeys[key]; ok {
				m.src.Submit(engine.Expression{Name: name})
				m.last = string(name)
			}
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tickMsg:
		m.snap = m.src.Snapshot()
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	s := m.snap
	state := "silent"
	if s.Emotion.Talking {
		state = ActiveStyle.Render("talking")
	}
	if s.Speaking {
		state += " " + ActiveStyle.Render("lip-sync")
	}
	if s.Blinking {
		state += " " + LabelStyle.Render("blink")
	}

	title := TitleStyle.Render("visage monitor") + "  " +
		LabelStyle.Render(fmt.Sprintf("t=%.2fs ticks=%d queued=%d evicted=%d", s.Frame.T, s.Ticks, s.Queued, s.Evicted))

	emotion := PanelStyle.Render(strings.Join([]string{
		row("state", state),
		row("valence", signedBar(s.Emotion.Valence, -1, 1)+fmt.Sprintf(" %+.2f", s.Emotion.Valence)),
		row("arousal", signedBar(s.Emotion.Arousal, 0, 1)+fmt.Sprintf(" %.2f", s.Emotion.Arousal)),
	}, "\n"))

	var layers []string
	if len(s.Layers) == 0 {
		layers = append(layers, LabelStyle.Render("(no layers)"))
	}
	for _, l := range s.Layers {
		layers = append(layers, row(l.Name, signedBar(l.Weight, 0, 1)+fmt.Sprintf(" %.2f", l.Weight)))
	}
	layerPanel := PanelStyle.Render(strings.Join(layers, "\n"))

	points := make([]string, 0, face.PointCount)
	for i := face.Point(0); i < face.PointCount; i++ {
		r := i.Range()
		v := s.Frame.Pts[i]
		points = append(points, row(i.String(), signedBar(v, r.Min, r.Max)+fmt.Sprintf(" %+.3f", v)))
	}
	pointPanel := PanelStyle.Render(strings.Join(points, "\n"))

	left := lipgloss.JoinVertical(lipgloss.Left, emotion, layerPanel)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, pointPanel)

	help := "1 joy  2 sad  3 angry  4 surprised  5 thinking  6 fear  7 confused  0 clear  q quit"
	if m.last != "" {
		help += "  | sent " + m.last
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, body, HelpStyle.Render(help))
}

func row(label, value string) string {
	return LabelStyle.Render(fmt.Sprintf("%-18s", label)) + ValueStyle.Render(value)
}

// signedBar draws v within [lo, hi]. Ranges spanning zero grow left or
// right from the middle.
func signedBar(v, lo, hi float64) string {
	if math.IsNaN(v) || hi <= lo {
		return strings.Repeat(" ", barWidth)
	}
	v = math.Max(lo, math.Min(hi, v))

	if lo >= 0 {
		n := int(math.Round((v - lo) / (hi - lo) * barWidth))
		return BarStyle.Render(strings.Repeat("█", n)) + strings.Repeat("·", barWidth-n)
	}

	half := barWidth / 2
	zero := math.Max(lo, math.Min(hi, 0))
	if v >= zero {
		n := int(math.Round((v - zero) / (hi - zero) * float64(half)))
		return strings.Repeat("·", half) + BarStyle.Render(strings.Repeat("█", n)) + strings.Repeat("·", half-n)
	}
	n := int(math.Round((zero - v) / (zero - lo) * float64(half)))
	return strings.Repeat("·", half-n) + NegativeStyle.Render(strings.Repeat("█", n)) + strings.Repeat("·", half)
}
