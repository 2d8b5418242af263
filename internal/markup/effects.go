package markup

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Effect is what one marker name does. Zero Speed or MouthScale mean 1.
// An effect with a positive Pause is self-closing and only inserts silence.
type Effect struct {
	Speed      float64 `yaml:"speed"`
	MouthScale float64 `yaml:"mouth_scale"`
	BrowRaise  float64 `yaml:"brow_raise"`
	Pause      float64 `yaml:"pause"` // seconds
}

func (e Effect) speed() float64 {
	if e.Speed <= 0 {
		return 1
	}
	return e.Speed
}

func (e Effect) mouthScale() float64 {
	if e.MouthScale <= 0 {
		return 1
	}
	return e.MouthScale
}

type Effects struct {
	byName map[string]Effect
}

func NewEffects(m map[string]Effect) *Effects {
	e := &Effects{byName: make(map[string]Effect, len(m))}
	for k, v := range m {
		e.byName[k] = v
	}
	return e
}

func DefaultEffects() *Effects {
	return NewEffects(map[string]Effect{
		"emphasis":   {Speed: 0.9, MouthScale: 1.3, BrowRaise: 0.15},
		"whisper":    {Speed: 0.95, MouthScale: 0.5},
		"shout":      {MouthScale: 1.5, BrowRaise: 0.2},
		"slow":       {Speed: 0.7},
		"fast":       {Speed: 1.4},
		"excited":    {Speed: 1.15, MouthScale: 1.2, BrowRaise: 0.1},
		"soft":       {MouthScale: 0.7},
		"pause":      {Pause: 0.4},
		"long-pause": {Pause: 1.0},
		"breath":     {Pause: 0.25},
	})
}

// Lookup reports whether name has an effect. Unknown names return the
// identity effect.
func (e *Effects) Lookup(name string) (Effect, bool) {
	if e == nil {
		return Effect{}, false
	}
	eff, ok := e.byName[name]
	return eff, ok
}

func (e *Effects) SelfClosing(name string) bool {
	eff, ok := e.Lookup(name)
	return ok && eff.Pause > 0
}

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

// LoadEffects merges a YAML effect table over the defaults.
func LoadEffects(path string) (*Effects, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read effects %q: %w", path, err)
	}
	var doc map[string]Effect
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode effects: %w", err)
	}
	out := DefaultEffects()
	for name, eff := range doc {
		if namePattern.MatchString(name) {
			out.byName[name] = eff
		}
	}
	return out, nil
}

// Modifiers is the combined effect of every open scope.
type Modifiers struct {
	Speed      float64
	MouthScale float64
	BrowRaise  float64
}

func Identity() Modifiers {
	return Modifiers{Speed: 1, MouthScale: 1}
}

// Stack tracks open effect scopes while walking segments.
type Stack struct {
	effects *Effects
	names   []string
}

func NewStack(effects *Effects) *Stack {
	if effects == nil {
		effects = DefaultEffects()
	}
	return &Stack{effects: effects}
}

func (s *Stack) Push(name string) {
	s.names = append(s.names, name)
}

// Pop removes the innermost scope regardless of which name closed it.
// Popping an empty stack does nothing.
func (s *Stack) Pop() (string, bool) {
	if len(s.names) == 0 {
		return "", false
	}
	top := s.names[len(s.names)-1]
	s.names = s.names[:len(s.names)-1]
	return top, true
}

func (s *Stack) Depth() int {
	return len(s.names)
}

func (s *Stack) Names() []string {
	return append([]string(nil), s.names...)
}

// Apply updates the stack for one segment. Text and self-closing markers
// leave it unchanged.
func (s *Stack) Apply(seg Segment) {
	switch seg.Kind {
	case MarkerStart:
		s.Push(seg.Name)
	case MarkerEnd:
		s.Pop()
	}
}

// Modifiers composes the open scopes: speed and mouth scale multiply,
// brow raise takes the maximum.
func (s *Stack) Modifiers() Modifiers {
	m := Identity()
	for _, name := range s.names {
		eff, ok := s.effects.Lookup(name)
		if !ok {
			continue
		}
		m.Speed *= eff.speed()
		m.MouthScale *= eff.mouthScale()
		if eff.BrowRaise > m.BrowRaise {
			m.BrowRaise = eff.BrowRaise
		}
	}
	return m
}

// PauseFor returns the silence a self-closing marker inserts.
func (s *Stack) PauseFor(name string) float64 {
	eff, _ := s.effects.Lookup(name)
	return eff.Pause
}
