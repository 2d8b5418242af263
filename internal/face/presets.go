package face

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Emotion identifies an expression or emotion preset. The set is open:
// override files may register new names.
type Emotion string

const (
	EmotionIdle      Emotion = "idle"
	EmotionJoy       Emotion = "joy"
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionFear      Emotion = "fear"
	EmotionSurprised Emotion = "surprised"
	EmotionThinking  Emotion = "thinking"
	EmotionConfused  Emotion = "confused"
	EmotionExcited   Emotion = "excited"
	EmotionTalking   Emotion = "talking"
)

type Preset struct {
	Name  Emotion
	Delta Delta
}

// Target returns the full pose for the preset at the given intensity.
func (p Preset) Target(intensity float64) Params {
	return Neutral().Add(p.Delta.Scale(intensity)).Clamp()
}

var (
	PresetIdle = Preset{Name: EmotionIdle}

	PresetJoy = func() Preset {
		var d Delta
		d.Set(MouthSmile, 0.45)
		d.Set(MouthWide, 0.10)
		d.Set(MouthOpen, 0.05)
		d.Set(LeftEyeOpen, -0.05)
		d.Set(RightEyeOpen, -0.05)
		d.Set(LeftBrowHeight, 0.03)
		d.Set(RightBrowHeight, 0.03)
		return Preset{Name: EmotionJoy, Delta: d}
	}()

	PresetHappy = func() Preset {
		var d Delta
		d.Set(MouthSmile, 0.25)
		d.Set(MouthWide, 0.04)
		d.Set(MouthOpen, 0.08)
		d.Set(LeftEyeOpen, -0.10)
		d.Set(RightEyeOpen, -0.10)
		d.Set(HeadYaw, 0.04)
		return Preset{Name: EmotionHappy, Delta: d}
	}()

	PresetSad = func() Preset {
		var d Delta
		d.Set(MouthSmile, -0.25)
		d.Set(LeftEyeOpen, -0.20)
		d.Set(RightEyeOpen, -0.20)
		d.Set(LeftBrowAngle, -0.12)
		d.Set(RightBrowAngle, 0.12)
		d.Set(LeftBrowHeight, -0.02)
		d.Set(RightBrowHeight, -0.02)
		d.Set(HeadPitch, 0.03)
		return Preset{Name: EmotionSad, Delta: d}
	}()

	PresetAngry = func() Preset {
		var d Delta
		d.Set(MouthSmile, -0.25)
		d.Set(MouthWide, -0.20)
		d.Set(LeftEyeOpen, -0.25)
		d.Set(RightEyeOpen, -0.25)
		d.Set(LeftBrowHeight, -0.03)
		d.Set(RightBrowHeight, -0.03)
		d.Set(LeftBrowAngle, 0.06)
		d.Set(RightBrowAngle, -0.06)
		d.Set(HeadYaw, -0.04)
		return Preset{Name: EmotionAngry, Delta: d}
	}()

	PresetFear = func() Preset {
		var d Delta
		d.Set(LeftEyeOpen, 0.15)
		d.Set(RightEyeOpen, 0.15)
		d.Set(MouthOpen, 0.10)
		d.Set(JawOpen, 0.08)
		d.Set(LeftBrowHeight, 0.05)
		d.Set(RightBrowHeight, 0.05)
		d.Set(HeadRoll, -0.03)
		return Preset{Name: EmotionFear, Delta: d}
	}()

	PresetSurprised = func() Preset {
		var d Delta
		d.Set(LeftEyeOpen, 0.20)
		d.Set(RightEyeOpen, 0.20)
		d.Set(MouthOpen, 0.45)
		d.Set(JawOpen, 0.38)
		d.Set(MouthWide, -0.03)
		d.Set(LeftBrowHeight, 0.06)
		d.Set(RightBrowHeight, 0.06)
		d.Set(HeadPitch, -0.03)
		return Preset{Name: EmotionSurprised, Delta: d}
	}()

	PresetThinking = func() Preset {
		var d Delta
		d.Set(LeftEyeOpen, -0.10)
		d.Set(RightEyeOpen, -0.10)
		d.Set(LeftPupilX, 0.02)
		d.Set(LeftPupilY, -0.01)
		d.Set(RightPupilX, 0.02)
		d.Set(RightPupilY, -0.01)
		d.Set(MouthSmile, -0.08)
		d.Set(LeftBrowAngle, 0.12)
		d.Set(LeftBrowHeight, 0.03)
		d.Set(RightBrowAngle, -0.04)
		d.Set(RightBrowHeight, 0.01)
		d.Set(HeadRoll, 0.03)
		return Preset{Name: EmotionThinking, Delta: d}
	}()

	PresetConfused = func() Preset {
		var d Delta
		d.Set(RightEyeOpen, -0.20)
		d.Set(LeftPupilX, -0.01)
		d.Set(RightPupilX, 0.01)
		d.Set(MouthSmile, -0.12)
		d.Set(MouthOpen, 0.04)
		d.Set(LeftBrowAngle, 0.18)
		d.Set(LeftBrowHeight, 0.04)
		d.Set(RightBrowAngle, -0.12)
		d.Set(RightBrowHeight, -0.01)
		d.Set(HeadRoll, 0.04)
		return Preset{Name: EmotionConfused, Delta: d}
	}()

	PresetExcited = func() Preset {
		var d Delta
		d.Set(MouthSmile, 0.35)
		d.Set(MouthOpen, 0.20)
		d.Set(JawOpen, 0.15)
		d.Set(MouthWide, 0.08)
		d.Set(LeftEyeOpen, 0.20)
		d.Set(RightEyeOpen, 0.20)
		d.Set(LeftBrowHeight, 0.05)
		d.Set(RightBrowHeight, 0.05)
		return Preset{Name: EmotionExcited, Delta: d}
	}()

	PresetTalking = func() Preset {
		var d Delta
		d.Set(MouthOpen, 0.35)
		d.Set(JawOpen, 0.30)
		d.Set(MouthSmile, 0.03)
		return Preset{Name: EmotionTalking, Delta: d}
	}()
)

// Presets is a read-only table of expression presets keyed by name.
type Presets struct {
	byName map[Emotion]Preset
}

func NewPresets(list ...Preset) *Presets {
	t := &Presets{byName: make(map[Emotion]Preset, len(list))}
	for _, p := range list {
		t.byName[p.Name] = p
	}
	return t
}

func DefaultPresets() *Presets {
	return NewPresets(
		PresetIdle,
		PresetJoy,
		PresetHappy,
		PresetSad,
		PresetAngry,
		PresetFear,
		PresetSurprised,
		PresetThinking,
		PresetConfused,
		PresetExcited,
		PresetTalking,
	)
}

// Lookup returns the named preset. Unknown names resolve to a zero-delta
// preset and ok=false, so callers can apply the result unconditionally.
func (t *Presets) Lookup(name Emotion) (Preset, bool) {
	if t == nil {
		return Preset{Name: name}, false
	}
	p, ok := t.byName[name]
	if !ok {
		return Preset{Name: name}, false
	}
	return p, true
}

func (t *Presets) Has(name Emotion) bool {
	_, ok := t.Lookup(name)
	return ok
}

func (t *Presets) Names() []Emotion {
	if t == nil {
		return nil
	}
	names := make([]Emotion, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// With returns a copy of the table with the given presets added or replaced.
func (t *Presets) With(list ...Preset) *Presets {
	out := &Presets{byName: make(map[Emotion]Preset, len(t.byName)+len(list))}
	for k, v := range t.byName {
		out.byName[k] = v
	}
	for _, p := range list {
		out.byName[p.Name] = p
	}
	return out
}

// LoadPresets reads a YAML (or JSON) document of the form
//
//	joy:
//	  mouth_smile: 0.5
//	  mouth_wide: 0.1
//
// and returns the default table with each listed preset replaced. Point
// names outside the canonical set are ignored.
func LoadPresets(path string) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets %q: %w", path, err)
	}
	return ParsePresets(data)
}

func ParsePresets(data []byte) (*Presets, error) {
	var doc map[string]map[string]float64
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}

	overrides := make([]Preset, 0, len(doc))
	for name, points := range doc {
		if name == "" {
			continue
		}
		var d Delta
		for pt, v := range points {
			if idx := PointFromName(pt); idx >= 0 {
				d[idx] = v
			}
		}
		overrides = append(overrides, Preset{Name: Emotion(name), Delta: d})
	}
	return DefaultPresets().With(overrides...), nil
}
