// Package emote maps high-level affect vectors from an upstream emotion
// model onto face control points.
package emote

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/tjamescouch/visage/internal/face"
)

// Vector is an affect sample. Valence is in [-1,1]; everything else in
// [0,1]. Out-of-range values are clamped by ToParams.
type Vector struct {
	Valence  float64 `json:"valence"`
	Arousal  float64 `json:"arousal"`
	Happy    float64 `json:"happy"`
	Sad      float64 `json:"sad"`
	Angry    float64 `json:"angry"`
	Fear     float64 `json:"fear"`
	Surprise float64 `json:"surprise"`
	Thinking float64 `json:"thinking"`
}

const defaultArousal = 0.2

func DefaultVector() Vector {
	return Vector{Arousal: defaultArousal}
}

// Message is one decoded upstream message: a vector plus its optional
// timestamp in Unix seconds.
type Message struct {
	Vector
	T float64
}

// Time returns the message timestamp, or fallback if it had none.
func (m Message) Time(fallback time.Time) time.Time {
	if m.T <= 0 {
		return fallback
	}
	sec, frac := math.Modf(m.T)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// ParseMessage decodes a JSON object leniently: missing fields and values
// that are not numbers (or numeric strings) take their defaults, and
// "anger" is accepted for angry.
func ParseMessage(data []byte) (Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("decode emote: %w", err)
	}

	angry := raw["anger"]
	if angry == nil {
		angry = raw["angry"]
	}
	return Message{
		Vector: Vector{
			Valence:  number(raw["valence"], 0),
			Arousal:  number(raw["arousal"], defaultArousal),
			Happy:    number(raw["happy"], 0),
			Sad:      number(raw["sad"], 0),
			Angry:    number(angry, 0),
			Fear:     number(raw["fear"], 0),
			Surprise: number(raw["surprise"], 0),
			Thinking: number(raw["thinking"], 0),
		},
		T: number(raw["t"], 0),
	}, nil
}

func number(v any, def float64) float64 {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return def
		}
		return x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		return f
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return def
	}
}

// ToParams is a fixed, deterministic mapping. Valence and arousal set a
// base pose: eyes open with arousal, valence drives the smile, and the jaw
// follows the mouth. The named emotions are blended on top from presets
// (nil means the default table), with surprised standing in for surprise.
func ToParams(v Vector, presets *face.Presets) face.Params {
	if presets == nil {
		presets = face.DefaultPresets()
	}
	val := clamp(v.Valence, -1, 1)
	a := clamp01(v.Arousal)
	pos := math.Max(0, val)

	mouthOpen := 0.10 + 0.20*a
	p := face.Neutral()
	p[face.LeftEyeOpen] = 0.65 + 0.25*a
	p[face.RightEyeOpen] = 0.65 + 0.25*a
	p[face.MouthOpen] = mouthOpen
	p[face.MouthWide] = 0.10 + 0.10*pos
	p[face.MouthSmile] = 0.45 * pos
	p[face.JawOpen] = 0.85 * mouthOpen

	named := face.Blend(presets, map[face.Emotion]float64{
		face.EmotionHappy:     v.Happy,
		face.EmotionSad:       v.Sad,
		face.EmotionAngry:     v.Angry,
		face.EmotionFear:      v.Fear,
		face.EmotionSurprised: v.Surprise,
		face.EmotionThinking:  v.Thinking,
	})
	p = p.Add(named.Delta()).Clamp()

	p[face.LeftEyeOpen] = math.Max(p[face.LeftEyeOpen], minEyeOpen)
	p[face.RightEyeOpen] = math.Max(p[face.RightEyeOpen], minEyeOpen)
	return p
}

const minEyeOpen = 0.15

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
