package engine

import (
	"time"

	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/lipsync"
	"github.com/tjamescouch/visage/internal/markup"
	"github.com/tjamescouch/visage/internal/sentiment"
)

// Command is anything that can be queued for the tick loop.
type Command interface {
	Kind() string
}

// Expression pushes a named preset layer. A nil Intensity means the
// engine's default intensity; an explicit one is clamped to [0,1], so 0
// shows nothing. Zero DecayRate means the blender default.
type Expression struct {
	Name      face.Emotion
	Intensity *float64
	DecayRate float64
}

// WithIntensity returns a copy of x with an explicit intensity.
func (x Expression) WithIntensity(v float64) Expression {
	x.Intensity = &v
	return x
}

// Sentiment pushes an explicit valence/arousal pair, bypassing the text
// analyzer.
type Sentiment struct {
	Valence   float64
	Arousal   float64
	DecayRate float64
}

// Text feeds streamed LLM output to the sentiment analyzer. A zero At is
// stamped with the tick time.
type Text struct {
	Text string
	At   time.Time
}

// Pose pushes a full target pose, e.g. from an emote vector.
type Pose struct {
	Name      string
	Pose      face.Params
	Weight    float64
	DecayRate float64
}

// Say lip-syncs Text, which may carry prosody markers. When Phonemes is
// set, its timing drives the mouth instead and Text is informational.
type Say struct {
	Text     string
	Phonemes []lipsync.Phoneme
}

// Clear drops every layer.
type Clear struct{}

// Mouth overrides the mouth while lip-sync plays. Frames count only from
// the newest utterance's Playback; Done releases the override only if
// Playback still owns it.
type Mouth struct {
	Playback string
	Pose     face.Params
	Done     bool
}

type ReloadPresets struct {
	Presets *face.Presets
}

type ReloadLexicon struct {
	Lexicon *sentiment.Lexicon
}

type ReloadEffects struct {
	Effects *markup.Effects
}

func (Expression) Kind() string    { return "expression" }
func (Sentiment) Kind() string     { return "sentiment" }
func (Text) Kind() string          { return "text" }
func (Pose) Kind() string          { return "pose" }
func (Say) Kind() string           { return "say" }
func (Clear) Kind() string         { return "clear" }
func (Mouth) Kind() string         { return "mouth" }
func (ReloadPresets) Kind() string { return "reload_presets" }
func (ReloadLexicon) Kind() string { return "reload_lexicon" }
func (ReloadEffects) Kind() string { return "reload_effects" }
