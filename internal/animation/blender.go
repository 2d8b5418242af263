// Package animation mixes decaying expression layers into one smoothed
// face pose and overlays autonomous idle motion on top of it.
package animation

import (
	"math"
	"sort"

	"github.com/tjamescouch/visage/internal/face"
)

// SentimentLayer is the reserved name of the layer driven by PushSentiment.
const SentimentLayer = "__sentiment"

type BlenderConfig struct {
	BaselineWeight   float64 `mapstructure:"baseline_weight"`
	PruneThreshold   float64 `mapstructure:"prune_threshold"`
	Smoothing        float64 `mapstructure:"smoothing"`
	ExpressionDecay  float64 `mapstructure:"expression_decay"`
	SentimentDecay   float64 `mapstructure:"sentiment_decay"`
	SentimentMinimum float64 `mapstructure:"sentiment_minimum"`
}

func DefaultBlenderConfig() BlenderConfig {
	return BlenderConfig{
		BaselineWeight:   0.3,
		PruneThreshold:   0.01,
		Smoothing:        8.0,
		ExpressionDecay:  0.5,
		SentimentDecay:   0.3,
		SentimentMinimum: 0.05,
	}
}

func (c BlenderConfig) withDefaults() BlenderConfig {
	d := DefaultBlenderConfig()
	if c.BaselineWeight <= 0 {
		c.BaselineWeight = d.BaselineWeight
	}
	if c.PruneThreshold <= 0 {
		c.PruneThreshold = d.PruneThreshold
	}
	if c.Smoothing <= 0 {
		c.Smoothing = d.Smoothing
	}
	if c.ExpressionDecay <= 0 {
		c.ExpressionDecay = d.ExpressionDecay
	}
	if c.SentimentDecay <= 0 {
		c.SentimentDecay = d.SentimentDecay
	}
	if c.SentimentMinimum <= 0 {
		c.SentimentMinimum = d.SentimentMinimum
	}
	return c
}

// Layer is one weighted full-pose contribution to the blend.
type Layer struct {
	Name      string
	Target    face.Params
	Weight    float64
	DecayRate float64
	Age       float64
}

// LayerInfo is a read-only view of a live layer.
type LayerInfo struct {
	Name      string  `json:"name"`
	Weight    float64 `json:"weight"`
	DecayRate float64 `json:"decay_rate"`
	Age       float64 `json:"age"`
}

// Blender keeps at most one layer per name. It is owned by a single
// goroutine and does no locking.
type Blender struct {
	cfg     BlenderConfig
	presets *face.Presets

	layers  []*Layer
	current face.Params
}

func NewBlender(cfg BlenderConfig, presets *face.Presets) *Blender {
	if presets == nil {
		presets = face.DefaultPresets()
	}
	return &Blender{
		cfg:     cfg.withDefaults(),
		presets: presets,
		current: face.Neutral(),
	}
}

// SetPresets swaps the preset table. Live layers keep the pose they were
// pushed with.
func (b *Blender) SetPresets(p *face.Presets) {
	if p != nil {
		b.presets = p
	}
}

func (b *Blender) Presets() *face.Presets {
	return b.presets
}

// PushExpression inserts or replaces the layer for a preset. The layer
// target is the full pose neutral+delta*intensity and its starting weight
// is the intensity. Unknown presets are dropped and reported as false.
func (b *Blender) PushExpression(name face.Emotion, intensity, decayRate float64) bool {
	if name == SentimentLayer {
		return false
	}
	preset, ok := b.presets.Lookup(name)
	if !ok {
		return false
	}
	intensity = clamp(intensity, 0, 1)
	if decayRate <= 0 {
		decayRate = b.cfg.ExpressionDecay
	}
	b.put(&Layer{
		Name:      string(name),
		Target:    preset.Target(intensity),
		Weight:    intensity,
		DecayRate: decayRate,
	})
	return true
}

// PushSentiment inserts or replaces the sentiment layer. A signal too weak
// to matter removes the layer instead.
func (b *Blender) PushSentiment(valence, arousal, decayRate float64) {
	valence = clamp(valence, -1, 1)
	arousal = clamp(arousal, 0, 1)
	if decayRate <= 0 {
		decayRate = b.cfg.SentimentDecay
	}

	weight := math.Max(math.Abs(valence), arousal) * 0.8
	if weight <= b.cfg.SentimentMinimum {
		b.Remove(SentimentLayer)
		return
	}
	b.put(&Layer{
		Name:      SentimentLayer,
		Target:    SentimentPose(valence, arousal),
		Weight:    weight,
		DecayRate: decayRate,
	})
}

// PushPose inserts or replaces an arbitrary full-pose layer.
func (b *Blender) PushPose(name string, target face.Params, weight, decayRate float64) {
	if decayRate <= 0 {
		decayRate = b.cfg.ExpressionDecay
	}
	b.put(&Layer{
		Name:      name,
		Target:    target.Clamp(),
		Weight:    clamp(weight, 0, 1),
		DecayRate: decayRate,
	})
}

func (b *Blender) put(l *Layer) {
	for i, existing := range b.layers {
		if existing.Name == l.Name {
			b.layers[i] = l
			return
		}
	}
	b.layers = append(b.layers, l)
}

func (b *Blender) Remove(name string) bool {
	for i, l := range b.layers {
		if l.Name == name {
			b.layers = append(b.layers[:i], b.layers[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every layer. The output then eases back to neutral.
func (b *Blender) Clear() {
	b.layers = b.layers[:0]
}

// Step decays and prunes layers, blends the survivors with the baseline,
// and eases the output toward that blend.
func (b *Blender) Step(dt float64) face.Params {
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}

	live := b.layers[:0]
	for _, l := range b.layers {
		l.Age += dt
		l.Weight *= math.Exp(-l.DecayRate * dt)
		if l.Weight >= b.cfg.PruneThreshold {
			live = append(live, l)
		}
	}
	for i := len(live); i < len(b.layers); i++ {
		b.layers[i] = nil
	}
	b.layers = live

	target := b.Target()
	alpha := 1 - math.Exp(-b.cfg.Smoothing*dt)
	b.current = b.current.Lerp(target, alpha).Clamp()
	return b.current
}

// Target is the unsmoothed weighted average of baseline and live layers.
func (b *Blender) Target() face.Params {
	neutral := face.Neutral()
	total := b.cfg.BaselineWeight
	var sum face.Params
	for i := range sum {
		sum[i] = neutral[i] * total
	}
	for _, l := range b.layers {
		for i := range sum {
			sum[i] += l.Target[i] * l.Weight
		}
		total += l.Weight
	}
	for i := range sum {
		sum[i] /= total
	}
	return sum
}

func (b *Blender) Current() face.Params {
	return b.current
}

func (b *Blender) Len() int {
	return len(b.layers)
}

// Layers returns the live layers ordered by descending weight.
func (b *Blender) Layers() []LayerInfo {
	out := make([]LayerInfo, 0, len(b.layers))
	for _, l := range b.layers {
		out = append(out, LayerInfo{Name: l.Name, Weight: l.Weight, DecayRate: l.DecayRate, Age: l.Age})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

func clamp(v, min, max float64) float64 {
	if math.IsNaN(v) {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
