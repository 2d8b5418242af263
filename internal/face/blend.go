package face

// Blend applies weighted preset deltas to the neutral pose. Each weight is
// clamped to [0,1] on its own; weights are not normalized against each
// other. Unknown names contribute nothing. The result is clamped.
func Blend(presets *Presets, state map[Emotion]float64) Params {
	out := Neutral()
	for name, w := range state {
		p, ok := presets.Lookup(name)
		if !ok {
			continue
		}
		w = clamp(w, 0, 1)
		if w == 0 {
			continue
		}
		out = out.Add(p.Delta.Scale(w))
	}
	return out.Clamp()
}
