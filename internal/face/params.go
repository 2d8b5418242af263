package face

import "math"

// Params holds one value per control point in canonical order.
type Params [PointCount]float64

// Neutral is the resting pose. Eyes rest slightly below fully open so
// arousal has room to widen them.
var neutral = Params{
	LeftEyeOpen:  0.8,
	RightEyeOpen: 0.8,
	FaceScale:    1.0,
}

// Neutral returns a copy of the resting pose.
func Neutral() Params {
	return neutral
}

func (p *Params) Get(pt Point) float64 {
	return p[pt]
}

// Set stores v clamped to the point's declared range.
func (p *Params) Set(pt Point, v float64) {
	p[pt] = Ranges[pt].Clamp(v)
}

func (p Params) Clamp() Params {
	for i := range p {
		v := p[i]
		if math.IsNaN(v) {
			v = neutral[i]
		}
		p[i] = Ranges[i].Clamp(v)
	}
	return p
}

// Add returns p + d without clamping.
func (p Params) Add(d Delta) Params {
	for i := range p {
		p[i] += d[i]
	}
	return p
}

func (p Params) Lerp(to Params, t float64) Params {
	t = clamp(t, 0, 1)
	var out Params
	for i := range p {
		out[i] = p[i] + (to[i]-p[i])*t
	}
	return out
}

// Delta returns the offset of p from the neutral pose.
func (p Params) Delta() Delta {
	var d Delta
	for i := range p {
		d[i] = p[i] - neutral[i]
	}
	return d
}

func (p Params) Map() map[string]float64 {
	m := make(map[string]float64, PointCount)
	for i, name := range PointNames {
		m[name] = p[i]
	}
	return m
}

// ParamsFromMap fills missing names from the neutral pose and ignores
// names outside the canonical set.
func ParamsFromMap(m map[string]float64) Params {
	p := neutral
	for name, v := range m {
		if pt := PointFromName(name); pt >= 0 {
			p[pt] = v
		}
	}
	return p
}

// LerpMaps interpolates two partial point maps. A name missing from
// either operand takes its neutral value before interpolation.
func LerpMaps(from, to map[string]float64, t float64) Params {
	return ParamsFromMap(from).Lerp(ParamsFromMap(to), t)
}

// Lerp is the package-level form of Params.Lerp.
func Lerp(from, to Params, t float64) Params {
	return from.Lerp(to, t)
}

// Delta is a per-point offset from the neutral pose.
type Delta [PointCount]float64

func (d Delta) Scale(f float64) Delta {
	for i := range d {
		d[i] *= f
	}
	return d
}

func (d *Delta) Set(pt Point, v float64) {
	d[pt] = v
}

func (d Delta) IsZero() bool {
	for _, v := range d {
		if v != 0 {
			return false
		}
	}
	return true
}
