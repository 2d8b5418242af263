package lipsync

import (
	"math"

	"github.com/tjamescouch/visage/internal/face"
)

const (
	DefaultFPS = 30.0
	MaxFPS     = 240.0

	// coarticulation is the longest stretch at the start of a segment that
	// eases in from the previous shape.
	coarticulation = 0.05
)

// Frames samples the timeline at fps (DefaultFPS when fps <= 0, at most
// MaxFPS). Frame times are non-decreasing, the last frame lands on the
// timeline's end (at most MaxDuration), and the last frame always has a
// closed mouth and jaw.
func (tl *Timeline) Frames(fps float64) []face.Frame {
	if !(fps > 0) {
		fps = DefaultFPS
	}
	fps = math.Min(fps, MaxFPS)
	step := 1 / fps

	end := tl.Duration
	if !(end > 0) {
		end = 0
	}
	end = math.Min(end, MaxDuration)

	n := int(math.Ceil(end*fps - 1e-9))
	if n < 0 {
		n = 0
	}
	frames := make([]face.Frame, 0, n+1)
	for i := 0; i < n; i++ {
		t := float64(i) * step
		frames = append(frames, face.Frame{T: t, Pts: tl.Pose(t)})
	}
	frames = append(frames, face.Frame{T: end, Pts: closed()})
	return frames
}

// Pose returns the mouth pose at time t, easing between neighbouring
// visemes and applying the segment's prosody modifiers.
func (tl *Timeline) Pose(t float64) face.Params {
	idx, seg := tl.At(t)
	shape := seg.Viseme.Shape()

	if idx > 0 {
		span := math.Min(coarticulation, seg.Duration()*0.5)
		if into := t - seg.Start; span > 0 && into < span {
			prev := tl.Segments[idx-1].Viseme.Shape()
			shape = mix(prev, shape, easeInOut(into/span))
		}
	}

	p := face.Neutral()
	scale := seg.Mods.MouthScale
	if scale <= 0 {
		scale = 1
	}
	p[face.MouthOpen] = clamp01(shape.MouthOpen * scale)
	p[face.JawOpen] = clamp01(shape.JawOpen * scale)
	p[face.MouthWide] = shape.MouthWide
	p[face.MouthSmile] = shape.MouthSmile

	if raise := seg.Mods.BrowRaise; raise > 0 {
		p[face.LeftBrowHeight] = math.Max(p[face.LeftBrowHeight], raise)
		p[face.RightBrowHeight] = math.Max(p[face.RightBrowHeight], raise)
	}
	return p.Clamp()
}

func closed() face.Params {
	p := face.Neutral()
	p[face.MouthOpen] = 0
	p[face.JawOpen] = 0
	return p
}

func mix(a, b Shape, t float64) Shape {
	return Shape{
		MouthOpen:  a.MouthOpen + (b.MouthOpen-a.MouthOpen)*t,
		MouthWide:  a.MouthWide + (b.MouthWide-a.MouthWide)*t,
		MouthSmile: a.MouthSmile + (b.MouthSmile-a.MouthSmile)*t,
		JawOpen:    a.JawOpen + (b.JawOpen-a.JawOpen)*t,
	}
}

func easeInOut(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - 2*(1-t)*(1-t)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
