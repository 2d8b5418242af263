package animation

import (
	"math"

	"github.com/tjamescouch/visage/internal/face"
)

// SentimentPose maps a valence/arousal pair to a full target pose.
// Smile and brow height rise with valence; eye openness, mouth and jaw
// opening rise with arousal. Negative valence also tilts the brows inward
// and narrows the eyes slightly.
func SentimentPose(valence, arousal float64) face.Params {
	valence = clamp(valence, -1, 1)
	arousal = clamp(arousal, 0, 1)
	sorrow := math.Max(0, -valence)

	p := face.Neutral()
	p[face.MouthSmile] += valence * 0.3
	p[face.MouthOpen] += arousal * 0.15
	p[face.JawOpen] += arousal * 0.1

	eye := arousal*0.2 - sorrow*0.05
	p[face.LeftEyeOpen] += eye
	p[face.RightEyeOpen] += eye

	brow := arousal*0.03 + valence*0.04
	p[face.LeftBrowHeight] += brow
	p[face.RightBrowHeight] += brow

	p[face.LeftBrowAngle] -= sorrow * 0.12
	p[face.RightBrowAngle] += sorrow * 0.12

	return p.Clamp()
}
