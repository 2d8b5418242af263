// Package face defines the facial control-point vector, the neutral pose,
// and the expression preset table.
package face

type Point int

const (
	LeftEyeOpen Point = iota
	RightEyeOpen
	LeftPupilX
	LeftPupilY
	RightPupilX
	RightPupilY
	LeftBrowHeight
	LeftBrowAngle
	RightBrowHeight
	RightBrowAngle
	MouthOpen
	MouthWide
	MouthSmile
	JawOpen
	FaceScale
	HeadPitch
	HeadYaw
	HeadRoll
	PointCount
)

var PointNames = [PointCount]string{
	"left_eye_open",
	"right_eye_open",
	"left_pupil_x",
	"left_pupil_y",
	"right_pupil_x",
	"right_pupil_y",
	"left_brow_height",
	"left_brow_angle",
	"right_brow_height",
	"right_brow_angle",
	"mouth_open",
	"mouth_wide",
	"mouth_smile",
	"jaw_open",
	"face_scale",
	"head_pitch",
	"head_yaw",
	"head_roll",
}

type Range struct {
	Min, Max float64
}

func (r Range) Clamp(v float64) float64 {
	return clamp(v, r.Min, r.Max)
}

var (
	unit   = Range{0, 1}
	signed = Range{-1, 1}
)

var Ranges = [PointCount]Range{
	LeftEyeOpen:     unit,
	RightEyeOpen:    unit,
	LeftPupilX:      signed,
	LeftPupilY:      signed,
	RightPupilX:     signed,
	RightPupilY:     signed,
	LeftBrowHeight:  signed,
	LeftBrowAngle:   signed,
	RightBrowHeight: signed,
	RightBrowAngle:  signed,
	MouthOpen:       unit,
	MouthWide:       signed,
	MouthSmile:      signed,
	JawOpen:         unit,
	FaceScale:       {0.5, 1.5},
	HeadPitch:       signed,
	HeadYaw:         signed,
	HeadRoll:        signed,
}

func (p Point) String() string {
	if p < 0 || p >= PointCount {
		return "unknown"
	}
	return PointNames[p]
}

func (p Point) Range() Range {
	return Ranges[p]
}

// PointFromName returns -1 for names outside the canonical set.
func PointFromName(name string) Point {
	for i, n := range PointNames {
		if n == name {
			return Point(i)
		}
	}
	return -1
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
