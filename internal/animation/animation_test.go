package animation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjamescouch/visage/internal/face"
)

const frame = 1.0 / 60

func requireInRange(t *testing.T, p face.Params) {
	t.Helper()
	for i, v := range p {
		r := face.Ranges[i]
		require.True(t, v >= r.Min && v <= r.Max, "%s=%v outside [%v,%v]", face.PointNames[i], v, r.Min, r.Max)
	}
}

func TestPushExpressionReplaces(t *testing.T) {
	b := NewBlender(DefaultBlenderConfig(), nil)

	require.True(t, b.PushExpression(face.EmotionJoy, 1, 0))
	require.True(t, b.PushExpression(face.EmotionJoy, 1, 0))
	require.True(t, b.PushExpression(face.EmotionJoy, 0.5, 0))
	assert.Equal(t, 1, b.Len())

	layers := b.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, 0.5, layers[0].Weight)
}

func TestPushUnknownExpressionDropped(t *testing.T) {
	b := NewBlender(DefaultBlenderConfig(), nil)
	assert.False(t, b.PushExpression("smug", 1, 0))
	assert.False(t, b.PushExpression(SentimentLayer, 1, 0))
	assert.Equal(t, 0, b.Len())
}

func TestPushSentimentSingleLayer(t *testing.T) {
	b := NewBlender(DefaultBlenderConfig(), nil)
	for i := 0; i < 10; i++ {
		b.PushSentiment(0.6, 0.4, 0)
		b.Step(frame)
	}
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, SentimentLayer, b.Layers()[0].Name)

	b.PushSentiment(0.01, 0.02, 0)
	assert.Equal(t, 0, b.Len(), "weak signal removes the layer")
}

func TestLayerWeightDecaysExponentially(t *testing.T) {
	b := NewBlender(DefaultBlenderConfig(), nil)
	b.PushExpression(face.EmotionSad, 1, 1.0)
	b.Step(0.5)
	assert.InDelta(t, 0.6065, b.Layers()[0].Weight, 1e-3)
}

func TestLayersPruned(t *testing.T) {
	b := NewBlender(DefaultBlenderConfig(), nil)
	b.PushExpression(face.EmotionJoy, 1, 2)
	b.PushExpression(face.EmotionThinking, 1, 0.1)

	for i := 0; i < 60*3; i++ {
		b.Step(frame)
	}
	layers := b.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, string(face.EmotionThinking), layers[0].Name)
}

func TestDecayToNeutral(t *testing.T) {
	b := NewBlender(DefaultBlenderConfig(), nil)
	b.PushExpression(face.EmotionSurprised, 1, 0)
	b.PushExpression(face.EmotionAngry, 0.8, 0)
	b.PushSentiment(-0.7, 0.9, 0)

	var out face.Params
	for i := 0; i < 60*30; i++ {
		out = b.Step(frame)
	}
	assert.Equal(t, 0, b.Len())
	n := face.Neutral()
	for i := range out {
		assert.InDelta(t, n[i], out[i], 1e-3, face.PointNames[i])
	}
}

func TestStepSmoothsTowardTarget(t *testing.T) {
	b := NewBlender(DefaultBlenderConfig(), nil)
	b.PushExpression(face.EmotionJoy, 1, 0)

	target := b.Target()[face.MouthSmile]
	first := b.Step(frame)[face.MouthSmile]
	assert.Greater(t, first, 0.0)
	assert.Less(t, first, target, "output eases rather than jumping")
}

func TestTargetIsWeightedAverage(t *testing.T) {
	b := NewBlender(DefaultBlenderConfig(), nil)
	b.PushExpression(face.EmotionJoy, 1, 0)

	// (0.3*0 + 1.0*0.45) / 1.3
	assert.InDelta(t, 0.45/1.3, b.Target()[face.MouthSmile], 1e-9)
}

func TestBoundedOutputRandomPushes(t *testing.T) {
	b := NewBlender(DefaultBlenderConfig(), nil)
	idle := NewIdle(DefaultIdleConfig())
	rng := rand.New(rand.NewSource(7))
	names := face.DefaultPresets().Names()

	for i := 0; i < 5000; i++ {
		switch rng.Intn(4) {
		case 0:
			b.PushExpression(names[rng.Intn(len(names))], rng.Float64()*2-0.5, rng.Float64()*3)
		case 1:
			b.PushSentiment(rng.Float64()*4-2, rng.Float64()*3-1, 0)
		case 2:
			idle.SetTalking(rng.Intn(2) == 0, rng.Float64())
		}
		out := idle.Apply(b.Step(rng.Float64()*0.1), rng.Float64()*0.1)
		requireInRange(t, out)
		require.LessOrEqual(t, b.Len(), len(names)+1)
	}
}

func TestClearAndRemove(t *testing.T) {
	b := NewBlender(DefaultBlenderConfig(), nil)
	b.PushExpression(face.EmotionJoy, 1, 0)
	b.PushExpression(face.EmotionSad, 1, 0)

	assert.True(t, b.Remove(string(face.EmotionJoy)))
	assert.False(t, b.Remove(string(face.EmotionJoy)))
	assert.Equal(t, 1, b.Len())

	b.Clear()
	assert.Equal(t, 0, b.Len())
}

func TestSentimentPoseMonotone(t *testing.T) {
	prev := SentimentPose(-1, 0.5)
	for v := -0.9; v <= 1.0; v += 0.1 {
		cur := SentimentPose(v, 0.5)
		assert.GreaterOrEqual(t, cur[face.MouthSmile], prev[face.MouthSmile])
		assert.GreaterOrEqual(t, cur[face.LeftBrowHeight], prev[face.LeftBrowHeight])
		prev = cur
	}

	prev = SentimentPose(0.2, 0)
	for a := 0.1; a <= 1.0; a += 0.1 {
		cur := SentimentPose(0.2, a)
		assert.Greater(t, cur[face.LeftEyeOpen], prev[face.LeftEyeOpen])
		assert.Greater(t, cur[face.MouthOpen], prev[face.MouthOpen])
		assert.Greater(t, cur[face.JawOpen], prev[face.JawOpen])
		prev = cur
	}
}

func TestIdleDeterministic(t *testing.T) {
	a := NewIdle(DefaultIdleConfig())
	b := NewIdle(DefaultIdleConfig())
	for i := 0; i < 600; i++ {
		require.Equal(t, a.Apply(face.Neutral(), frame), b.Apply(face.Neutral(), frame))
	}
}

func TestIdleBlinks(t *testing.T) {
	id := NewIdle(DefaultIdleConfig())
	minEye := 1.0
	for i := 0; i < 60*7; i++ {
		out := id.Apply(face.Neutral(), frame)
		if out[face.LeftEyeOpen] < minEye {
			minEye = out[face.LeftEyeOpen]
		}
	}
	assert.Less(t, minEye, 0.2, "at least one near-complete blink within the max interval")
}

func TestIdleBreathingContinuous(t *testing.T) {
	id := NewIdle(DefaultIdleConfig())
	prev := id.Apply(face.Neutral(), frame)[face.FaceScale]
	for i := 0; i < 600; i++ {
		cur := id.Apply(face.Neutral(), frame)[face.FaceScale]
		assert.InDelta(t, prev, cur, 0.001)
		prev = cur
	}
}

func TestIdleDriftBounded(t *testing.T) {
	id := NewIdle(DefaultIdleConfig())
	for i := 0; i < 60*20; i++ {
		out := id.Apply(face.Neutral(), frame)
		assert.LessOrEqual(t, out[face.LeftPupilX], 0.02+1e-9)
		assert.GreaterOrEqual(t, out[face.LeftPupilX], -0.02-1e-9)
	}
}

func TestIdleTalkingScalesWithArousal(t *testing.T) {
	peak := func(arousal float64) float64 {
		id := NewIdle(DefaultIdleConfig())
		id.SetTalking(true, arousal)
		max := 0.0
		for i := 0; i < 60; i++ {
			if v := id.Apply(face.Neutral(), frame)[face.MouthOpen]; v > max {
				max = v
			}
		}
		return max
	}

	calm, excited := peak(0.3), peak(1.0)
	assert.Greater(t, calm, 0.0)
	assert.Greater(t, excited, calm)
	assert.Greater(t, calm, peak(0.1))
	assert.InDelta(t, 2*peak(0.25), peak(0.5), 1e-9)
	assert.Equal(t, 0.0, peak(0))

	id := NewIdle(DefaultIdleConfig())
	for i := 0; i < 60; i++ {
		assert.Equal(t, 0.0, id.Apply(face.Neutral(), frame)[face.MouthOpen])
	}
}

func TestBlinkCurveShape(t *testing.T) {
	assert.Equal(t, 0.0, blinkCurve(0))
	assert.Equal(t, 1.0, blinkCurve(0.45))
	assert.InDelta(t, 0.0, blinkCurve(0.9999), 1e-3)
	assert.Greater(t, blinkCurve(0.2), 0.5, "closing is fast")
}
