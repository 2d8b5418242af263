package animation

import (
	"math"
	"math/rand"

	"github.com/tjamescouch/visage/internal/face"
)

type IdleConfig struct {
	Seed int64 `mapstructure:"seed"`

	BreathAmplitude float64 `mapstructure:"breath_amplitude"`
	BreathRate      float64 `mapstructure:"breath_rate"` // radians per second

	BlinkMin      float64 `mapstructure:"blink_min"` // seconds
	BlinkMax      float64 `mapstructure:"blink_max"`
	BlinkDuration float64 `mapstructure:"blink_duration"`
	BlinkClosure  float64 `mapstructure:"blink_closure"`

	DriftRadius    float64 `mapstructure:"drift_radius"`
	DriftSmoothing float64 `mapstructure:"drift_smoothing"`

	// TalkAmplitude is the mouth oscillation at arousal 1; it scales
	// linearly with arousal.
	TalkAmplitude float64 `mapstructure:"talk_amplitude"`
	TalkFrequency float64 `mapstructure:"talk_frequency"` // radians per second
}

func DefaultIdleConfig() IdleConfig {
	return IdleConfig{
		Seed:            42,
		BreathAmplitude: 0.008,
		BreathRate:      1.5,
		BlinkMin:        2.0,
		BlinkMax:        6.0,
		BlinkDuration:   0.15,
		BlinkClosure:    0.95,
		DriftRadius:     0.02,
		DriftSmoothing:  2.0,
		TalkAmplitude:   0.3,
		TalkFrequency:   5 * math.Pi,
	}
}

func (c IdleConfig) withDefaults() IdleConfig {
	d := DefaultIdleConfig()
	if c.BreathAmplitude < 0 {
		c.BreathAmplitude = d.BreathAmplitude
	}
	if c.BreathRate <= 0 {
		c.BreathRate = d.BreathRate
	}
	if c.BlinkMin <= 0 {
		c.BlinkMin = d.BlinkMin
	}
	if c.BlinkMax < c.BlinkMin {
		c.BlinkMax = math.Max(d.BlinkMax, c.BlinkMin)
	}
	if c.BlinkDuration <= 0 {
		c.BlinkDuration = d.BlinkDuration
	}
	if c.BlinkClosure <= 0 || c.BlinkClosure > 1 {
		c.BlinkClosure = d.BlinkClosure
	}
	if c.DriftRadius < 0 {
		c.DriftRadius = d.DriftRadius
	}
	if c.DriftSmoothing <= 0 {
		c.DriftSmoothing = d.DriftSmoothing
	}
	if c.TalkAmplitude < 0 {
		c.TalkAmplitude = d.TalkAmplitude
	}
	if c.TalkFrequency <= 0 {
		c.TalkFrequency = d.TalkFrequency
	}
	return c
}

// Idle adds breathing, blinking, eye drift and talking motion on top of a
// blended pose. Randomness comes from a seeded source so a given seed and
// dt sequence always produce the same motion.
type Idle struct {
	cfg IdleConfig
	rng *rand.Rand

	time float64

	nextBlink float64
	blinkT    float64
	blinking  bool

	driftX, driftY   float64
	targetX, targetY float64
	nextDrift        float64

	talking bool
	arousal float64
}

func NewIdle(cfg IdleConfig) *Idle {
	cfg = cfg.withDefaults()
	id := &Idle{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	id.nextBlink = id.blinkInterval()
	id.nextDrift = id.driftInterval()
	return id
}

// SetTalking enables the mouth oscillation. Its amplitude follows arousal.
func (id *Idle) SetTalking(on bool, arousal float64) {
	id.talking = on
	id.arousal = clamp(arousal, 0, 1)
}

func (id *Idle) Talking() bool {
	return id.talking
}

func (id *Idle) Blinking() bool {
	return id.blinking
}

func (id *Idle) Time() float64 {
	return id.time
}

// Apply advances the idle clock by dt and returns p with the overlay added
// and every point re-clamped.
func (id *Idle) Apply(p face.Params, dt float64) face.Params {
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	id.time += dt

	p[face.FaceScale] += id.cfg.BreathAmplitude * math.Sin(id.time*id.cfg.BreathRate)

	if amount := id.stepBlink(dt); amount > 0 {
		k := 1 - id.cfg.BlinkClosure*amount
		p[face.LeftEyeOpen] *= k
		p[face.RightEyeOpen] *= k
	}

	id.stepDrift(dt)
	p[face.LeftPupilX] += id.driftX
	p[face.RightPupilX] += id.driftX
	p[face.LeftPupilY] += id.driftY
	p[face.RightPupilY] += id.driftY

	if id.talking {
		amp := id.cfg.TalkAmplitude * id.arousal
		osc := amp * math.Abs(math.Sin(id.time*id.cfg.TalkFrequency))
		p[face.MouthOpen] += osc
		p[face.JawOpen] += osc * 0.8
	}

	return p.Clamp()
}

// stepBlink returns the current closure amount in [0,1].
func (id *Idle) stepBlink(dt float64) float64 {
	if !id.blinking {
		id.nextBlink -= dt
		if id.nextBlink > 0 {
			return 0
		}
		id.blinking = true
		id.blinkT = 0
		id.nextBlink = id.blinkInterval()
	}

	id.blinkT += dt
	u := id.blinkT / id.cfg.BlinkDuration
	if u >= 1 {
		id.blinking = false
		return 0
	}
	return blinkCurve(u)
}

// blinkCurve closes fast, holds briefly, and reopens slower.
func blinkCurve(u float64) float64 {
	switch {
	case u < 0.4:
		return easeOutQuad(u / 0.4)
	case u < 0.5:
		return 1
	default:
		return 1 - easeInQuad((u-0.5)/0.5)
	}
}

func easeOutQuad(x float64) float64 {
	return 1 - (1-x)*(1-x)
}

func easeInQuad(x float64) float64 {
	return x * x
}

func (id *Idle) blinkInterval() float64 {
	return id.cfg.BlinkMin + id.rng.Float64()*(id.cfg.BlinkMax-id.cfg.BlinkMin)
}

func (id *Idle) driftInterval() float64 {
	return 0.8 + id.rng.Float64()*1.7
}

func (id *Idle) stepDrift(dt float64) {
	id.nextDrift -= dt
	if id.nextDrift <= 0 {
		angle := id.rng.Float64() * 2 * math.Pi
		r := id.cfg.DriftRadius * math.Sqrt(id.rng.Float64())
		id.targetX = r * math.Cos(angle)
		id.targetY = r * math.Sin(angle) * 0.6
		id.nextDrift = id.driftInterval()
	}
	alpha := 1 - math.Exp(-id.cfg.DriftSmoothing*dt)
	id.driftX += (id.targetX - id.driftX) * alpha
	id.driftY += (id.targetY - id.driftY) * alpha
}
