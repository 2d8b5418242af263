// Package sentiment turns a live token stream into a continuous
// valence/arousal signal and a talking/silent state.
package sentiment

import (
	"math"
	"regexp"
	"strings"
	"time"
)

type State int

const (
	Silent State = iota
	Talking
)

func (s State) String() string {
	switch s {
	case Talking:
		return "talking"
	default:
		return "silent"
	}
}

// Emotion is the analyzer output.
type Emotion struct {
	Valence float64 `json:"valence"` // -1 negative .. +1 positive
	Arousal float64 `json:"arousal"` // 0 calm .. 1 excited
	Talking bool    `json:"talking"`
}

type Config struct {
	// WindowSize bounds the number of recent chunks that are re-scored.
	WindowSize int `mapstructure:"window_size"`
	// RetentionPerSecond is the fraction of the signal kept per second
	// while tokens are flowing.
	RetentionPerSecond float64 `mapstructure:"retention_per_second"`
	// RecencyRate weights token i of n by exp(-RecencyRate*(n-i)).
	RecencyRate float64 `mapstructure:"recency_rate"`
	// TalkTimeout is how long after the last token the state stays Talking.
	TalkTimeout time.Duration `mapstructure:"talk_timeout"`
	// SilenceOnset is when silence decay starts accelerating.
	SilenceOnset time.Duration `mapstructure:"silence_onset"`
	// SilenceRamp controls how quickly the decay exponent grows past onset.
	SilenceRamp time.Duration `mapstructure:"silence_ramp"`
	// SilenceMultiplier scales the decay exponent once onset is reached.
	SilenceMultiplier float64 `mapstructure:"silence_multiplier"`
}

func DefaultConfig() Config {
	return Config{
		WindowSize:         200,
		RetentionPerSecond: 0.92,
		RecencyRate:        0.02,
		TalkTimeout:        500 * time.Millisecond,
		SilenceOnset:       time.Second,
		SilenceRamp:        2 * time.Second,
		SilenceMultiplier:  3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	if c.RetentionPerSecond <= 0 || c.RetentionPerSecond >= 1 {
		c.RetentionPerSecond = d.RetentionPerSecond
	}
	if c.RecencyRate <= 0 {
		c.RecencyRate = d.RecencyRate
	}
	if c.TalkTimeout <= 0 {
		c.TalkTimeout = d.TalkTimeout
	}
	if c.SilenceOnset <= 0 {
		c.SilenceOnset = d.SilenceOnset
	}
	if c.SilenceRamp <= 0 {
		c.SilenceRamp = d.SilenceRamp
	}
	if c.SilenceMultiplier <= 0 {
		c.SilenceMultiplier = d.SilenceMultiplier
	}
	return c
}

const (
	maxBlend    = 0.6
	blendPerHit = 0.15
	snapEpsilon = 1e-3
)

var tokenPattern = regexp.MustCompile(`[a-z']+|!`)

// Analyzer is not safe for concurrent use; one goroutine owns it.
type Analyzer struct {
	cfg     Config
	lexicon *Lexicon

	window []string
	head   int
	full   bool

	emotion   Emotion
	lastToken time.Time
	fed       int
}

func NewAnalyzer(cfg Config, lex *Lexicon) *Analyzer {
	cfg = cfg.withDefaults()
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &Analyzer{
		cfg:     cfg,
		lexicon: lex,
		window:  make([]string, cfg.WindowSize),
	}
}

// Reload swaps the lexicon. The current emotion is kept and the next Feed
// scores against the new terms.
func (a *Analyzer) Reload(lex *Lexicon) {
	if lex == nil {
		return
	}
	a.lexicon = lex
}

// Feed appends a chunk of streamed text. Empty or whitespace-only chunks
// are ignored and do not count as activity.
func (a *Analyzer) Feed(text string, at time.Time) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return
	}
	a.window[a.head] = text
	a.head = (a.head + 1) % len(a.window)
	if a.head == 0 {
		a.full = true
	}
	a.lastToken = at
	a.fed++
	a.analyze()
}

// Step advances time-based effects: talking detection and decay toward
// neutral, which accelerates the longer silence lasts.
func (a *Analyzer) Step(dt float64, now time.Time) {
	if dt < 0 {
		dt = 0
	}
	silence := a.Silence(now)
	a.emotion.Talking = a.fed > 0 && silence < a.cfg.TalkTimeout

	exponent := dt
	if a.fed == 0 || silence > a.cfg.SilenceOnset {
		past := (silence - a.cfg.SilenceOnset).Seconds()
		if a.fed == 0 {
			past = 0
		}
		ramp := 1 + past/a.cfg.SilenceRamp.Seconds()
		exponent = dt * a.cfg.SilenceMultiplier * ramp * ramp
	}
	factor := math.Pow(a.cfg.RetentionPerSecond, exponent)
	a.emotion.Valence = snap(a.emotion.Valence * factor)
	a.emotion.Arousal = snap(a.emotion.Arousal * factor)
}

// Silence is the time since the last non-empty chunk.
func (a *Analyzer) Silence(now time.Time) time.Duration {
	if a.fed == 0 {
		return time.Duration(math.MaxInt64)
	}
	s := now.Sub(a.lastToken)
	if s < 0 {
		return 0
	}
	return s
}

func (a *Analyzer) Emotion() Emotion {
	return a.emotion
}

func (a *Analyzer) State() State {
	if a.emotion.Talking {
		return Talking
	}
	return Silent
}

func (a *Analyzer) Reset() {
	for i := range a.window {
		a.window[i] = ""
	}
	a.head, a.full = 0, false
	a.emotion = Emotion{}
	a.fed = 0
	a.lastToken = time.Time{}
}

func (a *Analyzer) chunks() []string {
	if !a.full {
		return a.window[:a.head]
	}
	out := make([]string, 0, len(a.window))
	out = append(out, a.window[a.head:]...)
	return append(out, a.window[:a.head]...)
}

func (a *Analyzer) analyze() {
	tokens := tokenPattern.FindAllString(strings.Join(a.chunks(), " "), -1)
	n := len(tokens)
	maxPhrase := a.lexicon.MaxPhrase()

	var vSum, aSum, hits float64
	for i := range tokens {
		recency := math.Exp(-a.cfg.RecencyRate * float64(n-i))
		for size := 1; size <= maxPhrase && i+size <= n; size++ {
			term := tokens[i]
			if size > 1 {
				term = strings.Join(tokens[i:i+size], " ")
			}
			e, k := a.lexicon.Match(term)
			if k == 0 {
				continue
			}
			vSum += e.Valence * recency
			aSum += e.Arousal * recency
			hits += float64(k) * recency
		}
	}

	if hits > 0 {
		newV := vSum / math.Max(hits, 1)
		newA := aSum / math.Max(hits, 1)
		blend := math.Min(maxBlend, hits*blendPerHit)
		a.emotion.Valence += (newV - a.emotion.Valence) * blend
		a.emotion.Arousal += (newA - a.emotion.Arousal) * blend
	}
	a.emotion.Valence = clamp(a.emotion.Valence, -1, 1)
	a.emotion.Arousal = clamp(a.emotion.Arousal, 0, 1)
}

func snap(v float64) float64 {
	if math.Abs(v) < snapEpsilon {
		return 0
	}
	return v
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
