package lipsync

import (
	"math"
	"strings"

	"github.com/tjamescouch/visage/internal/markup"
)

// Grapheme durations in seconds at speed 1.
const (
	VowelDuration     = 0.100
	FricativeDuration = 0.080
	ConsonantDuration = 0.060
	WordGap           = 0.080
	ClauseGap         = 0.100
	SentenceGap       = 0.150
)

// MaxDuration bounds a timeline in seconds. Anything past it is dropped,
// which keeps frame generation bounded for arbitrarily long input.
const MaxDuration = 120.0

// Segment is one viseme held over [Start, End). Mods are the prosody
// modifiers in force when it was produced.
type Segment struct {
	Start  float64
	End    float64
	Viseme Viseme
	Mods   markup.Modifiers
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Timeline is an ordered, gapless, non-overlapping run of segments that
// starts at 0 and ends at Duration.
type Timeline struct {
	Segments []Segment
	Duration float64
}

// Phoneme is one timed phoneme as reported by a TTS engine. An entry with
// Marker set is a prosody marker instead ("emphasis", "/emphasis",
// "pause"); its Symbol and Duration are ignored.
type Phoneme struct {
	Symbol   string  `json:"symbol,omitempty"`
	Duration float64 `json:"duration,omitempty"` // seconds
	Marker   string  `json:"marker,omitempty"`
}

type builder struct {
	tl Timeline
}

// add appends a segment. Non-finite or non-positive durations are skipped
// and the timeline is cut at MaxDuration.
func (b *builder) add(v Viseme, d float64, mods markup.Modifiers) {
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return
	}
	if b.full() {
		return
	}
	start := b.tl.Duration
	end := start + d
	if end > MaxDuration {
		end = MaxDuration
	}
	b.tl.Duration = end
	b.tl.Segments = append(b.tl.Segments, Segment{Start: start, End: end, Viseme: v, Mods: mods})
}

func (b *builder) full() bool {
	return b.tl.Duration > MaxDuration-1e-6
}

// FromPhonemes builds a timeline from TTS phoneme timing. Marker entries
// open and close effect scopes: speed divides the durations that follow,
// mouth scale and brow raise shape their visemes, and pause markers insert
// silence. Unknown marker tokens are skipped, as are phonemes with a
// non-positive duration.
func FromPhonemes(phonemes []Phoneme, effects *markup.Effects) *Timeline {
	var b builder
	parser := markup.NewParser(effects)
	stack := markup.NewStack(effects)

	for _, p := range phonemes {
		if b.full() {
			break
		}
		if p.Marker != "" {
			seg, ok := parser.Marker(p.Marker)
			if !ok {
				continue
			}
			if seg.Kind == markup.Marker {
				b.add(Sil, stack.PauseFor(seg.Name), stack.Modifiers())
			} else {
				stack.Apply(seg)
			}
			continue
		}
		mods := stack.Modifiers()
		b.add(FromPhoneme(p.Symbol), p.Duration/speedOf(mods), mods)
	}
	return &b.tl
}

func speedOf(m markup.Modifiers) float64 {
	if m.Speed <= 0 {
		return 1
	}
	return m.Speed
}

// FromText approximates a timeline from marked-up text when no phoneme
// data is available. Markers scale timing and amplitude; pause markers
// insert silence without consuming text.
func FromText(text string, effects *markup.Effects) *Timeline {
	var b builder
	parser := markup.NewParser(effects)
	stack := markup.NewStack(effects)

	for _, seg := range parser.Parse(text) {
		if b.full() {
			break
		}
		switch seg.Kind {
		case markup.Marker:
			b.add(Sil, stack.PauseFor(seg.Name), stack.Modifiers())
		case markup.MarkerStart, markup.MarkerEnd:
			stack.Apply(seg)
		case markup.Text:
			graphemeRun(&b, seg.Text, stack.Modifiers())
		}
	}
	return &b.tl
}

func graphemeRun(b *builder, text string, mods markup.Modifiers) {
	speed := speedOf(mods)
	chars := []byte(strings.ToLower(text))
	for i := 0; i < len(chars) && !b.full(); i++ {
		c := chars[i]
		switch c {
		case ' ', '\n', '\t', '\r':
			b.add(Sil, WordGap/speed, mods)
			continue
		case '.', '!', '?':
			b.add(Sil, SentenceGap/speed, mods)
			continue
		case ',', ';', ':':
			b.add(Sil, ClauseGap/speed, mods)
			continue
		}

		if i+1 < len(chars) && isDigraph(c, chars[i+1]) {
			v, _ := FromGrapheme(string(chars[i : i+2]))
			b.add(v, ConsonantDuration/speed, mods)
			i++
			continue
		}

		v, ok := FromGrapheme(string(c))
		if !ok {
			continue
		}
		d := ConsonantDuration
		switch {
		case isVowel(c):
			d = VowelDuration
		case isFricative(c):
			d = FricativeDuration
		}
		b.add(v, d/speed, mods)
	}
}

func isDigraph(a, b byte) bool {
	return b == 'h' && (a == 't' || a == 'c' || a == 's')
}

// At returns the segment active at time t, clamping t into the timeline.
func (tl *Timeline) At(t float64) (int, Segment) {
	if len(tl.Segments) == 0 {
		return -1, Segment{Viseme: Sil, Mods: markup.Identity()}
	}
	lo, hi := 0, len(tl.Segments)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if tl.Segments[mid].End <= t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, tl.Segments[lo]
}
