package sentiment

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is the (valence, arousal) contribution of one lexicon hit.
type Entry struct {
	Valence float64 `yaml:"valence"`
	Arousal float64 `yaml:"arousal"`
}

// UnmarshalYAML accepts either a two-element sequence [valence, arousal]
// or a mapping with valence/arousal keys.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var pair []float64
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: expected [valence, arousal], got %d values", node.Line, len(pair))
		}
		e.Valence, e.Arousal = pair[0], pair[1]
		return nil
	}
	type plain Entry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

type Category string

const (
	Positive Category = "positive"
	Negative Category = "negative"
	Thinking Category = "thinking"
	Surprise Category = "surprise"
)

var categoryOrder = []Category{Positive, Negative, Thinking, Surprise}

// Lexicon maps words and short phrases to sentiment contributions, grouped
// by category. A term listed in more than one category scores once per
// category. Lexicons are immutable once built; use Merge to derive new ones.
type Lexicon struct {
	terms     map[Category]map[string]Entry
	maxPhrase int
}

func NewLexicon(terms map[Category]map[string]Entry) *Lexicon {
	l := &Lexicon{terms: make(map[Category]map[string]Entry, len(terms)), maxPhrase: 1}
	for cat, words := range terms {
		m := make(map[string]Entry, len(words))
		for w, e := range words {
			w = normalizeTerm(w)
			if w == "" {
				continue
			}
			m[w] = e
			if n := len(strings.Fields(w)); n > l.maxPhrase {
				l.maxPhrase = n
			}
		}
		l.terms[cat] = m
	}
	return l
}

func normalizeTerm(w string) string {
	return strings.Join(strings.Fields(strings.ToLower(w)), " ")
}

// Match sums the contributions of term across every category that lists it.
func (l *Lexicon) Match(term string) (Entry, int) {
	var sum Entry
	hits := 0
	if l == nil {
		return sum, 0
	}
	for _, cat := range categoryOrder {
		if e, ok := l.terms[cat][term]; ok {
			sum.Valence += e.Valence
			sum.Arousal += e.Arousal
			hits++
		}
	}
	return sum, hits
}

// MaxPhrase is the word count of the longest term.
func (l *Lexicon) MaxPhrase() int {
	if l == nil {
		return 1
	}
	return l.maxPhrase
}

func (l *Lexicon) Len() int {
	n := 0
	for _, m := range l.terms {
		n += len(m)
	}
	return n
}

// Merge returns a lexicon with every term of over added to (or replacing
// the same term in) l.
func (l *Lexicon) Merge(over map[Category]map[string]Entry) *Lexicon {
	merged := make(map[Category]map[string]Entry, len(l.terms))
	for cat, words := range l.terms {
		m := make(map[string]Entry, len(words))
		for w, e := range words {
			m[w] = e
		}
		merged[cat] = m
	}
	for cat, words := range over {
		if merged[cat] == nil {
			merged[cat] = make(map[string]Entry, len(words))
		}
		for w, e := range words {
			merged[cat][w] = e
		}
	}
	return NewLexicon(merged)
}

// LoadLexicon reads category overrides from a YAML or JSON file and merges
// them over the default lexicon.
//
//	positive:
//	  stellar: [0.6, 0.4]
//	negative:
//	  flaky: {valence: -0.3, arousal: 0.2}
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %q: %w", path, err)
	}
	return ParseLexicon(data)
}

func ParseLexicon(data []byte) (*Lexicon, error) {
	var doc map[Category]map[string]Entry
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode lexicon: %w", err)
	}
	return DefaultLexicon().Merge(doc), nil
}

func DefaultLexicon() *Lexicon {
	return NewLexicon(map[Category]map[string]Entry{
		Positive: {
			"good": {0.3, 0.1}, "great": {0.5, 0.3}, "excellent": {0.6, 0.3},
			"perfect": {0.6, 0.3}, "love": {0.5, 0.4}, "beautiful": {0.4, 0.2},
			"happy": {0.5, 0.3}, "wonderful": {0.5, 0.3}, "awesome": {0.5, 0.4},
			"fantastic": {0.5, 0.4}, "yes": {0.2, 0.1}, "nice": {0.3, 0.1},
			"thanks": {0.3, 0.1}, "brilliant": {0.5, 0.4}, "fun": {0.4, 0.3},
			"exciting": {0.4, 0.5}, "cool": {0.3, 0.2}, "elegant": {0.4, 0.2},
			"clever": {0.3, 0.2}, "simple": {0.2, 0.0}, "clean": {0.2, 0.0},
			"solved": {0.4, 0.3}, "works": {0.3, 0.2}, "done": {0.3, 0.2},
			"exactly": {0.3, 0.2}, "right": {0.2, 0.1}, "correct": {0.3, 0.1},
		},
		Negative: {
			"error": {-0.4, 0.4}, "fail": {-0.4, 0.3}, "failed": {-0.4, 0.3},
			"bug": {-0.3, 0.3}, "wrong": {-0.3, 0.2}, "bad": {-0.3, 0.2},
			"broken": {-0.4, 0.3}, "crash": {-0.5, 0.5}, "problem": {-0.3, 0.3},
			"issue": {-0.2, 0.2}, "unfortunately": {-0.3, 0.1}, "sorry": {-0.2, 0.1},
			"warning": {-0.2, 0.3}, "danger": {-0.4, 0.5}, "no": {-0.1, 0.1},
			"not": {-0.1, 0.0}, "can't": {-0.2, 0.1}, "cannot": {-0.2, 0.1},
			"stuck": {-0.3, 0.2}, "confused": {-0.2, 0.2}, "hard": {-0.1, 0.2},
			"slow": {-0.2, 0.1}, "ugly": {-0.3, 0.2}, "mess": {-0.3, 0.3},
			"hack": {-0.2, 0.2}, "terrible": {-0.5, 0.3}, "awful": {-0.5, 0.3},
		},
		Thinking: {
			"hmm": {0.0, 0.2}, "let me": {0.0, 0.2}, "consider": {0.0, 0.2},
			"perhaps": {0.0, 0.1}, "maybe": {0.0, 0.1}, "if": {0.0, 0.1},
			"analyzing": {0.0, 0.3}, "investigating": {0.0, 0.3},
			"looking": {0.0, 0.2}, "checking": {0.0, 0.2}, "searching": {0.0, 0.2},
			"reading": {0.0, 0.1}, "understanding": {0.0, 0.2},
		},
		Surprise: {
			"!": {0.1, 0.5}, "wow": {0.3, 0.6}, "whoa": {0.2, 0.5},
			"interesting": {0.2, 0.4}, "unexpected": {0.0, 0.5},
			"actually": {0.1, 0.3}, "wait": {0.0, 0.4}, "oh": {0.1, 0.3},
			"huh": {0.0, 0.3}, "really": {0.1, 0.3},
		},
	})
}
