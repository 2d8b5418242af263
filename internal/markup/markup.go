// Package markup parses inline prosody markers of the form
//
//	Hello @@emphasis@@world@@/emphasis@@! @@pause@@
//
// into ordered segments, and resolves the effect scopes those segments open.
package markup

import (
	"regexp"
	"strings"
)

type Kind int

const (
	Text Kind = iota
	MarkerStart
	MarkerEnd
	Marker
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case MarkerStart:
		return "marker_start"
	case MarkerEnd:
		return "marker_end"
	case Marker:
		return "marker"
	default:
		return "unknown"
	}
}

// Segment is one piece of parsed input. Text segments carry Text; marker
// segments carry Name.
type Segment struct {
	Kind Kind
	Text string
	Name string
}

var (
	markerPattern = regexp.MustCompile(`@@(/?)([A-Za-z][A-Za-z0-9-]*)@@`)
	tokenPattern  = regexp.MustCompile(`^(/?)([A-Za-z][A-Za-z0-9-]*)$`)
)

// Parser splits marked-up text. Which names are self-closing comes from its
// effect table.
type Parser struct {
	effects *Effects
}

func NewParser(effects *Effects) *Parser {
	if effects == nil {
		effects = DefaultEffects()
	}
	return &Parser{effects: effects}
}

// Parse scans text left to right. Empty text runs are not emitted. A
// marker name with a pause effect is self-closing; any other opening
// marker, known or not, starts a scope.
func (p *Parser) Parse(text string) []Segment {
	var segs []Segment
	last := 0
	for _, m := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			segs = append(segs, Segment{Kind: Text, Text: text[last:m[0]]})
		}
		segs = append(segs, p.classify(m[3] > m[2], text[m[4]:m[5]]))
		last = m[1]
	}
	if last < len(text) {
		segs = append(segs, Segment{Kind: Text, Text: text[last:]})
	}
	return segs
}

// Marker classifies one marker token given on its own, with or without
// the @@ delimiters: "emphasis", "/emphasis", "@@pause@@". ok is false
// when token is not a marker.
func (p *Parser) Marker(token string) (Segment, bool) {
	m := tokenPattern.FindStringSubmatch(strings.Trim(strings.TrimSpace(token), "@"))
	if m == nil {
		return Segment{}, false
	}
	return p.classify(m[1] == "/", m[2]), true
}

func (p *Parser) classify(closing bool, name string) Segment {
	switch {
	case closing:
		return Segment{Kind: MarkerEnd, Name: name}
	case p.effects.SelfClosing(name):
		return Segment{Kind: Marker, Name: name}
	default:
		return Segment{Kind: MarkerStart, Name: name}
	}
}

// Parse uses the default effect table.
func Parse(text string) []Segment {
	return NewParser(nil).Parse(text)
}

var whitespace = regexp.MustCompile(`\s+`)

// Strip removes every marker, collapses whitespace runs to one space and
// trims the ends. Removal repeats until no marker remains, since deleting
// one can join its neighbours into another.
func Strip(text string) string {
	for markerPattern.MatchString(text) {
		text = markerPattern.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
