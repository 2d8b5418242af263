// Package lipsync converts phonemes or plain text into a viseme timeline,
// samples it into mouth frames, and streams those frames in real time.
package lipsync

import (
	"strings"
)

// Viseme is a mouth shape class shared by several phonemes.
type Viseme string

const (
	Sil Viseme = "sil" // closed, at rest
	AA  Viseme = "aa"  // father
	EE  Viseme = "ee"  // see
	IH  Viseme = "ih"  // sit
	OH  Viseme = "oh"  // go
	OO  Viseme = "oo"  // boot
	FV  Viseme = "fv"  // five
	TH  Viseme = "th"  // think
	MBP Viseme = "mbp" // mother, boy, pan
	LNT Viseme = "lnt" // love, no, two
	WQ  Viseme = "wq"  // we, queen
	CH  Viseme = "ch"  // church, judge, shoe
	K   Viseme = "k"   // key, go
	R   Viseme = "r"   // run
	SZ  Viseme = "sz"  // see, zoo
)

// Shape is the mouth configuration of a viseme.
type Shape struct {
	MouthOpen  float64
	MouthWide  float64
	MouthSmile float64
	JawOpen    float64
}

var Shapes = map[Viseme]Shape{
	Sil: {},
	AA:  {MouthOpen: 0.70, MouthWide: 0.10, JawOpen: 0.60},
	EE:  {MouthOpen: 0.25, MouthWide: 0.45, MouthSmile: 0.10, JawOpen: 0.15},
	IH:  {MouthOpen: 0.30, MouthWide: 0.25, JawOpen: 0.20},
	OH:  {MouthOpen: 0.55, MouthWide: -0.30, JawOpen: 0.45},
	OO:  {MouthOpen: 0.30, MouthWide: -0.45, JawOpen: 0.20},
	FV:  {MouthOpen: 0.10, MouthWide: 0.05, JawOpen: 0.08},
	TH:  {MouthOpen: 0.20, MouthWide: 0.05, JawOpen: 0.15},
	MBP: {MouthOpen: 0.00, MouthWide: 0.00, JawOpen: 0.02},
	LNT: {MouthOpen: 0.25, MouthWide: 0.10, JawOpen: 0.18},
	WQ:  {MouthOpen: 0.20, MouthWide: -0.40, JawOpen: 0.12},
	CH:  {MouthOpen: 0.25, MouthWide: -0.20, JawOpen: 0.15},
	K:   {MouthOpen: 0.35, MouthWide: 0.05, JawOpen: 0.30},
	R:   {MouthOpen: 0.25, MouthWide: -0.15, JawOpen: 0.18},
	SZ:  {MouthOpen: 0.12, MouthWide: 0.30, JawOpen: 0.06},
}

func (v Viseme) Shape() Shape {
	return Shapes[v]
}

var arpabet = map[string]Viseme{
	"sil": Sil, "sp": Sil, "spn": Sil,

	"AA": AA, "AE": AA, "AH": AA, "AW": AA, "AY": AA, "HH": AA,
	"AO": OH, "OW": OH,
	"UH": OO, "UW": OO, "OY": OO,
	"IY": EE, "EY": EE, "Y": EE,
	"IH": IH, "EH": IH,
	"ER": R, "R": R,

	"M": MBP, "B": MBP, "P": MBP,
	"F": FV, "V": FV,
	"TH": TH, "DH": TH,
	"L": LNT, "N": LNT, "T": LNT, "D": LNT,
	"S": SZ, "Z": SZ,
	"W": WQ,
	"CH": CH, "JH": CH, "SH": CH, "ZH": CH,
	"K": K, "G": K, "NG": K,
}

// FromPhoneme maps an ARPAbet symbol such as "AH0" or "sh" to a viseme.
// Stress digits and case are ignored. Unknown symbols map to Sil.
func FromPhoneme(symbol string) Viseme {
	s := strings.TrimRight(strings.TrimSpace(symbol), "012")
	if v, ok := arpabet[s]; ok {
		return v
	}
	if v, ok := arpabet[strings.ToUpper(s)]; ok {
		return v
	}
	return Sil
}

var graphemes = map[string]Viseme{
	"th": TH, "ch": CH, "sh": CH,

	"a": AA, "e": EE, "i": IH, "o": OH, "u": OO, "y": IH, "h": AA,
	"p": MBP, "b": MBP, "m": MBP,
	"f": FV, "v": FV,
	"t": LNT, "d": LNT, "n": LNT, "l": LNT,
	"k": K, "g": K, "c": K, "q": K, "x": K,
	"j": CH,
	"s": SZ, "z": SZ,
	"r": R,
	"w": WQ,
}

// FromGrapheme maps a lower-case letter or one of the digraphs th, ch, sh.
func FromGrapheme(g string) (Viseme, bool) {
	v, ok := graphemes[strings.ToLower(g)]
	return v, ok
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func isFricative(c byte) bool {
	switch c {
	case 's', 'z', 'f', 'v':
		return true
	}
	return false
}
