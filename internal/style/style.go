// Package style holds the renderer palette and face proportions. The
// engine never draws; it forwards the style to renderers in the relay
// handshake.
package style

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RGB is an 8-bit color. In documents it is either [r, g, b] or "#rrggbb".
type RGB [3]int

func (c *RGB) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s := strings.TrimPrefix(strings.TrimSpace(node.Value), "#")
		if len(s) != 6 {
			return fmt.Errorf("line %d: bad color %q", node.Line, node.Value)
		}
		n, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return fmt.Errorf("line %d: bad color %q", node.Line, node.Value)
		}
		*c = RGB{int(n >> 16 & 0xff), int(n >> 8 & 0xff), int(n & 0xff)}
		return nil
	}

	var parts []int
	if err := node.Decode(&parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("line %d: expected [r, g, b], got %d values", node.Line, len(parts))
	}
	for i, v := range parts {
		c[i] = min(max(v, 0), 255)
	}
	return nil
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// Style is a palette plus proportions expressed as fractions of the
// window (or, for eye_y, of the face height).
type Style struct {
	Background    RGB `yaml:"bg" json:"bg"`
	SkinLit       RGB `yaml:"skin_lit" json:"skin_lit"`
	SkinShadow    RGB `yaml:"skin_shadow" json:"skin_shadow"`
	EyeWhite      RGB `yaml:"eye_white" json:"eye_white"`
	Iris          RGB `yaml:"iris" json:"iris"`
	Pupil         RGB `yaml:"pupil" json:"pupil"`
	Mouth         RGB `yaml:"mouth" json:"mouth"`
	MouthInterior RGB `yaml:"mouth_interior" json:"mouth_interior"`
	Brow          RGB `yaml:"brow" json:"brow"`
	Highlight     RGB `yaml:"highlight" json:"highlight"`

	FaceWidth   float64 `yaml:"face_width" json:"face_width"`
	FaceHeight  float64 `yaml:"face_height" json:"face_height"`
	EyeSpacing  float64 `yaml:"eye_spacing" json:"eye_spacing"`
	EyeY        float64 `yaml:"eye_y" json:"eye_y"`
	EyeRX       float64 `yaml:"eye_rx" json:"eye_rx"`
	EyeRY       float64 `yaml:"eye_ry" json:"eye_ry"`
	PupilRadius float64 `yaml:"pupil_radius" json:"pupil_radius"`
	MouthY      float64 `yaml:"mouth_y" json:"mouth_y"`
	MouthWidth  float64 `yaml:"mouth_width" json:"mouth_width"`
	BrowWidth   float64 `yaml:"brow_width" json:"brow_width"`
	BrowYOffset float64 `yaml:"brow_y_offset" json:"brow_y_offset"`
}

// Default is the dark "another world" palette.
func Default() Style {
	return Style{
		Background:    RGB{8, 10, 22},
		SkinLit:       RGB{198, 156, 109},
		SkinShadow:    RGB{132, 92, 64},
		EyeWhite:      RGB{180, 185, 190},
		Iris:          RGB{52, 100, 140},
		Pupil:         RGB{12, 14, 20},
		Mouth:         RGB{145, 82, 72},
		MouthInterior: RGB{42, 18, 22},
		Brow:          RGB{92, 64, 48},
		Highlight:     RGB{220, 200, 170},

		FaceWidth:   0.40,
		FaceHeight:  0.55,
		EyeSpacing:  0.12,
		EyeY:        0.40,
		EyeRX:       0.045,
		EyeRY:       0.028,
		PupilRadius: 0.016,
		MouthY:      0.68,
		MouthWidth:  0.08,
		BrowWidth:   0.055,
		BrowYOffset: -0.05,
	}
}

// Load reads a YAML or JSON document and overlays it on Default. Keys the
// document omits keep their default; unknown keys are ignored.
func Load(path string) (Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("read style %q: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (Style, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("decode style: %w", err)
	}
	return s, nil
}

// LoadOrDefault never fails: an empty path, a missing file or a bad
// document all yield Default. The error, if any, is returned for logging.
func LoadOrDefault(path string) (Style, error) {
	if path == "" {
		return Default(), nil
	}
	s, err := Load(path)
	if err != nil {
		return Default(), err
	}
	return s, nil
}
