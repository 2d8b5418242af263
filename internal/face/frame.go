package face

import (
	"encoding/json"
	"fmt"
)

// Frame is one self-contained control-point sample on the wire:
//
//	{"t": 12.5, "pts": {"left_eye_open": 0.8, ...}}
type Frame struct {
	T   float64
	Pts Params
}

type wireFrame struct {
	T   float64            `json:"t"`
	Pts map[string]float64 `json:"pts"`
}

func (f Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireFrame{T: f.T, Pts: f.Pts.Map()})
}

// UnmarshalJSON tolerates missing and unknown point names. Missing names
// take their neutral value.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	f.T = w.T
	f.Pts = ParamsFromMap(w.Pts)
	return nil
}
