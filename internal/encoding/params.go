package encoding

import "strings"

// x264 quality bounds and defaults.
const (
	MinCRF        = 0
	MaxCRF        = 51
	DefaultCRF    = 23
	DefaultPreset = "medium"
)

var x264Presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow", "placebo",
}

// Presets returns the accepted x264 preset names, fastest first.
func Presets() []string {
	return append([]string(nil), x264Presets...)
}

// ValidPreset reports whether name is an x264 preset.
func ValidPreset(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range x264Presets {
		if p == name {
			return true
		}
	}
	return false
}

// Params are the quality knobs applied to every encode.
type Params struct {
	CRF    int
	Preset string
}

// DefaultParams returns CRF 23 with the medium preset.
func DefaultParams() Params {
	return Params{CRF: DefaultCRF, Preset: DefaultPreset}
}

// NormalizeParams replaces out-of-range or unknown values with defaults.
func NormalizeParams(p Params) Params {
	if p.CRF < MinCRF || p.CRF > MaxCRF {
		p.CRF = DefaultCRF
	}
	p.Preset = strings.ToLower(strings.TrimSpace(p.Preset))
	if !ValidPreset(p.Preset) {
		p.Preset = DefaultPreset
	}
	return p
}
