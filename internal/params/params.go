package params

import (
	"strings"

	"github.com/guidoenr/spectra/internal/analyzer"
)

// Parameters is a named analyzer configuration.
type Parameters struct {
	Name            string
	FFTSize         int
	HopSize         int
	MinFrequency    float64
	MaxFrequency    float64
	TargetBands     int
	WeightingSlope  float64
	WeightingCenter float64
	Window          analyzer.WindowType
	SmoothingSteps  int // 0 disables smoothing
	MinDB           float64
	AttackRate      float64
	ReleaseRate     float64
}

// Engine is the part of the analyzer a preset drives.
type Engine interface {
	Snapshot() analyzer.Settings
	Apply(analyzer.Settings)
	SetHopSize(int)
	SetAttackRate(float64)
	SetReleaseRate(float64)
	SetMinDB(float64)
}

// Defaults returns the balanced preset.
func Defaults() Parameters {
	return Parameters{
		Name:            "default",
		FFTSize:         4096,
		HopSize:         1024,
		MinFrequency:    15,
		MaxFrequency:    30_000,
		TargetBands:     320,
		WeightingSlope:  6,
		WeightingCenter: 1000,
		Window:          analyzer.BlackmanHarris,
		SmoothingSteps:  8,
		MinDB:           -100,
		AttackRate:      15,
		ReleaseRate:     0.85,
	}
}

var presets = buildPresets()

func buildPresets() []Parameters {
	def := Defaults()

	fast := def
	fast.Name = "fast"
	fast.FFTSize = 2048
	fast.HopSize = 256
	fast.TargetBands = 160
	fast.Window = analyzer.Hann
	fast.SmoothingSteps = 4
	fast.AttackRate = 30
	fast.ReleaseRate = 3

	smooth := def
	smooth.Name = "smooth"
	smooth.FFTSize = 8192
	smooth.SmoothingSteps = 12
	smooth.AttackRate = 6
	smooth.ReleaseRate = 0.5

	hires := def
	hires.Name = "hires"
	hires.FFTSize = 16_384
	hires.HopSize = 2048
	hires.MinFrequency = 10
	hires.MaxFrequency = 24_000
	hires.TargetBands = 640
	hires.MinDB = -120

	lowcpu := def
	lowcpu.Name = "lowcpu"
	lowcpu.FFTSize = 1024
	lowcpu.HopSize = 1024
	lowcpu.MinFrequency = 30
	lowcpu.MaxFrequency = 16_000
	lowcpu.TargetBands = 64
	lowcpu.Window = analyzer.Hann
	lowcpu.SmoothingSteps = 0
	lowcpu.ReleaseRate = 1.5

	return []Parameters{def, fast, smooth, hires, lowcpu}
}

// Presets returns every built-in preset.
func Presets() []Parameters {
	out := make([]Parameters, len(presets))
	copy(out, presets)
	return out
}

// Names returns the preset names in cycling order.
func Names() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}

// Lookup finds a preset by name, ignoring case.
func Lookup(name string) (Parameters, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Parameters{}, false
}

// Next returns the preset after name, wrapping around. Unknown names start
// from the first preset.
func Next(name string) Parameters {
	for i, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return presets[(i+1)%len(presets)]
		}
	}
	return presets[0]
}

// Config overlays the preset onto base, keeping base's sample rate and logger.
func (p Parameters) Config(base analyzer.Config) analyzer.Config {
	base.FFTSize = p.FFTSize
	base.HopSize = p.HopSize
	base.MinFrequency = p.MinFrequency
	base.MaxFrequency = p.MaxFrequency
	base.TargetBands = p.TargetBands
	base.WeightingSlope = p.WeightingSlope
	base.WeightingCenter = p.WeightingCenter
	base.Window = p.Window
	base.SmoothingSteps = p.SmoothingSteps
	if base.SmoothingSteps == 0 {
		base.SmoothingSteps = -1
	}
	base.MinDB = p.MinDB
	base.AttackRate = p.AttackRate
	base.ReleaseRate = p.ReleaseRate
	return base
}

// Settings overlays the topology part of the preset onto base.
func (p Parameters) Settings(base analyzer.Settings) analyzer.Settings {
	base.FFTSize = p.FFTSize
	base.MinFrequency = p.MinFrequency
	base.MaxFrequency = p.MaxFrequency
	base.TargetBands = p.TargetBands
	base.WeightingSlope = p.WeightingSlope
	base.WeightingCenter = p.WeightingCenter
	base.Window = p.Window
	base.SmoothingSteps = p.SmoothingSteps
	return base
}

// Apply switches a running engine to the preset with a single rebuild.
func (p Parameters) Apply(e Engine) {
	e.Apply(p.Settings(e.Snapshot()))
	e.SetHopSize(p.HopSize)
	e.SetAttackRate(p.AttackRate)
	e.SetReleaseRate(p.ReleaseRate)
	e.SetMinDB(p.MinDB)
}
