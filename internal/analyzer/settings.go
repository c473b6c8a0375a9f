package analyzer

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	defaultSampleRate      = 44_100
	defaultFFTSize         = 4_096
	defaultHopSize         = 1_024
	defaultMinFrequency    = 15
	defaultMaxFrequency    = 30_000
	defaultTargetBands     = 320
	defaultWeightingSlope  = 6
	defaultWeightingCenter = 1_000
	defaultSmoothingSteps  = 8
	defaultMinDB           = -100
	defaultAttackRate      = 15
	defaultReleaseRate     = 0.85

	minFrequencyHz = 1.0
	maxFloorDB     = -1.0
	// maxTargetBands caps the requested band count. A partition never yields
	// more bands than bins anyway.
	maxTargetBands = 1 << 16
)

// WindowType selects the analysis window applied to every frame.
type WindowType int

const (
	BlackmanHarris WindowType = iota
	Hann
	Hamming
	Blackman
	FlatTop
	Rectangular
)

var windowNames = map[WindowType]string{
	Rectangular:    "rectangular",
	Hann:           "hann",
	Hamming:        "hamming",
	Blackman:       "blackman",
	BlackmanHarris: "blackman-harris",
	FlatTop:        "flat-top",
}

func (w WindowType) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return "unknown"
}

// WindowTypes returns every supported window in declaration order.
func WindowTypes() []WindowType {
	return []WindowType{Rectangular, Hann, Hamming, Blackman, BlackmanHarris, FlatTop}
}

// ParseWindowType resolves a window by name. Matching is case-insensitive and
// accepts a few common spellings.
func ParseWindowType(name string) (WindowType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rectangular", "rect", "none", "boxcar":
		return Rectangular, true
	case "hann", "hanning":
		return Hann, true
	case "hamming":
		return Hamming, true
	case "blackman":
		return Blackman, true
	case "blackman-harris", "blackmanharris", "bh", "blackman_harris":
		return BlackmanHarris, true
	case "flat-top", "flattop", "flat_top":
		return FlatTop, true
	default:
		return BlackmanHarris, false
	}
}

// Config controls Engine construction. Zero values are replaced with defaults.
type Config struct {
	SampleRate      float64
	FFTSize         int
	HopSize         int
	MinFrequency    float64
	MaxFrequency    float64
	TargetBands     int
	WeightingSlope  float64 // dB per octave, relative to WeightingCenter
	WeightingCenter float64
	Window          WindowType
	// SmoothingSteps is the number of spline points between two bands.
	// Use a negative value to disable smoothing.
	SmoothingSteps int
	MinDB          float64
	AttackRate     float64
	ReleaseRate    float64

	Log logrus.FieldLogger
}

// DefaultConfig returns the configuration New falls back to.
func DefaultConfig() Config {
	return Config{
		SampleRate:      defaultSampleRate,
		FFTSize:         defaultFFTSize,
		HopSize:         defaultHopSize,
		MinFrequency:    defaultMinFrequency,
		MaxFrequency:    defaultMaxFrequency,
		TargetBands:     defaultTargetBands,
		WeightingSlope:  defaultWeightingSlope,
		WeightingCenter: defaultWeightingCenter,
		Window:          BlackmanHarris,
		SmoothingSteps:  defaultSmoothingSteps,
		MinDB:           defaultMinDB,
		AttackRate:      defaultAttackRate,
		ReleaseRate:     defaultReleaseRate,
	}
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 || math.IsNaN(c.SampleRate) {
		c.SampleRate = defaultSampleRate
	}
	if c.FFTSize <= 0 {
		c.FFTSize = defaultFFTSize
	}
	if c.HopSize <= 0 {
		c.HopSize = defaultHopSize
	}
	if c.MinFrequency <= 0 {
		c.MinFrequency = defaultMinFrequency
	}
	if c.MaxFrequency <= 0 {
		c.MaxFrequency = defaultMaxFrequency
	}
	if c.TargetBands <= 0 {
		c.TargetBands = defaultTargetBands
	}
	if c.WeightingCenter <= 0 {
		c.WeightingCenter = defaultWeightingCenter
	}
	switch {
	case c.SmoothingSteps == 0:
		c.SmoothingSteps = defaultSmoothingSteps
	case c.SmoothingSteps < 0:
		c.SmoothingSteps = 0
	}
	if c.MinDB == 0 {
		c.MinDB = defaultMinDB
	}
	if c.AttackRate == 0 {
		c.AttackRate = defaultAttackRate
	}
	if c.ReleaseRate == 0 {
		c.ReleaseRate = defaultReleaseRate
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}
	return c
}

// Settings is an immutable snapshot of the parameters that shape the band
// topology. Changing any of them rebuilds the whole pipeline.
type Settings struct {
	SampleRate      float64
	FFTSize         int
	MinFrequency    float64
	MaxFrequency    float64
	TargetBands     int
	WeightingSlope  float64
	WeightingCenter float64
	Window          WindowType
	SmoothingSteps  int
}

func (c Config) settings() Settings {
	return Settings{
		SampleRate:      c.SampleRate,
		FFTSize:         c.FFTSize,
		MinFrequency:    c.MinFrequency,
		MaxFrequency:    c.MaxFrequency,
		TargetBands:     c.TargetBands,
		WeightingSlope:  c.WeightingSlope,
		WeightingCenter: c.WeightingCenter,
		Window:          c.Window,
		SmoothingSteps:  c.SmoothingSteps,
	}
}

// normalize clamps every field into its valid range. prev supplies the values
// kept when a request cannot be clamped meaningfully (non-positive rates).
func (s Settings) normalize(prev Settings) Settings {
	if s.SampleRate <= 0 || math.IsNaN(s.SampleRate) || math.IsInf(s.SampleRate, 0) {
		s.SampleRate = prev.SampleRate
	}
	s.FFTSize = closestPow2(s.FFTSize)
	s.MinFrequency = clampFrequency(s.MinFrequency)
	s.MaxFrequency = clampFrequency(s.MaxFrequency)
	s.TargetBands = clampInt(s.TargetBands, 1, maxTargetBands)
	if math.IsNaN(s.WeightingSlope) || math.IsInf(s.WeightingSlope, 0) {
		s.WeightingSlope = prev.WeightingSlope
	}
	if s.WeightingCenter <= 0 || math.IsNaN(s.WeightingCenter) || math.IsInf(s.WeightingCenter, 0) {
		s.WeightingCenter = prev.WeightingCenter
	}
	if _, ok := windowNames[s.Window]; !ok {
		s.Window = prev.Window
	}
	s.SmoothingSteps = max(0, s.SmoothingSteps)
	return s
}

// BinWidth is the spacing between two transform bins in Hz.
func (s Settings) BinWidth() float64 {
	return s.SampleRate / float64(s.FFTSize)
}

// NumBins is the number of bins one transform produces.
func (s Settings) NumBins() int {
	return s.FFTSize/2 + 1
}

func clampFrequency(f float64) float64 {
	if math.IsNaN(f) || f < minFrequencyHz {
		return minFrequencyHz
	}
	if math.IsInf(f, 1) {
		return math.MaxFloat32
	}
	return f
}

func clampHop(hop, fftSize int) int {
	return clampInt(hop, 1, max(1, fftSize))
}

func clampRate(rate float64) float64 {
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return rate
}

func clampFloor(db float64) float64 {
	if math.IsNaN(db) || db > maxFloorDB {
		return maxFloorDB
	}
	if math.IsInf(db, -1) {
		return -math.MaxFloat32
	}
	return db
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// closestPow2 rounds n to the nearest power of two, never below 2. Ties round up.
func closestPow2(n int) int {
	if n <= 2 {
		return 2
	}
	upper := nextPow2(n)
	if upper == n {
		return n
	}
	lower := upper >> 1
	if n-lower < upper-n {
		return lower
	}
	return upper
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
