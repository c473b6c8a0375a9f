package analyzer

import (
	"math"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
)

func testSettings() Settings {
	s := DefaultConfig().settings()
	s.FFTSize = 1024
	s.MinFrequency = 20
	s.MaxFrequency = 20_000
	s.TargetBands = 128
	return s
}

func layoutFor(t *testing.T, s Settings) layout {
	t.Helper()
	win := windowTable(s.Window, s.FFTSize)
	tr := newTransformer(s.FFTSize, logrus.New())
	return buildLayout(s, calibrate(s, win, tr))
}

func checkPartition(t *testing.T, s Settings, l layout) {
	t.Helper()
	if len(l.bands) == 0 || len(l.bands) > s.TargetBands {
		t.Fatalf("%+v: %d bands for target %d", s, len(l.bands), s.TargetBands)
	}
	last := -1
	for i, b := range l.bands {
		if len(b.Bins) == 0 {
			t.Fatalf("%+v: band %d is empty", s, i)
		}
		for _, bin := range b.Bins {
			if bin <= last {
				t.Fatalf("%+v: band %d bin %d does not follow %d", s, i, bin, last)
			}
			last = bin
		}
	}
}

func TestBuildLayoutPartitions(t *testing.T) {
	cases := []func(*Settings){
		func(*Settings) {},
		func(s *Settings) { s.TargetBands = 1 },
		func(s *Settings) { s.TargetBands = 2_000 },
		func(s *Settings) { s.FFTSize = 2 },
		func(s *Settings) { s.FFTSize = 16_384 },
		func(s *Settings) { s.MinFrequency, s.MaxFrequency = 5_000, 100 },
		func(s *Settings) { s.MinFrequency, s.MaxFrequency = 1_000, 1_000 },
		func(s *Settings) { s.SmoothingSteps = 0 },
		func(s *Settings) { s.SampleRate = 8_000 },
	}
	for _, mutate := range cases {
		s := testSettings()
		mutate(&s)
		s = s.normalize(testSettings())
		checkPartition(t, s, layoutFor(t, s))
	}
}

func TestBuildLayoutMemoryBoundedByBins(t *testing.T) {
	cases := []func(*Settings){
		func(s *Settings) { s.MinFrequency, s.MaxFrequency = 1_000, 1_000 },
		func(s *Settings) { s.TargetBands = 1 << 21 },
		func(s *Settings) { s.FFTSize = 2; s.TargetBands = 1 << 21 },
		func(s *Settings) { s.MinFrequency, s.MaxFrequency = 1_000, 1_000; s.TargetBands = 1 << 21 },
	}
	for _, mutate := range cases {
		s := testSettings()
		mutate(&s)
		s = s.normalize(testSettings())
		if s.TargetBands > maxTargetBands {
			t.Fatalf("target bands=%d above cap %d", s.TargetBands, maxTargetBands)
		}

		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		l := buildLayout(s, 1)
		runtime.ReadMemStats(&after)

		if allocated := after.TotalAlloc - before.TotalAlloc; allocated > 1<<20 {
			t.Fatalf("%+v: layout allocated %d bytes", s, allocated)
		}
		checkPartition(t, s, l)
		if len(l.bands) > s.NumBins() {
			t.Fatalf("%+v: %d bands for %d bins", s, len(l.bands), s.NumBins())
		}
	}
}

func TestBuildLayoutControlPadding(t *testing.T) {
	s := testSettings()
	l := layoutFor(t, s)
	if len(l.control) != len(l.bands)+4 {
		t.Fatalf("control=%d bands=%d, want 4 padding points", len(l.control), len(l.bands))
	}
	if got, want := l.smoothedSize, SplineSize(len(l.control), s.SmoothingSteps); got != want {
		t.Fatalf("smoothed size=%d want=%d", got, want)
	}
	if l.control[1].X >= l.control[2].X || l.control[0].X >= l.control[1].X {
		t.Fatalf("leading padding not ordered: %+v", l.control[:3])
	}

	s.SmoothingSteps = 0
	l = layoutFor(t, s)
	if len(l.control) != len(l.bands) || l.smoothedSize != 0 {
		t.Fatalf("unsmoothed control=%d bands=%d smoothed=%d", len(l.control), len(l.bands), l.smoothedSize)
	}
}

func TestBuildLayoutSingleBinPositionIsExact(t *testing.T) {
	s := testSettings()
	l := layoutFor(t, s)
	lo, hi := visibleLogRange(s)
	for i, b := range l.bands {
		if len(b.Bins) != 1 || b.Bins[0] == 0 {
			continue
		}
		freq := float64(b.Bins[0]) * s.BinWidth()
		want := (math.Log10(freq) - lo) / (hi - lo)
		if got := l.control[i+2].X; math.Abs(got-want) > 1e-12 {
			t.Fatalf("band %d at x=%f want %f", i, got, want)
		}
	}
}

func TestCalibrationMapsCenterToUnity(t *testing.T) {
	s := testSettings()
	win := windowTable(s.Window, s.FFTSize)
	tr := newTransformer(s.FFTSize, logrus.New())
	norm := calibrate(s, win, tr)
	if norm <= 0 || math.IsInf(norm, 0) {
		t.Fatalf("normalization=%f", norm)
	}

	// Larger frames collect more energy, so the factor must shrink.
	big := s
	big.FFTSize = 4096
	bigNorm := calibrate(big, windowTable(big.Window, big.FFTSize), newTransformer(big.FFTSize, logrus.New()))
	if bigNorm >= norm {
		t.Fatalf("normalization did not shrink with fft size: %f >= %f", bigNorm, norm)
	}
}

func TestSlopeWeight(t *testing.T) {
	s := testSettings()
	if got := slopeWeight(s.WeightingCenter, s); math.Abs(got-1) > 1e-12 {
		t.Fatalf("weight at center=%f want 1", got)
	}
	up := slopeWeight(2*s.WeightingCenter, s)
	if db := 20 * math.Log10(up); math.Abs(db-s.WeightingSlope) > 1e-9 {
		t.Fatalf("one octave up=%f dB want %f", db, s.WeightingSlope)
	}
	if slopeWeight(0, s) != 0 {
		t.Fatalf("dc weight should be zero")
	}
}
