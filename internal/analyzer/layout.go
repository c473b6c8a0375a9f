package analyzer

import (
	"math"
	"math/cmplx"
)

const (
	// edgeEpsilon spaces the synthetic spline anchors outside the first and last band.
	edgeEpsilon = 0.0001
	// minLogSpan keeps the visible range from collapsing when max <= min.
	minLogSpan = 0.1
)

// Band groups one or more transform bins into a displayed frequency region.
type Band struct {
	Bins      []int   // ascending bin indices
	DB        float64 // ballistics state, never below the floor
	Frequency float64 // Hz at the band's curve position
}

// layout is the band topology derived from one Settings snapshot.
type layout struct {
	bands         []Band
	weights       []float64
	control       []Point
	smoothedSize  int
	normalization float64
}

// calibrate returns the factor that maps a full-scale sine at the weighting
// center frequency to 0 dB after windowing and transforming.
func calibrate(s Settings, win []float64, t transformer) float64 {
	n := s.FFTSize
	in := make([]complex128, n)
	out := make([]complex128, n)
	for i := range in {
		phase := 2 * math.Pi * s.WeightingCenter * float64(i) / s.SampleRate
		in[i] = complex(math.Sin(phase)*win[i], 0)
	}
	if err := t.forward(out, in); err != nil {
		return 1
	}

	peak := 0.0
	for _, v := range out[:s.NumBins()] {
		if mag := cmplx.Abs(v); mag > peak {
			peak = mag
		}
	}
	if peak <= 0 || math.IsNaN(peak) || math.IsInf(peak, 0) {
		return 1
	}
	return 1 / peak
}

func visibleLogRange(s Settings) (lo, hi float64) {
	lo = math.Log10(s.MinFrequency)
	hi = math.Log10(s.MaxFrequency)
	if hi-lo < minLogSpan {
		hi = lo + minLogSpan
	}
	return lo, hi
}

// slopeWeight is the linear gain of the dB/octave tilt at freq. The DC bin
// has no octave position and gets no weight.
func slopeWeight(freq float64, s Settings) float64 {
	if freq <= 0 {
		return 0
	}
	octaves := math.Log2(freq / s.WeightingCenter)
	return math.Pow(10, (octaves*s.WeightingSlope)/20)
}

// buildLayout partitions the bins into log-spaced bands. The bucket range is
// padded beyond the visible range so the curve does not stop short at the
// edges, and empty buckets are dropped so the curve has no gaps.
func buildLayout(s Settings, normalization float64) layout {
	numBins := s.NumBins()
	binWidth := s.BinWidth()

	visMin, visMax := visibleLogRange(s)
	span := visMax - visMin

	logBinWidth := math.Log10(binWidth)
	logBandWidth := span / float64(s.TargetBands)
	pad := max(logBinWidth, logBandWidth)
	minLog := visMin - pad
	maxLog := visMax + pad

	numBuckets := max(1, int(math.Ceil((maxLog-minLog)/logBandWidth)))
	weights := make([]float64, numBins)

	// Bucket indices never decrease with the bin index, so each non-empty
	// bucket is one run of consecutive bins.
	members := make([]int, 0, numBins)
	bands := make([]Band, 0, min(numBins, numBuckets))
	control := make([]Point, 0, min(numBins, numBuckets)+4)

	open, runStart := -1, 0
	closeBucket := func() {
		if open < 0 {
			return
		}
		bins := members[runStart:len(members):len(members)]

		// A lone bin is drawn at its own frequency, which keeps sparse low
		// bands accurate. Wider bands sit at the log center of their bucket.
		logPos := minLog + (float64(open)+0.5)*logBandWidth
		if len(bins) == 1 {
			logPos = minLog
			if f := float64(bins[0]) * binWidth; f > 0 {
				logPos = math.Log10(f)
			}
		}

		bands = append(bands, Band{Bins: bins, Frequency: math.Pow(10, logPos)})
		control = append(control, Point{X: (logPos - visMin) / span, Y: 1})
	}

	for i := 0; i < numBins; i++ {
		freq := float64(i) * binWidth
		logFreq := minLog
		if freq > 0 {
			logFreq = math.Log10(freq)
		}
		if logFreq < minLog || logFreq > maxLog {
			continue
		}

		idx := int((logFreq - minLog) / logBandWidth)
		assert(idx >= 0 && idx <= numBuckets, "bin %d maps to bucket %d of %d", i, idx, numBuckets)
		idx = clampInt(idx, 0, numBuckets-1)
		assert(idx >= open, "bin %d maps to bucket %d after %d", i, idx, open)
		if idx != open {
			closeBucket()
			open, runStart = idx, len(members)
		}
		members = append(members, i)

		weights[i] = slopeWeight(freq, s) * normalization
	}
	closeBucket()

	bands, control = trimBands(bands, control, s.TargetBands)

	l := layout{
		bands:         bands,
		weights:       weights,
		control:       control,
		smoothedSize:  0,
		normalization: normalization,
	}
	if s.SmoothingSteps > 0 && len(control) > 0 {
		first := control[0].X
		last := control[len(control)-1].X
		padded := make([]Point, 0, len(control)+4)
		padded = append(padded,
			Point{X: first - 2*edgeEpsilon, Y: 1},
			Point{X: first - edgeEpsilon, Y: 1})
		padded = append(padded, control...)
		padded = append(padded,
			Point{X: last + edgeEpsilon, Y: 1},
			Point{X: last + 2*edgeEpsilon, Y: 1})
		l.control = padded
		l.smoothedSize = SplineSize(len(padded), s.SmoothingSteps)
	}
	return l
}

// trimBands drops the bands lying furthest outside the visible range until at
// most target remain. The padding can otherwise yield more bands than asked for.
func trimBands(bands []Band, control []Point, target int) ([]Band, []Point) {
	for len(bands) > target && len(bands) > 1 {
		below := -control[0].X
		above := control[len(control)-1].X - 1
		if above >= below {
			bands = bands[:len(bands)-1]
			control = control[:len(control)-1]
			continue
		}
		bands = bands[1:]
		control = control[1:]
	}
	return bands, control
}
