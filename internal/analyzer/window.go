package analyzer

import "github.com/cwbudde/algo-dsp/dsp/window"

var windowKinds = map[WindowType]window.Type{
	Rectangular:    window.TypeRectangular,
	Hann:           window.TypeHann,
	Hamming:        window.TypeHamming,
	Blackman:       window.TypeBlackman,
	BlackmanHarris: window.TypeBlackmanHarris4Term,
	FlatTop:        window.TypeFlatTop,
}

// windowTable returns periodic per-sample gains for the given window.
func windowTable(w WindowType, size int) []float64 {
	kind, ok := windowKinds[w]
	if !ok {
		kind = window.TypeBlackmanHarris4Term
	}
	table := window.Generate(kind, size, window.WithPeriodic())
	if len(table) != size {
		// Generate rejects degenerate lengths; fall back to unity gain.
		table = make([]float64, size)
		for i := range table {
			table[i] = 1
		}
	}
	return table
}
