package analyzer

import "math"

// Features summarizes band state for numeric readouts. Levels are in [0,1]
// with 0 on the floor and 1 at 0 dBFS or above.
type Features struct {
	PeakFrequency float64
	PeakDB        float64
	Bass          float64
	Mid           float64
	Treble        float64
	Overall       float64
}

const (
	bassLimitHz = 250
	midLimitHz  = 2_000
)

// Summarize reduces bands to a Features readout against the given floor.
func Summarize(bands []Band, floor float64) Features {
	f := Features{PeakDB: floor}
	if len(bands) == 0 || floor >= 0 {
		return f
	}

	var sums, counts [3]float64
	total := 0.0
	for _, b := range bands {
		if b.DB > f.PeakDB || f.PeakFrequency == 0 {
			f.PeakDB = b.DB
			f.PeakFrequency = b.Frequency
		}
		level := Level(b.DB, floor)
		total += level

		region := 2
		switch {
		case b.Frequency < bassLimitHz:
			region = 0
		case b.Frequency < midLimitHz:
			region = 1
		}
		sums[region] += level
		counts[region]++
	}

	avg := func(i int) float64 {
		if counts[i] == 0 {
			return 0
		}
		return sums[i] / counts[i]
	}
	f.Bass = avg(0)
	f.Mid = avg(1)
	f.Treble = avg(2)
	f.Overall = total / float64(len(bands))
	return f
}

// Level maps a dB value onto [0,1] between floor and 0 dBFS.
func Level(db, floor float64) float64 {
	if floor >= 0 || math.IsNaN(db) {
		return 0
	}
	return clamp(1-db/floor, 0, 1)
}
