package analyzer

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	bands := []Band{
		{Frequency: 60, DB: -50},
		{Frequency: 900, DB: -10},
		{Frequency: 5_000, DB: -100},
	}
	f := Summarize(bands, -100)
	if f.PeakFrequency != 900 || f.PeakDB != -10 {
		t.Fatalf("peak=%f Hz %f dB", f.PeakFrequency, f.PeakDB)
	}
	if math.Abs(f.Bass-0.5) > 1e-12 || math.Abs(f.Mid-0.9) > 1e-12 || f.Treble != 0 {
		t.Fatalf("levels bass=%f mid=%f treble=%f", f.Bass, f.Mid, f.Treble)
	}
	if math.Abs(f.Overall-1.4/3) > 1e-12 {
		t.Fatalf("overall=%f", f.Overall)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	f := Summarize(nil, -90)
	if f.PeakDB != -90 || f.PeakFrequency != 0 {
		t.Fatalf("empty summary=%+v", f)
	}
}

func TestLevel(t *testing.T) {
	if Level(-100, -100) != 0 || Level(0, -100) != 1 || Level(6, -100) != 1 {
		t.Fatalf("level mapping out of range")
	}
}
