package audio

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// ToneConfig shapes the synthetic test signal.
type ToneConfig struct {
	SampleRate float64
	Frequency  float64 // steady tone, Hz
	Sweep      bool    // add a slow log sweep between SweepLow and SweepHigh
	SweepLow   float64
	SweepHigh  float64
	SweepTime  float64 // seconds per sweep
	Noise      float64 // white noise amplitude
	Seed       int64
}

// ToneSource generates a steady tone, an optional sweep and some noise. It
// needs no audio hardware.
type ToneSource struct {
	cfg ToneConfig
	rng *rand.Rand

	tonePhase  float64
	sweepPhase float64
	elapsed    float64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewToneSource(cfg ToneConfig) *ToneSource {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48_000
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = 1_000
	}
	if cfg.SweepLow <= 0 {
		cfg.SweepLow = 40
	}
	if cfg.SweepHigh <= cfg.SweepLow {
		cfg.SweepHigh = min(16_000, cfg.SampleRate/2)
	}
	if cfg.SweepTime <= 0 {
		cfg.SweepTime = 8
	}
	return &ToneSource{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Generate fills dst with the next samples of the signal.
func (t *ToneSource) Generate(dst []float32) int {
	dt := 1 / t.cfg.SampleRate
	toneStep := 2 * math.Pi * t.cfg.Frequency * dt
	ratio := t.cfg.SweepHigh / t.cfg.SweepLow

	for i := range dst {
		v := 0.5 * math.Sin(t.tonePhase)
		t.tonePhase = math.Mod(t.tonePhase+toneStep, 2*math.Pi)

		if t.cfg.Sweep {
			pos := math.Mod(t.elapsed, t.cfg.SweepTime) / t.cfg.SweepTime
			freq := t.cfg.SweepLow * math.Pow(ratio, pos)
			v += 0.3 * math.Sin(t.sweepPhase)
			t.sweepPhase = math.Mod(t.sweepPhase+2*math.Pi*freq*dt, 2*math.Pi)
		}
		if t.cfg.Noise > 0 {
			v += t.cfg.Noise * (t.rng.Float64()*2 - 1)
		}
		t.elapsed += dt
		dst[i] = float32(v)
	}
	return len(dst)
}

// Start feeds the signal in real time until ctx is done.
func (t *ToneSource) Start(ctx context.Context, sink Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.mu.Lock()
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)
		pace(ctx, sink, t.cfg.SampleRate, t.Generate)
	}()
	return nil
}

func (t *ToneSource) SampleRate() float64 { return t.cfg.SampleRate }

func (t *ToneSource) Label() string {
	if t.cfg.Sweep {
		return fmt.Sprintf("tone %.0f Hz + sweep", t.cfg.Frequency)
	}
	return fmt.Sprintf("tone %.0f Hz", t.cfg.Frequency)
}

func (t *ToneSource) Close() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
