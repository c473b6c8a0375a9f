package analyzer

import (
	"io"
	"math"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestEngine(mutate func(*Config)) *Engine {
	cfg := Config{
		SampleRate:   44_100,
		FFTSize:      1024,
		HopSize:      512,
		MinFrequency: 20,
		MaxFrequency: 20_000,
		TargetBands:  128,
		Log:          quietLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func sine(freq, sampleRate float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
	}
	return out
}

func peakFrequency(e *Engine) float64 {
	curve := e.Curve()
	best := 0
	for i, p := range curve {
		// y falls as the level rises
		if p.Y < curve[best].Y {
			best = i
		}
	}
	return e.Frequency(curve[best].X)
}

func TestEngineFrequencyAccuracy(t *testing.T) {
	e := newTestEngine(nil)
	e.Ingest(sine(1000, 44_100, 4096))
	for i := 0; i < 10; i++ {
		e.Advance(0.01)
	}

	tolerance := 2 * 44_100.0 / 1024
	if got := peakFrequency(e); math.Abs(got-1000) > tolerance {
		t.Fatalf("peak at %.1f Hz, want 1000 +/- %.1f", got, tolerance)
	}
}

func TestEngineFrequencyAccuracyAcrossRange(t *testing.T) {
	e := newTestEngine(func(c *Config) { c.FFTSize = 4096; c.HopSize = 1024 })
	for _, freq := range []float64{200, 2_500, 9_000} {
		e.Reset()
		e.Ingest(sine(freq, 44_100, 8192))
		for i := 0; i < 20; i++ {
			e.Advance(0.05)
		}
		// multi-bin bands sit at the log center of their bucket
		bucket := math.Log10(20_000.0/20) / float64(e.TargetBands())
		tolerance := max(2*44_100.0/4096, freq*(math.Pow(10, bucket/2)-1))
		if got := peakFrequency(e); math.Abs(got-freq) > tolerance {
			t.Fatalf("peak at %.1f Hz, want %.0f +/- %.1f", got, freq, tolerance)
		}
	}
}

func TestEngineCalibratedToneReadsNearZeroDB(t *testing.T) {
	e := newTestEngine(nil)
	e.Ingest(sine(1000, 44_100, 4096))
	for i := 0; i < 50; i++ {
		e.Advance(1)
	}
	peak := Summarize(e.Bands(), e.MinDB()).PeakDB
	if peak > 1 || peak < -12 {
		t.Fatalf("full-scale tone at the weighting center read %.2f dB", peak)
	}
}

func TestEngineConvergesToFloor(t *testing.T) {
	configs := []func(*Config){
		nil,
		func(c *Config) { c.SmoothingSteps = -1 },
		func(c *Config) { c.FFTSize = 4096; c.TargetBands = 32; c.MinDB = -60 },
		func(c *Config) { c.ReleaseRate = 0.2 },
	}
	for _, mutate := range configs {
		e := newTestEngine(mutate)
		e.Ingest(sine(440, 44_100, 4096))
		for i := 0; i < 5; i++ {
			e.Advance(0.05)
		}

		e.Ingest(make([]float32, e.FFTSize()))
		for i := 0; i < 200; i++ {
			e.Advance(1)
		}
		floor := e.MinDB()
		for i, b := range e.Bands() {
			if math.Abs(b.DB-floor) > 1e-6 {
				t.Fatalf("band %d at %f dB, want floor %f", i, b.DB, floor)
			}
		}
	}
}

func TestEngineResetPutsBandsOnFloor(t *testing.T) {
	e := newTestEngine(nil)
	e.Ingest(sine(1000, 44_100, 4096))
	for i := 0; i < 10; i++ {
		e.Advance(0.05)
	}
	if Summarize(e.Bands(), e.MinDB()).PeakDB <= e.MinDB() {
		t.Fatalf("tone did not lift any band")
	}

	e.Reset()
	for i, b := range e.Bands() {
		if b.DB != e.MinDB() {
			t.Fatalf("band %d at %f after reset", i, b.DB)
		}
	}
	for i, p := range e.Curve() {
		if math.Abs(p.Y-1) > 1e-12 {
			t.Fatalf("curve point %d y=%f after reset", i, p.Y)
		}
	}

	// the previous spectrum must not come back
	e.Advance(1)
	for i, b := range e.Bands() {
		if b.DB != e.MinDB() {
			t.Fatalf("band %d at %f after reset and advance", i, b.DB)
		}
	}
}

func TestEngineBandsNeverBelowFloor(t *testing.T) {
	e := newTestEngine(nil)
	e.Ingest(sine(3000, 44_100, 4096))
	e.Advance(0.1)
	e.SetMinDB(-30)
	for i, b := range e.Bands() {
		if b.DB < -30 {
			t.Fatalf("band %d at %f below raised floor before advance", i, b.DB)
		}
	}
	for i, p := range e.p.layout.control {
		if p.Y > 1+1e-9 {
			t.Fatalf("control point %d y=%f below raised floor", i, p.Y)
		}
	}

	e.Advance(0.001)
	for i, b := range e.Bands() {
		if b.DB < -30 {
			t.Fatalf("band %d at %f below raised floor", i, b.DB)
		}
	}

	// lowering the floor leaves band levels alone
	e.SetMinDB(-90)
	for i, b := range e.Bands() {
		if b.DB < -30 {
			t.Fatalf("band %d moved to %f when the floor was lowered", i, b.DB)
		}
	}
}

func TestEngineBandInvariants(t *testing.T) {
	e := newTestEngine(nil)
	for _, bands := range []int{0, 1, 7, 64, 320, 1000} {
		e.SetTargetBands(bands)
		got := e.Bands()
		if len(got) == 0 || len(got) > max(1, bands) {
			t.Fatalf("target %d: %d bands", bands, len(got))
		}
		last := -1
		for i, b := range got {
			if len(b.Bins) == 0 {
				t.Fatalf("target %d: band %d empty", bands, i)
			}
			if b.Bins[0] <= last {
				t.Fatalf("target %d: band %d starts at %d after %d", bands, i, b.Bins[0], last)
			}
			last = b.Bins[len(b.Bins)-1]
		}
	}
}

func TestEngineHugeBandTargetIsCapped(t *testing.T) {
	e := newTestEngine(nil)
	e.SetTargetBands(1 << 21)
	if e.TargetBands() != maxTargetBands {
		t.Fatalf("target bands=%d want=%d", e.TargetBands(), maxTargetBands)
	}
	if got, bins := len(e.Bands()), e.Snapshot().NumBins(); got == 0 || got > bins {
		t.Fatalf("bands=%d for %d bins", got, bins)
	}

	e.SetMinFrequency(1_000)
	e.SetMaxFrequency(1_000)
	if got := len(e.Bands()); got == 0 || got > e.TargetBands() {
		t.Fatalf("collapsed range gave %d bands", got)
	}
}

func TestEngineCurveSizing(t *testing.T) {
	e := newTestEngine(func(c *Config) { c.SmoothingSteps = -1 })
	if got, want := len(e.Curve()), len(e.Bands()); got != want {
		t.Fatalf("unsmoothed curve=%d bands=%d", got, want)
	}

	for _, steps := range []int{1, 4, 8} {
		e.SetSmoothingSteps(steps)
		bands := len(e.Bands())
		got := len(e.Curve())
		if got <= bands {
			t.Fatalf("steps=%d: curve=%d not above bands=%d", steps, got, bands)
		}
		if want := SplineSize(bands+4, steps); got != want {
			t.Fatalf("steps=%d: curve=%d want=%d", steps, got, want)
		}
	}

	buf := make([]Point, 0, 8)
	buf = e.AppendCurve(buf[:0])
	if len(buf) != len(e.Curve()) {
		t.Fatalf("AppendCurve=%d Curve=%d", len(buf), len(e.Curve()))
	}
}

func TestEngineIdempotentRebuild(t *testing.T) {
	e := newTestEngine(nil)
	weights := e.BinWeights()
	bands := e.Bands()

	e.Apply(e.Snapshot())
	if !slices.Equal(weights, e.BinWeights()) {
		t.Fatalf("bin weights changed across identical rebuild")
	}
	again := e.Bands()
	if len(again) != len(bands) {
		t.Fatalf("band count %d -> %d", len(bands), len(again))
	}
	for i := range bands {
		if !slices.Equal(bands[i].Bins, again[i].Bins) {
			t.Fatalf("band %d bins changed", i)
		}
	}

	other := newTestEngine(nil)
	if !slices.Equal(weights, other.BinWeights()) {
		t.Fatalf("independent engines disagree on bin weights")
	}
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) ParametersChanged() { r.add("parameters") }
func (r *recorder) BandsChanged()      { r.add("bands") }

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func TestEngineNotificationSeparation(t *testing.T) {
	e := newTestEngine(nil)
	rec := &recorder{}
	remove := e.AddListener(rec)

	realtime := map[string]func(){
		"attack":  func() { e.SetAttackRate(3) },
		"release": func() { e.SetReleaseRate(2) },
		"min db":  func() { e.SetMinDB(-80) },
		"hop":     func() { e.SetHopSize(256) },
	}
	for name, set := range realtime {
		set()
		if got := rec.take(); !slices.Equal(got, []string{"parameters"}) {
			t.Fatalf("%s: events=%v", name, got)
		}
	}

	topology := map[string]func(){
		"sample rate": func() { e.SetSampleRate(48_000) },
		"fft size":    func() { e.SetFFTSize(2048) },
		"min freq":    func() { e.SetMinFrequency(30) },
		"max freq":    func() { e.SetMaxFrequency(16_000) },
		"bands":       func() { e.SetTargetBands(64) },
		"slope":       func() { e.SetWeightingSlope(3) },
		"center":      func() { e.SetWeightingCenter(500) },
		"window":      func() { e.SetWindow(Hann) },
		"smoothing":   func() { e.SetSmoothingSteps(2) },
		"apply":       func() { e.Apply(e.Snapshot()) },
	}
	for name, set := range topology {
		set()
		if got := rec.take(); !slices.Equal(got, []string{"bands", "parameters"}) {
			t.Fatalf("%s: events=%v", name, got)
		}
	}

	remove()
	remove()
	e.SetAttackRate(1)
	if got := rec.take(); len(got) != 0 {
		t.Fatalf("removed listener still notified: %v", got)
	}
}

func TestEngineListenerMayQueryEngine(t *testing.T) {
	e := newTestEngine(nil)
	var bands int
	e.AddListener(ListenerFuncs{OnBandsChanged: func() { bands = len(e.Bands()) }})
	e.SetTargetBands(16)
	if bands == 0 || bands > 16 {
		t.Fatalf("listener saw %d bands", bands)
	}
}

func TestEngineClampsParameters(t *testing.T) {
	e := newTestEngine(nil)

	e.SetFFTSize(1000)
	if e.FFTSize() != 1024 {
		t.Fatalf("fft size=%d want=1024", e.FFTSize())
	}
	e.SetFFTSize(0)
	if e.FFTSize() != 2 {
		t.Fatalf("fft size=%d want=2", e.FFTSize())
	}

	e.SetFFTSize(1024)
	e.SetHopSize(1 << 20)
	if e.HopSize() != 1024 {
		t.Fatalf("hop=%d want=1024", e.HopSize())
	}
	e.SetFFTSize(256)
	if e.HopSize() != 256 {
		t.Fatalf("hop not re-clamped: %d", e.HopSize())
	}
	e.SetHopSize(-4)
	if e.HopSize() != 1 {
		t.Fatalf("hop=%d want=1", e.HopSize())
	}

	e.SetMinDB(6)
	if e.MinDB() != -1 {
		t.Fatalf("min db=%f want=-1", e.MinDB())
	}
	e.SetAttackRate(-1)
	if e.AttackRate() != 0 {
		t.Fatalf("attack=%f want=0", e.AttackRate())
	}

	e.SetSampleRate(-1)
	if e.SampleRate() != 44_100 {
		t.Fatalf("sample rate=%f want previous value", e.SampleRate())
	}
	e.SetMinFrequency(-20)
	if e.MinFrequency() != 1 {
		t.Fatalf("min freq=%f want=1", e.MinFrequency())
	}
	e.SetTargetBands(0)
	if e.TargetBands() != 1 || len(e.Bands()) != 1 {
		t.Fatalf("bands target=%d len=%d", e.TargetBands(), len(e.Bands()))
	}
}

func TestEngineFrequencyPositionRoundTrip(t *testing.T) {
	e := newTestEngine(nil)
	if x := e.Position(20); math.Abs(x) > 1e-12 {
		t.Fatalf("min frequency at x=%f", x)
	}
	if x := e.Position(20_000); math.Abs(x-1) > 1e-12 {
		t.Fatalf("max frequency at x=%f", x)
	}
	for _, f := range []float64{50, 440, 1000, 12_345} {
		if got := e.Frequency(e.Position(f)); math.Abs(got-f) > 1e-6*f {
			t.Fatalf("round trip %f -> %f", f, got)
		}
	}
}

func TestEngineIngestDropsWhileLocked(t *testing.T) {
	e := newTestEngine(nil)
	e.mu.Lock()
	e.Ingest(sine(1000, 44_100, 2048))
	e.mu.Unlock()
	if e.Dropped() != 1 {
		t.Fatalf("dropped=%d want=1", e.Dropped())
	}

	e.Advance(1)
	for i, b := range e.Bands() {
		if b.DB != e.MinDB() {
			t.Fatalf("band %d moved to %f from a dropped block", i, b.DB)
		}
	}
}

func TestEngineConcurrentUse(t *testing.T) {
	e := newTestEngine(nil)
	rng := rand.New(rand.NewSource(1))
	block := make([]float32, 480)
	for i := range block {
		block[i] = float32(rng.Float64()*2 - 1)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				e.Ingest(block)
			}
		}
	}()
	go func() {
		defer wg.Done()
		var buf []Point
		for {
			select {
			case <-done:
				return
			default:
				e.Advance(1.0 / 60)
				buf = e.AppendCurve(buf[:0])
			}
		}
	}()

	sizes := []int{256, 512, 2048, 1024}
	for i := 0; i < 40; i++ {
		e.SetFFTSize(sizes[i%len(sizes)])
		e.SetTargetBands(32 + i)
		e.SetAttackRate(float64(i))
		e.SetHopSize(64 + i)
		if i%10 == 0 {
			e.Reset()
		}
	}
	close(done)
	wg.Wait()

	floor := e.MinDB()
	for i, b := range e.Bands() {
		if b.DB < floor {
			t.Fatalf("band %d below floor after concurrent use: %f", i, b.DB)
		}
	}
}
