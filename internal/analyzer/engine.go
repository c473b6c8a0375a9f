package analyzer

import (
	"math"
	"math/cmplx"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Engine turns a mono sample stream into a log-frequency magnitude curve.
//
// Ingest is meant for the audio callback and never blocks or allocates: if a
// reconfiguration holds the lock, the block is dropped. Advance, Curve and
// Bands belong to the render loop. Setters may be called from any goroutine;
// topology setters rebuild synchronously before returning.
type Engine struct {
	log logrus.FieldLogger

	mu     sync.Mutex   // configuration; held by rebuilds, tried by Ingest
	viewMu sync.RWMutex // analysis-side state
	p      *pipeline

	settings atomic.Pointer[Settings]
	hop      atomic.Int64
	attack   atomicFloat
	release  atomicFloat
	floor    atomicFloat
	dropped  atomic.Uint64

	listeners listenerSet
}

// pipeline holds every buffer sized by one Settings snapshot. It is replaced
// wholesale on rebuild while both engine locks are held.
type pipeline struct {
	settings Settings

	// audio side, guarded by Engine.mu
	fifo    *frameFIFO
	window  []float64
	fft     transformer
	frame   []float64
	input   []complex128
	output  []complex128
	channel *spectralChannel

	// analysis side, guarded by Engine.viewMu
	layout   layout
	spectrum []complex128
	smoothed []Point
}

type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

// New builds an engine and performs the initial rebuild.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{log: cfg.Log}
	e.attack.Store(clampRate(cfg.AttackRate))
	e.release.Store(clampRate(cfg.ReleaseRate))
	e.floor.Store(clampFloor(cfg.MinDB))
	e.hop.Store(int64(cfg.HopSize))

	fallback := DefaultConfig().settings()
	e.settings.Store(&fallback)

	e.mu.Lock()
	e.rebuildLocked(cfg.settings())
	e.mu.Unlock()
	return e
}

func newPipeline(s Settings, log logrus.FieldLogger) *pipeline {
	n := s.FFTSize
	win := windowTable(s.Window, n)
	t := newTransformer(n, log)

	p := &pipeline{
		settings: s,
		fifo:     newFrameFIFO(n),
		window:   win,
		fft:      t,
		frame:    make([]float64, n),
		input:    make([]complex128, n),
		output:   make([]complex128, n),
		channel:  newSpectralChannel(s.NumBins()),
		layout:   buildLayout(s, calibrate(s, win, t)),
		spectrum: make([]complex128, s.NumBins()),
	}
	if p.layout.smoothedSize > 0 {
		p.smoothed = make([]Point, p.layout.smoothedSize)
	}
	return p
}

// rebuildLocked normalizes next against the current settings and swaps in a
// freshly built pipeline. The caller holds e.mu.
func (e *Engine) rebuildLocked(next Settings) {
	s := next.normalize(*e.settings.Load())
	p := newPipeline(s, e.log)
	e.hop.Store(int64(clampHop(int(e.hop.Load()), s.FFTSize)))

	e.viewMu.Lock()
	e.p = p
	e.settings.Store(&s)
	p.resetBands(e.floor.Load())
	e.viewMu.Unlock()

	e.log.WithFields(logrus.Fields{
		"fft_size":      s.FFTSize,
		"bands":         len(p.layout.bands),
		"normalization": p.layout.normalization,
		"window":        s.Window.String(),
		"transform":     p.fft.name(),
	}).Debug("analyzer rebuilt")
}

// update applies fn to a copy of the current settings, rebuilds, and fires
// both notifications once the locks are released.
func (e *Engine) update(fn func(*Settings)) {
	e.mu.Lock()
	s := *e.settings.Load()
	fn(&s)
	e.rebuildLocked(s)
	e.mu.Unlock()

	e.listeners.bandsChanged()
	e.listeners.parametersChanged()
}

// Ingest feeds mono samples. Every completed frame is windowed, transformed
// and published for the next Advance.
func (e *Engine) Ingest(samples []float32) {
	if len(samples) == 0 {
		return
	}
	if !e.mu.TryLock() {
		e.dropped.Add(1)
		return
	}
	defer e.mu.Unlock()

	p := e.p
	hop := clampHop(int(e.hop.Load()), p.settings.FFTSize)
	for len(samples) > 0 {
		n := p.fifo.push(samples)
		samples = samples[n:]
		for p.fifo.full() {
			p.transformFrame()
			p.fifo.pop(hop)
		}
	}
}

func (p *pipeline) transformFrame() {
	n := p.fifo.frame(p.frame)
	assert(n == len(p.frame), "short frame: %d of %d", n, len(p.frame))

	for i, s := range p.frame {
		p.input[i] = complex(s*p.window[i], 0)
	}
	if err := p.fft.forward(p.output, p.input); err != nil {
		return
	}
	copy(p.channel.writeSlot(), p.output)
	p.channel.publish()
}

// Advance runs the ballistics for dt seconds of wall-clock time against the
// most recent spectrum and refreshes the curve.
func (e *Engine) Advance(dt float64) {
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	attack := clamp(e.attack.Load()*dt, 0, 1)
	release := clamp(e.release.Load()*dt, 0, 1)

	e.viewMu.Lock()
	defer e.viewMu.Unlock()

	// SetMinDB stores the floor under viewMu
	floor := e.floor.Load()

	p := e.p
	p.channel.read(p.spectrum)

	l := &p.layout
	offset := p.controlOffset()
	for i := range l.bands {
		b := &l.bands[i]

		energy := 0.0
		for _, bin := range b.Bins {
			mag := cmplx.Abs(p.spectrum[bin]) * l.weights[bin]
			energy += mag * mag
		}
		energy /= float64(len(b.Bins))

		target := floor
		if energy > 0 {
			target = max(floor, 10*math.Log10(energy))
		}
		rate := release
		if target > b.DB {
			rate = attack
		}
		b.DB = max(floor, rate*target+(1-rate)*b.DB)
		l.control[i+offset].Y = b.DB / floor
	}
	p.smooth()
}

// controlOffset is the index of the first band in the control line, which
// carries two padding points on each side when smoothing.
func (p *pipeline) controlOffset() int {
	if p.smoothed != nil {
		return 2
	}
	return 0
}

// applyFloor lifts bands below floor and rescales the curve to it.
func (p *pipeline) applyFloor(floor float64) {
	offset := p.controlOffset()
	for i := range p.layout.bands {
		b := &p.layout.bands[i]
		b.DB = max(b.DB, floor)
		p.layout.control[i+offset].Y = b.DB / floor
	}
	p.smooth()
}

func (p *pipeline) smooth() {
	if p.smoothed != nil {
		catmullRom(p.smoothed, p.layout.control, p.settings.SmoothingSteps)
	}
}

func (p *pipeline) resetBands(floor float64) {
	for i := range p.layout.bands {
		p.layout.bands[i].DB = floor
	}
	for i := range p.layout.control {
		p.layout.control[i].Y = 1
	}
	p.smooth()
}

// Reset drops buffered audio and the last spectrum and puts every band on the
// floor. The topology is unchanged.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.viewMu.Lock()
	p := e.p
	p.fifo.clear()
	p.channel.clear()
	clear(p.spectrum)
	p.resetBands(e.floor.Load())
	e.viewMu.Unlock()
	e.mu.Unlock()
}

// Curve returns a copy of the renderable curve: the smoothed line when
// smoothing is enabled, otherwise one point per band.
func (e *Engine) Curve() []Point {
	return e.AppendCurve(nil)
}

// AppendCurve appends the curve to dst, so a render loop can reuse its buffer.
func (e *Engine) AppendCurve(dst []Point) []Point {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	if e.p.smoothed != nil {
		return append(dst, e.p.smoothed...)
	}
	return append(dst, e.p.layout.control...)
}

// Bands returns a copy of the per-band state.
func (e *Engine) Bands() []Band {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	out := make([]Band, len(e.p.layout.bands))
	for i, b := range e.p.layout.bands {
		b.Bins = slices.Clone(b.Bins)
		out[i] = b
	}
	return out
}

// BinWeights returns a copy of the per-bin weight table.
func (e *Engine) BinWeights() []float64 {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	return slices.Clone(e.p.layout.weights)
}

// Normalization is the calibration factor of the current topology.
func (e *Engine) Normalization() float64 {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	return e.p.layout.normalization
}

// Dropped counts Ingest calls skipped because a rebuild held the lock.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// Frequency maps a curve x position back to Hz.
func (e *Engine) Frequency(x float64) float64 {
	lo, hi := visibleLogRange(*e.settings.Load())
	return math.Pow(10, lo+x*(hi-lo))
}

// Position maps a frequency in Hz to its curve x position.
func (e *Engine) Position(freq float64) float64 {
	lo, hi := visibleLogRange(*e.settings.Load())
	return (math.Log10(clampFrequency(freq)) - lo) / (hi - lo)
}

// Snapshot returns the current topology settings.
func (e *Engine) Snapshot() Settings { return *e.settings.Load() }

// Apply replaces all topology settings with a single rebuild. Values are
// clamped the same way the individual setters clamp them.
func (e *Engine) Apply(s Settings) {
	e.update(func(cur *Settings) { *cur = s })
}

func (e *Engine) SetSampleRate(hz float64) {
	e.update(func(s *Settings) { s.SampleRate = hz })
}

func (e *Engine) SetFFTSize(n int) {
	e.update(func(s *Settings) { s.FFTSize = n })
}

func (e *Engine) SetMinFrequency(hz float64) {
	e.update(func(s *Settings) { s.MinFrequency = hz })
}

func (e *Engine) SetMaxFrequency(hz float64) {
	e.update(func(s *Settings) { s.MaxFrequency = hz })
}

func (e *Engine) SetTargetBands(n int) {
	e.update(func(s *Settings) { s.TargetBands = n })
}

func (e *Engine) SetWeightingSlope(dbPerOctave float64) {
	e.update(func(s *Settings) { s.WeightingSlope = dbPerOctave })
}

func (e *Engine) SetWeightingCenter(hz float64) {
	e.update(func(s *Settings) { s.WeightingCenter = hz })
}

func (e *Engine) SetWindow(w WindowType) {
	e.update(func(s *Settings) { s.Window = w })
}

// SetSmoothingSteps sets the spline points per band pair. Zero disables smoothing.
func (e *Engine) SetSmoothingSteps(steps int) {
	e.update(func(s *Settings) { s.SmoothingSteps = steps })
}

func (e *Engine) SampleRate() float64      { return e.settings.Load().SampleRate }
func (e *Engine) FFTSize() int             { return e.settings.Load().FFTSize }
func (e *Engine) MinFrequency() float64    { return e.settings.Load().MinFrequency }
func (e *Engine) MaxFrequency() float64    { return e.settings.Load().MaxFrequency }
func (e *Engine) TargetBands() int         { return e.settings.Load().TargetBands }
func (e *Engine) WeightingSlope() float64  { return e.settings.Load().WeightingSlope }
func (e *Engine) WeightingCenter() float64 { return e.settings.Load().WeightingCenter }
func (e *Engine) Window() WindowType       { return e.settings.Load().Window }
func (e *Engine) SmoothingSteps() int      { return e.settings.Load().SmoothingSteps }

// SetHopSize takes effect on the next Ingest without a rebuild.
func (e *Engine) SetHopSize(n int) {
	e.hop.Store(int64(clampHop(n, e.FFTSize())))
	e.listeners.parametersChanged()
}

func (e *Engine) SetAttackRate(rate float64) {
	e.attack.Store(clampRate(rate))
	e.listeners.parametersChanged()
}

func (e *Engine) SetReleaseRate(rate float64) {
	e.release.Store(clampRate(rate))
	e.listeners.parametersChanged()
}

// SetMinDB moves the floor. Bands below a raised floor are lifted onto it at
// once; bands above it release toward it on the following Advance calls.
func (e *Engine) SetMinDB(db float64) {
	floor := clampFloor(db)
	e.viewMu.Lock()
	e.floor.Store(floor)
	e.p.applyFloor(floor)
	e.viewMu.Unlock()
	e.listeners.parametersChanged()
}

func (e *Engine) HopSize() int         { return int(e.hop.Load()) }
func (e *Engine) AttackRate() float64  { return e.attack.Load() }
func (e *Engine) ReleaseRate() float64 { return e.release.Load() }
func (e *Engine) MinDB() float64       { return e.floor.Load() }

// TransformName reports which FFT backend the current topology runs on.
func (e *Engine) TransformName() string {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	return e.p.fft.name()
}
