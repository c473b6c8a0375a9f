package render

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/guidoenr/spectra/internal/analyzer"
)

type colorMode string

const (
	colorModeSpectrum colorMode = "spectrum"
	colorModeFire     colorMode = "fire"
	colorModeMono     colorMode = "mono"

	gridColor  = 238
	gridRune   = '┄'
	gridStepDB = 20.0
)

var colorModeNames = []string{
	string(colorModeSpectrum),
	string(colorModeFire),
	string(colorModeMono),
}

// ColorModeNames returns the supported color modes.
func ColorModeNames() []string {
	out := make([]string, len(colorModeNames))
	copy(out, colorModeNames)
	sort.Strings(out)
	return out
}

func parseColorMode(name string) colorMode {
	switch strings.ToLower(name) {
	case "fire", "heat":
		return colorModeFire
	case "mono", "monochrome", "bw", "gray":
		return colorModeMono
	default:
		return colorModeSpectrum
	}
}

// Renderer rasterizes an analyzer curve into terminal rows.
type Renderer struct {
	width         int
	height        int
	palette       []rune
	paletteName   string
	colorMode     colorMode
	useANSI       bool
	levels        []float64
	statusBuilder strings.Builder
}

// Frame contains the rendered lines and the status text.
type Frame struct {
	Lines  []string
	Status string
}

// Status carries the readouts shown under the plot.
type Status struct {
	Source    string
	Preset    string
	FFTSize   int
	HopSize   int
	Window    string
	Bands     int
	Smoothing int
	MinDB     float64
	Dropped   uint64
	Features  analyzer.Features
	FPS       float64
}

var (
	resetANSI       = "\x1b[0m"
	precomputedANSI [256]string
)

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

// New creates a Renderer.
func New(width, height int, paletteName, colorModeName string, useANSI bool) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", width, height)
	}

	r := &Renderer{
		width:   width,
		height:  height,
		useANSI: useANSI,
	}
	r.Configure(paletteName, colorModeName)
	return r, nil
}

// Configure updates palette and color mode.
func (r *Renderer) Configure(paletteName, colorModeName string) {
	if paletteName == "" {
		paletteName = "blocks"
	}
	r.palette = Palette(paletteName)
	r.paletteName = paletteName
	r.colorMode = parseColorMode(colorModeName)
}

// Resize updates the framebuffer dimensions.
func (r *Renderer) Resize(width, height int) {
	if width > 0 {
		r.width = width
	}
	if height > 0 {
		r.height = height
	}
}

func (r *Renderer) PaletteName() string   { return r.paletteName }
func (r *Renderer) ColorModeName() string { return string(r.colorMode) }

// Render draws curve as filled columns. The plot spans the floor at the
// bottom row to 0 dBFS at the top; louder points are clipped.
func (r *Renderer) Render(curve []analyzer.Point, st Status) Frame {
	if r.width <= 0 || r.height <= 0 {
		return Frame{}
	}

	width := r.width
	height := r.height
	if len(r.levels) != width {
		r.levels = make([]float64, width)
	}
	levels := r.levels
	for x := range levels {
		pos := (float64(x) + 0.5) / float64(width)
		levels[x] = clamp01(1 - sampleCurve(curve, pos))
	}
	grid := gridRows(height, st.MinDB)

	lines := make([]string, height)
	numWorkers := clampInt(runtime.GOMAXPROCS(0), 1, height)

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowJobs {
				lines[y] = r.renderRow(y, levels, grid[y])
			}
		}()
	}
	for y := 0; y < height; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()

	return Frame{
		Lines:  lines,
		Status: r.buildStatus(st),
	}
}

func (r *Renderer) renderRow(y int, levels []float64, isGrid bool) string {
	height := r.height
	bottom := height - 1 - y
	rowLevel := (float64(bottom) + 0.5) / float64(height)

	var builder strings.Builder
	builder.Grow(len(levels) * 8)
	lastColor := -1
	for x, level := range levels {
		eighths := int(math.Round(level*float64(height)*8)) - bottom*8
		eighths = clampInt(eighths, 0, len(r.palette)-1)

		char := r.palette[eighths]
		color := r.cellColor(float64(x)/float64(max(1, len(levels)-1)), rowLevel)
		if eighths == 0 {
			if isGrid {
				char, color = gridRune, gridColor
			} else {
				char = ' '
			}
		}

		if r.useANSI && color != lastColor {
			builder.WriteString(colorCode(color))
			lastColor = color
		}
		builder.WriteRune(char)
	}
	if r.useANSI {
		builder.WriteString(resetANSI)
	}
	return builder.String()
}

func (r *Renderer) cellColor(x, rowLevel float64) int {
	var h, s, v float64
	switch r.colorMode {
	case colorModeFire:
		h = clamp01(0.02 + rowLevel*0.13)
		s = clamp01(0.95 - rowLevel*0.4)
		v = clamp01(0.55 + rowLevel*0.45)
	case colorModeMono:
		h, s = 0, 0
		v = clamp01(0.45 + rowLevel*0.55)
	default:
		h = clamp01(0.66 - x*0.66)
		s = 0.75
		v = clamp01(0.6 + rowLevel*0.4)
	}
	return hsvToANSI(h, s, v)
}

// sampleCurve linearly interpolates the curve's y at x. Points must be sorted
// by x. Outside the curve the floor is returned.
func sampleCurve(curve []analyzer.Point, x float64) float64 {
	if len(curve) == 0 {
		return 1
	}
	i := sort.Search(len(curve), func(i int) bool { return curve[i].X >= x })
	switch {
	case i == 0:
		if curve[0].X == x {
			return curve[0].Y
		}
		return 1
	case i == len(curve):
		return 1
	}
	a, b := curve[i-1], curve[i]
	if b.X == a.X {
		return b.Y
	}
	t := (x - a.X) / (b.X - a.X)
	return lerp(a.Y, b.Y, t)
}

// gridRows marks the rows that carry a dB grid line every gridStepDB below 0 dBFS.
func gridRows(height int, floor float64) []bool {
	rows := make([]bool, height)
	if floor >= 0 {
		return rows
	}
	for db := -gridStepDB; db > floor; db -= gridStepDB {
		level := 1 - db/floor
		bottom := int(level * float64(height))
		if y := height - 1 - bottom; y >= 0 && y < height {
			rows[y] = true
		}
	}
	return rows
}

func (r *Renderer) buildStatus(st Status) string {
	builder := &r.statusBuilder
	builder.Reset()
	builder.Grow(160)
	builder.WriteString(strings.ToUpper(string(r.colorMode)))
	if st.Source != "" {
		builder.WriteString(" | ")
		builder.WriteString(st.Source)
	}
	if st.Preset != "" {
		builder.WriteString(" | preset=")
		builder.WriteString(st.Preset)
	}
	builder.WriteString(" | fft ")
	builder.WriteString(strconv.Itoa(st.FFTSize))
	builder.WriteString(" hop ")
	builder.WriteString(strconv.Itoa(st.HopSize))
	builder.WriteString(" ")
	builder.WriteString(st.Window)
	builder.WriteString(" | bands ")
	builder.WriteString(strconv.Itoa(st.Bands))
	builder.WriteString(" smooth ")
	builder.WriteString(strconv.Itoa(st.Smoothing))
	builder.WriteString(" | peak ")
	builder.WriteString(formatFrequency(st.Features.PeakFrequency))
	builder.WriteString(" ")
	appendFloat(builder, st.Features.PeakDB, 1)
	builder.WriteString(" dB")
	builder.WriteString(" | bass ")
	appendFloat(builder, st.Features.Bass, 2)
	builder.WriteString(" mid ")
	appendFloat(builder, st.Features.Mid, 2)
	builder.WriteString(" treble ")
	appendFloat(builder, st.Features.Treble, 2)
	if st.Dropped > 0 {
		builder.WriteString(" | dropped ")
		builder.WriteString(strconv.FormatUint(st.Dropped, 10))
	}
	builder.WriteString(" | fps ")
	appendFloat(builder, st.FPS, 1)
	return builder.String()
}

func formatFrequency(hz float64) string {
	if hz >= 1000 {
		return strconv.FormatFloat(hz/1000, 'f', 2, 64) + " kHz"
	}
	return strconv.FormatFloat(hz, 'f', 0, 64) + " Hz"
}

func colorCode(index int) string {
	if index < 0 {
		index = 0
	} else if index >= len(precomputedANSI) {
		index = len(precomputedANSI) - 1
	}
	return precomputedANSI[index]
}

func hsvToANSI(h, s, v float64) int {
	r, g, b := hsvToRGB(h, s, v)
	return rgbToANSI(r, g, b)
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	h = clamp01(h)
	s = clamp01(s)
	v = clamp01(v)

	if s == 0 {
		return v, v, v
	}

	hv := h * 6.0
	i := math.Floor(hv)
	f := hv - i
	p := v * (1.0 - s)
	q := v * (1.0 - s*f)
	t := v * (1.0 - s*(1.0-f))

	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// Grayscale ramp for unsaturated colors
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func appendFloat(builder *strings.Builder, value float64, precision int) {
	var buf [32]byte
	b := strconv.AppendFloat(buf[:0], value, 'f', precision, 64)
	builder.Write(b)
}
