package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/spectra/internal/analyzer"
	"github.com/guidoenr/spectra/internal/audio"
	"github.com/guidoenr/spectra/internal/params"
	"github.com/guidoenr/spectra/internal/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Config configures the application runtime.
type Config struct {
	Source        audio.Source
	Preset        string
	Width         int
	Height        int
	TargetFPS     float64
	ShowStatusBar bool
	Palette       string
	ColorMode     string
	UseANSI       bool
	ProfilePath   string
	Keyboard      bool
	Out           io.Writer
	Log           logrus.FieldLogger
}

// App ties together an audio source, the analyzer and the terminal renderer.
type App struct {
	cfg          Config
	engine       *analyzer.Engine
	source       audio.Source
	preset       params.Parameters
	renderer     *render.Renderer
	profiler     *profiler
	log          logrus.FieldLogger
	out          io.Writer
	last         time.Time
	width        int
	height       int
	renderHeight int
	inputEvents  chan inputEvent
	curve        []analyzer.Point
	frame        strings.Builder
	topology     atomic.Uint64
	seenTopology uint64
	removeListen func()
}

// New constructs the application using the provided configuration.
func New(cfg Config) (*App, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("app: no audio source")
	}
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 30
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	if cfg.Height <= 0 {
		cfg.Height = 24
	}

	preset, ok := params.Lookup(cfg.Preset)
	if !ok {
		if cfg.Preset != "" {
			return nil, fmt.Errorf("unknown preset %q (have %s)", cfg.Preset, strings.Join(params.Names(), ", "))
		}
		preset = params.Defaults()
	}

	renderHeight := cfg.Height
	if cfg.ShowStatusBar && renderHeight > 1 {
		renderHeight--
	}
	renderer, err := render.New(cfg.Width, renderHeight, cfg.Palette, cfg.ColorMode, cfg.UseANSI)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	engine := analyzer.New(preset.Config(analyzer.Config{
		SampleRate: cfg.Source.SampleRate(),
		Log:        cfg.Log,
	}))

	a := &App{
		cfg:          cfg,
		engine:       engine,
		source:       cfg.Source,
		preset:       preset,
		renderer:     renderer,
		profiler:     newProfiler(cfg.ProfilePath, cfg.Log),
		log:          cfg.Log,
		out:          cfg.Out,
		width:        cfg.Width,
		height:       cfg.Height,
		renderHeight: renderHeight,
	}
	a.removeListen = engine.AddListener(analyzer.ListenerFuncs{
		OnBandsChanged: a.onBandsChanged,
	})

	a.log.WithFields(logrus.Fields{
		"source":      cfg.Source.Label(),
		"sample_rate": cfg.Source.SampleRate(),
		"preset":      preset.Name,
		"transform":   engine.TransformName(),
	}).Info("analyzer ready")
	return a, nil
}

// Engine exposes the analyzer driven by the app.
func (a *App) Engine() *analyzer.Engine { return a.engine }

func (a *App) onBandsChanged() {
	a.topology.Add(1)
	a.log.WithFields(logrus.Fields{
		"bands":     len(a.engine.Bands()),
		"fft_size":  a.engine.FFTSize(),
		"window":    a.engine.Window().String(),
		"smoothing": a.engine.SmoothingSteps(),
	}).Debug("band topology changed")
}

// Run starts the source and the render loop until ctx is done or the user quits.
func (a *App) Run(ctx context.Context) error {
	if err := a.source.Start(ctx, a.engine); err != nil {
		return fmt.Errorf("start %s: %w", a.source.Label(), err)
	}

	frameDuration := time.Duration(float64(time.Second) / a.cfg.TargetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	enterAltScreen(a.out)
	clearScreen(a.out)
	hideCursor(a.out)
	defer func() {
		showCursor(a.out)
		exitAltScreen(a.out)
	}()

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	if a.cfg.Keyboard {
		a.startInputListener(inputCtx)
	}
	a.ensureDimensions()
	a.last = time.Now()

	for {
		select {
		case <-ctx.Done():
			moveCursorHome(a.out)
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			if !a.handleEvent(evt) {
				moveCursorHome(a.out)
				return nil
			}
		case <-ticker.C:
			if err := a.step(); err != nil {
				return err
			}
		}
	}
}

// handleEvent applies a hotkey and reports whether the loop should continue.
func (a *App) handleEvent(evt inputEvent) bool {
	switch evt {
	case inputEventQuit:
		return false
	case inputEventNextPreset:
		a.preset = params.Next(a.preset.Name)
		a.preset.Apply(a.engine)
		a.log.WithField("preset", a.preset.Name).Info("preset applied")
	default:
		if desc := applyEvent(a.engine, evt); desc != "" {
			a.log.WithField("change", desc).Debug("hotkey")
		}
	}
	return true
}

// Close releases held resources.
func (a *App) Close() error {
	if a.removeListen != nil {
		a.removeListen()
	}
	var errs []string
	if err := a.source.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := a.profiler.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (a *App) step() error {
	a.ensureDimensions()

	now := time.Now()
	delta := now.Sub(a.last).Seconds()
	if delta <= 0 {
		delta = 1.0 / a.cfg.TargetFPS
	}
	a.last = now

	a.profiler.beginFrame()
	a.engine.Advance(delta)
	a.curve = a.engine.AppendCurve(a.curve[:0])
	bands := a.engine.Bands()
	a.profiler.mark(sectionAdvance)

	frame := a.renderer.Render(a.curve, render.Status{
		Source:    a.source.Label(),
		Preset:    a.preset.Name,
		FFTSize:   a.engine.FFTSize(),
		HopSize:   a.engine.HopSize(),
		Window:    a.engine.Window().String(),
		Bands:     len(bands),
		Smoothing: a.engine.SmoothingSteps(),
		MinDB:     a.engine.MinDB(),
		Dropped:   a.engine.Dropped(),
		Features:  analyzer.Summarize(bands, a.engine.MinDB()),
		FPS:       1.0 / delta,
	})
	a.profiler.mark(sectionRender)

	b := &a.frame
	b.Reset()
	if n := a.topology.Load(); n != a.seenTopology {
		// the status line and curve length changed, drop stale glyphs
		a.seenTopology = n
		b.WriteString("\x1b[2J")
	}
	b.WriteString("\x1b[H")
	for _, line := range frame.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if a.cfg.ShowStatusBar {
		b.WriteString(statusBar(frame.Status, a.width))
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(a.out, b.String()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	a.profiler.mark(sectionPresent)
	a.profiler.endFrame(len(bands), len(a.curve), a.engine.Dropped())
	return nil
}

func (a *App) ensureDimensions() {
	f, ok := a.out.(*os.File)
	if !ok {
		return
	}
	w, h, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return
	}

	renderHeight := h
	if a.cfg.ShowStatusBar && renderHeight > 1 {
		renderHeight--
	}
	if w == a.width && h == a.height && renderHeight == a.renderHeight {
		return
	}

	a.width = w
	a.height = h
	a.renderHeight = renderHeight
	a.renderer.Resize(w, renderHeight)
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.WithError(err).Warn("keyboard input disabled")
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			evt, ok := eventForKey(char, key)
			if !ok {
				continue
			}
			if evt == inputEventQuit {
				events <- evt
				return
			}
			select {
			case events <- evt:
			default:
			}
		}
	}()
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return text + strings.Repeat(" ", width-len(runes))
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[2J")
	moveCursorHome(w)
}

func moveCursorHome(w io.Writer) {
	fmt.Fprint(w, "\x1b[H")
}

func hideCursor(w io.Writer) {
	fmt.Fprint(w, "\x1b[?25l")
}

func showCursor(w io.Writer) {
	fmt.Fprint(w, "\x1b[?25h")
}

func enterAltScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[?1049h")
}

func exitAltScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[?1049l\x1b[0m")
}
