package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/guidoenr/spectra/internal/app"
	"github.com/guidoenr/spectra/internal/audio"
	"github.com/guidoenr/spectra/internal/params"
	"github.com/guidoenr/spectra/internal/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Source    string  `enum:"capture,file,tone" default:"capture" help:"Audio source (capture|file|tone)"`
	Device    string  `help:"PortAudio input device name (substring match)"`
	File      string  `type:"existingfile" help:"WAV file to play when --source=file"`
	Loop      bool    `help:"Loop the WAV file"`
	ToneHz    float64 `name:"tone-hz" default:"1000" help:"Steady tone frequency for --source=tone"`
	Sweep     bool    `default:"true" negatable:"" help:"Add a slow sweep to the tone source"`
	Preset    string  `default:"default" help:"Analyzer preset (${presets})"`
	FPS       float64 `default:"30" help:"Target frames per second"`
	Width     int     `default:"80" help:"Frame width when the terminal size is unknown"`
	Height    int     `default:"24" help:"Frame height when the terminal size is unknown"`
	Palette   string  `default:"blocks" help:"Glyph palette (${palettes})"`
	ColorMode string  `name:"color-mode" default:"spectrum" help:"Color mode (${colors})"`
	NoColor   bool    `name:"no-color" help:"Disable ANSI color output"`
	NoStatus  bool    `name:"no-status" help:"Hide the status line"`
	ListDevs  bool    `name:"list-audio-devices" help:"List audio input devices and exit"`
	Debug     bool    `help:"Enable verbose logging"`
	LogFile   string  `name:"log-file" type:"path" help:"Write logs to this file instead of stderr"`
	Profile   string  `type:"path" help:"Write per-frame timings as CSV"`
	Version   bool    `short:"v" help:"Show version information"`
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("spectra"),
		kong.Description("Real-time terminal spectrum analyzer"),
		kong.UsageOnError(),
		kong.Vars{
			"presets":  strings.Join(params.Names(), "|"),
			"palettes": strings.Join(render.PaletteNames(), "|"),
			"colors":   strings.Join(render.ColorModeNames(), "|"),
		},
	)

	if cli.Version {
		fmt.Println("spectra", version)
		return
	}

	log := newLogger(cli)
	if err := run(cli, log); err != nil {
		log.WithError(err).Error("spectra failed")
		kctx.Exit(1)
	}
}

func newLogger(cli *CLI) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if cli.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	if cli.LogFile != "" {
		f, err := os.OpenFile(cli.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.WithError(err).Warn("log file unavailable, using stderr")
		} else {
			log.SetOutput(f)
			log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
			if !cli.Debug {
				log.SetLevel(logrus.InfoLevel)
			}
		}
	}
	return log
}

func run(cli *CLI, log *logrus.Logger) error {
	if cli.FPS <= 0 {
		return fmt.Errorf("fps must be positive (got %.2f)", cli.FPS)
	}
	if cli.Width <= 0 || cli.Height <= 0 {
		return fmt.Errorf("invalid dimensions: width=%d height=%d", cli.Width, cli.Height)
	}
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil && w > 0 && h > 0 {
			cli.Width, cli.Height = w, h
		}
	}

	needAudio := cli.Source == "capture" || cli.ListDevs
	if needAudio {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
	}

	if cli.ListDevs {
		return listDevices()
	}

	source, err := openSource(cli, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Config{
		Source:        source,
		Preset:        cli.Preset,
		Width:         cli.Width,
		Height:        cli.Height,
		TargetFPS:     cli.FPS,
		ShowStatusBar: !cli.NoStatus,
		Palette:       cli.Palette,
		ColorMode:     cli.ColorMode,
		UseANSI:       !cli.NoColor,
		ProfilePath:   cli.Profile,
		Keyboard:      term.IsTerminal(int(os.Stdin.Fd())),
		Log:           log,
	})
	if err != nil {
		_ = source.Close()
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Warn("cleanup")
		}
	}()

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("runtime: %w", err)
	}
	return nil
}

func openSource(cli *CLI, log logrus.FieldLogger) (audio.Source, error) {
	switch cli.Source {
	case "file":
		if cli.File == "" {
			return nil, errors.New("--file is required with --source=file")
		}
		return audio.OpenFile(audio.FileConfig{Path: cli.File, Loop: cli.Loop, Log: log})
	case "tone":
		return audio.NewToneSource(audio.ToneConfig{
			SampleRate: 48_000,
			Frequency:  cli.ToneHz,
			Sweep:      cli.Sweep,
			Noise:      0.01,
		}), nil
	default:
		capture, err := audio.NewCapture(audio.Config{
			DeviceName: cli.Device,
			Channels:   2,
			Log:        log,
		})
		if err != nil {
			if errors.Is(err, audio.ErrNoDevice) {
				return nil, fmt.Errorf("audio capture: %w (try --source=tone or --list-audio-devices)", err)
			}
			return nil, fmt.Errorf("audio capture: %w", err)
		}
		return capture, nil
	}
}

func listDevices() error {
	devices, err := audio.ListDevices()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		return audio.ErrNoDevice
	}
	fmt.Printf("\n=== Audio Input Devices (best first) ===\n\n")
	for _, dev := range devices {
		var markers []string
		if dev.Default {
			markers = append(markers, "default")
		}
		if dev.Loopback {
			markers = append(markers, "loopback")
		}
		note := ""
		if len(markers) > 0 {
			note = " (" + strings.Join(markers, ", ") + ")"
		}
		fmt.Printf("- %s [%s]%s\n    channels:%d sample:%.0f Hz score:%d\n",
			dev.Name, dev.HostAPI, note, dev.Channels, dev.SampleRate, dev.Score)
	}
	if dev, err := audio.AutoDetectDevice(); err == nil && dev != nil {
		fmt.Printf("\nAuto-detected input: %s\n", dev.Name)
	}
	return nil
}
