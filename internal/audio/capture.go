package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// Capture wraps a PortAudio input stream and forwards every callback block,
// mixed down to mono, straight to its Sink.
type Capture struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	device     *portaudio.DeviceInfo
	log        logrus.FieldLogger

	sink Sink
	mono []float32

	stopOnce sync.Once
}

// Config controls how a Capture instance is created.
type Config struct {
	DeviceName string
	BufferSize int // frames per callback
	Channels   int
	Log        logrus.FieldLogger
}

const defaultBufferSize = 512

// NewCapture opens a PortAudio stream using the provided configuration. The
// stream does not run until Start.
func NewCapture(cfg Config) (*Capture, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	device, err := findDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	channels := min(cfg.Channels, device.MaxInputChannels)

	capture := &Capture{
		sampleRate: device.DefaultSampleRate,
		channels:   channels,
		device:     device,
		log:        cfg.Log,
		mono:       make([]float32, cfg.BufferSize),
	}

	framesPerBuffer := cfg.BufferSize
	if framesPerBuffer < 64 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		Output:          portaudio.StreamDeviceParameters{},
		SampleRate:      capture.sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, capture.process)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	capture.stream = stream
	return capture, nil
}

// Start runs the stream until ctx is done.
func (c *Capture) Start(ctx context.Context, sink Sink) error {
	c.sink = sink
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	c.log.WithFields(logrus.Fields{
		"device":      c.device.Name,
		"sample_rate": c.sampleRate,
		"channels":    c.channels,
	}).Info("audio capture started")

	go func() {
		<-ctx.Done()
		c.stop()
	}()
	return nil
}

func (c *Capture) stop() {
	c.stopOnce.Do(func() {
		if err := c.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
			c.log.WithError(err).Warn("stop stream")
		}
	})
}

// Close stops and closes the underlying PortAudio stream.
func (c *Capture) Close() error {
	if c.stream == nil {
		return nil
	}
	c.stop()
	return c.stream.Close()
}

// SampleRate returns the stream sample rate.
func (c *Capture) SampleRate() float64 {
	return c.sampleRate
}

// Label names the capture device.
func (c *Capture) Label() string {
	if c.device == nil {
		return "capture"
	}
	return c.device.Name
}

// Device returns the PortAudio device associated with the capture stream.
func (c *Capture) Device() *portaudio.DeviceInfo {
	return c.device
}

// process runs on the PortAudio callback thread. Blocks larger than the mono
// buffer are delivered in several Ingest calls.
func (c *Capture) process(in []float32) {
	if c.sink == nil || len(c.mono) == 0 {
		return
	}
	channels := max(1, c.channels)
	for len(in) >= channels {
		frames := min(len(in)/channels, len(c.mono))
		n := downmix(c.mono[:frames], in[:frames*channels], channels)
		c.sink.Ingest(c.mono[:n])
		in = in[frames*channels:]
	}
}

// errorsIsInvalidStreamState checks if the provided error stems from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	const invalidStateMsg = "PaErrorCode -9986"
	return strings.Contains(err.Error(), invalidStateMsg)
}
