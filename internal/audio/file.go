package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
)

// FileSource plays a decoded WAV file in real time.
type FileSource struct {
	path       string
	samples    []float32
	sampleRate float64
	loop       bool
	log        logrus.FieldLogger

	mu     sync.Mutex
	pos    int
	cancel context.CancelFunc
	done   chan struct{}
}

// FileConfig controls how a FileSource is opened.
type FileConfig struct {
	Path string
	Loop bool
	Log  logrus.FieldLogger
}

// OpenFile decodes the whole file up front and mixes it down to mono.
func OpenFile(cfg FileConfig) (*FileSource, error) {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: invalid WAV file", cfg.Path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM from %s: %w", cfg.Path, err)
	}

	samples, err := monoFromPCM(buf, int(dec.BitDepth), int(dec.WavAudioFormat))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Path, err)
	}

	return &FileSource{
		path:       cfg.Path,
		samples:    samples,
		sampleRate: float64(dec.SampleRate),
		loop:       cfg.Loop,
		log:        cfg.Log,
	}, nil
}

// WAV format tags. Extensible files are treated as integer PCM.
const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// monoFromPCM averages the channels and scales samples to [-1, 1]. 8-bit PCM
// is unsigned around 128. 32-bit float samples arrive as raw IEEE bits.
func monoFromPCM(buf *audio.IntBuffer, bitDepth, format int) ([]float32, error) {
	if buf == nil || buf.Format == nil {
		return nil, errors.New("missing PCM format")
	}
	channels := max(1, buf.Format.NumChannels)
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}

	var sample func(v int) float32
	switch {
	case format == wavFormatFloat && bitDepth == 32:
		sample = func(v int) float32 { return math.Float32frombits(uint32(int32(v))) }
	case format == wavFormatFloat:
		return nil, fmt.Errorf("unsupported float bit depth %d", bitDepth)
	case format != wavFormatPCM && format != wavFormatExtensible:
		return nil, fmt.Errorf("unsupported WAV format %#x", format)
	case bitDepth == 8:
		sample = func(v int) float32 { return float32(v-128) / 128 }
	case bitDepth > 8 && bitDepth <= 32:
		scale := 1 / float32(int64(1)<<(bitDepth-1))
		sample = func(v int) float32 { return float32(v) * scale }
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := range out {
		sum := float32(0)
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			sum += sample(buf.Data[base+ch])
		}
		out[i] = sum / float32(channels)
	}
	return out, nil
}

// Start begins playback from the current position.
func (s *FileSource) Start(ctx context.Context, sink Sink) error {
	if len(s.samples) == 0 {
		return fmt.Errorf("%s: no samples", s.path)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"file":        s.path,
		"sample_rate": s.sampleRate,
		"seconds":     s.Duration(),
		"loop":        s.loop,
	}).Info("file playback started")

	go func() {
		defer close(done)
		pace(ctx, sink, s.sampleRate, s.fill)
		s.log.WithField("file", s.path).Debug("file playback stopped")
	}()
	return nil
}

// fill copies the next block, wrapping around when looping.
func (s *FileSource) fill(dst []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for n < len(dst) {
		if s.pos >= len(s.samples) {
			if !s.loop {
				break
			}
			s.pos = 0
		}
		c := copy(dst[n:], s.samples[s.pos:])
		s.pos += c
		n += c
	}
	return n
}

// Duration is the file length in seconds.
func (s *FileSource) Duration() float64 {
	return float64(len(s.samples)) / s.sampleRate
}

func (s *FileSource) SampleRate() float64 { return s.sampleRate }

func (s *FileSource) Label() string { return filepath.Base(s.path) }

// Close stops playback and waits for the feeder to exit.
func (s *FileSource) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
