package audio

import (
	"context"
	"errors"
)

// ErrNoDevice is returned when no usable capture device can be found.
var ErrNoDevice = errors.New("no suitable audio input device")

// Sink consumes mono sample blocks. Ingest may be called from an audio
// callback and must not block.
type Sink interface {
	Ingest(samples []float32)
}

// Source produces mono audio for a Sink.
type Source interface {
	// Start begins delivery and returns immediately. Delivery stops when ctx
	// is done or the source is closed.
	Start(ctx context.Context, sink Sink) error
	SampleRate() float64
	Label() string
	Close() error
}

// downmix averages interleaved frames into dst and returns the frame count.
// dst must hold len(in)/channels samples.
func downmix(dst, in []float32, channels int) int {
	if channels <= 1 {
		return copy(dst, in)
	}
	frames := min(len(in)/channels, len(dst))
	scale := 1 / float32(channels)
	for i := 0; i < frames; i++ {
		sum := float32(0)
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			sum += in[base+ch]
		}
		dst[i] = sum * scale
	}
	return frames
}
