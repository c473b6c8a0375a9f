package audio

import (
	"context"
	"time"
)

// blockDuration is how much audio a paced source delivers per tick.
const blockDuration = 10 * time.Millisecond

// fillFunc writes up to len(dst) samples and returns how many it wrote.
// Zero means the source is exhausted.
type fillFunc func(dst []float32) int

func blockFrames(sampleRate float64) int {
	return max(1, int(sampleRate*blockDuration.Seconds()))
}

// pace feeds sink one block per tick so software sources arrive at the same
// rate a sound card would deliver them. It returns when ctx is done or fill
// runs dry.
func pace(ctx context.Context, sink Sink, sampleRate float64, fill fillFunc) {
	block := make([]float32, blockFrames(sampleRate))
	ticker := time.NewTicker(blockDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := fill(block)
			if n == 0 {
				return
			}
			sink.Ingest(block[:n])
		}
	}
}
