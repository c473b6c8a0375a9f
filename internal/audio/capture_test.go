package audio

import "testing"

type countingSink struct {
	blocks  int
	samples int
	last    float32
}

func (c *countingSink) Ingest(samples []float32) {
	c.blocks++
	c.samples += len(samples)
	if len(samples) > 0 {
		c.last = samples[len(samples)-1]
	}
}

func TestCaptureProcessSplitsLargeBlocks(t *testing.T) {
	sink := &countingSink{}
	c := &Capture{channels: 2, mono: make([]float32, 4), sink: sink}

	in := make([]float32, 20)
	for i := range in {
		in[i] = float32(i / 2)
	}
	c.process(in)
	if sink.blocks != 3 || sink.samples != 10 {
		t.Fatalf("blocks=%d samples=%d want 3 and 10", sink.blocks, sink.samples)
	}
	if sink.last != 9 {
		t.Fatalf("last sample=%f want 9", sink.last)
	}
	if len(c.mono) != 4 {
		t.Fatalf("mono buffer resized to %d", len(c.mono))
	}

	allocs := testing.AllocsPerRun(100, func() { c.process(in) })
	if allocs != 0 {
		t.Fatalf("process allocated %.0f times", allocs)
	}
}

func TestCaptureProcessWithoutSink(t *testing.T) {
	c := &Capture{channels: 1, mono: make([]float32, 4)}
	c.process([]float32{1, 2, 3})
}
