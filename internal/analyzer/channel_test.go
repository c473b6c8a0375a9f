package analyzer

import (
	"sync"
	"testing"
)

func fillSlot(c *spectralChannel, v float64) {
	slot := c.writeSlot()
	for i := range slot {
		slot[i] = complex(v, -v)
	}
	c.publish()
}

func TestSpectralChannelLatestWins(t *testing.T) {
	c := newSpectralChannel(16)
	dst := make([]complex128, 16)

	if c.read(dst) {
		t.Fatalf("fresh read before any publish")
	}
	fillSlot(c, 1)
	fillSlot(c, 2)
	if !c.read(dst) {
		t.Fatalf("expected fresh snapshot")
	}
	if real(dst[0]) != 2 {
		t.Fatalf("read %v want latest value 2", dst[0])
	}
	if c.read(dst) {
		t.Fatalf("second read should not be fresh")
	}
	if real(dst[0]) != 2 {
		t.Fatalf("repeat read changed data: %v", dst[0])
	}

	c.clear()
	c.read(dst)
	if dst[0] != 0 {
		t.Fatalf("clear left %v", dst[0])
	}
}

func TestSpectralChannelNeverTears(t *testing.T) {
	const bins = 257
	c := newSpectralChannel(bins)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := 1; ; v++ {
			select {
			case <-done:
				return
			default:
			}
			fillSlot(c, float64(v))
		}
	}()

	dst := make([]complex128, bins)
	for i := 0; i < 20_000; i++ {
		c.read(dst)
		for j := range dst {
			if dst[j] != dst[0] {
				close(done)
				wg.Wait()
				t.Fatalf("torn snapshot at read %d: bin %d=%v bin 0=%v", i, j, dst[j], dst[0])
			}
		}
	}
	close(done)
	wg.Wait()
}
