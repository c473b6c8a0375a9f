package analyzer

import "sync/atomic"

const freshBit = 1 << 2

// spectralChannel hands the latest transform from the audio thread to the
// analysis thread. It is a single-producer single-consumer triple buffer: the
// writer owns one slot, the reader owns another and the third is exchanged
// through an atomic index. Neither side ever waits for the other, and the
// reader only ever sees complete snapshots.
type spectralChannel struct {
	slots  [3][]complex128
	back   int           // writer-owned
	front  int           // reader-owned
	middle atomic.Uint32 // slot index, plus freshBit when unread
}

func newSpectralChannel(bins int) *spectralChannel {
	c := &spectralChannel{back: 0, front: 2}
	for i := range c.slots {
		c.slots[i] = make([]complex128, bins)
	}
	c.middle.Store(1)
	return c
}

func (c *spectralChannel) bins() int { return len(c.slots[0]) }

// writeSlot returns the slot the writer may fill before calling publish.
func (c *spectralChannel) writeSlot() []complex128 {
	return c.slots[c.back]
}

// publish makes the write slot visible to the reader and hands the writer a
// fresh slot.
func (c *spectralChannel) publish() {
	prev := c.middle.Swap(uint32(c.back) | freshBit)
	c.back = int(prev &^ freshBit)
}

// read copies the most recent published snapshot into dst. It reports whether
// the snapshot is new since the previous read.
func (c *spectralChannel) read(dst []complex128) bool {
	fresh := false
	if c.middle.Load()&freshBit != 0 {
		prev := c.middle.Swap(uint32(c.front))
		c.front = int(prev &^ freshBit)
		fresh = true
	}
	copy(dst, c.slots[c.front])
	return fresh
}

// clear zeroes every slot. Both sides must be excluded by the caller.
func (c *spectralChannel) clear() {
	for i := range c.slots {
		clear(c.slots[i])
	}
	c.middle.Store(c.middle.Load() &^ freshBit)
}
