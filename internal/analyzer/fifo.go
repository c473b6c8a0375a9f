package analyzer

// frameFIFO accumulates mono samples until a full analysis frame is available.
// It never allocates after construction.
type frameFIFO struct {
	buf   []float64
	read  int
	write int
	size  int
}

func newFrameFIFO(capacity int) *frameFIFO {
	return &frameFIFO{buf: make([]float64, max(1, capacity))}
}

func (f *frameFIFO) capacity() int { return len(f.buf) }

func (f *frameFIFO) free() int { return len(f.buf) - f.size }

func (f *frameFIFO) full() bool { return f.size == len(f.buf) }

// push copies as many samples as fit and returns how many were consumed.
func (f *frameFIFO) push(in []float32) int {
	n := min(f.free(), len(in))
	for _, s := range in[:n] {
		f.buf[f.write] = float64(s)
		f.write++
		if f.write == len(f.buf) {
			f.write = 0
		}
	}
	f.size += n
	return n
}

// frame copies the buffered samples, oldest first, into dst.
func (f *frameFIFO) frame(dst []float64) int {
	n := min(len(dst), f.size)
	first := min(n, len(f.buf)-f.read)
	copy(dst[:first], f.buf[f.read:f.read+first])
	copy(dst[first:n], f.buf[:n-first])
	return n
}

// pop discards the n oldest samples.
func (f *frameFIFO) pop(n int) {
	n = clampInt(n, 0, f.size)
	f.read = (f.read + n) % len(f.buf)
	f.size -= n
}

func (f *frameFIFO) clear() {
	clear(f.buf)
	f.read = 0
	f.write = 0
	f.size = 0
}
