package ring

import "fmt"

// Buffer is a fixed-capacity circular sample history.
//
// The capacity is chosen at construction and never changes; writes advance
// a monotonically increasing write position and overwrite the oldest
// samples once the buffer has wrapped. Reads address samples by absolute
// write position and are always reduced modulo the capacity, so there is
// no out-of-range failure mode on the read path.
type Buffer struct {
	data  []float64
	write int
}

// New returns a zero-filled circular buffer holding capacity samples.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring capacity must be > 0: %d", capacity)
	}
	return &Buffer{data: make([]float64, capacity)}, nil
}

// Cap returns the fixed capacity in samples.
func (b *Buffer) Cap() int { return len(b.data) }

// WritePos returns the absolute position of the next write. It increases
// monotonically; position p corresponds to slot p modulo Cap().
func (b *Buffer) WritePos() int { return b.write }

// Push appends a single sample, overwriting the oldest one.
func (b *Buffer) Push(sample float64) {
	b.data[b.write%len(b.data)] = sample
	b.write++
}

// PushBlock appends all samples of block in order. Blocks longer than the
// capacity are reduced to their trailing Cap() samples first; the result
// is identical to pushing every sample one by one.
func (b *Buffer) PushBlock(block []float64) {
	n := len(b.data)
	if len(block) > n {
		b.write += len(block) - n
		block = block[len(block)-n:]
	}
	for _, s := range block {
		b.data[b.write%n] = s
		b.write++
	}
}

// At returns the sample at absolute position pos, reduced modulo the
// capacity. Negative positions wrap to the end of the buffer. Positions
// that were never written read as zero (the initial fill).
func (b *Buffer) At(pos int) float64 {
	n := len(b.data)
	idx := pos % n
	if idx < 0 {
		idx += n
	}
	return b.data[idx]
}

// Recent copies the most recently written len(dst) samples into dst,
// oldest first. Requesting more samples than the capacity fills the
// leading part of dst with zeros.
func (b *Buffer) Recent(dst []float64) {
	n := len(b.data)
	m := len(dst)
	if m > n {
		for i := 0; i < m-n; i++ {
			dst[i] = 0
		}
		dst = dst[m-n:]
		m = n
	}
	start := b.write - m
	for i := 0; i < m; i++ {
		dst[i] = b.At(start + i)
	}
}

// Reset zeroes the contents and rewinds the write position.
func (b *Buffer) Reset() {
	for i := range b.data {
		b.data[i] = 0
	}
	b.write = 0
}
