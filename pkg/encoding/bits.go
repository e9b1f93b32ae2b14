package encoding

import "fmt"

// BitWriter packs integers of arbitrary bit width into bytes. The first bit
// written lands in bit 0 of the first byte.
type BitWriter struct {
	out     []byte
	buf     uint64
	pending int
	written int
}

// NewBitWriter returns a BitWriter with room for sizeHint bytes.
func NewBitWriter(sizeHint int) *BitWriter {
	return &BitWriter{out: make([]byte, 0, sizeHint)}
}

// Write appends the low bits of value. It panics if bits is not in [1, 32].
func (w *BitWriter) Write(value uint32, bits int) {
	if bits < 1 || bits > 32 {
		panic(fmt.Sprintf("encoding: bit width %d out of range [1, 32]", bits))
	}
	v := uint64(value)
	if bits < 32 {
		v &= (1 << bits) - 1
	}
	w.buf |= v << w.pending
	w.pending += bits
	w.written += bits
	for w.pending >= 8 {
		w.out = append(w.out, byte(w.buf))
		w.buf >>= 8
		w.pending -= 8
	}
}

// Flush emits the pending partial byte, zero-padded in the high bits.
// Calling Flush again without further writes does nothing.
func (w *BitWriter) Flush() {
	if w.pending == 0 {
		return
	}
	w.out = append(w.out, byte(w.buf))
	w.buf = 0
	w.written += 8 - w.pending
	w.pending = 0
}

// Bytes returns the completed bytes. Call Flush first to include a partial
// byte.
func (w *BitWriter) Bytes() []byte {
	return w.out
}

// Len returns the number of bits written, including flush padding.
func (w *BitWriter) Len() int {
	return w.written
}

// BitReader reads integers back in the order BitWriter packed them.
//
// Reading past the end never fails: the residual bits are returned with the
// missing high bits set to zero. Callers check EOF or AvailableBits.
type BitReader struct {
	src     []byte
	pos     int
	buf     uint64
	pending int
	overrun bool
}

// NewBitReader returns a reader over b. The slice is not copied.
func NewBitReader(b []byte) *BitReader {
	return &BitReader{src: b}
}

// Read returns the next bits bits. It panics if bits is not in [1, 32].
func (r *BitReader) Read(bits int) uint32 {
	if bits < 1 || bits > 32 {
		panic(fmt.Sprintf("encoding: bit width %d out of range [1, 32]", bits))
	}
	for r.pending < bits && r.pos < len(r.src) {
		r.buf |= uint64(r.src[r.pos]) << r.pending
		r.pos++
		r.pending += 8
	}
	if r.pending < bits {
		r.overrun = true
		bits = r.pending
	}
	if bits == 0 {
		return 0
	}
	v := uint32(r.buf & ((1 << bits) - 1))
	r.buf >>= bits
	r.pending -= bits
	return v
}

// AvailableBits returns the exact number of unread bits.
func (r *BitReader) AvailableBits() int {
	return r.pending + 8*(len(r.src)-r.pos)
}

// EOF reports whether the reader is exhausted, either because every bit has
// been consumed or because a read asked for more bits than remained.
func (r *BitReader) EOF() bool {
	return r.overrun || r.AvailableBits() == 0
}
