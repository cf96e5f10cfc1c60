package buffer

// BitReader reads MSB-first bit fields from a byte slice. A read that runs
// past the end fails without consuming anything.
type BitReader struct {
	data []byte
	off  int // bits consumed
}

func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// BitsRead returns the number of bits consumed so far.
func (r *BitReader) BitsRead() int {
	return r.off
}

func (r *BitReader) BitsLeft() int {
	return len(r.data)*8 - r.off
}

// PeekBits returns the next n bits, n <= 64, without consuming them.
func (r *BitReader) PeekBits(n int) (uint64, bool) {
	if n <= 0 {
		return 0, true
	}
	if n > 64 || n > r.BitsLeft() {
		return 0, false
	}
	var v uint64
	for off := r.off; n > 0; {
		used := off % 8
		take := min(8-used, n)
		chunk := r.data[off/8] << used >> (8 - take)
		v = v<<take | uint64(chunk)
		off += take
		n -= take
	}
	return v, true
}

func (r *BitReader) ReadBits(n int) (uint64, bool) {
	v, ok := r.PeekBits(n)
	if ok && n > 0 {
		r.off += n
	}
	return v, ok
}

// ReadFlag reads one bit as a bool.
func (r *BitReader) ReadFlag() (bool, bool) {
	v, ok := r.ReadBits(1)
	return v == 1, ok
}

func (r *BitReader) SkipBits(n int) bool {
	if n <= 0 {
		return true
	}
	if n > r.BitsLeft() {
		return false
	}
	r.off += n
	return true
}
