package buffer

// BitRange selects bits [Start, End) of a value, counted from the most
// significant bit (bit 0 is the MSB).
type BitRange struct {
	Start int
	End   int
}

// Width returns the number of bits covered by the range.
func (r BitRange) Width() int {
	return r.End - r.Start
}

func (r BitRange) valid(width int) bool {
	return r.Start >= 0 && r.Start < r.End && r.End <= width
}

// Extract8 returns the bits of v selected by r, right-aligned.
func Extract8(v uint8, r BitRange) (uint8, bool) {
	if !r.valid(8) {
		return 0, false
	}
	shaved := v << uint(r.Start)
	shaved >>= uint(r.Start)
	return shaved >> uint(8-r.End), true
}

// Extract16 returns the bits of v selected by r, right-aligned.
func Extract16(v uint16, r BitRange) (uint16, bool) {
	if !r.valid(16) {
		return 0, false
	}
	shaved := v << uint(r.Start)
	shaved >>= uint(r.Start)
	return shaved >> uint(16-r.End), true
}
