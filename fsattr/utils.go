package fsattr

// cStringLen finds the length of a C style null-terminated string in a byte
// slice. If no terminator is present the full slice length is returned
// instead of failing, which is what the label requests need: the kernel only
// terminates the label buffer when the label is shorter than the buffer.
func cStringLen(cString []byte) int {
	for i, b := range cString {
		if b == 0 {
			return i
		}
	}
	return len(cString)
}
