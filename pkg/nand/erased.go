package nand

// Erased is the byte value read back from an unprogrammed flash cell.
const Erased = 0xFF

// IsErased reports whether every byte of b is the erased value. An empty
// slice counts as erased.
func IsErased(b []byte) bool {
	for _, v := range b {
		if v != Erased {
			return false
		}
	}
	return true
}

// CountErased returns how many bytes of b hold the erased value.
func CountErased(b []byte) int {
	n := 0
	for _, v := range b {
		if v == Erased {
			n++
		}
	}
	return n
}
