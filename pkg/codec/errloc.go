package codec

import "fmt"

// ApplyErrorLocations flips the bits an engine reported. Locations below
// 8·len(msg) address msg; the rest address ecc, counted from 8·len(msg).
// Within a byte, bit 0 is the least significant bit.
//
// Every location is checked before any bit is flipped, so a bad location
// leaves both buffers untouched.
func ApplyErrorLocations(msg, ecc []byte, locs []uint32) error {
	msgBits := uint64(len(msg)) * 8
	total := msgBits + uint64(len(ecc))*8
	for _, loc := range locs {
		if uint64(loc) >= total {
			return fmt.Errorf("%w: %d not below %d", ErrBadErrorLocation, loc, total)
		}
	}
	for _, loc := range locs {
		l := uint64(loc)
		if l < msgBits {
			msg[l/8] ^= 1 << (l % 8)
			continue
		}
		l -= msgBits
		ecc[l/8] ^= 1 << (l % 8)
	}
	return nil
}
