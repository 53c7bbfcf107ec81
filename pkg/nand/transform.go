package nand

import (
	"fmt"
	"strings"
)

// Transform normalizes stored ECC bytes into the polarity and bit order the
// decoder expects. Every transform is its own inverse.
type Transform uint8

const (
	TransformNone Transform = iota
	TransformInvert
	TransformBitReverse
	TransformInvertBitReverse
)

var transformNames = [...]string{
	TransformNone:             "none",
	TransformInvert:           "inv",
	TransformBitReverse:       "bitrev",
	TransformInvertBitReverse: "inv+bitrev",
}

// AllTransforms lists every transform in enumeration order.
func AllTransforms() []Transform {
	return []Transform{TransformNone, TransformInvert, TransformBitReverse, TransformInvertBitReverse}
}

// ParseTransform accepts the names printed by String.
func ParseTransform(s string) (Transform, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return TransformNone, nil
	}
	for i, name := range transformNames {
		if key == name {
			return Transform(i), nil
		}
	}
	return TransformNone, fmt.Errorf("nand: unknown transform %q (want none, inv, bitrev or inv+bitrev)", s)
}

func (t Transform) String() string {
	if int(t) < len(transformNames) {
		return transformNames[t]
	}
	return fmt.Sprintf("transform(%d)", uint8(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t Transform) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Transform) UnmarshalText(b []byte) error {
	v, err := ParseTransform(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t Transform) inverts() bool {
	return t == TransformInvert || t == TransformInvertBitReverse
}

func (t Transform) reverses() bool {
	return t == TransformBitReverse || t == TransformInvertBitReverse
}

// Apply transforms buf in place.
func (t Transform) Apply(buf []byte) {
	if t == TransformNone {
		return
	}
	inv, rev := t.inverts(), t.reverses()
	for i, b := range buf {
		if inv {
			b ^= 0xFF
		}
		if rev {
			b = bitReverse[b]
		}
		buf[i] = b
	}
}

var bitReverse = func() (tbl [256]byte) {
	for i := range tbl {
		x := byte(i)
		x = x>>4 | x<<4
		x = (x&0xCC)>>2 | (x&0x33)<<2
		x = (x&0xAA)>>1 | (x&0x55)<<1
		tbl[i] = x
	}
	return tbl
}()

// ReverseBits mirrors the bit order of a single byte.
func ReverseBits(b byte) byte {
	return bitReverse[b]
}
