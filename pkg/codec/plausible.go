package codec

import (
	"fmt"
	"math/bits"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
)

const (
	MinM = 5
	MaxM = 15
)

// Params is a complete correction parameter set.
type Params struct {
	Poly       uint32         `json:"poly"`
	M          int            `json:"m"`
	T          int            `json:"t"`
	SwapBits   bool           `json:"swap_bits"`
	Transform  nand.Transform `json:"transform"`
	ExtraBytes int            `json:"extra_bytes"`
}

// NewParams derives M from the polynomial's bit length.
func NewParams(poly uint32, t int) (Params, error) {
	m, err := DegreeFromPoly(poly)
	if err != nil {
		return Params{}, err
	}
	return Params{Poly: poly, M: m, T: t}, nil
}

func (p Params) String() string {
	s := fmt.Sprintf("m=%d t=%d poly=0x%X %s extra=%d", p.M, p.T, p.Poly, p.Transform, p.ExtraBytes)
	if p.SwapBits {
		s += " swap"
	}
	return s
}

// ECCBytes is the stored ECC size of the parameter set.
func (p Params) ECCBytes() int { return ECCBytes(p.M, p.T) }

// Validate checks the parameter set on its own: plausibility and a
// polynomial whose degree is M.
func (p Params) Validate() error {
	if !Plausible(p.M, p.T) {
		return fmt.Errorf("%w: m=%d t=%d", ErrImplausible, p.M, p.T)
	}
	if m, err := DegreeFromPoly(p.Poly); err != nil || m != p.M {
		return fmt.Errorf("%w: poly 0x%X does not have degree %d", ErrImplausible, p.Poly, p.M)
	}
	if p.ExtraBytes < 0 {
		return fmt.Errorf("%w: %d", ErrExtraBytes, p.ExtraBytes)
	}
	return nil
}

// CheckLayout validates the pairing of p with a layout: the ECC length must
// match, the extra bytes must come from the chunk prefix, and the message
// must fit the code length.
func (p Params) CheckLayout(l nand.Layout) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if n := p.ECCBytes(); n != l.ECCLength {
		return fmt.Errorf("%w: m=%d t=%d needs %d bytes, layout has %d", ErrECCLengthMismatch, p.M, p.T, n, l.ECCLength)
	}
	if p.ExtraBytes > l.ECCOffset {
		return fmt.Errorf("%w: %d > ecc offset %d", ErrExtraBytes, p.ExtraBytes, l.ECCOffset)
	}
	if bitsUsed := (l.SectorSize+p.ExtraBytes)*8 + p.M*p.T; bitsUsed > CodeLength(p.M) {
		return fmt.Errorf("%w: %d bits > %d", ErrMessageTooLong, bitsUsed, CodeLength(p.M))
	}
	return nil
}

// Plausible reports whether (m, t) can describe a binary BCH code.
func Plausible(m, t int) bool {
	if m < MinM || m > MaxM || t <= 0 {
		return false
	}
	return m*t <= CodeLength(m)
}

// CodeLength is 2^m - 1.
func CodeLength(m int) int {
	return 1<<uint(m) - 1
}

// ECCBytes is ceil(m·t/8).
func ECCBytes(m, t int) int {
	return (m*t + 7) / 8
}

// DegreeFromPoly returns m for a primitive polynomial written as a bitmask.
func DegreeFromPoly(poly uint32) (int, error) {
	m := bits.Len32(poly) - 1
	if m < MinM || m > MaxM {
		return 0, fmt.Errorf("%w: poly 0x%X has degree %d", ErrImplausible, poly, m)
	}
	if poly&1 == 0 {
		return 0, fmt.Errorf("%w: poly 0x%X has no constant term", ErrImplausible, poly)
	}
	return m, nil
}
