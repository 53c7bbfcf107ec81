package bch

import "math/bits"

// Preset is a named primitive polynomial seen in NAND controllers.
type Preset struct {
	Name  string
	M     int
	Poly  uint32
	Notes string
}

// Presets is the polynomial catalogue, ordered by m.
var Presets = []Preset{
	{Name: "GF(2^5)", M: 5, Poly: 0x25, Notes: "x^5+x^2+1"},
	{Name: "GF(2^6)", M: 6, Poly: 0x43, Notes: "x^6+x+1"},
	{Name: "GF(2^7)", M: 7, Poly: 0x83, Notes: "x^7+x+1"},
	{Name: "GF(2^8)", M: 8, Poly: 0x11D, Notes: "x^8+x^4+x^3+x^2+1"},
	{Name: "GF(2^9)", M: 9, Poly: 0x211, Notes: "x^9+x^4+1"},
	{Name: "GF(2^10)", M: 10, Poly: 0x409, Notes: "x^10+x^3+1"},
	{Name: "GF(2^11)", M: 11, Poly: 0x805, Notes: "x^11+x^2+1"},
	{Name: "GF(2^12)", M: 12, Poly: 0x1053, Notes: "x^12+x^6+x^4+x+1"},
	{Name: "GF(2^13)", M: 13, Poly: 0x201B, Notes: "x^13+x^4+x^3+x+1, Linux default for m=13"},
	{Name: "Linux m=14", M: 14, Poly: 0x402B, Notes: "x^14+x^5+x^3+x+1, Linux default for m=14"},
	{Name: "Broadcom m=14", M: 14, Poly: 0x5803, Notes: "x^14+x^12+x^11+x+1, Broadcom/BRCMNAND controllers"},
	{Name: "GF(2^15)", M: 15, Poly: 0x8003, Notes: "x^15+x+1"},
}

// Degree returns the field degree implied by poly, bit length minus one.
func Degree(poly uint32) int {
	return bits.Len32(poly) - 1
}

// FindByPoly returns the catalogue entry for poly.
func FindByPoly(poly uint32) (Preset, bool) {
	for _, p := range Presets {
		if p.Poly == poly {
			return p, true
		}
	}
	return Preset{}, false
}

// DefaultForM returns the first catalogue polynomial of degree m, falling
// back to the Linux m=14 polynomial.
func DefaultForM(m int) Preset {
	for _, p := range Presets {
		if p.M == m {
			return p
		}
	}
	p, _ := FindByPoly(0x402B)
	return p
}

// Polys returns every catalogue polynomial in order.
func Polys() []uint32 {
	out := make([]uint32, len(Presets))
	for i, p := range Presets {
		out[i] = p.Poly
	}
	return out
}
