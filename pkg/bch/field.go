package bch

import "fmt"

// field holds log/antilog tables for GF(2^m) built from a primitive
// polynomial. exp is doubled so products of two logs never need a modulo.
type field struct {
	m   int
	n   int
	exp []uint16
	log []int32
}

func newField(m int, poly uint32) (*field, error) {
	if poly>>uint(m) != 1 {
		return nil, fmt.Errorf("%w: polynomial 0x%X does not have degree %d", ErrInvalidParams, poly, m)
	}
	n := 1<<uint(m) - 1
	f := &field{
		m:   m,
		n:   n,
		exp: make([]uint16, 2*n),
		log: make([]int32, n+1),
	}
	for i := range f.log {
		f.log[i] = -1
	}

	x := uint32(1)
	for i := 0; i < n; i++ {
		if x == 0 || f.log[x] >= 0 {
			return nil, fmt.Errorf("%w: 0x%X (order %d)", ErrNotPrimitive, poly, i)
		}
		f.exp[i] = uint16(x)
		f.log[x] = int32(i)
		x <<= 1
		if x&(1<<uint(m)) != 0 {
			x ^= poly
		}
	}
	if x != 1 {
		return nil, fmt.Errorf("%w: 0x%X", ErrNotPrimitive, poly)
	}
	copy(f.exp[n:], f.exp[:n])
	return f, nil
}

func (f *field) mul(a, b uint16) uint16 {
	if a == 0 || b == 0 {
		return 0
	}
	return f.exp[f.log[a]+f.log[b]]
}

func (f *field) div(a, b uint16) uint16 {
	if a == 0 {
		return 0
	}
	return f.exp[int(f.log[a])-int(f.log[b])+f.n]
}

// pow returns alpha^i for any non-negative i.
func (f *field) pow(i int) uint16 {
	return f.exp[i%f.n]
}
