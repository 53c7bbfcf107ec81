// Package bch implements a binary BCH encoder/decoder over GF(2^m) with the
// bit conventions of the Linux kernel's lib/bch:
//
//   - message bytes are consumed most significant bit first (least
//     significant first when swap-bits is enabled);
//   - the ECC is the remainder of msg(x)·x^(deg g) modulo the generator
//     polynomial g, stored left-justified in ceil(m·t/8) bytes;
//   - Decode reports error locations as flat bit indices, message bits first
//     and then ECC bits, where location L addresses bit L%8 (LSB numbering)
//     of byte L/8.
//
// A BCH value is not safe for concurrent use; open one per goroutine.
package bch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParams is returned by New for (m, t) values the codec cannot
	// represent.
	ErrInvalidParams = errors.New("bch: invalid parameters")

	// ErrNotPrimitive is returned by New when the polynomial does not
	// generate GF(2^m).
	ErrNotPrimitive = errors.New("bch: polynomial is not primitive")

	// ErrUncorrectable is returned by Decode when the codeword holds more
	// errors than the code can locate.
	ErrUncorrectable = errors.New("bch: uncorrectable")

	// ErrMessageTooLong is returned by Decode when message plus ECC bits
	// exceed the code length 2^m-1.
	ErrMessageTooLong = errors.New("bch: message too long for code")

	// ErrClosed is returned when a closed codec is used.
	ErrClosed = errors.New("bch: codec closed")
)

const (
	MinM = 5
	MaxM = 15
)

// BCH is one instantiated code.
type BCH struct {
	f        *field
	m, t     int
	swap     bool
	eccBits  int
	eccBytes int
	words    int

	gen   []uint64
	table [][]uint64

	// decode scratch
	reg    []uint64
	syn    []uint16
	lambda []uint16
	prev   []uint16
	tmp    []uint16
	logs   []int
	found  []int
	closed bool
}

// New builds a code of field degree m correcting t bit errors, using poly as
// the primitive polynomial of GF(2^m).
func New(m, t int, poly uint32, swapBits bool) (*BCH, error) {
	if m < MinM || m > MaxM {
		return nil, fmt.Errorf("%w: m=%d outside [%d,%d]", ErrInvalidParams, m, MinM, MaxM)
	}
	if t <= 0 {
		return nil, fmt.Errorf("%w: t=%d", ErrInvalidParams, t)
	}
	n := 1<<uint(m) - 1
	if m*t >= n {
		return nil, fmt.Errorf("%w: m*t=%d not below code length %d", ErrInvalidParams, m*t, n)
	}

	f, err := newField(m, poly)
	if err != nil {
		return nil, err
	}

	b := &BCH{
		f:        f,
		m:        m,
		t:        t,
		swap:     swapBits,
		eccBytes: (m*t + 7) / 8,
	}
	b.words = (b.eccBytes + 7) / 8

	g, err := b.generator()
	if err != nil {
		return nil, err
	}
	b.eccBits = len(g) - 1
	b.gen = make([]uint64, b.words)
	for p := 0; p < b.eccBits; p++ {
		if g[b.eccBits-1-p] != 0 {
			setBit(b.gen, p)
		}
	}
	if b.eccBits >= 8 {
		b.buildTable()
	}

	b.reg = make([]uint64, b.words)
	b.syn = make([]uint16, 2*t+1)
	b.lambda = make([]uint16, 2*t+1)
	b.prev = make([]uint16, 2*t+1)
	b.tmp = make([]uint16, 2*t+1)
	b.logs = make([]int, 2*t+1)
	b.found = make([]int, 0, t)
	return b, nil
}

// M returns the field degree.
func (b *BCH) M() int { return b.m }

// T returns the correction capability in bits.
func (b *BCH) T() int { return b.t }

// N returns the code length in bits.
func (b *BCH) N() int { return b.f.n }

// ECCBits returns the degree of the generator polynomial. It is at most m·t.
func (b *BCH) ECCBits() int { return b.eccBits }

// ECCBytes returns the stored ECC size, ceil(m·t/8).
func (b *BCH) ECCBytes() int { return b.eccBytes }

// MaxMessageBytes is the longest message Decode accepts.
func (b *BCH) MaxMessageBytes() int { return (b.f.n - b.eccBits) / 8 }

// Close drops the code tables. Later Encode/Decode calls fail.
func (b *BCH) Close() {
	b.closed = true
	b.table = nil
	b.f = nil
}

// generator returns the binary coefficients (index = degree) of the product
// of the minimal polynomials of alpha^1 .. alpha^(2t).
func (b *BCH) generator() ([]uint8, error) {
	f := b.f
	roots := make([]bool, f.n)
	for i := 0; i < b.t; i++ {
		r := 2*i + 1
		for j := 0; j < b.m; j++ {
			roots[r] = true
			r = (2 * r) % f.n
		}
	}

	g := []uint16{1}
	for r, ok := range roots {
		if !ok {
			continue
		}
		a := f.exp[r]
		next := make([]uint16, len(g)+1)
		for j, c := range g {
			next[j+1] ^= c
			next[j] ^= f.mul(c, a)
		}
		g = next
	}

	out := make([]uint8, len(g))
	for i, c := range g {
		if c > 1 {
			return nil, fmt.Errorf("%w: generator coefficient %d is not binary", ErrInvalidParams, i)
		}
		out[i] = uint8(c)
	}
	if len(out)-1 > b.m*b.t {
		return nil, fmt.Errorf("%w: generator degree %d exceeds m*t", ErrInvalidParams, len(out)-1)
	}
	return out, nil
}

func (b *BCH) buildTable() {
	b.table = make([][]uint64, 256)
	r := make([]uint64, b.words)
	for v := 0; v < 256; v++ {
		clear(r)
		for k := 7; k >= 0; k-- {
			b.stepBit(r, uint64(v>>uint(k))&1)
		}
		b.table[v] = append([]uint64(nil), r...)
	}
}

func (b *BCH) stepBit(r []uint64, bit uint64) {
	fb := (r[0] >> 63) ^ bit
	shiftLeft(r, 1)
	if fb != 0 {
		xorInto(r, b.gen)
	}
}

// remainder leaves msg(x)·x^eccBits mod g(x) in r.
func (b *BCH) remainder(msg []byte, r []uint64) {
	clear(r)
	for _, d := range msg {
		if b.swap {
			d = reverse8(d)
		}
		if b.table != nil {
			idx := byte(r[0]>>56) ^ d
			shiftLeft(r, 8)
			xorInto(r, b.table[idx])
			continue
		}
		for k := 7; k >= 0; k-- {
			b.stepBit(r, uint64(d>>uint(k))&1)
		}
	}
}

// Encode writes the ECC of msg into the first ECCBytes bytes of ecc.
func (b *BCH) Encode(msg, ecc []byte) error {
	if b.closed {
		return ErrClosed
	}
	if len(ecc) < b.eccBytes {
		return fmt.Errorf("bch: ecc buffer is %d bytes, need %d", len(ecc), b.eccBytes)
	}
	r := make([]uint64, b.words)
	b.remainder(msg, r)
	for i := 0; i < b.eccBytes; i++ {
		v := byte(r[i/8] >> uint(56-8*(i%8)))
		if b.swap {
			v = reverse8(v)
		}
		ecc[i] = v
	}
	return nil
}

func setBit(w []uint64, p int) {
	w[p/64] |= 1 << uint(63-p%64)
}

func testBit(w []uint64, p int) bool {
	return w[p/64]&(1<<uint(63-p%64)) != 0
}

func shiftLeft(w []uint64, s uint) {
	last := len(w) - 1
	for j := 0; j < last; j++ {
		w[j] = w[j]<<s | w[j+1]>>(64-s)
	}
	w[last] <<= s
}

func xorInto(dst, src []uint64) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

var rev8 = func() (tbl [256]byte) {
	for i := range tbl {
		var v byte
		for k := 0; k < 8; k++ {
			if i&(1<<uint(k)) != 0 {
				v |= 0x80 >> uint(k)
			}
		}
		tbl[i] = v
	}
	return tbl
}()

func reverse8(v byte) byte {
	return rev8[v]
}
