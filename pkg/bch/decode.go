package bch

import "fmt"

// Decode checks msg against the received ECC and reports the bit positions
// in error. Neither buffer is modified; callers flip the reported bits
// themselves.
//
// errloc must have room for T() entries. Location L < 8·len(msg) addresses
// msg[L/8] bit L%8; larger locations address the ECC bytes the same way,
// starting from 8·len(msg).
func (b *BCH) Decode(msg, recvECC []byte, errloc []uint32) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if len(recvECC) < b.eccBytes {
		return 0, fmt.Errorf("bch: ecc is %d bytes, need %d", len(recvECC), b.eccBytes)
	}
	if len(errloc) < b.t {
		return 0, fmt.Errorf("bch: errloc has room for %d locations, need %d", len(errloc), b.t)
	}
	msgBits := 8 * len(msg)
	total := msgBits + b.eccBits
	if total > b.f.n {
		return 0, fmt.Errorf("%w: %d bits > %d", ErrMessageTooLong, total, b.f.n)
	}

	r := b.reg
	b.remainder(msg, r)
	for i := 0; i < b.eccBytes; i++ {
		v := recvECC[i]
		if b.swap {
			v = reverse8(v)
		}
		r[i/8] ^= uint64(v) << uint(56-8*(i%8))
	}
	maskTail(r, b.eccBits)
	if isZero(r) {
		return 0, nil
	}

	b.syndromes(r)
	l := b.berlekampMassey()
	if l == 0 || l > b.t {
		return 0, ErrUncorrectable
	}
	roots := b.chien(l, total)
	if len(roots) != l {
		return 0, ErrUncorrectable
	}

	for i, d := range roots {
		errloc[i] = b.location(d, len(msg))
	}
	return l, nil
}

// syndromes fills syn[1..2t] from the remainder register. Register position
// p holds the coefficient of x^(eccBits-1-p).
func (b *BCH) syndromes(r []uint64) {
	f := b.f
	clear(b.syn)
	for p := 0; p < b.eccBits; p++ {
		if !testBit(r, p) {
			continue
		}
		deg := b.eccBits - 1 - p
		for j := 1; j < 2*b.t; j += 2 {
			b.syn[j] ^= f.pow(j * deg)
		}
	}
	for j := 2; j <= 2*b.t; j += 2 {
		s := b.syn[j/2]
		b.syn[j] = f.mul(s, s)
	}
}

// berlekampMassey leaves the error locator polynomial in lambda and returns
// its length.
func (b *BCH) berlekampMassey() int {
	f := b.f
	c, prev, tmp := b.lambda, b.prev, b.tmp
	clear(c)
	clear(prev)
	c[0], prev[0] = 1, 1

	l, shift := 0, 1
	last := uint16(1)
	for k := 0; k < 2*b.t; k++ {
		d := b.syn[k+1]
		for i := 1; i <= l && i <= k; i++ {
			d ^= f.mul(c[i], b.syn[k+1-i])
		}
		if d == 0 {
			shift++
			continue
		}
		coef := f.div(d, last)
		if 2*l <= k {
			copy(tmp, c)
			for i := 0; i+shift < len(c); i++ {
				c[i+shift] ^= f.mul(coef, prev[i])
			}
			l = k + 1 - l
			copy(prev, tmp)
			last = d
			shift = 1
			continue
		}
		for i := 0; i+shift < len(c); i++ {
			c[i+shift] ^= f.mul(coef, prev[i])
		}
		shift++
	}
	return l
}

// chien returns the degrees d in [0, total) where lambda(alpha^-d) == 0, in
// ascending order, stopping after l roots.
func (b *BCH) chien(l, total int) []int {
	f := b.f
	logs := b.logs
	for i := 1; i <= l; i++ {
		if b.lambda[i] == 0 {
			logs[i] = -1
			continue
		}
		logs[i] = int(f.log[b.lambda[i]])
	}

	found := b.found[:0]
	for d := 0; d < total; d++ {
		sum := b.lambda[0]
		for i := 1; i <= l; i++ {
			if logs[i] >= 0 {
				sum ^= f.exp[logs[i]]
			}
		}
		if sum == 0 {
			found = append(found, d)
			if len(found) == l {
				break
			}
		}
		for i := 1; i <= l; i++ {
			if logs[i] < 0 {
				continue
			}
			logs[i] -= i
			if logs[i] < 0 {
				logs[i] += f.n
			}
		}
	}
	b.found = found
	return found
}

// location converts a codeword degree into a flat bit index over msg||ecc.
func (b *BCH) location(deg, msgLen int) uint32 {
	if deg >= b.eccBits {
		p := 8*msgLen - 1 - (deg - b.eccBits)
		if b.swap {
			return uint32(p)
		}
		return uint32(p&^7 | (7 - p&7))
	}
	q := b.eccBits - 1 - deg
	if b.swap {
		return uint32(8*msgLen + q)
	}
	return uint32(8*msgLen + (q&^7 | (7 - q&7)))
}

func maskTail(w []uint64, bits int) {
	for p := bits; p < 64*len(w); {
		if p%64 == 0 {
			w[p/64] = 0
			p += 64
			continue
		}
		w[p/64] &^= (1 << uint(64-p%64)) - 1
		p += 64 - p%64
	}
}

func isZero(w []uint64) bool {
	for _, v := range w {
		if v != 0 {
			return false
		}
	}
	return true
}
