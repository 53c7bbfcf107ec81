package bch

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func flip(buf []byte, loc uint32) {
	buf[loc/8] ^= 1 << (loc % 8)
}

// eccLocations lists the flat locations that address real ECC bits, skipping
// the zero padding at the end of the last ECC byte.
func eccLocations(b *BCH, msgLen int) []uint32 {
	out := make([]uint32, 0, b.ECCBits())
	for q := 0; q < b.ECCBits(); q++ {
		if b.swap {
			out = append(out, uint32(8*msgLen+q))
			continue
		}
		out = append(out, uint32(8*msgLen+(q&^7|(7-q&7))))
	}
	return out
}

func TestFieldRejectsBadPolynomials(t *testing.T) {
	_, err := New(14, 4, 0x201B, false)
	require.True(t, errors.Is(err, ErrInvalidParams), "degree mismatch: %v", err)

	// x^8+1 is not irreducible.
	_, err = New(8, 2, 0x101, false)
	require.True(t, errors.Is(err, ErrNotPrimitive), "%v", err)
}

func TestNewRejectsParams(t *testing.T) {
	for _, c := range []struct{ m, t int }{{4, 1}, {16, 1}, {5, 0}, {5, 7}, {8, 40}} {
		_, err := New(c.m, c.t, DefaultForM(c.m).Poly, false)
		require.Error(t, err, "m=%d t=%d", c.m, c.t)
	}
}

func TestPresetsArePrimitive(t *testing.T) {
	for _, p := range Presets {
		require.Equal(t, p.M, Degree(p.Poly), p.Name)
		b, err := New(p.M, 1, p.Poly, false)
		require.NoError(t, err, p.Name)
		require.Equal(t, p.M, b.ECCBits(), p.Name)
	}
}

func TestECCSize(t *testing.T) {
	b, err := New(14, 4, 0x5803, false)
	require.NoError(t, err)
	require.Equal(t, 7, b.ECCBytes())
	require.Equal(t, 56, b.ECCBits())

	b, err = New(13, 8, 0x201B, false)
	require.NoError(t, err)
	require.Equal(t, 13, b.ECCBytes())
}

func TestDecodeClean(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, swap := range []bool{false, true} {
		b, err := New(14, 4, 0x5803, swap)
		require.NoError(t, err)

		msg := make([]byte, 521)
		rng.Read(msg)
		ecc := make([]byte, b.ECCBytes())
		require.NoError(t, b.Encode(msg, ecc))

		orig := append([]byte(nil), msg...)
		errloc := make([]uint32, b.T())
		n, err := b.Decode(msg, ecc, errloc)
		require.NoError(t, err)
		require.Zero(t, n)
		require.Equal(t, orig, msg)
	}
}

func TestErasedPageIsNotACodeword(t *testing.T) {
	b, err := New(14, 4, 0x5803, false)
	require.NoError(t, err)
	msg := bytes.Repeat([]byte{0xFF}, 512)
	ecc := make([]byte, b.ECCBytes())
	require.NoError(t, b.Encode(msg, ecc))
	require.False(t, bytes.Equal(ecc, bytes.Repeat([]byte{0xFF}, len(ecc))))
}

func TestDecodeCorrectsUpToT(t *testing.T) {
	codes := []struct {
		m, t int
		poly uint32
		size int
	}{
		{14, 4, 0x5803, 512},
		{14, 4, 0x402B, 521},
		{13, 8, 0x201B, 512},
		{15, 16, 0x8003, 1024},
	}
	rng := rand.New(rand.NewSource(2))
	for _, c := range codes {
		for _, swap := range []bool{false, true} {
			b, err := New(c.m, c.t, c.poly, swap)
			require.NoError(t, err)
			valid := eccLocations(b, c.size)
			for i := 0; i < 8*c.size; i++ {
				valid = append(valid, uint32(i))
			}

			for trial := 0; trial < 10; trial++ {
				msg := make([]byte, c.size)
				rng.Read(msg)
				ecc := make([]byte, b.ECCBytes())
				require.NoError(t, b.Encode(msg, ecc))

				code := append(append([]byte(nil), msg...), ecc...)
				k := 1 + rng.Intn(c.t)
				perm := rng.Perm(len(valid))
				for _, i := range perm[:k] {
					flip(code, valid[i])
				}

				errloc := make([]uint32, b.T())
				n, err := b.Decode(code[:c.size], code[c.size:], errloc)
				require.NoError(t, err, "m=%d t=%d swap=%v k=%d", c.m, c.t, swap, k)
				require.Equal(t, k, n)
				for _, loc := range errloc[:n] {
					flip(code, loc)
				}
				require.Equal(t, msg, code[:c.size])
				require.Equal(t, ecc, code[c.size:])
			}
		}
	}
}

func TestDecodeBeyondT(t *testing.T) {
	b, err := New(14, 4, 0x5803, false)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))

	miscorrected := 0
	for trial := 0; trial < 20; trial++ {
		msg := make([]byte, 512)
		rng.Read(msg)
		ecc := make([]byte, b.ECCBytes())
		require.NoError(t, b.Encode(msg, ecc))

		for _, i := range rng.Perm(8 * len(msg))[:b.T()+1] {
			flip(msg, uint32(i))
		}
		_, err := b.Decode(msg, ecc, make([]uint32, b.T()))
		if err == nil {
			miscorrected++
			continue
		}
		require.True(t, errors.Is(err, ErrUncorrectable))
	}
	require.LessOrEqual(t, miscorrected, 1)
}

func TestDecodeMessageTooLong(t *testing.T) {
	b, err := New(8, 2, 0x11D, false)
	require.NoError(t, err)
	msg := make([]byte, b.MaxMessageBytes()+1)
	_, err = b.Decode(msg, make([]byte, b.ECCBytes()), make([]uint32, b.T()))
	require.True(t, errors.Is(err, ErrMessageTooLong))
}

func TestClosed(t *testing.T) {
	b, err := New(13, 4, 0x201B, false)
	require.NoError(t, err)
	b.Close()
	require.ErrorIs(t, b.Encode(nil, make([]byte, b.ECCBytes())), ErrClosed)
	_, err = b.Decode(nil, make([]byte, b.ECCBytes()), make([]uint32, 4))
	require.ErrorIs(t, err, ErrClosed)
}

func TestPresetLookup(t *testing.T) {
	p, ok := FindByPoly(0x5803)
	require.True(t, ok)
	require.Equal(t, 14, p.M)

	_, ok = FindByPoly(0x1234)
	require.False(t, ok)

	require.Equal(t, uint32(0x201B), DefaultForM(13).Poly)
	require.Equal(t, uint32(0x402B), DefaultForM(3).Poly)
	require.Len(t, Polys(), len(Presets))
}
