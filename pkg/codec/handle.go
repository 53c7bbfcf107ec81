package codec

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Handle owns one engine for one parameter set. It is not safe for
// concurrent use.
type Handle struct {
	params Params
	engine Engine
	errloc []uint32

	once   sync.Once
	closed bool
}

// Open validates p and instantiates an engine for it. An oracle refusal is
// returned as *InitError.
func Open(o Oracle, p Params) (*Handle, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if o == nil {
		o = BCH{}
	}
	e, err := o.Open(p.M, p.T, p.Poly, p.SwapBits)
	if err != nil {
		return nil, &InitError{Params: p, Err: err}
	}
	if n := e.ECCBytes(); n != p.ECCBytes() {
		e.Close()
		return nil, &InitError{Params: p, Err: fmt.Errorf("engine uses %d ecc bytes, want %d", n, p.ECCBytes())}
	}
	return &Handle{
		params: p,
		engine: e,
		errloc: make([]uint32, p.T),
	}, nil
}

// With opens a handle for p, passes it to fn and closes it on every exit,
// including panics in fn.
func With(ctx context.Context, o Oracle, p Params, fn func(*Handle) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h, err := Open(o, p)
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h)
}

func (h *Handle) Params() Params { return h.params }

func (h *Handle) ECCBytes() int { return h.params.ECCBytes() }

// DecodeAndCorrect repairs msg and ecc in place and returns the number of
// flipped bits. On failure both buffers are left as they were and the error
// matches ErrUncorrectable.
func (h *Handle) DecodeAndCorrect(msg, ecc []byte) (int, error) {
	if h.closed {
		return 0, ErrClosed
	}
	n, err := h.engine.Decode(msg, ecc, h.errloc)
	if err != nil {
		if errors.Is(err, ErrUncorrectable) {
			return 0, ErrUncorrectable
		}
		return 0, fmt.Errorf("%w: %v", ErrUncorrectable, err)
	}
	if n < 0 || n > len(h.errloc) {
		return 0, fmt.Errorf("%w: engine reported %d locations", ErrUncorrectable, n)
	}
	if err := ApplyErrorLocations(msg, ecc, h.errloc[:n]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUncorrectable, err)
	}
	return n, nil
}

// Encode returns the ECC of msg. eccLen must be the code's ECC size. msg is
// not modified.
func (h *Handle) Encode(msg []byte, eccLen int) ([]byte, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if n := h.engine.ECCBytes(); eccLen != n {
		return nil, fmt.Errorf("%w: code has %d bytes, asked for %d", ErrECCLengthMismatch, n, eccLen)
	}
	ecc := make([]byte, eccLen)
	if err := h.engine.Encode(msg, ecc); err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return ecc, nil
}

// Close releases the engine. Only the first call has an effect.
func (h *Handle) Close() error {
	h.once.Do(func() {
		h.closed = true
		h.engine.Close()
	})
	return nil
}
