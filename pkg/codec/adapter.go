package codec

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/bch"
)

// Engine is one instantiated correction code obtained from an Oracle.
//
// Decode never modifies its inputs. It fills errloc with flat bit positions
// (message bits first, then ECC bits, LSB-numbered within each byte) and
// returns how many it wrote. Engines report a codeword they cannot repair
// with an error matching ErrUncorrectable.
type Engine interface {
	Decode(msg, ecc []byte, errloc []uint32) (int, error)
	Encode(msg, ecc []byte) error
	ECCBytes() int
	Close()
}

// Oracle instantiates engines for a parameter set. It may reject parameters
// that pass Plausible.
type Oracle interface {
	Open(m, t int, poly uint32, swapBits bool) (Engine, error)
}

var (
	// ErrCodecInit matches every *InitError.
	ErrCodecInit = errors.New("codec: oracle rejected parameters")

	// ErrUncorrectable is the per-sector decode failure.
	ErrUncorrectable = errors.New("codec: uncorrectable")

	ErrImplausible       = errors.New("codec: implausible parameters")
	ErrECCLengthMismatch = errors.New("codec: ecc length mismatch")
	ErrMessageTooLong    = errors.New("codec: message exceeds code length")
	ErrExtraBytes        = errors.New("codec: extra bytes outside ecc offset")
	ErrBadErrorLocation  = errors.New("codec: error location out of range")
	ErrClosed            = errors.New("codec: handle closed")
)

// InitError reports an oracle refusing a parameter set.
type InitError struct {
	Params Params
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("codec: open %s: %v", e.Params, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrCodecInit }

// BCH is the default Oracle, backed by the pure Go decoder in pkg/bch.
type BCH struct{}

func (BCH) Open(m, t int, poly uint32, swapBits bool) (Engine, error) {
	b, err := bch.New(m, t, poly, swapBits)
	if err != nil {
		return nil, err
	}
	return bchEngine{b}, nil
}

type bchEngine struct {
	b *bch.BCH
}

func (e bchEngine) Decode(msg, ecc []byte, errloc []uint32) (int, error) {
	n, err := e.b.Decode(msg, ecc, errloc)
	if errors.Is(err, bch.ErrUncorrectable) {
		return 0, ErrUncorrectable
	}
	return n, err
}

func (e bchEngine) Encode(msg, ecc []byte) error { return e.b.Encode(msg, ecc) }
func (e bchEngine) ECCBytes() int { return e.b.ECCBytes() }
func (e bchEngine) Close() { e.b.Close() }
