package codec

import "sync"

// OpenHook lets tests veto an Open call.
type OpenHook func(m, t int, poly uint32, swapBits bool) error

// DecodeHook replaces the wrapped engine's Decode.
type DecodeHook func(msg, ecc []byte, errloc []uint32) (int, error)

// SimOracle wraps another oracle and records engine lifecycles so tests can
// assert that every opened engine is released.
type SimOracle struct {
	Inner    Oracle
	OnOpen   OpenHook
	OnDecode DecodeHook

	mu     sync.Mutex
	opens  int
	closes int
}

// NewSimOracle wraps inner, or the default BCH oracle when inner is nil.
func NewSimOracle(inner Oracle) *SimOracle {
	if inner == nil {
		inner = BCH{}
	}
	return &SimOracle{Inner: inner}
}

// Counts reports how many engines were opened and closed.
func (s *SimOracle) Counts() (opens, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

// Live is the number of engines not yet closed.
func (s *SimOracle) Live() int {
	opens, closes := s.Counts()
	return opens - closes
}

func (s *SimOracle) Open(m, t int, poly uint32, swapBits bool) (Engine, error) {
	if s.OnOpen != nil {
		if err := s.OnOpen(m, t, poly, swapBits); err != nil {
			return nil, err
		}
	}
	inner := s.Inner
	if inner == nil {
		inner = BCH{}
	}
	e, err := inner.Open(m, t, poly, swapBits)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	return &simEngine{Engine: e, sim: s}, nil
}

type simEngine struct {
	Engine
	sim *SimOracle
}

func (e *simEngine) Decode(msg, ecc []byte, errloc []uint32) (int, error) {
	if e.sim.OnDecode != nil {
		return e.sim.OnDecode(msg, ecc, errloc)
	}
	return e.Engine.Decode(msg, ecc, errloc)
}

func (e *simEngine) Close() {
	e.Engine.Close()
	e.sim.mu.Lock()
	e.sim.closes++
	e.sim.mu.Unlock()
}
