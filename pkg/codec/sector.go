package codec

import "github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"

// Scratch holds the per-goroutine buffers used to assemble a sector
// codeword. The zero value is ready to use.
type Scratch struct {
	msg []byte
	ecc []byte
}

// Message returns the last assembled message, sector bytes followed by the
// extra bytes. After a successful DecodeSector it holds the corrected data.
func (s *Scratch) Message() []byte { return s.msg }

// WriteBack copies the corrected message over the original sector and extra
// bytes.
func (s *Scratch) WriteBack(sector, extra []byte) {
	n := copy(sector, s.msg)
	copy(extra, s.msg[n:])
}

func (s *Scratch) assemble(sector, extra []byte) {
	s.msg = append(append(s.msg[:0], sector...), extra...)
}

// DecodeSector decodes sector||extra against ecc after mapping ecc through
// tf. The inputs are never modified; corrected bytes are left in s.
func (h *Handle) DecodeSector(s *Scratch, sector, extra, ecc []byte, tf nand.Transform) (int, error) {
	s.assemble(sector, extra)
	s.ecc = append(s.ecc[:0], ecc...)
	tf.Apply(s.ecc)
	return h.DecodeAndCorrect(s.msg, s.ecc)
}

// EncodeSector computes the ECC of sector||extra and maps it back into the
// stored domain through tf.
func (h *Handle) EncodeSector(s *Scratch, sector, extra []byte, eccLen int, tf nand.Transform) ([]byte, error) {
	s.assemble(sector, extra)
	ecc, err := h.Encode(s.msg, eccLen)
	if err != nil {
		return nil, err
	}
	tf.Apply(ecc)
	return ecc, nil
}
