package chipid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrShortID means fewer than two ID bytes were given.
var ErrShortID = errors.New("chipid: id needs at least manufacturer and device bytes")

// ParseID splits raw READ ID bytes into their fields.
func ParseID(raw []byte) (ID, error) {
	if len(raw) < 2 {
		return ID{}, ErrShortID
	}
	id := ID{
		Raw:          append([]byte(nil), raw...),
		Manufacturer: raw[0],
		Device:       raw[1],
	}
	if len(raw) >= 4 {
		id.Ext = raw[3]
		id.HasExt = true
	}
	return id, nil
}

// ParseIDString reads hex bytes separated by spaces, commas, colons or
// dashes, such as "EC DA 10 95 44" or "ec:da:10:95".
func ParseIDString(s string) (ID, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == ':' || r == '-' || r == '\t'
	})
	raw := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(f), "0x"), 16, 8)
		if err != nil {
			return ID{}, fmt.Errorf("chipid: invalid id byte %q: %w", f, err)
		}
		raw = append(raw, byte(v))
	}
	return ParseID(raw)
}

func (id ID) String() string {
	parts := make([]string, len(id.Raw))
	for i, b := range id.Raw {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// DecodeExt decodes the legacy organisation byte (ID byte 3) the way most
// SLC parts encode it: page size in bits 0-1, spare bytes per 512 in bit 2,
// block size in bits 4-5 and bus width in bit 6.
func DecodeExt(ext uint8) Geometry {
	g := Geometry{BusWidth: 8}
	g.PageSize = 1024 << (ext & 0x03)
	ext >>= 2
	g.SpareSize = (8 << (ext & 0x01)) * (g.PageSize / 512)
	ext >>= 2
	g.BlockSize = (64 * 1024) << (ext & 0x03)
	ext >>= 2
	if ext&0x01 != 0 {
		g.BusWidth = 16
	}
	return g
}
