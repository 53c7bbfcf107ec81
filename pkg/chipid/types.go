package chipid

// ID is the response to the NAND READ ID (0x90) command.
type ID struct {
	Raw          []byte // bytes as read, at least two
	Manufacturer uint8  // byte 0, JEDEC single-byte code
	Device       uint8  // byte 1
	Ext          uint8  // byte 3, organisation of legacy parts; 0 when absent
	HasExt       bool
}

// Manufacturer is a JEDEC manufacturer entry.
type Manufacturer struct {
	Code         uint8  // JEDEC code as returned in ID byte 0
	Name         string // "Samsung Electronics"
	Abbreviation string // "Samsung"
}

// Geometry is the page organisation of a part.
type Geometry struct {
	PageSize  int // data bytes per page
	SpareSize int // spare (OOB) bytes per page
	BlockSize int // data bytes per erase block
	BusWidth  int // 8 or 16
}

// RawPageSize is PageSize+SpareSize.
func (g Geometry) RawPageSize() int { return g.PageSize + g.SpareSize }
