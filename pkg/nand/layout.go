package nand

import "fmt"

// Layout describes the geometry of one raw NAND page: the data area, the
// spare (OOB) area, and how both are split into per-sector ECC steps.
//
// A Layout is a value. Validate it once before use and replace it rather than
// mutating it.
type Layout struct {
	PageSize   int `json:"page_size"`   // data bytes per page
	SpareSize  int `json:"spare_size"`  // OOB bytes per page
	SectorSize int `json:"sector_size"` // data bytes covered by one ECC step
	ChunkSize  int `json:"chunk_size"`  // OOB bytes belonging to one step
	ECCOffset  int `json:"ecc_offset"`  // ECC position inside a chunk
	ECCLength  int `json:"ecc_length"`  // ECC bytes inside a chunk
}

// RawPageSize is the on-disk stride between consecutive pages.
func (l Layout) RawPageSize() int {
	return l.PageSize + l.SpareSize
}

// StepCount is the number of sectors per page.
func (l Layout) StepCount() int {
	if l.SectorSize <= 0 {
		return 0
	}
	return l.PageSize / l.SectorSize
}

// Validate checks every geometry invariant and returns an error matching
// ErrInvalidLayout on the first violation.
func (l Layout) Validate() error {
	if l.PageSize <= 0 {
		return invalid("page_size", "must be positive, got %d", l.PageSize)
	}
	if l.SpareSize < 0 {
		return invalid("spare_size", "must not be negative, got %d", l.SpareSize)
	}
	if l.SectorSize <= 0 {
		return invalid("sector_size", "must be positive, got %d", l.SectorSize)
	}
	if l.PageSize%l.SectorSize != 0 {
		return invalid("sector_size", "page size %d is not a multiple of %d", l.PageSize, l.SectorSize)
	}
	if l.ChunkSize <= 0 {
		return invalid("chunk_size", "must be positive, got %d", l.ChunkSize)
	}
	if l.ECCOffset < 0 {
		return invalid("ecc_offset", "must not be negative, got %d", l.ECCOffset)
	}
	if l.ECCLength <= 0 {
		return invalid("ecc_length", "must be positive, got %d", l.ECCLength)
	}
	if l.ECCOffset+l.ECCLength > l.ChunkSize {
		return invalid("ecc_length", "offset %d + length %d exceeds chunk size %d",
			l.ECCOffset, l.ECCLength, l.ChunkSize)
	}
	if l.ChunkSize*l.StepCount() > l.SpareSize {
		return invalid("chunk_size", "%d chunks of %d bytes exceed spare size %d",
			l.StepCount(), l.ChunkSize, l.SpareSize)
	}
	return nil
}

// Step returns the sector bytes and the matching spare chunk for one step of
// a raw page. Both slices alias raw. The layout must be valid and raw must be
// at least RawPageSize bytes long.
func (l Layout) Step(raw []byte, step int) (sector, chunk []byte) {
	so := step * l.SectorSize
	co := l.PageSize + step*l.ChunkSize
	return raw[so : so+l.SectorSize], raw[co : co+l.ChunkSize]
}

// ECC returns the ECC bytes inside a chunk.
func (l Layout) ECC(chunk []byte) []byte {
	return chunk[l.ECCOffset : l.ECCOffset+l.ECCLength]
}

// Extra returns the first n chunk bytes, the spare data that some
// controllers protect together with the sector.
func (l Layout) Extra(chunk []byte, n int) []byte {
	return chunk[:n]
}

// PageCount returns how many raw pages follow offset in a file of size
// bytes. The remainder must be a whole number of pages.
func (l Layout) PageCount(size, offset int64) (int64, error) {
	raw := int64(l.RawPageSize())
	if raw <= 0 || offset < 0 || offset > size {
		return 0, fmt.Errorf("%w: size %d offset %d raw page %d", ErrMisalignedFile, size, offset, raw)
	}
	if (size-offset)%raw != 0 {
		return 0, fmt.Errorf("%w: %d bytes after offset %d, raw page %d", ErrMisalignedFile, size-offset, offset, raw)
	}
	return (size - offset) / raw, nil
}

func (l Layout) String() string {
	return fmt.Sprintf("page=%d spare=%d sector=%d chunk=%d ecc=%d+%d",
		l.PageSize, l.SpareSize, l.SectorSize, l.ChunkSize, l.ECCOffset, l.ECCLength)
}
