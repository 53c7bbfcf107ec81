package chipid

import (
	"errors"
	"fmt"
)

// ErrUnknownDevice means the device byte is not in the database.
var ErrUnknownDevice = errors.New("chipid: unknown device")

// ErrNoGeometry means the part gives its organisation only in the ext byte
// and the ID was too short to contain it.
var ErrNoGeometry = errors.New("chipid: id has no organisation byte")

// DeviceInfo describes a NAND part identified from its ID bytes.
type DeviceInfo struct {
	ID           ID
	Manufacturer Manufacturer

	Name     string // "NAND 256MiB 3,3V 8-bit"
	SizeMiB  int
	Geometry Geometry
}

func (d DeviceInfo) String() string {
	g := d.Geometry
	return fmt.Sprintf("%s %s: page=%d spare=%d block=%dKiB x%d",
		d.Manufacturer.Abbreviation, d.Name, g.PageSize, g.SpareSize, g.BlockSize/1024, g.BusWidth)
}

// device is a database row. A zero page size means the organisation comes
// from the ext byte.
type device struct {
	name      string
	sizeMiB   int
	pageSize  int
	blockSize int
	busWidth  int
}

// db is keyed by the device byte, which is shared across vendors.
var db = make(map[uint8]device)

func register(code uint8, d device) {
	db[code] = d
}

// Lookup identifies a part from its ID bytes.
func Lookup(raw []byte) (DeviceInfo, error) {
	id, err := ParseID(raw)
	if err != nil {
		return DeviceInfo{}, err
	}
	m, _ := LookupManufacturer(id.Manufacturer)
	info := DeviceInfo{ID: id, Manufacturer: m}

	d, ok := db[id.Device]
	if !ok {
		return info, fmt.Errorf("%w: 0x%02X", ErrUnknownDevice, id.Device)
	}
	info.Name = d.name
	info.SizeMiB = d.sizeMiB

	if d.pageSize != 0 {
		info.Geometry = Geometry{
			PageSize:  d.pageSize,
			SpareSize: d.pageSize / 32,
			BlockSize: d.blockSize,
			BusWidth:  d.busWidth,
		}
		return info, nil
	}
	if !id.HasExt {
		return info, ErrNoGeometry
	}
	info.Geometry = DecodeExt(id.Ext)
	return info, nil
}
