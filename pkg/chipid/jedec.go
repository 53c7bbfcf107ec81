package chipid

import "fmt"

// manufacturers holds the JEDEC codes seen in NAND ID byte 0.
var manufacturers = map[uint8]Manufacturer{
	0x01: {Code: 0x01, Name: "AMD/Spansion", Abbreviation: "Spansion"},
	0x04: {Code: 0x04, Name: "Fujitsu", Abbreviation: "Fujitsu"},
	0x07: {Code: 0x07, Name: "Renesas", Abbreviation: "Renesas"},
	0x20: {Code: 0x20, Name: "STMicroelectronics/Numonyx", Abbreviation: "ST"},
	0x2C: {Code: 0x2C, Name: "Micron", Abbreviation: "Micron"},
	0x45: {Code: 0x45, Name: "SanDisk", Abbreviation: "SanDisk"},
	0x89: {Code: 0x89, Name: "Intel", Abbreviation: "Intel"},
	0x8F: {Code: 0x8F, Name: "National", Abbreviation: "National"},
	0x92: {Code: 0x92, Name: "ESMT", Abbreviation: "ESMT"},
	0x98: {Code: 0x98, Name: "Toshiba/Kioxia", Abbreviation: "Toshiba"},
	0x9B: {Code: 0x9B, Name: "ATO Solution", Abbreviation: "ATO"},
	0xAD: {Code: 0xAD, Name: "SK Hynix", Abbreviation: "Hynix"},
	0xC2: {Code: 0xC2, Name: "Macronix", Abbreviation: "Macronix"},
	0xC8: {Code: 0xC8, Name: "GigaDevice", Abbreviation: "GigaDevice"},
	0xEC: {Code: 0xEC, Name: "Samsung Electronics", Abbreviation: "Samsung"},
	0xEF: {Code: 0xEF, Name: "Winbond", Abbreviation: "Winbond"},
}

// LookupManufacturer returns the manufacturer for a JEDEC code.
func LookupManufacturer(code uint8) (Manufacturer, bool) {
	m, ok := manufacturers[code]
	if !ok {
		return Manufacturer{
			Code:         code,
			Name:         fmt.Sprintf("Unknown (0x%02X)", code),
			Abbreviation: "Unknown",
		}, false
	}
	return m, true
}
