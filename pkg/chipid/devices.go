package chipid

// Small page parts carry a fixed organisation; large page parts describe
// theirs in the ext byte.
func init() {
	// 512 byte pages, 16 byte spare
	register(0x73, device{name: "NAND 16MiB 3,3V 8-bit", sizeMiB: 16, pageSize: 512, blockSize: 16 * 1024, busWidth: 8})
	register(0x75, device{name: "NAND 32MiB 3,3V 8-bit", sizeMiB: 32, pageSize: 512, blockSize: 16 * 1024, busWidth: 8})
	register(0x76, device{name: "NAND 64MiB 3,3V 8-bit", sizeMiB: 64, pageSize: 512, blockSize: 16 * 1024, busWidth: 8})
	register(0x79, device{name: "NAND 128MiB 3,3V 8-bit", sizeMiB: 128, pageSize: 512, blockSize: 16 * 1024, busWidth: 8})
	register(0x56, device{name: "NAND 64MiB 3,3V 16-bit", sizeMiB: 64, pageSize: 512, blockSize: 16 * 1024, busWidth: 16})

	// Large page parts
	register(0xF1, device{name: "NAND 128MiB 3,3V 8-bit", sizeMiB: 128})
	register(0xA1, device{name: "NAND 128MiB 1,8V 8-bit", sizeMiB: 128})
	register(0xDA, device{name: "NAND 256MiB 3,3V 8-bit", sizeMiB: 256})
	register(0xAA, device{name: "NAND 256MiB 1,8V 8-bit", sizeMiB: 256})
	register(0xDC, device{name: "NAND 512MiB 3,3V 8-bit", sizeMiB: 512})
	register(0xAC, device{name: "NAND 512MiB 1,8V 8-bit", sizeMiB: 512})
	register(0xD3, device{name: "NAND 1GiB 3,3V 8-bit", sizeMiB: 1024})
	register(0xA3, device{name: "NAND 1GiB 1,8V 8-bit", sizeMiB: 1024})
	register(0xD5, device{name: "NAND 2GiB 3,3V 8-bit", sizeMiB: 2048})
	register(0xD7, device{name: "NAND 4GiB 3,3V 8-bit", sizeMiB: 4096})
}
