// Package nand models the physical layout of raw NAND flash dumps.
//
// A raw dump is a sequence of pages, each made of a data area followed by a
// spare (out-of-band) area. The data area is split into equal sectors and the
// spare area into equal chunks; chunk i carries the ECC bytes protecting
// sector i:
//
//	| sector 0 | sector 1 | ... | chunk 0 | chunk 1 | ... | unused spare |
//	                            |<-- ECCOffset -->|ECC|
//
// The package also holds the ECC bit-domain transforms and the erased-cell
// predicates shared by the search and correction stages.
package nand
