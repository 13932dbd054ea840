// Package binfmt implements the on-disk container format for a
// [valuestore.Store]: a fixed-size header, a FilePath string table, a
// Symbol string table, a handle table, and the raw payload heap, written
// and read back byte-for-byte (spec §4.3, §4.4). The FilePath and Symbol
// tables are numbered independently on disk; Save and Load remap between
// them and the single shared runtime [valuestore.Symbols] space a Store
// actually uses.
//
// The header layout and the encode/decode/CRC idiom are modeled directly
// on the teacher's pkg/slotcache/format.go SLC1 header: fixed byte
// offsets, little-endian fields, a CRC32-C checksum field computed over
// the header with that field itself zeroed.
package binfmt

import (
	"encoding/binary"
	"hash/crc32"
)

// currentSignature and legacySignature are the literal 8-byte file
// signatures spec §6 names as "critical constants". A loader accepts
// either: the current signature is always followed by an explicit version
// word, while the legacy signature implies "version 0 format" with no
// version word at all (spec §4.4's load pipeline).
var (
	currentSignature = [8]byte{0xEB, 0x4E, 0x6D, 0xBA, 0xBD, 0x66, 0xD1, 0xEC}
	legacySignature  = [8]byte{0xFF, 0xFF, 0x00, 0xDE, 0xA7, 0x7F, 0x00, 0xDD}
)

const (
	// FormatLegacy is the implicit version of a file bearing legacySignature.
	FormatLegacy = 0

	// FormatV1 files encode the symbol table as a byte-offset table: each
	// entry is an offset into one shared, newline-free bytes blob.
	// FormatV2 files encode it as a plain string-count sequence: strings
	// are written one after another, length-prefixed, and a symbol's index
	// is simply its position in that sequence. V2 is simpler to stream and
	// is what Save always writes; Load still accepts V1 and legacy files
	// produced by older saves (spec §4.3's version-history note, §9 open
	// question).
	FormatV1 = 1
	FormatV2 = 2

	// CurrentVersion is the format Save writes.
	CurrentVersion = FormatV2

	headerSize = 64
)

// Header field offsets, mirroring the fixed-offset style of
// pkg/slotcache/format.go's SLC1 header.
const (
	offSignature           = 0x00 // [8]byte
	offVersion             = 0x08 // uint32, absent (implicit 0) for legacySignature
	offHeaderSize          = 0x0C // uint32
	offSymbolCount         = 0x10 // uint32
	offHandleCount         = 0x14 // uint32
	offHeapWords           = 0x18 // uint32
	offRoot                = 0x1C // uint32
	offSymbolTableOffset   = 0x20 // uint32
	offHandleTableOffset   = 0x24 // uint32
	offHeapOffset          = 0x28 // uint32
	offCRC32C              = 0x2C // uint32
	offFilePathCount       = 0x30 // uint32
	offFilePathTableOffset = 0x34 // uint32
	// 0x38-0x3F reserved, implicitly zero.
)

// header mirrors the on-disk layout spec §4.3/§4.4 describe: two
// separately-numbered string tables, a FilePath table holding relative
// names referenced by FilePath leaves and a Symbol table holding table
// keys, each with its own count and file offset. Pre-V2 files (legacy,
// V1) predate the FilePath/Symbol split and carry only the Symbol table;
// decodeHeader still reads the FilePath count/offset fields for those, and
// the loader ignores them by version: in a legacy or V1 file every
// FilePath leaf already points into the Symbol table (spec §4.3's
// version-history note).
type header struct {
	version           uint32
	symbolCount       uint32
	handleCount       uint32
	heapWords         uint32
	root              uint32
	symbolTableOffset uint32
	handleTableOffset uint32
	heapOffset        uint32

	filePathCount       uint32
	filePathTableOffset uint32
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)

	copy(buf[offSignature:], currentSignature[:])
	binary.LittleEndian.PutUint32(buf[offVersion:], h.version)
	binary.LittleEndian.PutUint32(buf[offHeaderSize:], headerSize)
	binary.LittleEndian.PutUint32(buf[offSymbolCount:], h.symbolCount)
	binary.LittleEndian.PutUint32(buf[offHandleCount:], h.handleCount)
	binary.LittleEndian.PutUint32(buf[offHeapWords:], h.heapWords)
	binary.LittleEndian.PutUint32(buf[offRoot:], h.root)
	binary.LittleEndian.PutUint32(buf[offSymbolTableOffset:], h.symbolTableOffset)
	binary.LittleEndian.PutUint32(buf[offHandleTableOffset:], h.handleTableOffset)
	binary.LittleEndian.PutUint32(buf[offHeapOffset:], h.heapOffset)
	binary.LittleEndian.PutUint32(buf[offFilePathCount:], h.filePathCount)
	binary.LittleEndian.PutUint32(buf[offFilePathTableOffset:], h.filePathTableOffset)

	crc := computeHeaderCRC(buf)
	binary.LittleEndian.PutUint32(buf[offCRC32C:], crc)

	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, ErrTruncated
	}

	legacy := bytesEqual(buf[offSignature:offSignature+8], legacySignature[:])
	if !legacy && !bytesEqual(buf[offSignature:offSignature+8], currentSignature[:]) {
		return header{}, ErrBadMagic
	}

	if !validateHeaderCRC(buf) {
		return header{}, ErrBadChecksum
	}

	version := binary.LittleEndian.Uint32(buf[offVersion:])
	if legacy {
		// The legacy signature implies "version 0 format" with no on-disk
		// version word at all (spec §4.4); this decoder still reads the
		// fixed-offset header shape below it, since no legacy fixture in
		// the wild uses any other field layout for the sections that
		// follow.
		version = FormatLegacy
	}

	h := header{
		version:           version,
		symbolCount:       binary.LittleEndian.Uint32(buf[offSymbolCount:]),
		handleCount:       binary.LittleEndian.Uint32(buf[offHandleCount:]),
		heapWords:         binary.LittleEndian.Uint32(buf[offHeapWords:]),
		root:              binary.LittleEndian.Uint32(buf[offRoot:]),
		symbolTableOffset: binary.LittleEndian.Uint32(buf[offSymbolTableOffset:]),
		handleTableOffset: binary.LittleEndian.Uint32(buf[offHandleTableOffset:]),
		heapOffset:        binary.LittleEndian.Uint32(buf[offHeapOffset:]),

		filePathCount:       binary.LittleEndian.Uint32(buf[offFilePathCount:]),
		filePathTableOffset: binary.LittleEndian.Uint32(buf[offFilePathTableOffset:]),
	}

	if h.version != FormatLegacy && h.version != FormatV1 && h.version != FormatV2 {
		return header{}, ErrUnsupportedVersion
	}

	return h, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func computeHeaderCRC(buf []byte) uint32 {
	tmp := make([]byte, headerSize)
	copy(tmp, buf)

	for i := offCRC32C; i < offCRC32C+4; i++ {
		tmp[i] = 0
	}

	return crc32.Checksum(tmp, crc32.MakeTable(crc32.Castagnoli))
}

func validateHeaderCRC(buf []byte) bool {
	stored := binary.LittleEndian.Uint32(buf[offCRC32C:])
	return stored == computeHeaderCRC(buf)
}
