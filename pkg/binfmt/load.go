package binfmt

import (
	"encoding/binary"
	"os"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// Load reads a value store previously written by [Save] (or by any
// supported older format version) from path. current is the platform the
// loading process is running on; FilePath relative names are normalized
// to its directory separator once loaded (spec §4.4, §8 scenario 2).
func Load(path string, current Platform) (*valuestore.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Decode(data, current)
}

// Decode parses a value store from an in-memory byte slice, dispatching on
// the header's version field.
//
// V2 files (what Save always writes) carry two separately-numbered string
// tables: a FilePath table for FilePath relative names and a Symbol table
// for table keys (spec §4.3). Legacy and V1 files predate that split and
// carry a single shared table that FilePath leaves and table keys index
// into together. Either way, Decode remaps every reference into one
// shared runtime [valuestore.Symbols] instance, since that is the single
// index space a [valuestore.Store] actually uses at runtime.
func Decode(data []byte, current Platform) (*valuestore.Store, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	var fpRaw, symRaw []string

	switch h.version {
	case FormatLegacy, FormatV1:
		symRaw, err = decodeStringTableV1(data, int(h.symbolTableOffset), int(h.handleTableOffset), h.symbolCount, ErrCorruptSymbolTable)
	case FormatV2:
		fpRaw, err = decodeStringTableV2(data, int(h.filePathTableOffset), int(h.symbolTableOffset), h.filePathCount, ErrCorruptFilePathTable)
		if err != nil {
			return nil, err
		}

		symRaw, err = decodeStringTableV2(data, int(h.symbolTableOffset), int(h.handleTableOffset), h.symbolCount, ErrCorruptSymbolTable)
	default:
		return nil, ErrUnsupportedVersion
	}

	if err != nil {
		return nil, err
	}

	handleOffsets, err := decodeHandleTable(data, h)
	if err != nil {
		return nil, err
	}

	heap, err := decodeHeap(data, h)
	if err != nil {
		return nil, err
	}

	// Legacy and V1 files have no separate FilePath table; a FilePath
	// leaf's symbol field indexes the same shared table as table keys.
	fpSource := fpRaw
	if fpSource == nil {
		fpSource = symRaw
	}

	syms := valuestore.NewSymbols()

	var remapErr error

	fpCache := make(map[uint32]uint32)
	onFilePath := func(raw uint32) uint32 {
		if idx, ok := fpCache[raw]; ok {
			return idx
		}

		s := ""
		if int(raw) < len(fpSource) {
			s = normalizeSeparators(fpSource[raw], current)
		} else if remapErr == nil {
			remapErr = ErrCorruptFilePathTable
		}

		idx := syms.Intern(s)
		fpCache[raw] = idx

		return idx
	}

	symCache := make(map[uint32]uint32)
	onTableKey := func(raw uint32) uint32 {
		if idx, ok := symCache[raw]; ok {
			return idx
		}

		s := ""
		if int(raw) < len(symRaw) {
			s = symRaw[raw]
		} else if remapErr == nil {
			remapErr = ErrCorruptSymbolTable
		}

		idx := syms.Intern(s)
		symCache[raw] = idx

		return idx
	}

	heap, root := valuestore.RemapSymbols(heap, handleOffsets, h.root, onFilePath, onTableKey)
	if remapErr != nil {
		return nil, remapErr
	}

	store := valuestore.LoadRaw(syms, heap, handleOffsets, root)

	if err := store.VerifyIntegrity(); err != nil {
		return nil, err
	}

	return store, nil
}

func decodeHandleTable(data []byte, h header) ([]uint32, error) {
	start := int(h.handleTableOffset)
	need := int(h.handleCount) * 4

	if start < 0 || need < 0 || start+need > len(data) {
		return nil, ErrCorruptHandleTable
	}

	offsets := make([]uint32, h.handleCount)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(data[start+i*4:])
	}

	return offsets, nil
}

func decodeHeap(data []byte, h header) ([]uint32, error) {
	start := int(h.heapOffset)
	need := int(h.heapWords) * 4

	if start < 0 || need < 0 || start+need > len(data) {
		return nil, ErrTruncated
	}

	heap := make([]uint32, h.heapWords)
	for i := range heap {
		heap[i] = binary.LittleEndian.Uint32(data[start+i*4:])
	}

	return heap, nil
}

// decodeStringTableV2 reads a sequence of (uint32 length, bytes) entries
// from data[pos:end]. Index 0 is the implicit empty string and is not
// stored; count counts it, so count-1 entries follow.
func decodeStringTableV2(data []byte, pos, end int, count uint32, corruptErr error) ([]string, error) {
	strs := make([]string, 0, count)
	strs = append(strs, "")

	for uint32(len(strs)) < count {
		if pos+4 > end {
			return nil, corruptErr
		}

		n := int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4

		if n < 0 || pos+n > end {
			return nil, corruptErr
		}

		strs = append(strs, string(data[pos:pos+n]))
		pos += n
	}

	return strs, nil
}

// decodeStringTableV1 reads a byte-offset table: (count+1) uint32 offsets
// into a bytes blob that immediately follows the offset array, where
// string i spans [offsets[i], offsets[i+1]).
func decodeStringTableV1(data []byte, pos, end int, count uint32, corruptErr error) ([]string, error) {
	n := int(count)
	offsetsLen := (n + 1) * 4

	if pos+offsetsLen > end {
		return nil, corruptErr
	}

	offsets := make([]uint32, n+1)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(data[pos+i*4:])
	}

	blobStart := pos + offsetsLen

	strs := make([]string, 0, n)
	strs = append(strs, "")

	for i := 1; i < n; i++ {
		lo := blobStart + int(offsets[i])
		hi := blobStart + int(offsets[i+1])

		if lo < blobStart || hi > end || lo > hi {
			return nil, corruptErr
		}

		strs = append(strs, string(data[lo:hi]))
	}

	return strs, nil
}
