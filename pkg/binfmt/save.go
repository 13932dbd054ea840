package binfmt

import (
	"bytes"
	"encoding/binary"

	"github.com/natefinch/atomic"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// Save writes store's current root to path, atomically: the file is
// written to a temporary path in the same directory and renamed into
// place, so a crash or concurrent reader never observes a half-written
// file (grounded on the teacher's use of github.com/natefinch/atomic for
// every cache/ticket write).
//
// target selects the directory separator FilePath relative names are
// normalized to, so a file saved for one platform loads correctly on that
// platform regardless of what separator the running process's OS uses
// (spec §4.4, §8 scenario 2).
//
// Save always writes [CurrentVersion]. It first calls
// [valuestore.Store.CollectGarbage] and then
// [valuestore.Store.CompactHandleOffsets] on store; the latter renumbers
// every handle densely, so any handle a caller is still holding into store
// becomes unreliable after this call (same caveat CompactHandleOffsets
// itself documents).
func Save(path string, store *valuestore.Store, target Platform) error {
	store.CollectGarbage()
	store.CompactHandleOffsets()

	heap := store.RawHeap()
	handleOffsets := store.RawHandleOffsets()
	syms := store.Symbols()

	// The on-disk format keeps a FilePath table and a Symbol table as two
	// separately-numbered sequences (spec §4.3), unlike the single shared
	// runtime Symbols space a Store actually uses. Walk the tree once and
	// assign each table dense indices in first-sight order, remapping
	// FilePath leaves into the first and table keys into the second.
	fpStrings := []string{""}
	fpIndex := make(map[uint32]uint32)

	symStrings := []string{""}
	symIndex := make(map[uint32]uint32)

	onFilePath := func(sym uint32) uint32 {
		if idx, ok := fpIndex[sym]; ok {
			return idx
		}

		s, _ := syms.Lookup(sym)
		s = normalizeSeparators(s, target)

		idx := uint32(len(fpStrings))
		fpStrings = append(fpStrings, s)
		fpIndex[sym] = idx

		return idx
	}

	onTableKey := func(sym uint32) uint32 {
		if idx, ok := symIndex[sym]; ok {
			return idx
		}

		s, _ := syms.Lookup(sym)

		idx := uint32(len(symStrings))
		symStrings = append(symStrings, s)
		symIndex[sym] = idx

		return idx
	}

	remappedHeap, remappedRoot := valuestore.RemapSymbols(heap, handleOffsets, store.RawRoot(), onFilePath, onTableKey)

	fpBytes := encodeStringTableV2(fpStrings)
	symBytes := encodeStringTableV2(symStrings)

	headerLen := uint32(headerSize)
	filePathTableOffset := headerLen
	symbolTableOffset := filePathTableOffset + uint32(len(fpBytes))
	handleTableOffset := symbolTableOffset + uint32(len(symBytes))
	heapOffset := handleTableOffset + uint32(len(handleOffsets))*4

	h := header{
		version:             CurrentVersion,
		symbolCount:         uint32(len(symStrings)),
		handleCount:         uint32(len(handleOffsets)),
		heapWords:           uint32(len(remappedHeap)),
		root:                remappedRoot,
		symbolTableOffset:   symbolTableOffset,
		handleTableOffset:   handleTableOffset,
		heapOffset:          heapOffset,
		filePathCount:       uint32(len(fpStrings)),
		filePathTableOffset: filePathTableOffset,
	}

	var buf bytes.Buffer
	buf.Write(encodeHeader(h))
	buf.Write(fpBytes)
	buf.Write(symBytes)

	offBuf := make([]byte, 4)
	for _, off := range handleOffsets {
		binary.LittleEndian.PutUint32(offBuf, off)
		buf.Write(offBuf)
	}

	heapBuf := make([]byte, 4)
	for _, w := range remappedHeap {
		binary.LittleEndian.PutUint32(heapBuf, w)
		buf.Write(heapBuf)
	}

	return atomic.WriteFile(path, bytes.NewReader(buf.Bytes()))
}

// encodeStringTableV2 writes strings[1:] (index 0 is the implicit empty
// string and is never stored) as a sequence of uint32-length-prefixed
// UTF-8 entries.
func encodeStringTableV2(strings []string) []byte {
	var buf bytes.Buffer

	lenBuf := make([]byte, 4)

	for _, s := range strings[1:] {
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(s)))
		buf.Write(lenBuf)
		buf.WriteString(s)
	}

	return buf.Bytes()
}
