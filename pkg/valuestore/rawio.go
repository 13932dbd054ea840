package valuestore

// RawHeap returns the store's payload heap. The returned slice aliases the
// store's internal state and must be treated as read-only; it is exposed
// for pkg/binfmt's save path, which, after a CompactHandleOffsets pass,
// writes out a copy of it with symbol indices remapped.
func (s *Store) RawHeap() []uint32 {
	return s.heap
}

// RawRoot returns the root value's raw bit pattern.
func (s *Store) RawRoot() uint32 {
	return uint32(s.root)
}

// RawHandleOffsets returns the payload-heap offset of every handle from
// index 0 up to (but not including) the first unused index. Meaningful
// only immediately after [Store.CompactHandleOffsets], whose whole point is
// to make this range dense and gap-free so it can be written out as a flat
// array (spec §4.3, §4.4).
func (s *Store) RawHandleOffsets() []uint32 {
	offsets := make([]uint32, s.allocatedHandles)
	for i := range offsets {
		offsets[i] = s.handles[i].offset()
	}

	return offsets
}

// RemapSymbols walks the container tree described by heap/handleOffsets/
// root (the same raw shape RawHeap/RawHandleOffsets/RawRoot expose, and
// LoadRaw consumes) and returns a copy of heap, plus a possibly-rewritten
// root word, with every FilePath leaf's symbol field passed through
// onFilePath and every table key passed through onTableKey.
//
// This is the shared machinery behind pkg/binfmt's save-time remap of the
// shared runtime symbol space into the format's two separately-numbered
// on-disk string tables, and its load-time reverse remap back into a
// runtime [Symbols] instance (spec §4.3, §4.4, §9's dual-remap note).
func RemapSymbols(heap []uint32, handleOffsets []uint32, root uint32, onFilePath, onTableKey func(uint32) uint32) (newHeap []uint32, newRoot uint32) {
	out := append([]uint32(nil), heap...)
	visited := make(map[uint32]bool, len(handleOffsets))

	patch := func(n DataNode) DataNode {
		if n.Type() != TypeFilePath {
			return n
		}

		dir, kind, sym := n.FilePathParts()

		return NewFilePath(dir, kind, onFilePath(sym))
	}

	var visit func(n DataNode)

	visit = func(n DataNode) {
		if !n.Type().IsByReference() {
			return
		}

		h := n.Handle()
		if h.Index >= uint32(len(handleOffsets)) || visited[h.Index] {
			return
		}

		visited[h.Index] = true

		offset := handleOffsets[h.Index]

		switch n.Type() {
		case TypeArray:
			hdr := decodeContainerHeader(out[offset], out[offset+1])
			base := offset + containerHeaderWords

			for i := uint32(0); i < hdr.count; i++ {
				w := DataNode(out[base+i])
				out[base+i] = uint32(patch(w))
				visit(w)
			}

		case TypeTable:
			hdr := decodeContainerHeader(out[offset], out[offset+1])
			total := hdr.capacity
			if hdr.hasNullStorage {
				total++
			}

			valuesBase := offset + containerHeaderWords
			keysBase := valuesBase + total

			for i := uint32(0); i < hdr.capacity; i++ {
				k := out[keysBase+i]
				if k == 0 {
					continue
				}

				out[keysBase+i] = onTableKey(k)

				w := DataNode(out[valuesBase+i])
				out[valuesBase+i] = uint32(patch(w))
				visit(w)
			}

			if hdr.hasNull {
				w := DataNode(out[valuesBase+hdr.capacity])
				out[valuesBase+hdr.capacity] = uint32(patch(w))
				visit(w)
			}
		}
	}

	rootNode := DataNode(root)
	visit(rootNode)

	return out, uint32(patch(rootNode))
}

// LoadRaw reconstructs a Store directly from a flat heap, a dense handle
// offset table (handle i has generation 0 and offset handleOffsets[i]), and
// a root bit pattern. This is the inverse of RawHeap/RawHandleOffsets/
// RawRoot and is used by pkg/binfmt after it has parsed a file's heap and
// handle sections.
func LoadRaw(syms Symbols, heap []uint32, handleOffsets []uint32, root uint32) *Store {
	handles := make([]handleTableEntry, len(handleOffsets))
	for i, off := range handleOffsets {
		handles[i] = packHandleEntry(off, 0)
	}

	return &Store{
		root:             DataNode(root),
		handles:          handles,
		heap:             heap,
		allocatedHandles: uint32(len(handleOffsets)),
		nextHandle:       uint32(len(handleOffsets)),
		syms:             syms,
	}
}
