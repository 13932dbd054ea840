package valuestore

// Compact rebuilds both arenas: it walks every value reachable from the
// root, copies reachable payloads into a fresh heap, and rewrites handle
// offsets. Handle indices and generations are preserved so that any handle
// a caller is still holding either keeps working (if reachable) or starts
// failing [Store.IsValid] (if not) — only CompactHandleOffsets renumbers
// indices.
//
// When compactContainers is true, arrays are additionally right-sized to
// their count and tables to the smallest power of two (at least the
// table minimum) that keeps count+1 under a 75% load factor. Table
// right-sizing reinserts entries in two passes (home-position first, then
// displaced-by-probing) so that Compact is idempotent (spec §4.1, §8).
func (s *Store) Compact(compactContainers bool) {
	c := &compactor{
		s:                 s,
		newHeap:           make([]uint32, 0, len(s.heap)),
		newOffsetOf:       make(map[uint32]uint32),
		compactContainers: compactContainers,
	}

	c.visit(s.root)

	for i := range s.handles {
		idx := uint32(i)
		if s.handles[idx].free() {
			continue
		}

		if newOffset, ok := c.newOffsetOf[idx]; ok {
			s.handles[idx] = packHandleEntry(newOffset, s.handles[idx].generation())
		} else {
			s.handles[idx] = packHandleEntry(handleOffsetFree, s.handles[idx].generation())
			s.allocatedHandles--
		}
	}

	s.heap = c.newHeap
	s.heapBytesAfterLastCollection = len(s.heap) * 4
}

type compactor struct {
	s                 *Store
	newHeap           []uint32
	newOffsetOf       map[uint32]uint32
	compactContainers bool
}

func (c *compactor) visit(n DataNode) {
	if !n.Type().IsByReference() {
		return
	}

	h := n.Handle()
	if _, done := c.newOffsetOf[h.Index]; done {
		return
	}

	oldOffset, err := c.s.offsetOf(h)
	if err != nil {
		return
	}

	switch n.Type() {
	case TypeString:
		c.copyString(h, oldOffset)
	case TypeArray:
		c.copyArray(h, oldOffset)
	case TypeTable:
		c.copyTable(h, oldOffset)
	default:
		// Scalar by-reference kinds carry no children: Int32Big, UInt32,
		// and Float32 are one word, Int64 and UInt64 are two.
		words := 1
		if n.Type() == TypeInt64 || n.Type() == TypeUInt64 {
			words = 2
		}

		c.newOffsetOf[h.Index] = uint32(len(c.newHeap))
		c.newHeap = append(c.newHeap, c.s.heap[oldOffset:oldOffset+uint32(words)]...)
	}
}

func (c *compactor) copyString(h Handle, oldOffset uint32) {
	hdr := c.s.readHeader(oldOffset)

	capacity := hdr.capacity
	if c.compactContainers {
		capacity = wordsForStringCapacity(int(hdr.count))
	}

	newOffset := uint32(len(c.newHeap))
	c.newOffsetOf[h.Index] = newOffset

	newHdr := containerHeader{capacity: capacity, count: hdr.count}
	w0, w1 := newHdr.encode()
	c.newHeap = append(c.newHeap, w0, w1)
	c.newHeap = append(c.newHeap, c.s.heap[oldOffset+containerHeaderWords:oldOffset+containerHeaderWords+capacity]...)
}

func (c *compactor) copyArray(h Handle, oldOffset uint32) {
	hdr := c.s.readHeader(oldOffset)

	capacity := hdr.capacity
	if c.compactContainers {
		capacity = hdr.count
	}

	newOffset := uint32(len(c.newHeap))
	c.newOffsetOf[h.Index] = newOffset

	newHdr := containerHeader{capacity: capacity, count: hdr.count}
	w0, w1 := newHdr.encode()
	c.newHeap = append(c.newHeap, w0, w1)

	base := oldOffset + containerHeaderWords
	for i := uint32(0); i < hdr.count; i++ {
		word := c.s.heap[base+i]
		c.newHeap = append(c.newHeap, word)
		c.visit(DataNode(word))
	}

	for i := hdr.count; i < capacity; i++ {
		c.newHeap = append(c.newHeap, uint32(Null))
	}
}

func (c *compactor) copyTable(h Handle, oldOffset uint32) {
	hdr := c.s.readHeader(oldOffset)

	oldTotal := hdr.capacity
	if hdr.hasNullStorage {
		oldTotal++
	}

	oldValuesBase := oldOffset + containerHeaderWords
	oldKeysBase := oldValuesBase + oldTotal

	type kv struct {
		key uint32
		val uint32
	}

	entries := make([]kv, 0, hdr.count)

	for i := uint32(0); i < hdr.capacity; i++ {
		k := c.s.heap[oldKeysBase+i]
		if k != 0 {
			entries = append(entries, kv{k, c.s.heap[oldValuesBase+i]})
		}
	}

	var nullVal uint32

	hasNull := hdr.hasNull
	if hasNull {
		nullVal = c.s.heap[oldValuesBase+hdr.capacity]
	}

	for _, e := range entries {
		c.visit(DataNode(e.val))
	}

	if hasNull {
		c.visit(DataNode(nullVal))
	}

	newCapacity := hdr.capacity
	if c.compactContainers {
		newCapacity = tableCapacityFor(uint32(len(entries)))
	}

	hasNullStorage := hdr.hasNullStorage && (!c.compactContainers || hasNull)

	newTotal := newCapacity
	if hasNullStorage {
		newTotal++
	}

	newOffset := uint32(len(c.newHeap))
	c.newOffsetOf[h.Index] = newOffset

	newHdr := containerHeader{capacity: newCapacity, count: uint32(len(entries)), hasNullStorage: hasNullStorage, hasNull: hasNull}
	w0, w1 := newHdr.encode()
	c.newHeap = append(c.newHeap, w0, w1)

	valuesStart := uint32(len(c.newHeap))
	c.newHeap = append(c.newHeap, make([]uint32, newTotal)...)
	keysStart := uint32(len(c.newHeap))
	c.newHeap = append(c.newHeap, make([]uint32, newTotal)...)

	for i := uint32(0); i < newTotal; i++ {
		c.newHeap[valuesStart+i] = uint32(Null)
		c.newHeap[keysStart+i] = 0
	}

	occupied := make([]bool, newCapacity)
	var displaced []kv

	for _, e := range entries {
		home := tableKeyHash(e.key, newCapacity)
		if !occupied[home] {
			c.newHeap[keysStart+home] = e.key
			c.newHeap[valuesStart+home] = e.val
			occupied[home] = true
		} else {
			displaced = append(displaced, e)
		}
	}

	for _, e := range displaced {
		pos := tableKeyHash(e.key, newCapacity)
		for occupied[pos] {
			pos = (pos + 1) % newCapacity
		}

		c.newHeap[keysStart+pos] = e.key
		c.newHeap[valuesStart+pos] = e.val
		occupied[pos] = true
	}

	if hasNull {
		c.newHeap[valuesStart+newCapacity] = nullVal
	}
}

// CompactHandleOffsets renumbers every reachable handle to a dense,
// gap-free index space, assigned in depth-first encounter order starting
// from the root. Every DataNode word (in the root and in every reachable
// container) that references a renumbered handle is rewritten in place.
//
// Only valid when no handle outstanding outside this store will be used
// again: indices change, so a caller-held Handle from before this call can
// silently refer to a different (or freed) value afterwards. This is the
// caller's responsibility to guarantee. pkg/binfmt's Save calls this on the
// store it is given, not on a copy.
func (s *Store) CompactHandleOffsets() {
	remap := make(map[uint32]uint32)
	visited := make(map[uint32]bool)

	var order []uint32

	var visit func(n DataNode) DataNode

	visit = func(n DataNode) DataNode {
		if !n.Type().IsByReference() {
			return n
		}

		h := n.Handle()

		newIdx, ok := remap[h.Index]
		if !ok {
			newIdx = uint32(len(order))
			remap[h.Index] = newIdx
			order = append(order, h.Index)
		}

		if !visited[h.Index] {
			visited[h.Index] = true
			s.patchChildren(n, visit)
		}

		tag := uint32(n) & tagMask
		newHandle := Handle{Index: newIdx, Generation: h.Generation}

		return DataNode(tag | newHandle.encode()<<5)
	}

	s.root = visit(s.root)

	newLen := nextPow2u32(uint32(len(order)))
	if newLen == 0 {
		newLen = 1
	}

	newHandles := make([]handleTableEntry, newLen)
	for i := range newHandles {
		newHandles[i] = freeHandleEntry
	}

	for _, oldIdx := range order {
		newIdx := remap[oldIdx]
		e := s.handles[oldIdx]
		newHandles[newIdx] = packHandleEntry(e.offset(), e.generation())
	}

	s.handles = newHandles
	s.allocatedHandles = uint32(len(order))
	s.nextHandle = s.allocatedHandles
}

// patchChildren rewrites every child DataNode word stored under n's
// container payload using visit, in place.
func (s *Store) patchChildren(n DataNode, visit func(DataNode) DataNode) {
	switch n.Type() {
	case TypeArray:
		offset, err := s.offsetOf(n.Handle())
		if err != nil {
			return
		}

		hdr := s.readHeader(offset)
		base := offset + containerHeaderWords

		for i := uint32(0); i < hdr.count; i++ {
			s.heap[base+i] = uint32(visit(DataNode(s.heap[base+i])))
		}

	case TypeTable:
		offset, err := s.offsetOf(n.Handle())
		if err != nil {
			return
		}

		hdr := s.readHeader(offset)
		total := hdr.capacity

		if hdr.hasNullStorage {
			total++
		}

		valuesBase := offset + containerHeaderWords
		keysBase := valuesBase + total

		for i := uint32(0); i < hdr.capacity; i++ {
			if s.heap[keysBase+i] == 0 {
				continue
			}

			s.heap[valuesBase+i] = uint32(visit(DataNode(s.heap[valuesBase+i])))
		}

		if hdr.hasNull {
			s.heap[valuesBase+hdr.capacity] = uint32(visit(DataNode(s.heap[valuesBase+hdr.capacity])))
		}
	}
}

// VerifyIntegrity recursively walks the store checking the structural
// invariants spec §4.4 calls out for untrusted loads: defined type tags,
// in-range handle indices, in-bounds offsets, count <= capacity, and
// string capacity sufficient for count+1 bytes. It never mutates the
// store.
func (s *Store) VerifyIntegrity() error {
	visited := make(map[uint32]bool)
	return s.verifyNode(s.root, visited)
}

func (s *Store) verifyNode(n DataNode, visited map[uint32]bool) error {
	if !n.Type().IsByReference() {
		return nil
	}

	h := n.Handle()
	if int(h.Index) >= len(s.handles) {
		return ErrInvalidHandle
	}

	if visited[h.Index] {
		return nil
	}

	visited[h.Index] = true

	offset, err := s.offsetOf(h)
	if err != nil {
		return err
	}

	switch n.Type() {
	case TypeString:
		if offset+containerHeaderWords > uint32(len(s.heap)) {
			return ErrCorruptContainer
		}

		hdr := s.readHeader(offset)
		if offset+containerHeaderWords+hdr.capacity > uint32(len(s.heap)) {
			return ErrCorruptContainer
		}

		if hdr.count+1 > hdr.capacity*bytesPerWord {
			return ErrCorruptContainer
		}

	case TypeArray:
		if offset+containerHeaderWords > uint32(len(s.heap)) {
			return ErrCorruptContainer
		}

		hdr := s.readHeader(offset)
		if hdr.count > hdr.capacity {
			return ErrCorruptContainer
		}

		if offset+containerHeaderWords+hdr.capacity > uint32(len(s.heap)) {
			return ErrCorruptContainer
		}

		base := offset + containerHeaderWords

		for i := uint32(0); i < hdr.count; i++ {
			if err := s.verifyNode(DataNode(s.heap[base+i]), visited); err != nil {
				return err
			}
		}

	case TypeTable:
		if offset+containerHeaderWords > uint32(len(s.heap)) {
			return ErrCorruptContainer
		}

		hdr := s.readHeader(offset)
		if hdr.count > hdr.capacity {
			return ErrCorruptContainer
		}

		total := hdr.capacity
		if hdr.hasNullStorage {
			total++
		}

		if offset+containerHeaderWords+2*total > uint32(len(s.heap)) {
			return ErrCorruptContainer
		}

		valuesBase := offset + containerHeaderWords
		keysBase := valuesBase + total

		for i := uint32(0); i < hdr.capacity; i++ {
			if s.heap[keysBase+i] == 0 {
				continue
			}

			if err := s.verifyNode(DataNode(s.heap[valuesBase+i]), visited); err != nil {
				return err
			}
		}

		if hdr.hasNull {
			if err := s.verifyNode(DataNode(s.heap[valuesBase+hdr.capacity]), visited); err != nil {
				return err
			}
		}

	case TypeInt32Big, TypeUInt32, TypeFloat32:
		if offset >= uint32(len(s.heap)) {
			return ErrCorruptContainer
		}

	case TypeInt64, TypeUInt64:
		if offset+1 >= uint32(len(s.heap)) {
			return ErrCorruptContainer
		}
	}

	return nil
}
