package valuestore

// Tables are open-addressed with linear probing, sized so capacity is
// always a power of two. The empty-symbol key (index 0, "the null key")
// would otherwise be indistinguishable from an unoccupied slot, so it
// lives in a dedicated tail slot outside the open-addressing array (spec
// §3.3, §4.2, §9).
//
// Layout after the two header words: `capacity + hasNullStorage` value
// words, followed by `capacity + hasNullStorage` parallel key words. When
// present, the null-key slot is always the last of each array.

const tableMinCapacity = 2

// tableKeyHash spreads a symbol index across a power-of-two capacity using
// Fibonacci hashing. Order-independence of the resulting storage layout is
// exactly what spec §8's hash scenario (and the probe-invariant property of
// spec §8) exercises.
func tableKeyHash(key uint32, capacity uint32) uint32 {
	const fib32 = 2654435769
	return (key * fib32) >> 1 >> (31 - log2(capacity))
}

func log2(x uint32) uint32 {
	var n uint32
	for x > 1 {
		x >>= 1
		n++
	}

	return n
}

// allocTable allocates a new Table container with the given element-count
// hint, sized to satisfy the load-factor rule immediately.
func (s *Store) allocTable(hintCount uint32) Handle {
	capacity := tableCapacityFor(hintCount)
	h := s.allocate(containerHeaderWords + 2*capacity)
	offset, _ := s.offsetOf(h)

	s.writeHeader(offset, containerHeader{capacity: capacity})
	s.clearTableSlots(offset, capacity, false)

	return h
}

func tableCapacityFor(count uint32) uint32 {
	cap := uint32(tableMinCapacity)
	for float64(count+1) >= float64(cap)*0.75 {
		cap = nextPow2u32(cap + 2)
	}

	return cap
}

func nextPow2u32(x uint32) uint32 {
	if x == 0 {
		return 1
	}

	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16

	return x + 1
}

func (s *Store) clearTableSlots(offset, capacity uint32, hasNullStorage bool) {
	total := capacity
	if hasNullStorage {
		total++
	}

	valuesBase := offset + containerHeaderWords
	keysBase := valuesBase + total

	for i := uint32(0); i < total; i++ {
		s.heap[valuesBase+i] = uint32(Null)
		s.heap[keysBase+i] = 0
	}
}

type tableLayout struct {
	offset     uint32
	header     containerHeader
	capacity   uint32
	valuesBase uint32
	keysBase   uint32
}

func (s *Store) tableLayoutOf(n DataNode) (tableLayout, error) {
	if n.Type() != TypeTable {
		return tableLayout{}, ErrWrongKind
	}

	offset, err := s.offsetOf(n.Handle())
	if err != nil {
		return tableLayout{}, err
	}

	h := s.readHeader(offset)
	total := h.capacity
	if h.hasNullStorage {
		total++
	}

	return tableLayout{
		offset:     offset,
		header:     h,
		capacity:   h.capacity,
		valuesBase: offset + containerHeaderWords,
		keysBase:   offset + containerHeaderWords + total,
	}, nil
}

// TableLen returns the number of occupied keys in table n, including the
// null key if present.
func (s *Store) TableLen(n DataNode) (int, error) {
	t, err := s.tableLayoutOf(n)
	if err != nil {
		return 0, err
	}

	count := int(t.header.count)
	if t.header.hasNull {
		count++
	}

	return count, nil
}

// TableGet returns the value stored under key in table n. found is false
// if key is not present.
func (s *Store) TableGet(n DataNode, key uint32) (value DataNode, found bool, err error) {
	t, err := s.tableLayoutOf(n)
	if err != nil {
		return 0, false, err
	}

	if key == 0 {
		if !t.header.hasNull {
			return 0, false, nil
		}

		return DataNode(s.heap[t.valuesBase+t.capacity]), true, nil
	}

	pos, ok := s.tableFind(t, key)
	if !ok {
		return 0, false, nil
	}

	return DataNode(s.heap[t.valuesBase+pos]), true, nil
}

// tableFind returns the slot index holding key, if present.
func (s *Store) tableFind(t tableLayout, key uint32) (uint32, bool) {
	home := tableKeyHash(key, t.capacity)
	pos := home

	for i := uint32(0); i < t.capacity; i++ {
		k := s.heap[t.keysBase+pos]
		if k == 0 {
			return 0, false
		}

		if k == key {
			return pos, true
		}

		pos = (pos + 1) % t.capacity
	}

	return 0, false
}

// TableSet inserts or updates key in table n. Any DataNode passed as value
// that lives in this store's heap must be protected by a
// [Store.SuppressGC] scope held by the caller for the duration of this
// call (it may itself be reallocated by the growth this triggers).
func (s *Store) TableSet(n DataNode, key uint32, value DataNode) error {
	t, err := s.tableLayoutOf(n)
	if err != nil {
		return err
	}

	if key == 0 {
		if !t.header.hasNull {
			if err := s.growTableForNullSlot(n.Handle(), &t); err != nil {
				return err
			}

			t.header.hasNull = true
		}

		s.heap[t.valuesBase+t.capacity] = uint32(value)
		s.writeHeader(t.offset, t.header)
		s.maybeCollectGarbage()

		return nil
	}

	if pos, ok := s.tableFind(t, key); ok {
		s.heap[t.valuesBase+pos] = uint32(value)
		return nil
	}

	if float64(t.header.count+1) >= float64(t.capacity)*0.75 {
		if err := s.growTable(n.Handle(), &t); err != nil {
			return err
		}
	}

	s.tableInsert(t, key, value)
	t.header.count++
	s.writeHeader(t.offset, t.header)
	s.maybeCollectGarbage()

	return nil
}

// tableInsert places (key, value) using the anti-clustering rule (spec
// §4.2): probing from key's home slot, an occupied slot whose occupant is
// itself displaced from its own home gets displaced again (and reinserted
// by continued probing); a slot occupied by an entry still at its own home
// is left alone and probing continues.
func (s *Store) tableInsert(t tableLayout, key uint32, value DataNode) {
	pos := tableKeyHash(key, t.capacity)
	curKey, curVal := key, value

	for {
		existingKey := s.heap[t.keysBase+pos]
		if existingKey == 0 {
			s.heap[t.keysBase+pos] = curKey
			s.heap[t.valuesBase+pos] = uint32(curVal)

			return
		}

		existingHome := tableKeyHash(existingKey, t.capacity)
		if existingHome != pos {
			existingVal := DataNode(s.heap[t.valuesBase+pos])
			s.heap[t.keysBase+pos] = curKey
			s.heap[t.valuesBase+pos] = uint32(curVal)
			curKey, curVal = existingKey, existingVal
		}

		pos = (pos + 1) % t.capacity
	}
}

func (s *Store) growTable(h Handle, t *tableLayout) error {
	newCap := nextPow2u32(t.capacity + 2)
	return s.resizeTable(h, t, newCap, t.header.hasNullStorage)
}

func (s *Store) growTableForNullSlot(h Handle, t *tableLayout) error {
	return s.resizeTable(h, t, t.capacity, true)
}

// resizeTable rebuilds the table at a new capacity (and/or with null
// storage newly reserved), reinserting every existing entry. This is the
// same machinery Store.Compact's table pass uses for "compact containers"
// right-sizing, factored here so growth and compaction agree.
func (s *Store) resizeTable(h Handle, t *tableLayout, newCapacity uint32, hasNullStorage bool) error {
	oldTotal := t.capacity
	if t.header.hasNullStorage {
		oldTotal++
	}

	newTotal := newCapacity
	if hasNullStorage {
		newTotal++
	}

	type entry struct {
		key uint32
		val DataNode
	}

	entries := make([]entry, 0, t.header.count)
	for i := uint32(0); i < t.capacity; i++ {
		k := s.heap[t.keysBase+i]
		if k != 0 {
			entries = append(entries, entry{k, DataNode(s.heap[t.valuesBase+i])})
		}
	}

	var nullVal DataNode

	hadNull := t.header.hasNull
	if hadNull {
		nullVal = DataNode(s.heap[t.valuesBase+t.capacity])
	}

	if err := s.reallocate(h, containerHeaderWords+2*oldTotal, containerHeaderWords+2*newTotal); err != nil {
		return err
	}

	offset, err := s.offsetOf(h)
	if err != nil {
		return err
	}

	s.clearTableSlots(offset, newCapacity, hasNullStorage)

	newT := tableLayout{
		offset:     offset,
		capacity:   newCapacity,
		valuesBase: offset + containerHeaderWords,
		keysBase:   offset + containerHeaderWords + newTotal,
		header:     t.header,
	}
	newT.header.capacity = newCapacity
	newT.header.hasNullStorage = hasNullStorage

	for _, e := range entries {
		s.tableInsert(newT, e.key, e.val)
	}

	if hadNull {
		s.heap[newT.valuesBase+newCapacity] = uint32(nullVal)
	}

	newT.header.hasNullStorage = hasNullStorage
	s.writeHeader(offset, newT.header)

	*t = newT
	t.header.hasNullStorage = hasNullStorage

	return nil
}

// TableErase removes key from table n. Erasing an absent key is a no-op
// success (not an error) per spec §4.6's ApplyDiff-adjacent semantics.
func (s *Store) TableErase(n DataNode, key uint32) error {
	t, err := s.tableLayoutOf(n)
	if err != nil {
		return err
	}

	if key == 0 {
		if t.header.hasNull {
			t.header.hasNull = false
			s.heap[t.valuesBase+t.capacity] = uint32(Null)
			s.writeHeader(t.offset, t.header)
		}

		return nil
	}

	pos, ok := s.tableFind(t, key)
	if !ok {
		return nil
	}

	s.heap[t.keysBase+pos] = 0
	s.heap[t.valuesBase+pos] = uint32(Null)

	next := (pos + 1) % t.capacity
	for {
		k := s.heap[t.keysBase+next]
		if k == 0 {
			break
		}

		v := DataNode(s.heap[t.valuesBase+next])
		s.heap[t.keysBase+next] = 0
		s.heap[t.valuesBase+next] = uint32(Null)

		s.tableInsert(t, k, v)

		next = (next + 1) % t.capacity
	}

	t.header.count--
	s.writeHeader(t.offset, t.header)

	return nil
}

// TableEntry is one (key, value) pair yielded by [Store.TableIterate], in
// storage order (regular slots in probe-table order, then the null-key
// slot last if present).
type TableEntry struct {
	Key   uint32
	Value DataNode
}

// TableIterate calls yield for every entry in table n, in storage order.
// Iteration stops early if yield returns false.
func (s *Store) TableIterate(n DataNode, yield func(TableEntry) bool) error {
	t, err := s.tableLayoutOf(n)
	if err != nil {
		return err
	}

	for i := uint32(0); i < t.capacity; i++ {
		k := s.heap[t.keysBase+i]
		if k == 0 {
			continue
		}

		if !yield(TableEntry{Key: k, Value: DataNode(s.heap[t.valuesBase+i])}) {
			return nil
		}
	}

	if t.header.hasNull {
		yield(TableEntry{Key: 0, Value: DataNode(s.heap[t.valuesBase+t.capacity])})
	}

	return nil
}
