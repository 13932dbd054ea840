package valuestore

// allocArray allocates a new Array container with the given initial
// capacity (in elements) and count 0.
func (s *Store) allocArray(capacity uint32) Handle {
	h := s.allocate(containerHeaderWords + capacity)
	offset, _ := s.offsetOf(h)
	s.writeHeader(offset, containerHeader{capacity: capacity})

	return h
}

func (s *Store) arrayHeader(n DataNode) (offset uint32, h containerHeader, err error) {
	if n.Type() != TypeArray {
		return 0, containerHeader{}, ErrWrongKind
	}

	offset, err = s.offsetOf(n.Handle())
	if err != nil {
		return 0, containerHeader{}, err
	}

	return offset, s.readHeader(offset), nil
}

// ArrayLen returns the number of elements in the array n.
func (s *Store) ArrayLen(n DataNode) (int, error) {
	_, h, err := s.arrayHeader(n)
	if err != nil {
		return 0, err
	}

	return int(h.count), nil
}

// ArrayGet returns the element at index i of array n.
func (s *Store) ArrayGet(n DataNode, i int) (DataNode, error) {
	offset, h, err := s.arrayHeader(n)
	if err != nil {
		return 0, err
	}

	if i < 0 || uint32(i) >= h.count {
		return 0, ErrOutOfRange
	}

	return DataNode(s.heap[offset+containerHeaderWords+uint32(i)]), nil
}

// ArraySet writes value at index i of array n, growing the array to
// i+1 elements if necessary (new intermediate slots become Null). Any
// DataNode passed as value that lives in this store's heap must be
// protected by a [Store.SuppressGC] scope held by the caller for the
// duration of this call.
func (s *Store) ArraySet(n DataNode, i int, value DataNode) error {
	if i < 0 {
		return ErrOutOfRange
	}

	if i >= MaxArrayLength {
		return ErrTooLarge
	}

	offset, h, err := s.arrayHeader(n)
	if err != nil {
		return err
	}

	needed := uint32(i + 1)
	if needed > h.capacity {
		if err := s.growArray(n.Handle(), &offset, &h, needed); err != nil {
			return err
		}
	}

	for idx := h.count; idx < needed-1; idx++ {
		s.heap[offset+containerHeaderWords+idx] = uint32(Null)
	}

	s.heap[offset+containerHeaderWords+uint32(i)] = uint32(value)

	if needed > h.count {
		h.count = needed
		s.writeHeader(offset, h)
	}

	s.maybeCollectGarbage()

	return nil
}

func (s *Store) growArray(h Handle, offset *uint32, hdr *containerHeader, needed uint32) error {
	newCap := nextArrayCapacity(hdr.capacity, needed)
	if newCap >= MaxArrayLength {
		newCap = MaxArrayLength
	}

	if newCap < needed {
		return ErrTooLarge
	}

	if err := s.reallocate(h, containerHeaderWords+hdr.capacity, containerHeaderWords+newCap); err != nil {
		return err
	}

	newOffset, err := s.offsetOf(h)
	if err != nil {
		return err
	}

	for idx := hdr.capacity; idx < newCap; idx++ {
		s.heap[newOffset+containerHeaderWords+idx] = uint32(Null)
	}

	hdr.capacity = newCap
	*offset = newOffset
	s.writeHeader(newOffset, *hdr)

	return nil
}

func nextArrayCapacity(cur, needed uint32) uint32 {
	if cur == 0 {
		cur = 4
	}

	for cur < needed {
		cur *= 2
	}

	return cur
}

// ArrayErase removes the element at index i, shifting the tail forward.
func (s *Store) ArrayErase(n DataNode, i int) error {
	offset, h, err := s.arrayHeader(n)
	if err != nil {
		return err
	}

	if i < 0 || uint32(i) >= h.count {
		return ErrOutOfRange
	}

	base := offset + containerHeaderWords
	for idx := uint32(i); idx < h.count-1; idx++ {
		s.heap[base+idx] = s.heap[base+idx+1]
	}

	h.count--
	s.heap[base+h.count] = uint32(Null)
	s.writeHeader(offset, h)

	return nil
}

// ArrayResize truncates or null-fills array n to exactly length elements.
func (s *Store) ArrayResize(n DataNode, length int) error {
	if length < 0 {
		return ErrOutOfRange
	}

	if length >= MaxArrayLength {
		return ErrTooLarge
	}

	offset, h, err := s.arrayHeader(n)
	if err != nil {
		return err
	}

	target := uint32(length)

	if target <= h.count {
		base := offset + containerHeaderWords
		for idx := target; idx < h.count; idx++ {
			s.heap[base+idx] = uint32(Null)
		}

		h.count = target
		s.writeHeader(offset, h)

		return nil
	}

	if target > h.capacity {
		if err := s.growArray(n.Handle(), &offset, &h, target); err != nil {
			return err
		}
	}

	base := offset + containerHeaderWords
	for idx := h.count; idx < target; idx++ {
		s.heap[base+idx] = uint32(Null)
	}

	h.count = target
	s.writeHeader(offset, h)
	s.maybeCollectGarbage()

	return nil
}

// allocString allocates a String container holding data.
func (s *Store) allocString(data string) Handle {
	capacity := wordsForStringCapacity(len(data))
	h := s.allocate(containerHeaderWords + capacity)
	offset, _ := s.offsetOf(h)

	s.writeHeader(offset, containerHeader{capacity: capacity, count: uint32(len(data))})
	s.writeStringBytes(offset+containerHeaderWords, data)

	return h
}

func (s *Store) writeStringBytes(base uint32, data string) {
	buf := make([]byte, len(data)+1)
	copy(buf, data)

	for i := 0; i*bytesPerWord < len(buf); i++ {
		var word uint32

		for b := 0; b < bytesPerWord; b++ {
			idx := i*bytesPerWord + b
			if idx < len(buf) {
				word |= uint32(buf[idx]) << (8 * b)
			}
		}

		s.heap[base+uint32(i)] = word
	}
}

// NewString constructs a String value and appends it to the heap.
func (s *Store) NewString(data string) DataNode {
	h := s.allocString(data)
	s.maybeCollectGarbage()

	return NewStringHandle(h)
}

// StringValue returns the Go string held by n. Only meaningful when
// n.Type() == TypeString.
func (s *Store) StringValue(n DataNode) (string, error) {
	if n.Type() != TypeString {
		return "", ErrWrongKind
	}

	offset, err := s.offsetOf(n.Handle())
	if err != nil {
		return "", err
	}

	h := s.readHeader(offset)
	base := offset + containerHeaderWords
	buf := make([]byte, h.count)

	for i := uint32(0); i < h.count; i++ {
		word := s.heap[base+i/bytesPerWord]
		shift := 8 * (i % bytesPerWord)
		buf[i] = byte(word >> shift)
	}

	return string(buf), nil
}
