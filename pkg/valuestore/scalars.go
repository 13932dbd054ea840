package valuestore

import "math"

// allocScalar1 allocates a single-word by-reference payload.
func (s *Store) allocScalar1(word uint32) Handle {
	h := s.allocate(1)
	offset, _ := s.offsetOf(h)
	s.heap[offset] = word

	return h
}

// allocScalar2 allocates a two-word (64-bit) by-reference payload, stored
// low word first.
func (s *Store) allocScalar2(lo, hi uint32) Handle {
	h := s.allocate(2)
	offset, _ := s.offsetOf(h)
	s.heap[offset] = lo
	s.heap[offset+1] = hi

	return h
}

// NewInt32 constructs an Int32Small DataNode when v fits in 27 bits, or
// else allocates an Int32Big handle.
func (s *Store) NewInt32(v int32) DataNode {
	if FitsInt32Small(v) {
		return NewInt32Small(v)
	}

	h := s.allocScalar1(uint32(v))
	s.maybeCollectGarbage()

	return NewInt32BigHandle(h)
}

// Int32BigValue returns the payload of an Int32Big value. Only meaningful
// when n.Type() == TypeInt32Big.
func (s *Store) Int32BigValue(n DataNode) (int32, error) {
	if n.Type() != TypeInt32Big {
		return 0, ErrWrongKind
	}

	offset, err := s.offsetOf(n.Handle())
	if err != nil {
		return 0, err
	}

	return int32(s.heap[offset]), nil
}

// NewUInt32 allocates a UInt32 handle holding v. UInt32 values are always
// by-reference: unlike signed integers there is no small-inline variant
// (spec §3.1).
func (s *Store) NewUInt32(v uint32) DataNode {
	h := s.allocScalar1(v)
	s.maybeCollectGarbage()

	return NewUInt32Handle(h)
}

// UInt32Value returns the payload of a UInt32 value. Only meaningful when
// n.Type() == TypeUInt32.
func (s *Store) UInt32Value(n DataNode) (uint32, error) {
	if n.Type() != TypeUInt32 {
		return 0, ErrWrongKind
	}

	offset, err := s.offsetOf(n.Handle())
	if err != nil {
		return 0, err
	}

	return s.heap[offset], nil
}

// NewInt64 allocates an Int64 handle holding v.
func (s *Store) NewInt64(v int64) DataNode {
	h := s.allocScalar2(uint32(uint64(v)), uint32(uint64(v)>>32))
	s.maybeCollectGarbage()

	return NewInt64Handle(h)
}

// Int64Value returns the payload of an Int64 value. Only meaningful when
// n.Type() == TypeInt64.
func (s *Store) Int64Value(n DataNode) (int64, error) {
	if n.Type() != TypeInt64 {
		return 0, ErrWrongKind
	}

	offset, err := s.offsetOf(n.Handle())
	if err != nil {
		return 0, err
	}

	return int64(uint64(s.heap[offset]) | uint64(s.heap[offset+1])<<32), nil
}

// NewUInt64 allocates a UInt64 handle holding v.
func (s *Store) NewUInt64(v uint64) DataNode {
	h := s.allocScalar2(uint32(v), uint32(v>>32))
	s.maybeCollectGarbage()

	return NewUInt64Handle(h)
}

// UInt64Value returns the payload of a UInt64 value. Only meaningful when
// n.Type() == TypeUInt64.
func (s *Store) UInt64Value(n DataNode) (uint64, error) {
	if n.Type() != TypeUInt64 {
		return 0, ErrWrongKind
	}

	offset, err := s.offsetOf(n.Handle())
	if err != nil {
		return 0, err
	}

	return uint64(s.heap[offset]) | uint64(s.heap[offset+1])<<32, nil
}

// NewFloat32 encodes f inline as Float31 when lossless, or else allocates a
// full-precision Float32 handle (spec §3.1).
func (s *Store) NewFloat32(f float32) DataNode {
	if n, ok := NewFloat(f); ok {
		return n
	}

	h := s.allocScalar1(math.Float32bits(f))
	s.maybeCollectGarbage()

	return NewFloat32Handle(h)
}

// Float32HandleValue returns the payload of a by-reference Float32 value.
// Only meaningful when n.Type() == TypeFloat32.
func (s *Store) Float32HandleValue(n DataNode) (float32, error) {
	if n.Type() != TypeFloat32 {
		return 0, ErrWrongKind
	}

	offset, err := s.offsetOf(n.Handle())
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(s.heap[offset]), nil
}

// FloatValue decodes either inline Float31 or by-reference Float32 values,
// returning ErrWrongKind for anything else.
func (s *Store) FloatValue(n DataNode) (float32, error) {
	switch n.Type() {
	case TypeFloat31:
		return n.Float32Value(), nil
	case TypeFloat32:
		return s.Float32HandleValue(n)
	default:
		return 0, ErrWrongKind
	}
}

// IntValue decodes any signed integer kind (Int32Small, Int32Big, Int64)
// into an int64, returning ErrWrongKind for anything else.
func (s *Store) IntValue(n DataNode) (int64, error) {
	switch n.Type() {
	case TypeInt32Small:
		return int64(n.Int32Small()), nil
	case TypeInt32Big:
		v, err := s.Int32BigValue(n)
		return int64(v), err
	case TypeInt64:
		return s.Int64Value(n)
	default:
		return 0, ErrWrongKind
	}
}

// UIntValue decodes either unsigned integer kind (UInt32, UInt64), or a
// signed integer kind holding a non-negative value, into a uint64,
// returning ErrWrongKind for anything else.
func (s *Store) UIntValue(n DataNode) (uint64, error) {
	switch n.Type() {
	case TypeUInt32:
		v, err := s.UInt32Value(n)
		return uint64(v), err
	case TypeUInt64:
		return s.UInt64Value(n)
	default:
		if v, err := s.IntValue(n); err == nil && v >= 0 {
			return uint64(v), nil
		}

		return 0, ErrWrongKind
	}
}
