package valuestore

// minHeapBaselineBytes is the floor below which the GC trigger threshold
// never shrinks (spec §3.4): "heap_bytes >= 2 * heap_bytes_after_last_collection
// (floor = 512 KiB)".
const minHeapBaselineBytes = 512 * 1024

// Store is a single hierarchical value store: a handle-offset table plus a
// payload heap, together with the root [DataNode]. Stores are
// single-owner, single-threaded (spec §5); callers must serialize their own
// access.
type Store struct {
	root DataNode

	handles []handleTableEntry
	heap    []uint32

	nextHandle       uint32
	allocatedHandles uint32

	heapBytesAfterLastCollection int
	gcSuppressionDepth           int

	syms Symbols
}

// New creates an empty store. syms provides the symbol service assumed by
// FilePath values and table keys; pass [NewSymbols] for a self-contained
// store, or share one Symbols instance across stores that must agree on
// indices.
func New(syms Symbols) *Store {
	if syms == nil {
		syms = NewSymbols()
	}

	return &Store{
		root:    Null,
		handles: []handleTableEntry{freeHandleEntry},
		heap:    make([]uint32, 0, 256),
		syms:    syms,
	}
}

// Root returns the current root value.
func (s *Store) Root() DataNode {
	return s.root
}

// Symbols returns the symbol service this store resolves table keys and
// FilePath names through.
func (s *Store) Symbols() Symbols {
	return s.syms
}

// NewArray allocates a new, empty Array value without touching the root.
// Protect the returned value with a [Store.SuppressGC] scope until it is
// linked into something reachable from the root.
func (s *Store) NewArray() DataNode {
	h := s.allocArray(0)
	s.maybeCollectGarbage()

	return NewArrayHandle(h)
}

// NewTable allocates a new, empty Table value without touching the root.
// Protect the returned value with a [Store.SuppressGC] scope until it is
// linked into something reachable from the root.
func (s *Store) NewTable() DataNode {
	h := s.allocTable(0)
	s.maybeCollectGarbage()

	return NewTableHandle(h)
}

// MakeArray replaces the root with a new, empty Array, invalidating every
// handle previously reachable from the old root.
func (s *Store) MakeArray() DataNode {
	s.root = NewArrayHandle(s.allocArray(0))
	return s.root
}

// MakeTable replaces the root with a new, empty Table, invalidating every
// handle previously reachable from the old root.
func (s *Store) MakeTable() DataNode {
	s.root = NewTableHandle(s.allocTable(0))
	return s.root
}

// SetRoot replaces the root directly. Used by loaders and by command
// evaluation to splice in a wholesale clone.
func (s *Store) SetRoot(n DataNode) {
	s.root = n
}

// SuppressGC returns a release function that must be called exactly once.
// While any suppression is active, mutations never trigger garbage
// collection. Callers must hold a suppression scope for the duration of
// any mutation whose DataNode argument itself lives in this store's heap
// (spec §4.2): that argument's backing memory must not move underneath it.
func (s *Store) SuppressGC() (release func()) {
	s.gcSuppressionDepth++

	released := false

	return func() {
		if released {
			return
		}

		released = true
		s.gcSuppressionDepth--
	}
}

func (s *Store) gcSuppressed() bool {
	return s.gcSuppressionDepth > 0
}

// allocate reserves a contiguous run of nWords at the heap tail and binds
// it to a freshly allocated handle.
func (s *Store) allocate(nWords uint32) Handle {
	offset := uint32(len(s.heap))
	s.heap = append(s.heap, make([]uint32, nWords)...)

	return s.allocateHandle(offset)
}

// reallocate grows (or shrinks) the run bound to h to newWords, given its
// previous length oldWords. If the run sits at the heap tail it is resized
// in place; otherwise it is copied to a new tail run and h's offset is
// rewritten. The old bytes become garbage either way.
func (s *Store) reallocate(h Handle, oldWords, newWords uint32) error {
	offset, err := s.offsetOf(h)
	if err != nil {
		return err
	}

	if offset+oldWords == uint32(len(s.heap)) {
		// At the tail: grow or shrink in place.
		if newWords > oldWords {
			s.heap = append(s.heap, make([]uint32, newWords-oldWords)...)
		} else {
			s.heap = s.heap[:offset+newWords]
		}

		return nil
	}

	newOffset := uint32(len(s.heap))
	grown := make([]uint32, newWords)
	copy(grown, s.heap[offset:offset+min32(oldWords, newWords)])
	s.heap = append(s.heap, grown...)
	s.handles[h.Index] = packHandleEntry(newOffset, h.Generation)

	return nil
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}

	return b
}

// maybeCollectGarbage triggers a collection if the heap has doubled since
// the last collection's baseline and no suppression scope is active (spec
// §3.4). Mutators call this after any allocation/reallocation.
func (s *Store) maybeCollectGarbage() {
	if s.gcSuppressed() {
		return
	}

	heapBytes := len(s.heap) * 4
	threshold := max(minHeapBaselineBytes, s.heapBytesAfterLastCollection*2)

	if heapBytes >= threshold {
		s.CollectGarbage()
	}
}

// CollectGarbage runs mark-and-compact: it walks every value reachable from
// the root, copies reachable payloads into a fresh heap, and rewrites
// handle offsets. Old heap regions are discarded wholesale. Equivalent to
// Compact(false).
func (s *Store) CollectGarbage() {
	s.Compact(false)
}

// Stats reports arena occupancy, useful for diagnostics and tests.
type Stats struct {
	HeapWords        int
	HandleTableSize  int
	AllocatedHandles int
	NextHandle       int
}

// Stats returns a snapshot of the store's arena occupancy.
func (s *Store) Stats() Stats {
	return Stats{
		HeapWords:        len(s.heap),
		HandleTableSize:  len(s.handles),
		AllocatedHandles: int(s.allocatedHandles),
		NextHandle:       int(s.nextHandle),
	}
}
