package hints

// Kind discriminates the four hint-node shapes named in spec §4.7.
type Kind uint8

const (
	// KindNone marks the absence of a hint for a position (e.g. a value
	// constructed programmatically after parsing, with no source to hint
	// from).
	KindNone Kind = iota
	KindLeaf
	KindArray
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindLeaf:
		return "Leaf"
	case KindArray:
		return "Array"
	case KindTable:
		return "Table"
	default:
		return "Unknown"
	}
}

// Span is a byte-offset range into a source buffer. An empty Span
// (Start == End) means "no comment".
type Span struct {
	Start, End int
	src        []byte // nil once Frozen; non-nil spans borrow this buffer
	frozen     string
}

// Text returns the spanned bytes as a string, from the borrowed source
// buffer or, after [Node.Freeze], from the node's own copy.
func (s Span) Text() string {
	if s.src != nil {
		return string(s.src[s.Start:s.End])
	}

	return s.frozen
}

// Empty reports whether the span carries no text.
func (s Span) Empty() bool {
	return s.Start == s.End && s.frozen == ""
}

func newSpan(src []byte, start, end int) Span {
	return Span{Start: start, End: end, src: src}
}

// Node is one hint tree node. For KindArray/KindTable, Children holds the
// child hints in source order; for KindTable, Keys holds the parallel
// symbol-index key for each child (so the printer can re-associate a hint
// with a table entry without relying on position alone).
type Node struct {
	Kind    Kind
	Order   int  // original index among siblings, source order
	Comment Span // comment text immediately preceding this node, if any
	Hash    uint64

	Children []*Node
	Keys     []uint32 // len(Keys) == len(Children) when Kind == KindTable
}

// None is the hint used for a value with no corresponding source position.
var None = &Node{Kind: KindNone}

// NewLeaf constructs a leaf hint.
func NewLeaf(order int, hash uint64) *Node {
	return &Node{Kind: KindLeaf, Order: order, Hash: hash}
}

// NewArray constructs an array hint from its element hints, in source order.
func NewArray(order int, hash uint64, children []*Node) *Node {
	return &Node{Kind: KindArray, Order: order, Hash: hash, Children: children}
}

// NewTable constructs a table hint from its entry hints and their keys, in
// source order.
func NewTable(order int, hash uint64, keys []uint32, children []*Node) *Node {
	return &Node{Kind: KindTable, Order: order, Hash: hash, Keys: keys, Children: children}
}

// WithComment attaches a comment span to n and returns n.
func (n *Node) WithComment(src []byte, start, end int) *Node {
	n.Comment = newSpan(src, start, end)
	return n
}

// ByKey returns the child hint stored under key, and its position, or
// (nil, -1, false) if the table hint has no entry for that key.
func (n *Node) ByKey(key uint32) (*Node, int, bool) {
	if n == nil || n.Kind != KindTable {
		return nil, -1, false
	}

	for i, k := range n.Keys {
		if k == key {
			return n.Children[i], i, true
		}
	}

	return nil, -1, false
}

// ByHash returns the unique child hint whose Hash equals h, or (nil, false)
// if there is no match or more than one (spec §4.7: "if no unique match
// exists, fall back to index-based matching").
func (n *Node) ByHash(h uint64) (*Node, bool) {
	if n == nil {
		return nil, false
	}

	var found *Node

	count := 0

	for _, c := range n.Children {
		if c.Hash == h {
			found = c
			count++
		}
	}

	if count == 1 {
		return found, true
	}

	return nil, false
}

// At returns the i'th child, or [None] if out of range.
func (n *Node) At(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return None
	}

	return n.Children[i]
}

// Freeze copies every span in the subtree rooted at n into owned strings,
// so the tree no longer borrows its source buffer (spec §9: "If the source
// buffer does not outlive the hint tree, strings must be copied on
// construction").
func (n *Node) Freeze() {
	if n == nil {
		return
	}

	if !n.Comment.Empty() && n.Comment.src != nil {
		n.Comment = Span{frozen: n.Comment.Text()}
	}

	for _, c := range n.Children {
		c.Freeze()
	}
}
