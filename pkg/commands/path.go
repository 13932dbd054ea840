package commands

import (
	"fmt"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// stepKind discriminates the three path-step shapes spec §4.6 allows.
type stepKind uint8

const (
	stepSymbol stepKind = iota
	stepIndex
	stepSearch
)

// step is one resolved path element: a table key, an array index, or a
// $search request to locate an array index by content.
type step struct {
	kind   stepKind
	symbol uint32
	index  int

	searchKey   uint32
	searchValue valuestore.DataNode
}

func (s step) isIndexLike() bool {
	return s.kind == stepIndex || s.kind == stepSearch
}

// parseSteps classifies every element of nodes as a path step.
func parseSteps(s *valuestore.Store, nodes []valuestore.DataNode) ([]step, error) {
	steps := make([]step, len(nodes))

	for i, n := range nodes {
		st, err := parseStep(s, n)
		if err != nil {
			return nil, fmt.Errorf("path step %d: %w", i, err)
		}

		steps[i] = st
	}

	return steps, nil
}

func parseStep(s *valuestore.Store, n valuestore.DataNode) (step, error) {
	switch n.Type() {
	case valuestore.TypeString:
		str, err := s.StringValue(n)
		if err != nil {
			return step{}, err
		}

		return step{kind: stepSymbol, symbol: s.Symbols().Intern(str)}, nil

	case valuestore.TypeArray:
		return parseSearchStep(s, n)

	default:
		idx, err := s.IntValue(n)
		if err != nil {
			return step{}, fmt.Errorf("path step must be a symbol, index, or $search array: %w", err)
		}

		if idx < 0 {
			return step{}, fmt.Errorf("array index path step must be non-negative, got %d", idx)
		}

		return step{kind: stepIndex, index: int(idx)}, nil
	}
}

func parseSearchStep(s *valuestore.Store, n valuestore.DataNode) (step, error) {
	length, err := s.ArrayLen(n)
	if err != nil {
		return step{}, err
	}

	if length != 3 {
		return step{}, fmt.Errorf("$search step must have exactly 3 elements, got %d", length)
	}

	head, err := s.ArrayGet(n, 0)
	if err != nil {
		return step{}, err
	}

	headStr, err := s.StringValue(head)
	if err != nil || headStr != "$search" {
		return step{}, fmt.Errorf("array path step must be a $search triple")
	}

	keyNode, err := s.ArrayGet(n, 1)
	if err != nil {
		return step{}, err
	}

	keyStr, err := s.StringValue(keyNode)
	if err != nil {
		return step{}, fmt.Errorf("$search key must be a string: %w", err)
	}

	value, err := s.ArrayGet(n, 2)
	if err != nil {
		return step{}, err
	}

	return step{kind: stepSearch, searchKey: s.Symbols().Intern(keyStr), searchValue: value}, nil
}

// resolveSearch finds the index of the first element of arr that is a
// table whose searchKey equals searchValue (spec §4.6).
func resolveSearch(s *valuestore.Store, arr valuestore.DataNode, st step) (int, error) {
	if arr.Type() != valuestore.TypeArray {
		return 0, ErrSearchNotArray
	}

	length, err := s.ArrayLen(arr)
	if err != nil {
		return 0, err
	}

	for i := 0; i < length; i++ {
		elem, err := s.ArrayGet(arr, i)
		if err != nil {
			return 0, err
		}

		if elem.Type() != valuestore.TypeTable {
			continue
		}

		v, found, err := s.TableGet(elem, st.searchKey)
		if err != nil {
			return 0, err
		}

		if found && nodesEqual(s, v, st.searchValue) {
			return i, nil
		}
	}

	return 0, ErrSearchNoMatch
}

// nodesEqual compares two leaf-ish DataNodes from the same store by value.
// Path-search targets are always JSON scalars (strings, numbers, bools),
// so a shallow comparison plus a by-value fallback for strings and
// by-reference numbers is sufficient; it
// deliberately doesn't reach for pkg/valuestore/canon's deep equality,
// which is built for whole subtrees, not single scalar comparisons.
func nodesEqual(s *valuestore.Store, a, b valuestore.DataNode) bool {
	if a == b {
		return true
	}

	if a.Type() != b.Type() {
		return false
	}

	if a.Type() == valuestore.TypeString {
		sa, errA := s.StringValue(a)
		sb, errB := s.StringValue(b)

		return errA == nil && errB == nil && sa == sb
	}

	if ia, errA := s.IntValue(a); errA == nil {
		ib, errB := s.IntValue(b)
		return errB == nil && ia == ib
	}

	if ua, errA := s.UIntValue(a); errA == nil {
		ub, errB := s.UIntValue(b)
		return errB == nil && ua == ub
	}

	if fa, errA := s.FloatValue(a); errA == nil {
		fb, errB := s.FloatValue(b)
		return errB == nil && fa == fb
	}

	return false
}
