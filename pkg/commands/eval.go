package commands

import (
	"fmt"

	"github.com/vnstone/datastore/pkg/extjson"
	"github.com/vnstone/datastore/pkg/valuestore"
	"github.com/vnstone/datastore/pkg/valuestore/canon"
)

var commandNames = map[string]bool{
	"$include": true,
	"$object":  true,
	"$append":  true,
	"$erase":   true,
	"$set":     true,
}

// IsCommandFile reports whether root is a command file by the duck-typed
// shape spec §4.6 defines: a root array whose first element is itself an
// array whose first element is a recognised command name.
func IsCommandFile(s *valuestore.Store, root valuestore.DataNode) (bool, error) {
	if root.Type() != valuestore.TypeArray {
		return false, nil
	}

	length, err := s.ArrayLen(root)
	if err != nil || length == 0 {
		return false, err
	}

	first, err := s.ArrayGet(root, 0)
	if err != nil {
		return false, err
	}

	return isCommandNode(s, first)
}

func isCommandNode(s *valuestore.Store, n valuestore.DataNode) (bool, error) {
	if n.Type() != valuestore.TypeArray {
		return false, nil
	}

	length, err := s.ArrayLen(n)
	if err != nil || length == 0 {
		return false, err
	}

	head, err := s.ArrayGet(n, 0)
	if err != nil {
		return false, err
	}

	if head.Type() != valuestore.TypeString {
		return false, nil
	}

	name, err := s.StringValue(head)
	if err != nil {
		return false, err
	}

	return commandNames[name], nil
}

// Evaluator resolves command files into plain values, all within a single
// store.
type Evaluator struct {
	store    *valuestore.Store
	resolver Resolver
}

// New creates an Evaluator that parses and resolves command files into
// store, delegating `$include` path loading to resolver.
func New(store *valuestore.Store, resolver Resolver) *Evaluator {
	return &Evaluator{store: store, resolver: resolver}
}

// Eval parses src, which must be a command file by spec §4.6's duck-typed
// shape, and evaluates it, returning the root value it builds.
func (e *Evaluator) Eval(src []byte) (valuestore.DataNode, error) {
	res, err := extjson.Parse(e.store, src, extjson.Options{})
	if err != nil {
		return 0, err
	}

	isCmd, err := IsCommandFile(e.store, res.Root)
	if err != nil {
		return 0, err
	}

	if !isCmd {
		return 0, ErrNotCommandFile
	}

	return e.run(res.Root)
}

// evalParsed evaluates an already-parsed root: if it is a command file, it
// runs the commands; otherwise it is returned unchanged (this is how
// `$include` treats a plain, non-command JSON file).
func (e *Evaluator) evalParsed(root valuestore.DataNode) (valuestore.DataNode, error) {
	isCmd, err := IsCommandFile(e.store, root)
	if err != nil {
		return 0, err
	}

	if !isCmd {
		return root, nil
	}

	return e.run(root)
}

type evalState struct {
	root         valuestore.DataNode
	target       valuestore.DataNode
	haveTarget   bool
	sawInclude   bool
}

func (e *Evaluator) run(cmdArray valuestore.DataNode) (valuestore.DataNode, error) {
	release := e.store.SuppressGC()
	defer release()

	length, err := e.store.ArrayLen(cmdArray)
	if err != nil {
		return 0, err
	}

	st := &evalState{root: valuestore.Null}

	names := make([]string, length)
	argLists := make([][]valuestore.DataNode, length)

	for i := 0; i < length; i++ {
		cmd, err := e.store.ArrayGet(cmdArray, i)
		if err != nil {
			return 0, &EvalError{Index: i, Err: err}
		}

		name, args, err := e.splitCommand(cmd)
		if err != nil {
			return 0, &EvalError{Index: i, Err: err}
		}

		names[i] = name
		argLists[i] = args
	}

	for i := 0; i < length; i++ {
		nextIsObject := i+1 < length && names[i+1] == "$object"

		if err := e.execute(st, names[i], argLists[i], nextIsObject); err != nil {
			return 0, &EvalError{Index: i, Err: err}
		}
	}

	if st.root == valuestore.Null {
		return e.store.NewTable(), nil
	}

	return st.root, nil
}

func (e *Evaluator) splitCommand(cmd valuestore.DataNode) (string, []valuestore.DataNode, error) {
	if cmd.Type() != valuestore.TypeArray {
		return "", nil, fmt.Errorf("command must be an array, got %v", cmd.Type())
	}

	length, err := e.store.ArrayLen(cmd)
	if err != nil || length == 0 {
		return "", nil, fmt.Errorf("command array must not be empty")
	}

	head, err := e.store.ArrayGet(cmd, 0)
	if err != nil {
		return "", nil, err
	}

	name, err := e.store.StringValue(head)
	if err != nil {
		return "", nil, fmt.Errorf("command name must be a string: %w", err)
	}

	if !commandNames[name] {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	args := make([]valuestore.DataNode, length-1)

	for i := 1; i < length; i++ {
		v, err := e.store.ArrayGet(cmd, i)
		if err != nil {
			return "", nil, err
		}

		args[i-1] = v
	}

	return name, args, nil
}

func (e *Evaluator) execute(st *evalState, name string, args []valuestore.DataNode, nextIsObject bool) error {
	switch name {
	case "$include":
		return e.execInclude(st, args, nextIsObject)
	case "$object":
		return e.execObject(st, args)
	case "$append":
		return e.execAppend(st, args)
	case "$erase":
		return e.execErase(st, args)
	case "$set":
		return e.execSet(st, args)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

func (e *Evaluator) execInclude(st *evalState, args []valuestore.DataNode, nextIsObject bool) error {
	if len(args) != 1 {
		return fmt.Errorf("$include takes exactly one argument")
	}

	relPath, err := e.store.StringValue(args[0])
	if err != nil {
		return fmt.Errorf("$include path must be a string: %w", err)
	}

	data, err := e.resolver.Resolve(relPath)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", relPath, err)
	}

	res, err := extjson.Parse(e.store, data, extjson.Options{})
	if err != nil {
		return fmt.Errorf("parsing included file %q: %w", relPath, err)
	}

	included, err := e.evalParsed(res.Root)
	if err != nil {
		return fmt.Errorf("resolving included file %q: %w", relPath, err)
	}

	cloneWholesale := !st.sawInclude && nextIsObject
	st.sawInclude = true

	if cloneWholesale {
		clone, err := canon.Copy(e.store, e.store, included)
		if err != nil {
			return err
		}

		st.root = clone

		return nil
	}

	if st.root == valuestore.Null {
		st.root = e.store.NewTable()
	}

	return e.mergeInto(st.root, included)
}

// mergeInto deep-copies every entry of src into dst; this is spec §4.6's
// "non-command files are deep-copied into the in-progress root". A src
// that is not a table is rejected with an error.
func (e *Evaluator) mergeInto(dst, src valuestore.DataNode) error {
	if src.Type() != valuestore.TypeTable {
		return fmt.Errorf("included value must be a table to merge into root, got %v", src.Type())
	}

	return e.store.TableIterate(src, func(entry valuestore.TableEntry) bool {
		copied, err := canon.Copy(e.store, e.store, entry.Value)
		if err != nil {
			return false
		}

		if err := e.store.TableSet(dst, entry.Key, copied); err != nil {
			return false
		}

		return true
	})
}

func (e *Evaluator) execObject(st *evalState, args []valuestore.DataNode) error {
	if len(args) != 1 && len(args) != 2 {
		return fmt.Errorf("$object takes one or two arguments")
	}

	name, err := e.store.StringValue(args[0])
	if err != nil {
		return fmt.Errorf("$object name must be a string: %w", err)
	}

	if st.root == valuestore.Null {
		st.root = e.store.NewTable()
	}

	key := e.store.Symbols().Intern(name)

	value, found, err := e.store.TableGet(st.root, key)
	if err != nil {
		return err
	}

	if !found {
		if len(args) == 2 {
			parentName, err := e.store.StringValue(args[1])
			if err != nil {
				return fmt.Errorf("$object parent must be a string: %w", err)
			}

			parentVal, pfound, err := e.store.TableGet(st.root, e.store.Symbols().Intern(parentName))
			if err != nil {
				return err
			}

			if pfound {
				value, err = canon.Copy(e.store, e.store, parentVal)
				if err != nil {
					return err
				}
			} else {
				value = e.store.NewTable()
			}
		} else {
			value = e.store.NewTable()
		}

		if err := e.store.TableSet(st.root, key, value); err != nil {
			return err
		}
	}

	st.target = value
	st.haveTarget = true

	return nil
}

func (e *Evaluator) execAppend(st *evalState, args []valuestore.DataNode) error {
	if len(args) < 2 {
		return fmt.Errorf("$append takes at least one path step and a value")
	}

	if !st.haveTarget {
		return ErrNoActiveObject
	}

	value := args[len(args)-1]

	container, last, err := e.navigate(st.target, args[:len(args)-1])
	if err != nil {
		return err
	}

	arr, err := e.resolveSlotForAppend(container, last)
	if err != nil {
		return err
	}

	length, err := e.store.ArrayLen(arr)
	if err != nil {
		return err
	}

	if err := e.store.ArrayResize(arr, length+1); err != nil {
		return err
	}

	return e.store.ArraySet(arr, length, value)
}

// resolveSlotForAppend returns the array at container[last], creating an
// empty one if the slot is absent, per spec §4.6.
func (e *Evaluator) resolveSlotForAppend(container valuestore.DataNode, last step) (valuestore.DataNode, error) {
	switch container.Type() {
	case valuestore.TypeTable:
		key, err := e.slotKey(container, last)
		if err != nil {
			return 0, err
		}

		value, found, err := e.store.TableGet(container, key)
		if err != nil {
			return 0, err
		}

		if !found {
			arr := e.store.NewArray()
			if err := e.store.TableSet(container, key, arr); err != nil {
				return 0, err
			}

			return arr, nil
		}

		if value.Type() != valuestore.TypeArray {
			return 0, ErrSlotNotArray
		}

		return value, nil

	case valuestore.TypeArray:
		idx, err := e.slotIndex(container, last)
		if err != nil {
			return 0, err
		}

		length, err := e.store.ArrayLen(container)
		if err != nil {
			return 0, err
		}

		if idx == length {
			arr := e.store.NewArray()

			if err := e.store.ArrayResize(container, length+1); err != nil {
				return 0, err
			}

			if err := e.store.ArraySet(container, idx, arr); err != nil {
				return 0, err
			}

			return arr, nil
		}

		if idx < 0 || idx > length {
			return 0, fmt.Errorf("array index %d out of range (length %d)", idx, length)
		}

		value, err := e.store.ArrayGet(container, idx)
		if err != nil {
			return 0, err
		}

		if value.Type() != valuestore.TypeArray {
			return 0, ErrSlotNotArray
		}

		return value, nil

	default:
		return 0, fmt.Errorf("%w: cannot navigate into %v", ErrPathKindMismatch, container.Type())
	}
}

func (e *Evaluator) execErase(st *evalState, args []valuestore.DataNode) error {
	if len(args) < 1 {
		return fmt.Errorf("$erase takes at least one path step")
	}

	if !st.haveTarget {
		return ErrNoActiveObject
	}

	container, last, err := e.navigate(st.target, args)
	if err != nil {
		return err
	}

	switch container.Type() {
	case valuestore.TypeTable:
		key, err := e.slotKey(container, last)
		if err != nil {
			return err
		}

		return e.store.TableErase(container, key)

	case valuestore.TypeArray:
		idx, err := e.slotIndex(container, last)
		if err != nil {
			return err
		}

		return e.store.ArrayErase(container, idx)

	default:
		return fmt.Errorf("%w: cannot navigate into %v", ErrPathKindMismatch, container.Type())
	}
}

func (e *Evaluator) execSet(st *evalState, args []valuestore.DataNode) error {
	if len(args) < 2 {
		return fmt.Errorf("$set takes at least one path step and a value")
	}

	if !st.haveTarget {
		return ErrNoActiveObject
	}

	value := args[len(args)-1]

	container, last, err := e.navigate(st.target, args[:len(args)-1])
	if err != nil {
		return err
	}

	switch container.Type() {
	case valuestore.TypeTable:
		key, err := e.slotKey(container, last)
		if err != nil {
			return err
		}

		old, found, err := e.store.TableGet(container, key)
		if err != nil {
			return err
		}

		if found && old.Type().IsContainer() && value.Type().IsContainer() {
			if err := e.store.TableErase(container, key); err != nil {
				return err
			}
		}

		return e.store.TableSet(container, key, value)

	case valuestore.TypeArray:
		idx, err := e.slotIndex(container, last)
		if err != nil {
			return err
		}

		length, err := e.store.ArrayLen(container)
		if err != nil {
			return err
		}

		if idx == length {
			if err := e.store.ArrayResize(container, length+1); err != nil {
				return err
			}
		} else if idx < 0 || idx > length {
			return fmt.Errorf("array index %d out of range (length %d)", idx, length)
		}

		return e.store.ArraySet(container, idx, value)

	default:
		return fmt.Errorf("%w: cannot navigate into %v", ErrPathKindMismatch, container.Type())
	}
}

// navigate walks path against start, creating missing intermediate
// containers (kind inferred from the following step) and returns the
// container the final step names its slot in, plus that final step
// (spec §4.6).
func (e *Evaluator) navigate(start valuestore.DataNode, pathNodes []valuestore.DataNode) (valuestore.DataNode, step, error) {
	steps, err := parseSteps(e.store, pathNodes)
	if err != nil {
		return 0, step{}, err
	}

	if len(steps) == 0 {
		return start, step{}, fmt.Errorf("path must have at least one step")
	}

	cur := start

	for i := 0; i < len(steps)-1; i++ {
		next, err := e.descend(cur, steps[i], steps[i+1].isIndexLike())
		if err != nil {
			return 0, step{}, err
		}

		cur = next
	}

	return cur, steps[len(steps)-1], nil
}

// descend resolves one intermediate path step against cur, creating the
// slot (with the kind implied by nextIsIndexLike) if it is absent.
func (e *Evaluator) descend(cur valuestore.DataNode, st step, nextIsIndexLike bool) (valuestore.DataNode, error) {
	switch cur.Type() {
	case valuestore.TypeTable:
		key, err := e.slotKey(cur, st)
		if err != nil {
			return 0, err
		}

		value, found, err := e.store.TableGet(cur, key)
		if err != nil {
			return 0, err
		}

		if found {
			return value, nil
		}

		child := e.newContainer(nextIsIndexLike)

		return child, e.store.TableSet(cur, key, child)

	case valuestore.TypeArray:
		idx, err := e.slotIndex(cur, st)
		if err != nil {
			return 0, err
		}

		length, err := e.store.ArrayLen(cur)
		if err != nil {
			return 0, err
		}

		if idx < length {
			return e.store.ArrayGet(cur, idx)
		}

		if idx != length {
			return 0, fmt.Errorf("array index %d out of range (length %d)", idx, length)
		}

		child := e.newContainer(nextIsIndexLike)

		if err := e.store.ArrayResize(cur, length+1); err != nil {
			return 0, err
		}

		return child, e.store.ArraySet(cur, idx, child)

	default:
		return 0, fmt.Errorf("%w: cannot navigate into %v", ErrPathKindMismatch, cur.Type())
	}
}

func (e *Evaluator) newContainer(indexLike bool) valuestore.DataNode {
	if indexLike {
		return e.store.NewArray()
	}

	return e.store.NewTable()
}

// slotKey resolves a path step to a table key. Only a symbol step names a
// table slot; an index or $search step is rejected with
// ErrPathKindMismatch.
func (e *Evaluator) slotKey(cur valuestore.DataNode, st step) (uint32, error) {
	switch st.kind {
	case stepSymbol:
		return st.symbol, nil
	default:
		return 0, fmt.Errorf("%w: table step must be a symbol", ErrPathKindMismatch)
	}
}

// slotIndex resolves a path step to an array index, running $search
// against cur if needed.
func (e *Evaluator) slotIndex(cur valuestore.DataNode, st step) (int, error) {
	switch st.kind {
	case stepIndex:
		return st.index, nil
	case stepSearch:
		return resolveSearch(e.store, cur, st)
	default:
		return 0, fmt.Errorf("%w: array step must be an index or $search", ErrPathKindMismatch)
	}
}
