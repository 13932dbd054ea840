package printer

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/mattn/go-runewidth"

	"github.com/vnstone/datastore/pkg/hints"
	"github.com/vnstone/datastore/pkg/valuestore"
)

// widthBudget is the "under 40 columns" single-line threshold from spec
// §4.7.
const widthBudget = 40

// Options controls emission. The zero value uses spec §4.7's defaults.
type Options struct {
	// Indent is the per-level indentation string; defaults to two spaces.
	Indent string
}

func (o Options) indent() string {
	if o.Indent == "" {
		return "  "
	}

	return o.Indent
}

// Print renders root (and, through it, every value reachable from it) as
// JSON text, consulting hint for source order and comments (spec §4.7);
// array elements are matched to hint children by position. hint may be
// nil or [hints.None], in which case no comments are printed, table
// entries are printed sorted by key, and the single-line heuristic alone
// decides each container's layout.
func Print(s *valuestore.Store, root valuestore.DataNode, hint *hints.Node, opts Options) ([]byte, error) {
	p := &printerState{store: s, opts: opts}

	var buf bytes.Buffer

	if hint != nil && hint.Kind != hints.KindNone && !hint.Comment.Empty() {
		p.printComment(&buf, 0, hint.Comment.Text())
	}

	if err := p.printValue(&buf, 0, root, hint, true); err != nil {
		return nil, err
	}

	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

type printerState struct {
	store *valuestore.Store
	opts  Options
}

// printValue renders n's own text. Any comment attached to hint has
// already been emitted, and the current line already indented, by the
// caller (spec §4.7: a comment sits on its own line(s) directly above the
// value it precedes).
func (p *printerState) printValue(buf *bytes.Buffer, depth int, n valuestore.DataNode, hint *hints.Node, isRoot bool) error {
	switch n.Type() {
	case valuestore.TypeArray:
		return p.printArray(buf, depth, n, hint, isRoot)
	case valuestore.TypeTable:
		return p.printTable(buf, depth, n, hint, isRoot)
	default:
		return p.printScalar(buf, n)
	}
}

func (p *printerState) printComment(buf *bytes.Buffer, depth int, text string) {
	if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
		buf.WriteByte('\n')
	} else if b := buf.Bytes(); len(b) > 1 && b[len(b)-2] != '{' && b[len(b)-2] != '[' {
		buf.WriteByte('\n') // blank line before the comment, unless right after an opener
	}

	for _, line := range splitLines(text) {
		p.writeIndent(buf, depth)
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
}

func splitLines(s string) []string {
	var lines []string

	start := 0

	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}

	lines = append(lines, s[start:])

	return lines
}

func (p *printerState) writeIndent(buf *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString(p.opts.indent())
	}
}

func (p *printerState) printScalar(buf *bytes.Buffer, n valuestore.DataNode) error {
	switch n.Type() {
	case valuestore.TypeNull, valuestore.TypeSpecialErase:
		buf.WriteString("null")
	case valuestore.TypeBoolean:
		if n.Bool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case valuestore.TypeInt32Small:
		buf.WriteString(strconv.FormatInt(int64(n.Int32Small()), 10))
	case valuestore.TypeInt32Big:
		v, err := p.store.Int32BigValue(n)
		if err != nil {
			return err
		}

		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case valuestore.TypeUInt32:
		v, err := p.store.UInt32Value(n)
		if err != nil {
			return err
		}

		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case valuestore.TypeInt64:
		v, err := p.store.Int64Value(n)
		if err != nil {
			return err
		}

		buf.WriteString(strconv.FormatInt(v, 10))
	case valuestore.TypeUInt64:
		v, err := p.store.UInt64Value(n)
		if err != nil {
			return err
		}

		buf.WriteString(strconv.FormatUint(v, 10))
	case valuestore.TypeFloat31:
		writeFloat(buf, float64(n.Float32Value()))
	case valuestore.TypeFloat32:
		v, err := p.store.Float32HandleValue(n)
		if err != nil {
			return err
		}

		writeFloat(buf, float64(v))
	case valuestore.TypeString:
		str, err := p.store.StringValue(n)
		if err != nil {
			return err
		}

		writeJSONString(buf, str)
	case valuestore.TypeFilePath:
		url, err := n.URL(p.store.Symbols())
		if err != nil {
			return err
		}

		writeJSONString(buf, url)
	default:
		return fmt.Errorf("printer: unsupported scalar type %v", n.Type())
	}

	return nil
}

// writeFloat implements spec §4.7's float formatting rule.
func writeFloat(buf *bytes.Buffer, f float64) {
	switch {
	case math.IsNaN(f):
		buf.WriteString(`"NaN"`)
	case math.IsInf(f, 1):
		buf.WriteString(`"Infinity"`)
	case math.IsInf(f, -1):
		buf.WriteString(`"-Infinity"`)
	default:
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
}

// writeJSONString escapes s iff its escaped length differs from its raw
// length, otherwise writes it literally (spec §4.7).
func writeJSONString(buf *bytes.Buffer, s string) {
	escaped := jsonEscape(s)

	buf.WriteByte('"')

	if len(escaped) != len(s) {
		buf.WriteString(escaped)
	} else {
		buf.WriteString(s)
	}

	buf.WriteByte('"')
}

func jsonEscape(s string) string {
	var out bytes.Buffer

	for i := 0; i < len(s); i++ {
		b := s[i]

		switch b {
		case '"':
			out.WriteString(`\"`)
		case '\\':
			out.WriteString(`\\`)
		case '\n':
			out.WriteString(`\n`)
		case '\t':
			out.WriteString(`\t`)
		case '\r':
			out.WriteString(`\r`)
		default:
			if b < 0x20 {
				fmt.Fprintf(&out, `\u%04x`, b)
			} else {
				out.WriteByte(b)
			}
		}
	}

	return out.String()
}

// estimateWidth implements spec §4.7's per-value size estimate used by the
// single-line heuristic: integer/bool ~= 1-2 columns, string/path ~=
// width/4+1 (integer division of the display width).
func (p *printerState) estimateWidth(n valuestore.DataNode) int {
	switch n.Type() {
	case valuestore.TypeNull, valuestore.TypeSpecialErase, valuestore.TypeBoolean:
		return 2
	case valuestore.TypeString:
		str, err := p.store.StringValue(n)
		if err != nil {
			return widthBudget
		}

		return runewidth.StringWidth(str)/4 + 1
	case valuestore.TypeFilePath:
		url, err := n.URL(p.store.Symbols())
		if err != nil {
			return widthBudget
		}

		return runewidth.StringWidth(url)/4 + 1
	case valuestore.TypeArray:
		return p.sumChildren(n, true)
	case valuestore.TypeTable:
		return p.sumChildren(n, false)
	default:
		return 2
	}
}

func (p *printerState) sumChildren(n valuestore.DataNode, isArray bool) int {
	total := 0

	if isArray {
		length, err := p.store.ArrayLen(n)
		if err != nil {
			return widthBudget
		}

		for i := 0; i < length; i++ {
			v, err := p.store.ArrayGet(n, i)
			if err != nil {
				return widthBudget
			}

			total += p.estimateWidth(v)
		}

		return total
	}

	err := p.store.TableIterate(n, func(e valuestore.TableEntry) bool {
		keyStr, _ := p.store.Symbols().Lookup(e.Key)
		total += runewidth.StringWidth(keyStr)/4 + 1 + p.estimateWidth(e.Value)

		return true
	})
	if err != nil {
		return widthBudget
	}

	return total
}

func (p *printerState) countNestedContainers(n valuestore.DataNode) int {
	count := 0

	switch n.Type() {
	case valuestore.TypeArray:
		length, _ := p.store.ArrayLen(n)

		for i := 0; i < length; i++ {
			v, _ := p.store.ArrayGet(n, i)
			if v.Type().IsContainer() {
				count++
			}
		}
	case valuestore.TypeTable:
		_ = p.store.TableIterate(n, func(e valuestore.TableEntry) bool {
			if e.Value.Type().IsContainer() {
				count++
			}

			return true
		})
	}

	return count
}

func isNumericType(t valuestore.Type) bool {
	switch t {
	case valuestore.TypeInt32Small, valuestore.TypeInt32Big, valuestore.TypeUInt32,
		valuestore.TypeInt64, valuestore.TypeUInt64, valuestore.TypeFloat31, valuestore.TypeFloat32:
		return true
	default:
		return false
	}
}

func (p *printerState) singleLine(n valuestore.DataNode, hint *hints.Node, isRoot bool) bool {
	if isRoot {
		length, _ := sizeOf(p.store, n)
		return length == 0
	}

	if hint != nil && !hint.Comment.Empty() {
		return false
	}

	if p.countNestedContainers(n) > 1 {
		return false
	}

	return p.estimateWidth(n) < widthBudget
}

func sizeOf(s *valuestore.Store, n valuestore.DataNode) (int, error) {
	switch n.Type() {
	case valuestore.TypeArray:
		return s.ArrayLen(n)
	case valuestore.TypeTable:
		return s.TableLen(n)
	default:
		return 1, nil
	}
}

func (p *printerState) printArray(buf *bytes.Buffer, depth int, n valuestore.DataNode, hint *hints.Node, isRoot bool) error {
	length, err := p.store.ArrayLen(n)
	if err != nil {
		return err
	}

	if length == 0 {
		buf.WriteString("[]")
		return nil
	}

	elems := make([]valuestore.DataNode, length)

	allNumeric := true

	for i := 0; i < length; i++ {
		v, err := p.store.ArrayGet(n, i)
		if err != nil {
			return err
		}

		elems[i] = v

		if !isNumericType(v.Type()) {
			allNumeric = false
		}
	}

	single := p.singleLine(n, hint, isRoot)

	if single {
		buf.WriteByte('[')

		for i, v := range elems {
			if i > 0 {
				buf.WriteString(", ")
			}

			if err := p.printValue(buf, depth+1, v, p.elementHint(hint, i), false); err != nil {
				return err
			}
		}

		buf.WriteByte(']')

		return nil
	}

	buf.WriteByte('[')
	buf.WriteByte('\n')

	// Numeric-only arrays wrap several elements per line, packing roughly
	// (widthBudget-base)/2 short numbers per row rather than one per line
	// (spec §4.7).
	perLine := 1
	if allNumeric {
		perLine = (widthBudget - p.estimateWidth(n)/max(length, 1)) / 2
		if perLine < 1 {
			perLine = 1
		}
	}

	for i := 0; i < length; i++ {
		childHint := p.elementHint(hint, i)
		hasComment := childHint != hints.None && !childHint.Comment.Empty()

		if hasComment {
			p.printComment(buf, depth+1, childHint.Comment.Text())
		}

		if hasComment || !allNumeric || i%perLine == 0 {
			p.writeIndent(buf, depth+1)
		}

		if err := p.printValue(buf, depth+1, elems[i], childHint, false); err != nil {
			return err
		}

		if i != length-1 {
			buf.WriteByte(',')
		}

		if !allNumeric || hasComment || i%perLine == perLine-1 || i == length-1 {
			buf.WriteByte('\n')
		} else {
			buf.WriteByte(' ')
		}
	}

	p.writeIndent(buf, depth)
	buf.WriteByte(']')

	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}

	return b
}

// elementHint returns the hint child at position i of an array hint.
// Matching is by position only: the element's resolve-hash is not compared
// with the hint's stored hash, so after elements are inserted, removed or
// reordered a comment stays with the position it was read at.
func (p *printerState) elementHint(hint *hints.Node, i int) *hints.Node {
	if hint == nil || hint.Kind != hints.KindArray {
		return hints.None
	}

	return hint.At(i)
}

func (p *printerState) printTable(buf *bytes.Buffer, depth int, n valuestore.DataNode, hint *hints.Node, isRoot bool) error {
	length, err := p.store.TableLen(n)
	if err != nil {
		return err
	}

	if length == 0 {
		buf.WriteString("{}")
		return nil
	}

	entries := make(map[uint32]valuestore.DataNode, length)

	err = p.store.TableIterate(n, func(e valuestore.TableEntry) bool {
		entries[e.Key] = e.Value

		return true
	})
	if err != nil {
		return err
	}

	order, _ := p.tableOrder(hint, entries)

	single := p.singleLine(n, hint, isRoot)

	if single {
		buf.WriteByte('{')

		for i, key := range order {
			if i > 0 {
				buf.WriteString(", ")
			}

			if err := p.printEntry(buf, depth+1, key, entries[key], hint, false); err != nil {
				return err
			}
		}

		buf.WriteByte('}')

		return nil
	}

	buf.WriteByte('{')
	buf.WriteByte('\n')

	for i, key := range order {
		if err := p.printEntry(buf, depth+1, key, entries[key], hint, true); err != nil {
			return err
		}

		if i != len(order)-1 {
			buf.WriteByte(',')
		}

		buf.WriteByte('\n')
	}

	p.writeIndent(buf, depth)
	buf.WriteByte('}')

	return nil
}

// tableOrder returns every key in entries, ordered per spec §4.7: keys the
// hint knows about come first in their original source order; keys absent
// from the hint (newly added entries) are appended afterward, sorted
// lexicographically by their interned string.
func (p *printerState) tableOrder(hint *hints.Node, entries map[uint32]valuestore.DataNode) (order []uint32, unmatchedCount int) {
	seen := make(map[uint32]bool, len(entries))

	if hint != nil && hint.Kind == hints.KindTable {
		for _, key := range hint.Keys {
			if _, ok := entries[key]; ok && !seen[key] {
				order = append(order, key)
				seen[key] = true
			}
		}
	}

	var rest []uint32

	for key := range entries {
		if !seen[key] {
			rest = append(rest, key)
		}
	}

	unmatchedCount = len(rest)

	syms := p.store.Symbols()

	sort.Slice(rest, func(i, j int) bool {
		si, _ := syms.Lookup(rest[i])
		sj, _ := syms.Lookup(rest[j])

		return si < sj
	})

	order = append(order, rest...)

	return order, unmatchedCount
}

func (p *printerState) printEntry(buf *bytes.Buffer, depth int, key uint32, value valuestore.DataNode, hint *hints.Node, multiLine bool) error {
	childHint := hints.None

	if hint != nil && hint.Kind == hints.KindTable {
		if found, _, ok := hint.ByKey(key); ok {
			childHint = found
		}
	}

	if multiLine {
		if childHint != hints.None && !childHint.Comment.Empty() {
			p.printComment(buf, depth, childHint.Comment.Text())
		}

		p.writeIndent(buf, depth)
	}

	keyStr, _ := p.store.Symbols().Lookup(key)
	writeJSONString(buf, keyStr)
	buf.WriteString(": ")

	return p.printValue(buf, depth, value, childHint, false)
}
