package extjson

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vnstone/datastore/pkg/hints"
	"github.com/vnstone/datastore/pkg/valuestore"
)

// Result is the outcome of a successful [Parse]: the root value, now
// reachable from store, and its parallel hint tree.
type Result struct {
	Root  valuestore.DataNode
	Hints *hints.Node
}

// Parse parses src as JSON-with-extensions into store, returning the new
// root value and its hint tree (spec §4.5, §4.7). The returned hints borrow
// src for comment spans; call [hints.Node.Freeze] if src will not outlive
// the result.
func Parse(store *valuestore.Store, src []byte, opts Options) (Result, error) {
	release := store.SuppressGC()
	defer release()

	p := &parser{lex: newLexer(src), src: src, store: store, opts: opts}

	if err := p.advance(); err != nil {
		return Result{}, err
	}

	root, hint, err := p.parseValue(0)
	if err != nil {
		return Result{}, err
	}

	if p.tok.kind != tokEOF {
		return Result{}, p.errorf("unexpected trailing content after root value")
	}

	if opts.Schema != nil {
		if err := opts.Schema.Validate(store, root); err != nil {
			return Result{}, err
		}
	}

	return Result{Root: root, Hints: hint}, nil
}

type parser struct {
	lex *lexer
	src []byte

	store *valuestore.Store
	opts  Options

	tok      token
	comments []pendingComment
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.tok.line, Col: p.tok.col, Err: fmt.Errorf("%w: %s", ErrUnexpectedToken, fmt.Sprintf(format, args...))}
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}

	p.comments = append(p.comments[:0], p.lex.pendingComments...)
	p.tok = tok

	return nil
}

// commentSpan returns the span covering every comment collected
// immediately before the current token, or an empty span if there were
// none.
func (p *parser) commentSpan() (start, end int, ok bool) {
	if len(p.comments) == 0 {
		return 0, 0, false
	}

	return p.comments[0].start, p.comments[len(p.comments)-1].end, true
}

func (p *parser) parseValue(order int) (valuestore.DataNode, *hints.Node, error) {
	var (
		node valuestore.DataNode
		hint *hints.Node
		err  error
	)

	cs, ce, hasComment := p.commentSpan()

	switch p.tok.kind {
	case tokLBrace:
		node, hint, err = p.parseTable(order)
	case tokLBracket:
		node, hint, err = p.parseArray(order)
	case tokString:
		node, hint, err = p.parseString(order)
	case tokNumber:
		node, hint, err = p.parseNumber(order)
	case tokTrue:
		node = valuestore.NewBool(true)
		hint = hints.NewLeaf(order, boolHash(true))

		err = p.advance()
	case tokFalse:
		node = valuestore.NewBool(false)
		hint = hints.NewLeaf(order, boolHash(false))

		err = p.advance()
	case tokNull:
		if p.opts.NullAsSpecialErase {
			node = valuestore.SpecialEraseNode
		} else {
			node = valuestore.Null
		}

		hint = hints.NewLeaf(order, 0)

		err = p.advance()
	case tokNaN:
		node, _ = valuestore.NewFloat(float32(math.NaN()))
		hint = hints.NewLeaf(order, 1)

		err = p.advance()
	case tokInf:
		node, _ = valuestore.NewFloat(float32(math.Inf(1)))
		hint = hints.NewLeaf(order, 2)

		err = p.advance()
	case tokNegInf:
		node, _ = valuestore.NewFloat(float32(math.Inf(-1)))
		hint = hints.NewLeaf(order, 3)

		err = p.advance()
	default:
		return 0, nil, p.errorf("unexpected token, expected a value")
	}

	if err != nil {
		return 0, nil, err
	}

	if hasComment {
		hint.WithComment(p.src, cs, ce)
	}

	return node, hint, nil
}

func (p *parser) parseArray(order int) (valuestore.DataNode, *hints.Node, error) {
	if err := p.advance(); err != nil { // consume '['
		return 0, nil, err
	}

	arr := p.store.NewArray()
	release := p.store.SuppressGC()

	defer release()

	var children []*hints.Node

	idx := 0

	for p.tok.kind != tokRBracket {
		if p.tok.kind == tokEOF {
			return 0, nil, p.errorf("unterminated array")
		}

		v, h, err := p.parseValue(idx)
		if err != nil {
			return 0, nil, err
		}

		if err := p.store.ArraySet(arr, idx, v); err != nil {
			return 0, nil, err
		}

		children = append(children, h)
		idx++

		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return 0, nil, err
			}

			continue // trailing comma tolerated: loop condition re-checks for ']'
		}

		break
	}

	if p.tok.kind != tokRBracket {
		return 0, nil, p.errorf("expected ',' or ']'")
	}

	if err := p.advance(); err != nil { // consume ']'
		return 0, nil, err
	}

	hash, err := hints.ResolveHash(p.store, arr)
	if err != nil {
		return 0, nil, err
	}

	return arr, hints.NewArray(order, hash, children), nil
}

func (p *parser) parseTable(order int) (valuestore.DataNode, *hints.Node, error) {
	if err := p.advance(); err != nil { // consume '{'
		return 0, nil, err
	}

	tbl := p.store.NewTable()
	release := p.store.SuppressGC()

	defer release()

	var (
		children []*hints.Node
		keys     []uint32
	)

	seen := map[uint32]int{}
	idx := 0

	for p.tok.kind != tokRBrace {
		if p.tok.kind == tokEOF {
			return 0, nil, p.errorf("unterminated object")
		}

		if p.tok.kind != tokString {
			return 0, nil, p.errorf("expected a string key")
		}

		keyStr := p.tok.str
		kcs, kce, hasKeyComment := p.commentSpan()

		if err := p.advance(); err != nil { // consume key
			return 0, nil, err
		}

		if p.tok.kind != tokColon {
			return 0, nil, p.errorf("expected ':' after key")
		}

		if err := p.advance(); err != nil { // consume ':'
			return 0, nil, err
		}

		key := p.store.Symbols().Intern(keyStr)

		if prev, dup := seen[key]; dup {
			if !p.opts.AllowDuplicateKeys {
				return 0, nil, &ParseError{Line: p.tok.line, Col: p.tok.col, Err: fmt.Errorf("%w: %q", ErrDuplicateKey, keyStr)}
			}

			v, h, err := p.parseValue(children[prev].Order)
			if err != nil {
				return 0, nil, err
			}

			if err := p.store.TableSet(tbl, key, v); err != nil {
				return 0, nil, err
			}

			children[prev] = h
		} else {
			v, h, err := p.parseValue(idx)
			if err != nil {
				return 0, nil, err
			}

			if hasKeyComment && h.Comment.Empty() {
				h.WithComment(p.src, kcs, kce)
			}

			if err := p.store.TableSet(tbl, key, v); err != nil {
				return 0, nil, err
			}

			seen[key] = len(children)
			children = append(children, h)
			keys = append(keys, key)
			idx++
		}

		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return 0, nil, err
			}

			continue
		}

		break
	}

	if p.tok.kind != tokRBrace {
		return 0, nil, p.errorf("expected ',' or '}'")
	}

	if err := p.advance(); err != nil { // consume '}'
		return 0, nil, err
	}

	hash, err := hints.ResolveHash(p.store, tbl)
	if err != nil {
		return 0, nil, err
	}

	return tbl, hints.NewTable(order, hash, keys, children), nil
}

func (p *parser) parseString(order int) (valuestore.DataNode, *hints.Node, error) {
	s := p.tok.str

	if err := p.advance(); err != nil {
		return 0, nil, err
	}

	if !p.opts.LeaveFilePathAsString {
		if dir, rel, ok := classifyFilePath(s); ok && validRelativePath(rel) {
			sym := p.store.Symbols().Intern(rel)
			kind := valuestore.ClassifyExtension(extensionOf(rel))
			node := valuestore.NewFilePath(dir, kind, sym)

			return node, hints.NewLeaf(order, stringHash(s)), nil
		}
	}

	return p.store.NewString(s), hints.NewLeaf(order, stringHash(s)), nil
}

// validRelativePath applies the "syntactically valid relative path" filter
// spec §4.5 requires before classifying a scheme-prefixed string as a
// FilePath: no empty name, no absolute/parent-escaping segments, no
// embedded scheme separator.
func validRelativePath(rel string) bool {
	if rel == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, "://") {
		return false
	}

	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}

	return true
}

func extensionOf(rel string) string {
	slash := strings.LastIndexByte(rel, '/')
	name := rel[slash+1:]

	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return ""
	}

	return name[dot+1:]
}

func (p *parser) parseNumber(order int) (valuestore.DataNode, *hints.Node, error) {
	text := string(p.src[p.tok.start:p.tok.end])

	if err := p.advance(); err != nil {
		return 0, nil, err
	}

	node, err := numberNode(p.store, text)
	if err != nil {
		return 0, nil, &ParseError{Line: p.tok.line, Col: p.tok.col, Err: err}
	}

	return node, hints.NewLeaf(order, stringHash(text)), nil
}

// numberNode classifies a JSON number literal per spec §4.5: integers that
// fit Int32Small (27-bit signed) use that; otherwise Int32Big/UInt32;
// otherwise Int64/UInt64. A floating-point literal whose value is
// integer-valued and fits one of those integer types downcasts to it, so
// that "3.0" and "3" parse to the identical DataNode (required to preserve
// canonical equality, spec §4.5).
func numberNode(s *valuestore.Store, text string) (valuestore.DataNode, error) {
	isFloatSyntax := strings.ContainsAny(text, ".eE")

	if !isFloatSyntax {
		if iv, err := strconv.ParseInt(text, 10, 64); err == nil {
			return integerNode(s, iv, true), nil
		}

		if uv, err := strconv.ParseUint(text, 10, 64); err == nil {
			return integerNode(s, int64(uv), false), nil
		}
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}

	if f == math.Trunc(f) && !math.IsInf(f, 0) && f >= -9.223372036854776e18 && f < 1.8446744073709552e19 {
		iv := int64(f)
		if float64(iv) == f {
			return integerNode(s, iv, true), nil
		}

		uv := uint64(f)
		if float64(uv) == f {
			return s.NewUInt64(uv), nil
		}
	}

	node, ok := valuestore.NewFloat(float32(f))
	if ok {
		return node, nil
	}

	return s.NewFloat32(float32(f)), nil
}

func integerNode(s *valuestore.Store, v int64, signed bool) valuestore.DataNode {
	if (signed || v >= 0) && valuestore.FitsInt32Small(int32(v)) && int64(int32(v)) == v {
		return valuestore.NewInt32Small(int32(v))
	}

	if signed {
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return s.NewInt32(int32(v))
		}

		if v > 0 && v <= math.MaxUint32 {
			return s.NewUInt32(uint32(v))
		}

		return s.NewInt64(v)
	}

	if v >= 0 && v <= math.MaxUint32 {
		return s.NewUInt32(uint32(v))
	}

	if v >= 0 {
		return s.NewInt64(v)
	}

	return s.NewUInt64(uint64(v))
}

func stringHash(s string) uint64 {
	var h uint64 = 1469598103934665603

	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}

	return h
}

func boolHash(b bool) uint64 {
	if b {
		return 1
	}

	return 0
}
