// Package parser turns JSON text, or an already-decoded value.Value,
// into an ast.Node tree recognizing the closed JSONLogic operator
// vocabulary. It is a small struct configured by functional options,
// with a top-level ParseText/ParseValue pair.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/corvidrules/jsonlogic/pkg/arena"
	"github.com/corvidrules/jsonlogic/pkg/ast"
	jlerrors "github.com/corvidrules/jsonlogic/pkg/errors"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

// Options configures a Parser.
type Options struct {
	Format              string
	MaxDepth            int
	EnableConstantFolding bool
}

// Option is a functional option for configuring a Parser.
type Option func(*Options)

// WithFormat restricts parsing to a named rule format. Only
// "jsonlogic" or the empty string are accepted; any other value is
// rejected by New with a Parse error naming the bad value.
func WithFormat(format string) Option {
	return func(o *Options) { o.Format = format }
}

// WithMaxDepth bounds recursive descent through nested arrays/objects
// and operator argument lists, guarding against pathological input.
func WithMaxDepth(depth int) Option {
	return func(o *Options) { o.MaxDepth = depth }
}

// WithConstantFolding records whether the parser should fold static
// nodes. Off by default. The parser does not evaluate nodes, so the
// returned tree is the same either way; constant folding happens in
// the compiler.
func WithConstantFolding(enabled bool) Option {
	return func(o *Options) { o.EnableConstantFolding = enabled }
}

const defaultMaxDepth = 256

// Parser parses decoded JSON values into ast.Node trees, allocating
// every node from the supplied arena so that the resulting tree's
// lifetime matches the owning session's.
type Parser struct {
	arena    *arena.Arena[ast.Node]
	interner *arena.Interner
	opts     Options
	depth    int
}

// New returns a Parser backed by nodeArena for AST nodes and interner
// for deduplicated strings (custom operator names).
func New(nodeArena *arena.Arena[ast.Node], interner *arena.Interner, opts ...Option) (*Parser, error) {
	o := Options{MaxDepth: defaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Format != "" && o.Format != "jsonlogic" {
		return nil, jlerrors.New(jlerrors.ParseBadFormat, "unrecognized rule format: "+o.Format)
	}
	return &Parser{arena: nodeArena, interner: interner, opts: o}, nil
}

// ParseText decodes text as JSON and parses the result as a JSONLogic
// rule.
func (p *Parser) ParseText(text string) (*ast.Node, error) {
	v, err := DecodeText(text)
	if err != nil {
		return nil, err
	}
	return p.ParseValue(v)
}

// ParseValue parses an already-decoded value.Value as a JSONLogic rule.
func (p *Parser) ParseValue(v value.Value) (*ast.Node, error) {
	p.depth = 0
	n, err := p.parseNode(v)
	if err != nil {
		return nil, err
	}
	if p.opts.EnableConstantFolding && ast.IsStatic(n) {
		// Folding itself requires evaluating the node, which is the
		// compiler+VM's job; the parser leaves the node unchanged.
		// (Session wires the actual fold through compile+evaluate.)
	}
	return n, nil
}

// ParseData decodes text as a plain JSON data document — no operator
// dispatch, every object/array parses literally. Used by
// Session.ParseData for the evaluation data context.
func ParseData(text string) (value.Value, error) {
	return DecodeText(text)
}

func (p *Parser) alloc() *ast.Node {
	return p.arena.Alloc()
}

func (p *Parser) intern(s string) string {
	return *p.interner.Intern(s)
}

func (p *Parser) parseNode(v value.Value) (*ast.Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.opts.MaxDepth {
		return nil, jlerrors.New(jlerrors.ParseInvalidJSON, "rule nesting exceeds maximum depth")
	}

	switch v.Kind {
	case value.KindObject:
		return p.parseObject(v)
	case value.KindArray:
		return p.parseArray(v)
	default:
		n := p.alloc()
		*n = ast.Node{Type: ast.NodeLiteral, Literal: v, Position: -1}
		return n, nil
	}
}

func (p *Parser) parseArray(v value.Value) (*ast.Node, error) {
	allLiteral := true
	elems := make([]*ast.Node, len(v.Arr))
	for i, e := range v.Arr {
		if e.Kind == value.KindObject || e.Kind == value.KindArray {
			allLiteral = false
		}
		child, err := p.parseNode(e)
		if err != nil {
			return nil, err
		}
		elems[i] = child
		if child.Type != ast.NodeLiteral {
			allLiteral = false
		}
	}
	n := p.alloc()
	if allLiteral {
		lits := make([]value.Value, len(elems))
		for i, e := range elems {
			lits[i] = e.Literal
		}
		*n = ast.Node{Type: ast.NodeArrayLiteral, LiteralArray: lits, Position: -1}
		return n, nil
	}
	*n = ast.Node{Type: ast.NodeArray, Elements: elems, Position: -1}
	return n, nil
}

func (p *Parser) parseObject(v value.Value) (*ast.Node, error) {
	switch len(v.Obj) {
	case 0:
		n := p.alloc()
		*n = ast.Node{Type: ast.NodeLiteral, Literal: value.Object(nil), Position: -1}
		return n, nil
	case 1:
		kv := v.Obj[0]
		switch kv.Key {
		case "var":
			return p.parseVar(kv.Val, false)
		case "val":
			return p.parseVar(kv.Val, true)
		case "preserve":
			n := p.alloc()
			*n = ast.Node{Type: ast.NodeLiteral, Literal: kv.Val, Position: -1}
			return n, nil
		default:
			if op, ok := ast.LookupOperator(kv.Key); ok {
				return p.parseOperator(op, kv.Val)
			}
			return p.parseCustomOperator(kv.Key, kv.Val)
		}
	default:
		return nil, jlerrors.New(jlerrors.ParseMultiKeyObject, "rule object must have exactly one key").
			WithOperator(v.Obj[0].Key)
	}
}

// argList normalizes an operator's raw argument value into a slice:
// an Array becomes its elements, anything else becomes a one-element
// list (JSONLogic's convention for single-argument operator calls like
// {"!": true}).
func argList(v value.Value) []value.Value {
	if v.Kind == value.KindArray {
		return v.Arr
	}
	return []value.Value{v}
}

func (p *Parser) parseOperator(op ast.OperatorType, raw value.Value) (*ast.Node, error) {
	args := argList(raw)
	parsed := make([]*ast.Node, len(args))
	for i, a := range args {
		child, err := p.parseNode(a)
		if err != nil {
			return nil, err
		}
		parsed[i] = child
	}
	n := p.alloc()
	*n = ast.Node{Type: ast.NodeOperator, Op: op, Args: parsed, Position: -1}
	return n, nil
}

func (p *Parser) parseCustomOperator(name string, raw value.Value) (*ast.Node, error) {
	args := argList(raw)
	parsed := make([]*ast.Node, len(args))
	for i, a := range args {
		child, err := p.parseNode(a)
		if err != nil {
			return nil, err
		}
		parsed[i] = child
	}
	n := p.alloc()
	*n = ast.Node{Type: ast.NodeCustomOperator, Name: p.intern(name), Args: parsed, Position: -1}
	return n, nil
}

var integerSegment = regexp.MustCompile(`^-?[0-9]+$`)

// pathValue turns a dotted string, bare string, or integer into the
// structured path.Value the var/val operators carry: a String, an
// Int, or an Array mixing the two.
func pathValue(raw value.Value) value.Value {
	if raw.Kind == value.KindString && strings.Contains(raw.Str, ".") {
		parts := strings.Split(raw.Str, ".")
		segs := make([]value.Value, len(parts))
		for i, s := range parts {
			if integerSegment.MatchString(s) {
				n, _ := strconv.ParseInt(s, 10, 64)
				segs[i] = value.Int(n)
			} else {
				segs[i] = value.Str(s)
			}
		}
		return value.Array(segs)
	}
	return raw
}

// parseVar handles both "var" and "val". "val" additionally accepts a
// leading [[n]] prefix encoding scope_jump=n and delegates its dotted-
// path / array-path handling to the same pathValue logic as "var".
func (p *Parser) parseVar(raw value.Value, isVal bool) (*ast.Node, error) {
	var scopeJump *int
	body := raw

	if isVal && body.Kind == value.KindArray && len(body.Arr) > 0 &&
		body.Arr[0].Kind == value.KindArray {
		prefix := body.Arr[0]
		if n := len(prefix.Arr); n == 1 && prefix.Arr[0].IsNumber() {
			jump := int(prefix.Arr[0].AsFloat())
			scopeJump = &jump
			body = value.Array(body.Arr[1:])
		}
	}

	// Empty string, empty array, or Null path means "the current data".
	if body.Kind == value.KindNull ||
		(body.Kind == value.KindString && body.Str == "") ||
		(body.Kind == value.KindArray && len(body.Arr) == 0) {
		n := p.alloc()
		*n = ast.Node{Type: ast.NodeVariable, Path: value.Str(""), ScopeJump: scopeJump, Position: -1}
		return n, nil
	}

	// [path] or [path, default]
	if body.Kind == value.KindArray {
		pathRaw := body.Arr[0]
		var defaultRaw *value.Value
		if len(body.Arr) > 1 {
			d := body.Arr[1]
			defaultRaw = &d
		}
		if pathRaw.Kind == value.KindObject || (defaultRaw != nil && defaultRaw.Kind == value.KindObject) {
			return p.dynamicVar(pathRaw, defaultRaw, scopeJump)
		}
		n := p.alloc()
		*n = ast.Node{Type: ast.NodeVariable, Path: pathValue(pathRaw), ScopeJump: scopeJump, Position: -1}
		if defaultRaw != nil {
			n.Default = defaultRaw
		}
		return n, nil
	}

	if body.Kind == value.KindObject {
		return p.dynamicVar(body, nil, scopeJump)
	}

	n := p.alloc()
	*n = ast.Node{Type: ast.NodeVariable, Path: pathValue(body), ScopeJump: scopeJump, Position: -1}
	return n, nil
}

func (p *Parser) dynamicVar(pathRaw value.Value, defaultRaw *value.Value, scopeJump *int) (*ast.Node, error) {
	pathExpr, err := p.parseNode(pathRaw)
	if err != nil {
		return nil, err
	}
	n := p.alloc()
	*n = ast.Node{Type: ast.NodeDynamicVariable, PathExpr: pathExpr, ScopeJump: scopeJump, Position: -1}
	if defaultRaw != nil {
		defExpr, err := p.parseNode(*defaultRaw)
		if err != nil {
			return nil, err
		}
		n.DefaultExpr = defExpr
	}
	return n, nil
}
