package compiler

import (
	"github.com/corvidrules/jsonlogic/pkg/ast"
	jlerrors "github.com/corvidrules/jsonlogic/pkg/errors"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

// Options configures Lower via the functional-options idiom for
// compile-time settings.
type Options struct {
	MaxInstructions int
	FoldConstants   bool
}

type Option func(*Options)

func WithMaxInstructions(n int) Option {
	return func(o *Options) { o.MaxInstructions = n }
}

// WithFoldConstants enables constant folding of a fully-static root:
// when the whole tree is static it is evaluated once at compile time
// and replaced by a single LoadConst. Static subtrees below a
// non-static root are compiled as they are. Enabled by default.
func WithFoldConstants(enabled bool) Option {
	return func(o *Options) { o.FoldConstants = enabled }
}

type lowerer struct {
	consts      *constPool
	instrs      []Instr
	opts        Options
	subPrograms []*Program
}

// Lower compiles root into a Program. Evaluator is used only for
// constant folding: when root as a whole is static it is evaluated
// against Null and replaced with the resulting literal, without running
// the general VM over partially-compiled state. Nested static subtrees
// are not folded on their own.
func Lower(root *ast.Node, evaluator func(*ast.Node) (value.Value, error), opts ...Option) (*Program, error) {
	o := Options{MaxInstructions: DefaultMaxInstructions, FoldConstants: true}
	for _, opt := range opts {
		opt(&o)
	}
	lw := &lowerer{consts: newConstPool(), opts: o}
	if o.FoldConstants && evaluator != nil && ast.IsStatic(root) {
		v, err := evaluator(root)
		if err == nil {
			root = &ast.Node{Type: ast.NodeLiteral, Literal: v, Position: -1}
		}
	}
	if err := lw.emitNode(root); err != nil {
		return nil, err
	}
	if len(lw.instrs) == 0 || lw.instrs[len(lw.instrs)-1].OpCode() != OpReturn {
		lw.instrs = append(lw.instrs, MakeInstr(OpReturn, 0))
	}
	total := len(lw.instrs)
	for _, sp := range lw.subPrograms {
		total += len(sp.Instructions)
	}
	if total > lw.opts.MaxInstructions {
		return nil, jlerrors.New(jlerrors.LoweringInstrLimit, "instruction count exceeds compile-time limit")
	}
	return &Program{Instructions: lw.instrs, ConstPool: lw.consts.values, SubPrograms: lw.subPrograms}, nil
}

// compileSub lowers n as an independent Program with its own
// instruction vector and constant pool, appends it to the shared
// sub-program table, and returns its index. Used by Map/Filter/Reduce/
// All/Some/None to compile their body once at lowering time rather
// than re-parsing it on every iteration.
func (lw *lowerer) compileSub(n *ast.Node) (int, error) {
	child := &lowerer{consts: newConstPool(), opts: lw.opts, subPrograms: lw.subPrograms}
	if err := child.emitNode(n); err != nil {
		return 0, err
	}
	if len(child.instrs) == 0 || child.instrs[len(child.instrs)-1].OpCode() != OpReturn {
		child.instrs = append(child.instrs, MakeInstr(OpReturn, 0))
	}
	lw.subPrograms = child.subPrograms
	idx := len(lw.subPrograms)
	lw.subPrograms = append(lw.subPrograms, &Program{Instructions: child.instrs, ConstPool: child.consts.values})
	return idx, nil
}

func (lw *lowerer) emit(i Instr) int {
	lw.instrs = append(lw.instrs, i)
	return len(lw.instrs) - 1
}

func (lw *lowerer) here() int {
	return len(lw.instrs)
}

func (lw *lowerer) patchJump(at int, target int) {
	op := lw.instrs[at].OpCode()
	lw.instrs[at] = MakeInstr(op, uint32(target))
}

func (lw *lowerer) loadConst(v value.Value) error {
	idx, err := lw.consts.add(v)
	if err != nil {
		return err
	}
	lw.emit(MakeInstr(OpLoadConst, uint32(idx)))
	return nil
}

func (lw *lowerer) emitNode(n *ast.Node) error {
	switch n.Type {
	case ast.NodeLiteral:
		return lw.loadConst(n.Literal)
	case ast.NodeArrayLiteral:
		return lw.loadConst(value.Array(n.LiteralArray))
	case ast.NodeArray:
		// Evaluate each element then collect exactly that many values
		// off the stack into an array via Call(MakeArray).
		for _, e := range n.Elements {
			if err := lw.emitNode(e); err != nil {
				return err
			}
		}
		lw.emit(MakeCall(TagMakeArray, uint16(len(n.Elements))))
		return nil
	case ast.NodeVariable:
		return lw.emitVariable(n)
	case ast.NodeDynamicVariable:
		return lw.emitDynamicVariable(n)
	case ast.NodeOperator:
		return lw.emitOperator(n)
	case ast.NodeCustomOperator:
		return jlerrors.New(jlerrors.LoweringUnimplemented, "operator not implemented by this backend").WithOperator(n.Name)
	default:
		return jlerrors.New(jlerrors.LoweringUnimplemented, "unrecognized AST node")
	}
}

// emitVariable lowers a static-path Variable node. When the path has
// neither a default nor a scope_jump it compiles to the compact
// LoadVar(path_idx) form; otherwise it falls back to the
// LoadDynamicVar stack convention (push path, default, scope_jump;
// then LoadDynamicVar) since LoadVar's 24-bit immediate has room only
// for the path's constant-pool index.
func (lw *lowerer) emitVariable(n *ast.Node) error {
	if n.Default == nil && n.ScopeJump == nil {
		pathIdx, err := lw.consts.add(n.Path)
		if err != nil {
			return err
		}
		lw.emit(MakeInstr(OpLoadVar, uint32(pathIdx)))
		return nil
	}
	if err := lw.loadConst(n.Path); err != nil {
		return err
	}
	if n.Default != nil {
		if err := lw.loadConst(*n.Default); err != nil {
			return err
		}
	} else {
		if err := lw.loadConst(value.Null); err != nil {
			return err
		}
	}
	scopeJump := int64(0)
	if n.ScopeJump != nil {
		scopeJump = int64(*n.ScopeJump)
	}
	if err := lw.loadConst(value.Int(scopeJump)); err != nil {
		return err
	}
	lw.emit(MakeInstr(OpLoadDynamicVar, 0))
	return nil
}

func (lw *lowerer) emitDynamicVariable(n *ast.Node) error {
	if err := lw.emitNode(n.PathExpr); err != nil {
		return err
	}
	if n.DefaultExpr != nil {
		if err := lw.emitNode(n.DefaultExpr); err != nil {
			return err
		}
	} else {
		if err := lw.loadConst(value.Null); err != nil {
			return err
		}
	}
	scopeJump := int64(0)
	if n.ScopeJump != nil {
		scopeJump = int64(*n.ScopeJump)
	}
	if err := lw.loadConst(value.Int(scopeJump)); err != nil {
		return err
	}
	lw.emit(MakeInstr(OpLoadDynamicVar, 0))
	return nil
}

// variadicTags maps an ast.OperatorType to its bytecode OpTag for the
// operators compiled through OpVariadic.
var variadicTags = map[ast.OperatorType]OpTag{
	ast.OpAdd: TagAdd, ast.OpSub: TagSub, ast.OpMul: TagMul, ast.OpDiv: TagDiv, ast.OpMod: TagMod,
	ast.OpMin: TagMin, ast.OpMax: TagMax,
	ast.OpAbs: TagAbs, ast.OpCeil: TagCeil, ast.OpFloor: TagFloor,
	ast.OpEqual: TagEqual, ast.OpNotEqual: TagNotEqual,
	ast.OpStrictEqual: TagStrictEqual, ast.OpStrictNotEqual: TagStrictNotEqual,
	ast.OpLessThan: TagLessThan, ast.OpLessThanOrEqual: TagLessThanOrEqual,
	ast.OpGreaterThan: TagGreaterThan, ast.OpGreaterThanOrEqual: TagGreaterThanOrEqual,
	ast.OpAnd: TagAnd, ast.OpOr: TagOr, ast.OpCoalesce: TagCoalesce,
	ast.OpIn: TagIn, ast.OpNot: TagNot, ast.OpDNot: TagDNot,
}

// callTags covers the built-ins whose arguments are all ordinary,
// eagerly-evaluated value expressions. Map/Filter/Reduce/All/Some/None
// are handled separately (emitIterator/emitReduce) because their
// second argument is a rule body that must run once per array element
// rather than once at compile time.
var callTags = map[ast.OperatorType]CallTag{
	ast.OpMerge: TagMerge, ast.OpCat: TagCat, ast.OpSubstr: TagSubstring,
	ast.OpLog: TagLog, ast.OpMissing: TagMissing, ast.OpMissingSome: TagMissingSome,
}

var iteratorTags = map[ast.OperatorType]CallTag{
	ast.OpMap: TagMap, ast.OpFilter: TagFilter,
	ast.OpAll: TagAll, ast.OpSome: TagSome, ast.OpNone: TagNone,
}

func (lw *lowerer) emitOperator(n *ast.Node) error {
	switch n.Op {
	case ast.OpIf, ast.OpTernary:
		return lw.emitIf(n)
	case ast.OpExists:
		return lw.emitExists(n)
	case ast.OpSubstr:
		return lw.emitSubstr(n)
	case ast.OpReduce:
		return lw.emitReduce(n)
	}
	if tag, ok := iteratorTags[n.Op]; ok {
		return lw.emitIterator(n, tag)
	}
	if tag, ok := variadicTags[n.Op]; ok {
		// Operands are pushed in reverse source order so that they pop
		// in forward order.
		for i := len(n.Args) - 1; i >= 0; i-- {
			if err := lw.emitNode(n.Args[i]); err != nil {
				return err
			}
		}
		lw.emit(MakeVariadic(tag, uint16(len(n.Args))))
		return nil
	}
	if tag, ok := callTags[n.Op]; ok {
		for _, a := range n.Args {
			if err := lw.emitNode(a); err != nil {
				return err
			}
		}
		lw.emit(MakeCall(tag, uint16(len(n.Args))))
		return nil
	}
	return jlerrors.New(jlerrors.LoweringUnimplemented, "operator not implemented by this backend")
}

// emitIf lowers `if [c1, v1, c2, v2, ..., else]`: for
// each (condition, value) pair, evaluate the condition, JumpIfFalse to
// the next pair, evaluate the value, Jump to the end. An odd trailing
// argument is the default else branch. An empty argument list loads
// Null; a single-argument form evaluates that argument directly.
func (lw *lowerer) emitIf(n *ast.Node) error {
	args := n.Args
	if len(args) == 0 {
		return lw.loadConst(value.Null)
	}
	if len(args) == 1 {
		return lw.emitNode(args[0])
	}

	var endJumps []int
	i := 0
	for i+1 < len(args) {
		cond, val := args[i], args[i+1]
		if err := lw.emitNode(cond); err != nil {
			return err
		}
		jf := lw.emit(MakeInstr(OpJumpIfFalse, 0))
		if err := lw.emitNode(val); err != nil {
			return err
		}
		endJumps = append(endJumps, lw.emit(MakeInstr(OpJump, 0)))
		lw.patchJump(jf, lw.here())
		i += 2
	}
	if i < len(args) {
		if err := lw.emitNode(args[i]); err != nil {
			return err
		}
	} else {
		if err := lw.loadConst(value.Null); err != nil {
			return err
		}
	}
	end := lw.here()
	for _, j := range endJumps {
		lw.patchJump(j, end)
	}
	return nil
}

// emitExists compiles `{"exists": path}` by reusing the Missing
// built-in's presence check: Missing([path]) returns [path] (a
// truthy, non-empty array) when the path does not resolve, and []
// (falsy) when it does, so Not(Missing([path])) is exactly the
// presence predicate: a presence-only query that yields a Bool rather
// than the resolved value.
func (lw *lowerer) emitExists(n *ast.Node) error {
	if len(n.Args) != 1 {
		return jlerrors.New(jlerrors.LoweringUnimplemented, "exists takes exactly one path argument")
	}
	if err := lw.emitNode(n.Args[0]); err != nil {
		return err
	}
	lw.emit(MakeCall(TagMissing, 1))
	lw.emit(MakeVariadic(TagNot, 1))
	return nil
}

// emitSubstr pushes string, then start, then optional length, so the
// VM pops length first.
func (lw *lowerer) emitSubstr(n *ast.Node) error {
	if len(n.Args) < 2 {
		return jlerrors.New(jlerrors.LoweringUnimplemented, "substr requires at least a string and a start index")
	}
	if err := lw.emitNode(n.Args[0]); err != nil {
		return err
	}
	if err := lw.emitNode(n.Args[1]); err != nil {
		return err
	}
	argc := uint16(2)
	if len(n.Args) > 2 {
		if err := lw.emitNode(n.Args[2]); err != nil {
			return err
		}
		argc = 3
	}
	lw.emit(MakeCall(TagSubstring, argc))
	return nil
}

// emitIterator lowers {"map"|"filter"|"all"|"some"|"none": [array,
// body]}. The array expression is compiled and evaluated normally;
// the body is compiled once into its own sub-program, referenced by
// an Int index pushed through the const pool (stack order: array,
// then sub-program index, so the VM pops the index first).
func (lw *lowerer) emitIterator(n *ast.Node, tag CallTag) error {
	if len(n.Args) != 2 {
		return jlerrors.New(jlerrors.LoweringUnimplemented, "iteration operator requires an array and a body").WithOperator(callTagName(tag))
	}
	if err := lw.emitNode(n.Args[0]); err != nil {
		return err
	}
	subIdx, err := lw.compileSub(n.Args[1])
	if err != nil {
		return err
	}
	if err := lw.loadConst(value.Int(int64(subIdx))); err != nil {
		return err
	}
	lw.emit(MakeCall(tag, 2))
	return nil
}

// emitReduce lowers {"reduce": [array, body, initial]}. Stack order:
// array, initial, then the body's sub-program index, so the VM pops
// the index first, then the initial accumulator, then the array.
func (lw *lowerer) emitReduce(n *ast.Node) error {
	if len(n.Args) != 3 {
		return jlerrors.New(jlerrors.LoweringUnimplemented, "reduce requires an array, a body, and an initial value").WithOperator("reduce")
	}
	if err := lw.emitNode(n.Args[0]); err != nil {
		return err
	}
	if err := lw.emitNode(n.Args[2]); err != nil {
		return err
	}
	subIdx, err := lw.compileSub(n.Args[1])
	if err != nil {
		return err
	}
	if err := lw.loadConst(value.Int(int64(subIdx))); err != nil {
		return err
	}
	lw.emit(MakeCall(TagReduce, 3))
	return nil
}

func callTagName(tag CallTag) string {
	switch tag {
	case TagMap:
		return "map"
	case TagFilter:
		return "filter"
	case TagAll:
		return "all"
	case TagSome:
		return "some"
	case TagNone:
		return "none"
	default:
		return "iterator"
	}
}
