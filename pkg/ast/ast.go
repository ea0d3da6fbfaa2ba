// Package ast defines the compile-time intermediate representation
// produced by the parser and consumed by the compiler. Node is a tagged
// union describing literals, variable references and operator
// applications that make up a JSONLogic rule tree.
package ast

import "github.com/corvidrules/jsonlogic/pkg/value"

// NodeType discriminates Node's variant.
type NodeType uint8

const (
	NodeLiteral NodeType = iota
	NodeArray          // heterogeneous element list requiring evaluation
	NodeArrayLiteral   // all-literal fast path
	NodeVariable       // var / val with a static path
	NodeDynamicVariable
	NodeOperator
	NodeCustomOperator
)

// OperatorType enumerates the closed JSONLogic operator vocabulary.
// CustomOperator nodes carry a free-form Name instead.
type OperatorType uint8

const (
	OpAdd OperatorType = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpMin
	OpMax
	OpAbs
	OpCeil
	OpFloor
	OpEqual
	OpStrictEqual
	OpNotEqual
	OpStrictNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpIn
	OpAnd
	OpOr
	OpNot
	OpDNot
	OpCoalesce
	OpIf
	OpTernary
	OpMissing
	OpMissingSome
	OpExists
	OpMap
	OpFilter
	OpReduce
	OpAll
	OpSome
	OpNone
	OpMerge
	OpCat
	OpSubstr
	OpLog
)

// operatorNames maps the closed vocabulary's JSON keys to OperatorType.
// Built once; consulted by the parser's single-key object dispatch.
var operatorNames = map[string]OperatorType{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod,
	"min": OpMin, "max": OpMax, "abs": OpAbs, "ceil": OpCeil, "floor": OpFloor,
	"==": OpEqual, "===": OpStrictEqual, "!=": OpNotEqual, "!==": OpStrictNotEqual,
	"<": OpLessThan, "<=": OpLessThanOrEqual, ">": OpGreaterThan, ">=": OpGreaterThanOrEqual,
	"in": OpIn,
	"and": OpAnd, "or": OpOr, "!": OpNot, "!!": OpDNot, "??": OpCoalesce,
	"if": OpIf, "?:": OpTernary,
	"missing": OpMissing, "missing_some": OpMissingSome, "exists": OpExists,
	"map": OpMap, "filter": OpFilter, "reduce": OpReduce,
	"all": OpAll, "some": OpSome, "none": OpNone, "merge": OpMerge,
	"cat": OpCat, "substr": OpSubstr,
	"log": OpLog,
}

// LookupOperator returns the OperatorType for a JSON key in the closed
// vocabulary, and ok=false if key is not one of the known operators
// (in which case the parser emits a CustomOperator node instead).
func LookupOperator(key string) (OperatorType, bool) {
	op, ok := operatorNames[key]
	return op, ok
}

// Node is the AST's single variant type. Only the fields relevant to
// Type are meaningful; a single wide struct is used rather than a Go
// interface hierarchy, since it lets the arena allocate nodes as a
// flat, reusable slab instead of one heap object per node.
type Node struct {
	Type NodeType

	// NodeLiteral / NodeArrayLiteral
	Literal      value.Value
	LiteralArray []value.Value

	// NodeArray
	Elements []*Node

	// NodeVariable / NodeDynamicVariable
	Path       value.Value // static path (NodeVariable only)
	PathExpr   *Node       // computed path (NodeDynamicVariable only)
	Default    *value.Value
	DefaultExpr *Node
	ScopeJump  *int

	// NodeOperator / NodeCustomOperator
	Op       OperatorType
	Name     string // CustomOperator only
	Args     []*Node

	// Position is a byte offset into the original rule text, used only
	// for diagnostics; -1 when not tracked (e.g. nodes synthesized by
	// constant folding).
	Position int
}

// IsStatic reports whether n and every descendant is a literal, array
// literal, or a pure operator over static operands. Data-accessing node
// types (Variable, DynamicVariable) and the Log/Map/Filter/Reduce/All/
// Some/None/Missing/MissingSome operators are never static, since their
// result depends on the data context or has an observable side effect.
func IsStatic(n *Node) bool {
	switch n.Type {
	case NodeLiteral, NodeArrayLiteral:
		return true
	case NodeArray:
		for _, e := range n.Elements {
			if !IsStatic(e) {
				return false
			}
		}
		return true
	case NodeVariable, NodeDynamicVariable, NodeCustomOperator:
		return false
	case NodeOperator:
		if !isPureOperator(n.Op) {
			return false
		}
		for _, a := range n.Args {
			if !IsStatic(a) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isPureOperator(op OperatorType) bool {
	switch op {
	case OpMap, OpFilter, OpReduce, OpAll, OpSome, OpNone, OpLog, OpMissing, OpMissingSome, OpExists:
		return false
	default:
		return true
	}
}
