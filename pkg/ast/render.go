package ast

import (
	"strings"

	"github.com/corvidrules/jsonlogic/pkg/value"
)

// operatorJSONNames is the inverse of operatorNames, built once.
var operatorJSONNames = reverseOperatorNames()

func reverseOperatorNames() map[OperatorType]string {
	m := make(map[OperatorType]string, len(operatorNames))
	for k, v := range operatorNames {
		m[v] = k
	}
	return m
}

// OperatorName returns the JSON key for op, the inverse of
// LookupOperator.
func OperatorName(op OperatorType) (string, bool) {
	name, ok := operatorJSONNames[op]
	return name, ok
}

// Render turns n back into the JSON-shaped value.Value a parser would
// accept, producing a tree that evaluates identically to n against
// every data context. It is the structural inverse of parseNode: it
// does not reproduce n's original JSON text byte-for-byte (a literal
// object gets rewrapped in "preserve", a scope_jump var always comes
// back as "val", a dotted static path always comes back joined into a
// single string), only its evaluation semantics.
func Render(n *Node) value.Value {
	switch n.Type {
	case NodeLiteral:
		return literalJSON(n.Literal)
	case NodeArrayLiteral:
		out := make([]value.Value, len(n.LiteralArray))
		for i, v := range n.LiteralArray {
			out[i] = literalJSON(v)
		}
		return value.Array(out)
	case NodeArray:
		out := make([]value.Value, len(n.Elements))
		for i, e := range n.Elements {
			out[i] = Render(e)
		}
		return value.Array(out)
	case NodeVariable:
		return renderVarBody(flattenPath(n.Path), n.Default, n.ScopeJump)
	case NodeDynamicVariable:
		pathJSON := Render(n.PathExpr)
		var defJSON *value.Value
		if n.DefaultExpr != nil {
			d := Render(n.DefaultExpr)
			defJSON = &d
		}
		return renderVarBody(pathJSON, defJSON, n.ScopeJump)
	case NodeOperator:
		name, ok := OperatorName(n.Op)
		if !ok {
			return value.Null
		}
		return renderCall(name, n.Args)
	case NodeCustomOperator:
		return renderCall(n.Name, n.Args)
	default:
		return value.Null
	}
}

// literalJSON produces the JSON form of a literal value, rewrapping any
// embedded object (at any nesting depth) in a "preserve" so the parser
// takes it as data instead of dispatching on its key: parseObject
// rejects objects with more than one key outright and dispatches any
// single-key object as var/val/an operator/a custom operator, so a
// literal object can only ever be reproduced through preserve.
func literalJSON(v value.Value) value.Value {
	switch v.Kind {
	case value.KindObject:
		return value.Object([]value.KV{{Key: "preserve", Val: v}})
	case value.KindArray:
		out := make([]value.Value, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = literalJSON(e)
		}
		return value.Array(out)
	default:
		return v
	}
}

// flattenPath turns a static var Path back into the single string or
// number a "var"/"val" body argument expects. A Path holding an Array
// only ever arose from pathValue splitting a dotted string on ".", so
// rejoining its segments with "." recovers an equivalent path: handing
// the array back unchanged would instead be read as a [path, default]
// pair by parseVar.
func flattenPath(path value.Value) value.Value {
	if path.Kind != value.KindArray {
		return path
	}
	parts := make([]string, len(path.Arr))
	for i, seg := range path.Arr {
		parts[i] = value.ToDisplayString(seg)
	}
	return value.Str(strings.Join(parts, "."))
}

// renderVarBody assembles the "var"/"val" argument body: path alone,
// [path, default] when a default is present, and for a non-nil
// scopeJump a leading [n] prefix element ahead of whichever of those
// two shapes applies, always under the "val" key since only "val"
// accepts the scope_jump prefix.
func renderVarBody(pathJSON value.Value, defJSON *value.Value, scopeJump *int) value.Value {
	var body value.Value
	if defJSON != nil {
		body = value.Array([]value.Value{pathJSON, *defJSON})
	} else {
		body = pathJSON
	}
	key := "var"
	if scopeJump != nil {
		key = "val"
		prefix := value.Array([]value.Value{value.Int(int64(*scopeJump))})
		elems := []value.Value{prefix}
		if body.Kind == value.KindArray {
			elems = append(elems, body.Arr...)
		} else {
			elems = append(elems, body)
		}
		body = value.Array(elems)
	}
	return value.Object([]value.KV{{Key: key, Val: body}})
}

func renderCall(name string, args []*Node) value.Value {
	elems := make([]value.Value, len(args))
	for i, a := range args {
		elems[i] = Render(a)
	}
	return value.Object([]value.KV{{Key: name, Val: value.Array(elems)}})
}
