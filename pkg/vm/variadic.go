package vm

import (
	"math"

	"github.com/corvidrules/jsonlogic/pkg/compiler"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

// applyVariadic implements the n-ary arithmetic, comparison and
// logical operators. Every one of these is a total function: there is
// no error return because these operators never fault on bad input —
// they coerce instead.
func (e *Engine) applyVariadic(tag compiler.OpTag, args []value.Value) value.Value {
	switch tag {
	case compiler.TagAdd:
		if len(args) == 0 {
			return value.Int(0)
		}
		acc := value.CoerceToNumber(args[0])
		for _, a := range args[1:] {
			acc = value.AddPair(acc, a)
		}
		return acc

	case compiler.TagSub:
		switch len(args) {
		case 0:
			return value.Int(0)
		case 1:
			return value.Negate(args[0])
		default:
			acc := value.CoerceToNumber(args[0])
			for _, a := range args[1:] {
				acc = value.SubPair(acc, a)
			}
			return acc
		}

	case compiler.TagMul:
		if len(args) == 0 {
			return value.Int(1)
		}
		acc := value.CoerceToNumber(args[0])
		for _, a := range args[1:] {
			acc = value.MulPair(acc, a)
		}
		return acc

	case compiler.TagDiv:
		switch len(args) {
		case 0:
			return value.Int(0)
		case 1:
			return e.divGuard(value.Reciprocal, args[0])
		default:
			acc := value.CoerceToNumber(args[0])
			for _, a := range args[1:] {
				acc = e.divPairGuard(acc, a)
			}
			return acc
		}

	case compiler.TagMod:
		if len(args) < 2 {
			return value.Int(0)
		}
		acc := value.CoerceToNumber(args[0])
		for _, a := range args[1:] {
			acc = value.ModPair(acc, a)
		}
		return acc

	case compiler.TagMin:
		if len(args) == 0 {
			return value.Int(0)
		}
		acc := args[0]
		for _, a := range args[1:] {
			acc = value.MinPair(acc, a)
		}
		return acc

	case compiler.TagMax:
		if len(args) == 0 {
			return value.Int(0)
		}
		acc := args[0]
		for _, a := range args[1:] {
			acc = value.MaxPair(acc, a)
		}
		return acc

	case compiler.TagAbs:
		if len(args) == 0 {
			return value.Int(0)
		}
		n := value.CoerceToNumber(args[0])
		if n.Kind == value.KindInt {
			if n.Int < 0 {
				return value.Int(-n.Int)
			}
			return n
		}
		return value.Float(math.Abs(n.Float))

	case compiler.TagCeil:
		if len(args) == 0 {
			return value.Int(0)
		}
		return clampFloorCeil(math.Ceil(value.CoerceToNumber(args[0]).AsFloat()))

	case compiler.TagFloor:
		if len(args) == 0 {
			return value.Int(0)
		}
		return clampFloorCeil(math.Floor(value.CoerceToNumber(args[0]).AsFloat()))

	case compiler.TagEqual:
		return value.Bool_(allEqual(args, value.LooseEquals))
	case compiler.TagNotEqual:
		return value.Bool_(!allEqual(args, value.LooseEquals))
	case compiler.TagStrictEqual:
		return value.Bool_(allEqual(args, value.StrictEquals))
	case compiler.TagStrictNotEqual:
		return value.Bool_(!allEqual(args, value.StrictEquals))

	case compiler.TagLessThan:
		return value.Bool_(chained(args, func(a, b value.Value) bool { return value.Compare(a, b) == value.Less }))
	case compiler.TagLessThanOrEqual:
		return value.Bool_(chained(args, func(a, b value.Value) bool { return value.Compare(a, b) != value.Greater }))
	case compiler.TagGreaterThan:
		return value.Bool_(chained(args, func(a, b value.Value) bool { return value.Compare(a, b) == value.Greater }))
	case compiler.TagGreaterThanOrEqual:
		return value.Bool_(chained(args, func(a, b value.Value) bool { return value.Compare(a, b) != value.Less }))

	case compiler.TagAnd:
		return andOr(args, true)
	case compiler.TagOr:
		return andOr(args, false)
	case compiler.TagCoalesce:
		for _, a := range args {
			if a.Kind != value.KindNull {
				return a
			}
		}
		return value.Null

	case compiler.TagIn:
		if len(args) < 2 {
			return value.Bool_(false)
		}
		return value.Bool_(inOp(args[0], args[1]))

	case compiler.TagNot:
		if len(args) == 0 {
			return value.Bool_(true)
		}
		return value.Bool_(!value.Truthy(args[0]))
	case compiler.TagDNot:
		if len(args) == 0 {
			return value.Bool_(false)
		}
		return value.Bool_(value.Truthy(args[0]))

	default:
		return value.Null
	}
}

func (e *Engine) divGuard(f func(value.Value) value.Value, a value.Value) value.Value {
	n := value.CoerceToNumber(a)
	if n.AsFloat() == 0 {
		if e.DivideByZeroPolicy == ZeroOnDivideByZero {
			return value.Int(0)
		}
		return value.Int(0) // ErrorOnDivideByZero also yields 0: no error is raised on any path.
	}
	return f(a)
}

func (e *Engine) divPairGuard(a, b value.Value) value.Value {
	bn := value.CoerceToNumber(b)
	if bn.AsFloat() == 0 {
		return value.Int(0)
	}
	return value.DivPair(a, b)
}

// allEqual reports whether every operand equals args[0] under eq. The
// empty and single-element cases are vacuously true.
func allEqual(args []value.Value, eq func(a, b value.Value) bool) bool {
	if len(args) <= 1 {
		return true
	}
	for _, a := range args[1:] {
		if !eq(args[0], a) {
			return false
		}
	}
	return true
}

// chained reports whether every adjacent pair in args satisfies rel.
// Zero or one operands vacuously satisfy the chain.
func chained(args []value.Value, rel func(a, b value.Value) bool) bool {
	for i := 0; i+1 < len(args); i++ {
		if !rel(args[i], args[i+1]) {
			return false
		}
	}
	return true
}

// andOr implements the shared short-circuit-by-value selection logic
// for And (wantFalsy=true: return the first falsy operand, else the
// last) and Or (wantFalsy=false: return the first truthy operand, else
// the last). Operands have already been evaluated eagerly by the time
// this runs, since the fixed opcode set has no stack-dup primitive
// with which to skip evaluating later operands; Log side effects
// nested in an unreached branch therefore still execute.
func andOr(args []value.Value, wantFalsy bool) value.Value {
	if len(args) == 0 {
		return value.Bool_(true)
	}
	for _, a := range args {
		if value.Truthy(a) == wantFalsy {
			continue
		}
		return a
	}
	return args[len(args)-1]
}

func inOp(needle, haystack value.Value) bool {
	switch haystack.Kind {
	case value.KindArray:
		for _, e := range haystack.Arr {
			if value.LooseEquals(needle, e) {
				return true
			}
		}
		return false
	case value.KindString:
		n := value.ToDisplayString(needle)
		return containsSubstring(haystack.Str, n)
	default:
		return false
	}
}

func containsSubstring(haystack, needle string) bool {
	if len(needle) == 0 {
		return true
	}
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
