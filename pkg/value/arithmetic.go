package value

import "math"

// AddPair implements integer-preserving addition: the result is an Int
// when both operands are Int and the mathematical sum does not
// overflow int64; otherwise it is a Float.
func AddPair(a, b Value) Value {
	a, b = CoerceToNumber(a), CoerceToNumber(b)
	if a.Kind == KindInt && b.Kind == KindInt {
		sum := a.Int + b.Int
		// overflow check: signs of operands equal but differ from result
		if (a.Int > 0 && b.Int > 0 && sum < 0) || (a.Int < 0 && b.Int < 0 && sum > 0) {
			return Float(float64(a.Int) + float64(b.Int))
		}
		return Int(sum)
	}
	return Float(a.AsFloat() + b.AsFloat())
}

func SubPair(a, b Value) Value {
	a, b = CoerceToNumber(a), CoerceToNumber(b)
	if a.Kind == KindInt && b.Kind == KindInt {
		diff := a.Int - b.Int
		if (a.Int >= 0 && b.Int < 0 && diff < 0) || (a.Int < 0 && b.Int > 0 && diff > 0) {
			return Float(float64(a.Int) - float64(b.Int))
		}
		return Int(diff)
	}
	return Float(a.AsFloat() - b.AsFloat())
}

func MulPair(a, b Value) Value {
	a, b = CoerceToNumber(a), CoerceToNumber(b)
	if a.Kind == KindInt && b.Kind == KindInt {
		if a.Int == 0 || b.Int == 0 {
			return Int(0)
		}
		// a.Int*-1 (or b.Int*-1) where the negated operand is MinInt64
		// overflows back to MinInt64 itself in two's complement, so the
		// prod/divisor round-trip check below can't catch it.
		if (a.Int == math.MinInt64 && b.Int == -1) || (b.Int == math.MinInt64 && a.Int == -1) {
			return Float(float64(a.Int) * float64(b.Int))
		}
		prod := a.Int * b.Int
		if prod/b.Int != a.Int {
			return Float(float64(a.Int) * float64(b.Int))
		}
		return Int(prod)
	}
	return Float(a.AsFloat() * b.AsFloat())
}

// DivPair divides a by b, treating division by zero as yielding 0
// rather than raising an error.
func DivPair(a, b Value) Value {
	a, b = CoerceToNumber(a), CoerceToNumber(b)
	bf := b.AsFloat()
	if bf == 0 {
		return Int(0)
	}
	if a.Kind == KindInt && b.Kind == KindInt && b.Int != 0 && a.Int%b.Int == 0 {
		return Int(a.Int / b.Int)
	}
	return Float(a.AsFloat() / bf)
}

// ModPair implements integer modulo when both operands are Int, else 0.
func ModPair(a, b Value) Value {
	a, b = CoerceToNumber(a), CoerceToNumber(b)
	if a.Kind == KindInt && b.Kind == KindInt {
		if b.Int == 0 {
			return Int(0)
		}
		return Int(a.Int % b.Int)
	}
	return Int(0)
}

// Negate implements unary Sub (1-ary subtraction = negation).
func Negate(a Value) Value {
	a = CoerceToNumber(a)
	if a.Kind == KindInt {
		if a.Int == math.MinInt64 {
			return Float(-float64(a.Int))
		}
		return Int(-a.Int)
	}
	return Float(-a.Float)
}

// Reciprocal implements unary Div (1-ary division = reciprocal).
func Reciprocal(a Value) Value {
	a = CoerceToNumber(a)
	af := a.AsFloat()
	if af == 0 {
		return Int(0)
	}
	return Float(1 / af)
}

// MinPair / MaxPair use Compare, not raw float comparison, so they
// agree with the string/bool/number cross-type ordering rules.
func MinPair(a, b Value) Value {
	if Compare(a, b) == Greater {
		return b
	}
	return a
}

func MaxPair(a, b Value) Value {
	if Compare(a, b) == Less {
		return b
	}
	return a
}
