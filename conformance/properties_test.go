package conformance

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	jsonlogic "github.com/corvidrules/jsonlogic"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

// FuzzStaticFoldEquivalence checks that a fully static arithmetic
// subtree evaluates the same whether or not compile-time constant
// folding is enabled: folding changes when the add happens, never what
// it produces.
func FuzzStaticFoldEquivalence(f *testing.F) {
	f.Add(int64(1), int64(2), int64(3))
	f.Add(int64(0), int64(-5), int64(100))
	f.Fuzz(func(t *testing.T, a, b, c int64) {
		rule := fmt.Sprintf(`{"+":[%d,%d,%d]}`, a, b, c)

		folded := jsonlogic.NewSession(jsonlogic.WithFoldConstants(true))
		foldedProg, err := folded.CompileText(rule)
		if err != nil {
			t.Fatalf("compile folded: %v", err)
		}
		foldedResult, err := folded.Evaluate(context.Background(), foldedProg, value.Null)
		if err != nil {
			t.Fatalf("evaluate folded: %v", err)
		}

		unfolded := jsonlogic.NewSession(jsonlogic.WithFoldConstants(false))
		unfoldedProg, err := unfolded.CompileText(rule)
		if err != nil {
			t.Fatalf("compile unfolded: %v", err)
		}
		unfoldedResult, err := unfolded.Evaluate(context.Background(), unfoldedProg, value.Null)
		if err != nil {
			t.Fatalf("evaluate unfolded: %v", err)
		}

		if !value.StrictEquals(foldedResult, unfoldedResult) {
			t.Errorf("%s: folded %v != unfolded %v", rule, foldedResult, unfoldedResult)
		}
	})
}

// FuzzValueEqualityReflexive checks that every Value, across every
// Kind the fuzz inputs can build, equals itself under both LooseEquals
// and StrictEquals.
func FuzzValueEqualityReflexive(f *testing.F) {
	f.Add("hello", int64(42), true)
	f.Add("", int64(0), false)
	f.Fuzz(func(t *testing.T, s string, n int64, b bool) {
		candidates := []value.Value{
			value.Null,
			value.Bool_(b),
			value.Int(n),
			value.Float(float64(n) + 0.5),
			value.Str(s),
			value.Array([]value.Value{value.Str(s), value.Int(n)}),
			value.Object([]value.KV{{Key: "k", Val: value.Str(s)}, {Key: "n", Val: value.Int(n)}}),
		}
		for _, v := range candidates {
			if !value.LooseEquals(v, v) {
				t.Errorf("loose_equals(%v, %v) should hold", v, v)
			}
			if !value.StrictEquals(v, v) {
				t.Errorf("strict_equals(%v, %v) should hold", v, v)
			}
		}
	})
}

// FuzzCompareAntisymmetryAndLooseEquals checks compare's antisymmetry
// (Less one way iff Greater the other) and that an Equal verdict
// always implies loose_equals.
func FuzzCompareAntisymmetryAndLooseEquals(f *testing.F) {
	f.Add(int64(1), int64(2))
	f.Add(int64(5), int64(5))
	f.Add(int64(-3), int64(7))
	f.Fuzz(func(t *testing.T, x, y int64) {
		a, b := value.Int(x), value.Int(y)
		cab := value.Compare(a, b)
		cba := value.Compare(b, a)
		if (cab == value.Less) != (cba == value.Greater) {
			t.Errorf("compare(a,b)==Less should hold iff compare(b,a)==Greater: got %v, %v", cab, cba)
		}
		if cab == value.Equal && !value.LooseEquals(a, b) {
			t.Errorf("compare(a,b)==Equal should imply loose_equals(a,b)")
		}
	})
}

// FuzzAddSumEquivalence checks that the + operator's result equals the
// mathematical sum of its operands whenever every operand is finite.
func FuzzAddSumEquivalence(f *testing.F) {
	f.Add(1.5, 2.5, 3.0)
	f.Add(0.0, -4.25, 10.0)
	f.Fuzz(func(t *testing.T, a, b, c float64) {
		if math.IsNaN(a) || math.IsNaN(b) || math.IsNaN(c) ||
			math.IsInf(a, 0) || math.IsInf(b, 0) || math.IsInf(c, 0) {
			t.Skip("Add's sum property only holds for finite operands")
		}
		rule := fmt.Sprintf(`{"+":[%s,%s,%s]}`,
			strconv.FormatFloat(a, 'g', -1, 64),
			strconv.FormatFloat(b, 'g', -1, 64),
			strconv.FormatFloat(c, 'g', -1, 64))
		got := mustEval(t, rule, value.Null)
		want := a + b + c
		tol := 1e-9 * math.Max(1, math.Abs(want))
		if math.Abs(got.AsFloat()-want) > tol {
			t.Errorf("Add(%v,%v,%v) = %v, want %v", a, b, c, got.AsFloat(), want)
		}
	})
}

// FuzzAndSelectsFirstFalsyOrLast checks and's selection rule: the
// first falsy operand, or the last operand if every one is truthy.
func FuzzAndSelectsFirstFalsyOrLast(f *testing.F) {
	f.Add(int64(1), int64(0), int64(3))
	f.Add(int64(1), int64(2), int64(3))
	f.Fuzz(func(t *testing.T, a, b, c int64) {
		rule := fmt.Sprintf(`{"and":[%d,%d,%d]}`, a, b, c)
		got := mustEval(t, rule, value.Null)
		xs := []value.Value{value.Int(a), value.Int(b), value.Int(c)}
		want := xs[len(xs)-1]
		for _, x := range xs {
			if !value.Truthy(x) {
				want = x
				break
			}
		}
		if !value.StrictEquals(got, want) {
			t.Errorf("and(%d,%d,%d) = %v, want %v", a, b, c, got, want)
		}
	})
}

// FuzzOrSelectsFirstTruthyOrLast checks or's dual selection rule: the
// first truthy operand, or the last operand if every one is falsy.
func FuzzOrSelectsFirstTruthyOrLast(f *testing.F) {
	f.Add(int64(0), int64(2), int64(0))
	f.Add(int64(0), int64(0), int64(0))
	f.Fuzz(func(t *testing.T, a, b, c int64) {
		rule := fmt.Sprintf(`{"or":[%d,%d,%d]}`, a, b, c)
		got := mustEval(t, rule, value.Null)
		xs := []value.Value{value.Int(a), value.Int(b), value.Int(c)}
		want := xs[len(xs)-1]
		for _, x := range xs {
			if value.Truthy(x) {
				want = x
				break
			}
		}
		if !value.StrictEquals(got, want) {
			t.Errorf("or(%d,%d,%d) = %v, want %v", a, b, c, got, want)
		}
	})
}

// FuzzMissingKeyExistsDuality checks that missing([p]) reports p iff
// key_exists(d, p) is false.
func FuzzMissingKeyExistsDuality(f *testing.F) {
	f.Add("a", true)
	f.Add("b", false)
	f.Fuzz(func(t *testing.T, key string, present bool) {
		if key == "" || strings.ContainsAny(key, "\"\\.") {
			t.Skip("key must be a bare, non-dotted JSON string literal")
		}
		var data value.Value
		if present {
			data = value.Object([]value.KV{{Key: key, Val: value.Int(1)}})
		} else {
			data = value.Object(nil)
		}
		rule := fmt.Sprintf(`{"missing":[%q]}`, key)
		got := mustEval(t, rule, data)
		isMissing := len(got.Arr) > 0
		exists := value.KeyExists(data, key)
		if isMissing == exists {
			t.Errorf("missing([%q]) and key_exists disagree: isMissing=%v, key_exists=%v (present=%v)",
				key, isMissing, exists, present)
		}
	})
}

// FuzzFilterPartition checks that filter(a,f) and filter(a,!f)
// together account for every element of a exactly once.
func FuzzFilterPartition(f *testing.F) {
	f.Add("13579", int64(5))
	f.Add("2468", int64(3))
	f.Fuzz(func(t *testing.T, digits string, threshold int64) {
		if len(digits) == 0 || len(digits) > 20 {
			t.Skip("need a small non-empty digit string")
		}
		var parts []string
		for _, d := range digits {
			if d < '0' || d > '9' {
				t.Skip("only digit characters form a valid array literal here")
			}
			parts = append(parts, string(d))
		}
		arrText := "[" + strings.Join(parts, ",") + "]"
		passRule := fmt.Sprintf(`{"filter":[%s,{">":[{"var":""},%d]}]}`, arrText, threshold)
		failRule := fmt.Sprintf(`{"filter":[%s,{"!":[{">":[{"var":""},%d]}]}]}`, arrText, threshold)
		pass := mustEval(t, passRule, value.Null)
		fail := mustEval(t, failRule, value.Null)
		if len(pass.Arr)+len(fail.Arr) != len(parts) {
			t.Errorf("filter(a,f) and filter(a,!f) should partition a: got %d + %d != %d",
				len(pass.Arr), len(fail.Arr), len(parts))
		}
	})
}

// FuzzRenderRoundTripEvaluatesSame checks the round-trip property:
// reparsing a rendered rule evaluates the same as the original on the
// same data, even for rule shapes beyond the fixed case in the
// package's own round-trip test.
func FuzzRenderRoundTripEvaluatesSame(f *testing.F) {
	f.Add(int64(1), int64(2), int64(3))
	f.Add(int64(-7), int64(0), int64(10))
	f.Fuzz(func(t *testing.T, x, threshold, elseVal int64) {
		rule := fmt.Sprintf(`{"+":[{"var":"x"},{"if":[{">":[{"var":"x"},%d]},1,%d]}]}`, threshold, elseVal)
		sess := jsonlogic.NewSession()
		data := value.Object([]value.KV{{Key: "x", Val: value.Int(x)}})

		original, err := sess.ParseRule(rule, "")
		if err != nil {
			t.Fatalf("ParseRule: %v", err)
		}
		prog, err := sess.Compile(original)
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		want, err := sess.Evaluate(context.Background(), prog, data)
		if err != nil {
			t.Fatalf("Evaluate original: %v", err)
		}

		rendered := sess.Render(original)
		reparsed, err := sess.ParseValue(rendered)
		if err != nil {
			t.Fatalf("ParseValue(render(rule)): %v", err)
		}
		reprog, err := sess.Compile(reparsed)
		if err != nil {
			t.Fatalf("Compile rendered: %v", err)
		}
		got, err := sess.Evaluate(context.Background(), reprog, data)
		if err != nil {
			t.Fatalf("Evaluate rendered: %v", err)
		}

		if !value.StrictEquals(want, got) {
			t.Errorf("%s: parse(render(rule)) = %v, want %v", rule, got, want)
		}
	})
}
