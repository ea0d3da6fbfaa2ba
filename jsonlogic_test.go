package jsonlogic

import (
	"context"
	"testing"
	"time"

	"github.com/corvidrules/jsonlogic/pkg/value"
)

func TestEvalAddOnNullData(t *testing.T) {
	got, err := Eval(context.Background(), `{"+":[1,2,3]}`, value.Null)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !value.StrictEquals(got, value.Int(6)) {
		t.Errorf("got %v, want 6", got)
	}
}

func TestEvalIfChainFreezingLiquidGas(t *testing.T) {
	sess := NewSession()
	prog, err := sess.CompileText(`{"if":[{"<":[{"var":"temp"},0]},"freezing",{"<":[{"var":"temp"},100]},"liquid","gas"]}`)
	if err != nil {
		t.Fatalf("CompileText: %v", err)
	}
	cases := []struct {
		temp int64
		want string
	}{
		{-5, "freezing"},
		{50, "liquid"},
		{150, "gas"},
	}
	for _, c := range cases {
		data := value.Object([]value.KV{{Key: "temp", Val: value.Int(c.temp)}})
		got, err := sess.Evaluate(context.Background(), prog, data)
		if err != nil {
			t.Fatalf("Evaluate(temp=%d): %v", c.temp, err)
		}
		if !value.StrictEquals(got, value.Str(c.want)) {
			t.Errorf("temp=%d: got %v, want %v", c.temp, got, c.want)
		}
	}
}

func TestEvalMissingSome(t *testing.T) {
	sess := NewSession()
	prog, err := sess.CompileText(`{"missing_some":[1,["a","b","c"]]}`)
	if err != nil {
		t.Fatalf("CompileText: %v", err)
	}
	data := value.Object([]value.KV{{Key: "a", Val: value.Int(1)}})
	got, err := sess.Evaluate(context.Background(), prog, data)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Kind != value.KindArray || len(got.Arr) != 0 {
		t.Errorf("got %v, want [] since the 1 required path (a) is already satisfied", got)
	}
}

func TestEvalCat(t *testing.T) {
	got, err := Eval(context.Background(), `{"cat":["Hello, ","World","!"]}`, value.Null)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !value.StrictEquals(got, value.Str("Hello, World!")) {
		t.Errorf("got %v, want 'Hello, World!'", got)
	}
}

func TestEvalReduceSums1To5(t *testing.T) {
	got, err := Eval(context.Background(), `{"reduce":[[1,2,3,4,5],{"+":[{"var":"accumulator"},{"var":"current"}]},0]}`, value.Null)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !value.StrictEquals(got, value.Int(15)) {
		t.Errorf("got %v, want 15", got)
	}
}

func TestSessionCachingReturnsEqualPrograms(t *testing.T) {
	sess := NewSession(WithCaching(true))
	p1, err := sess.CompileText(`{"+":[1,2]}`)
	if err != nil {
		t.Fatalf("CompileText: %v", err)
	}
	p2, err := sess.CompileText(`{"+":[1,2]}`)
	if err != nil {
		t.Fatalf("CompileText: %v", err)
	}
	if p1 != p2 {
		t.Error("expected the second CompileText call to hit the cache and return the same *Program")
	}
}

func TestSessionTimeoutCancelsLongRunningEvaluation(t *testing.T) {
	sess := NewSession(WithTimeout(time.Nanosecond))
	prog, err := sess.CompileText(`{"+":[1,2]}`)
	if err != nil {
		t.Fatalf("CompileText: %v", err)
	}
	time.Sleep(time.Millisecond)
	_, err = sess.Evaluate(context.Background(), prog, value.Null)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestParseRuleRejectsUnknownFormat(t *testing.T) {
	sess := NewSession()
	_, err := sess.ParseRule(`{"+":[1,2]}`, "xml")
	if err == nil {
		t.Fatal("expected an error for an unrecognized rule format")
	}
}

func TestParseDataDoesNotDispatchOperators(t *testing.T) {
	sess := NewSession()
	v, err := sess.ParseData(`{"+":[1,2]}`)
	if err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if v.Kind != value.KindObject {
		t.Errorf("ParseData should treat this as a literal object, got %+v", v)
	}
}

func TestDifferentlyShapedEquivalentRulesAgree(t *testing.T) {
	// Two differently-shaped-but-equivalent rules should evaluate to the
	// same result against the same data.
	a, err := Eval(context.Background(), `{"===":[{"var":"x"},5]}`, value.Object([]value.KV{{Key: "x", Val: value.Int(5)}}))
	if err != nil {
		t.Fatalf("Eval a: %v", err)
	}
	b, err := Eval(context.Background(), `{"if":[{"===":[{"var":"x"},5]},true,false]}`, value.Object([]value.KV{{Key: "x", Val: value.Int(5)}}))
	if err != nil {
		t.Fatalf("Eval b: %v", err)
	}
	if !value.StrictEquals(a, b) {
		t.Errorf("equivalent rules diverged: %v != %v", a, b)
	}
}

// TestRenderRoundTripPreservesEvaluation exercises parse(render(rule))
// against a mix of literal, var, dynamic-var and nested-operator rules:
// reparsing a rendered rule must evaluate the same as the original on
// every data context tried, even though Render does not reproduce the
// original JSON text byte-for-byte.
func TestRenderRoundTripPreservesEvaluation(t *testing.T) {
	cases := []struct {
		name string
		rule string
		data value.Value
	}{
		{"literal sum", `{"+":[1,2,3]}`, value.Null},
		{"static dotted path", `{"var":"a.b"}`,
			value.Object([]value.KV{{Key: "a", Val: value.Object([]value.KV{{Key: "b", Val: value.Int(9)}})}})},
		{"var with default", `{"var":["missing", "fallback"]}`, value.Null},
		{"dynamic var", `{"var":{"cat":["a",".","b"]}}`,
			value.Object([]value.KV{{Key: "a.b", Val: value.Int(1)}})},
		{"nested if/map", `{"map":[[1,2,3],{"if":[{">":[{"var":""},2]},"big","small"]}]}`, value.Null},
		{"preserved object literal", `{"preserve":{"+":[1,2]}}`, value.Null},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := NewSession()
			original, err := sess.ParseRule(tc.rule, "")
			if err != nil {
				t.Fatalf("ParseRule: %v", err)
			}
			want, err := sess.Compile(original)
			if err != nil {
				t.Fatalf("Compile original: %v", err)
			}
			wantResult, err := sess.Evaluate(context.Background(), want, tc.data)
			if err != nil {
				t.Fatalf("Evaluate original: %v", err)
			}

			rendered := sess.Render(original)
			reparsed, err := sess.ParseValue(rendered)
			if err != nil {
				t.Fatalf("ParseValue(render(rule)): %v", err)
			}
			got, err := sess.Compile(reparsed)
			if err != nil {
				t.Fatalf("Compile rendered: %v", err)
			}
			gotResult, err := sess.Evaluate(context.Background(), got, tc.data)
			if err != nil {
				t.Fatalf("Evaluate rendered: %v", err)
			}

			if !value.StrictEquals(wantResult, gotResult) {
				t.Errorf("parse(render(rule)) diverged: got %v, want %v", gotResult, wantResult)
			}
		})
	}
}
