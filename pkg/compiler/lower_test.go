package compiler

import (
	"testing"

	"github.com/corvidrules/jsonlogic/pkg/ast"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

func lit(v value.Value) *ast.Node {
	return &ast.Node{Type: ast.NodeLiteral, Literal: v, Position: -1}
}

func op(o ast.OperatorType, args ...*ast.Node) *ast.Node {
	return &ast.Node{Type: ast.NodeOperator, Op: o, Args: args, Position: -1}
}

func TestLowerEndsWithReturn(t *testing.T) {
	prog, err := Lower(lit(value.Int(1)), nil)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	last := prog.Instructions[len(prog.Instructions)-1]
	if last.OpCode() != OpReturn {
		t.Errorf("last instruction = %v, want OpReturn", last.OpCode())
	}
}

func TestLowerConstantFoldingCollapsesStaticAdd(t *testing.T) {
	n := op(ast.OpAdd, lit(value.Int(1)), lit(value.Int(2)))
	evaluator := func(n *ast.Node) (value.Value, error) { return value.Int(3), nil }
	prog, err := Lower(n, evaluator, WithFoldConstants(true))
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(prog.Instructions) != 2 {
		t.Fatalf("got %d instructions, want 2 (LoadConst + Return) after folding", len(prog.Instructions))
	}
	if prog.Instructions[0].OpCode() != OpLoadConst {
		t.Errorf("first instruction = %v, want OpLoadConst", prog.Instructions[0].OpCode())
	}
	if !value.StrictEquals(prog.ConstPool[0], value.Int(3)) {
		t.Errorf("folded constant = %v, want 3", prog.ConstPool[0])
	}
}

func TestLowerConstPoolDedupesEqualLiterals(t *testing.T) {
	n := op(ast.OpAdd, lit(value.Int(7)), lit(value.Int(7)))
	prog, err := Lower(n, nil, WithFoldConstants(false))
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	count := 0
	for _, v := range prog.ConstPool {
		if value.StrictEquals(v, value.Int(7)) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("const pool has %d copies of 7, want exactly 1 (deduplication)", count)
	}
}

func TestLowerInstructionLimitExceeded(t *testing.T) {
	var args []*ast.Node
	for i := 0; i < 50; i++ {
		args = append(args, lit(value.Int(int64(i))))
	}
	n := op(ast.OpAdd, args...)
	_, err := Lower(n, nil, WithMaxInstructions(5))
	if err == nil {
		t.Fatal("expected an instruction-limit error")
	}
}

func TestLowerIteratorProducesSubProgram(t *testing.T) {
	n := &ast.Node{
		Type: ast.NodeOperator,
		Op:   ast.OpMap,
		Args: []*ast.Node{
			{Type: ast.NodeArrayLiteral, LiteralArray: []value.Value{value.Int(1), value.Int(2)}, Position: -1},
			op(ast.OpMul, &ast.Node{Type: ast.NodeVariable, Path: value.Str(""), Position: -1}, lit(value.Int(2))),
		},
		Position: -1,
	}
	prog, err := Lower(n, nil, WithFoldConstants(false))
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(prog.SubPrograms) != 1 {
		t.Fatalf("got %d sub-programs, want 1", len(prog.SubPrograms))
	}
	last := prog.Instructions[len(prog.Instructions)-1]
	if last.OpCode() != OpReturn {
		t.Errorf("program should still end in Return")
	}
}

func TestInstrPackUnpack(t *testing.T) {
	i := MakeCall(TagReduce, 3)
	if i.OpCode() != OpCall {
		t.Errorf("OpCode = %v, want OpCall", i.OpCode())
	}
	if CallTag(i.Tag()) != TagReduce {
		t.Errorf("Tag = %v, want TagReduce", i.Tag())
	}
	if i.ArgCount() != 3 {
		t.Errorf("ArgCount = %v, want 3", i.ArgCount())
	}
}
