// Package vm implements the stack machine that executes a compiled
// compiler.Program against a data context. It has no call stack: every
// control-flow construct the compiler emits is a local jump, and the
// only recursion is the VM re-entering itself (via Engine.run) to
// evaluate a Map/Filter/Reduce/All/Some/None body against one array
// element at a time.
package vm

import (
	"context"
	"log/slog"
	"math"

	"github.com/corvidrules/jsonlogic/pkg/compiler"
	jlerrors "github.com/corvidrules/jsonlogic/pkg/errors"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

// DivideByZeroPolicy names how division by zero is handled: some
// JSONLogic dialects return 0, others throw. Engine carries the field,
// but division by zero yields 0 under both values; ErrorOnDivideByZero
// does not make Run return an error.
type DivideByZeroPolicy uint8

const (
	ZeroOnDivideByZero DivideByZeroPolicy = iota
	ErrorOnDivideByZero
)

// Engine executes Programs. One Engine can run many programs against
// many data contexts; it holds no per-evaluation state of its own.
type Engine struct {
	LogSink            func(value.Value)
	DivideByZeroPolicy DivideByZeroPolicy
	Logger             *slog.Logger
}

// New returns an Engine with the default policy: divide-by-zero
// yields 0, and Log built-ins write through slog.Default().
func New() *Engine {
	return &Engine{DivideByZeroPolicy: ZeroOnDivideByZero, Logger: slog.Default()}
}

// Run executes prog against data and returns the final value. ctx is
// honored at the top of every instruction: evaluation has no
// cooperative yield of its own, but a context deadline check on entry
// gives callers a way to enforce timeouts.
func (e *Engine) Run(ctx context.Context, prog *compiler.Program, data value.Value) (value.Value, error) {
	frames := []value.Value{data}
	return e.run(ctx, prog, frames)
}

func (e *Engine) run(ctx context.Context, prog *compiler.Program, frames []value.Value) (value.Value, error) {
	var stack []value.Value
	ip := 0
	for {
		select {
		case <-ctx.Done():
			return value.Null, ctx.Err()
		default:
		}
		if ip < 0 || ip >= len(prog.Instructions) {
			return value.Null, jlerrors.New(jlerrors.RuntimeIPOutOfRange, "instruction pointer out of range")
		}
		instr := prog.Instructions[ip]
		switch instr.OpCode() {
		case compiler.OpReturn:
			if len(stack) == 0 {
				return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Return")
			}
			return stack[len(stack)-1], nil

		case compiler.OpLoadConst:
			idx := instr.Imm()
			if int(idx) >= len(prog.ConstPool) {
				return value.Null, jlerrors.New(jlerrors.RuntimeIPOutOfRange, "constant pool index out of range")
			}
			stack = append(stack, prog.ConstPool[idx])
			ip++

		case compiler.OpLoadVar:
			idx := instr.Imm()
			if int(idx) >= len(prog.ConstPool) {
				return value.Null, jlerrors.New(jlerrors.RuntimeIPOutOfRange, "constant pool index out of range")
			}
			path := prog.ConstPool[idx]
			stack = append(stack, resolveVar(frames, path, value.Null, 0))
			ip++

		case compiler.OpLoadDynamicVar:
			v, ok := popN(&stack, 3)
			if !ok {
				return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at LoadDynamicVar")
			}
			scopeJump := int(v[0].AsFloat())
			def := v[1]
			path := v[2]
			stack = append(stack, resolveDynamicVar(frames, path, def, scopeJump))
			ip++

		case compiler.OpVariadic:
			tag := compiler.OpTag(instr.Tag())
			argc := int(instr.ArgCount())
			args, ok := popN(&stack, argc)
			if !ok {
				return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Variadic")
			}
			stack = append(stack, e.applyVariadic(tag, args))
			ip++

		case compiler.OpCall:
			tag := compiler.CallTag(instr.Tag())
			argc := int(instr.ArgCount())
			result, err := e.applyCall(ctx, tag, argc, &stack, prog, frames)
			if err != nil {
				return value.Null, err
			}
			stack = append(stack, result)
			ip++

		case compiler.OpJump:
			ip = int(instr.Imm())

		case compiler.OpJumpIfFalse:
			cond, ok := popN(&stack, 1)
			if !ok {
				return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at JumpIfFalse")
			}
			if !value.Truthy(cond[0]) {
				ip = int(instr.Imm())
			} else {
				ip++
			}

		case compiler.OpJumpIfTrue:
			cond, ok := popN(&stack, 1)
			if !ok {
				return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at JumpIfTrue")
			}
			if value.Truthy(cond[0]) {
				ip = int(instr.Imm())
			} else {
				ip++
			}

		case compiler.OpLoadLocal, compiler.OpStoreLocal:
			// Reserved for iteration frames; the current lowering
			// resolves iteration bindings through LoadVar against a
			// synthetic frame instead, so these are no-ops.
			ip++

		default:
			return value.Null, jlerrors.New(jlerrors.RuntimeIPOutOfRange, "unrecognized opcode")
		}
	}
}

// popN pops the last n values off stack in LIFO ("pop") order: out[0]
// is the current top of stack (the most recently pushed value), out[1]
// the one below it, and so on. ok is false on underflow, in which case
// *stack is left unmodified.
//
// Because the compiler pushes Variadic operands in reverse source
// order, this pop order hands applyVariadic its operands
// back in forward source order directly. Call sites whose arguments
// were pushed in forward order (ordinary Call built-ins) must reverse
// this result themselves to recover source order; see reverseArgs.
func popN(stack *[]value.Value, n int) ([]value.Value, bool) {
	s := *stack
	if len(s) < n {
		return nil, false
	}
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		out[i] = s[len(s)-1-i]
	}
	*stack = s[:len(s)-n]
	return out, true
}

// reverseArgs reverses a pop-order argument slice back into forward
// source order.
func reverseArgs(args []value.Value) []value.Value {
	out := make([]value.Value, len(args))
	for i, a := range args {
		out[len(args)-1-i] = a
	}
	return out
}

func resolveVar(frames []value.Value, path value.Value, def value.Value, scopeJump int) value.Value {
	frame := currentFrame(frames, scopeJump)
	p := normalizePath(path)
	if len(p) == 0 {
		return frame
	}
	cur := frame
	for _, seg := range p {
		next, ok := navigate(cur, seg)
		if !ok {
			return def
		}
		cur = next
	}
	return cur
}

// resolveDynamicVar resolves a var/val path computed at runtime (the
// {"var": <expr>} form, reached through OpLoadDynamicVar). Unlike a
// static path — already split into segments by the parser's pathValue
// — a dynamic string is tried whole as a single object key first, and
// only split on "." if that lookup misses. This lets data containing
// a literal dotted key (e.g. {"a.b": 1}) resolve correctly when the
// path string itself is computed rather than written as a source
// literal.
func resolveDynamicVar(frames []value.Value, path value.Value, def value.Value, scopeJump int) value.Value {
	if path.Kind == value.KindString && path.Str != "" {
		frame := currentFrame(frames, scopeJump)
		if v, ok := navigate(frame, value.Str(path.Str)); ok {
			return v
		}
	}
	return resolveVar(frames, path, def, scopeJump)
}

// currentFrame implements scope_jump: walk up n enclosing iteration
// frames from the innermost one. If n exceeds the available depth the
// resolution degrades to the root frame rather than faulting, since
// missing-path resolution is a non-fatal runtime condition and
// scope_jump depth is only known once nested iterations actually run.
func currentFrame(frames []value.Value, scopeJump int) value.Value {
	idx := len(frames) - 1 - scopeJump
	if idx < 0 {
		idx = 0
	}
	if idx >= len(frames) {
		idx = len(frames) - 1
	}
	return frames[idx]
}

// normalizePath turns a path Value (String, Int, or Array of those)
// into a slice of path segments, splitting dotted strings on ".".
func normalizePath(path value.Value) []value.Value {
	switch path.Kind {
	case value.KindNull:
		return nil
	case value.KindString:
		if path.Str == "" {
			return nil
		}
		return splitDotted(path.Str)
	case value.KindInt, value.KindFloat:
		return []value.Value{path}
	case value.KindArray:
		var segs []value.Value
		for _, e := range path.Arr {
			if e.Kind == value.KindString {
				segs = append(segs, splitDotted(e.Str)...)
			} else {
				segs = append(segs, e)
			}
		}
		return segs
	default:
		return nil
	}
}

func splitDotted(s string) []value.Value {
	if s == "" {
		return nil
	}
	start := 0
	var segs []value.Value
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			segs = append(segs, value.Str(s[start:i]))
			start = i + 1
		}
	}
	return segs
}

func navigate(cur value.Value, seg value.Value) (value.Value, bool) {
	switch seg.Kind {
	case value.KindString:
		if cur.Kind == value.KindObject {
			for _, kv := range cur.Obj {
				if kv.Key == seg.Str {
					return kv.Val, true
				}
			}
			return value.Null, false
		}
		if cur.Kind == value.KindArray {
			if idx, ok := parseArrayIndex(seg.Str); ok {
				if idx < 0 || idx >= len(cur.Arr) {
					return value.Null, false
				}
				return cur.Arr[idx], true
			}
		}
		return value.Null, false
	case value.KindInt, value.KindFloat:
		idx := int(seg.AsFloat())
		if cur.Kind == value.KindArray {
			if idx < 0 || idx >= len(cur.Arr) {
				return value.Null, false
			}
			return cur.Arr[idx], true
		}
		return value.Null, false
	default:
		return value.Null, false
	}
}

func parseArrayIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i >= len(s) {
		return 0, false
	}
	n := 0
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

func clampFloorCeil(f float64) value.Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return value.Int(int64(f))
	}
	return value.Float(f)
}
