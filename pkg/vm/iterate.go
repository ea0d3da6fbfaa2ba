package vm

import (
	"context"

	"github.com/corvidrules/jsonlogic/pkg/compiler"
	jlerrors "github.com/corvidrules/jsonlogic/pkg/errors"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

// applyIterator implements Map/Filter/All/Some/None: pop the
// sub-program index and the source array, then re-run the VM on the
// already-compiled body once per element under a nested data frame
// holding just that element. Each element gets its own local stack via
// a recursive e.run call, since the body's stack never interacts with
// the caller's.
func (e *Engine) applyIterator(ctx context.Context, tag compiler.CallTag, stack *[]value.Value, prog *compiler.Program, frames []value.Value) (value.Value, error) {
	popped, ok := popN(stack, 2)
	if !ok {
		return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Call(iterator)")
	}
	subIdx := int(popped[0].AsFloat())
	arr := popped[1]

	sub, err := e.subProgram(prog, subIdx)
	if err != nil {
		return value.Null, err
	}
	var elems []value.Value
	if arr.Kind == value.KindArray {
		elems = arr.Arr
	}

	switch tag {
	case compiler.TagMap:
		out := make([]value.Value, 0, len(elems))
		for _, el := range elems {
			v, err := e.run(ctx, sub, append(frames, el))
			if err != nil {
				return value.Null, err
			}
			out = append(out, v)
		}
		return value.Array(out), nil

	case compiler.TagFilter:
		var out []value.Value
		for _, el := range elems {
			v, err := e.run(ctx, sub, append(frames, el))
			if err != nil {
				return value.Null, err
			}
			if value.Truthy(v) {
				out = append(out, el)
			}
		}
		return value.Array(out), nil

	case compiler.TagAll:
		// All on an empty array is false.
		if len(elems) == 0 {
			return value.Bool_(false), nil
		}
		for _, el := range elems {
			v, err := e.run(ctx, sub, append(frames, el))
			if err != nil {
				return value.Null, err
			}
			if !value.Truthy(v) {
				return value.Bool_(false), nil
			}
		}
		return value.Bool_(true), nil

	case compiler.TagSome:
		// Some on an empty array is false.
		for _, el := range elems {
			v, err := e.run(ctx, sub, append(frames, el))
			if err != nil {
				return value.Null, err
			}
			if value.Truthy(v) {
				return value.Bool_(true), nil
			}
		}
		return value.Bool_(false), nil

	case compiler.TagNone:
		// None on an empty array is true.
		for _, el := range elems {
			v, err := e.run(ctx, sub, append(frames, el))
			if err != nil {
				return value.Null, err
			}
			if value.Truthy(v) {
				return value.Bool_(false), nil
			}
		}
		return value.Bool_(true), nil

	default:
		return value.Null, jlerrors.New(jlerrors.LoweringUnimplemented, "unrecognized iterator tag")
	}
}

// applyReduce implements Reduce: pop the sub-program index, the
// initial accumulator, and the source array, then fold the
// body over each element under a nested frame exposing accumulator,
// current, index and array.
func (e *Engine) applyReduce(ctx context.Context, stack *[]value.Value, prog *compiler.Program, frames []value.Value) (value.Value, error) {
	popped, ok := popN(stack, 3)
	if !ok {
		return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Call(Reduce)")
	}
	subIdx := int(popped[0].AsFloat())
	initial := popped[1]
	arr := popped[2]

	sub, err := e.subProgram(prog, subIdx)
	if err != nil {
		return value.Null, err
	}
	var elems []value.Value
	if arr.Kind == value.KindArray {
		elems = arr.Arr
	}

	acc := initial
	for i, el := range elems {
		frame := value.Object([]value.KV{
			{Key: "accumulator", Val: acc},
			{Key: "current", Val: el},
			{Key: "index", Val: value.Int(int64(i))},
			{Key: "array", Val: arr},
		})
		v, err := e.run(ctx, sub, append(frames, frame))
		if err != nil {
			return value.Null, err
		}
		acc = v
	}
	return acc, nil
}

func (e *Engine) subProgram(prog *compiler.Program, idx int) (*compiler.Program, error) {
	if idx < 0 || idx >= len(prog.SubPrograms) {
		return nil, jlerrors.New(jlerrors.RuntimeIPOutOfRange, "sub-program index out of range")
	}
	return prog.SubPrograms[idx], nil
}
