package vm

import (
	"context"
	"strings"

	"github.com/corvidrules/jsonlogic/pkg/compiler"
	jlerrors "github.com/corvidrules/jsonlogic/pkg/errors"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

// applyCall implements the Call built-ins (merge, cat, substr, log,
// missing, missing_some and the iteration operators). It pops its own
// arguments off stack (the count varies by tag and, for the iteration
// built-ins, is not a plain value count) rather than receiving a
// pre-popped slice, since Map/Filter/Reduce/All/Some/None need to
// recurse into the VM between popping their array and producing a
// result.
func (e *Engine) applyCall(ctx context.Context, tag compiler.CallTag, argc int, stack *[]value.Value, prog *compiler.Program, frames []value.Value) (value.Value, error) {
	switch tag {
	case compiler.TagMakeArray:
		args, ok := popN(stack, argc)
		if !ok {
			return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Call(MakeArray)")
		}
		return value.Array(reverseArgs(args)), nil

	case compiler.TagMerge:
		args, ok := popN(stack, argc)
		if !ok {
			return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Call(Merge)")
		}
		return mergeOp(reverseArgs(args)), nil

	case compiler.TagCat:
		args, ok := popN(stack, argc)
		if !ok {
			return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Call(Cat)")
		}
		return catOp(reverseArgs(args)), nil

	case compiler.TagSubstring:
		args, ok := popN(stack, argc)
		if !ok {
			return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Call(Substring)")
		}
		return substringOp(reverseArgs(args)), nil

	case compiler.TagLog:
		args, ok := popN(stack, argc)
		if !ok {
			return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Call(Log)")
		}
		args = reverseArgs(args)
		var v value.Value
		if len(args) > 0 {
			v = args[0]
		}
		e.logValue(v)
		return v, nil

	case compiler.TagMissing:
		args, ok := popN(stack, argc)
		if !ok {
			return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Call(Missing)")
		}
		return missingOp(reverseArgs(args), frames[len(frames)-1]), nil

	case compiler.TagMissingSome:
		args, ok := popN(stack, argc)
		if !ok {
			return value.Null, jlerrors.New(jlerrors.RuntimeStackUnderflow, "stack underflow at Call(MissingSome)")
		}
		return missingSomeOp(reverseArgs(args), frames[len(frames)-1]), nil

	case compiler.TagMap, compiler.TagFilter, compiler.TagAll, compiler.TagSome, compiler.TagNone:
		return e.applyIterator(ctx, tag, stack, prog, frames)

	case compiler.TagReduce:
		return e.applyReduce(ctx, stack, prog, frames)

	default:
		return value.Null, jlerrors.New(jlerrors.LoweringUnimplemented, "unrecognized Call tag")
	}
}

func (e *Engine) logValue(v value.Value) {
	if e.LogSink != nil {
		e.LogSink(v)
		return
	}
	logger := e.Logger
	if logger == nil {
		return
	}
	logger.Info("jsonlogic log", "value", value.ToDisplayString(v))
}

func mergeOp(args []value.Value) value.Value {
	allStrings := len(args) > 0
	for _, a := range args {
		if a.Kind != value.KindString {
			allStrings = false
			break
		}
	}
	if allStrings {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(a.Str)
		}
		return value.Str(sb.String())
	}
	var out []value.Value
	for _, a := range args {
		if a.Kind == value.KindArray {
			out = append(out, a.Arr...)
		} else {
			out = append(out, a)
		}
	}
	return value.Array(out)
}

func catOp(args []value.Value) value.Value {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(value.ToDisplayString(a))
	}
	return value.Str(sb.String())
}

// substringOp implements Substring: negative start counts from end,
// negative length counts back from the end of the string,
// out-of-range yields "".
func substringOp(args []value.Value) value.Value {
	if len(args) < 2 {
		return value.Str("")
	}
	s := []rune(value.ToDisplayString(args[0]))
	start := int(value.CoerceToNumber(args[1]).AsFloat())
	n := len(s)
	if start < 0 {
		start = n + start
		if start < 0 {
			start = 0
		}
	}
	if start > n {
		return value.Str("")
	}
	end := n
	if len(args) > 2 {
		length := int(value.CoerceToNumber(args[2]).AsFloat())
		if length < 0 {
			end = n + length
		} else {
			end = start + length
		}
	}
	if end > n {
		end = n
	}
	if end < start {
		return value.Str("")
	}
	return value.Str(string(s[start:end]))
}

// missingOp returns the subset of paths (either individually on the
// stack, or a single stack value that is an array) that do not resolve
// in data.
func missingOp(args []value.Value, data value.Value) value.Value {
	paths := missingPathList(args)
	var out []value.Value
	for _, p := range paths {
		if !pathResolves(data, p) {
			out = append(out, p)
		}
	}
	return value.Array(out)
}

// missingSomeOp implements missing_some: args is [min_required, paths].
func missingSomeOp(args []value.Value, data value.Value) value.Value {
	if len(args) < 2 {
		return value.Array(nil)
	}
	minRequired := int(value.CoerceToNumber(args[0]).AsFloat())
	paths := missingPathList(args[1:])
	var missing []value.Value
	resolved := 0
	for _, p := range paths {
		if pathResolves(data, p) {
			resolved++
		} else {
			missing = append(missing, p)
		}
	}
	if resolved >= minRequired {
		return value.Array(nil)
	}
	return value.Array(missing)
}

// missingPathList dispatches on the runtime shape: a single argument
// that is itself an Array (e.g. produced by merge or if) is treated as
// the path list; otherwise every argument is itself one path.
func missingPathList(args []value.Value) []value.Value {
	if len(args) == 1 && args[0].Kind == value.KindArray {
		return args[0].Arr
	}
	return args
}

func pathResolves(data value.Value, path value.Value) bool {
	switch path.Kind {
	case value.KindString:
		return value.KeyExists(data, path.Str)
	case value.KindInt, value.KindFloat:
		_, ok := navigate(data, path)
		return ok
	default:
		return false
	}
}
