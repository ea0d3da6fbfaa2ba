package compiler

import (
	"math"

	jlerrors "github.com/corvidrules/jsonlogic/pkg/errors"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

// Program is the compiler's sole output: a flat instruction vector and
// a deduplicated constant pool. It is logically immutable once Lower
// returns and may be executed repeatedly by the VM against different
// data contexts within the same arena lifetime.
type Program struct {
	Instructions []Instr
	ConstPool    []value.Value

	// SubPrograms holds the bytecode for every Map/Filter/Reduce/All/
	// Some/None body, compiled once at lowering time. A Call targeting
	// one of those tags carries the sub-program's index as an Int
	// pushed through the const pool alongside its other arguments,
	// since Call's own immediate has room only for a tag and an
	// argument count; the VM re-runs itself on the already-compiled
	// sub-program rather than recompiling or inlining it per element.
	SubPrograms []*Program
}

// constKey identifies a hashable constant for pool deduplication.
// Arrays and objects are never deduplicated and so never produce a
// constKey; the compiler always appends them fresh.
type constKey struct {
	kind value.Kind
	bits uint64
	str  string
}

// constPool accumulates deduplicated literal values during lowering.
type constPool struct {
	values []value.Value
	index  map[constKey]int
}

func newConstPool() *constPool {
	return &constPool{index: make(map[constKey]int)}
}

func (p *constPool) add(v value.Value) (int, error) {
	if key, ok := hashableKey(v); ok {
		if idx, found := p.index[key]; found {
			return idx, nil
		}
		idx := len(p.values)
		if idx > maxConstPoolIndex {
			return 0, jlerrors.New(jlerrors.LoweringConstPoolOverflow, "constant pool exceeds 24-bit index limit")
		}
		p.values = append(p.values, v)
		p.index[key] = idx
		return idx, nil
	}
	idx := len(p.values)
	if idx > maxConstPoolIndex {
		return 0, jlerrors.New(jlerrors.LoweringConstPoolOverflow, "constant pool exceeds 24-bit index limit")
	}
	p.values = append(p.values, v)
	return idx, nil
}

func hashableKey(v value.Value) (constKey, bool) {
	switch v.Kind {
	case value.KindNull:
		return constKey{kind: v.Kind}, true
	case value.KindBool:
		b := uint64(0)
		if v.Bool {
			b = 1
		}
		return constKey{kind: v.Kind, bits: b}, true
	case value.KindInt:
		return constKey{kind: v.Kind, bits: uint64(v.Int)}, true
	case value.KindFloat:
		return constKey{kind: v.Kind, bits: math.Float64bits(v.Float)}, true
	case value.KindString:
		return constKey{kind: v.Kind, str: v.Str}, true
	default:
		return constKey{}, false
	}
}
