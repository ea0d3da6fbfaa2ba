// Package compiler lowers an ast.Node tree into a flat bytecode
// Program: one contiguous instruction vector plus a deduplicated
// constant pool.
package compiler

// OpCode is the high byte of a packed 32-bit Instr.
type OpCode uint8

const (
	OpLoadConst      OpCode = 0x01
	OpLoadLocal      OpCode = 0x02
	OpStoreLocal     OpCode = 0x03
	OpLoadVar        OpCode = 0x04
	OpLoadDynamicVar OpCode = 0x05
	OpVariadic       OpCode = 0x12
	OpCall           OpCode = 0x13
	OpJump           OpCode = 0x20
	OpJumpIfFalse    OpCode = 0x21
	OpJumpIfTrue     OpCode = 0x22
	OpReturn         OpCode = 0xFF
)

// OpTag is the Variadic opcode's operation selector (high byte of its
// split 24-bit immediate).
type OpTag uint8

const (
	TagAdd OpTag = 0x00
	TagSub OpTag = 0x01
	TagMul OpTag = 0x02
	TagDiv OpTag = 0x03
	TagMod OpTag = 0x04
	TagMin OpTag = 0x05
	TagMax OpTag = 0x06

	TagEqual             OpTag = 0x10
	TagNotEqual          OpTag = 0x11
	TagStrictEqual       OpTag = 0x12
	TagStrictNotEqual    OpTag = 0x13
	TagLessThan          OpTag = 0x14
	TagLessThanOrEqual   OpTag = 0x15
	TagGreaterThan       OpTag = 0x16
	TagGreaterThanOrEqual OpTag = 0x17

	TagAnd OpTag = 0x20
	TagOr  OpTag = 0x21

	TagIn OpTag = 0x30

	TagNot  OpTag = 0x40
	TagDNot OpTag = 0x41

	// TagAbs/TagCeil/TagFloor are unary numeric operators in the same
	// family as Add/Sub, given tags in a block of their own rather than
	// the arithmetic block's unused 0x07-0x0F range.
	TagAbs   OpTag = 0x50
	TagCeil  OpTag = 0x51
	TagFloor OpTag = 0x52

	// TagCoalesce implements "??": first non-Null operand, or Null if
	// all operands are Null.
	TagCoalesce OpTag = 0x53
)

// CallTag is the Call opcode's function selector.
type CallTag uint8

const (
	TagMap         CallTag = 0x00
	TagFilter      CallTag = 0x01
	TagReduce      CallTag = 0x02
	TagAll         CallTag = 0x03
	TagSome        CallTag = 0x04
	TagNone        CallTag = 0x05
	TagMerge       CallTag = 0x06
	TagCat         CallTag = 0x07
	TagSubstring   CallTag = 0x08
	TagLog         CallTag = 0x09
	TagMissing     CallTag = 0x0A
	TagMissingSome CallTag = 0x0B
	// TagMakeArray pops the instruction's argument count of values off
	// the stack into a new array, in push order. It is given its own value distinct from TagMap's 0x00 so
	// the zero tag doesn't silently alias onto Map.
	TagMakeArray CallTag = 0xFF
)

// Instr is one packed 32-bit bytecode word: high 8 bits opcode, low 24
// bits immediate. For OpVariadic the immediate further splits into a
// high-8 tag and a low-16 argument count.
type Instr uint32

func MakeInstr(op OpCode, imm uint32) Instr {
	return Instr(uint32(op)<<24 | (imm & 0x00FFFFFF))
}

func MakeVariadic(tag OpTag, argc uint16) Instr {
	imm := uint32(tag)<<16 | uint32(argc)
	return MakeInstr(OpVariadic, imm)
}

func MakeCall(tag CallTag, argc uint16) Instr {
	imm := uint32(tag)<<16 | uint32(argc)
	return MakeInstr(OpCall, imm)
}

func (i Instr) OpCode() OpCode {
	return OpCode(i >> 24)
}

func (i Instr) Imm() uint32 {
	return uint32(i) & 0x00FFFFFF
}

func (i Instr) Tag() uint8 {
	return uint8((i.Imm() >> 16) & 0xFF)
}

func (i Instr) ArgCount() uint16 {
	return uint16(i.Imm() & 0xFFFF)
}

// maxConstPoolIndex is the largest index representable in a 24-bit
// immediate.
const maxConstPoolIndex = 1<<24 - 1

// DefaultMaxInstructions is the default compile-time instruction budget.
const DefaultMaxInstructions = 10000
