// Package errors defines the structured error taxonomy used across the
// parser, compiler and VM. Every error carries a Code identifying which
// stage raised it, so callers can branch on category without parsing
// message text.
package errors

import "fmt"

// Code identifies the stage and category of an Error.
type Code string

const (
	// Parse errors: malformed JSON text, or a rule object with more than
	// one key (reported against the first key rather than as a generic
	// syntax error).
	ParseInvalidJSON     Code = "P0001"
	ParseMultiKeyObject  Code = "P0002"
	ParseBadFormat       Code = "P0003"
	ParseBadVarPath      Code = "P0004"

	// UnknownOperator: an object key was not found in the closed
	// JSONLogic operator vocabulary.
	UnknownOperator Code = "U0001"

	// Lowering errors: the AST is well-formed but the compiler cannot
	// emit valid bytecode for it.
	LoweringUnimplemented    Code = "L0001"
	LoweringConstPoolOverflow Code = "L0002"
	LoweringInstrLimit        Code = "L0003"

	// Runtime fatal errors: programmer bugs in the emitted bytecode,
	// never caused by rule or data content.
	RuntimeStackUnderflow Code = "R0001"
	RuntimeIPOutOfRange   Code = "R0002"
)

// Error is the single error type returned by every package in this
// module. Runtime non-fatal conditions (missing data, bad coercions,
// division by zero) never produce an Error; they resolve to a default
// Value per the operator's contract instead.
type Error struct {
	Code     Code
	Message  string
	Position int // byte offset in source text, or -1 if not applicable
	Operator string // offending operator/key name, or "" if not applicable
	Err      error  // wrapped cause, if any
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Position: -1}
}

func (e *Error) WithPosition(pos int) *Error {
	e.Position = pos
	return e
}

func (e *Error) WithOperator(op string) *Error {
	e.Operator = op
	return e
}

func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	switch {
	case e.Operator != "" && e.Position >= 0:
		return fmt.Sprintf("%s: %s (operator %q, offset %d)", e.Code, e.Message, e.Operator, e.Position)
	case e.Operator != "":
		return fmt.Sprintf("%s: %s (operator %q)", e.Code, e.Message, e.Operator)
	case e.Position >= 0:
		return fmt.Sprintf("%s: %s (offset %d)", e.Code, e.Message, e.Position)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal reports whether code identifies a Runtime-fatal condition —
// the only errors the VM itself can raise mid-execution.
func IsFatal(code Code) bool {
	return code == RuntimeStackUnderflow || code == RuntimeIPOutOfRange
}
