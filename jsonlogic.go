// Package jsonlogic implements a JSONLogic rule engine: rules written as
// JSON are parsed into an AST, lowered into a compact bytecode program
// with a deduplicated literal pool, and executed by a stack-based
// virtual machine against a JSON-like data context.
//
// # Quick start
//
//	result, err := jsonlogic.Eval(ctx, `{"+":[1,2,3]}`, value.Null)
//
// # Compile once, evaluate many times
//
//	sess := jsonlogic.NewSession()
//	prog, err := sess.CompileText(`{"var":"name"}`)
//	result, err := sess.Evaluate(ctx, prog, data)
package jsonlogic

import (
	"context"
	"log/slog"
	"time"

	"github.com/corvidrules/jsonlogic/pkg/arena"
	"github.com/corvidrules/jsonlogic/pkg/ast"
	"github.com/corvidrules/jsonlogic/pkg/cache"
	"github.com/corvidrules/jsonlogic/pkg/compiler"
	jlerrors "github.com/corvidrules/jsonlogic/pkg/errors"
	"github.com/corvidrules/jsonlogic/pkg/parser"
	"github.com/corvidrules/jsonlogic/pkg/value"
	"github.com/corvidrules/jsonlogic/pkg/vm"
)

// Version returns the module's version string.
func Version() string { return "v0.1.0-dev" }

// Re-exported types so callers need only import the top-level package.
type (
	Value               = value.Value
	Program             = compiler.Program
	RuleHandle          = ast.Node
	Error               = jlerrors.Error
	DivideByZeroPolicy  = vm.DivideByZeroPolicy
)

const (
	ZeroOnDivideByZero  = vm.ZeroOnDivideByZero
	ErrorOnDivideByZero = vm.ErrorOnDivideByZero
)

// SessionOptions configures a Session via the functional-options
// pattern.
type SessionOptions struct {
	Caching            bool
	CacheSize          int
	Cache              *cache.Cache
	MaxDepth           int
	MaxInstructions    int
	FoldConstants      bool
	Timeout            time.Duration
	Logger             *slog.Logger
	LogSink            func(value.Value)
	DivideByZeroPolicy DivideByZeroPolicy
}

// SessionOption is a functional option for NewSession.
type SessionOption func(*SessionOptions)

// WithCaching enables a Program cache keyed by rule text. Disabled by
// default.
func WithCaching(enabled bool) SessionOption {
	return func(o *SessionOptions) { o.Caching = enabled }
}

// WithCacheSize sets the Program cache's capacity (default 256).
func WithCacheSize(size int) SessionOption {
	return func(o *SessionOptions) { o.CacheSize = size }
}

// WithCache installs a caller-supplied cache, implicitly enabling
// caching.
func WithCache(c *cache.Cache) SessionOption {
	return func(o *SessionOptions) { o.Cache = c }
}

// WithMaxDepth bounds the parser's recursive descent (default 256).
func WithMaxDepth(depth int) SessionOption {
	return func(o *SessionOptions) { o.MaxDepth = depth }
}

// WithMaxInstructions bounds the compiler's emitted instruction count
// (default 10,000).
func WithMaxInstructions(n int) SessionOption {
	return func(o *SessionOptions) { o.MaxInstructions = n }
}

// WithFoldConstants toggles compile-time constant folding of a rule
// that is static as a whole. Static subtrees inside a rule that reads
// data are not folded. Enabled by default.
func WithFoldConstants(enabled bool) SessionOption {
	return func(o *SessionOptions) { o.FoldConstants = enabled }
}

// WithTimeout bounds Session.Evaluate via a derived context.Context
// deadline, honored at the top of every VM instruction.
func WithTimeout(d time.Duration) SessionOption {
	return func(o *SessionOptions) { o.Timeout = d }
}

// WithLogger sets the *slog.Logger the Log built-in writes through
// when no LogSink is installed.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(o *SessionOptions) { o.Logger = logger }
}

// WithLogSink installs a caller-supplied hook for the Log built-in, so
// logged values can be routed somewhere other than *slog.Logger.
func WithLogSink(sink func(value.Value)) SessionOption {
	return func(o *SessionOptions) { o.LogSink = sink }
}

// WithDivideByZeroPolicy records a divide-by-zero policy on the VM.
// Defaults to ZeroOnDivideByZero. Division by zero yields 0 under
// either policy; ErrorOnDivideByZero does not make Evaluate fail.
func WithDivideByZeroPolicy(p DivideByZeroPolicy) SessionOption {
	return func(o *SessionOptions) { o.DivideByZeroPolicy = p }
}

// Session is the engine's façade: one arena, one parser, one compiler
// configuration, and one VM engine, gluing the parse/compile/cache/
// evaluate pipeline together behind a single type.
type Session struct {
	opts     SessionOptions
	nodes    *arena.Arena[ast.Node]
	interner *arena.Interner
	engine   *vm.Engine
	cache    *cache.Cache // non-nil when caching is enabled
}

// NewSession returns a ready-to-use Session. Each Session owns one
// arena; call Reset to reclaim it and start a fresh one.
func NewSession(opts ...SessionOption) *Session {
	o := SessionOptions{
		MaxDepth:        256,
		MaxInstructions: compiler.DefaultMaxInstructions,
		FoldConstants:   true,
		CacheSize:       256,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	var c *cache.Cache
	if o.Cache != nil {
		c = o.Cache
	} else if o.Caching {
		c = cache.New(o.CacheSize)
	}
	return &Session{
		opts:     o,
		nodes:    arena.New[ast.Node](),
		interner: arena.NewInterner(),
		engine: &vm.Engine{
			LogSink:            o.LogSink,
			Logger:             o.Logger,
			DivideByZeroPolicy: o.DivideByZeroPolicy,
		},
		cache: c,
	}
}

// Reset releases the Session's arena and cache, invalidating every
// RuleHandle and Program previously produced.
func (s *Session) Reset() {
	s.nodes.Reset()
	s.interner.Reset()
	if s.cache != nil {
		s.cache.Clear()
	}
}

func (s *Session) parser() (*parser.Parser, error) {
	return parser.New(s.nodes, s.interner,
		parser.WithMaxDepth(s.opts.MaxDepth),
		parser.WithConstantFolding(false), // folding happens in Lower, not here
	)
}

// ParseRule parses text as a JSONLogic rule. format must be
// "jsonlogic" or empty.
func (s *Session) ParseRule(text string, format string) (*RuleHandle, error) {
	if format != "" && format != "jsonlogic" {
		return nil, jlerrors.New(jlerrors.ParseBadFormat, "unrecognized rule format: "+format)
	}
	p, err := s.parser()
	if err != nil {
		return nil, err
	}
	return p.ParseText(text)
}

// ParseValue parses an already-decoded value.Value as a JSONLogic
// rule, skipping the JSON-text lexing stage.
func (s *Session) ParseValue(v value.Value) (*RuleHandle, error) {
	p, err := s.parser()
	if err != nil {
		return nil, err
	}
	return p.ParseValue(v)
}

// ParseData decodes text as a plain JSON data document: every object
// and array parses literally, with no operator dispatch.
func (s *Session) ParseData(text string) (value.Value, error) {
	return parser.ParseData(text)
}

// Render reconstructs the JSON-shaped rule value a parser would accept
// for rule, evaluation-equivalent to (but not necessarily byte-equal
// to) whatever text it was originally parsed from.
func (s *Session) Render(rule *RuleHandle) value.Value {
	return ast.Render(rule)
}

// Compile lowers a RuleHandle into a Program.
func (s *Session) Compile(rule *RuleHandle) (*Program, error) {
	return compiler.Lower(rule, s.fold,
		compiler.WithMaxInstructions(s.opts.MaxInstructions),
		compiler.WithFoldConstants(s.opts.FoldConstants),
	)
}

// fold evaluates a fully-static AST subtree against Null data, used by
// the compiler's constant-folding pass.
func (s *Session) fold(n *ast.Node) (value.Value, error) {
	prog, err := compiler.Lower(n, nil, compiler.WithFoldConstants(false))
	if err != nil {
		return value.Null, err
	}
	return s.engine.Run(context.Background(), prog, value.Null)
}

// CompileText parses and compiles text in one step, consulting the
// Session's Program cache (keyed by rule text) when caching is
// enabled.
func (s *Session) CompileText(text string) (*Program, error) {
	if s.cache != nil {
		return s.cache.GetOrCompile(text, func() (*Program, error) {
			rule, err := s.ParseRule(text, "")
			if err != nil {
				return nil, err
			}
			return s.Compile(rule)
		})
	}
	rule, err := s.ParseRule(text, "")
	if err != nil {
		return nil, err
	}
	return s.Compile(rule)
}

// Evaluate executes prog against data. If the Session was configured
// with WithTimeout, ctx is wrapped with that deadline.
func (s *Session) Evaluate(ctx context.Context, prog *Program, data value.Value) (value.Value, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return s.engine.Run(ctx, prog, data)
}

// Eval is a convenience function that parses, compiles and evaluates
// ruleText against data in a single call using a throwaway Session.
// For repeated evaluation of the same rule, build a Session and call
// CompileText/Evaluate directly instead.
func Eval(ctx context.Context, ruleText string, data value.Value) (value.Value, error) {
	sess := NewSession()
	prog, err := sess.CompileText(ruleText)
	if err != nil {
		return value.Null, err
	}
	return sess.Evaluate(ctx, prog, data)
}
