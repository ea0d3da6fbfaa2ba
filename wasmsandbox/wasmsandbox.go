// Package wasmsandbox hosts a WASI (wasip1) build of this very module
// inside an in-process wazero runtime, so a caller that does not trust
// a rule's compiled program to run in the host process can execute it
// inside wasm's linear-memory isolation instead. This does not change
// the engine's semantics, only where it runs; it is an optional
// hard-isolation execution mode, useful for differential testing
// against the native vm.Engine.
package wasmsandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	wazeroSys "github.com/tetratelabs/wazero/sys"
)

// Sandbox wraps a wazero runtime hosting one AOT-compiled wasip1
// module built from cmd/wasi. One Sandbox can run many rule/data pairs
// concurrently; each InstantiateModule call gets its own anonymous
// module instance and therefore its own linear memory.
type Sandbox struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
}

// New loads wasmBytes (the output of
// `GOOS=wasip1 GOARCH=wasm go build -o jsonlogic.wasm ./cmd/wasi/`)
// and AOT-compiles it. Callers must call Close when done.
func New(ctx context.Context, wasmBytes []byte) (*Sandbox, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmsandbox: instantiate wasi_snapshot_preview1: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmsandbox: compile module: %w", err)
	}
	return &Sandbox{rt: rt, compiled: compiled}, nil
}

// Close releases the wazero runtime and every resource it owns.
func (s *Sandbox) Close(ctx context.Context) error {
	return s.rt.Close(ctx)
}

// envelope mirrors cmd/wasi's stdout protocol.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Eval runs rule against data inside a fresh, anonymous module
// instance and returns the raw JSON result text.
func (s *Sandbox) Eval(ctx context.Context, rule, data json.RawMessage) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]json.RawMessage{"rule": rule, "data": data})
	if err != nil {
		return nil, fmt.Errorf("wasmsandbox: marshal request: %w", err)
	}

	var stdout bytes.Buffer
	modConfig := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(payload)).
		WithStdout(&stdout).
		WithArgs("jsonlogic").
		WithName("") // anonymous: allows concurrent instantiations
	if _, execErr := s.rt.InstantiateModule(ctx, s.compiled, modConfig); execErr != nil {
		var exitErr *wazeroSys.ExitError
		if !errors.As(execErr, &exitErr) || exitErr.ExitCode() != 0 {
			return nil, fmt.Errorf("wasmsandbox: instantiate: %w", execErr)
		}
	}

	var env envelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		return nil, fmt.Errorf("wasmsandbox: decode response: %w (raw: %s)", err, stdout.String())
	}
	if env.Error != "" {
		return nil, errors.New(env.Error)
	}
	return env.Result, nil
}
