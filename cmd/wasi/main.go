//go:build wasip1

// Command jsonlogic-wasi is the WASI (wasip1) entrypoint used by
// wasmsandbox to run a compiled rule inside a wazero-hosted sandbox,
// differentially tested against the native vm.Engine. The VM is pure
// compute with no host I/O, which is what makes a WASI build of it
// possible.
//
// Protocol: single JSON object on stdin -> single JSON object on
// stdout.
//
//	stdin:  { "rule": <jsonlogic rule>, "data": <any JSON value> }
//	stdout: { "result": <any JSON value> }   on success
//	        { "error":  "<message>"      }   on failure (exit code 1)
//
// Build:
//
//	GOOS=wasip1 GOARCH=wasm go build -o jsonlogic.wasm ./cmd/wasi/
package main

import (
	"context"
	"encoding/json"
	"os"

	jsonlogic "github.com/corvidrules/jsonlogic"
	"github.com/corvidrules/jsonlogic/pkg/value"
)

type request struct {
	Rule json.RawMessage `json:"rule"`
	Data json.RawMessage `json:"data"`
}

type response struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func writeResponse(r response, exitCode int) {
	_ = json.NewEncoder(os.Stdout).Encode(r)
	os.Exit(exitCode)
}

func main() {
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(response{Error: "invalid request JSON: " + err.Error()}, 1)
	}

	sess := jsonlogic.NewSession()
	dataVal := value.Null
	var err error
	if len(req.Data) > 0 {
		dataVal, err = sess.ParseData(string(req.Data))
		if err != nil {
			writeResponse(response{Error: err.Error()}, 1)
		}
	}

	rule, err := sess.ParseRule(string(req.Rule), "")
	if err != nil {
		writeResponse(response{Error: err.Error()}, 1)
	}
	prog, err := sess.Compile(rule)
	if err != nil {
		writeResponse(response{Error: err.Error()}, 1)
	}
	result, err := sess.Evaluate(context.Background(), prog, dataVal)
	if err != nil {
		writeResponse(response{Error: err.Error()}, 1)
	}

	writeResponse(response{Result: toJSON(result)}, 0)
}

// toJSON converts a value.Value back into a plain interface{} tree
// suitable for encoding/json, since value.Value has no MarshalJSON of
// its own: the arena-backed Value type is an internal representation,
// not a wire format, and this conversion is the sandbox boundary, not
// a serialization of Program.
func toJSON(v value.Value) interface{} {
	switch v.Kind {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.Bool
	case value.KindInt:
		return v.Int
	case value.KindFloat:
		return v.Float
	case value.KindString:
		return v.Str
	case value.KindArray:
		out := make([]interface{}, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = toJSON(e)
		}
		return out
	case value.KindObject:
		out := make(map[string]interface{}, len(v.Obj))
		for _, kv := range v.Obj {
			out[kv.Key] = toJSON(kv.Val)
		}
		return out
	default:
		return nil
	}
}
