package wasm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// engine owns one wazero runtime with a single instantiated guest module.
// Module instances are not safe for concurrent use, so the engine lives
// behind a confined worker and all methods run on that worker goroutine.
type engine struct {
	runtime wazero.Runtime
	module  api.Module
	name    string
	logger  *slog.Logger
}

// newEngine builds the wazero runtime, instantiates WASI and the host
// capability module, and then the guest itself. Guests built for the
// reactor model get their _initialize export called once here.
func newEngine(data []byte, host sdk.HostContext, cfg config) (*engine, error) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	if err := registerHostModule(ctx, rt, host, cfg); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	mod, err := rt.Instantiate(ctx, data)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	return &engine{runtime: rt, module: mod, name: mod.Name(), logger: cfg.logger}, nil
}

// registerHostModule exports every host capability to the guest under the
// configured module name. Each export shares one shape: read the request
// payload, dispatch to the capability, write the response back.
func registerHostModule(ctx context.Context, rt wazero.Runtime, host sdk.HostContext, cfg config) error {
	if host == nil || len(host.FunctionNames()) == 0 {
		return nil
	}

	builder := rt.NewHostModuleBuilder(cfg.moduleName)
	for _, name := range host.FunctionNames() {
		funcName := name // capture for closure
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				stack[0] = handleHostCall(ctx, mod, stack[0], host, funcName, cfg)
			}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
			Export(funcName)
	}
	_, err := builder.Instantiate(ctx)
	return err
}

// handleHostCall services one guest-to-host call. Failures are reported to
// the guest as error envelopes rather than traps, so a guest can observe
// and handle a missing or failing capability.
func handleHostCall(ctx context.Context, mod api.Module, packed uint64, host sdk.HostContext, name string, cfg config) uint64 {
	ptr, length := unpackPtrLen(packed)

	if length > cfg.maxRequestSize {
		msg := fmt.Sprintf("request size %d exceeds maximum %d bytes", length, cfg.maxRequestSize)
		cfg.logger.ErrorContext(ctx, "wasm: "+msg, "function", name)
		return writeResponse(ctx, mod, cfg.logger, encodeError(msg))
	}

	requestBytes, ok := mod.Memory().Read(ptr, length)
	if !ok {
		cfg.logger.ErrorContext(ctx, "wasm: failed to read request from guest memory", "function", name)
		return writeResponse(ctx, mod, cfg.logger, encodeError("failed to read request from guest memory"))
	}

	args, err := decodeCallRequest(requestBytes)
	if err != nil {
		cfg.logger.ErrorContext(ctx, "wasm: bad host call request", "function", name, "error", err)
		return writeResponse(ctx, mod, cfg.logger, encodeError(err.Error()))
	}

	result, err := host.CallFunction(ctx, name, args)
	if err != nil {
		cfg.logger.ErrorContext(ctx, "wasm: host function failed", "function", name, "error", err)
		return writeResponse(ctx, mod, cfg.logger, encodeError(err.Error()))
	}
	return writeResponse(ctx, mod, cfg.logger, encodeResult(result))
}

// writeResponse allocates guest memory through the guest's allocate export
// and writes the payload there. Returns packed ptr+len, or 0 when the guest
// gives the host nowhere to write.
func writeResponse(ctx context.Context, mod api.Module, logger *slog.Logger, data []byte) uint64 {
	allocate := mod.ExportedFunction("allocate")
	if allocate == nil {
		logger.ErrorContext(ctx, "wasm: guest module missing allocate export")
		return 0
	}

	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		logger.ErrorContext(ctx, "wasm: guest allocate failed", "error", err)
		return 0
	}
	ptr := uint32(results[0])

	if !mod.Memory().Write(ptr, data) {
		logger.ErrorContext(ctx, "wasm: failed to write response to guest memory")
		return 0
	}
	return packPtrLen(ptr, uint32(len(data)))
}

func (e *engine) CallFunction(function string, args []value.Value) (value.Value, error) {
	// Runs on the worker goroutine, detached from the original caller's
	// context: accepted work is never cancelled, so guest invocations get a
	// background context.
	ctx := context.Background()

	fn := e.module.ExportedFunction(function)
	if fn == nil {
		return value.Null(), &sdk.FunctionNotFoundError{Function: function}
	}

	request := encodeCallRequest(args)
	ptr, err := e.writeToGuest(ctx, request)
	if err != nil {
		return value.Null(), err
	}

	results, err := fn.Call(ctx, uint64(ptr), uint64(len(request)))
	if err != nil {
		return value.Null(), &sdk.CallError{Function: function, Message: err.Error()}
	}
	if len(results) == 0 {
		return value.Null(), nil
	}

	respPtr, respLen := unpackPtrLen(results[0])
	if respPtr == 0 || respLen == 0 {
		return value.Null(), &sdk.RuntimeError{
			Runtime: runtimeName,
			Message: fmt.Sprintf("null response from function %q", function),
		}
	}
	respBytes, ok := e.module.Memory().Read(respPtr, respLen)
	if !ok {
		return value.Null(), &sdk.RuntimeError{
			Runtime: runtimeName,
			Message: fmt.Sprintf("failed to read response of function %q from guest memory", function),
		}
	}
	return decodeCallResponse(function, respBytes)
}

// writeToGuest places a request payload in guest memory via allocate.
func (e *engine) writeToGuest(ctx context.Context, data []byte) (uint32, error) {
	allocate := e.module.ExportedFunction("allocate")
	if allocate == nil {
		return 0, &sdk.RuntimeError{
			Runtime: runtimeName,
			Message: "guest module does not export allocate",
		}
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, &sdk.RuntimeError{
			Runtime: runtimeName,
			Message: "guest allocate failed",
			Err:     err,
		}
	}
	if len(results) == 0 {
		return 0, &sdk.RuntimeError{
			Runtime: runtimeName,
			Message: "guest allocate returned no results",
		}
	}
	ptr := uint32(results[0])
	if !e.module.Memory().Write(ptr, data) {
		return 0, &sdk.RuntimeError{
			Runtime: runtimeName,
			Message: "failed to write request to guest memory",
		}
	}
	return ptr, nil
}

func (e *engine) Close() error {
	return e.runtime.Close(context.Background())
}
