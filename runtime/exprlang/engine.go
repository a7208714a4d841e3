package exprlang

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// compiledFunction pairs a compiled program with the parameter names its
// environment is built from at call time.
type compiledFunction struct {
	params  []string
	program *vm.Program
}

// engine evaluates a manifest's compiled expression bodies. It is confined
// to a single worker goroutine, so the vars map needs no locking even
// though put and fetch mutate it between calls.
type engine struct {
	functions map[string]compiledFunction
	vars      map[string]any
}

// newEngine compiles every function body in the manifest. Host capabilities
// and the put/fetch builtins are bound into the compile environment, so an
// expression referencing an unregistered capability fails at load time, not
// call time.
func newEngine(m *Manifest, host sdk.HostContext) (*engine, error) {
	e := &engine{
		functions: make(map[string]compiledFunction, len(m.Functions)),
		vars:      make(map[string]any),
	}

	opts := e.compileOptions(host)
	for name, spec := range m.Functions {
		program, err := expr.Compile(spec.Body, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to compile function %q: %w", name, err)
		}
		e.functions[name] = compiledFunction{params: spec.Params, program: program}
	}
	return e, nil
}

// compileOptions builds the shared expr option set: an open environment plus
// the builtins and host capability bindings. Env must come before
// AllowUndefinedVariables for the option to take effect.
func (e *engine) compileOptions(host sdk.HostContext) []expr.Option {
	opts := []expr.Option{
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.Function("put", e.put),
		expr.Function("fetch", e.fetch),
	}
	if host == nil {
		return opts
	}
	for _, name := range host.FunctionNames() {
		opts = append(opts, expr.Function(name, hostBinding(host, name)))
	}
	return opts
}

// put stores a value under a name for later calls and returns it, so it can
// be used inline: put("total", a + b).
func (e *engine) put(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("put expects 2 arguments, got %d", len(params))
	}
	name, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("put expects a string name, got %T", params[0])
	}
	e.vars[name] = params[1]
	return params[1], nil
}

// fetch returns a value stored by put, or nil when the name is unset.
func (e *engine) fetch(params ...any) (any, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("fetch expects 1 argument, got %d", len(params))
	}
	name, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("fetch expects a string name, got %T", params[0])
	}
	return e.vars[name], nil
}

// hostBinding exposes one host capability as an expression function.
// Arguments cross the boundary as values in both directions; capability
// errors abort the expression. The binding runs on the plugin's worker,
// detached from the original caller's context: accepted work is never
// cancelled, so capabilities see a background context here.
func hostBinding(host sdk.HostContext, name string) func(...any) (any, error) {
	return func(params ...any) (any, error) {
		args := make([]value.Value, len(params))
		for i, p := range params {
			args[i] = value.FromInterface(p)
		}
		out, err := host.CallFunction(context.Background(), name, args)
		if err != nil {
			return nil, err
		}
		return out.ToInterface(), nil
	}
}

func (e *engine) CallFunction(function string, args []value.Value) (value.Value, error) {
	fn, ok := e.functions[function]
	if !ok {
		return value.Null(), &sdk.FunctionNotFoundError{Function: function}
	}
	if len(args) != len(fn.params) {
		return value.Null(), &sdk.InvalidArgumentError{
			Function: function,
			Index:    -1,
			Reason:   fmt.Sprintf("expects %d arguments, got %d", len(fn.params), len(args)),
		}
	}

	env := make(map[string]any, len(fn.params))
	for i, param := range fn.params {
		env[param] = args[i].ToInterface()
	}

	out, err := expr.Run(fn.program, env)
	if err != nil {
		return value.Null(), &sdk.CallError{Function: function, Message: err.Error()}
	}
	return value.FromInterface(out), nil
}

func (e *engine) Close() error { return nil }
