// Package testutil provides fakes shared by the package tests: a scriptable
// runtime for manager tests and a scriptable engine for worker tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// FakePlugin is the handle type produced by FakeRuntime.
type FakePlugin struct {
	PluginName string
	Closed     atomic.Bool
}

func (p *FakePlugin) Name() string { return p.PluginName }

func (p *FakePlugin) Close(ctx context.Context) error {
	p.Closed.Store(true)
	return nil
}

// FakeRuntime is a scriptable sdk.Runtime. Supports is driven by a
// predicate, Call by a function map; both have usable defaults.
type FakeRuntime struct {
	RuntimeName string

	// SupportsFn decides source compatibility. Nil accepts everything.
	SupportsFn func(source sdk.PluginSource) bool

	// Functions maps function names to call behavior. An unknown name
	// fails with a FunctionNotFoundError.
	Functions map[string]func(args []value.Value) (value.Value, error)

	// LoadErr, when set, makes every Load fail.
	LoadErr error

	Loads atomic.Int64
	Calls atomic.Int64
}

var _ sdk.Runtime = (*FakeRuntime)(nil)

func (r *FakeRuntime) Name() string { return r.RuntimeName }

func (r *FakeRuntime) Supports(source sdk.PluginSource) bool {
	if r.SupportsFn == nil {
		return true
	}
	return r.SupportsFn(source)
}

func (r *FakeRuntime) Load(ctx context.Context, source sdk.PluginSource, host sdk.HostContext) (sdk.Plugin, error) {
	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	n := r.Loads.Add(1)
	return &FakePlugin{PluginName: fmt.Sprintf("%s-plugin-%d", r.RuntimeName, n)}, nil
}

func (r *FakeRuntime) Call(ctx context.Context, plugin sdk.Plugin, function string, args []value.Value) (value.Value, error) {
	if _, ok := plugin.(*FakePlugin); !ok {
		return value.Null(), &sdk.InvalidPluginStateError{
			Runtime: r.RuntimeName,
			Reason:  "foreign plugin handle",
		}
	}
	r.Calls.Add(1)
	fn, ok := r.Functions[function]
	if !ok {
		return value.Null(), &sdk.FunctionNotFoundError{Function: function}
	}
	return fn(args)
}

// SupportsExt returns a Supports predicate matching file sources by
// extension.
func SupportsExt(ext string) func(source sdk.PluginSource) bool {
	return func(source sdk.PluginSource) bool {
		return source.Kind() == sdk.SourceFile && source.Ext() == ext
	}
}

// ScriptedEngine is a scriptable confined.Engine backed by a function map.
type ScriptedEngine struct {
	// Functions maps function names to call behavior. An unknown name
	// fails with a FunctionNotFoundError.
	Functions map[string]func(args []value.Value) (value.Value, error)

	CloseErr error
	Closed   atomic.Bool
}

func (e *ScriptedEngine) CallFunction(function string, args []value.Value) (value.Value, error) {
	fn, ok := e.Functions[function]
	if !ok {
		return value.Null(), &sdk.FunctionNotFoundError{Function: function}
	}
	return fn(args)
}

func (e *ScriptedEngine) Close() error {
	e.Closed.Store(true)
	return e.CloseErr
}
