package sdk

import (
	"context"

	"github.com/polyhost-dev/polyhost-sdk/value"
)

// HostContext is the registry of host capabilities handed to a Runtime at
// load time so plugin code can call them by name. The concrete
// implementation lives in the hostfuncs package; runtimes only need to
// enumerate and invoke capabilities.
//
// The capability set must be read-only once plugins start loading.
// Concurrent calls may then read it from any goroutine without
// synchronization.
type HostContext interface {
	// CallFunction invokes the named capability with the given arguments.
	// Unknown names fail with a HostFunctionNotFoundError.
	CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error)

	// HasFunction reports whether a capability is registered under name.
	HasFunction(name string) bool

	// FunctionNames returns all registered capability names in sorted order.
	FunctionNames() []string
}

// Plugin is an opaque handle to one loaded unit of plugin code, owned
// exclusively by the Runtime that created it. Concrete plugin types stay
// confined to their runtime package; recovering them from the handle is the
// runtime's job, never the caller's.
type Plugin interface {
	// Name returns the plugin's display name, or "" when it has none.
	Name() string
}

// Closer is implemented by plugins that hold resources needing explicit
// teardown, such as a dedicated worker goroutine. Managers call Close on
// unload and only report the plugin unloaded after it returns.
type Closer interface {
	Close(ctx context.Context) error
}

// Runtime is a named backend implementing load and call for one kind of
// plugin code. Load and Call may block at engine boundaries; synchronous
// callers pass context.Background().
type Runtime interface {
	// Name returns a static identifier for diagnostics and selection.
	Name() string

	// Supports reports whether this runtime can load the source. It must
	// not mutate state and should be cheap (extension or content sniffing),
	// since managers probe multiple runtimes with it.
	Supports(source PluginSource) bool

	// Load compiles or instantiates the plugin, wiring every capability in
	// host into the backend so plugin code can call them by name.
	Load(ctx context.Context, source PluginSource, host HostContext) (Plugin, error)

	// Call invokes a named function inside the loaded plugin. A handle that
	// was not produced by this runtime instance fails with an
	// InvalidPluginStateError.
	Call(ctx context.Context, plugin Plugin, function string, args []value.Value) (value.Value, error)
}
