// Package manager provides plugin lifecycle coordinators: they assign
// PluginIds at load time, route calls to the owning runtime, and tear
// plugins down on unload.
//
// Locking discipline, shared by both managers: the plugin table is guarded
// by an RWMutex. CallPlugin snapshots the table entry under the read lock
// and invokes the runtime outside it, so long-running plugin calls never
// block loads or unloads. UnloadPlugin removes the entry under the write
// lock and then tears the plugin down; a call that raced the unload either
// completes against the still-live engine or fails with a RuntimeError from
// the stopped worker. It can never observe a different plugin under the
// same id, because ids are allocated from a monotonic counter and never
// reassigned.
package manager

import (
	"context"
	"log/slog"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// Manager is the lifecycle contract shared by the single- and
// multi-runtime coordinators. Operations may block at engine boundaries;
// synchronous callers pass context.Background().
type Manager interface {
	// LoadPlugin loads a plugin source and returns its id.
	LoadPlugin(ctx context.Context, source sdk.PluginSource, host sdk.HostContext) (sdk.PluginID, error)

	// CallPlugin invokes a named function inside the loaded plugin.
	CallPlugin(ctx context.Context, id sdk.PluginID, function string, args []value.Value) (value.Value, error)

	// UnloadPlugin removes the plugin and tears it down. After it returns,
	// IsPluginLoaded(id) is false and further calls against id fail with
	// an InvalidPluginStateError.
	UnloadPlugin(ctx context.Context, id sdk.PluginID) error

	// PluginName returns the plugin's display name. The second result is
	// false when the id is not loaded or the plugin is unnamed.
	PluginName(id sdk.PluginID) (string, bool)

	// IsPluginLoaded reports whether id refers to a currently loaded plugin.
	IsPluginLoaded(id sdk.PluginID) bool
}

// Option configures a manager.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the slog logger. A nil logger uses slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// teardown closes plugins that hold resources. Teardown failures do not
// fail the unload: the entry is already gone and the id can never be
// observed again, so the error is only logged.
func teardown(ctx context.Context, logger *slog.Logger, id sdk.PluginID, plugin sdk.Plugin) {
	closer, ok := plugin.(sdk.Closer)
	if !ok {
		return
	}
	if err := closer.Close(ctx); err != nil {
		logger.Error("plugin teardown failed", "plugin_id", uint64(id), "error", err)
	}
}
