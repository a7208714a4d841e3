package manager

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// SingleRuntime coordinates plugins for exactly one runtime backend, known
// at construction. There is no per-call backend lookup; this is the
// common-case manager for hosts embedding a single engine kind.
type SingleRuntime struct {
	runtime sdk.Runtime
	logger  *slog.Logger

	mu      sync.RWMutex
	plugins map[sdk.PluginID]sdk.Plugin
	nextID  atomic.Uint64
}

var _ Manager = (*SingleRuntime)(nil)

// NewSingleRuntime creates a manager bound to one runtime.
func NewSingleRuntime(runtime sdk.Runtime, opts ...Option) *SingleRuntime {
	o := applyOptions(opts)
	return &SingleRuntime{
		runtime: runtime,
		logger:  o.logger,
		plugins: make(map[sdk.PluginID]sdk.Plugin),
	}
}

// Runtime returns the underlying runtime backend.
func (m *SingleRuntime) Runtime() sdk.Runtime { return m.runtime }

// PluginCount returns the number of currently loaded plugins.
func (m *SingleRuntime) PluginCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// PluginIDs returns the ids of all currently loaded plugins.
func (m *SingleRuntime) PluginIDs() []sdk.PluginID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]sdk.PluginID, 0, len(m.plugins))
	for id := range m.plugins {
		ids = append(ids, id)
	}
	return ids
}

// LoadPlugin checks source compatibility, loads through the runtime, and
// assigns the next id. Ids are strictly increasing across the manager's
// lifetime and unaffected by unloads.
func (m *SingleRuntime) LoadPlugin(ctx context.Context, source sdk.PluginSource, host sdk.HostContext) (sdk.PluginID, error) {
	if !m.runtime.Supports(source) {
		return 0, &sdk.LoadError{
			Runtime: m.runtime.Name(),
			Reason:  "runtime does not support this plugin source",
		}
	}

	plugin, err := m.runtime.Load(ctx, source, host)
	if err != nil {
		return 0, err
	}

	id := sdk.PluginID(m.nextID.Add(1))
	m.mu.Lock()
	m.plugins[id] = plugin
	m.mu.Unlock()

	m.logger.Debug("plugin loaded",
		"runtime", m.runtime.Name(), "plugin_id", uint64(id), "plugin", plugin.Name())
	return id, nil
}

// CallPlugin routes a call to the runtime owning id.
func (m *SingleRuntime) CallPlugin(ctx context.Context, id sdk.PluginID, function string, args []value.Value) (value.Value, error) {
	m.mu.RLock()
	plugin, ok := m.plugins[id]
	m.mu.RUnlock()
	if !ok {
		return value.Null(), &sdk.InvalidPluginStateError{
			Runtime: m.runtime.Name(),
			Reason:  "plugin id is not loaded",
		}
	}
	return m.runtime.Call(ctx, plugin, function, args)
}

// UnloadPlugin removes the plugin and tears it down. The id is never
// reassigned.
func (m *SingleRuntime) UnloadPlugin(ctx context.Context, id sdk.PluginID) error {
	m.mu.Lock()
	plugin, ok := m.plugins[id]
	if ok {
		delete(m.plugins, id)
	}
	m.mu.Unlock()
	if !ok {
		return &sdk.InvalidPluginStateError{
			Runtime: m.runtime.Name(),
			Reason:  "plugin id is not loaded",
		}
	}

	teardown(ctx, m.logger, id, plugin)
	m.logger.Debug("plugin unloaded", "runtime", m.runtime.Name(), "plugin_id", uint64(id))
	return nil
}

// PluginName returns the display name of a loaded plugin.
func (m *SingleRuntime) PluginName(id sdk.PluginID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plugin, ok := m.plugins[id]
	if !ok || plugin.Name() == "" {
		return "", false
	}
	return plugin.Name(), true
}

// IsPluginLoaded reports whether id refers to a currently loaded plugin.
func (m *SingleRuntime) IsPluginLoaded(id sdk.PluginID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.plugins[id]
	return ok
}
