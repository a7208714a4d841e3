package manager

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// pluginEntry pairs a plugin with the index of the runtime that produced
// it, so later calls route to the correct backend.
type pluginEntry struct {
	plugin       sdk.Plugin
	runtimeIndex int
}

// MultiRuntime coordinates plugins across an ordered list of runtime
// backends. LoadPlugin scans the list in registration order and selects
// the first runtime whose Supports accepts the source.
//
// First match wins: registration order is caller-controlled and
// significant. When multiple backends could handle the same source, the
// one registered earlier takes it; register the more specific runtime
// first and catch-all runtimes last.
type MultiRuntime struct {
	runtimes []sdk.Runtime
	logger   *slog.Logger

	mu      sync.RWMutex
	plugins map[sdk.PluginID]pluginEntry
	nextID  atomic.Uint64
}

var _ Manager = (*MultiRuntime)(nil)

// NewMultiRuntime creates a manager over the given runtimes, probed in the
// given order. More runtimes can be appended later with RegisterRuntime.
func NewMultiRuntime(runtimes []sdk.Runtime, opts ...Option) *MultiRuntime {
	o := applyOptions(opts)
	rts := make([]sdk.Runtime, len(runtimes))
	copy(rts, runtimes)
	return &MultiRuntime{
		runtimes: rts,
		logger:   o.logger,
		plugins:  make(map[sdk.PluginID]pluginEntry),
	}
}

// RegisterRuntime appends a runtime to the probe order. Register runtimes
// before loading plugins; registration does not affect already-loaded
// plugins.
func (m *MultiRuntime) RegisterRuntime(runtime sdk.Runtime) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtimes = append(m.runtimes, runtime)
}

// RuntimeNames returns the names of all registered runtimes in probe order.
func (m *MultiRuntime) RuntimeNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.runtimes))
	for i, rt := range m.runtimes {
		names[i] = rt.Name()
	}
	return names
}

// RuntimeCount returns the number of registered runtimes.
func (m *MultiRuntime) RuntimeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runtimes)
}

// PluginCount returns the number of currently loaded plugins.
func (m *MultiRuntime) PluginCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// LoadPlugin selects the first compatible runtime in registration order,
// loads the plugin through it, and records the runtime index for routing.
func (m *MultiRuntime) LoadPlugin(ctx context.Context, source sdk.PluginSource, host sdk.HostContext) (sdk.PluginID, error) {
	m.mu.RLock()
	runtimes := m.runtimes
	m.mu.RUnlock()

	index := -1
	for i, rt := range runtimes {
		if rt.Supports(source) {
			index = i
			break
		}
	}
	if index < 0 {
		return 0, &sdk.LoadError{Reason: "no compatible runtime found for this plugin source"}
	}

	runtime := runtimes[index]
	plugin, err := runtime.Load(ctx, source, host)
	if err != nil {
		return 0, err
	}

	id := sdk.PluginID(m.nextID.Add(1))
	m.mu.Lock()
	m.plugins[id] = pluginEntry{plugin: plugin, runtimeIndex: index}
	m.mu.Unlock()

	m.logger.Debug("plugin loaded",
		"runtime", runtime.Name(), "plugin_id", uint64(id), "plugin", plugin.Name())
	return id, nil
}

// CallPlugin routes a call through the runtime recorded at load time.
func (m *MultiRuntime) CallPlugin(ctx context.Context, id sdk.PluginID, function string, args []value.Value) (value.Value, error) {
	m.mu.RLock()
	entry, ok := m.plugins[id]
	var runtime sdk.Runtime
	if ok {
		runtime = m.runtimes[entry.runtimeIndex]
	}
	m.mu.RUnlock()
	if !ok {
		return value.Null(), &sdk.InvalidPluginStateError{Reason: "plugin id is not loaded"}
	}
	return runtime.Call(ctx, entry.plugin, function, args)
}

// UnloadPlugin removes the plugin and tears it down. The id is never
// reassigned.
func (m *MultiRuntime) UnloadPlugin(ctx context.Context, id sdk.PluginID) error {
	m.mu.Lock()
	entry, ok := m.plugins[id]
	if ok {
		delete(m.plugins, id)
	}
	m.mu.Unlock()
	if !ok {
		return &sdk.InvalidPluginStateError{Reason: "plugin id is not loaded"}
	}

	teardown(ctx, m.logger, id, entry.plugin)
	m.logger.Debug("plugin unloaded", "plugin_id", uint64(id))
	return nil
}

// PluginName returns the display name of a loaded plugin.
func (m *MultiRuntime) PluginName(id sdk.PluginID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.plugins[id]
	if !ok || entry.plugin.Name() == "" {
		return "", false
	}
	return entry.plugin.Name(), true
}

// IsPluginLoaded reports whether id refers to a currently loaded plugin.
func (m *MultiRuntime) IsPluginLoaded(id sdk.PluginID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.plugins[id]
	return ok
}
