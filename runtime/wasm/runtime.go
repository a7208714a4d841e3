// Package wasm implements a plugin runtime for WebAssembly modules executed
// with wazero. Host capabilities are exported to the guest as a host module,
// and every boundary crossing uses a packed i64 JSON-payload convention.
package wasm

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/confined"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

const (
	runtimeName = "wasm"

	// DefaultModuleName is the import namespace guests use to reach host
	// capabilities.
	DefaultModuleName = "polyhost"

	// DefaultMaxRequestSize caps guest-to-host request payloads at 1MB.
	DefaultMaxRequestSize uint32 = 1 << 20
)

// wasmMagic is the WebAssembly binary preamble.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

type config struct {
	moduleName     string
	maxRequestSize uint32
	logger         *slog.Logger
}

// Option configures a Runtime.
type Option func(*config)

// WithModuleName sets the import namespace for host capabilities.
func WithModuleName(name string) Option {
	return func(c *config) { c.moduleName = name }
}

// WithMaxRequestSize caps guest-to-host request payload size.
func WithMaxRequestSize(size uint32) Option {
	return func(c *config) { c.maxRequestSize = size }
}

// WithLogger sets the slog logger. A nil logger uses slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Runtime loads and executes WebAssembly plugins. Each loaded plugin gets
// its own wazero runtime instance behind a confined worker, since module
// instances are not safe for concurrent use.
type Runtime struct {
	token uuid.UUID
	cfg   config
}

var _ sdk.Runtime = (*Runtime)(nil)

// New creates a wasm runtime. Each instance carries a unique token so plugin
// handles cannot be replayed against a different instance.
func New(opts ...Option) *Runtime {
	cfg := config{
		moduleName:     DefaultModuleName,
		maxRequestSize: DefaultMaxRequestSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Runtime{token: uuid.New(), cfg: cfg}
}

// Name returns "wasm".
func (r *Runtime) Name() string { return runtimeName }

// Supports reports whether the source looks like a WebAssembly module: a
// byte buffer with the wasm preamble, or a .wasm path (or a directory
// containing one). Text sources are never supported; wasm is a binary
// format.
func (r *Runtime) Supports(source sdk.PluginSource) bool {
	switch source.Kind() {
	case sdk.SourceBytes:
		return bytes.HasPrefix(source.Data(), wasmMagic)
	case sdk.SourceFile:
		path := source.Path()
		if strings.EqualFold(filepath.Ext(path), ".wasm") {
			return true
		}
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return false
		}
		entry, err := dirModule(path)
		return err == nil && entry != ""
	default:
		return false
	}
}

// Load resolves the source to module bytes and spawns a confined worker
// that owns the wazero runtime, host module, and guest instance.
func (r *Runtime) Load(ctx context.Context, source sdk.PluginSource, host sdk.HostContext) (sdk.Plugin, error) {
	data, fallbackName, err := r.sourceData(source)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, wasmMagic) {
		return nil, &sdk.LoadError{
			Runtime: runtimeName,
			Reason:  "source is not a WebAssembly binary",
		}
	}

	// Spawn waits for init before returning, so reading name afterwards
	// does not race the worker.
	var name string
	hostWorker, err := confined.Spawn(func() (confined.Engine, error) {
		eng, err := newEngine(data, host, r.cfg)
		if err != nil {
			return nil, err
		}
		name = eng.name
		return eng, nil
	}, confined.WithName(runtimeName+":"+fallbackName), confined.WithLogger(r.cfg.logger))
	if err != nil {
		return nil, &sdk.LoadError{Runtime: runtimeName, Err: err}
	}
	if name == "" {
		name = fallbackName
	}

	r.cfg.logger.Debug("module loaded", "plugin", name, "bytes", len(data))
	return &Plugin{name: name, token: r.token, host: hostWorker}, nil
}

// Call downcasts the handle, verifies it belongs to this runtime instance,
// and forwards to the plugin's worker.
func (r *Runtime) Call(ctx context.Context, plugin sdk.Plugin, function string, args []value.Value) (value.Value, error) {
	p, ok := plugin.(*Plugin)
	if !ok {
		return value.Null(), &sdk.InvalidPluginStateError{
			Runtime: runtimeName,
			Reason:  "plugin was not loaded by a wasm runtime",
		}
	}
	if p.token != r.token {
		return value.Null(), &sdk.InvalidPluginStateError{
			Runtime: runtimeName,
			Reason:  "plugin belongs to a different runtime instance",
		}
	}
	return p.host.Call(ctx, function, args)
}

// sourceData resolves a plugin source to module bytes plus a display name
// used when the module binary declares none. Directory paths resolve to
// index.wasm when present, otherwise to the lexically first .wasm file.
func (r *Runtime) sourceData(source sdk.PluginSource) ([]byte, string, error) {
	switch source.Kind() {
	case sdk.SourceBytes:
		return source.Data(), "module", nil
	case sdk.SourceFile:
		path := source.Path()
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, "", &sdk.FileNotFoundError{Path: path}
		}
		if err != nil {
			return nil, "", &sdk.LoadError{Runtime: runtimeName, Err: err}
		}
		if info.IsDir() {
			entry, err := dirModule(path)
			if err != nil {
				return nil, "", &sdk.LoadError{Runtime: runtimeName, Err: err}
			}
			if entry == "" {
				return nil, "", &sdk.FileNotFoundError{Path: filepath.Join(path, "index.wasm")}
			}
			path = entry
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", &sdk.LoadError{Runtime: runtimeName, Err: err}
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return data, name, nil
	case sdk.SourceText:
		return nil, "", &sdk.InvalidArgumentError{
			Index:  -1,
			Reason: "text sources are not supported: wasm is a binary format",
		}
	default:
		return nil, "", &sdk.InvalidArgumentError{
			Index:  -1,
			Reason: "unknown plugin source kind",
		}
	}
}

// dirModule returns the module entry file for a plugin directory, or ""
// when the directory holds none.
func dirModule(dir string) (string, error) {
	index := filepath.Join(dir, "index.wasm")
	if _, err := os.Stat(index); err == nil {
		return index, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var modules []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".wasm") {
			modules = append(modules, filepath.Join(dir, entry.Name()))
		}
	}
	if len(modules) == 0 {
		return "", nil
	}
	sort.Strings(modules)
	return modules[0], nil
}

// Plugin is a loaded WebAssembly module bound to its confined worker.
type Plugin struct {
	name  string
	token uuid.UUID
	host  *confined.Host
}

var _ sdk.Plugin = (*Plugin)(nil)
var _ sdk.Closer = (*Plugin)(nil)

// Name returns the module's declared name, or a name derived from the
// source when the binary declares none.
func (p *Plugin) Name() string { return p.name }

// Close shuts down the plugin's worker and its wazero runtime.
func (p *Plugin) Close(ctx context.Context) error { return p.host.Close(ctx) }
