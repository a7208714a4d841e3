// Package exprlang implements a plugin runtime for YAML manifests whose
// functions are expression bodies, evaluated with the expr language. It is
// the lightweight scripting backend: no compilation toolchain, plugins are
// plain text, and host capabilities appear as ordinary functions inside
// expressions.
package exprlang

import (
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
	runtimeName = "exprlang"

	manifestExt    = ".expr.yaml"
	manifestExtAlt = ".expr.yml"
)

// Runtime loads and executes expression manifests. Each loaded plugin gets
// its own confined worker, since compiled programs share a mutable variable
// store across calls.
type Runtime struct {
	token  uuid.UUID
	logger *slog.Logger
}

var _ sdk.Runtime = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the slog logger. A nil logger uses slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) { r.logger = logger }
}

// New creates an exprlang runtime. Each instance carries a unique token so
// plugin handles cannot be replayed against a different instance.
func New(opts ...Option) *Runtime {
	r := &Runtime{token: uuid.New()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Name returns "exprlang".
func (r *Runtime) Name() string { return runtimeName }

// Supports reports whether the source looks like an expression manifest:
// a *.expr.yaml or *.expr.yml path (or a directory containing one), or
// text/bytes content that parses as YAML with a functions mapping.
func (r *Runtime) Supports(source sdk.PluginSource) bool {
	switch source.Kind() {
	case sdk.SourceText:
		return probeManifest([]byte(source.Text()))
	case sdk.SourceBytes:
		return probeManifest(source.Data())
	case sdk.SourceFile:
		path := source.Path()
		if hasManifestExt(path) {
			return true
		}
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return false
		}
		entry, err := dirManifest(path)
		return err == nil && entry != ""
	default:
		return false
	}
}

// Load parses and validates the manifest, then spawns a confined worker
// that compiles every function body. Compile failures surface as load
// errors, so a loaded plugin has only runnable functions.
func (r *Runtime) Load(ctx context.Context, source sdk.PluginSource, host sdk.HostContext) (sdk.Plugin, error) {
	data, err := r.sourceData(source)
	if err != nil {
		return nil, err
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, &sdk.LoadError{Runtime: runtimeName, Err: err}
	}

	hostWorker, err := confined.Spawn(func() (confined.Engine, error) {
		return newEngine(manifest, host)
	}, confined.WithName(runtimeName+":"+manifest.Name), confined.WithLogger(r.logger))
	if err != nil {
		return nil, &sdk.LoadError{Runtime: runtimeName, Err: err}
	}

	r.logger.Debug("manifest loaded",
		"plugin", manifest.Name, "functions", len(manifest.Functions))
	return &Plugin{name: manifest.Name, token: r.token, host: hostWorker}, nil
}

// Call downcasts the handle, verifies it belongs to this runtime instance,
// and forwards to the plugin's worker.
func (r *Runtime) Call(ctx context.Context, plugin sdk.Plugin, function string, args []value.Value) (value.Value, error) {
	p, ok := plugin.(*Plugin)
	if !ok {
		return value.Null(), &sdk.InvalidPluginStateError{
			Runtime: runtimeName,
			Reason:  "plugin was not loaded by an exprlang runtime",
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

// sourceData resolves a plugin source to manifest bytes. Directory paths
// resolve to index.expr.yaml when present, otherwise to the lexically first
// manifest in the directory.
func (r *Runtime) sourceData(source sdk.PluginSource) ([]byte, error) {
	switch source.Kind() {
	case sdk.SourceText:
		return []byte(source.Text()), nil
	case sdk.SourceBytes:
		return source.Data(), nil
	case sdk.SourceFile:
		path := source.Path()
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, &sdk.FileNotFoundError{Path: path}
		}
		if err != nil {
			return nil, &sdk.LoadError{Runtime: runtimeName, Err: err}
		}
		if info.IsDir() {
			entry, err := dirManifest(path)
			if err != nil {
				return nil, &sdk.LoadError{Runtime: runtimeName, Err: err}
			}
			if entry == "" {
				return nil, &sdk.FileNotFoundError{Path: filepath.Join(path, "index"+manifestExt)}
			}
			path = entry
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &sdk.LoadError{Runtime: runtimeName, Err: err}
		}
		return data, nil
	default:
		return nil, &sdk.InvalidArgumentError{
			Index:  -1,
			Reason: "unknown plugin source kind",
		}
	}
}

// dirManifest returns the manifest entry file for a plugin directory, or ""
// when the directory holds none.
func dirManifest(dir string) (string, error) {
	for _, index := range []string{"index" + manifestExt, "index" + manifestExtAlt} {
		candidate := filepath.Join(dir, index)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var manifests []string
	for _, entry := range entries {
		if !entry.IsDir() && hasManifestExt(entry.Name()) {
			manifests = append(manifests, filepath.Join(dir, entry.Name()))
		}
	}
	if len(manifests) == 0 {
		return "", nil
	}
	sort.Strings(manifests)
	return manifests[0], nil
}

func hasManifestExt(path string) bool {
	return strings.HasSuffix(path, manifestExt) || strings.HasSuffix(path, manifestExtAlt)
}

// Plugin is a loaded expression manifest bound to its confined worker.
type Plugin struct {
	name  string
	token uuid.UUID
	host  *confined.Host
}

var _ sdk.Plugin = (*Plugin)(nil)
var _ sdk.Closer = (*Plugin)(nil)

// Name returns the manifest's declared name.
func (p *Plugin) Name() string { return p.name }

// Close shuts down the plugin's worker and releases its compiled programs.
func (p *Plugin) Close(ctx context.Context) error { return p.host.Close(ctx) }
