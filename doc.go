// Package sdk is the core of the polyhost plugin SDK: a runtime-agnostic,
// in-process plugin host. Applications register native capabilities on a
// hostfuncs.Context, load plugin code from text, files, or raw bytes through
// one of the runtime backends, and invoke named functions inside loaded
// plugins, exchanging only the boundary-safe value.Value types.
//
// The package defines the contracts shared by every layer: PluginSource,
// the Runtime and Plugin abstractions, the PluginID handle type, and the
// error taxonomy. Concrete pieces live in subpackages:
//
//   - value: the boundary data model and its native conversions
//   - hostfuncs: the capability registry handed to runtimes at load time
//   - manager: single- and multi-runtime plugin lifecycle coordinators
//   - confined: the worker-goroutine adapter for thread-confined engines
//   - runtime/wasm: a wazero-backed WebAssembly runtime
//   - runtime/exprlang: an expression-language runtime over YAML manifests
//   - schema: JSON Schema generation for plugin manifests
package sdk
