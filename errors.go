package sdk

import (
	"errors"
	"fmt"
)

// Sentinel errors for matching failure kinds with errors.Is. Every typed
// error below matches exactly one sentinel. Errors are values here: fallible
// operations return them, nothing is recovered locally, and no retries are
// built in — retrying a load or call is a caller decision.
var (
	// ErrLoadFailed matches failures to load a plugin source.
	ErrLoadFailed = errors.New("plugin load failed")

	// ErrCallFailed matches failures of a specific plugin function call.
	ErrCallFailed = errors.New("plugin call failed")

	// ErrFunctionNotFound matches lookups of names absent from a loaded plugin.
	ErrFunctionNotFound = errors.New("function not found in plugin")

	// ErrInvalidArgumentType matches argument arity or shape mismatches.
	ErrInvalidArgumentType = errors.New("invalid argument type")

	// ErrHostFunctionNotFound matches lookups of names absent from a host context.
	ErrHostFunctionNotFound = errors.New("host function not found")

	// ErrInvalidPluginState matches handle or id misuse. This is a caller
	// bug and never expected in correct usage.
	ErrInvalidPluginState = errors.New("invalid plugin state")

	// ErrRuntimeFailure matches opaque engine-level failures.
	ErrRuntimeFailure = errors.New("runtime error")

	// ErrFileNotFound matches missing plugin source files.
	ErrFileNotFound = errors.New("plugin file not found")
)

// LoadError reports that a source was malformed or an engine failed to
// initialize. Load failures are fatal to the load attempt.
type LoadError struct {
	Runtime string
	Reason  string
	Err     error
}

func (e *LoadError) Error() string {
	msg := "failed to load plugin"
	if e.Runtime != "" {
		msg = fmt.Sprintf("runtime %q failed to load plugin", e.Runtime)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoadFailed }

// CallError reports that a specific plugin function call failed.
type CallError struct {
	Function string
	Message  string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("failed to call function %q: %s", e.Function, e.Message)
}

func (e *CallError) Is(target error) bool { return target == ErrCallFailed }

// FunctionNotFoundError reports a function name absent in a loaded plugin.
type FunctionNotFoundError struct {
	Function string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function %q not found in plugin", e.Function)
}

func (e *FunctionNotFoundError) Is(target error) bool { return target == ErrFunctionNotFound }

// InvalidArgumentError reports an argument arity or shape mismatch, or a
// source kind a backend cannot consume. Index is the zero-based argument
// position, or -1 when the failure is not positional.
type InvalidArgumentError struct {
	Function string
	Index    int
	Reason   string
	Err      error
}

func (e *InvalidArgumentError) Error() string {
	msg := "invalid argument"
	if e.Index >= 0 {
		msg = fmt.Sprintf("invalid argument at position %d", e.Index)
	}
	if e.Function != "" {
		msg += fmt.Sprintf(" for function %q", e.Function)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidArgumentError) Unwrap() error { return e.Err }

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgumentType }

// HostFunctionNotFoundError reports a capability name absent in a host context.
type HostFunctionNotFoundError struct {
	Name string
}

func (e *HostFunctionNotFoundError) Error() string {
	return fmt.Sprintf("host function %q not found", e.Name)
}

func (e *HostFunctionNotFoundError) Is(target error) bool { return target == ErrHostFunctionNotFound }

// InvalidPluginStateError reports that a plugin handle or id does not match
// the runtime or manager attempting to use it.
type InvalidPluginStateError struct {
	Runtime string
	Reason  string
}

func (e *InvalidPluginStateError) Error() string {
	msg := "invalid plugin state"
	if e.Runtime != "" {
		msg += fmt.Sprintf(" for runtime %q", e.Runtime)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidPluginStateError) Is(target error) bool { return target == ErrInvalidPluginState }

// RuntimeError reports an opaque engine-level failure during execution.
type RuntimeError struct {
	Runtime string
	Message string
	Err     error
}

func (e *RuntimeError) Error() string {
	msg := "runtime error"
	if e.Runtime != "" {
		msg = fmt.Sprintf("runtime %q error", e.Runtime)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func (e *RuntimeError) Is(target error) bool { return target == ErrRuntimeFailure }

// FileNotFoundError reports a missing plugin source file.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("plugin file %q not found", e.Path)
}

func (e *FileNotFoundError) Is(target error) bool { return target == ErrFileNotFound }
