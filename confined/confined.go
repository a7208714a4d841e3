// Package confined runs an execution engine on a dedicated worker goroutine
// that owns it exclusively for its entire lifetime. Engines whose instances
// cannot be shared or moved across threads become usable from arbitrary
// callers by modeling access as message passing into a single-owner worker
// instead of sharing or locking the engine directly.
package confined

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// Engine is the single-threaded resource a Host confines. It is constructed
// on the worker goroutine and every method is invoked from that goroutine
// only; implementations need no internal synchronization.
type Engine interface {
	// CallFunction invokes a named function inside the engine.
	CallFunction(function string, args []value.Value) (value.Value, error)

	// Close releases engine resources. Called once, on the worker, as the
	// last engine access before the worker exits.
	Close() error
}

// Fatal wraps an engine error to signal that the engine is unusable and the
// worker must shut down. The wrapped error is still delivered to the caller
// whose command triggered it; subsequent calls fail with a RuntimeError.
type Fatal struct {
	Err error
}

func (f *Fatal) Error() string { return "fatal engine error: " + f.Err.Error() }

func (f *Fatal) Unwrap() error { return f.Err }

type callResult struct {
	out value.Value
	err error
}

type command struct {
	function string
	args     []value.Value
	reply    chan callResult
}

// Host presents a concurrency-safe call surface over a confined Engine.
// Calls are serialized through an ordered command queue: the worker
// processes requests strictly in arrival order, with no reordering and no
// concurrent execution within one host. Hosts for different engines run
// fully in parallel.
//
// There is no cancellation primitive: once a command is accepted by the
// worker it runs to completion; a caller that stops waiting on its context
// only abandons the reply. Timeouts must be layered by the caller around
// the reply wait.
type Host struct {
	cmds      chan command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	name      string
	logger    *slog.Logger
}

type config struct {
	name     string
	osThread bool
	logger   *slog.Logger
}

// Option configures a Host at spawn time.
type Option func(*config)

// WithName sets a name used in diagnostics and log output.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithOSThread pins the worker goroutine to its OS thread for engines with
// true thread affinity, not just single-owner semantics.
func WithOSThread(pin bool) Option {
	return func(c *config) { c.osThread = pin }
}

// WithLogger sets the slog logger. A nil logger uses slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Spawn starts the worker goroutine and constructs the engine on it, so the
// engine is born on the goroutine that will own it. An init failure stops
// the worker and is returned directly; on success the engine is owned by
// the worker until Close.
func Spawn(init func() (Engine, error), opts ...Option) (*Host, error) {
	cfg := config{name: "engine"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	h := &Host{
		cmds:   make(chan command),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		name:   cfg.name,
		logger: cfg.logger,
	}

	initErr := make(chan error, 1)
	go h.run(init, cfg.osThread, initErr)

	if err := <-initErr; err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Host) run(init func() (Engine, error), osThread bool, initErr chan<- error) {
	defer close(h.done)

	if osThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	engine, err := init()
	initErr <- err
	if err != nil {
		return
	}
	defer func() {
		if err := engine.Close(); err != nil {
			h.logger.Error("engine close failed", "engine", h.name, "error", err)
		}
	}()

	for {
		select {
		case cmd := <-h.cmds:
			out, err := h.invoke(engine, cmd)
			cmd.reply <- callResult{out: out, err: err}
			if fatal, ok := err.(*Fatal); ok {
				h.logger.Error("engine worker stopping after fatal error",
					"engine", h.name, "error", fatal.Err)
				return
			}
		case <-h.quit:
			return
		}
	}
}

// invoke shields the worker loop from a panicking engine; the panic surfaces
// to the waiting caller as a fatal error and the worker shuts down.
func (h *Host) invoke(engine Engine, cmd command) (out value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = value.Null()
			err = &Fatal{Err: fmt.Errorf("engine panic in %q: %v", cmd.function, r)}
		}
	}()
	return engine.CallFunction(cmd.function, cmd.args)
}

// Call submits a function invocation to the worker and waits for its reply.
// If the worker has already terminated, Call fails with a RuntimeError
// describing the broken command channel rather than hanging. A context
// cancellation while waiting abandons the reply but does not stop the
// underlying work.
func (h *Host) Call(ctx context.Context, function string, args []value.Value) (value.Value, error) {
	cmd := command{function: function, args: args, reply: make(chan callResult, 1)}

	select {
	case h.cmds <- cmd:
	case <-h.done:
		return value.Null(), h.stoppedErr()
	case <-ctx.Done():
		return value.Null(), ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		if fatal, ok := res.err.(*Fatal); ok {
			return res.out, &sdk.RuntimeError{Message: "engine failed", Err: fatal.Err}
		}
		return res.out, res.err
	case <-ctx.Done():
		return value.Null(), ctx.Err()
	}
}

// Close asks the worker to shut down and waits for it to terminate, so no
// engine resource outlives its owning goroutine. Close is idempotent; a
// context cancellation returns early but the worker still shuts down.
func (h *Host) Close(ctx context.Context) error {
	h.closeOnce.Do(func() { close(h.quit) })
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped reports whether the worker has terminated.
func (h *Host) Stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Host) stoppedErr() error {
	return &sdk.RuntimeError{
		Message: fmt.Sprintf("command channel to engine %q is broken: worker has terminated", h.name),
	}
}
