package hostfuncs

import (
	"context"
	"fmt"
	"sort"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// Handler is the uniform shape of a registered capability. Handlers may
// block (asynchronous capabilities wait on the context); synchronous
// callers pass context.Background().
type Handler func(ctx context.Context, args []value.Value) (value.Value, error)

// DuplicatePolicy controls what Register does when a name is already taken.
type DuplicatePolicy int

const (
	// Overwrite replaces the existing capability. Last write wins, no error.
	Overwrite DuplicatePolicy = iota
	// RejectDuplicates makes Register fail on an already-registered name.
	RejectDuplicates
)

type capability struct {
	handler Handler
	async   bool
}

// Context is a named set of host capabilities. It is created with New,
// populated via Register/RegisterAsync, then handed by reference to every
// Runtime load. Registration must not race calls: populate the context
// fully before loading plugins.
type Context struct {
	name       string
	policy     DuplicatePolicy
	middleware []Middleware
	funcs      map[string]capability
}

// Context implements the registry contract runtimes consume.
var _ sdk.HostContext = (*Context)(nil)

// Option configures a Context during construction.
type Option func(*builder)

type builder struct {
	ctx  *Context
	errs []error
}

// WithName sets a display name used in diagnostics.
func WithName(name string) Option {
	return func(b *builder) { b.ctx.name = name }
}

// WithDuplicatePolicy sets the duplicate-name policy for Register.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(b *builder) { b.ctx.policy = p }
}

// WithMiddleware appends middleware applied to every capability registered
// on this context, in FIFO onion order (first added wraps outermost).
func WithMiddleware(mw ...Middleware) Option {
	return func(b *builder) { b.ctx.middleware = append(b.ctx.middleware, mw...) }
}

// WithFunction registers a synchronous capability at construction time.
func WithFunction(name string, h Handler) Option {
	return func(b *builder) {
		if err := b.ctx.add(name, h, false); err != nil {
			b.errs = append(b.errs, err)
		}
	}
}

// WithAsyncFunction registers an asynchronous capability at construction time.
func WithAsyncFunction(name string, h Handler) Option {
	return func(b *builder) {
		if err := b.ctx.add(name, h, true); err != nil {
			b.errs = append(b.errs, err)
		}
	}
}

// New creates a Context. The first option error aborts construction.
func New(opts ...Option) (*Context, error) {
	b := &builder{ctx: &Context{funcs: make(map[string]capability)}}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	return b.ctx, nil
}

// Name returns the context's display name.
func (c *Context) Name() string { return c.name }

func (c *Context) add(name string, h Handler, async bool) error {
	if name == "" {
		return fmt.Errorf("capability name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("capability %q: handler cannot be nil", name)
	}
	if _, exists := c.funcs[name]; exists && c.policy == RejectDuplicates {
		return fmt.Errorf("duplicate capability name: %q", name)
	}
	// Middleware wraps at registration so calls stay a plain map lookup.
	for i := len(c.middleware) - 1; i >= 0; i-- {
		h = c.middleware[i](h)
	}
	c.funcs[name] = capability{handler: h, async: async}
	return nil
}

// Register adds a synchronous capability under name. Under the default
// Overwrite policy an existing entry is silently replaced; under
// RejectDuplicates registration fails instead.
func (c *Context) Register(name string, h Handler) error {
	return c.add(name, h, false)
}

// RegisterAsync adds an asynchronous capability under name. The handler
// shape is identical to Register; the kind is recorded so callers can
// introspect which capabilities may suspend.
func (c *Context) RegisterAsync(name string, h Handler) error {
	return c.add(name, h, true)
}

// CallFunction invokes the capability registered under name. Dispatch is
// transparent across sync and async capabilities. Unknown names fail with
// a HostFunctionNotFoundError.
func (c *Context) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	cap, ok := c.funcs[name]
	if !ok {
		return value.Null(), &sdk.HostFunctionNotFoundError{Name: name}
	}
	return cap.handler(withFunctionName(ctx, name), args)
}

// HasFunction reports whether a capability is registered under name.
func (c *Context) HasFunction(name string) bool {
	_, ok := c.funcs[name]
	return ok
}

// IsAsync reports whether the named capability was registered as
// asynchronous. The second result is false when the name is unknown.
func (c *Context) IsAsync(name string) (bool, bool) {
	cap, ok := c.funcs[name]
	return cap.async, ok
}

// FunctionNames returns all registered capability names in sorted order.
func (c *Context) FunctionNames() []string {
	names := make([]string, 0, len(c.funcs))
	for name := range c.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered capabilities.
func (c *Context) Len() int { return len(c.funcs) }

// Clone returns a new Context sharing the underlying callables by
// reference. Policy and middleware carry over; later registrations on
// either context do not affect the other.
func (c *Context) Clone() *Context {
	funcs := make(map[string]capability, len(c.funcs))
	for name, cap := range c.funcs {
		funcs[name] = cap
	}
	mw := make([]Middleware, len(c.middleware))
	copy(mw, c.middleware)
	return &Context{name: c.name, policy: c.policy, middleware: mw, funcs: funcs}
}
