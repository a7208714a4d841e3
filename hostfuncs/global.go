package hostfuncs

import "sync"

// Decentralized capability registration. Independent packages declare host
// capabilities from their init functions with Provide/ProvideAsync; a
// Context built with WithGlobals copies the collected set into itself.
// The collection is memoized once per process on first use, so all
// declarations must happen during package initialization — a Provide after
// the first WithGlobals construction is ignored. Nothing is pre-seeded
// unless WithGlobals is given.

type globalCapability struct {
	name    string
	handler Handler
	async   bool
}

var (
	globalMu        sync.Mutex
	globalProviders []globalCapability

	collectOnce sync.Once
	collected   []globalCapability
)

// Provide declares a synchronous capability for contexts built with
// WithGlobals. Call it from an init function.
func Provide(name string, h Handler) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProviders = append(globalProviders, globalCapability{name: name, handler: h})
}

// ProvideAsync declares an asynchronous capability for contexts built with
// WithGlobals. Call it from an init function.
func ProvideAsync(name string, h Handler) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProviders = append(globalProviders, globalCapability{name: name, handler: h, async: true})
}

func collectGlobals() []globalCapability {
	collectOnce.Do(func() {
		globalMu.Lock()
		defer globalMu.Unlock()
		collected = make([]globalCapability, len(globalProviders))
		copy(collected, globalProviders)
	})
	return collected
}

// WithGlobals seeds the Context with every capability declared through
// Provide/ProvideAsync. Declarations are applied in declaration order under
// the context's duplicate policy. An empty declaration set is fine.
func WithGlobals() Option {
	return func(b *builder) {
		for _, g := range collectGlobals() {
			if err := b.ctx.add(g.name, g.handler, g.async); err != nil {
				b.errs = append(b.errs, err)
			}
		}
	}
}
