// Package hostfuncs implements the capability registry handed to plugin
// runtimes at load time. A Context stores named host functions; plugins
// call them by name and exchange only value.Value arguments and results.
// Registration is expected to happen before any plugin load; after that the
// registry is read-only and safe for concurrent calls without locking.
package hostfuncs
