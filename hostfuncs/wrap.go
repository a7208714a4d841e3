package hostfuncs

import (
	"context"

	"github.com/polyhost-dev/polyhost-sdk/value"
)

// SyncN and AsyncN wrap plain native callables into Handlers with
// compile-time typed parameters. Argument types decode with value.Decode,
// so parameters may be any boundary primitive or a json-tagged struct.
// Errors returned by the callable surface verbatim to the caller of
// CallFunction.

// Sync0 wraps a nullary callable.
func Sync0[R any](fn func() (R, error)) Handler {
	return func(ctx context.Context, args []value.Value) (value.Value, error) {
		if err := checkArity(ctx, 0, args); err != nil {
			return value.Null(), err
		}
		out, err := fn()
		if err != nil {
			return value.Null(), err
		}
		return value.FromInterface(out), nil
	}
}

// Sync1 wraps a unary callable.
func Sync1[A, R any](fn func(A) (R, error)) Handler {
	return func(ctx context.Context, args []value.Value) (value.Value, error) {
		if err := checkArity(ctx, 1, args); err != nil {
			return value.Null(), err
		}
		a, err := decodeArg[A](ctx, 0, args[0])
		if err != nil {
			return value.Null(), err
		}
		out, err := fn(a)
		if err != nil {
			return value.Null(), err
		}
		return value.FromInterface(out), nil
	}
}

// Sync2 wraps a binary callable.
func Sync2[A, B, R any](fn func(A, B) (R, error)) Handler {
	return func(ctx context.Context, args []value.Value) (value.Value, error) {
		if err := checkArity(ctx, 2, args); err != nil {
			return value.Null(), err
		}
		a, err := decodeArg[A](ctx, 0, args[0])
		if err != nil {
			return value.Null(), err
		}
		b, err := decodeArg[B](ctx, 1, args[1])
		if err != nil {
			return value.Null(), err
		}
		out, err := fn(a, b)
		if err != nil {
			return value.Null(), err
		}
		return value.FromInterface(out), nil
	}
}

// Sync3 wraps a ternary callable.
func Sync3[A, B, C, R any](fn func(A, B, C) (R, error)) Handler {
	return func(ctx context.Context, args []value.Value) (value.Value, error) {
		if err := checkArity(ctx, 3, args); err != nil {
			return value.Null(), err
		}
		a, err := decodeArg[A](ctx, 0, args[0])
		if err != nil {
			return value.Null(), err
		}
		b, err := decodeArg[B](ctx, 1, args[1])
		if err != nil {
			return value.Null(), err
		}
		c, err := decodeArg[C](ctx, 2, args[2])
		if err != nil {
			return value.Null(), err
		}
		out, err := fn(a, b, c)
		if err != nil {
			return value.Null(), err
		}
		return value.FromInterface(out), nil
	}
}

// Async0 wraps a nullary context-aware callable.
func Async0[R any](fn func(context.Context) (R, error)) Handler {
	return func(ctx context.Context, args []value.Value) (value.Value, error) {
		if err := checkArity(ctx, 0, args); err != nil {
			return value.Null(), err
		}
		out, err := fn(ctx)
		if err != nil {
			return value.Null(), err
		}
		return value.FromInterface(out), nil
	}
}

// Async1 wraps a unary context-aware callable.
func Async1[A, R any](fn func(context.Context, A) (R, error)) Handler {
	return func(ctx context.Context, args []value.Value) (value.Value, error) {
		if err := checkArity(ctx, 1, args); err != nil {
			return value.Null(), err
		}
		a, err := decodeArg[A](ctx, 0, args[0])
		if err != nil {
			return value.Null(), err
		}
		out, err := fn(ctx, a)
		if err != nil {
			return value.Null(), err
		}
		return value.FromInterface(out), nil
	}
}

// Async2 wraps a binary context-aware callable.
func Async2[A, B, R any](fn func(context.Context, A, B) (R, error)) Handler {
	return func(ctx context.Context, args []value.Value) (value.Value, error) {
		if err := checkArity(ctx, 2, args); err != nil {
			return value.Null(), err
		}
		a, err := decodeArg[A](ctx, 0, args[0])
		if err != nil {
			return value.Null(), err
		}
		b, err := decodeArg[B](ctx, 1, args[1])
		if err != nil {
			return value.Null(), err
		}
		out, err := fn(ctx, a, b)
		if err != nil {
			return value.Null(), err
		}
		return value.FromInterface(out), nil
	}
}
