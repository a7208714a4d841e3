package hostfuncs

import (
	"context"
	"fmt"
	"log/slog"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// Middleware wraps a Handler to add cross-cutting behavior. Middleware
// executes in FIFO onion order: the first registered wraps outermost.
type Middleware func(next Handler) Handler

type functionNameKey struct{}

func withFunctionName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, functionNameKey{}, name)
}

// FunctionName returns the capability name for the current invocation, or
// "" when the handler was called outside CallFunction dispatch.
func FunctionName(ctx context.Context) string {
	name, _ := ctx.Value(functionNameKey{}).(string)
	return name
}

func functionName(ctx context.Context) string { return FunctionName(ctx) }

// PanicRecovery returns middleware that converts a panicking capability
// into a CallError instead of crashing the host.
func PanicRecovery() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, args []value.Value) (out value.Value, err error) {
			defer func() {
				if r := recover(); r != nil {
					out = value.Null()
					err = &sdk.CallError{
						Function: FunctionName(ctx),
						Message:  fmt.Sprintf("panic: %v", r),
					}
				}
			}()
			return next(ctx, args)
		}
	}
}

// Logging returns middleware that logs capability invocations with slog.
// A nil logger uses slog.Default.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, args []value.Value) (value.Value, error) {
			name := FunctionName(ctx)
			logger.DebugContext(ctx, "invoking host function", "function", name, "args", len(args))
			out, err := next(ctx, args)
			if err != nil {
				logger.ErrorContext(ctx, "host function failed", "function", name, "error", err)
			}
			return out, err
		}
	}
}
