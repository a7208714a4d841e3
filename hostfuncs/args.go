package hostfuncs

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// Extractor converts one positional argument from its boundary Value into
// a native value. Extraction fails with an error matching
// sdk.ErrInvalidArgumentType on shape mismatch.
type Extractor func(v value.Value) (any, error)

// Typed extractors for the boundary kinds. StructArg covers arbitrary
// record types through the JSON bridge.
var (
	BoolArg   Extractor = extractorFor[bool]()
	IntArg    Extractor = extractorFor[int64]()
	FloatArg  Extractor = extractorFor[float64]()
	StringArg Extractor = extractorFor[string]()
	BytesArg  Extractor = extractorFor[[]byte]()
	ArrayArg  Extractor = extractorFor[[]value.Value]()
	ObjectArg Extractor = extractorFor[map[string]value.Value]()
	AnyArg    Extractor = extractorFor[any]()
	ValueArg  Extractor = extractorFor[value.Value]()
)

// StructArg returns an extractor decoding an Object into T via the JSON
// bridge, honoring json tags.
func StructArg[T any]() Extractor { return extractorFor[T]() }

func extractorFor[T any]() Extractor {
	return func(v value.Value) (any, error) {
		out, err := value.Decode[T](v)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// ExtractArgs applies an ordered extractor list to an argument sequence.
// The sequence length must exactly equal the extractor count; conversion
// short-circuits on the first failure. Both failure modes surface as
// errors matching sdk.ErrInvalidArgumentType.
func ExtractArgs(function string, extractors []Extractor, args []value.Value) ([]any, error) {
	if len(args) != len(extractors) {
		return nil, &sdk.InvalidArgumentError{
			Function: function,
			Index:    -1,
			Reason:   fmt.Sprintf("expected %d arguments, got %d", len(extractors), len(args)),
		}
	}
	out := make([]any, len(args))
	for i, extract := range extractors {
		native, err := extract(args[i])
		if err != nil {
			return nil, argError(function, i, err)
		}
		out[i] = native
	}
	return out, nil
}

// NewHandler builds a Handler from an ordered extractor list and a native
// callable taking the extracted arguments in declared order. This is the
// single registration path for arbitrary arity; the typed SyncN/AsyncN
// wrappers are sugar over the same semantics. The callable's result is
// encoded with value.FromInterface, so any representable native return
// becomes a Value and unrepresentable results become Null.
func NewHandler(fn func(ctx context.Context, args []any) (any, error), extractors ...Extractor) Handler {
	return func(ctx context.Context, args []value.Value) (value.Value, error) {
		native, err := ExtractArgs(functionName(ctx), extractors, args)
		if err != nil {
			return value.Null(), err
		}
		out, err := fn(ctx, native)
		if err != nil {
			return value.Null(), err
		}
		return value.FromInterface(out), nil
	}
}

func argError(function string, index int, err error) error {
	if errors.Is(err, sdk.ErrInvalidArgumentType) {
		return err
	}
	return &sdk.InvalidArgumentError{Function: function, Index: index, Err: err}
}

func decodeArg[T any](ctx context.Context, index int, v value.Value) (T, error) {
	out, err := value.Decode[T](v)
	if err != nil {
		return out, &sdk.InvalidArgumentError{Function: functionName(ctx), Index: index, Err: err}
	}
	return out, nil
}

func checkArity(ctx context.Context, want int, args []value.Value) error {
	if len(args) != want {
		return &sdk.InvalidArgumentError{
			Function: functionName(ctx),
			Index:    -1,
			Reason:   fmt.Sprintf("expected %d arguments, got %d", want, len(args)),
		}
	}
	return nil
}
