package hostfuncs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

func TestExtractArgs(t *testing.T) {
	extractors := []Extractor{IntArg, StringArg}

	t.Run("success", func(t *testing.T) {
		out, err := ExtractArgs("f", extractors,
			[]value.Value{value.Int(1), value.String("x")})
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), "x"}, out)
	})

	t.Run("arity mismatch", func(t *testing.T) {
		_, err := ExtractArgs("f", extractors, []value.Value{value.Int(1)})
		require.Error(t, err)
		assert.ErrorIs(t, err, sdk.ErrInvalidArgumentType)

		var argErr *sdk.InvalidArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, "f", argErr.Function)
		assert.Equal(t, -1, argErr.Index)
	})

	t.Run("type mismatch reports position", func(t *testing.T) {
		_, err := ExtractArgs("f", extractors,
			[]value.Value{value.Int(1), value.Bool(true)})
		require.Error(t, err)
		assert.ErrorIs(t, err, sdk.ErrInvalidArgumentType)

		var argErr *sdk.InvalidArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, 1, argErr.Index)
	})
}

func TestStructArg(t *testing.T) {
	type job struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	out, err := StructArg[job]()(value.Object(map[string]value.Value{
		"name":  value.String("build"),
		"count": value.Int(3),
	}))
	require.NoError(t, err)
	assert.Equal(t, job{Name: "build", Count: 3}, out)

	_, err = StructArg[job]()(value.Int(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, value.ErrIncompatible)
}

func TestNewHandler(t *testing.T) {
	concat := NewHandler(func(ctx context.Context, args []any) (any, error) {
		return args[0].(string) + args[1].(string), nil
	}, StringArg, StringArg)

	out, err := concat(context.Background(),
		[]value.Value{value.String("foo"), value.String("bar")})
	require.NoError(t, err)
	assert.True(t, out.Equal(value.String("foobar")))

	_, err = concat(context.Background(), []value.Value{value.String("foo")})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdk.ErrInvalidArgumentType)
}

func TestSyncWrappers(t *testing.T) {
	t.Run("sync0", func(t *testing.T) {
		h := Sync0(func() (string, error) { return "pong", nil })
		out, err := h(context.Background(), nil)
		require.NoError(t, err)
		assert.True(t, out.Equal(value.String("pong")))
	})

	t.Run("sync2 add", func(t *testing.T) {
		h := Sync2(func(a, b int64) (int64, error) { return a + b, nil })
		out, err := h(context.Background(), []value.Value{value.Int(2), value.Int(3)})
		require.NoError(t, err)
		assert.True(t, out.Equal(value.Int(5)))
	})

	t.Run("sync3 mixed types", func(t *testing.T) {
		h := Sync3(func(s string, n int64, up bool) (string, error) {
			if up {
				return s, nil
			}
			return s[:n], nil
		})
		out, err := h(context.Background(), []value.Value{
			value.String("hello"), value.Int(2), value.Bool(false),
		})
		require.NoError(t, err)
		assert.True(t, out.Equal(value.String("he")))
	})

	t.Run("callable error surfaces verbatim", func(t *testing.T) {
		sentinel := errors.New("backend down")
		h := Sync1(func(s string) (string, error) { return "", sentinel })
		_, err := h(context.Background(), []value.Value{value.String("x")})
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("struct parameter", func(t *testing.T) {
		type req struct {
			Path string `json:"path"`
		}
		h := Sync1(func(r req) (string, error) { return r.Path, nil })
		out, err := h(context.Background(), []value.Value{
			value.Object(map[string]value.Value{"path": value.String("/tmp")}),
		})
		require.NoError(t, err)
		assert.True(t, out.Equal(value.String("/tmp")))
	})
}

func TestAsyncWrappers(t *testing.T) {
	t.Run("async1 observes context", func(t *testing.T) {
		h := Async1(func(ctx context.Context, n int64) (int64, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
				return n + 1, nil
			}
		})

		out, err := h(context.Background(), []value.Value{value.Int(1)})
		require.NoError(t, err)
		assert.True(t, out.Equal(value.Int(2)))

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = h(cancelled, []value.Value{value.Int(1)})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("async2 arity", func(t *testing.T) {
		h := Async2(func(ctx context.Context, a, b string) (string, error) {
			return a + b, nil
		})
		_, err := h(context.Background(), []value.Value{value.String("only")})
		assert.ErrorIs(t, err, sdk.ErrInvalidArgumentType)
	})
}
