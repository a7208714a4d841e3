package wasm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

// emptyModule is the smallest valid WebAssembly binary: magic and version,
// no sections.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestRuntime_Supports(t *testing.T) {
	rt := New()

	assert.True(t, rt.Supports(sdk.BytesSource(emptyModule)))
	assert.False(t, rt.Supports(sdk.BytesSource([]byte("name: manifest"))))
	assert.False(t, rt.Supports(sdk.BytesSource(nil)))
	assert.True(t, rt.Supports(sdk.FileSource("plugin.wasm")))
	assert.True(t, rt.Supports(sdk.FileSource("PLUGIN.WASM")))
	assert.False(t, rt.Supports(sdk.FileSource("plugin.expr.yaml")))
	assert.False(t, rt.Supports(sdk.TextSource("(module)")))

	t.Run("directory with module", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.wasm"), emptyModule, 0o644))
		assert.True(t, rt.Supports(sdk.FileSource(dir)))
		assert.False(t, rt.Supports(sdk.FileSource(t.TempDir())))
	})
}

func TestRuntime_LoadRejectsBadSources(t *testing.T) {
	ctx := context.Background()
	rt := New()

	t.Run("text source", func(t *testing.T) {
		_, err := rt.Load(ctx, sdk.TextSource("(module)"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, sdk.ErrInvalidArgumentType)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := rt.Load(ctx, sdk.FileSource("/does/not/exist.wasm"), nil)
		assert.ErrorIs(t, err, sdk.ErrFileNotFound)
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := rt.Load(ctx, sdk.FileSource(t.TempDir()), nil)
		assert.ErrorIs(t, err, sdk.ErrFileNotFound)
	})

	t.Run("not a wasm binary", func(t *testing.T) {
		_, err := rt.Load(ctx, sdk.BytesSource([]byte("garbage")), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, sdk.ErrLoadFailed)
		assert.Contains(t, err.Error(), "not a WebAssembly binary")
	})

	t.Run("file with wasm extension but garbage content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fake.wasm")
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
		_, err := rt.Load(ctx, sdk.FileSource(path), nil)
		assert.ErrorIs(t, err, sdk.ErrLoadFailed)
	})
}

func TestRuntime_LoadEmptyModule(t *testing.T) {
	ctx := context.Background()
	rt := New()

	plugin, err := rt.Load(ctx, sdk.BytesSource(emptyModule), nil)
	require.NoError(t, err)
	defer plugin.(*Plugin).Close(ctx)

	// The binary declares no name; the source fallback applies.
	assert.Equal(t, "module", plugin.Name())

	_, err = rt.Call(ctx, plugin, "anything", nil)
	assert.ErrorIs(t, err, sdk.ErrFunctionNotFound)
}

func TestRuntime_LoadFromFile(t *testing.T) {
	ctx := context.Background()
	rt := New()

	t.Run("plain file name fallback", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "imager.wasm")
		require.NoError(t, os.WriteFile(path, emptyModule, 0o644))

		plugin, err := rt.Load(ctx, sdk.FileSource(path), nil)
		require.NoError(t, err)
		defer plugin.(*Plugin).Close(ctx)
		assert.Equal(t, "imager", plugin.Name())
	})

	t.Run("directory prefers index module", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "aaa.wasm"), emptyModule, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.wasm"), emptyModule, 0o644))

		plugin, err := rt.Load(ctx, sdk.FileSource(dir), nil)
		require.NoError(t, err)
		defer plugin.(*Plugin).Close(ctx)
		assert.Equal(t, "index", plugin.Name())
	})

	t.Run("directory without index takes first module", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bbb.wasm"), emptyModule, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "aaa.wasm"), emptyModule, 0o644))

		plugin, err := rt.Load(ctx, sdk.FileSource(dir), nil)
		require.NoError(t, err)
		defer plugin.(*Plugin).Close(ctx)
		assert.Equal(t, "aaa", plugin.Name())
	})
}

func TestRuntime_RejectsForeignHandles(t *testing.T) {
	ctx := context.Background()
	first := New()
	second := New()

	plugin, err := first.Load(ctx, sdk.BytesSource(emptyModule), nil)
	require.NoError(t, err)
	defer plugin.(*Plugin).Close(ctx)

	_, err = second.Call(ctx, plugin, "f", nil)
	assert.ErrorIs(t, err, sdk.ErrInvalidPluginState)

	_, err = first.Call(ctx, foreignPlugin{}, "f", nil)
	assert.ErrorIs(t, err, sdk.ErrInvalidPluginState)
}

type foreignPlugin struct{}

func (foreignPlugin) Name() string { return "foreign" }

func TestRuntime_CallAfterClose(t *testing.T) {
	ctx := context.Background()
	rt := New()

	plugin, err := rt.Load(ctx, sdk.BytesSource(emptyModule), nil)
	require.NoError(t, err)
	require.NoError(t, plugin.(*Plugin).Close(ctx))

	_, err = rt.Call(ctx, plugin, "f", nil)
	assert.ErrorIs(t, err, sdk.ErrRuntimeFailure)
}

func TestPackUnpackPtrLen(t *testing.T) {
	cases := []struct {
		ptr, length uint32
	}{
		{0, 0},
		{1, 1},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{1 << 16, 4096},
	}
	for _, tc := range cases {
		ptr, length := unpackPtrLen(packPtrLen(tc.ptr, tc.length))
		assert.Equal(t, tc.ptr, ptr)
		assert.Equal(t, tc.length, length)
	}
}

func TestCallRequestEncoding(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := []value.Value{value.Int(1), value.String("x"), value.Null()}
		out, err := decodeCallRequest(encodeCallRequest(in))
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.True(t, out[0].Equal(value.Int(1)))
		assert.True(t, out[1].Equal(value.String("x")))
		assert.True(t, out[2].IsNull())
	})

	t.Run("integers keep their kind", func(t *testing.T) {
		big := int64(1) << 60
		out, err := decodeCallRequest(encodeCallRequest(
			[]value.Value{value.Int(big), value.Float(2.5)}))
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, value.KindInt, out[0].Kind())
		assert.True(t, out[0].Equal(value.Int(big)))
		assert.Equal(t, value.KindFloat, out[1].Kind())
	})

	t.Run("nil args encode as empty list", func(t *testing.T) {
		out, err := decodeCallRequest(encodeCallRequest(nil))
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("malformed request", func(t *testing.T) {
		_, err := decodeCallRequest([]byte("not json"))
		require.Error(t, err)
		_, err = decodeCallRequest([]byte(`{"other": 1}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing args")
	})
}

func TestDecodeCallResponse(t *testing.T) {
	t.Run("ok envelope", func(t *testing.T) {
		out, err := decodeCallResponse("f", []byte(`{"ok": {"n": 3}}`))
		require.NoError(t, err)
		n, ok := out.Field("n")
		require.True(t, ok)
		assert.Equal(t, value.KindInt, n.Kind())
		assert.True(t, n.Equal(value.Int(3)))
	})

	t.Run("ok null result", func(t *testing.T) {
		out, err := decodeCallResponse("f", []byte(`{"ok": null}`))
		require.NoError(t, err)
		assert.True(t, out.IsNull())
	})

	t.Run("error envelope", func(t *testing.T) {
		_, err := decodeCallResponse("f", []byte(`{"error": "guest exploded"}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, sdk.ErrCallFailed)
		assert.Contains(t, err.Error(), "guest exploded")
	})

	t.Run("malformed response", func(t *testing.T) {
		_, err := decodeCallResponse("f", []byte("not json"))
		assert.ErrorIs(t, err, sdk.ErrRuntimeFailure)
	})

	t.Run("neither ok nor error", func(t *testing.T) {
		_, err := decodeCallResponse("f", []byte(`{"other": 1}`))
		assert.ErrorIs(t, err, sdk.ErrRuntimeFailure)
	})
}
