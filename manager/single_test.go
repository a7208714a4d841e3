package manager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/polyhost-dev/polyhost-sdk"
	"github.com/polyhost-dev/polyhost-sdk/internal/testutil"
	"github.com/polyhost-dev/polyhost-sdk/value"
)

func newMockRuntime(name string) *testutil.FakeRuntime {
	return &testutil.FakeRuntime{
		RuntimeName: name,
		Functions: map[string]func(args []value.Value) (value.Value, error){
			"greet": func(args []value.Value) (value.Value, error) {
				return value.String("hello"), nil
			},
		},
	}
}

func TestSingleRuntime_LoadCallUnload(t *testing.T) {
	ctx := context.Background()
	rt := newMockRuntime("mock")
	m := NewSingleRuntime(rt)
	source := sdk.TextSource("plugin code")

	id, err := m.LoadPlugin(ctx, source, nil)
	require.NoError(t, err)
	assert.True(t, m.IsPluginLoaded(id))
	assert.Equal(t, 1, m.PluginCount())

	name, ok := m.PluginName(id)
	require.True(t, ok)
	assert.Equal(t, "mock-plugin-1", name)

	out, err := m.CallPlugin(ctx, id, "greet", nil)
	require.NoError(t, err)
	assert.True(t, out.Equal(value.String("hello")))

	require.NoError(t, m.UnloadPlugin(ctx, id))
	assert.False(t, m.IsPluginLoaded(id))
	assert.Equal(t, 0, m.PluginCount())
}

func TestSingleRuntime_RejectsUnsupportedSource(t *testing.T) {
	rt := newMockRuntime("mock")
	rt.SupportsFn = testutil.SupportsExt(".mock")
	m := NewSingleRuntime(rt)

	_, err := m.LoadPlugin(context.Background(), sdk.FileSource("plugin.wasm"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdk.ErrLoadFailed)
	assert.Equal(t, int64(0), rt.Loads.Load())

	id, err := m.LoadPlugin(context.Background(), sdk.FileSource("plugin.mock"), nil)
	require.NoError(t, err)
	assert.True(t, m.IsPluginLoaded(id))
}

func TestSingleRuntime_IDsNeverReassigned(t *testing.T) {
	ctx := context.Background()
	m := NewSingleRuntime(newMockRuntime("mock"))
	source := sdk.TextSource("same source")

	// Identical sources still get distinct ids.
	first, err := m.LoadPlugin(ctx, source, nil)
	require.NoError(t, err)
	second, err := m.LoadPlugin(ctx, source, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Greater(t, second, first)

	// Unloading does not recycle the id for the next load.
	require.NoError(t, m.UnloadPlugin(ctx, first))
	third, err := m.LoadPlugin(ctx, source, nil)
	require.NoError(t, err)
	assert.Greater(t, third, second)
}

func TestSingleRuntime_UnknownID(t *testing.T) {
	ctx := context.Background()
	m := NewSingleRuntime(newMockRuntime("mock"))

	_, err := m.CallPlugin(ctx, sdk.PluginID(99), "greet", nil)
	assert.ErrorIs(t, err, sdk.ErrInvalidPluginState)

	err = m.UnloadPlugin(ctx, sdk.PluginID(99))
	assert.ErrorIs(t, err, sdk.ErrInvalidPluginState)

	_, ok := m.PluginName(sdk.PluginID(99))
	assert.False(t, ok)
	assert.False(t, m.IsPluginLoaded(sdk.PluginID(99)))
}

func TestSingleRuntime_CallAfterUnload(t *testing.T) {
	ctx := context.Background()
	m := NewSingleRuntime(newMockRuntime("mock"))

	id, err := m.LoadPlugin(ctx, sdk.TextSource("code"), nil)
	require.NoError(t, err)
	require.NoError(t, m.UnloadPlugin(ctx, id))

	_, err = m.CallPlugin(ctx, id, "greet", nil)
	assert.ErrorIs(t, err, sdk.ErrInvalidPluginState)

	// Double unload is also invalid state.
	assert.ErrorIs(t, m.UnloadPlugin(ctx, id), sdk.ErrInvalidPluginState)
}

func TestSingleRuntime_UnloadClosesPlugin(t *testing.T) {
	ctx := context.Background()
	rt := newMockRuntime("mock")
	m := NewSingleRuntime(rt)

	id, err := m.LoadPlugin(ctx, sdk.TextSource("code"), nil)
	require.NoError(t, err)

	m.mu.RLock()
	plugin := m.plugins[id].(*testutil.FakePlugin)
	m.mu.RUnlock()

	require.NoError(t, m.UnloadPlugin(ctx, id))
	assert.True(t, plugin.Closed.Load())
}

func TestSingleRuntime_LoadErrorPropagates(t *testing.T) {
	rt := newMockRuntime("mock")
	rt.LoadErr = &sdk.LoadError{Runtime: "mock", Reason: "corrupt source"}
	m := NewSingleRuntime(rt)

	_, err := m.LoadPlugin(context.Background(), sdk.TextSource("bad"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdk.ErrLoadFailed)
	assert.Equal(t, 0, m.PluginCount())
}

func TestSingleRuntime_PluginIDs(t *testing.T) {
	ctx := context.Background()
	m := NewSingleRuntime(newMockRuntime("mock"))

	first, _ := m.LoadPlugin(ctx, sdk.TextSource("a"), nil)
	second, _ := m.LoadPlugin(ctx, sdk.TextSource("b"), nil)

	ids := m.PluginIDs()
	assert.ElementsMatch(t, []sdk.PluginID{first, second}, ids)
}
