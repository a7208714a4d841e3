package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	assert.Equal(t, KindNull, v.Kind())
	assert.True(t, v.IsNull())
}

func TestValue_Constructors(t *testing.T) {
	t.Run("bool", func(t *testing.T) {
		b, ok := Bool(true).AsBool()
		require.True(t, ok)
		assert.True(t, b)
	})

	t.Run("int", func(t *testing.T) {
		i, ok := Int(-42).AsInt()
		require.True(t, ok)
		assert.Equal(t, int64(-42), i)
	})

	t.Run("float", func(t *testing.T) {
		f, ok := Float(2.5).AsFloat()
		require.True(t, ok)
		assert.Equal(t, 2.5, f)
	})

	t.Run("string", func(t *testing.T) {
		s, ok := String("hello").AsString()
		require.True(t, ok)
		assert.Equal(t, "hello", s)
	})

	t.Run("bytes", func(t *testing.T) {
		b, ok := Bytes([]byte{1, 2, 3}).AsBytes()
		require.True(t, ok)
		assert.Equal(t, []byte{1, 2, 3}, b)
	})

	t.Run("array", func(t *testing.T) {
		arr, ok := Array(Int(1), String("x")).AsArray()
		require.True(t, ok)
		require.Len(t, arr, 2)
		assert.True(t, arr[0].Equal(Int(1)))
		assert.True(t, arr[1].Equal(String("x")))
	})

	t.Run("object", func(t *testing.T) {
		obj, ok := Object(map[string]Value{"k": Bool(false)}).AsObject()
		require.True(t, ok)
		require.Len(t, obj, 1)
		assert.True(t, obj["k"].Equal(Bool(false)))
	})
}

func TestFloat_NonFiniteCollapsesToNull(t *testing.T) {
	assert.True(t, Float(math.NaN()).IsNull())
	assert.True(t, Float(math.Inf(1)).IsNull())
	assert.True(t, Float(math.Inf(-1)).IsNull())
}

func TestValue_AccessorsRejectWrongKind(t *testing.T) {
	_, ok := Int(1).AsBool()
	assert.False(t, ok)
	_, ok = String("x").AsInt()
	assert.False(t, ok)
	_, ok = Null().AsArray()
	assert.False(t, ok)
	_, ok = Bool(true).AsObject()
	assert.False(t, ok)
}

func TestValue_Immutability(t *testing.T) {
	t.Run("bytes input copied", func(t *testing.T) {
		src := []byte{1, 2, 3}
		v := Bytes(src)
		src[0] = 9
		b, _ := v.AsBytes()
		assert.Equal(t, []byte{1, 2, 3}, b)
	})

	t.Run("bytes output copied", func(t *testing.T) {
		v := Bytes([]byte{1, 2, 3})
		b, _ := v.AsBytes()
		b[0] = 9
		again, _ := v.AsBytes()
		assert.Equal(t, []byte{1, 2, 3}, again)
	})

	t.Run("object input copied", func(t *testing.T) {
		fields := map[string]Value{"k": Int(1)}
		v := Object(fields)
		fields["k"] = Int(2)
		got, _ := v.Field("k")
		assert.True(t, got.Equal(Int(1)))
	})
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, Null().Equal(Null()))
	assert.True(t, Int(7).Equal(Int(7)))
	assert.False(t, Int(7).Equal(Int(8)))

	// Kinds must match exactly; no numeric coercion.
	assert.False(t, Int(1).Equal(Float(1.0)))
	assert.False(t, Null().Equal(Bool(false)))

	nested := Object(map[string]Value{
		"items": Array(Int(1), Int(2)),
		"name":  String("n"),
	})
	assert.True(t, nested.Equal(nested.Clone()))
	assert.False(t, nested.Equal(Object(map[string]Value{"name": String("n")})))
}

func TestValue_IndexAndField(t *testing.T) {
	arr := Array(Int(10), Int(20))
	got, ok := arr.Index(1)
	require.True(t, ok)
	assert.True(t, got.Equal(Int(20)))

	_, ok = arr.Index(2)
	assert.False(t, ok)
	_, ok = arr.Index(-1)
	assert.False(t, ok)

	obj := Object(map[string]Value{"a": Int(1)})
	_, ok = obj.Field("missing")
	assert.False(t, ok)
	_, ok = Int(1).Field("a")
	assert.False(t, ok)
}

func TestValue_JSON(t *testing.T) {
	t.Run("bytes encode as base64", func(t *testing.T) {
		data, err := json.Marshal(Bytes([]byte("hi")))
		require.NoError(t, err)
		assert.JSONEq(t, `"aGk="`, string(data))
	})

	t.Run("whole numbers decode as int", func(t *testing.T) {
		var v Value
		require.NoError(t, json.Unmarshal([]byte(`{"n": 3, "f": 3.5}`), &v))
		n, _ := v.Field("n")
		f, _ := v.Field("f")
		assert.Equal(t, KindInt, n.Kind())
		assert.Equal(t, KindFloat, f.Kind())
	})

	t.Run("composite round trip", func(t *testing.T) {
		in := Object(map[string]Value{
			"flag":  Bool(true),
			"count": Int(3),
			"items": Array(String("a"), Null()),
		})
		data, err := json.Marshal(in)
		require.NoError(t, err)
		var out Value
		require.NoError(t, json.Unmarshal(data, &out))
		assert.True(t, in.Equal(out))
	})
}

func TestValue_String(t *testing.T) {
	v := Object(map[string]Value{"b": Int(2), "a": Int(1)})
	// Keys render sorted so output is deterministic.
	assert.Equal(t, `{"a": 1, "b": 2}`, v.String())
	assert.Equal(t, `[1, "x"]`, Array(Int(1), String("x")).String())
}
