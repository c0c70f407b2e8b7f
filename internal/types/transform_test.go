package types

import (
	"reflect"
	"testing"

	"girbind/internal/errors"
	"girbind/internal/stmt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(t *testing.T, r *Registry, name string, native string) *Template {
	t.Helper()
	tpl, err := r.Lookup(name, native, false)
	require.NoError(t, err)
	return tpl
}

func TestPrimitivesRoundTripLosslessly(t *testing.T) {
	sizes := map[string]uintptr{
		"int8": reflect.TypeOf(int8(0)).Size(), "uint8": reflect.TypeOf(uint8(0)).Size(),
		"int16": reflect.TypeOf(int16(0)).Size(), "uint16": reflect.TypeOf(uint16(0)).Size(),
		"int32": reflect.TypeOf(int32(0)).Size(), "uint32": reflect.TypeOf(uint32(0)).Size(),
		"rune": reflect.TypeOf(rune(0)).Size(), "int64": reflect.TypeOf(int64(0)).Size(),
		"uint64": reflect.TypeOf(uint64(0)).Size(), "float32": reflect.TypeOf(float32(0)).Size(),
		"float64": reflect.TypeOf(float64(0)).Size(),
	}

	r := NewRegistry()
	for _, p := range primitives {
		if p.managed == "bool" || p.managed == "" {
			continue
		}
		t.Run(p.native, func(t *testing.T) {
			v := lookup(t, r, p.native, p.native).Bind("value")

			size, ok := sizes[v.ManagedType().Name]
			require.True(t, ok, "managed type %s", v.ManagedType())
			assert.Equal(t, uintptr(p.bits/8), size)

			in, err := v.ToNative()
			require.NoError(t, err)
			require.Len(t, in.Conversion, 1)
			assert.Equal(t, stmt.Set("cValue", stmt.Cast{Type: stmt.NativeType(p.native), X: stmt.Id("value")}), in.Conversion[0])
			assert.Empty(t, in.Cleanup)

			out, err := v.ToManaged()
			require.NoError(t, err)
			require.Len(t, out.Conversion, 1)
			assert.Equal(t, stmt.Set("value", stmt.Cast{Type: stmt.Managed(p.managed), X: stmt.Id("cValue")}), out.Conversion[0])
		})
	}
}

func TestBooleansUseHelpers(t *testing.T) {
	v := lookup(t, NewRegistry(), "gboolean", "gboolean").Bind("visible")

	in, err := v.ToNative()
	require.NoError(t, err)
	assert.Equal(t, []string{BoolToNative}, stmt.Helpers(in.Conversion))
	assert.Equal(t, BoolToNative, in.Helpers[0].Name)

	out, err := v.ToManaged()
	require.NoError(t, err)
	assert.Equal(t, []string{BoolToManaged}, stmt.Helpers(out.Conversion))
}

func TestLengthParametersAreSilent(t *testing.T) {
	r := NewRegistry()
	array, err := r.Lookup("gint", "gint*", true)
	require.NoError(t, err)
	length := lookup(t, r, "gsize", "gsize").Bind("n_data").WithArray(0, array.Bind("data"))

	in, err := length.ToNative()
	require.NoError(t, err)
	assert.True(t, in.Empty())
	out, err := length.ToManaged()
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestPrimitiveArrayWritesItsLength(t *testing.T) {
	r := NewRegistry()
	array, err := r.Lookup("gint", "gint*", true)
	require.NoError(t, err)
	length := lookup(t, r, "gsize", "gsize").Bind("n_data")
	data := array.Bind("data").WithLength(1, length)

	in, err := data.ToNative()
	require.NoError(t, err)
	assert.Contains(t, in.Declarations, stmt.Decl{Name: "cNData", Type: stmt.NativeType("gsize")})
	assert.Contains(t, in.Conversion, stmt.Set("cNData", stmt.Cast{Type: stmt.NativeType("gsize"), X: builtin("len", stmt.Id("data"))}))
	require.Len(t, in.Cleanup, 1)

	owned, err := data.WithTransfer(TransferFull).ToNative()
	require.NoError(t, err)
	assert.Empty(t, owned.Cleanup)

	out, err := data.ToManaged()
	require.NoError(t, err)
	assert.Empty(t, out.Cleanup)

	_, err = array.Bind("data").ToManaged()
	assert.True(t, errors.Is(err, errors.ErrUnsupportedDirection))
}

func TestStringTransfer(t *testing.T) {
	str := lookup(t, NewRegistry(), "utf8", "const gchar*")
	assert.Equal(t, "const gchar*", str.Native)

	borrowed, err := str.Bind("label").ToNative()
	require.NoError(t, err)
	require.Len(t, borrowed.Cleanup, 1)
	assert.Len(t, borrowed.Conversion, 1)

	given, err := str.Bind("label").WithTransfer(TransferFull).ToNative()
	require.NoError(t, err)
	assert.Len(t, given.Conversion, 2)
	assert.Equal(t, stmt.Set("cLabel", stmt.NativeCall("g_strdup", stmt.Id("cLabelTmp"))), given.Conversion[1])

	returned, err := str.Bind("result").ToManaged()
	require.NoError(t, err)
	assert.Empty(t, returned.Cleanup)

	owned, err := str.Bind("result").WithTransfer(TransferFull).ToManaged()
	require.NoError(t, err)
	assert.Len(t, owned.Cleanup, 1)
}

func TestObjectsCheckForFailure(t *testing.T) {
	widget := Object("Demo.Widget", "DemoWidget*", "Widget")

	in, err := widget.Bind("self").ToNative()
	require.NoError(t, err)
	assert.True(t, in.Fails())
	assert.Contains(t, in.Conversion, stmt.Check{Err: ErrVar})

	ref, err := widget.Bind("child").WithTransfer(TransferFull).ToNative()
	require.NoError(t, err)
	assert.Len(t, ref.Conversion, len(in.Conversion)+1)

	out, err := widget.Bind("result").WithTransfer(TransferFull).ToManaged()
	require.NoError(t, err)
	assert.False(t, out.Fails())
	assign := out.Conversion[0].(stmt.Assign)
	assertion := assign.Value.(stmt.Assert)
	call := assertion.X.(stmt.HelperCall)
	assert.Equal(t, ObjectToManaged, call.Name)
	assert.Equal(t, stmt.Lit{Value: true}, call.Args[1])
	assert.Equal(t, stmt.Id("wrapWidget"), call.Args[2])
	assert.Equal(t, "*Widget", assertion.Type.String())
}

func TestContainersOnlyConvertToManaged(t *testing.T) {
	r := NewRegistry()
	str := lookup(t, r, "utf8", "gchar*")
	list, err := NewContainer(lookup(t, r, "GLib.List", "GList*"), "names", TransferFull, str.Bind("elem"))
	require.NoError(t, err)
	assert.Equal(t, "[]string", list.ManagedType().String())
	assert.Equal(t, "names_0", list.Inner[0].Name)
	assert.Equal(t, TransferFull, list.Inner[0].Transfer)

	_, err = list.ToNative()
	assert.True(t, errors.Is(err, errors.ErrUnsupportedDirection))

	out, err := list.ToManaged()
	require.NoError(t, err)
	require.Len(t, out.Cleanup, 1)
	assert.Equal(t, stmt.Do{X: stmt.NativeCall("g_list_free", stmt.Id("cNames"))}, out.Cleanup[0])

	table, err := NewContainer(lookup(t, r, "GLib.HashTable", "GHashTable*"), "attrs", TransferFull,
		str.Bind("k"), str.Bind("v"))
	require.NoError(t, err)
	assert.Equal(t, "map[string]string", table.ManagedType().String())
	assert.Equal(t, TransferNone, table.Inner[1].Transfer)
	out, err = table.ToManaged()
	require.NoError(t, err)
	assert.Len(t, out.Cleanup, 1)

	_, err = NewContainer(lookup(t, r, "GLib.HashTable", "GHashTable*"), "attrs", TransferNone, str.Bind("k"))
	assert.Error(t, err)
}

func TestComposeReversesCleanup(t *testing.T) {
	mk := func(name string) Transform {
		return Transform{
			Declarations: []stmt.Stmt{stmt.Decl{Name: name, Type: stmt.Managed("int")}},
			Conversion:   []stmt.Stmt{stmt.Set(name, stmt.Int(1))},
			Cleanup:      []stmt.Stmt{stmt.Do{X: stmt.Helper("release", stmt.Id(name))}},
		}
	}

	c := Compose(mk("a"), mk("b"), mk("c"))
	assert.Equal(t, []stmt.Stmt{stmt.Set("a", stmt.Int(1)), stmt.Set("b", stmt.Int(1)), stmt.Set("c", stmt.Int(1))}, c.Conversion)
	assert.Equal(t, []stmt.Stmt{
		stmt.Do{X: stmt.Helper("release", stmt.Id("c"))},
		stmt.Do{X: stmt.Helper("release", stmt.Id("b"))},
		stmt.Do{X: stmt.Helper("release", stmt.Id("a"))},
	}, c.Cleanup)
}

func TestLinearizeScalesWithParameters(t *testing.T) {
	str := lookup(t, NewRegistry(), "utf8", "gchar*")
	one, err := str.Bind("p").ToNative()
	require.NoError(t, err)
	per := stmt.Count(Linearize(one))

	for n := 1; n <= 5; n++ {
		var ts []Transform
		for i := 0; i < n; i++ {
			tr, err := str.Bind(string(rune('a' + i))).ToNative()
			require.NoError(t, err)
			ts = append(ts, tr)
		}
		body := Linearize(ts...)
		assert.Equal(t, n*per, stmt.Count(body))

		// Declarations lead, then each conversion is followed by its deferred cleanup
		for i := 0; i < n; i++ {
			_, isDecl := body[i].(stmt.Decl)
			assert.True(t, isDecl)
		}
		var defers []stmt.Defer
		for _, s := range body {
			if d, ok := s.(stmt.Defer); ok {
				defers = append(defers, d)
			}
		}
		assert.Len(t, defers, n)
	}
}

func TestBitfieldValidation(t *testing.T) {
	_, err := Bitfield("Demo.Flags", "DemoFlags", "Flags", map[string]int64{"none": 0, "a": 1, "c": 4})
	require.NoError(t, err)

	_, err = Bitfield("Demo.Flags", "DemoFlags", "Flags", map[string]int64{"a": 1, "both": 3})
	assert.True(t, errors.Is(err, errors.ErrInvalidBitfield))
}

func TestBitfieldConversionsUseFlagSets(t *testing.T) {
	flags, err := Bitfield("Demo.Flags", "DemoFlags", "Flags", map[string]int64{"a": 1, "c": 4})
	require.NoError(t, err)
	v := flags.Bind("flags")
	assert.Equal(t, "[]Flags", v.ManagedType().String())

	in, err := v.ToNative()
	require.NoError(t, err)
	call := in.Conversion[0].(stmt.Assign).Value.(stmt.Cast).X.(stmt.Call)
	assert.Equal(t, stmt.Qual{Path: BridgePath, Name: "JoinFlags"}, call.Func)

	out, err := v.ToManaged()
	require.NoError(t, err)
	loop := out.Conversion[1].(stmt.Range)
	assert.Equal(t, stmt.Qual{Path: BridgePath, Name: "SplitFlags"}, loop.Over.(stmt.Call).Func)
}

func TestEnumToManagedUsesLookupHelper(t *testing.T) {
	mode := Enum("Demo.Mode", "DemoMode", "Mode")
	out, err := mode.Bind("mode").ToManaged()
	require.NoError(t, err)
	require.Len(t, out.Helpers, 1)
	assert.Equal(t, "modeFromNative", out.Helpers[0].Name)
	assert.Equal(t, HelperEnumToManaged, out.Helpers[0].Kind)
}

func TestClosureScopes(t *testing.T) {
	cb := Callback("Demo.Func", "DemoFunc", "Func")
	closure := func(scope Scope) Value {
		v := Closure(stmt.Managed("Func")).Bind("user_data")
		v.Callback = &Link{Index: 0, Name: "func", Scope: scope}
		return v
	}

	call, err := closure(ScopeCall).ToNative()
	require.NoError(t, err)
	assert.Equal(t, []stmt.Stmt{stmt.Do{X: stmt.Helper(ClosureRelease, stmt.Id("cUserData"))}}, call.Cleanup)
	assert.Equal(t, stmt.Set("cUserData", stmt.Helper(ClosureNew, stmt.Id("func_"), stmt.Lit{Value: "call"})), call.Conversion[0])

	notified, err := closure(ScopeNotified).ToNative()
	require.NoError(t, err)
	assert.Empty(t, notified.Cleanup)

	async, err := closure(ScopeAsync).ToManaged()
	require.NoError(t, err)
	assert.Equal(t, []stmt.Stmt{stmt.Do{X: stmt.Helper(ClosureInvoked, stmt.Id("cUserData"))}}, async.Cleanup)
	assert.True(t, async.Fails())

	forever, err := closure(ScopeForever).ToManaged()
	require.NoError(t, err)
	assert.Equal(t, async.Cleanup, forever.Cleanup, "the cell table decides what an invocation releases")

	_, err = cb.Bind("func").ToManaged()
	assert.True(t, errors.Is(err, errors.ErrUnsupportedDirection))
}

func TestVoidHasNoConversion(t *testing.T) {
	void := lookup(t, NewRegistry(), "none", "void").Bind("result")
	assert.True(t, void.IsVoid())
	_, err := void.ToManaged()
	assert.Error(t, err)
}
