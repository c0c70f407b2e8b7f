package types

import (
	"girbind/internal/errors"
	"girbind/internal/stmt"
)

var (
	unsafePointer = stmt.Qualified("unsafe", "Pointer")
	gpointer      = stmt.NativeType("gpointer")
	gsize         = stmt.NativeType("gsize")
	sizeT         = stmt.NativeType("size_t")
	uintptrType   = stmt.Managed("uintptr")
	intType       = stmt.Managed("int")
	anyType       = stmt.Managed("any")
)

// BridgePath is the import path of the runtime package generated code links against.
const BridgePath = "girbind/bridge"

// TrampolineSymbol is the exported routine native code calls for callback type managed.
func TrampolineSymbol(managed string) string {
	return "girbind" + managed + "Trampoline"
}

// WrapFunc is the generated constructor wrapping a native instance of class managed.
func WrapFunc(managed string) string {
	return "wrap" + managed
}

func builtin(name string, args ...stmt.Expr) stmt.Call {
	return stmt.Call{Func: stmt.Id(name), Args: args}
}

func toUnsafe(x stmt.Expr) stmt.Expr {
	return stmt.Cast{Type: unsafePointer, X: x}
}

func gfree(x stmt.Expr) stmt.Stmt {
	return stmt.Do{X: stmt.NativeCall("g_free", stmt.Cast{Type: gpointer, X: toUnsafe(x)})}
}

// fromPointer reads a value of native type t stored in a gpointer slot.
func fromPointer(t stmt.TypeRef, x stmt.Expr) stmt.Expr {
	switch {
	case t.Pointer > 0:
		return stmt.Cast{Type: t, X: x}
	case t.Name == "gpointer" || t.Name == "gconstpointer":
		return x
	default:
		return stmt.Cast{Type: t, X: stmt.Cast{Type: uintptrType, X: x}}
	}
}

func (v Value) decl() stmt.Stmt {
	return stmt.Decl{Name: v.ManagedVar(), Type: v.ManagedType()}
}

func (v Value) nativeDecl() stmt.Stmt {
	return stmt.Decl{Name: v.NativeVar(), Type: v.NativeType()}
}

func (v Value) m() stmt.Ident { return stmt.Id(v.ManagedVar()) }
func (v Value) c() stmt.Ident { return stmt.Id(v.NativeVar()) }

func (v Value) primitiveToNative() Transform {
	if v.IsLength() {
		return Transform{}
	}
	if v.T.Name == "gboolean" {
		return Transform{
			Declarations: []stmt.Stmt{v.nativeDecl()},
			Conversion:   []stmt.Stmt{stmt.Set(v.NativeVar(), stmt.Helper(BoolToNative, v.m()))},
			Helpers:      []Helper{StandardHelper(BoolToNative)},
		}
	}
	return Transform{
		Declarations: []stmt.Stmt{v.nativeDecl()},
		Conversion:   []stmt.Stmt{stmt.Set(v.NativeVar(), stmt.Cast{Type: v.NativeType(), X: v.m()})},
	}
}

func (v Value) primitiveToManaged() Transform {
	if v.IsLength() {
		return Transform{}
	}
	if v.T.Name == "gboolean" {
		return Transform{
			Declarations: []stmt.Stmt{v.decl()},
			Conversion:   []stmt.Stmt{stmt.Set(v.ManagedVar(), stmt.Helper(BoolToManaged, v.c()))},
			Helpers:      []Helper{StandardHelper(BoolToManaged)},
		}
	}
	return Transform{
		Declarations: []stmt.Stmt{v.decl()},
		Conversion:   []stmt.Stmt{stmt.Set(v.ManagedVar(), stmt.Cast{Type: v.ManagedType(), X: v.c()})},
	}
}

// The managed slice is copied into a fresh native buffer with one extra zero
// element, so both measured and zero-terminated callees see a valid array.
// Native writes never reach the managed slice.
func (v Value) primitiveArrayToNative() Transform {
	elemSize := stmt.Native("sizeof_" + v.T.Elem.Native)
	n := builtin("len", v.m())
	t := Transform{Declarations: []stmt.Stmt{v.nativeDecl()}}

	t.Conversion = []stmt.Stmt{
		stmt.Set(v.NativeVar(), stmt.Cast{Type: v.NativeType(), X: stmt.NativeCall("g_malloc0_n",
			stmt.Cast{Type: gsize, X: stmt.Binary{Op: "+", X: n, Y: stmt.Int(1)}},
			stmt.Cast{Type: gsize, X: elemSize},
		)}),
		stmt.If{Cond: stmt.Binary{Op: ">", X: n, Y: stmt.Int(0)}, Then: []stmt.Stmt{
			stmt.Do{X: stmt.NativeCall("memcpy",
				toUnsafe(v.c()),
				toUnsafe(stmt.AddrOf{X: stmt.Index{X: v.m(), Index: stmt.Int(0)}}),
				stmt.Binary{Op: "*", X: stmt.Cast{Type: sizeT, X: n}, Y: stmt.Cast{Type: sizeT, X: elemSize}},
			)},
		}},
	}
	if v.Length != nil {
		lengthVar := NativeVar(v.Length.Name)
		lengthType := stmt.NativeType(v.Length.Native)
		t.Declarations = append(t.Declarations, stmt.Decl{Name: lengthVar, Type: lengthType})
		t.Conversion = append(t.Conversion, stmt.Set(lengthVar, stmt.Cast{Type: lengthType, X: n}))
	}
	if v.Transfer == TransferNone {
		t.Cleanup = []stmt.Stmt{gfree(v.c())}
	}
	return t
}

func (v Value) primitiveArrayToManaged() (Transform, error) {
	if v.Length == nil {
		return Transform{}, errors.Wrapf(errors.ErrUnsupportedDirection,
			"array %q to managed has no length parameter", v.Name)
	}
	elem := v.T.Elem.Managed
	t := Transform{
		Declarations: []stmt.Stmt{v.decl()},
		Conversion: []stmt.Stmt{
			stmt.Set(v.ManagedVar(), stmt.Make{Type: v.ManagedType(), Args: []stmt.Expr{
				stmt.Cast{Type: intType, X: stmt.Id(NativeVar(v.Length.Name))},
			}}),
			stmt.If{Cond: stmt.Binary{Op: ">", X: builtin("len", v.m()), Y: stmt.Int(0)}, Then: []stmt.Stmt{
				stmt.Do{X: builtin("copy", v.m(), stmt.Call{
					Func: stmt.Qual{Path: "unsafe", Name: "Slice"},
					Args: []stmt.Expr{stmt.Cast{Type: stmt.Ptr(elem), X: toUnsafe(v.c())}, builtin("len", v.m())},
				})},
			}},
		},
	}
	if v.Transfer != TransferNone {
		t.Cleanup = []stmt.Stmt{gfree(v.c())}
	}
	return t, nil
}

func (v Value) stringToNative() Transform {
	if v.Transfer == TransferNone {
		return Transform{
			Declarations: []stmt.Stmt{v.nativeDecl()},
			Conversion: []stmt.Stmt{stmt.Set(v.NativeVar(),
				stmt.Cast{Type: v.NativeType(), X: stmt.Helper(StringToNative, v.m())})},
			Cleanup: []stmt.Stmt{stmt.Do{X: stmt.NativeCall("free", toUnsafe(v.c()))}},
			Helpers:      []Helper{StandardHelper(StringToNative)},
		}
	}
	// The callee takes ownership, hand it a copy from the native allocator
	tmp := v.NativeVar() + "Tmp"
	return Transform{
		Declarations: []stmt.Stmt{v.nativeDecl(), stmt.Decl{Name: tmp, Type: v.NativeType()}},
		Conversion: []stmt.Stmt{
			stmt.Set(tmp, stmt.Cast{Type: v.NativeType(), X: stmt.Helper(StringToNative, v.m())}),
			stmt.Set(v.NativeVar(), stmt.NativeCall("g_strdup", stmt.Id(tmp))),
		},
		Cleanup: []stmt.Stmt{stmt.Do{X: stmt.NativeCall("free", toUnsafe(stmt.Id(tmp)))}},
		Helpers: []Helper{StandardHelper(StringToNative)},
	}
}

func (v Value) stringToManaged() Transform {
	t := Transform{
		Declarations: []stmt.Stmt{v.decl()},
		Conversion:   []stmt.Stmt{stmt.Set(v.ManagedVar(), stmt.Helper(StringToManaged, toUnsafe(v.c())))},
		Helpers:      []Helper{StandardHelper(StringToManaged)},
	}
	if v.Transfer == TransferFull {
		t.Cleanup = []stmt.Stmt{gfree(v.c())}
	}
	return t
}

func (v Value) enumToNative() Transform {
	return Transform{
		Declarations: []stmt.Stmt{v.nativeDecl()},
		Conversion:   []stmt.Stmt{stmt.Set(v.NativeVar(), stmt.Cast{Type: v.NativeType(), X: v.m()})},
	}
}

func (v Value) enumToManaged() Transform {
	h := EnumHelper(v.T.Managed.Name)
	return Transform{
		Declarations: []stmt.Stmt{v.decl()},
		Conversion: []stmt.Stmt{stmt.Set(v.ManagedVar(), stmt.Helper(h.Name,
			stmt.Cast{Type: stmt.Managed("int64"), X: v.c()}))},
		Helpers: []Helper{h},
	}
}

func (v Value) bitfieldToNative() Transform {
	return Transform{
		Declarations: []stmt.Stmt{v.nativeDecl()},
		Conversion: []stmt.Stmt{
			stmt.Set(v.NativeVar(), stmt.Cast{Type: v.NativeType(), X: stmt.Call{
				Func: stmt.Qual{Path: BridgePath, Name: "JoinFlags"},
				Args: []stmt.Expr{v.m()},
			}}),
		},
	}
}

// Bits are decoded lowest first. Zero-valued members never appear in the set.
func (v Value) bitfieldToManaged() Transform {
	bit := v.NativeVar() + "Bit"
	elem := *v.T.Managed.Elem
	return Transform{
		Declarations: []stmt.Stmt{v.decl()},
		Conversion: []stmt.Stmt{
			stmt.Set(v.ManagedVar(), stmt.Make{Type: v.ManagedType(), Args: []stmt.Expr{stmt.Int(0)}}),
			stmt.Range{
				Key:   "_",
				Value: bit,
				Over: stmt.Call{
					Func: stmt.Qual{Path: BridgePath, Name: "SplitFlags"},
					Args: []stmt.Expr{stmt.Cast{Type: stmt.Managed("uint64"), X: v.c()}},
				},
				Body: []stmt.Stmt{
					stmt.Set(v.ManagedVar(), builtin("append", v.m(), stmt.Cast{Type: elem, X: stmt.Id(bit)})),
				},
			},
		},
	}
}

func (v Value) objectToNative() Transform {
	raw := v.NativeVar() + "Raw"
	t := Transform{
		Declarations: []stmt.Stmt{v.nativeDecl(), stmt.Decl{Name: raw, Type: unsafePointer}},
		Conversion: []stmt.Stmt{
			stmt.SetErr(raw, ErrVar, stmt.Helper(ObjectToNative, v.m())),
			stmt.Check{Err: ErrVar},
			stmt.Set(v.NativeVar(), stmt.Cast{Type: v.NativeType(), X: stmt.Id(raw)}),
		},
		Helpers: []Helper{StandardHelper(ObjectToNative)},
	}
	if v.Transfer == TransferFull {
		t.Conversion = append(t.Conversion, stmt.If{
			Cond: stmt.Binary{Op: "!=", X: stmt.Id(raw), Y: stmt.Nil{}},
			Then: []stmt.Stmt{stmt.Do{X: stmt.NativeCall("g_object_ref", stmt.Cast{Type: gpointer, X: stmt.Id(raw)})}},
		})
	}
	return t
}

func (v Value) objectToManaged() Transform {
	proxy := v.T.Managed.Deref().Name
	return Transform{
		Declarations: []stmt.Stmt{v.decl()},
		Conversion: []stmt.Stmt{
			stmt.Assign{
				Targets: []stmt.Expr{v.m(), stmt.Id("_")},
				Op:      "=",
				Value: stmt.Assert{
					X: stmt.Helper(ObjectToManaged,
						toUnsafe(v.c()), stmt.Lit{Value: v.Transfer == TransferFull}, stmt.Id(WrapFunc(proxy))),
					Type: v.ManagedType(),
				},
			},
		},
		Helpers: []Helper{StandardHelper(ObjectToManaged)},
	}
}

func (v Value) recordToNative() Transform {
	t := Transform{
		Declarations: []stmt.Stmt{v.nativeDecl()},
		Conversion: []stmt.Stmt{
			stmt.Set(v.NativeVar(), stmt.Cast{Type: v.NativeType(), X: stmt.Helper(RecordToNative, v.m())}),
		},
		Helpers: []Helper{StandardHelper(RecordToNative)},
	}
	if v.Transfer == TransferFull && v.T.CopyFunc != "" {
		t.Conversion = append(t.Conversion, stmt.If{
			Cond: stmt.Binary{Op: "!=", X: v.c(), Y: stmt.Nil{}},
			Then: []stmt.Stmt{stmt.Set(v.NativeVar(), stmt.Cast{Type: v.NativeType(),
				X: stmt.NativeCall(v.T.CopyFunc, v.c())})},
		})
	}
	return t
}

// Borrowed records are copied when possible so the proxy owns its memory.
func (v Value) recordToManaged() Transform {
	h := RecordHelper(v.T)
	owned := v.Transfer == TransferFull
	var src stmt.Expr = v.c()
	if !owned && v.T.CopyFunc != "" && v.T.FreeFunc != "" {
		src = stmt.NativeCall(v.T.CopyFunc, v.c())
		owned = true
	}
	return Transform{
		Declarations: []stmt.Stmt{v.decl()},
		Conversion: []stmt.Stmt{
			stmt.If{
				Cond: stmt.Binary{Op: "!=", X: v.c(), Y: stmt.Nil{}},
				Then: []stmt.Stmt{stmt.Set(v.ManagedVar(), stmt.Helper(h.Name, toUnsafe(src), stmt.Lit{Value: owned}))},
			},
		},
		Helpers: []Helper{h},
	}
}

func (v Value) objectArrayToManaged() (Transform, error) {
	elemTransfer := TransferNone
	if v.Transfer == TransferFull {
		elemTransfer = TransferFull
	}
	elem := v.T.Elem.Bind(v.Name + "_elem").WithTransfer(elemTransfer)
	et, err := elem.ToManaged()
	if err != nil {
		return Transform{}, errors.Wrapf(err, "element of %q", v.Name)
	}

	count := v.NativeVar() + "Count"
	items := v.NativeVar() + "Items"
	elemNative := elem.NativeType()

	var n stmt.Expr
	switch {
	case v.Length != nil:
		n = stmt.Cast{Type: intType, X: stmt.Id(NativeVar(v.Length.Name))}
	case elemNative.Pointer > 0:
		n = stmt.Helper(ArrayLength, toUnsafe(v.c()))
		et.Helpers = mergeHelpers(et.Helpers, []Helper{StandardHelper(ArrayLength)})
	default:
		return Transform{}, errors.Wrapf(errors.ErrUnsupportedDirection,
			"array %q of %s has neither length nor terminator", v.Name, elem.T.Name)
	}

	body := []stmt.Stmt{}
	body = append(body, et.Conversion...)
	body = append(body, stmt.Set(v.ManagedVar(), builtin("append", v.m(), elem.m())))
	body = append(body, et.Cleanup...)

	t := Transform{
		Declarations: append([]stmt.Stmt{
			v.decl(),
			stmt.Decl{Name: count, Type: intType},
			stmt.Decl{Name: items, Type: stmt.SliceOf(elemNative)},
		}, et.Declarations...),
		Conversion: []stmt.Stmt{
			stmt.Set(count, n),
			stmt.Set(v.ManagedVar(), stmt.Make{Type: v.ManagedType(), Args: []stmt.Expr{stmt.Int(0), stmt.Id(count)}}),
			stmt.If{
				Cond: stmt.Binary{Op: "&&",
					X: stmt.Binary{Op: "!=", X: v.c(), Y: stmt.Nil{}},
					Y: stmt.Binary{Op: ">", X: stmt.Id(count), Y: stmt.Int(0)}},
				Then: []stmt.Stmt{stmt.Set(items, stmt.Call{
					Func: stmt.Qual{Path: "unsafe", Name: "Slice"},
					Args: []stmt.Expr{stmt.Cast{Type: stmt.Ptr(elemNative), X: toUnsafe(v.c())}, stmt.Id(count)},
				})},
			},
			stmt.Range{Key: "_", Value: elem.NativeVar(), Over: stmt.Id(items), Body: body},
		},
		Helpers: et.Helpers,
	}
	if v.Transfer != TransferNone {
		t.Cleanup = []stmt.Stmt{gfree(v.c())}
	}
	return t, nil
}

func (v Value) callbackToNative() Transform {
	symbol := TrampolineSymbol(v.T.Managed.Name)
	return Transform{
		Declarations: []stmt.Stmt{v.nativeDecl()},
		Conversion: []stmt.Stmt{
			stmt.If{
				Cond: stmt.Binary{Op: "!=", X: v.m(), Y: stmt.Nil{}},
				Then: []stmt.Stmt{stmt.Set(v.NativeVar(), stmt.Cast{Type: v.NativeType(), X: toUnsafe(stmt.Native(symbol))})},
			},
		},
	}
}

// The cell holds the sibling callback, or the value itself for self closures.
// Call-scoped cells are released once the native call returns; other scopes
// are released by their invocation or destroy notification.
func (v Value) closureToNative() Transform {
	var carried stmt.Expr = v.m()
	scope := v.Scope
	if v.Callback != nil {
		carried = stmt.Id(Identifier(v.Callback.Name))
		scope = v.Callback.Scope
	}
	if scope == ScopeNone {
		scope = ScopeCall
	}
	t := Transform{
		Declarations: []stmt.Stmt{v.nativeDecl()},
		Conversion: []stmt.Stmt{
			stmt.Set(v.NativeVar(), stmt.Helper(ClosureNew, carried, stmt.Lit{Value: string(scope)})),
		},
		Helpers: []Helper{StandardHelper(ClosureNew)},
	}
	if scope == ScopeCall {
		t.Cleanup = []stmt.Stmt{stmt.Do{X: stmt.Helper(ClosureRelease, v.c())}}
		t.Helpers = append(t.Helpers, StandardHelper(ClosureRelease))
	}
	return t
}

// Every invocation is reported to the cell table, which releases call-once
// cells. Trampolines do not know the scope their cell was created with.
func (v Value) closureToManaged() Transform {
	return Transform{
		Declarations: []stmt.Stmt{stmt.Decl{Name: v.ManagedVar(), Type: anyType}},
		Conversion: []stmt.Stmt{
			stmt.SetErr(v.ManagedVar(), ErrVar, stmt.Helper(ClosureValue, v.c())),
			stmt.Check{Err: ErrVar},
		},
		Cleanup: []stmt.Stmt{stmt.Do{X: stmt.Helper(ClosureInvoked, v.c())}},
		Helpers: []Helper{StandardHelper(ClosureValue), StandardHelper(ClosureInvoked)},
	}
}

func (v Value) destroyToNative() Transform {
	return Transform{
		Declarations: []stmt.Stmt{v.nativeDecl()},
		Conversion: []stmt.Stmt{
			stmt.Set(v.NativeVar(), stmt.Cast{Type: v.NativeType(), X: toUnsafe(stmt.Native(DestroyNotify))}),
		},
		Helpers: []Helper{StandardHelper(DestroyNotify)},
	}
}

func (v Value) listToManaged() (Transform, error) {
	inner := v.Inner[0]
	it, err := inner.ToManaged()
	if err != nil {
		return Transform{}, errors.Wrapf(err, "element of %q", v.Name)
	}

	cursor := v.NativeVar() + "It"
	free := "g_list_free"
	if v.Kind() == KindSList {
		free = "g_slist_free"
	}

	body := []stmt.Stmt{
		stmt.Set(inner.NativeVar(), fromPointer(inner.NativeType(), stmt.Selector{X: stmt.Id(cursor), Name: "data"})),
	}
	body = append(body, it.Conversion...)
	body = append(body, stmt.Set(v.ManagedVar(), builtin("append", v.m(), inner.m())))
	body = append(body, it.Cleanup...)
	body = append(body, stmt.Set(cursor, stmt.Selector{X: stmt.Id(cursor), Name: "next"}))

	t := Transform{
		Declarations: append([]stmt.Stmt{
			v.decl(),
			stmt.Decl{Name: cursor, Type: v.NativeType()},
			inner.nativeDecl(),
		}, it.Declarations...),
		Conversion: []stmt.Stmt{
			stmt.Set(v.ManagedVar(), stmt.Make{Type: v.ManagedType(), Args: []stmt.Expr{stmt.Int(0)}}),
			stmt.Set(cursor, v.c()),
			stmt.While{Cond: stmt.Binary{Op: "!=", X: stmt.Id(cursor), Y: stmt.Nil{}}, Body: body},
		},
		Helpers: it.Helpers,
	}
	if v.Transfer != TransferNone {
		t.Cleanup = []stmt.Stmt{stmt.Do{X: stmt.NativeCall(free, v.c())}}
	}
	return t, nil
}

func (v Value) hashTableToManaged() (Transform, error) {
	key, value := v.Inner[0], v.Inner[1]
	kt, err := key.ToManaged()
	if err != nil {
		return Transform{}, errors.Wrapf(err, "key of %q", v.Name)
	}
	vt, err := value.ToManaged()
	if err != nil {
		return Transform{}, errors.Wrapf(err, "value of %q", v.Name)
	}
	elems := Compose(kt, vt)

	iter := v.NativeVar() + "Iter"
	keyRaw := v.NativeVar() + "KeyRaw"
	valueRaw := v.NativeVar() + "ValueRaw"

	body := []stmt.Stmt{
		stmt.Set(key.NativeVar(), fromPointer(key.NativeType(), stmt.Id(keyRaw))),
		stmt.Set(value.NativeVar(), fromPointer(value.NativeType(), stmt.Id(valueRaw))),
	}
	body = append(body, elems.Conversion...)
	body = append(body, stmt.Assign{
		Targets: []stmt.Expr{stmt.Index{X: v.m(), Index: key.m()}},
		Op:      "=",
		Value:   value.m(),
	})
	body = append(body, elems.Cleanup...)

	t := Transform{
		Declarations: append([]stmt.Stmt{
			v.decl(),
			stmt.Decl{Name: iter, Type: stmt.NativeType("GHashTableIter")},
			stmt.Decl{Name: keyRaw, Type: gpointer},
			stmt.Decl{Name: valueRaw, Type: gpointer},
			key.nativeDecl(),
			value.nativeDecl(),
		}, elems.Declarations...),
		Conversion: []stmt.Stmt{
			stmt.Set(v.ManagedVar(), stmt.Make{Type: v.ManagedType()}),
			stmt.Do{X: stmt.NativeCall("g_hash_table_iter_init", stmt.AddrOf{X: stmt.Id(iter)}, v.c())},
			stmt.While{
				Cond: stmt.Binary{Op: "!=", X: stmt.NativeCall("g_hash_table_iter_next",
					stmt.AddrOf{X: stmt.Id(iter)}, stmt.AddrOf{X: stmt.Id(keyRaw)}, stmt.AddrOf{X: stmt.Id(valueRaw)}), Y: stmt.Int(0)},
				Body: body,
			},
		},
		Helpers: elems.Helpers,
	}
	if v.Transfer != TransferNone {
		t.Cleanup = []stmt.Stmt{stmt.Do{X: stmt.NativeCall("g_hash_table_unref", v.c())}}
	}
	return t, nil
}

func (v Value) gvalueToManaged() Transform {
	t := Transform{
		Declarations: []stmt.Stmt{v.decl()},
		Conversion:   []stmt.Stmt{stmt.Set(v.ManagedVar(), stmt.Helper(ValueToManaged, toUnsafe(v.c())))},
		Helpers:      []Helper{StandardHelper(ValueToManaged)},
	}
	if v.Transfer == TransferFull {
		t.Cleanup = []stmt.Stmt{stmt.Do{X: stmt.NativeCall("g_value_unset", v.c())}}
	}
	return t
}
