package generation

import (
	"fmt"
	"strconv"
	"strings"

	"girbind/internal"
	"girbind/internal/stmt"
	"girbind/internal/types"

	"github.com/dave/jennifer/jen"
)

const weakNotify = "girbindWeakNotify"

// setterClasses are the argument types g_object_set is called with. Narrower
// values are promoted the way variadic arguments are.
var setterClasses = []struct {
	name   string
	native string
}{
	{"Pointer", "gpointer"},
	{"Int", "gint"},
	{"Uint", "guint"},
	{"Long", "glong"},
	{"Ulong", "gulong"},
	{"Int64", "gint64"},
	{"Uint64", "guint64"},
	{"Double", "gdouble"},
}

// GValue fundamental types gvalueToManaged understands, in shim order.
var valueKinds = []string{
	"G_TYPE_BOOLEAN", "G_TYPE_INT", "G_TYPE_UINT", "G_TYPE_LONG", "G_TYPE_ULONG",
	"G_TYPE_INT64", "G_TYPE_UINT64", "G_TYPE_FLOAT", "G_TYPE_DOUBLE", "G_TYPE_STRING",
	"G_TYPE_ENUM", "G_TYPE_FLAGS", "G_TYPE_OBJECT",
}

func setterClass(v types.Value) string {
	native := v.NativeType()
	if native.Pointer > 0 {
		return "Pointer"
	}
	switch v.Kind() {
	case types.KindEnum:
		return "Int"
	case types.KindBitfield:
		return "Uint"
	}
	switch native.Name {
	case "gboolean", "gchar", "gint8", "gshort", "gint16", "gint", "gint32":
		return "Int"
	case "guchar", "guint8", "gushort", "guint16", "guint", "guint32", "gunichar":
		return "Uint"
	case "glong", "gssize":
		return "Long"
	case "gulong", "gsize":
		return "Ulong"
	case "gint64", "goffset":
		return "Int64"
	case "guint64", "GType":
		return "Uint64"
	case "gfloat", "gdouble":
		return "Double"
	}
	return "Pointer"
}

func propertySetter(class string) string {
	return "propertySet" + class
}

func setterArgument(class string, x jen.Code) jen.Code {
	if class == "Pointer" {
		return unsafePointer(x)
	}
	for _, c := range setterClasses {
		if c.name == class {
			return jen.Qual("C", c.native).Call(x)
		}
	}
	internal.PanicOnError(fmt.Errorf("unknown property setter class %s", class))
	return nil
}

func (g *Generator) runtimePreamble() []string {
	lines := []string{
		"extern void " + weakNotify + "(gpointer, GObject*);",
		"",
		"static void girbind_get_property(gpointer object, const char *name, gpointer out) {",
		"\tg_object_get(object, name, out, NULL);",
		"}",
	}
	for _, c := range setterClasses {
		lines = append(lines,
			"static void girbind_set_property_"+strings.ToLower(c.name)+"(gpointer object, const char *name, "+c.native+" value) {",
			"\tg_object_set(object, name, value, NULL);",
			"}",
		)
	}
	lines = append(lines,
		"static int girbind_value_kind(const GValue *value) {",
		"\tswitch (G_TYPE_FUNDAMENTAL(G_VALUE_TYPE(value))) {",
	)
	for i, kind := range valueKinds {
		lines = append(lines, "\tcase "+kind+": return "+strconv.Itoa(i+1)+";")
	}
	lines = append(lines, "\tdefault: return 0;", "\t}", "}")
	return lines
}

// runtime renders the state shared by every file of the package.
func (g *Generator) runtime() *jen.File {
	f := g.newFile(g.runtimePreamble())
	bridge := func(name string) *jen.Statement { return jen.Qual(types.BridgePath, name) }
	handle := func() *jen.Statement {
		return jen.Qual("C", "gpointer").Call(unsafePointer(jen.Id("h")))
	}

	f.Var().Defs(
		jen.Id("identity").Op("=").Add(bridge("NewIdentity")).Call(jen.Id("natives").Values()),
		jen.Id("cells").Op("=").Add(bridge("NewCells")).Call(),
	)

	f.Comment("natives implements reference counting with GObject.")
	f.Type().Id("natives").Struct()
	f.Func().Params(jen.Id("natives")).Id("Ref").Params(jen.Id("h").Add(bridge("Handle"))).Block(
		jen.Qual("C", "g_object_ref_sink").Call(handle()),
	)
	f.Func().Params(jen.Id("natives")).Id("Unref").Params(jen.Id("h").Add(bridge("Handle"))).Block(
		jen.Qual("C", "g_object_unref").Call(handle()),
	)
	f.Func().Params(jen.Id("natives")).Id("WatchFinalize").Params(jen.Id("h").Add(bridge("Handle")), jen.Id("finalize").Func().Params()).Block(
		jen.Id("data").Op(":=").Id("cellPointer").Call(jen.Id("cells").Dot("NewOwned").Call(jen.Id("finalize"), bridge("ScopeForever"), jen.Id("h"))),
		jen.Qual("C", "g_object_weak_ref").Call(
			jen.Parens(jen.Op("*").Qual("C", "GObject")).Call(unsafePointer(jen.Id("h"))),
			jen.Parens(jen.Qual("C", "GWeakNotify")).Call(unsafePointer(jen.Qual("C", weakNotify))),
			jen.Id("data"),
		),
	)

	f.Comment("cellPointer stores id in native memory so it can travel as user data.")
	f.Func().Id("cellPointer").Params(jen.Id("id").Add(bridge("CellID"))).Qual("C", "gpointer").Block(
		jen.Id("p").Op(":=").Qual("C", "malloc").Call(jen.Qual("C", "size_t").Call(jen.Qual("unsafe", "Sizeof").Call(jen.Qual("C", "uintptr_t").Call(jen.Lit(0))))),
		jen.Op("*").Parens(jen.Op("*").Qual("C", "uintptr_t")).Call(jen.Id("p")).Op("=").Qual("C", "uintptr_t").Call(jen.Id("id")),
		jen.Return(jen.Qual("C", "gpointer").Call(jen.Id("p"))),
	)
	f.Func().Id("cellID").Params(jen.Id("p").Qual("C", "gpointer")).Add(bridge("CellID")).Block(
		jen.If(jen.Id("p").Op("==").Nil()).Block(jen.Return(jen.Lit(0))),
		jen.Return(bridge("CellID").Call(jen.Op("*").Parens(jen.Op("*").Qual("C", "uintptr_t")).Call(unsafePointer(jen.Id("p"))))),
	)

	f.Func().Id(propertyGetter).Params(jen.Id("object").Qual("unsafe", "Pointer"), jen.Id("name").String(), jen.Id("out").Qual("unsafe", "Pointer")).Block(
		propertyName(),
		jen.Defer().Qual("C", "free").Call(unsafePointer(jen.Id("cName"))),
		jen.Qual("C", "girbind_get_property").Call(jen.Qual("C", "gpointer").Call(jen.Id("object")), jen.Id("cName"), jen.Qual("C", "gpointer").Call(jen.Id("out"))),
	)
	for _, c := range setterClasses {
		valueType := jen.Qual("C", c.native)
		value := jen.Id("value")
		if c.name == "Pointer" {
			valueType = jen.Qual("unsafe", "Pointer")
			value = jen.Qual("C", "gpointer").Call(jen.Id("value"))
		}
		f.Func().Id(propertySetter(c.name)).Params(jen.Id("object").Qual("unsafe", "Pointer"), jen.Id("name").String(), jen.Id("value").Add(valueType)).Block(
			propertyName(),
			jen.Defer().Qual("C", "free").Call(unsafePointer(jen.Id("cName"))),
			jen.Qual("C", "girbind_set_property_"+strings.ToLower(c.name)).Call(jen.Qual("C", "gpointer").Call(jen.Id("object")), jen.Id("cName"), value),
		)
	}

	for _, h := range g.helpers.Sorted() {
		if h.Kind == types.HelperRecordToNative {
			f.Type().Id("nativeRecord").Interface(jen.Id("recordPointer").Params().Qual("unsafe", "Pointer"))
		}
		if code := helperBody(h); code != nil {
			f.Add(code)
		}
	}
	return f
}

func propertyName() jen.Code {
	return jen.Id("cName").Op(":=").Qual("C", "CString").Call(jen.Id("name"))
}

// exports renders the notifications native code delivers without user
// callbacks involved.
func (g *Generator) exports() *jen.File {
	f := g.newFile(nil)

	f.Comment("//export " + types.DestroyNotify)
	f.Func().Id(types.DestroyNotify).Params(jen.Id("data").Qual("C", "gpointer")).Block(
		jen.Id(types.ClosureRelease).Call(jen.Id("data")),
	)

	f.Comment("//export " + weakNotify)
	f.Func().Id(weakNotify).Params(jen.Id("data").Qual("C", "gpointer"), jen.Id("object").Op("*").Qual("C", "GObject")).Block(
		jen.List(jen.Id("value"), jen.Err()).Op(":=").Id("cells").Dot("Value").Call(jen.Id("cellID").Call(jen.Id("data"))),
		jen.Id(types.ClosureRelease).Call(jen.Id("data")),
		jen.If(jen.List(jen.Id("finalize"), jen.Id("ok")).Op(":=").Id("value").Assert(jen.Func().Params()), jen.Err().Op("==").Nil().Op("&&").Id("ok")).Block(
			jen.Id("finalize").Call(),
		),
		jen.Id("cells").Dot("ReleaseOwned").Call(jen.Qual(types.BridgePath, "Handle").Call(unsafePointer(jen.Id("object")))),
	)
	return f
}

// helperBody renders helper h, or nil for helpers living elsewhere.
func helperBody(h types.Helper) jen.Code {
	p := func(name string) *jen.Statement { return jen.Id(name).Qual("unsafe", "Pointer") }
	bridge := func(name string) *jen.Statement { return jen.Qual(types.BridgePath, name) }
	cell := func() *jen.Statement { return jen.Id("p").Qual("C", "gpointer") }

	switch h.Kind {
	case types.HelperBoolToNative:
		return jen.Func().Id(h.Name).Params(jen.Id("v").Bool()).Qual("C", "gboolean").Block(
			jen.If(jen.Id("v")).Block(jen.Return(jen.Lit(1))),
			jen.Return(jen.Lit(0)),
		)
	case types.HelperBoolToManaged:
		return jen.Func().Id(h.Name).Params(jen.Id("v").Qual("C", "gboolean")).Bool().Block(
			jen.Return(jen.Id("v").Op("!=").Lit(0)),
		)
	case types.HelperStringToNative:
		return jen.Func().Id(h.Name).Params(jen.Id("s").String()).Qual("unsafe", "Pointer").Block(
			jen.Return(unsafePointer(jen.Qual("C", "CString").Call(jen.Id("s")))),
		)
	case types.HelperStringToManaged:
		return jen.Func().Id(h.Name).Params(p("p")).String().Block(
			jen.If(jen.Id("p").Op("==").Nil()).Block(jen.Return(jen.Lit(""))),
			jen.Return(jen.Qual("C", "GoString").Call(jen.Parens(jen.Op("*").Qual("C", "char")).Call(jen.Id("p")))),
		)
	case types.HelperEnumToManaged:
		return jen.Func().Id(h.Name).Params(jen.Id("v").Int64()).Id(h.Subject).Block(
			jen.Return(jen.Id(h.Subject).Call(jen.Id("v"))),
		)
	case types.HelperObjectToNative:
		return jen.Func().Id(h.Name).Params(jen.Id("proxy").Add(bridge("Proxy"))).Params(jen.Qual("unsafe", "Pointer"), jen.Error()).Block(
			jen.List(jen.Id("h"), jen.Err()).Op(":=").Id("identity").Dot("ToNative").Call(jen.Id("proxy")),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
			jen.Return(unsafePointer(jen.Id("h")), jen.Nil()),
		)
	case types.HelperObjectToManaged:
		return jen.Func().Id(h.Name).Params(p("p"), jen.Id("adopt").Bool(), jen.Id("wrap").Func().Params(jen.Op("*").Add(bridge("Instance"))).Id("any")).Id("any").Block(
			jen.Return(jen.Id("identity").Dot("ToManaged").Call(bridge("Handle").Call(jen.Id("p")), jen.Id("adopt"), jen.Id("wrap"))),
		)
	case types.HelperRecordToNative:
		return jen.Func().Id(h.Name).Params(jen.Id("r").Id("nativeRecord")).Qual("unsafe", "Pointer").Block(
			jen.If(jen.Id("r").Op("==").Nil()).Block(jen.Return(jen.Nil())),
			jen.Return(jen.Id("r").Dot("recordPointer").Call()),
		)
	case types.HelperRecordToManaged:
		body := []jen.Code{jen.Id("r").Op(":=").Op("&").Id(h.Subject).Values(jen.Dict{jen.Id("ptr"): jen.Id("p")})}
		if h.FreeFunc != "" {
			native := lowerType(stmt.NativeType(h.Native))
			body = append(body, jen.If(jen.Id("owned")).Block(
				jen.Qual("runtime", "AddCleanup").Call(jen.Id("r"), jen.Func().Params(p("p")).Block(
					jen.Qual("C", h.FreeFunc).Call(jen.Parens(native).Call(jen.Id("p"))),
				), jen.Id("p")),
			))
		}
		body = append(body, jen.Return(jen.Id("r")))
		return jen.Func().Id(h.Name).Params(p("p"), jen.Id("owned").Bool()).Op("*").Id(h.Subject).Block(body...)
	case types.HelperClosureNew:
		return jen.Func().Id(h.Name).Params(jen.Id("v").Id("any"), jen.Id("scope").Add(bridge("Scope"))).Qual("C", "gpointer").Block(
			jen.Return(jen.Id("cellPointer").Call(jen.Id("cells").Dot("New").Call(jen.Id("v"), jen.Id("scope")))),
		)
	case types.HelperClosureValue:
		return jen.Func().Id(h.Name).Params(cell()).Params(jen.Id("any"), jen.Error()).Block(
			jen.Return(jen.Id("cells").Dot("Value").Call(jen.Id("cellID").Call(jen.Id("p")))),
		)
	case types.HelperClosureInvoked:
		return jen.Func().Id(h.Name).Params(cell()).Block(
			jen.Id("id").Op(":=").Id("cellID").Call(jen.Id("p")),
			jen.Id("cells").Dot("Invoked").Call(jen.Id("id")),
			jen.If(jen.List(jen.Id("_"), jen.Err()).Op(":=").Id("cells").Dot("Value").Call(jen.Id("id")), jen.Err().Op("!=").Nil().Op("&&").Id("p").Op("!=").Nil()).Block(
				jen.Qual("C", "free").Call(unsafePointer(jen.Id("p"))),
			),
		)
	case types.HelperClosureRelease:
		return jen.Func().Id(h.Name).Params(cell()).Block(
			jen.If(jen.Id("p").Op("==").Nil()).Block(jen.Return()),
			jen.If(jen.Err().Op(":=").Id("cells").Dot("Release").Call(jen.Id("cellID").Call(jen.Id("p"))), jen.Err().Op("!=").Nil()).Block(
				bridge("Report").Call(jen.Err()),
			),
			jen.Qual("C", "free").Call(unsafePointer(jen.Id("p"))),
		)
	case types.HelperValueToManaged:
		return valueToManaged(h)
	case types.HelperArrayLength:
		slot := jen.Op("*").Parens(jen.Op("*").Qual("unsafe", "Pointer")).Call(jen.Qual("unsafe", "Add").Call(
			jen.Id("p"), jen.Uintptr().Call(jen.Id("n")).Op("*").Qual("unsafe", "Sizeof").Call(jen.Id("p"))))
		return jen.Func().Id(h.Name).Params(p("p")).Int().Block(
			jen.Id("n").Op(":=").Lit(0),
			jen.For(jen.Id("p").Op("!=").Nil().Op("&&").Add(slot).Op("!=").Nil()).Block(jen.Id("n").Op("++")),
			jen.Return(jen.Id("n")),
		)
	case types.HelperErrorToManaged:
		field := func(name string) *jen.Statement { return jen.Id("e").Dot(name) }
		return jen.Func().Id(h.Name).Params(jen.Id("e").Op("*").Qual("C", "GError")).Error().Block(
			jen.Defer().Qual("C", "g_error_free").Call(jen.Id("e")),
			jen.Return(jen.Op("&").Add(bridge("NativeError")).Values(jen.Dict{
				jen.Id("Domain"):  jen.Uint32().Call(field("domain")),
				jen.Id("Code"):    jen.Int().Call(field("code")),
				jen.Id("Message"): jen.Qual("C", "GoString").Call(jen.Parens(jen.Op("*").Qual("C", "char")).Call(unsafePointer(field("message")))),
			})),
		)
	}
	return nil
}

// valueToManaged unpacks a GValue by fundamental type. Objects of unknown
// class surface as their bridge instance.
func valueToManaged(h types.Helper) jen.Code {
	get := func(name string) *jen.Statement { return jen.Qual("C", "g_value_get_"+name).Call(jen.Id("v")) }
	cases := []jen.Code{
		get("boolean").Op("!=").Lit(0),
		jen.Int32().Call(get("int")),
		jen.Uint32().Call(get("uint")),
		jen.Int64().Call(get("long")),
		jen.Uint64().Call(get("ulong")),
		jen.Int64().Call(get("int64")),
		jen.Uint64().Call(get("uint64")),
		jen.Float32().Call(get("float")),
		jen.Float64().Call(get("double")),
		jen.Id(types.StringToManaged).Call(unsafePointer(get("string"))),
		jen.Int64().Call(get("enum")),
		jen.Uint64().Call(get("flags")),
		jen.Id(types.ObjectToManaged).Call(unsafePointer(get("object")), jen.False(),
			jen.Func().Params(jen.Id("inst").Op("*").Qual(types.BridgePath, "Instance")).Id("any").Block(jen.Return(jen.Id("inst")))),
	}
	return jen.Func().Id(h.Name).Params(jen.Id("p").Qual("unsafe", "Pointer")).Id("any").Block(
		jen.If(jen.Id("p").Op("==").Nil()).Block(jen.Return(jen.Nil())),
		jen.Id("v").Op(":=").Parens(jen.Op("*").Qual("C", "GValue")).Call(jen.Id("p")),
		jen.Switch(jen.Qual("C", "girbind_value_kind").Call(jen.Id("v"))).BlockFunc(func(s *jen.Group) {
			for i, c := range cases {
				s.Case(jen.Lit(i + 1)).Block(jen.Return(c))
			}
		}),
		jen.Return(jen.Nil()),
	)
}
