package generation

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"girbind/internal/metadata"
	"girbind/internal/synth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shapesGir = `<?xml version="1.0"?>
<repository version="1.2"
            xmlns="http://www.gtk.org/introspection/core/1.0"
            xmlns:c="http://www.gtk.org/introspection/c/1.0"
            xmlns:glib="http://www.gtk.org/introspection/glib/1.0">
  <namespace name="Shapes" version="1.0" shared-library="libshapes.so" c:identifier-prefixes="Shapes" c:symbol-prefixes="shapes">
    <class name="Shape" c:type="ShapesShape" parent="GObject.Object" glib:type-name="ShapesShape" glib:get-type="shapes_shape_get_type">
      <doc xml:space="preserve">A drawable shape.</doc>
      <method name="get_bounds" c:identifier="shapes_shape_get_bounds">
        <return-value transfer-ownership="full"><type name="Box" c:type="ShapesBox*"/></return-value>
        <parameters>
          <instance-parameter name="self"><type name="Shape" c:type="ShapesShape*"/></instance-parameter>
        </parameters>
      </method>
      <method name="get_name" c:identifier="shapes_shape_get_name">
        <return-value transfer-ownership="none"><type name="utf8" c:type="const gchar*"/></return-value>
        <parameters>
          <instance-parameter name="self"><type name="Shape" c:type="ShapesShape*"/></instance-parameter>
        </parameters>
      </method>
      <method name="visit" c:identifier="shapes_shape_visit">
        <return-value><type name="none" c:type="void"/></return-value>
        <parameters>
          <instance-parameter name="self"><type name="Shape" c:type="ShapesShape*"/></instance-parameter>
          <parameter name="visitor" scope="notified" closure="1" destroy="2"><type name="Visitor" c:type="ShapesVisitor"/></parameter>
          <parameter name="user_data" nullable="1"><type name="gpointer" c:type="gpointer"/></parameter>
          <parameter name="notify" scope="async"><type name="GLib.DestroyNotify" c:type="GDestroyNotify"/></parameter>
        </parameters>
      </method>
      <method name="load" c:identifier="shapes_shape_load" throws="1">
        <return-value transfer-ownership="none"><type name="gboolean" c:type="gboolean"/></return-value>
        <parameters>
          <instance-parameter name="self"><type name="Shape" c:type="ShapesShape*"/></instance-parameter>
          <parameter name="path" transfer-ownership="none"><type name="filename" c:type="const gchar*"/></parameter>
        </parameters>
      </method>
      <property name="name" writable="1" transfer-ownership="none"><type name="utf8" c:type="gchar*"/></property>
      <property name="scale" writable="1" transfer-ownership="none"><type name="gfloat" c:type="gfloat"/></property>
      <property name="kind" transfer-ownership="none"><type name="Kind" c:type="ShapesKind"/></property>
      <glib:signal name="moved" when="last">
        <return-value transfer-ownership="none"><type name="none" c:type="void"/></return-value>
        <parameters>
          <parameter name="dx" transfer-ownership="none"><type name="gdouble" c:type="gdouble"/></parameter>
        </parameters>
      </glib:signal>
    </class>
    <class name="Circle" c:type="ShapesCircle" parent="Shape" glib:type-name="ShapesCircle" glib:get-type="shapes_circle_get_type">
      <constructor name="new" c:identifier="shapes_circle_new">
        <return-value transfer-ownership="none"><type name="Shape" c:type="ShapesShape*"/></return-value>
        <parameters>
          <parameter name="radius" transfer-ownership="none"><type name="gdouble" c:type="gdouble"/></parameter>
        </parameters>
      </constructor>
    </class>
    <record name="Box" c:type="ShapesBox" glib:type-name="ShapesBox">
      <method name="copy" c:identifier="shapes_box_copy">
        <return-value transfer-ownership="full"><type name="Box" c:type="ShapesBox*"/></return-value>
        <parameters><instance-parameter name="self"><type name="Box" c:type="const ShapesBox*"/></instance-parameter></parameters>
      </method>
      <method name="free" c:identifier="shapes_box_free">
        <return-value><type name="none" c:type="void"/></return-value>
        <parameters><instance-parameter name="self"><type name="Box" c:type="ShapesBox*"/></instance-parameter></parameters>
      </method>
      <method name="width" c:identifier="shapes_box_width">
        <return-value><type name="gint" c:type="gint"/></return-value>
        <parameters><instance-parameter name="self"><type name="Box" c:type="const ShapesBox*"/></instance-parameter></parameters>
      </method>
    </record>
    <enumeration name="Kind" c:type="ShapesKind" glib:type-name="ShapesKind" glib:get-type="shapes_kind_get_type">
      <member name="round" value="0" c:identifier="SHAPES_KIND_ROUND" glib:nick="round"/>
      <member name="square" value="1" c:identifier="SHAPES_KIND_SQUARE" glib:nick="square"/>
      <member name="box" value="1" c:identifier="SHAPES_KIND_BOX" glib:nick="box"/>
    </enumeration>
    <bitfield name="Edges" c:type="ShapesEdges">
      <member name="top" value="1" c:identifier="SHAPES_EDGES_TOP"/>
      <member name="left" value="2" c:identifier="SHAPES_EDGES_LEFT"/>
    </bitfield>
    <callback name="Visitor" c:type="ShapesVisitor">
      <return-value><type name="gboolean" c:type="gboolean"/></return-value>
      <parameters>
        <parameter name="shape"><type name="Shape" c:type="ShapesShape*"/></parameter>
        <parameter name="user_data" closure="1"><type name="gpointer" c:type="gpointer"/></parameter>
      </parameters>
    </callback>
    <function name="edges_of" c:identifier="shapes_edges_of">
      <return-value transfer-ownership="none"><type name="Edges" c:type="ShapesEdges"/></return-value>
      <parameters>
        <parameter name="kind" transfer-ownership="none"><type name="Kind" c:type="ShapesKind"/></parameter>
      </parameters>
    </function>
  </namespace>
</repository>`

func synthesize(t *testing.T) *synth.Namespace {
	t.Helper()
	repo, err := metadata.NewReader().Read(strings.NewReader(shapesGir))
	require.NoError(t, err)
	ns := repo.Namespaces[0]

	naming := synth.Naming{Primary: "Shapes"}
	reg, err := synth.NewRegistry(naming, ns)
	require.NoError(t, err)
	builder := synth.NewBuilder(reg, naming)
	builder.SkipUnsupported = true
	out, err := builder.Namespace(ns)
	require.NoError(t, err)
	return out
}

func newShapesGenerator(t *testing.T) *Generator {
	t.Helper()
	g := NewGenerator("shapes", t.TempDir())
	g.PkgConfig = []string{"shapes-1.0"}
	g.Headers = []string{"shapes/shapes.h"}
	g.RegisterNamespace(synthesize(t))
	return g
}

func render(t *testing.T) map[string]string {
	t.Helper()
	files, err := newShapesGenerator(t).Files()
	require.NoError(t, err)

	out := map[string]string{}
	for name, f := range files {
		var buf bytes.Buffer
		require.NoError(t, f.Render(&buf), name)
		out[name] = buf.String()
	}
	return out
}

func assertContains(t *testing.T, source string, fragments ...string) {
	t.Helper()
	for _, fragment := range fragments {
		assert.Contains(t, source, fragment)
	}
}

func TestFileLayout(t *testing.T) {
	files := render(t)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{"shapes.go", "shapes_bridge.go", "girbind_runtime.go", "girbind_exports.go"}, names)

	for name, source := range files {
		assert.True(t, strings.HasPrefix(source, "// Code generated by girbind. DO NOT EDIT."), name)
		assertContains(t, source, "#cgo pkg-config: gobject-2.0 shapes-1.0", "#include <shapes/shapes.h>", `import "C"`)
	}
}

func TestOnlyRuntimeDefinesCode(t *testing.T) {
	files := render(t)
	for name, source := range files {
		hasExports := strings.Contains(source, "//export ")
		hasStatic := strings.Contains(source, "static ")
		assert.False(t, hasExports && hasStatic, "%s mixes exports with C definitions", name)
	}
	assert.Contains(t, files["girbind_runtime.go"], "static void girbind_get_property")
	assert.NotContains(t, files["shapes.go"], "//export ")
}

func TestClassProxies(t *testing.T) {
	source := render(t)["shapes.go"]
	assertContains(t, source,
		"// A drawable shape.\ntype Shape struct {\n\t*bridge.Instance\n}",
		"type Circle struct {\n\tShape\n}",
		"func (self *Shape) NativeInstance() *bridge.Instance {",
		"func wrapShape(inst *bridge.Instance) any {\n\treturn &Shape{Instance: inst}\n}",
		"func wrapCircle(inst *bridge.Instance) any {\n\treturn &Circle{Shape: Shape{Instance: inst}}\n}",
		"func ShapeGType() uint64 {\n\treturn uint64(C.shapes_shape_get_type())\n}",
	)
}

func TestOutboundCalls(t *testing.T) {
	source := render(t)["shapes.go"]
	assertContains(t, source,
		"func NewCircle(radius float64) *Circle {",
		"cResult := C.shapes_circle_new(cRadius)",
		"func (self *Shape) GetName() (string, error) {",
		"result = stringToManaged(unsafe.Pointer(cResult))",
		"func (self *Shape) GetBounds() (*Box, error) {",
		"result = boxFromNative(unsafe.Pointer(cResult), true)",
		"func (self *Box) Width() int32 {",
		"func EdgesOf(kind Kind) []Edges {",
		"bridge.SplitFlags(uint64(cResult))",
		"cKind = C.ShapesKind(kind)",
	)
	// A nil receiver check fails before the native call
	assertContains(t, source, "cSelfRaw, err = objectToNative(self)\n\tif err != nil {\n\t\treturn \"\", err\n\t}")
}

func TestThrowingCalls(t *testing.T) {
	source := render(t)["shapes.go"]
	assertContains(t, source,
		"func (self *Shape) Load(path string) (bool, error) {",
		"var cError *C.GError",
		"cResult := C.shapes_shape_load(cSelf, cPath, &cError)",
		"return false, gerrorToManaged(cError)",
	)
}

func TestCallbackArguments(t *testing.T) {
	files := render(t)
	source := files["shapes.go"]
	assertContains(t, source,
		"type Visitor func(shape *Shape) bool",
		"func (self *Shape) Visit(visitor Visitor) error {",
		"cUserData = closureNew(visitor, \"notified\")",
		"cVisitor = C.ShapesVisitor(unsafe.Pointer(C.girbindVisitorTrampoline))",
		"cNotify = C.GDestroyNotify(unsafe.Pointer(C.girbindDestroyNotify))",
		"extern gboolean girbindVisitorTrampoline(ShapesShape*, gpointer);",
		"extern void girbindDestroyNotify(gpointer);",
	)
	// Notified cells are released by the destroy notification only
	assert.NotContains(t, source, "closureRelease(cUserData)")
}

func TestTrampolines(t *testing.T) {
	source := render(t)["shapes_bridge.go"]
	assertContains(t, source,
		"//export girbindVisitorTrampoline\nfunc girbindVisitorTrampoline(cShape *C.ShapesShape, cUserData C.gpointer) C.gboolean {",
		"userData, err = closureValue(cUserData)",
		"bridge.Report(err)\n\t\treturn 0",
		"dispatch, ok := userData.(Visitor)",
		"result := dispatch(shape)",
		"cResult = gbooleanToNative(result)",
		"return cResult",
		"//export girbindShapeMovedListenerTrampoline",
		"dispatch.OnMoved(self, dx)",
		"dispatch, ok := userData.(ShapeNameChangeListener)",
	)
}

func TestPropertiesAndSignals(t *testing.T) {
	source := render(t)["shapes.go"]
	assertContains(t, source,
		"func (self *Shape) GetName",
		"func (self *Shape) GetNameProperty() (string, error) {",
		`propertyGet(unsafe.Pointer(cSelf), "name", unsafe.Pointer(&cResult))`,
		"func (self *Shape) SetName(value string) error {",
		`propertySetPointer(unsafe.Pointer(cSelf), "name", unsafe.Pointer(cValue))`,
		`propertySetDouble(unsafe.Pointer(cSelf), "scale", C.gdouble(cValue))`,
		"func (self *Shape) GetKind() (Kind, error) {",
		"type ShapeMovedListener interface {\n\tOnMoved(self *Shape, dx float64)\n}",
		"type ShapeKindChangeListener interface {\n\tOnKindChanged(self *Shape)\n}",
		"func (self *Shape) ConnectMovedListener(listener ShapeMovedListener) (uint64, error) {",
		`cDetailedSignal := C.CString("moved")`,
		"C.g_signal_connect_data(C.gpointer(unsafe.Pointer(cSelf))",
		"func (self *Shape) DisconnectMovedListener(handlerId uint64) error {",
		"func (self *Shape) AddMovedListener(listener ShapeMovedListener) error {",
		`inst.AddListener("moved", listener, id)`,
		`id, ok := self.NativeInstance().RemoveListener("notify::kind", listener)`,
	)
	assert.NotContains(t, source, "func (self *Shape) SetKind", "read-only properties have no setter")
}

func TestEnums(t *testing.T) {
	source := render(t)["shapes.go"]
	assertContains(t, source,
		"type Kind int64",
		"KindRound  Kind = 0",
		"KindSquare Kind = 1",
		"KindBox    Kind = 1",
		"type Edges uint64",
		"EdgesTop  Edges = 1",
		"func (v Kind) Nick() string {",
	)
	// Aliased values keep the nick of their first member
	assert.Contains(t, source, `KindSquare: "square"`)
	assert.NotContains(t, source, `KindBox:`)
}

func TestRuntimeHelpers(t *testing.T) {
	source := render(t)["girbind_runtime.go"]
	assertContains(t, source,
		"bridge.NewIdentity(natives{})",
		"C.g_object_ref_sink(C.gpointer(unsafe.Pointer(h)))",
		"C.g_object_weak_ref(",
		"func gbooleanToNative(v bool) C.gboolean {",
		"func kindFromNative(v int64) Kind {",
		"func boxFromNative(p unsafe.Pointer, owned bool) *Box {",
		"runtime.AddCleanup(r, func(p unsafe.Pointer) {\n\t\t\tC.shapes_box_free((*C.ShapesBox)(p))",
		"func closureNew(v any, scope bridge.Scope) C.gpointer {",
		"func gerrorToManaged(e *C.GError) error {",
		"static void girbind_set_property_double(gpointer object, const char *name, gdouble value) {",
		"case G_TYPE_OBJECT: return 13;",
		"type nativeRecord interface {",
	)
	assert.Contains(t, render(t)["girbind_exports.go"], "//export girbindDestroyNotify\nfunc girbindDestroyNotify(data C.gpointer) {\n\tclosureRelease(data)\n}")
}

func TestGenerateWritesFiles(t *testing.T) {
	g := newShapesGenerator(t)
	g.OutputPath = filepath.Join(t.TempDir(), "out", "shapes")
	require.NoError(t, g.Generate())

	for _, name := range []string{"shapes.go", "shapes_bridge.go", "girbind_runtime.go", "girbind_exports.go"} {
		data, err := os.ReadFile(filepath.Join(g.OutputPath, name))
		require.NoError(t, err, name)
		assert.Contains(t, string(data), "package shapes")
	}
}

func TestSecondaryNamespacesArePrefixed(t *testing.T) {
	g := NewGenerator("shapes", t.TempDir())
	g.Primary = "Gtk"
	g.RegisterNamespace(synthesize(t))
	files, err := g.Files()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, files["shapes.go"].Render(&buf))
	assert.Contains(t, buf.String(), "func ShapesEdgesOf(kind Kind) []Edges {")
}
