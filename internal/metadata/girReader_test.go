package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGir = `<?xml version="1.0"?>
<repository version="1.2"
            xmlns="http://www.gtk.org/introspection/core/1.0"
            xmlns:c="http://www.gtk.org/introspection/c/1.0"
            xmlns:glib="http://www.gtk.org/introspection/glib/1.0">
  <include name="GObject" version="2.0"/>
  <package name="demo"/>
  <c:include name="demo.h"/>
  <namespace name="Demo" version="1.0" shared-library="libdemo.so" c:identifier-prefixes="Demo" c:symbol-prefixes="demo">
    <class name="Widget" c:type="DemoWidget" parent="GObject.Object" c:symbol-prefix="widget"
           glib:type-name="DemoWidget" glib:get-type="demo_widget_get_type" glib:type-struct="WidgetClass">
      <doc xml:space="preserve">A widget.</doc>
      <implements name="Buildable"/>
      <constructor name="new" c:identifier="demo_widget_new">
        <return-value transfer-ownership="full"><type name="Widget" c:type="DemoWidget*"/></return-value>
      </constructor>
      <method name="set_data" c:identifier="demo_widget_set_data">
        <return-value transfer-ownership="none"><type name="none" c:type="void"/></return-value>
        <parameters>
          <instance-parameter name="self" transfer-ownership="none"><type name="Widget" c:type="DemoWidget*"/></instance-parameter>
          <parameter name="data" transfer-ownership="none">
            <array length="1" zero-terminated="0" c:type="const gint*"><type name="gint" c:type="gint"/></array>
          </parameter>
          <parameter name="n_data" transfer-ownership="none"><type name="gsize" c:type="gsize"/></parameter>
        </parameters>
      </method>
      <method name="foreach" c:identifier="demo_widget_foreach" introspectable="0">
        <return-value><type name="none" c:type="void"/></return-value>
        <parameters>
          <instance-parameter name="self"><type name="Widget" c:type="DemoWidget*"/></instance-parameter>
          <parameter name="func" scope="notified" closure="1" destroy="2"><type name="Func" c:type="DemoFunc"/></parameter>
          <parameter name="user_data" nullable="1"><type name="gpointer" c:type="gpointer"/></parameter>
          <parameter name="notify" scope="async"><type name="GLib.DestroyNotify" c:type="GDestroyNotify"/></parameter>
        </parameters>
      </method>
      <property name="label" writable="1" transfer-ownership="none"><type name="utf8" c:type="gchar*"/></property>
      <glib:signal name="clicked" when="last">
        <return-value transfer-ownership="none"><type name="none" c:type="void"/></return-value>
      </glib:signal>
    </class>
    <record name="WidgetClass" c:type="DemoWidgetClass" glib:is-gtype-struct-for="Widget"/>
    <enumeration name="Mode" c:type="DemoMode" glib:type-name="DemoMode" glib:get-type="demo_mode_get_type">
      <member name="fast" value="0" c:identifier="DEMO_MODE_FAST" glib:nick="fast" glib:name="DEMO_MODE_FAST"/>
      <member name="slow" value="1" c:identifier="DEMO_MODE_SLOW" glib:nick="slow"/>
    </enumeration>
    <bitfield name="Flags" c:type="DemoFlags">
      <member name="none" value="0" c:identifier="DEMO_FLAGS_NONE"/>
      <member name="a" value="1" c:identifier="DEMO_FLAGS_A"/>
      <member name="c" value="4" c:identifier="DEMO_FLAGS_C"/>
    </bitfield>
    <callback name="Func" c:type="DemoFunc">
      <return-value><type name="gboolean" c:type="gboolean"/></return-value>
      <parameters>
        <parameter name="item"><type name="utf8" c:type="const gchar*"/></parameter>
        <parameter name="user_data" closure="1"><type name="gpointer" c:type="gpointer"/></parameter>
      </parameters>
    </callback>
    <function name="list_names" c:identifier="demo_list_names">
      <return-value transfer-ownership="full">
        <type name="GLib.List" c:type="GList*"><type name="utf8"/></type>
      </return-value>
    </function>
    <function name="internal_helper" c:identifier="demo_internal_helper">
      <return-value><type name="none" c:type="void"/></return-value>
    </function>
  </namespace>
</repository>`

func TestReadRepository(t *testing.T) {
	repo, err := NewReader().Read(strings.NewReader(testGir))
	require.NoError(t, err)

	assert.Equal(t, "1.2", repo.Version)
	assert.Equal(t, []Include{{Name: "GObject", Version: "2.0"}}, repo.Includes)
	assert.Equal(t, []string{"demo.h"}, repo.CIncludes)
	require.Len(t, repo.Namespaces, 1)

	ns := repo.Namespaces[0]
	assert.Equal(t, "Demo", ns.Name)
	assert.Equal(t, "demo", ns.SymbolPrefixes)
	require.Len(t, ns.Classes, 1)
	require.Len(t, ns.Records, 1)
	require.Len(t, ns.Enums, 2)
	require.Len(t, ns.Callbacks, 1)
	require.Len(t, ns.Functions, 2)

	widget := ns.Classes[0]
	assert.Equal(t, "DemoWidget", widget.CType)
	assert.Equal(t, "GObject.Object", widget.Parent)
	assert.Equal(t, "A widget.", widget.Doc)
	assert.Equal(t, []string{"Buildable"}, widget.Implements)
	require.Len(t, widget.Constructors, 1)
	assert.Equal(t, "full", widget.Constructors[0].ReturnValue.Transfer)
	require.Len(t, widget.Methods, 2)
	require.Len(t, widget.Properties, 1)
	assert.True(t, widget.Properties[0].Readable)
	assert.True(t, widget.Properties[0].Writable)
	require.Len(t, widget.Signals, 1)
	assert.Equal(t, "clicked", widget.Signals[0].Name)
	assert.Equal(t, "last", widget.Signals[0].When)

	assert.Equal(t, "Widget", ns.Records[0].IsGTypeStructFor)
}

func TestReadParametersKeepRelationalAttributes(t *testing.T) {
	repo, err := NewReader().Read(strings.NewReader(testGir))
	require.NoError(t, err)
	methods := repo.Namespaces[0].Classes[0].Methods

	setData := methods[0]
	require.NotNil(t, setData.InstanceParameter)
	assert.Equal(t, "self", setData.InstanceParameter.Name)
	require.Len(t, setData.Parameters, 2)
	data := setData.Parameters[0]
	require.True(t, data.Type.IsArray())
	assert.Equal(t, "gint", data.Type.Name)
	assert.Equal(t, "const gint*", data.Type.Array.CType)
	require.NotNil(t, data.Type.Array.Length)
	assert.Equal(t, 1, *data.Type.Array.Length)
	assert.False(t, data.Type.Array.ZeroTerminated)
	assert.Equal(t, "in", data.Direction)

	foreach := methods[1]
	assert.False(t, foreach.Introspectable)
	fn := foreach.Parameters[0]
	assert.Equal(t, "notified", fn.Scope)
	require.NotNil(t, fn.Closure)
	require.NotNil(t, fn.Destroy)
	assert.Equal(t, 1, *fn.Closure)
	assert.Equal(t, 2, *fn.Destroy)
	assert.True(t, foreach.Parameters[1].Nullable)
}

func TestReadEnumsUseUnprefixedName(t *testing.T) {
	repo, err := NewReader().Read(strings.NewReader(testGir))
	require.NoError(t, err)
	enums := repo.Namespaces[0].Enums

	mode := enums[0]
	assert.False(t, mode.Bitfield)
	assert.Equal(t, "fast", mode.Members[0].Name)
	assert.Equal(t, "DEMO_MODE_FAST", mode.Members[0].CIdentifier)
	assert.Equal(t, "fast", mode.Members[0].Nick)

	flags := enums[1]
	assert.True(t, flags.Bitfield)
	assert.Equal(t, int64(4), flags.Members[2].Value)
}

func TestReadContainerInnerTypes(t *testing.T) {
	repo, err := NewReader().Read(strings.NewReader(testGir))
	require.NoError(t, err)

	ret := repo.Namespaces[0].Functions[0].ReturnValue
	assert.Equal(t, "GLib.List", ret.Type.Name)
	require.Len(t, ret.Type.Inner, 1)
	assert.Equal(t, "utf8", ret.Type.Inner[0].Name)
}

func TestReadDropsIgnoredElements(t *testing.T) {
	repo, err := NewReader("demo_internal_helper", "DemoFlags").Read(strings.NewReader(testGir))
	require.NoError(t, err)

	ns := repo.Namespaces[0]
	require.Len(t, ns.Functions, 1)
	assert.Equal(t, "list_names", ns.Functions[0].Name)
	require.Len(t, ns.Enums, 1)
	assert.Equal(t, "Mode", ns.Enums[0].Name)
}

func TestReadRejectsInvalidDocuments(t *testing.T) {
	_, err := NewReader().Read(strings.NewReader(`<namespace/>`))
	assert.Error(t, err)

	_, err = NewReader().Read(strings.NewReader(``))
	assert.Error(t, err)

	_, err = NewReader().Read(strings.NewReader(`<repository><namespace name="X"><class name="A"><method name="m"><parameters><parameter name="p" closure="x"/></parameters></method></class></namespace></repository>`))
	assert.Error(t, err)
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Demo.Widget", FullName("Demo", "Widget"))
	assert.Equal(t, "GObject.Object", FullName("Demo", "GObject.Object"))
	assert.Equal(t, "utf8", FullName("Demo", "utf8"))
	assert.Equal(t, "gint", FullName("Demo", "gint"))
}
