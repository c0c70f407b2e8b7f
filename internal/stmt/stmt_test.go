package stmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNativeType(t *testing.T) {
	tests := []struct {
		spelling string
		want     TypeRef
		str      string
	}{
		{"gint", TypeRef{Name: "gint", Native: true}, "C.gint"},
		{"const gchar*", TypeRef{Name: "gchar", Native: true, Pointer: 1}, "*C.gchar"},
		{"GtkWidget*", TypeRef{Name: "GtkWidget", Native: true, Pointer: 1}, "*C.GtkWidget"},
		{"gchar**", TypeRef{Name: "gchar", Native: true, Pointer: 2}, "**C.gchar"},
	}

	for _, tt := range tests {
		t.Run(tt.spelling, func(t *testing.T) {
			got := NativeType(tt.spelling)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}
}

func TestTypeRefString(t *testing.T) {
	assert.Equal(t, "[]int32", SliceOf(Managed("int32")).String())
	assert.Equal(t, "map[string]*Widget", MapOf(Managed("string"), Ptr(Managed("Widget"))).String())
	assert.Equal(t, "bridge.Instance", Qualified("girbind/bridge", "Instance").String())
	assert.Equal(t, "C.GObject", Ptr(NativeType("GObject")).Deref().String())
	assert.True(t, TypeRef{}.IsZero())
}

func TestCountNested(t *testing.T) {
	stmts := []Stmt{
		Decl{Name: "x", Type: Managed("int")},
		While{Cond: Id("x"), Body: []Stmt{
			Set("x", Int(0)),
			If{Cond: Id("x"), Then: []Stmt{Do{X: NativeCall("g_free", Id("x"))}}},
		}},
		Defer{Body: []Stmt{Do{X: Helper("closureRelease", Id("x"))}}},
	}

	assert.Equal(t, 7, Count(stmts))
}

func TestHelpersInFirstUseOrder(t *testing.T) {
	stmts := []Stmt{
		SetErr("p", "err", Helper("objectToNative", Id("self"))),
		While{Cond: Id("it"), Body: []Stmt{
			Set("v", Cast{Type: Managed("Flags"), X: Helper("flagsFromNative", Id("n"))}),
			Do{X: Helper("objectToNative", Id("other"))},
		}},
	}

	assert.Equal(t, []string{"objectToNative", "flagsFromNative"}, Helpers(stmts))
}
