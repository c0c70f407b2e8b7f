// Package types describes how values cross between native and managed code.
//
// A Template is the registered description of one type. A Value binds a
// template to a concrete parameter or return value and carries the
// per-occurrence attributes: name, ownership transfer, nullability, callback
// scope and relational links to sibling parameters. Values are immutable;
// the With* methods return modified copies.
package types

import (
	"strings"
	"unicode"

	"girbind/internal/stmt"
)

// Kind is the category of a type descriptor.
type Kind int

const (
	KindVoid Kind = iota
	KindPrimitive
	KindPrimitiveArray
	KindString
	KindEnum
	KindBitfield
	KindObject
	KindInterface
	KindRecord
	KindObjectArray
	KindCallback
	KindClosure
	KindDestroy
	KindList
	KindSList
	KindHashTable
	KindGValue
	KindParamSpec
)

var kindNames = [...]string{
	"void", "primitive", "primitive-array", "string", "enum", "bitfield", "object",
	"interface", "record", "object-array", "callback", "closure", "destroy", "list",
	"slist", "hash-table", "value", "param-spec",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Container reports whether values of this kind carry inner descriptors.
func (k Kind) Container() bool {
	return k == KindList || k == KindSList || k == KindHashTable
}

// Array reports whether values of this kind are arrays.
func (k Kind) Array() bool {
	return k == KindPrimitiveArray || k == KindObjectArray
}

// Transfer is the ownership transfer of a value crossing the boundary.
type Transfer int

const (
	TransferNone Transfer = iota
	TransferContainer
	TransferFull
)

// ParseTransfer reads a transfer-ownership attribute value.
func ParseTransfer(s string) Transfer {
	switch s {
	case "full":
		return TransferFull
	case "container":
		return TransferContainer
	default:
		return TransferNone
	}
}

// Scope is the lifetime of a callback passed to native code.
type Scope string

const (
	ScopeNone     Scope = ""
	ScopeCall     Scope = "call"
	ScopeAsync    Scope = "async"
	ScopeNotified Scope = "notified"
	ScopeForever  Scope = "forever"
)

// CallOnce reports whether the closure cell is released after its first invocation.
func (s Scope) CallOnce() bool {
	return s == ScopeAsync
}

// Template is a registered type descriptor. Templates are owned by a
// Registry and never modified after registration.
type Template struct {
	Kind Kind
	// Introspection name, qualified for named types: "Gtk.Widget", "gint"
	Name string
	// Native spelling: "GtkWidget*", "gint"
	Native string
	// Managed type
	Managed stmt.TypeRef
	// Wire signature, JNI letter style: "I", "Lstring;", "[I", "LGtk/Widget;"
	Signature string
	Default   stmt.Expr
	// Element template of array kinds
	Elem *Template
	// Native width in bits of primitives, 0 when not applicable
	Bits int
	// Copy and free functions of records, may be empty
	CopyFunc string
	FreeFunc string
}

// NativeType returns the native type of the template.
func (t *Template) NativeType() stmt.TypeRef {
	return stmt.NativeType(t.Native)
}

// Bind creates a value of this template with default attributes.
func (t *Template) Bind(name string) Value {
	return Value{T: t, Name: name}
}

// Link is a relational reference from one value to a sibling parameter.
type Link struct {
	Index  int
	Name   string
	Native string
	Scope  Scope
}

// Value is a template bound to one parameter or return value.
type Value struct {
	T        *Template
	Name     string
	Transfer Transfer
	Nullable bool
	Scope    Scope
	Inner    []Value
	// Set on arrays measured by a sibling length parameter
	Length *Link
	// Set on length parameters, points back at the measured array
	Array *Link
	// Set on closure values carrying a sibling callback; nil for self closures
	Callback *Link
	Doc      string
}

// Kind returns the kind of the value's template.
func (v Value) Kind() Kind {
	if v.T == nil {
		return KindVoid
	}
	return v.T.Kind
}

// IsVoid reports whether the value is an absent return value.
func (v Value) IsVoid() bool {
	return v.Kind() == KindVoid
}

// IsLength reports whether the value measures a sibling array.
func (v Value) IsLength() bool {
	return v.Array != nil
}

// IsAuxiliary reports whether the value only exists to carry closure data.
func (v Value) IsAuxiliary() bool {
	return v.Kind() == KindClosure || v.Kind() == KindDestroy
}

// WithTransfer returns a copy of v with transfer t.
func (v Value) WithTransfer(t Transfer) Value {
	v.Transfer = t
	return v
}

// WithNullable returns a copy of v with nullability n.
func (v Value) WithNullable(n bool) Value {
	v.Nullable = n
	return v
}

// WithScope returns a copy of v with callback scope s.
func (v Value) WithScope(s Scope) Value {
	v.Scope = s
	return v
}

// WithName returns a copy of v renamed to name.
func (v Value) WithName(name string) Value {
	v.Name = name
	return v
}

// WithDoc returns a copy of v with documentation doc.
func (v Value) WithDoc(doc string) Value {
	v.Doc = doc
	return v
}

// WithLength returns a copy of array v measured by the length value at index.
func (v Value) WithLength(index int, length Value) Value {
	v.Length = &Link{Index: index, Name: length.Name, Native: length.T.Native}
	return v
}

// WithArray returns a copy of length value v pointing back at the array at index.
func (v Value) WithArray(index int, array Value) Value {
	v.Array = &Link{Index: index, Name: array.Name, Native: array.T.Native}
	return v
}

// Shift returns a copy of v with every link index moved by offset.
func (v Value) Shift(offset int) Value {
	shift := func(l *Link) *Link {
		if l == nil {
			return nil
		}
		c := *l
		c.Index += offset
		return &c
	}
	v.Length = shift(v.Length)
	v.Array = shift(v.Array)
	v.Callback = shift(v.Callback)
	return v
}

// ManagedType returns the managed type of the value, composed from inner
// values for containers.
func (v Value) ManagedType() stmt.TypeRef {
	switch v.Kind() {
	case KindList, KindSList:
		return stmt.SliceOf(v.Inner[0].ManagedType())
	case KindHashTable:
		return stmt.MapOf(v.Inner[0].ManagedType(), v.Inner[1].ManagedType())
	case KindVoid:
		return stmt.TypeRef{}
	}
	return v.T.Managed
}

// NativeType returns the native type of the value.
func (v Value) NativeType() stmt.TypeRef {
	if v.T == nil {
		return stmt.TypeRef{}
	}
	return v.T.NativeType()
}

// Signature returns the wire signature of the value.
func (v Value) Signature() string {
	if v.T == nil {
		return "V"
	}
	if !v.Kind().Container() {
		return v.T.Signature
	}
	var inner []string
	for _, in := range v.Inner {
		inner = append(inner, in.Signature())
	}
	return strings.TrimSuffix(v.T.Signature, ";") + "<" + strings.Join(inner, ",") + ">;"
}

// ManagedVar is the managed-side variable name of the value.
func (v Value) ManagedVar() string {
	return Identifier(v.Name)
}

// NativeVar is the native-side variable name of the value.
func (v Value) NativeVar() string {
	return NativeVar(v.Name)
}

// NativeVar returns the native-side variable name for a parameter name.
func NativeVar(name string) string {
	return "c" + Exported(Identifier(name))
}

// Identifier converts a snake, kebab or dotted name into a lower camel case
// identifier that does not collide with a keyword.
func Identifier(name string) string {
	var b strings.Builder
	upper := false
	for i, r := range name {
		switch {
		case r == '_' || r == '-' || r == '.' || r == ':' || r == ' ':
			upper = b.Len() > 0
		case upper:
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		case i == 0 && unicode.IsDigit(r):
			b.WriteRune('_')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	id := b.String()
	if id == "" {
		return "_"
	}
	if reserved[id] {
		return id + "_"
	}
	return id
}

// Exported upper-cases the first letter of an identifier.
func Exported(id string) string {
	if id == "" {
		return id
	}
	r := []rune(id)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// TitleCase turns "visible-child" into "VisibleChild".
func TitleCase(name string) string {
	return Exported(Identifier(name))
}

var reserved = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
	"err": true, "append": true, "len": true, "make": true, "new": true,
	"string": true, "error": true, "copy": true, "cap": true, "close": true,
}
