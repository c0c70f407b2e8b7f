package types

import (
	"sort"
	"strings"
	"sync"

	"girbind/internal/errors"
	"girbind/internal/stmt"
)

// Registry maps introspection type names to templates.
type Registry struct {
	mu        sync.RWMutex
	templates map[string][]*Template
	arrays    map[string]*Template
	aliases   map[string]string
	ignored   map[string]bool
}

// NewRegistry creates a registry preloaded with the standard types.
func NewRegistry() *Registry {
	r := &Registry{
		templates: map[string][]*Template{},
		arrays:    map[string]*Template{},
		aliases:   map[string]string{},
		ignored:   map[string]bool{},
	}
	r.Register(StandardTypes()...)
	return r
}

// Register adds templates. A template with the same introspection and native
// names as an existing one replaces it. Array templates are keyed by their
// element name.
func (r *Registry) Register(templates ...*Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range templates {
		if t.Kind.Array() {
			r.arrays[t.Elem.Name] = t
			continue
		}
		existing := r.templates[t.Name]
		replaced := false
		for i, e := range existing {
			if e.Native == t.Native {
				existing[i] = t
				replaced = true
			}
		}
		if !replaced {
			r.templates[t.Name] = append(existing, t)
		}
	}
}

// RegisterEnumAliases adds alternative names resolving to enum templates.
func (r *Registry) RegisterEnumAliases(aliases map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for alias, name := range aliases {
		r.aliases[alias] = name
	}
}

// RegisterIgnoredTypes marks type names whose declarations are skipped silently.
func (r *Registry) RegisterIgnoredTypes(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.ignored[name] = true
	}
}

// IsIgnored reports whether name was registered as ignored.
func (r *Registry) IsIgnored(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ignored[name]
}

// Lookup resolves a type reference. When isArray is set only array templates
// over name are considered. Otherwise the template whose native spelling
// matches native is preferred, falling back to the first registered one.
func (r *Registry) Lookup(name string, native string, isArray bool) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if alias, ok := r.aliases[name]; ok {
		name = alias
	}

	if isArray {
		if t, ok := r.arrays[name]; ok {
			return t, nil
		}
		return nil, errors.Wrapf(errors.ErrUnknownType, "array of %q", name)
	}

	candidates := r.templates[name]
	if len(candidates) == 0 {
		return nil, errors.Wrapf(errors.ErrUnknownType, "%q", name)
	}
	wanted := normalizeNative(native)
	for _, t := range candidates {
		if normalizeNative(t.Native) == wanted {
			return t, nil
		}
	}
	return candidates[0], nil
}

// Names returns all registered non-array type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeNative(s string) string {
	return strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "const "), " ", "")
}

// NewContainer binds a container template to inner element values. Inner
// values are renamed after the container so their variables stay unique.
func NewContainer(t *Template, name string, transfer Transfer, inner ...Value) (Value, error) {
	want := 1
	if t.Kind == KindHashTable {
		want = 2
	}
	if !t.Kind.Container() {
		return Value{}, errors.AssertionFailedf("%s is not a container", t.Name)
	}
	if len(inner) != want {
		return Value{}, errors.Wrapf(errors.ErrUnknownType, "%s %q needs %d element types, got %d",
			t.Name, name, want, len(inner))
	}

	// Hash tables free their own elements; lists hand them over with full transfer
	innerTransfer := TransferNone
	if t.Kind != KindHashTable && transfer == TransferFull {
		innerTransfer = TransferFull
	}
	v := t.Bind(name).WithTransfer(transfer)
	for i, in := range inner {
		v.Inner = append(v.Inner, in.WithName(name+"_"+string(rune('0'+i))).WithTransfer(innerTransfer))
	}
	return v, nil
}

type primitive struct {
	native    string
	managed   string
	signature string
	bits      int
}

// Standard primitive types. Managed types match native widths on LP64 targets.
var primitives = []primitive{
	{"gboolean", "bool", "Z", 32},
	{"gchar", "int8", "B", 8},
	{"guchar", "uint8", "B", 8},
	{"gint8", "int8", "B", 8},
	{"guint8", "uint8", "B", 8},
	{"gshort", "int16", "S", 16},
	{"gushort", "uint16", "S", 16},
	{"gint16", "int16", "S", 16},
	{"guint16", "uint16", "S", 16},
	{"gint", "int32", "I", 32},
	{"guint", "uint32", "I", 32},
	{"gint32", "int32", "I", 32},
	{"guint32", "uint32", "I", 32},
	{"gunichar", "rune", "I", 32},
	{"glong", "int64", "J", 64},
	{"gulong", "uint64", "J", 64},
	{"gint64", "int64", "J", 64},
	{"guint64", "uint64", "J", 64},
	{"gsize", "uint64", "J", 64},
	{"gssize", "int64", "J", 64},
	{"goffset", "int64", "J", 64},
	{"GType", "uint64", "J", 64},
	{"gfloat", "float32", "F", 32},
	{"gdouble", "float64", "D", 64},
	{"gpointer", "", "J", 64},
	{"gconstpointer", "", "J", 64},
}

// StandardTypes returns fresh templates for the built-in types.
func StandardTypes() []*Template {
	var out []*Template
	for _, p := range primitives {
		t := &Template{
			Kind:      KindPrimitive,
			Name:      p.native,
			Native:    p.native,
			Managed:   stmt.Managed(p.managed),
			Signature: p.signature,
			Bits:      p.bits,
			Default:   stmt.Int(0),
		}
		switch p.managed {
		case "bool":
			t.Default = stmt.Lit{Value: false}
		case "":
			t.Managed = unsafePointer
			t.Default = stmt.Nil{}
		}
		out = append(out, t)
		// Booleans and pointers differ in size on both sides, no bulk copy
		if p.managed != "bool" && p.managed != "" {
			out = append(out, PrimitiveArrayOf(t))
		}
	}

	str := func(name string, native string) *Template {
		return &Template{
			Kind: KindString, Name: name, Native: native,
			Managed: stmt.Managed("string"), Signature: "Lstring;", Default: stmt.Lit{Value: ""},
		}
	}
	utf8 := str("utf8", "gchar*")
	out = append(out, utf8, str("utf8", "const gchar*"), str("utf8", "char*"), str("filename", "gchar*"))
	out = append(out, ObjectArrayOf(utf8))

	out = append(out,
		&Template{Kind: KindVoid, Name: "none", Native: "void", Signature: "V", Default: stmt.Nil{}},
		&Template{Kind: KindGValue, Name: "GObject.Value", Native: "GValue*", Managed: stmt.Managed("any"),
			Signature: "Lany;", Default: stmt.Nil{}},
		&Template{Kind: KindParamSpec, Name: "GObject.ParamSpec", Native: "GParamSpec*",
			Managed: stmt.Qualified("unsafe", "Pointer"), Signature: "J", Default: stmt.Nil{}},
		&Template{Kind: KindList, Name: "GLib.List", Native: "GList*", Signature: "Llist;", Default: stmt.Nil{}},
		&Template{Kind: KindSList, Name: "GLib.SList", Native: "GSList*", Signature: "Llist;", Default: stmt.Nil{}},
		&Template{Kind: KindHashTable, Name: "GLib.HashTable", Native: "GHashTable*", Signature: "Lmap;", Default: stmt.Nil{}},
		&Template{Kind: KindDestroy, Name: "GLib.DestroyNotify", Native: "GDestroyNotify", Signature: "", Default: stmt.Nil{}},
	)
	return out
}

// PrimitiveArrayOf returns the array counterpart of primitive elem.
func PrimitiveArrayOf(elem *Template) *Template {
	return &Template{
		Kind:      KindPrimitiveArray,
		Name:      elem.Name,
		Native:    elem.Native + "*",
		Managed:   stmt.SliceOf(elem.Managed),
		Signature: "[" + elem.Signature,
		Elem:      elem,
		Default:   stmt.Nil{},
	}
}

// ObjectArrayOf returns the array counterpart of a record, enum, string or object elem.
func ObjectArrayOf(elem *Template) *Template {
	return &Template{
		Kind:      KindObjectArray,
		Name:      elem.Name,
		Native:    elem.Native + "*",
		Managed:   stmt.SliceOf(elem.Managed),
		Signature: "[" + elem.Signature,
		Elem:      elem,
		Default:   stmt.Nil{},
	}
}

func namedSignature(name string) string {
	return "L" + strings.ReplaceAll(name, ".", "/") + ";"
}

// Enum returns the template of enumeration name, managed as a named integer type.
func Enum(name string, native string, managed string) *Template {
	return &Template{
		Kind: KindEnum, Name: name, Native: native, Managed: stmt.Managed(managed),
		Signature: namedSignature(name), Default: stmt.Int(0),
	}
}

// Bitfield returns the template of bitfield name, managed as a set of flags.
// Every non-zero member must be a single bit.
func Bitfield(name string, native string, managed string, members map[string]int64) (*Template, error) {
	for member, value := range members {
		if value != 0 && value&(value-1) != 0 {
			return nil, errors.Wrapf(errors.ErrInvalidBitfield, "%s.%s = %#x is not a single bit", name, member, value)
		}
	}
	return &Template{
		Kind: KindBitfield, Name: name, Native: native, Managed: stmt.SliceOf(stmt.Managed(managed)),
		Signature: "[" + namedSignature(name), Default: stmt.Nil{},
	}, nil
}

// Object returns the template of class name.
func Object(name string, native string, managed string) *Template {
	return &Template{
		Kind: KindObject, Name: name, Native: native, Managed: stmt.Ptr(stmt.Managed(managed)),
		Signature: namedSignature(name), Default: stmt.Nil{},
	}
}

// Interface returns the template of interface name.
func Interface(name string, native string, managed string) *Template {
	t := Object(name, native, managed)
	t.Kind = KindInterface
	return t
}

// Record returns the template of an opaque record with optional copy and free functions.
func Record(name string, native string, managed string, copyFunc string, freeFunc string) *Template {
	return &Template{
		Kind: KindRecord, Name: name, Native: native, Managed: stmt.Ptr(stmt.Managed(managed)),
		Signature: namedSignature(name), Default: stmt.Nil{}, CopyFunc: copyFunc, FreeFunc: freeFunc,
	}
}

// Callback returns the template of callback type name.
func Callback(name string, native string, managed string) *Template {
	return &Template{
		Kind: KindCallback, Name: name, Native: native, Managed: stmt.Managed(managed),
		Signature: namedSignature(name), Default: stmt.Nil{},
	}
}

// Closure returns the template of user data carrying managed value of type managed.
func Closure(managed stmt.TypeRef) *Template {
	return &Template{Kind: KindClosure, Name: "gpointer", Native: "gpointer", Managed: managed, Default: stmt.Nil{}}
}
