package metadata

// Repository is one parsed introspection file.
type Repository struct {
	Version    string
	Includes   []Include
	Packages   []string
	CIncludes  []string
	Namespaces []Namespace
}

// Include is a dependency on another repository.
type Include struct {
	Name    string
	Version string
}

// Namespace groups the declarations of one library.
type Namespace struct {
	Name               string
	Version            string
	SharedLibrary      string
	SymbolPrefixes     string
	IdentifierPrefixes string
	Classes            []Class
	Interfaces         []Class
	Records            []Record
	Enums              []Enum
	Callbacks          []Function
	Functions          []Function
}

// Class describes a class or an interface.
type Class struct {
	Name           string
	CType          string
	Parent         string
	SymbolPrefix   string
	GlibTypeName   string
	GlibGetType    string
	GlibTypeStruct string
	Fundamental    bool
	Abstract       bool
	Implements     []string
	Constructors   []Function
	Methods        []Function
	Functions      []Function
	Properties     []Property
	Signals        []Signal
	Doc            string
}

// Record describes an opaque or boxed structure.
type Record struct {
	Name             string
	CType            string
	GlibTypeName     string
	IsGTypeStructFor string
	Disguised        bool
	Constructors     []Function
	Methods          []Function
	Functions        []Function
	Doc              string
}

// Enum describes an enumeration or a bitfield.
type Enum struct {
	Name         string
	CType        string
	GlibTypeName string
	GlibGetType  string
	Bitfield     bool
	Members      []Member
	Doc          string
}

// Member is one enumeration value.
type Member struct {
	Name        string
	Value       int64
	CIdentifier string
	Nick        string
}

// Function describes a constructor, method, function or callback type.
type Function struct {
	Name              string
	CIdentifier       string
	Introspectable    bool
	Throws            bool
	Varargs           bool
	Deprecated        bool
	ReturnValue       ReturnValue
	InstanceParameter *Parameter
	Parameters        []Parameter
	Doc               string
}

// Property is a declared object property.
type Property struct {
	Name           string
	Readable       bool
	Writable       bool
	Construct      bool
	ConstructOnly  bool
	Introspectable bool
	Transfer       string
	Type           TypeRef
	Doc            string
}

// Signal is a declared object signal.
type Signal struct {
	Name           string
	When           string
	Introspectable bool
	ReturnValue    ReturnValue
	Parameters     []Parameter
	Doc            string
}

// ReturnValue describes the value returned by a function.
type ReturnValue struct {
	Transfer string
	Nullable bool
	Type     TypeRef
	Doc      string
}

// Parameter describes one raw parameter with its relational attributes.
// Closure, Destroy and Type.Array.Length are indices into the parameter list
// of the enclosing function, not counting the instance parameter.
type Parameter struct {
	Name      string
	Direction string
	Transfer  string
	Nullable  bool
	Scope     string
	Closure   *int
	Destroy   *int
	Type      TypeRef
	Doc       string
}

// TypeRef references a type by its introspection and native names.
type TypeRef struct {
	Name  string
	CType string
	Array *ArrayInfo
	Inner []TypeRef
}

// ArrayInfo is set when a type reference is an array.
type ArrayInfo struct {
	CType          string
	Length         *int
	ZeroTerminated bool
	FixedSize      int
}

// IsArray reports whether the reference is an array.
func (t TypeRef) IsArray() bool {
	return t.Array != nil
}

// FullName prefixes name with namespace unless it is already qualified or
// a fundamental type name.
func FullName(namespace string, name string) string {
	if namespace == "" || name == "" {
		return name
	}
	for _, c := range name {
		if c == '.' {
			return name
		}
	}
	if fundamentalNames[name] {
		return name
	}
	return namespace + "." + name
}

var fundamentalNames = map[string]bool{
	"none": true, "utf8": true, "filename": true, "gpointer": true, "gconstpointer": true,
	"gboolean": true, "gchar": true, "guchar": true, "gint8": true, "guint8": true,
	"gshort": true, "gushort": true, "gint16": true, "guint16": true, "gint": true,
	"guint": true, "gint32": true, "guint32": true, "glong": true, "gulong": true,
	"gint64": true, "guint64": true, "gsize": true, "gssize": true, "goffset": true,
	"gfloat": true, "gdouble": true, "gunichar": true, "GType": true, "va_list": true,
}
