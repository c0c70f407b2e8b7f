// The package used for reading and describing introspection repositories.
package metadata

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"

	"girbind/internal/errors"
	"girbind/internal/logger"
)

// XML namespaces used by introspection files
const (
	CoreNS = "http://www.gtk.org/introspection/core/1.0"
	CNS    = "http://www.gtk.org/introspection/c/1.0"
	GlibNS = "http://www.gtk.org/introspection/glib/1.0"
)

// Node is one element of the raw attribute tree.
type Node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []*Node
	Text     string
}

// Attr returns the value of the attribute with the given namespace and local name.
// An empty space matches only unprefixed attributes.
func (n *Node) Attr(space string, local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local && a.Name.Space == space {
			return a.Value, true
		}
	}
	return "", false
}

// Get returns the attribute value or an empty string.
func (n *Node) Get(space string, local string) string {
	v, _ := n.Attr(space, local)
	return v
}

// Flag reads a "0"/"1" attribute, returning def when it is absent.
func (n *Node) Flag(space string, local string, def bool) bool {
	v, ok := n.Attr(space, local)
	if !ok {
		return def
	}
	return v == "1" || v == "true"
}

// Find returns the first child element with the given core name.
func (n *Node) Find(local string) *Node {
	for _, c := range n.Children {
		if c.Name.Local == local && (c.Name.Space == CoreNS || c.Name.Space == "") {
			return c
		}
	}
	return nil
}

// FindAll returns the child elements with the given namespace and local name.
func (n *Node) FindAll(space string, local string) []*Node {
	var found []*Node
	for _, c := range n.Children {
		if c.Name.Local == local && (c.Name.Space == space || (space == CoreNS && c.Name.Space == "")) {
			found = append(found, c)
		}
	}
	return found
}

// Parse reads an XML document into a Node tree.
func Parse(r io.Reader) (*Node, error) {
	decoder := xml.NewDecoder(r)
	var stack []*Node
	var root *Node

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse introspection XML")
		}

		switch t := token.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			} else {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, errors.New("empty introspection document")
	}
	return root, nil
}

// GirReader converts introspection files into declaration records.
type GirReader struct {
	ignored map[string]bool
}

// Generates a new reader. Elements whose c:identifier or c:type is in ignored are dropped.
func NewReader(ignored ...string) *GirReader {
	reader := &GirReader{ignored: map[string]bool{}}
	for _, name := range ignored {
		reader.ignored[name] = true
	}
	return reader
}

// Reads the repository stored in the file under given path
func (reader *GirReader) ReadFile(path string) (*Repository, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	repo, err := reader.Read(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return repo, nil
}

// Reads a repository from r
func (reader *GirReader) Read(r io.Reader) (*Repository, error) {
	root, err := Parse(r)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != "repository" {
		return nil, errors.Newf("unexpected root element <%s>", root.Name.Local)
	}

	repo := &Repository{Version: root.Get("", "version")}
	for _, inc := range root.FindAll(CoreNS, "include") {
		repo.Includes = append(repo.Includes, Include{Name: inc.Get("", "name"), Version: inc.Get("", "version")})
	}
	for _, pkg := range root.FindAll(CoreNS, "package") {
		repo.Packages = append(repo.Packages, pkg.Get("", "name"))
	}
	for _, inc := range root.FindAll(CNS, "include") {
		repo.CIncludes = append(repo.CIncludes, inc.Get("", "name"))
	}
	for _, nsNode := range root.FindAll(CoreNS, "namespace") {
		ns, err := reader.readNamespace(nsNode)
		if err != nil {
			return nil, err
		}
		repo.Namespaces = append(repo.Namespaces, ns)
	}
	return repo, nil
}

func (reader *GirReader) readNamespace(node *Node) (Namespace, error) {
	ns := Namespace{
		Name:               node.Get("", "name"),
		Version:            node.Get("", "version"),
		SharedLibrary:      node.Get("", "shared-library"),
		SymbolPrefixes:     node.Get(CNS, "symbol-prefixes"),
		IdentifierPrefixes: node.Get(CNS, "identifier-prefixes"),
	}
	reader.removeIgnored(node)

	for _, n := range node.FindAll(CoreNS, "class") {
		class, err := reader.readClass(n)
		if err != nil {
			return ns, err
		}
		ns.Classes = append(ns.Classes, class)
	}
	for _, n := range node.FindAll(CoreNS, "interface") {
		iface, err := reader.readClass(n)
		if err != nil {
			return ns, err
		}
		ns.Interfaces = append(ns.Interfaces, iface)
	}
	for _, n := range node.FindAll(CoreNS, "record") {
		record, err := reader.readRecord(n)
		if err != nil {
			return ns, err
		}
		ns.Records = append(ns.Records, record)
	}
	for _, n := range node.FindAll(CoreNS, "enumeration") {
		e, err := readEnum(n, false)
		if err != nil {
			return ns, err
		}
		ns.Enums = append(ns.Enums, e)
	}
	for _, n := range node.FindAll(CoreNS, "bitfield") {
		e, err := readEnum(n, true)
		if err != nil {
			return ns, err
		}
		ns.Enums = append(ns.Enums, e)
	}
	for _, n := range node.FindAll(CoreNS, "callback") {
		cb, err := readFunction(n)
		if err != nil {
			return ns, err
		}
		cb.CIdentifier = n.Get(CNS, "type")
		ns.Callbacks = append(ns.Callbacks, cb)
	}
	for _, n := range node.FindAll(CoreNS, "function") {
		fn, err := readFunction(n)
		if err != nil {
			return ns, err
		}
		ns.Functions = append(ns.Functions, fn)
	}

	logger.Debugw("read namespace", "namespace", ns.Name, "classes", len(ns.Classes),
		"interfaces", len(ns.Interfaces), "records", len(ns.Records), "enums", len(ns.Enums))
	return ns, nil
}

// Removes every element in the ignore list, at any depth below node
func (reader *GirReader) removeIgnored(node *Node) {
	if len(reader.ignored) == 0 {
		return
	}
	kept := node.Children[:0]
	for _, child := range node.Children {
		if reader.ignored[child.Get(CNS, "identifier")] || reader.ignored[child.Get(CNS, "type")] {
			logger.Debugw("ignoring element", "element", child.Name.Local, "name", child.Get("", "name"))
			continue
		}
		reader.removeIgnored(child)
		kept = append(kept, child)
	}
	node.Children = kept
}

func (reader *GirReader) readClass(node *Node) (Class, error) {
	class := Class{
		Name:           node.Get("", "name"),
		CType:          node.Get(CNS, "type"),
		Parent:         node.Get("", "parent"),
		SymbolPrefix:   node.Get(CNS, "symbol-prefix"),
		GlibTypeName:   node.Get(GlibNS, "type-name"),
		GlibGetType:    node.Get(GlibNS, "get-type"),
		GlibTypeStruct: node.Get(GlibNS, "type-struct"),
		Fundamental:    node.Flag(GlibNS, "fundamental", false),
		Abstract:       node.Flag("", "abstract", false),
		Doc:            docOf(node),
	}
	if class.CType == "" {
		class.CType = class.GlibTypeName
	}
	for _, impl := range node.FindAll(CoreNS, "implements") {
		class.Implements = append(class.Implements, impl.Get("", "name"))
	}

	var err error
	if class.Constructors, err = readFunctions(node, "constructor"); err != nil {
		return class, err
	}
	if class.Methods, err = readFunctions(node, "method"); err != nil {
		return class, err
	}
	if class.Functions, err = readFunctions(node, "function"); err != nil {
		return class, err
	}

	for _, p := range node.FindAll(CoreNS, "property") {
		typ, err := readTypeRef(p)
		if err != nil {
			return class, errors.Wrapf(err, "property %s.%s", class.Name, p.Get("", "name"))
		}
		class.Properties = append(class.Properties, Property{
			Name:           p.Get("", "name"),
			Readable:       p.Flag("", "readable", true),
			Writable:       p.Flag("", "writable", false),
			Construct:      p.Flag("", "construct", false),
			ConstructOnly:  p.Flag("", "construct-only", false),
			Introspectable: p.Flag("", "introspectable", true),
			Transfer:       p.Get("", "transfer-ownership"),
			Type:           typ,
			Doc:            docOf(p),
		})
	}

	for _, s := range node.FindAll(GlibNS, "signal") {
		fn, err := readFunction(s)
		if err != nil {
			return class, errors.Wrapf(err, "signal %s::%s", class.Name, s.Get("", "name"))
		}
		class.Signals = append(class.Signals, Signal{
			Name:           fn.Name,
			When:           s.Get("", "when"),
			Introspectable: fn.Introspectable,
			ReturnValue:    fn.ReturnValue,
			Parameters:     fn.Parameters,
			Doc:            fn.Doc,
		})
	}
	return class, nil
}

func (reader *GirReader) readRecord(node *Node) (Record, error) {
	record := Record{
		Name:             node.Get("", "name"),
		CType:            node.Get(CNS, "type"),
		GlibTypeName:     node.Get(GlibNS, "type-name"),
		IsGTypeStructFor: node.Get(GlibNS, "is-gtype-struct-for"),
		Disguised:        node.Flag("", "disguised", false),
		Doc:              docOf(node),
	}

	var err error
	if record.Constructors, err = readFunctions(node, "constructor"); err != nil {
		return record, err
	}
	if record.Methods, err = readFunctions(node, "method"); err != nil {
		return record, err
	}
	if record.Functions, err = readFunctions(node, "function"); err != nil {
		return record, err
	}
	return record, nil
}

func readEnum(node *Node, bitfield bool) (Enum, error) {
	e := Enum{
		Name:         node.Get("", "name"),
		CType:        node.Get(CNS, "type"),
		GlibTypeName: node.Get(GlibNS, "type-name"),
		GlibGetType:  node.Get(GlibNS, "get-type"),
		Bitfield:     bitfield,
		Doc:          docOf(node),
	}
	for _, m := range node.FindAll(CoreNS, "member") {
		value, err := strconv.ParseInt(m.Get("", "value"), 10, 64)
		if err != nil {
			return e, errors.Wrapf(err, "member %s.%s has invalid value", e.Name, m.Get("", "name"))
		}
		e.Members = append(e.Members, Member{
			Name:        m.Get("", "name"),
			Value:       value,
			CIdentifier: m.Get(CNS, "identifier"),
			Nick:        m.Get(GlibNS, "nick"),
		})
	}
	return e, nil
}

func readFunctions(node *Node, local string) ([]Function, error) {
	var functions []Function
	for _, n := range node.FindAll(CoreNS, local) {
		fn, err := readFunction(n)
		if err != nil {
			return nil, err
		}
		functions = append(functions, fn)
	}
	return functions, nil
}

func readFunction(node *Node) (Function, error) {
	fn := Function{
		Name:           node.Get("", "name"),
		CIdentifier:    node.Get(CNS, "identifier"),
		Introspectable: node.Flag("", "introspectable", true),
		Throws:         node.Flag("", "throws", false),
		Deprecated:     node.Flag("", "deprecated", false),
		Doc:            docOf(node),
	}

	if ret := node.Find("return-value"); ret != nil {
		typ, err := readTypeRef(ret)
		if err != nil {
			return fn, errors.Wrapf(err, "return value of %s", fn.Name)
		}
		fn.ReturnValue = ReturnValue{
			Transfer: ret.Get("", "transfer-ownership"),
			Nullable: ret.Flag("", "nullable", false) || ret.Flag("", "allow-none", false),
			Type:     typ,
			Doc:      docOf(ret),
		}
	} else {
		fn.ReturnValue = ReturnValue{Type: TypeRef{Name: "none", CType: "void"}}
	}

	params := node.Find("parameters")
	if params == nil {
		return fn, nil
	}
	if inst := params.Find("instance-parameter"); inst != nil {
		p, err := readParameter(inst)
		if err != nil {
			return fn, errors.Wrapf(err, "instance parameter of %s", fn.Name)
		}
		fn.InstanceParameter = &p
	}
	for _, n := range params.FindAll(CoreNS, "parameter") {
		if n.Find("varargs") != nil {
			fn.Varargs = true
			continue
		}
		p, err := readParameter(n)
		if err != nil {
			return fn, errors.Wrapf(err, "parameter %s of %s", n.Get("", "name"), fn.Name)
		}
		fn.Parameters = append(fn.Parameters, p)
	}
	return fn, nil
}

func readParameter(node *Node) (Parameter, error) {
	p := Parameter{
		Name:      node.Get("", "name"),
		Direction: node.Get("", "direction"),
		Transfer:  node.Get("", "transfer-ownership"),
		Nullable:  node.Flag("", "nullable", false) || node.Flag("", "allow-none", false),
		Scope:     node.Get("", "scope"),
		Doc:       docOf(node),
	}
	if p.Direction == "" {
		p.Direction = "in"
	}

	var err error
	if p.Closure, err = optionalIndex(node, "closure"); err != nil {
		return p, err
	}
	if p.Destroy, err = optionalIndex(node, "destroy"); err != nil {
		return p, err
	}
	if p.Type, err = readTypeRef(node); err != nil {
		return p, err
	}
	return p, nil
}

// Reads the <type> or <array> child of node
func readTypeRef(node *Node) (TypeRef, error) {
	if arr := node.Find("array"); arr != nil {
		inner := arr.Find("type")
		if inner == nil {
			inner = arr.Find("array")
		}
		if inner == nil {
			return TypeRef{}, errors.New("array without element type")
		}
		elem, err := readTypeNode(inner)
		if err != nil {
			return TypeRef{}, err
		}
		info := &ArrayInfo{
			CType:          arr.Get(CNS, "type"),
			ZeroTerminated: arr.Flag("", "zero-terminated", false),
		}
		if info.Length, err = optionalIndex(arr, "length"); err != nil {
			return TypeRef{}, err
		}
		if size, ok := arr.Attr("", "fixed-size"); ok {
			if info.FixedSize, err = strconv.Atoi(size); err != nil {
				return TypeRef{}, errors.Wrapf(err, "invalid fixed-size %q", size)
			}
		}
		if info.Length == nil && info.FixedSize == 0 {
			// Arrays without explicit length default to zero termination
			if _, ok := arr.Attr("", "zero-terminated"); !ok {
				info.ZeroTerminated = true
			}
		}
		elem.Array = info
		return elem, nil
	}

	typ := node.Find("type")
	if typ == nil {
		if node.Find("varargs") != nil {
			return TypeRef{Name: "va_list"}, nil
		}
		return TypeRef{Name: "none", CType: "void"}, nil
	}
	return readTypeNode(typ)
}

func readTypeNode(node *Node) (TypeRef, error) {
	if node.Name.Local == "array" {
		return TypeRef{}, errors.New("nested arrays are not supported")
	}
	ref := TypeRef{Name: node.Get("", "name"), CType: node.Get(CNS, "type")}
	for _, inner := range node.FindAll(CoreNS, "type") {
		t, err := readTypeNode(inner)
		if err != nil {
			return TypeRef{}, err
		}
		ref.Inner = append(ref.Inner, t)
	}
	return ref, nil
}

func optionalIndex(node *Node, local string) (*int, error) {
	v, ok := node.Attr("", local)
	if !ok {
		return nil, nil
	}
	index, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s index %q", local, v)
	}
	return &index, nil
}

func docOf(node *Node) string {
	if doc := node.Find("doc"); doc != nil {
		return doc.Text
	}
	return ""
}
