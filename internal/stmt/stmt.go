// Package stmt holds the abstract statements produced by type transforms.
//
// Statements are language neutral in shape: the generation package lowers
// them to target source. Native symbols are kept apart from managed ones so
// the back-end can qualify them.
package stmt

import (
	"fmt"
	"strings"
)

// TypeRef describes a managed or native type expression.
type TypeRef struct {
	Name    string
	Qual    string // import path of a managed named type, empty for builtins and local types
	Native  bool
	Pointer int
	Slice   bool
	Map     bool
	Func    bool
	Key     *TypeRef
	Elem    *TypeRef
}

// Managed returns a managed type with the given name.
func Managed(name string) TypeRef {
	return TypeRef{Name: name}
}

// Qualified returns a managed type living in another package.
func Qualified(path string, name string) TypeRef {
	return TypeRef{Name: name, Qual: path}
}

// NativeType parses a native type spelling such as "const gchar*" into a TypeRef.
func NativeType(spelling string) TypeRef {
	s := strings.TrimSpace(spelling)
	s = strings.TrimPrefix(s, "const ")
	pointers := 0
	for strings.HasSuffix(s, "*") {
		pointers++
		s = strings.TrimSpace(strings.TrimSuffix(s, "*"))
	}
	return TypeRef{Name: s, Native: true, Pointer: pointers}
}

// Ptr returns a pointer to t.
func Ptr(t TypeRef) TypeRef {
	t.Pointer++
	return t
}

// Deref drops one pointer level of t.
func (t TypeRef) Deref() TypeRef {
	if t.Pointer > 0 {
		t.Pointer--
	}
	return t
}

// SliceOf returns []elem.
func SliceOf(elem TypeRef) TypeRef {
	return TypeRef{Slice: true, Elem: &elem}
}

// MapOf returns map[key]elem.
func MapOf(key TypeRef, elem TypeRef) TypeRef {
	return TypeRef{Map: true, Key: &key, Elem: &elem}
}

// IsZero reports whether t is the empty type (void).
func (t TypeRef) IsZero() bool {
	return t.Name == "" && !t.Slice && !t.Map && !t.Func
}

func (t TypeRef) String() string {
	prefix := strings.Repeat("*", t.Pointer)
	switch {
	case t.Slice:
		return prefix + "[]" + t.Elem.String()
	case t.Map:
		return prefix + fmt.Sprintf("map[%s]%s", t.Key.String(), t.Elem.String())
	case t.Native:
		return prefix + "C." + t.Name
	case t.Qual != "":
		return prefix + t.Qual[strings.LastIndex(t.Qual, "/")+1:] + "." + t.Name
	default:
		return prefix + t.Name
	}
}

// Expr is an expression node.
type Expr interface{ expr() }

type (
	// Ident names a local variable or parameter.
	Ident string
	// Native names a symbol in the native namespace.
	Native string
	// Lit is a literal constant.
	Lit struct{ Value interface{} }
	// Nil is the null value.
	Nil struct{}
	// Qual names a symbol exported by a managed package.
	Qual struct{ Path, Name string }
	// Call calls an arbitrary callee.
	Call struct {
		Func Expr
		Args []Expr
	}
	// HelperCall calls a named helper routine from the helper registry.
	HelperCall struct {
		Name string
		Args []Expr
	}
	// Cast converts X to Type.
	Cast struct {
		Type TypeRef
		X    Expr
	}
	Unary struct {
		Op string
		X  Expr
	}
	Binary struct {
		Op   string
		X, Y Expr
	}
	Selector struct {
		X    Expr
		Name string
	}
	MethodCall struct {
		X    Expr
		Name string
		Args []Expr
	}
	Index struct {
		X, Index Expr
	}
	AddrOf struct{ X Expr }
	Deref  struct{ X Expr }
	// Make allocates a slice or map of Type.
	Make struct {
		Type TypeRef
		Args []Expr
	}
	// Composite is an empty composite literal of Type.
	Composite struct{ Type TypeRef }
	// Assert is a type assertion of X to Type.
	Assert struct {
		X    Expr
		Type TypeRef
	}
)

func (Ident) expr()      {}
func (Native) expr()     {}
func (Lit) expr()        {}
func (Nil) expr()        {}
func (Qual) expr()       {}
func (Call) expr()       {}
func (HelperCall) expr() {}
func (Cast) expr()       {}
func (Unary) expr()      {}
func (Binary) expr()     {}
func (Selector) expr()   {}
func (MethodCall) expr() {}
func (Index) expr()      {}
func (AddrOf) expr()     {}
func (Deref) expr()      {}
func (Make) expr()       {}
func (Composite) expr()  {}
func (Assert) expr()     {}

// Stmt is a statement node.
type Stmt interface{ stmt() }

type (
	// Decl introduces a variable of Type.
	Decl struct {
		Name string
		Type TypeRef
	}
	// Assign stores Value into Targets. Op is "=", ":=" or a compound operator.
	Assign struct {
		Targets []Expr
		Op      string
		Value   Expr
	}
	// Do evaluates an expression for its side effects.
	Do struct{ X Expr }
	// Check aborts the enclosing operation if the error variable Err is set.
	Check struct{ Err string }
	If    struct {
		Cond Expr
		Then []Stmt
		Else []Stmt
	}
	While struct {
		Cond Expr
		Body []Stmt
	}
	Range struct {
		Key, Value string
		Over       Expr
		Body       []Stmt
	}
	// Defer runs Body when the enclosing operation returns.
	Defer  struct{ Body []Stmt }
	Return struct{ Values []Expr }
)

func (Decl) stmt()   {}
func (Assign) stmt() {}
func (Do) stmt()     {}
func (Check) stmt()  {}
func (If) stmt()     {}
func (While) stmt()  {}
func (Range) stmt()  {}
func (Defer) stmt()  {}
func (Return) stmt() {}

// Id is shorthand for Ident.
func Id(name string) Ident { return Ident(name) }

// Int returns an integer literal.
func Int(v int) Lit { return Lit{Value: v} }

// Set assigns value to name.
func Set(name string, value Expr) Assign {
	return Assign{Targets: []Expr{Ident(name)}, Op: "=", Value: value}
}

// SetOp applies a compound assignment such as "|=".
func SetOp(name string, op string, value Expr) Assign {
	return Assign{Targets: []Expr{Ident(name)}, Op: op, Value: value}
}

// SetErr assigns a two-result call to name and the error variable err.
func SetErr(name string, err string, value Expr) Assign {
	return Assign{Targets: []Expr{Ident(name), Ident(err)}, Op: "=", Value: value}
}

// NativeCall calls a native function.
func NativeCall(name string, args ...Expr) Call {
	return Call{Func: Native(name), Args: args}
}

// Helper calls a helper routine.
func Helper(name string, args ...Expr) HelperCall {
	return HelperCall{Name: name, Args: args}
}

// Method calls a method on x.
func Method(x Expr, name string, args ...Expr) MethodCall {
	return MethodCall{X: x, Name: name, Args: args}
}

// Count returns the number of statements in stmts including nested bodies.
func Count(stmts []Stmt) int {
	n := 0
	for _, s := range stmts {
		n++
		switch s := s.(type) {
		case If:
			n += Count(s.Then) + Count(s.Else)
		case While:
			n += Count(s.Body)
		case Range:
			n += Count(s.Body)
		case Defer:
			n += Count(s.Body)
		}
	}
	return n
}

// Helpers returns the names of helper routines called anywhere in stmts, in
// order of first use.
func Helpers(stmts []Stmt) []string {
	var names []string
	seen := map[string]bool{}
	var visitExpr func(e Expr)
	visitExpr = func(e Expr) {
		switch e := e.(type) {
		case HelperCall:
			if !seen[e.Name] {
				seen[e.Name] = true
				names = append(names, e.Name)
			}
			for _, a := range e.Args {
				visitExpr(a)
			}
		case Call:
			visitExpr(e.Func)
			for _, a := range e.Args {
				visitExpr(a)
			}
		case MethodCall:
			visitExpr(e.X)
			for _, a := range e.Args {
				visitExpr(a)
			}
		case Cast:
			visitExpr(e.X)
		case Unary:
			visitExpr(e.X)
		case Binary:
			visitExpr(e.X)
			visitExpr(e.Y)
		case Selector:
			visitExpr(e.X)
		case Index:
			visitExpr(e.X)
			visitExpr(e.Index)
		case AddrOf:
			visitExpr(e.X)
		case Deref:
			visitExpr(e.X)
		case Assert:
			visitExpr(e.X)
		case Make:
			for _, a := range e.Args {
				visitExpr(a)
			}
		}
	}
	var visit func(stmts []Stmt)
	visit = func(stmts []Stmt) {
		for _, s := range stmts {
			switch s := s.(type) {
			case Assign:
				for _, t := range s.Targets {
					visitExpr(t)
				}
				visitExpr(s.Value)
			case Do:
				visitExpr(s.X)
			case If:
				visitExpr(s.Cond)
				visit(s.Then)
				visit(s.Else)
			case While:
				visitExpr(s.Cond)
				visit(s.Body)
			case Range:
				visitExpr(s.Over)
				visit(s.Body)
			case Defer:
				visit(s.Body)
			case Return:
				for _, v := range s.Values {
					visitExpr(v)
				}
			}
		}
	}
	visit(stmts)
	return names
}
