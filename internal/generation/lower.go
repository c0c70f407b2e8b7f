package generation

import (
	"fmt"
	"strings"

	"girbind/internal"
	"girbind/internal/stmt"
	"girbind/internal/types"

	"github.com/dave/jennifer/jen"
)

// lowerer renders abstract statements as Go source. How a Check aborts
// depends on the function being generated, so each function body gets its
// own lowerer.
type lowerer struct {
	// onFailure renders the body run when a checked error is set
	onFailure func(err string) []jen.Code
}

// returning aborts by returning zeros followed by the error.
func returning(zeros ...jen.Code) lowerer {
	return lowerer{onFailure: func(err string) []jen.Code {
		return []jen.Code{jen.Return(append(append([]jen.Code{}, zeros...), jen.Id(err))...)}
	}}
}

// reporting aborts by reporting the error and returning zero.
func reporting(zero jen.Code) lowerer {
	return lowerer{onFailure: func(err string) []jen.Code {
		out := []jen.Code{jen.Qual(types.BridgePath, "Report").Call(jen.Id(err))}
		if zero == nil {
			return append(out, jen.Return())
		}
		return append(out, jen.Return(zero))
	}}
}

func lowerType(t stmt.TypeRef) *jen.Statement {
	var s *jen.Statement
	switch {
	case t.Slice:
		s = jen.Index().Add(lowerType(*t.Elem))
	case t.Map:
		s = jen.Map(lowerType(*t.Key)).Add(lowerType(*t.Elem))
	case t.Native:
		s = jen.Qual("C", t.Name)
	case t.Qual != "":
		s = jen.Qual(t.Qual, t.Name)
	default:
		s = jen.Id(t.Name)
	}
	if t.Pointer > 0 {
		return jen.Op(strings.Repeat("*", t.Pointer)).Add(s)
	}
	return s
}

func (l lowerer) exprs(es []stmt.Expr) []jen.Code {
	out := make([]jen.Code, 0, len(es))
	for _, e := range es {
		out = append(out, l.expr(e))
	}
	return out
}

func (l lowerer) expr(e stmt.Expr) *jen.Statement {
	switch e := e.(type) {
	case stmt.Ident:
		return jen.Id(string(e))
	case stmt.Native:
		return jen.Qual("C", string(e))
	case stmt.Lit:
		return jen.Lit(e.Value)
	case stmt.Nil:
		return jen.Nil()
	case stmt.Qual:
		return jen.Qual(e.Path, e.Name)
	case stmt.Call:
		return l.expr(e.Func).Call(l.exprs(e.Args)...)
	case stmt.HelperCall:
		return jen.Id(e.Name).Call(l.exprs(e.Args)...)
	case stmt.Cast:
		if e.Type.Pointer > 0 {
			return jen.Parens(lowerType(e.Type)).Call(l.expr(e.X))
		}
		return lowerType(e.Type).Call(l.expr(e.X))
	case stmt.Unary:
		return jen.Op(e.Op).Add(l.operand(e.X))
	case stmt.Binary:
		return l.operand(e.X).Op(e.Op).Add(l.operand(e.Y))
	case stmt.Selector:
		return l.operand(e.X).Dot(e.Name)
	case stmt.MethodCall:
		return l.operand(e.X).Dot(e.Name).Call(l.exprs(e.Args)...)
	case stmt.Index:
		return l.operand(e.X).Index(l.expr(e.Index))
	case stmt.AddrOf:
		return jen.Op("&").Add(l.operand(e.X))
	case stmt.Deref:
		return jen.Op("*").Add(l.operand(e.X))
	case stmt.Make:
		return jen.Make(append([]jen.Code{lowerType(e.Type)}, l.exprs(e.Args)...)...)
	case stmt.Composite:
		return lowerType(e.Type).Values()
	case stmt.Assert:
		return l.operand(e.X).Assert(lowerType(e.Type))
	}
	internal.PanicOnError(fmt.Errorf("cannot lower expression %T", e))
	return nil
}

// operand parenthesizes binary expressions used inside other expressions.
func (l lowerer) operand(e stmt.Expr) *jen.Statement {
	if _, ok := e.(stmt.Binary); ok {
		return jen.Parens(l.expr(e))
	}
	return l.expr(e)
}

func (l lowerer) stmts(ss []stmt.Stmt) []jen.Code {
	out := make([]jen.Code, 0, len(ss))
	for _, s := range ss {
		out = append(out, l.stmt(s))
	}
	return out
}

func (l lowerer) stmt(s stmt.Stmt) jen.Code {
	switch s := s.(type) {
	case stmt.Decl:
		return jen.Var().Id(s.Name).Add(lowerType(s.Type))
	case stmt.Assign:
		return jen.List(l.exprs(s.Targets)...).Op(s.Op).Add(l.expr(s.Value))
	case stmt.Do:
		return l.expr(s.X)
	case stmt.Check:
		return jen.If(jen.Id(s.Err).Op("!=").Nil()).Block(l.onFailure(s.Err)...)
	case stmt.If:
		st := jen.If(l.expr(s.Cond)).Block(l.stmts(s.Then)...)
		if len(s.Else) > 0 {
			st.Else().Block(l.stmts(s.Else)...)
		}
		return st
	case stmt.While:
		return jen.For(l.expr(s.Cond)).Block(l.stmts(s.Body)...)
	case stmt.Range:
		return jen.For(jen.List(jen.Id(s.Key), jen.Id(s.Value)).Op(":=").Range().Add(l.expr(s.Over))).
			Block(l.stmts(s.Body)...)
	case stmt.Defer:
		return jen.Defer().Func().Params().Block(l.stmts(s.Body)...).Call()
	case stmt.Return:
		return jen.Return(l.exprs(s.Values)...)
	}
	internal.PanicOnError(fmt.Errorf("cannot lower statement %T", s))
	return nil
}
