// Package walker implements the AST Walker framework, spec §4.3
// (component C): pre-order traversal over the internal/ast node model, with
// per-node-kind traverse/visit hooks a pass can override, and a
// short-circuit system-file check run before every top-level hook.
//
// The dispatch mechanism is a registry keyed by reflect.Type that maps a
// concrete node type to the hook the caller registered for it, instead of
// a type switch baked into the Walker itself. That keeps the Walker
// agnostic of which hooks a given pass needs and lets the transform and
// stripper passes register only the handful they care about, falling back
// to default traversal for everything else.
package walker

import (
	"reflect"

	"github.com/patos-lang/patosc/internal/ast"
)

// hook is the signature every registered override has once type-erased.
// Returning true tells the Walker to continue its default traversal into
// the node's children after the hook runs; returning false means the hook
// already handled (or intentionally skipped) descent.
type hook func(w *Walker, n any) bool

// Walker drives pre-order traversal and dispatches to registered hooks.
type Walker struct {
	sm    ast.SourceManager
	hooks map[reflect.Type]hook
}

// New creates a Walker that consults sm for the is_in_system_file check.
// sm may be nil when traversing synthetic trees that contain no system-file
// content (as most tests do).
func New(sm ast.SourceManager) *Walker {
	return &Walker{sm: sm, hooks: make(map[reflect.Type]hook)}
}

// Register installs fn as the hook for node type T, overriding the default
// traversal decision for every node of that concrete type. Registering
// twice for the same T replaces the previous hook.
func Register[T any](w *Walker, fn func(w *Walker, n T) bool) {
	var zero T
	t := reflect.TypeOf(zero)
	w.hooks[t] = func(w *Walker, n any) bool { return fn(w, n.(T)) }
}

// dispatch looks up a hook for n's concrete type and runs it, reporting
// whether default traversal should still happen.
func dispatch[T any](w *Walker, n T) bool {
	t := reflect.TypeOf(n)
	if h, ok := w.hooks[t]; ok {
		return h(w, n)
	}
	return true
}

func (w *Walker) inSystemFile(l ast.Loc) bool {
	if w.sm == nil || !l.IsValid() {
		return false
	}
	return ast.IsInSystemFile(w.sm, l)
}

// WalkDecl visits d and, per default traversal, its children in source
// order, unless a registered hook for d's concrete type returns false.
func (w *Walker) WalkDecl(d ast.Decl) {
	if d == nil {
		return
	}
	if w.inSystemFile(ast.DeclLoc(d)) {
		return
	}
	if !dispatch(w, d) {
		return
	}
	switch v := d.(type) {
	case *ast.TranslationUnit:
		for _, c := range v.Decls {
			w.WalkDecl(c)
		}
	case *ast.ClassTemplate:
		for _, s := range v.Specializations {
			w.WalkDecl(s)
		}
	case *ast.ClassTemplateSpecialization:
		for _, f := range v.Fields {
			w.WalkDecl(f)
		}
		for _, m := range v.Methods {
			w.WalkDecl(m)
		}
	case *ast.CxxRecord:
		for _, f := range v.Fields {
			w.WalkDecl(f)
		}
		for _, m := range v.Methods {
			w.WalkDecl(m)
		}
	case *ast.FunctionTemplate:
		for _, s := range v.Specializations {
			w.WalkDecl(s)
		}
	case *ast.Function:
		w.walkParams(v.Params)
		w.walkReturnType(v.ReturnType)
		w.walkBody(v.Body)
	case *ast.CxxMethod:
		w.walkParams(v.Params)
		w.walkReturnType(v.ReturnType)
		w.walkBody(v.Body)
	case *ast.CxxConstructor:
		w.walkParams(v.Params)
		w.walkBody(v.Body)
	case *ast.CxxDestructor:
		w.walkBody(v.Body)
	case *ast.Field:
		w.WalkExpr(v.Type)
	case *ast.Var:
		w.WalkExpr(v.Type)
		if v.Init != nil {
			w.WalkExpr(v.Init)
		}
	case *ast.TypedefName:
		w.WalkExpr(v.Underlying)
	case *ast.ParmVar:
		w.WalkExpr(v.Type)
	}
}

func (w *Walker) walkParams(params []*ast.ParmVar) {
	for _, p := range params {
		w.WalkDecl(p)
	}
}

func (w *Walker) walkReturnType(t *ast.TypeLoc) {
	if t != nil {
		w.WalkExpr(t)
	}
}

func (w *Walker) walkBody(body *ast.Compound) {
	if body != nil {
		w.WalkStmt(body)
	}
}

// WalkStmt visits s and, by default, its children in source order.
func (w *Walker) WalkStmt(s ast.Stmt) {
	if s == nil {
		return
	}
	if !dispatch(w, s) {
		return
	}
	switch v := s.(type) {
	case *ast.Compound:
		for _, c := range v.Stmts {
			w.WalkStmt(c)
		}
	case *ast.RawStmt:
		for _, c := range v.Children {
			w.WalkExpr(c)
		}
	case *ast.DeclStmt:
		for _, vr := range v.Vars {
			w.WalkDecl(vr)
		}
	case *ast.ExprStmt:
		w.WalkExpr(v.X)
	}
}

// WalkExpr visits e and, by default, its children in source order.
func (w *Walker) WalkExpr(e ast.Expr) {
	if e == nil {
		return
	}
	if !dispatch(w, e) {
		return
	}
	switch v := e.(type) {
	case *ast.TypeLoc:
		if v.Inner != nil {
			w.WalkExpr(v.Inner)
		}
	case *ast.DeclRefExpr:
		// leaf
	case *ast.CallExpr:
		w.WalkExpr(v.Callee)
		for _, a := range v.Args {
			w.WalkExpr(a)
		}
	case *ast.MemberExpr:
		w.WalkExpr(v.Base)
	case *ast.CxxMemberCallExpr:
		w.WalkExpr(v.Callee)
		for _, a := range v.Args {
			w.WalkExpr(a)
		}
	case *ast.CxxOperatorCallExpr:
		for _, a := range v.Args {
			w.WalkExpr(a)
		}
	case *ast.CxxConstructExpr:
		for _, a := range v.Args {
			w.WalkExpr(a)
		}
	case *ast.CxxFunctionalCastExpr:
		w.WalkExpr(v.Type)
		for _, a := range v.Args {
			w.WalkExpr(a)
		}
	case *ast.CxxTemporaryObjectExpr:
		w.WalkExpr(v.Type)
		for _, a := range v.Args {
			w.WalkExpr(a)
		}
	case *ast.CxxThisExpr:
		// leaf
	case *ast.RawExpr:
		// leaf
	}
}
