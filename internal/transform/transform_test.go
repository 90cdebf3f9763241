package transform

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/patos-lang/patosc/internal/ast"
)

const testFile = "main.pat"

func loc(offset int) ast.Loc { return ast.Loc{File: testFile, Offset: offset} }

func rng(begin, end int) ast.Range { return ast.Range{Begin: loc(begin), End: loc(end)} }

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// fakeLexer scans a fixed source buffer for token boundaries, standing in
// for the external C/C++ front-end's Lexer (spec §6).
type fakeLexer struct {
	src []byte
}

func (f *fakeLexer) EndOfToken(l ast.Loc) ast.Loc {
	i := l.Offset
	for i < len(f.src) && isIdentByte(f.src[i]) {
		i++
	}
	return ast.Loc{File: l.File, Offset: i}
}

func (f *fakeLexer) FindLocationAfterToken(l ast.Loc, kind ast.TokenKind) (ast.Loc, bool) {
	var ch byte
	switch kind {
	case ast.TokSemi:
		ch = ';'
	case ast.TokLParen:
		ch = '('
	case ast.TokRParen:
		ch = ')'
	case ast.TokLBrace:
		ch = '{'
	case ast.TokRBrace:
		ch = '}'
	case ast.TokComma:
		ch = ','
	}
	for i := l.Offset; i < len(f.src); i++ {
		if f.src[i] == ch {
			return ast.Loc{File: l.File, Offset: i + 1}, true
		}
	}
	return ast.Invalid, false
}

// fakeSourceManager reports every location as a user location and testFile
// as the main file.
type fakeSourceManager struct {
	src []byte
}

func (f *fakeSourceManager) Characteristic(l ast.Loc) ast.Characteristic { return ast.User }
func (f *fakeSourceManager) Filename(l ast.Loc) string                   { return l.File }
func (f *fakeSourceManager) MainFileID() string                         { return testFile }
func (f *fakeSourceManager) LocForEndOfFile(file string) ast.Loc {
	return ast.Loc{File: file, Offset: len(f.src)}
}

func newPass(src string) *Pass {
	b := []byte(src)
	return New(&fakeSourceManager{src: b}, &fakeLexer{src: b}, testFile, b, NewTemplateFiles())
}

func assertFatal(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("got nil error, want fatal error containing %q", substr)
	}
	var fe *FatalError
	fe, ok := err.(*FatalError)
	if !ok {
		t.Fatalf("error = %v (%T), want *FatalError", err, err)
	}
	if !strings.Contains(fe.Error(), substr) {
		t.Errorf("error = %q, want substring %q", fe.Error(), substr)
	}
}

func TestPlainStructGetsTypedef(t *testing.T) {
	src := "struct Foo {\n    int x;\n};\n"
	p := newPass(src)
	rec := &ast.CxxRecord{
		Name:   "Foo",
		Fields: []*ast.Field{{Name: "x", Type: &ast.TypeLoc{Spelling: "int"}, Range: rng(17, 22)}},
		Range:  rng(0, len(src)),
	}
	tu := &ast.TranslationUnit{Decls: []ast.Decl{rec}}
	if err := p.Run(tu); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := string(p.Rewriter().Bytes())
	want := src + "\ntypedef struct Foo Foo;\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Bytes() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassTemplateSpecializationFlattened(t *testing.T) {
	src := "template<typename T> struct Vec { T value; };\n"
	p := newPass(src)
	field := &ast.Field{
		Name:  "value",
		Type:  &ast.TypeLoc{Substitution: "int", Range: rng(34, 35)},
		Range: rng(34, 42),
	}
	spec := &ast.ClassTemplateSpecialization{
		TemplateName: "Vec",
		Args:         []string{"int"},
		Fields:       []*ast.Field{field},
		Range:        rng(0, len(src)),
	}
	ct := &ast.ClassTemplate{Name: "Vec", Specializations: []*ast.ClassTemplateSpecialization{spec}, Range: rng(0, len(src))}
	tu := &ast.TranslationUnit{Decls: []ast.Decl{ct}}
	if err := p.Run(tu); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := string(p.Rewriter().Bytes())
	if !strings.Contains(got, "typedef struct __Patos_Vec_int") {
		t.Errorf("Bytes() = %q, want a flat __Patos_Vec_int record", got)
	}
	if !strings.Contains(got, "int value;") {
		t.Errorf("Bytes() = %q, want substituted field type int", got)
	}
	if strings.Contains(got, "template<") {
		t.Errorf("Bytes() = %q, original template declaration should be removed", got)
	}
}

func TestDuplicateSpecializationSkipped(t *testing.T) {
	src := "template<typename T> struct Vec { T value; };\n"
	p := newPass(src)
	p.existingNames["__Patos_Vec_int"] = true
	field := &ast.Field{Name: "value", Type: &ast.TypeLoc{Substitution: "int"}, Range: rng(34, 42)}
	spec := &ast.ClassTemplateSpecialization{TemplateName: "Vec", Args: []string{"int"}, Fields: []*ast.Field{field}, Range: rng(0, len(src))}
	ct := &ast.ClassTemplate{Name: "Vec", Specializations: []*ast.ClassTemplateSpecialization{spec}, Range: rng(0, len(src))}
	tu := &ast.TranslationUnit{Decls: []ast.Decl{ct}}
	if err := p.Run(tu); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := string(p.Rewriter().Bytes())
	if strings.Contains(got, "typedef struct __Patos_Vec_int") {
		t.Errorf("Bytes() = %q, duplicate specialization should not be re-emitted", got)
	}
}

func TestMethodGetsThisRefParameter(t *testing.T) {
	// indices: "struct Foo { void bump(int n) { } };\n"
	//           0         1         2         3
	//           0123456789012345678901234567890123456
	// "void" begins at 13, "bump" at 18, '(' at 22, ')' at 28, body "{ }" at 30..32.
	src := "struct Foo { void bump(int n) { } };\n"
	p := newPass(src)
	parent := ast.RecordRef{Name: "Foo"}
	method := &ast.CxxMethod{
		Name:   "bump",
		Parent: parent,
		Params: []*ast.ParmVar{
			{Name: "n", Type: &ast.TypeLoc{Spelling: "int"}, Range: rng(23, 28)},
		},
		Body:           &ast.Compound{Range: rng(30, 33), OpenBraceEnd: loc(31), CloseBraceStart: loc(31)},
		IsDefinition:   true,
		SignatureRange: rng(13, 29),
		NameLoc:        loc(18),
		ParenLoc:       loc(23),
	}
	insertLoc := loc(37)
	p.transformMethod(method, insertLoc, true)
	if p.err != nil {
		t.Fatalf("transformMethod() error: %v", p.err)
	}
	decl := string(p.main.RewrittenTextOf(rng(13, 29)))
	if !strings.Contains(decl, "struct Foo *thisRef") {
		t.Errorf("declarator text = %q, want a thisRef parameter", decl)
	}
	if !strings.Contains(decl, "__Patos_Foo__bump") {
		t.Errorf("declarator text = %q, want mangled method name", decl)
	}
}

func TestMethodNoParamsThisRefOnly(t *testing.T) {
	// indices: "struct Foo { void reset() { } };\n"
	// "void" at 13, "reset" at 18, '(' at 23, ')' at 24, body "{ }" at 26..28.
	src := "struct Foo { void reset() { } };\n"
	p := newPass(src)
	method := &ast.CxxMethod{
		Name:           "reset",
		Parent:         ast.RecordRef{Name: "Foo"},
		Body:           &ast.Compound{Range: rng(26, 29), OpenBraceEnd: loc(27), CloseBraceStart: loc(27)},
		IsDefinition:   true,
		SignatureRange: rng(13, 25),
		NameLoc:        loc(18),
		ParenLoc:       loc(24),
	}
	p.transformMethod(method, loc(33), true)
	if p.err != nil {
		t.Fatalf("transformMethod() error: %v", p.err)
	}
	decl := p.main.RewrittenTextOf(rng(13, 25))
	if !strings.Contains(decl, "struct Foo *thisRef)") {
		t.Errorf("declarator text = %q, want a bare thisRef parameter", decl)
	}
}

func TestConstructorPrologueAndEpilogue(t *testing.T) {
	// indices: "struct Foo { Foo(int n) { x = n; } };\n"
	// constructor name "Foo" at 13, '(' at 16, ')' at 22, body "{ x = n; }" at 24..33.
	src := "struct Foo { Foo(int n) { x = n; } };\n"
	p := newPass(src)
	ctor := &ast.CxxConstructor{
		Parent: ast.RecordRef{Name: "Foo"},
		Params: []*ast.ParmVar{{Name: "n", Type: &ast.TypeLoc{Spelling: "int"}, Range: rng(17, 22)}},
		Body: &ast.Compound{
			Range:           rng(24, 34),
			OpenBraceEnd:    loc(25),
			CloseBraceStart: loc(32),
			Stmts: []ast.Stmt{
				&ast.RawStmt{Range: rng(26, 32), SemiLoc: loc(32)},
			},
		},
		IsDefinition:   true,
		SignatureRange: rng(13, 23),
		NameLoc:        loc(13),
	}
	p.transformConstructor(ctor, loc(38), true)
	if p.err != nil {
		t.Fatalf("transformConstructor() error: %v", p.err)
	}
	body := p.main.RewrittenTextOf(ctor.Body.Range)
	if !strings.Contains(body, "struct Foo __patos_constructed;") {
		t.Errorf("body = %q, want constructed-object prologue", body)
	}
	if !strings.Contains(body, "return __patos_constructed;") {
		t.Errorf("body = %q, want constructed-object epilogue", body)
	}
	decl := p.main.RewrittenTextOf(ctor.SignatureRange)
	if !strings.Contains(decl, "__Patos_Foo__constructor") {
		t.Errorf("declarator text = %q, want mangled constructor name", decl)
	}
}

func TestConstructorWithoutCompoundBodyIsFatal(t *testing.T) {
	p := newPass("struct Foo { Foo(int n); };\n")
	ctor := &ast.CxxConstructor{
		Parent:         ast.RecordRef{Name: "Foo"},
		IsDefinition:   true,
		Body:           nil,
		SignatureRange: rng(13, 24),
		NameLoc:        loc(13),
	}
	p.transformConstructor(ctor, loc(28), true)
	assertFatal(t, p.err, "constructor body is not a compound statement")
}

func TestExplicitDestructorIsFatal(t *testing.T) {
	src := "struct Foo { ~Foo() { } };\n"
	p := newPass(src)
	rec := &ast.CxxRecord{
		Name: "Foo",
		Methods: []ast.Decl{
			&ast.CxxDestructor{Parent: ast.RecordRef{Name: "Foo"}, Explicit: true, Body: &ast.Compound{Range: rng(20, 23)}},
		},
		Range: rng(0, len(src)),
	}
	tu := &ast.TranslationUnit{Decls: []ast.Decl{rec}}
	_ = p.Run(tu)
	assertFatal(t, p.err, "explicit destructors not supported")
}

func TestMemberCallLoweredWithReceiverAndArgs(t *testing.T) {
	src := "v.add(1);\n"
	p := newPass(src)
	method := &ast.CxxMethod{Name: "add", Parent: ast.RecordRef{Name: "Vec", Args: []string{"int"}, IsSpecialization: true}}
	callee := &ast.MemberExpr{Range: rng(2, 5), Base: &ast.RawExpr{Range: rng(0, 1), Text: "v"}, Method: method}
	call := &ast.CxxMemberCallExpr{
		Range:     rng(0, 8),
		Callee:    callee,
		Args:      []ast.Expr{&ast.RawExpr{Range: rng(6, 7), Text: "1"}},
		RParenLoc: loc(7),
	}
	ok := p.handleMemberCall(p.w, call)
	if p.err != nil {
		t.Fatalf("handleMemberCall() error: %v", p.err)
	}
	if ok {
		t.Errorf("handleMemberCall() = true, want false (default descent suppressed)")
	}
	got := p.main.RewrittenTextOf(rng(0, 8))
	want := "__Patos_Vec_int__add(&v, 1)"
	if got != want {
		t.Errorf("rewritten call = %q, want %q", got, want)
	}
}

func TestMemberCallNoArgsInsertsReceiverBeforeCloseParen(t *testing.T) {
	src := "v.reset();\n"
	p := newPass(src)
	method := &ast.CxxMethod{Name: "reset", Parent: ast.RecordRef{Name: "Vec", Args: []string{"int"}, IsSpecialization: true}}
	callee := &ast.MemberExpr{Range: rng(2, 7), Base: &ast.RawExpr{Range: rng(0, 1), Text: "v"}, Method: method}
	call := &ast.CxxMemberCallExpr{Range: rng(0, 9), Callee: callee, RParenLoc: loc(8)}
	p.handleMemberCall(p.w, call)
	if p.err != nil {
		t.Fatalf("handleMemberCall() error: %v", p.err)
	}
	got := p.main.RewrittenTextOf(rng(0, 9))
	want := "__Patos_Vec_int__reset(&v)"
	if got != want {
		t.Errorf("rewritten call = %q, want %q", got, want)
	}
}

func TestMemberCallThroughArrowOmitsAddressOf(t *testing.T) {
	src := "p->add(1);\n"
	p := newPass(src)
	method := &ast.CxxMethod{Name: "add", Parent: ast.RecordRef{Name: "Vec", Args: []string{"int"}, IsSpecialization: true}}
	callee := &ast.MemberExpr{Range: rng(3, 6), Base: &ast.RawExpr{Range: rng(0, 1), Text: "p"}, IsArrow: true, Method: method}
	call := &ast.CxxMemberCallExpr{Range: rng(0, 9), Callee: callee, Args: []ast.Expr{&ast.RawExpr{Range: rng(7, 8), Text: "1"}}, RParenLoc: loc(8)}
	p.handleMemberCall(p.w, call)
	if p.err != nil {
		t.Fatalf("handleMemberCall() error: %v", p.err)
	}
	got := p.main.RewrittenTextOf(rng(0, 9))
	want := "__Patos_Vec_int__add(p, 1)"
	if got != want {
		t.Errorf("rewritten call = %q, want %q", got, want)
	}
}

func TestOperatorCallWrapsFirstArgAddress(t *testing.T) {
	src := "a + b;\n"
	p := newPass(src)
	method := &ast.CxxMethod{Name: "add", IsOperator: true, Operator: ast.OpPlus, Parent: ast.RecordRef{Name: "Vec"}}
	call := &ast.CxxOperatorCallExpr{
		Range:  rng(0, 5),
		Method: method,
		Args: []ast.Expr{
			&ast.RawExpr{Range: rng(0, 1), Text: "a"},
			&ast.RawExpr{Range: rng(4, 5), Text: "b"},
		},
	}
	p.handleOperatorCall(p.w, call)
	if p.err != nil {
		t.Fatalf("handleOperatorCall() error: %v", p.err)
	}
	got := p.main.RewrittenTextOf(rng(0, 5))
	want := "__Patos_Vec__operator__plus(&(a), b)"
	if got != want {
		t.Errorf("rewritten call = %q, want %q", got, want)
	}
}

func TestThisExprImplicitInsertsArrow(t *testing.T) {
	src := "x;\n"
	p := newPass(src)
	this := &ast.CxxThisExpr{Range: rng(0, 0), Implicit: true}
	p.handleThis(p.w, this)
	if p.err != nil {
		t.Fatalf("handleThis() error: %v", p.err)
	}
	got := p.main.RewrittenTextOf(rng(0, 2))
	if got != "thisRef->x;" {
		t.Errorf("rewritten = %q, want %q", got, "thisRef->x;")
	}
}

func TestThisExprExplicitReplaced(t *testing.T) {
	src := "this;\n"
	p := newPass(src)
	this := &ast.CxxThisExpr{Range: rng(0, 4), Implicit: false}
	p.handleThis(p.w, this)
	if p.err != nil {
		t.Fatalf("handleThis() error: %v", p.err)
	}
	got := p.main.RewrittenTextOf(rng(0, 5))
	if got != "thisRef;" {
		t.Errorf("rewritten = %q, want %q", got, "thisRef;")
	}
}

func TestVarCallInitWithNonConstructInitializerIsFatal(t *testing.T) {
	p := newPass("int x(y);\n")
	v := &ast.Var{
		Name:     "x",
		Type:     &ast.TypeLoc{Spelling: "int"},
		Init:     &ast.RawExpr{Range: rng(6, 7), Text: "y"},
		CallInit: true,
		Range:    rng(0, 8),
	}
	p.handleVar(p.w, v)
	assertFatal(t, p.err, "uses call-initialization but has a non-construct initializer")
}

func TestVarConstructInitGetsEqualsInserted(t *testing.T) {
	// "Vec v(1);\n" -- call-init declarator, lowered by both handleVar
	// (inserts " = ") and handleConstructExpr (lowers the call itself).
	src := "Vec v(1);\n"
	p := newPass(src)
	ctor := &ast.CxxConstructor{Parent: ast.RecordRef{Name: "Vec", Args: []string{"int"}, IsSpecialization: true}}
	paren := rng(5, 8)
	ce := &ast.CxxConstructExpr{
		Range:             rng(4, 9),
		Constructor:       ctor,
		Args:              []ast.Expr{&ast.RawExpr{Range: rng(6, 7), Text: "1"}},
		ParenOrBraceRange: &paren,
	}
	v := &ast.Var{Name: "v", Type: &ast.TypeLoc{Spelling: "Vec"}, Init: ce, CallInit: true, Range: rng(0, 9)}
	cont := p.handleVar(p.w, v)
	if p.err != nil {
		t.Fatalf("handleVar() error: %v", p.err)
	}
	if !cont {
		t.Errorf("handleVar() = false, want true (continue into Init)")
	}
	p.handleConstructExpr(p.w, ce)
	if p.err != nil {
		t.Fatalf("handleConstructExpr() error: %v", p.err)
	}
	got := p.main.RewrittenTextOf(rng(0, 9))
	want := "Vec v = __Patos_Vec_int__constructor(1);"
	if got != want {
		t.Errorf("rewritten = %q, want %q", got, want)
	}
}

func TestConstructExprLoweredToMangledCall(t *testing.T) {
	src := "Vec(1);\n"
	p := newPass(src)
	ctor := &ast.CxxConstructor{Parent: ast.RecordRef{Name: "Vec", Args: []string{"int"}, IsSpecialization: true}}
	paren := rng(3, 6)
	ce := &ast.CxxConstructExpr{
		Range:             rng(0, 7),
		Constructor:       ctor,
		Args:              []ast.Expr{&ast.RawExpr{Range: rng(4, 5), Text: "1"}},
		ParenOrBraceRange: &paren,
	}
	p.handleConstructExpr(p.w, ce)
	if p.err != nil {
		t.Fatalf("handleConstructExpr() error: %v", p.err)
	}
	// the callee text "Vec" is untouched by this hook; only the paren span
	// (the argument list) is replaced with the mangled constructor call.
	got := p.main.RewrittenTextOf(rng(0, 7))
	if !strings.Contains(got, "__Patos_Vec_int__constructor(1)") {
		t.Errorf("rewritten = %q, want mangled constructor call", got)
	}
}

func TestTemporaryObjectUnresolvedTypeIsFatal(t *testing.T) {
	p := newPass("Foo();\n")
	temp := &ast.CxxFunctionalCastExpr{Range: rng(0, 5), Type: nil, Args: nil}
	body := &ast.Compound{
		Range: rng(0, 6),
		Stmts: []ast.Stmt{
			&ast.ExprStmt{Range: rng(0, 6), SemiLoc: loc(6), X: temp},
		},
	}
	p.handleCompound(p.w, body)
	assertFatal(t, p.err, "temporary object")
}

func TestTemporaryObjectMissingMappingIsFatal(t *testing.T) {
	p := newPass("x;\n")
	temp := &ast.CxxTemporaryObjectExpr{Range: rng(0, 1)}
	ok := p.handleTemporaryObject(p.w, temp)
	if ok {
		t.Errorf("handleTemporaryObject() = true, want false")
	}
	assertFatal(t, p.err, "no temporary object name recorded")
}

func TestKernelFunctionGetsKernelAttribute(t *testing.T) {
	src := "void run(int n) { }\n"
	p := newPass(src)
	fn := &ast.Function{
		Name:           "run",
		TemplatedKind:  ast.NotTemplated,
		Params:         []*ast.ParmVar{{Name: "n", Type: &ast.TypeLoc{Spelling: "int"}, Range: rng(9, 14)}},
		Body:           &ast.Compound{Range: rng(16, 19)},
		Attrs:          []ast.Attribute{{Name: ast.KernelAnnotation}},
		IsDefinition:   true,
		SignatureRange: rng(0, 15),
		NameLoc:        loc(5),
	}
	p.transformFunction(fn, loc(20), true)
	if p.err != nil {
		t.Fatalf("transformFunction() error: %v", p.err)
	}
	full := string(p.main.Bytes())
	if !strings.Contains(full, "__kernel void run(int n)") {
		t.Errorf("Bytes() = %q, want a __kernel-qualified declarator", full)
	}
}
