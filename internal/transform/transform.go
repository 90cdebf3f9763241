// Package transform implements the Transformation Pass, spec §4.4
// (component D): the central pass that consumes one translation unit,
// drives the Rewriter via the AST Walker framework, uses the Name Mangler,
// and discovers template declarations left behind in foreign files.
package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/patos-lang/patosc/internal/ast"
	"github.com/patos-lang/patosc/internal/mangle"
	"github.com/patos-lang/patosc/internal/rewriter"
	"github.com/patos-lang/patosc/internal/walker"
)

// FatalError signals one of the pass's fatal conditions (spec §7): a
// condition that aborts the whole run rather than being recovered from.
type FatalError struct {
	msg string
}

func (e *FatalError) Error() string { return e.msg }

func fatalf(format string, args ...any) *FatalError {
	return &FatalError{msg: fmt.Sprintf(format, args...)}
}

// TemplateFiles is the shared set of foreign files observed to contain a
// template declaration during transformation, collected across every
// Transformation Pass invocation in one driver run (spec §3,
// "template_files"). It is shared by reference across Pass instances.
type TemplateFiles struct {
	paths map[string]bool
}

// NewTemplateFiles creates an empty shared set.
func NewTemplateFiles() *TemplateFiles {
	return &TemplateFiles{paths: make(map[string]bool)}
}

// Add records path as containing a deferred template declaration.
func (t *TemplateFiles) Add(path string) { t.paths[path] = true }

// Has reports whether path was recorded.
func (t *TemplateFiles) Has(path string) bool { return t.paths[path] }

// Paths returns every recorded path in a stable (sorted) order.
func (t *TemplateFiles) Paths() []string {
	out := make([]string, 0, len(t.paths))
	for p := range t.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Pass is one Transformation Pass instance, scoped to a single file
// (spec §4.4.1 "Lifecycles").
type Pass struct {
	sm  ast.SourceManager
	lex ast.Lexer

	mainFile string

	main    *rewriter.Rewriter
	current *rewriter.Rewriter
	stack   []*rewriter.Rewriter

	templateFiles *TemplateFiles

	tempNames   map[ast.Expr]string
	tempCounter int

	existingNames    map[string]bool
	existingTypedefs map[string]bool

	w   *walker.Walker
	err error
}

// New creates a Pass for one file. source is the file's original bytes.
// sm and lex satisfy the front-end contract of spec §6; either may be nil,
// in which case system-file filtering and token-boundary scans degrade to
// their simplest defined behavior (useful for tests that build synthetic
// trees with already-resolved locations).
func New(sm ast.SourceManager, lex ast.Lexer, mainFile string, source []byte, templateFiles *TemplateFiles) *Pass {
	main := rewriter.New(mainFile, source)
	p := &Pass{
		sm:               sm,
		lex:              lex,
		mainFile:         mainFile,
		main:             main,
		current:          main,
		templateFiles:    templateFiles,
		tempNames:        make(map[ast.Expr]string),
		existingNames:    make(map[string]bool),
		existingTypedefs: make(map[string]bool),
	}
	p.w = walker.New(sm)
	p.registerHooks()
	return p
}

// Rewriter returns the pass's main rewriter. Once Run returns nil, call
// Rewriter().Bytes() to obtain the file's new contents.
func (p *Pass) Rewriter() *rewriter.Rewriter { return p.main }

// Run executes handle_translation_unit (spec §4.4.2).
func (p *Pass) Run(tu *ast.TranslationUnit) error {
	p.scanExisting(tu)
	for _, d := range tu.Decls {
		if p.err != nil {
			break
		}
		if p.isInSystemFile(d) {
			continue
		}
		p.dispatchTopLevel(d)
	}
	return p.err
}

func (p *Pass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *Pass) isInSystemFile(d ast.Decl) bool {
	l := ast.DeclLoc(d)
	if p.sm == nil || !l.IsValid() {
		return false
	}
	return ast.IsInSystemFile(p.sm, l)
}

func (p *Pass) isMainFileLoc(l ast.Loc) bool {
	if p.sm != nil {
		return p.sm.Filename(l) == p.sm.MainFileID()
	}
	return l.File == p.mainFile
}

func (p *Pass) endOfMainFile() ast.Loc {
	if p.sm != nil {
		return p.sm.LocForEndOfFile(p.sm.MainFileID())
	}
	return ast.Loc{File: p.mainFile, Offset: len(p.main.Original())}
}

// scanExisting populates the name/typedef sets used for the duplicate-
// specialization and existing-typedef checks of spec §4.4.3/§4.4.4.
func (p *Pass) scanExisting(tu *ast.TranslationUnit) {
	for _, d := range tu.Decls {
		switch v := d.(type) {
		case *ast.CxxRecord:
			p.existingNames[v.Name] = true
		case *ast.ClassTemplateSpecialization:
			p.existingNames[mangle.RecordRef(v.RecordRef())] = true
		case *ast.TypedefName:
			p.existingTypedefs[v.Name] = true
		}
	}
}

func (p *Pass) dispatchTopLevel(d ast.Decl) {
	switch v := d.(type) {
	case *ast.ClassTemplate:
		p.traverseClassTemplate(v)
	case *ast.FunctionTemplate:
		p.traverseFunctionTemplate(v)
	case *ast.CxxRecord:
		p.traverseCxxRecord(v)
	case *ast.Function:
		p.walkFunctionInternals(v.Params, v.ReturnType, v.Body)
	}
}

// ---- scratch-rewriter stack discipline (spec §9) ------------------------

func (p *Pass) pushScratch() {
	p.stack = append(p.stack, p.current)
	p.current = rewriter.New(p.mainFile, p.main.Original())
}

func (p *Pass) popScratch() {
	n := len(p.stack)
	p.current = p.stack[n-1]
	p.stack = p.stack[:n-1]
}

// ---- 4.4.16 foreign-file template deferral ------------------------------

func (p *Pass) removeDeclarationOrDefer(rng ast.Range) {
	if p.isMainFileLoc(rng.Begin) {
		if err := p.main.RemoveRange(rng); err != nil {
			p.fail(err)
		}
		return
	}
	file := rng.Begin.File
	if p.sm != nil {
		file = p.sm.Filename(rng.Begin)
	}
	p.templateFiles.Add(file)
}

func (p *Pass) locationAfterSemicolon(from ast.Loc) ast.Loc {
	if p.lex == nil {
		return from
	}
	if loc, ok := p.lex.FindLocationAfterToken(from, ast.TokSemi); ok {
		return loc
	}
	return from
}

func (p *Pass) endOfToken(l ast.Loc) ast.Loc {
	if p.lex == nil {
		return l
	}
	return p.lex.EndOfToken(l)
}

// ---- 4.4.3 class templates -----------------------------------------------

func (p *Pass) traverseClassTemplate(ct *ast.ClassTemplate) {
	for _, spec := range ct.Specializations {
		if p.err != nil {
			return
		}
		mangled := mangle.Record(spec.TemplateName, spec.Args)
		if p.existingNames[mangled] {
			continue
		}
		p.existingNames[mangled] = true
		p.pushScratch()
		p.traverseRecordLike(recordView{
			ref:     spec.RecordRef(),
			fields:  spec.Fields,
			methods: spec.Methods,
			rng:     spec.Range,
		}, true)
		p.popScratch()
	}
	if p.err != nil {
		return
	}
	p.removeDeclarationOrDefer(ct.Range)
}

// traverseFunctionTemplate handles a top-level (non-method) function
// template the same way 4.4.3 handles class templates: each specialization
// is transformed at an insert location just past the template's own
// semicolon, then the original is removed or deferred.
func (p *Pass) traverseFunctionTemplate(ft *ast.FunctionTemplate) {
	insertLoc := p.locationAfterSemicolon(ft.Range.End)
	for _, spec := range ft.Specializations {
		if p.err != nil {
			return
		}
		p.pushScratch()
		p.transformDecl(spec, insertLoc, isDefinitionOf(spec))
		p.popScratch()
	}
	if p.err != nil {
		return
	}
	p.removeDeclarationOrDefer(ft.Range)
}

func isDefinitionOf(d ast.Decl) bool {
	switch v := d.(type) {
	case *ast.Function:
		return v.IsDefinition
	case *ast.CxxMethod:
		return v.IsDefinition
	}
	return false
}

// ---- 4.4.4 records --------------------------------------------------------

// recordView adapts CxxRecord and ClassTemplateSpecialization to a common
// shape for traverseRecordLike.
type recordView struct {
	ref     ast.RecordRef
	fields  []*ast.Field
	methods []ast.Decl
	rng     ast.Range
}

func (v recordView) containsMethods() bool {
	for _, m := range v.methods {
		switch d := m.(type) {
		case *ast.FunctionTemplate:
			return true
		case *ast.CxxMethod:
			return true
		case *ast.CxxConstructor:
			if !d.Implicit {
				return true
			}
		case *ast.CxxDestructor:
			if d.Explicit {
				return true
			}
		}
	}
	return false
}

func (p *Pass) traverseCxxRecord(r *ast.CxxRecord) {
	view := recordView{ref: ast.RecordRef{Name: r.Name}, fields: r.Fields, methods: r.Methods, rng: r.Range}
	p.traverseRecordLike(view, false)
}

func (p *Pass) traverseRecordLike(view recordView, isSpecialization bool) {
	if !isSpecialization && !view.containsMethods() {
		// Case A: plain struct, emit a missing typedef.
		name := view.ref.Name
		if !p.existingTypedefs[name] {
			p.existingTypedefs[name] = true
			text := "\ntypedef struct " + name + " " + name + ";\n"
			if err := p.main.InsertAfter(view.rng.End, text); err != nil {
				p.fail(err)
			}
		}
		return
	}

	// Case B: specialization, or a plain record with methods.
	insertLoc := p.locationAfterSemicolon(view.rng.End)
	flatText, err := p.synthesizeFlatRecord(view)
	if err != nil {
		p.fail(err)
		return
	}
	if err := p.main.InsertBefore(insertLoc, flatText); err != nil {
		p.fail(err)
		return
	}

	for _, m := range view.methods {
		if p.err != nil {
			return
		}
		switch d := m.(type) {
		case *ast.CxxConstructor:
			if d.Implicit {
				continue
			}
			if d.IsDefinition {
				p.transformDecl(d, insertLoc, true)
			}
		case *ast.CxxDestructor:
			if d.Explicit {
				p.fail(fatalf("transform: explicit destructors not supported"))
				return
			}
			// implicit destructor: skip
		case *ast.CxxMethod:
			if d.IsDefinition {
				p.transformDecl(d, insertLoc, true)
			}
		case *ast.FunctionTemplate:
			for _, spec := range d.Specializations {
				if p.err != nil {
					return
				}
				p.pushScratch()
				p.transformDecl(spec, insertLoc, isDefinitionOf(spec))
				p.popScratch()
			}
		}
	}
	if p.err != nil {
		return
	}
	if !isSpecialization {
		if err := p.main.RemoveRange(view.rng); err != nil {
			p.fail(err)
		}
	}
}

// ---- 4.4.5 flat record synthesis ------------------------------------------

func (p *Pass) synthesizeFlatRecord(view recordView) (string, error) {
	name := view.ref.Name
	if view.ref.IsSpecialization {
		name = mangle.RecordRef(view.ref)
	}
	var b strings.Builder
	b.WriteString("\ntypedef struct ")
	b.WriteString(name)
	b.WriteString("\n{\n")
	for _, f := range view.fields {
		scratch := rewriter.New(p.mainFile, p.main.Original())
		if err := traverseTypeLocWith(scratch, f.Type); err != nil {
			return "", err
		}
		b.WriteString("    ")
		b.WriteString(scratch.RewrittenTextOf(f.Range))
		b.WriteString(";\n")
	}
	b.WriteString("} ")
	b.WriteString(name)
	b.WriteString(";\n")
	return b.String(), nil
}

// traverseTypeLocWith applies the 4.4.9 type-rewriting rules directly
// against an arbitrary rewriter, for use on the throwaway per-field scratch
// rewriter that flat record synthesis discards after composing its string.
func traverseTypeLocWith(rw *rewriter.Rewriter, t *ast.TypeLoc) error {
	if t == nil {
		return nil
	}
	if t.Referenced != nil {
		mangled := mangle.Record(t.Referenced.TemplateName, t.Referenced.Args)
		return rw.ReplaceRange(t.Range, mangled)
	}
	if t.Substitution != "" {
		if err := rw.ReplaceRange(t.Range, t.Substitution); err != nil {
			return err
		}
		return traverseTypeLocWith(rw, t.Inner)
	}
	return traverseTypeLocWith(rw, t.Inner)
}

// ---- 4.4.6/4.4.7/4.4.8 function transformation ----------------------------

func (p *Pass) transformDecl(d ast.Decl, insertLoc ast.Loc, addDefinition bool) {
	if p.err != nil {
		return
	}
	switch v := d.(type) {
	case *ast.Function:
		p.transformFunction(v, insertLoc, addDefinition)
	case *ast.CxxMethod:
		p.transformMethod(v, insertLoc, addDefinition)
	case *ast.CxxConstructor:
		p.transformConstructor(v, insertLoc, addDefinition)
	}
}

func (p *Pass) rewriteDeclarator(nameLoc ast.Loc, outOfLine bool, qualifierLoc ast.Loc, mangled string) error {
	begin := nameLoc
	if outOfLine {
		begin = qualifierLoc
	}
	end := p.endOfToken(nameLoc)
	return p.current.ReplaceRange(ast.Range{Begin: begin, End: end}, mangled)
}

func (p *Pass) emitDeclAndDefinition(text string, body *ast.Compound, insertLoc ast.Loc, addDefinition bool) {
	if err := p.main.InsertBefore(insertLoc, text+";\n"); err != nil {
		p.fail(err)
		return
	}
	if addDefinition && body != nil {
		full := text + "\n" + p.current.RewrittenTextOf(body.Range) + "\n"
		if err := p.main.InsertBefore(p.endOfMainFile(), full); err != nil {
			p.fail(err)
		}
	}
}

func (p *Pass) transformFunction(f *ast.Function, insertLoc ast.Loc, addDefinition bool) {
	if f.TemplatedKind != ast.NotTemplated {
		mangled := mangle.FunctionFor(f)
		if err := p.rewriteDeclarator(f.NameLoc, false, ast.Invalid, mangled); err != nil {
			p.fail(err)
			return
		}
	}
	p.walkFunctionInternals(f.Params, f.ReturnType, f.Body)
	if p.err != nil {
		return
	}
	head := "\n"
	if f.IsKernel() {
		head += "__kernel "
	}
	text := head + p.current.RewrittenTextOf(f.SignatureRange)
	p.emitDeclAndDefinition(text, f.Body, insertLoc, addDefinition)
}

func (p *Pass) transformMethod(m *ast.CxxMethod, insertLoc ast.Loc, addDefinition bool) {
	mangled, err := mangle.MethodFor(m)
	if err != nil {
		p.fail(err)
		return
	}
	if err := p.rewriteDeclarator(m.NameLoc, m.OutOfLine, m.QualifierLoc, mangled); err != nil {
		p.fail(err)
		return
	}
	parentName := mangle.RecordRef(m.Parent)
	additional := "struct " + parentName + " *thisRef"
	insertText := additional
	if len(m.Params) > 0 {
		insertText = additional + ",  "
	}
	if err := p.current.InsertBefore(m.ParenLoc, insertText); err != nil {
		p.fail(err)
		return
	}
	p.walkFunctionInternals(m.Params, m.ReturnType, m.Body)
	if p.err != nil {
		return
	}
	head := "\n"
	if m.IsKernel() {
		head += "__kernel "
	}
	text := head + p.current.RewrittenTextOf(m.SignatureRange)
	p.emitDeclAndDefinition(text, m.Body, insertLoc, addDefinition)
}

func (p *Pass) transformConstructor(c *ast.CxxConstructor, insertLoc ast.Loc, addDefinition bool) {
	parentName := mangle.RecordRef(c.Parent)
	if c.IsDefinition && c.Body == nil {
		p.fail(fatalf("transform: constructor body is not a compound statement"))
		return
	}
	mangled, err := mangle.ConstructorFor(c)
	if err != nil {
		p.fail(err)
		return
	}
	if err := p.rewriteDeclarator(c.NameLoc, false, ast.Invalid, mangled); err != nil {
		p.fail(err)
		return
	}
	if c.Body != nil {
		prologue := fmt.Sprintf("\nstruct %s __patos_constructed;\nstruct %s *thisRef = &__patos_constructed;\n", parentName, parentName)
		if err := p.current.InsertAfter(c.Body.OpenBraceEnd, prologue); err != nil {
			p.fail(err)
			return
		}
		epilogue := "\nreturn __patos_constructed;\n"
		if err := p.current.InsertBefore(c.Body.CloseBraceStart, epilogue); err != nil {
			p.fail(err)
			return
		}
	}
	p.walkFunctionInternals(c.Params, nil, c.Body)
	if p.err != nil {
		return
	}
	text := "\nstruct " + parentName + " " + p.current.RewrittenTextOf(c.SignatureRange)
	p.emitDeclAndDefinition(text, c.Body, insertLoc, addDefinition)
}

func (p *Pass) walkFunctionInternals(params []*ast.ParmVar, ret *ast.TypeLoc, body *ast.Compound) {
	if p.err != nil {
		return
	}
	for _, prm := range params {
		p.w.WalkExpr(prm.Type)
		if p.err != nil {
			return
		}
	}
	if ret != nil {
		p.w.WalkExpr(ret)
		if p.err != nil {
			return
		}
	}
	if body != nil {
		p.w.WalkStmt(body)
	}
}

// ---- expr-to-string (spec §4.4.11's expression_to_string) -----------------

func (p *Pass) exprToString(e ast.Expr) string {
	if e == nil {
		return ""
	}
	return p.current.RewrittenTextOf(e.SourceRange())
}

func (p *Pass) exprListToString(args []ast.Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = p.exprToString(a)
	}
	return strings.Join(parts, ", ")
}

// ---- statement helpers for 4.4.15 -----------------------------------------

func stmtRange(s ast.Stmt) ast.Range {
	switch v := s.(type) {
	case *ast.Compound:
		return v.Range
	case *ast.RawStmt:
		return v.Range
	case *ast.DeclStmt:
		return v.Range
	case *ast.ExprStmt:
		return v.Range
	}
	return ast.Range{}
}

func stmtSemiEnd(s ast.Stmt) ast.Loc {
	switch v := s.(type) {
	case *ast.RawStmt:
		if v.SemiLoc.IsValid() {
			return v.SemiLoc
		}
	case *ast.ExprStmt:
		if v.SemiLoc.IsValid() {
			return v.SemiLoc
		}
	}
	return stmtRange(s).End
}

// collectTemporaries finds every CxxFunctionalCastExpr/CxxTemporaryObjectExpr
// reachable from statement s, in source order, per spec §4.4.15.
func collectTemporaries(s ast.Stmt) []ast.Expr {
	var out []ast.Expr
	var visit func(e ast.Expr)
	visit = func(e ast.Expr) {
		if e == nil {
			return
		}
		switch v := e.(type) {
		case *ast.CxxFunctionalCastExpr:
			out = append(out, e)
			for _, a := range v.Args {
				visit(a)
			}
		case *ast.CxxTemporaryObjectExpr:
			out = append(out, e)
			for _, a := range v.Args {
				visit(a)
			}
		case *ast.CallExpr:
			for _, a := range v.Args {
				visit(a)
			}
		case *ast.MemberExpr:
			visit(v.Base)
		case *ast.CxxMemberCallExpr:
			visit(v.Callee)
			for _, a := range v.Args {
				visit(a)
			}
		case *ast.CxxOperatorCallExpr:
			for _, a := range v.Args {
				visit(a)
			}
		case *ast.CxxConstructExpr:
			for _, a := range v.Args {
				visit(a)
			}
		}
	}
	switch v := s.(type) {
	case *ast.RawStmt:
		for _, c := range v.Children {
			visit(c)
		}
	case *ast.ExprStmt:
		visit(v.X)
	case *ast.DeclStmt:
		for _, vr := range v.Vars {
			if vr.Init != nil {
				visit(vr.Init)
			}
		}
	}
	return out
}

func (p *Pass) typeName(t *ast.TypeLoc) (string, error) {
	if t == nil {
		return "", fatalf("transform: temporary object has unresolved type")
	}
	if t.Referenced != nil {
		return mangle.Record(t.Referenced.TemplateName, t.Referenced.Args), nil
	}
	if t.Substitution != "" {
		return t.Substitution, nil
	}
	if t.Spelling != "" {
		return t.Spelling, nil
	}
	return "", fatalf("transform: temporary object type is not a record type")
}

func (p *Pass) synthesizeTemporariesPrologue(temps []ast.Expr) (string, error) {
	var b strings.Builder
	b.WriteString("\n/* BEGIN USAGE OF TEMPORARY OBJECT */\n")
	for _, t := range temps {
		name := fmt.Sprintf("__patos_temporary_%d", p.tempCounter)
		p.tempCounter++
		p.tempNames[t] = name

		var typeLoc *ast.TypeLoc
		var ctor *ast.CxxConstructor
		var args []ast.Expr
		switch v := t.(type) {
		case *ast.CxxFunctionalCastExpr:
			typeLoc, ctor, args = v.Type, v.Constructor, v.Args
		case *ast.CxxTemporaryObjectExpr:
			typeLoc, ctor, args = v.Type, v.Constructor, v.Args
		}
		typeName, err := p.typeName(typeLoc)
		if err != nil {
			return "", err
		}

		b.WriteString("struct ")
		b.WriteString(typeName)
		b.WriteString(" ")
		b.WriteString(name)
		if ctor != nil {
			mangled, err := mangle.ConstructorFor(ctor)
			if err != nil {
				return "", err
			}
			b.WriteString(" = ")
			b.WriteString(mangled)
			b.WriteString("(")
			b.WriteString(p.exprListToString(args))
			b.WriteString(")")
		}
		b.WriteString(";\n")
	}
	return b.String(), nil
}

// ---- walker hook registration ---------------------------------------------

func (p *Pass) registerHooks() {
	walker.Register(p.w, p.handleCompound)
	walker.Register(p.w, p.handleTypeLoc)
	walker.Register(p.w, p.handleThis)
	walker.Register(p.w, p.handleOperatorCall)
	walker.Register(p.w, p.handleMemberCall)
	walker.Register(p.w, p.handleCallExpr)
	walker.Register(p.w, p.handleConstructExpr)
	walker.Register(p.w, p.handleFunctionalCast)
	walker.Register(p.w, p.handleTemporaryObject)
	walker.Register(p.w, p.handleVar)
}

// handleCompound implements 4.4.15: for each direct child statement, detect
// non-nested temporary-object usages, wrap the statement in prologue/epilogue
// markers, then recurse into it. Nested compounds get their own pass when
// the walker's default traversal reaches them through this same hook.
func (p *Pass) handleCompound(w *walker.Walker, c *ast.Compound) bool {
	if p.err != nil {
		return false
	}
	for _, s := range c.Stmts {
		if p.err != nil {
			return false
		}
		temps := collectTemporaries(s)
		if len(temps) > 0 {
			prologue, err := p.synthesizeTemporariesPrologue(temps)
			if err != nil {
				p.fail(err)
				return false
			}
			if err := p.current.InsertBefore(stmtRange(s).Begin, prologue); err != nil {
				p.fail(err)
				return false
			}
			if err := p.current.InsertAfter(stmtSemiEnd(s), "\n/* END USAGE OF TEMPORARY OBJECT */\n"); err != nil {
				p.fail(err)
				return false
			}
		}
		w.WalkStmt(s)
	}
	return false
}

// handleTypeLoc implements 4.4.9.
func (p *Pass) handleTypeLoc(w *walker.Walker, t *ast.TypeLoc) bool {
	if p.err != nil {
		return false
	}
	if t.Referenced != nil {
		mangled := mangle.Record(t.Referenced.TemplateName, t.Referenced.Args)
		if err := p.current.ReplaceRange(t.Range, mangled); err != nil {
			p.fail(err)
		}
		return false
	}
	if t.Substitution != "" {
		if err := p.current.ReplaceRange(t.Range, t.Substitution); err != nil {
			p.fail(err)
			return false
		}
		return true
	}
	return true
}

// handleThis implements 4.4.12.
func (p *Pass) handleThis(w *walker.Walker, n *ast.CxxThisExpr) bool {
	if p.err != nil {
		return false
	}
	if n.Implicit {
		if err := p.current.InsertBefore(n.Range.Begin, "thisRef->"); err != nil {
			p.fail(err)
		}
	} else {
		if err := p.current.ReplaceRange(n.Range, "thisRef"); err != nil {
			p.fail(err)
		}
	}
	return true
}

// handleOperatorCall implements 4.4.11's CxxOperatorCallExpr form.
func (p *Pass) handleOperatorCall(w *walker.Walker, n *ast.CxxOperatorCallExpr) bool {
	if p.err != nil {
		return false
	}
	if n.Method == nil {
		return true
	}
	for _, a := range n.Args {
		w.WalkExpr(a)
		if p.err != nil {
			return false
		}
	}
	mangled, err := mangle.MethodFor(n.Method)
	if err != nil {
		p.fail(err)
		return false
	}
	argTexts := make([]string, len(n.Args))
	for i, a := range n.Args {
		txt := p.exprToString(a)
		if i == 0 {
			txt = "&(" + txt + ")"
		}
		argTexts[i] = txt
	}
	replacement := mangled + "(" + strings.Join(argTexts, ", ") + ")"
	if err := p.current.ReplaceRange(n.Range, replacement); err != nil {
		p.fail(err)
	}
	return false
}

// handleMemberCall implements 4.4.11's CxxMemberCallExpr form.
func (p *Pass) handleMemberCall(w *walker.Walker, n *ast.CxxMemberCallExpr) bool {
	if p.err != nil {
		return false
	}
	callee := n.Callee
	var receiver string
	if this, ok := callee.Base.(*ast.CxxThisExpr); callee.ImplicitThis || (ok && !this.Implicit) {
		receiver = "thisRef"
	} else {
		receiver = p.exprToString(callee.Base)
		if !callee.IsArrow {
			receiver = "&" + receiver
		}
	}
	if len(n.Args) > 0 {
		if err := p.current.InsertBefore(n.Args[0].SourceRange().Begin, receiver+", "); err != nil {
			p.fail(err)
			return false
		}
	} else {
		if err := p.current.InsertBefore(n.RParenLoc, receiver); err != nil {
			p.fail(err)
			return false
		}
	}
	mangled, err := mangle.MethodFor(callee.Method)
	if err != nil {
		p.fail(err)
		return false
	}
	calleeFullRange := ast.Range{Begin: callee.Base.SourceRange().Begin, End: callee.Range.End}
	if err := p.current.ReplaceRange(calleeFullRange, mangled); err != nil {
		p.fail(err)
		return false
	}
	for _, a := range n.Args {
		w.WalkExpr(a)
		if p.err != nil {
			return false
		}
	}
	return false
}

// handleCallExpr implements 4.4.11's plain CallExpr form.
func (p *Pass) handleCallExpr(w *walker.Walker, n *ast.CallExpr) bool {
	if p.err != nil {
		return false
	}
	w.WalkExpr(n.Callee)
	for _, a := range n.Args {
		w.WalkExpr(a)
		if p.err != nil {
			return false
		}
	}
	if f, ok := n.Callee.Decl.(*ast.Function); ok && f.TemplatedKind == ast.FunctionTemplateSpecializationKind {
		mangled := mangle.FunctionFor(f)
		if err := p.current.ReplaceRange(n.CalleeRange, mangled+"("); err != nil {
			p.fail(err)
		}
	}
	return false
}

// handleConstructExpr implements 4.4.14.
func (p *Pass) handleConstructExpr(w *walker.Walker, n *ast.CxxConstructExpr) bool {
	if p.err != nil {
		return false
	}
	for _, a := range n.Args {
		w.WalkExpr(a)
		if p.err != nil {
			return false
		}
	}
	if n.Constructor != nil {
		mangled, err := mangle.ConstructorFor(n.Constructor)
		if err != nil {
			p.fail(err)
			return false
		}
		replacement := mangled + "(" + p.exprListToString(n.Args) + ")"
		if n.ParenOrBraceRange != nil {
			if err := p.current.ReplaceRange(*n.ParenOrBraceRange, replacement); err != nil {
				p.fail(err)
			}
		} else {
			if err := p.current.InsertAfter(p.endOfToken(n.Range.End), replacement); err != nil {
				p.fail(err)
			}
		}
	}
	return false
}

// handleFunctionalCast and handleTemporaryObject implement 4.4.15 step 4.
func (p *Pass) handleFunctionalCast(w *walker.Walker, n *ast.CxxFunctionalCastExpr) bool {
	return p.replaceTemporary(n, n.Range)
}

func (p *Pass) handleTemporaryObject(w *walker.Walker, n *ast.CxxTemporaryObjectExpr) bool {
	return p.replaceTemporary(n, n.Range)
}

func (p *Pass) replaceTemporary(e ast.Expr, rng ast.Range) bool {
	if p.err != nil {
		return false
	}
	name, ok := p.tempNames[e]
	if !ok {
		p.fail(fatalf("transform: no temporary object name recorded for %T", e))
		return false
	}
	if err := p.current.ReplaceRange(rng, name); err != nil {
		p.fail(err)
	}
	return false
}

// handleVar implements 4.4.13.
func (p *Pass) handleVar(w *walker.Walker, v *ast.Var) bool {
	if p.err != nil {
		return false
	}
	if v.Init == nil {
		return true
	}
	ce, isConstruct := v.Init.(*ast.CxxConstructExpr)
	if v.CallInit && !isConstruct {
		p.fail(fatalf("transform: variable %q uses call-initialization but has a non-construct initializer", v.Name))
		return false
	}
	if isConstruct && ce.Constructor != nil {
		var loc ast.Loc
		if ce.ParenOrBraceRange != nil {
			loc = ce.ParenOrBraceRange.Begin
		} else {
			loc = p.endOfToken(ce.Range.End)
		}
		if err := p.current.InsertBefore(loc, " = "); err != nil {
			p.fail(err)
			return false
		}
	}
	return true
}
