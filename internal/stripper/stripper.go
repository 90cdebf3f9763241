// Package stripper implements the Template-Stripping Pass, spec §4.5
// (component E): a second, narrower traversal run over every foreign file
// the Transformation Pass deferred into template_files. It removes the
// leftover template and method declarations that Case B flattening already
// copied into the main file, leaving everything else in the foreign file
// untouched.
package stripper

import (
	"github.com/patos-lang/patosc/internal/ast"
	"github.com/patos-lang/patosc/internal/rewriter"
	"github.com/patos-lang/patosc/internal/walker"
)

// Pass is one Template-Stripping Pass invocation over a single file.
type Pass struct {
	sm  ast.SourceManager
	lex ast.Lexer
	rw  *rewriter.Rewriter
	w   *walker.Walker
	err error
}

// New creates a Pass over file, whose original bytes are source.
func New(sm ast.SourceManager, lex ast.Lexer, file string, source []byte) *Pass {
	p := &Pass{
		sm:  sm,
		lex: lex,
		rw:  rewriter.New(file, source),
	}
	p.w = walker.New(sm)
	p.registerHooks()
	return p
}

// Rewriter returns the overlay accumulating this file's edits.
func (p *Pass) Rewriter() *rewriter.Rewriter { return p.rw }

// Run strips every class template, function template, method-bearing
// record, and out-of-line method declared at the top level of tu.
func (p *Pass) Run(tu *ast.TranslationUnit) error {
	for _, d := range tu.Decls {
		if p.err != nil {
			break
		}
		p.w.WalkDecl(d)
	}
	return p.err
}

func (p *Pass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// realEnd computes the "real end" of a template declaration's range per
// spec §4.5: end-of-token of the declaration's own end location, extended
// one past a trailing semicolon when the lexer finds one immediately
// following (a plain struct definition's closing brace is not itself the
// end of the statement; the trailing `;` is).
func (p *Pass) realEnd(end ast.Loc) ast.Loc {
	after := end
	if p.lex != nil {
		after = p.lex.EndOfToken(end)
		if loc, ok := p.lex.FindLocationAfterToken(end, ast.TokSemi); ok {
			return loc
		}
	}
	return after
}

func (p *Pass) registerHooks() {
	walker.Register(p.w, p.traverseClassTemplate)
	walker.Register(p.w, p.traverseFunctionTemplate)
	walker.Register(p.w, p.traverseCxxRecord)
	walker.Register(p.w, p.traverseCxxMethod)
}

// traverseClassTemplate removes the whole `template<...> struct Name {...};`
// declaration, real-end included.
func (p *Pass) traverseClassTemplate(w *walker.Walker, ct *ast.ClassTemplate) bool {
	rng := ast.Range{Begin: ct.Range.Begin, End: p.realEnd(ct.Range.End)}
	if err := p.rw.RemoveRange(rng); err != nil {
		p.fail(err)
	}
	return false
}

// traverseFunctionTemplate removes a top-level function-template
// declaration the same way. Out-of-line template methods of a class
// template (e.g. `template<typename T> void Vec<T>::push(T x) {...}`) are
// parsed as FunctionTemplate too and fall under this same hook, mirroring
// how the Transformation Pass's traverseFunctionTemplate handles them.
func (p *Pass) traverseFunctionTemplate(w *walker.Walker, ft *ast.FunctionTemplate) bool {
	rng := ast.Range{Begin: ft.Range.Begin, End: p.realEnd(ft.Range.End)}
	if err := p.rw.RemoveRange(rng); err != nil {
		p.fail(err)
	}
	return false
}

// traverseCxxRecord removes a record's whole declaration without recursing
// into it when it contains methods (those methods were already copied into
// the flat record synthesized by the Transformation Pass); otherwise it
// recurses normally, which is a no-op here since a plain struct's fields
// and implicit members carry nothing left to strip.
func (p *Pass) traverseCxxRecord(w *walker.Walker, r *ast.CxxRecord) bool {
	if !r.ContainsMethods() {
		return true
	}
	rng := ast.Range{Begin: r.Range.Begin, End: p.realEnd(r.Range.End)}
	if err := p.rw.RemoveRange(rng); err != nil {
		p.fail(err)
	}
	return false
}

// traverseCxxMethod removes an out-of-line method declaration
// unconditionally, covering its signature and body (or, for a
// declaration-only prototype, its real end).
func (p *Pass) traverseCxxMethod(w *walker.Walker, m *ast.CxxMethod) bool {
	end := m.SignatureRange.End
	if m.Body != nil {
		end = m.Body.Range.End
	} else {
		end = p.realEnd(end)
	}
	rng := ast.Range{Begin: m.SignatureRange.Begin, End: end}
	if err := p.rw.RemoveRange(rng); err != nil {
		p.fail(err)
	}
	return false
}
