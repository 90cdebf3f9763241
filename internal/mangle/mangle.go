// Package mangle implements the Patos compiler's deterministic name
// mangling, spec §4.1 (Name Mangler, component A).
//
// All functions here are pure: given the same declaration shape they
// produce the same string, every time, with no dependency on traversal
// order or rewriter state. This mirrors the original PatosNameMangling's
// fixed string-prefix constants (original_source/src/name_mangling.cpp).
package mangle

import (
	"fmt"
	"strings"

	"github.com/patos-lang/patosc/internal/ast"
)

// Fixed prefixes and delimiters, ported 1:1 from
// original_source/src/name_mangling.cpp.
const (
	functionPrefix    = "__patos_"
	recordPrefix      = "__Patos_"
	typeDelimiter     = "_"
	recordSeparator   = "__"
	operatorTagPrefix = "operator__"
	constructorTag    = "constructor"
)

// FatalError signals one of the mangler's fatal conditions (spec §7): an
// operator-kind enumerator outside the closed 44-entry table.
type FatalError struct {
	msg string
}

func (e *FatalError) Error() string { return e.msg }

func fatalf(format string, args ...any) *FatalError {
	return &FatalError{msg: fmt.Sprintf(format, args...)}
}

func appendArgs(b *strings.Builder, args []string) {
	for _, a := range args {
		b.WriteString(typeDelimiter)
		b.WriteString(a)
	}
}

// Record mangles a class-template specialization's record name:
// "__Patos_" + name + ("_" + arg)*.
func Record(name string, args []string) string {
	var b strings.Builder
	b.WriteString(recordPrefix)
	b.WriteString(name)
	appendArgs(&b, args)
	return b.String()
}

// RecordRef mangles the record name of r, or returns r.Name unchanged if r
// is not a specialization (a plain struct keeps its source name).
func RecordRef(r ast.RecordRef) string {
	if !r.IsSpecialization {
		return r.Name
	}
	return Record(r.Name, r.Args)
}

// Function mangles a kernel or free-function-template specialization name:
// "__patos_" + name + ("_" + arg)*. Kernel names and free function-template
// specialization names share this form (spec §4.1).
func Function(name string, args []string) string {
	var b strings.Builder
	b.WriteString(functionPrefix)
	b.WriteString(name)
	appendArgs(&b, args)
	return b.String()
}

// argTypeString renders one method-template argument, recursing into the
// record-name form when the argument is itself a class-template
// specialization (spec §4.1, last bullet).
func argTypeString(arg string, argRecord *ast.RecordRef) string {
	if argRecord != nil {
		return RecordRef(*argRecord)
	}
	return arg
}

// MethodOpts carries the optional per-argument specialization info needed
// by argTypeString; most callers can leave ArgRecords nil.
type MethodOpts struct {
	// ArgRecords, when non-nil, gives the class-template-specialization
	// info for the corresponding entry of TemplateArgs, or nil for an
	// argument that isn't itself a specialization.
	ArgRecords []*ast.RecordRef
}

// Method mangles a (possibly templated) member of a (possibly specialized)
// record, per spec §4.1:
//
//	"__Patos_" + parent + "__" + tail + ("_" + arg)*
//
// where tail is "operator__<token>" for operator overloads, "constructor"
// for constructors, or the plain method name otherwise, and the trailing
// args are only appended when the method itself is a template
// specialization.
func Method(parent ast.RecordRef, plainName string, isOperator bool, op ast.OperatorKind, isConstructor bool, templateArgs []string, opts MethodOpts) (string, error) {
	var b strings.Builder
	b.WriteString(recordPrefix)
	b.WriteString(parent.Name)
	if parent.IsSpecialization {
		appendArgs(&b, parent.Args)
	}
	b.WriteString(recordSeparator)

	switch {
	case isConstructor:
		b.WriteString(constructorTag)
	case isOperator:
		tok, ok := op.TokenName()
		if !ok {
			return "", fatalf("mangle: unknown operator kind %d", op)
		}
		b.WriteString(operatorTagPrefix)
		b.WriteString(tok)
	default:
		b.WriteString(plainName)
	}

	for i, a := range templateArgs {
		var rec *ast.RecordRef
		if opts.ArgRecords != nil && i < len(opts.ArgRecords) {
			rec = opts.ArgRecords[i]
		}
		b.WriteString(typeDelimiter)
		b.WriteString(argTypeString(a, rec))
	}

	return b.String(), nil
}

// Kernel is an alias for Function: kernel names and free-function-template
// names share the same mangling form (spec §4.1).
func Kernel(name string, args []string) string {
	return Function(name, args)
}

// MethodFor mangles decl.Name using its own Parent/operator/template-arg
// fields, for the common case where no method argument is itself a
// class-template specialization.
func MethodFor(m *ast.CxxMethod) (string, error) {
	return Method(m.Parent, m.Name, m.IsOperator, m.Operator, false, m.TemplateArgs, MethodOpts{})
}

// ConstructorFor mangles a constructor's name from its parent record.
func ConstructorFor(c *ast.CxxConstructor) (string, error) {
	return Method(c.Parent, "", false, ast.OpNone, true, nil, MethodOpts{})
}

// FunctionFor mangles a Function's name. Free functions that are not
// function-template specializations are not mangled at all by the
// pass (spec §4.4.8 only rewrites declarators for specializations/
// methods); callers should only invoke this when f.TemplatedKind !=
// ast.NotTemplated.
func FunctionFor(f *ast.Function) string {
	return Function(f.Name, f.TemplateArgs)
}
