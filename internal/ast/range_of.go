package ast

// DeclRange returns the representative source range used to test whether a
// declaration lives in a system header, per the is_in_system_file
// short-circuit predicate of spec §4.3. The walker calls it for every
// declaration it visits, Field and ParmVar included. Declarations that carry
// no range of their own (TranslationUnit, CxxDestructor, TypedefName) yield
// the zero Range, whose Begin is not a valid location.
func DeclRange(d Decl) Range {
	switch v := d.(type) {
	case *TranslationUnit:
		return Range{}
	case *ClassTemplate:
		return v.Range
	case *ClassTemplateSpecialization:
		return v.Range
	case *CxxRecord:
		return v.Range
	case *FunctionTemplate:
		return v.Range
	case *Function:
		return v.SignatureRange
	case *CxxMethod:
		return v.SignatureRange
	case *CxxConstructor:
		return v.SignatureRange
	case *CxxDestructor:
		return Range{}
	case *Field:
		return v.Range
	case *Var:
		return v.Range
	case *TypedefName:
		return Range{}
	case *ParmVar:
		return v.Range
	}
	return Range{}
}

// DeclLoc returns DeclRange(d).Begin, the location the walker's
// is_in_system_file check should consult.
func DeclLoc(d Decl) Loc {
	return DeclRange(d).Begin
}
