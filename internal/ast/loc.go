// Package ast defines the declaration/expression/statement node model that
// the Patos compiler's core expects from its front-end, per spec §3 and §6.
// AST construction itself is delegated to an external C/C++ front-end; this
// package only describes the shape that front-end must deliver.
package ast

import "fmt"

// Characteristic classifies where a SourceLocation lives, mirroring
// clang::SrcMgr::CharacteristicKind.
type Characteristic int

const (
	User Characteristic = iota
	System
)

// Loc is an opaque handle denoting a byte position in some file of the
// translation unit. The core treats it as a value type; front-ends are free
// to back it with whatever representation they like (offsets, pointers,
// file IDs) as long as equality and the Lexer/SourceManager operations below
// are well-defined for it.
type Loc struct {
	File   string
	Offset int
}

// Invalid is the sentinel returned by operations that fail to find a
// location (e.g. LocationAfterToken scanning off the end of a file).
var Invalid = Loc{}

// IsValid reports whether l is not the Invalid sentinel.
func (l Loc) IsValid() bool { return l != Invalid }

func (l Loc) String() string { return fmt.Sprintf("%s:%d", l.File, l.Offset) }

// Range denotes a half-open [Begin, End) byte range in a single file.
type Range struct {
	Begin Loc
	End   Loc
}

// TokenKind identifies a lexical token kind for LocationAfterToken scans.
// The core only ever scans for punctuation tokens it emits itself
// (commas, parens, semicolons, braces), so the set is small and closed.
type TokenKind int

const (
	TokLParen TokenKind = iota
	TokRParen
	TokSemi
	TokLBrace
	TokRBrace
	TokComma
)

// SourceManager maps locations to files and classifies them, per the
// front-end contract in spec §6.
type SourceManager interface {
	Characteristic(l Loc) Characteristic
	Filename(l Loc) string
	MainFileID() string
	LocForEndOfFile(file string) Loc
}

// Lexer finds token boundaries relative to a location, per the front-end
// contract in spec §6.
type Lexer interface {
	// EndOfToken advances past the token at l and returns the location just
	// after it.
	EndOfToken(l Loc) Loc
	// FindLocationAfterToken scans forward from l past optional whitespace
	// until a token of the given kind, returning the location just after it,
	// or the Invalid sentinel if no such token is found before EOF.
	FindLocationAfterToken(l Loc, kind TokenKind) (Loc, bool)
}

// IsInSystemFile reports whether decl's start location belongs to a system
// include, per the is_in_system_file short-circuit predicate of spec §4.3.
func IsInSystemFile(sm SourceManager, l Loc) bool {
	return sm.Characteristic(l) == System
}
