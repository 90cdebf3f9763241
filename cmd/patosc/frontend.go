package main

import (
	"fmt"

	"github.com/patos-lang/patosc/internal/driver"
)

// unavailableFrontend is the integration seam for the external C/C++
// front-end spec §6 delegates AST construction to: a real build wires this
// interface to a parser that produces a TranslationUnit plus a
// SourceManager/Lexer pair satisfying internal/ast's contract. Until that
// parser is wired in, every Parse call fails fast rather than silently
// returning an empty tree.
type unavailableFrontend struct{}

func (unavailableFrontend) Parse(path string, includePaths []driver.IncludePath) (*driver.ParsedFile, error) {
	return nil, fmt.Errorf("patosc: no C/C++ front-end wired in; cannot parse %s", path)
}
