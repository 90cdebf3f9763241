// Package rewriter implements the Source Rewriter, spec §4.2 (component B):
// a buffered overlay over one file's original source text, exposing
// insert-before/insert-after/replace-range/remove-range and
// "read rewritten text of range" operations. Multiple independent
// overlays (one per Rewriter value) may coexist over the same or
// different files, per the stacked-rewriter pattern of spec §9.
package rewriter

import (
	"fmt"
	"sort"

	"github.com/patos-lang/patosc/internal/ast"
)

// OverlapError reports that an edit would violate the Rewriter's
// non-overlapping-edits invariant (spec §3, "Rewriter"). This is a
// programmer error in the transform/stripper passes, surfaced as an
// ordinary error rather than a panic so the driver can report it like any
// other fatal condition (spec §7).
type OverlapError struct {
	New, Existing Range
}

// Range is a half-open [Start, End) byte range within the Rewriter's
// buffer. Zero-width ranges (Start == End) represent insertion points.
type Range struct {
	Start, End int
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("rewriter: edit %v overlaps existing edit %v", e.New, e.Existing)
}

type editKind int

const (
	kindInsertBefore editKind = iota
	kindInsertAfter
	kindReplace
	kindRemove
)

// priority orders same-offset zero-width edits: insert-before text precedes
// the point, insert-after text follows it.
func (k editKind) priority() int {
	switch k {
	case kindInsertBefore:
		return 0
	case kindReplace, kindRemove:
		return 1
	case kindInsertAfter:
		return 2
	}
	return 1
}

type edit struct {
	start, end int
	kind       editKind
	text       string
	seq        int
}

func (e edit) isZeroWidth() bool { return e.start == e.end }

// Rewriter is one overlay over a single file's original source bytes.
type Rewriter struct {
	file     string
	original []byte
	edits    []edit
	seq      int
}

// New creates a Rewriter over the given file's original source text.
func New(file string, original []byte) *Rewriter {
	return &Rewriter{file: file, original: append([]byte(nil), original...)}
}

// File returns the name of the file this Rewriter overlays.
func (r *Rewriter) File() string { return r.file }

// Original returns the unmodified source buffer.
func (r *Rewriter) Original() []byte { return r.original }

func locOffset(l ast.Loc) int { return l.Offset }

func overlaps(a, b edit) bool {
	if a.isZeroWidth() && b.isZeroWidth() {
		return false
	}
	if a.isZeroWidth() {
		return b.start < a.start && a.start < b.end
	}
	if b.isZeroWidth() {
		return a.start < b.start && b.start < a.end
	}
	return a.start < b.end && b.start < a.end
}

func (r *Rewriter) addEdit(e edit) error {
	for _, existing := range r.edits {
		if overlaps(e, existing) {
			return &OverlapError{
				New:      Range{e.start, e.end},
				Existing: Range{existing.start, existing.end},
			}
		}
	}
	e.seq = r.seq
	r.seq++
	r.edits = append(r.edits, e)
	return nil
}

// InsertBefore inserts text immediately before loc, without consuming any
// original bytes.
func (r *Rewriter) InsertBefore(loc ast.Loc, text string) error {
	off := locOffset(loc)
	return r.addEdit(edit{start: off, end: off, kind: kindInsertBefore, text: text})
}

// InsertAfter inserts text immediately after loc.
func (r *Rewriter) InsertAfter(loc ast.Loc, text string) error {
	off := locOffset(loc)
	return r.addEdit(edit{start: off, end: off, kind: kindInsertAfter, text: text})
}

// ReplaceRange replaces the bytes in rng with text.
func (r *Rewriter) ReplaceRange(rng ast.Range, text string) error {
	start, end := locOffset(rng.Begin), locOffset(rng.End)
	return r.addEdit(edit{start: start, end: end, kind: kindReplace, text: text})
}

// RemoveRange deletes the bytes in rng.
func (r *Rewriter) RemoveRange(rng ast.Range) error {
	start, end := locOffset(rng.Begin), locOffset(rng.End)
	return r.addEdit(edit{start: start, end: end, kind: kindRemove, text: ""})
}

// sortedEdits returns r.edits ordered by (start offset, priority, sequence)
// so composition can be done with a single linear sweep.
func (r *Rewriter) sortedEdits() []edit {
	out := append([]edit(nil), r.edits...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		pi, pj := out[i].kind.priority(), out[j].kind.priority()
		if pi != pj {
			return pi < pj
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// RewrittenTextOf composes the original text of rng with every edit applied
// that falls entirely within rng, per spec §3: "the original text with all
// applied edits within that range composed in order; if no edit touches the
// range, yields the original text."
func (r *Rewriter) RewrittenTextOf(rng ast.Range) string {
	start, end := locOffset(rng.Begin), locOffset(rng.End)
	return r.composeRange(start, end)
}

func (r *Rewriter) composeRange(start, end int) string {
	var out []byte
	cursor := start
	for _, e := range r.sortedEdits() {
		if e.start < start || e.end > end {
			continue
		}
		out = append(out, r.original[cursor:e.start]...)
		switch e.kind {
		case kindInsertBefore, kindInsertAfter, kindReplace:
			out = append(out, e.text...)
		case kindRemove:
			// no text inserted
		}
		cursor = e.end
	}
	out = append(out, r.original[cursor:end]...)
	return string(out)
}

// Bytes composes the entire buffer with all edits applied, i.e. the result
// that would be written to disk ("flush_changed_files" in spec §4.2).
func (r *Rewriter) Bytes() []byte {
	return []byte(r.composeRange(0, len(r.original)))
}

// Modified reports whether any edit has been recorded.
func (r *Rewriter) Modified() bool { return len(r.edits) > 0 }
