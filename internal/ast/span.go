// Package ast defines the immutable concrete syntax tree produced by the
// parser and consumed by every later phase (scope resolution, evaluation,
// import analysis).
package ast

import "fmt"

// Span records a contiguous region of source text as a byte offset and
// length. Every node carries one; child spans are nested inside their
// parent's and siblings are totally ordered.
type Span struct {
	CharIndex uint64
	Length    uint32
}

// End returns the exclusive end offset of the span.
func (s Span) End() uint64 {
	return s.CharIndex + uint64(s.Length)
}

// Contains reports whether s fully contains other.
func (s Span) Contains(other Span) bool {
	return other.CharIndex >= s.CharIndex && other.End() <= s.End()
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.CharIndex, s.End())
}

// Position is a resolved (line, column, file) triple used in diagnostics.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// LineIndex maps byte offsets within a source text to 1-based line/column
// pairs, built once per module from its source text.
type LineIndex struct {
	file  string
	lines []int // byte offset of the start of each line
}

// NewLineIndex scans text for newline positions.
func NewLineIndex(file, text string) *LineIndex {
	lines := []int{0}
	for i, r := range text {
		if r == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &LineIndex{file: file, lines: lines}
}

// Resolve converts a byte offset into a Position.
func (li *LineIndex) Resolve(offset uint64) Position {
	off := int(offset)
	lo, hi := 0, len(li.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.lines[mid] <= off {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	line := lo
	col := off - li.lines[line]
	return Position{File: li.file, Line: line + 1, Column: col + 1}
}
