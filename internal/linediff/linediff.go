// Package linediff computes positional line diffs between two versions of a block.
//
// The diff is deliberately not content-aligned: line i of the old text is compared with line i of the new
// text, so inserting a line in the middle shows up as a run of replaces plus one trailing insert. Blocks are
// short, and lineage views only need to show which positions changed.
package linediff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation kinds.
const (
	OpReplace = "replace"
	OpInsert  = "insert"
	OpDelete  = "delete"
)

// Op is one line-level change at absolute line index Line.
// Replace uses Old and New, insert uses Value, delete uses Old.
type Op struct {
	Op    string `json:"op"`
	Line  int    `json:"line"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new,omitempty"`
	Value string `json:"value,omitempty"`
}

// MarshalJSON emits exactly the fields of the operation kind, including empty strings.
func (o Op) MarshalJSON() ([]byte, error) {
	switch o.Op {
	case OpReplace:
		return json.Marshal(struct {
			Op   string `json:"op"`
			Line int    `json:"line"`
			Old  string `json:"old"`
			New  string `json:"new"`
		}{o.Op, o.Line, o.Old, o.New})
	case OpInsert:
		return json.Marshal(struct {
			Op    string `json:"op"`
			Line  int    `json:"line"`
			Value string `json:"value"`
		}{o.Op, o.Line, o.Value})
	case OpDelete:
		return json.Marshal(struct {
			Op   string `json:"op"`
			Line int    `json:"line"`
			Old  string `json:"old"`
		}{o.Op, o.Line, o.Old})
	default:
		return nil, fmt.Errorf("linediff: unknown op %q", o.Op)
	}
}

// Split normalizes CRLF to LF and splits on LF, keeping empty lines.
func Split(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// Diff returns the operations turning oldText into newText, in increasing line order.
// Equal inputs produce an empty, non-nil slice.
func Diff(oldText, newText string) []Op {
	a := Split(oldText)
	b := Split(newText)

	ops := []Op{}
	for i := 0; i < max(len(a), len(b)); i++ {
		switch {
		case i >= len(a):
			ops = append(ops, Op{Op: OpInsert, Line: i, Value: b[i]})
		case i >= len(b):
			ops = append(ops, Op{Op: OpDelete, Line: i, Old: a[i]})
		case a[i] != b[i]:
			ops = append(ops, Op{Op: OpReplace, Line: i, Old: a[i], New: b[i]})
		}
	}
	return ops
}

// Apply replays ops on oldText. Line endings of the result are LF.
func Apply(oldText string, ops []Op) (string, error) {
	lines := Split(oldText)
	deleted := make(map[int]bool)

	for _, op := range ops {
		switch op.Op {
		case OpReplace:
			if op.Line < 0 || op.Line >= len(lines) {
				return "", fmt.Errorf("linediff: replace at line %d out of range", op.Line)
			}
			lines[op.Line] = op.New
		case OpInsert:
			if op.Line < 0 {
				return "", fmt.Errorf("linediff: insert at line %d out of range", op.Line)
			}
			for len(lines) <= op.Line {
				lines = append(lines, "")
			}
			lines[op.Line] = op.Value
		case OpDelete:
			if op.Line < 0 || op.Line >= len(lines) {
				return "", fmt.Errorf("linediff: delete at line %d out of range", op.Line)
			}
			deleted[op.Line] = true
		default:
			return "", fmt.Errorf("linediff: unknown op %q", op.Op)
		}
	}

	out := make([]string, 0, len(lines))
	for i, l := range lines {
		if !deleted[i] {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n"), nil
}
