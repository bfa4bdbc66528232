// Package stream implements the structured field streams that simulation
// module records are read from and written to.
//
// Two encodings share one API. The text encoding is a bracketed, human
// readable form:
//
//	(* MovesTemplate *)
//
//	moves{
//	  frequency{2}
//	  ntypes{1}
//	  n{2}
//	  entries{
//	    {
//	      step{0.5}
//	      accept{
//	        total{20000}
//	        accepted{9871}
//	      }
//	    }
//	    {
//	      step{0.25}
//	    }
//	  }
//	};
//
// Text writers omit fields that are at their default or empty state, and text
// readers look fields up by name. The binary encoding is positional: every
// field is always written, in declaration order, so readers must request
// fields in exactly the order writers emitted them.
//
// Writer and Reader are explicit context objects; module code threads them
// through nested Read/Write calls instead of relying on package state.
package stream

import (
	"errors"
	"fmt"
	"strings"
)

// Encoding selects the on-stream representation.
type Encoding int

const (
	// Text is the bracketed `name{ v1 v2 … }` form.
	Text Encoding = iota
	// Binary is the packed positional form.
	Binary
)

// MaxCount bounds any declared element count. Larger counts are treated as
// corrupt input rather than allocated.
const MaxCount = 1 << 24

// MaxDepth bounds the nesting of text blocks within one section.
const MaxDepth = 64

// ErrMalformed is returned (wrapped) for negative or unparsable counts,
// missing required blocks and any other input that does not match the
// declared field layout.
var ErrMalformed = errors.New("malformed stream")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// String returns the flag spelling of the encoding.
func (e Encoding) String() string {
	switch e {
	case Text:
		return "text"
	case Binary:
		return "binary"
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// ParseEncoding maps "text"/"binary" (case-insensitive) to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return Text, nil
	case "binary", "bin":
		return Binary, nil
	}
	return Text, fmt.Errorf("unknown stream encoding %q", s)
}
