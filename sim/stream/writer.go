package stream

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"strings"
)

// Writer marshals ordered, named fields onto an output stream.
//
// Field methods record the first error and turn every later call into a
// no-op; Err and Flush report it.
type Writer struct {
	enc   Encoding
	out   *bufio.Writer
	depth int
	err   error
	buf   [binary.MaxVarintLen64]byte
}

// NewWriter returns a Writer emitting enc onto w.
func NewWriter(w io.Writer, enc Encoding) *Writer {
	return &Writer{enc: enc, out: bufio.NewWriter(w)}
}

// Encoding returns the encoding this writer emits.
func (w *Writer) Encoding() Encoding { return w.enc }

// Binary reports whether the writer emits the packed positional form.
func (w *Writer) Binary() bool { return w.enc == Binary }

// Depth returns the current block nesting depth.
func (w *Writer) Depth() int { return w.depth }

// Err returns the first error encountered while writing.
func (w *Writer) Err() error { return w.err }

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.out.Flush()
	return w.err
}

// Comment writes a free-form comment line. Binary streams carry no comments.
func (w *Writer) Comment(text string) {
	if w.Binary() {
		return
	}
	w.raw("(* " + text + " *)\n")
}

// Header starts a new top-level section.
func (w *Writer) Header(name string) {
	if w.Binary() {
		w.str(name)
		return
	}
	w.raw("(* " + name + " *)\n\n")
}

// Begin opens a named block.
func (w *Writer) Begin(name string) {
	if w.Binary() {
		return
	}
	w.line(name + "{")
	w.depth++
}

// End closes the innermost block. A top-level block is terminated by ";".
func (w *Writer) End() {
	if w.Binary() {
		return
	}
	if w.depth > 0 {
		w.depth--
	}
	if w.depth == 0 {
		w.raw("};\n\n")
		return
	}
	w.line("}")
}

// Int writes a signed integer field; text omits it when v == def.
func (w *Writer) Int(name string, v, def int64) {
	if w.Binary() {
		n := binary.PutVarint(w.buf[:], v)
		w.bytes(w.buf[:n])
		return
	}
	if v != def {
		w.scalar(name, strconv.FormatInt(v, 10))
	}
}

// Uint writes an unsigned integer field; text omits it when v == def.
func (w *Writer) Uint(name string, v, def uint64) {
	if w.Binary() {
		n := binary.PutUvarint(w.buf[:], v)
		w.bytes(w.buf[:n])
		return
	}
	if v != def {
		w.scalar(name, strconv.FormatUint(v, 10))
	}
}

// Float writes a float field; text omits it when v == def.
func (w *Writer) Float(name string, v, def float64) {
	if w.Binary() {
		w.float(v)
		return
	}
	if v != def {
		w.scalar(name, formatFloat(v))
	}
}

// Bool writes a boolean field; text omits it when v == def.
func (w *Writer) Bool(name string, v, def bool) {
	if w.Binary() {
		b := byte(0)
		if v {
			b = 1
		}
		w.bytes([]byte{b})
		return
	}
	if v != def {
		w.scalar(name, strconv.FormatBool(v))
	}
}

// Floats writes a float vector; text omits it when it is empty.
func (w *Writer) Floats(name string, vs []float64) {
	if w.Binary() {
		n := binary.PutUvarint(w.buf[:], uint64(len(vs)))
		w.bytes(w.buf[:n])
		for _, v := range vs {
			w.float(v)
		}
		return
	}
	if len(vs) == 0 {
		return
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	w.scalar(name, strings.Join(parts, " "))
}

// Ints writes an integer vector; text omits it when it is empty.
func (w *Writer) Ints(name string, vs []int64) {
	if w.Binary() {
		n := binary.PutUvarint(w.buf[:], uint64(len(vs)))
		w.bytes(w.buf[:n])
		for _, v := range vs {
			n = binary.PutVarint(w.buf[:], v)
			w.bytes(w.buf[:n])
		}
		return
	}
	if len(vs) == 0 {
		return
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatInt(v, 10)
	}
	w.scalar(name, strings.Join(parts, " "))
}

// Count writes the element count that precedes a variable-length field.
func (w *Writer) Count(name string, n int) {
	w.Int(name, int64(n), 0)
}

// Nested writes n anonymous element blocks under name, calling each to
// emit the fields of element i. Text omits the block when n == 0.
func (w *Writer) Nested(name string, n int, each func(i int) error) error {
	if w.err != nil {
		return w.err
	}
	if w.Binary() {
		for i := 0; i < n; i++ {
			if err := each(i); err != nil {
				return err
			}
		}
		return w.err
	}
	if n == 0 {
		return nil
	}
	w.line(name + "{")
	w.depth++
	for i := 0; i < n; i++ {
		w.line("{")
		w.depth++
		if err := each(i); err != nil {
			return err
		}
		w.depth--
		w.line("}")
	}
	w.depth--
	w.line("}")
	return w.err
}

// Record writes a single named sub-record. Text omits it when omit is true;
// binary always writes it.
func (w *Writer) Record(name string, omit bool, fn func() error) error {
	if w.err != nil {
		return w.err
	}
	if w.Binary() {
		if err := fn(); err != nil {
			return err
		}
		return w.err
	}
	if omit {
		return nil
	}
	w.line(name + "{")
	w.depth++
	if err := fn(); err != nil {
		return err
	}
	w.depth--
	w.line("}")
	return w.err
}

func (w *Writer) scalar(name, value string) {
	w.line(name + "{" + value + "}")
}

func (w *Writer) line(s string) {
	w.raw(strings.Repeat("  ", w.depth) + s + "\n")
}

func (w *Writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.out.WriteString(s)
}

func (w *Writer) str(s string) {
	n := binary.PutUvarint(w.buf[:], uint64(len(s)))
	w.bytes(w.buf[:n])
	w.bytes([]byte(s))
}

func (w *Writer) float(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.bytes(b[:])
}

func (w *Writer) bytes(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.out.Write(b)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
