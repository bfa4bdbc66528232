package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strconv"
)

// node is one parsed text block: `name{ values… children… }`.
// Anonymous element blocks have an empty name.
type node struct {
	name     string
	values   []string
	children []*node
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Reader unmarshals ordered, named fields from an input stream.
type Reader struct {
	enc   Encoding
	in    *bufio.Reader
	lex   *lexer
	stack []*node
}

// NewReader returns a Reader decoding enc from r.
func NewReader(r io.Reader, enc Encoding) *Reader {
	in := bufio.NewReader(r)
	rd := &Reader{enc: enc, in: in}
	if enc == Text {
		rd.lex = newLexer(in)
	}
	return rd
}

// Encoding returns the encoding this reader decodes.
func (r *Reader) Encoding() Encoding { return r.enc }

// Binary reports whether the reader decodes the packed positional form.
func (r *Reader) Binary() bool { return r.enc == Binary }

// Header returns the name of the next top-level section, or io.EOF when the
// stream is exhausted.
func (r *Reader) Header() (string, error) {
	if r.Binary() {
		n, err := binary.ReadUvarint(r.in)
		if err == io.EOF {
			return "", io.EOF
		}
		if err != nil {
			return "", r.binaryErr("header", err)
		}
		if n > 1<<16 {
			return "", malformed("header length %d", n)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r.in, b); err != nil {
			return "", r.binaryErr("header", err)
		}
		return string(b), nil
	}
	t, err := r.lex.next()
	if err != nil {
		return "", err
	}
	switch t.kind {
	case tokEOF:
		return "", io.EOF
	case tokComment:
		return t.text, nil
	}
	return "", malformed("expected section header, found %q", t.text)
}

// Comment consumes a text comment if one is next and returns its content.
// Binary streams carry no comments.
func (r *Reader) Comment() (string, bool, error) {
	if r.Binary() {
		return "", false, nil
	}
	t, err := r.lex.peek()
	if err != nil {
		return "", false, err
	}
	if t.kind != tokComment {
		return "", false, nil
	}
	_, _ = r.lex.next()
	return t.text, true, nil
}

// Begin enters the named block. At the top level it parses the next block
// from the stream; nested blocks are required to be present.
func (r *Reader) Begin(name string) error {
	if r.Binary() {
		return nil
	}
	if len(r.stack) > 0 {
		c := r.top().child(name)
		if c == nil {
			return malformed("missing block %q", name)
		}
		r.stack = append(r.stack, c)
		return nil
	}
	t, err := r.nextSignificant()
	if err != nil {
		return err
	}
	if t.kind != tokWord || t.text != name {
		return malformed("expected block %q, found %q", name, t.text)
	}
	if t, err = r.lex.next(); err != nil {
		return err
	}
	if t.kind != tokOpen {
		return malformed("expected '{' after %q", name)
	}
	n := &node{name: name}
	if err := r.parseBody(n, 1); err != nil {
		return err
	}
	r.stack = append(r.stack, n)
	return nil
}

// End leaves the innermost block.
func (r *Reader) End() error {
	if r.Binary() {
		return nil
	}
	if len(r.stack) == 0 {
		return malformed("unbalanced block end")
	}
	r.stack = r.stack[:len(r.stack)-1]
	return nil
}

// Int reads a signed integer field. A field absent from a text block leaves
// dst unchanged.
func (r *Reader) Int(name string, dst *int64) error {
	if r.Binary() {
		v, err := binary.ReadVarint(r.in)
		if err != nil {
			return r.binaryErr(name, err)
		}
		*dst = v
		return nil
	}
	s, ok, err := r.scalar(name)
	if err != nil || !ok {
		return err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return malformed("field %q: %v", name, err)
	}
	*dst = v
	return nil
}

// IntValue is Int for plain int destinations.
func (r *Reader) IntValue(name string, dst *int) error {
	v := int64(*dst)
	if err := r.Int(name, &v); err != nil {
		return err
	}
	*dst = int(v)
	return nil
}

// Uint reads an unsigned integer field.
func (r *Reader) Uint(name string, dst *uint64) error {
	if r.Binary() {
		v, err := binary.ReadUvarint(r.in)
		if err != nil {
			return r.binaryErr(name, err)
		}
		*dst = v
		return nil
	}
	s, ok, err := r.scalar(name)
	if err != nil || !ok {
		return err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return malformed("field %q: %v", name, err)
	}
	*dst = v
	return nil
}

// Float reads a float field.
func (r *Reader) Float(name string, dst *float64) error {
	if r.Binary() {
		v, err := r.float()
		if err != nil {
			return r.binaryErr(name, err)
		}
		*dst = v
		return nil
	}
	s, ok, err := r.scalar(name)
	if err != nil || !ok {
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return malformed("field %q: %v", name, err)
	}
	*dst = v
	return nil
}

// Bool reads a boolean field.
func (r *Reader) Bool(name string, dst *bool) error {
	if r.Binary() {
		b, err := r.in.ReadByte()
		if err != nil {
			return r.binaryErr(name, err)
		}
		if b > 1 {
			return malformed("field %q: boolean byte %d", name, b)
		}
		*dst = b == 1
		return nil
	}
	s, ok, err := r.scalar(name)
	if err != nil || !ok {
		return err
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return malformed("field %q: %v", name, err)
	}
	*dst = v
	return nil
}

// Floats reads a fixed-size float vector into dst. Text blocks may carry
// fewer values than len(dst); the remainder is left unchanged.
func (r *Reader) Floats(name string, dst []float64) error {
	if r.Binary() {
		n, err := binary.ReadUvarint(r.in)
		if err != nil {
			return r.binaryErr(name, err)
		}
		if n != uint64(len(dst)) {
			return malformed("field %q: %d values, want %d", name, n, len(dst))
		}
		for i := range dst {
			if dst[i], err = r.float(); err != nil {
				return r.binaryErr(name, err)
			}
		}
		return nil
	}
	c, err := r.leaf(name)
	if err != nil || c == nil {
		return err
	}
	if len(c.values) > len(dst) {
		return malformed("field %q: %d values, want at most %d", name, len(c.values), len(dst))
	}
	for i, s := range c.values {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return malformed("field %q: %v", name, err)
		}
		dst[i] = v
	}
	return nil
}

// FloatSlice reads a variable-length float vector, replacing *dst.
func (r *Reader) FloatSlice(name string, dst *[]float64) error {
	if r.Binary() {
		n, err := binary.ReadUvarint(r.in)
		if err != nil {
			return r.binaryErr(name, err)
		}
		if n > MaxCount {
			return malformed("field %q: %d values", name, n)
		}
		out := make([]float64, n)
		for i := range out {
			if out[i], err = r.float(); err != nil {
				return r.binaryErr(name, err)
			}
		}
		*dst = out
		return nil
	}
	c, err := r.leaf(name)
	if err != nil || c == nil {
		return err
	}
	out := make([]float64, len(c.values))
	for i, s := range c.values {
		if out[i], err = strconv.ParseFloat(s, 64); err != nil {
			return malformed("field %q: %v", name, err)
		}
	}
	*dst = out
	return nil
}

// Ints reads a variable-length integer vector, replacing *dst.
func (r *Reader) Ints(name string, dst *[]int64) error {
	if r.Binary() {
		n, err := binary.ReadUvarint(r.in)
		if err != nil {
			return r.binaryErr(name, err)
		}
		if n > MaxCount {
			return malformed("field %q: %d values", name, n)
		}
		out := make([]int64, n)
		for i := range out {
			if out[i], err = binary.ReadVarint(r.in); err != nil {
				return r.binaryErr(name, err)
			}
		}
		*dst = out
		return nil
	}
	c, err := r.leaf(name)
	if err != nil || c == nil {
		return err
	}
	out := make([]int64, len(c.values))
	for i, s := range c.values {
		if out[i], err = strconv.ParseInt(s, 10, 64); err != nil {
			return malformed("field %q: %v", name, err)
		}
	}
	*dst = out
	return nil
}

// Count reads the element count of a variable-length field and hands it to
// realloc, which must resize the dependent array. A count absent from a text
// block is zero. Negative, oversized or unparsable counts are malformed.
func (r *Reader) Count(name string, realloc func(n int) error) error {
	n := int64(0)
	if err := r.Int(name, &n); err != nil {
		return err
	}
	if n < 0 {
		return malformed("field %q: negative count %d", name, n)
	}
	if n > MaxCount {
		return malformed("field %q: count %d exceeds %d", name, n, MaxCount)
	}
	return realloc(int(n))
}

// Nested reads n anonymous element blocks under name, calling each with the
// reader positioned inside element i. In text, the element count must match
// n exactly, and a block absent from the stream is only valid when n == 0.
func (r *Reader) Nested(name string, n int, each func(i int) error) error {
	if r.Binary() {
		for i := 0; i < n; i++ {
			if err := each(i); err != nil {
				return err
			}
		}
		return nil
	}
	c := r.top().child(name)
	if c == nil {
		if n > 0 {
			return malformed("block %q missing, %d elements declared", name, n)
		}
		return nil
	}
	if len(c.values) > 0 {
		return malformed("block %q: unexpected values %v", name, c.values)
	}
	if len(c.children) != n {
		return malformed("block %q: %d elements, %d declared", name, len(c.children), n)
	}
	for i, elem := range c.children {
		if elem.name != "" {
			return malformed("block %q: unexpected field %q", name, elem.name)
		}
		r.stack = append(r.stack, elem)
		err := each(i)
		r.stack = r.stack[:len(r.stack)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

// Record reads an optional named sub-record. In text, fn is not called when
// the block is absent; binary always calls it.
func (r *Reader) Record(name string, fn func() error) error {
	if r.Binary() {
		return fn()
	}
	c := r.top().child(name)
	if c == nil {
		return nil
	}
	r.stack = append(r.stack, c)
	err := fn()
	r.stack = r.stack[:len(r.stack)-1]
	return err
}

func (r *Reader) top() *node {
	if len(r.stack) == 0 {
		return &node{}
	}
	return r.stack[len(r.stack)-1]
}

func (r *Reader) leaf(name string) (*node, error) {
	c := r.top().child(name)
	if c == nil {
		return nil, nil
	}
	if len(c.children) > 0 {
		return nil, malformed("field %q: unexpected nested block", name)
	}
	return c, nil
}

func (r *Reader) scalar(name string) (string, bool, error) {
	c, err := r.leaf(name)
	if err != nil || c == nil {
		return "", false, err
	}
	if len(c.values) != 1 {
		return "", false, malformed("field %q: %d values, want 1", name, len(c.values))
	}
	return c.values[0], true, nil
}

func (r *Reader) nextSignificant() (token, error) {
	for {
		t, err := r.lex.next()
		if err != nil || t.kind != tokComment {
			return t, err
		}
	}
}

func (r *Reader) parseBody(n *node, depth int) error {
	if depth > MaxDepth {
		return malformed("block %q nested deeper than %d", n.name, MaxDepth)
	}
	for {
		t, err := r.lex.next()
		if err != nil {
			return err
		}
		switch t.kind {
		case tokEOF:
			return malformed("unexpected end of stream in block %q", n.name)
		case tokClose:
			return nil
		case tokComment:
			continue
		case tokOpen:
			c := &node{}
			if err := r.parseBody(c, depth+1); err != nil {
				return err
			}
			n.children = append(n.children, c)
		case tokWord:
			p, err := r.lex.peek()
			if err != nil {
				return err
			}
			if p.kind != tokOpen {
				n.values = append(n.values, t.text)
				continue
			}
			_, _ = r.lex.next()
			c := &node{name: t.text}
			if err := r.parseBody(c, depth+1); err != nil {
				return err
			}
			n.children = append(n.children, c)
		}
	}
}

func (r *Reader) float() (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.in, b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
}

func (r *Reader) binaryErr(name string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return malformed("field %q: truncated stream", name)
	}
	if errors.Is(err, ErrMalformed) {
		return err
	}
	return malformed("field %q: %v", name, err)
}
