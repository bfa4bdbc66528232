// Package checkpoint writes, reads and combines whole-simulation checkpoints:
// an ordered list of module records, each behind its section header.
package checkpoint

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

const (
	module = "checkpoint"

	// Magic opens every binary checkpoint.
	Magic = "MCSIM1"
	// Preamble is the comment that opens every text checkpoint.
	Preamble = "mcsim checkpoint 1"
)

// Checkpoint is an ordered set of module records.
type Checkpoint struct {
	Records []record.Record
}

// New returns a checkpoint over records.
func New(records ...record.Record) *Checkpoint {
	return &Checkpoint{Records: records}
}

// Headers lists the section header of every record, in order.
func (c *Checkpoint) Headers() []string {
	out := make([]string, len(c.Records))
	for i, r := range c.Records {
		out[i] = r.Header()
	}
	return out
}

// Find returns the records carrying header.
func (c *Checkpoint) Find(header string) []record.Record {
	var out []record.Record
	for _, r := range c.Records {
		if r.Header() == header {
			out = append(out, r)
		}
	}
	return out
}

// Size sums the in-memory size of every record.
func (c *Checkpoint) Size() int {
	n := 0
	for _, r := range c.Records {
		n += r.Size()
	}
	return n
}

// Write emits the preamble and every record. Records that keep an in-flight
// batch window are Reset first so the written state is self-consistent.
func (c *Checkpoint) Write(out io.Writer, enc stream.Encoding) error {
	if enc == stream.Binary {
		if _, err := io.WriteString(out, Magic); err != nil {
			return fmt.Errorf("write magic: %w", err)
		}
	}
	w := stream.NewWriter(out, enc)
	w.Comment(Preamble)
	for _, r := range c.Records {
		if rs, ok := r.(record.Resetter); ok {
			rs.Reset()
		}
		w.Header(r.Header())
		if err := r.Write(w); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Encode returns the checkpoint as bytes.
func (c *Checkpoint) Encode(enc stream.Encoding) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Write(&buf, enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read parses a checkpoint, building each record through reg. The encoding
// is detected from the magic.
func Read(in io.Reader, reg *record.Registry) (*Checkpoint, stream.Encoding, error) {
	br := bufio.NewReader(in)
	enc := stream.Text
	if head, err := br.Peek(len(Magic)); err == nil && string(head) == Magic {
		enc = stream.Binary
		if _, err := br.Discard(len(Magic)); err != nil {
			return nil, enc, err
		}
	}

	r := stream.NewReader(br, enc)
	if enc == stream.Text {
		text, ok, err := r.Comment()
		if err != nil {
			return nil, enc, err
		}
		if !ok || text != Preamble {
			return nil, enc, record.Errorf(module, "Read", record.ErrMalformedStream, "not an mcsim checkpoint")
		}
	}

	c := &Checkpoint{}
	for {
		header, err := r.Header()
		if errors.Is(err, io.EOF) {
			return c, enc, nil
		}
		if err != nil {
			return nil, enc, record.Wrap(module, "Read", err)
		}
		rec, err := reg.New(header)
		if err != nil {
			return nil, enc, err
		}
		if err := rec.Read(r); err != nil {
			return nil, enc, fmt.Errorf("section %d (%s): %w", len(c.Records), header, err)
		}
		c.Records = append(c.Records, rec)
	}
}

// Decode parses a checkpoint from bytes.
func Decode(b []byte, reg *record.Registry) (*Checkpoint, stream.Encoding, error) {
	return Read(bytes.NewReader(b), reg)
}

// Save writes c to path.
func (c *Checkpoint) Save(path string, enc stream.Encoding) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return c.Write(f, enc)
}

// Load reads the checkpoint at path.
func Load(path string, reg *record.Registry) (*Checkpoint, stream.Encoding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, stream.Text, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()
	c, enc, err := Read(f, reg)
	if err != nil {
		return nil, enc, fmt.Errorf("read %s: %w", path, err)
	}
	return c, enc, nil
}

// Merge adds src into dst record by record. Both must list the same headers
// in the same order.
func Merge(dst, src *Checkpoint) error {
	return combine("Merge", dst, src, record.Record.Add)
}

// Subtract removes src from dst record by record.
func Subtract(dst, src *Checkpoint) error {
	return combine("Subtract", dst, src, record.Record.Subtr)
}

func combine(op string, dst, src *Checkpoint, fn func(record.Record, record.Record) error) error {
	if len(dst.Records) != len(src.Records) {
		return record.Errorf(module, op, record.ErrShapeMismatch,
			"%d sections against %d", len(src.Records), len(dst.Records))
	}
	for i := range dst.Records {
		if h, g := dst.Records[i].Header(), src.Records[i].Header(); h != g {
			return record.Errorf(module, op, record.ErrShapeMismatch, "section %d: %s against %s", i, g, h)
		}
	}
	for i := range dst.Records {
		if err := fn(dst.Records[i], src.Records[i]); err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}
	}
	return nil
}

// Clone deep-copies c through reg.
func (c *Checkpoint) Clone(reg *record.Registry) (*Checkpoint, error) {
	out := &Checkpoint{Records: make([]record.Record, len(c.Records))}
	for i, r := range c.Records {
		dup, err := reg.New(r.Header())
		if err != nil {
			return nil, err
		}
		if err := dup.Copy(r); err != nil {
			return nil, err
		}
		out.Records[i] = dup
	}
	return out, nil
}
