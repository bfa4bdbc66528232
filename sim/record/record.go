// Package record defines the lifecycle contract shared by every pluggable
// simulation module (move templates, sample templates, distributions,
// acceptance controllers).
//
// A coordinator holds heterogeneous module instances as Record values and
// drives them through one vocabulary: allocate, reinitialize, release, copy,
// merge, measure and serialize. Concrete modules implement the interface;
// the generic helpers in this package cover the array forms.
package record

import (
	"github.com/inference-sim/mcsim/sim/stream"
)

// Record is the uniform operation set of a module entry.
//
// Copy, Add and Subtr take another Record of the same concrete type and
// return an error wrapping ErrShapeMismatch otherwise. Add and Subtr merge
// statistics from an independently owned source into the receiver.
type Record interface {
	// Header names the stream section that holds this record.
	Header() string
	// Reinit restores the default state without allocating new storage.
	Reinit()
	// Release drops owned storage. Views sharing a parent's storage leave
	// it untouched.
	Release()
	// Copy makes the receiver a deep copy of src.
	Copy(src Record) error
	// Add merges src into the receiver.
	Add(src Record) error
	// Subtr removes src from the receiver.
	Subtr(src Record) error
	// Size is the memory accounted to the record, including owned arrays.
	Size() int
	// Read replaces the receiver's state from r.
	Read(r *stream.Reader) error
	// Write emits the receiver's state to w.
	Write(w *stream.Writer) error
}

// Resetter is implemented by records that must be re-armed before they are
// checkpointed, so a resumed run starts from a clean statistics window.
type Resetter interface {
	Reset()
}

// Factory is implemented by records that can be re-armed for a fresh run
// while keeping their configuration.
type Factory interface {
	Factory()
}

// Ptr constrains P to be a pointer to T implementing Record, so the generic
// helpers can operate on value slices ([]T) of records.
type Ptr[T any] interface {
	*T
	Record
}

// Allocate returns n fresh entries, each reinitialized to its default state.
func Allocate[T any, P Ptr[T]](module string, n int) ([]T, error) {
	if n < 0 {
		return nil, Errorf(module, "Allocate", ErrAllocation, "negative length %d", n)
	}
	if n > stream.MaxCount {
		return nil, Errorf(module, "Allocate", ErrAllocation, "length %d exceeds %d", n, stream.MaxCount)
	}
	entries := make([]T, n)
	ReinitializeInPlace[T, P](entries)
	return entries, nil
}

// ReinitializeInPlace resets every existing entry to its default state
// without allocating.
func ReinitializeInPlace[T any, P Ptr[T]](entries []T) {
	for i := range entries {
		P(&entries[i]).Reinit()
	}
}

// ReleaseAll releases every entry and returns nil so callers can drop their
// reference in one statement.
func ReleaseAll[T any, P Ptr[T]](entries []T) []T {
	for i := range entries {
		P(&entries[i]).Release()
	}
	return nil
}

// TotalSize sums Size over entries.
func TotalSize[T any, P Ptr[T]](entries []T) int {
	total := 0
	for i := range entries {
		total += P(&entries[i]).Size()
	}
	return total
}

// CopyAll deep-copies src into dst, which must have the same length.
func CopyAll[T any, P Ptr[T]](module string, dst, src []T) error {
	if len(dst) != len(src) {
		return Errorf(module, "Copy", ErrShapeMismatch, "%d entries into %d", len(src), len(dst))
	}
	for i := range src {
		if err := P(&dst[i]).Copy(P(&src[i])); err != nil {
			return err
		}
	}
	return nil
}
