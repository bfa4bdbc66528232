package samples

import (
	"slices"

	"github.com/inference-sim/mcsim/sim"
)

// Focus selects the sites that take part in a sampling pass. An empty focus
// selects every site.
type Focus struct {
	Types []int
}

// Defined reports whether the focus restricts anything.
func (f Focus) Defined() bool { return len(f.Types) > 0 }

// Contains reports whether site is in focus.
func (f Focus) Contains(site *sim.Site) bool {
	if site == nil {
		return false
	}
	return !f.Defined() || slices.Contains(f.Types, site.Type)
}

// Equal reports whether f and o select the same types.
func (f Focus) Equal(o Focus) bool {
	a, b := slices.Clone(f.Types), slices.Clone(o.Types)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

func (f Focus) clone() Focus {
	return Focus{Types: slices.Clone(f.Types)}
}

func (f Focus) ints() []int64 {
	out := make([]int64, len(f.Types))
	for i, t := range f.Types {
		out[i] = int64(t)
	}
	return out
}

func focusFromInts(vs []int64) Focus {
	if len(vs) == 0 {
		return Focus{}
	}
	types := make([]int, len(vs))
	for i, v := range vs {
		types[i] = int(v)
	}
	return Focus{Types: types}
}
