// Package box is a reference collaborator for the move engine and the
// distribution sampler: hard-core sites and bonded chain molecules in a
// periodic cubic box, one box per system.
//
// Energies are constraint energies only. A site contributes +Inf when it
// overlaps a non-bonded site of its system, or when one of its bonds is longer
// than the molecule's maximum bond length, and 0 otherwise. Energies are
// computed from positions on every call, so a rejected trial only has to
// restore the site's position.
package box

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/inference-sim/mcsim/sim"
)

// ErrPlacement reports that no overlap-free initial configuration was found.
var ErrPlacement = errors.New("placement failed")

// MaxPlacementAttempts bounds the random retries for one site.
const MaxPlacementAttempts = 10000

// Molecule declares Count chain molecules per system. Types lists the site
// types along the chain; consecutive sites are bonded.
type Molecule struct {
	Types   []int   `yaml:"types"`
	Count   int     `yaml:"count"`
	MaxBond float64 `yaml:"max_bond"`
}

type member struct {
	mol   int
	index int
}

type molecule struct {
	sites   []*sim.Site
	maxBond float64
}

// Box holds every site of every system.
type Box struct {
	Length float64

	types     []sim.SiteType
	sites     []*sim.Site
	systems   [][]*sim.Site
	molecules [][]molecule
	members   []member
}

var (
	_ sim.SiteProvider    = (*Box)(nil)
	_ sim.ClusterProvider = (*Box)(nil)
)

// New lays out the sites of nsystems identical systems. Positions are all
// zero until Place is called.
func New(length float64, types []sim.SiteType, nsystems int, molecules []Molecule) (*Box, error) {
	if !(length > 0) || math.IsInf(length, 0) {
		return nil, fmt.Errorf("box length must be positive, got %v", length)
	}
	if nsystems < 1 {
		return nil, fmt.Errorf("need at least one system, got %d", nsystems)
	}
	for i, m := range molecules {
		if err := validateMolecule(m, len(types), length); err != nil {
			return nil, fmt.Errorf("molecule %d: %w", i, err)
		}
	}

	b := &Box{
		Length:    length,
		types:     types,
		systems:   make([][]*sim.Site, nsystems),
		molecules: make([][]molecule, nsystems),
	}
	for sys := 0; sys < nsystems; sys++ {
		for _, m := range molecules {
			for c := 0; c < m.Count; c++ {
				mol := molecule{maxBond: m.MaxBond, sites: make([]*sim.Site, len(m.Types))}
				for k, ty := range m.Types {
					site := &sim.Site{ID: len(b.sites), Type: ty, System: sys}
					b.sites = append(b.sites, site)
					b.systems[sys] = append(b.systems[sys], site)
					b.members = append(b.members, member{mol: len(b.molecules[sys]), index: k})
					mol.sites[k] = site
				}
				b.molecules[sys] = append(b.molecules[sys], mol)
			}
		}
	}
	return b, nil
}

func validateMolecule(m Molecule, ntypes int, length float64) error {
	if m.Count < 0 {
		return fmt.Errorf("count must be >= 0, got %d", m.Count)
	}
	if len(m.Types) == 0 {
		return fmt.Errorf("no site types")
	}
	for _, ty := range m.Types {
		if ty < 0 || ty >= ntypes {
			return fmt.Errorf("site type %d out of range [0, %d)", ty, ntypes)
		}
	}
	if len(m.Types) > 1 {
		if !(m.MaxBond > 0) {
			return fmt.Errorf("max_bond must be positive, got %v", m.MaxBond)
		}
		if m.MaxBond >= length/2 {
			return fmt.Errorf("max_bond %v must be below half the box length %v", m.MaxBond, length)
		}
	}
	return nil
}

// Sites returns every site, indexed by ID.
func (b *Box) Sites() []*sim.Site { return b.sites }

// NumSystems returns the number of systems.
func (b *Box) NumSystems() int { return len(b.systems) }

// Place draws a random overlap-free configuration. Chains grow from a random
// first site with every bond between half and the full maximum length.
func (b *Box) Place(rng *rand.Rand) error {
	for sys, mols := range b.molecules {
		placed := 0
		for m := range mols {
			mol := &mols[m]
			for k, site := range mol.sites {
				if err := b.placeSite(rng, mol, k, b.systems[sys][:placed]); err != nil {
					return fmt.Errorf("system %d site %d: %w", sys, site.ID, err)
				}
				placed++
			}
		}
	}
	return nil
}

func (b *Box) placeSite(rng *rand.Rand, mol *molecule, k int, placed []*sim.Site) error {
	site := mol.sites[k]
	for attempt := 0; attempt < MaxPlacementAttempts; attempt++ {
		if k == 0 {
			site.Pos = r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
			site.Pos = r3.Scale(b.Length, site.Pos)
		} else {
			dir := r3.Unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
			bond := mol.maxBond * (0.5 + 0.5*rng.Float64())
			site.Pos = b.Wrap(r3.Add(mol.sites[k-1].Pos, r3.Scale(bond, dir)))
		}
		if !b.overlapsAny(site, placed) {
			return nil
		}
	}
	return ErrPlacement
}

func (b *Box) overlapsAny(site *sim.Site, others []*sim.Site) bool {
	for _, o := range others {
		if o != site && !b.bonded(site, o) && b.overlap(site, o) {
			return true
		}
	}
	return false
}

// RandomSite picks a site uniformly over all systems.
func (b *Box) RandomSite(rng *rand.Rand) *sim.Site {
	if len(b.sites) == 0 {
		return nil
	}
	return b.sites[rng.Intn(len(b.sites))]
}

// DeactivateSite returns the energy site contributes at its current position.
func (b *Box) DeactivateSite(site *sim.Site) float64 {
	return b.Energy(site)
}

// ActivateSite wraps site back into the box and returns its energy there.
func (b *Box) ActivateSite(site *sim.Site) float64 {
	site.Pos = b.Wrap(site.Pos)
	return b.Energy(site)
}

// Energy returns +Inf when site violates an overlap or bond constraint.
func (b *Box) Energy(site *sim.Site) float64 {
	if site.ID < 0 || site.ID >= len(b.sites) || b.sites[site.ID] != site {
		return 0
	}
	mol := b.moleculeOf(site)
	for _, o := range b.systems[site.System] {
		if o == site {
			continue
		}
		if b.bonded(site, o) {
			if b.Distance(site.Pos, o.Pos) > mol.maxBond {
				return math.Inf(1)
			}
			continue
		}
		if b.overlap(site, o) {
			return math.Inf(1)
		}
	}
	return 0
}

// TotalEnergy sums the pair constraint energies of a system.
func (b *Box) TotalEnergy(system int) float64 {
	total := 0.0
	for _, site := range b.systems[system] {
		total += b.Energy(site)
	}
	return total
}

func (b *Box) moleculeOf(site *sim.Site) *molecule {
	m := b.members[site.ID]
	return &b.molecules[site.System][m.mol]
}

func (b *Box) bonded(a, o *sim.Site) bool {
	if a.System != o.System {
		return false
	}
	ma, mo := b.members[a.ID], b.members[o.ID]
	if ma.mol != mo.mol {
		return false
	}
	d := ma.index - mo.index
	return d == 1 || d == -1
}

func (b *Box) overlap(a, o *sim.Site) bool {
	contact := 0.5 * (b.diameter(a.Type) + b.diameter(o.Type))
	return contact > 0 && b.Distance(a.Pos, o.Pos) < contact
}

func (b *Box) diameter(ty int) float64 {
	if ty < 0 || ty >= len(b.types) {
		return 0
	}
	return b.types[ty].Diameter
}

// Clusters returns one cluster per molecule of system.
func (b *Box) Clusters(system int) []sim.Cluster {
	if system < 0 || system >= len(b.molecules) {
		return nil
	}
	mols := b.molecules[system]
	out := make([]sim.Cluster, len(mols))
	for i, m := range mols {
		out[i] = sim.Cluster{Sites: m.sites}
	}
	return out
}

// Unwrap chains minimum-image vectors from the first site of c, so bonded
// neighbours are adjacent even across the periodic boundary.
func (b *Box) Unwrap(c sim.Cluster) []r3.Vec {
	if len(c.Sites) == 0 {
		return nil
	}
	pos := make([]r3.Vec, len(c.Sites))
	pos[0] = c.Sites[0].Pos
	for i := 1; i < len(c.Sites); i++ {
		pos[i] = r3.Add(pos[i-1], b.MinImage(r3.Sub(c.Sites[i].Pos, c.Sites[i-1].Pos)))
	}
	return pos
}

// Wrap maps p into [0, Length) on every axis.
func (b *Box) Wrap(p r3.Vec) r3.Vec {
	return r3.Vec{X: b.wrap(p.X), Y: b.wrap(p.Y), Z: b.wrap(p.Z)}
}

func (b *Box) wrap(x float64) float64 {
	x -= b.Length * math.Floor(x/b.Length)
	if x >= b.Length {
		x = 0
	}
	return x
}

// MinImage returns the shortest periodic image of d.
func (b *Box) MinImage(d r3.Vec) r3.Vec {
	return r3.Vec{X: b.image(d.X), Y: b.image(d.Y), Z: b.image(d.Z)}
}

func (b *Box) image(x float64) float64 {
	return x - b.Length*math.Round(x/b.Length)
}

// Distance is the minimum-image distance between p and q.
func (b *Box) Distance(p, q r3.Vec) float64 {
	return r3.Norm(b.MinImage(r3.Sub(p, q)))
}
