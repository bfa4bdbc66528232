package sim

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// System is one independent configuration within a simulation. Every system
// carries its own temperature and its own set of sites.
type System struct {
	ID          int
	Temperature float64
}

// SiteType describes a class of sites. Diameter sets the default trial step
// size and the default histogram cutoff.
type SiteType struct {
	Name     string
	Diameter float64
}

// Site is a single simulated particle.
type Site struct {
	ID     int
	Type   int
	System int
	Pos    r3.Vec
}

// Cluster is a connected set of sites supplied by a ClusterProvider.
// Sites[0] is the representative.
type Cluster struct {
	Sites []*Site
}

// Representative returns the first site, or nil for an empty cluster.
func (c Cluster) Representative() *Site {
	if len(c.Sites) == 0 {
		return nil
	}
	return c.Sites[0]
}

// SiteProvider is the energy collaborator of the move engine.
//
// DeactivateSite removes a site's interactions and returns the energy it
// contributed; ActivateSite restores them at the site's current position and
// returns the new contribution. RandomSite may return nil when there is
// nothing to move.
type SiteProvider interface {
	RandomSite(rng *rand.Rand) *Site
	DeactivateSite(site *Site) float64
	ActivateSite(site *Site) float64
}

// ClusterProvider supplies connectivity for the distribution sampler.
// Unwrap returns the positions of c's sites, in order, with periodic images
// resolved so distances can be measured directly.
type ClusterProvider interface {
	Clusters(system int) []Cluster
	Unwrap(c Cluster) []r3.Vec
}
