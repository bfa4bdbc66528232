// Package accept tracks accept/reject statistics of Monte Carlo trials and
// adapts the trial step size toward a target acceptance ratio.
package accept

import (
	"fmt"
)

// Counter accumulates trials. Accepted never exceeds Total.
type Counter struct {
	Total    uint64
	Accepted uint64
}

// Record counts one trial.
func (c *Counter) Record(accepted bool) {
	c.Total++
	if accepted {
		c.Accepted++
	}
}

// Ratio is the fraction of accepted trials, 0 when nothing was tried.
func (c Counter) Ratio() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Accepted) / float64(c.Total)
}

// Valid reports whether the counter invariant holds.
func (c Counter) Valid() bool {
	return c.Accepted <= c.Total
}

// IsZero reports whether no trial was counted.
func (c Counter) IsZero() bool {
	return c.Total == 0 && c.Accepted == 0
}

// Add merges src into c.
func (c *Counter) Add(src Counter) {
	c.Total += src.Total
	c.Accepted += src.Accepted
}

// Subtr removes src from c. The counter is left unchanged when the result
// would underflow or break Accepted <= Total.
func (c *Counter) Subtr(src Counter) error {
	if src.Total > c.Total || src.Accepted > c.Accepted {
		return fmt.Errorf("subtracting %v from %v underflows", src, *c)
	}
	next := Counter{Total: c.Total - src.Total, Accepted: c.Accepted - src.Accepted}
	if !next.Valid() {
		return fmt.Errorf("subtracting %v from %v leaves %d of %d accepted", src, *c, next.Accepted, next.Total)
	}
	*c = next
	return nil
}

func (c Counter) String() string {
	return fmt.Sprintf("%d/%d", c.Accepted, c.Total)
}
