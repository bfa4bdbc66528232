// Package trace records step-size rescale decisions of the move engine.
// This package has no dependencies on sim/ or its sub-packages; it stores pure data types.
package trace

// EntryKey identifies one (system, site type) step-size entry.
type EntryKey struct {
	System int
	Type   int
}

// RescaleRecord captures a single step-size adaptation.
type RescaleRecord struct {
	Step     int64 // scheduler step the rescale happened in
	Entry    EntryKey
	Before   float64
	After    float64
	Accepted uint64 // accepted trials in the batch
	Batch    uint64 // batch length
}

// Multiplier is the factor the step size was scaled by; 1 when Before is 0.
func (r RescaleRecord) Multiplier() float64 {
	if r.Before == 0 {
		return 1
	}
	return r.After / r.Before
}

// Ratio is the acceptance ratio of the batch.
func (r RescaleRecord) Ratio() float64 {
	if r.Batch == 0 {
		return 0
	}
	return float64(r.Accepted) / float64(r.Batch)
}
