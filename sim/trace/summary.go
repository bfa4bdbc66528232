package trace

import "math"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalRescales  int
	Entries        int
	MeanMultiplier float64
	MeanRatio      float64
	MinStep        float64
	MaxStep        float64
	FinalStep      map[EntryKey]float64 // step size after the last rescale of each entry
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		FinalStep: make(map[EntryKey]float64),
	}
	if st == nil || len(st.Rescales) == 0 {
		return summary
	}

	summary.TotalRescales = len(st.Rescales)
	summary.MinStep = math.Inf(1)
	summary.MaxStep = math.Inf(-1)
	totalMultiplier, totalRatio := 0.0, 0.0
	for _, r := range st.Rescales {
		summary.FinalStep[r.Entry] = r.After
		totalMultiplier += r.Multiplier()
		totalRatio += r.Ratio()
		summary.MinStep = math.Min(summary.MinStep, r.After)
		summary.MaxStep = math.Max(summary.MaxStep, r.After)
	}
	n := float64(len(st.Rescales))
	summary.MeanMultiplier = totalMultiplier / n
	summary.MeanRatio = totalRatio / n
	summary.Entries = len(summary.FinalStep)

	return summary
}
